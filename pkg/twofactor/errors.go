package twofactor

import "errors"

var (
	ErrInvalidToken      = errors.New("invalid two-factor code")
	ErrInvalidBackupCode = errors.New("invalid backup code")
	ErrAlreadyEnabled    = errors.New("two-factor authentication is already enabled")
	ErrNotEnabled        = errors.New("two-factor authentication is not enabled")
	ErrDecryption        = errors.New("stored two-factor material cannot be decrypted")
	ErrWrongPassword     = errors.New("wrong password")
	ErrInvalidSecret     = errors.New("invalid two-factor secret")
	ErrTooManyAttempts   = errors.New("too many two-factor attempts")
	ErrInvalidInput      = errors.New("invalid input")

	// Store errors.
	ErrCredentialNotFound = errors.New("two-factor credential not found")
	ErrConflict           = errors.New("two-factor credential was modified concurrently")
)

// ErrorCode returns a stable snake_case code for err, used as a metrics label
// and in API responses. Unknown errors map to "internal".
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrInvalidToken):
		return "invalid_token"
	case errors.Is(err, ErrInvalidBackupCode):
		return "invalid_backup_code"
	case errors.Is(err, ErrAlreadyEnabled):
		return "already_enabled"
	case errors.Is(err, ErrNotEnabled):
		return "not_enabled"
	case errors.Is(err, ErrDecryption):
		return "decryption_failed"
	case errors.Is(err, ErrWrongPassword):
		return "wrong_password"
	case errors.Is(err, ErrInvalidSecret):
		return "invalid_secret"
	case errors.Is(err, ErrTooManyAttempts):
		return "too_many_attempts"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrConflict):
		return "conflict"
	}
	return "internal"
}

// isRejection reports errors caused by the caller rather than the system.
func isRejection(err error) bool {
	switch ErrorCode(err) {
	case "decryption_failed", "internal":
		return false
	}
	return true
}
