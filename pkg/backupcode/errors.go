package backupcode

import "errors"

var (
	ErrInvalidCount     = errors.New("backup code count must be greater than 0")
	ErrNilCipher        = errors.New("backup code cipher is required")
	ErrGenerationFailed = errors.New("failed to generate backup codes")
	ErrEncryptionFailed = errors.New("failed to encrypt backup code")
	ErrUnreadableCode   = errors.New("stored backup code cannot be decrypted")
)
