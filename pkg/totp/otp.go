package totp

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/base32"
	"encoding/binary"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultDigits    = 6      // Standard 6-digit TOTP codes
	DefaultPeriod    = 30     // 30-second step (RFC 6238)
	DefaultAlgorithm = "SHA1" // HMAC-SHA1 (RFC 6238)
	DefaultSkew      = 1      // Steps accepted before and after the current one

	// SecretSize is the raw secret length in bytes (160 bits, RFC 4226 recommendation).
	SecretSize = 20
)

var (
	// ValidateSecretKeyRegex ensures Base32 format: uppercase A-Z, digits 2-7, optional padding
	ValidateSecretKeyRegex = regexp.MustCompile("^[A-Z2-7]+=*$")

	otpRegex = regexp.MustCompile(fmt.Sprintf(`^\d{%d}$`, DefaultDigits))

	b32 = base32.StdEncoding.WithPadding(base32.NoPadding)
)

// TOTPParams contains the parameters for TOTP URI generation
type TOTPParams struct {
	Secret      string // Base32-encoded TOTP secret key (required)
	AccountName string // User identifier like email (required)
	Issuer      string // Service name displayed in authenticator apps (required)
	Algorithm   string // HMAC algorithm (optional, defaults to SHA1)
	Digits      int    // Number of digits in generated codes (optional, defaults to 6)
	Period      int    // Code validity period in seconds (optional, defaults to 30)
}

// Validate ensures all required TOTP parameters are present and valid
func (p TOTPParams) Validate() error {
	if p.Secret == "" {
		return ErrMissingSecret
	}
	if !ValidateSecretKeyRegex.MatchString(p.Secret) {
		return ErrInvalidSecret
	}
	if strings.TrimSpace(p.AccountName) == "" {
		return ErrMissingAccountName
	}
	if strings.TrimSpace(p.Issuer) == "" {
		return ErrMissingIssuer
	}
	return nil
}

// GetDefaults returns a copy with RFC 6238 standard defaults applied to zero-valued fields
func (p TOTPParams) GetDefaults() TOTPParams {
	if p.Algorithm == "" {
		p.Algorithm = DefaultAlgorithm
	}
	if p.Digits == 0 {
		p.Digits = DefaultDigits
	}
	if p.Period == 0 {
		p.Period = DefaultPeriod
	}
	return p
}

// Key is a freshly generated shared secret together with its provisioning URI.
type Key struct {
	Secret string
	URI    string
}

// KeyParams identifies whom a new key is provisioned for.
type KeyParams struct {
	AccountName string
	Issuer      string
}

// NewKey generates a random secret and builds the otpauth URI for it.
func NewKey(params KeyParams) (*Key, error) {
	secret, err := GenerateSecretKey()
	if err != nil {
		return nil, err
	}

	uri, err := GetTOTPURI(TOTPParams{
		Secret:      secret,
		AccountName: params.AccountName,
		Issuer:      params.Issuer,
	})
	if err != nil {
		return nil, err
	}

	return &Key{Secret: secret, URI: uri}, nil
}

// GenerateSecretKey generates a new Base32-encoded secret key for TOTP.
func GenerateSecretKey() (string, error) {
	secret := make([]byte, SecretSize)
	if _, err := rand.Read(secret); err != nil {
		return "", errors.Join(ErrFailedToGenerateSecretKey, err)
	}
	return b32.EncodeToString(secret), nil
}

// GetTOTPURI creates a properly encoded TOTP URI for use with authenticator apps.
// The URI format follows the Key Uri Format specification:
// https://github.com/google/google-authenticator/wiki/Key-Uri-Format
func GetTOTPURI(params TOTPParams) (string, error) {
	if err := params.Validate(); err != nil {
		return "", err
	}

	params = params.GetDefaults()

	label := fmt.Sprintf("%s:%s",
		url.PathEscape(params.Issuer),
		url.PathEscape(params.AccountName),
	)

	query := url.Values{}
	query.Set("secret", params.Secret)
	query.Set("issuer", params.Issuer)
	query.Set("algorithm", params.Algorithm)
	query.Set("digits", strconv.Itoa(params.Digits))
	query.Set("period", strconv.Itoa(params.Period))

	return fmt.Sprintf("otpauth://totp/%s?%s", label, query.Encode()), nil
}

// NormalizeSecret upper-cases the secret and strips whitespace and padding.
func NormalizeSecret(secret string) string {
	secret = strings.ToUpper(strings.Join(strings.Fields(secret), ""))
	return strings.TrimRight(secret, "=")
}

// DecodeSecret returns the raw key bytes of a Base32 secret.
func DecodeSecret(secret string) ([]byte, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, ErrMissingSecret
	}
	secret = NormalizeSecret(secret)
	if !ValidateSecretKeyRegex.MatchString(secret) {
		return nil, ErrInvalidSecret
	}

	key, err := b32.DecodeString(secret)
	if err != nil {
		return nil, errors.Join(ErrInvalidSecret, err)
	}
	return key, nil
}

// Validator checks submitted codes against a secret. It has no side effects,
// so the same code is accepted again while its window is open.
type Validator struct {
	now  func() time.Time
	skew int
}

// ValidatorOption configures a Validator.
type ValidatorOption func(*Validator)

// WithClock replaces the time source. Intended for tests.
func WithClock(now func() time.Time) ValidatorOption {
	return func(v *Validator) {
		if now != nil {
			v.now = now
		}
	}
}

// WithSkew sets how many periods before and after the current one are accepted.
func WithSkew(steps int) ValidatorOption {
	return func(v *Validator) {
		if steps >= 0 {
			v.skew = steps
		}
	}
}

// NewValidator creates a Validator with a ±1 step window by default.
func NewValidator(opts ...ValidatorOption) *Validator {
	v := &Validator{
		now:  time.Now,
		skew: DefaultSkew,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate reports whether otp matches the secret in any accepted window.
// Malformed input returns ErrInvalidSecret or ErrInvalidOTP.
func (v *Validator) Validate(secret, otp string) (bool, error) {
	key, err := DecodeSecret(secret)
	if err != nil {
		return false, err
	}

	otp = strings.TrimSpace(otp)
	if !otpRegex.MatchString(otp) {
		return false, ErrInvalidOTP
	}

	counter := v.now().Unix() / DefaultPeriod

	// Walk the whole window so timing does not depend on which step matched.
	matched := 0
	for i := -v.skew; i <= v.skew; i++ {
		code := formatCode(GenerateHOTP(key, counter+int64(i), DefaultDigits), DefaultDigits)
		matched |= subtle.ConstantTimeCompare([]byte(code), []byte(otp))
	}

	return matched == 1, nil
}

var defaultValidator = NewValidator()

// ValidateTOTP validates the code against the current wall clock with a ±1 step window.
func ValidateTOTP(secret, otp string) (bool, error) {
	return defaultValidator.Validate(secret, otp)
}

// GenerateTOTP generates a time-based one-time password for the current 30-second window.
func GenerateTOTP(secret string) (string, error) {
	return GenerateTOTPWithTime(secret, time.Now())
}

// GenerateTOTPWithTime generates a TOTP code for the 30-second window containing t.
func GenerateTOTPWithTime(secret string, t time.Time) (string, error) {
	key, err := DecodeSecret(secret)
	if err != nil {
		return "", errors.Join(ErrFailedToGenerateTOTP, err)
	}

	code := GenerateHOTP(key, t.Unix()/DefaultPeriod, DefaultDigits)
	return formatCode(code, DefaultDigits), nil
}

// GenerateHOTP implements RFC 4226 HMAC-based One-Time Password algorithm.
func GenerateHOTP(key []byte, counter int64, digits int) int {
	var msg [8]byte
	binary.BigEndian.PutUint64(msg[:], uint64(counter))

	mac := hmac.New(sha1.New, key)
	mac.Write(msg[:])
	hash := mac.Sum(nil)

	// Dynamic truncation: low nibble of the last byte selects a 31-bit window.
	offset := hash[len(hash)-1] & 0x0f
	code := binary.BigEndian.Uint32(hash[offset:offset+4]) & 0x7fffffff

	mod := uint32(1)
	for range digits {
		mod *= 10
	}
	return int(code % mod)
}

func formatCode(code, digits int) string {
	return fmt.Sprintf("%0*d", digits, code)
}
