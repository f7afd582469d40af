package secrets

import "errors"

var (
	ErrInvalidMasterKey    = errors.New("invalid master key: must be 32 bytes")
	ErrInvalidPurpose      = errors.New("invalid key purpose")
	ErrEncryptionKeyNotSet = errors.New("encryption key not set")
	ErrInvalidEncodedKey   = errors.New("invalid base64 encryption key")

	ErrEncryptionFailed  = errors.New("encryption failed")
	ErrDecryptionFailed  = errors.New("decryption failed")
	ErrInvalidCiphertext = errors.New("invalid ciphertext format")

	ErrKeyDerivationFailed = errors.New("key derivation failed")
	ErrKeyUnwrapFailed     = errors.New("failed to unwrap encryption key")
)
