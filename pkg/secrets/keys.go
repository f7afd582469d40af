package secrets

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"

	"golang.org/x/crypto/hkdf"
)

const (
	// KeySize is the required master key size (AES-256).
	KeySize = 32

	// infoPrefix scopes HKDF output to this service; the purpose is appended.
	infoPrefix = "twofactor-secrets-v1:"
)

// Purpose separates subkeys so a ciphertext produced for one kind of data
// never decrypts as another.
type Purpose string

const (
	PurposeTOTPSecret Purpose = "totp-secret"
	PurposeBackupCode Purpose = "backup-code"
)

// deriveKey expands the master key into a purpose-bound subkey.
// The caller must clear the result with clearBytes.
func deriveKey(masterKey []byte, purpose Purpose) ([]byte, error) {
	r := hkdf.New(sha256.New, masterKey, nil, []byte(infoPrefix+string(purpose)))

	key := make([]byte, KeySize)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, errors.Join(ErrKeyDerivationFailed, err)
	}
	return key, nil
}

func clearBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// GenerateKey creates a new random 32-byte master key.
func GenerateKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	return key, nil
}

// GenerateEncodedKey returns a new master key as standard base64, the format
// SECRETS_ENCRYPTION_KEY expects.
func GenerateEncodedKey() (string, error) {
	key, err := GenerateKey()
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(key), nil
}

// DecodeKey parses a base64 master key and checks its length.
func DecodeKey(encoded string) ([]byte, error) {
	if encoded == "" {
		return nil, ErrEncryptionKeyNotSet
	}
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, errors.Join(ErrInvalidEncodedKey, err)
	}
	if len(key) != KeySize {
		return nil, ErrInvalidMasterKey
	}
	return key, nil
}
