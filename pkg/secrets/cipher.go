package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"io"
)

// Cipher encrypts values with AES-256-GCM under a subkey derived for one purpose.
// Output layout is nonce || ciphertext || tag. Safe for concurrent use.
type Cipher struct {
	aead    cipher.AEAD
	purpose Purpose
}

// NewCipher derives the purpose subkey from masterKey and prepares the AEAD.
func NewCipher(masterKey []byte, purpose Purpose) (*Cipher, error) {
	if len(masterKey) != KeySize {
		return nil, ErrInvalidMasterKey
	}
	if purpose == "" {
		return nil, ErrInvalidPurpose
	}

	key, err := deriveKey(masterKey, purpose)
	if err != nil {
		return nil, err
	}
	defer clearBytes(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.Join(ErrKeyDerivationFailed, err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errors.Join(ErrKeyDerivationFailed, err)
	}

	return &Cipher{aead: aead, purpose: purpose}, nil
}

// Purpose returns the purpose the subkey was derived for.
func (c *Cipher) Purpose() Purpose { return c.purpose }

// Encrypt seals plaintext with a fresh random nonce.
func (c *Cipher) Encrypt(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, c.aead.NonceSize(), c.aead.NonceSize()+len(plaintext)+c.aead.Overhead())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, errors.Join(ErrEncryptionFailed, err)
	}
	return c.aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt opens a value produced by Encrypt. Any tampering, truncation or
// purpose mismatch fails with ErrDecryptionFailed or ErrInvalidCiphertext.
func (c *Cipher) Decrypt(ciphertext []byte) ([]byte, error) {
	nonceSize := c.aead.NonceSize()
	if len(ciphertext) < nonceSize+c.aead.Overhead() {
		return nil, ErrInvalidCiphertext
	}

	nonce, sealed := ciphertext[:nonceSize], ciphertext[nonceSize:]
	plaintext, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, errors.Join(ErrDecryptionFailed, err)
	}
	return plaintext, nil
}

// EncryptString encrypts s and returns base64 ciphertext.
func (c *Cipher) EncryptString(s string) (string, error) {
	ct, err := c.Encrypt([]byte(s))
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(ct), nil
}

// DecryptString reverses EncryptString.
func (c *Cipher) DecryptString(s string) (string, error) {
	ct, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return "", errors.Join(ErrInvalidCiphertext, err)
	}
	pt, err := c.Decrypt(ct)
	if err != nil {
		return "", err
	}
	return string(pt), nil
}
