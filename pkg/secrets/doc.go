// Package secrets encrypts two-factor material at rest.
//
// A single 32-byte master key is expanded with HKDF-SHA-256 into one subkey
// per Purpose, so TOTP secrets and backup codes are sealed under different
// keys even though operators manage only one. Each subkey drives AES-256-GCM;
// the random nonce is prepended to the ciphertext.
//
//	master, _ := secrets.DecodeKey(os.Getenv("SECRETS_ENCRYPTION_KEY"))
//	c, _ := secrets.NewCipher(master, secrets.PurposeTOTPSecret)
//	ct, _ := c.Encrypt([]byte("JBSWY3DPEHPK3PXP"))
//	pt, err := c.Decrypt(ct)
//
// The master key can also be stored wrapped by AWS KMS and unwrapped at
// startup with LoadMasterKey.
//
// Decryption errors wrap ErrDecryptionFailed or ErrInvalidCiphertext and
// never include key or plaintext material.
package secrets
