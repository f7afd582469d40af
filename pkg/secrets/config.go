package secrets

import "context"

// Config selects where the master key comes from. A plain key wins over a
// KMS-wrapped one when both are set.
type Config struct {
	EncryptionKey string `env:"SECRETS_ENCRYPTION_KEY"`
	KMSWrappedKey string `env:"SECRETS_KMS_WRAPPED_KEY"`
	KMSKeyID      string `env:"SECRETS_KMS_KEY_ID"`
}

// UsesKMS reports whether the master key must be unwrapped through KMS.
func (c Config) UsesKMS() bool {
	return c.EncryptionKey == "" && c.KMSWrappedKey != ""
}

// LoadMasterKey resolves the master key from cfg. client is only consulted
// when the key is KMS-wrapped and may be nil otherwise.
func LoadMasterKey(ctx context.Context, cfg Config, client KeyDecrypter) ([]byte, error) {
	if cfg.EncryptionKey != "" {
		return DecodeKey(cfg.EncryptionKey)
	}
	if cfg.KMSWrappedKey != "" {
		return UnwrapKey(ctx, client, cfg.KMSWrappedKey, cfg.KMSKeyID)
	}
	return nil, ErrEncryptionKeyNotSet
}
