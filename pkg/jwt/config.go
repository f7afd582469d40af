package jwt

import "time"

type Config struct {
	SigningKey string        `env:"JWT_SIGNING_KEY"`
	Issuer     string        `env:"JWT_ISSUER" envDefault:"twofactor"`
	TTL        time.Duration `env:"JWT_TTL" envDefault:"15m"`
}
