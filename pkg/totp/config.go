package totp

// Config holds the provisioning settings shared by every enrollment.
type Config struct {
	Issuer string `env:"TOTP_ISSUER,required"`
	// Skew is the number of periods accepted on each side of the current one.
	Skew int `env:"TOTP_SKEW" envDefault:"1"`
}
