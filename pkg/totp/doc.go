// Package totp implements time-based one-time passwords (RFC 6238) on top of
// HOTP (RFC 4226) with the parameters every mainstream authenticator app
// understands: HMAC-SHA1, 6 digits and a 30 second step.
//
// Secrets are 160 random bits encoded as unpadded Base32. NewKey returns the
// secret together with its otpauth:// provisioning URI:
//
//	key, err := totp.NewKey(totp.KeyParams{
//	    AccountName: "alice@example.com",
//	    Issuer:      "Acme",
//	})
//
// A Validator accepts codes from the current step and one step on either
// side. It keeps no state, so a code may be replayed while its window is
// open. Tests pin the clock with WithClock:
//
//	v := totp.NewValidator(totp.WithClock(func() time.Time { return fixed }))
//	ok, err := v.Validate(key.Secret, "123456")
//
// Malformed input is reported through ErrInvalidSecret and ErrInvalidOTP; a
// well-formed but wrong code returns false with a nil error.
package totp
