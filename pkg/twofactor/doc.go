// Package twofactor implements TOTP two-factor authentication for user
// accounts: enrollment, login verification, single-use backup codes,
// regeneration and disabling.
//
// A Service coordinates the pieces. Secrets are generated by pkg/totp,
// sealed with a Cipher from pkg/secrets and persisted through a Store.
// Backup codes come from pkg/backupcode and are stored encrypted, one
// ciphertext per code.
//
// Enrollment is two steps. BeginSetup returns a secret, its otpauth URI and
// a QR code but stores nothing. CompleteSetup receives the secret back with
// a code from the authenticator, enables the credential and returns the
// backup codes:
//
//	setup, err := svc.BeginSetup(ctx, userID, "alice@example.com")
//	// user scans setup.QRCode
//	codes, err := svc.CompleteSetup(ctx, userID, setup.Secret, "123456")
//
// Stores update conditionally on a version number, so two requests redeeming
// the same backup code cannot both succeed. MemoryStore is provided for
// development; pgstore and mongostore hold production implementations.
//
// Errors are sentinel values. ErrorCode maps them to stable strings for API
// responses and metrics labels.
package twofactor
