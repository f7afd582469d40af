// Package backupcode manages single-use recovery codes for accounts with
// two-factor authentication enabled.
//
// Codes are 8 characters drawn from an alphabet without look-alike glyphs and
// are shown to the user as XXXX-XXXX. Matching is case-insensitive and ignores
// spaces and hyphens. Codes are stored encrypted through a Cipher, never in
// plaintext, and Consume returns the remaining set without the redeemed code
// so the caller can persist it atomically.
package backupcode
