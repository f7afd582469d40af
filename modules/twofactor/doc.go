// Package twofactor exposes the two-factor service over HTTP.
//
// Routes, relative to the mount point:
//
//	POST /setup          start enrollment, returns secret, otpauth URI and QR code
//	POST /setup/verify   {secret, code}, enables 2FA and returns backup codes
//	POST /verify         {code, backup_code}, second factor of a login
//	POST /disable        {password}
//	POST /backup-codes   {code}, replaces all backup codes
//	GET  /status
//
// Replies use the envelope {code, message, data, error}. Service errors map
// to 400, 401, 409 or 429; anything else is a 500 without details.
//
//	h := twofactor.NewHandler(svc, jwt.Middleware(tokens, twofactor.Unauthorized))
//	r.Mount("/2fa", h.Handle())
package twofactor
