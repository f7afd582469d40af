// Package account holds the user records two-factor authentication is attached
// to. Its Service verifies bcrypt password hashes and satisfies
// twofactor.PasswordVerifier, so disabling two-factor requires the account
// password.
//
// Storage backends: MemoryStore, PGStore (users table) and MongoStore.
package account
