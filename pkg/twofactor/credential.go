package twofactor

import (
	"time"

	"github.com/google/uuid"
)

// Credential is the persisted two-factor record of one user. The secret and
// every backup code are stored encrypted.
type Credential struct {
	UserID               uuid.UUID
	Enabled              bool
	EncryptedSecret      []byte
	EncryptedBackupCodes [][]byte
	// Version increases on every write and guards conditional updates.
	Version   int64
	EnabledAt *time.Time
	UpdatedAt time.Time
}

// State returns the lifecycle state. A nil credential is not enrolled.
func (c *Credential) State() State {
	if c == nil || !c.Enabled {
		return StateNotEnrolled
	}
	return StateEnabled
}

// Clone returns a deep copy.
func (c *Credential) Clone() *Credential {
	if c == nil {
		return nil
	}
	out := *c
	out.EncryptedSecret = append([]byte(nil), c.EncryptedSecret...)
	out.EncryptedBackupCodes = make([][]byte, len(c.EncryptedBackupCodes))
	for i, code := range c.EncryptedBackupCodes {
		out.EncryptedBackupCodes[i] = append([]byte(nil), code...)
	}
	if c.EnabledAt != nil {
		t := *c.EnabledAt
		out.EnabledAt = &t
	}
	return &out
}

// Setup is returned by BeginSetup. It is the only place the plaintext secret
// ever leaves the service.
type Setup struct {
	Secret string
	URI    string
	// QRCode is the URI rendered as a PNG data URI.
	QRCode string
}

// Status summarises an account's two-factor configuration without exposing secrets.
type Status struct {
	Enabled              bool
	BackupCodesRemaining int
	EnabledAt            *time.Time
}
