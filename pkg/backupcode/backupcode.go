package backupcode

import (
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"io"
	"math/big"
	"strings"
)

const (
	DefaultCount = 8
	// CodeLength is the number of significant characters in a code.
	CodeLength = 8
	// Alphabet omits I, L, O, 0 and 1 to avoid transcription mistakes.
	Alphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

	groupSize = 4
)

// Cipher seals codes at rest. *secrets.Cipher satisfies it.
type Cipher interface {
	Encrypt(plaintext []byte) ([]byte, error)
	Decrypt(ciphertext []byte) ([]byte, error)
}

// Manager generates, encrypts and redeems single-use backup codes.
type Manager struct {
	cipher Cipher
	count  int
	rand   io.Reader
}

type Option func(*Manager)

// WithCount sets how many codes Generate returns.
func WithCount(n int) Option {
	return func(m *Manager) {
		m.count = n
	}
}

// WithRandom replaces the entropy source. Intended for tests.
func WithRandom(r io.Reader) Option {
	return func(m *Manager) {
		if r != nil {
			m.rand = r
		}
	}
}

func NewManager(c Cipher, opts ...Option) (*Manager, error) {
	if c == nil {
		return nil, ErrNilCipher
	}
	m := &Manager{
		cipher: c,
		count:  DefaultCount,
		rand:   rand.Reader,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.count < 1 {
		return nil, ErrInvalidCount
	}
	return m, nil
}

// Count returns the size of a freshly generated set.
func (m *Manager) Count() int { return m.count }

// Generate returns Count distinct codes formatted as XXXX-XXXX.
func (m *Manager) Generate() ([]string, error) {
	size := big.NewInt(int64(len(Alphabet)))
	seen := make(map[string]struct{}, m.count)
	codes := make([]string, 0, m.count)

	buf := make([]byte, CodeLength)
	for len(codes) < m.count {
		for i := range buf {
			n, err := rand.Int(m.rand, size)
			if err != nil {
				return nil, errors.Join(ErrGenerationFailed, err)
			}
			buf[i] = Alphabet[n.Int64()]
		}
		code := string(buf)
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		codes = append(codes, Format(code))
	}
	return codes, nil
}

// EncryptAll seals every code in its normalized form.
func (m *Manager) EncryptAll(codes []string) ([][]byte, error) {
	out := make([][]byte, 0, len(codes))
	for _, code := range codes {
		ct, err := m.cipher.Encrypt([]byte(Normalize(code)))
		if err != nil {
			return nil, errors.Join(ErrEncryptionFailed, err)
		}
		out = append(out, ct)
	}
	return out, nil
}

// Verify reports the index of the stored code matching submitted. Every stored
// code is decrypted and compared in constant time so the position of a match
// does not affect timing. Input that cannot be a code returns (-1, false, nil).
func (m *Manager) Verify(submitted string, stored [][]byte) (int, bool, error) {
	candidate := Normalize(submitted)
	if !wellFormed(candidate) {
		return -1, false, nil
	}

	index := -1
	for i, ct := range stored {
		pt, err := m.cipher.Decrypt(ct)
		if err != nil {
			return -1, false, errors.Join(ErrUnreadableCode, err)
		}
		if subtle.ConstantTimeCompare(pt, []byte(candidate)) == 1 && index < 0 {
			index = i
		}
	}
	return index, index >= 0, nil
}

// Consume verifies submitted and returns stored without the matched entry.
// The input slice is never modified. On no match remaining is nil.
func (m *Manager) Consume(submitted string, stored [][]byte) ([][]byte, bool, error) {
	i, ok, err := m.Verify(submitted, stored)
	if err != nil || !ok {
		return nil, false, err
	}

	remaining := make([][]byte, 0, len(stored)-1)
	remaining = append(remaining, stored[:i]...)
	remaining = append(remaining, stored[i+1:]...)
	return remaining, true, nil
}

// Normalize upper-cases a code and strips spaces and hyphens.
func Normalize(code string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '-' || r == ' ' || r == '\t':
			return -1
		case r >= 'a' && r <= 'z':
			return r - 'a' + 'A'
		}
		return r
	}, code)
}

// Format renders a normalized code in groups of four separated by hyphens.
func Format(code string) string {
	if len(code) <= groupSize {
		return code
	}
	var b strings.Builder
	for i := 0; i < len(code); i += groupSize {
		if i > 0 {
			b.WriteByte('-')
		}
		end := min(i+groupSize, len(code))
		b.WriteString(code[i:end])
	}
	return b.String()
}

func wellFormed(code string) bool {
	if len(code) != CodeLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		if strings.IndexByte(Alphabet, code[i]) < 0 {
			return false
		}
	}
	return true
}
