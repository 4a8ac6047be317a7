// Package secrets supplies the hashing salt used for audit records. The
// salt never appears in logs, config files, or audit output.
package secrets

import (
	"crypto/rand"
	"fmt"
	"os"
)

// Provider hands out the audit hashing salt.
type Provider interface {
	GetSalt() []byte
}

// EnvProvider reads the salt from an environment variable.
type EnvProvider struct {
	salt []byte
}

// NewEnvProvider loads the salt from the named variable. An absent or
// empty value is a hard error: hashing with an empty salt would make the
// audit trail brute-forceable offline.
func NewEnvProvider(envVar string) (*EnvProvider, error) {
	value := os.Getenv(envVar)
	if value == "" {
		return nil, fmt.Errorf("audit salt env var %s is not set", envVar)
	}
	return &EnvProvider{salt: []byte(value)}, nil
}

func (p *EnvProvider) GetSalt() []byte { return p.salt }

// EphemeralProvider generates a random salt at construction. Suitable for
// tests and single-process use where hashes need not be stable across
// restarts.
type EphemeralProvider struct {
	salt []byte
}

func NewEphemeralProvider() (*EphemeralProvider, error) {
	salt := make([]byte, 32)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generate audit salt: %w", err)
	}
	return &EphemeralProvider{salt: salt}, nil
}

func (p *EphemeralProvider) GetSalt() []byte { return p.salt }
