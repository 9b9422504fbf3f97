package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/xid"
)

const keyBits = 2048

// KeyManager owns the RSA signing key used for access/refresh tokens.
// Keys are process-wide resources loaded once at startup and held
// immutable for the life of the process; Rotate exists for an
// operator-triggered key change (e.g. suspected key compromise), not for
// routine per-request use. A rotation keeps the single most recently
// retired key around as a verify-only grace window, so tokens already
// handed out to other sessions keep working until they expire naturally
// instead of being invalidated the instant one rotation happens.
type KeyManager struct {
	dir string

	mu      sync.RWMutex
	priv    *rsa.PrivateKey
	kid     string
	prevKid string
	prevPub *rsa.PublicKey
}

// LoadOrGenerate loads an existing key pair from dir, or generates and
// persists a fresh one if none exists yet.
func LoadOrGenerate(dir string) (*KeyManager, error) {
	m := &KeyManager{dir: dir}

	raw, err := os.ReadFile(filepath.Join(dir, "current.key"))
	if err == nil {
		block, _ := pem.Decode(raw)
		if block == nil {
			return nil, fmt.Errorf("auth: malformed key file at %s", dir)
		}
		key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("parse existing key: %w", err)
		}
		kid, kerr := os.ReadFile(filepath.Join(dir, "current.kid"))
		if kerr != nil {
			return nil, fmt.Errorf("read existing kid: %w", kerr)
		}
		m.priv = key
		m.kid = string(kid)
		return m, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read key file: %w", err)
	}

	if err := m.Rotate(); err != nil {
		return nil, err
	}
	return m, nil
}

// Rotate generates a brand new RSA key pair and persists it, replacing the
// active signing key.
func (m *KeyManager) Rotate() error {
	key, err := rsa.GenerateKey(rand.Reader, keyBits)
	if err != nil {
		return fmt.Errorf("generate rsa key: %w", err)
	}

	if err := os.MkdirAll(m.dir, 0o700); err != nil {
		return fmt.Errorf("create key dir: %w", err)
	}

	der := x509.MarshalPKCS1PrivateKey(key)
	block := &pem.Block{Type: "RSA PRIVATE KEY", Bytes: der}
	if err := os.WriteFile(filepath.Join(m.dir, "current.key"), pem.EncodeToMemory(block), 0o600); err != nil {
		return fmt.Errorf("write key file: %w", err)
	}

	kid := xid.New().String()
	if err := os.WriteFile(filepath.Join(m.dir, "current.kid"), []byte(kid), 0o600); err != nil {
		return fmt.Errorf("write kid file: %w", err)
	}

	m.mu.Lock()
	if m.priv != nil {
		m.prevKid = m.kid
		m.prevPub = &m.priv.PublicKey
	}
	m.priv = key
	m.kid = kid
	m.mu.Unlock()
	return nil
}

func (m *KeyManager) signingKey() (*rsa.PrivateKey, string) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.priv, m.kid
}

func (m *KeyManager) verifyKey(kid string) (*rsa.PublicKey, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if kid == m.kid {
		return &m.priv.PublicKey, true
	}
	if m.prevPub != nil && kid == m.prevKid {
		return m.prevPub, true
	}
	return nil, false
}
