package message

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/pion/stun/v3"
	"golang.org/x/crypto/hkdf"
)

// derivedKeySize is the length of HKDF output used as the short-term
// credential.
const derivedKeySize = 16

// Signer appends and checks MESSAGE-INTEGRITY (short-term credential) and
// FINGERPRINT.
type Signer struct {
	integrity stun.MessageIntegrity
}

// NewSigner creates a signer for a short-term credential password.
func NewSigner(password string) (*Signer, error) {
	if password == "" {
		return nil, ErrEmptyKey
	}
	return &Signer{integrity: stun.NewShortTermIntegrity(password)}, nil
}

// DeriveSigner derives the short-term password from a shared secret with
// HKDF-SHA256. Both peers deriving with the same secret and info agree on
// the key.
func DeriveSigner(secret []byte, info string) (*Signer, error) {
	if len(secret) == 0 {
		return nil, ErrEmptyKey
	}
	r := hkdf.New(sha256.New, secret, nil, []byte(info))
	key := make([]byte, derivedKeySize)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("message: derive key: %w", err)
	}
	return NewSigner(hex.EncodeToString(key))
}

// Sign appends MESSAGE-INTEGRITY followed by FINGERPRINT to m and
// re-encodes it. Signing an already signed message is a no-op.
func (s *Signer) Sign(m *stun.Message) error {
	if HasIntegrity(m) {
		return nil
	}
	if m.Contains(stun.AttrFingerprint) {
		// FINGERPRINT must be the last attribute.
		return ErrAlreadyFingerprinted
	}
	if err := s.integrity.AddTo(m); err != nil {
		return err
	}
	return stun.Fingerprint.AddTo(m)
}

// Verify checks MESSAGE-INTEGRITY and, when present, FINGERPRINT.
func (s *Signer) Verify(m *stun.Message) error {
	if !HasIntegrity(m) {
		return ErrMissingIntegrity
	}
	if m.Contains(stun.AttrFingerprint) {
		if err := stun.Fingerprint.Check(m); err != nil {
			return err
		}
	}
	return s.integrity.Check(m)
}
