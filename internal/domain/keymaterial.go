package domain

import (
	"crypto"
	"crypto/x509"
)

// KeyMaterial is the usable form of an unlocked key container: the signing key
// plus the certificate chain it was registered with. It must not outlive the
// signing call that loaded it.
type KeyMaterial struct {
	Key         crypto.Signer
	Certificate *x509.Certificate
	Chain       []*x509.Certificate
}

// Scrub drops references to the key material so it can be collected promptly.
func (m *KeyMaterial) Scrub() {
	if m == nil {
		return
	}
	m.Key = nil
	m.Certificate = nil
	m.Chain = nil
}

// KeyLoader turns an opaque password-protected container into key material.
// Implementations must return ErrInvalidPassphrase or ErrCorruptContainer for
// the two recoverable failure classes.
type KeyLoader interface {
	Load(container []byte, passphrase string) (*KeyMaterial, error)
}
