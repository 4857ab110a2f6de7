// Package validate verifies signed containers offline: no registry, no
// revocation data, just the byte-range digest, the embedded envelope and the
// validity window of the certificate the envelope carries. Third-party tools
// use this (or reimplement the documented layout) to check artifacts without
// talking to the signing service.
package validate

import (
	"errors"
	"time"

	"medsign/internal/domain"
	"medsign/internal/infra/container"
	"medsign/internal/infra/envelope"
)

type Result struct {
	CryptoValid bool      `json:"crypto_valid"`
	InWindow    bool      `json:"in_window"`
	Subject     string    `json:"subject"`
	Issuer      string    `json:"issuer"`
	Serial      string    `json:"serial_number"`
	NotBefore   time.Time `json:"not_before"`
	NotAfter    time.Time `json:"not_after"`
	Detail      string    `json:"detail,omitempty"`
}

var ErrUnsigned = domain.ErrNoSignature

// Offline checks a signed container at the given time. ErrUnsigned is
// returned when no envelope is embedded; a failed cryptographic check is a
// Result with CryptoValid false, not an error.
func Offline(signed []byte, now time.Time) (*Result, error) {
	br, envelopeDER, err := container.Extract(signed)
	if err != nil {
		if errors.Is(err, domain.ErrNoSignature) {
			return nil, ErrUnsigned
		}
		return nil, err
	}
	digest, err := container.Digest(signed, br)
	if err != nil {
		return nil, err
	}

	svc := envelope.NewService()
	signer, err := svc.Verify(envelopeDER, digest)
	if err != nil {
		return &Result{CryptoValid: false, Detail: "signature does not match the document digest"}, nil
	}

	result := &Result{
		CryptoValid: true,
		Subject:     signer.Subject.String(),
		Issuer:      signer.Issuer.String(),
		Serial:      signer.SerialNumber.String(),
		NotBefore:   signer.NotBefore,
		NotAfter:    signer.NotAfter,
	}
	result.InWindow = !now.Before(signer.NotBefore) && !now.After(signer.NotAfter)
	if !result.InWindow {
		result.Detail = "signer certificate is outside its validity window"
	}
	return result, nil
}
