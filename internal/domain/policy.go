package domain

import "time"

// PolicyInput is what the signing policy engine sees before a signature is
// produced.
type PolicyInput struct {
	DocumentType string            `json:"document_type"`
	DocumentID   string            `json:"document_id"`
	SignerID     string            `json:"signer_id"`
	Certificate  PolicyCertificate `json:"certificate"`
}

type PolicyCertificate struct {
	ID             string    `json:"id"`
	OwnerID        string    `json:"owner_id"`
	Issuer         string    `json:"issuer"`
	Subject        string    `json:"subject"`
	SerialNumber   string    `json:"serial_number"`
	NotBefore      time.Time `json:"not_before"`
	NotAfter       time.Time `json:"not_after"`
	HardwareBacked bool      `json:"hardware_backed"`
}

func PolicyCertificateFrom(c Certificate) PolicyCertificate {
	return PolicyCertificate{
		ID:             c.ID,
		OwnerID:        c.OwnerID,
		Issuer:         c.Issuer,
		Subject:        c.Subject,
		SerialNumber:   c.SerialNumber,
		NotBefore:      c.NotBefore,
		NotAfter:       c.NotAfter,
		HardwareBacked: c.HardwareBacked,
	}
}

type PolicyResult struct {
	Allow   bool     `json:"allow"`
	Reasons []string `json:"reasons,omitempty"`
}

type PolicyDecision struct {
	BundleID   string
	BundleHash string
	Result     PolicyResult
}
