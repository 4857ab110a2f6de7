package domain

import "time"

// Certificate is the registry's record of one signer's cryptographic identity.
// It is created when key material is registered and never hard-deleted;
// revocation and usage bookkeeping are the only mutations.
type Certificate struct {
	ID               string
	OwnerID          string
	Issuer           string
	Subject          string
	SerialNumber     string
	NotBefore        time.Time
	NotAfter         time.Time
	Active           bool
	HardwareBacked   bool
	UsageCount       int64
	LastUsedAt       *time.Time
	RevokedAt        *time.Time
	RevocationReason string
}

func (c Certificate) Revoked() bool {
	return c.RevokedAt != nil
}

func (c Certificate) InValidityWindow(now time.Time) bool {
	return !now.Before(c.NotBefore) && !now.After(c.NotAfter)
}

// UsableForSigning reports whether a new signature may be produced with this
// certificate at the given time.
func (c Certificate) UsableForSigning(now time.Time) bool {
	return c.Active && !c.Revoked() && c.InValidityWindow(now)
}

// SignedDocument records one signing event. Records are immutable; a re-sign
// creates a new record and the latest one is authoritative for verification.
type SignedDocument struct {
	ID            string
	DocumentType  string
	DocumentID    string
	CertificateID string
	SignerID      string
	Algorithm     string
	SignatureHash string
	SignedAt      time.Time
	CryptoValid   bool
	Detail        string
}
