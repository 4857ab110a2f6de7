package usecase

import (
	"context"
	"crypto/x509"
	"time"

	"medsign/internal/domain"
)

// CertificateRegistry is the durable store of certificate records. It is an
// external collaborator; this core only consumes it.
type CertificateRegistry interface {
	GetCertificate(ctx context.Context, id string) (*domain.Certificate, error)
	RecordUsage(ctx context.Context, id string, at time.Time) error
	GetActiveCertificatesForOwner(ctx context.Context, ownerID string) ([]domain.Certificate, error)
}

// SignatureRegistry stores immutable "document was signed" records.
type SignatureRegistry interface {
	RecordSignature(ctx context.Context, rec domain.SignedDocument) (string, error)
	FindLatestSignature(ctx context.Context, documentType, documentID string) (*domain.SignedDocument, error)
	FindBySignatureHash(ctx context.Context, hash string) (*domain.SignedDocument, error)
}

// SessionStore is the signing-side view of the passphrase session store:
// Reveal is an atomic reveal-and-touch and reports domain.ErrLocked when the
// caller must re-authenticate.
type SessionStore interface {
	Reveal(ctx context.Context, certificateID, userID string) (string, error)
}

// ContainerService implements the byte-range contract over signed containers.
type ContainerService interface {
	Reserve(doc []byte) ([]byte, domain.ByteRange, error)
	Digest(prepared []byte, br domain.ByteRange) ([]byte, error)
	Embed(prepared []byte, br domain.ByteRange, envelope []byte) ([]byte, error)
	Extract(signed []byte) (domain.ByteRange, []byte, error)
}

// EnvelopeService builds and verifies detached signature envelopes.
type EnvelopeService interface {
	Build(digest []byte, material *domain.KeyMaterial) (der []byte, algorithm string, err error)
	Verify(der, digest []byte) (*x509.Certificate, error)
}

// PolicyEngine decides whether a signing request may proceed.
type PolicyEngine interface {
	Evaluate(ctx context.Context, input domain.PolicyInput) (domain.PolicyDecision, error)
}
