package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"medsign/internal/domain"
	"medsign/internal/infra/canonical"
	"medsign/internal/infra/lock"
)

type SignDocumentRequest struct {
	DocumentType  string
	DocumentID    string
	CertificateID string
	UserID        string

	// Document is the binary container body. When Metadata is set instead,
	// the canonical serialization of the metadata record is signed.
	Document []byte
	Metadata *domain.DocumentMetadata

	// Container is the signer's password-protected key container.
	Container []byte
}

type SignDocumentResult struct {
	// SignedDocument is the complete container with the envelope embedded.
	SignedDocument []byte
	ByteRange      domain.ByteRange
	Record         domain.SignedDocument
	PolicyBundle   string
}

// SignDocument produces a signed container: reveal the session passphrase,
// unlock the key container, cross-check it against the registry record, gate
// on policy, then digest, sign, embed and record. Signing per certificate is
// serialized; any failure aborts with no partial output.
type SignDocument struct {
	Certificates CertificateRegistry
	Signatures   SignatureRegistry
	Sessions     SessionStore
	Keys         domain.KeyLoader
	Containers   ContainerService
	Envelopes    EnvelopeService
	Policy       PolicyEngine
	Locks        lock.Locker[string]
	Now          func() time.Time
}

func (uc *SignDocument) Execute(ctx context.Context, req SignDocumentRequest) (*SignDocumentResult, error) {
	if err := validateSignRequest(req); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	if uc.Now != nil {
		now = uc.Now().UTC()
	}

	if uc.Locks != nil {
		held, err := uc.Locks.Acquire(ctx, req.CertificateID)
		if err != nil {
			return nil, err
		}
		defer held.Unlock()
	}

	cert, err := uc.Certificates.GetCertificate(ctx, req.CertificateID)
	if err != nil {
		return nil, err
	}
	if !cert.UsableForSigning(now) {
		return nil, fmt.Errorf("%w: %s", domain.ErrCertificateUnusable, unusableDetail(*cert, now))
	}

	passphrase, err := uc.Sessions.Reveal(ctx, req.CertificateID, req.UserID)
	if err != nil {
		return nil, err
	}

	material, err := uc.Keys.Load(req.Container, passphrase)
	if err != nil {
		return nil, err
	}
	defer material.Scrub()

	if err := crossCheck(*cert, material); err != nil {
		return nil, err
	}

	var policyBundle string
	if uc.Policy != nil {
		decision, err := uc.Policy.Evaluate(ctx, domain.PolicyInput{
			DocumentType: req.DocumentType,
			DocumentID:   req.DocumentID,
			SignerID:     req.UserID,
			Certificate:  domain.PolicyCertificateFrom(*cert),
		})
		if err != nil {
			return nil, err
		}
		if !decision.Result.Allow {
			return nil, fmt.Errorf("%w: %s", domain.ErrPolicyDenied, strings.Join(decision.Result.Reasons, "; "))
		}
		policyBundle = decision.BundleHash
	}

	doc := req.Document
	if req.Metadata != nil {
		doc = canonical.Marshal(*req.Metadata)
	}
	prepared, br, err := uc.Containers.Reserve(doc)
	if err != nil {
		return nil, err
	}
	digest, err := uc.Containers.Digest(prepared, br)
	if err != nil {
		return nil, err
	}
	envelopeDER, alg, err := uc.Envelopes.Build(digest, material)
	if err != nil {
		return nil, fmt.Errorf("build signature envelope: %w", err)
	}
	signed, err := uc.Containers.Embed(prepared, br, envelopeDER)
	if err != nil {
		return nil, err
	}

	sum := sha256.Sum256(envelopeDER)
	record := domain.SignedDocument{
		DocumentType:  req.DocumentType,
		DocumentID:    req.DocumentID,
		CertificateID: cert.ID,
		SignerID:      req.UserID,
		Algorithm:     alg,
		SignatureHash: hex.EncodeToString(sum[:]),
		SignedAt:      now,
		CryptoValid:   true,
		Detail:        recordDetail(policyBundle),
	}
	record.ID, err = uc.Signatures.RecordSignature(ctx, record)
	if err != nil {
		return nil, err
	}
	if err := uc.Certificates.RecordUsage(ctx, cert.ID, now); err != nil {
		return nil, err
	}

	return &SignDocumentResult{
		SignedDocument: signed,
		ByteRange:      br,
		Record:         record,
		PolicyBundle:   policyBundle,
	}, nil
}

func validateSignRequest(req SignDocumentRequest) error {
	if req.DocumentType == "" || req.DocumentID == "" {
		return errors.New("document type and id are required")
	}
	if req.CertificateID == "" || req.UserID == "" {
		return errors.New("certificate id and user id are required")
	}
	if req.Document != nil && req.Metadata != nil {
		return errors.New("document and metadata are mutually exclusive")
	}
	if req.Document == nil && req.Metadata == nil {
		return errors.New("nothing to sign")
	}
	if len(req.Container) == 0 {
		return errors.New("key container is required")
	}
	return nil
}

// crossCheck enforces that the container's own certificate and the registry
// record describe the same identity before any signature is produced.
func crossCheck(cert domain.Certificate, material *domain.KeyMaterial) error {
	if material == nil || material.Certificate == nil {
		return fmt.Errorf("%w: container certificate missing", domain.ErrCorruptContainer)
	}
	if material.Certificate.SerialNumber.String() != cert.SerialNumber {
		return fmt.Errorf("%w: serial number differs", domain.ErrCertificateMismatch)
	}
	if material.Certificate.Subject.String() != cert.Subject {
		return fmt.Errorf("%w: subject differs", domain.ErrCertificateMismatch)
	}
	return nil
}

func unusableDetail(cert domain.Certificate, now time.Time) string {
	switch {
	case cert.Revoked():
		return "revoked: " + cert.RevocationReason
	case !cert.Active:
		return "deactivated"
	case now.Before(cert.NotBefore):
		return "not yet valid"
	default:
		return "expired"
	}
}

func recordDetail(policyBundle string) string {
	if policyBundle == "" {
		return ""
	}
	return "policy_bundle=" + policyBundle
}
