package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"medsign/internal/domain"
)

type VerifySignatureRequest struct {
	// SignedDocument is the artifact to verify. When empty, the latest
	// recorded signature for (DocumentType, DocumentID) is checked instead.
	SignedDocument []byte
	DocumentType   string
	DocumentID     string
}

// VerifySignature answers "is this signature valid right now, and why not"
// as a single deterministic verdict. It is side-effect-free so it can be
// exposed to unauthenticated third-party validators; a negative verdict is a
// normal return value, only registry I/O failures surface as errors.
type VerifySignature struct {
	Certificates CertificateRegistry
	Signatures   SignatureRegistry
	Containers   ContainerService
	Envelopes    EnvelopeService
	Now          func() time.Time
}

func (uc *VerifySignature) Execute(ctx context.Context, req VerifySignatureRequest) (*domain.VerificationResult, error) {
	now := time.Now().UTC()
	if uc.Now != nil {
		now = uc.Now().UTC()
	}
	if len(req.SignedDocument) > 0 {
		return uc.verifyArtifact(ctx, req.SignedDocument, now)
	}
	if req.DocumentType != "" && req.DocumentID != "" {
		return uc.verifyRecord(ctx, req.DocumentType, req.DocumentID, now)
	}
	return nil, errors.New("either a signed document or a document reference is required")
}

func (uc *VerifySignature) verifyArtifact(ctx context.Context, signed []byte, now time.Time) (*domain.VerificationResult, error) {
	br, envelopeDER, err := uc.Containers.Extract(signed)
	if err != nil {
		// Anything that is not a well-formed signed container counts as
		// unsigned, with the parse detail surfaced for display.
		detail := "document carries no signature"
		if !errors.Is(err, domain.ErrNoSignature) {
			detail = err.Error()
		}
		return unsignedResult(now, detail), nil
	}

	sum := sha256.Sum256(envelopeDER)
	record, err := uc.Signatures.FindBySignatureHash(ctx, hex.EncodeToString(sum[:]))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return invalidResult(now, domain.ReasonCertificateUnknown, "signature is not registered with this service", nil), nil
		}
		return nil, err
	}

	return uc.checkCertificateThen(ctx, record, now, func(cert *domain.Certificate) (*domain.VerificationResult, error) {
		digest, err := uc.Containers.Digest(signed, br)
		if err != nil {
			return invalidResult(now, domain.ReasonSignatureMismatch, err.Error(), cert), nil
		}
		if _, err := uc.Envelopes.Verify(envelopeDER, digest); err != nil {
			return invalidResult(now, domain.ReasonSignatureMismatch, "signature does not match the document digest", cert), nil
		}
		return validResult(now, cert), nil
	})
}

func (uc *VerifySignature) verifyRecord(ctx context.Context, documentType, documentID string, now time.Time) (*domain.VerificationResult, error) {
	record, err := uc.Signatures.FindLatestSignature(ctx, documentType, documentID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return unsignedResult(now, "no signature recorded for this document"), nil
		}
		return nil, err
	}

	return uc.checkCertificateThen(ctx, record, now, func(cert *domain.Certificate) (*domain.VerificationResult, error) {
		if !record.CryptoValid {
			return invalidResult(now, domain.ReasonSignatureMismatch, "recorded signature failed its cryptographic check", cert), nil
		}
		return validResult(now, cert), nil
	})
}

// checkCertificateThen runs the shared middle of the verdict state machine:
// certificate resolution, current validity window and active flag, then
// revocation, before handing off to the cryptographic check.
func (uc *VerifySignature) checkCertificateThen(
	ctx context.Context,
	record *domain.SignedDocument,
	now time.Time,
	cryptoCheck func(cert *domain.Certificate) (*domain.VerificationResult, error),
) (*domain.VerificationResult, error) {
	cert, err := uc.Certificates.GetCertificate(ctx, record.CertificateID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return invalidResult(now, domain.ReasonCertificateUnknown, "signing certificate is unknown to the registry", nil), nil
		}
		return nil, err
	}
	// Current status, not status at signing time: a certificate that has
	// since expired, been deactivated or been revoked invalidates past
	// signatures.
	if !cert.InValidityWindow(now) || !cert.Active {
		return invalidResult(now, domain.ReasonCertificateOutOfValidityOrInactive,
			"certificate is outside its validity window or deactivated", cert), nil
	}
	if cert.Revoked() {
		detail := "certificate was revoked"
		if cert.RevocationReason != "" {
			detail += ": " + cert.RevocationReason
		}
		return invalidResult(now, domain.ReasonCertificateRevoked, detail, cert), nil
	}
	return cryptoCheck(cert)
}

func unsignedResult(now time.Time, detail string) *domain.VerificationResult {
	return &domain.VerificationResult{
		Verdict:   domain.VerdictUnsigned,
		Detail:    detail,
		CheckedAt: now,
	}
}

func invalidResult(now time.Time, reason domain.ReasonCode, detail string, cert *domain.Certificate) *domain.VerificationResult {
	return &domain.VerificationResult{
		Verdict:     domain.VerdictInvalid,
		Reason:      reason,
		Detail:      detail,
		Certificate: cert,
		CheckedAt:   now,
	}
}

func validResult(now time.Time, cert *domain.Certificate) *domain.VerificationResult {
	return &domain.VerificationResult{
		Verdict:     domain.VerdictValid,
		Detail:      "signature is valid",
		Certificate: cert,
		CheckedAt:   now,
	}
}
