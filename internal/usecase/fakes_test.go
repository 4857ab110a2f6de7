package usecase

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"testing"
	"time"

	"medsign/internal/domain"
	"medsign/internal/infra/container"
	"medsign/internal/infra/envelope"
	"medsign/internal/infra/keymat"
	"medsign/internal/infra/lock"
)

type fakeCertificates struct {
	certs map[string]*domain.Certificate
	used  map[string]int
}

func newFakeCertificates() *fakeCertificates {
	return &fakeCertificates{
		certs: make(map[string]*domain.Certificate),
		used:  make(map[string]int),
	}
}

func (f *fakeCertificates) GetCertificate(_ context.Context, id string) (*domain.Certificate, error) {
	cert, ok := f.certs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *cert
	return &copied, nil
}

func (f *fakeCertificates) RecordUsage(_ context.Context, id string, at time.Time) error {
	cert, ok := f.certs[id]
	if !ok {
		return domain.ErrNotFound
	}
	cert.UsageCount++
	cert.LastUsedAt = &at
	f.used[id]++
	return nil
}

func (f *fakeCertificates) GetActiveCertificatesForOwner(_ context.Context, ownerID string) ([]domain.Certificate, error) {
	var out []domain.Certificate
	for _, cert := range f.certs {
		if cert.OwnerID == ownerID && cert.Active && !cert.Revoked() {
			out = append(out, *cert)
		}
	}
	return out, nil
}

type fakeSignatures struct {
	records []domain.SignedDocument
}

func (f *fakeSignatures) RecordSignature(_ context.Context, rec domain.SignedDocument) (string, error) {
	rec.ID = fmt.Sprintf("sig-%d", len(f.records)+1)
	f.records = append(f.records, rec)
	return rec.ID, nil
}

func (f *fakeSignatures) FindLatestSignature(_ context.Context, documentType, documentID string) (*domain.SignedDocument, error) {
	for i := len(f.records) - 1; i >= 0; i-- {
		if f.records[i].DocumentType == documentType && f.records[i].DocumentID == documentID {
			rec := f.records[i]
			return &rec, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeSignatures) FindBySignatureHash(_ context.Context, hash string) (*domain.SignedDocument, error) {
	for i := len(f.records) - 1; i >= 0; i-- {
		if f.records[i].SignatureHash == hash {
			rec := f.records[i]
			return &rec, nil
		}
	}
	return nil, domain.ErrNotFound
}

type fakeSessions struct {
	passphrases map[string]string
}

func (f *fakeSessions) Reveal(_ context.Context, certificateID, userID string) (string, error) {
	passphrase, ok := f.passphrases[certificateID+"|"+userID]
	if !ok {
		return "", domain.ErrLocked
	}
	return passphrase, nil
}

type fakePolicy struct {
	decision domain.PolicyDecision
	err      error
	inputs   []domain.PolicyInput
}

func (f *fakePolicy) Evaluate(_ context.Context, input domain.PolicyInput) (domain.PolicyDecision, error) {
	f.inputs = append(f.inputs, input)
	return f.decision, f.err
}

// fixture wires real container, envelope and key-container code around the
// fake registries, with one unlocked signer ready to go.
type fixture struct {
	certs      *fakeCertificates
	signatures *fakeSignatures
	sessions   *fakeSessions
	policy     *fakePolicy
	sign       *SignDocument
	verify     *VerifySignature

	container []byte
	now       time.Time
}

const (
	testCertID     = "cert-1"
	testUserID     = "user-1"
	testPassphrase = "pa55word"
)

func newFixture(t *testing.T) *fixture {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	template := &x509.Certificate{
		SerialNumber: big.NewInt(987654321),
		Subject:      pkix.Name{CommonName: "dr-adams", Organization: []string{"city-clinic"}},
		NotBefore:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		NotAfter:     time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		KeyUsage:     x509.KeyUsageDigitalSignature,
	}
	certDER, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("create certificate: %v", err)
	}
	parsed, err := x509.ParseCertificate(certDER)
	if err != nil {
		t.Fatalf("parse certificate: %v", err)
	}

	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		t.Fatalf("marshal key: %v", err)
	}
	encrypted, err := x509.EncryptPEMBlock(rand.Reader, "EC PRIVATE KEY", keyDER, []byte(testPassphrase), x509.PEMCipherAES256)
	if err != nil {
		t.Fatalf("encrypt key: %v", err)
	}
	keyContainer := append(
		pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: certDER}),
		pem.EncodeToMemory(encrypted)...,
	)

	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	f := &fixture{
		certs:      newFakeCertificates(),
		signatures: &fakeSignatures{},
		sessions:   &fakeSessions{passphrases: map[string]string{testCertID + "|" + testUserID: testPassphrase}},
		policy:     &fakePolicy{decision: domain.PolicyDecision{BundleHash: "hash-1", Result: domain.PolicyResult{Allow: true}}},
		container:  keyContainer,
		now:        now,
	}
	f.certs.certs[testCertID] = &domain.Certificate{
		ID:           testCertID,
		OwnerID:      testUserID,
		Issuer:       parsed.Issuer.String(),
		Subject:      parsed.Subject.String(),
		SerialNumber: parsed.SerialNumber.String(),
		NotBefore:    parsed.NotBefore,
		NotAfter:     parsed.NotAfter,
		Active:       true,
	}

	containers := container.NewService(2048)
	envelopes := envelope.NewService()
	f.sign = &SignDocument{
		Certificates: f.certs,
		Signatures:   f.signatures,
		Sessions:     f.sessions,
		Keys:         keymat.NewLoader(),
		Containers:   containers,
		Envelopes:    envelopes,
		Policy:       f.policy,
		Locks:        lock.NewMemoryLocker[string](),
		Now:          func() time.Time { return f.now },
	}
	f.verify = &VerifySignature{
		Certificates: f.certs,
		Signatures:   f.signatures,
		Containers:   containers,
		Envelopes:    envelopes,
		Now:          func() time.Time { return f.now },
	}
	return f
}

func (f *fixture) signRequest(doc []byte) SignDocumentRequest {
	return SignDocumentRequest{
		DocumentType:  "prescription",
		DocumentID:    "rx-1001",
		CertificateID: testCertID,
		UserID:        testUserID,
		Document:      doc,
		Container:     f.container,
	}
}
