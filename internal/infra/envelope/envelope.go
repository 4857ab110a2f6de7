// Package envelope builds and verifies the detached CMS SignedData structure
// embedded in signed containers. The envelope carries the digest algorithm,
// the signer's certificate chain and the signature bytes; it never re-embeds
// the covered content, only the byte-range digest is signed.
package envelope

import (
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/x509"
	"errors"
	"fmt"

	"go.mozilla.org/pkcs7"

	"medsign/internal/domain"
)

const (
	AlgorithmRSASHA256   = "RSA-SHA256"
	AlgorithmECDSASHA256 = "ECDSA-SHA256"
)

type Service struct{}

func NewService() *Service {
	return &Service{}
}

// Build produces the detached envelope over the byte-range digest and reports
// the signature algorithm name recorded alongside it.
func (s *Service) Build(digest []byte, material *domain.KeyMaterial) ([]byte, string, error) {
	if material == nil || material.Key == nil || material.Certificate == nil {
		return nil, "", errors.New("incomplete key material")
	}
	alg, err := algorithmName(material)
	if err != nil {
		return nil, "", err
	}

	sd, err := pkcs7.NewSignedData(digest)
	if err != nil {
		return nil, "", fmt.Errorf("init signed data: %w", err)
	}
	sd.SetDigestAlgorithm(pkcs7.OIDDigestAlgorithmSHA256)
	// No authenticated attributes: a signing-time attribute would bake the
	// signer's wall clock into the artifact and make Verify depend on it.
	// Validity windows and revocation are the registry's call, at check time.
	if err := sd.SignWithoutAttr(material.Certificate, material.Key, pkcs7.SignerInfoConfig{}); err != nil {
		return nil, "", fmt.Errorf("add signer: %w", err)
	}
	for _, cert := range material.Chain {
		sd.AddCertificate(cert)
	}
	sd.Detach()

	der, err := sd.Finish()
	if err != nil {
		return nil, "", fmt.Errorf("encode envelope: %w", err)
	}
	return der, alg, nil
}

// Verify checks the envelope's signature against the recomputed digest and
// returns the signer certificate embedded in it.
func (s *Service) Verify(der, digest []byte) (*x509.Certificate, error) {
	p7, err := pkcs7.Parse(der)
	if err != nil {
		return nil, fmt.Errorf("parse envelope: %w", err)
	}
	p7.Content = digest
	if err := p7.Verify(); err != nil {
		return nil, fmt.Errorf("verify envelope: %w", err)
	}
	signer := p7.GetOnlySigner()
	if signer == nil {
		return nil, errors.New("envelope has no signer certificate")
	}
	return signer, nil
}

func algorithmName(material *domain.KeyMaterial) (string, error) {
	switch material.Key.Public().(type) {
	case *rsa.PublicKey:
		return AlgorithmRSASHA256, nil
	case *ecdsa.PublicKey:
		return AlgorithmECDSASHA256, nil
	default:
		return "", fmt.Errorf("unsupported key type %T", material.Key.Public())
	}
}
