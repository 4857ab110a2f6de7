package keymat

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"math/big"
	"testing"
	"time"

	"medsign/internal/domain"
)

func newKeyAndCert(t *testing.T, cn string) (*ecdsa.PrivateKey, []byte) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	template := &x509.Certificate{
		SerialNumber: big.NewInt(time.Now().UnixNano()),
		Subject:      pkix.Name{CommonName: cn},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("create certificate: %v", err)
	}
	return key, der
}

// encryptedPEMContainer bundles a certificate with a passphrase-encrypted
// private key, the PEM shape the loader accepts alongside PKCS#12.
func encryptedPEMContainer(t *testing.T, key *ecdsa.PrivateKey, certDER []byte, passphrase string, extraCerts ...[]byte) []byte {
	t.Helper()
	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		t.Fatalf("marshal key: %v", err)
	}
	encrypted, err := x509.EncryptPEMBlock(rand.Reader, "EC PRIVATE KEY", keyDER, []byte(passphrase), x509.PEMCipherAES256)
	if err != nil {
		t.Fatalf("encrypt key: %v", err)
	}

	var container []byte
	container = append(container, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: certDER})...)
	for _, extra := range extraCerts {
		container = append(container, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: extra})...)
	}
	container = append(container, pem.EncodeToMemory(encrypted)...)
	return container
}

func TestLoadEncryptedPEM(t *testing.T) {
	key, certDER := newKeyAndCert(t, "dr-adams")
	container := encryptedPEMContainer(t, key, certDER, "pa55word")

	material, err := NewLoader().Load(container, "pa55word")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if material.Certificate == nil || material.Certificate.Subject.CommonName != "dr-adams" {
		t.Fatalf("wrong leaf certificate: %+v", material.Certificate)
	}
	if !key.PublicKey.Equal(material.Key.Public()) {
		t.Fatal("loaded key does not match the generated key")
	}
	if len(material.Chain) != 0 {
		t.Fatalf("unexpected chain: %d certs", len(material.Chain))
	}
}

func TestLoadSplitsChain(t *testing.T) {
	key, certDER := newKeyAndCert(t, "dr-adams")
	_, caDER := newKeyAndCert(t, "clinic-ca")
	container := encryptedPEMContainer(t, key, certDER, "pa55word", caDER)

	material, err := NewLoader().Load(container, "pa55word")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if material.Certificate.Subject.CommonName != "dr-adams" {
		t.Fatalf("leaf is %q", material.Certificate.Subject.CommonName)
	}
	if len(material.Chain) != 1 || material.Chain[0].Subject.CommonName != "clinic-ca" {
		t.Fatalf("chain mismatch: %+v", material.Chain)
	}
}

func TestLoadWrongPassphrase(t *testing.T) {
	key, certDER := newKeyAndCert(t, "dr-adams")
	container := encryptedPEMContainer(t, key, certDER, "pa55word")

	if _, err := NewLoader().Load(container, "not-the-passphrase"); !errors.Is(err, domain.ErrInvalidPassphrase) {
		t.Fatalf("expected ErrInvalidPassphrase, got %v", err)
	}
}

func TestLoadCorruptContainer(t *testing.T) {
	cases := map[string][]byte{
		"empty":        nil,
		"garbage":      []byte("definitely not a key container"),
		"pem no key":   pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: []byte{0x01}}),
		"pem no certs": pem.EncodeToMemory(&pem.Block{Type: "JUNK", Bytes: []byte{0x01}}),
	}
	for name, container := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := NewLoader().Load(container, "pa55word"); !errors.Is(err, domain.ErrCorruptContainer) {
				t.Fatalf("expected ErrCorruptContainer, got %v", err)
			}
		})
	}
}

func TestScrubDropsKeyMaterial(t *testing.T) {
	key, certDER := newKeyAndCert(t, "dr-adams")
	container := encryptedPEMContainer(t, key, certDER, "pa55word")

	material, err := NewLoader().Load(container, "pa55word")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	material.Scrub()
	if material.Key != nil || material.Certificate != nil || material.Chain != nil {
		t.Fatal("Scrub left references behind")
	}
}
