// Package keymat turns an opaque password-protected key container into usable
// key material. PKCS#12 is the primary container format; PEM bundles with an
// encrypted private key are accepted as well. The passphrase and private key
// are never retained here; callers scrub the material after signing.
package keymat

import (
	"bytes"
	"crypto"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"

	"golang.org/x/crypto/pkcs12"

	"medsign/internal/domain"
)

type Loader struct{}

func NewLoader() *Loader {
	return &Loader{}
}

var _ domain.KeyLoader = (*Loader)(nil)

func (l *Loader) Load(container []byte, passphrase string) (*domain.KeyMaterial, error) {
	if len(container) == 0 {
		return nil, fmt.Errorf("%w: empty container", domain.ErrCorruptContainer)
	}
	var blocks []*pem.Block
	var err error
	if bytes.Contains(container, []byte("-----BEGIN ")) {
		blocks, err = decryptPEM(container, passphrase)
	} else {
		blocks, err = pkcs12.ToPEM(container, passphrase)
		if err != nil {
			if errors.Is(err, pkcs12.ErrIncorrectPassword) {
				err = domain.ErrInvalidPassphrase
			} else {
				err = fmt.Errorf("%w: %v", domain.ErrCorruptContainer, err)
			}
		}
	}
	if err != nil {
		return nil, err
	}
	return assemble(blocks)
}

func decryptPEM(container []byte, passphrase string) ([]*pem.Block, error) {
	var blocks []*pem.Block
	rest := container
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		if x509.IsEncryptedPEMBlock(block) {
			der, err := x509.DecryptPEMBlock(block, []byte(passphrase))
			if err != nil {
				if errors.Is(err, x509.IncorrectPasswordError) {
					return nil, domain.ErrInvalidPassphrase
				}
				return nil, fmt.Errorf("%w: %v", domain.ErrCorruptContainer, err)
			}
			block = &pem.Block{Type: block.Type, Bytes: der}
		}
		blocks = append(blocks, block)
	}
	if len(blocks) == 0 {
		return nil, fmt.Errorf("%w: no PEM blocks", domain.ErrCorruptContainer)
	}
	return blocks, nil
}

func assemble(blocks []*pem.Block) (*domain.KeyMaterial, error) {
	var key crypto.Signer
	var certs []*x509.Certificate
	for _, block := range blocks {
		switch block.Type {
		case "CERTIFICATE":
			cert, err := x509.ParseCertificate(block.Bytes)
			if err != nil {
				return nil, fmt.Errorf("%w: bad certificate: %v", domain.ErrCorruptContainer, err)
			}
			certs = append(certs, cert)
		default:
			parsed, err := parseKey(block.Bytes)
			if err != nil {
				return nil, err
			}
			if key != nil {
				return nil, fmt.Errorf("%w: multiple private keys", domain.ErrCorruptContainer)
			}
			key = parsed
		}
	}
	if key == nil {
		return nil, fmt.Errorf("%w: no private key", domain.ErrCorruptContainer)
	}
	if len(certs) == 0 {
		return nil, fmt.Errorf("%w: no certificate", domain.ErrCorruptContainer)
	}

	leaf, chain := splitChain(key, certs)
	if leaf == nil {
		return nil, fmt.Errorf("%w: no certificate matches the private key", domain.ErrCorruptContainer)
	}
	return &domain.KeyMaterial{Key: key, Certificate: leaf, Chain: chain}, nil
}

func parseKey(der []byte) (crypto.Signer, error) {
	if k, err := x509.ParsePKCS8PrivateKey(der); err == nil {
		signer, ok := k.(crypto.Signer)
		if !ok {
			return nil, fmt.Errorf("%w: unsupported key type %T", domain.ErrCorruptContainer, k)
		}
		return signer, nil
	}
	if k, err := x509.ParsePKCS1PrivateKey(der); err == nil {
		return k, nil
	}
	if k, err := x509.ParseECPrivateKey(der); err == nil {
		return k, nil
	}
	return nil, fmt.Errorf("%w: unparseable private key", domain.ErrCorruptContainer)
}

type publicKeyEqualer interface {
	Equal(crypto.PublicKey) bool
}

func splitChain(key crypto.Signer, certs []*x509.Certificate) (*x509.Certificate, []*x509.Certificate) {
	pub, ok := key.Public().(publicKeyEqualer)
	if !ok {
		return nil, nil
	}
	var leaf *x509.Certificate
	var chain []*x509.Certificate
	for _, cert := range certs {
		if leaf == nil && pub.Equal(cert.PublicKey) {
			leaf = cert
			continue
		}
		chain = append(chain, cert)
	}
	return leaf, chain
}
