package db

import (
	"errors"
	"time"
)

var errDBUnavailable = errors.New("database unavailable")

type CertificateModel struct {
	ID               string    `gorm:"type:uuid;primaryKey"`
	OwnerID          string    `gorm:"type:uuid;index;not null"`
	Issuer           string    `gorm:"not null"`
	Subject          string    `gorm:"not null"`
	SerialNumber     string    `gorm:"index;not null"`
	NotBefore        time.Time `gorm:"not null"`
	NotAfter         time.Time `gorm:"not null"`
	Active           bool      `gorm:"not null"`
	HardwareBacked   bool      `gorm:"not null"`
	UsageCount       int64     `gorm:"not null"`
	LastUsedAt       *time.Time
	RevokedAt        *time.Time
	RevocationReason *string
	CreatedAt        time.Time `gorm:"not null"`
}

func (CertificateModel) TableName() string {
	return "certificates"
}

type SignedDocumentModel struct {
	ID            string    `gorm:"type:uuid;primaryKey"`
	DocumentType  string    `gorm:"index:idx_signed_documents_doc;not null"`
	DocumentID    string    `gorm:"index:idx_signed_documents_doc;not null"`
	CertificateID string    `gorm:"type:uuid;index;not null"`
	SignerID      string    `gorm:"type:uuid;not null"`
	Algorithm     string    `gorm:"not null"`
	SignatureHash string    `gorm:"index;not null"`
	SignedAt      time.Time `gorm:"index;not null"`
	CryptoValid   bool      `gorm:"not null"`
	Detail        string
	CreatedAt     time.Time `gorm:"not null"`
}

func (SignedDocumentModel) TableName() string {
	return "signed_documents"
}
