package db

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"medsign/internal/domain"
)

type SignedDocumentRepository struct {
	db *gorm.DB
}

func NewSignedDocumentRepository(db *gorm.DB) *SignedDocumentRepository {
	return &SignedDocumentRepository{db: db}
}

// RecordSignature appends a new immutable signing record. The latest record
// per (document type, document id) is authoritative; earlier ones remain for
// audit.
func (r *SignedDocumentRepository) RecordSignature(ctx context.Context, rec domain.SignedDocument) (string, error) {
	if r.db == nil {
		return "", errDBUnavailable
	}
	id := rec.ID
	if id == "" {
		id = uuid.NewString()
	}
	model := SignedDocumentModel{
		ID:            id,
		DocumentType:  rec.DocumentType,
		DocumentID:    rec.DocumentID,
		CertificateID: rec.CertificateID,
		SignerID:      rec.SignerID,
		Algorithm:     rec.Algorithm,
		SignatureHash: rec.SignatureHash,
		SignedAt:      rec.SignedAt,
		CryptoValid:   rec.CryptoValid,
		Detail:        rec.Detail,
		CreatedAt:     time.Now().UTC(),
	}
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return "", err
	}
	return id, nil
}

func (r *SignedDocumentRepository) FindLatestSignature(ctx context.Context, documentType, documentID string) (*domain.SignedDocument, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var model SignedDocumentModel
	err := r.db.WithContext(ctx).
		Where("document_type = ? AND document_id = ?", documentType, documentID).
		Order("signed_at DESC").
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	rec := signedDocumentFromModel(model)
	return &rec, nil
}

func (r *SignedDocumentRepository) FindBySignatureHash(ctx context.Context, hash string) (*domain.SignedDocument, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var model SignedDocumentModel
	err := r.db.WithContext(ctx).
		Where("signature_hash = ?", hash).
		Order("signed_at DESC").
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	rec := signedDocumentFromModel(model)
	return &rec, nil
}

func signedDocumentFromModel(model SignedDocumentModel) domain.SignedDocument {
	return domain.SignedDocument{
		ID:            model.ID,
		DocumentType:  model.DocumentType,
		DocumentID:    model.DocumentID,
		CertificateID: model.CertificateID,
		SignerID:      model.SignerID,
		Algorithm:     model.Algorithm,
		SignatureHash: model.SignatureHash,
		SignedAt:      model.SignedAt,
		CryptoValid:   model.CryptoValid,
		Detail:        model.Detail,
	}
}
