package db

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"medsign/internal/domain"
)

type CertificateRepository struct {
	db *gorm.DB
}

func NewCertificateRepository(db *gorm.DB) *CertificateRepository {
	return &CertificateRepository{db: db}
}

func (r *CertificateRepository) GetCertificate(ctx context.Context, id string) (*domain.Certificate, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var model CertificateModel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	cert := certificateFromModel(model)
	return &cert, nil
}

func (r *CertificateRepository) GetActiveCertificatesForOwner(ctx context.Context, ownerID string) ([]domain.Certificate, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var models []CertificateModel
	err := r.db.WithContext(ctx).
		Where("owner_id = ? AND active AND revoked_at IS NULL", ownerID).
		Order("created_at DESC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	certs := make([]domain.Certificate, 0, len(models))
	for _, model := range models {
		certs = append(certs, certificateFromModel(model))
	}
	return certs, nil
}

func (r *CertificateRepository) RecordUsage(ctx context.Context, id string, at time.Time) error {
	if r.db == nil {
		return errDBUnavailable
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&CertificateModel{}).
			Where("id = ?", id).
			Updates(map[string]any{
				"usage_count":  gorm.Expr("usage_count + 1"),
				"last_used_at": at,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return domain.ErrNotFound
		}
		return nil
	})
}

// Revoke marks the certificate untrusted from at onward. Records are never
// deleted; old signatures must stay verifiable against what was revoked, and
// when. The active flag is left alone so verification reports revocation as
// revocation, not as deactivation.
func (r *CertificateRepository) Revoke(ctx context.Context, id string, at time.Time, reason string) error {
	if r.db == nil {
		return errDBUnavailable
	}
	result := r.db.WithContext(ctx).Model(&CertificateModel{}).
		Where("id = ? AND revoked_at IS NULL", id).
		Updates(map[string]any{
			"revoked_at":        at,
			"revocation_reason": reason,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func certificateFromModel(model CertificateModel) domain.Certificate {
	cert := domain.Certificate{
		ID:             model.ID,
		OwnerID:        model.OwnerID,
		Issuer:         model.Issuer,
		Subject:        model.Subject,
		SerialNumber:   model.SerialNumber,
		NotBefore:      model.NotBefore,
		NotAfter:       model.NotAfter,
		Active:         model.Active,
		HardwareBacked: model.HardwareBacked,
		UsageCount:     model.UsageCount,
		LastUsedAt:     model.LastUsedAt,
		RevokedAt:      model.RevokedAt,
	}
	if model.RevocationReason != nil {
		cert.RevocationReason = *model.RevocationReason
	}
	return cert
}
