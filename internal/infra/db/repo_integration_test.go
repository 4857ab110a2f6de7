//go:build integration
// +build integration

package db

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"medsign/internal/domain"
)

func TestCertificateRepository_GetAndList(t *testing.T) {
	db := setupTestDB(t)
	resetDB(t, db)

	ownerID := uuid.NewString()
	active := insertCertificate(t, db, ownerID, true, nil)
	insertCertificate(t, db, ownerID, false, nil)
	revokedAt := time.Now().UTC().Add(-time.Hour)
	insertCertificate(t, db, ownerID, true, &revokedAt)

	repo := NewCertificateRepository(db)
	got, err := repo.GetCertificate(context.Background(), active)
	if err != nil {
		t.Fatalf("get certificate: %v", err)
	}
	if got.ID != active || got.OwnerID != ownerID || !got.Active {
		t.Fatalf("unexpected certificate: %+v", got)
	}

	if _, err := repo.GetCertificate(context.Background(), uuid.NewString()); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	list, err := repo.GetActiveCertificatesForOwner(context.Background(), ownerID)
	if err != nil {
		t.Fatalf("list certificates: %v", err)
	}
	if len(list) != 1 || list[0].ID != active {
		t.Fatalf("expected only the active unrevoked certificate, got %+v", list)
	}
}

func TestCertificateRepository_RecordUsage(t *testing.T) {
	db := setupTestDB(t)
	resetDB(t, db)

	certID := insertCertificate(t, db, uuid.NewString(), true, nil)
	repo := NewCertificateRepository(db)

	at := time.Date(2026, 2, 3, 10, 0, 0, 0, time.UTC)
	if err := repo.RecordUsage(context.Background(), certID, at); err != nil {
		t.Fatalf("record usage: %v", err)
	}
	if err := repo.RecordUsage(context.Background(), certID, at.Add(time.Minute)); err != nil {
		t.Fatalf("record usage again: %v", err)
	}

	got, err := repo.GetCertificate(context.Background(), certID)
	if err != nil {
		t.Fatalf("get certificate: %v", err)
	}
	if got.UsageCount != 2 {
		t.Fatalf("usage count %d, want 2", got.UsageCount)
	}
	if got.LastUsedAt == nil || !got.LastUsedAt.Equal(at.Add(time.Minute)) {
		t.Fatalf("last used at %v", got.LastUsedAt)
	}

	if err := repo.RecordUsage(context.Background(), uuid.NewString(), at); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCertificateRepository_Revoke(t *testing.T) {
	db := setupTestDB(t)
	resetDB(t, db)

	certID := insertCertificate(t, db, uuid.NewString(), true, nil)
	repo := NewCertificateRepository(db)

	at := time.Now().UTC().Truncate(time.Microsecond)
	if err := repo.Revoke(context.Background(), certID, at, "key compromise"); err != nil {
		t.Fatalf("revoke: %v", err)
	}

	got, err := repo.GetCertificate(context.Background(), certID)
	if err != nil {
		t.Fatalf("get certificate: %v", err)
	}
	if !got.Revoked() || got.RevocationReason != "key compromise" {
		t.Fatalf("certificate not revoked: %+v", got)
	}
	if !got.Active {
		t.Fatal("revocation must not clear the active flag")
	}

	// Revocation is recorded once; a second attempt does not overwrite it.
	if err := repo.Revoke(context.Background(), certID, at.Add(time.Hour), "other"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on double revoke, got %v", err)
	}
}

func TestSignedDocumentRepository_RecordAndFind(t *testing.T) {
	db := setupTestDB(t)
	resetDB(t, db)

	certID := insertCertificate(t, db, uuid.NewString(), true, nil)
	repo := NewSignedDocumentRepository(db)

	older := domain.SignedDocument{
		DocumentType:  "prescription",
		DocumentID:    "rx-1",
		CertificateID: certID,
		SignerID:      uuid.NewString(),
		Algorithm:     "RSA-SHA256",
		SignatureHash: "aaaa",
		SignedAt:      time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC),
		CryptoValid:   true,
	}
	newer := older
	newer.SignatureHash = "bbbb"
	newer.SignedAt = older.SignedAt.Add(time.Hour)

	if _, err := repo.RecordSignature(context.Background(), older); err != nil {
		t.Fatalf("record older: %v", err)
	}
	newerID, err := repo.RecordSignature(context.Background(), newer)
	if err != nil {
		t.Fatalf("record newer: %v", err)
	}

	latest, err := repo.FindLatestSignature(context.Background(), "prescription", "rx-1")
	if err != nil {
		t.Fatalf("find latest: %v", err)
	}
	if latest.ID != newerID || latest.SignatureHash != "bbbb" {
		t.Fatalf("latest is %+v", latest)
	}

	byHash, err := repo.FindBySignatureHash(context.Background(), "aaaa")
	if err != nil {
		t.Fatalf("find by hash: %v", err)
	}
	if byHash.SignatureHash != "aaaa" || !byHash.SignedAt.Equal(older.SignedAt) {
		t.Fatalf("by hash is %+v", byHash)
	}

	if _, err := repo.FindLatestSignature(context.Background(), "prescription", "rx-none"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := repo.FindBySignatureHash(context.Background(), "cccc"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := strings.TrimSpace(os.Getenv("POSTGRES_DSN_TEST"))
	if dsn == "" {
		t.Skip("POSTGRES_DSN_TEST not set")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	lockTestDB(t, db)
	if err := db.AutoMigrate(&CertificateModel{}, &SignedDocumentModel{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func lockTestDB(t *testing.T, db *gorm.DB) {
	t.Helper()
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db: %v", err)
	}
	conn, err := sqlDB.Conn(context.Background())
	if err != nil {
		t.Fatalf("open db conn: %v", err)
	}
	if _, err := conn.ExecContext(context.Background(), "SELECT pg_advisory_lock(424213377)"); err != nil {
		_ = conn.Close()
		t.Fatalf("acquire db lock: %v", err)
	}
	t.Cleanup(func() {
		_, _ = conn.ExecContext(context.Background(), "SELECT pg_advisory_unlock(424213377)")
		_ = conn.Close()
	})
}

func resetDB(t *testing.T, db *gorm.DB) {
	t.Helper()
	if err := db.Exec(`TRUNCATE certificates, signed_documents RESTART IDENTITY CASCADE`).Error; err != nil {
		t.Fatalf("truncate tables: %v", err)
	}
}

func insertCertificate(t *testing.T, db *gorm.DB, ownerID string, active bool, revokedAt *time.Time) string {
	t.Helper()
	id := uuid.NewString()
	model := CertificateModel{
		ID:           id,
		OwnerID:      ownerID,
		Issuer:       "CN=clinic-ca",
		Subject:      "CN=dr-" + id[:8],
		SerialNumber: id[:8],
		NotBefore:    time.Now().UTC().Add(-24 * time.Hour),
		NotAfter:     time.Now().UTC().Add(24 * time.Hour),
		Active:       active,
		RevokedAt:    revokedAt,
		CreatedAt:    time.Now().UTC(),
	}
	if err := db.Create(&model).Error; err != nil {
		t.Fatalf("insert certificate: %v", err)
	}
	return id
}
