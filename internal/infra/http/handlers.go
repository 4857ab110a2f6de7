package http

import (
	"encoding/base64"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"medsign/internal/domain"
	"medsign/internal/usecase"
)

type unlockRequest struct {
	Passphrase string `json:"passphrase" binding:"required"`
	TTLSeconds int    `json:"ttl_seconds"`
}

func (s *Server) handleUnlock(c *gin.Context) {
	var req unlockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "BAD_REQUEST", "passphrase is required")
		return
	}
	err := s.sessions.Unlock(c.Request.Context(), c.Param("id"), currentUser(c), req.Passphrase, time.Duration(req.TTLSeconds)*time.Second)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "unlocked"})
}

func (s *Server) handleLock(c *gin.Context) {
	if err := s.sessions.Lock(c.Request.Context(), c.Param("id"), currentUser(c)); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "locked"})
}

func (s *Server) handleListCertificates(c *gin.Context) {
	certs, err := s.certificates.GetActiveCertificatesForOwner(c.Request.Context(), currentUser(c))
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]certificateDoc, 0, len(certs))
	for _, cert := range certs {
		out = append(out, certificateDocFrom(cert))
	}
	c.JSON(http.StatusOK, gin.H{"certificates": out})
}

type signRequest struct {
	DocumentType string                   `json:"document_type" binding:"required"`
	DocumentID   string                   `json:"document_id" binding:"required"`
	Document     string                   `json:"document"`
	Metadata     *domain.DocumentMetadata `json:"metadata"`
	Container    string                   `json:"container" binding:"required"`
}

type signResponse struct {
	SignedDocument string            `json:"signed_document"`
	ByteRange      domain.ByteRange  `json:"byte_range"`
	Record         signedDocumentDoc `json:"record"`
}

func (s *Server) handleSign(c *gin.Context) {
	var req signRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "BAD_REQUEST", "invalid sign request")
		return
	}
	var doc []byte
	if req.Document != "" {
		decoded, err := base64.StdEncoding.DecodeString(req.Document)
		if err != nil {
			writeErrorCode(c, http.StatusBadRequest, "BAD_REQUEST", "document must be base64")
			return
		}
		doc = decoded
	}
	container, err := base64.StdEncoding.DecodeString(req.Container)
	if err != nil {
		writeErrorCode(c, http.StatusBadRequest, "BAD_REQUEST", "container must be base64")
		return
	}

	result, err := s.sign.Execute(c.Request.Context(), usecase.SignDocumentRequest{
		DocumentType:  req.DocumentType,
		DocumentID:    req.DocumentID,
		CertificateID: c.Param("id"),
		UserID:        currentUser(c),
		Document:      doc,
		Metadata:      req.Metadata,
		Container:     container,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, signResponse{
		SignedDocument: base64.StdEncoding.EncodeToString(result.SignedDocument),
		ByteRange:      result.ByteRange,
		Record:         signedDocumentDocFrom(result.Record),
	})
}

type verifyRequest struct {
	SignedDocument string `json:"signed_document"`
	DocumentType   string `json:"document_type"`
	DocumentID     string `json:"document_id"`
}

type verifyResponse struct {
	Verdict     string          `json:"verdict"`
	Reason      string          `json:"reason,omitempty"`
	Detail      string          `json:"detail,omitempty"`
	Certificate *certificateDoc `json:"certificate,omitempty"`
	CheckedAt   time.Time       `json:"checked_at"`
}

func (s *Server) handleVerify(c *gin.Context) {
	if !s.enforceRateLimit(c) {
		return
	}
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "BAD_REQUEST", "invalid verify request")
		return
	}
	var signed []byte
	if req.SignedDocument != "" {
		decoded, err := base64.StdEncoding.DecodeString(req.SignedDocument)
		if err != nil {
			writeErrorCode(c, http.StatusBadRequest, "BAD_REQUEST", "signed_document must be base64")
			return
		}
		signed = decoded
	}

	result, err := s.verify.Execute(c.Request.Context(), usecase.VerifySignatureRequest{
		SignedDocument: signed,
		DocumentType:   req.DocumentType,
		DocumentID:     req.DocumentID,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	resp := verifyResponse{
		Verdict:   string(result.Verdict),
		Reason:    string(result.Reason),
		Detail:    result.Detail,
		CheckedAt: result.CheckedAt,
	}
	if result.Certificate != nil {
		doc := certificateDocFrom(*result.Certificate)
		resp.Certificate = &doc
	}
	c.JSON(http.StatusOK, resp)
}

type certificateDoc struct {
	ID           string     `json:"id"`
	Issuer       string     `json:"issuer"`
	Subject      string     `json:"subject"`
	SerialNumber string     `json:"serial_number"`
	NotBefore    time.Time  `json:"not_before"`
	NotAfter     time.Time  `json:"not_after"`
	Active       bool       `json:"active"`
	RevokedAt    *time.Time `json:"revoked_at,omitempty"`
}

func certificateDocFrom(cert domain.Certificate) certificateDoc {
	return certificateDoc{
		ID:           cert.ID,
		Issuer:       cert.Issuer,
		Subject:      cert.Subject,
		SerialNumber: cert.SerialNumber,
		NotBefore:    cert.NotBefore,
		NotAfter:     cert.NotAfter,
		Active:       cert.Active,
		RevokedAt:    cert.RevokedAt,
	}
}

type signedDocumentDoc struct {
	ID            string    `json:"id"`
	DocumentType  string    `json:"document_type"`
	DocumentID    string    `json:"document_id"`
	CertificateID string    `json:"certificate_id"`
	Algorithm     string    `json:"algorithm"`
	SignatureHash string    `json:"signature_hash"`
	SignedAt      time.Time `json:"signed_at"`
}

func signedDocumentDocFrom(rec domain.SignedDocument) signedDocumentDoc {
	return signedDocumentDoc{
		ID:            rec.ID,
		DocumentType:  rec.DocumentType,
		DocumentID:    rec.DocumentID,
		CertificateID: rec.CertificateID,
		Algorithm:     rec.Algorithm,
		SignatureHash: rec.SignatureHash,
		SignedAt:      rec.SignedAt,
	}
}
