package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"medsign/internal/domain"
)

type errorDoc struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeError maps core errors to statuses so clients can tell "unlock your
// certificate" (423) from "this certificate cannot be used" (403/409) from
// "internal error, retry" (500).
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrLocked):
		writeErrorCode(c, http.StatusLocked, "SESSION_LOCKED", "certificate session is locked; unlock with your passphrase")
	case errors.Is(err, domain.ErrInvalidPassphrase):
		writeErrorCode(c, http.StatusBadRequest, "INVALID_PASSPHRASE", "the supplied passphrase is incorrect")
	case errors.Is(err, domain.ErrCorruptContainer):
		writeErrorCode(c, http.StatusUnprocessableEntity, "CORRUPT_CONTAINER", "the key container could not be read")
	case errors.Is(err, domain.ErrCertificateUnusable):
		writeErrorCode(c, http.StatusConflict, "CERTIFICATE_UNUSABLE", err.Error())
	case errors.Is(err, domain.ErrCertificateMismatch):
		writeErrorCode(c, http.StatusConflict, "CERTIFICATE_MISMATCH", err.Error())
	case errors.Is(err, domain.ErrPolicyDenied):
		writeErrorCode(c, http.StatusForbidden, "POLICY_DENIED", err.Error())
	case errors.Is(err, domain.ErrPlaceholderTooSmall):
		writeErrorCode(c, http.StatusInternalServerError, "PLACEHOLDER_TOO_SMALL", "signature envelope exceeds the reserved capacity")
	case errors.Is(err, domain.ErrNotFound):
		writeErrorCode(c, http.StatusNotFound, "NOT_FOUND", "record not found")
	default:
		writeErrorCode(c, http.StatusInternalServerError, "INTERNAL", "internal error")
	}
}

func writeErrorCode(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{"error": errorDoc{Code: code, Message: message}})
}
