// Package http exposes the signing core over gin. Unlock, lock, listing and
// signing require the authenticated user forwarded by the gateway; verification
// is public and rate limited, and never exposes unlock or reveal.
package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"medsign/internal/domain"
	"medsign/internal/infra/sessionstore"
	"medsign/internal/usecase"
)

// userHeader carries the authenticated user id set by the fronting gateway.
// Authentication itself is an external collaborator.
const userHeader = "X-User-ID"

type Server struct {
	sign         *usecase.SignDocument
	verify       *usecase.VerifySignature
	sessions     sessionstore.Store
	certificates usecase.CertificateRegistry

	rateLimiter       domain.RateLimiter
	rateLimitRequests int
	rateLimitWindow   time.Duration
}

type ServerConfig struct {
	Sign         *usecase.SignDocument
	Verify       *usecase.VerifySignature
	Sessions     sessionstore.Store
	Certificates usecase.CertificateRegistry

	RateLimiter       domain.RateLimiter
	RateLimitRequests int
	RateLimitWindow   time.Duration
}

func NewServer(cfg ServerConfig) *Server {
	return &Server{
		sign:              cfg.Sign,
		verify:            cfg.Verify,
		sessions:          cfg.Sessions,
		certificates:      cfg.Certificates,
		rateLimiter:       cfg.RateLimiter,
		rateLimitRequests: cfg.RateLimitRequests,
		rateLimitWindow:   cfg.RateLimitWindow,
	}
}

func (s *Server) Router() *gin.Engine {
	router := gin.Default()

	v1 := router.Group("/v1")
	v1.POST("/verify", s.handleVerify)

	authed := v1.Group("")
	authed.Use(requireUser())
	authed.GET("/certificates", s.handleListCertificates)
	authed.POST("/certificates/:id/unlock", s.handleUnlock)
	authed.POST("/certificates/:id/lock", s.handleLock)
	authed.POST("/certificates/:id/sign", s.handleSign)

	return router
}

func requireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader(userHeader) == "" {
			writeErrorCode(c, http.StatusUnauthorized, "UNAUTHENTICATED", "missing authenticated user")
			c.Abort()
			return
		}
		c.Next()
	}
}

func currentUser(c *gin.Context) string {
	return c.GetHeader(userHeader)
}
