package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"medsign/internal/config"
	"medsign/internal/domain"
	"medsign/internal/infra/container"
	"medsign/internal/infra/db"
	"medsign/internal/infra/envelope"
	httpinfra "medsign/internal/infra/http"
	"medsign/internal/infra/keymat"
	"medsign/internal/infra/lock"
	"medsign/internal/infra/policyopa"
	"medsign/internal/infra/ratelimit"
	"medsign/internal/infra/sessionstore"
	"medsign/internal/infra/vaultclient"
	"medsign/internal/usecase"
)

func runServe(args []string) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	if err := fs.Parse(args); err != nil {
		return 1
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		return 1
	}
	if cfg.DatabaseDSN == "" {
		fmt.Fprintln(os.Stderr, "MEDSIGN_DATABASE_DSN is required")
		return 1
	}

	gormDB, err := gorm.Open(postgres.Open(cfg.DatabaseDSN), &gorm.Config{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "open database: %v\n", err)
		return 1
	}
	if err := gormDB.AutoMigrate(&db.CertificateModel{}, &db.SignedDocumentModel{}); err != nil {
		fmt.Fprintf(os.Stderr, "migrate database: %v\n", err)
		return 1
	}

	secret, err := sessionSecret(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "session secret: %v\n", err)
		return 1
	}
	sessionCfg := sessionstore.Config{
		ServerSecret:      secret,
		DefaultTTL:        cfg.SessionDefaultTTL,
		MaxTTL:            cfg.SessionMaxTTL,
		InactivityTimeout: cfg.SessionInactivityTimeout,
	}

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
	}

	var sessions sessionstore.Store
	var limiter domain.RateLimiter
	if redisClient != nil {
		if sessions, err = sessionstore.NewRedisStore(redisClient, sessionCfg, time.Now); err != nil {
			fmt.Fprintf(os.Stderr, "session store: %v\n", err)
			return 1
		}
		if limiter, err = ratelimit.NewRedisLimiter(redisClient, time.Now); err != nil {
			fmt.Fprintf(os.Stderr, "rate limiter: %v\n", err)
			return 1
		}
	} else {
		if sessions, err = sessionstore.NewMemoryStore(sessionCfg, time.Now); err != nil {
			fmt.Fprintf(os.Stderr, "session store: %v\n", err)
			return 1
		}
		limiter = ratelimit.NewMemoryLimiter(ratelimit.MemoryLimiterConfig{})
	}

	var policy usecase.PolicyEngine
	if cfg.PolicyBundlePath != "" {
		engine, err := policyopa.NewEngineFromBundlePath(context.Background(), cfg.PolicyBundlePath, cfg.PolicyBundleID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "load policy bundle: %v\n", err)
			return 1
		}
		policy = engine
	}

	certificates := db.NewCertificateRepository(gormDB)
	signatures := db.NewSignedDocumentRepository(gormDB)
	containers := container.NewService(cfg.PlaceholderCapacity)
	envelopes := envelope.NewService()

	server := httpinfra.NewServer(httpinfra.ServerConfig{
		Sign: &usecase.SignDocument{
			Certificates: certificates,
			Signatures:   signatures,
			Sessions:     sessions,
			Keys:         keymat.NewLoader(),
			Containers:   containers,
			Envelopes:    envelopes,
			Policy:       policy,
			Locks:        lock.NewMemoryLocker[string](),
		},
		Verify: &usecase.VerifySignature{
			Certificates: certificates,
			Signatures:   signatures,
			Containers:   containers,
			Envelopes:    envelopes,
		},
		Sessions:          sessions,
		Certificates:      certificates,
		RateLimiter:       limiter,
		RateLimitRequests: cfg.VerifyRateLimit,
		RateLimitWindow:   cfg.VerifyRateWindow,
	})

	if err := server.Router().Run(cfg.ListenAddr); err != nil {
		fmt.Fprintf(os.Stderr, "serve: %v\n", err)
		return 1
	}
	return 0
}

// sessionSecret prefers the environment secret and falls back to Vault so
// multi-instance deployments can share one sealing key.
func sessionSecret(cfg config.Config) ([]byte, error) {
	secret, err := cfg.SessionSecret()
	if err != nil {
		return nil, err
	}
	if secret != nil {
		return secret, nil
	}
	if cfg.VaultAddr == "" {
		return nil, fmt.Errorf("set MEDSIGN_SESSION_SECRET_BASE64 or MEDSIGN_VAULT_ADDR")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return vaultclient.New(cfg.VaultAddr, cfg.VaultToken).ReadSessionSecret(ctx, cfg.VaultSecretPath)
}
