package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"securenight/backend/snd/internal/audit"
	"securenight/backend/snd/internal/auth/hash"
	"securenight/backend/snd/internal/config"
	"securenight/backend/snd/internal/devices"
	"securenight/backend/snd/internal/files"
	"securenight/backend/snd/internal/maintenance"
	"securenight/backend/snd/internal/partitions"
	"securenight/backend/snd/internal/ratelimit"
	"securenight/backend/snd/internal/server"
	"securenight/backend/snd/internal/users"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "snd: %v\n", err)
		os.Exit(1)
	}
	logger := *server.Logger(cfg)

	if cfg.JWTSecret == "" {
		// Generated secrets invalidate tokens across restarts; set
		// SND_JWT_SECRET for anything beyond a trial run.
		buf := make([]byte, 32)
		if _, err := rand.Read(buf); err != nil {
			logger.Fatal().Err(err).Msg("could not generate jwt secret")
		}
		cfg.JWTSecret = hex.EncodeToString(buf)
		logger.Warn().Msg("SND_JWT_SECRET not set; using an ephemeral secret")
	}

	if err := os.MkdirAll(cfg.DataDir, 0o750); err != nil {
		logger.Fatal().Err(err).Str("dir", cfg.DataDir).Msg("could not create data dir")
	}

	userStore, err := users.New(filepath.Join(cfg.DataDir, "users.json"))
	if err != nil {
		logger.Fatal().Err(err).Msg("users store")
	}
	deviceStore, err := devices.New(filepath.Join(cfg.DataDir, "devices.json"))
	if err != nil {
		logger.Fatal().Err(err).Msg("devices store")
	}
	partitionStore, err := partitions.New(filepath.Join(cfg.DataDir, "partitions.json"))
	if err != nil {
		logger.Fatal().Err(err).Msg("partitions store")
	}
	fileStore, err := files.New(filepath.Join(cfg.DataDir, "files.json"), cfg.UploadsDir)
	if err != nil {
		logger.Fatal().Err(err).Msg("files store")
	}
	auditStore, err := audit.New(logger, filepath.Join(cfg.DataDir, "audit.db"))
	if err != nil {
		logger.Fatal().Err(err).Msg("audit store")
	}
	defer func() { _ = auditStore.Close() }()

	seedUsers(logger, userStore)

	sched := maintenance.New(logger, auditStore, cfg.LogRetentionDays)
	if err := sched.Start(); err != nil {
		logger.Fatal().Err(err).Msg("maintenance scheduler")
	}
	defer sched.Stop()

	srv := server.New(cfg, logger, server.Deps{
		Users:      userStore,
		Devices:    deviceStore,
		Partitions: partitionStore,
		Files:      fileStore,
		Audit:      auditStore,
		Limiter:    ratelimit.New(filepath.Join(cfg.DataDir, "ratelimit.json")),
	})

	addr := fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().Msgf("snd listening on http://%s", addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server exited")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("shutdown")
	}
}

// seedUsers creates the initial admin and client accounts on an empty
// store. The generated passwords are printed once at warn level.
func seedUsers(logger zerolog.Logger, store *users.Store) {
	if store.Count() > 0 {
		return
	}
	for _, seed := range []struct {
		username, email, role string
	}{
		{"admin", "admin@securenight.local", users.RoleAdmin},
		{"client", "client@securenight.local", users.RoleClient},
	} {
		password, err := randomPassword()
		if err != nil {
			logger.Fatal().Err(err).Msg("seed password generation")
		}
		phc, err := hash.Password(password)
		if err != nil {
			logger.Fatal().Err(err).Msg("seed password hashing")
		}
		if _, err := store.Create(context.Background(), users.User{
			ID:           uuid.NewString(),
			Username:     seed.username,
			Email:        seed.email,
			PasswordHash: phc,
			Role:         seed.role,
			Active:       true,
		}); err != nil {
			logger.Fatal().Err(err).Str("user", seed.username).Msg("seed user")
		}
		logger.Warn().Str("user", seed.username).Str("password", password).Msg("seeded initial account")
	}
}

func randomPassword() (string, error) {
	buf := make([]byte, 12)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	// hex keeps it paste-safe; the policy applies to user-chosen passwords
	return "Sn1!" + hex.EncodeToString(buf), nil
}
