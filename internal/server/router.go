package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"securenight/backend/snd/internal/config"
	"securenight/backend/snd/pkg/httpx"
)

func Logger(cfg config.Config) *zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339
	logger := log.Logger.Level(cfg.LogLevel).With().Timestamp().Logger()
	return &logger
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger())
	r.Use(metricsMiddleware)

	c := cors.New(cors.Options{
		AllowedOrigins:   s.cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	})
	r.Use(c.Handler)

	r.Get("/api/health", func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"ok": true, "version": "0.1.0"})
	})
	r.Method(http.MethodGet, "/metrics", metricsHandler())

	// Public auth endpoints
	r.Post("/api/auth/login", s.handleLogin)
	r.Post("/api/auth/register", s.handleRegister)
	r.Post("/api/auth/refresh", s.handleRefresh)
	r.Post("/api/auth/reset-password-request", s.handleResetPasswordRequest)
	r.Post("/api/auth/reset-password", s.handleResetPassword)

	// Authenticated
	r.Group(func(pr chi.Router) {
		pr.Use(s.withUser)
		pr.Use(s.requireAuth)

		pr.Post("/api/auth/logout", s.handleLogout)
		pr.Get("/api/auth/me", s.handleMe)
		pr.Post("/api/auth/update-fingerprint", s.handleFingerprintUpdate)

		pr.Get("/api/devices/", s.handleDevicesList)
		pr.Get("/api/devices/{id}", s.handleDeviceGet)
		pr.Get("/api/partitions/", s.handlePartitionsList)
		pr.Get("/api/partitions/{id}", s.handlePartitionGet)

		pr.Get("/api/files/", s.handleFilesList)
		pr.Post("/api/files/upload", s.handleFileUpload)
		pr.Post("/api/files/", s.handleFileUpload) // legacy alias
		pr.Get("/api/files/{id}", s.handleFileGet)
		pr.Put("/api/files/{id}", s.handleFileRename)
		pr.Delete("/api/files/{id}", s.handleFileDelete)
		pr.Get("/api/files/{id}/preview", s.handleFilePreview)
		pr.Get("/api/files/{id}/download", s.handleFileDownload)

		pr.Get("/api/users/{id}", s.handleUserGet)
		pr.Post("/api/users/{id}/fingerprints", s.handleFingerprintRegister)

		pr.Get("/api/system/stats", s.handleSystemStats)
	})

	// Admin only
	r.Group(func(ar chi.Router) {
		ar.Use(s.withUser)
		ar.Use(s.requireAdmin)

		ar.Post("/api/devices/", s.handleDeviceCreate)
		ar.Put("/api/devices/{id}", s.handleDeviceUpdate)
		ar.Delete("/api/devices/{id}", s.handleDeviceDelete)

		ar.Post("/api/partitions/", s.handlePartitionCreate)
		ar.Put("/api/partitions/{id}", s.handlePartitionUpdate)
		ar.Delete("/api/partitions/{id}", s.handlePartitionDelete)

		ar.Get("/api/users/", s.handleUsersList)
		ar.Post("/api/users/", s.handleUserCreate)
		ar.Put("/api/users/{id}", s.handleUserUpdate)
		ar.Delete("/api/users/{id}", s.handleUserDelete)

		ar.Get("/api/logs/", s.handleLogsList)
		ar.Post("/api/logs/clear", s.handleLogsClear)
		ar.Get("/api/logs/stats", s.handleLogsStats)
	})

	return r
}
