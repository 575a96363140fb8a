// Package server wires the REST API: routing, auth middleware, handlers and
// the audit trail around the domain stores.
package server

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"securenight/backend/snd/internal/audit"
	"securenight/backend/snd/internal/auth/jwt"
	"securenight/backend/snd/internal/config"
	"securenight/backend/snd/internal/devices"
	"securenight/backend/snd/internal/files"
	"securenight/backend/snd/internal/partitions"
	"securenight/backend/snd/internal/ratelimit"
	"securenight/backend/snd/internal/users"
)

type Server struct {
	cfg    config.Config
	logger zerolog.Logger

	users      *users.Store
	devices    *devices.Store
	partitions *partitions.Store
	files      *files.Store
	audit      *audit.Store
	tokens     *jwt.Issuer
	limiter    *ratelimit.Store
}

type Deps struct {
	Users      *users.Store
	Devices    *devices.Store
	Partitions *partitions.Store
	Files      *files.Store
	Audit      *audit.Store
	Limiter    *ratelimit.Store
}

func New(cfg config.Config, logger zerolog.Logger, deps Deps) *Server {
	return &Server{
		cfg:        cfg,
		logger:     logger.With().Str("component", "server").Logger(),
		users:      deps.Users,
		devices:    deps.Devices,
		partitions: deps.Partitions,
		files:      deps.Files,
		audit:      deps.Audit,
		tokens:     jwt.NewIssuer(cfg.JWTSecret),
		limiter:    deps.Limiter,
	}
}

// pageParams reads page/per_page query values with sane bounds.
func pageParams(r *http.Request, defaultPerPage int) (page, perPage int) {
	page = 1
	if v, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && v > 0 {
		page = v
	}
	perPage = defaultPerPage
	if v, err := strconv.Atoi(r.URL.Query().Get("per_page")); err == nil && v > 0 && v <= 100 {
		perPage = v
	}
	return page, perPage
}

// paginate slices items for the requested page and writes the standard
// envelope {<key>: [...], total, page, per_page, pages}.
func paginate[T any](w http.ResponseWriter, key string, items []T, page, perPage int) {
	total := len(items)
	pages := (total + perPage - 1) / perPage
	if pages == 0 {
		pages = 1
	}
	start := (page - 1) * perPage
	if start > total {
		start = total
	}
	end := start + perPage
	if end > total {
		end = total
	}
	pageItems := items[start:end]
	if pageItems == nil {
		pageItems = []T{}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		key:        pageItems,
		"total":    total,
		"page":     page,
		"per_page": perPage,
		"pages":    pages,
	})
}

// clientIP returns the remote address without the port. chi's RealIP
// middleware has already folded in X-Forwarded-For/X-Real-IP.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// record writes an audit entry attributed to the request's user.
func (s *Server) record(r *http.Request, entryType, message, status, details string) {
	e := audit.Entry{
		Type:    entryType,
		Message: message,
		Status:  status,
		Details: details,
		Source:  "api",
		IP:      clientIP(r),
	}
	if u, ok := userFrom(r.Context()); ok {
		e.UserID = u.ID
		e.Username = u.Username
	}
	s.audit.Save(r.Context(), e)
}
