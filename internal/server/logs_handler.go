package server

import (
	"fmt"
	"net/http"
	"time"

	"securenight/backend/snd/internal/audit"
	"securenight/backend/snd/pkg/httpx"
)

// handleLogsList serves the audit trail with optional type/status/date
// filters. Dates are RFC3339 or plain YYYY-MM-DD.
func (s *Server) handleLogsList(w http.ResponseWriter, r *http.Request) {
	page, perPage := pageParams(r, 50)
	f := audit.Filter{
		Type:    r.URL.Query().Get("type"),
		Status:  r.URL.Query().Get("status"),
		Page:    page,
		PerPage: perPage,
	}
	var err error
	if f.From, err = parseDate(r.URL.Query().Get("from"), false); err != nil {
		httpx.WriteTypedError(w, http.StatusBadRequest, "validation.failed", "invalid from date", 0)
		return
	}
	if f.To, err = parseDate(r.URL.Query().Get("to"), true); err != nil {
		httpx.WriteTypedError(w, http.StatusBadRequest, "validation.failed", "invalid to date", 0)
		return
	}

	entries, total, err := s.audit.Search(r.Context(), f)
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "could not query logs")
		return
	}
	if entries == nil {
		entries = []audit.Entry{}
	}
	pages := (int(total) + perPage - 1) / perPage
	if pages == 0 {
		pages = 1
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"logs":     entries,
		"total":    total,
		"page":     page,
		"per_page": perPage,
		"pages":    pages,
	})
}

// parseDate accepts RFC3339 or YYYY-MM-DD; endOfDay pushes a bare date to
// 23:59:59 so "to" filters are inclusive.
func parseDate(v string, endOfDay bool) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return time.Time{}, err
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Second)
	}
	return t, nil
}

// handleLogsClear purges entries older than the configured retention.
func (s *Server) handleLogsClear(w http.ResponseWriter, r *http.Request) {
	cutoff := time.Now().UTC().AddDate(0, 0, -s.cfg.LogRetentionDays)
	n, err := s.audit.Purge(r.Context(), cutoff)
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "could not clear logs")
		return
	}
	s.record(r, audit.TypeSystem, fmt.Sprintf("audit log cleared (%d entries)", n), audit.StatusWarning, "")
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"removed": n})
}

func (s *Server) handleLogsStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.audit.CollectStats(r.Context())
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "could not compute log stats")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, st)
}
