// Package audit records every state-changing API action in a SQLite log.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

// Entry types.
const (
	TypeAuth      = "auth"
	TypeUser      = "user"
	TypeDevice    = "device"
	TypePartition = "partition"
	TypeFile      = "file"
	TypeSystem    = "system"
)

// Entry statuses.
const (
	StatusSuccess = "success"
	StatusWarning = "warning"
	StatusError   = "error"
)

type Entry struct {
	ID        int64     `json:"id"`
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	UserID    string    `json:"user_id,omitempty"`
	Username  string    `json:"username,omitempty"`
	Details   string    `json:"details,omitempty"`
	Source    string    `json:"source,omitempty"`
	IP        string    `json:"ip,omitempty"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// Filter narrows Search results. Zero values mean "any".
type Filter struct {
	Type    string
	Status  string
	From    time.Time
	To      time.Time
	Page    int
	PerPage int
}

// Stats summarizes the log for the dashboard.
type Stats struct {
	Total        int64            `json:"total"`
	ByType       map[string]int64 `json:"by_type"`
	ByStatus     map[string]int64 `json:"by_status"`
	RecentErrors []Entry          `json:"recent_errors"`
}

type Store struct {
	logger zerolog.Logger
	db     *sql.DB
}

func New(logger zerolog.Logger, dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open audit db: %w", err)
	}
	pragmas := []string{
		"PRAGMA synchronous = NORMAL",
		"PRAGMA journal_mode = WAL",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set pragma: %w", err)
		}
	}
	s := &Store{
		logger: logger.With().Str("component", "audit").Logger(),
		db:     db,
	}
	if err := s.createTables(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) createTables() error {
	schemas := []string{
		`CREATE TABLE IF NOT EXISTS audit_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			type TEXT NOT NULL,
			message TEXT NOT NULL,
			user_id TEXT,
			username TEXT,
			details TEXT,
			source TEXT,
			ip TEXT,
			status TEXT NOT NULL,
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_created ON audit_log (created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_type_status ON audit_log (type, status)`,
	}
	for _, schema := range schemas {
		if _, err := s.db.Exec(schema); err != nil {
			return fmt.Errorf("create audit tables: %w", err)
		}
	}
	return nil
}

// Save inserts an entry. Failures are logged, not returned: an audit miss
// must never fail the request it describes.
func (s *Store) Save(ctx context.Context, e Entry) {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_log (type, message, user_id, username, details, source, ip, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Type, e.Message, e.UserID, e.Username, e.Details, e.Source, e.IP, e.Status, e.CreatedAt.Unix())
	if err != nil {
		s.logger.Error().Err(err).Str("type", e.Type).Msg("audit save failed")
	}
}

// Search returns matching entries newest first, plus the total match count
// before pagination.
func (s *Store) Search(ctx context.Context, f Filter) ([]Entry, int64, error) {
	var conds []string
	var args []any
	if f.Type != "" {
		conds = append(conds, "type = ?")
		args = append(args, f.Type)
	}
	if f.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, f.Status)
	}
	if !f.From.IsZero() {
		conds = append(conds, "created_at >= ?")
		args = append(args, f.From.Unix())
	}
	if !f.To.IsZero() {
		conds = append(conds, "created_at <= ?")
		args = append(args, f.To.Unix())
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM audit_log"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count audit entries: %w", err)
	}

	page := f.Page
	if page < 1 {
		page = 1
	}
	perPage := f.PerPage
	if perPage < 1 {
		perPage = 50
	}
	query := `SELECT id, type, message, user_id, username, details, source, ip, status, created_at
		FROM audit_log` + where + ` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	rows, err := s.db.QueryContext(ctx, query, append(args, perPage, (page-1)*perPage)...)
	if err != nil {
		return nil, 0, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var ts int64
		if err := rows.Scan(&e.ID, &e.Type, &e.Message, &e.UserID, &e.Username,
			&e.Details, &e.Source, &e.IP, &e.Status, &ts); err != nil {
			return nil, 0, fmt.Errorf("scan audit entry: %w", err)
		}
		e.CreatedAt = time.Unix(ts, 0).UTC()
		entries = append(entries, e)
	}
	return entries, total, rows.Err()
}

// CollectStats aggregates counts by type and status plus the five most
// recent errors.
func (s *Store) CollectStats(ctx context.Context) (Stats, error) {
	st := Stats{ByType: map[string]int64{}, ByStatus: map[string]int64{}}

	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM audit_log").Scan(&st.Total); err != nil {
		return Stats{}, fmt.Errorf("count audit entries: %w", err)
	}
	if err := s.countBy(ctx, "type", st.ByType); err != nil {
		return Stats{}, err
	}
	if err := s.countBy(ctx, "status", st.ByStatus); err != nil {
		return Stats{}, err
	}

	recent, _, err := s.Search(ctx, Filter{Status: StatusError, Page: 1, PerPage: 5})
	if err != nil {
		return Stats{}, err
	}
	st.RecentErrors = recent
	return st, nil
}

func (s *Store) countBy(ctx context.Context, column string, out map[string]int64) error {
	rows, err := s.db.QueryContext(ctx, "SELECT "+column+", COUNT(*) FROM audit_log GROUP BY "+column)
	if err != nil {
		return fmt.Errorf("group audit by %s: %w", column, err)
	}
	defer rows.Close()
	for rows.Next() {
		var key string
		var n int64
		if err := rows.Scan(&key, &n); err != nil {
			return err
		}
		out[key] = n
	}
	return rows.Err()
}

// Purge deletes entries older than cutoff and returns how many were removed.
func (s *Store) Purge(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM audit_log WHERE created_at < ?", cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("purge audit log: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		s.logger.Info().Int64("removed", n).Time("cutoff", cutoff).Msg("audit log purged")
	}
	return n, nil
}

func (s *Store) Close() error { return s.db.Close() }
