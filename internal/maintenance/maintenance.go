// Package maintenance schedules the daily housekeeping jobs.
package maintenance

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"securenight/backend/snd/internal/audit"
)

// Scheduler runs the daily audit retention purge.
type Scheduler struct {
	logger        zerolog.Logger
	cron          *cron.Cron
	audit         *audit.Store
	retentionDays int
}

func New(logger zerolog.Logger, auditStore *audit.Store, retentionDays int) *Scheduler {
	return &Scheduler{
		logger:        logger.With().Str("component", "maintenance").Logger(),
		cron:          cron.New(),
		audit:         auditStore,
		retentionDays: retentionDays,
	}
}

// Start registers the jobs and launches the scheduler. The purge runs once
// immediately so a long-stopped daemon catches up on boot.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc("@daily", s.purgeAudit); err != nil {
		return err
	}
	go s.purgeAudit()
	s.cron.Start()
	return nil
}

func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) purgeAudit() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	cutoff := time.Now().UTC().AddDate(0, 0, -s.retentionDays)
	n, err := s.audit.Purge(ctx, cutoff)
	if err != nil {
		s.logger.Error().Err(err).Msg("audit retention purge failed")
		return
	}
	s.logger.Debug().Int64("removed", n).Int("retention_days", s.retentionDays).Msg("audit retention purge")
}
