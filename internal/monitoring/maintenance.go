package monitoring

import (
	"database/sql"
	"time"

	"github.com/isdelr/msgboard-be/internal/ratelimit"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// Maintenance runs the recurring housekeeping jobs: evicting idle rate
// limiter buckets and compacting the sqlite WAL.
type Maintenance struct {
	cron    *cron.Cron
	db      *sql.DB
	limiter *ratelimit.Limiter
}

// NewMaintenance creates the maintenance scheduler.
func NewMaintenance(db *sql.DB, limiter *ratelimit.Limiter) *Maintenance {
	return &Maintenance{
		cron:    cron.New(),
		db:      db,
		limiter: limiter,
	}
}

// Start registers and begins the cron jobs.
func (m *Maintenance) Start() {
	log.Info().Msg("Starting maintenance scheduler...")
	m.cron.AddFunc("@hourly", m.evictLimiterBuckets)
	m.cron.AddFunc("@daily", m.checkpointDatabase)
	m.cron.Start()
}

// Stop halts the scheduler, waiting for a running job to finish.
func (m *Maintenance) Stop() {
	ctx := m.cron.Stop()
	<-ctx.Done()
	log.Info().Msg("Maintenance scheduler stopped.")
}

func (m *Maintenance) evictLimiterBuckets() {
	if m.limiter == nil {
		return
	}
	n := m.limiter.Evict(24 * time.Hour)
	if n > 0 {
		log.Info().Int("evicted", n).Msg("Evicted idle rate limiter buckets")
	}
}

func (m *Maintenance) checkpointDatabase() {
	if _, err := m.db.Exec("PRAGMA wal_checkpoint(TRUNCATE);"); err != nil {
		log.Error().Err(err).Msg("Maintenance: WAL checkpoint failed")
		return
	}
	log.Info().Msg("Maintenance: WAL checkpoint complete")
}
