package app

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/blueocean-labs/explorer-api/internal/cache"
	"github.com/blueocean-labs/explorer-api/internal/ratelimit"
	"github.com/blueocean-labs/explorer-api/pkg/logger"
)

// maintenanceSchedule runs the sweep every minute.
const maintenanceSchedule = "@every 1m"

// MaintenanceService periodically evicts expired cache entries and stale
// rate-limit windows from the in-process stores.
type MaintenanceService struct {
	cron     *cron.Cron
	mirror   *cache.Memory
	limiters []*ratelimit.MemoryStore
	log      *logger.Logger
}

// NewMaintenanceService wires the scheduler.
func NewMaintenanceService(mirror *cache.Memory, limiters []*ratelimit.MemoryStore, log *logger.Logger) *MaintenanceService {
	return &MaintenanceService{
		cron:     cron.New(),
		mirror:   mirror,
		limiters: limiters,
		log:      log,
	}
}

// Name implements system.Service.
func (s *MaintenanceService) Name() string { return "maintenance" }

// Start implements system.Service.
func (s *MaintenanceService) Start(context.Context) error {
	if _, err := s.cron.AddFunc(maintenanceSchedule, s.sweep); err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

// Stop implements system.Service. Waits for a running sweep to finish.
func (s *MaintenanceService) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *MaintenanceService) sweep() {
	now := time.Now()

	swept := 0
	if s.mirror != nil {
		swept = s.mirror.Sweep(now)
	}
	purged := 0
	for _, limiter := range s.limiters {
		purged += limiter.Purge(now)
	}

	if swept > 0 || purged > 0 {
		s.log.WithFields(map[string]interface{}{
			"cache_entries":      swept,
			"rate_limit_windows": purged,
		}).Debug("maintenance sweep completed")
	}
}
