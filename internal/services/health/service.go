// Package health aggregates dependency probes for the health endpoints.
package health

import (
	"context"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/mem"

	"github.com/blueocean-labs/explorer-api/pkg/logger"
)

// checkTimeout bounds every dependency probe so a hung dependency cannot
// stall the health endpoint.
const checkTimeout = 5 * time.Second

// Status is the aggregate or per-check state.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// Checker probes one dependency.
type Checker func(ctx context.Context) error

// Check describes one registered dependency probe. Critical checks drive the
// aggregate to unhealthy on failure; non-critical ones only degrade it.
type Check struct {
	Name     string
	Critical bool
	Probe    Checker
}

// CheckResult is the outcome of one probe.
type CheckResult struct {
	Status    Status `json:"status"`
	Error     string `json:"error,omitempty"`
	LatencyMS int64  `json:"latency_ms"`
}

// Report is the full health response body.
type Report struct {
	Status    Status                 `json:"status"`
	Checks    map[string]CheckResult `json:"checks"`
	Memory    *MemoryInfo            `json:"memory,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// MemoryInfo summarizes host memory pressure.
type MemoryInfo struct {
	TotalMB     uint64  `json:"total_mb"`
	UsedMB      uint64  `json:"used_mb"`
	UsedPercent float64 `json:"used_percent"`
}

// Service runs the registered probes.
type Service struct {
	checks []Check
	log    *logger.Logger
}

// NewService wires the health service.
func NewService(log *logger.Logger) *Service {
	return &Service{log: log}
}

// Register adds a dependency probe. Not safe to call after serving starts.
func (s *Service) Register(name string, critical bool, probe Checker) {
	s.checks = append(s.checks, Check{Name: name, Critical: critical, Probe: probe})
}

// Report runs all probes concurrently and aggregates their outcomes.
func (s *Service) Report(ctx context.Context) Report {
	results := make(map[string]CheckResult, len(s.checks))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, check := range s.checks {
		wg.Add(1)
		go func(c Check) {
			defer wg.Done()

			probeCtx, cancel := context.WithTimeout(ctx, checkTimeout)
			defer cancel()

			start := time.Now()
			err := c.Probe(probeCtx)
			result := CheckResult{Status: StatusHealthy, LatencyMS: time.Since(start).Milliseconds()}
			if err != nil {
				result.Status = StatusUnhealthy
				result.Error = err.Error()
				s.log.WithContext(ctx).WithError(err).WithField("check", c.Name).Warn("health check failed")
			}

			mu.Lock()
			results[c.Name] = result
			mu.Unlock()
		}(check)
	}
	wg.Wait()

	status := StatusHealthy
	for _, check := range s.checks {
		if results[check.Name].Status == StatusHealthy {
			continue
		}
		if check.Critical {
			status = StatusUnhealthy
			break
		}
		status = StatusDegraded
	}

	return Report{
		Status:    status,
		Checks:    results,
		Memory:    memoryInfo(),
		Timestamp: time.Now().UTC(),
	}
}

// Ready reports whether critical dependencies are all up.
func (s *Service) Ready(ctx context.Context) bool {
	report := s.Report(ctx)
	return report.Status != StatusUnhealthy
}

func memoryInfo() *MemoryInfo {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return nil
	}
	return &MemoryInfo{
		TotalMB:     vm.Total / (1 << 20),
		UsedMB:      vm.Used / (1 << 20),
		UsedPercent: vm.UsedPercent,
	}
}
