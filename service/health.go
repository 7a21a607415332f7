package service

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/outofforest/logger"
	"github.com/outofforest/parallel"
)

// DefaultHealthCheckInterval is used when health check does not define its interval.
const DefaultHealthCheckInterval = 30 * time.Second

// ErrDegraded is returned, possibly wrapped, by health checks reporting YELLOW status.
var ErrDegraded = errors.New("degraded")

// Status is the result status of health check.
type Status int

// Health check statuses.
const (
	Green Status = iota
	Yellow
	Red
)

func (s Status) String() string {
	switch s {
	case Green:
		return "GREEN"
	case Yellow:
		return "YELLOW"
	case Red:
		return "RED"
	default:
		return "UNKNOWN"
	}
}

// Impact describes how important the health check is for the application.
type Impact int

// Health check impacts.
const (
	High Impact = iota
	Medium
	Low
)

// HealthCheck is run periodically while service is running.
// Run returning nil means GREEN, ErrDegraded means YELLOW and any other error means RED.
type HealthCheck struct {
	Name     string
	Impact   Impact
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// HealthResult is the result of health check run.
type HealthResult struct {
	Name      string
	Impact    Impact
	Status    Status
	Timestamp time.Time
	Duration  time.Duration
	Err       error
}

// Health returns the latest results of health checks, sorted by name.
func (s *Service) Health() []HealthResult {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]HealthResult, 0, len(s.results))
	for _, r := range s.results {
		results = append(results, r)
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].Name < results[j].Name
	})
	return results
}

// Healthy returns true if all the latest health check results are GREEN.
func (s *Service) Healthy() bool {
	for _, r := range s.Health() {
		if r.Status != Green {
			return false
		}
	}
	return true
}

func (s *Service) startHealthChecks(ctx context.Context) {
	if len(s.checks) == 0 {
		return
	}

	ctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.stopHealth = cancel
	s.healthDone = make(chan struct{})

	go func() {
		defer close(s.healthDone)

		_ = parallel.Run(ctx, func(ctx context.Context, spawn parallel.SpawnFn) error {
			for _, hc := range s.checks {
				spawn("health:"+hc.Name, parallel.Continue, func(ctx context.Context) error {
					return s.runHealthCheck(ctx, hc)
				})
			}
			return nil
		})
	}()
}

func (s *Service) stopHealthChecks() {
	if s.stopHealth == nil {
		return
	}
	s.stopHealth()
	<-s.healthDone
	s.stopHealth = nil
	s.healthDone = nil
}

func (s *Service) runHealthCheck(ctx context.Context, hc HealthCheck) error {
	interval := hc.Interval
	if interval <= 0 {
		interval = DefaultHealthCheckInterval
	}
	log := logger.Get(ctx).With(zap.String("service", s.name), zap.String("healthCheck", hc.Name))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		start := time.Now()
		err := hc.Run(ctx)
		if ctx.Err() != nil {
			return errors.WithStack(ctx.Err())
		}

		result := HealthResult{
			Name:      hc.Name,
			Impact:    hc.Impact,
			Status:    Green,
			Timestamp: start,
			Duration:  time.Since(start),
			Err:       err,
		}
		switch {
		case err == nil:
		case errors.Is(err, ErrDegraded):
			result.Status = Yellow
		default:
			result.Status = Red
		}
		if result.Status != Green {
			log.Warn("Health check failed", zap.Stringer("status", result.Status), zap.Error(err))
		}

		s.mu.Lock()
		s.results[hc.Name] = result
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			return errors.WithStack(ctx.Err())
		case <-ticker.C:
		}
	}
}
