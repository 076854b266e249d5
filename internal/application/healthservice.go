package application

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ericfisherdev/passpanel/internal/domain/port/driven"
)

const healthCheckTimeout = 2 * time.Second

// ComponentHealth is the probe result for one backing service.
type ComponentHealth struct {
	Name    string
	Healthy bool
}

// HealthReport aggregates component probes. Healthy is true only when every
// component answered.
type HealthReport struct {
	Healthy    bool
	Components []ComponentHealth
}

type namedPinger struct {
	name   string
	pinger driven.Pinger
}

// HealthService probes the backing services (database, session store) that
// must be reachable for the application to serve requests. It depends only
// on port interfaces.
type HealthService struct {
	components []namedPinger
	logger     *slog.Logger
}

// NewHealthService creates a HealthService with no registered components.
func NewHealthService() *HealthService {
	return &HealthService{logger: slog.Default()}
}

// Register adds a component to probe. Components are reported in
// registration order.
func (s *HealthService) Register(name string, p driven.Pinger) {
	s.components = append(s.components, namedPinger{name: name, pinger: p})
}

// Check probes every component concurrently, each bounded by a short timeout.
// Failures are logged; the report carries only up/down per component.
func (s *HealthService) Check(ctx context.Context) HealthReport {
	results := make([]ComponentHealth, len(s.components))

	var wg sync.WaitGroup
	for i, c := range s.components {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pingCtx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
			defer cancel()

			err := c.pinger.Ping(pingCtx)
			if err != nil {
				s.logger.Warn("health probe failed", "component", c.name, "error", err)
			}
			results[i] = ComponentHealth{Name: c.name, Healthy: err == nil}
		}()
	}
	wg.Wait()

	report := HealthReport{Healthy: true, Components: results}
	for _, r := range results {
		if !r.Healthy {
			report.Healthy = false
		}
	}
	return report
}
