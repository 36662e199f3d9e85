// Package health aggregates component checks into one report.
package health

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates a model provider is failing; stored data is still reachable.
	Degraded Status = "degraded"
	// Unhealthy indicates the database is failing.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Component names.
const (
	Database   = "database"
	Embedding  = "embedding"
	Extraction = "extraction"
)

// DefaultCheckTimeout bounds each component check.
const DefaultCheckTimeout = 3 * time.Second

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

type namedCheck struct {
	name  string
	check ProviderChecker
}

// Service coordinates health checks.
type Service struct {
	db        DBPinger
	providers []namedCheck
	timeout   time.Duration
}

// New creates a Service with the database check.
func New(db DBPinger) *Service {
	return &Service{db: db, timeout: DefaultCheckTimeout}
}

// WithProvider adds a provider check. A nil checker is ignored.
func (s *Service) WithProvider(name string, c ProviderChecker) *Service {
	if c != nil {
		s.providers = append(s.providers, namedCheck{name: name, check: c})
	}
	return s
}

// WithTimeout overrides the per-check timeout.
func (s *Service) WithTimeout(d time.Duration) *Service {
	if d > 0 {
		s.timeout = d
	}
	return s
}

// Names returns the registered component names, sorted.
func (s *Service) Names() []string {
	names := []string{Database}
	for _, p := range s.providers {
		names = append(names, p.name)
	}
	sort.Strings(names)
	return names
}

// Check runs all component checks concurrently.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult, len(s.providers)+1)
	var mu sync.Mutex
	var wg sync.WaitGroup

	run := func(name string, fn func(context.Context) error) {
		defer wg.Done()
		cctx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()

		res := CheckOK
		if err := fn(cctx); err != nil {
			res = CheckError
		}
		mu.Lock()
		checks[name] = res
		mu.Unlock()
	}

	wg.Add(1 + len(s.providers))
	go run(Database, s.db.Ping)
	for _, p := range s.providers {
		go run(p.name, p.check.HealthCheck)
	}
	wg.Wait()

	status := Healthy
	for name, v := range checks {
		if v != CheckError {
			continue
		}
		if name == Database {
			status = Unhealthy
			break
		}
		status = Degraded
	}

	return Report{Status: status, Checks: checks}
}
