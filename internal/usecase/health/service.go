package health

import "context"

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates a non-fatal partial failure (e.g. the small
	// embedding model is down and on-the-fly scoring is disabled).
	Degraded Status = "degraded"
	// Unhealthy indicates the serving path cannot work: store or large
	// model unavailable.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
	// CheckDegraded indicates a component running in degraded mode.
	CheckDegraded CheckResult = "degraded"
)

// Report aggregates health check results. Ready is the readiness bit:
// it requires the store and the large embedding model, nothing else.
type Report struct {
	Status Status
	Ready  bool
	Checks map[string]CheckResult
}

// Service coordinates health checks.
type Service struct {
	store     StorePinger
	embedding EmbeddingChecker
}

// New creates a Service.
func New(store StorePinger, embedding EmbeddingChecker) *Service {
	return &Service{store: store, embedding: embedding}
}

// Check runs health checks against all components. Small-model absence
// is reported but never fails readiness.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)
	ready := true

	if err := s.store.Ping(ctx); err != nil {
		checks["store"] = CheckError
		ready = false
	} else {
		checks["store"] = CheckOK
	}

	if err := s.embedding.HealthCheck(ctx); err != nil {
		checks["embedding_large"] = CheckError
		ready = false
	} else {
		checks["embedding_large"] = CheckOK
	}

	if s.embedding.SmallAvailable() {
		checks["embedding_small"] = CheckOK
	} else {
		checks["embedding_small"] = CheckDegraded
	}

	status := Healthy
	switch {
	case !ready:
		status = Unhealthy
	case checks["embedding_small"] == CheckDegraded:
		status = Degraded
	}

	return Report{Status: status, Ready: ready, Checks: checks}
}
