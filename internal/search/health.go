package search

import (
	"context"
	"errors"
	"strings"
	"time"

	"luxestore/searchservice/internal/domain"
	"luxestore/searchservice/internal/metrics"
)

type upstreamHealth struct {
	consecutiveFailures int
	lastError           string
	lastSuccessAt       time.Time
	lastFailureAt       time.Time
	lastLatency         time.Duration
	lastTimeout         bool
	totalRequests       int64
	totalFailures       int64
	timeoutCount        int64
}

func (s *Service) recordUpstreamResult(err error, latency time.Duration, now time.Time) {
	s.healthMu.Lock()
	defer s.healthMu.Unlock()

	state := &s.health
	state.totalRequests++
	if latency > 0 {
		state.lastLatency = latency
		metrics.UpstreamRequestDuration.Observe(latency.Seconds())
	}
	state.lastTimeout = isTimeoutLikeError(err)
	if state.lastTimeout {
		state.timeoutCount++
	}

	if err == nil {
		state.consecutiveFailures = 0
		state.lastError = ""
		state.lastSuccessAt = now
		metrics.UpstreamRequestsTotal.WithLabelValues("ok").Inc()
		return
	}

	state.consecutiveFailures++
	state.totalFailures++
	state.lastFailureAt = now
	state.lastError = err.Error()

	status := "error"
	if state.lastTimeout {
		status = "timeout"
	}
	metrics.UpstreamRequestsTotal.WithLabelValues(status).Inc()
}

func isTimeoutLikeError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	value := strings.ToLower(err.Error())
	return strings.Contains(value, "timeout") || strings.Contains(value, "deadline exceeded")
}

func (s *Service) upstreamDiagnostics() domain.UpstreamHealth {
	s.healthMu.Lock()
	defer s.healthMu.Unlock()

	state := s.health
	item := domain.UpstreamHealth{
		ConsecutiveFailures: state.consecutiveFailures,
		LastError:           state.lastError,
		LastLatencyMS:       state.lastLatency.Milliseconds(),
		LastTimeout:         state.lastTimeout,
		TotalRequests:       state.totalRequests,
		TotalFailures:       state.totalFailures,
		TimeoutCount:        state.timeoutCount,
	}
	if !state.lastSuccessAt.IsZero() {
		lastSuccessAt := state.lastSuccessAt
		item.LastSuccessAt = &lastSuccessAt
	}
	if !state.lastFailureAt.IsZero() {
		lastFailureAt := state.lastFailureAt
		item.LastFailureAt = &lastFailureAt
	}
	return item
}

// Status describes the installed catalog without triggering a refresh.
func (s *Service) Status(_ context.Context) domain.CatalogStatus {
	return s.statusOf(s.current.Load(), s.now())
}

// Ready reports whether a real catalog, upstream or stored, is installed.
func (s *Service) Ready() bool {
	return s.current.Load() != nil
}

func (s *Service) statusOf(catalog *Catalog, now time.Time) domain.CatalogStatus {
	status := domain.CatalogStatus{
		Origin:   domain.CatalogOriginNone,
		Upstream: s.upstreamDiagnostics(),
	}
	if catalog == nil {
		return status
	}
	fetchedAt := catalog.fetchedAt
	status.Total = catalog.Len()
	status.FetchedAt = &fetchedAt
	status.AgeMS = now.Sub(fetchedAt).Milliseconds()
	status.Fresh = s.isFresh(catalog, now)
	status.Origin = catalog.origin
	status.IndexTokens = len(catalog.index)
	status.CategoryCounts = catalog.counts
	return status
}
