package search

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"bingeworthy/searchservice/internal/domain"
	"bingeworthy/searchservice/internal/metrics"
)

const (
	upstreamFailureThreshold = 3
	upstreamBlockBase        = 2 * time.Minute
	upstreamBlockMax         = 15 * time.Minute

	// Per-upstream request budget. TMDB allows roughly 40 requests per
	// 10 seconds per key; this stays well under it even with the warmer
	// running.
	upstreamRequestsPerSecond = 8
	upstreamBurst             = 16
)

type upstreamHealth struct {
	consecutiveFailures int
	blockedUntil        time.Time
	lastError           string
	lastSuccessAt       time.Time
	lastFailureAt       time.Time
	lastLatency         time.Duration
	lastTimeout         bool
	totalRequests       int64
	totalFailures       int64
	timeoutCount        int64
}

func (s *Service) isUpstreamBlocked(upstreamName string, now time.Time) (bool, time.Time, string) {
	name := strings.ToLower(strings.TrimSpace(upstreamName))
	if name == "" {
		return false, time.Time{}, ""
	}

	s.healthMu.Lock()
	defer s.healthMu.Unlock()

	state := s.health[name]
	if state == nil {
		return false, time.Time{}, ""
	}
	if state.blockedUntil.IsZero() || now.After(state.blockedUntil) {
		return false, time.Time{}, ""
	}
	return true, state.blockedUntil, state.lastError
}

func (s *Service) recordUpstreamResult(upstreamName string, err error, latency time.Duration, now time.Time) {
	name := strings.ToLower(strings.TrimSpace(upstreamName))
	if name == "" {
		return
	}

	s.healthMu.Lock()
	defer s.healthMu.Unlock()

	state := s.health[name]
	if state == nil {
		state = &upstreamHealth{}
		s.health[name] = state
	}
	state.totalRequests++
	if latency > 0 {
		state.lastLatency = latency
		metrics.UpstreamRequestDuration.WithLabelValues(name).Observe(latency.Seconds())
	}
	state.lastTimeout = isTimeoutLikeError(err)
	if state.lastTimeout {
		state.timeoutCount++
	}

	if err == nil {
		state.consecutiveFailures = 0
		state.blockedUntil = time.Time{}
		state.lastError = ""
		state.lastSuccessAt = now
		metrics.UpstreamRequestsTotal.WithLabelValues(name, "ok").Inc()
		metrics.UpstreamAvailable.WithLabelValues(name).Set(1)
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
	metrics.UpstreamRequestsTotal.WithLabelValues(name, status).Inc()

	if state.consecutiveFailures >= upstreamFailureThreshold {
		state.blockedUntil = now.Add(exponentialBlockDuration(state.consecutiveFailures))
		metrics.UpstreamAvailable.WithLabelValues(name).Set(0)
	}
}

// exponentialBlockDuration calculates how long to block an upstream based on
// consecutive failures: baseDuration × 2^(failures - threshold), capped at 15min.
func exponentialBlockDuration(consecutiveFailures int) time.Duration {
	exponent := consecutiveFailures - upstreamFailureThreshold
	if exponent < 0 {
		exponent = 0
	}
	d := upstreamBlockBase
	for i := 0; i < exponent; i++ {
		d *= 2
		if d > upstreamBlockMax {
			return upstreamBlockMax
		}
	}
	return d
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

// waitUpstreamRateLimit blocks until the per-upstream limiter grants a
// token or the context ends.
func (s *Service) waitUpstreamRateLimit(ctx context.Context, upstreamName string) error {
	name := strings.ToLower(strings.TrimSpace(upstreamName))
	if name == "" {
		return nil
	}

	s.limiterMu.Lock()
	limiter, ok := s.limiters[name]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(upstreamRequestsPerSecond), upstreamBurst)
		s.limiters[name] = limiter
	}
	s.limiterMu.Unlock()

	return limiter.Wait(ctx)
}

func (s *Service) upstreamDiagnostics() []domain.UpstreamDiagnostics {
	s.healthMu.Lock()
	defer s.healthMu.Unlock()

	items := make([]domain.UpstreamDiagnostics, 0, len(s.health))
	for name, state := range s.health {
		item := domain.UpstreamDiagnostics{
			Name:                name,
			ConsecutiveFailures: state.consecutiveFailures,
			LastError:           state.lastError,
			LastLatencyMS:       state.lastLatency.Milliseconds(),
			TotalRequests:       state.totalRequests,
			TotalFailures:       state.totalFailures,
		}
		if !state.blockedUntil.IsZero() {
			blockedUntil := state.blockedUntil
			item.BlockedUntil = &blockedUntil
		}
		if !state.lastSuccessAt.IsZero() {
			lastSuccessAt := state.lastSuccessAt
			item.LastSuccessAt = &lastSuccessAt
		}
		if !state.lastFailureAt.IsZero() {
			lastFailureAt := state.lastFailureAt
			item.LastFailureAt = &lastFailureAt
		}
		items = append(items, item)
	}

	sort.Slice(items, func(i, j int) bool {
		return items[i].Name < items[j].Name
	})
	return items
}
