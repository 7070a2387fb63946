package balancer

import (
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/angeloszaimis/priority-balancer/internal/backend"
	"github.com/angeloszaimis/priority-balancer/internal/metrics"
	"github.com/angeloszaimis/priority-balancer/internal/strategy"
)

// Balancer routes outbound requests across a set of interchangeable
// backends. It owns the backends' throttling state for its lifetime; the
// same backend list must not be shared with another Balancer.
type Balancer struct {
	logger           *slog.Logger
	transport        http.RoundTripper
	backends         []*backend.Backend
	strategy         strategy.Strategy
	metricsCollector *metrics.Collector
}

// New creates a Balancer that dispatches through the given transport.
// A nil transport falls back to http.DefaultTransport, a nil collector
// disables metrics emission.
func New(logger *slog.Logger, transport http.RoundTripper, backends []*backend.Backend, strat strategy.Strategy, collector *metrics.Collector) *Balancer {
	if transport == nil {
		transport = http.DefaultTransport
	}

	return &Balancer{
		logger:           logger,
		transport:        transport,
		backends:         backends,
		strategy:         strat,
		metricsCollector: collector,
	}
}

// Backends returns the backend list owned by this balancer.
func (lb *Balancer) Backends() []*backend.Backend {
	return lb.backends
}

// handle runs the per-request algorithm shared by the blocking and
// asynchronous entry points: expire stale throttles, then select, rewrite,
// dispatch, and classify until a backend answers or none remain.
func (lb *Balancer) handle(req *http.Request) (*http.Response, error) {
	lb.checkThrottling()
	remaining := lb.remainingBackends()

	// The request object is mutated in place across attempts, so every
	// rewrite must start from the path and credential the caller sent.
	originalPath := req.URL.Path
	originalAPIKey := req.Header.Get("api-key")
	getBody := req.GetBody
	firstAttempt := true

	for remaining > 0 {
		selected := lb.strategy.SelectBackend(lb.backends)
		if selected == nil {
			return lb.throttledResponse(req), nil
		}

		lb.emitEvent(metrics.MetricEvent{
			Type:      metrics.EventBackendSelected,
			Timestamp: time.Now(),
			Backend:   selected.Host(),
		})

		rewriteRequest(req, selected, originalPath, originalAPIKey)

		if !firstAttempt && req.Body != nil && getBody != nil {
			body, err := getBody()
			if err != nil {
				return nil, err
			}
			req.Body = body
		}
		firstAttempt = false

		lb.emitEvent(metrics.MetricEvent{
			Type:      metrics.EventDispatchAttempted,
			Timestamp: time.Now(),
			Backend:   selected.Host(),
		})

		start := time.Now()
		res, err := lb.transport.RoundTrip(req)
		if err != nil {
			// A transport fault (refused connection, timeout, DNS) is
			// handled like a rate limit without a hint: the backend is
			// throttled for the default delay and another one is tried.
			lb.logger.Error("Dispatch failed",
				slog.String("backend", selected.Host()),
				slog.Any("err", err))

			lb.throttle(selected, defaultRetryAfterSeconds)
			remaining = lb.remainingBackends()
			continue
		}

		duration := time.Since(start)
		lb.emitEvent(metrics.MetricEvent{
			Type:       metrics.EventResponseCompleted,
			Timestamp:  time.Now(),
			Backend:    selected.Host(),
			Duration:   duration,
			StatusCode: res.StatusCode,
		})

		switch classify(res.StatusCode) {
		case outcomeRetryable:
			lb.logger.Info("Request sent to server",
				slog.String("url", req.URL.String()),
				slog.Int("status", res.StatusCode),
				slog.String("result", "FAIL"))

			delay := retryAfterSeconds(res.Header)
			drainBody(res)
			lb.throttle(selected, delay)
			remaining = lb.remainingBackends()

		case outcomeSuccess:
			lb.logger.Info("Request sent to server",
				slog.String("url", req.URL.String()),
				slog.Int("status", res.StatusCode))

			selected.IncrementSuccess()
			return res, nil

		default:
			// Would likely be a 4xx other than 429; retrying a malformed
			// request against a different backend cannot fix it.
			lb.logger.Warn("Request sent to server",
				slog.String("url", req.URL.String()),
				slog.Int("status", res.StatusCode),
				slog.String("result", "FAIL"))

			return res, nil
		}
	}

	return lb.throttledResponse(req), nil
}

// checkThrottling lazily clears throttles whose deadline has passed. It runs
// once per inbound request; there is no background timer.
func (lb *Balancer) checkThrottling() {
	now := time.Now()

	for _, b := range lb.backends {
		if b.ExpireThrottle(now) {
			lb.logger.Info("Backend is no longer throttling",
				slog.String("backend", b.Host()))

			lb.emitEvent(metrics.MetricEvent{
				Type:      metrics.EventThrottleCleared,
				Timestamp: now,
				Backend:   b.Host(),
			})
		}
	}
}

// remainingBackends counts the backends currently eligible for selection.
func (lb *Balancer) remainingBackends() int {
	remaining := 0

	for _, b := range lb.backends {
		if !b.IsThrottling() {
			remaining++
		}
	}

	return remaining
}

// throttle excludes the backend from selection for delay seconds.
func (lb *Balancer) throttle(b *backend.Backend, delay int) {
	lb.logger.Info("Backend is throttling",
		slog.String("backend", b.Host()),
		slog.Int("retry_after_seconds", delay))

	b.MarkThrottled(time.Now().Add(time.Duration(delay) * time.Second))

	lb.emitEvent(metrics.MetricEvent{
		Type:      metrics.EventBackendThrottled,
		Timestamp: time.Now(),
		Backend:   b.Host(),
	})
}

// soonestRetryAfter returns the wait in whole seconds until the earliest
// throttled backend frees up. The truncated difference is rounded up by one
// second so a sub-second remainder never under-reports the wait. Only
// meaningful while at least one backend is throttling.
func (lb *Balancer) soonestRetryAfter() int {
	var soonest time.Time
	var soonestHost string

	for _, b := range lb.backends {
		if !b.IsThrottling() {
			continue
		}

		retryAfter := b.RetryAfter()
		if soonest.IsZero() || retryAfter.Before(soonest) {
			soonest = retryAfter
			soonestHost = b.Host()
		}
	}

	delay := int(time.Until(soonest).Seconds()) + 1
	lb.logger.Info("Soonest retry after",
		slog.String("backend", soonestHost),
		slog.Int("seconds", delay))

	return delay
}

// throttledResponse synthesizes the HTTP 429 returned when every backend is
// throttled. This is the only response the balancer fabricates itself.
func (lb *Balancer) throttledResponse(req *http.Request) *http.Response {
	lb.logger.Warn("No backend available")

	retryAfter := strconv.Itoa(lb.soonestRetryAfter())
	lb.logger.Info("Returning HTTP 429",
		slog.String("retry_after", retryAfter))

	lb.emitEvent(metrics.MetricEvent{
		Type:      metrics.EventRequestRejected,
		Timestamp: time.Now(),
	})

	header := make(http.Header)
	header.Set("Retry-After", retryAfter)

	return &http.Response{
		Status:        "429 Too Many Requests",
		StatusCode:    http.StatusTooManyRequests,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(strings.NewReader("")),
		ContentLength: 0,
		Request:       req,
	}
}

func (lb *Balancer) emitEvent(event metrics.MetricEvent) {
	if lb.metricsCollector == nil {
		return
	}

	select {
	case lb.metricsCollector.EventChannel() <- event:
	default:
	}
}

// drainBody releases a response that will not be returned to the caller so
// the underlying connection can be reused.
func drainBody(res *http.Response) {
	if res.Body == nil {
		return
	}

	_, _ = io.Copy(io.Discard, res.Body)
	res.Body.Close()
}
