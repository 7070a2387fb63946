package metrics

import (
	"context"
	"log/slog"
	"time"
)

type EventType string

const (
	EventDispatchAttempted EventType = "dispatch_attempted"
	EventBackendSelected   EventType = "backend_selected"
	EventBackendThrottled  EventType = "backend_throttled"
	EventThrottleCleared   EventType = "throttle_cleared"
	EventResponseCompleted EventType = "response_completed"
	EventRequestRejected   EventType = "request_rejected"
)

type MetricEvent struct {
	Type       EventType
	Timestamp  time.Time
	Backend    string
	Duration   time.Duration
	StatusCode int
}

type Collector struct {
	eventCh chan MetricEvent
	metrics *Metrics
	logger  *slog.Logger
}

func NewCollector(bufferSize int, logger *slog.Logger) *Collector {
	return &Collector{
		eventCh: make(chan MetricEvent, bufferSize),
		metrics: NewMetrics(),
		logger:  logger,
	}
}

func (c *Collector) EventChannel() chan<- MetricEvent {
	return c.eventCh
}

func (c *Collector) Start(ctx context.Context) {
	go c.run(ctx)
}

func (c *Collector) run(ctx context.Context) {
	c.logger.Info("Metrics collector started")
	defer c.logger.Info("Metrics collector stopped")

	for {
		select {
		case event := <-c.eventCh:
			c.processEvent(event)
		case <-ctx.Done():
			// Drain remaining events before shutdown
			c.drain()
			return
		}
	}
}

func (c *Collector) processEvent(event MetricEvent) {
	switch event.Type {
	case EventDispatchAttempted:
		c.metrics.IncrementAttempts(event.Backend)

	case EventBackendSelected:
		c.metrics.RecordBackendSelection(event.Backend)

	case EventBackendThrottled:
		c.metrics.RecordThrottled(event.Backend)

	case EventThrottleCleared:
		c.metrics.RecordThrottleCleared(event.Backend)

	case EventResponseCompleted:
		c.metrics.RecordResponse(event.Backend, event.Duration, event.StatusCode)

	case EventRequestRejected:
		c.metrics.RecordRejected()
	}
}

func (c *Collector) drain() {
	for {
		select {
		case event := <-c.eventCh:
			c.processEvent(event)
		default:
			return
		}
	}
}

func (c *Collector) Snapshot(strategy string) Snapshot {
	return c.metrics.Snapshot(strategy)
}
