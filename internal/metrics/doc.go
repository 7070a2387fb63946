// Package metrics provides real-time metrics collection for the balancer.
//
// It uses a channel-based event pipeline to asynchronously collect metrics
// about:
//   - Dispatch attempts and selections per backend
//   - Throttle marks and throttle expirations per backend
//   - Synthesized 429 rejections when every backend is throttled
//   - Response times with percentile calculations (P50, P95, P99)
//   - HTTP status code distribution
//
// The collector runs in a dedicated goroutine and processes events without
// blocking the request path. Events are sent via buffered channels with
// non-blocking semantics so a slow consumer never delays a dispatch.
//
// Example usage:
//
//	collector := metrics.NewCollector(1000, logger)
//	collector.Start(ctx)
//
//	collector.EventChannel() <- metrics.MetricEvent{
//		Type:       metrics.EventResponseCompleted,
//		Backend:    "oai-eastus.openai.azure.com",
//		Duration:   150 * time.Millisecond,
//		StatusCode: 200,
//	}
//
//	snapshot := collector.Snapshot("least-used")
//
// Metrics storage is guarded by sync.RWMutex and the collector drains its
// channel on shutdown to avoid losing buffered events.
package metrics
