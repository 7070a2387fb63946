package metrics_test

import (
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/priority-balancer/internal/metrics"
)

var _ = Describe("Collector", func() {
	var (
		collector *metrics.Collector
		cancel    context.CancelFunc
	)

	BeforeEach(func() {
		var ctx context.Context
		ctx, cancel = context.WithCancel(context.Background())

		log := slog.New(slog.NewTextHandler(io.Discard, nil))
		collector = metrics.NewCollector(100, log)
		collector.Start(ctx)
	})

	AfterEach(func() {
		cancel()
	})

	It("should process events from the channel", func() {
		collector.EventChannel() <- metrics.MetricEvent{
			Type:      metrics.EventBackendSelected,
			Timestamp: time.Now(),
			Backend:   "a.example.com",
		}
		collector.EventChannel() <- metrics.MetricEvent{
			Type:       metrics.EventResponseCompleted,
			Timestamp:  time.Now(),
			Backend:    "a.example.com",
			Duration:   20 * time.Millisecond,
			StatusCode: 200,
		}

		Eventually(func() int64 {
			return collector.Snapshot("least-used").Backends["a.example.com"].Selections
		}, time.Second, 10*time.Millisecond).Should(Equal(int64(1)))
	})

	It("should record throttle transitions", func() {
		collector.EventChannel() <- metrics.MetricEvent{
			Type:      metrics.EventBackendThrottled,
			Timestamp: time.Now(),
			Backend:   "a.example.com",
		}

		Eventually(func() bool {
			return collector.Snapshot("least-used").Backends["a.example.com"].Throttling
		}, time.Second, 10*time.Millisecond).Should(BeTrue())

		collector.EventChannel() <- metrics.MetricEvent{
			Type:      metrics.EventThrottleCleared,
			Timestamp: time.Now(),
			Backend:   "a.example.com",
		}

		Eventually(func() bool {
			return collector.Snapshot("least-used").Backends["a.example.com"].Throttling
		}, time.Second, 10*time.Millisecond).Should(BeFalse())
	})

	It("should report a backend known only from a throttle clear", func() {
		collector.EventChannel() <- metrics.MetricEvent{
			Type:      metrics.EventThrottleCleared,
			Timestamp: time.Now(),
			Backend:   "a.example.com",
		}

		Eventually(func() int64 {
			return collector.Snapshot("least-used").Backends["a.example.com"].ThrottleCleared
		}, time.Second, 10*time.Millisecond).Should(Equal(int64(1)))
	})

	It("should count rejections", func() {
		collector.EventChannel() <- metrics.MetricEvent{
			Type:      metrics.EventRequestRejected,
			Timestamp: time.Now(),
		}

		Eventually(func() int64 {
			return collector.Snapshot("least-used").Rejected
		}, time.Second, 10*time.Millisecond).Should(Equal(int64(1)))
	})

	Describe("Handler", func() {
		It("should serve a JSON snapshot", func() {
			collector.EventChannel() <- metrics.MetricEvent{
				Type:      metrics.EventBackendSelected,
				Timestamp: time.Now(),
				Backend:   "a.example.com",
			}

			Eventually(func() int64 {
				return collector.Snapshot("least-used").Backends["a.example.com"].Selections
			}, time.Second, 10*time.Millisecond).Should(Equal(int64(1)))

			recorder := httptest.NewRecorder()
			request := httptest.NewRequest("GET", "/metrics", nil)

			collector.Handler("least-used")(recorder, request)

			Expect(recorder.Code).To(Equal(200))
			Expect(recorder.Header().Get("Content-Type")).To(Equal("application/json"))
			Expect(recorder.Body.String()).To(ContainSubstring(`"strategy":"least-used"`))
			Expect(recorder.Body.String()).To(ContainSubstring("a.example.com"))
		})
	})
})
