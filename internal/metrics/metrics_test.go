package metrics_test

import (
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/priority-balancer/internal/metrics"
)

func TestMetrics(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Metrics Suite")
}

var _ = Describe("Metrics", func() {
	var m *metrics.Metrics

	BeforeEach(func() {
		m = metrics.NewMetrics()
	})

	Describe("Snapshot", func() {
		It("should aggregate attempts and selections per backend", func() {
			m.IncrementAttempts("a.example.com")
			m.IncrementAttempts("a.example.com")
			m.IncrementAttempts("b.example.com")
			m.RecordBackendSelection("a.example.com")

			snap := m.Snapshot("least-used")

			Expect(snap.Strategy).To(Equal("least-used"))
			Expect(snap.TotalAttempts).To(Equal(int64(3)))
			Expect(snap.Backends["a.example.com"].Attempts).To(Equal(int64(2)))
			Expect(snap.Backends["a.example.com"].Selections).To(Equal(int64(1)))
			Expect(snap.Backends["b.example.com"].Attempts).To(Equal(int64(1)))
		})

		It("should track throttle marks and clears", func() {
			m.RecordThrottled("a.example.com")

			snap := m.Snapshot("least-used")
			Expect(snap.Backends["a.example.com"].ThrottleEvents).To(Equal(int64(1)))
			Expect(snap.Backends["a.example.com"].Throttling).To(BeTrue())

			m.RecordThrottleCleared("a.example.com")

			snap = m.Snapshot("least-used")
			Expect(snap.Backends["a.example.com"].ThrottleCleared).To(Equal(int64(1)))
			Expect(snap.Backends["a.example.com"].Throttling).To(BeFalse())
		})

		It("should count synthesized rejections globally", func() {
			m.RecordRejected()
			m.RecordRejected()

			Expect(m.Snapshot("least-used").Rejected).To(Equal(int64(2)))
		})

		It("should compute response time percentiles and status codes", func() {
			for i := 1; i <= 100; i++ {
				m.RecordResponse("a.example.com", time.Duration(i)*time.Millisecond, 200)
			}
			m.RecordResponse("a.example.com", 500*time.Millisecond, 429)

			bm := m.Snapshot("random").Backends["a.example.com"]

			Expect(bm.StatusCodes[200]).To(Equal(int64(100)))
			Expect(bm.StatusCodes[429]).To(Equal(int64(1)))
			Expect(bm.P50Response).To(BeNumerically(">", 0))
			Expect(bm.P99Response).To(BeNumerically(">=", bm.P50Response))
			Expect(bm.AvgResponse).To(BeNumerically(">", 0))
		})

		It("should cap stored response times", func() {
			for i := 0; i < 1500; i++ {
				m.RecordResponse("a.example.com", time.Millisecond, 200)
			}

			bm := m.Snapshot("random").Backends["a.example.com"]
			Expect(bm.StatusCodes[200]).To(Equal(int64(1500)))
		})
	})
})
