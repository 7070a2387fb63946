package strategy_test

import (
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/priority-balancer/internal/backend"
	"github.com/angeloszaimis/priority-balancer/internal/strategy"
)

func TestStrategy(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Strategy Suite")
}

var _ = Describe("LeastUsed", func() {
	var strat strategy.Strategy

	BeforeEach(func() {
		strat = strategy.NewLeastUsedStrategy()
	})

	Context("with a single best-priority backend", func() {
		It("should always select it", func() {
			backends := []*backend.Backend{
				backend.New("a.example.com", 2),
				backend.New("b.example.com", 1),
				backend.New("c.example.com", 2),
			}

			for i := 0; i < 10; i++ {
				Expect(strat.SelectBackend(backends)).To(Equal(backends[1]))
			}
		})
	})

	Context("with equal priorities", func() {
		It("should prefer the backend with the fewest successful calls", func() {
			backends := []*backend.Backend{
				backend.New("a.example.com", 1),
				backend.New("b.example.com", 1),
			}
			backends[0].IncrementSuccess()
			backends[0].IncrementSuccess()

			Expect(strat.SelectBackend(backends)).To(Equal(backends[1]))
		})

		It("should keep success counts within one of each other over many selections", func() {
			backends := []*backend.Backend{
				backend.New("a.example.com", 1),
				backend.New("b.example.com", 1),
				backend.New("c.example.com", 1),
			}

			for i := 0; i < 300; i++ {
				selected := strat.SelectBackend(backends)
				Expect(selected).NotTo(BeNil())
				selected.IncrementSuccess()
			}

			minCalls := backends[0].SuccessfulCalls()
			maxCalls := minCalls
			for _, b := range backends[1:] {
				calls := b.SuccessfulCalls()
				if calls < minCalls {
					minCalls = calls
				}
				if calls > maxCalls {
					maxCalls = calls
				}
			}

			Expect(maxCalls - minCalls).To(BeNumerically("<=", 1))
		})
	})

	Context("with a throttled higher-priority backend", func() {
		It("should only select from the next tier", func() {
			backends := []*backend.Backend{
				backend.New("a.example.com", 1),
				backend.New("b.example.com", 2),
				backend.New("c.example.com", 2),
			}
			backends[0].MarkThrottled(time.Now().Add(time.Minute))

			for i := 0; i < 50; i++ {
				selected := strat.SelectBackend(backends)
				Expect(selected).NotTo(Equal(backends[0]))
				Expect([]*backend.Backend{backends[1], backends[2]}).To(ContainElement(selected))
			}
		})
	})

	Context("with every backend throttled", func() {
		It("should return nil", func() {
			backends := []*backend.Backend{
				backend.New("a.example.com", 1),
				backend.New("b.example.com", 2),
			}
			until := time.Now().Add(time.Minute)
			backends[0].MarkThrottled(until)
			backends[1].MarkThrottled(until)

			Expect(strat.SelectBackend(backends)).To(BeNil())
		})
	})

	Context("with an empty backend list", func() {
		It("should return nil", func() {
			Expect(strat.SelectBackend(nil)).To(BeNil())
		})
	})

	Context("with negative priorities", func() {
		It("should treat the lowest value as the best tier", func() {
			backends := []*backend.Backend{
				backend.New("a.example.com", 0),
				backend.New("b.example.com", -1),
			}

			Expect(strat.SelectBackend(backends)).To(Equal(backends[1]))
		})
	})
})

var _ = Describe("Random", func() {
	var strat strategy.Strategy

	BeforeEach(func() {
		strat = strategy.NewRandomStrategy()
	})

	It("should only pick within the best priority tier", func() {
		backends := []*backend.Backend{
			backend.New("a.example.com", 1),
			backend.New("b.example.com", 1),
			backend.New("c.example.com", 5),
		}

		for i := 0; i < 100; i++ {
			selected := strat.SelectBackend(backends)
			Expect(selected).NotTo(Equal(backends[2]))
		}
	})

	It("should eventually select every backend in the tier", func() {
		backends := []*backend.Backend{
			backend.New("a.example.com", 1),
			backend.New("b.example.com", 1),
			backend.New("c.example.com", 1),
		}

		seen := make(map[string]bool)
		for i := 0; i < 300; i++ {
			seen[strat.SelectBackend(backends).Host()] = true
		}

		Expect(seen).To(HaveLen(3))
	})

	It("should return nil when everything is throttled", func() {
		b := backend.New("a.example.com", 1)
		b.MarkThrottled(time.Now().Add(time.Minute))

		Expect(strat.SelectBackend([]*backend.Backend{b})).To(BeNil())
	})
})
