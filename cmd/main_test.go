package main

import (
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/priority-balancer/config"
	"github.com/angeloszaimis/priority-balancer/internal/metrics"
	"github.com/angeloszaimis/priority-balancer/internal/strategy"
)

func TestMain(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Main Suite")
}

var _ = Describe("buildBackends", func() {
	It("should map plain backends", func() {
		backends := buildBackends([]config.BackendConfig{
			{Host: "oai-eastus.openai.azure.com", Priority: 1},
			{Host: "oai-westus.openai.azure.com", Priority: 2},
		})

		Expect(backends).To(HaveLen(2))
		Expect(backends[0].Host()).To(Equal("oai-eastus.openai.azure.com"))
		Expect(backends[0].Priority()).To(Equal(1))
		Expect(backends[0].Path()).To(BeEmpty())
		Expect(backends[0].APIKey()).To(BeEmpty())
	})

	It("should carry path and api_key overrides", func() {
		backends := buildBackends([]config.BackendConfig{
			{Host: "oai-eastus.openai.azure.com", Priority: 1, Path: "/custom", APIKey: "xxxx"},
		})

		Expect(backends[0].Path()).To(Equal("/custom"))
		Expect(backends[0].APIKey()).To(Equal("xxxx"))
	})
})

var _ = Describe("createStrategy", func() {
	var log *slog.Logger

	BeforeEach(func() {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	})

	It("should create the configured strategies", func() {
		Expect(createStrategy(log, config.StrategyLeastUsed)).NotTo(BeNil())
		Expect(createStrategy(log, config.StrategyRandom)).NotTo(BeNil())
	})

	It("should fall back to least-used for unknown types", func() {
		strat := createStrategy(log, "weighted")

		Expect(strat).To(BeAssignableToTypeOf(strategy.NewLeastUsedStrategy()))
	})
})

var _ = Describe("newChatCompletionRequest", func() {
	It("should target the seed host's deployment route", func() {
		req, err := newChatCompletionRequest("oai-eastus.openai.azure.com", "gpt-4o", "2024-08-01-preview", "token")

		Expect(err).NotTo(HaveOccurred())
		Expect(req.URL.Scheme).To(Equal("https"))
		Expect(req.URL.Host).To(Equal("oai-eastus.openai.azure.com"))
		Expect(req.URL.Path).To(Equal("/openai/deployments/gpt-4o/chat/completions"))
		Expect(req.URL.RawQuery).To(Equal("api-version=2024-08-01-preview"))
		Expect(req.Header.Get("Authorization")).To(Equal("Bearer token"))

		body, err := io.ReadAll(req.Body)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(body)).To(ContainSubstring("customer managed keys"))
	})

	It("should omit the Authorization header without a token", func() {
		req, err := newChatCompletionRequest("oai-eastus.openai.azure.com", "gpt-4o", "2024-08-01-preview", "")

		Expect(err).NotTo(HaveOccurred())
		Expect(req.Header.Get("Authorization")).To(BeEmpty())
	})

	It("should support body replay for retries", func() {
		req, err := newChatCompletionRequest("oai-eastus.openai.azure.com", "gpt-4o", "2024-08-01-preview", "")

		Expect(err).NotTo(HaveOccurred())
		Expect(req.GetBody).NotTo(BeNil())
	})
})

var _ = Describe("setupRouter", func() {
	It("should expose the metrics snapshot", func() {
		log := slog.New(slog.NewTextHandler(io.Discard, nil))
		collector := metrics.NewCollector(10, log)

		mux := setupRouter(collector, config.StrategyLeastUsed)

		recorder := httptest.NewRecorder()
		mux.ServeHTTP(recorder, httptest.NewRequest("GET", "/metrics", nil))

		Expect(recorder.Code).To(Equal(200))
		Expect(recorder.Body.String()).To(ContainSubstring(`"strategy":"least-used"`))
	})
})
