package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/angeloszaimis/priority-balancer/config"
	"github.com/angeloszaimis/priority-balancer/internal/backend"
	"github.com/angeloszaimis/priority-balancer/internal/balancer"
	"github.com/angeloszaimis/priority-balancer/internal/httpserver"
	"github.com/angeloszaimis/priority-balancer/internal/metrics"
	"github.com/angeloszaimis/priority-balancer/internal/strategy"
	"github.com/angeloszaimis/priority-balancer/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.Any("err", err))
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level, true, cfg.Environment)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	backends := buildBackends(cfg.Backends)
	strat := createStrategy(log, cfg.Strategy.Type)

	collector := metrics.NewCollector(1000, log)
	collector.Start(ctx)

	lb := balancer.New(log, nil, backends, strat, collector)

	if cfg.Client.MetricsAddress != "" {
		srv, err := httpserver.New(cfg.Client.MetricsAddress, setupRouter(collector, cfg.Strategy.Type))
		if err != nil {
			log.Error("Failed to create metrics server", slog.Any("err", err))
			os.Exit(1)
		}

		go func() {
			if err := srv.Start(); err != nil {
				log.Error("Metrics server error", slog.Any("err", err))
			}
		}()
		defer srv.Shutdown(context.Background())

		log.Info("Metrics available", slog.String("address", cfg.Client.MetricsAddress))
	}

	token := os.Getenv("AZURE_OPENAI_TOKEN")

	syncSuccess, syncFailure := runSequential(ctx, log, lb, cfg, token)
	asyncSuccess, asyncFailure := runConcurrent(ctx, log, lb, cfg, token)

	log.Info("Run complete",
		slog.Int("sync_success", syncSuccess),
		slog.Int("sync_failure", syncFailure),
		slog.Int("async_success", asyncSuccess),
		slog.Int("async_failure", asyncFailure))

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(collector.Snapshot(cfg.Strategy.Type)); err != nil {
		log.Error("Failed to encode metrics snapshot", slog.Any("err", err))
	}
}

// runSequential issues the configured number of chat-completion requests
// one by one through an http.Client whose transport is the balancer.
func runSequential(ctx context.Context, log *slog.Logger, lb *balancer.Balancer, cfg *config.Config, token string) (success, failure int) {
	client := &http.Client{Transport: lb}
	seedHost := cfg.Backends[0].Host

	for i := 0; i < cfg.Client.Requests; i++ {
		log.Info("Balancer request",
			slog.Int("n", i+1),
			slog.Int("of", cfg.Client.Requests))

		req, err := newChatCompletionRequest(seedHost, cfg.Client.Model, cfg.Client.APIVersion, token)
		if err != nil {
			log.Error("Failed to build request", slog.Any("err", err))
			failure++
			continue
		}

		res, err := client.Do(req.WithContext(ctx))
		if err != nil {
			log.Error("Request failed", slog.Any("err", err))
			failure++
			continue
		}

		if consumeResponse(res) {
			success++
		} else {
			failure++
		}
	}

	return success, failure
}

// runConcurrent issues the same batch through the asynchronous entry point,
// with at most the configured number of requests in flight.
func runConcurrent(ctx context.Context, log *slog.Logger, lb *balancer.Balancer, cfg *config.Config, token string) (int, int) {
	var success, failure atomic.Int64
	seedHost := cfg.Backends[0].Host

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Client.Concurrency)

	for i := 0; i < cfg.Client.Requests; i++ {
		n := i + 1
		g.Go(func() error {
			log.Info("Async balancer request",
				slog.Int("n", n),
				slog.Int("of", cfg.Client.Requests))

			req, err := newChatCompletionRequest(seedHost, cfg.Client.Model, cfg.Client.APIVersion, token)
			if err != nil {
				return err
			}

			result := <-lb.RoundTripAsync(req.WithContext(ctx))
			if result.Err != nil {
				log.Error("Async request failed", slog.Any("err", result.Err))
				failure.Add(1)
				return nil
			}

			if consumeResponse(result.Response) {
				success.Add(1)
			} else {
				failure.Add(1)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		log.Error("Concurrent batch aborted", slog.Any("err", err))
	}

	return int(success.Load()), int(failure.Load())
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionPayload struct {
	Messages []chatMessage `json:"messages"`
}

// newChatCompletionRequest builds a chat-completion request against the
// seed host. The balancer overwrites the host per attempt; the seed only
// has to be resolvable as a URL.
func newChatCompletionRequest(host, model, apiVersion, token string) (*http.Request, error) {
	payload := chatCompletionPayload{
		Messages: []chatMessage{
			{Role: "system", Content: "You are a helpful assistant."},
			{Role: "user", Content: "Does Azure OpenAI support customer managed keys?"},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("https://%s/openai/deployments/%s/chat/completions?api-version=%s", host, model, apiVersion)

	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return req, nil
}

// consumeResponse drains and closes the body and reports whether the
// response counts as a success.
func consumeResponse(res *http.Response) bool {
	_, _ = io.Copy(io.Discard, res.Body)
	res.Body.Close()

	return res.StatusCode >= 200 && res.StatusCode <= 399
}

func buildBackends(configs []config.BackendConfig) []*backend.Backend {
	backends := make([]*backend.Backend, 0, len(configs))

	for _, bc := range configs {
		if bc.Path != "" || bc.APIKey != "" {
			backends = append(backends, backend.NewWithCredentials(bc.Host, bc.Priority, bc.Path, bc.APIKey))
			continue
		}

		backends = append(backends, backend.New(bc.Host, bc.Priority))
	}

	return backends
}

func createStrategy(log *slog.Logger, strategyType string) strategy.Strategy {
	switch strategyType {
	case config.StrategyLeastUsed:
		return strategy.NewLeastUsedStrategy()
	case config.StrategyRandom:
		return strategy.NewRandomStrategy()
	default:
		log.Warn("Unknown strategy, defaulting to least-used", slog.String("requested", strategyType))
		return strategy.NewLeastUsedStrategy()
	}
}
