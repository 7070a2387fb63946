// Backendstub is a stand-in for an Azure-OpenAI-style endpoint, used to
// exercise the balancer locally. It serves a chat-completions route and a
// /health endpoint, enforces a requests-per-minute budget, and can replay a
// scripted sequence of statuses from a YAML scenario file.
//
// Usage:
//
//	go run ./scripts/backendstub -port 8081 -rpm 60
//	go run ./scripts/backendstub -port 8081 -scenario throttle.yaml
//
// Scenario file format:
//
//	responses:
//	  - status: 429
//	    count: 2
//	    retry_after: 3
//	  - status: 500
//	    count: 1
//
// Scripted responses are served first; once exhausted the stub answers
// normally, subject to the rate limit. Rate-limited requests receive a 429
// with Retry-After and x-ratelimit-reset-requests headers, the same shape
// the balancer sees from a real throttling endpoint.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"

	"github.com/angeloszaimis/priority-balancer/internal/httpserver"
	"github.com/angeloszaimis/priority-balancer/pkg/logger"
)

type scriptedResponse struct {
	Status     int `yaml:"status"`
	Count      int `yaml:"count"`
	RetryAfter int `yaml:"retry_after"`
}

type scenario struct {
	Responses []scriptedResponse `yaml:"responses"`
}

// script serves the scenario's responses in order, one Count at a time.
type script struct {
	mutex     sync.Mutex
	remaining []scriptedResponse
}

func (s *script) next() (scriptedResponse, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for len(s.remaining) > 0 {
		if s.remaining[0].Count > 0 {
			s.remaining[0].Count--
			return s.remaining[0], true
		}
		s.remaining = s.remaining[1:]
	}

	return scriptedResponse{}, false
}

func loadScenario(path string) (*script, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var sc scenario
	if err := yaml.Unmarshal(raw, &sc); err != nil {
		return nil, err
	}

	return &script{remaining: sc.Responses}, nil
}

type chatChoice struct {
	Index        int               `json:"index"`
	Message      map[string]string `json:"message"`
	FinishReason string            `json:"finish_reason"`
}

type chatCompletion struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Created int64        `json:"created"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
}

func main() {
	var (
		port         = flag.Int("port", 8081, "Port to listen on")
		rpm          = flag.Int("rpm", 60, "Allowed requests per minute")
		burst        = flag.Int("burst", 5, "Burst size above the sustained rate")
		scenarioPath = flag.String("scenario", "", "YAML scenario of scripted responses (optional)")
	)
	flag.Parse()

	log := logger.New("info", false, "dev")

	var scripted *script
	if *scenarioPath != "" {
		var err error
		scripted, err = loadScenario(*scenarioPath)
		if err != nil {
			log.Error("Failed to load scenario", slog.Any("err", err))
			os.Exit(1)
		}
	}

	addr := fmt.Sprintf("127.0.0.1:%d", *port)
	limiter := rate.NewLimiter(rate.Limit(float64(*rpm)/60.0), *burst)

	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Backend-Host", addr)

		log.Info("Request received",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path))

		if scripted != nil {
			if res, ok := scripted.next(); ok {
				writeScripted(w, res)
				return
			}
		}

		if !limiter.Allow() {
			reservation := limiter.Reserve()
			delay := int(reservation.Delay().Seconds()) + 1
			reservation.Cancel()

			w.Header().Set("Retry-After", fmt.Sprintf("%d", delay))
			w.Header().Set("x-ratelimit-reset-requests", fmt.Sprintf("%d", delay))
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}

		writeChatCompletion(w, r)
	})

	srv, err := httpserver.New(addr, mux)
	if err != nil {
		log.Error("Failed to create server", slog.Any("err", err))
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	srvErrCh := make(chan error, 1)
	go func() {
		log.Info("Backend stub listening", slog.String("address", addr))
		srvErrCh <- srv.Start()
	}()

	select {
	case <-ctx.Done():
		log.Info("Shutting down")
		if err := srv.Shutdown(context.Background()); err != nil {
			log.Error("Error during shutdown", slog.Any("err", err))
		}
	case err := <-srvErrCh:
		if err != nil {
			log.Error("Server error", slog.Any("err", err))
			os.Exit(1)
		}
	}
}

func writeScripted(w http.ResponseWriter, res scriptedResponse) {
	if res.RetryAfter > 0 {
		w.Header().Set("Retry-After", fmt.Sprintf("%d", res.RetryAfter))
	}
	w.WriteHeader(res.Status)
}

func writeChatCompletion(w http.ResponseWriter, r *http.Request) {
	model := "unknown"
	if parts := strings.Split(r.URL.Path, "/"); len(parts) >= 4 && parts[1] == "openai" && parts[2] == "deployments" {
		model = parts[3]
	}

	completion := chatCompletion{
		ID:      "chatcmpl-" + uuid.NewString(),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   model,
		Choices: []chatChoice{
			{
				Index: 0,
				Message: map[string]string{
					"role":    "assistant",
					"content": "Yes, Azure OpenAI supports customer managed keys.",
				},
				FinishReason: "stop",
			},
		},
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(completion); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
