// Loadtest drives the balancer transport against a set of (stub) backends
// and measures throughput, latency percentiles, and per-backend
// distribution.
//
// Usage:
//
//	go run ./scripts/loadtest -hosts 127.0.0.1:8081,127.0.0.1:8082 -requests 1000 -concurrency 10
//	go run ./scripts/loadtest -hosts 127.0.0.1:8081,127.0.0.1:8082 -priorities 1,2 -csv results.csv -out summary.json
//
// Backends are attributed via the X-Backend-Host header the stub sets, so
// the distribution the balancer actually produced is visible per backend.
package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/angeloszaimis/priority-balancer/internal/backend"
	"github.com/angeloszaimis/priority-balancer/internal/balancer"
	"github.com/angeloszaimis/priority-balancer/internal/strategy"
	"github.com/angeloszaimis/priority-balancer/pkg/logger"
)

type backendStats struct {
	Count     int32           `json:"count"`
	Success   int32           `json:"success"`
	Failure   int32           `json:"failure"`
	Latencies []time.Duration `json:"-"`
}

type summary struct {
	Hosts       []string                 `json:"hosts"`
	Requests    int                      `json:"requests"`
	Concurrency int                      `json:"concurrency"`
	Success     int32                    `json:"success"`
	Failure     int32                    `json:"failure"`
	DurationMS  float64                  `json:"duration_ms"`
	Throughput  float64                  `json:"throughput_rps"`
	StatusCodes map[int]int32            `json:"status_codes"`
	Backends    map[string]*backendStats `json:"backends"`
	Percentiles map[string]float64       `json:"latency_percentiles_ms"`
}

func main() {
	var (
		hosts       = flag.String("hosts", "127.0.0.1:8081,127.0.0.1:8082", "Comma-separated backend hosts")
		priorities  = flag.String("priorities", "", "Comma-separated priorities matching -hosts (default: all 1)")
		requests    = flag.Int("requests", 100, "Total number of requests to send")
		concurrency = flag.Int("concurrency", 10, "Number of concurrent workers")
		model       = flag.String("model", "gpt-4o", "Deployment name used in the request path")
		outJSON     = flag.String("out", "", "Write JSON summary to this file (optional)")
		outCSV      = flag.String("csv", "", "Write per-request CSV to this file (optional)")
		verbose     = flag.Bool("v", false, "Verbose per-request logging")
	)
	flag.Parse()

	log := logger.New("warn", false, "dev")

	backends, err := parseBackends(*hosts, *priorities)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid backend flags: %v\n", err)
		os.Exit(1)
	}

	lb := balancer.New(log, nil, backends, strategy.NewLeastUsedStrategy(), nil)
	client := &http.Client{Transport: lb, Timeout: 10 * time.Second}
	seedURL := fmt.Sprintf("http://%s/openai/deployments/%s/chat/completions?api-version=2024-08-01-preview", backends[0].Host(), *model)

	var success, failure int32

	stats := make(map[string]*backendStats)
	statusCodes := make(map[int]int32)
	var allLatencies []time.Duration
	var mu sync.Mutex

	var csvFile *os.File
	var csvWriter *csv.Writer
	var csvMu sync.Mutex
	if *outCSV != "" {
		f, err := os.Create(*outCSV)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to create csv file: %v\n", err)
			os.Exit(1)
		}
		csvFile = f
		csvWriter = csv.NewWriter(f)
		csvWriter.Write([]string{"idx", "timestamp", "backend", "status", "duration_ms"})
	}

	testStart := time.Now()

	var g errgroup.Group
	g.SetLimit(*concurrency)

	for i := 0; i < *requests; i++ {
		idx := i
		g.Go(func() error {
			body := `{"messages":[{"role":"user","content":"ping"}]}`
			req, err := http.NewRequest(http.MethodPost, seedURL, bytes.NewBufferString(body))
			if err != nil {
				atomic.AddInt32(&failure, 1)
				return nil
			}
			req.Header.Set("Content-Type", "application/json")

			start := time.Now()
			resp, err := client.Do(req)
			dur := time.Since(start)

			mu.Lock()
			allLatencies = append(allLatencies, dur)
			mu.Unlock()

			if err != nil {
				atomic.AddInt32(&failure, 1)
				if *verbose {
					fmt.Printf("idx=%d error=%v\n", idx, err)
				}
				return nil
			}

			served := resp.Header.Get("X-Backend-Host")
			if served == "" {
				served = "(unknown)"
			}

			ok := resp.StatusCode >= 200 && resp.StatusCode <= 299
			if ok {
				atomic.AddInt32(&success, 1)
			} else {
				atomic.AddInt32(&failure, 1)
			}

			mu.Lock()
			statusCodes[resp.StatusCode]++
			bs, found := stats[served]
			if !found {
				bs = &backendStats{}
				stats[served] = bs
			}
			bs.Count++
			if ok {
				bs.Success++
			} else {
				bs.Failure++
			}
			bs.Latencies = append(bs.Latencies, dur)
			mu.Unlock()

			if csvWriter != nil {
				csvMu.Lock()
				csvWriter.Write([]string{
					strconv.Itoa(idx),
					time.Now().Format(time.RFC3339Nano),
					served,
					strconv.Itoa(resp.StatusCode),
					fmt.Sprintf("%.3f", float64(dur.Microseconds())/1000.0),
				})
				csvMu.Unlock()
			}

			if *verbose {
				fmt.Printf("idx=%d backend=%s status=%d dur=%v\n", idx, served, resp.StatusCode, dur)
			}

			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			return nil
		})
	}

	g.Wait()
	totalDuration := time.Since(testStart)

	if csvWriter != nil {
		csvWriter.Flush()
		csvFile.Close()
	}

	printSummary(*hosts, *requests, *concurrency, success, failure, totalDuration, statusCodes, stats, allLatencies)

	if *outJSON != "" {
		writeSummary(*outJSON, summary{
			Hosts:       strings.Split(*hosts, ","),
			Requests:    *requests,
			Concurrency: *concurrency,
			Success:     success,
			Failure:     failure,
			DurationMS:  float64(totalDuration.Microseconds()) / 1000.0,
			Throughput:  float64(success+failure) / totalDuration.Seconds(),
			StatusCodes: statusCodes,
			Backends:    stats,
			Percentiles: percentilesMS(allLatencies),
		})
	}
}

func parseBackends(hosts, priorities string) ([]*backend.Backend, error) {
	hostList := strings.Split(hosts, ",")
	if len(hostList) == 0 || hostList[0] == "" {
		return nil, fmt.Errorf("at least one host is required")
	}

	priorityList := make([]int, len(hostList))
	for i := range priorityList {
		priorityList[i] = 1
	}

	if priorities != "" {
		parts := strings.Split(priorities, ",")
		if len(parts) != len(hostList) {
			return nil, fmt.Errorf("got %d priorities for %d hosts", len(parts), len(hostList))
		}
		for i, part := range parts {
			p, err := strconv.Atoi(strings.TrimSpace(part))
			if err != nil {
				return nil, fmt.Errorf("invalid priority %q: %w", part, err)
			}
			priorityList[i] = p
		}
	}

	backends := make([]*backend.Backend, len(hostList))
	for i, host := range hostList {
		backends[i] = backend.New(strings.TrimSpace(host), priorityList[i])
	}

	return backends, nil
}

func printSummary(hosts string, requests, concurrency int, success, failure int32, totalDuration time.Duration, statusCodes map[int]int32, stats map[string]*backendStats, latencies []time.Duration) {
	fmt.Println("--- Load Test Summary ---")
	fmt.Printf("Backends: %s\n", hosts)
	fmt.Printf("Requests: %d  Concurrency: %d\n", requests, concurrency)
	fmt.Printf("Success: %d  Failure: %d\n", success, failure)
	fmt.Printf("Duration: %v  Throughput: %.2f req/s\n", totalDuration, float64(success+failure)/totalDuration.Seconds())

	fmt.Println("\nStatus codes:")
	var scKeys []int
	for k := range statusCodes {
		scKeys = append(scKeys, k)
	}
	sort.Ints(scKeys)
	for _, k := range scKeys {
		fmt.Printf("  %d -> %d\n", k, statusCodes[k])
	}

	fmt.Println("\nPer-backend distribution:")
	var hostKeys []string
	for k := range stats {
		hostKeys = append(hostKeys, k)
	}
	sort.Strings(hostKeys)
	for _, k := range hostKeys {
		bs := stats[k]
		fmt.Printf("  %s -> count=%d success=%d failure=%d\n", k, bs.Count, bs.Success, bs.Failure)
	}

	fmt.Println("\nLatency percentiles (ms):")
	for _, key := range []string{"p50", "p90", "p95", "p99"} {
		fmt.Printf("  %s -> %.3f\n", key, percentilesMS(latencies)[key])
	}
}

func percentilesMS(latencies []time.Duration) map[string]float64 {
	result := map[string]float64{"p50": 0, "p90": 0, "p95": 0, "p99": 0}
	if len(latencies) == 0 {
		return result
	}

	sorted := make([]time.Duration, len(latencies))
	copy(sorted, latencies)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	at := func(p float64) float64 {
		index := int(float64(len(sorted)) * p)
		if index >= len(sorted) {
			index = len(sorted) - 1
		}
		return float64(sorted[index].Microseconds()) / 1000.0
	}

	result["p50"] = at(0.50)
	result["p90"] = at(0.90)
	result["p95"] = at(0.95)
	result["p99"] = at(0.99)
	return result
}

func writeSummary(path string, s summary) {
	f, err := os.Create(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create summary file: %v\n", err)
		return
	}
	defer f.Close()

	encoder := json.NewEncoder(f)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(s); err != nil {
		fmt.Fprintf(os.Stderr, "failed to write summary: %v\n", err)
	}
}
