package main

import (
	"net/http"

	"github.com/angeloszaimis/priority-balancer/internal/metrics"
)

func setupRouter(metricsCollector *metrics.Collector, strategy string) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/metrics", metricsCollector.Handler(strategy))

	return mux
}
