package metrics

import (
	"sort"
	"sync"
	"time"
)

type Metrics struct {
	mutex           sync.RWMutex
	attempts        map[string]int64
	selections      map[string]int64
	throttleEvents  map[string]int64
	throttleCleared map[string]int64
	responseTimes   map[string][]time.Duration
	statusCodes     map[string]map[int]int64
	throttleStatus  map[string]bool
	rejected        int64
	startTime       time.Time
}

type Snapshot struct {
	TotalAttempts int64                     `json:"total_attempts"`
	Rejected      int64                     `json:"rejected"`
	Uptime        time.Duration             `json:"uptime"`
	Backends      map[string]BackendMetrics `json:"backends"`
	Strategy      string                    `json:"strategy"`
}

type BackendMetrics struct {
	Attempts        int64         `json:"attempts"`
	Selections      int64         `json:"selections"`
	ThrottleEvents  int64         `json:"throttle_events"`
	ThrottleCleared int64         `json:"throttle_cleared"`
	Throttling      bool          `json:"throttling"`
	AvgResponse     time.Duration `json:"avg_response"`
	P50Response     time.Duration `json:"p50_response"`
	P95Response     time.Duration `json:"p95_response"`
	P99Response     time.Duration `json:"p99_response"`
	StatusCodes     map[int]int64 `json:"status_codes"`
}

func (m *Metrics) IncrementAttempts(backend string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.attempts[backend]++
}

func (m *Metrics) RecordBackendSelection(backend string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.selections[backend]++
}

func (m *Metrics) RecordThrottled(backend string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.throttleEvents[backend]++
	m.throttleStatus[backend] = true
}

func (m *Metrics) RecordThrottleCleared(backend string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.throttleCleared[backend]++
	m.throttleStatus[backend] = false
}

func (m *Metrics) RecordRejected() {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.rejected++
}

func (m *Metrics) RecordResponse(backend string, duration time.Duration, statusCode int) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.responseTimes[backend] = append(m.responseTimes[backend], duration)

	if len(m.responseTimes[backend]) > 1000 {
		m.responseTimes[backend] = m.responseTimes[backend][1:]
	}

	if m.statusCodes[backend] == nil {
		m.statusCodes[backend] = make(map[int]int64)
	}
	m.statusCodes[backend][statusCode]++
}

func (m *Metrics) Snapshot(strategy string) Snapshot {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	snap := Snapshot{
		Rejected: m.rejected,
		Uptime:   time.Since(m.startTime),
		Backends: make(map[string]BackendMetrics),
		Strategy: strategy,
	}

	// Collect all unique backend hosts
	allBackends := make(map[string]bool)
	for backend := range m.attempts {
		allBackends[backend] = true
	}
	for backend := range m.selections {
		allBackends[backend] = true
	}
	for backend := range m.throttleEvents {
		allBackends[backend] = true
	}
	for backend := range m.throttleCleared {
		allBackends[backend] = true
	}
	for backend := range m.responseTimes {
		allBackends[backend] = true
	}

	for backend := range allBackends {
		snap.TotalAttempts += m.attempts[backend]

		bm := BackendMetrics{
			Attempts:        m.attempts[backend],
			Selections:      m.selections[backend],
			ThrottleEvents:  m.throttleEvents[backend],
			ThrottleCleared: m.throttleCleared[backend],
			Throttling:      m.throttleStatus[backend],
			StatusCodes:     m.statusCodes[backend],
		}

		durations := m.responseTimes[backend]
		if len(durations) > 0 {
			sorted := make([]time.Duration, len(durations))
			copy(sorted, durations)
			sort.Slice(sorted, func(i, j int) bool {
				return sorted[i] < sorted[j]
			})

			bm.AvgResponse = average(sorted)
			bm.P50Response = percentile(sorted, 0.50)
			bm.P95Response = percentile(sorted, 0.95)
			bm.P99Response = percentile(sorted, 0.99)
		}

		snap.Backends[backend] = bm
	}

	return snap
}

func NewMetrics() *Metrics {
	return &Metrics{
		attempts:        make(map[string]int64),
		selections:      make(map[string]int64),
		throttleEvents:  make(map[string]int64),
		throttleCleared: make(map[string]int64),
		responseTimes:   make(map[string][]time.Duration),
		statusCodes:     make(map[string]map[int]int64),
		throttleStatus:  make(map[string]bool),
		startTime:       time.Now(),
	}
}

func average(durations []time.Duration) time.Duration {
	if len(durations) == 0 {
		return 0
	}

	var sum time.Duration
	for _, d := range durations {
		sum += d
	}

	return sum / time.Duration(len(durations))
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}

	index := int(float64(len(sorted)) * p)
	if index >= len(sorted) {
		index = len(sorted) - 1
	}

	return sorted[index]
}
