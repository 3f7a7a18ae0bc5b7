package extract

import (
	"sort"
	"sync"
	"time"
)

type sample struct {
	timestamp  time.Time
	durationMs int64
	failed     bool
}

// StatsSnapshot aggregates the completion calls inside the rolling window.
// Latency figures cover successful calls only.
type StatsSnapshot struct {
	Model    string  `json:"model,omitempty"`
	Count    int     `json:"count"`
	Failures int     `json:"failures"`
	Retries  int     `json:"retries"`
	MinMs    int64   `json:"min_ms"`
	MaxMs    int64   `json:"max_ms"`
	AvgMs    float64 `json:"avg_ms"`
	P50Ms    float64 `json:"p50_ms"`
	P95Ms    float64 `json:"p95_ms"`
	P99Ms    float64 `json:"p99_ms"`
}

// LLMStats tracks recent completion latencies within a rolling window.
type LLMStats struct {
	mu      sync.Mutex
	samples []sample
	retries []time.Time
	maxAge  time.Duration
	model   string
}

func NewLLMStats(maxAge time.Duration) *LLMStats {
	if maxAge <= 0 {
		maxAge = time.Hour
	}
	return &LLMStats{
		samples: make([]sample, 0, 256),
		maxAge:  maxAge,
	}
}

// SetModel labels snapshots with the model in use.
func (s *LLMStats) SetModel(model string) {
	s.mu.Lock()
	s.model = model
	s.mu.Unlock()
}

// Record adds one finished call. A non-nil err counts it as a failure.
func (s *LLMStats) Record(d time.Duration, err error) {
	durationMs := d.Milliseconds()
	if durationMs < 0 {
		durationMs = 0
	}
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.pruneLocked(now)
	s.samples = append(s.samples, sample{
		timestamp:  now,
		durationMs: durationMs,
		failed:     err != nil,
	})
}

// RecordRetry counts one retried attempt.
func (s *LLMStats) RecordRetry() {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneLocked(now)
	s.retries = append(s.retries, now)
}

func (s *LLMStats) Snapshot() StatsSnapshot {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.pruneLocked(now)
	snap := StatsSnapshot{Model: s.model, Retries: len(s.retries)}

	values := make([]int64, 0, len(s.samples))
	var sum int64
	for _, sm := range s.samples {
		snap.Count++
		if sm.failed {
			snap.Failures++
			continue
		}
		values = append(values, sm.durationMs)
		sum += sm.durationMs
	}
	if len(values) == 0 {
		return snap
	}
	sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })

	snap.MinMs = values[0]
	snap.MaxMs = values[len(values)-1]
	snap.AvgMs = float64(sum) / float64(len(values))
	snap.P50Ms = percentile(values, 50)
	snap.P95Ms = percentile(values, 95)
	snap.P99Ms = percentile(values, 99)
	return snap
}

func (s *LLMStats) pruneLocked(now time.Time) {
	cutoff := now.Add(-s.maxAge)
	writeIdx := 0
	for _, sm := range s.samples {
		if !sm.timestamp.Before(cutoff) {
			s.samples[writeIdx] = sm
			writeIdx++
		}
	}
	s.samples = s.samples[:writeIdx]

	keep := 0
	for _, ts := range s.retries {
		if !ts.Before(cutoff) {
			s.retries[keep] = ts
			keep++
		}
	}
	s.retries = s.retries[:keep]
}

func percentile(sortedValues []int64, pct float64) float64 {
	if len(sortedValues) == 0 {
		return 0
	}
	if pct <= 0 {
		return float64(sortedValues[0])
	}
	if pct >= 100 {
		return float64(sortedValues[len(sortedValues)-1])
	}

	index := (float64(len(sortedValues)-1) * pct) / 100.0
	lower := int(index)
	upper := lower + 1
	if upper >= len(sortedValues) {
		return float64(sortedValues[lower])
	}
	weight := index - float64(lower)
	lo := float64(sortedValues[lower])
	hi := float64(sortedValues[upper])
	return lo + ((hi - lo) * weight)
}
