package profiler

import (
	"context"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"

	"github.com/nvr-ai/go-fire/logging"
)

// MetricsCollector defines the interface for collecting custom metrics at report time.
type MetricsCollector interface {
	CollectMetrics() map[string]float64
}

// Stats summarizes a bounded window of samples.
type Stats struct {
	Count  int64
	Mean   float64
	StdDev float64
	Min    float64
	Max    float64
}

// Snapshot is a point-in-time copy of everything the profiler tracks. Operation stats
// are in milliseconds.
type Snapshot struct {
	Uptime     time.Duration
	Goroutines int
	Operations map[string]Stats
	Metrics    map[string]Stats
}

// Options configures the profiler.
type Options struct {
	// ReportInterval specifies how often to log a report (default: 5s)
	ReportInterval time.Duration
	// MaxSamples bounds the window kept per series (default: 600)
	MaxSamples int
	// Logger receives the periodic reports.
	Logger zerolog.Logger
}

// series is a bounded window of samples plus lifetime extremes.
type series struct {
	values []float64
	count  int64
	min    float64
	max    float64
}

func (s *series) add(v float64, limit int) {
	if s.count == 0 || v < s.min {
		s.min = v
	}
	if s.count == 0 || v > s.max {
		s.max = v
	}
	s.count++
	s.values = append(s.values, v)
	if len(s.values) > limit {
		s.values = s.values[len(s.values)-limit:]
	}
}

func (s *series) stats() Stats {
	mean, std := stat.MeanStdDev(s.values, nil)
	if len(s.values) < 2 {
		std = 0
	}
	return Stats{Count: s.count, Mean: mean, StdDev: std, Min: s.min, Max: s.max}
}

// RuntimeProfiler tracks operation timings and custom metrics of the frame loop and
// logs periodic reports. It is safe for concurrent use.
type RuntimeProfiler struct {
	reportInterval time.Duration
	maxSamples     int
	logger         zerolog.Logger

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.RWMutex
	startTime time.Time
	running   bool

	operations map[string]*series
	metrics    map[string]*series
	collectors []MetricsCollector
}

// New creates a new runtime profiler with the specified options.
//
// Arguments:
// - opts: Configuration options for the profiler
//
// Returns:
// - A configured RuntimeProfiler instance
func New(opts Options) *RuntimeProfiler {
	if opts.ReportInterval <= 0 {
		opts.ReportInterval = 5 * time.Second
	}
	if opts.MaxSamples <= 0 {
		opts.MaxSamples = 600
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &RuntimeProfiler{
		reportInterval: opts.ReportInterval,
		maxSamples:     opts.MaxSamples,
		logger:         logging.Component(opts.Logger, "profiler"),
		ctx:            ctx,
		cancel:         cancel,
		startTime:      time.Now(),
		operations:     make(map[string]*series),
		metrics:        make(map[string]*series),
	}
}

// Start begins periodic reporting. Calling it again while running is a no-op.
func (rp *RuntimeProfiler) Start() {
	rp.mu.Lock()
	defer rp.mu.Unlock()

	if rp.running {
		return
	}
	rp.running = true
	rp.startTime = time.Now()

	rp.wg.Add(1)
	go func() {
		defer rp.wg.Done()

		ticker := time.NewTicker(rp.reportInterval)
		defer ticker.Stop()

		for {
			select {
			case <-rp.ctx.Done():
				return
			case <-ticker.C:
				rp.collect()
				rp.report()
			}
		}
	}()
}

// Stop halts reporting and waits for the reporter to exit. It is idempotent.
func (rp *RuntimeProfiler) Stop() {
	rp.mu.Lock()
	if !rp.running {
		rp.mu.Unlock()
		return
	}
	rp.running = false
	rp.mu.Unlock()

	rp.cancel()
	rp.wg.Wait()
}

// AddMetricsCollector registers a collector polled before each report.
func (rp *RuntimeProfiler) AddMetricsCollector(collector MetricsCollector) {
	rp.mu.Lock()
	defer rp.mu.Unlock()
	rp.collectors = append(rp.collectors, collector)
}

// RecordMetric records a custom metric value.
func (rp *RuntimeProfiler) RecordMetric(name string, value float64) {
	rp.mu.Lock()
	defer rp.mu.Unlock()
	rp.record(rp.metrics, name, value)
}

// StartOperation begins timing an operation and returns the function that ends it.
//
// @example
// done := rp.StartOperation("detect")
// res, err := det.Detect(frame)
// done()
func (rp *RuntimeProfiler) StartOperation(name string) func() {
	start := time.Now()
	return func() {
		rp.RecordDuration(name, time.Since(start))
	}
}

// RecordDuration records a completed operation.
func (rp *RuntimeProfiler) RecordDuration(name string, d time.Duration) {
	rp.mu.Lock()
	defer rp.mu.Unlock()
	rp.record(rp.operations, name, float64(d)/float64(time.Millisecond))
}

func (rp *RuntimeProfiler) record(set map[string]*series, name string, v float64) {
	s, ok := set[name]
	if !ok {
		s = &series{values: make([]float64, 0, rp.maxSamples)}
		set[name] = s
	}
	s.add(v, rp.maxSamples)
}

func (rp *RuntimeProfiler) collect() {
	rp.mu.RLock()
	collectors := append([]MetricsCollector(nil), rp.collectors...)
	rp.mu.RUnlock()

	for _, c := range collectors {
		for name, v := range c.CollectMetrics() {
			rp.RecordMetric(name, v)
		}
	}
}

// Snapshot returns the current statistics.
func (rp *RuntimeProfiler) Snapshot() Snapshot {
	rp.mu.RLock()
	defer rp.mu.RUnlock()

	snap := Snapshot{
		Uptime:     time.Since(rp.startTime),
		Goroutines: runtime.NumGoroutine(),
		Operations: make(map[string]Stats, len(rp.operations)),
		Metrics:    make(map[string]Stats, len(rp.metrics)),
	}
	for name, s := range rp.operations {
		snap.Operations[name] = s.stats()
	}
	for name, s := range rp.metrics {
		snap.Metrics[name] = s.stats()
	}
	return snap
}

func (rp *RuntimeProfiler) report() {
	snap := rp.Snapshot()

	rp.logger.Info().
		Dur("uptime", snap.Uptime.Truncate(time.Second)).
		Int("goroutines", snap.Goroutines).
		Msg("runtime report")

	for _, name := range sortedKeys(snap.Operations) {
		s := snap.Operations[name]
		rp.logger.Info().
			Str("operation", name).
			Float64("avg_ms", s.Mean).
			Float64("std_ms", s.StdDev).
			Float64("min_ms", s.Min).
			Float64("max_ms", s.Max).
			Int64("count", s.Count).
			Msg("operation timing")
	}
	for _, name := range sortedKeys(snap.Metrics) {
		s := snap.Metrics[name]
		rp.logger.Info().
			Str("metric", name).
			Float64("avg", s.Mean).
			Float64("min", s.Min).
			Float64("max", s.Max).
			Int64("samples", s.Count).
			Msg("metric")
	}
}

func sortedKeys(m map[string]Stats) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
