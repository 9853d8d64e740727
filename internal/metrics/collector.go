package metrics

import (
	"context"
	"math/rand"
	"time"

	"sqlgateway/internal/logger"
)

// Collector ties the always-on per-endpoint Registry to a sampled,
// asynchronously-delivered MetricsSink feed. Every dispatched request
// updates its endpoint's aggregate; only a sampleRate fraction also
// produces a PerformanceRecord handed to the sink.
type Collector struct {
	Registry   *Registry
	sink       MetricsSink
	sampleRate float64
	asyncSave  bool
	disabled   bool
	exclude    map[string]bool
}

func NewCollector(sink MetricsSink, sampleRate float64) *Collector {
	if sampleRate < 0 {
		sampleRate = 0
	}
	if sampleRate > 1 {
		sampleRate = 1
	}
	return &Collector{
		Registry:   NewRegistry(),
		sink:       sink,
		sampleRate: sampleRate,
		asyncSave:  true,
		exclude:    map[string]bool{},
	}
}

// SetAsyncSave selects whether sampled records reach the sink on a detached
// background task (the default) or inline on the observing goroutine. Call
// before serving traffic.
func (c *Collector) SetAsyncSave(enabled bool) { c.asyncSave = enabled }

// Disable turns collection off entirely; ShouldCollect then reports false
// for every path.
func (c *Collector) Disable() { c.disabled = true }

// Exclude adds path templates the collector skips. Call before serving
// traffic; the set is not safe for concurrent mutation.
func (c *Collector) Exclude(paths ...string) {
	for _, p := range paths {
		c.exclude[p] = true
	}
}

// ShouldCollect reports whether a request to the given path template should
// be measured at all.
func (c *Collector) ShouldCollect(path string) bool {
	return !c.disabled && !c.exclude[path]
}

// Observe records one dispatched request's outcome. It always updates the
// endpoint's running aggregate; it samples into the sink feed according to
// the configured rate. With asyncSave on, delivery happens on a detached
// task that is never joined; otherwise it runs inline before Observe
// returns. Sink failures are logged and swallowed either way.
func (c *Collector) Observe(rec PerformanceRecord) {
	success := rec.StatusCode >= 200 && rec.StatusCode < 400
	rec.Success = success
	c.Registry.Record(rec.Method+" "+rec.Path, rec.DurationMillis, success)

	if c.sink == nil {
		return
	}
	if c.sampleRate < 1 && rand.Float64() >= c.sampleRate {
		return
	}

	if c.asyncSave {
		go c.deliver(rec)
		return
	}
	c.deliver(rec)
}

func (c *Collector) deliver(rec PerformanceRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	defer func() {
		if p := recover(); p != nil {
			logger.WithComponent("metrics").Warn("metrics sink delivery panicked", "panic", p)
		}
	}()
	c.sink.Send(ctx, rec)
}

// Reset clears every endpoint aggregate (admin "reset" operation).
func (c *Collector) Reset() {
	c.Registry.Reset()
}

// Close releases the underlying sink's resources.
func (c *Collector) Close() error {
	if c.sink == nil {
		return nil
	}
	return c.sink.Close()
}
