package scrape

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"telemon/internal/catalog"
	"telemon/internal/match"
	"telemon/internal/storage"
)

// Engine self-observation metric names.
const (
	MetricScrapeTotal    = "telemon_scrape_total"
	MetricScrapeSuccess  = "telemon_scrape_success_total"
	MetricScrapeFailures = "telemon_scrape_failures_total"
	MetricScrapeDuration = "telemon_scrape_duration_seconds"
	MetricUp             = "up"
	MetricResponseTime   = "telemon_response_time_seconds"
)

// EngineConfig wires the engine to its collaborators.
// Params: catalog/store are required; sink and client are optional.
// Returns: engine runtime configuration.
type EngineConfig struct {
	Catalog *catalog.Catalog
	Store   storage.Store
	Sink    HostStatusSink
	Logger  *slog.Logger
	Client  *http.Client
}

type targetWorker struct {
	target    Target
	cancel    context.CancelFunc
	keepMasks []match.WildcardPattern
	dropMasks []match.WildcardPattern
}

// Engine owns scrape targets and runs one polling worker per target.
// Params: none.
// Returns: scrape engine instance.
type Engine struct {
	catalog *catalog.Catalog
	store   storage.Store
	sink    HostStatusSink
	logger  *slog.Logger
	client  *http.Client

	mu      sync.Mutex
	workers map[string]*targetWorker
	runCtx  context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewEngine creates an engine and registers its self-observation metrics.
// Params: cfg engine collaborators.
// Returns: engine instance or configuration error.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if cfg.Catalog == nil {
		return nil, fmt.Errorf("catalog is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	client := cfg.Client
	if client == nil {
		// Redirects are followed by default; per-request timeouts come from
		// each target's context.
		client = &http.Client{}
	}

	engine := &Engine{
		catalog: cfg.Catalog,
		store:   cfg.Store,
		sink:    cfg.Sink,
		logger:  cfg.Logger,
		client:  client,
		workers: make(map[string]*targetWorker),
	}

	selfSeries := []struct {
		name string
		kind catalog.Kind
		help string
	}{
		{MetricScrapeTotal, catalog.KindCounter, "Total scrape attempts"},
		{MetricScrapeSuccess, catalog.KindCounter, "Successful scrapes"},
		{MetricScrapeFailures, catalog.KindCounter, "Failed scrapes"},
		{MetricScrapeDuration, catalog.KindHistogram, "Scrape duration"},
		{MetricUp, catalog.KindGauge, "Target availability (1=up, 0=down)"},
		{MetricResponseTime, catalog.KindGauge, "Response time in seconds"},
	}
	for _, series := range selfSeries {
		if _, err := cfg.Catalog.Register(series.name, series.kind, series.help, nil); err != nil {
			return nil, fmt.Errorf("register %s: %w", series.name, err)
		}
	}

	return engine, nil
}

// AddTarget registers a target and, when the engine is running, starts its
// worker immediately without disturbing existing workers. A duplicate
// address is a silent no-op.
// Params: target scrape target.
// Returns: validation error or nil.
func (e *Engine) AddTarget(target Target) error {
	if err := validateTarget(target); err != nil {
		return err
	}

	keepMasks, dropMasks := compileMetricMasks(target.KeepMetrics, target.DropMetrics)

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.workers[target.Address]; exists {
		return nil
	}

	worker := &targetWorker{
		target:    target,
		keepMasks: keepMasks,
		dropMasks: dropMasks,
	}
	e.workers[target.Address] = worker

	if e.runCtx != nil && e.runCtx.Err() == nil {
		e.startWorkerLocked(worker)
	}
	return nil
}

// RemoveTarget stops tracking a target by (job, address) identity.
// The worker exits cooperatively at its next loop check, not preemptively.
// Params: job target job name; address target address.
// Returns: true when a matching target existed.
func (e *Engine) RemoveTarget(job, address string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	worker, exists := e.workers[address]
	if !exists || worker.target.Job != job {
		return false
	}

	delete(e.workers, address)
	if worker.cancel != nil {
		worker.cancel()
	}
	return true
}

// Targets returns a snapshot of the tracked targets.
// Params: none.
// Returns: target list copy.
func (e *Engine) Targets() []Target {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]Target, 0, len(e.workers))
	for _, worker := range e.workers {
		out = append(out, worker.target)
	}
	return out
}

// Start launches one worker per tracked target.
// Params: ctx engine lifecycle context.
// Returns: error when already started.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.runCtx != nil {
		return fmt.Errorf("engine already started")
	}
	e.runCtx, e.cancel = context.WithCancel(ctx)

	for _, worker := range e.workers {
		e.startWorkerLocked(worker)
	}

	e.logger.Info("scrape engine started", slog.Int("targets", len(e.workers)))
	return nil
}

// Stop cancels every worker and waits for all of them to join.
// Params: none.
// Returns: none.
func (e *Engine) Stop() {
	e.mu.Lock()
	cancel := e.cancel
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	e.wg.Wait()
	e.logger.Info("scrape engine stopped")
}

// startWorkerLocked spawns the polling goroutine for one target.
// Caller must hold e.mu with a live run context.
// Params: worker target worker to start.
// Returns: none.
func (e *Engine) startWorkerLocked(worker *targetWorker) {
	workerCtx, workerCancel := context.WithCancel(e.runCtx)
	worker.cancel = workerCancel

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer workerCancel()
		e.runWorker(workerCtx, worker)
	}()
}

// runWorker loops fetch/parse/propagate/sleep for one target until its
// context is cancelled. Failures keep the same fixed interval: no backoff.
// Params: ctx worker lifecycle context; worker target worker.
// Returns: none.
func (e *Engine) runWorker(ctx context.Context, worker *targetWorker) {
	for {
		e.cycle(ctx, worker)

		select {
		case <-ctx.Done():
			return
		case <-time.After(worker.target.Interval):
		}
	}
}

// cycle executes one fetch/parse/propagate pass for a target.
// Params: ctx worker lifecycle context; worker target worker.
// Returns: none; all failures are recorded as health state, never raised.
func (e *Engine) cycle(ctx context.Context, worker *targetWorker) {
	target := worker.target
	result := Result{Flat: make(map[string]float64)}

	resp, outcome, statusCode, latency, message := fetch(ctx, e.client, target)
	result.Outcome = outcome
	result.StatusCode = statusCode
	result.Latency = latency
	result.Error = message

	if resp != nil {
		if result.Success() {
			count, flat := e.ingest(resp.Body, worker)
			result.SamplesCount = count
			result.Flat = flat
		}
		resp.Body.Close()
	}

	e.propagate(target, result)
}

// ingest parses the response body and writes each sample into the catalog
// and the store. Parsed names are self-registered as gauges; catalog and
// store writes are independently best-effort.
// Params: body response body; worker target worker with compiled masks.
// Returns: recorded sample count and flat name-to-value payload map.
func (e *Engine) ingest(body io.Reader, worker *targetWorker) (int, map[string]float64) {
	target := worker.target
	flat := make(map[string]float64)

	lines, err := ParsePayload(body)
	if err != nil {
		e.logger.Warn(
			"read scrape payload",
			slog.String("job", target.Job),
			slog.String("target", target.Address),
			slog.String("error", err.Error()),
		)
		return 0, flat
	}

	count := 0
	now := time.Now()
	for _, line := range lines {
		if !metricAllowed(line.Name, worker.keepMasks, worker.dropMasks) {
			continue
		}

		labels := mergeLabels(target.Labels, line.Labels, target.HonorLabels)
		if _, err := e.catalog.Register(line.Name, catalog.KindGauge, "", labels); err != nil {
			continue
		}
		if err := e.catalog.Set(line.Name, line.Value, labels); err != nil {
			continue
		}
		if err := e.store.Write(line.Name, catalog.KindGauge, labels, line.Value, now); err != nil {
			e.logger.Warn(
				"store scrape sample",
				slog.String("metric", line.Name),
				slog.String("error", err.Error()),
			)
		}

		flat[line.Name] = line.Value
		count++
	}

	return count, flat
}

// propagate records counters, gauges, and host status after one cycle.
// Params: target scraped target; result cycle result.
// Returns: none.
func (e *Engine) propagate(target Target, result Result) {
	targetLabels := []catalog.Label{
		{Name: "job", Value: target.Job},
		{Name: "target", Value: target.Address},
	}

	e.mustAdd(MetricScrapeTotal, 1, nil)
	e.mustObserve(MetricScrapeDuration, result.Latency.Seconds(), nil)
	e.mustSet(MetricResponseTime, result.Latency.Seconds(), targetLabels)

	checkedAt := time.Now()
	if result.Success() {
		e.mustAdd(MetricScrapeSuccess, 1, nil)
		e.mustSet(MetricUp, 1, targetLabels)
		e.updateHostStatus(target, hostStatusFromFlat(result.Flat, checkedAt))
		return
	}

	e.mustAdd(MetricScrapeFailures, 1, nil)
	e.mustSet(MetricUp, 0, targetLabels)
	e.updateHostStatus(target, hostStatusDown(checkedAt))
	e.logger.Warn(
		"scrape failed",
		slog.String("job", target.Job),
		slog.String("target", target.Address),
		slog.String("outcome", result.Outcome.String()),
		slog.String("error", result.Error),
	)
}

// updateHostStatus pushes the cycle reading to the sink for known hosts.
// Params: target scraped target; status cycle reading.
// Returns: none.
func (e *Engine) updateHostStatus(target Target, status storage.HostStatus) {
	if e.sink == nil || target.HostID == 0 {
		return
	}
	if err := e.sink.UpdateHostStatus(target.HostID, status); err != nil {
		e.logger.Warn(
			"update host status",
			slog.Int64("host_id", target.HostID),
			slog.String("error", err.Error()),
		)
	}
}

// mustAdd increments a pre-registered engine metric.
// Params: name engine metric name; delta increment; labels sample labels.
// Returns: none.
func (e *Engine) mustAdd(name string, delta float64, labels []catalog.Label) {
	if err := e.catalog.Add(name, delta, labels); err != nil {
		e.logger.Error("engine metric add", slog.String("metric", name), slog.String("error", err.Error()))
	}
}

// mustSet sets a pre-registered engine metric.
// Params: name engine metric name; value sample value; labels sample labels.
// Returns: none.
func (e *Engine) mustSet(name string, value float64, labels []catalog.Label) {
	if err := e.catalog.Set(name, value, labels); err != nil {
		e.logger.Error("engine metric set", slog.String("metric", name), slog.String("error", err.Error()))
	}
}

// mustObserve records an observation on a pre-registered engine metric.
// Params: name engine metric name; value observed value; labels sample labels.
// Returns: none.
func (e *Engine) mustObserve(name string, value float64, labels []catalog.Label) {
	if err := e.catalog.Observe(name, value, labels); err != nil {
		e.logger.Error("engine metric observe", slog.String("metric", name), slog.String("error", err.Error()))
	}
}
