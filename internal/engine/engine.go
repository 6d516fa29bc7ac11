package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/IshaanNene/PharmCrawl/internal/config"
	"github.com/IshaanNene/PharmCrawl/internal/types"
)

// State represents the engine's current lifecycle state.
type State int32

const (
	StateIdle     State = 0
	StateRunning  State = 1
	StateStopping State = 2
	StateStopped  State = 3
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Stats tracks crawl statistics.
type Stats struct {
	RequestsSent    atomic.Int64
	RequestsFailed  atomic.Int64
	RequestsRetried atomic.Int64
	ResponsesOK     atomic.Int64
	ResponsesError  atomic.Int64
	PagesSkipped    atomic.Int64
	ItemsScraped    atomic.Int64
	ItemsDropped    atomic.Int64
	URLsEnqueued    atomic.Int64
	URLsFiltered    atomic.Int64
	BytesDownloaded atomic.Int64
	ActiveWorkers   atomic.Int32
	StartTime       time.Time
}

// Snapshot returns a copy of stats safe for reading.
func (s *Stats) Snapshot() map[string]any {
	return map[string]any{
		"requests_sent":    s.RequestsSent.Load(),
		"requests_failed":  s.RequestsFailed.Load(),
		"requests_retried": s.RequestsRetried.Load(),
		"responses_ok":     s.ResponsesOK.Load(),
		"responses_error":  s.ResponsesError.Load(),
		"pages_skipped":    s.PagesSkipped.Load(),
		"items_scraped":    s.ItemsScraped.Load(),
		"items_dropped":    s.ItemsDropped.Load(),
		"urls_enqueued":    s.URLsEnqueued.Load(),
		"urls_filtered":    s.URLsFiltered.Load(),
		"bytes_downloaded": s.BytesDownloaded.Load(),
		"active_workers":   s.ActiveWorkers.Load(),
		"elapsed":          time.Since(s.StartTime).String(),
	}
}

// Fetcher retrieves pages for the engine.
type Fetcher interface {
	Fetch(ctx context.Context, req *types.Request) (*types.Response, error)
	Close() error
}

// Pipeline is the interface for the item processing pipeline.
type Pipeline interface {
	Process(item *types.Item) (*types.Item, error)
}

// Storage is the interface for all storage backends.
type Storage interface {
	Store(items []*types.Item) error
	Close() error
}

// Metrics receives crawl events. A nil Metrics disables reporting.
type Metrics interface {
	PageFetched(tag string, status int, d time.Duration)
	FetchFailed(tag string, retried bool)
	PageSkipped(tag, reason string)
	RecordEmitted()
	RecordDropped()
	FrontierDepth(n int)
}

// Handler turns a fetched page into items and follow-up requests.
// An error skips the page: nothing it returned is used.
type Handler func(resp *types.Response) ([]*types.Item, []*types.Request, error)

// Engine is the core crawler orchestrator.
type Engine struct {
	cfg       *config.Config
	logger    *slog.Logger
	frontier  *Frontier
	dedup     *visited
	scheduler *Scheduler
	fetcher   Fetcher
	pipeline  Pipeline
	storage   Storage
	metrics   Metrics

	state      atomic.Int32
	stats      *Stats
	handlers   map[string]Handler
	itemChan   chan *types.Item
	resultChan chan *types.Item

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.RWMutex
}

// New creates a new Engine with the given configuration.
func New(cfg *config.Config, logger *slog.Logger) *Engine {
	ctx, cancel := context.WithCancel(context.Background())

	e := &Engine{
		cfg:        cfg,
		logger:     logger.With("component", "engine"),
		frontier:   NewFrontier(),
		handlers:   make(map[string]Handler),
		itemChan:   make(chan *types.Item, cfg.Engine.Concurrency*10),
		resultChan: make(chan *types.Item, cfg.Engine.Concurrency*10),
		stats:      &Stats{},
		ctx:        ctx,
		cancel:     cancel,
	}
	if cfg.Engine.DedupURLs {
		e.dedup = newVisited(100_000)
	}

	e.scheduler = NewScheduler(e)
	return e
}

// SetFetcher sets the fetcher used for every request.
func (e *Engine) SetFetcher(f Fetcher) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.fetcher = f
}

// SetPipeline sets the pipeline implementation.
func (e *Engine) SetPipeline(p Pipeline) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pipeline = p
}

// SetStorage sets the storage implementation.
func (e *Engine) SetStorage(s Storage) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.storage = s
}

// SetMetrics sets the metrics sink.
func (e *Engine) SetMetrics(m Metrics) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.metrics = m
}

// Handle registers the handler for responses to requests tagged tag.
func (e *Engine) Handle(tag string, h Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers[tag] = h
}

// AddSeed adds a seed URL to the crawl frontier. The seed URL is recorded on
// the request and inherited by everything discovered from it.
func (e *Engine) AddSeed(rawURL, tag string) error {
	req, err := types.NewRequest(rawURL, tag)
	if err != nil {
		return err
	}
	req.Seed = rawURL
	req.MaxRetries = e.cfg.Engine.MaxRetries
	return e.AddRequest(req)
}

// AddRequest adds a request to the crawl frontier.
func (e *Engine) AddRequest(req *types.Request) error {
	if e.frontier.IsClosed() {
		return types.ErrCrawlStopped
	}
	if domain := req.Domain(); domain == "" {
		e.stats.URLsFiltered.Add(1)
		return fmt.Errorf("%w: %q", types.ErrDomain, req.URLString())
	}
	if e.dedup != nil && !e.dedup.MarkIfNew(req.URLString()) {
		e.stats.URLsFiltered.Add(1)
		return types.ErrDuplicate
	}

	e.frontier.Push(req)
	e.stats.URLsEnqueued.Add(1)
	return nil
}

// Start begins crawling.
func (e *Engine) Start() error {
	if !e.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		return fmt.Errorf("engine is in state %s, cannot start", State(e.state.Load()))
	}
	if e.fetcher == nil {
		e.state.Store(int32(StateIdle))
		return types.ErrNoFetcher
	}

	e.logger.Info("engine starting",
		"concurrency", e.cfg.Engine.Concurrency,
		"max_requests", e.cfg.Engine.MaxRequests,
		"dedup_urls", e.cfg.Engine.DedupURLs,
		"queued", e.frontier.Len(),
	)

	e.stats.StartTime = time.Now()

	e.wg.Add(1)
	go e.processItems()

	e.wg.Add(1)
	go e.storeResults()

	e.scheduler.Start(e.ctx)
	return nil
}

// Wait blocks until all work is done and storage is flushed.
func (e *Engine) Wait() {
	e.scheduler.Wait()
	e.cancel()

	close(e.itemChan)
	e.wg.Wait()
	e.state.Store(int32(StateStopped))

	e.mu.RLock()
	if e.fetcher != nil {
		if err := e.fetcher.Close(); err != nil {
			e.logger.Error("fetcher close error", "error", err)
		}
	}
	e.mu.RUnlock()

	args := []any{"stats", e.stats.Snapshot()}
	if e.dedup != nil {
		args = append(args, "unique_urls", e.dedup.Len())
	}
	e.logger.Info("engine stopped", args...)
}

// Stop gracefully stops the engine. Pages already being processed finish;
// queued requests are abandoned.
func (e *Engine) Stop() {
	if !e.state.CompareAndSwap(int32(StateRunning), int32(StateStopping)) {
		return
	}
	e.frontier.Close()
	abandoned := e.frontier.Drain()
	e.logger.Info("engine stopping", "abandoned", len(abandoned))
	e.cancel()
}

// Stats returns the current crawl statistics.
func (e *Engine) Stats() *Stats {
	return e.stats
}

// GetState returns the current engine state.
func (e *Engine) GetState() State {
	return State(e.state.Load())
}

// processItems runs the pipeline on scraped items.
func (e *Engine) processItems() {
	defer e.wg.Done()
	for item := range e.itemChan {
		if e.pipeline != nil {
			processed, err := e.pipeline.Process(item)
			if err != nil {
				e.stats.ItemsDropped.Add(1)
				if e.metrics != nil {
					e.metrics.RecordDropped()
				}
				e.logger.Warn("pipeline rejected item", "url", item.URL, "error", err)
				continue
			}
			if processed == nil {
				e.stats.ItemsDropped.Add(1)
				if e.metrics != nil {
					e.metrics.RecordDropped()
				}
				e.logger.Debug("pipeline dropped item", "url", item.URL)
				continue
			}
			item = processed
		}
		e.stats.ItemsScraped.Add(1)
		if e.metrics != nil {
			e.metrics.RecordEmitted()
		}
		e.resultChan <- item
	}
	close(e.resultChan)
}

// storeResults persists items from the result channel in batches.
func (e *Engine) storeResults() {
	defer e.wg.Done()
	size := e.cfg.Storage.BatchSize
	if size < 1 {
		size = 1
	}
	batch := make([]*types.Item, 0, size)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		if e.storage != nil {
			if err := e.storage.Store(batch); err != nil {
				e.logger.Error("storage error", "error", err, "batch_size", len(batch))
			}
		}
		batch = batch[:0]
	}

	for item := range e.resultChan {
		batch = append(batch, item)
		if len(batch) >= size {
			flush()
		}
	}
	flush()

	if e.storage != nil {
		if err := e.storage.Close(); err != nil {
			e.logger.Error("storage close error", "error", err)
		}
	}
}
