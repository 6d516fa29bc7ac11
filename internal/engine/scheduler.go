package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/IshaanNene/PharmCrawl/internal/types"
)

// Skip reasons reported to metrics.
const (
	skipStatus    = "status"
	skipEmpty     = "empty_body"
	skipNoHandler = "no_handler"
	skipHandler   = "handler_error"
)

// Scheduler manages worker goroutines that dequeue from the frontier and dispatch fetches.
type Scheduler struct {
	engine       *Engine
	logger       *slog.Logger
	wg           sync.WaitGroup
	idleWorkers  atomic.Int32
	pollInterval time.Duration
	idleInterval time.Duration
}

// NewScheduler creates a new Scheduler.
func NewScheduler(e *Engine) *Scheduler {
	return &Scheduler{
		engine:       e,
		logger:       e.logger.With("component", "scheduler"),
		pollInterval: 50 * time.Millisecond,
		idleInterval: 200 * time.Millisecond,
	}
}

// Start launches the worker pool and idle monitor.
func (s *Scheduler) Start(ctx context.Context) {
	concurrency := s.engine.cfg.Engine.Concurrency
	s.logger.Info("starting worker pool", "workers", concurrency)

	for i := 0; i < concurrency; i++ {
		s.wg.Add(1)
		go s.worker(ctx, i)
	}

	go s.idleMonitor(ctx, concurrency)
}

// Wait blocks until all workers are done.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// idleMonitor closes the frontier once every worker has been idle with an
// empty queue for three consecutive checks.
func (s *Scheduler) idleMonitor(ctx context.Context, concurrency int) {
	ticker := time.NewTicker(s.idleInterval)
	defer ticker.Stop()
	idleStreak := 0

	for {
		select {
		case <-ctx.Done():
			s.engine.frontier.Close()
			return
		case <-ticker.C:
			idle := int(s.idleWorkers.Load())
			queueLen := s.engine.frontier.Len()
			if m := s.engine.metrics; m != nil {
				m.FrontierDepth(queueLen)
			}

			if idle >= concurrency && queueLen == 0 {
				idleStreak++
				if idleStreak >= 3 {
					s.logger.Info("all workers idle and frontier empty, crawl complete")
					s.engine.frontier.Close()
					return
				}
			} else {
				idleStreak = 0
			}
		}
	}
}

// worker is a single crawl worker goroutine.
func (s *Scheduler) worker(ctx context.Context, id int) {
	defer s.wg.Done()
	logger := s.logger.With("worker_id", id)

	for {
		s.idleWorkers.Add(1)

		var req *types.Request
		for {
			req = s.engine.frontier.TryPop()
			if req != nil {
				break
			}
			if s.engine.frontier.IsClosed() {
				s.idleWorkers.Add(-1)
				return
			}
			select {
			case <-ctx.Done():
				s.idleWorkers.Add(-1)
				return
			case <-time.After(s.pollInterval):
			}
		}

		s.idleWorkers.Add(-1)

		s.engine.stats.ActiveWorkers.Add(1)
		s.processRequest(ctx, logger, req)
		s.engine.stats.ActiveWorkers.Add(-1)

		if limit := s.engine.cfg.Engine.MaxRequests; limit > 0 &&
			s.engine.stats.RequestsSent.Load() >= int64(limit) {
			logger.Info("max requests reached, stopping", "max_requests", limit)
			s.engine.Stop()
			return
		}
	}
}

// processRequest fetches one request and dispatches the response to the
// handler registered for its tag.
func (s *Scheduler) processRequest(ctx context.Context, logger *slog.Logger, req *types.Request) {
	logger = logger.With("url", req.URLString(), "tag", req.Tag, "request_id", req.ID, "parent", req.ParentURL)

	s.engine.mu.RLock()
	fetcher := s.engine.fetcher
	handler, hasHandler := s.engine.handlers[req.Tag]
	metrics := s.engine.metrics
	s.engine.mu.RUnlock()

	if fetcher == nil {
		s.engine.stats.RequestsFailed.Add(1)
		logger.Error("request dropped", "error", types.ErrNoFetcher)
		return
	}

	fetchCtx, fetchCancel := context.WithTimeout(ctx, s.engine.cfg.Engine.RequestTimeout)
	defer fetchCancel()

	s.engine.stats.RequestsSent.Add(1)
	resp, err := fetcher.Fetch(fetchCtx, req)
	if err != nil {
		if err := s.handleFetchError(ctx, logger, req, err); err != nil {
			logger.Error("fetch failed permanently", "error", err, "retries", req.RetryCount)
		}
		return
	}

	s.engine.stats.BytesDownloaded.Add(resp.ContentLength)
	if metrics != nil {
		metrics.PageFetched(req.Tag, resp.StatusCode, resp.FetchDuration)
	}
	logger.Debug("fetched", "status", resp.StatusCode, "size", resp.ContentLength, "duration", resp.FetchDuration)

	switch {
	case !resp.IsSuccess():
		s.engine.stats.ResponsesError.Add(1)
		s.skip(logger, metrics, req.Tag, skipStatus, "status", resp.StatusCode)
		return
	case len(resp.Body) == 0:
		s.engine.stats.ResponsesError.Add(1)
		s.skip(logger, metrics, req.Tag, skipEmpty, "error", types.ErrEmptyResponse)
		return
	}
	s.engine.stats.ResponsesOK.Add(1)

	if !hasHandler {
		s.skip(logger, metrics, req.Tag, skipNoHandler, "error", types.ErrNoHandler)
		return
	}

	items, next, err := handler(resp)
	if err != nil {
		s.skip(logger, metrics, req.Tag, skipHandler, "error", err)
		return
	}

	for _, item := range items {
		s.engine.itemChan <- item
	}
	for _, r := range next {
		if err := s.engine.AddRequest(r); err != nil {
			logger.Debug("request not queued", "next", r.URLString(), "error", err)
		}
	}
}

func (s *Scheduler) skip(logger *slog.Logger, metrics Metrics, tag, reason string, args ...any) {
	s.engine.stats.PagesSkipped.Add(1)
	if metrics != nil {
		metrics.PageSkipped(tag, reason)
	}
	logger.Warn("page skipped", append([]any{"reason", reason}, args...)...)
}

// handleFetchError re-queues retryable failures at lower priority until the
// request's retry budget is spent. It returns the error that ends the
// request, wrapping ErrMaxRetries when the budget ran out, or nil once the
// request is queued again.
func (s *Scheduler) handleFetchError(ctx context.Context, logger *slog.Logger, req *types.Request, err error) error {
	s.engine.stats.RequestsFailed.Add(1)

	var fetchErr *types.FetchError
	retryable := errors.As(err, &fetchErr) && fetchErr.IsRetryable()
	retry := retryable && req.RetryCount < req.MaxRetries
	if m := s.engine.metrics; m != nil {
		m.FetchFailed(req.Tag, retry)
	}

	if !retry {
		s.engine.stats.ResponsesError.Add(1)
		if retryable {
			return fmt.Errorf("%w: %w", types.ErrMaxRetries, err)
		}
		return err
	}

	req.RetryCount++
	req.Priority = types.PriorityLow
	s.engine.stats.RequestsRetried.Add(1)
	logger.Warn("retrying request",
		"retry", req.RetryCount,
		"max_retries", req.MaxRetries,
		"error", err,
	)

	if fetchErr.RetryAfter > 0 {
		logger.Info("rate limited, backing off", "retry_after", fetchErr.RetryAfter)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(fetchErr.RetryAfter):
		}
	}
	s.engine.frontier.Push(req)
	return nil
}
