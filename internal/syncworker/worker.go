// Package syncworker drains the sync queues into the CRM, one job at a time per queue.
package syncworker

import (
	"context"
	"errors"
	"time"

	"golang.org/x/time/rate"

	"wash-sync-backend/internal/logger"
	"wash-sync-backend/internal/metrics"
	"wash-sync-backend/internal/queue"
)

// Options tunes a Worker.
type Options struct {
	RatePerSec   float64
	PollInterval time.Duration
	JobTimeout   time.Duration
}

// Worker claims jobs from one queue and hands them to its Processor, strictly one at a time.
type Worker struct {
	queue   queue.Queue
	proc    Processor
	limiter *rate.Limiter
	opts    Options
	log     logger.Logger
}

// NewWorker creates a Worker for q.
func NewWorker(q queue.Queue, proc Processor, opts Options, log logger.Logger) *Worker {
	if opts.RatePerSec <= 0 {
		opts.RatePerSec = 1
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 500 * time.Millisecond
	}
	if opts.JobTimeout <= 0 {
		opts.JobTimeout = time.Minute
	}
	return &Worker{
		queue:   q,
		proc:    proc,
		limiter: rate.NewLimiter(rate.Limit(opts.RatePerSec), 1),
		opts:    opts,
		log:     log,
	}
}

// Name is the name of the drained queue.
func (w *Worker) Name() string {
	return w.queue.Name()
}

// Run drains the queue until ctx is cancelled. A job already claimed is
// always finished.
func (w *Worker) Run(ctx context.Context) {
	w.log.Infof(ctx, "[Worker] %s started", w.Name())
	defer w.log.Infof(context.Background(), "[Worker] %s stopped", w.Name())

	for {
		if err := w.limiter.Wait(ctx); err != nil {
			return
		}

		processed, err := w.RunOnce(ctx)
		if err != nil {
			w.log.Warnf(ctx, "[Worker] %s claim failed: %v", w.Name(), err)
		}
		if processed {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.opts.PollInterval):
		}
	}
}

// RunOnce claims and processes at most one job. It reports whether a job was processed.
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	job, err := w.queue.Claim(ctx)
	if errors.Is(err, queue.ErrEmpty) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	w.process(ctx, job)
	w.reportDepth(ctx)
	return true, nil
}

func (w *Worker) process(ctx context.Context, job *queue.Job) {
	jobCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.opts.JobTimeout)
	defer cancel()
	jobCtx = logger.WithJob(jobCtx, w.Name(), job.Key)

	start := time.Now()
	outcome := "done"
	if err := w.proc.Process(jobCtx, *job); err != nil {
		outcome = "error"
		w.log.Errorf(jobCtx, "[Worker] %s job %s failed: %v", w.Name(), job.Key, err)
	} else {
		w.log.Debugf(jobCtx, "[Worker] %s job %s finished in %s", w.Name(), job.Key, time.Since(start))
	}
	metrics.JobsProcessedTotal.WithLabelValues(w.Name(), outcome).Inc()
}

func (w *Worker) reportDepth(ctx context.Context) {
	sizer, ok := w.queue.(queue.Sizer)
	if !ok {
		return
	}
	if n, err := sizer.Len(ctx); err == nil {
		metrics.QueueDepth.WithLabelValues(w.Name()).Set(float64(n))
	}
}
