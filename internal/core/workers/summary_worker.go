package workers

import (
	"context"
	"time"

	"github.com/comitanigiacomo/kanso-habits/internal/core/calendar"
	"github.com/comitanigiacomo/kanso-habits/internal/logger"
	"github.com/comitanigiacomo/kanso-habits/internal/metrics"
)

const (
	defaultQueueSize = 100
	jobTimeout       = 10 * time.Second
)

// SummaryRefresher recomputes and stores one month summary.
type SummaryRefresher interface {
	RefreshMonthSummary(ctx context.Context, userID string, key calendar.MonthKey) error
}

type SummaryJob struct {
	UserID string
	Month  calendar.MonthKey
}

// SummaryWorker warms the month summary cache after completion writes so the
// next stats read is served without recomputing.
type SummaryWorker struct {
	refresher SummaryRefresher
	jobs      chan SummaryJob
	done      chan struct{}
}

func NewSummaryWorker(refresher SummaryRefresher, queueSize int) *SummaryWorker {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &SummaryWorker{
		refresher: refresher,
		jobs:      make(chan SummaryJob, queueSize),
		done:      make(chan struct{}),
	}
}

func (w *SummaryWorker) Start(ctx context.Context) {
	go func() {
		defer close(w.done)

		log := logger.With("component", "summary-worker")
		log.Info("summary worker started")
		for {
			select {
			case job := <-w.jobs:
				w.processJob(ctx, job)
			case <-ctx.Done():
				log.Info("summary worker shutting down", "pending", len(w.jobs))
				return
			}
		}
	}()
}

// Done is closed once the worker loop has returned.
func (w *SummaryWorker) Done() <-chan struct{} {
	return w.done
}

// Enqueue never blocks; when the queue is full the job is dropped and the
// summary is computed on the next read instead.
func (w *SummaryWorker) Enqueue(userID string, key calendar.MonthKey) {
	select {
	case w.jobs <- SummaryJob{UserID: userID, Month: key}:
	default:
		metrics.SummaryJobs.WithLabelValues("dropped").Inc()
		logger.Warn("summary worker queue full, dropping job", "user", userID, "month", key.String())
	}
}

func (w *SummaryWorker) processJob(ctx context.Context, job SummaryJob) {
	jobCtx, cancel := context.WithTimeout(ctx, jobTimeout)
	defer cancel()

	if err := w.refresher.RefreshMonthSummary(jobCtx, job.UserID, job.Month); err != nil {
		metrics.SummaryJobs.WithLabelValues("failed").Inc()
		logger.Error("summary refresh failed", "user", job.UserID, "month", job.Month.String(), "err", err)
		return
	}

	metrics.SummaryJobs.WithLabelValues("processed").Inc()
	logger.Debug("summary refreshed", "user", job.UserID, "month", job.Month.String())
}
