package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/campus-routine-api/internal/models"
	"github.com/noah-isme/campus-routine-api/pkg/jobs"
)

// ReportWorker renders queued export jobs. It is the jobs.Handler behind the "reports" queue.
type ReportWorker struct {
	repo       reportJobStore
	exporter   exportGenerator
	metrics    *MetricsService
	logger     *zap.Logger
	maxRetries int
}

// NewReportWorker constructs a worker. maxRetries must match the queue's MaxRetries so the
// final attempt is the one that marks the job FAILED.
func NewReportWorker(repo reportJobStore, exporter exportGenerator, maxRetries int, logger *zap.Logger) *ReportWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &ReportWorker{repo: repo, exporter: exporter, logger: logger, maxRetries: maxRetries}
}

// WithMetrics counts terminal job outcomes on m.
func (w *ReportWorker) WithMetrics(m *MetricsService) *ReportWorker {
	w.metrics = m
	return w
}

// Handle renders one job. Jobs no longer QUEUED (finished, failed or picked up twice) are skipped.
// A render error is returned so the queue schedules another attempt.
func (w *ReportWorker) Handle(ctx context.Context, task jobs.Job) error {
	job, err := w.repo.GetByID(ctx, task.ID)
	if err != nil {
		return fmt.Errorf("load report job %s: %w", task.ID, err)
	}
	log := w.logger.Sugar().With("job_id", job.ID, "type", job.Type, "attempt", task.Attempt)

	if err := advanceReportJob(ctx, w.repo, job, reportEventStart, reportTransition{progress: 10}); err != nil {
		if errors.Is(err, errIllegalReportTransition) {
			log.Infow("skipping report job", "status", job.Status)
			return nil
		}
		return err
	}

	result, renderErr := w.exporter.Generate(ctx, job)
	if renderErr != nil {
		w.settleFailure(ctx, job, task.Attempt, renderErr)
		return renderErr
	}

	url := result.URL
	cleared := ""
	if err := advanceReportJob(ctx, w.repo, job, reportEventFinish, reportTransition{progress: 100, resultURL: &url, message: &cleared}); err != nil {
		log.Warnw("failed to mark job finished", "error", err)
		return err
	}
	w.metrics.RecordReportJob(job.Type, job.Status)
	log.Infow("report job finished", "file", result.RelativePath)
	return nil
}

// settleFailure puts the job back to QUEUED while attempts remain, otherwise marks it FAILED.
func (w *ReportWorker) settleFailure(ctx context.Context, job *models.ReportJob, attempt int, cause error) {
	msg := cause.Error()
	event, progress := reportEventRetry, 0
	if attempt >= w.maxRetries {
		event, progress = reportEventFail, 100
	}
	if err := advanceReportJob(ctx, w.repo, job, event, reportTransition{progress: progress, message: &msg}); err != nil {
		w.logger.Sugar().Warnw("failed to record report job failure", "job_id", job.ID, "event", event, "error", err)
		return
	}
	if job.Status == models.ReportStatusFailed {
		w.metrics.RecordReportJob(job.Type, job.Status)
	}
}
