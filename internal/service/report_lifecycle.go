package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/looplab/fsm"

	"github.com/noah-isme/campus-routine-api/internal/models"
	"github.com/noah-isme/campus-routine-api/internal/repository"
)

const (
	reportEventStart  = "start"
	reportEventFinish = "finish"
	reportEventFail   = "fail"
	reportEventRetry  = "retry"
)

var errIllegalReportTransition = errors.New("illegal report job transition")

var reportLifecycleEvents = fsm.Events{
	{Name: reportEventStart, Src: []string{string(models.ReportStatusQueued)}, Dst: string(models.ReportStatusProcessing)},
	{Name: reportEventFinish, Src: []string{string(models.ReportStatusProcessing)}, Dst: string(models.ReportStatusFinished)},
	{Name: reportEventFail, Src: []string{string(models.ReportStatusQueued), string(models.ReportStatusProcessing)}, Dst: string(models.ReportStatusFailed)},
	{Name: reportEventRetry, Src: []string{string(models.ReportStatusProcessing)}, Dst: string(models.ReportStatusQueued)},
}

// nextReportStatus applies event to current and returns the resulting status, or an error
// wrapping errIllegalReportTransition when the lifecycle does not allow it.
func nextReportStatus(ctx context.Context, current models.ReportStatus, event string) (models.ReportStatus, error) {
	machine := fsm.NewFSM(string(current), reportLifecycleEvents, fsm.Callbacks{})
	if err := machine.Event(ctx, event); err != nil {
		return current, fmt.Errorf("%w: %s -> %s: %v", errIllegalReportTransition, current, event, err)
	}
	return models.ReportStatus(machine.Current()), nil
}

type reportJobUpdater interface {
	Update(ctx context.Context, id string, params repository.UpdateReportJobParams) error
}

// reportTransition carries the columns written alongside a status change.
type reportTransition struct {
	progress  int
	resultURL *string
	message   *string
}

// advanceReportJob applies event to job and persists the resulting row. Terminal statuses get a
// finished_at stamp. job is updated in place only after the write succeeds.
func advanceReportJob(ctx context.Context, store reportJobUpdater, job *models.ReportJob, event string, t reportTransition) error {
	next, err := nextReportStatus(ctx, job.Status, event)
	if err != nil {
		return err
	}
	params := repository.UpdateReportJobParams{
		Status:       &next,
		Progress:     &t.progress,
		ResultURL:    t.resultURL,
		ErrorMessage: t.message,
	}
	if next == models.ReportStatusFinished || next == models.ReportStatusFailed {
		now := time.Now().UTC()
		params.FinishedAt = &now
	}
	if err := store.Update(ctx, job.ID, params); err != nil {
		return fmt.Errorf("persist report job %s as %s: %w", job.ID, next, err)
	}
	job.Status = next
	job.Progress = t.progress
	return nil
}
