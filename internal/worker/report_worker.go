package worker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/finledger/api/internal/model"
	"github.com/finledger/api/internal/render"
	"github.com/finledger/api/internal/repository"
	"github.com/finledger/api/internal/stats"
	"github.com/finledger/api/internal/store"
	"github.com/finledger/api/internal/ws"
)

// ReportWorker executes report jobs: it runs the aggregation phases, renders
// the artifact and drives the job record through its transitions. One worker
// invocation is the single writer of its job.
type ReportWorker struct {
	jobs      store.JobStore
	artifacts store.ArtifactStore
	txns      repository.TransactionReader
	engine    *stats.Engine
	renderer  render.Renderer
	hub       *ws.Hub
	now       func() time.Time
}

func NewReportWorker(jobs store.JobStore, artifacts store.ArtifactStore, txns repository.TransactionReader, engine *stats.Engine, renderer render.Renderer, hub *ws.Hub) *ReportWorker {
	return &ReportWorker{
		jobs:      jobs,
		artifacts: artifacts,
		txns:      txns,
		engine:    engine,
		renderer:  renderer,
		hub:       hub,
		now:       time.Now,
	}
}

// Execute runs one job to a terminal state. Any error, panic or cancellation
// leaves the job Failed; the returned error is for the caller's logging only.
func (w *ReportWorker) Execute(ctx context.Context, ownerID, jobID string) (err error) {
	job, err := w.jobs.Get(ctx, ownerID, jobID)
	if err != nil {
		return fmt.Errorf("load report job %s: %w", jobID, err)
	}
	if job.Status.Terminal() {
		// A redelivered job that already finished is not re-run.
		log.Printf("Report job %s already %s, skipping", jobID, job.Status)
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			log.Printf("Report job %s panicked: %v", jobID, r)
			w.failJob(ownerID, jobID, "Report generation failed unexpectedly")
			err = fmt.Errorf("report job %s panicked: %v", jobID, r)
		}
	}()

	if _, err := w.jobs.Update(ctx, ownerID, jobID, func(j *model.ReportJob) error {
		if j.Status == model.JobStatusProcessing {
			// Redelivered after a worker crash. The record is already
			// Processing; the run starts over and progress only moves up.
			return nil
		}
		return j.Start(w.now().UTC())
	}); err != nil {
		return fmt.Errorf("start report job %s: %w", jobID, err)
	}

	req := job.Request
	start, end, err := req.Period()
	if err != nil {
		w.failJob(ownerID, jobID, "Report period is invalid")
		return fmt.Errorf("report job %s has invalid period: %w", jobID, err)
	}

	data := &render.Data{}

	if req.Includes(model.SectionTransactions) {
		if err := w.checkCancelled(ctx, ownerID, jobID); err != nil {
			return err
		}
		w.updateProgress(ctx, ownerID, jobID, 10, "Collecting transactions...")
		data.Transactions, err = w.txns.FetchTransactions(ctx, ownerID, start, end)
		if err != nil {
			return w.failWithCause(ctx, ownerID, jobID, err)
		}
	}

	if req.Includes(model.SectionMonthlyBalance) {
		if err := w.checkCancelled(ctx, ownerID, jobID); err != nil {
			return err
		}
		w.updateProgress(ctx, ownerID, jobID, 30, "Computing monthly balances...")
		data.MonthlyBalances, err = w.engine.MonthlyBalances(ctx, ownerID, start, end)
		if err != nil {
			return w.failWithCause(ctx, ownerID, jobID, err)
		}
	}

	if req.Includes(model.SectionCategoryExpenses) {
		if err := w.checkCancelled(ctx, ownerID, jobID); err != nil {
			return err
		}
		w.updateProgress(ctx, ownerID, jobID, 55, "Ranking expense categories...")
		data.CategoryExpenses, err = w.engine.CategoryExpenses(ctx, ownerID, start, end)
		if err != nil {
			return w.failWithCause(ctx, ownerID, jobID, err)
		}
	}

	if req.Includes(model.SectionTrendAnalysis) {
		if err := w.checkCancelled(ctx, ownerID, jobID); err != nil {
			return err
		}
		w.updateProgress(ctx, ownerID, jobID, 75, "Analyzing trends...")
		data.Trends, err = w.engine.TrendAnalysis(ctx, ownerID, req.TrendMonths)
		if err != nil {
			return w.failWithCause(ctx, ownerID, jobID, err)
		}
	}

	if err := w.checkCancelled(ctx, ownerID, jobID); err != nil {
		return err
	}
	w.updateProgress(ctx, ownerID, jobID, 90, "Rendering report...")
	content, err := w.renderer.Render(ctx, ownerID, &req, data)
	if err != nil {
		return w.failWithCause(ctx, ownerID, jobID, err)
	}

	ref, err := w.artifacts.PutArtifact(ctx, ownerID, jobID, content, w.renderer.ContentType())
	if err != nil {
		return w.failWithCause(ctx, ownerID, jobID, err)
	}

	updated, err := w.jobs.Update(ctx, ownerID, jobID, func(j *model.ReportJob) error {
		return j.Complete(ref, w.renderer.ContentType(), int64(len(content)), w.now().UTC())
	})
	if err != nil {
		w.failJob(ownerID, jobID, "Report could not be finalized")
		return fmt.Errorf("complete report job %s: %w", jobID, err)
	}

	if w.hub != nil {
		w.hub.BroadcastComplete(jobID, fmt.Sprintf("/api/reports/%s/download", jobID), updated.ResultSize)
	}
	log.Printf("Report job %s completed (%d bytes)", jobID, updated.ResultSize)
	return nil
}

func (w *ReportWorker) checkCancelled(ctx context.Context, ownerID, jobID string) error {
	if err := ctx.Err(); err != nil {
		w.failJob(ownerID, jobID, "Report generation cancelled")
		return fmt.Errorf("report job %s cancelled: %w", jobID, err)
	}
	return nil
}

func (w *ReportWorker) updateProgress(ctx context.Context, ownerID, jobID string, percent int, detail string) {
	job, err := w.jobs.Update(ctx, ownerID, jobID, func(j *model.ReportJob) error {
		return j.SetProgress(percent, detail)
	})
	if err != nil {
		log.Printf("Failed to update progress for job %s: %v", jobID, err)
		return
	}
	if w.hub != nil {
		w.hub.BroadcastProgress(jobID, job.Status, job.Progress, job.StatusDetail)
	}
}

// failWithCause records the failure with a sanitized detail and returns the
// underlying error for the caller's log. Internals never leak to pollers.
func (w *ReportWorker) failWithCause(ctx context.Context, ownerID, jobID string, cause error) error {
	detail := "Report generation failed"
	switch {
	case ctx.Err() != nil:
		detail = "Report generation cancelled"
	case errors.Is(cause, repository.ErrUnavailable):
		detail = "Transaction data is unavailable"
	case errors.Is(cause, stats.ErrInvalidMonthCount):
		detail = "Trend month count is invalid"
	}
	log.Printf("Report job %s failed: %v", jobID, cause)
	w.failJob(ownerID, jobID, detail)
	return fmt.Errorf("report job %s: %w", jobID, cause)
}

func (w *ReportWorker) failJob(ownerID, jobID, detail string) {
	// A fresh context: the job context may already be cancelled and the
	// failure must still be recorded.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := w.jobs.Update(ctx, ownerID, jobID, func(j *model.ReportJob) error {
		return j.Fail(detail, w.now().UTC())
	}); err != nil && !errors.Is(err, model.ErrTerminalState) {
		log.Printf("Failed to mark job %s as failed: %v", jobID, err)
		return
	}
	if w.hub != nil {
		w.hub.BroadcastError(jobID, detail)
	}
}
