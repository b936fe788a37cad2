package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/finledger/api/internal/model"
	"github.com/finledger/api/internal/render"
	"github.com/finledger/api/internal/store"
)

var (
	// ErrNotReady is returned when a download is attempted before the job
	// reaches Completed.
	ErrNotReady = errors.New("report not ready")

	// ErrInvalidPeriod is returned for a request whose start date falls
	// after its end date.
	ErrInvalidPeriod = errors.New("start date is after end date")
)

// DefaultTrendMonths is used when a request does not specify a window.
const DefaultTrendMonths = 6

// Dispatcher hands a queued job to an asynchronous execution context. It
// must not block on job completion.
type Dispatcher interface {
	Dispatch(ctx context.Context, job *model.ReportJob) error
}

// ReportService is the submission and read facade for report jobs. All
// operations are scoped by owner; a foreign job id behaves exactly like a
// missing one.
type ReportService struct {
	jobs       store.JobStore
	artifacts  store.ArtifactStore
	dispatcher Dispatcher
	renderer   render.Renderer
	now        func() time.Time
}

func NewReportService(jobs store.JobStore, artifacts store.ArtifactStore, dispatcher Dispatcher, renderer render.Renderer) *ReportService {
	return &ReportService{
		jobs:       jobs,
		artifacts:  artifacts,
		dispatcher: dispatcher,
		renderer:   renderer,
		now:        time.Now,
	}
}

// Submit creates a Queued job record and dispatches the generation work.
// It returns as soon as the record is stored; completion is observed by
// polling. Every call creates a distinct job.
func (s *ReportService) Submit(ctx context.Context, ownerID string, req *model.ReportRequest) (*model.ReportSubmitResponse, error) {
	start, end, err := req.Period()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPeriod, err)
	}
	if end.Before(start) {
		return nil, ErrInvalidPeriod
	}
	if req.TrendMonths == 0 {
		req.TrendMonths = DefaultTrendMonths
	}

	job := &model.ReportJob{
		ID:        uuid.New().String(),
		OwnerID:   ownerID,
		Status:    model.JobStatusQueued,
		Request:   *req,
		CreatedAt: s.now().UTC(),
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("create report job: %w", err)
	}

	if err := s.dispatcher.Dispatch(ctx, job); err != nil {
		// The record exists already; it must not linger as Queued.
		if _, failErr := s.jobs.Update(ctx, ownerID, job.ID, func(j *model.ReportJob) error {
			return j.Fail("Report generation could not be scheduled", s.now().UTC())
		}); failErr != nil {
			log.Printf("Failed to mark undispatched job %s as failed: %v", job.ID, failErr)
		}
		return nil, fmt.Errorf("dispatch report job: %w", err)
	}

	return &model.ReportSubmitResponse{
		JobID:     job.ID,
		Status:    job.Status,
		CreatedAt: job.CreatedAt,
	}, nil
}

// GetStatus returns the poller's view of a job.
func (s *ReportService) GetStatus(ctx context.Context, ownerID, jobID string) (*model.ReportStatusResponse, error) {
	job, err := s.jobs.Get(ctx, ownerID, jobID)
	if err != nil {
		return nil, err
	}

	resp := &model.ReportStatusResponse{
		JobID:        job.ID,
		Status:       job.Status,
		Progress:     job.Progress,
		StatusDetail: job.StatusDetail,
		CreatedAt:    job.CreatedAt,
		StartedAt:    job.StartedAt,
		CompletedAt:  job.CompletedAt,
		ErrorDetail:  job.ErrorDetail,
	}
	if job.Status == model.JobStatusCompleted {
		resp.DownloadURL = fmt.Sprintf("/api/reports/%s/download", job.ID)
		resp.ResultSize = job.ResultSize
	}
	return resp, nil
}

// Download resolves a completed job's artifact. A job that is not Completed
// yields ErrNotReady; a job the owner cannot see yields store.ErrNotFound.
func (s *ReportService) Download(ctx context.Context, ownerID, jobID string) (*model.ReportDownload, error) {
	job, err := s.jobs.Get(ctx, ownerID, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != model.JobStatusCompleted {
		return nil, ErrNotReady
	}

	content, err := s.artifacts.GetArtifact(ctx, ownerID, job.ResultRef)
	if err != nil {
		return nil, err
	}

	return &model.ReportDownload{
		Content:     content,
		ContentType: job.ContentType,
		FileName:    s.renderer.FileName(job.ID),
		Size:        job.ResultSize,
	}, nil
}
