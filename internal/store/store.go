package store

import (
	"context"
	"errors"

	"github.com/finledger/api/internal/model"
)

// ErrNotFound is returned for any lookup that does not match a job owned by
// the requesting user. A job belonging to someone else is indistinguishable
// from one that does not exist.
var ErrNotFound = errors.New("report job not found")

// JobStore is the single source of truth for report job existence,
// ownership and state. Every operation is scoped by owner id.
//
// Concurrency contract: only the worker executing a job calls Update for it,
// so updates for one job never race each other. Get must return a consistent
// snapshot: all fields of one transition observed together.
type JobStore interface {
	// Create persists a freshly submitted job record.
	Create(ctx context.Context, job *model.ReportJob) error

	// Get returns a snapshot of the job, or ErrNotFound.
	Get(ctx context.Context, ownerID, jobID string) (*model.ReportJob, error)

	// Update applies mutate to the current record and publishes the result
	// atomically with respect to readers. The mutated record is returned.
	Update(ctx context.Context, ownerID, jobID string, mutate func(*model.ReportJob) error) (*model.ReportJob, error)
}

// ArtifactStore holds finished report artifacts. The returned ref is the
// opaque handle recorded on the job; only the owning user can resolve it.
type ArtifactStore interface {
	PutArtifact(ctx context.Context, ownerID, jobID string, data []byte, contentType string) (string, error)
	GetArtifact(ctx context.Context, ownerID, ref string) ([]byte, error)
}
