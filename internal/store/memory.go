package store

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/finledger/api/internal/model"
)

// MemoryStore is an in-memory JobStore and ArtifactStore for tests and
// single-process runs. Records are copied on every read and write so a
// reader never observes a half-applied transition.
type MemoryStore struct {
	mu        sync.RWMutex
	jobs      map[string]*model.ReportJob
	artifacts map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs:      make(map[string]*model.ReportJob),
		artifacts: make(map[string][]byte),
	}
}

func (s *MemoryStore) Create(ctx context.Context, job *model.ReportJob) error {
	if job.ID == "" || job.OwnerID == "" {
		return fmt.Errorf("job id and owner id are required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	record := cloneJob(job)
	s.jobs[memKey(job.OwnerID, job.ID)] = record
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, ownerID, jobID string) (*model.ReportJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[memKey(ownerID, jobID)]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneJob(job), nil
}

func (s *MemoryStore) Update(ctx context.Context, ownerID, jobID string, mutate func(*model.ReportJob) error) (*model.ReportJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[memKey(ownerID, jobID)]
	if !ok {
		return nil, ErrNotFound
	}
	updated := cloneJob(job)
	if err := mutate(updated); err != nil {
		return nil, err
	}
	s.jobs[memKey(ownerID, jobID)] = updated
	return cloneJob(updated), nil
}

func (s *MemoryStore) PutArtifact(ctx context.Context, ownerID, jobID string, data []byte, contentType string) (string, error) {
	ref := memKey(ownerID, jobID)
	s.mu.Lock()
	defer s.mu.Unlock()
	buf := make([]byte, len(data))
	copy(buf, data)
	s.artifacts[ref] = buf
	return ref, nil
}

func (s *MemoryStore) GetArtifact(ctx context.Context, ownerID, ref string) ([]byte, error) {
	if !strings.HasPrefix(ref, ownerID+"/") {
		return nil, ErrNotFound
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.artifacts[ref]
	if !ok {
		return nil, ErrNotFound
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	return buf, nil
}

func cloneJob(job *model.ReportJob) *model.ReportJob {
	clone := *job
	if job.StartedAt != nil {
		t := *job.StartedAt
		clone.StartedAt = &t
	}
	if job.CompletedAt != nil {
		t := *job.CompletedAt
		clone.CompletedAt = &t
	}
	clone.Request.Sections = append([]model.ReportSection(nil), job.Request.Sections...)
	return &clone
}

func memKey(ownerID, jobID string) string {
	return ownerID + "/" + jobID
}

var (
	_ JobStore      = (*MemoryStore)(nil)
	_ ArtifactStore = (*MemoryStore)(nil)
)
