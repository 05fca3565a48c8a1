package services

import (
	"context"
	"errors"

	"github.com/codeready-toolchain/docproc/pkg/models"
	"github.com/codeready-toolchain/docproc/pkg/store"
)

// JobService serves job status lookups for the API.
type JobService struct {
	stores *store.Stores
}

// NewJobService creates a job service.
func NewJobService(stores *store.Stores) *JobService {
	if stores == nil {
		panic("stores is required")
	}
	return &JobService{stores: stores}
}

// JobStatus is a job joined with its document's extraction payload.
type JobStatus struct {
	Job        *models.Job
	Extraction map[string]any
}

// Get returns the job and, when available, the document's last-successful
// extraction payload.
func (s *JobService) Get(ctx context.Context, jobID string) (*JobStatus, error) {
	job, err := s.stores.Jobs.Get(ctx, jobID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	status := &JobStatus{Job: job}
	if doc, err := s.stores.Documents.Get(ctx, job.DocumentID); err == nil {
		status.Extraction = doc.ExtractionJSON
	}
	return status, nil
}
