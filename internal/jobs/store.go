package jobs

import (
	"sync"
	"time"

	"github.com/voxweave/voxweave/internal/apperr"
)

// Store keeps jobs in memory. Values are copied in and out so callers can
// never mutate stored state without going through Update.
//
// Safe for concurrent use.
type Store struct {
	mu   sync.RWMutex
	jobs map[string]Job
}

// NewStore returns an empty job store.
func NewStore() *Store {
	return &Store{jobs: make(map[string]Job)}
}

// Create stores a new job.
func (s *Store) Create(job Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

// Get retrieves a job by id.
func (s *Store) Get(jobID string) (Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return Job{}, apperr.JobNotFound(jobID)
	}
	return job, nil
}

// Update replaces an existing job's state.
func (s *Store) Update(job Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

// List returns all jobs in unspecified order.
func (s *Store) List() []Job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		out = append(out, job)
	}
	return out
}

// CleanupOldJobs removes jobs created before now-maxAge and returns how many
// were removed.
func (s *Store) CleanupOldJobs(maxAge time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().UTC().Add(-maxAge)
	removed := 0
	for id, job := range s.jobs {
		if job.CreatedAt.Before(cutoff) {
			delete(s.jobs, id)
			removed++
		}
	}
	return removed
}
