// Package jobstore is the in-memory, TTL-evicted, capacity-bounded map of
// jobId to Job.
package jobstore

import (
	"sync"
	"time"

	"github.com/smilemakc/floorplan/pkg/models"
)

// Store holds every in-flight and recently-finished job. A job retrieved
// after its TTL with a terminal status returns not-found; a running job
// never auto-evicts.
type Store struct {
	mu          sync.Mutex
	jobs        map[string]*models.Job
	order       []string // insertion order, oldest first, for capacity eviction
	maxSessions int
	ttl         time.Duration
	now         func() time.Time
}

// New builds a Store bounded at maxSessions entries with the given TTL for
// terminal jobs.
func New(maxSessions int, ttl time.Duration) *Store {
	if maxSessions <= 0 {
		maxSessions = 1000
	}
	return &Store{
		jobs:        make(map[string]*models.Job),
		maxSessions: maxSessions,
		ttl:         ttl,
		now:         time.Now,
	}
}

// Create inserts a new pending job. If the store is at capacity, the oldest
// non-running job is evicted first (tie-broken by createdAt, which
// insertion order already preserves).
func (s *Store) Create(jobId, userId string) *models.Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	job := &models.Job{
		JobID:     jobId,
		UserID:    userId,
		Status:    models.JobStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if len(s.jobs) >= s.maxSessions {
		s.evictOldestNonRunningLocked()
	}

	s.jobs[jobId] = job
	s.order = append(s.order, jobId)
	return job
}

func (s *Store) evictOldestNonRunningLocked() {
	for i, id := range s.order {
		job, ok := s.jobs[id]
		if !ok {
			continue
		}
		if job.Status == models.JobStatusRunning {
			continue
		}
		delete(s.jobs, id)
		s.order = append(append([]string{}, s.order[:i]...), s.order[i+1:]...)
		return
	}
}

// Get returns the job for jobId, or (nil, false) if it does not exist or
// has aged out of the TTL (unless it is still running).
func (s *Store) Get(jobId string) (*models.Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobId]
	if !ok {
		return nil, false
	}
	if s.isExpiredLocked(job) {
		return nil, false
	}
	clone := *job
	return &clone, true
}

func (s *Store) isExpiredLocked(job *models.Job) bool {
	if job.Status == models.JobStatusRunning {
		return false
	}
	if s.ttl <= 0 {
		return false
	}
	return s.now().Sub(job.CreatedAt) > s.ttl
}

// Patch applies fn to the job under lock and returns the updated snapshot.
// It is the only mutation path, so every field change is atomic wrt a
// single job entry.
func (s *Store) Patch(jobId string, fn func(job *models.Job)) (*models.Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobId]
	if !ok || s.isExpiredLocked(job) {
		return nil, false
	}
	fn(job)
	job.UpdatedAt = s.now()
	clone := *job
	return &clone, true
}

// Delete removes jobId unconditionally.
func (s *Store) Delete(jobId string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, jobId)
	for i, id := range s.order {
		if id == jobId {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// ListByUser returns every non-expired job owned by userId.
func (s *Store) ListByUser(userId string) []*models.Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*models.Job
	for _, id := range s.order {
		job, ok := s.jobs[id]
		if !ok || job.UserID != userId || s.isExpiredLocked(job) {
			continue
		}
		clone := *job
		out = append(out, &clone)
	}
	return out
}
