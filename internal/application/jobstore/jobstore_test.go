package jobstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smilemakc/floorplan/pkg/models"
)

func TestGetReturnsNotFoundAfterTTLUnlessRunning(t *testing.T) {
	store := New(10, time.Minute)
	fakeNow := time.Now()
	store.now = func() time.Time { return fakeNow }

	store.Create("job-a", "user-1")
	store.Patch("job-a", func(j *models.Job) { j.Status = models.JobStatusCompleted })

	fakeNow = fakeNow.Add(2 * time.Minute)
	_, ok := store.Get("job-a")
	assert.False(t, ok, "a completed job older than the TTL must not be retrievable")

	store.Create("job-b", "user-1")
	store.Patch("job-b", func(j *models.Job) { j.Status = models.JobStatusRunning })
	fakeNow = fakeNow.Add(time.Hour)
	_, ok = store.Get("job-b")
	assert.True(t, ok, "a running job must never auto-evict regardless of age")
}

func TestCreateEvictsOldestNonRunningWhenAtCapacity(t *testing.T) {
	store := New(2, time.Hour)
	store.Create("job-1", "u")
	store.Patch("job-1", func(j *models.Job) { j.Status = models.JobStatusRunning })
	store.Create("job-2", "u")

	store.Create("job-3", "u")

	_, ok1 := store.Get("job-1")
	_, ok2 := store.Get("job-2")
	_, ok3 := store.Get("job-3")
	assert.True(t, ok1, "running job must survive eviction pressure")
	assert.False(t, ok2, "oldest non-running job must be evicted to make room")
	assert.True(t, ok3)
}

func TestPatchIsAtomicPerJob(t *testing.T) {
	store := New(10, time.Hour)
	store.Create("job-x", "u")

	updated, ok := store.Patch("job-x", func(j *models.Job) {
		j.Status = models.JobStatusRunning
		j.Progress.Iteration = 2
	})
	require.True(t, ok)
	assert.Equal(t, models.JobStatusRunning, updated.Status)
	assert.Equal(t, 2, updated.Progress.Iteration)
}

func TestListByUserExcludesOtherUsersAndExpired(t *testing.T) {
	store := New(10, time.Minute)
	fakeNow := time.Now()
	store.now = func() time.Time { return fakeNow }

	store.Create("job-1", "alice")
	store.Create("job-2", "bob")
	store.Patch("job-1", func(j *models.Job) { j.Status = models.JobStatusCompleted })

	fakeNow = fakeNow.Add(2 * time.Minute)
	jobs := store.ListByUser("alice")
	assert.Empty(t, jobs)
}
