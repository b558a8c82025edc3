package scheduler

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingJob struct {
	name  string
	runs  atomic.Int32
	err   error
	block chan struct{}
}

func (j *countingJob) Run() error {
	j.runs.Add(1)
	if j.block != nil {
		<-j.block
	}
	return j.err
}

func (j *countingJob) Name() string {
	return j.name
}

func TestScheduler_RunsJobs(t *testing.T) {
	s := New(zerolog.Nop())
	job := &countingJob{name: "tick"}
	failing := &countingJob{name: "broken", err: errors.New("boom")}

	require.NoError(t, s.AddJob("* * * * * *", job))
	require.NoError(t, s.AddJob("* * * * * *", failing))

	s.Start()
	defer s.Stop()

	assert.Eventually(t, func() bool { return job.runs.Load() >= 1 && failing.runs.Load() >= 1 },
		3*time.Second, 20*time.Millisecond)
}

func TestScheduler_SkipsOverlappingRuns(t *testing.T) {
	s := New(zerolog.Nop())
	job := &countingJob{name: "slow", block: make(chan struct{})}
	require.NoError(t, s.AddJob("* * * * * *", job))

	s.Start()
	require.Eventually(t, func() bool { return job.runs.Load() == 1 }, 3*time.Second, 20*time.Millisecond)

	time.Sleep(1500 * time.Millisecond)
	assert.Equal(t, int32(1), job.runs.Load())

	close(job.block)
	s.Stop()
}

func TestScheduler_InvalidSchedule(t *testing.T) {
	s := New(zerolog.Nop())
	err := s.AddJob("every now and then", &countingJob{name: "bad"})
	assert.Error(t, err)
	assert.Empty(t, s.Jobs())
}

func TestScheduler_JobsAndRunNow(t *testing.T) {
	s := New(zerolog.Nop())
	screening := &countingJob{name: "screening"}
	cleanup := &countingJob{name: "cache_cleanup"}

	require.NoError(t, s.AddJob("0 30 16 * * MON-FRI", screening))
	require.NoError(t, s.AddJob("0 0 3 * * *", cleanup))

	s.Start()
	defer s.Stop()

	jobs := s.Jobs()
	require.Len(t, jobs, 2)
	assert.Equal(t, "cache_cleanup", jobs[0].Name)
	assert.Equal(t, "0 0 3 * * *", jobs[0].Schedule)
	assert.False(t, jobs[0].Next.IsZero())
	assert.Equal(t, "screening", jobs[1].Name)

	require.NoError(t, s.RunNow(screening))
	assert.Equal(t, int32(1), screening.runs.Load())
}
