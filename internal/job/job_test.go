package job

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/creamcroissant/orderdesk/internal/repository"
	"github.com/creamcroissant/orderdesk/internal/service"
)

type countingJob struct {
	runs atomic.Int32
	err  error
}

func (j *countingJob) Name() string { return "counting" }

func (j *countingJob) Run(context.Context) error {
	j.runs.Add(1)
	return j.err
}

func TestSchedulerRegister(t *testing.T) {
	s := NewScheduler(nil)
	job := &countingJob{}

	_, err := s.Register("", job)
	require.NoError(t, err)
	assert.Zero(t, s.Len(), "empty spec disables the job")

	_, err = s.Register("not a spec", job)
	assert.Error(t, err)

	_, err = s.Register("@every 1h", nil)
	assert.Error(t, err)

	_, err = s.Register("@every 1h", job)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Len())

	s.Start()
	s.Start()
	<-s.Stop().Done()
	<-s.Stop().Done()
}

func TestSchedulerRunsJobs(t *testing.T) {
	s := NewScheduler(nil)
	job := &countingJob{}
	_, err := s.Register("@every 1s", job)
	require.NoError(t, err)

	s.Start()
	assert.Eventually(t, func() bool { return job.runs.Load() > 0 }, 3*time.Second, 20*time.Millisecond)
	<-s.Stop().Done()

	failing := &countingJob{err: errors.New("boom")}
	s.RunOnce(failing)
	assert.EqualValues(t, 1, failing.runs.Load())
}

type stubWatches struct {
	result service.WatchRefreshResult
	err    error
	calls  int
}

func (s *stubWatches) Watch(context.Context, string, string, string) (*repository.WatchedOrder, error) {
	return nil, nil
}
func (s *stubWatches) Unwatch(context.Context, string) error { return nil }
func (s *stubWatches) List(context.Context) ([]*repository.WatchedOrder, error) {
	return nil, nil
}
func (s *stubWatches) RefreshAll(context.Context) (service.WatchRefreshResult, error) {
	s.calls++
	return s.result, s.err
}

type stubAudits struct {
	retention time.Duration
}

func (s *stubAudits) List(context.Context, repository.AuditFilter) ([]*repository.TransitionAudit, int64, error) {
	return nil, 0, nil
}
func (s *stubAudits) Cleanup(_ context.Context, retention time.Duration) (int64, error) {
	s.retention = retention
	return 3, nil
}

func TestWatchRefreshJob(t *testing.T) {
	watches := &stubWatches{result: service.WatchRefreshResult{Checked: 2, Changed: 1}}
	job := NewWatchRefreshJob(watches, nil)
	assert.Equal(t, "watch.refresh", job.Name())
	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, 1, watches.calls)

	watches.err = errors.New("db locked")
	assert.ErrorContains(t, job.Run(context.Background()), "db locked")

	assert.Error(t, (&WatchRefreshJob{}).Run(context.Background()))
}

func TestAuditCleanupJob(t *testing.T) {
	audits := &stubAudits{}
	job := NewAuditCleanupJob(audits, 48*time.Hour, nil)
	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, 48*time.Hour, audits.retention)
}
