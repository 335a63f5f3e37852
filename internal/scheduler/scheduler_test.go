package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/trendlens/pkg/logger"
)

type funcJob struct {
	name     string
	schedule string
	run      func(ctx context.Context) error
}

func (j *funcJob) Name() string                  { return j.name }
func (j *funcJob) Schedule() string              { return j.schedule }
func (j *funcJob) Run(ctx context.Context) error { return j.run(ctx) }

func TestAddJob_Duplicate(t *testing.T) {
	s := New(logger.Nop())
	job := &funcJob{name: "a", schedule: "0 */5 * * * *", run: func(context.Context) error { return nil }}

	require.NoError(t, s.AddJob(job))
	assert.Error(t, s.AddJob(job))
	assert.Equal(t, []string{"a"}, s.GetAllJobs())
}

func TestAddJob_InvalidSchedule(t *testing.T) {
	s := New(logger.Nop())
	err := s.AddJob(&funcJob{name: "bad", schedule: "not a cron", run: func(context.Context) error { return nil }})
	assert.Error(t, err)
	assert.Empty(t, s.GetAllJobs())
}

func TestRunNow_RetriesThenSucceeds(t *testing.T) {
	s := New(logger.Nop(), WithRetry(2, time.Millisecond))

	var calls atomic.Int32
	require.NoError(t, s.AddJob(&funcJob{name: "flaky", schedule: "@hourly", run: func(context.Context) error {
		if calls.Add(1) < 3 {
			return errors.New("transient")
		}
		return nil
	}}))

	result, err := s.RunNow("flaky")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, int32(3), calls.Load())

	stats := s.GetJobStats()["flaky"]
	assert.Equal(t, 1, stats.TotalRuns)
	assert.Equal(t, 1.0, stats.SuccessRate)
	assert.NotNil(t, stats.LastSuccess)
	assert.Nil(t, stats.LastFailure)
}

func TestRunNow_FailureRecorded(t *testing.T) {
	s := New(logger.Nop(), WithRetry(1, time.Millisecond))
	require.NoError(t, s.AddJob(&funcJob{name: "broken", schedule: "@hourly", run: func(context.Context) error {
		return errors.New("upstream down")
	}}))

	result, err := s.RunNow("broken")
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, "upstream down", result.Error)

	history, err := s.GetJobHistory("broken")
	require.NoError(t, err)
	require.Len(t, history.Results, 1)
	assert.Len(t, history.GetFailedResults(), 1)

	_, err = s.RunNow("missing")
	assert.Error(t, err)
}

func TestStop_CancelsRunningJob(t *testing.T) {
	s := New(logger.Nop(), WithRetry(3, time.Hour))

	started := make(chan struct{})
	require.NoError(t, s.AddJob(&funcJob{name: "long", schedule: "@hourly", run: func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}}))

	s.Start()
	require.NoError(t, s.RunJob("long"))
	<-started

	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not cancel the running job")
	}

	history, err := s.GetJobHistory("long")
	require.NoError(t, err)
	require.Len(t, history.Results, 1)
	assert.False(t, history.Results[0].Success)
	assert.Contains(t, history.Results[0].Error, "context canceled")
}

func TestRemoveJob(t *testing.T) {
	s := New(logger.Nop())
	require.NoError(t, s.AddJob(&funcJob{name: "a", schedule: "@hourly", run: func(context.Context) error { return nil }}))

	require.NoError(t, s.RemoveJob("a"))
	assert.Empty(t, s.GetAllJobs())
	assert.Error(t, s.RemoveJob("a"))
}

func TestJobHistory_Bounded(t *testing.T) {
	h := &JobHistory{}
	for i := 0; i < maxHistory+20; i++ {
		h.AddResult(JobResult{Success: i%2 == 0})
	}

	assert.Len(t, h.Results, maxHistory)
	assert.Len(t, h.GetLatestResults(5), 5)
	assert.InDelta(t, 0.5, h.GetSuccessRate(), 1e-9)
	assert.Empty(t, (&JobHistory{}).GetLatestResults(3))
}

func TestRunNow_TopicErrorsRecorded(t *testing.T) {
	s := New(logger.Nop(), WithRetry(2, time.Millisecond))

	var calls atomic.Int32
	require.NoError(t, s.AddJob(&funcJob{name: "refresh", schedule: "@hourly", run: func(context.Context) error {
		calls.Add(1)
		return &TopicErrors{Total: 3, Failed: map[string]string{"9": "load: timeout", "4": "forecast section: 502"}}
	}}))

	result, err := s.RunNow("refresh")
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, 3, result.Attempts)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, []string{"4", "9"}, result.FailedTopics)
	assert.Contains(t, result.Error, "2 of 3 topics: 4, 9")
}

func TestJobHistory_StaleTopics(t *testing.T) {
	h := &JobHistory{}
	assert.Zero(t, h.ConsecutiveFailures())
	assert.Nil(t, h.StaleTopics())

	h.AddResult(JobResult{Success: false, FailedTopics: []string{"1"}})
	h.AddResult(JobResult{Success: true})
	h.AddResult(JobResult{Success: false, FailedTopics: []string{"2", "3"}})
	h.AddResult(JobResult{Success: false, FailedTopics: []string{"3", "5"}})

	assert.Equal(t, 2, h.ConsecutiveFailures())
	assert.Equal(t, []string{"3"}, h.StaleTopics(), "2 and 5 refreshed in one of the failing runs")

	h.AddResult(JobResult{Success: true})
	assert.Zero(t, h.ConsecutiveFailures())
	assert.Nil(t, h.StaleTopics())
}

func TestResultOf_WrappedTopicErrors(t *testing.T) {
	start := time.Date(2024, 3, 5, 6, 0, 0, 0, time.UTC)
	err := fmt.Errorf("run: %w", &TopicErrors{Total: 2, Failed: map[string]string{"42": "x"}})

	r := resultOf("evidence_refresh", start, start.Add(time.Second), 1, err)
	assert.False(t, r.Success)
	assert.Equal(t, time.Second, r.Duration)
	assert.Equal(t, []string{"42"}, r.FailedTopics)

	ok := resultOf("evidence_refresh", start, start, 1, nil)
	assert.True(t, ok.Success)
	assert.Empty(t, ok.Error)
	assert.Nil(t, ok.FailedTopics)
}
