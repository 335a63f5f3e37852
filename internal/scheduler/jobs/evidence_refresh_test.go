package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/trendlens/internal/contracts"
	"github.com/wonny/trendlens/internal/scheduler"
	"github.com/wonny/trendlens/pkg/logger"
)

type recorder struct {
	mu          sync.Mutex
	invalidated []contracts.TopicID
	loaded      []contracts.TopicID
	failTopic   contracts.TopicID
}

func (r *recorder) Invalidate(ctx context.Context, id contracts.TopicID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.invalidated = append(r.invalidated, id)
	return nil
}

func (r *recorder) Load(ctx context.Context, id contracts.TopicID) (*contracts.TopicEvidence, error) {
	r.mu.Lock()
	r.loaded = append(r.loaded, id)
	r.mu.Unlock()

	ev := &contracts.TopicEvidence{TopicID: id}
	ev.Sections.Topic.State = contracts.SectionReady
	ev.Sections.TimeSeries.State = contracts.SectionReady
	ev.Sections.Forecast.State = contracts.SectionReady
	if id == r.failTopic {
		ev.Sections.Forecast = contracts.Section{State: contracts.SectionError, Error: "timed out"}
	}
	return ev, nil
}

func TestEvidenceRefreshJob_RefreshesAllTopics(t *testing.T) {
	rec := &recorder{}
	job := NewEvidenceRefreshJob(rec, rec, []string{"1", "2", "3"}, "", logger.Nop())

	assert.Equal(t, "evidence_refresh", job.Name())
	assert.Equal(t, "0 */5 * * * *", job.Schedule())

	require.NoError(t, job.Run(context.Background()))
	assert.ElementsMatch(t, []contracts.TopicID{"1", "2", "3"}, rec.invalidated)
	assert.ElementsMatch(t, []contracts.TopicID{"1", "2", "3"}, rec.loaded)
}

func TestEvidenceRefreshJob_SectionErrorFailsRun(t *testing.T) {
	rec := &recorder{failTopic: "2"}
	job := NewEvidenceRefreshJob(rec, rec, []string{"1", "2", "3"}, "@every 1m", logger.Nop())

	err := job.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 3")
	assert.Len(t, rec.loaded, 3, "one failure does not stop the others")

	var te *scheduler.TopicErrors
	require.True(t, errors.As(err, &te))
	assert.Equal(t, []string{"2"}, te.Topics())
	assert.Contains(t, te.Failed["2"], "forecast section: timed out")
}

func TestEvidenceRefreshJob_FailedTopicsReachHistory(t *testing.T) {
	rec := &recorder{failTopic: "7"}
	job := NewEvidenceRefreshJob(rec, rec, []string{"7", "8"}, "", logger.Nop())

	s := scheduler.New(logger.Nop(), scheduler.WithRetry(1, 0))
	require.NoError(t, s.AddJob(job))
	defer s.Stop()

	result, err := s.RunNow(job.Name())
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, 2, result.Attempts)
	assert.Equal(t, []string{"7"}, result.FailedTopics)

	stats := s.GetJobStats()[job.Name()]
	assert.Equal(t, 1, stats.ConsecutiveFailures)
	assert.Equal(t, []string{"7"}, stats.StaleTopics)
}

type failingLoader struct{}

func (failingLoader) Load(ctx context.Context, id contracts.TopicID) (*contracts.TopicEvidence, error) {
	return nil, errors.New("topic not found")
}

func TestEvidenceRefreshJob_NilInvalidator(t *testing.T) {
	job := NewEvidenceRefreshJob(nil, failingLoader{}, []string{"x"}, "", logger.Nop())
	assert.Error(t, job.Run(context.Background()))
}

func TestEvidenceRefreshJob_Cancelled(t *testing.T) {
	rec := &recorder{}
	job := NewEvidenceRefreshJob(rec, rec, []string{"1"}, "", logger.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// 취소된 컨텍스트: 실패로 보고
	assert.Error(t, job.Run(ctx))
}
