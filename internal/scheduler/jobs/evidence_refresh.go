package jobs

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/wonny/trendlens/internal/contracts"
	"github.com/wonny/trendlens/internal/scheduler"
	"github.com/wonny/trendlens/pkg/logger"
)

// refreshConcurrency bounds parallel topic loads per run
const refreshConcurrency = 4

// Invalidator drops cached upstream payloads for a topic
type Invalidator interface {
	Invalidate(ctx context.Context, id contracts.TopicID) error
}

// Loader assembles evidence for a topic (populating the cache on the way)
type Loader interface {
	Load(ctx context.Context, id contracts.TopicID) (*contracts.TopicEvidence, error)
}

// EvidenceRefreshJob prewarms the evidence cache for configured topics
// ⭐ SSOT: 캐시 프리워밍 스케줄은 이 Job에서만
type EvidenceRefreshJob struct {
	invalidator Invalidator
	loader      Loader
	topics      []contracts.TopicID
	schedule    string
	logger      *logger.Logger
}

// NewEvidenceRefreshJob creates a new refresh job
func NewEvidenceRefreshJob(inv Invalidator, loader Loader, topics []string, schedule string, log *logger.Logger) *EvidenceRefreshJob {
	ids := make([]contracts.TopicID, 0, len(topics))
	for _, t := range topics {
		ids = append(ids, contracts.TopicID(t))
	}
	if schedule == "" {
		schedule = "0 */5 * * * *"
	}
	return &EvidenceRefreshJob{
		invalidator: inv,
		loader:      loader,
		topics:      ids,
		schedule:    schedule,
		logger:      log,
	}
}

// Name returns the job name
func (j *EvidenceRefreshJob) Name() string {
	return "evidence_refresh"
}

// Schedule returns the cron schedule (default every 5 minutes)
func (j *EvidenceRefreshJob) Schedule() string {
	return j.schedule
}

// Run invalidates and reloads every configured topic
// 토픽 하나의 실패는 다른 토픽을 막지 않음; 실패가 있으면 에러 반환(재시도 대상)
func (j *EvidenceRefreshJob) Run(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	j.logger.WithField("topics", len(j.topics)).Debug("Starting evidence refresh")

	var mu sync.Mutex
	failed := make(map[string]string)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(refreshConcurrency)

	for _, id := range j.topics {
		id := id
		g.Go(func() error {
			if err := j.refresh(gctx, id); err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				mu.Lock()
				failed[string(id)] = err.Error()
				mu.Unlock()
				j.logger.WithError(err).WithTopic(string(id)).Warn("Evidence refresh failed")
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	if len(failed) > 0 {
		return &scheduler.TopicErrors{Total: len(j.topics), Failed: failed}
	}

	j.logger.WithField("topics", len(j.topics)).Info("Evidence refresh completed")
	return nil
}

func (j *EvidenceRefreshJob) refresh(ctx context.Context, id contracts.TopicID) error {
	if j.invalidator != nil {
		if err := j.invalidator.Invalidate(ctx, id); err != nil {
			return fmt.Errorf("invalidate: %w", err)
		}
	}

	ev, err := j.loader.Load(ctx, id)
	if err != nil {
		return fmt.Errorf("load: %w", err)
	}

	// 섹션 단위 실패도 갱신 실패로 집계
	for name, sec := range map[string]contracts.Section{
		"topic":      ev.Sections.Topic,
		"timeseries": ev.Sections.TimeSeries,
		"forecast":   ev.Sections.Forecast,
	} {
		if sec.State == contracts.SectionError {
			return fmt.Errorf("%s section: %s", name, sec.Error)
		}
	}
	return nil
}
