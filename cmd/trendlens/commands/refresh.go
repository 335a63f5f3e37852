package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/trendlens/internal/scheduler"
	"github.com/wonny/trendlens/internal/scheduler/jobs"
)

// refreshCmd runs the evidence refresh job once
var refreshCmd = &cobra.Command{
	Use:   "refresh [topic-id...]",
	Short: "근거 캐시 갱신 1회 실행",
	Long: `REFRESH_TOPICS(또는 인자로 받은 토픽)의 캐시를 무효화하고
근거를 다시 조립해 캐시를 채웁니다.

Example:
  go run ./cmd/trendlens refresh
  go run ./cmd/trendlens refresh 42 77`,
	RunE: runRefresh,
}

func init() {
	rootCmd.AddCommand(refreshCmd)
}

func newRefreshJob(rt *app) *jobs.EvidenceRefreshJob {
	return jobs.NewEvidenceRefreshJob(rt.cached, rt.service, rt.cfg.Refresh.Topics, rt.cfg.Refresh.Schedule, rt.log)
}

func runRefresh(cmd *cobra.Command, args []string) error {
	rt, err := newApp()
	if err != nil {
		return err
	}
	defer rt.Close()

	if len(args) > 0 {
		rt.cfg.Refresh.Topics = args
	}
	if len(rt.cfg.Refresh.Topics) == 0 {
		return fmt.Errorf("no topics to refresh: set REFRESH_TOPICS or pass topic ids")
	}

	sched := scheduler.New(rt.log, scheduler.WithRetry(0, 0))
	job := newRefreshJob(rt)
	if err := sched.AddJob(job); err != nil {
		return err
	}
	defer sched.Stop()

	result, err := sched.RunNow(job.Name())
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s: %d topics in %s\n", job.Name(), len(rt.cfg.Refresh.Topics), result.Duration.Round(time.Millisecond))
	for _, id := range result.FailedTopics {
		fmt.Fprintf(cmd.OutOrStdout(), "   ❌ topic %s\n", id)
	}
	if !result.Success {
		return fmt.Errorf("refresh failed: %s", result.Error)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "✅ refresh completed")
	return nil
}
