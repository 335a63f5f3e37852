package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Job is a cache-maintenance task run on a cron schedule
// ⭐ SSOT: 스케줄 작업 인터페이스는 여기서만 정의
type Job interface {
	Name() string

	// Run executes the job; ctx is cancelled when the scheduler stops
	Run(ctx context.Context) error

	// Schedule returns a cron expression with seconds, e.g. "0 */5 * * * *" or "@every 1m"
	Schedule() string
}

// TopicErrors is returned by jobs that process topics independently.
// Topics missing from Failed were refreshed.
type TopicErrors struct {
	Total  int
	Failed map[string]string // topic id → error
}

func (e *TopicErrors) Error() string {
	return fmt.Sprintf("refresh failed for %d of %d topics: %s", len(e.Failed), e.Total, strings.Join(e.Topics(), ", "))
}

// Topics returns the failed topic ids, sorted
func (e *TopicErrors) Topics() []string {
	ids := make([]string, 0, len(e.Failed))
	for id := range e.Failed {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// JobResult is one scheduler run of a job (all retry attempts included)
type JobResult struct {
	JobName      string        `json:"job_name"`
	StartTime    time.Time     `json:"start_time"`
	EndTime      time.Time     `json:"end_time"`
	Duration     time.Duration `json:"duration"`
	Attempts     int           `json:"attempts"`
	Success      bool          `json:"success"`
	Error        string        `json:"error,omitempty"`
	FailedTopics []string      `json:"failed_topics,omitempty"`
}

// resultOf fills the outcome fields from the last attempt's error
func resultOf(name string, start, end time.Time, attempts int, err error) JobResult {
	r := JobResult{
		JobName:   name,
		StartTime: start,
		EndTime:   end,
		Duration:  end.Sub(start),
		Attempts:  attempts,
		Success:   err == nil,
	}
	if err == nil {
		return r
	}
	r.Error = err.Error()
	var te *TopicErrors
	if errors.As(err, &te) {
		r.FailedTopics = te.Topics()
	}
	return r
}

const maxHistory = 100

// JobHistory keeps the last maxHistory results of a job
type JobHistory struct {
	Results []JobResult
}

// AddResult appends a result, dropping the oldest beyond maxHistory
func (h *JobHistory) AddResult(result JobResult) {
	h.Results = append(h.Results, result)
	if len(h.Results) > maxHistory {
		h.Results = h.Results[len(h.Results)-maxHistory:]
	}
}

// GetLatestResults returns the latest N results
func (h *JobHistory) GetLatestResults(n int) []JobResult {
	if n > len(h.Results) {
		n = len(h.Results)
	}
	if n <= 0 {
		return []JobResult{}
	}
	return h.Results[len(h.Results)-n:]
}

// GetFailedResults returns all failed results
func (h *JobHistory) GetFailedResults() []JobResult {
	failed := make([]JobResult, 0)
	for _, result := range h.Results {
		if !result.Success {
			failed = append(failed, result)
		}
	}
	return failed
}

// GetSuccessRate returns the success rate (0.0 - 1.0)
func (h *JobHistory) GetSuccessRate() float64 {
	if len(h.Results) == 0 {
		return 0.0
	}
	return float64(len(h.Results)-len(h.GetFailedResults())) / float64(len(h.Results))
}

// ConsecutiveFailures counts failed runs since the last success
func (h *JobHistory) ConsecutiveFailures() int {
	n := 0
	for i := len(h.Results) - 1; i >= 0 && !h.Results[i].Success; i-- {
		n++
	}
	return n
}

// StaleTopics returns topics that failed in every run since the last success
// 한 번이라도 갱신된 토픽은 제외 (캐시가 최신이 아닐 수 있는 토픽만)
func (h *JobHistory) StaleTopics() []string {
	streak := h.ConsecutiveFailures()
	if streak == 0 {
		return nil
	}

	counts := make(map[string]int)
	for _, r := range h.Results[len(h.Results)-streak:] {
		for _, id := range r.FailedTopics {
			counts[id]++
		}
	}

	var stale []string
	for id, n := range counts {
		if n == streak {
			stale = append(stale, id)
		}
	}
	sort.Strings(stale)
	return stale
}
