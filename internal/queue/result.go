package queue

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"time"

	"github.com/pineking/kaldi-git/internal/utils"
)

// statusRe matches the wrapper trailer, e.g.
// "# Finished at Tue Mar 3 10:01:02 UTC 2026 with status 0".
var statusRe = regexp.MustCompile(`with status (-?\d+)`)

// TaskResult is one task's recovered exit status.
type TaskResult struct {
	Index  int
	Status int
	Log    string
}

// JobResult aggregates per-task exit statuses into a verdict.
type JobResult struct {
	Tasks      []TaskResult
	NumFailed  int
	LogPattern string // unexpanded log path, used for multi-task diagnostics
}

// Success reports whether every task finished with status 0.
func (r *JobResult) Success() bool { return r.NumFailed == 0 }

// Summary renders the verdict for the caller. A single failed task is named
// directly; multiple failures report a count against the generalized log
// pattern instead of enumerating every path.
func (r *JobResult) Summary() string {
	switch {
	case r.NumFailed == 0:
		if len(r.Tasks) == 1 {
			return fmt.Sprintf("job finished with status 0, log is in %s", r.Tasks[0].Log)
		}
		return fmt.Sprintf("all %d tasks finished with status 0", len(r.Tasks))
	case len(r.Tasks) == 1:
		return fmt.Sprintf("job failed with status %d, log is in %s", r.Tasks[0].Status, r.Tasks[0].Log)
	default:
		return fmt.Sprintf("%d / %d tasks failed, log is in %s", r.NumFailed, len(r.Tasks), r.LogPattern)
	}
}

// Aggregator recovers each task's exit status from its log trailer. The
// trailer can land slightly after the marker, so every read is retried on a
// bounded growing-wait schedule before giving up.
type Aggregator struct {
	Clock    Clock
	Retry    Backoff
	Attempts int
}

// NewAggregator creates an Aggregator with the standard retry budget.
func NewAggregator(clock Clock) *Aggregator {
	return &Aggregator{
		Clock:    clock,
		Retry:    Backoff{Initial: 500 * time.Millisecond, Growth: 2.0, Max: 8 * time.Second},
		Attempts: 8,
	}
}

// Collect reads every task log and produces the aggregate result. A log that
// never reaches a parseable completion record is a fatal error, distinct
// from a task that completed with a failing status.
func (a *Aggregator) Collect(req *JobRequest) (*JobResult, error) {
	result := &JobResult{LogPattern: req.Log.Raw()}

	indices := req.TaskIndices()
	logs := req.TaskLogs()
	for i := range logs {
		status, err := a.tailStatus(logs[i])
		if err != nil {
			return nil, err
		}
		result.Tasks = append(result.Tasks, TaskResult{Index: indices[i], Status: status, Log: logs[i]})
		if status != 0 {
			result.NumFailed++
			utils.PrintDebug("task %d failed with status %d (%s)", indices[i], status, logs[i])
		}
	}

	return result, nil
}

// tailStatus extracts the exit status from the log's final line, retrying
// while the trailer has not yet been flushed to the shared filesystem.
func (a *Aggregator) tailStatus(logPath string) (int, error) {
	interval := time.Duration(0)
	for attempt := 0; attempt < a.Attempts; attempt++ {
		if attempt > 0 {
			interval = a.Retry.Next(interval)
			a.Clock.Sleep(interval)
		}
		data, err := os.ReadFile(logPath)
		if err != nil {
			continue
		}
		line := utils.LastNonEmptyLine(string(data))
		if m := statusRe.FindStringSubmatch(line); m != nil {
			return strconv.Atoi(m[1])
		}
	}
	return 0, &StatusParseError{Log: logPath}
}
