package queue

import (
	"os"
	"path/filepath"
	"time"

	"github.com/pineking/kaldi-git/internal/utils"
)

// Monitor waits for one completion marker per task. The markers are created
// by the wrapper epilogue on the execution host and observed here through a
// shared filesystem whose updates may become visible with arbitrary delay,
// so a missing marker is never immediately trusted as a missing job.
type Monitor struct {
	Prober        LivenessProber
	Clock         Clock
	Backoff       Backoff
	LivenessEvery int             // probe the queue every N polls
	KickWaits     []time.Duration // waits between staleness kick rounds
	QueueDir      string          // holds the kick sentinel
}

// Wait blocks until every marker has been observed (directly, or via the
// stale-storage downgrade path), then consumes the markers. taskLogs runs
// parallel to markers.
func (m *Monitor) Wait(jobID string, markers, taskLogs []string) error {
	start := m.Clock.Now()
	polls := 0
	for i, marker := range markers {
		if err := m.waitMarker(jobID, marker, taskLogs[i], start, &polls); err != nil {
			return err
		}
	}
	for _, marker := range markers {
		_ = utils.RemoveIfExists(marker)
	}
	return nil
}

// waitMarker polls for a single marker with a fresh backoff schedule.
func (m *Monitor) waitMarker(jobID, marker, taskLog string, start time.Time, polls *int) error {
	interval := time.Duration(0)
	for {
		if utils.FileExists(marker) {
			return nil
		}
		interval = m.Backoff.Next(interval)
		m.Clock.Sleep(interval)
		*polls++

		if m.LivenessEvery <= 0 || *polls%m.LivenessEvery != 0 {
			continue
		}
		alive, err := m.Prober.JobExists(jobID)
		if err != nil {
			utils.PrintWarning("liveness check failed, assuming job %s is still running: %v", jobID, err)
			continue
		}
		if alive {
			continue
		}

		// Queue reports the job gone while the marker is missing. The
		// storage layer may simply be showing a stale directory view.
		if m.refreshStaleView(marker) {
			return nil
		}
		if m.logShowsSuccess(taskLog, start) {
			utils.PrintWarning("marker %s never appeared but %s carries a success record; "+
				"blaming the storage layer and continuing", marker, utils.StylePath(taskLog))
			return nil
		}
		return &LostJobError{
			JobID:    jobID,
			Marker:   marker,
			Log:      taskLog,
			LastLine: lastLogLine(taskLog),
		}
	}
}

// refreshStaleView toggles an unrelated sentinel file in the queue directory
// between short waits, rechecking the marker after each round. Toggling a
// neighbor is a known way to provoke a stale client into refreshing its view
// of a shared directory; best-effort, not a guaranteed fix.
func (m *Monitor) refreshStaleView(marker string) bool {
	sentinel := filepath.Join(m.QueueDir, ".kick")
	for _, wait := range m.KickWaits {
		_ = os.WriteFile(sentinel, nil, utils.PermFile)
		_ = os.Remove(sentinel)
		m.Clock.Sleep(wait)
		if utils.FileExists(marker) {
			return true
		}
	}
	return false
}

// logShowsSuccess reports whether the task log already carries a
// status-0 completion record written since this monitor started. An old
// success record would be a leftover from a previous run.
func (m *Monitor) logShowsSuccess(taskLog string, start time.Time) bool {
	info, err := os.Stat(taskLog)
	if err != nil || info.ModTime().Before(start) {
		return false
	}
	match := statusRe.FindStringSubmatch(lastLogLine(taskLog))
	return match != nil && match[1] == "0"
}

// lastLogLine returns the last non-empty line of the log, "" when unreadable.
func lastLogLine(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return utils.LastNonEmptyLine(string(data))
}
