package queue

import (
	"fmt"
	"os/exec"
	"regexp"
	"strings"
)

// LivenessProber asks the external queue whether a submitted job identifier
// is still present in its active job table.
type LivenessProber interface {
	// JobExists reports whether the queue still knows the job. An error
	// means the queue could not be consulted at all; callers should treat
	// the job as alive and retry later.
	JobExists(jobID string) (bool, error)
}

// QstatProber probes liveness through qstat -j.
type QstatProber struct {
	QstatBin string
}

var jobGoneRe = regexp.MustCompile(`(?i)jobs do not exist`)

// JobExists runs qstat -j for the job. A clean exit means the job is still
// known. Exit status 1 (or the explicit "do not exist" message) means the
// queue has forgotten it; anything else is a transient queue error.
func (p *QstatProber) JobExists(jobID string) (bool, error) {
	cmd := exec.Command(p.QstatBin, "-j", jobID)
	output, err := cmd.CombinedOutput()
	if err == nil {
		return true, nil
	}

	if exitErr, ok := err.(*exec.ExitError); ok {
		if jobGoneRe.Match(output) || exitErr.ExitCode() == 1 {
			return false, nil
		}
	}
	return true, fmt.Errorf("qstat -j %s: %w (%s)", jobID, err, strings.TrimSpace(string(output)))
}
