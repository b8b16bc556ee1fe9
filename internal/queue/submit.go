package queue

import (
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"

	"github.com/pineking/kaldi-git/internal/utils"
)

// Submitter invokes the external submission command and recovers the
// scheduler-assigned job identifier from its acknowledgment.
type Submitter struct {
	QsubBin string
	ackRe   *regexp.Regexp
}

// NewSubmitter creates a Submitter using the given qsub binary.
func NewSubmitter(qsubBin string) *Submitter {
	return &Submitter{
		QsubBin: qsubBin,
		ackRe:   regexp.MustCompile(`Your job(?:-array)? (\d+)[. ].* has been submitted`),
	}
}

// BuildArgs assembles the qsub argument list: transcript target, resolved
// option tokens, the array range when present, and the wrapper script.
func (s *Submitter) BuildArgs(w *Wrapper, req *JobRequest) []string {
	args := []string{"-o", w.QueueLog}
	args = append(args, req.Options.Flags...)
	if req.Array != nil {
		args = append(args, "-t", fmt.Sprintf("%d:%d", req.Array.Start, req.Array.End))
	}
	args = append(args, w.ScriptPath)
	return args
}

// CommandLine renders the full submission invocation for the wrapper's
// post-mortem trailer.
func (s *Submitter) CommandLine(w *Wrapper, args []string) string {
	return fmt.Sprintf("%s %s >>%s 2>&1", s.QsubBin, strings.Join(args, " "), w.QueueLog)
}

// Submit runs qsub, appends its combined output to the transcript, and
// parses the job identifier back out of the transcript. A non-zero qsub exit
// is a fatal submission error; zero or multiple acknowledgments in the
// transcript are fatal internal-consistency errors.
func (s *Submitter) Submit(w *Wrapper, args []string) (string, error) {
	utils.PrintDebug("executing: %s", utils.StyleCommand(s.CommandLine(w, args)))

	cmd := exec.Command(s.QsubBin, args...)
	output, runErr := cmd.CombinedOutput()

	if err := appendFile(w.QueueLog, output); err != nil {
		return "", NewSubmissionError(w.ScriptPath, string(output), err)
	}
	if runErr != nil {
		return "", NewSubmissionError(w.ScriptPath, string(output), runErr)
	}

	// Re-read the transcript rather than trusting the in-memory output; the
	// transcript is the durable record shared with operators.
	transcript, err := os.ReadFile(w.QueueLog)
	if err != nil {
		return "", NewSubmissionError(w.ScriptPath, string(output), err)
	}

	matches := s.ackRe.FindAllStringSubmatch(string(transcript), -1)
	switch len(matches) {
	case 0:
		return "", NewSubmissionError(w.ScriptPath, string(transcript), ErrJobIDParseFailed)
	case 1:
		return matches[0][1], nil
	default:
		return "", NewSubmissionError(w.ScriptPath, string(transcript), ErrDuplicateAck)
	}
}

// appendFile appends data to path, creating it when missing.
func appendFile(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, utils.PermFile)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.Write(data)
	return err
}
