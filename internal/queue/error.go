package queue

import (
	"errors"
	"fmt"
)

// Common errors
var (
	// ErrAmbiguousFanOut indicates an array job whose log path has no placeholder
	ErrAmbiguousFanOut = errors.New("array job output would collapse into one log file")

	// ErrJobIDParseFailed indicates the submission acknowledgment could not be parsed
	ErrJobIDParseFailed = errors.New("failed to parse job ID from submission transcript")

	// ErrDuplicateAck indicates more than one submission acknowledgment was found
	ErrDuplicateAck = errors.New("multiple submission acknowledgments in transcript")
)

// UsageError represents a malformed invocation. Fatal and non-retryable;
// the caller prints a usage summary alongside it.
type UsageError struct {
	Reason string
}

func (e *UsageError) Error() string {
	return fmt.Sprintf("usage error: %s", e.Reason)
}

// NewUsageError creates a new UsageError
func NewUsageError(format string, a ...interface{}) *UsageError {
	return &UsageError{Reason: fmt.Sprintf(format, a...)}
}

// ConfigError represents an unparseable queue configuration file or an
// abstract option with no matching translation rule.
type ConfigError struct {
	Path   string // config source ("built-in" for the fallback policy)
	Line   int    // 1-based line number, 0 when not line-specific
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("config error in %s at line %d: %s", e.Path, e.Line, e.Reason)
	}
	if e.Path != "" {
		return fmt.Sprintf("config error in %s: %s", e.Path, e.Reason)
	}
	return fmt.Sprintf("config error: %s", e.Reason)
}

// SubmissionError represents a failed qsub invocation or an acknowledgment
// that could not be recovered from its transcript.
type SubmissionError struct {
	Script     string // wrapper script path
	Transcript string // captured submission output
	Err        error  // underlying error
}

func (e *SubmissionError) Error() string {
	if e.Transcript != "" {
		return fmt.Sprintf("submission of %s failed: %v\nTranscript: %s",
			e.Script, e.Err, e.Transcript)
	}
	return fmt.Sprintf("submission of %s failed: %v", e.Script, e.Err)
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}

// NewSubmissionError creates a new SubmissionError
func NewSubmissionError(script, transcript string, err error) *SubmissionError {
	return &SubmissionError{
		Script:     script,
		Transcript: transcript,
		Err:        err,
	}
}

// LostJobError represents a task whose marker never appeared while the queue
// reports the job gone and the log carries no success record.
type LostJobError struct {
	JobID    string
	Marker   string
	Log      string
	LastLine string
}

func (e *LostJobError) Error() string {
	return fmt.Sprintf("job %s appears lost: marker %s never appeared and queue no longer knows the job; "+
		"log is in %s (last line: %q). If the storage layer is slow, re-running may succeed.",
		e.JobID, e.Marker, e.Log, e.LastLine)
}

// StatusParseError represents a task log that never reached a parseable
// completion record. Distinct from a task failure: the outcome is unknown.
type StatusParseError struct {
	Log string
}

func (e *StatusParseError) Error() string {
	return fmt.Sprintf("cannot determine status of task: no completion record in %s", e.Log)
}

// IsUsageError checks if an error is a UsageError
func IsUsageError(err error) bool {
	var ue *UsageError
	return errors.As(err, &ue)
}

// IsConfigError checks if an error is a ConfigError
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// IsSubmissionError checks if an error is a SubmissionError
func IsSubmissionError(err error) bool {
	var se *SubmissionError
	return errors.As(err, &se)
}

// IsLostJobError checks if an error is a LostJobError
func IsLostJobError(err error) bool {
	var le *LostJobError
	return errors.As(err, &le)
}
