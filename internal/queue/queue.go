// Package queue implements a client for an SGE-style batch queue.
//
// It resolves abstract resource options against a site configuration file,
// generates a self-contained wrapper script around the user command, submits
// it through qsub (optionally as an array of indexed tasks), waits for one
// completion marker per task on a shared filesystem of unspecified latency,
// and recovers each task's exit status from its log file.
package queue

import (
	"fmt"
	"os"

	"github.com/pineking/kaldi-git/internal/config"
	"github.com/pineking/kaldi-git/internal/utils"
)

// ArraySpec describes an indexed fan-out of a single submission.
type ArraySpec struct {
	Var   string // placeholder token, e.g. "JOB"
	Start int
	End   int
}

// Count returns the number of task instances the array spawns.
func (a *ArraySpec) Count() int {
	return a.End - a.Start + 1
}

// Indices returns every task index in submission order.
func (a *ArraySpec) Indices() []int {
	out := make([]int, 0, a.Count())
	for i := a.Start; i <= a.End; i++ {
		out = append(out, i)
	}
	return out
}

// ParallelEnv is the -pe flag pair: environment name plus slot count.
type ParallelEnv struct {
	Name  string
	Slots int
}

// AbstractOpt is a double-dash option awaiting resolution via the queue
// configuration (e.g. --mem 4G).
type AbstractOpt struct {
	Name  string
	Value string
}

// JobRequest is one parsed dispatcher invocation. It is constructed once by
// ParseArgs and never mutated afterwards; Options is filled in by Resolve
// before dispatch.
type JobRequest struct {
	Command     []string // user command argv, placeholder unsubstituted
	Array       *ArraySpec
	Log         LogTemplate
	Sync        bool
	ConfPath    string // explicit --config value, "" when absent
	Passthrough []string
	Abstract    []AbstractOpt
	PE          *ParallelEnv
	Options     SubmissionOptions
}

// TaskIndices returns the indices of the expected task instances.
// A plain (non-array) job is a single task with index 0.
func (r *JobRequest) TaskIndices() []int {
	if r.Array == nil {
		return []int{0}
	}
	return r.Array.Indices()
}

// TaskLogs returns the concrete per-task log path for every expected task.
func (r *JobRequest) TaskLogs() []string {
	if r.Array == nil {
		return []string{r.Log.Raw()}
	}
	logs := make([]string, 0, r.Array.Count())
	for _, i := range r.Array.Indices() {
		logs = append(logs, r.Log.Expand(fmt.Sprintf("%d", i)))
	}
	return logs
}

// Binding records one abstract option resolution for diagnostics.
type Binding struct {
	Name  string
	Value string
	Flags string // expanded flag string, may be empty
}

// SubmissionOptions is the fully resolved set of scheduler arguments for one
// submission. Built functionally by Resolve; never mutated afterwards.
type SubmissionOptions struct {
	Flags      []string  // final qsub argument tokens, standard opts first
	Bindings   []Binding // abstract option resolutions, in applied order
	NumThreads int       // effective thread count for the accounting line
}

// Dispatcher ties the pipeline together: resolve, wrap, submit, monitor,
// aggregate. One Dispatcher serves one invocation.
type Dispatcher struct {
	Conf     *QueueConf
	QsubBin  string
	QstatBin string
	Clock    Clock
}

// NewDispatcher builds a Dispatcher from the queue configuration and the
// global process settings.
func NewDispatcher(conf *QueueConf) *Dispatcher {
	return &Dispatcher{
		Conf:     conf,
		QsubBin:  config.Global.QsubBin,
		QstatBin: config.Global.QstatBin,
		Clock:    RealClock(),
	}
}

// Run executes the full dispatch pipeline for one request and returns the
// aggregated per-task result. Structural failures (configuration, wrapper
// generation, submission) abort before any monitoring begins.
func (d *Dispatcher) Run(req *JobRequest) (*JobResult, error) {
	opts, err := d.Conf.Resolve(req)
	if err != nil {
		return nil, err
	}
	req.Options = opts

	w, err := PlanWrapper(req, os.Getpid())
	if err != nil {
		return nil, err
	}

	sub := NewSubmitter(d.QsubBin)
	qsubArgs := sub.BuildArgs(w, req)

	if err := WriteWrapper(w, req, sub.CommandLine(w, qsubArgs)); err != nil {
		return nil, err
	}

	jobID, err := sub.Submit(w, qsubArgs)
	if err != nil {
		return nil, err
	}
	utils.PrintDebug("submitted job %s (%d task(s))", jobID, len(req.TaskIndices()))

	if req.Sync {
		// qsub blocked until completion; markers are not needed for gating.
		for _, m := range w.Markers {
			_ = utils.RemoveIfExists(m)
		}
	} else {
		mon := &Monitor{
			Prober:        &QstatProber{QstatBin: d.QstatBin},
			Clock:         d.Clock,
			Backoff:       Backoff{Initial: config.Global.PollInitial, Growth: config.Global.PollGrowth, Max: config.Global.PollMax},
			LivenessEvery: config.Global.LivenessEvery,
			KickWaits:     config.Global.KickWaits,
			QueueDir:      w.QueueDir,
		}
		if err := mon.Wait(jobID, w.Markers, req.TaskLogs()); err != nil {
			return nil, err
		}
	}

	agg := NewAggregator(d.Clock)
	return agg.Collect(req)
}
