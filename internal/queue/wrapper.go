package queue

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pineking/kaldi-git/internal/utils"
)

// taskIndexVar is the scheduler's per-task index variable, substituted for
// the array placeholder at generation time so one wrapper serves every task.
const taskIndexVar = "${SGE_TASK_ID}"

// Wrapper is the planned on-disk layout of one submission: the generated
// script, the submission transcript target, and the completion markers the
// remote epilogue will create.
type Wrapper struct {
	QueueDir   string   // "q" directory beside the log directory
	ScriptPath string   // generated wrapper script
	QueueLog   string   // qsub's own transcript
	MarkerBase string   // marker path without a task suffix
	Markers    []string // one marker per expected task
}

// QueueDirFor returns the queue-log directory for a task log path: when the
// log already lives in a directory literally named "log", the sibling "q"
// directory at that level; otherwise a "q" subdirectory beside the log.
func QueueDirFor(logPath string) string {
	dir := filepath.Dir(logPath)
	if filepath.Base(dir) == "log" {
		return filepath.Join(filepath.Dir(dir), "q")
	}
	return filepath.Join(dir, "q")
}

// PlanWrapper computes the wrapper layout for a request. pid disambiguates
// markers between dispatcher invocations sharing a queue directory.
func PlanWrapper(req *JobRequest, pid int) (*Wrapper, error) {
	logPath := req.Log.Raw()
	qdir := QueueDirFor(logPath)

	// The script and transcript are shared across array tasks, so the
	// placeholder (and an adjacent dot) is dropped from their names.
	base := filepath.Base(logPath)
	if req.Array != nil {
		if strings.Contains(base, "."+req.Array.Var) {
			base = strings.Replace(base, "."+req.Array.Var, "", 1)
		} else {
			base = strings.Replace(base, req.Array.Var, "", 1)
		}
	}
	name := strings.TrimSuffix(base, filepath.Ext(base))
	if name == "" {
		return nil, NewUsageError("cannot derive a script name from log path %q", logPath)
	}

	w := &Wrapper{
		QueueDir:   qdir,
		ScriptPath: filepath.Join(qdir, name+".sh"),
		QueueLog:   filepath.Join(qdir, name+".log"),
		MarkerBase: filepath.Join(qdir, "sync", "done."+fmt.Sprintf("%d", pid)),
	}

	if req.Array == nil {
		w.Markers = []string{w.MarkerBase}
	} else {
		for _, i := range req.Array.Indices() {
			w.Markers = append(w.Markers, fmt.Sprintf("%s.%d", w.MarkerBase, i))
		}
	}

	return w, nil
}

// WriteWrapper removes stale artifacts from any previous run and generates
// the wrapper script. submitLine is recorded in a trailing comment for
// post-mortem inspection.
//
// Stale markers must go before submission: a leftover marker from a prior
// failed run would satisfy the monitor immediately.
func WriteWrapper(w *Wrapper, req *JobRequest, submitLine string) error {
	if err := utils.EnsureDir(filepath.Dir(w.MarkerBase)); err != nil {
		return fmt.Errorf("failed to create queue directory: %w", err)
	}
	if err := utils.EnsureDir(filepath.Dir(req.Log.Raw())); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	if err := utils.RemoveIfExists(w.QueueLog); err != nil {
		return fmt.Errorf("failed to remove stale transcript: %w", err)
	}
	for _, marker := range w.Markers {
		if err := utils.RemoveIfExists(marker); err != nil {
			return fmt.Errorf("failed to remove stale marker: %w", err)
		}
	}
	for _, taskLog := range req.TaskLogs() {
		if err := utils.RemoveIfExists(taskLog); err != nil {
			return fmt.Errorf("failed to remove stale log: %w", err)
		}
	}

	cwd, err := os.Getwd()
	if err != nil {
		return err
	}

	logExpr := req.Log.Raw()
	markerExpr := w.MarkerBase
	command := req.Command
	if req.Array != nil {
		logExpr = req.Log.Expand(taskIndexVar)
		markerExpr = w.MarkerBase + "." + taskIndexVar
		command = SubstituteTokens(command, req.Array.Var, taskIndexVar)
	}
	cmdStr := shellJoin(command)

	file, err := os.Create(w.ScriptPath)
	if err != nil {
		return fmt.Errorf("failed to create wrapper script: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	defer writer.Flush()

	fmt.Fprintln(writer, "#!/bin/bash")
	fmt.Fprintf(writer, "cd %s\n", cwd)
	if utils.FileExists("./path.sh") {
		fmt.Fprintln(writer, ". ./path.sh")
	}
	fmt.Fprintln(writer, "( echo '#' Running on `hostname`")
	fmt.Fprintln(writer, "  echo '#' Started at `date`")
	fmt.Fprintln(writer, "  echo -n '# '; cat <<EOF")
	fmt.Fprintln(writer, cmdStr)
	fmt.Fprintln(writer, "EOF")
	fmt.Fprintf(writer, ") >%s\n", logExpr)
	fmt.Fprintf(writer, "time1=`date +\"%%s\"`\n")
	fmt.Fprintf(writer, " ( %s ) 2>>%s >>%s\n", cmdStr, logExpr, logExpr)
	fmt.Fprintln(writer, "ret=$?")
	fmt.Fprintf(writer, "time2=`date +\"%%s\"`\n")
	fmt.Fprintf(writer, "echo '#' Accounting: time=$(($time2-$time1)) threads=%d >>%s\n",
		req.Options.NumThreads, logExpr)
	fmt.Fprintf(writer, "echo '#' Finished at `date` with status $ret >>%s\n", logExpr)
	// 137 = 128+SIGKILL, typically an out-of-memory kill. Remapped to a
	// distinguished status so resubmission tooling can recognize it; the
	// marker is deliberately not created on that path.
	fmt.Fprintln(writer, "[ $ret -eq 137 ] && exit 100;")
	fmt.Fprintf(writer, "touch %s\n", markerExpr)
	// The script's own exit status must never collide with the remap above.
	fmt.Fprintln(writer, "exit $[$ret ? 1 : 0]")
	fmt.Fprintln(writer, "## submitted with:")
	fmt.Fprintf(writer, "# %s\n", submitLine)

	if err := writer.Flush(); err != nil {
		return err
	}
	if err := os.Chmod(w.ScriptPath, utils.PermExec); err != nil {
		return fmt.Errorf("failed to mark wrapper executable: %w", err)
	}

	utils.PrintDebug("wrote wrapper script %s", w.ScriptPath)
	return nil
}

// shellJoin joins argv tokens into a shell command line, quoting tokens that
// contain whitespace.
func shellJoin(tokens []string) string {
	parts := make([]string, len(tokens))
	for i, tok := range tokens {
		if strings.ContainsAny(tok, " \t\n") {
			parts[i] = "\"" + tok + "\""
		} else {
			parts[i] = tok
		}
	}
	return strings.Join(parts, " ")
}
