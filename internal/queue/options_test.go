package queue

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseArgsFullInvocation(t *testing.T) {
	argv := []string{
		"-V", "-l", "q=all.q", "-pe", "smp", "4", "--mem", "4G",
		"JOB=1:10", "exp/log/run.JOB.log", "process.sh", "JOB",
	}
	req, err := ParseArgs(argv)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wantPassthrough := []string{"-V", "-l", "q=all.q", "-pe", "smp", "4"}
	if diff := cmp.Diff(wantPassthrough, req.Passthrough); diff != "" {
		t.Errorf("passthrough mismatch (-want +got):\n%s", diff)
	}
	wantAbstract := []AbstractOpt{{Name: "mem", Value: "4G"}}
	if diff := cmp.Diff(wantAbstract, req.Abstract); diff != "" {
		t.Errorf("abstract options mismatch (-want +got):\n%s", diff)
	}
	if req.PE == nil || req.PE.Name != "smp" || req.PE.Slots != 4 {
		t.Errorf("unexpected parallel environment: %+v", req.PE)
	}
	if req.Array == nil || req.Array.Var != "JOB" || req.Array.Start != 1 || req.Array.End != 10 {
		t.Errorf("unexpected array spec: %+v", req.Array)
	}
	if req.Log.Raw() != "exp/log/run.JOB.log" {
		t.Errorf("unexpected log template: %q", req.Log.Raw())
	}
	if diff := cmp.Diff([]string{"process.sh", "JOB"}, req.Command); diff != "" {
		t.Errorf("command mismatch (-want +got):\n%s", diff)
	}
}

func TestParseArgsSingleCountArray(t *testing.T) {
	req, err := ParseArgs([]string{"SPK=7", "exp/log/x.SPK.log", "run.sh"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Array == nil || req.Array.Start != 7 || req.Array.End != 7 {
		t.Fatalf("NAME=N should produce a one-element range, got %+v", req.Array)
	}
	if got := req.Array.Count(); got != 1 {
		t.Errorf("expected count 1, got %d", got)
	}
}

func TestParseArgsOptionNormalization(t *testing.T) {
	req, err := ParseArgs([]string{"--max-jobs-run", "10", "exp/log/a.log", "true"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []AbstractOpt{{Name: "max_jobs_run", Value: "10"}}
	if diff := cmp.Diff(want, req.Abstract); diff != "" {
		t.Errorf("dashes should normalize to underscores (-want +got):\n%s", diff)
	}
}

func TestParseArgsConfigIsNotAbstract(t *testing.T) {
	req, err := ParseArgs([]string{"--config", "conf/gpu.conf", "exp/log/a.log", "true"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.ConfPath != "conf/gpu.conf" {
		t.Errorf("expected explicit config path, got %q", req.ConfPath)
	}
	if len(req.Abstract) != 0 {
		t.Errorf("--config must not become an abstract option: %+v", req.Abstract)
	}
}

func TestParseArgsSyncMode(t *testing.T) {
	req, err := ParseArgs([]string{"-sync", "y", "exp/log/a.log", "true"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !req.Sync {
		t.Error("-sync y should enable sync mode")
	}
	if diff := cmp.Diff([]string{"-sync", "y"}, req.Passthrough); diff != "" {
		t.Errorf("-sync must also pass through (-want +got):\n%s", diff)
	}

	req, err = ParseArgs([]string{"-sync", "n", "exp/log/a.log", "true"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Sync {
		t.Error("-sync n should not enable sync mode")
	}
}

func TestParseArgsErrors(t *testing.T) {
	tests := []struct {
		name string
		argv []string
	}{
		{"empty range", []string{"JOB=5:2", "exp/log/a.JOB.log", "true"}},
		{"missing placeholder", []string{"JOB=1:4", "exp/log/a.log", "true"}},
		{"second array token", []string{"JOB=1:4", "SPK=1:2", "exp/log/a.JOB.log", "true"}},
		{"no command", []string{"exp/log/a.log"}},
		{"no log path", []string{}},
		{"pe without count", []string{"-pe", "smp", "exp/log/a.log"}},
		{"pe bad count", []string{"-pe", "smp", "zero", "exp/log/a.log", "true"}},
		{"dangling flag value", []string{"-l"}},
		{"dangling abstract value", []string{"--mem"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseArgs(tt.argv)
			if err == nil {
				t.Fatalf("expected error for %v", tt.argv)
			}
			if !IsUsageError(err) {
				t.Errorf("expected a usage error, got %T: %v", err, err)
			}
		})
	}
}

func TestParseArrayTokenNonMatches(t *testing.T) {
	// Tokens that look vaguely like ranges but are not must fall through to
	// the positional arguments untouched.
	for _, tok := range []string{"exp/log/a.log", "a=b", "1=2", "JOB=1:2:3", "JOB="} {
		spec, err := parseArrayToken(tok)
		if err != nil {
			t.Errorf("token %q: unexpected error %v", tok, err)
		}
		if spec != nil {
			t.Errorf("token %q should not parse as an array range, got %+v", tok, spec)
		}
	}
}
