package queue

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const testConf = `
# site policy for the test grid
standard_opts -q all.q -l arch=*64*
default gpu=0
default mem=1G
mem=* -l mem_free=$0,ram_free=$0
mem=0            # explicit zero requests nothing
num_threads=* -pe smp $0
num_threads=1
gpu=0
gpu=* -l gpu=$0 -q g.q
max_jobs_run=* -tc $0
`

func parseTestConf(t *testing.T) *QueueConf {
	t.Helper()
	conf, err := ParseConf(strings.NewReader(testConf), "test.conf")
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	return conf
}

func TestParseConfStructure(t *testing.T) {
	conf := parseTestConf(t)

	want := []string{"-q", "all.q", "-l", "arch=*64*"}
	if diff := cmp.Diff(want, conf.StandardOpts); diff != "" {
		t.Errorf("standard opts mismatch (-want +got):\n%s", diff)
	}
	wantDefaults := []AbstractOpt{{Name: "gpu", Value: "0"}, {Name: "mem", Value: "1G"}}
	if diff := cmp.Diff(wantDefaults, conf.Defaults()); diff != "" {
		t.Errorf("defaults mismatch (-want +got):\n%s", diff)
	}
}

func TestParseConfErrorsCarryLineNumbers(t *testing.T) {
	tests := []struct {
		name     string
		conf     string
		wantLine int
	}{
		{"bare word", "standard_opts -q all.q\nnonsense\n", 2},
		{"default without value", "default\n", 1},
		{"default malformed", "\n\ndefault =5\n", 3},
		{"wildcard without template", "mem=*\n", 1},
		{"rule without name", "=4G -l x\n", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConf(strings.NewReader(tt.conf), "bad.conf")
			if err == nil {
				t.Fatal("expected a parse error")
			}
			var ce *ConfigError
			if !errors.As(err, &ce) {
				t.Fatalf("expected a config error, got %T: %v", err, err)
			}
			if ce.Line != tt.wantLine {
				t.Errorf("expected line %d, got %d (%v)", tt.wantLine, ce.Line, err)
			}
			if ce.Path != "bad.conf" {
				t.Errorf("expected path in error, got %q", ce.Path)
			}
		})
	}
}

func TestResolveWildcardExpansion(t *testing.T) {
	conf := parseTestConf(t)
	req := &JobRequest{Abstract: []AbstractOpt{{Name: "mem", Value: "4G"}}}

	opts, err := conf.Resolve(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{
		"-q", "all.q", "-l", "arch=*64*", // standard opts first
		"-l", "mem_free=4G,ram_free=4G", // --mem 4G via the wildcard rule
		// default gpu=0 hits the exact empty rule and contributes nothing
	}
	if diff := cmp.Diff(want, opts.Flags); diff != "" {
		t.Errorf("flags mismatch (-want +got):\n%s", diff)
	}
}

func TestResolveExactRuleWinsOverWildcard(t *testing.T) {
	conf := parseTestConf(t)
	req := &JobRequest{Abstract: []AbstractOpt{{Name: "mem", Value: "0"}}}

	opts, err := conf.Resolve(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, flag := range opts.Flags {
		if strings.Contains(flag, "mem_free") {
			t.Errorf("exact rule mem=0 must suppress the wildcard, got flags %v", opts.Flags)
		}
	}
	var memBinding *Binding
	for i := range opts.Bindings {
		if opts.Bindings[i].Name == "mem" {
			memBinding = &opts.Bindings[i]
		}
	}
	if memBinding == nil || memBinding.Flags != "" {
		t.Errorf("mem=0 should bind to an empty flag string, got %+v", memBinding)
	}
}

func TestResolveExactRuleAppliesExactlyOnce(t *testing.T) {
	// an exact rule alongside an overlapping wildcard must contribute its
	// template a single time
	conf, err := ParseConf(strings.NewReader(
		"mem=4G -l mem_free=4G,ram_free=4G\nmem=* -l h_vmem=$0\n"), "site.conf")
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}

	opts, err := conf.Resolve(&JobRequest{Abstract: []AbstractOpt{{Name: "mem", Value: "4G"}}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	joined := strings.Join(opts.Flags, " ")
	if got := strings.Count(joined, "mem_free=4G,ram_free=4G"); got != 1 {
		t.Errorf("exact expansion should appear exactly once, got %d in %q", got, joined)
	}
	if strings.Contains(joined, "h_vmem") {
		t.Errorf("wildcard must not fire when an exact rule matches: %q", joined)
	}
}

func TestResolveDefaultsOnlyWhenUnsupplied(t *testing.T) {
	conf := parseTestConf(t)
	req := &JobRequest{Abstract: []AbstractOpt{{Name: "gpu", Value: "1"}}}

	opts, err := conf.Resolve(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	joined := strings.Join(opts.Flags, " ")
	if !strings.Contains(joined, "-l gpu=1 -q g.q") {
		t.Errorf("expected the gpu wildcard expansion, got %q", joined)
	}
	// default mem=1G still applies since --mem was not given
	if !strings.Contains(joined, "mem_free=1G") {
		t.Errorf("expected the mem default to apply, got %q", joined)
	}
	// but gpu=0 must not: the caller supplied gpu=1
	count := 0
	for _, b := range opts.Bindings {
		if b.Name == "gpu" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("gpu must resolve exactly once, got %d bindings", count)
	}
}

func TestResolveUnknownOptionIsConfigError(t *testing.T) {
	conf := parseTestConf(t)
	req := &JobRequest{Abstract: []AbstractOpt{{Name: "wallclock", Value: "4h"}}}

	_, err := conf.Resolve(req)
	if err == nil {
		t.Fatal("expected an error for an undescribed option")
	}
	if !IsConfigError(err) {
		t.Fatalf("expected a config error, got %T: %v", err, err)
	}
	if !strings.Contains(err.Error(), "wallclock=4h not described in config") {
		t.Errorf("unexpected message: %v", err)
	}
}

func TestResolveNumThreads(t *testing.T) {
	conf := parseTestConf(t)

	req := &JobRequest{Abstract: []AbstractOpt{{Name: "num_threads", Value: "6"}, {Name: "mem", Value: "2G"}}}
	opts, err := conf.Resolve(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.NumThreads != 6 {
		t.Errorf("expected 6 threads from --num-threads, got %d", opts.NumThreads)
	}

	req = &JobRequest{PE: &ParallelEnv{Name: "smp", Slots: 8}}
	opts, err = conf.Resolve(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.NumThreads != 8 {
		t.Errorf("expected 8 threads from -pe, got %d", opts.NumThreads)
	}

	req = &JobRequest{}
	opts, err = conf.Resolve(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.NumThreads != 1 {
		t.Errorf("expected 1 thread by default, got %d", opts.NumThreads)
	}

	req = &JobRequest{Abstract: []AbstractOpt{{Name: "num_threads", Value: "banana"}}}
	if _, err := conf.Resolve(req); err == nil || !IsUsageError(err) {
		t.Errorf("expected a usage error for a non-numeric thread count, got %v", err)
	}
}

func TestLoadConfFallback(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "no-such.conf")

	conf, err := LoadConf(missing, false)
	if err != nil {
		t.Fatalf("implicit missing config must fall back, got %v", err)
	}
	if conf.Source != "built-in" {
		t.Errorf("expected built-in fallback, got source %q", conf.Source)
	}

	if _, err := LoadConf(missing, true); err == nil || !IsConfigError(err) {
		t.Errorf("explicit missing config must be a hard error, got %v", err)
	}
}

func TestLoadConfReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queue.conf")
	if err := os.WriteFile(path, []byte(testConf), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	conf, err := LoadConf(path, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if conf.Source != path {
		t.Errorf("expected source %q, got %q", path, conf.Source)
	}
}

func TestBuiltinConfResolvesCommonOptions(t *testing.T) {
	conf := DefaultConf()

	req := &JobRequest{Abstract: []AbstractOpt{
		{Name: "mem", Value: "8G"},
		{Name: "num_threads", Value: "4"},
		{Name: "gpu", Value: "1"},
		{Name: "max_jobs_run", Value: "30"},
	}}
	opts, err := conf.Resolve(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	joined := strings.Join(opts.Flags, " ")
	for _, want := range []string{
		"-l mem_free=8G,ram_free=8G",
		"-pe smp 4",
		"-l gpu=1 -q g.q",
		"-tc 30",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("built-in policy should produce %q, got %q", want, joined)
		}
	}
}
