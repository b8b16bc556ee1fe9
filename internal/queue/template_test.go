package queue

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestLogTemplateExpand(t *testing.T) {
	tmpl, err := NewLogTemplate("exp/log/decode.JOB.log", "JOB")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := tmpl.Expand("3"); got != "exp/log/decode.3.log" {
		t.Errorf("Expand(3) = %q", got)
	}
	if got := tmpl.ExpandInt(12); got != "exp/log/decode.12.log" {
		t.Errorf("ExpandInt(12) = %q", got)
	}
	if got := tmpl.Expand("${SGE_TASK_ID}"); got != "exp/log/decode.${SGE_TASK_ID}.log" {
		t.Errorf("Expand(task var) = %q", got)
	}
}

func TestLogTemplateSubstitutesFirstOccurrenceOnly(t *testing.T) {
	// Only the designated point is rewritten; a placeholder token that
	// reappears later in the path stays literal.
	tmpl, err := NewLogTemplate("exp/JOB/align.JOB.log", "JOB")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := tmpl.Expand("2"); got != "exp/2/align.JOB.log" {
		t.Errorf("Expand(2) = %q, want substitution at the first occurrence only", got)
	}
}

func TestLogTemplateNoPlaceholderForPlainJob(t *testing.T) {
	tmpl, err := NewLogTemplate("exp/log/train.log", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := tmpl.Expand("9"); got != "exp/log/train.log" {
		t.Errorf("plain template must expand to itself, got %q", got)
	}
	if tmpl.Var() != "" {
		t.Errorf("plain template has no placeholder, got %q", tmpl.Var())
	}
}

func TestLogTemplateRejectsMissingPlaceholder(t *testing.T) {
	_, err := NewLogTemplate("exp/log/train.log", "JOB")
	if err == nil {
		t.Fatal("expected an error for an array log path without the placeholder")
	}
	if !IsUsageError(err) {
		t.Errorf("expected a usage error, got %T: %v", err, err)
	}
}

func TestSubstituteTokens(t *testing.T) {
	got := SubstituteTokens([]string{"align.sh", "data/JOB", "JOB.scp", "plain"}, "JOB", "7")
	want := []string{"align.sh", "data/7", "7.scp", "plain"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("substitution mismatch (-want +got):\n%s", diff)
	}

	same := []string{"a", "b"}
	if diff := cmp.Diff(same, SubstituteTokens(same, "", "7")); diff != "" {
		t.Errorf("empty placeholder must leave tokens untouched (-want +got):\n%s", diff)
	}
}
