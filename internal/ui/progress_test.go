package ui

import (
	"errors"
	"strings"
	"testing"
	"time"

	"iljit/internal/pipeline"
)

func TestProgressModel_TracksItems(t *testing.T) {
	m := NewProgressModel("compile", nil).(*progressModel)
	events := []pipeline.Event{
		{Item: "a.yaml", Stage: pipeline.StageLoad, Status: pipeline.StatusWorking},
		{Item: "a.yaml", Stage: pipeline.StageLoad, Status: pipeline.StatusDone, Elapsed: 3 * time.Millisecond},
		{Item: "[A]T::M/0", Stage: pipeline.StageCompile, Status: pipeline.StatusWorking},
		{Item: "[A]T::N/0", Stage: pipeline.StageCompile, Status: pipeline.StatusError, Err: errors.New("boom")},
		{Item: "[A]T::N/0", Stage: pipeline.StageEmit, Status: pipeline.StatusDone},
		{Item: "[A]T::C/0", Stage: pipeline.StageCompile, Status: pipeline.StatusCached},
		{Stage: pipeline.StageCompile, Status: pipeline.StatusWorking},
	}
	for _, ev := range events {
		m.Update(eventMsg(ev))
	}
	if len(m.rows) != 4 {
		t.Fatalf("rows = %+v", m.rows)
	}
	for i, want := range []string{"done", "compiling", "error", "cached"} {
		if got := m.rows[i].label(); got != want {
			t.Errorf("row %s label %q, want %q", m.rows[i].name, got, want)
		}
	}
	if done, cached, failed := m.counts(); done != 1 || cached != 1 || failed != 1 {
		t.Fatalf("counts = %d/%d/%d", done, cached, failed)
	}
	// Three finished rows and one at the compile weight.
	if p := m.percent(); p < 0.92 || p > 0.93 {
		t.Fatalf("percent = %f", p)
	}

	m.Update(doneMsg{})
	view := m.View()
	for _, want := range []string{"done: compile (compiling)", "[A]T::M/0", "1 done, 1 cached", "1 failed", "3ms"} {
		if !strings.Contains(view, want) {
			t.Fatalf("view lacks %q:\n%s", want, view)
		}
	}
}

func TestProgressModel_Empty(t *testing.T) {
	m := NewProgressModel("load", nil).(*progressModel)
	if m.percent() != 0 {
		t.Fatal("empty model reports progress")
	}
	if !strings.Contains(m.View(), "load") {
		t.Fatalf("view:\n%s", m.View())
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in    string
		width int
		want  string
	}{
		{"short", 10, "short"},
		{"abcdefghij", 8, "abcde..."},
		{"日本語テキスト", 7, "日本..."},
		{"abcdef", 2, "ab"},
		{"abcdef", 0, "abcdef"},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.width); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.width, got, tt.want)
		}
	}
}
