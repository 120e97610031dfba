package tui

import (
	"strings"
	"testing"
)

func TestPlainModeWritesCompletionLines(t *testing.T) {
	var buf strings.Builder
	p := New(3, &buf, false)
	p.Start()
	p.FileStarted("a-preview.jpg")
	p.FileDone("a-preview.jpg", 1)
	p.FileDone("b-preview.jpg", 2)
	p.Stop()

	out := buf.String()
	if !strings.Contains(out, "[1/3] a-preview.jpg") || !strings.Contains(out, "[2/3] b-preview.jpg") {
		t.Errorf("output:\n%s", out)
	}
	if strings.Contains(out, "Analyzing") {
		t.Error("plain mode should not render the spinner")
	}
}

func TestProgressModelTracksState(t *testing.T) {
	m := newProgressModel(5)

	next, _ := m.Update(fileStartedMsg{filename: "x.jpg"})
	m = next.(progressModel)
	if m.current != "x.jpg" {
		t.Errorf("current = %q", m.current)
	}

	next, _ = m.Update(fileDoneMsg{filename: "x.jpg", done: 3})
	m = next.(progressModel)
	if m.done != 3 {
		t.Errorf("done = %d", m.done)
	}
	if m.current != "" {
		t.Errorf("current = %q, want cleared after completion", m.current)
	}

	if _, cmd := m.Update(finishedMsg{}); cmd == nil {
		t.Error("finishedMsg should quit the program")
	}
}
