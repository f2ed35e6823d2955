package ui

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// TestStatusDisplayCreation tests the idle display.
func TestStatusDisplayCreation(t *testing.T) {
	display := NewStatusDisplay()

	if display.IsActive() {
		t.Error("Display should not be active initially")
	}
	if display.CompactStatus() != "" {
		t.Error("Initial compact status should be empty")
	}
	if display.DetailedStatus(80) != "" {
		t.Error("Initial detailed status should be empty")
	}
}

// TestStatusDisplayProgress tests clip counting.
func TestStatusDisplayProgress(t *testing.T) {
	display := NewStatusDisplay()
	display.Start("vocabulary")

	if !display.IsActive() {
		t.Fatal("Display should be active after Start")
	}
	if display.Stage() != StageSynthesizing {
		t.Errorf("Stage = %v, want synthesizing", display.Stage())
	}

	display.Progress(2, 4, false)
	status := display.CompactStatus()
	if !strings.Contains(status, "vocabulary") {
		t.Errorf("Status %q should name the part", status)
	}
	if !strings.Contains(status, "2/4") {
		t.Errorf("Status %q should show 2/4 clips", status)
	}
	if got := display.Percent(); got != 0.5 {
		t.Errorf("Percent = %v, want 0.5", got)
	}

	display.Progress(3, 4, true)
	if !strings.Contains(display.CompactStatus(), "reused") {
		t.Error("Status should mention reused clips")
	}

	detailed := display.DetailedStatus(60)
	if !strings.Contains(detailed, "█") {
		t.Errorf("Detailed status should contain a progress bar, got %q", detailed)
	}
}

// TestStatusDisplayStages tests the stage transitions.
func TestStatusDisplayStages(t *testing.T) {
	tests := []struct {
		name   string
		apply  func(*StatusDisplay)
		stage  Stage
		active bool
		want   string
	}{
		{"assembling", func(s *StatusDisplay) { s.SetStage(StageAssembling) }, StageAssembling, true, "assembling"},
		{"saving", func(s *StatusDisplay) { s.SetStage(StageSaving) }, StageSaving, true, "saving"},
		{"done", func(s *StatusDisplay) { s.Finish(75 * time.Second) }, StageDone, false, "1:15"},
		{"error", func(s *StatusDisplay) { s.Fail(errors.New("engine down")) }, StageError, false, "✗"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			display := NewStatusDisplay()
			display.Start("passage")
			display.Progress(1, 2, false)
			tt.apply(display)

			if display.Stage() != tt.stage {
				t.Errorf("Stage = %v, want %v", display.Stage(), tt.stage)
			}
			if display.IsActive() != tt.active {
				t.Errorf("IsActive = %v, want %v", display.IsActive(), tt.active)
			}
			if !strings.Contains(display.CompactStatus(), tt.want) {
				t.Errorf("CompactStatus %q should contain %q", display.CompactStatus(), tt.want)
			}
		})
	}
}

func TestStatusDisplayError(t *testing.T) {
	display := NewStatusDisplay()
	display.Start("passage")
	display.Fail(errors.New(strings.Repeat("connection refused ", 10)))

	detailed := display.DetailedStatus(40)
	if !strings.Contains(detailed, "Error: connection refused") {
		t.Errorf("Detailed status should show the error, got %q", detailed)
	}
	if !strings.Contains(detailed, ellipsis) {
		t.Error("Long errors should be truncated")
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "0:00"},
		{-time.Second, "0:00"},
		{9 * time.Second, "0:09"},
		{61 * time.Second, "1:01"},
		{12*time.Minute + 5*time.Second, "12:05"},
	}

	for _, tt := range tests {
		if got := formatDuration(tt.d); got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestProgressModel(t *testing.T) {
	canceled := false
	var m tea.Model = NewProgressModel(func() { canceled = true })

	m, _ = m.Update(PartStartedMsg{Part: "vocabulary"})
	m, _ = m.Update(ProgressMsg{Done: 1, Total: 2})
	if view := m.View(); !strings.Contains(view, "1/2") {
		t.Errorf("View %q should show progress", view)
	}

	m, _ = m.Update(PartDoneMsg{Part: "vocabulary", Duration: 30 * time.Second, Path: "out.wav"})
	view := m.View()
	if !strings.Contains(view, "0:30") || !strings.Contains(view, "out.wav") {
		t.Errorf("View %q should list the finished part", view)
	}

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if !canceled {
		t.Error("ctrl+c should cancel the run")
	}

	_, cmd := m.Update(FinishedMsg{})
	if cmd == nil {
		t.Error("FinishedMsg should quit the program")
	}
}

func TestPlainProgress(t *testing.T) {
	var b strings.Builder
	send := PlainProgress(&b)

	send(PartStartedMsg{Part: "passage"})
	send(ProgressMsg{Done: 1, Total: 1})
	send(PartDoneMsg{Part: "passage", Duration: 90 * time.Second})

	want := "Generating passage...\npassage: 1:30\n"
	if b.String() != want {
		t.Errorf("output = %q, want %q", b.String(), want)
	}
}
