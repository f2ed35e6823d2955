package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/truncate"
)

// Stage is the step a generation run is in.
type Stage int

const (
	StageIdle Stage = iota
	StageSynthesizing
	StageAssembling
	StageSaving
	StageDone
	StageError
)

func (s Stage) String() string {
	switch s {
	case StageIdle:
		return "idle"
	case StageSynthesizing:
		return "synthesizing"
	case StageAssembling:
		return "assembling"
	case StageSaving:
		return "saving"
	case StageDone:
		return "done"
	case StageError:
		return "error"
	default:
		return "unknown"
	}
}

// StatusDisplay renders the state of a generation run.
type StatusDisplay struct {
	stage    Stage
	part     string
	done     int
	total    int
	cached   int
	duration time.Duration
	errorMsg string
}

// NewStatusDisplay creates an idle display.
func NewStatusDisplay() *StatusDisplay {
	return &StatusDisplay{}
}

// Start begins a new part.
func (s *StatusDisplay) Start(part string) {
	*s = StatusDisplay{stage: StageSynthesizing, part: part}
}

// Progress records finished clips.
func (s *StatusDisplay) Progress(done, total int, cached bool) {
	s.stage = StageSynthesizing
	s.done = done
	s.total = total
	// clips taken from the arena are reported once, up front
	if cached {
		s.cached = done
	}
}

// SetStage moves to stage.
func (s *StatusDisplay) SetStage(stage Stage) {
	s.stage = stage
}

// Finish marks the part as done with a track of length d.
func (s *StatusDisplay) Finish(d time.Duration) {
	s.stage = StageDone
	s.duration = d
	s.done = s.total
}

// Fail records err.
func (s *StatusDisplay) Fail(err error) {
	s.stage = StageError
	if err != nil {
		s.errorMsg = err.Error()
	}
}

// Stage returns the current stage.
func (s *StatusDisplay) Stage() Stage {
	return s.stage
}

// IsActive reports whether work is in progress.
func (s *StatusDisplay) IsActive() bool {
	return s.stage != StageIdle && s.stage != StageDone && s.stage != StageError
}

// Percent returns the share of clips available, 0 to 1.
func (s *StatusDisplay) Percent() float64 {
	if s.total <= 0 {
		return 0
	}
	return min(float64(s.done)/float64(s.total), 1)
}

// CompactStatus returns a one-line status.
func (s *StatusDisplay) CompactStatus() string {
	if s.stage == StageIdle {
		return ""
	}

	status := lipgloss.NewStyle().Foreground(s.stateColor()).
		Render(fmt.Sprintf("%s %s", s.stateIcon(), s.part))

	switch s.stage {
	case StageSynthesizing:
		if s.total > 0 {
			status += grayStyle.Render(fmt.Sprintf(" %d/%d clips", s.done, s.total))
		}
		if s.cached > 0 {
			status += grayStyle.Render(fmt.Sprintf(" (%d reused)", s.cached))
		}
	case StageAssembling, StageSaving:
		status += grayStyle.Render(" " + s.stage.String())
	case StageDone:
		status += grayStyle.Render(" " + formatDuration(s.duration))
	}
	return status
}

// DetailedStatus returns a multi-line status with a progress bar.
func (s *StatusDisplay) DetailedStatus(width int) string {
	if s.stage == StageIdle {
		return ""
	}

	lines := []string{s.CompactStatus()}
	if s.total > 0 && width > 20 && s.stage != StageError {
		lines = append(lines, s.renderProgressBar(width-4))
	}
	if s.errorMsg != "" {
		line := truncate.StringWithTail(s.errorMsg, uint(max(width-9, 10)), ellipsis) //nolint:gosec
		lines = append(lines, errorStyle.Render("Error: "+line))
	}
	return strings.Join(lines, "\n")
}

func (s *StatusDisplay) renderProgressBar(width int) string {
	if width < 10 {
		return ""
	}
	filled := min(int(s.Percent()*float64(width)), width)
	return lipgloss.NewStyle().Foreground(s.stateColor()).Render(strings.Repeat("█", filled)) +
		lipgloss.NewStyle().Foreground(lipgloss.Color("#333333")).Render(strings.Repeat("░", width-filled))
}

func (s *StatusDisplay) stateColor() lipgloss.Color {
	switch s.stage {
	case StageSynthesizing:
		return lipgloss.Color("#00AAFF")
	case StageAssembling, StageSaving:
		return lipgloss.Color("#FFFF00")
	case StageDone:
		return lipgloss.Color("#00FF00")
	case StageError:
		return lipgloss.Color("#FF0000")
	default:
		return lipgloss.Color("#666666")
	}
}

func (s *StatusDisplay) stateIcon() string {
	switch s.stage {
	case StageSynthesizing:
		return "⟳"
	case StageAssembling:
		return "◼"
	case StageSaving:
		return "↓"
	case StageDone:
		return "✓"
	case StageError:
		return "✗"
	default:
		return "○"
	}
}

// formatDuration formats d as m:ss.
func formatDuration(d time.Duration) string {
	if d < 0 {
		return "0:00"
	}
	return fmt.Sprintf("%d:%02d", int(d.Minutes()), int(d.Seconds())%60)
}
