package ui

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/dictation-buddy/internal/synth"
)

type (
	// PartStartedMsg announces that a worksheet part is being generated.
	PartStartedMsg struct{ Part string }

	// ProgressMsg reports a finished clip.
	ProgressMsg synth.Progress

	// StageMsg moves the current part to another stage.
	StageMsg Stage

	// PartDoneMsg reports a finished track.
	PartDoneMsg struct {
		Part     string
		Duration time.Duration
		Path     string
	}

	// FinishedMsg ends the program.
	FinishedMsg struct{ Err error }
)

// ProgressModel shows generation progress with a spinner.
type ProgressModel struct {
	spinner  spinner.Model
	status   *StatusDisplay
	width    int
	done     []string
	err      error
	finished bool
	cancel   context.CancelFunc
}

// NewProgressModel creates the model. cancel is called when the user
// interrupts.
func NewProgressModel(cancel context.CancelFunc) ProgressModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#00AAFF"))
	return ProgressModel{
		spinner: sp,
		status:  NewStatusDisplay(),
		width:   60,
		cancel:  cancel,
	}
}

// Init starts the spinner.
func (m ProgressModel) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update handles progress messages.
func (m ProgressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" || msg.String() == "q" {
			if m.cancel != nil {
				m.cancel()
			}
			m.status.SetStage(StageError)
		}
		return m, nil

	case PartStartedMsg:
		m.status.Start(msg.Part)
		return m, nil

	case ProgressMsg:
		m.status.Progress(msg.Done, msg.Total, msg.Cached)
		return m, nil

	case StageMsg:
		m.status.SetStage(Stage(msg))
		return m, nil

	case PartDoneMsg:
		m.status.Finish(msg.Duration)
		line := m.status.CompactStatus()
		if msg.Path != "" {
			line += grayStyle.Render(" → " + msg.Path)
		}
		m.done = append(m.done, line)
		return m, nil

	case FinishedMsg:
		m.err = msg.Err
		m.finished = true
		if msg.Err != nil {
			m.status.Fail(msg.Err)
		}
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View renders finished parts and the active one.
func (m ProgressModel) View() string {
	var b strings.Builder
	for _, line := range m.done {
		b.WriteString(line + "\n")
	}
	if m.status.IsActive() {
		b.WriteString(m.spinner.View() + " " + m.status.DetailedStatus(m.width) + "\n")
	}
	if m.finished && m.err != nil {
		b.WriteString(m.status.DetailedStatus(m.width) + "\n")
	}
	return b.String()
}

// RunWithProgress runs work while drawing progress on w. work sends
// messages through send; its error is returned.
func RunWithProgress(ctx context.Context, w io.Writer, work func(ctx context.Context, send func(tea.Msg)) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(NewProgressModel(cancel), tea.WithOutput(w), tea.WithContext(ctx))

	errc := make(chan error, 1)
	go func() {
		err := work(ctx, p.Send)
		p.Send(FinishedMsg{Err: err})
		errc <- err
	}()

	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		log.Debug("Progress display stopped", "error", err)
	}
	cancel()
	return <-errc
}

// PlainProgress returns a send function that logs progress lines to w for
// non-interactive output.
func PlainProgress(w io.Writer) func(tea.Msg) {
	return func(msg tea.Msg) {
		switch msg := msg.(type) {
		case PartStartedMsg:
			fmt.Fprintf(w, "Generating %s...\n", msg.Part) //nolint:errcheck
		case PartDoneMsg:
			line := fmt.Sprintf("%s: %s", msg.Part, formatDuration(msg.Duration))
			if msg.Path != "" {
				line += " → " + msg.Path
			}
			fmt.Fprintln(w, line) //nolint:errcheck
		}
	}
}
