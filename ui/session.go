package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/styles"
	"github.com/dgnsrekt/dictation-buddy/internal/library"
	"github.com/dustin/go-humanize"
	runewidth "github.com/mattn/go-runewidth"
	"github.com/muesli/reflow/truncate"
	"github.com/muesli/termenv"
)

const maxUnitWidth = 48

// GlamourStyle returns the renderer option for style. "auto" picks the
// dark or light theme from the terminal background.
func GlamourStyle(style string) glamour.TermRendererOption {
	if style != styles.AutoStyle {
		return glamour.WithStylePath(style)
	}
	if !termenv.HasDarkBackground() {
		return glamour.WithStandardStyle(styles.LightStyle)
	}
	return glamour.WithStandardStyle(styles.DarkStyle)
}

// SessionMarkdown describes a saved recording as Markdown.
func SessionMarkdown(e library.Entry) string {
	m := e.Manifest
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", m.Name)
	fmt.Fprintf(&b, "- **Recording:** `%s`\n", e.Name)
	fmt.Fprintf(&b, "- **Created:** %s\n", m.CreatedAt.Format(time.RFC1123))
	fmt.Fprintf(&b, "- **Part:** %s (%s)\n", m.Kind, m.Lang)
	fmt.Fprintf(&b, "- **Voice:** %s at %.2gx\n", m.Voice.VoiceID, m.Voice.Speed)
	fmt.Fprintf(&b, "- **Repeats:** %d, %d ms apart, %d ms between units\n",
		m.Config.Repeats, m.Config.RepeatGapMS(), m.Config.InterUnitSilenceMS)
	if m.Plan.Shuffled {
		fmt.Fprintf(&b, "- **Shuffled:** seed %d\n", m.Plan.Seed)
	}
	fmt.Fprintf(&b, "- **Length:** %s (%s, %s)\n\n", formatDuration(m.Duration()), m.Format, humanize.IBytes(uint64(e.Size))) //nolint:gosec

	b.WriteString("| # | Unit | Starts | Length |\n")
	b.WriteString("|--:|------|-------:|-------:|\n")
	for i, entry := range m.Plan.Entries {
		if entry.UnitIndex < 0 || entry.UnitIndex >= len(m.Units) {
			continue
		}
		u := m.Units[entry.UnitIndex]
		text := truncate.StringWithTail(u.Text, maxUnitWidth, ellipsis)
		text = strings.ReplaceAll(text, "|", `\|`)
		fmt.Fprintf(&b, "| %d | %s | %s | %s |\n",
			i+1,
			text,
			formatDuration(m.Format.Duration(u.Span.StartFrame)),
			formatSeconds(m.Format.Duration(u.Span.Frames())),
		)
	}
	return b.String()
}

// RenderSession renders SessionMarkdown with glamour.
func RenderSession(e library.Entry, style string, width int) (string, error) {
	r, err := glamour.NewTermRenderer(
		GlamourStyle(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", fmt.Errorf("unable to create renderer: %w", err)
	}
	out, err := r.Render(SessionMarkdown(e))
	if err != nil {
		return "", fmt.Errorf("unable to render session: %w", err)
	}
	return out, nil
}

// RenderList renders entries as aligned columns, with ages relative to now.
func RenderList(entries []library.Entry, now time.Time) string {
	if len(entries) == 0 {
		return grayStyle.Render("No recordings yet.") + "\n"
	}

	nameWidth := 0
	for _, e := range entries {
		nameWidth = max(nameWidth, runewidth.StringWidth(e.Manifest.Name))
	}
	nameWidth = min(nameWidth, maxUnitWidth)

	var b strings.Builder
	for _, e := range entries {
		m := e.Manifest
		name := runewidth.FillRight(runewidth.Truncate(m.Name, nameWidth, ellipsis), nameWidth)
		fmt.Fprintf(&b, "%s  %-10s %-5s %6s %9s  %s\n",
			name,
			m.Kind,
			m.Lang,
			formatDuration(m.Duration()),
			humanize.IBytes(uint64(e.Size)), //nolint:gosec
			grayStyle.Render(humanize.RelTime(m.CreatedAt, now, "ago", "from now")),
		)
	}
	return b.String()
}

func formatSeconds(d time.Duration) string {
	return fmt.Sprintf("%.1fs", d.Seconds())
}
