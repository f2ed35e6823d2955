package ui

import (
	"fmt"
	"strings"

	"github.com/dgnsrekt/dictation-buddy/internal/dtypes"
	"github.com/dgnsrekt/dictation-buddy/internal/synth"
	runewidth "github.com/mattn/go-runewidth"
)

// RenderVoices lists voices for lang as aligned columns. def is marked as
// the default.
func RenderVoices(lang dtypes.Lang, voices []synth.Voice, def string) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render(string(lang)) + "\n")
	if len(voices) == 0 {
		b.WriteString(grayStyle.Render("  no voices") + "\n")
		return b.String()
	}

	idWidth, nameWidth := 0, 0
	for _, v := range voices {
		idWidth = max(idWidth, runewidth.StringWidth(v.ID))
		nameWidth = max(nameWidth, runewidth.StringWidth(v.Name))
	}

	for _, v := range voices {
		mark := " "
		if v.ID == def {
			mark = "*"
		}
		line := fmt.Sprintf("%s %s  %s  %s",
			mark,
			runewidth.FillRight(v.ID, idWidth),
			runewidth.FillRight(v.Name, nameWidth),
			v.Gender,
		)
		b.WriteString(strings.TrimRight(line, " ") + "\n")
	}
	return b.String()
}
