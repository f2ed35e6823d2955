package main

import (
	"context"
	"fmt"
	"time"

	"github.com/dgnsrekt/dictation-buddy/internal/dtypes"
	"github.com/dgnsrekt/dictation-buddy/internal/normalize"
	"github.com/dgnsrekt/dictation-buddy/internal/synth"
	"github.com/dgnsrekt/dictation-buddy/internal/synth/engines"
	"github.com/dgnsrekt/dictation-buddy/ui"
	"github.com/spf13/cobra"
)

var (
	voicesOnline bool

	voicesCmd = &cobra.Command{
		Use:   "voices [LANG]",
		Short: "List the voices of the selected engine",
		Long: paragraph(fmt.Sprintf("\n%s the voices the engine offers per language. The marked voice is used when the config names none.",
			keyword("List"))),
		Example: paragraph("dictate voices\ndictate voices zh-TW --online\ndictate voices en --engine tencent"),
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n := normalize.New()
			langs := n.Languages()
			if len(args) == 1 {
				lang, err := n.ResolveLang(args[0])
				if err != nil {
					return err //nolint:wrapcheck
				}
				langs = []dtypes.Lang{lang}
			}

			var edge *engines.Edge
			if voicesOnline {
				if cfg.Engine != engines.NameEdge {
					return fmt.Errorf("--online is only supported by the %s engine", engines.NameEdge)
				}
				e, err := engines.NewEdge(cfg.Engines.Edge, cfg.TrackFormat())
				if err != nil {
					return err //nolint:wrapcheck
				}
				edge = e
			}

			for _, lang := range langs {
				voices := engines.Catalog(cfg.Engine, lang)
				if edge != nil {
					ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
					online, err := edge.OnlineVoices(ctx, lang)
					cancel()
					if err != nil {
						return err //nolint:wrapcheck
					}
					voices = mergeVoices(voices, online)
				}
				fmt.Print(ui.RenderVoices(lang, voices, cfg.Voice(lang, dtypes.KindWord).VoiceID))
			}
			return nil
		},
	}
)

func init() {
	voicesCmd.Flags().BoolVar(&voicesOnline, "online", false, "also query the service for every voice (edge only)")
}

// mergeVoices appends the voices of extra that base does not list.
func mergeVoices(base, extra []synth.Voice) []synth.Voice {
	seen := make(map[string]bool, len(base))
	for _, v := range base {
		seen[v.ID] = true
	}
	for _, v := range extra {
		if !seen[v.ID] {
			seen[v.ID] = true
			base = append(base, v)
		}
	}
	return base
}
