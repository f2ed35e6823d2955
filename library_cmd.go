package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/glamour/styles"
	"github.com/dgnsrekt/dictation-buddy/internal/audio"
	"github.com/dgnsrekt/dictation-buddy/internal/library"
	"github.com/dgnsrekt/dictation-buddy/ui"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	showStyle string
	showWidth uint
	pathCopy  bool

	libraryCmd = &cobra.Command{
		Use:     "library",
		Aliases: []string{"lib"},
		Short:   "Browse saved recordings",
		Long:    paragraph(fmt.Sprintf("\n%s, inspect and replay the recordings saved by generate.", keyword("List"))),
		Args:    cobra.NoArgs,
	}

	libraryListCmd = &cobra.Command{
		Use:   "list",
		Short: "List saved recordings, newest first",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			lib, err := openLibrary()
			if err != nil {
				return err
			}
			entries, err := lib.List()
			if err != nil {
				return err //nolint:wrapcheck
			}
			fmt.Print(ui.RenderList(entries, time.Now()))
			return nil
		},
	}

	libraryFindCmd = &cobra.Command{
		Use:   "find QUERY",
		Short: "Find recordings by name or unit text",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			lib, err := openLibrary()
			if err != nil {
				return err
			}
			entries, err := lib.Find(args[0])
			if err != nil {
				return err //nolint:wrapcheck
			}
			fmt.Print(ui.RenderList(entries, time.Now()))
			return nil
		},
	}

	libraryShowCmd = &cobra.Command{
		Use:   "show NAME",
		Short: "Show a recording and its units",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lib, err := openLibrary()
			if err != nil {
				return err
			}
			e, err := lib.Stat(args[0])
			if err != nil {
				return err //nolint:wrapcheck
			}

			style, width := renderOptions(cmd)
			out, err := ui.RenderSession(e, style, width)
			if err != nil {
				return err //nolint:wrapcheck
			}
			fmt.Print(out)
			return nil
		},
	}

	libraryPreviewCmd = &cobra.Command{
		Use:     "preview NAME UNIT",
		Short:   "Play one unit of a recording",
		Long:    paragraph("\nPlay the first reading of one unit. UNIT is its position as listed by show, or its text."),
		Example: paragraph("dictate library preview Week-3_20260314T092653Z 2\ndictate library preview Week-3_20260314T092653Z giraffe"),
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			lib, err := openLibrary()
			if err != nil {
				return err
			}
			e, err := lib.Stat(args[0])
			if err != nil {
				return err //nolint:wrapcheck
			}
			unit, err := e.Manifest.ResolveUnit(args[1])
			if err != nil {
				return err //nolint:wrapcheck
			}
			pcm, f, err := lib.Preview(e.Name, unit)
			if err != nil {
				return err //nolint:wrapcheck
			}

			player, err := audio.NewPlayer()
			if err != nil {
				return err //nolint:wrapcheck
			}
			defer player.Close() //nolint:errcheck

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			if err := player.Play(ctx, pcm, f); err != nil && !errors.Is(err, context.Canceled) {
				return err //nolint:wrapcheck
			}
			return nil
		},
	}

	libraryPathCmd = &cobra.Command{
		Use:   "path NAME",
		Short: "Print the audio file of a recording",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			lib, err := openLibrary()
			if err != nil {
				return err
			}
			e, err := lib.Stat(args[0])
			if err != nil {
				return err //nolint:wrapcheck
			}
			fmt.Println(e.AudioPath)
			if pathCopy {
				if err := clipboard.WriteAll(e.AudioPath); err != nil {
					return fmt.Errorf("unable to copy to clipboard: %w", err)
				}
			}
			return nil
		},
	}
)

func init() {
	libraryShowCmd.Flags().StringVarP(&showStyle, "style", "s", styles.AutoStyle, "style name or JSON path")
	libraryShowCmd.Flags().UintVarP(&showWidth, "width", "w", 0, "word-wrap at width")
	libraryPathCmd.Flags().BoolVarP(&pathCopy, "copy", "c", false, "copy the path to the clipboard")

	libraryCmd.AddCommand(libraryListCmd, libraryFindCmd, libraryShowCmd, libraryPreviewCmd, libraryPathCmd)
}

func openLibrary() (*library.Library, error) {
	return library.New(cfg.Library.Dir, library.Options{ //nolint:wrapcheck
		Compress: cfg.Library.Compress,
		Level:    cfg.Library.Level,
	})
}

// renderOptions picks the glamour style and wrap width for stdout.
func renderOptions(cmd *cobra.Command) (string, int) {
	uc, err := env.ParseAs[ui.Config]()
	if err != nil {
		uc = ui.Config{GlamourStyle: styles.AutoStyle, GlamourEnabled: true}
	}

	style := showStyle
	if !cmd.Flags().Changed("style") && uc.GlamourStyle != "" {
		style = uc.GlamourStyle
	}
	isTerminal := term.IsTerminal(int(os.Stdout.Fd()))
	// We want to use a special no-TTY style, when stdout is not a terminal
	// and there was no specific style passed by arg
	if !isTerminal && !cmd.Flags().Changed("style") {
		style = styles.NoTTYStyle
	}
	if !uc.GlamourEnabled {
		style = styles.NoTTYStyle
	}

	width := showWidth
	if !cmd.Flags().Changed("width") {
		width = uc.GlamourMaxWidth
	}
	if width == 0 && isTerminal {
		w, _, err := term.GetSize(int(os.Stdout.Fd()))
		if err == nil {
			width = uint(w) //nolint:gosec
		}
		width = min(width, 120)
	}
	if width == 0 {
		width = 80
	}
	return strings.TrimSpace(style), int(width) //nolint:gosec
}
