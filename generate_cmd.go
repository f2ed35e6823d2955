package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/dictation-buddy/internal/config"
	"github.com/dgnsrekt/dictation-buddy/internal/dictation"
	"github.com/dgnsrekt/dictation-buddy/internal/extract"
	"github.com/dgnsrekt/dictation-buddy/internal/library"
	"github.com/dgnsrekt/dictation-buddy/ui"
	"github.com/dgnsrekt/dictation-buddy/utils"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"
)

// watchDebounce collapses the burst of events editors produce on save.
const watchDebounce = 250 * time.Millisecond

// maxNameAttempts bounds the numbered names tried when a recording with the
// same export name but different audio already exists.
const maxNameAttempts = 9

var (
	genOut   string
	genName  string
	genSave  bool
	genOnly  string
	genWatch bool
	genSeed  uint64

	generateCmd = &cobra.Command{
		Use:   "generate [EXTRACTION|-]",
		Short: "Build dictation tracks from an extracted worksheet",
		Long: paragraph(fmt.Sprintf("\n%s a vocabulary track and a passage track from the JSON an OCR step extracted from a worksheet. "+
			"Tracks are saved to the library unless --out is given. Reads stdin when no file is named.", keyword("Build"))),
		Example: paragraph("dictate generate week3.json --name \"Week 3\"\n" +
			"dictate generate week3.json --out . --only vocabulary\n" +
			"dictate generate week3.json --seed 8114217602518932311\n" +
			"dictate generate week3.json --out . --watch"),
		Args: cobra.MaximumNArgs(1),
		RunE: runGenerate,
	}
)

func init() {
	generateCmd.Flags().StringVarP(&genOut, "out", "o", "", "write WAV files to this directory")
	generateCmd.Flags().StringVarP(&genName, "name", "n", "", "recording name (default: the file name)")
	generateCmd.Flags().BoolVarP(&genSave, "save", "s", false, "save to the library, also when --out is given")
	generateCmd.Flags().StringVar(&genOnly, "only", "", "build only the vocabulary or passage part")
	generateCmd.Flags().BoolVarP(&genWatch, "watch", "w", false, "rebuild when the extraction or config file changes")
	generateCmd.Flags().Uint64Var(&genSeed, "seed", 0, "shuffle seed, as shown by \"library show\" (0 picks a new one)")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	src := "-"
	if len(args) == 1 {
		src = args[0]
	}
	if genWatch && src == "-" {
		return errors.New("--watch needs an extraction file")
	}
	switch extract.PartKind(genOnly) {
	case "", extract.PartVocabulary, extract.PartPassage:
	default:
		return fmt.Errorf("--only must be %q or %q", extract.PartVocabulary, extract.PartPassage)
	}

	g := &generator{
		src:     src,
		name:    genName,
		outDir:  genOut,
		save:    genSave || genOut == "",
		only:    extract.PartKind(genOnly),
		results: map[extract.PartKind]*dictation.Result{},
	}
	if cmd.Flags().Changed("seed") {
		g.seed = &genSeed
	}
	if g.name == "" && src != "-" {
		g.name = utils.StemOf(src)
	}
	if err := g.configure(cfg); err != nil {
		return err
	}
	defer g.Close() //nolint:errcheck

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	if err := g.load(); err != nil {
		return err
	}
	if err := g.exec(ctx, false); err != nil {
		return err
	}
	if !genWatch {
		return nil
	}
	return g.watch(ctx)
}

// generator builds and emits the tracks of one extraction.
type generator struct {
	src    string
	name   string
	outDir string
	save   bool
	only   extract.PartKind
	seed   *uint64
	now    func() time.Time

	cfg        config.Config
	pipe       *pipeline
	lib        *library.Library
	extraction extract.Extraction
	results    map[extract.PartKind]*dictation.Result
}

// configure swaps in c, rebuilding the engine only when it changed.
func (g *generator) configure(c config.Config) error {
	if g.seed != nil {
		c.Vocabulary.Seed = *g.seed
		c.Passage.Seed = *g.seed
	}
	if g.pipe != nil && sameEngine(g.pipe.cfg, c) {
		g.pipe.cfg = c
	} else {
		p, err := newPipeline(c)
		if err != nil {
			return err
		}
		if g.pipe != nil {
			_ = g.pipe.Close()
		}
		g.pipe = p
		// clips from another engine can't be reused
		clear(g.results)
	}
	g.cfg = c

	if g.save {
		lib, err := library.New(c.Library.Dir, library.Options{Compress: c.Library.Compress, Level: c.Library.Level})
		if err != nil {
			return err //nolint:wrapcheck
		}
		g.lib = lib
	}
	return nil
}

func (g *generator) Close() error {
	if g.pipe == nil {
		return nil
	}
	return g.pipe.Close()
}

func (g *generator) load() error {
	var (
		b   []byte
		err error
	)
	if g.src == "-" {
		b, err = io.ReadAll(os.Stdin)
	} else {
		b, err = os.ReadFile(g.src)
	}
	if err != nil {
		return fmt.Errorf("unable to read extraction: %w", err)
	}

	ex, err := extract.Parse(b)
	if err != nil {
		return err //nolint:wrapcheck
	}
	g.extraction = ex
	clear(g.results)
	return nil
}

func (g *generator) parts() []extract.Part {
	var out []extract.Part
	for _, p := range g.extraction.Parts() {
		if g.only == "" || p.Kind == g.only {
			out = append(out, p)
		}
	}
	return out
}

// exec builds every part, showing progress on stderr. With replan, parts
// built before are replanned instead of normalized again.
func (g *generator) exec(ctx context.Context, replan bool) error {
	parts := g.parts()
	if len(parts) == 0 {
		return fmt.Errorf("the extraction has no %s part", g.only)
	}

	work := func(ctx context.Context, send func(tea.Msg)) error {
		g.pipe.reporter(send)
		defer g.pipe.reporter(nil)
		for _, part := range parts {
			if err := g.build(ctx, send, part, replan); err != nil {
				return err
			}
		}
		st := g.pipe.controller.Stats()
		log.Info("Generation finished", "tracks", st.TracksAssembled, "clips", st.ClipsSynthesized, "failures", st.Failures)
		return nil
	}

	if term.IsTerminal(int(os.Stderr.Fd())) {
		return ui.RunWithProgress(ctx, os.Stderr, work) //nolint:wrapcheck
	}
	return work(ctx, ui.PlainProgress(os.Stderr))
}

func (g *generator) build(ctx context.Context, send func(tea.Msg), part extract.Part, replan bool) error {
	send(ui.PartStartedMsg{Part: string(part.Kind)})

	prev := g.results[part.Kind]
	if !replan {
		prev = nil
	}
	job, err := g.pipe.job(part, prev)
	if err != nil {
		return fmt.Errorf("%s: %w", part.Kind, err)
	}

	var res *dictation.Result
	if prev != nil {
		res, err = g.pipe.controller.Replan(ctx, prev, job.Plan, job.Voice)
	} else {
		res, err = g.pipe.controller.Assemble(ctx, job)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", part.Kind, err)
	}
	g.results[part.Kind] = res
	log.Info("Part built", "part", part.Kind, "clips", res.Arena.ItemCount, "hit_rate", res.Arena.HitRate, "seed", res.Plan.Seed)

	send(ui.StageMsg(ui.StageSaving))
	path, err := g.emit(part, res)
	if err != nil {
		return fmt.Errorf("%s: %w", part.Kind, err)
	}
	send(ui.PartDoneMsg{Part: string(part.Kind), Duration: res.Track.Duration(), Path: path})
	return nil
}

// emit writes res to the output directory and the library. It returns
// where the track went.
func (g *generator) emit(part extract.Part, res *dictation.Result) (string, error) {
	name := g.name
	if len(g.parts()) > 1 || name == "" {
		name = strings.TrimSpace(fmt.Sprintf("%s %s", name, part.Kind))
	}

	var where string
	if g.outDir != "" {
		where = filepath.Join(utils.ExpandPath(g.outDir), library.Slug(name)+".wav")
		if err := library.WriteTrack(where, res.Track); err != nil {
			return "", err //nolint:wrapcheck
		}
	}
	if g.lib != nil {
		saved, err := g.saveSession(name, res)
		if err != nil {
			return "", err
		}
		if where == "" {
			where = saved
		}
	}
	return where, nil
}

// saveSession stores res in the library. When a different recording took
// the export name in the same second, a numbered name is used instead.
func (g *generator) saveSession(name string, res *dictation.Result) (string, error) {
	now := time.Now
	if g.now != nil {
		now = g.now
	}
	created := now()

	try := name
	for n := 2; ; n++ {
		s, err := library.NewSession(try, created, res)
		if err != nil {
			return "", err //nolint:wrapcheck
		}
		saved, err := g.lib.Save(s)
		if !errors.Is(err, library.ErrExists) || n > maxNameAttempts {
			return saved, err //nolint:wrapcheck
		}
		log.Debug("Export name taken", "name", s.ExportName())
		try = fmt.Sprintf("%s %d", name, n)
	}
}

// watch rebuilds when the extraction or the config file changes. A config
// change that keeps the engine replans the existing units.
func (g *generator) watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("unable to watch files: %w", err)
	}
	defer w.Close() //nolint:errcheck

	src, _ := filepath.Abs(g.src)
	conf := viper.ConfigFileUsed()
	if conf != "" {
		conf, _ = filepath.Abs(conf)
	}
	// editors replace files on save, so the directories are watched
	for _, dir := range uniqueDirs(src, conf) {
		if err := w.Add(dir); err != nil {
			return fmt.Errorf("unable to watch %s: %w", dir, err)
		}
	}
	fmt.Fprintln(os.Stderr, keyword("Watching"), src) //nolint:errcheck

	var (
		timer         = time.NewTimer(0)
		srcChanged    bool
		configChanged bool
	)
	<-timer.C
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn("Watch error", "error", err)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			switch filepath.Clean(ev.Name) {
			case src:
				srcChanged = true
			case conf:
				configChanged = true
			default:
				continue
			}
			timer.Reset(watchDebounce)

		case <-timer.C:
			if err := g.reload(ctx, srcChanged, configChanged); err != nil {
				fmt.Fprintln(os.Stderr, ui.FormatError(err)) //nolint:errcheck
			}
			srcChanged, configChanged = false, false
		}
	}
}

func (g *generator) reload(ctx context.Context, srcChanged, configChanged bool) error {
	if configChanged {
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("unable to read config file: %w", err)
		}
		c, err := config.LoadConfigFromViper(viper.GetViper())
		if err != nil {
			return err
		}
		if err := g.configure(c); err != nil {
			return err
		}
		log.Info("Configuration reloaded", "engine", c.Engine)
	}
	if srcChanged {
		if err := g.load(); err != nil {
			return err
		}
		log.Info("Extraction reloaded", "path", g.src)
	}
	return g.exec(ctx, !srcChanged)
}

func uniqueDirs(paths ...string) []string {
	seen := map[string]bool{}
	var dirs []string
	for _, p := range paths {
		if p == "" {
			continue
		}
		d := filepath.Dir(p)
		if !seen[d] {
			seen[d] = true
			dirs = append(dirs, d)
		}
	}
	return dirs
}
