package main

import (
	"fmt"
	"math/rand/v2"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dgnsrekt/dictation-buddy/internal/config"
	"github.com/dgnsrekt/dictation-buddy/internal/dictation"
	"github.com/dgnsrekt/dictation-buddy/internal/dtypes"
	"github.com/dgnsrekt/dictation-buddy/internal/extract"
	"github.com/dgnsrekt/dictation-buddy/internal/normalize"
	"github.com/dgnsrekt/dictation-buddy/internal/synth"
	"github.com/dgnsrekt/dictation-buddy/internal/synth/engines"
	"github.com/dgnsrekt/dictation-buddy/ui"
)

// pipeline is an engine with the controller built on it.
type pipeline struct {
	cfg        config.Config
	engine     synth.Synthesizer
	normalizer *normalize.Normalizer
	controller *dictation.Controller

	// draw picks the seed of a shuffle that has none configured
	draw func() uint64

	mu   sync.Mutex
	send func(tea.Msg)
}

func newPipeline(c config.Config) (*pipeline, error) {
	engine, err := engines.New(c.Engine, c.Engines, c.TrackFormat())
	if err != nil {
		return nil, err //nolint:wrapcheck
	}

	p := &pipeline{
		cfg:        c,
		engine:     engine,
		normalizer: normalize.New(normalize.WithLiteralWords(c.LiteralWords)),
		draw:       drawSeed,
	}

	opts := c.DispatchOptions()
	opts.OnProgress = p.progress
	dispatcher, err := synth.NewDispatcher(engine, opts)
	if err != nil {
		_ = engine.Close()
		return nil, fmt.Errorf("unable to create dispatcher: %w", err)
	}
	p.controller, err = dictation.NewController(p.normalizer, dispatcher)
	if err != nil {
		_ = engine.Close()
		return nil, fmt.Errorf("unable to create controller: %w", err)
	}
	return p, nil
}

// reporter routes progress to send until the next call.
func (p *pipeline) reporter(send func(tea.Msg)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.send = send
}

func (p *pipeline) progress(pr synth.Progress) {
	p.mu.Lock()
	send := p.send
	p.mu.Unlock()
	if send != nil {
		send(ui.ProgressMsg(pr))
	}
}

// job turns an extracted part into a controller job using the configured
// voice and plan for its kind. A shuffle without a configured seed gets a
// fresh one, except when prev was shuffled: replanning keeps its order.
func (p *pipeline) job(part extract.Part, prev *dictation.Result) (dictation.Job, error) {
	lang, err := p.normalizer.ResolveLang(part.Language)
	if err != nil {
		return dictation.Job{}, err //nolint:wrapcheck
	}
	kind := dtypes.KindWord
	if part.Kind == extract.PartPassage {
		kind = dtypes.KindSentence
	}

	pc := p.cfg.Part(kind).Config
	if pc.Shuffle && pc.Seed == 0 {
		if prev != nil && prev.Plan.Shuffled {
			pc.Seed = prev.Plan.Seed
		} else {
			pc.Seed = p.draw()
		}
	}

	return dictation.Job{
		Kind:       kind,
		Language:   part.Language,
		Words:      part.Words,
		Passage:    part.Passage,
		Voice:      p.cfg.Voice(lang, kind),
		Plan:       pc,
		ArenaBytes: p.cfg.ArenaBytes(),
	}, nil
}

// drawSeed returns a random non-zero seed. The seed is stored with the
// plan, so the order can be rebuilt later.
func drawSeed() uint64 {
	for {
		if s := rand.Uint64(); s != 0 { //nolint:gosec
			return s
		}
	}
}

// sameEngine reports whether b can reuse a pipeline built for a.
func sameEngine(a, b config.Config) bool {
	return a.Engine == b.Engine &&
		a.Engines == b.Engines &&
		a.Audio == b.Audio &&
		a.Dispatch == b.Dispatch &&
		a.LiteralWords == b.LiteralWords
}

func (p *pipeline) Close() error {
	return p.engine.Close() //nolint:wrapcheck
}
