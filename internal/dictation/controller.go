// Package dictation runs a worksheet part through normalization, planning,
// synthesis and assembly.
package dictation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/dictation-buddy/internal/assemble"
	"github.com/dgnsrekt/dictation-buddy/internal/cache"
	"github.com/dgnsrekt/dictation-buddy/internal/dtypes"
	"github.com/dgnsrekt/dictation-buddy/internal/normalize"
	"github.com/dgnsrekt/dictation-buddy/internal/plan"
	"github.com/dgnsrekt/dictation-buddy/internal/synth"
)

// ErrNilResult is returned by Replan without a previous result.
var ErrNilResult = errors.New("no previous result to replan")

// Job describes one track to build. Exactly one of Words and Passage is
// used, chosen by Kind.
type Job struct {
	Kind     dtypes.UnitKind
	Language string
	Words    []string
	Passage  string

	// Voice.Lang may be left empty; it is filled from the resolved language.
	Voice dtypes.VoiceConfig
	Plan  plan.Config

	// ArenaBytes bounds the clip arena. 0 is unbounded.
	ArenaBytes int64
}

// Result is a finished track together with everything needed to rebuild
// or replan it.
type Result struct {
	Lang       dtypes.Lang
	Units      []dtypes.TextUnit
	Tokens     []dtypes.SpokenToken
	Voice      dtypes.VoiceConfig
	PlanConfig plan.Config
	Plan       dtypes.PlaybackPlan
	Track      *dtypes.AssembledTrack
	Arena      cache.Stats
	Elapsed    time.Duration

	clips *cache.ClipArena
}

// Stats summarizes the work a controller has done.
type Stats struct {
	TracksAssembled  int64
	ClipsSynthesized int64
	Failures         int64
	LastActivity     time.Time
}

// Controller wires the pipeline stages together. It is safe for concurrent
// use; every call works on its own clip arena.
type Controller struct {
	normalizer *normalize.Normalizer
	dispatcher *synth.Dispatcher
	assembler  *assemble.Assembler

	stats   Stats
	statsMu sync.Mutex
}

// NewController creates a controller. The assembler uses the dispatcher's
// track format.
func NewController(normalizer *normalize.Normalizer, dispatcher *synth.Dispatcher) (*Controller, error) {
	if normalizer == nil {
		return nil, fmt.Errorf("normalizer cannot be nil")
	}
	if dispatcher == nil {
		return nil, fmt.Errorf("dispatcher cannot be nil")
	}
	return &Controller{
		normalizer: normalizer,
		dispatcher: dispatcher,
		assembler:  assemble.New(dispatcher.Format()),
	}, nil
}

// Assemble builds the track for job. Input, plan and voice problems are
// reported before any synthesis request is made. A synthesis failure aborts
// the whole track.
func (c *Controller) Assemble(ctx context.Context, job Job) (*Result, error) {
	var (
		norm normalize.Result
		err  error
	)
	switch job.Kind {
	case dtypes.KindWord:
		norm, err = c.normalizer.Words(job.Words, job.Language)
	case dtypes.KindSentence:
		norm, err = c.normalizer.Passage(job.Passage, job.Language)
	default:
		err = &dtypes.InvalidConfigError{Field: "kind", Value: job.Kind, Reason: "must be word or sentence"}
	}
	if err != nil {
		return nil, c.fail(err)
	}

	voice := job.Voice
	if voice.Lang == "" {
		voice.Lang = norm.Lang
	}

	arena := cache.NewClipArena(job.ArenaBytes)
	return c.run(ctx, norm.Lang, norm.Units, norm.Tokens, voice, job.Plan, arena)
}

// Replan rebuilds prev with a new plan configuration or voice without
// normalizing again. Clips from prev are reused when their voice and speed
// still apply.
func (c *Controller) Replan(ctx context.Context, prev *Result, cfg plan.Config, voice dtypes.VoiceConfig) (*Result, error) {
	if prev == nil {
		return nil, ErrNilResult
	}
	if voice.Lang == "" {
		voice.Lang = prev.Lang
	}

	arena := cache.NewClipArena(0)
	if prev.clips != nil {
		for _, key := range prev.clips.Keys() {
			if key.VoiceID != voice.VoiceID || key.Speed != voice.Speed {
				continue
			}
			if clip, ok := prev.clips.Get(key); ok {
				if err := arena.Put(clip); err != nil {
					return nil, fmt.Errorf("reuse clip %s: %w", key, err)
				}
			}
		}
	}

	log.Debug("Replanning", "units", len(prev.Units), "reused", arena.Len())
	return c.run(ctx, prev.Lang, prev.Units, prev.Tokens, voice, cfg, arena)
}

func (c *Controller) run(
	ctx context.Context,
	lang dtypes.Lang,
	units []dtypes.TextUnit,
	tokens []dtypes.SpokenToken,
	voice dtypes.VoiceConfig,
	cfg plan.Config,
	arena *cache.ClipArena,
) (*Result, error) {
	start := time.Now()

	p, err := plan.Build(units, cfg)
	if err != nil {
		return nil, c.fail(err)
	}
	if err := c.dispatcher.ValidateVoice(voice); err != nil {
		return nil, c.fail(err)
	}
	if voice.Lang != lang {
		return nil, c.fail(&dtypes.InvalidConfigError{Field: "voice", Value: voice.VoiceID, Reason: fmt.Sprintf("speaks %s but the text is %s", voice.Lang, lang)})
	}

	before := arena.Len()
	clips, err := c.dispatcher.Dispatch(ctx, p, units, tokens, voice, arena)
	if err != nil {
		return nil, c.fail(err)
	}

	track, err := c.assembler.Assemble(p, clips)
	if err != nil {
		return nil, c.fail(fmt.Errorf("assemble track: %w", err))
	}

	res := &Result{
		Lang:       lang,
		Units:      units,
		Tokens:     tokens,
		Voice:      voice,
		PlanConfig: cfg,
		Plan:       p,
		Track:      track,
		Arena:      arena.Stats(),
		Elapsed:    time.Since(start),
		clips:      arena,
	}

	c.statsMu.Lock()
	c.stats.TracksAssembled++
	c.stats.ClipsSynthesized += int64(arena.Len() - before)
	c.stats.LastActivity = time.Now()
	c.statsMu.Unlock()

	log.Info("Track assembled", "lang", lang, "units", len(units), "duration", track.Duration(), "elapsed", res.Elapsed)
	return res, nil
}

func (c *Controller) fail(err error) error {
	c.statsMu.Lock()
	c.stats.Failures++
	c.stats.LastActivity = time.Now()
	c.statsMu.Unlock()
	return err
}

// Stats returns a snapshot of the controller statistics.
func (c *Controller) Stats() Stats {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	return c.stats
}
