package synth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/dictation-buddy/internal/audio"
	"github.com/dgnsrekt/dictation-buddy/internal/cache"
	"github.com/dgnsrekt/dictation-buddy/internal/dtypes"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Speed limits accepted by every engine.
const (
	MinSpeed = 0.5
	MaxSpeed = 2.0
)

// Progress reports one finished clip.
type Progress struct {
	Done   int
	Total  int
	Key    dtypes.ClipKey
	Cached bool
}

// Options controls dispatch concurrency and retries.
type Options struct {
	// Concurrency bounds in-flight requests.
	Concurrency int

	// RequestsPerSecond throttles request starts. 0 disables throttling.
	RequestsPerSecond float64

	// MaxAttempts is the total number of tries per clip, including the first.
	MaxAttempts int

	BaseBackoff time.Duration
	MaxBackoff  time.Duration

	// Format is the track format clips are converted to.
	Format audio.Format

	// OnProgress, if set, is called after each clip is available. Calls are
	// serialized.
	OnProgress func(Progress)
}

// DefaultOptions returns conservative settings for online engines.
func DefaultOptions() Options {
	return Options{
		Concurrency:       4,
		RequestsPerSecond: 5,
		MaxAttempts:       3,
		BaseBackoff:       500 * time.Millisecond,
		MaxBackoff:        5 * time.Second,
		Format:            audio.DefaultFormat(),
	}
}

// Validate checks the options.
func (o Options) Validate() error {
	switch {
	case o.Concurrency < 1 || o.Concurrency > 64:
		return &dtypes.InvalidConfigError{Field: "dispatch.concurrency", Value: o.Concurrency, Reason: "must be between 1 and 64"}
	case o.RequestsPerSecond < 0:
		return &dtypes.InvalidConfigError{Field: "dispatch.requests_per_second", Value: o.RequestsPerSecond, Reason: "must not be negative"}
	case o.MaxAttempts < 1 || o.MaxAttempts > 10:
		return &dtypes.InvalidConfigError{Field: "dispatch.max_attempts", Value: o.MaxAttempts, Reason: "must be between 1 and 10"}
	case o.BaseBackoff < 0 || o.MaxBackoff < o.BaseBackoff:
		return &dtypes.InvalidConfigError{Field: "dispatch.backoff", Value: o.BaseBackoff, Reason: "base must be >= 0 and <= max"}
	}
	if err := o.Format.Validate(); err != nil {
		return &dtypes.InvalidConfigError{Field: "audio.sample_rate", Value: o.Format, Reason: err.Error()}
	}
	return nil
}

// Dispatcher synthesizes the distinct clips a plan needs.
type Dispatcher struct {
	engine  Synthesizer
	opts    Options
	limiter *rate.Limiter
}

// NewDispatcher creates a dispatcher for engine.
func NewDispatcher(engine Synthesizer, opts Options) (*Dispatcher, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), opts.Concurrency)
	}

	return &Dispatcher{
		engine:  engine,
		opts:    opts,
		limiter: limiter,
	}, nil
}

// Engine returns the underlying engine.
func (d *Dispatcher) Engine() Synthesizer {
	return d.engine
}

// Format returns the track format clips are converted to.
func (d *Dispatcher) Format() audio.Format {
	return d.opts.Format
}

// ValidateVoice checks the voice before any request is made.
func (d *Dispatcher) ValidateVoice(voice dtypes.VoiceConfig) error {
	if voice.Speed < MinSpeed || voice.Speed > MaxSpeed {
		return &dtypes.InvalidConfigError{Field: "speed", Value: voice.Speed, Reason: "must be between 0.5 and 2.0"}
	}
	if !HasVoice(d.engine, voice.Lang, voice.VoiceID) {
		return fmt.Errorf("%w: %q is not a %s voice of %s", dtypes.ErrUnknownVoice, voice.VoiceID, voice.Lang, d.engine.Info().Name)
	}
	return nil
}

// Dispatch makes sure arena holds a clip for every unit in p and returns
// them by unit index. Each distinct (token, voice, speed) key is requested
// once. The first clip that cannot be produced cancels all outstanding
// requests and is returned as a *dtypes.SynthesisError.
func (d *Dispatcher) Dispatch(
	ctx context.Context,
	p dtypes.PlaybackPlan,
	units []dtypes.TextUnit,
	tokens []dtypes.SpokenToken,
	voice dtypes.VoiceConfig,
	arena *cache.ClipArena,
) (dtypes.ClipSet, error) {
	if len(units) != len(tokens) {
		return nil, fmt.Errorf("have %d units but %d tokens", len(units), len(tokens))
	}
	if err := d.ValidateVoice(voice); err != nil {
		return nil, err
	}

	tokenOf := make(map[int]dtypes.SpokenToken, len(units))
	for i, u := range units {
		if u.Lang != voice.Lang {
			return nil, &dtypes.InvalidConfigError{Field: "voice", Value: voice.VoiceID, Reason: fmt.Sprintf("speaks %s but unit %d is %s", voice.Lang, u.Index, u.Lang)}
		}
		tokenOf[u.Index] = tokens[i]
	}

	keyOf := make(map[int]dtypes.ClipKey, len(p.Entries))
	var pending []dtypes.ClipKey
	queued := make(map[dtypes.ClipKey]bool)
	cached := 0
	for _, e := range p.Entries {
		tok, ok := tokenOf[e.UnitIndex]
		if !ok {
			return nil, fmt.Errorf("plan references unit %d: %w", e.UnitIndex, dtypes.ErrUnknownUnit)
		}
		key := dtypes.ClipKey{Token: tok, VoiceID: voice.VoiceID, Speed: voice.Speed}
		keyOf[e.UnitIndex] = key
		if queued[key] {
			continue
		}
		queued[key] = true
		if arena.Contains(key) {
			cached++
			continue
		}
		pending = append(pending, key)
	}

	total := cached + len(pending)
	var (
		progressMu sync.Mutex
		done       = cached
	)
	report := func(key dtypes.ClipKey, fromArena bool) {
		if d.opts.OnProgress == nil {
			return
		}
		progressMu.Lock()
		defer progressMu.Unlock()
		if !fromArena {
			done++
		}
		d.opts.OnProgress(Progress{Done: done, Total: total, Key: key, Cached: fromArena})
	}
	if cached > 0 {
		report(dtypes.ClipKey{}, true)
	}

	log.Debug("Dispatching synthesis", "engine", d.engine.Info().Name, "clips", len(pending), "cached", cached, "units", len(units))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.opts.Concurrency)
	for _, key := range pending {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			clip, err := d.synthesize(gctx, key, voice.Lang)
			if err != nil {
				return err
			}
			if err := arena.Put(clip); err != nil {
				return &dtypes.SynthesisError{Key: key, Attempts: 1, Err: err}
			}
			report(key, false)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("dispatch canceled: %w", ctx.Err())
		}
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, fmt.Errorf("dispatch canceled: %w", ctx.Err())
	}

	clips := make(dtypes.ClipSet, len(keyOf))
	for idx, key := range keyOf {
		clip, ok := arena.Get(key)
		if !ok {
			return nil, fmt.Errorf("clip %s for unit %d missing after dispatch", key, idx)
		}
		clips[idx] = clip
	}
	return clips, nil
}

// synthesize runs one key through the engine with retries.
func (d *Dispatcher) synthesize(ctx context.Context, key dtypes.ClipKey, lang dtypes.Lang) (dtypes.Clip, error) {
	req := Request{
		Text:    string(key.Token),
		VoiceID: key.VoiceID,
		Speed:   key.Speed,
		Lang:    lang,
	}

	var lastErr error
	attempts := 0
	for attempts < d.opts.MaxAttempts {
		attempts++
		if err := d.limiter.Wait(ctx); err != nil {
			return dtypes.Clip{}, err
		}

		res, err := d.engine.Synthesize(ctx, req)
		if err == nil {
			clip, cerr := d.toClip(key, res)
			if cerr != nil {
				return dtypes.Clip{}, &dtypes.SynthesisError{Key: key, Attempts: attempts, Err: cerr}
			}
			return clip, nil
		}
		if ctx.Err() != nil {
			return dtypes.Clip{}, ctx.Err()
		}

		lastErr = err
		if !dtypes.IsRetryable(err) || attempts == d.opts.MaxAttempts {
			break
		}

		wait := d.backoff(attempts)
		log.Debug("Retrying synthesis", "key", key, "attempt", attempts, "wait", wait, "error", err)
		if err := sleep(ctx, wait); err != nil {
			return dtypes.Clip{}, err
		}
	}

	log.Warn("Synthesis failed", "key", key, "token", key.Token, "attempts", attempts, "error", lastErr)
	return dtypes.Clip{}, &dtypes.SynthesisError{Key: key, Attempts: attempts, Err: lastErr}
}

func (d *Dispatcher) toClip(key dtypes.ClipKey, res Result) (dtypes.Clip, error) {
	pcm, err := audio.Convert(res.PCM, res.Format, d.opts.Format)
	if err != nil {
		return dtypes.Clip{}, fmt.Errorf("convert engine audio: %w", err)
	}
	return dtypes.Clip{Key: key, Format: d.opts.Format, PCM: pcm}, nil
}

// backoff returns the wait before attempt n+1.
func (d *Dispatcher) backoff(n int) time.Duration {
	if d.opts.BaseBackoff == 0 {
		return 0
	}
	wait := d.opts.BaseBackoff << (n - 1)
	if wait > d.opts.MaxBackoff || wait <= 0 {
		return d.opts.MaxBackoff
	}
	return wait
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
