package synth_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dgnsrekt/dictation-buddy/internal/audio"
	"github.com/dgnsrekt/dictation-buddy/internal/cache"
	"github.com/dgnsrekt/dictation-buddy/internal/dtypes"
	"github.com/dgnsrekt/dictation-buddy/internal/normalize"
	"github.com/dgnsrekt/dictation-buddy/internal/plan"
	"github.com/dgnsrekt/dictation-buddy/internal/synth"
	"github.com/dgnsrekt/dictation-buddy/internal/synth/engines"
)

var mockVoice = dtypes.VoiceConfig{VoiceID: engines.MockVoice, Speed: 1, Lang: dtypes.LangEnglish}

func testOptions() synth.Options {
	opts := synth.DefaultOptions()
	opts.RequestsPerSecond = 0
	opts.BaseBackoff = 0
	opts.MaxBackoff = 0
	return opts
}

type job struct {
	plan   dtypes.PlaybackPlan
	units  []dtypes.TextUnit
	tokens []dtypes.SpokenToken
}

func wordJob(t *testing.T, words ...string) job {
	t.Helper()
	res, err := normalize.New().Words(words, "en")
	if err != nil {
		t.Fatalf("Words failed: %v", err)
	}
	p, err := plan.Build(res.Units, plan.DefaultWordConfig())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	return job{plan: p, units: res.Units, tokens: res.Tokens}
}

func dispatch(ctx context.Context, d *synth.Dispatcher, j job, voice dtypes.VoiceConfig, arena *cache.ClipArena) (dtypes.ClipSet, error) {
	return d.Dispatch(ctx, j.plan, j.units, j.tokens, voice, arena)
}

func TestDispatch_OneRequestPerDistinctToken(t *testing.T) {
	mock := engines.NewMock(audio.DefaultFormat(), engines.MockConfig{})
	d, err := synth.NewDispatcher(mock, testOptions())
	if err != nil {
		t.Fatalf("NewDispatcher failed: %v", err)
	}

	j := wordJob(t, "cat", "dog", "cat", "bird")
	clips, err := dispatch(context.Background(), d, j, mockVoice, cache.NewClipArena(0))
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}

	if len(clips) != 4 {
		t.Fatalf("got %d clips, want 4", len(clips))
	}
	if mock.TotalCalls() != 3 {
		t.Errorf("TotalCalls = %d, want 3", mock.TotalCalls())
	}
	if mock.Calls("cat") != 1 {
		t.Errorf("cat requested %d times", mock.Calls("cat"))
	}
	if string(clips[0].PCM) != string(clips[2].PCM) {
		t.Error("units with the same token got different audio")
	}
	for idx, c := range clips {
		if c.Key.Token != j.tokens[idx] {
			t.Errorf("unit %d: clip token %q, want %q", idx, c.Key.Token, j.tokens[idx])
		}
	}
}

func TestDispatch_ConcurrencyBound(t *testing.T) {
	mock := engines.NewMock(audio.DefaultFormat(), engines.MockConfig{Delay: 20 * time.Millisecond})
	opts := testOptions()
	opts.Concurrency = 2
	d, err := synth.NewDispatcher(mock, opts)
	if err != nil {
		t.Fatalf("NewDispatcher failed: %v", err)
	}

	j := wordJob(t, "one", "two", "three", "four", "five", "six")
	if _, err := dispatch(context.Background(), d, j, mockVoice, cache.NewClipArena(0)); err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if peak := mock.PeakConcurrency(); peak > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", peak)
	}
	if mock.TotalCalls() != 6 {
		t.Errorf("TotalCalls = %d, want 6", mock.TotalCalls())
	}
}

func TestDispatch_RetriesTransientFailures(t *testing.T) {
	transient := &dtypes.TransportError{Engine: engines.NameMock, Err: errors.New("timeout")}

	t.Run("recovers", func(t *testing.T) {
		mock := engines.NewMock(audio.DefaultFormat(), engines.MockConfig{})
		mock.FailTimes("cat", 2, transient)
		d, _ := synth.NewDispatcher(mock, testOptions())

		if _, err := dispatch(context.Background(), d, wordJob(t, "cat"), mockVoice, cache.NewClipArena(0)); err != nil {
			t.Fatalf("Dispatch failed: %v", err)
		}
		if mock.Calls("cat") != 3 {
			t.Errorf("cat requested %d times, want 3", mock.Calls("cat"))
		}
	})

	t.Run("gives up", func(t *testing.T) {
		mock := engines.NewMock(audio.DefaultFormat(), engines.MockConfig{})
		mock.FailTimes("cat", -1, transient)
		d, _ := synth.NewDispatcher(mock, testOptions())

		_, err := dispatch(context.Background(), d, wordJob(t, "cat"), mockVoice, cache.NewClipArena(0))
		var synthErr *dtypes.SynthesisError
		if !errors.As(err, &synthErr) {
			t.Fatalf("expected SynthesisError, got %v", err)
		}
		if synthErr.Attempts != 3 {
			t.Errorf("Attempts = %d, want 3", synthErr.Attempts)
		}
	})

	t.Run("permanent errors are not retried", func(t *testing.T) {
		mock := engines.NewMock(audio.DefaultFormat(), engines.MockConfig{})
		mock.FailTimes("cat", -1, errors.New("text rejected"))
		d, _ := synth.NewDispatcher(mock, testOptions())

		_, err := dispatch(context.Background(), d, wordJob(t, "cat"), mockVoice, cache.NewClipArena(0))
		if !errors.Is(err, dtypes.ErrSynthesis) {
			t.Fatalf("expected ErrSynthesis, got %v", err)
		}
		if mock.Calls("cat") != 1 {
			t.Errorf("cat requested %d times, want 1", mock.Calls("cat"))
		}
	})
}

func TestDispatch_FailureNamesClip(t *testing.T) {
	mock := engines.NewMock(audio.DefaultFormat(), engines.MockConfig{})
	mock.FailTimes("dog", -1, errors.New("text rejected"))
	d, _ := synth.NewDispatcher(mock, testOptions())

	arena := cache.NewClipArena(0)
	clips, err := dispatch(context.Background(), d, wordJob(t, "cat", "dog", "bird"), mockVoice, arena)
	if clips != nil {
		t.Error("partial clip set returned on failure")
	}
	var synthErr *dtypes.SynthesisError
	if !errors.As(err, &synthErr) {
		t.Fatalf("expected SynthesisError, got %v", err)
	}
	if synthErr.Key.Token != "dog" || synthErr.Key.VoiceID != engines.MockVoice {
		t.Errorf("error names %+v", synthErr.Key)
	}
}

func TestDispatch_RejectsBeforeRequests(t *testing.T) {
	tests := []struct {
		name  string
		voice dtypes.VoiceConfig
		check func(error) bool
	}{
		{
			name:  "unknown voice",
			voice: dtypes.VoiceConfig{VoiceID: "robot", Speed: 1, Lang: dtypes.LangEnglish},
			check: func(err error) bool { return errors.Is(err, dtypes.ErrUnknownVoice) },
		},
		{
			name:  "speed too fast",
			voice: dtypes.VoiceConfig{VoiceID: engines.MockVoice, Speed: 3, Lang: dtypes.LangEnglish},
			check: func(err error) bool { return errors.Is(err, dtypes.ErrInvalidConfig) },
		},
		{
			name:  "voice language differs from units",
			voice: dtypes.VoiceConfig{VoiceID: engines.MockVoice, Speed: 1, Lang: dtypes.LangTraditionalChinese},
			check: func(err error) bool { return errors.Is(err, dtypes.ErrInvalidConfig) },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := engines.NewMock(audio.DefaultFormat(), engines.MockConfig{})
			d, _ := synth.NewDispatcher(mock, testOptions())

			_, err := dispatch(context.Background(), d, wordJob(t, "cat"), tt.voice, cache.NewClipArena(0))
			if !tt.check(err) {
				t.Errorf("unexpected error: %v", err)
			}
			if mock.TotalCalls() != 0 {
				t.Errorf("made %d requests", mock.TotalCalls())
			}
		})
	}
}

func TestDispatch_Cancel(t *testing.T) {
	mock := engines.NewMock(audio.DefaultFormat(), engines.MockConfig{Delay: time.Minute})
	d, _ := synth.NewDispatcher(mock, testOptions())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := dispatch(ctx, d, wordJob(t, "cat", "dog"), mockVoice, cache.NewClipArena(0))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Error("cancellation took too long")
	}
}

func TestDispatch_ReusesArena(t *testing.T) {
	mock := engines.NewMock(audio.DefaultFormat(), engines.MockConfig{})
	d, _ := synth.NewDispatcher(mock, testOptions())
	arena := cache.NewClipArena(0)

	if _, err := dispatch(context.Background(), d, wordJob(t, "cat", "dog"), mockVoice, arena); err != nil {
		t.Fatalf("first Dispatch failed: %v", err)
	}
	if _, err := dispatch(context.Background(), d, wordJob(t, "dog", "cat", "bird"), mockVoice, arena); err != nil {
		t.Fatalf("second Dispatch failed: %v", err)
	}
	if mock.TotalCalls() != 3 {
		t.Errorf("TotalCalls = %d, want 3", mock.TotalCalls())
	}

	slower := mockVoice
	slower.Speed = 0.8
	if _, err := dispatch(context.Background(), d, wordJob(t, "cat"), slower, arena); err != nil {
		t.Fatalf("Dispatch at new speed failed: %v", err)
	}
	if mock.Calls("cat") != 2 {
		t.Errorf("a new speed should request cat again, got %d calls", mock.Calls("cat"))
	}
}

func TestDispatch_Progress(t *testing.T) {
	mock := engines.NewMock(audio.DefaultFormat(), engines.MockConfig{})
	var events []synth.Progress
	opts := testOptions()
	opts.OnProgress = func(p synth.Progress) {
		events = append(events, p)
	}
	d, _ := synth.NewDispatcher(mock, opts)

	if _, err := dispatch(context.Background(), d, wordJob(t, "cat", "dog", "cat"), mockVoice, cache.NewClipArena(0)); err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d progress events, want 2", len(events))
	}
	last := events[len(events)-1]
	if last.Done != 2 || last.Total != 2 {
		t.Errorf("last event = %+v", last)
	}
}

func TestDispatch_ConvertsEngineFormat(t *testing.T) {
	engineFormat := audio.Format{SampleRate: 16000, Channels: 1, BitDepth: 16}
	mock := engines.NewMock(engineFormat, engines.MockConfig{})
	d, _ := synth.NewDispatcher(mock, testOptions())

	clips, err := dispatch(context.Background(), d, wordJob(t, "cat"), mockVoice, cache.NewClipArena(0))
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	c := clips[0]
	if c.Format != audio.DefaultFormat() {
		t.Errorf("clip format = %v, want track format", c.Format)
	}
	want := engines.MockDuration("cat")
	if diff := c.Duration() - want; diff < -time.Millisecond || diff > time.Millisecond {
		t.Errorf("clip duration = %v, want about %v", c.Duration(), want)
	}
}

func TestOptions_Validate(t *testing.T) {
	tests := []struct {
		name  string
		edit  func(*synth.Options)
		field string
	}{
		{"zero concurrency", func(o *synth.Options) { o.Concurrency = 0 }, "dispatch.concurrency"},
		{"negative rps", func(o *synth.Options) { o.RequestsPerSecond = -1 }, "dispatch.requests_per_second"},
		{"no attempts", func(o *synth.Options) { o.MaxAttempts = 0 }, "dispatch.max_attempts"},
		{"backoff inverted", func(o *synth.Options) { o.MaxBackoff = time.Millisecond }, "dispatch.backoff"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := synth.DefaultOptions()
			tt.edit(&opts)
			err := opts.Validate()
			var cfgErr *dtypes.InvalidConfigError
			if !errors.As(err, &cfgErr) || cfgErr.Field != tt.field {
				t.Errorf("expected %s error, got %v", tt.field, err)
			}
		})
	}
	if err := synth.DefaultOptions().Validate(); err != nil {
		t.Errorf("defaults invalid: %v", err)
	}
}
