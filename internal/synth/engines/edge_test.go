package engines

import (
	"context"
	"errors"
	"testing"

	"github.com/dgnsrekt/dictation-buddy/internal/audio"
	"github.com/dgnsrekt/dictation-buddy/internal/dtypes"
	"github.com/dgnsrekt/dictation-buddy/internal/synth"
)

func TestEdgeRate(t *testing.T) {
	tests := []struct {
		speed float64
		want  string
	}{
		{1.0, "+0%"},
		{0.8, "-20%"},
		{1.25, "+25%"},
		{0.5, "-50%"},
		{2.0, "+100%"},
	}
	for _, tt := range tests {
		if got := EdgeRate(tt.speed); got != tt.want {
			t.Errorf("EdgeRate(%v) = %q, want %q", tt.speed, got, tt.want)
		}
	}
}

func newTestEdge(t *testing.T) *Edge {
	t.Helper()
	e, err := NewEdge(EdgeConfig{TempDir: t.TempDir()}, audio.DefaultFormat())
	if err != nil {
		t.Fatalf("NewEdge failed: %v", err)
	}
	return e
}

func TestEdge_Synthesize(t *testing.T) {
	e := newTestEdge(t)
	var gotRate, gotVoice string
	e.save = func(_ context.Context, _, voice, rate, _ string) error {
		gotVoice, gotRate = voice, rate
		return nil
	}
	e.decode = func(_ context.Context, _ string, f audio.Format) ([]byte, error) {
		return make([]byte, 4*f.BytesPerFrame()), nil
	}

	res, err := e.Synthesize(context.Background(), synth.Request{
		Text: "cat", VoiceID: "en-US-AriaNeural", Speed: 0.8, Lang: dtypes.LangEnglish,
	})
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	if gotVoice != "en-US-AriaNeural" || gotRate != "-20%" {
		t.Errorf("save called with voice %q rate %q", gotVoice, gotRate)
	}
	if len(res.PCM) != 8 || res.Format != audio.DefaultFormat() {
		t.Errorf("unexpected result: %d bytes, %v", len(res.PCM), res.Format)
	}
}

func TestEdge_Errors(t *testing.T) {
	e := newTestEdge(t)
	e.decode = func(context.Context, string, audio.Format) ([]byte, error) {
		return nil, errors.New("truncated mp3")
	}
	e.save = func(context.Context, string, string, string, string) error { return nil }

	req := synth.Request{Text: "cat", VoiceID: "en-US-AriaNeural", Speed: 1, Lang: dtypes.LangEnglish}
	_, err := e.Synthesize(context.Background(), req)
	if !dtypes.IsRetryable(err) {
		t.Errorf("decode failure should be retryable, got %v", err)
	}

	e.save = func(context.Context, string, string, string, string) error {
		return errors.New("websocket closed")
	}
	_, err = e.Synthesize(context.Background(), req)
	if !dtypes.IsRetryable(err) {
		t.Errorf("save failure should be retryable, got %v", err)
	}

	req.VoiceID = "en-US-AriaNeural"
	req.Lang = dtypes.LangTraditionalChinese
	_, err = e.Synthesize(context.Background(), req)
	if !errors.Is(err, dtypes.ErrUnknownVoice) {
		t.Errorf("expected ErrUnknownVoice for an English voice on zh-TW, got %v", err)
	}

	if _, err := e.Synthesize(context.Background(), synth.Request{VoiceID: "en-US-AriaNeural", Lang: dtypes.LangEnglish}); err == nil {
		t.Error("expected error for empty text")
	}
}
