// Package synth dispatches synthesis requests for the distinct clips of a
// playback plan and defines the contract every speech engine implements.
package synth

import (
	"context"
	"slices"

	"github.com/dgnsrekt/dictation-buddy/internal/audio"
	"github.com/dgnsrekt/dictation-buddy/internal/dtypes"
)

// Request is one synthesis call.
type Request struct {
	Text    string
	VoiceID string
	Speed   float64
	Lang    dtypes.Lang
}

// Result is raw PCM in the engine's native format. The dispatcher converts
// it to the track format.
type Result struct {
	PCM    []byte
	Format audio.Format
}

// Voice describes a voice an engine offers.
type Voice struct {
	ID     string
	Lang   dtypes.Lang
	Name   string
	Gender string
}

// EngineInfo describes an engine.
type EngineInfo struct {
	Name        string
	Format      audio.Format
	MaxTextSize int
	IsOnline    bool
}

// Synthesizer turns text into speech.
//
// Engines must return an error wrapping dtypes.ErrUnknownVoice when the voice
// is not offered, and a *dtypes.TransportError for failures that may succeed
// on retry. Anything else is treated as permanent.
type Synthesizer interface {
	Synthesize(ctx context.Context, req Request) (Result, error)

	// Voices lists the voices available for lang.
	Voices(lang dtypes.Lang) []Voice

	Info() EngineInfo
	Close() error
}

// HasVoice reports whether engine offers id for lang.
func HasVoice(engine Synthesizer, lang dtypes.Lang, id string) bool {
	return slices.ContainsFunc(engine.Voices(lang), func(v Voice) bool {
		return v.ID == id
	})
}
