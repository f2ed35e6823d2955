// Package dtypes contains the domain types shared by the dictation pipeline.
// It sits below normalize, plan, synth, assemble and library so that those
// packages can exchange values without importing each other.
package dtypes

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/dgnsrekt/dictation-buddy/internal/audio"
)

// Lang is a canonical BCP 47 language tag such as "en" or "zh-TW".
type Lang string

const (
	// LangEnglish is English.
	LangEnglish Lang = "en"

	// LangTraditionalChinese is Chinese as written in Taiwan.
	LangTraditionalChinese Lang = "zh-TW"
)

// UnitKind tells whether a unit is a vocabulary word or a passage sentence.
type UnitKind string

const (
	// KindWord is a single vocabulary entry.
	KindWord UnitKind = "word"

	// KindSentence is one sentence of a passage.
	KindSentence UnitKind = "sentence"
)

// TextUnit is one item to be dictated. Index is its position in extraction
// order and never changes once assigned.
type TextUnit struct {
	Index int      `yaml:"index"`
	Kind  UnitKind `yaml:"kind"`
	Text  string   `yaml:"text"`
	Lang  Lang     `yaml:"lang"`
}

// SpokenToken is the exact string sent to the synthesis engine.
type SpokenToken string

// VoiceConfig selects the voice and speaking rate of a track.
type VoiceConfig struct {
	VoiceID string  `yaml:"id"`
	Speed   float64 `yaml:"speed"`
	Lang    Lang    `yaml:"lang"`
}

// PlanEntry describes how one unit is played.
type PlanEntry struct {
	UnitIndex         int `yaml:"unit"`
	RepeatCount       int `yaml:"repeats"`
	LeadingSilenceMS  int `yaml:"leading_ms"`
	RepeatSilenceMS   int `yaml:"repeat_ms"`
	TrailingSilenceMS int `yaml:"trailing_ms"`
}

// SilenceMS returns the total silence contributed by the entry.
func (e PlanEntry) SilenceMS() int {
	gaps := e.RepeatCount - 1
	if gaps < 0 {
		gaps = 0
	}
	return e.LeadingSilenceMS + gaps*e.RepeatSilenceMS + e.TrailingSilenceMS
}

// PlaybackPlan is the ordered list of entries for a track.
type PlaybackPlan struct {
	Entries  []PlanEntry `yaml:"entries"`
	Shuffled bool        `yaml:"shuffled"`
	Seed     uint64      `yaml:"seed"`
}

// Sequence expands the plan into the order units are heard, each index
// repeated RepeatCount times in a row.
func (p PlaybackPlan) Sequence() []int {
	var seq []int
	for _, e := range p.Entries {
		for range e.RepeatCount {
			seq = append(seq, e.UnitIndex)
		}
	}
	return seq
}

// ClipKey identifies a synthesized clip. Two units share a clip when their
// keys are equal.
type ClipKey struct {
	Token   SpokenToken
	VoiceID string
	Speed   float64
}

// String returns a short stable hash of the key, suitable for logs and file
// names.
func (k ClipKey) String() string {
	h := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%.2f", k.Token, k.VoiceID, k.Speed)))
	return hex.EncodeToString(h[:8])
}

// Clip is synthesized audio in the track format.
type Clip struct {
	Key    ClipKey
	Format audio.Format
	PCM    []byte
}

// Frames returns the clip length in frames.
func (c Clip) Frames() int64 {
	return c.Format.Frames(len(c.PCM))
}

// Duration returns the clip length.
func (c Clip) Duration() time.Duration {
	return c.Format.Duration(c.Frames())
}

// ClipSet maps unit indices to their clips.
type ClipSet map[int]Clip

// Span is a half-open frame range [StartFrame, EndFrame) within a track.
type Span struct {
	StartFrame int64 `yaml:"start_frame"`
	EndFrame   int64 `yaml:"end_frame"`
}

// Frames returns the span length.
func (s Span) Frames() int64 {
	return s.EndFrame - s.StartFrame
}

// AssembledTrack is the finished audio with the offset of each unit's first
// occurrence.
type AssembledTrack struct {
	Format audio.Format
	PCM    []byte
	Spans  map[int]Span
}

// Frames returns the track length in frames.
func (t *AssembledTrack) Frames() int64 {
	return t.Format.Frames(len(t.PCM))
}

// Duration returns the track length.
func (t *AssembledTrack) Duration() time.Duration {
	return t.Format.Duration(t.Frames())
}

// UnitAudio returns the PCM of a unit's first occurrence.
func (t *AssembledTrack) UnitAudio(index int) ([]byte, error) {
	span, ok := t.Spans[index]
	if !ok {
		return nil, fmt.Errorf("unit %d: %w", index, ErrUnknownUnit)
	}
	bpf := int64(t.Format.BytesPerFrame())
	start, end := span.StartFrame*bpf, span.EndFrame*bpf
	if start < 0 || end > int64(len(t.PCM)) || start > end {
		return nil, fmt.Errorf("unit %d: span %d-%d outside track of %d frames", index, span.StartFrame, span.EndFrame, t.Frames())
	}
	return t.PCM[start:end], nil
}
