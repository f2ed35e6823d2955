// Package assemble stitches synthesized clips and silences into one track.
package assemble

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/dictation-buddy/internal/audio"
	"github.com/dgnsrekt/dictation-buddy/internal/dtypes"
)

// ErrLengthMismatch means the assembled track does not have the length the
// plan implies.
var ErrLengthMismatch = errors.New("assembled track length mismatch")

// Assembler builds tracks in a fixed format.
type Assembler struct {
	format audio.Format
}

// New creates an Assembler producing tracks in f.
func New(f audio.Format) *Assembler {
	return &Assembler{format: f}
}

// Format returns the track format.
func (a *Assembler) Format() audio.Format {
	return a.format
}

// PlannedFrames returns the exact track length p produces with clips.
func (a *Assembler) PlannedFrames(p dtypes.PlaybackPlan, clips dtypes.ClipSet) (int64, error) {
	var total int64
	for _, e := range p.Entries {
		clip, err := a.clipFor(e, clips)
		if err != nil {
			return 0, err
		}
		total += clip.Frames() * int64(e.RepeatCount)
		total += a.format.FramesForMillis(e.LeadingSilenceMS)
		total += a.format.FramesForMillis(e.TrailingSilenceMS)
		if e.RepeatCount > 1 {
			total += int64(e.RepeatCount-1) * a.format.FramesForMillis(e.RepeatSilenceMS)
		}
	}
	return total, nil
}

// Assemble renders p: for every entry its leading silence, the clip
// RepeatCount times with the repeat silence between plays, then its trailing
// silence. Spans record where each unit is first heard.
func (a *Assembler) Assemble(p dtypes.PlaybackPlan, clips dtypes.ClipSet) (*dtypes.AssembledTrack, error) {
	if len(p.Entries) == 0 {
		return nil, dtypes.ErrNoUnits
	}
	planned, err := a.PlannedFrames(p, clips)
	if err != nil {
		return nil, err
	}

	bpf := int64(a.format.BytesPerFrame())
	pcm := make([]byte, 0, planned*bpf)
	spans := make(map[int]dtypes.Span, len(p.Entries))

	var cursor int64
	silence := func(ms int) {
		frames := a.format.FramesForMillis(ms)
		pcm = append(pcm, audio.Silence(frames, a.format)...)
		cursor += frames
	}

	for _, e := range p.Entries {
		clip := clips[e.UnitIndex]
		silence(e.LeadingSilenceMS)
		for rep := range e.RepeatCount {
			if rep > 0 {
				silence(e.RepeatSilenceMS)
			}
			if _, seen := spans[e.UnitIndex]; !seen {
				spans[e.UnitIndex] = dtypes.Span{StartFrame: cursor, EndFrame: cursor + clip.Frames()}
			}
			pcm = append(pcm, clip.PCM...)
			cursor += clip.Frames()
		}
		silence(e.TrailingSilenceMS)
	}

	track := &dtypes.AssembledTrack{Format: a.format, PCM: pcm, Spans: spans}
	if got := track.Frames(); got != planned || cursor != planned {
		return nil, fmt.Errorf("%w: %d frames written, %d planned", ErrLengthMismatch, got, planned)
	}

	log.Debug("Assembled track", "entries", len(p.Entries), "frames", planned, "duration", track.Duration())
	return track, nil
}

func (a *Assembler) clipFor(e dtypes.PlanEntry, clips dtypes.ClipSet) (dtypes.Clip, error) {
	if e.RepeatCount < 1 {
		return dtypes.Clip{}, fmt.Errorf("unit %d: repeat count %d", e.UnitIndex, e.RepeatCount)
	}
	clip, ok := clips[e.UnitIndex]
	if !ok {
		return dtypes.Clip{}, fmt.Errorf("no clip for unit %d: %w", e.UnitIndex, dtypes.ErrUnknownUnit)
	}
	if clip.Format != a.format {
		return dtypes.Clip{}, fmt.Errorf("clip for unit %d is %s, track is %s", e.UnitIndex, clip.Format, a.format)
	}
	if err := audio.ValidatePCM(clip.PCM, clip.Format); err != nil {
		return dtypes.Clip{}, fmt.Errorf("clip for unit %d: %w", e.UnitIndex, err)
	}
	return clip, nil
}
