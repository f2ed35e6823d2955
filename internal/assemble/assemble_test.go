package assemble

import (
	"bytes"
	"errors"
	"testing"

	"github.com/dgnsrekt/dictation-buddy/internal/audio"
	"github.com/dgnsrekt/dictation-buddy/internal/dtypes"
	"github.com/dgnsrekt/dictation-buddy/internal/plan"
)

var format = audio.DefaultFormat()

// tone returns a clip of ms milliseconds filled with b so its bytes can be
// found in the track.
func tone(token string, ms int, b byte) dtypes.Clip {
	pcm := bytes.Repeat([]byte{b}, int(format.FramesForMillis(ms))*format.BytesPerFrame())
	return dtypes.Clip{
		Key:    dtypes.ClipKey{Token: dtypes.SpokenToken(token), VoiceID: "v", Speed: 1},
		Format: format,
		PCM:    pcm,
	}
}

func units(texts ...string) []dtypes.TextUnit {
	out := make([]dtypes.TextUnit, len(texts))
	for i, s := range texts {
		out[i] = dtypes.TextUnit{Index: i, Kind: dtypes.KindWord, Text: s, Lang: dtypes.LangEnglish}
	}
	return out
}

func TestAssemble_CatDog(t *testing.T) {
	cfg := plan.Config{Repeats: 2, InterUnitSilenceMS: 500}
	p, err := plan.Build(units("cat", "dog"), cfg)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	cat, dog := tone("cat", 300, 1), tone("dog", 400, 2)
	clips := dtypes.ClipSet{0: cat, 1: dog}

	track, err := New(format).Assemble(p, clips)
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}

	gap := format.FramesForMillis(500)
	want := 2*cat.Frames() + 2*dog.Frames() + 3*gap
	if track.Frames() != want {
		t.Fatalf("track frames = %d, want %d", track.Frames(), want)
	}

	// cat, 500, cat, 500, dog, 500, dog
	silence := audio.Silence(gap, format)
	var expected []byte
	for _, part := range [][]byte{cat.PCM, silence, cat.PCM, silence, dog.PCM, silence, dog.PCM} {
		expected = append(expected, part...)
	}
	if !bytes.Equal(track.PCM, expected) {
		t.Error("track layout differs from cat, gap, cat, gap, dog, gap, dog")
	}

	if s := track.Spans[0]; s.StartFrame != 0 || s.Frames() != cat.Frames() {
		t.Errorf("cat span = %+v", s)
	}
	dogStart := 2*cat.Frames() + 2*gap
	if s := track.Spans[1]; s.StartFrame != dogStart || s.EndFrame != dogStart+dog.Frames() {
		t.Errorf("dog span = %+v, want start %d", s, dogStart)
	}

	got, err := track.UnitAudio(1)
	if err != nil {
		t.Fatalf("UnitAudio failed: %v", err)
	}
	if !bytes.Equal(got, dog.PCM) {
		t.Error("UnitAudio(1) is not the dog clip")
	}
}

func TestAssemble_LengthProperty(t *testing.T) {
	tests := []struct {
		name string
		cfg  plan.Config
	}{
		{"words", plan.DefaultWordConfig()},
		{"sentences", plan.DefaultSentenceConfig()},
		{"leading and shuffled", plan.Config{Repeats: 3, Shuffle: true, Seed: 7, InterUnitSilenceMS: 250, LeadingSilenceMS: 100, TailSilenceMS: 1000}},
		{"no silences", plan.Config{Repeats: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			us := units("a", "b", "c", "d")
			clips := dtypes.ClipSet{}
			for i, u := range us {
				clips[i] = tone(u.Text, 100*(i+1), byte(i+1))
			}
			p, err := plan.Build(us, tt.cfg)
			if err != nil {
				t.Fatalf("Build failed: %v", err)
			}

			a := New(format)
			track, err := a.Assemble(p, clips)
			if err != nil {
				t.Fatalf("Assemble failed: %v", err)
			}

			var want int64
			for _, e := range p.Entries {
				want += clips[e.UnitIndex].Frames() * int64(e.RepeatCount)
				want += format.FramesForMillis(e.SilenceMS())
			}
			if track.Frames() != want {
				t.Errorf("frames = %d, want %d", track.Frames(), want)
			}
			if len(track.Spans) != len(us) {
				t.Errorf("got %d spans, want %d", len(track.Spans), len(us))
			}
			for idx, span := range track.Spans {
				pcm, err := track.UnitAudio(idx)
				if err != nil || !bytes.Equal(pcm, clips[idx].PCM) {
					t.Errorf("unit %d: span %+v does not hold its clip (%v)", idx, span, err)
				}
			}
		})
	}
}

func TestAssemble_Errors(t *testing.T) {
	p, err := plan.Build(units("cat", "dog"), plan.DefaultWordConfig())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	a := New(format)

	if _, err := a.Assemble(p, dtypes.ClipSet{0: tone("cat", 100, 1)}); !errors.Is(err, dtypes.ErrUnknownUnit) {
		t.Errorf("missing clip: expected ErrUnknownUnit, got %v", err)
	}

	wrong := tone("dog", 100, 2)
	wrong.Format = audio.Format{SampleRate: 16000, Channels: 1, BitDepth: 16}
	if _, err := a.Assemble(p, dtypes.ClipSet{0: tone("cat", 100, 1), 1: wrong}); err == nil {
		t.Error("format mismatch accepted")
	}

	odd := tone("dog", 100, 2)
	odd.PCM = odd.PCM[:len(odd.PCM)-1]
	if _, err := a.Assemble(p, dtypes.ClipSet{0: tone("cat", 100, 1), 1: odd}); !errors.Is(err, audio.ErrUnalignedPCM) {
		t.Errorf("unaligned clip: expected ErrUnalignedPCM, got %v", err)
	}

	if _, err := a.Assemble(dtypes.PlaybackPlan{}, nil); !errors.Is(err, dtypes.ErrNoUnits) {
		t.Errorf("empty plan: expected ErrNoUnits, got %v", err)
	}
}
