package plan

import (
	"errors"
	"reflect"
	"slices"
	"testing"

	"github.com/dgnsrekt/dictation-buddy/internal/dtypes"
)

func units(n int) []dtypes.TextUnit {
	out := make([]dtypes.TextUnit, n)
	for i := range out {
		out[i] = dtypes.TextUnit{Index: i, Kind: dtypes.KindWord, Text: string(rune('a' + i)), Lang: dtypes.LangEnglish}
	}
	return out
}

func TestBuildInOrder(t *testing.T) {
	cfg := Config{Repeats: 2, InterUnitSilenceMS: 500}

	p, err := Build(units(2), cfg)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	want := []dtypes.PlanEntry{
		{UnitIndex: 0, RepeatCount: 2, RepeatSilenceMS: 500, TrailingSilenceMS: 500},
		{UnitIndex: 1, RepeatCount: 2, RepeatSilenceMS: 500, TrailingSilenceMS: 0},
	}
	if !reflect.DeepEqual(p.Entries, want) {
		t.Errorf("entries = %+v, want %+v", p.Entries, want)
	}
	if got := p.Sequence(); !reflect.DeepEqual(got, []int{0, 0, 1, 1}) {
		t.Errorf("Sequence() = %v", got)
	}
	if p.Shuffled {
		t.Error("plan should not be marked shuffled")
	}
}

func TestBuildSilences(t *testing.T) {
	cfg := DefaultSentenceConfig()
	cfg.LeadingSilenceMS = 250

	p, err := Build(units(3), cfg)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	for i, e := range p.Entries {
		if e.LeadingSilenceMS != 250 || e.RepeatSilenceMS != 1000 || e.RepeatCount != 3 {
			t.Errorf("entry %d = %+v", i, e)
		}
	}
	if p.Entries[0].TrailingSilenceMS != 2000 || p.Entries[2].TrailingSilenceMS != 2000 {
		t.Errorf("unexpected trailing silences: %+v", p.Entries)
	}
}

func TestShuffleDeterministic(t *testing.T) {
	cfg := Config{Repeats: 3, Shuffle: true, Seed: 42, InterUnitSilenceMS: 100}

	a, err := Build(units(20), cfg)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	b, _ := Build(units(20), cfg)
	if !reflect.DeepEqual(a, b) {
		t.Error("same seed produced different plans")
	}
	if !a.Shuffled || a.Seed != 42 {
		t.Errorf("plan metadata = shuffled %v seed %d", a.Shuffled, a.Seed)
	}

	cfg.Seed = 43
	c, _ := Build(units(20), cfg)
	if reflect.DeepEqual(a.Entries, c.Entries) {
		t.Error("different seeds produced identical orders")
	}
}

func TestEveryUnitExactlyOnce(t *testing.T) {
	for seed := uint64(0); seed < 25; seed++ {
		cfg := Config{Repeats: 4, Shuffle: true, Seed: seed}
		p, err := Build(units(9), cfg)
		if err != nil {
			t.Fatalf("Build failed: %v", err)
		}

		var idx []int
		for _, e := range p.Entries {
			idx = append(idx, e.UnitIndex)
		}
		slices.Sort(idx)
		if !reflect.DeepEqual(idx, []int{0, 1, 2, 3, 4, 5, 6, 7, 8}) {
			t.Fatalf("seed %d: entries are not a permutation: %v", seed, idx)
		}

		// repeats stay adjacent
		seq := p.Sequence()
		for i := 0; i < len(seq); i += 4 {
			for j := 1; j < 4; j++ {
				if seq[i+j] != seq[i] {
					t.Fatalf("seed %d: repeats of %d are not adjacent: %v", seed, seq[i], seq)
				}
			}
		}
	}
}

func TestValidate(t *testing.T) {
	neg := -1
	tests := []struct {
		name  string
		cfg   Config
		field string
	}{
		{"zero repeats", Config{Repeats: 0}, "repeats"},
		{"too many repeats", Config{Repeats: 11}, "repeats"},
		{"negative silence", Config{Repeats: 1, InterUnitSilenceMS: -5}, "silence_ms"},
		{"negative repeat gap", Config{Repeats: 1, RepeatSilenceMS: &neg}, "repeat_silence_ms"},
		{"negative leading", Config{Repeats: 1, LeadingSilenceMS: -1}, "leading_silence_ms"},
		{"huge tail", Config{Repeats: 1, TailSilenceMS: MaxSilenceMS + 1}, "tail_silence_ms"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Build(units(1), tt.cfg)
			var ice *dtypes.InvalidConfigError
			if !errors.As(err, &ice) {
				t.Fatalf("expected InvalidConfigError, got %v", err)
			}
			if ice.Field != tt.field {
				t.Errorf("field = %q, want %q", ice.Field, tt.field)
			}
			if !errors.Is(err, dtypes.ErrInvalidConfig) {
				t.Error("error should match ErrInvalidConfig")
			}
		})
	}
}

func TestBuildNoUnits(t *testing.T) {
	if _, err := Build(nil, DefaultWordConfig()); !errors.Is(err, dtypes.ErrNoUnits) {
		t.Errorf("expected ErrNoUnits, got %v", err)
	}
}

func TestRepeatGap(t *testing.T) {
	cfg := Config{Repeats: 2, InterUnitSilenceMS: 700}
	if cfg.RepeatGapMS() != 700 {
		t.Errorf("RepeatGapMS() = %d, want inter-unit 700", cfg.RepeatGapMS())
	}
	if got := cfg.WithRepeatSilence(0).RepeatGapMS(); got != 0 {
		t.Errorf("explicit zero gap = %d", got)
	}
	if cfg.RepeatSilenceMS != nil {
		t.Error("WithRepeatSilence mutated the receiver")
	}
}
