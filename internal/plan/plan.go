// Package plan orders dictation units and decides the silences between
// them.
package plan

import (
	"fmt"
	"math/rand/v2"

	"github.com/dgnsrekt/dictation-buddy/internal/dtypes"
)

// MaxRepeats bounds how often a unit may be read.
const MaxRepeats = 10

// MaxSilenceMS bounds any single configured silence.
const MaxSilenceMS = 60_000

// Config controls ordering and silences. All durations are milliseconds.
type Config struct {
	Repeats            int    `yaml:"repeats" mapstructure:"repeats"`
	Shuffle            bool   `yaml:"shuffle" mapstructure:"shuffle"`
	Seed               uint64 `yaml:"seed" mapstructure:"seed"`
	InterUnitSilenceMS int    `yaml:"silence_ms" mapstructure:"silence_ms"`
	// RepeatSilenceMS is the gap between repeats of one unit. Nil means the
	// inter-unit silence is used.
	RepeatSilenceMS  *int `yaml:"repeat_silence_ms,omitempty" mapstructure:"repeat_silence_ms"`
	LeadingSilenceMS int  `yaml:"leading_silence_ms" mapstructure:"leading_silence_ms"`
	TailSilenceMS    int  `yaml:"tail_silence_ms" mapstructure:"tail_silence_ms"`
}

// DefaultWordConfig mirrors how vocabulary is read on a worksheet: each word
// twice with three seconds to write it down.
func DefaultWordConfig() Config {
	return Config{
		Repeats:            2,
		InterUnitSilenceMS: 3000,
		TailSilenceMS:      3000,
	}
}

// DefaultSentenceConfig reads each sentence three times, one second apart,
// with two seconds before the next sentence.
func DefaultSentenceConfig() Config {
	repeat := 1000
	return Config{
		Repeats:            3,
		InterUnitSilenceMS: 2000,
		RepeatSilenceMS:    &repeat,
		TailSilenceMS:      2000,
	}
}

// RepeatGapMS returns the effective silence between repeats.
func (c Config) RepeatGapMS() int {
	if c.RepeatSilenceMS != nil {
		return *c.RepeatSilenceMS
	}
	return c.InterUnitSilenceMS
}

// WithRepeatSilence returns a copy of c with an explicit repeat gap.
func (c Config) WithRepeatSilence(ms int) Config {
	c.RepeatSilenceMS = &ms
	return c
}

// Validate checks every field and reports the first violation.
func (c Config) Validate() error {
	if c.Repeats < 1 || c.Repeats > MaxRepeats {
		return &dtypes.InvalidConfigError{Field: "repeats", Value: c.Repeats, Reason: "must be between 1 and 10"}
	}

	silences := []struct {
		field string
		value int
	}{
		{"silence_ms", c.InterUnitSilenceMS},
		{"repeat_silence_ms", c.RepeatGapMS()},
		{"leading_silence_ms", c.LeadingSilenceMS},
		{"tail_silence_ms", c.TailSilenceMS},
	}
	for _, s := range silences {
		if s.value < 0 || s.value > MaxSilenceMS {
			return &dtypes.InvalidConfigError{Field: s.field, Value: s.value, Reason: "must be between 0 and 60000"}
		}
	}
	return nil
}

// Build produces the playback plan for units. Every unit appears in exactly
// one entry; with Shuffle set the entry order is a permutation derived only
// from Seed.
func Build(units []dtypes.TextUnit, cfg Config) (dtypes.PlaybackPlan, error) {
	if err := cfg.Validate(); err != nil {
		return dtypes.PlaybackPlan{}, err
	}
	if len(units) == 0 {
		return dtypes.PlaybackPlan{}, dtypes.ErrNoUnits
	}

	order := make([]int, len(units))
	seen := make(map[int]bool, len(units))
	for i, u := range units {
		if seen[u.Index] {
			return dtypes.PlaybackPlan{}, fmt.Errorf("duplicate unit index %d", u.Index)
		}
		seen[u.Index] = true
		order[i] = u.Index
	}
	if cfg.Shuffle {
		rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)) //nolint:gosec
		rng.Shuffle(len(order), func(i, j int) {
			order[i], order[j] = order[j], order[i]
		})
	}

	entries := make([]dtypes.PlanEntry, len(order))
	for pos, idx := range order {
		trailing := cfg.InterUnitSilenceMS
		if pos == len(order)-1 {
			trailing = cfg.TailSilenceMS
		}
		entries[pos] = dtypes.PlanEntry{
			UnitIndex:         idx,
			RepeatCount:       cfg.Repeats,
			LeadingSilenceMS:  cfg.LeadingSilenceMS,
			RepeatSilenceMS:   cfg.RepeatGapMS(),
			TrailingSilenceMS: trailing,
		}
	}

	return dtypes.PlaybackPlan{
		Entries:  entries,
		Shuffled: cfg.Shuffle,
		Seed:     cfg.Seed,
	}, nil
}
