// Package config loads dictate's settings from the config file, flags and
// environment.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/dgnsrekt/dictation-buddy/internal/audio"
	"github.com/dgnsrekt/dictation-buddy/internal/dtypes"
	"github.com/dgnsrekt/dictation-buddy/internal/plan"
	"github.com/dgnsrekt/dictation-buddy/internal/synth"
	"github.com/dgnsrekt/dictation-buddy/internal/synth/engines"
	"github.com/dgnsrekt/dictation-buddy/utils"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/viper"
)

// AppName names the config file and the user directories.
const AppName = "dictate"

// Config is the complete configuration.
type Config struct {
	Engine string `mapstructure:"engine"`

	// Voices maps a language to a voice ID of the selected engine. Missing
	// languages use the engine's first catalog voice.
	Voices map[string]string `mapstructure:"voices"`

	// Speeds maps a language to its default speed multiplier.
	Speeds map[string]float64 `mapstructure:"speeds"`

	// LiteralWords sends vocabulary to the engine without reading
	// punctuation aloud.
	LiteralWords bool `mapstructure:"literal_words"`

	Vocabulary PartConfig     `mapstructure:"vocabulary"`
	Passage    PartConfig     `mapstructure:"passage"`
	Dispatch   DispatchConfig `mapstructure:"dispatch"`
	Audio      AudioConfig    `mapstructure:"audio"`
	Library    LibraryConfig  `mapstructure:"library"`
	Engines    engines.Config `mapstructure:"engines"`
}

// PartConfig holds the plan settings of one worksheet part.
type PartConfig struct {
	plan.Config `mapstructure:",squash"`

	// Speed overrides the language speed for this part. 0 keeps it.
	Speed float64 `mapstructure:"speed"`
}

// DispatchConfig bounds synthesis traffic.
type DispatchConfig struct {
	Concurrency       int           `mapstructure:"concurrency"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	MaxAttempts       int           `mapstructure:"max_attempts"`
	BaseBackoff       time.Duration `mapstructure:"base_backoff"`
	MaxBackoff        time.Duration `mapstructure:"max_backoff"`
	// ArenaMB bounds the clips held in memory for one track. 0 is unbounded.
	ArenaMB int `mapstructure:"arena_mb"`
}

// AudioConfig sets the track format.
type AudioConfig struct {
	SampleRate int `mapstructure:"sample_rate"`
	Channels   int `mapstructure:"channels"`
}

// LibraryConfig sets where recordings are kept.
type LibraryConfig struct {
	Dir      string `mapstructure:"dir"`
	Compress bool   `mapstructure:"compress"`
	Level    int    `mapstructure:"level"`
}

// Env holds settings that only come from the environment.
type Env struct {
	Debug      bool   `env:"DICTATE_DEBUG"`
	ConfigHome string `env:"DICTATE_CONFIG_HOME"`
	LibraryDir string `env:"DICTATE_LIBRARY"`
}

// Default returns the built-in configuration.
func Default() Config {
	opts := synth.DefaultOptions()
	f := audio.DefaultFormat()
	return Config{
		Engine: engines.NameEdge,
		Voices: map[string]string{},
		Speeds: map[string]float64{
			"en":    1.0,
			"zh-tw": 0.9,
		},
		Vocabulary: PartConfig{Config: plan.DefaultWordConfig(), Speed: 0.8},
		Passage:    PartConfig{Config: plan.DefaultSentenceConfig(), Speed: 0.8},
		Dispatch: DispatchConfig{
			Concurrency:       opts.Concurrency,
			RequestsPerSecond: opts.RequestsPerSecond,
			MaxAttempts:       opts.MaxAttempts,
			BaseBackoff:       opts.BaseBackoff,
			MaxBackoff:        opts.MaxBackoff,
			ArenaMB:           256,
		},
		Audio:   AudioConfig{SampleRate: f.SampleRate, Channels: f.Channels},
		Library: LibraryConfig{Dir: DefaultLibraryDir(), Level: 3},
		Engines: engines.Config{
			Edge:    engines.DefaultEdgeConfig(),
			Tencent: engines.DefaultTencentConfig(),
		},
	}
}

// DefaultLibraryDir returns the library directory in the user data dir.
func DefaultLibraryDir() string {
	scope := gap.NewScope(gap.User, AppName)
	dirs, err := scope.DataDirs()
	if err != nil || len(dirs) == 0 {
		return filepath.Join("~", "."+AppName, "library")
	}
	return filepath.Join(dirs[0], "library")
}

// SetDefaults registers every default with v so that environment variables
// and flags can override individual keys.
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("engine", d.Engine)
	v.SetDefault("voices", d.Voices)
	v.SetDefault("speeds", d.Speeds)
	v.SetDefault("literal_words", d.LiteralWords)

	setPart(v, "vocabulary", d.Vocabulary)
	setPart(v, "passage", d.Passage)

	v.SetDefault("dispatch.concurrency", d.Dispatch.Concurrency)
	v.SetDefault("dispatch.requests_per_second", d.Dispatch.RequestsPerSecond)
	v.SetDefault("dispatch.max_attempts", d.Dispatch.MaxAttempts)
	v.SetDefault("dispatch.base_backoff", d.Dispatch.BaseBackoff)
	v.SetDefault("dispatch.max_backoff", d.Dispatch.MaxBackoff)
	v.SetDefault("dispatch.arena_mb", d.Dispatch.ArenaMB)

	v.SetDefault("audio.sample_rate", d.Audio.SampleRate)
	v.SetDefault("audio.channels", d.Audio.Channels)

	v.SetDefault("library.dir", d.Library.Dir)
	v.SetDefault("library.compress", d.Library.Compress)
	v.SetDefault("library.level", d.Library.Level)

	e := d.Engines.Edge
	v.SetDefault("engines.edge.volume", e.Volume)
	v.SetDefault("engines.edge.pitch", e.Pitch)
	v.SetDefault("engines.edge.proxy", e.Proxy)
	v.SetDefault("engines.edge.connect_timeout", e.ConnectTimeout)
	v.SetDefault("engines.edge.receive_timeout", e.ReceiveTimeout)
	v.SetDefault("engines.edge.ffmpeg", e.FFmpeg)
	v.SetDefault("engines.edge.decode_timeout", e.DecodeTimeout)
	v.SetDefault("engines.edge.temp_dir", e.TempDir)

	tc := d.Engines.Tencent
	v.SetDefault("engines.tencent.region", tc.Region)
	v.SetDefault("engines.tencent.endpoint", tc.Endpoint)
	v.SetDefault("engines.tencent.volume", tc.Volume)
	v.SetDefault("engines.tencent.sample_rate", tc.SampleRate)
	v.SetDefault("engines.tencent.project_id", tc.ProjectID)

	v.SetDefault("engines.mock.delay", d.Engines.Mock.Delay)
}

func setPart(v *viper.Viper, key string, p PartConfig) {
	v.SetDefault(key+".repeats", p.Repeats)
	v.SetDefault(key+".shuffle", p.Shuffle)
	v.SetDefault(key+".seed", p.Seed)
	v.SetDefault(key+".silence_ms", p.InterUnitSilenceMS)
	if p.RepeatSilenceMS != nil {
		v.SetDefault(key+".repeat_silence_ms", *p.RepeatSilenceMS)
	}
	v.SetDefault(key+".leading_silence_ms", p.LeadingSilenceMS)
	v.SetDefault(key+".tail_silence_ms", p.TailSilenceMS)
	v.SetDefault(key+".speed", p.Speed)
}

// LoadConfigFromViper decodes v into a Config, applies environment
// overrides and validates the result. Unknown keys are rejected.
func LoadConfigFromViper(v *viper.Viper) (Config, error) {
	cfg := Default()
	if err := v.UnmarshalExact(&cfg); err != nil {
		return cfg, fmt.Errorf("%w: %v", dtypes.ErrInvalidConfig, err)
	}

	e, err := env.ParseAs[Env]()
	if err != nil {
		return cfg, fmt.Errorf("error parsing environment: %w", err)
	}
	if e.LibraryDir != "" {
		cfg.Library.Dir = e.LibraryDir
	}
	// environment credentials win over the config file
	if err := env.Parse(&cfg.Engines.Tencent); err != nil {
		return cfg, fmt.Errorf("error parsing environment: %w", err)
	}

	cfg.Library.Dir = utils.ExpandPath(cfg.Library.Dir)
	if cfg.Engines.Edge.TempDir != "" {
		cfg.Engines.Edge.TempDir = utils.ExpandPath(cfg.Engines.Edge.TempDir)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks every section and reports the first problem.
func (c Config) Validate() error {
	if !engines.Valid(c.Engine) {
		return &dtypes.InvalidConfigError{Field: "engine", Value: c.Engine, Reason: fmt.Sprintf("must be one of %v", engines.Names())}
	}
	for lang, s := range c.Speeds {
		if s < synth.MinSpeed || s > synth.MaxSpeed {
			return &dtypes.InvalidConfigError{Field: "speeds." + lang, Value: s, Reason: "must be between 0.5 and 2.0"}
		}
	}
	for _, part := range []struct {
		name string
		cfg  PartConfig
	}{{"vocabulary", c.Vocabulary}, {"passage", c.Passage}} {
		if err := part.cfg.Validate(); err != nil {
			var ic *dtypes.InvalidConfigError
			if errors.As(err, &ic) {
				return &dtypes.InvalidConfigError{Field: part.name + "." + ic.Field, Value: ic.Value, Reason: ic.Reason}
			}
			return err
		}
		if s := part.cfg.Speed; s != 0 && (s < synth.MinSpeed || s > synth.MaxSpeed) {
			return &dtypes.InvalidConfigError{Field: part.name + ".speed", Value: s, Reason: "must be 0 or between 0.5 and 2.0"}
		}
	}
	if c.Dispatch.ArenaMB < 0 {
		return &dtypes.InvalidConfigError{Field: "dispatch.arena_mb", Value: c.Dispatch.ArenaMB, Reason: "must not be negative"}
	}
	if err := c.DispatchOptions().Validate(); err != nil {
		return err
	}
	if c.Library.Dir == "" {
		return &dtypes.InvalidConfigError{Field: "library.dir", Value: "", Reason: "must be set"}
	}
	if c.Library.Compress && (c.Library.Level < 1 || c.Library.Level > 22) {
		return &dtypes.InvalidConfigError{Field: "library.level", Value: c.Library.Level, Reason: "must be between 1 and 22"}
	}
	return nil
}

// TrackFormat returns the format tracks are assembled in.
func (c Config) TrackFormat() audio.Format {
	return audio.Format{SampleRate: c.Audio.SampleRate, Channels: c.Audio.Channels, BitDepth: 16}
}

// DispatchOptions returns the dispatcher settings.
func (c Config) DispatchOptions() synth.Options {
	return synth.Options{
		Concurrency:       c.Dispatch.Concurrency,
		RequestsPerSecond: c.Dispatch.RequestsPerSecond,
		MaxAttempts:       c.Dispatch.MaxAttempts,
		BaseBackoff:       c.Dispatch.BaseBackoff,
		MaxBackoff:        c.Dispatch.MaxBackoff,
		Format:            c.TrackFormat(),
	}
}

// ArenaBytes returns the clip arena budget in bytes.
func (c Config) ArenaBytes() int64 {
	return int64(c.Dispatch.ArenaMB) << 20
}

// Part returns the settings for a unit kind.
func (c Config) Part(kind dtypes.UnitKind) PartConfig {
	if kind == dtypes.KindSentence {
		return c.Passage
	}
	return c.Vocabulary
}

// Voice returns the voice for lang and kind. Keys in the config file are
// matched case-insensitively because viper lowercases them.
func (c Config) Voice(lang dtypes.Lang, kind dtypes.UnitKind) dtypes.VoiceConfig {
	id := lookup(c.Voices, lang)
	if id == "" {
		id = engines.DefaultVoice(c.Engine, lang)
		if c.Engine == engines.NameMock {
			id = engines.MockVoice
		}
	}
	speed := lookup(c.Speeds, lang)
	if speed == 0 {
		speed = 1
	}
	if s := c.Part(kind).Speed; s != 0 {
		speed = s
	}
	return dtypes.VoiceConfig{VoiceID: id, Speed: speed, Lang: lang}
}

func lookup[V any](m map[string]V, lang dtypes.Lang) V {
	for k, v := range m {
		if strings.EqualFold(k, string(lang)) {
			return v
		}
	}
	var zero V
	return zero
}
