package config

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dgnsrekt/dictation-buddy/internal/dtypes"
	"github.com/dgnsrekt/dictation-buddy/internal/synth/engines"
	"github.com/spf13/viper"
)

func load(t *testing.T, yaml string) (Config, error) {
	t.Helper()
	t.Setenv("DICTATE_LIBRARY", "")
	t.Setenv("DICTATE_TENCENT_SECRET_ID", "")
	t.Setenv("DICTATE_TENCENT_SECRET_KEY", "")

	v := viper.New()
	SetDefaults(v)
	v.SetConfigType("yaml")
	if err := v.ReadConfig(strings.NewReader(yaml)); err != nil {
		t.Fatalf("ReadConfig failed: %v", err)
	}
	return LoadConfigFromViper(v)
}

func TestDefault(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config is invalid: %v", err)
	}
}

func TestDefaultYAMLMatchesDefault(t *testing.T) {
	cfg, err := load(t, DefaultYAML)
	if err != nil {
		t.Fatalf("default YAML does not load: %v", err)
	}
	d := Default()

	if cfg.Engine != d.Engine {
		t.Errorf("engine = %q, want %q", cfg.Engine, d.Engine)
	}
	if cfg.Vocabulary.Repeats != d.Vocabulary.Repeats || cfg.Vocabulary.InterUnitSilenceMS != d.Vocabulary.InterUnitSilenceMS || cfg.Vocabulary.Speed != d.Vocabulary.Speed {
		t.Errorf("vocabulary = %+v, want %+v", cfg.Vocabulary, d.Vocabulary)
	}
	if cfg.Passage.RepeatGapMS() != d.Passage.RepeatGapMS() || cfg.Passage.TailSilenceMS != d.Passage.TailSilenceMS {
		t.Errorf("passage = %+v, want %+v", cfg.Passage, d.Passage)
	}
	// both parts are read a fifth slower than the language speed
	for _, kind := range []dtypes.UnitKind{dtypes.KindWord, dtypes.KindSentence} {
		if v := cfg.Voice(dtypes.LangEnglish, kind); v.Speed != 0.8 {
			t.Errorf("default %s speed = %v, want 0.8", kind, v.Speed)
		}
	}
	if cfg.Dispatch != d.Dispatch {
		t.Errorf("dispatch = %+v, want %+v", cfg.Dispatch, d.Dispatch)
	}
	if cfg.Engines.Edge.DecodeTimeout != 15*time.Second || cfg.Engines.Tencent.Region != "ap-guangzhou" {
		t.Errorf("engines = %+v", cfg.Engines)
	}
	if cfg.TrackFormat() != d.TrackFormat() {
		t.Errorf("format = %v", cfg.TrackFormat())
	}
}

func TestLoad_Overrides(t *testing.T) {
	cfg, err := load(t, `
engine: mock
voices:
  zh-TW: "zh-TW-YunJheNeural"
speeds:
  en: 1.25
vocabulary:
  repeats: 3
  shuffle: true
  seed: 42
  repeat_silence_ms: 750
passage:
  speed: 0
library:
  dir: "$HOME/dictation"
  compress: true
`)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Engine != engines.NameMock {
		t.Errorf("engine = %q", cfg.Engine)
	}
	if cfg.Vocabulary.Repeats != 3 || !cfg.Vocabulary.Shuffle || cfg.Vocabulary.Seed != 42 || cfg.Vocabulary.RepeatGapMS() != 750 {
		t.Errorf("vocabulary = %+v", cfg.Vocabulary)
	}
	if cfg.Vocabulary.InterUnitSilenceMS != 3000 {
		t.Errorf("unset silence lost its default: %d", cfg.Vocabulary.InterUnitSilenceMS)
	}
	if strings.Contains(cfg.Library.Dir, "$HOME") {
		t.Errorf("library dir not expanded: %q", cfg.Library.Dir)
	}

	v := cfg.Voice(dtypes.LangTraditionalChinese, dtypes.KindSentence)
	if v.VoiceID != "zh-TW-YunJheNeural" || v.Speed != 0.9 || v.Lang != dtypes.LangTraditionalChinese {
		t.Errorf("zh-TW voice = %+v", v)
	}
	v = cfg.Voice(dtypes.LangEnglish, dtypes.KindSentence)
	if v.VoiceID != engines.MockVoice || v.Speed != 1.25 {
		t.Errorf("en passage voice = %+v", v)
	}
	if v := cfg.Voice(dtypes.LangEnglish, dtypes.KindWord); v.Speed != 0.8 {
		t.Errorf("vocabulary speed override ignored: %+v", v)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		yaml  string
		field string
	}{
		{"unknown engine", "engine: espeak", "engine"},
		{"repeats", "vocabulary:\n  repeats: 11", "vocabulary.repeats"},
		{"negative silence", "passage:\n  silence_ms: -5", "passage.silence_ms"},
		{"speed", "speeds:\n  en: 3", "speeds.en"},
		{"part speed", "passage:\n  speed: 0.1", "passage.speed"},
		{"concurrency", "dispatch:\n  concurrency: 0", "dispatch.concurrency"},
		{"sample rate", "audio:\n  sample_rate: 100", "audio.sample_rate"},
		{"zstd level", "library:\n  compress: true\n  level: 40", "library.level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := load(t, tt.yaml)
			var ic *dtypes.InvalidConfigError
			if !errors.As(err, &ic) {
				t.Fatalf("expected InvalidConfigError, got %v", err)
			}
			if ic.Field != tt.field {
				t.Errorf("field = %q, want %q", ic.Field, tt.field)
			}
		})
	}
}

func TestLoad_RejectsUnknownKeys(t *testing.T) {
	_, err := load(t, "vocabulary:\n  repeat: 3")
	if !errors.Is(err, dtypes.ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig for a misspelled key, got %v", err)
	}
}

func TestLoad_Environment(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	t.Setenv("DICTATE_LIBRARY", "/tmp/dictate-library")
	t.Setenv("DICTATE_TENCENT_SECRET_ID", "id")
	t.Setenv("DICTATE_TENCENT_SECRET_KEY", "key")

	cfg, err := LoadConfigFromViper(v)
	if err != nil {
		t.Fatalf("LoadConfigFromViper failed: %v", err)
	}
	if cfg.Library.Dir != "/tmp/dictate-library" {
		t.Errorf("library dir = %q", cfg.Library.Dir)
	}
	if cfg.Engines.Tencent.SecretID != "id" || cfg.Engines.Tencent.SecretKey != "key" {
		t.Errorf("credentials not read from the environment")
	}
}
