package engines

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/dgnsrekt/dictation-buddy/internal/audio"
	"github.com/dgnsrekt/dictation-buddy/internal/dtypes"
	"github.com/dgnsrekt/dictation-buddy/internal/synth"
	"github.com/difyz9/edge-tts-go/pkg/communicate"
	"github.com/difyz9/edge-tts-go/pkg/voices"
)

// EdgeConfig configures the Edge neural voice engine.
type EdgeConfig struct {
	Volume         string        `yaml:"volume" mapstructure:"volume"`
	Pitch          string        `yaml:"pitch" mapstructure:"pitch"`
	Proxy          string        `yaml:"proxy" mapstructure:"proxy"`
	ConnectTimeout int           `yaml:"connect_timeout" mapstructure:"connect_timeout"` // seconds
	ReceiveTimeout int           `yaml:"receive_timeout" mapstructure:"receive_timeout"` // seconds
	FFmpeg         string        `yaml:"ffmpeg" mapstructure:"ffmpeg"`
	DecodeTimeout  time.Duration `yaml:"decode_timeout" mapstructure:"decode_timeout"`
	TempDir        string        `yaml:"temp_dir" mapstructure:"temp_dir"`
}

// DefaultEdgeConfig returns the default Edge settings.
func DefaultEdgeConfig() EdgeConfig {
	return EdgeConfig{
		Volume:         "+0%",
		Pitch:          "+0Hz",
		ConnectTimeout: 10,
		ReceiveTimeout: 60,
		FFmpeg:         "ffmpeg",
		DecodeTimeout:  15 * time.Second,
	}
}

// Edge synthesizes with Microsoft Edge's online neural voices. The service
// returns MP3, which is decoded to PCM with ffmpeg.
type Edge struct {
	cfg    EdgeConfig
	format audio.Format

	// swapped in tests
	save   func(ctx context.Context, text, voice, rate, path string) error
	decode func(ctx context.Context, path string, f audio.Format) ([]byte, error)
}

// NewEdge creates an Edge engine that decodes to format f.
func NewEdge(cfg EdgeConfig, f audio.Format) (*Edge, error) {
	def := DefaultEdgeConfig()
	if cfg.Volume == "" {
		cfg.Volume = def.Volume
	}
	if cfg.Pitch == "" {
		cfg.Pitch = def.Pitch
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = def.ConnectTimeout
	}
	if cfg.ReceiveTimeout <= 0 {
		cfg.ReceiveTimeout = def.ReceiveTimeout
	}
	if cfg.FFmpeg == "" {
		cfg.FFmpeg = def.FFmpeg
	}
	if cfg.DecodeTimeout <= 0 {
		cfg.DecodeTimeout = def.DecodeTimeout
	}
	if cfg.TempDir == "" {
		cfg.TempDir = os.TempDir()
	}
	if err := os.MkdirAll(cfg.TempDir, 0o755); err != nil { //nolint:gosec
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}

	e := &Edge{cfg: cfg, format: f}
	e.save = e.saveMP3
	e.decode = ffmpegDecoder{binary: cfg.FFmpeg, timeout: cfg.DecodeTimeout}.decode
	return e, nil
}

// EdgeRate converts a speed multiplier into Edge's relative rate string:
// 0.8 becomes "-20%", 1.25 becomes "+25%".
func EdgeRate(speed float64) string {
	return fmt.Sprintf("%+d%%", int(math.Round((speed-1)*100)))
}

// Synthesize fetches MP3 for req and decodes it.
func (e *Edge) Synthesize(ctx context.Context, req synth.Request) (synth.Result, error) {
	if req.Text == "" {
		return synth.Result{}, errors.New("text cannot be empty")
	}
	if !synth.HasVoice(e, req.Lang, req.VoiceID) {
		return synth.Result{}, fmt.Errorf("%w: %s", dtypes.ErrUnknownVoice, req.VoiceID)
	}

	f, err := os.CreateTemp(e.cfg.TempDir, "edge-*.mp3")
	if err != nil {
		return synth.Result{}, fmt.Errorf("failed to create temp MP3 file: %w", err)
	}
	path := f.Name()
	_ = f.Close()
	defer os.Remove(path) //nolint:errcheck

	if err := e.save(ctx, req.Text, req.VoiceID, EdgeRate(req.Speed), path); err != nil {
		return synth.Result{}, &dtypes.TransportError{Engine: NameEdge, Err: err}
	}

	pcm, err := e.decode(ctx, path, e.format)
	if err != nil {
		// a truncated download decodes badly; fetching again usually helps
		return synth.Result{}, &dtypes.TransportError{Engine: NameEdge, Err: err}
	}
	return synth.Result{PCM: pcm, Format: e.format}, nil
}

func (e *Edge) saveMP3(ctx context.Context, text, voice, rate, path string) error {
	comm, err := communicate.NewCommunicate(
		text,
		voice,
		rate,
		e.cfg.Volume,
		e.cfg.Pitch,
		e.cfg.Proxy,
		e.cfg.ConnectTimeout,
		e.cfg.ReceiveTimeout,
	)
	if err != nil {
		return fmt.Errorf("create edge session: %w", err)
	}
	if err := comm.Save(ctx, path, ""); err != nil {
		return fmt.Errorf("save edge audio: %w", err)
	}

	st, err := os.Stat(path)
	if err != nil {
		return err
	}
	if st.Size() == 0 {
		return errors.New("edge returned an empty audio file")
	}
	return nil
}

// Voices returns the catalog voices for lang.
func (e *Edge) Voices(lang dtypes.Lang) []synth.Voice {
	return voicesFor(neuralVoices, lang)
}

// OnlineVoices queries the service for every voice whose locale belongs to
// lang. It is slower than Voices and needs network access.
func (e *Edge) OnlineVoices(ctx context.Context, lang dtypes.Lang) ([]synth.Voice, error) {
	list, err := voices.ListVoices(ctx, e.cfg.Proxy)
	if err != nil {
		return nil, &dtypes.TransportError{Engine: NameEdge, Err: err}
	}

	prefix := strings.ToLower(string(lang))
	var out []synth.Voice
	for _, v := range list {
		locale := strings.ToLower(v.Locale)
		if locale == prefix || strings.HasPrefix(locale, prefix+"-") {
			out = append(out, synth.Voice{ID: v.ShortName, Lang: lang, Name: v.ShortName})
		}
	}
	return out, nil
}

// Info describes the engine.
func (e *Edge) Info() synth.EngineInfo {
	return synth.EngineInfo{Name: NameEdge, Format: e.format, MaxTextSize: 3000, IsOnline: true}
}

// Validate checks that ffmpeg can be run.
func (e *Edge) Validate() error {
	path, err := exec.LookPath(e.cfg.FFmpeg)
	if err != nil {
		return fmt.Errorf("ffmpeg not found in PATH: %w\n\nInstall ffmpeg for audio conversion", err)
	}
	if err := exec.Command(path, "-version").Run(); err != nil { //nolint:gosec
		return fmt.Errorf("cannot execute ffmpeg: %w", err)
	}
	return nil
}

// Close is a no-op; every request opens its own connection.
func (e *Edge) Close() error {
	return nil
}
