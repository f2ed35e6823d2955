// Package engines provides the speech engines behind synth.Synthesizer.
package engines

import (
	"fmt"
	"slices"

	"github.com/dgnsrekt/dictation-buddy/internal/audio"
	"github.com/dgnsrekt/dictation-buddy/internal/dtypes"
	"github.com/dgnsrekt/dictation-buddy/internal/synth"
)

// Engine names.
const (
	NameMock    = "mock"
	NameEdge    = "edge"
	NameTencent = "tencent"
)

// Names lists the available engines.
func Names() []string {
	return []string{NameEdge, NameTencent, NameMock}
}

// Config holds the settings of every engine.
type Config struct {
	Edge    EdgeConfig    `yaml:"edge" mapstructure:"edge"`
	Tencent TencentConfig `yaml:"tencent" mapstructure:"tencent"`
	Mock    MockConfig    `yaml:"mock" mapstructure:"mock"`
}

// validator is implemented by engines with external requirements.
type validator interface {
	Validate() error
}

// New creates the named engine. Edge output is decoded directly into the
// track format; other engines are converted by the dispatcher.
func New(name string, cfg Config, track audio.Format) (synth.Synthesizer, error) {
	var (
		engine synth.Synthesizer
		err    error
	)
	switch name {
	case NameMock:
		engine = NewMock(track, cfg.Mock)
	case NameEdge:
		engine, err = NewEdge(cfg.Edge, track)
	case NameTencent:
		engine, err = NewTencent(cfg.Tencent)
	default:
		return nil, &dtypes.InvalidConfigError{Field: "engine", Value: name, Reason: fmt.Sprintf("must be one of %v", Names())}
	}
	if err != nil {
		return nil, err
	}

	if v, ok := engine.(validator); ok {
		if err := v.Validate(); err != nil {
			return nil, fmt.Errorf("%s engine unavailable: %w", name, err)
		}
	}
	return engine, nil
}

// Valid reports whether name is a known engine.
func Valid(name string) bool {
	return slices.Contains(Names(), name)
}
