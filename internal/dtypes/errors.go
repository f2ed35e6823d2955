package dtypes

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors. The typed errors below match them with errors.Is.
var (
	// ErrUnsupportedLanguage indicates no punctuation table exists for a language.
	ErrUnsupportedLanguage = errors.New("unsupported language")

	// ErrInvalidConfig indicates a plan or engine configuration is out of range.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrUnknownVoice indicates the engine does not offer the requested voice.
	ErrUnknownVoice = errors.New("unknown voice")

	// ErrSynthesis indicates a clip could not be produced.
	ErrSynthesis = errors.New("synthesis failed")

	// ErrMalformedExtraction indicates the OCR result is not usable.
	ErrMalformedExtraction = errors.New("malformed extraction")

	// ErrPersistence indicates a session could not be written or read.
	ErrPersistence = errors.New("persistence failed")

	// ErrNoUnits indicates there is nothing to dictate.
	ErrNoUnits = errors.New("no text units to dictate")

	// ErrUnknownUnit indicates a unit index that is not part of a track.
	ErrUnknownUnit = errors.New("unknown unit")
)

// UnsupportedLanguageError reports a language code with no punctuation table.
type UnsupportedLanguageError struct {
	Lang string
}

func (e *UnsupportedLanguageError) Error() string {
	return fmt.Sprintf("unsupported language %q", e.Lang)
}

// Is reports whether target is ErrUnsupportedLanguage.
func (e *UnsupportedLanguageError) Is(target error) bool {
	return target == ErrUnsupportedLanguage
}

// InvalidConfigError reports a configuration field that failed validation.
type InvalidConfigError struct {
	Field  string
	Value  any
	Reason string
}

func (e *InvalidConfigError) Error() string {
	return fmt.Sprintf("invalid %s (%v): %s", e.Field, e.Value, e.Reason)
}

// Is reports whether target is ErrInvalidConfig.
func (e *InvalidConfigError) Is(target error) bool {
	return target == ErrInvalidConfig
}

// TransportError is a transient engine failure (network, timeout, throttling,
// subprocess crash). The dispatcher retries it.
type TransportError struct {
	Engine string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s transport: %v", e.Engine, e.Err)
}

// Unwrap returns the underlying error.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// SynthesisError reports the clip that could not be produced after all
// retries.
type SynthesisError struct {
	Key      ClipKey
	Attempts int
	Err      error
}

func (e *SynthesisError) Error() string {
	return fmt.Sprintf("synthesis of %q with voice %s failed after %d attempt(s): %v",
		e.Key.Token, e.Key.VoiceID, e.Attempts, e.Err)
}

// Unwrap returns the underlying error.
func (e *SynthesisError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrSynthesis.
func (e *SynthesisError) Is(target error) bool {
	return target == ErrSynthesis
}

// MalformedExtractionError reports an unusable OCR result.
type MalformedExtractionError struct {
	Reason string
	Err    error
}

func (e *MalformedExtractionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed extraction: %s: %v", e.Reason, e.Err)
	}
	return "malformed extraction: " + e.Reason
}

// Unwrap returns the underlying error.
func (e *MalformedExtractionError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrMalformedExtraction.
func (e *MalformedExtractionError) Is(target error) bool {
	return target == ErrMalformedExtraction
}

// PersistenceError reports a failed library write or read.
type PersistenceError struct {
	Op   string
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrPersistence.
func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistence
}

// IsRetryable reports whether err is a transient engine failure worth
// another attempt.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, ErrUnknownVoice) {
		return false
	}
	var te *TransportError
	return errors.As(err, &te)
}
