package audio

import (
	"context"
	"errors"
	"sync"
)

// ErrAudioUnavailable is returned when no audio device can be opened.
var ErrAudioUnavailable = errors.New("audio device unavailable")

// Player plays a PCM buffer to completion.
type Player interface {
	Play(ctx context.Context, pcm []byte, f Format) error
	Close() error
}

// MockPlayer records what it was asked to play. It is used by tests and by
// headless environments.
type MockPlayer struct {
	mu     sync.Mutex
	played [][]byte
	format Format
	err    error
	closed bool
}

// NewMockPlayer returns an empty MockPlayer.
func NewMockPlayer() *MockPlayer {
	return &MockPlayer{}
}

// Play records pcm and returns immediately.
func (m *MockPlayer) Play(ctx context.Context, pcm []byte, f Format) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return errors.New("player is closed")
	}
	if m.err != nil {
		return m.err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := ValidatePCM(pcm, f); err != nil {
		return err
	}

	buf := make([]byte, len(pcm))
	copy(buf, pcm)
	m.played = append(m.played, buf)
	m.format = f
	return nil
}

// SetError makes every following Play fail with err.
func (m *MockPlayer) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Played returns copies of every buffer played so far.
func (m *MockPlayer) Played() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]byte(nil), m.played...)
}

// LastFormat returns the format of the most recent Play.
func (m *MockPlayer) LastFormat() Format {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.format
}

// Close marks the player closed.
func (m *MockPlayer) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
