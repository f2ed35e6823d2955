//go:build nocgo
// +build nocgo

package audio

import "context"

// OtoPlayer is unavailable in builds without cgo.
type OtoPlayer struct{}

// NewPlayer reports that playback is not compiled in.
func NewPlayer() (*OtoPlayer, error) {
	return nil, ErrAudioUnavailable
}

// Play always fails.
func (p *OtoPlayer) Play(context.Context, []byte, Format) error {
	return ErrAudioUnavailable
}

// Close is a no-op.
func (p *OtoPlayer) Close() error {
	return nil
}
