//go:build !nocgo
// +build !nocgo

package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
)

var (
	otoOnce   sync.Once
	otoCtx    *oto.Context
	otoFormat Format
	otoErr    error
)

// OtoPlayer plays PCM through the system audio device. oto allows a single
// context per process, so every OtoPlayer shares it and the first format
// used fixes the device format.
type OtoPlayer struct {
	mu sync.Mutex
}

// NewPlayer returns a Player backed by oto.
func NewPlayer() (*OtoPlayer, error) {
	return &OtoPlayer{}, nil
}

func otoContext(f Format) (*oto.Context, error) {
	otoOnce.Do(func() {
		op := &oto.NewContextOptions{
			SampleRate:   f.SampleRate,
			ChannelCount: f.Channels,
			Format:       oto.FormatSignedInt16LE,
			BufferSize:   100 * time.Millisecond,
		}
		ctx, ready, err := oto.NewContext(op)
		if err != nil {
			otoErr = fmt.Errorf("%w: %v", ErrAudioUnavailable, err)
			return
		}
		<-ready
		otoCtx = ctx
		otoFormat = f
	})
	if otoErr != nil {
		return nil, otoErr
	}
	if otoFormat != f {
		return nil, fmt.Errorf("audio device opened as %s, cannot play %s", otoFormat, f)
	}
	return otoCtx, nil
}

// Play blocks until pcm has finished playing or ctx is done.
func (p *OtoPlayer) Play(ctx context.Context, pcm []byte, f Format) error {
	if err := ValidatePCM(pcm, f); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	c, err := otoContext(f)
	if err != nil {
		return err
	}

	// the reader keeps pcm referenced until playback ends
	player := c.NewPlayer(bytes.NewReader(pcm))
	if player == nil {
		return errors.New("failed to create oto player")
	}
	defer player.Close() //nolint:errcheck

	player.Play()

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for player.IsPlaying() {
		select {
		case <-ctx.Done():
			player.Pause()
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return player.Err()
}

// Close releases the player. The shared device context stays open.
func (p *OtoPlayer) Close() error {
	return nil
}
