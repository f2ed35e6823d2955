package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

// Default track parameters. 24 kHz divides evenly into milliseconds, so
// every configured silence maps to a whole number of frames.
const (
	DefaultSampleRate = 24000
	DefaultChannels   = 1
	DefaultBitDepth   = 16
)

// ErrUnalignedPCM is returned when a PCM buffer does not hold a whole
// number of frames.
var ErrUnalignedPCM = errors.New("pcm data is not frame aligned")

// Format describes signed little-endian PCM audio.
type Format struct {
	SampleRate int `yaml:"sample_rate"`
	Channels   int `yaml:"channels"`
	BitDepth   int `yaml:"bit_depth"`
}

// DefaultFormat returns the format used for assembled tracks.
func DefaultFormat() Format {
	return Format{
		SampleRate: DefaultSampleRate,
		Channels:   DefaultChannels,
		BitDepth:   DefaultBitDepth,
	}
}

// Validate checks that the format is one we can read and write.
func (f Format) Validate() error {
	if f.SampleRate < 8000 || f.SampleRate > 192000 {
		return fmt.Errorf("sample rate must be between 8000 and 192000 Hz, got %d", f.SampleRate)
	}
	if f.Channels != 1 && f.Channels != 2 {
		return fmt.Errorf("channels must be 1 (mono) or 2 (stereo), got %d", f.Channels)
	}
	if f.BitDepth != 16 {
		return fmt.Errorf("bit depth must be 16, got %d", f.BitDepth)
	}
	return nil
}

// BytesPerFrame returns the size of one sample frame across all channels.
func (f Format) BytesPerFrame() int {
	return f.BitDepth / 8 * f.Channels
}

// FramesForMillis converts a millisecond duration into frames. Every silence
// in a track is sized through this function.
func (f Format) FramesForMillis(ms int) int64 {
	return int64(ms) * int64(f.SampleRate) / 1000
}

// Frames returns the number of whole frames held in n bytes.
func (f Format) Frames(n int) int64 {
	if f.BytesPerFrame() == 0 {
		return 0
	}
	return int64(n / f.BytesPerFrame())
}

// Duration converts a frame count to wall-clock time.
func (f Format) Duration(frames int64) time.Duration {
	if f.SampleRate == 0 {
		return 0
	}
	return time.Duration(frames) * time.Second / time.Duration(f.SampleRate)
}

// String implements fmt.Stringer.
func (f Format) String() string {
	return fmt.Sprintf("%dHz/%dch/%dbit", f.SampleRate, f.Channels, f.BitDepth)
}

// ValidatePCM checks that data is non-empty and frame aligned.
func ValidatePCM(data []byte, f Format) error {
	if len(data) == 0 {
		return errors.New("empty PCM data")
	}
	if len(data)%f.BytesPerFrame() != 0 {
		return fmt.Errorf("%w: %d bytes, %d-byte frames", ErrUnalignedPCM, len(data), f.BytesPerFrame())
	}
	return nil
}

// Silence returns frames of digital silence.
func Silence(frames int64, f Format) []byte {
	if frames <= 0 {
		return nil
	}
	return make([]byte, frames*int64(f.BytesPerFrame()))
}

// Convert resamples and remixes 16-bit PCM from one format to another using
// linear interpolation. Data already in the target format is returned as is.
func Convert(data []byte, from, to Format) ([]byte, error) {
	if err := from.Validate(); err != nil {
		return nil, fmt.Errorf("source format: %w", err)
	}
	if err := to.Validate(); err != nil {
		return nil, fmt.Errorf("target format: %w", err)
	}
	if err := ValidatePCM(data, from); err != nil {
		return nil, err
	}
	if from == to {
		return data, nil
	}

	frames := decodeFrames(data, from, to.Channels)

	if from.SampleRate != to.SampleRate {
		frames = resample(frames, float64(to.SampleRate)/float64(from.SampleRate))
	}

	out := make([]byte, 0, len(frames)*to.BytesPerFrame())
	for _, frame := range frames {
		for _, s := range frame {
			out = binary.LittleEndian.AppendUint16(out, uint16(s))
		}
	}
	return out, nil
}

// decodeFrames reads interleaved samples and maps them onto the requested
// channel count (mono is the average of the source channels).
func decodeFrames(data []byte, f Format, channels int) [][]int16 {
	n := len(data) / f.BytesPerFrame()
	frames := make([][]int16, n)
	for i := range n {
		off := i * f.BytesPerFrame()
		src := make([]int16, f.Channels)
		for ch := range f.Channels {
			src[ch] = int16(binary.LittleEndian.Uint16(data[off+ch*2:]))
		}
		frames[i] = remix(src, channels)
	}
	return frames
}

func remix(src []int16, channels int) []int16 {
	if len(src) == channels {
		return src
	}
	if channels == 1 {
		var sum int32
		for _, s := range src {
			sum += int32(s)
		}
		return []int16{int16(sum / int32(len(src)))}
	}
	out := make([]int16, channels)
	for ch := range out {
		out[ch] = src[0]
	}
	return out
}

func resample(in [][]int16, ratio float64) [][]int16 {
	if len(in) == 0 {
		return in
	}
	n := int(float64(len(in)) * ratio)
	out := make([][]int16, n)
	for i := range n {
		pos := float64(i) / ratio
		idx := int(pos)
		if idx >= len(in)-1 {
			out[i] = in[len(in)-1]
			continue
		}
		frac := pos - float64(idx)
		a, b := in[idx], in[idx+1]
		frame := make([]int16, len(a))
		for ch := range a {
			frame[ch] = int16(float64(a[ch])*(1-frac) + float64(b[ch])*frac)
		}
		out[i] = frame
	}
	return out
}
