package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// WAVHeaderSize is the length of the header EncodeWAV writes.
const WAVHeaderSize = 44

// ErrNotWAV is returned when data does not carry a PCM RIFF/WAVE header.
var ErrNotWAV = errors.New("not a PCM WAV stream")

// EncodeWAV writes pcm as a canonical 44-byte-header WAV stream.
func EncodeWAV(w io.Writer, f Format, pcm []byte) error {
	if err := f.Validate(); err != nil {
		return err
	}
	if len(pcm)%f.BytesPerFrame() != 0 {
		return fmt.Errorf("%w: %d bytes", ErrUnalignedPCM, len(pcm))
	}

	h := make([]byte, WAVHeaderSize)
	copy(h[0:], "RIFF")
	binary.LittleEndian.PutUint32(h[4:], uint32(36+len(pcm))) //nolint:gosec
	copy(h[8:], "WAVE")
	copy(h[12:], "fmt ")
	binary.LittleEndian.PutUint32(h[16:], 16)
	binary.LittleEndian.PutUint16(h[20:], 1) // PCM
	binary.LittleEndian.PutUint16(h[22:], uint16(f.Channels))
	binary.LittleEndian.PutUint32(h[24:], uint32(f.SampleRate))
	binary.LittleEndian.PutUint32(h[28:], uint32(f.SampleRate*f.BytesPerFrame()))
	binary.LittleEndian.PutUint16(h[32:], uint16(f.BytesPerFrame()))
	binary.LittleEndian.PutUint16(h[34:], uint16(f.BitDepth))
	copy(h[36:], "data")
	binary.LittleEndian.PutUint32(h[40:], uint32(len(pcm))) //nolint:gosec

	if _, err := w.Write(h); err != nil {
		return fmt.Errorf("write wav header: %w", err)
	}
	if _, err := w.Write(pcm); err != nil {
		return fmt.Errorf("write wav data: %w", err)
	}
	return nil
}

// DecodeWAV parses a WAV stream, skipping chunks other than "fmt " and
// "data".
func DecodeWAV(data []byte) (Format, []byte, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return Format{}, nil, ErrNotWAV
	}

	var (
		f      Format
		gotFmt bool
	)
	pos := 12
	for pos+8 <= len(data) {
		id := string(data[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(data[pos+4:]))
		body := pos + 8
		if size < 0 || body+size > len(data) {
			return Format{}, nil, fmt.Errorf("%w: chunk %q overruns stream", ErrNotWAV, id)
		}

		switch id {
		case "fmt ":
			if size < 16 {
				return Format{}, nil, fmt.Errorf("%w: short fmt chunk", ErrNotWAV)
			}
			if binary.LittleEndian.Uint16(data[body:]) != 1 {
				return Format{}, nil, fmt.Errorf("%w: compressed audio", ErrNotWAV)
			}
			f = Format{
				Channels:   int(binary.LittleEndian.Uint16(data[body+2:])),
				SampleRate: int(binary.LittleEndian.Uint32(data[body+4:])),
				BitDepth:   int(binary.LittleEndian.Uint16(data[body+14:])),
			}
			gotFmt = true
		case "data":
			if !gotFmt {
				return Format{}, nil, fmt.Errorf("%w: data before fmt", ErrNotWAV)
			}
			if err := f.Validate(); err != nil {
				return Format{}, nil, fmt.Errorf("%w: %v", ErrNotWAV, err)
			}
			return f, data[body : body+size], nil
		}

		pos = body + size + size%2
	}
	return Format{}, nil, fmt.Errorf("%w: missing data chunk", ErrNotWAV)
}
