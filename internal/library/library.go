// Package library stores finished dictation tracks. The library is
// append-only: a track is written once as a WAV file (optionally zstd
// compressed) with a YAML sidecar describing its units and spans, and is
// never rewritten.
package library

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/dictation-buddy/internal/audio"
	"github.com/dgnsrekt/dictation-buddy/internal/dtypes"
	"github.com/klauspost/compress/zstd"
	"github.com/sahilm/fuzzy"
	"gopkg.in/yaml.v3"
)

const (
	wavExt      = ".wav"
	zstdExt     = ".wav.zst"
	manifestExt = ".yaml"
)

// ErrExists is returned when an export name is taken by different content.
var ErrExists = errors.New("a different recording already uses this name")

// ErrNotFound is returned for names that are not in the library.
var ErrNotFound = errors.New("recording not found")

// Options configures a Library.
type Options struct {
	// Compress stores tracks as .wav.zst.
	Compress bool

	// Level is the zstd level used when compressing.
	Level int
}

// Library is a directory of saved sessions.
type Library struct {
	dir  string
	opts Options
}

// Entry is a listed recording.
type Entry struct {
	Name      string // export name
	Manifest  *Manifest
	AudioPath string
	Size      int64
}

// New opens the library in dir, creating the directory if needed.
func New(dir string, opts Options) (*Library, error) {
	if dir == "" {
		return nil, errors.New("library directory cannot be empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil { //nolint:gosec
		return nil, &dtypes.PersistenceError{Op: "create library", Path: dir, Err: err}
	}
	if opts.Compress && opts.Level == 0 {
		opts.Level = 3
	}
	return &Library{dir: dir, opts: opts}, nil
}

// Dir returns the library directory.
func (l *Library) Dir() string {
	return l.dir
}

// Save writes s to the library and returns its export name. Saving the
// same session again is a no-op; a different recording with the same export
// name is refused. On failure no new files are left behind.
func (l *Library) Save(s *Session) (string, error) {
	if s == nil || s.Track == nil {
		return "", errors.New("no session to save")
	}
	name := s.ExportName()

	audioBytes, sum, err := l.encodeAudio(s.Track)
	if err != nil {
		return "", &dtypes.PersistenceError{Op: "encode", Path: name, Err: err}
	}
	m := l.manifest(s, sum)
	manifestBytes, err := yaml.Marshal(m)
	if err != nil {
		return "", &dtypes.PersistenceError{Op: "encode", Path: name, Err: err}
	}

	files := []struct {
		path string
		data []byte
	}{
		{filepath.Join(l.dir, m.Audio), audioBytes},
		{filepath.Join(l.dir, name+manifestExt), manifestBytes},
	}

	var created []string
	cleanup := func() {
		for _, p := range created {
			_ = os.Remove(p)
		}
	}
	for _, f := range files {
		wrote, err := writeOnce(f.path, f.data)
		if err != nil {
			cleanup()
			return "", &dtypes.PersistenceError{Op: "save", Path: f.path, Err: err}
		}
		if wrote {
			created = append(created, f.path)
		}
	}

	if len(created) == 0 {
		log.Debug("Recording already saved", "name", name)
	} else {
		log.Info("Saved recording", "name", name, "frames", m.Frames, "compressed", m.Compressed)
	}
	return name, nil
}

func (l *Library) manifest(s *Session, sum string) *Manifest {
	audioName := s.ExportName() + wavExt
	if l.opts.Compress {
		audioName = s.ExportName() + zstdExt
	}
	units := make([]UnitRecord, len(s.Units))
	for i, u := range s.Units {
		units[i] = UnitRecord{
			Index: u.Index,
			Kind:  u.Kind,
			Text:  u.Text,
			Token: string(s.Tokens[i]),
			Span:  s.Track.Spans[u.Index],
		}
	}
	return &Manifest{
		Version:    manifestVersion,
		ID:         s.ID,
		Name:       s.Name,
		CreatedAt:  s.CreatedAt,
		Lang:       s.Lang,
		Kind:       s.Kind,
		Voice:      s.Voice,
		Config:     s.PlanConfig,
		Plan:       s.Plan,
		Format:     s.Track.Format,
		Audio:      audioName,
		Compressed: l.opts.Compress,
		Frames:     s.Track.Frames(),
		SHA256:     sum,
		Units:      units,
	}
}

// encodeAudio returns the bytes of the audio file and the checksum of the
// uncompressed WAV.
func (l *Library) encodeAudio(track *dtypes.AssembledTrack) ([]byte, string, error) {
	var wav bytes.Buffer
	if err := audio.EncodeWAV(&wav, track.Format, track.PCM); err != nil {
		return nil, "", err
	}
	h := sha256.Sum256(wav.Bytes())
	sum := hex.EncodeToString(h[:])
	if !l.opts.Compress {
		return wav.Bytes(), sum, nil
	}

	enc, err := zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(l.opts.Level)),
		zstd.WithEncoderConcurrency(1))
	if err != nil {
		return nil, "", fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	defer enc.Close() //nolint:errcheck
	return enc.EncodeAll(wav.Bytes(), nil), sum, nil
}

// List returns every recording, newest first. Sidecars that cannot be read
// are skipped with a warning.
func (l *Library) List() ([]Entry, error) {
	matches, err := filepath.Glob(filepath.Join(l.dir, "*"+manifestExt))
	if err != nil {
		return nil, &dtypes.PersistenceError{Op: "list", Path: l.dir, Err: err}
	}

	entries := make([]Entry, 0, len(matches))
	for _, path := range matches {
		name := strings.TrimSuffix(filepath.Base(path), manifestExt)
		e, err := l.entry(name)
		if err != nil {
			log.Warn("Skipping unreadable recording", "name", name, "error", err)
			continue
		}
		entries = append(entries, e)
	}
	slices.SortFunc(entries, func(a, b Entry) int {
		if c := b.Manifest.CreatedAt.Compare(a.Manifest.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.Name, b.Name)
	})
	return entries, nil
}

// Stat returns the entry for an export name.
func (l *Library) Stat(name string) (Entry, error) {
	return l.entry(name)
}

func (l *Library) entry(name string) (Entry, error) {
	if name == "" || name != filepath.Base(name) {
		return Entry{}, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	path := filepath.Join(l.dir, name+manifestExt)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return Entry{}, &dtypes.PersistenceError{Op: "read", Path: path, Err: err}
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Entry{}, &dtypes.PersistenceError{Op: "parse", Path: path, Err: err}
	}
	if m.Version != manifestVersion {
		return Entry{}, &dtypes.PersistenceError{Op: "parse", Path: path, Err: fmt.Errorf("unsupported manifest version %d", m.Version)}
	}
	if m.Audio != filepath.Base(m.Audio) {
		return Entry{}, &dtypes.PersistenceError{Op: "parse", Path: path, Err: fmt.Errorf("audio path %q escapes the library", m.Audio)}
	}

	audioPath := filepath.Join(l.dir, m.Audio)
	st, err := os.Stat(audioPath)
	if err != nil {
		return Entry{}, &dtypes.PersistenceError{Op: "stat", Path: audioPath, Err: err}
	}
	return Entry{Name: name, Manifest: &m, AudioPath: audioPath, Size: st.Size()}, nil
}

// Load reads a recording back, verifying its checksum. The track spans come
// from the sidecar, so no synthesis is needed to preview units.
func (l *Library) Load(name string) (*Session, error) {
	e, err := l.entry(name)
	if err != nil {
		return nil, err
	}
	m := e.Manifest

	wav, err := l.readWAV(e)
	if err != nil {
		return nil, err
	}
	h := sha256.Sum256(wav)
	if hex.EncodeToString(h[:]) != m.SHA256 {
		return nil, &dtypes.PersistenceError{Op: "verify", Path: e.AudioPath, Err: errors.New("checksum mismatch")}
	}
	f, pcm, err := audio.DecodeWAV(wav)
	if err != nil {
		return nil, &dtypes.PersistenceError{Op: "decode", Path: e.AudioPath, Err: err}
	}

	track := &dtypes.AssembledTrack{Format: f, PCM: pcm, Spans: make(map[int]dtypes.Span, len(m.Units))}
	units := make([]dtypes.TextUnit, len(m.Units))
	tokens := make([]dtypes.SpokenToken, len(m.Units))
	for i, u := range m.Units {
		units[i] = dtypes.TextUnit{Index: u.Index, Kind: u.Kind, Text: u.Text, Lang: m.Lang}
		tokens[i] = dtypes.SpokenToken(u.Token)
		track.Spans[u.Index] = u.Span
	}

	return &Session{
		ID:         m.ID,
		Name:       m.Name,
		CreatedAt:  m.CreatedAt,
		Lang:       m.Lang,
		Kind:       m.Kind,
		Units:      units,
		Tokens:     tokens,
		Voice:      m.Voice,
		PlanConfig: m.Config,
		Plan:       m.Plan,
		Track:      track,
	}, nil
}

func (l *Library) readWAV(e Entry) ([]byte, error) {
	data, err := os.ReadFile(e.AudioPath)
	if err != nil {
		return nil, &dtypes.PersistenceError{Op: "read", Path: e.AudioPath, Err: err}
	}
	if !e.Manifest.Compressed {
		return data, nil
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	defer dec.Close()
	wav, err := dec.DecodeAll(data, nil)
	if err != nil {
		return nil, &dtypes.PersistenceError{Op: "decompress", Path: e.AudioPath, Err: err}
	}
	return wav, nil
}

// PreviewRange returns the byte range [start, end) of a unit's first play
// inside the uncompressed WAV file.
func (l *Library) PreviewRange(name string, unit int) (int64, int64, error) {
	e, err := l.entry(name)
	if err != nil {
		return 0, 0, err
	}
	for _, u := range e.Manifest.Units {
		if u.Index == unit {
			bpf := int64(e.Manifest.Format.BytesPerFrame())
			return audio.WAVHeaderSize + u.Span.StartFrame*bpf, audio.WAVHeaderSize + u.Span.EndFrame*bpf, nil
		}
	}
	return 0, 0, fmt.Errorf("%s unit %d: %w", name, unit, dtypes.ErrUnknownUnit)
}

// Preview returns the PCM of a unit's first play. Uncompressed recordings
// are read with a single ranged read.
func (l *Library) Preview(name string, unit int) ([]byte, audio.Format, error) {
	start, end, err := l.PreviewRange(name, unit)
	if err != nil {
		return nil, audio.Format{}, err
	}
	e, err := l.entry(name)
	if err != nil {
		return nil, audio.Format{}, err
	}
	f := e.Manifest.Format

	if e.Manifest.Compressed {
		wav, err := l.readWAV(e)
		if err != nil {
			return nil, f, err
		}
		if end > int64(len(wav)) {
			return nil, f, &dtypes.PersistenceError{Op: "preview", Path: e.AudioPath, Err: io.ErrUnexpectedEOF}
		}
		return wav[start:end], f, nil
	}

	file, err := os.Open(e.AudioPath)
	if err != nil {
		return nil, f, &dtypes.PersistenceError{Op: "open", Path: e.AudioPath, Err: err}
	}
	defer file.Close() //nolint:errcheck

	pcm := make([]byte, end-start)
	if _, err := file.ReadAt(pcm, start); err != nil {
		return nil, f, &dtypes.PersistenceError{Op: "preview", Path: e.AudioPath, Err: err}
	}
	return pcm, f, nil
}

// Find returns recordings whose name or unit text matches query, best match
// first.
func (l *Library) Find(query string) ([]Entry, error) {
	entries, err := l.List()
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(query) == "" {
		return entries, nil
	}
	matches := fuzzy.FindFrom(query, searchSource(entries))
	out := make([]Entry, len(matches))
	for i, m := range matches {
		out[i] = entries[m.Index]
	}
	return out, nil
}

// searchSource exposes entries to fuzzy matching as "name: unit text".
type searchSource []Entry

func (s searchSource) String(i int) string {
	var b strings.Builder
	b.WriteString(s[i].Manifest.Name)
	b.WriteString(": ")
	for j, u := range s[i].Manifest.Units {
		if j > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(u.Text)
	}
	return b.String()
}

func (s searchSource) Len() int {
	return len(s)
}

