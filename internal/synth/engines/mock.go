package engines

import (
	"context"
	"encoding/binary"
	"hash/fnv"
	"math"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/dgnsrekt/dictation-buddy/internal/audio"
	"github.com/dgnsrekt/dictation-buddy/internal/dtypes"
	"github.com/dgnsrekt/dictation-buddy/internal/synth"
)

// MockVoice is offered by the mock engine in every language.
const MockVoice = "mock"

// MockConfig configures the mock engine.
type MockConfig struct {
	// Delay simulates request latency.
	Delay time.Duration `yaml:"delay" mapstructure:"delay"`
}

// Mock is an offline engine that renders a short tone per request. The tone
// length depends only on the text, so tracks built with it are exactly
// reproducible. It is safe for concurrent use.
type Mock struct {
	format audio.Format
	delay  time.Duration

	mu       sync.Mutex
	calls    map[string]int
	total    int
	failures map[string]*injectedFailure
	inFlight int
	peak     int
}

type injectedFailure struct {
	remaining int // < 0 fails forever
	err       error
}

// NewMock creates a mock engine producing audio in f.
func NewMock(f audio.Format, cfg MockConfig) *Mock {
	return &Mock{
		format:   f,
		delay:    cfg.Delay,
		calls:    make(map[string]int),
		failures: make(map[string]*injectedFailure),
	}
}

// MockDuration is the length of the clip the mock engine renders for text.
func MockDuration(text string) time.Duration {
	return 200*time.Millisecond + time.Duration(utf8.RuneCountInString(text))*40*time.Millisecond
}

// Synthesize renders a tone for req.Text.
func (m *Mock) Synthesize(ctx context.Context, req synth.Request) (synth.Result, error) {
	if !synth.HasVoice(m, req.Lang, req.VoiceID) {
		return synth.Result{}, dtypes.ErrUnknownVoice
	}

	m.mu.Lock()
	m.calls[req.Text]++
	m.total++
	m.inFlight++
	m.peak = max(m.peak, m.inFlight)
	var err error
	if f, ok := m.failures[req.Text]; ok && f.remaining != 0 {
		if f.remaining > 0 {
			f.remaining--
		}
		err = f.err
	}
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.inFlight--
		m.mu.Unlock()
	}()

	if m.delay > 0 {
		t := time.NewTimer(m.delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return synth.Result{}, &dtypes.TransportError{Engine: NameMock, Err: ctx.Err()}
		case <-t.C:
		}
	}
	if err != nil {
		return synth.Result{}, err
	}

	return synth.Result{PCM: m.tone(req.Text), Format: m.format}, nil
}

func (m *Mock) tone(text string) []byte {
	h := fnv.New32a()
	_, _ = h.Write([]byte(text))
	freq := 220 + float64(h.Sum32()%440)

	frames := m.format.FramesForMillis(int(MockDuration(text) / time.Millisecond))
	out := make([]byte, 0, frames*int64(m.format.BytesPerFrame()))
	for i := range frames {
		v := int16(3000 * math.Sin(2*math.Pi*freq*float64(i)/float64(m.format.SampleRate)))
		for range m.format.Channels {
			out = binary.LittleEndian.AppendUint16(out, uint16(v))
		}
	}
	return out
}

// Voices returns the catalog voices for lang plus MockVoice.
func (m *Mock) Voices(lang dtypes.Lang) []synth.Voice {
	v := voicesFor(neuralVoices, lang)
	v = append(v, voicesFor(tencentVoices, lang)...)
	return append(v, synth.Voice{ID: MockVoice, Lang: lang, Name: "Mock tone", Gender: "neutral"})
}

// Info describes the engine.
func (m *Mock) Info() synth.EngineInfo {
	return synth.EngineInfo{Name: NameMock, Format: m.format, MaxTextSize: 10000}
}

// Close is a no-op.
func (m *Mock) Close() error {
	return nil
}

// Test control methods

// FailTimes makes the next n requests for text fail with err. A negative n
// fails every request.
func (m *Mock) FailTimes(text string, n int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[text] = &injectedFailure{remaining: n, err: err}
}

// ClearFailures removes all injected failures.
func (m *Mock) ClearFailures() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = make(map[string]*injectedFailure)
}

// Calls returns how often text was requested.
func (m *Mock) Calls(text string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[text]
}

// TotalCalls returns the number of requests made.
func (m *Mock) TotalCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.total
}

// PeakConcurrency returns the most requests that were in flight at once.
func (m *Mock) PeakConcurrency() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.peak
}
