package library

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/dgnsrekt/dictation-buddy/internal/audio"
	"github.com/dgnsrekt/dictation-buddy/internal/dictation"
	"github.com/dgnsrekt/dictation-buddy/internal/dtypes"
	"github.com/dgnsrekt/dictation-buddy/internal/plan"
	"github.com/google/uuid"
)

// manifestVersion is bumped when the sidecar layout changes.
const manifestVersion = 1

// timestampLayout is the UTC time suffix of export names.
const timestampLayout = "20060102T150405Z"

// sessionNamespace scopes the name-based session IDs.
var sessionNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/dgnsrekt/dictation-buddy/session"))

// Session is a finished track with the inputs that produced it. It is
// never modified after creation.
type Session struct {
	ID         string
	Name       string
	CreatedAt  time.Time
	Lang       dtypes.Lang
	Kind       dtypes.UnitKind
	Units      []dtypes.TextUnit
	Tokens     []dtypes.SpokenToken
	Voice      dtypes.VoiceConfig
	PlanConfig plan.Config
	Plan       dtypes.PlaybackPlan
	Track      *dtypes.AssembledTrack
}

// NewSession packages res under name. The ID is derived from the name and
// the track audio, so packaging the same result twice gives equal sessions.
func NewSession(name string, createdAt time.Time, res *dictation.Result) (*Session, error) {
	if res == nil || res.Track == nil {
		return nil, errors.New("no track to package")
	}
	if len(res.Units) == 0 || len(res.Units) != len(res.Tokens) {
		return nil, fmt.Errorf("session has %d units and %d tokens", len(res.Units), len(res.Tokens))
	}
	if strings.TrimSpace(name) == "" {
		name = string(res.Units[0].Kind)
	}
	return &Session{
		ID:         sessionID(name, res.Track),
		Name:       name,
		CreatedAt:  createdAt.UTC().Truncate(time.Second),
		Lang:       res.Lang,
		Kind:       res.Units[0].Kind,
		Units:      res.Units,
		Tokens:     res.Tokens,
		Voice:      res.Voice,
		PlanConfig: res.PlanConfig,
		Plan:       res.Plan,
		Track:      res.Track,
	}, nil
}

func sessionID(name string, track *dtypes.AssembledTrack) string {
	h := sha256.New()
	h.Write([]byte(name))
	h.Write([]byte{0})
	h.Write(track.PCM)
	return uuid.NewSHA1(sessionNamespace, h.Sum(nil)).String()
}

// ExportName returns the file stem the session is stored under.
func (s *Session) ExportName() string {
	return ExportName(s.Name, s.CreatedAt)
}

var unsafeChars = regexp.MustCompile(`[^\p{L}\p{N}._-]+`)

// ExportName builds "<name>_<UTC timestamp>" from the Slug of name.
func ExportName(name string, createdAt time.Time) string {
	return Slug(name) + "_" + createdAt.UTC().Format(timestampLayout)
}

// Slug makes name safe for file names: every run of unsafe characters
// becomes a dash and the result is at most 64 runes.
func Slug(name string) string {
	clean := unsafeChars.ReplaceAllString(strings.TrimSpace(name), "-")
	clean = strings.Trim(clean, "-.")
	if clean == "" {
		clean = "dictation"
	}
	if r := []rune(clean); len(r) > 64 {
		clean = string(r[:64])
	}
	return clean
}

// Manifest is the YAML sidecar stored next to each track.
type Manifest struct {
	Version    int                 `yaml:"version"`
	ID         string              `yaml:"id"`
	Name       string              `yaml:"name"`
	CreatedAt  time.Time           `yaml:"created_at"`
	Lang       dtypes.Lang         `yaml:"lang"`
	Kind       dtypes.UnitKind     `yaml:"kind"`
	Voice      dtypes.VoiceConfig  `yaml:"voice"`
	Config     plan.Config         `yaml:"config"`
	Plan       dtypes.PlaybackPlan `yaml:"plan"`
	Format     audio.Format        `yaml:"format"`
	Audio      string              `yaml:"audio"`
	Compressed bool                `yaml:"compressed"`
	Frames     int64               `yaml:"frames"`
	SHA256     string              `yaml:"sha256"`
	Units      []UnitRecord        `yaml:"units"`
}

// UnitRecord is one unit with its spoken form and first-play span.
type UnitRecord struct {
	Index int             `yaml:"index"`
	Kind  dtypes.UnitKind `yaml:"kind"`
	Text  string          `yaml:"text"`
	Token string          `yaml:"token"`
	Span  dtypes.Span     `yaml:"span"`
}

// ResolveUnit finds the unit ref names: either a 1-based position in play
// order or the unit text, compared case-insensitively.
func (m *Manifest) ResolveUnit(ref string) (int, error) {
	if n, err := strconv.Atoi(ref); err == nil {
		if n < 1 || n > len(m.Plan.Entries) {
			return 0, fmt.Errorf("position %d: %w", n, dtypes.ErrUnknownUnit)
		}
		return m.Plan.Entries[n-1].UnitIndex, nil
	}
	for _, u := range m.Units {
		if strings.EqualFold(strings.TrimSpace(u.Text), strings.TrimSpace(ref)) {
			return u.Index, nil
		}
	}
	return 0, fmt.Errorf("%q: %w", ref, dtypes.ErrUnknownUnit)
}

// Duration returns the track length.
func (m *Manifest) Duration() time.Duration {
	return m.Format.Duration(m.Frames)
}
