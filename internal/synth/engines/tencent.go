package engines

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/dgnsrekt/dictation-buddy/internal/audio"
	"github.com/dgnsrekt/dictation-buddy/internal/dtypes"
	"github.com/dgnsrekt/dictation-buddy/internal/synth"
	"github.com/google/uuid"
	"github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/common"
	sdkerrors "github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/common/errors"
	"github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/common/profile"
	tts "github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/tts/v20190823"
)

// tencentMaxRunes is the TextToVoice limit per request.
const tencentMaxRunes = 150

// TencentConfig configures the Tencent Cloud engine. Credentials normally
// come from the environment.
type TencentConfig struct {
	SecretID   string  `yaml:"secret_id" mapstructure:"secret_id" env:"DICTATE_TENCENT_SECRET_ID"`
	SecretKey  string  `yaml:"secret_key" mapstructure:"secret_key" env:"DICTATE_TENCENT_SECRET_KEY"`
	Region     string  `yaml:"region" mapstructure:"region"`
	Endpoint   string  `yaml:"endpoint" mapstructure:"endpoint"`
	Volume     float64 `yaml:"volume" mapstructure:"volume"`
	SampleRate int     `yaml:"sample_rate" mapstructure:"sample_rate"`
	ProjectID  int64   `yaml:"project_id" mapstructure:"project_id"`
}

// DefaultTencentConfig returns the default Tencent settings.
func DefaultTencentConfig() TencentConfig {
	return TencentConfig{
		Region:     "ap-guangzhou",
		Endpoint:   "tts.tencentcloudapi.com",
		SampleRate: 16000,
	}
}

type textToVoicer interface {
	TextToVoiceWithContext(ctx context.Context, request *tts.TextToVoiceRequest) (*tts.TextToVoiceResponse, error)
}

// Tencent synthesizes with Tencent Cloud's TextToVoice API, which returns
// raw PCM.
type Tencent struct {
	cfg    TencentConfig
	client textToVoicer
}

// NewTencent creates a Tencent engine.
func NewTencent(cfg TencentConfig) (*Tencent, error) {
	def := DefaultTencentConfig()
	if cfg.Region == "" {
		cfg.Region = def.Region
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = def.Endpoint
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = def.SampleRate
	}
	if cfg.SampleRate != 8000 && cfg.SampleRate != 16000 && cfg.SampleRate != 24000 {
		return nil, &dtypes.InvalidConfigError{Field: "tencent.sample_rate", Value: cfg.SampleRate, Reason: "must be 8000, 16000 or 24000"}
	}
	if cfg.SecretID == "" || cfg.SecretKey == "" {
		return nil, &dtypes.InvalidConfigError{Field: "tencent.secret_id", Value: "", Reason: "set DICTATE_TENCENT_SECRET_ID and DICTATE_TENCENT_SECRET_KEY"}
	}

	credential := common.NewCredential(cfg.SecretID, cfg.SecretKey)
	cpf := profile.NewClientProfile()
	cpf.HttpProfile.Endpoint = cfg.Endpoint

	client, err := tts.NewClient(credential, cfg.Region, cpf)
	if err != nil {
		return nil, fmt.Errorf("failed to create tencent client: %w", err)
	}
	return &Tencent{cfg: cfg, client: client}, nil
}

// TencentSpeed maps a speed multiplier onto Tencent's speed scale, where
// -2 is 0.6x, 0 is normal and 6 is 2.5x.
func TencentSpeed(mult float64) float64 {
	points := [][2]float64{{0.6, -2}, {0.8, -1}, {1.0, 0}, {1.2, 1}, {1.5, 2}, {2.5, 6}}
	if mult <= points[0][0] {
		return points[0][1]
	}
	for i := 1; i < len(points); i++ {
		lo, hi := points[i-1], points[i]
		if mult <= hi[0] {
			return lo[1] + (mult-lo[0])/(hi[0]-lo[0])*(hi[1]-lo[1])
		}
	}
	return points[len(points)-1][1]
}

// Synthesize calls TextToVoice for req.
func (e *Tencent) Synthesize(ctx context.Context, req synth.Request) (synth.Result, error) {
	if req.Text == "" {
		return synth.Result{}, errors.New("text cannot be empty")
	}
	if n := utf8.RuneCountInString(req.Text); n > tencentMaxRunes {
		return synth.Result{}, fmt.Errorf("text too long: %d characters (max %d)", n, tencentMaxRunes)
	}
	if !synth.HasVoice(e, req.Lang, req.VoiceID) {
		return synth.Result{}, fmt.Errorf("%w: %s", dtypes.ErrUnknownVoice, req.VoiceID)
	}
	voiceType, err := strconv.ParseInt(req.VoiceID, 10, 64)
	if err != nil {
		return synth.Result{}, fmt.Errorf("%w: %s", dtypes.ErrUnknownVoice, req.VoiceID)
	}

	primary := int64(1)
	if req.Lang == dtypes.LangEnglish {
		primary = 2
	}

	request := tts.NewTextToVoiceRequest()
	request.Text = common.StringPtr(req.Text)
	request.SessionId = common.StringPtr(uuid.NewString())
	request.VoiceType = common.Int64Ptr(voiceType)
	request.Speed = common.Float64Ptr(TencentSpeed(req.Speed))
	request.Volume = common.Float64Ptr(e.cfg.Volume)
	request.PrimaryLanguage = common.Int64Ptr(primary)
	request.SampleRate = common.Uint64Ptr(uint64(e.cfg.SampleRate)) //nolint:gosec
	request.Codec = common.StringPtr("pcm")
	if e.cfg.ProjectID != 0 {
		request.ProjectId = common.Int64Ptr(e.cfg.ProjectID)
	}

	response, err := e.client.TextToVoiceWithContext(ctx, request)
	if err != nil {
		return synth.Result{}, classifyTencentError(err)
	}
	if response == nil || response.Response == nil || response.Response.Audio == nil {
		return synth.Result{}, &dtypes.TransportError{Engine: NameTencent, Err: errors.New("empty response")}
	}

	pcm, err := base64.StdEncoding.DecodeString(*response.Response.Audio)
	if err != nil {
		return synth.Result{}, fmt.Errorf("decode tencent audio: %w", err)
	}
	return synth.Result{PCM: pcm, Format: e.format()}, nil
}

// classifyTencentError separates request problems, which will fail again,
// from service and network trouble.
func classifyTencentError(err error) error {
	var sdkErr *sdkerrors.TencentCloudSDKError
	if errors.As(err, &sdkErr) {
		code := sdkErr.GetCode()
		switch {
		case strings.Contains(code, "VoiceType"):
			return fmt.Errorf("%w: %v", dtypes.ErrUnknownVoice, err)
		case strings.HasPrefix(code, "InvalidParameter"),
			strings.HasPrefix(code, "AuthFailure"),
			strings.HasPrefix(code, "UnauthorizedOperation"),
			strings.HasPrefix(code, "UnsupportedOperation"),
			strings.HasPrefix(code, "ResourceUnavailable"):
			return fmt.Errorf("tencent rejected request: %w", err)
		}
	}
	return &dtypes.TransportError{Engine: NameTencent, Err: err}
}

func (e *Tencent) format() audio.Format {
	return audio.Format{SampleRate: e.cfg.SampleRate, Channels: 1, BitDepth: 16}
}

// Voices returns the catalog voices for lang.
func (e *Tencent) Voices(lang dtypes.Lang) []synth.Voice {
	return voicesFor(tencentVoices, lang)
}

// Info describes the engine.
func (e *Tencent) Info() synth.EngineInfo {
	return synth.EngineInfo{Name: NameTencent, Format: e.format(), MaxTextSize: tencentMaxRunes, IsOnline: true}
}

// Close is a no-op.
func (e *Tencent) Close() error {
	return nil
}
