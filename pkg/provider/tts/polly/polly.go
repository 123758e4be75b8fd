// Package polly provides an Amazon Polly-backed TTS provider using
// aws-sdk-go-v2. It implements the tts.Provider interface.
//
// Mood and suspicion are expressed through SSML prosody: a hostile NPC
// speaks faster and slightly lower, a calm one at the neutral default.
package polly

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awspolly "github.com/aws/aws-sdk-go-v2/service/polly"
	pollytypes "github.com/aws/aws-sdk-go-v2/service/polly/types"
	"github.com/aws/smithy-go"

	"github.com/kallevis/talkdown/pkg/provider/tts"
)

const (
	defaultVoice   = "Matthew"
	defaultEngine  = "neural"
	defaultTimeout = 15 * time.Second
)

// Compile-time assertion that Provider implements tts.Provider.
var _ tts.Provider = (*Provider)(nil)

// synthClient is the subset of the Polly client the provider uses; tests
// substitute a fake.
type synthClient interface {
	SynthesizeSpeech(ctx context.Context, params *awspolly.SynthesizeSpeechInput, optFns ...func(*awspolly.Options)) (*awspolly.SynthesizeSpeechOutput, error)
}

// Config holds Polly provider settings.
type Config struct {
	// Region is the AWS region; empty falls back to the SDK default chain.
	Region string

	// VoiceID is the default Polly voice (e.g., "Matthew", "Joanna").
	VoiceID string

	// Engine is "standard" or "neural". Defaults to "neural".
	Engine string

	// Timeout bounds each synthesis call. Defaults to 15s.
	Timeout time.Duration
}

// Provider implements tts.Provider backed by Amazon Polly.
type Provider struct {
	client synthClient
	cfg    Config
}

// New creates a Provider using the default AWS credential chain.
func New(ctx context.Context, cfg Config) (*Provider, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("polly: load aws config: %w", err)
	}
	return NewWithClient(cfg, awspolly.NewFromConfig(awsCfg)), nil
}

// NewWithClient creates a Provider with an injected Polly client. Used by
// tests and callers that manage their own AWS configuration.
func NewWithClient(cfg Config, client synthClient) *Provider {
	if cfg.VoiceID == "" {
		cfg.VoiceID = defaultVoice
	}
	if cfg.Engine == "" {
		cfg.Engine = defaultEngine
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Provider{client: client, cfg: cfg}
}

// Synthesize implements tts.Provider.
func (p *Provider) Synthesize(ctx context.Context, req tts.Request) (io.ReadCloser, string, error) {
	if req.Text == "" {
		return nil, "", errors.New("polly: text must not be empty")
	}

	voice := req.Voice
	if voice == "" {
		voice = p.cfg.VoiceID
	}

	engine := pollytypes.EngineStandard
	if strings.EqualFold(p.cfg.Engine, "neural") {
		engine = pollytypes.EngineNeural
	}

	ssml := ssmlFor(req)

	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	out, err := p.client.SynthesizeSpeech(ctx, &awspolly.SynthesizeSpeechInput{
		Engine:       engine,
		OutputFormat: pollytypes.OutputFormatMp3,
		Text:         &ssml,
		TextType:     pollytypes.TextTypeSsml,
		VoiceId:      pollytypes.VoiceId(voice),
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			return nil, "", fmt.Errorf("polly: %s: %w", apiErr.ErrorCode(), err)
		}
		return nil, "", fmt.Errorf("polly: synthesize: %w", err)
	}
	if out == nil || out.AudioStream == nil {
		return nil, "", errors.New("polly: empty audio stream")
	}

	ct := "audio/mpeg"
	if out.ContentType != nil && *out.ContentType != "" {
		ct = *out.ContentType
	}
	return out.AudioStream, ct, nil
}

// ssmlFor wraps the text in prosody controls derived from mood and
// suspicion. Text is XML-escaped first.
func ssmlFor(req tts.Request) string {
	rate := "medium"
	pitch := "medium"
	switch req.Mood {
	case "hostile":
		rate = "fast"
		pitch = "low"
	case "suspicious":
		rate = "medium"
		pitch = "low"
	}
	if req.Suspicion >= 90 {
		rate = "x-fast"
	}
	escaped := xmlEscape(req.Text)
	return fmt.Sprintf(`<speak><prosody rate="%s" pitch="%s">%s</prosody></speak>`, rate, pitch, escaped)
}

var xmlReplacer = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)

func xmlEscape(s string) string {
	return xmlReplacer.Replace(s)
}
