// Package polly implements the tts.Provider interface for Amazon Polly.
//
// Speed control rides on SSML prosody, which means the text must be
// XML-escaped before synthesis and every speech-mark offset mapped back
// through the escaping to the caller's original text. Timing comes from a
// separate speech-marks call, so each chunk costs two Polly requests.
package polly

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awspolly "github.com/aws/aws-sdk-go-v2/service/polly"
	pollytypes "github.com/aws/aws-sdk-go-v2/service/polly/types"
	"github.com/aws/smithy-go"

	"github.com/voxweave/voxweave/internal/apperr"
	"github.com/voxweave/voxweave/internal/timing"
	"github.com/voxweave/voxweave/pkg/provider/tts"
)

// lastWordPaddingMS extends the final word when total duration is unknown.
const lastWordPaddingMS = 200

// Credentials is the slice of the credential store this provider reads.
type Credentials interface {
	AWSAccessKeyID() string
	AWSSecretAccessKey() string
	AWSRegion() string
}

// api is the subset of the Polly client the provider calls.
type api interface {
	DescribeVoices(ctx context.Context, in *awspolly.DescribeVoicesInput, opts ...func(*awspolly.Options)) (*awspolly.DescribeVoicesOutput, error)
	SynthesizeSpeech(ctx context.Context, in *awspolly.SynthesizeSpeechInput, opts ...func(*awspolly.Options)) (*awspolly.SynthesizeSpeechOutput, error)
}

// Provider talks to Amazon Polly through the AWS SDK.
type Provider struct {
	creds Credentials

	mu          sync.Mutex
	client      api
	clientCreds credsSnapshot
	injected    bool
	voicesCache []tts.Voice
}

// credsSnapshot records the credential values a cached client was built
// from, so a settings update invalidates it.
type credsSnapshot struct {
	keyID, secret, region string
}

// Option configures a Provider.
type Option func(*Provider)

// WithClient injects a Polly client (for testing). Injected clients are
// never rebuilt.
func WithClient(c api) Option {
	return func(p *Provider) {
		p.client = c
		p.injected = true
	}
}

// New creates an Amazon Polly provider reading credentials from creds.
func New(creds Credentials, opts ...Option) *Provider {
	p := &Provider{creds: creds}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Provider) Name() tts.Name { return tts.NameAmazon }

func (p *Provider) DisplayName() string { return "Amazon Polly" }

// IsConfigured reports whether both AWS key halves are present.
func (p *Provider) IsConfigured() bool {
	return p.creds.AWSAccessKeyID() != "" && p.creds.AWSSecretAccessKey() != ""
}

func (p *Provider) Capabilities() tts.Capabilities {
	return tts.Capabilities{
		SpeedControl:  true,
		WordTimings:   true,
		MaxChunkChars: 2800,
		MinSpeed:      0.5,
		MaxSpeed:      2.0,
		DefaultSpeed:  1.0,
	}
}

// getClient returns an SDK client built from the current credentials. Keys
// updated through the settings API invalidate the cached client, so the next
// call picks them up.
func (p *Provider) getClient(ctx context.Context) (api, error) {
	now := credsSnapshot{
		keyID:  p.creds.AWSAccessKeyID(),
		secret: p.creds.AWSSecretAccessKey(),
		region: p.creds.AWSRegion(),
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client != nil && (p.injected || p.clientCreds == now) {
		return p.client, nil
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(now.region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(now.keyID, now.secret, ""),
		),
	)
	if err != nil {
		return nil, apperr.Auth("amazon", err.Error())
	}
	p.client = awspolly.NewFromConfig(cfg)
	p.clientCreds = now
	return p.client, nil
}

// ListVoices fetches the full voice catalogue, following pagination. The
// catalogue is cached after the first successful fetch.
func (p *Provider) ListVoices(ctx context.Context) ([]tts.Voice, error) {
	p.mu.Lock()
	cached := p.voicesCache
	p.mu.Unlock()
	if cached != nil {
		return cached, nil
	}

	client, err := p.getClient(ctx)
	if err != nil {
		return nil, err
	}

	var voices []tts.Voice
	var next *string
	for {
		out, err := client.DescribeVoices(ctx, &awspolly.DescribeVoicesInput{NextToken: next})
		if err != nil {
			return nil, mapAWSError(err)
		}
		for _, v := range out.Voices {
			voices = append(voices, tts.Voice{
				ID:       string(v.Id),
				Name:     aws.ToString(v.Name),
				Language: string(v.LanguageCode),
				Gender:   strings.ToLower(string(v.Gender)),
			})
		}
		if out.NextToken == nil {
			break
		}
		next = out.NextToken
	}

	p.mu.Lock()
	p.voicesCache = voices
	p.mu.Unlock()
	return voices, nil
}

// Synthesize renders one chunk as MP3 with word timing from speech marks.
func (p *Provider) Synthesize(ctx context.Context, text, voiceID string, speed float64) (*tts.SynthesisResult, error) {
	speed = p.Capabilities().ClampSpeed(speed)

	client, err := p.getClient(ctx)
	if err != nil {
		return nil, err
	}

	ssml, prefixLen, offsetMap := buildSSML(text, speed)

	marksOut, err := client.SynthesizeSpeech(ctx, &awspolly.SynthesizeSpeechInput{
		Text:            aws.String(ssml),
		TextType:        pollytypes.TextTypeSsml,
		OutputFormat:    pollytypes.OutputFormatJson,
		SpeechMarkTypes: []pollytypes.SpeechMarkType{pollytypes.SpeechMarkTypeWord},
		VoiceId:         pollytypes.VoiceId(voiceID),
	})
	if err != nil {
		return nil, mapAWSError(err)
	}
	marksData, err := io.ReadAll(marksOut.AudioStream)
	_ = marksOut.AudioStream.Close()
	if err != nil {
		return nil, apperr.API("amazon", err.Error())
	}

	audioOut, err := client.SynthesizeSpeech(ctx, &awspolly.SynthesizeSpeechInput{
		Text:         aws.String(ssml),
		TextType:     pollytypes.TextTypeSsml,
		OutputFormat: pollytypes.OutputFormatMp3,
		VoiceId:      pollytypes.VoiceId(voiceID),
	})
	if err != nil {
		return nil, mapAWSError(err)
	}
	audio, err := io.ReadAll(audioOut.AudioStream)
	_ = audioOut.AudioStream.Close()
	if err != nil {
		return nil, apperr.API("amazon", err.Error())
	}
	if len(audio) == 0 {
		return nil, apperr.API("amazon", "empty audio stream")
	}

	words := parseSpeechMarks(marksData, prefixLen, offsetMap)

	return &tts.SynthesisResult{
		AudioBytes:  audio,
		WordTimings: words,
	}, nil
}

// speechMark is one line of Polly's newline-delimited JSON marks output.
// Offsets are bytes into the SSML input.
type speechMark struct {
	Time  int64  `json:"time"`
	Type  string `json:"type"`
	Start int    `json:"start"`
	End   int    `json:"end"`
	Value string `json:"value"`
}

// parseSpeechMarks converts the marks stream into word timings with offsets
// mapped back into the caller's text. Each word ends where the next begins;
// the final word gets a fixed padding since Polly reports no total length.
func parseSpeechMarks(data []byte, prefixLen int, offsetMap []int) []timing.WordTiming {
	var marks []speechMark
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var m speechMark
		if err := json.Unmarshal(line, &m); err != nil || m.Type != "word" {
			continue
		}
		marks = append(marks, m)
	}

	var words []timing.WordTiming
	for i, m := range marks {
		endMS := m.Time + lastWordPaddingMS
		if i+1 < len(marks) {
			endMS = marks[i+1].Time
		}
		start, end := mapOffsets(m.Start-prefixLen, m.End-prefixLen, offsetMap)
		words = append(words, timing.WordTiming{
			Word:      m.Value,
			StartMS:   m.Time,
			EndMS:     endMS,
			StartChar: start,
			EndChar:   end,
		})
	}
	return words
}

// mapOffsets translates a [start,end) byte range in the escaped text back to
// rune offsets in the original text.
func mapOffsets(start, end int, offsetMap []int) (int, int) {
	if len(offsetMap) == 0 {
		return 0, 0
	}
	clamp := func(i int) int {
		if i < 0 {
			return 0
		}
		if i >= len(offsetMap) {
			return len(offsetMap) - 1
		}
		return i
	}
	origStart := offsetMap[clamp(start)]
	origEnd := offsetMap[clamp(end-1)] + 1
	return origStart, origEnd
}

// buildSSML wraps escaped text in a prosody rate element. It returns the
// SSML, the byte length of the markup before the text, and a map from each
// escaped-text byte to the original rune index.
func buildSSML(text string, speed float64) (string, int, []int) {
	prefix := fmt.Sprintf(`<speak><prosody rate="%d%%">`, int(speed*100))

	var b strings.Builder
	var offsetMap []int
	runeIdx := 0
	for _, r := range text {
		var esc string
		switch r {
		case '&':
			esc = "&amp;"
		case '<':
			esc = "&lt;"
		case '>':
			esc = "&gt;"
		case '\'':
			esc = "&apos;"
		case '"':
			esc = "&quot;"
		default:
			esc = string(r)
		}
		b.WriteString(esc)
		for range len(esc) {
			offsetMap = append(offsetMap, runeIdx)
		}
		runeIdx++
	}

	return prefix + b.String() + "</prosody></speak>", len(prefix), offsetMap
}

// mapAWSError translates SDK failures into the provider error taxonomy.
func mapAWSError(err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "UnrecognizedClientException", "InvalidClientTokenId", "SignatureDoesNotMatch", "AccessDeniedException":
			return apperr.Auth("amazon", apiErr.ErrorMessage())
		case "ThrottlingException", "TooManyRequestsException":
			return apperr.RateLimit("amazon")
		default:
			return apperr.API("amazon", apiErr.ErrorMessage())
		}
	}
	return apperr.API("amazon", err.Error())
}

var _ tts.Provider = (*Provider)(nil)
