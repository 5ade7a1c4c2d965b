package polly

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/polly"
	"github.com/aws/aws-sdk-go-v2/service/polly/types"
)

const (
	DefaultVoice = types.VoiceIdAmy

	// maxAudioBytes caps how much of the audio stream is buffered for one reply.
	maxAudioBytes = 32 << 20
)

// pollyAPI is the minimal Polly interface required by Client.
// *polly.Client from aws-sdk-go-v2 satisfies this interface.
type pollyAPI interface {
	SynthesizeSpeech(ctx context.Context, in *polly.SynthesizeSpeechInput, optFns ...func(*polly.Options)) (*polly.SynthesizeSpeechOutput, error)
}

// Client synthesizes SSML with a fixed voice, the neural engine and mp3 output.
type Client struct {
	api   pollyAPI
	voice types.VoiceId
}

// New creates a Client. An empty voice selects DefaultVoice.
func New(api pollyAPI, voice string) (*Client, error) {
	if api == nil {
		return nil, errors.New("polly: api must not be nil")
	}
	v := types.VoiceId(strings.TrimSpace(voice))
	if v == "" {
		v = DefaultVoice
	}
	return &Client{api: api, voice: v}, nil
}

// SynthesizeSSML returns the mp3 bytes for an SSML document.
func (c *Client) SynthesizeSSML(ctx context.Context, ssml string) ([]byte, error) {
	if c.api == nil {
		return nil, errors.New("polly: client not initialized")
	}
	if strings.TrimSpace(ssml) == "" {
		return nil, errors.New("polly: ssml is required")
	}

	out, err := c.api.SynthesizeSpeech(ctx, &polly.SynthesizeSpeechInput{
		Engine:       types.EngineNeural,
		OutputFormat: types.OutputFormatMp3,
		Text:         aws.String(ssml),
		TextType:     types.TextTypeSsml,
		VoiceId:      c.voice,
	})
	if err != nil {
		return nil, fmt.Errorf("polly: synthesize speech: %w", err)
	}
	if out == nil || out.AudioStream == nil {
		return nil, errors.New("polly: response missing audio stream")
	}
	defer func() { _ = out.AudioStream.Close() }()

	audio, err := io.ReadAll(io.LimitReader(out.AudioStream, maxAudioBytes+1))
	if err != nil {
		return nil, fmt.Errorf("polly: read audio stream: %w", err)
	}
	if len(audio) > maxAudioBytes {
		return nil, fmt.Errorf("polly: audio stream exceeds %d bytes", maxAudioBytes)
	}
	return audio, nil
}
