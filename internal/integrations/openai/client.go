package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"

	goopenai "github.com/sashabaranov/go-openai"

	"valerie/internal/domain"
)

const DefaultModel = goopenai.GPT3Dot5Turbo

// zeroTemperature pins sampling to greedy decoding. go-openai drops a literal
// 0 because of omitempty, so the smallest non-zero float32 is sent instead.
const zeroTemperature = math.SmallestNonzeroFloat32

// tokenPayload is the expected JSON shape stored in SSM for the API token.
type tokenPayload struct {
	Token string `json:"token"`
}

type Getter interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

type chatAPI interface {
	CreateChatCompletion(ctx context.Context, req goopenai.ChatCompletionRequest) (goopenai.ChatCompletionResponse, error)
}

// Client is a focused chat-completions client with a fixed model and
// deterministic sampling.
type Client struct {
	api   chatAPI
	model string
}

type options struct {
	baseURL    string
	httpClient *http.Client
	model      string
}

type Option func(*options)

func WithBaseURL(baseURL string) Option {
	return func(o *options) {
		o.baseURL = strings.TrimSpace(baseURL)
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(o *options) {
		o.httpClient = httpClient
	}
}

func WithModel(model string) Option {
	return func(o *options) {
		o.model = strings.TrimSpace(model)
	}
}

// NewClient creates a Client authenticated with apiKey. The key is resolved
// once at process start; see ResolveAPIKey.
func NewClient(apiKey string, opts ...Option) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("openai: API key must not be empty")
	}
	o := options{model: DefaultModel}
	for _, opt := range opts {
		opt(&o)
	}
	if o.model == "" {
		return nil, errors.New("openai: model must not be empty")
	}

	cfg := goopenai.DefaultConfig(apiKey)
	if o.baseURL != "" {
		cfg.BaseURL = strings.TrimRight(o.baseURL, "/")
	}
	if o.httpClient != nil {
		cfg.HTTPClient = o.httpClient
	}
	return &Client{
		api:   goopenai.NewClientWithConfig(cfg),
		model: o.model,
	}, nil
}

func (c *Client) Model() string { return c.model }

// Chat sends messages as-is and returns the first choice's message.
func (c *Client) Chat(ctx context.Context, messages []domain.ChatMessage) (domain.ChatMessage, error) {
	req := goopenai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    make([]goopenai.ChatCompletionMessage, 0, len(messages)),
		Temperature: zeroTemperature,
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, goopenai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		return domain.ChatMessage{}, fmt.Errorf("openai: request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return domain.ChatMessage{}, errors.New("openai: no choices in response")
	}
	msg := resp.Choices[0].Message
	role := msg.Role
	if role == "" {
		role = domain.RoleAssistant
	}
	return domain.ChatMessage{Role: role, Content: msg.Content}, nil
}

// HTTPStatusCode extracts the upstream HTTP status from a Chat error, if any.
func HTTPStatusCode(err error) (int, bool) {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0 {
		return apiErr.HTTPStatusCode, true
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		return reqErr.HTTPStatusCode, true
	}
	return 0, false
}

// ResolveAPIKey prefers an explicit key and falls back to the JSON token
// stored under <paramPrefix>/open-ai-token in Parameter Store.
func ResolveAPIKey(ctx context.Context, explicit string, getter Getter, paramPrefix string) (string, error) {
	if key := strings.TrimSpace(explicit); key != "" {
		return key, nil
	}
	paramPrefix = strings.TrimRight(strings.TrimSpace(paramPrefix), "/")
	if paramPrefix == "" {
		return "", errors.New("openai: no API key and no parameter prefix configured")
	}
	return fetchAPIKeyFromParamStore(ctx, getter, paramPrefix+"/open-ai-token")
}

func fetchAPIKeyFromParamStore(ctx context.Context, getter Getter, name string) (string, error) {
	if getter == nil {
		return "", errors.New("openai: paramstore getter is nil")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("openai: token parameter name is empty")
	}

	raw, err := getter.GetParameter(ctx, name)
	if err != nil {
		return "", fmt.Errorf("openai: fetch token from paramstore: %w", err)
	}
	var tp tokenPayload
	if err := json.Unmarshal([]byte(raw), &tp); err != nil {
		return "", fmt.Errorf("openai: unmarshal paramstore token value as JSON: %w", err)
	}
	if tp.Token == "" {
		return "", fmt.Errorf("openai: API token is empty")
	}
	return tp.Token, nil
}
