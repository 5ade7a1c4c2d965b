package chatclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"valerie/internal/domain"
)

const chatPath = "/api/chat"

// Reply is the server's answer to one submitted conversation.
type Reply struct {
	Result   domain.ChatMessage `json:"result"`
	AudioURL string             `json:"audioUrl"`
}

type Transport interface {
	Send(ctx context.Context, messages []domain.ChatMessage) (Reply, error)
}

// StatusError is returned for non-2xx chat responses.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("chatclient: unexpected status %d", e.StatusCode)
	}
	return fmt.Sprintf("chatclient: unexpected status %d: %s", e.StatusCode, e.Message)
}

type chatRequest struct {
	Messages []domain.ChatMessage `json:"messages"`
}

type errorBody struct {
	Error string `json:"error"`
}

// HTTPTransport posts conversations to a Valerie server. It sets no timeout
// of its own; cancel ctx to give up on a request.
type HTTPTransport struct {
	baseURL    string
	httpClient *http.Client
}

func NewHTTPTransport(baseURL string, httpClient *http.Client) (*HTTPTransport, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("chatclient: base URL must not be empty")
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &HTTPTransport{baseURL: baseURL, httpClient: httpClient}, nil
}

func (t *HTTPTransport) Send(ctx context.Context, messages []domain.ChatMessage) (Reply, error) {
	if messages == nil {
		messages = []domain.ChatMessage{}
	}
	body, err := json.Marshal(chatRequest{Messages: messages})
	if err != nil {
		return Reply{}, fmt.Errorf("chatclient: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+chatPath, bytes.NewReader(body))
	if err != nil {
		return Reply{}, fmt.Errorf("chatclient: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := t.httpClient.Do(req)
	if err != nil {
		return Reply{}, fmt.Errorf("chatclient: request failed: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		var eb errorBody
		_ = json.NewDecoder(io.LimitReader(res.Body, 4096)).Decode(&eb)
		return Reply{}, &StatusError{StatusCode: res.StatusCode, Message: eb.Error}
	}

	var reply Reply
	if err := json.NewDecoder(res.Body).Decode(&reply); err != nil {
		return Reply{}, fmt.Errorf("chatclient: decode response: %w", err)
	}
	return reply, nil
}
