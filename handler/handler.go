package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"valerie/internal/domain"
	"valerie/internal/usecase"
)

const (
	ChatPath            = "/api/chat"
	correlationIDHeader = "X-Correlation-Id"

	msgGenerateFailed   = "Failed to generate audio"
	msgInvalidRequest   = "Invalid request body"
	msgMethodNotAllowed = "Method not allowed"

	// maxBodyBytes matches the 4mb default body limit of the Next.js API route.
	maxBodyBytes = 4 << 20
)

type ChatUseCase interface {
	Reply(ctx context.Context, in usecase.ChatInput) (usecase.ChatOutput, error)
}

type chatRequest struct {
	Messages *[]domain.ChatMessage `json:"messages"`
}

type chatResponse struct {
	Result   domain.ChatMessage `json:"result"`
	AudioURL string             `json:"audioUrl"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Handler serves the chat endpoint over net/http and API Gateway proxy events.
type Handler struct {
	uc       ChatUseCase
	ui       http.Handler
	timeout  time.Duration
	requests metric.Int64Counter
}

type Option func(*Handler)

// WithUI serves the browser client at the site root.
func WithUI(ui http.Handler) Option {
	return func(h *Handler) { h.ui = ui }
}

// WithUpstreamTimeout bounds each chat request. Zero leaves requests unbounded.
func WithUpstreamTimeout(d time.Duration) Option {
	return func(h *Handler) { h.timeout = d }
}

func WithMeter(m metric.Meter) Option {
	return func(h *Handler) {
		if m == nil {
			return
		}
		if c, err := m.Int64Counter("valerie.chat.requests",
			metric.WithDescription("Chat requests by response status")); err == nil {
			h.requests = c
		}
	}
}

func NewHandler(uc ChatUseCase, opts ...Option) (*Handler, error) {
	if uc == nil {
		return nil, errors.New("handler: chat use case must not be nil")
	}
	requests, _ := noop.NewMeterProvider().Meter("valerie/handler").Int64Counter("valerie.chat.requests")
	h := &Handler{uc: uc, requests: requests}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Routes returns the HTTP routing table for the standalone server.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(ChatPath, h.serveChat)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = io.WriteString(w, "ok")
	})
	if h.ui != nil {
		mux.Handle("GET /{$}", h.ui)
		mux.Handle("GET /assets/", h.ui)
	}
	return mux
}

func (h *Handler) serveChat(w http.ResponseWriter, r *http.Request) {
	corrID := correlationID(r.Header.Get(correlationIDHeader))
	w.Header().Set(correlationIDHeader, corrID)

	var status int
	var payload any
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		status, payload = http.StatusMethodNotAllowed, errorResponse{Error: msgMethodNotAllowed}
	} else {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			slog.Warn("chat request body unreadable", "correlation_id", corrID, "err", err)
			status, payload = http.StatusBadRequest, errorResponse{Error: msgInvalidRequest}
		} else {
			status, payload = h.chat(r.Context(), body, corrID)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("write chat response", "correlation_id", corrID, "err", err)
	}
}

// Handle adapts API Gateway proxy events to the chat endpoint for Lambda.
func (h *Handler) Handle(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	corrID := correlationID(headerValue(event.Headers, correlationIDHeader))

	var status int
	var payload any
	if !strings.EqualFold(event.HTTPMethod, http.MethodPost) {
		status, payload = http.StatusMethodNotAllowed, errorResponse{Error: msgMethodNotAllowed}
	} else {
		status, payload = h.chat(ctx, []byte(event.Body), corrID)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return events.APIGatewayProxyResponse{}, err
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers: map[string]string{
			"Content-Type":      "application/json",
			correlationIDHeader: corrID,
		},
		Body: string(body),
	}, nil
}

// chat decodes and answers one request. Bodies over maxBodyBytes are rejected
// the same way on both the HTTP and the Lambda path.
func (h *Handler) chat(ctx context.Context, body []byte, corrID string) (int, any) {
	if len(body) > maxBodyBytes {
		slog.Warn("chat request body too large", "correlation_id", corrID, "bytes", len(body))
		return h.finish(ctx, http.StatusBadRequest, errorResponse{Error: msgInvalidRequest})
	}

	var req chatRequest
	if err := json.Unmarshal(body, &req); err != nil || req.Messages == nil {
		slog.Warn("invalid chat request", "correlation_id", corrID, "err", err)
		return h.finish(ctx, http.StatusBadRequest, errorResponse{Error: msgInvalidRequest})
	}

	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	start := time.Now()
	out, err := h.uc.Reply(ctx, usecase.ChatInput{Messages: *req.Messages})
	if err != nil {
		status := statusForError(err)
		attrs := []any{"correlation_id", corrID, "status", status, "err", err}
		var uerr *usecase.Error
		if errors.As(err, &uerr) {
			attrs = append(attrs, "code", string(uerr.Code), "reason", uerr.Reason)
		}
		slog.Error("chat request failed", attrs...)
		if status == http.StatusBadRequest {
			return h.finish(ctx, status, errorResponse{Error: msgInvalidRequest})
		}
		return h.finish(ctx, status, errorResponse{Error: msgGenerateFailed})
	}

	slog.Info("chat request completed",
		"correlation_id", corrID,
		"messages", len(*req.Messages),
		"reply_chars", len(out.Result.Content),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return h.finish(ctx, http.StatusOK, chatResponse{Result: out.Result, AudioURL: out.AudioURL})
}

func (h *Handler) finish(ctx context.Context, status int, payload any) (int, any) {
	h.requests.Add(ctx, 1, metric.WithAttributes(attribute.Int("http.status_code", status)))
	return status, payload
}

// statusForError collapses every pipeline failure into a 500; only malformed
// conversations are reported as client errors.
func statusForError(err error) int {
	var uerr *usecase.Error
	if errors.As(err, &uerr) && uerr.Code == usecase.ErrorInvalidInput {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func correlationID(provided string) string {
	if id := strings.TrimSpace(provided); id != "" {
		return id
	}
	return uuid.NewString()
}

func headerValue(headers map[string]string, key string) string {
	for k, v := range headers {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}
