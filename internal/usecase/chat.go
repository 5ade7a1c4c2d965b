package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"valerie/internal/domain"
	"valerie/internal/integrations/openai"
)

// ContextLoader returns the static site text embedded in the system prompt.
type ContextLoader interface {
	LoadText() (string, error)
}

type LLMClient interface {
	Chat(ctx context.Context, messages []domain.ChatMessage) (domain.ChatMessage, error)
}

type Synthesizer interface {
	SynthesizeSSML(ctx context.Context, ssml string) ([]byte, error)
}

type ChatService struct {
	loader ContextLoader
	llm    LLMClient
	speech Synthesizer
	tracer trace.Tracer
}

type ChatInput struct {
	Messages []domain.ChatMessage
}

type ChatOutput struct {
	Result   domain.ChatMessage
	AudioURL string
}

type Option func(*ChatService)

func WithTracer(tracer trace.Tracer) Option {
	return func(s *ChatService) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

func NewChatService(loader ContextLoader, llm LLMClient, speech Synthesizer, opts ...Option) (*ChatService, error) {
	if loader == nil {
		return nil, errors.New("usecase: context loader must not be nil")
	}
	if llm == nil {
		return nil, errors.New("usecase: llm client must not be nil")
	}
	if speech == nil {
		return nil, errors.New("usecase: speech synthesizer must not be nil")
	}
	s := &ChatService{
		loader: loader,
		llm:    llm,
		speech: speech,
		tracer: noop.NewTracerProvider().Tracer("valerie/usecase"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Reply answers the newest turn of a conversation with text and speech.
// The returned Result carries the model's text verbatim; only the audio is
// produced from ToSpeechText.
func (s *ChatService) Reply(ctx context.Context, in ChatInput) (ChatOutput, error) {
	for i, m := range in.Messages {
		if !domain.ValidRole(m.Role) {
			return ChatOutput{}, newError(ErrorInvalidInput, "invalid_role", fmt.Errorf("message %d has role %q", i, m.Role))
		}
	}

	ctx, span := s.tracer.Start(ctx, "chat.reply", trace.WithAttributes(
		attribute.Int("chat.messages", len(in.Messages)),
	))
	defer span.End()

	out, err := s.reply(ctx, in)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return ChatOutput{}, err
	}
	return out, nil
}

func (s *ChatService) reply(ctx context.Context, in ChatInput) (ChatOutput, error) {
	siteText, err := s.loadContext(ctx)
	if err != nil {
		return ChatOutput{}, newError(ErrorContext, "context_read_error", err)
	}

	result, err := s.complete(ctx, buildPromptMessages(siteText, in.Messages))
	if err != nil {
		if status, ok := openai.HTTPStatusCode(err); ok && status == http.StatusTooManyRequests {
			return ChatOutput{}, newError(ErrorRateLimited, "openai_rate_limited", err)
		}
		return ChatOutput{}, newError(ErrorUpstream, "openai_error", err)
	}

	audio, err := s.synthesize(ctx, BuildSSML(ToSpeechText(result.Content)))
	if err != nil {
		return ChatOutput{}, newError(ErrorUpstream, "polly_error", err)
	}

	return ChatOutput{
		Result:   result,
		AudioURL: AudioDataURI(audio),
	}, nil
}

func (s *ChatService) loadContext(ctx context.Context) (string, error) {
	_, span := s.tracer.Start(ctx, "chat.load_context")
	defer span.End()

	text, err := s.loader.LoadText()
	if err != nil {
		return "", err
	}
	span.SetAttributes(attribute.Int("context.bytes", len(text)))
	return text, nil
}

func (s *ChatService) complete(ctx context.Context, messages []domain.ChatMessage) (domain.ChatMessage, error) {
	ctx, span := s.tracer.Start(ctx, "chat.completion")
	defer span.End()

	return s.llm.Chat(ctx, messages)
}

func (s *ChatService) synthesize(ctx context.Context, ssml string) ([]byte, error) {
	ctx, span := s.tracer.Start(ctx, "chat.synthesize")
	defer span.End()

	audio, err := s.speech.SynthesizeSSML(ctx, ssml)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("audio.bytes", len(audio)))
	return audio, nil
}
