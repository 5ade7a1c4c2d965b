package usecase

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"testing"

	goopenai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/require"

	"valerie/internal/domain"
)

type mockLoader struct {
	text  string
	err   error
	calls int
}

func (m *mockLoader) LoadText() (string, error) {
	m.calls++
	return m.text, m.err
}

type mockLLM struct {
	reply    domain.ChatMessage
	err      error
	captured []domain.ChatMessage
	calls    int
}

func (m *mockLLM) Chat(_ context.Context, msgs []domain.ChatMessage) (domain.ChatMessage, error) {
	m.calls++
	m.captured = msgs
	return m.reply, m.err
}

type mockSpeech struct {
	audio []byte
	err   error
	ssml  string
	calls int
}

func (m *mockSpeech) SynthesizeSSML(_ context.Context, ssml string) ([]byte, error) {
	m.calls++
	m.ssml = ssml
	return m.audio, m.err
}

func assistant(content string) domain.ChatMessage {
	return domain.ChatMessage{Role: domain.RoleAssistant, Content: content}
}

func newTestService(t *testing.T, l ContextLoader, llm LLMClient, s Synthesizer) *ChatService {
	t.Helper()
	svc, err := NewChatService(l, llm, s)
	require.NoError(t, err)
	return svc
}

func expectChatError(t *testing.T, err error, code ErrorCode, reason string) {
	t.Helper()
	var usecaseErr *Error
	require.ErrorAs(t, err, &usecaseErr)
	require.Equal(t, code, usecaseErr.Code)
	require.Equal(t, reason, usecaseErr.Reason)
}

func TestNewChatService_ValidatesDependencies(t *testing.T) {
	_, err := NewChatService(nil, &mockLLM{}, &mockSpeech{})
	require.Error(t, err)

	_, err = NewChatService(&mockLoader{}, nil, &mockSpeech{})
	require.Error(t, err)

	_, err = NewChatService(&mockLoader{}, &mockLLM{}, nil)
	require.Error(t, err)
}

func TestReply_HappyPath(t *testing.T) {
	loader := &mockLoader{text: "Pods deploy in seconds."}
	llm := &mockLLM{reply: assistant("Hi! SPRNGPOD rocks.")}
	speech := &mockSpeech{audio: []byte("mp3")}
	svc := newTestService(t, loader, llm, speech)

	history := []domain.ChatMessage{
		assistant("Hi there ! Welcome back!"),
		{Role: domain.RoleUser, Content: "Hello"},
	}
	out, err := svc.Reply(context.Background(), ChatInput{Messages: history})
	require.NoError(t, err)

	require.Equal(t, assistant("Hi! SPRNGPOD rocks."), out.Result)
	require.Equal(t, "data:audio/mp3;base64,"+base64.StdEncoding.EncodeToString([]byte("mp3")), out.AudioURL)
	require.Equal(t, "<speak>Hi! SPRINGPOD rocks.</speak>", speech.ssml)

	require.Len(t, llm.captured, 3)
	require.Equal(t, domain.RoleSystem, llm.captured[0].Role)
	require.Contains(t, llm.captured[0].Content, "Pods deploy in seconds.")
	require.Equal(t, history, llm.captured[1:])
}

func TestReply_DisplayTextKeepsBrandSpelling(t *testing.T) {
	llm := &mockLLM{reply: assistant("SPRNGPOD and SPRNGPOD again")}
	speech := &mockSpeech{audio: []byte{0x1}}
	svc := newTestService(t, &mockLoader{}, llm, speech)

	out, err := svc.Reply(context.Background(), ChatInput{Messages: []domain.ChatMessage{{Role: "user", Content: "hi"}}})
	require.NoError(t, err)
	require.Equal(t, "SPRNGPOD and SPRNGPOD again", out.Result.Content)
	require.NotContains(t, speech.ssml, "SPRNGPOD")
	require.Equal(t, 2, strings.Count(speech.ssml, "SPRINGPOD"))
}

func TestReply_ReloadsContextEveryRequest(t *testing.T) {
	loader := &mockLoader{text: "site"}
	svc := newTestService(t, loader, &mockLLM{reply: assistant("ok")}, &mockSpeech{})

	for i := 0; i < 3; i++ {
		_, err := svc.Reply(context.Background(), ChatInput{})
		require.NoError(t, err)
	}
	require.Equal(t, 3, loader.calls)
}

func TestReply_InvalidRole(t *testing.T) {
	llm := &mockLLM{}
	svc := newTestService(t, &mockLoader{}, llm, &mockSpeech{})

	_, err := svc.Reply(context.Background(), ChatInput{Messages: []domain.ChatMessage{{Role: "tool", Content: "x"}}})
	expectChatError(t, err, ErrorInvalidInput, "invalid_role")
	require.Zero(t, llm.calls)
}

func TestReply_ContextError(t *testing.T) {
	llm := &mockLLM{}
	svc := newTestService(t, &mockLoader{err: errors.New("no such file")}, llm, &mockSpeech{})

	_, err := svc.Reply(context.Background(), ChatInput{})
	expectChatError(t, err, ErrorContext, "context_read_error")
	require.ErrorContains(t, err, "no such file")
	require.Zero(t, llm.calls)
}

func TestReply_OpenAIErrors(t *testing.T) {
	speech := &mockSpeech{}
	svc := newTestService(t, &mockLoader{}, &mockLLM{err: errors.New("connection reset")}, speech)
	_, err := svc.Reply(context.Background(), ChatInput{})
	expectChatError(t, err, ErrorUpstream, "openai_error")
	require.Zero(t, speech.calls)

	rateLimited := &goopenai.APIError{HTTPStatusCode: 429, Message: "slow down"}
	svc = newTestService(t, &mockLoader{}, &mockLLM{err: rateLimited}, speech)
	_, err = svc.Reply(context.Background(), ChatInput{})
	expectChatError(t, err, ErrorRateLimited, "openai_rate_limited")
}

func TestReply_PollyError(t *testing.T) {
	svc := newTestService(t, &mockLoader{}, &mockLLM{reply: assistant("ok")}, &mockSpeech{err: errors.New("throttled")})
	_, err := svc.Reply(context.Background(), ChatInput{})
	expectChatError(t, err, ErrorUpstream, "polly_error")
}

func TestBuildSystemPrompt_IncludesSiteText(t *testing.T) {
	content := buildSystemPrompt("Backends for pods.")
	require.Contains(t, content, "You are Valerie")
	require.Contains(t, content, `THE SPELLING OF SPRNGPOD IS "SPRNGPOD"`)
	require.Contains(t, content, "Use this data to teach them about SPRNGPOD Backend: Backends for pods.")
}

func TestBuildPromptMessages_DoesNotMutateConversation(t *testing.T) {
	conv := make([]domain.ChatMessage, 1, 8)
	conv[0] = domain.ChatMessage{Role: "user", Content: "hi"}

	msgs := buildPromptMessages("site", conv)
	require.Len(t, msgs, 2)
	require.Equal(t, "hi", conv[0].Content)
	require.Equal(t, domain.RoleSystem, msgs[0].Role)
}
