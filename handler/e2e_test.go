package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/polly"
	"github.com/stretchr/testify/require"

	"valerie/internal/domain"
	"valerie/internal/integrations/openai"
	pollyclient "valerie/internal/integrations/polly"
	"valerie/internal/scrape"
	"valerie/internal/usecase"
)

type recordingPolly struct {
	ssml string
}

func (p *recordingPolly) SynthesizeSpeech(_ context.Context, in *polly.SynthesizeSpeechInput, _ ...func(*polly.Options)) (*polly.SynthesizeSpeechOutput, error) {
	p.ssml = *in.Text
	return &polly.SynthesizeSpeechOutput{AudioStream: io.NopCloser(strings.NewReader("mp3-audio"))}, nil
}

func TestEndToEnd_HelloScenario(t *testing.T) {
	var sentToOpenAI struct {
		Messages []domain.ChatMessage `json:"messages"`
	}
	openaiSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&sentToOpenAI))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"index":0,"message":{"role":"assistant","content":"Hi! SPRNGPOD rocks."}}]}`))
	}))
	defer openaiSrv.Close()

	docPath := filepath.Join(t.TempDir(), "test.txt")
	require.NoError(t, os.WriteFile(docPath, []byte("<html><body><h1>SPRNGPOD</h1><p>Backend pods.</p></body></html>"), 0o600))

	loader, err := scrape.NewFileLoader(docPath)
	require.NoError(t, err)
	llm, err := openai.NewClient("sk-test", openai.WithBaseURL(openaiSrv.URL+"/v1"))
	require.NoError(t, err)
	fakePolly := &recordingPolly{}
	speech, err := pollyclient.New(fakePolly, "")
	require.NoError(t, err)
	svc, err := usecase.NewChatService(loader, llm, speech)
	require.NoError(t, err)
	h, err := NewHandler(svc)
	require.NoError(t, err)

	srv := httptest.NewServer(h.Routes())
	defer srv.Close()

	resp, err := http.Post(srv.URL+ChatPath, "application/json", strings.NewReader(
		`{"messages":[{"role":"assistant","content":"Hi there ! Welcome back!"},{"role":"user","content":"Hello"}]}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out chatResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Equal(t, domain.ChatMessage{Role: "assistant", Content: "Hi! SPRNGPOD rocks."}, out.Result)
	require.Equal(t, "data:audio/mp3;base64,"+base64.StdEncoding.EncodeToString([]byte("mp3-audio")), out.AudioURL)

	require.Equal(t, "<speak>Hi! SPRINGPOD rocks.</speak>", fakePolly.ssml)

	require.Len(t, sentToOpenAI.Messages, 3)
	require.Equal(t, "system", sentToOpenAI.Messages[0].Role)
	require.Contains(t, sentToOpenAI.Messages[0].Content, "SPRNGPOD Backend pods.")
	require.Equal(t, domain.ChatMessage{Role: "user", Content: "Hello"}, sentToOpenAI.Messages[2])
}

func TestEndToEnd_MissingContextFile(t *testing.T) {
	loader, err := scrape.NewFileLoader(filepath.Join(t.TempDir(), "missing.txt"))
	require.NoError(t, err)
	llm, err := openai.NewClient("sk-test", openai.WithBaseURL("http://127.0.0.1:1/v1"))
	require.NoError(t, err)
	speech, err := pollyclient.New(&recordingPolly{}, "")
	require.NoError(t, err)
	svc, err := usecase.NewChatService(loader, llm, speech)
	require.NoError(t, err)
	h, err := NewHandler(svc)
	require.NoError(t, err)

	resp, err := h.Handle(context.Background(), makeEvent(`{"messages":[{"role":"user","content":"Hello"}]}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	require.JSONEq(t, `{"error":"Failed to generate audio"}`, resp.Body)
}
