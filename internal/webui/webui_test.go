package webui

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func get(t *testing.T, path string) (int, string) {
	t.Helper()
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	body, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)
	return rec.Code, string(body)
}

func TestHandler_ServesIndex(t *testing.T) {
	code, body := get(t, "/")
	require.Equal(t, http.StatusOK, code)
	require.Contains(t, body, "<title>Valerie</title>")
	require.Contains(t, body, "/assets/app.js")
}

func TestHandler_ServesAssets(t *testing.T) {
	code, body := get(t, "/assets/app.js")
	require.Equal(t, http.StatusOK, code)
	require.Contains(t, body, "/api/chat")

	code, _ = get(t, "/assets/style.css")
	require.Equal(t, http.StatusOK, code)
}
