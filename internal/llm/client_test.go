package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daejaeonboy/lifesync-ai-sub000/internal/model"
)

func completionServer(t *testing.T, status int, payload string, seen *chatRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		if seen != nil {
			b, _ := io.ReadAll(r.Body)
			require.NoError(t, json.Unmarshal(b, seen))
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(payload))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestClientGenerate(t *testing.T) {
	var seen chatRequest
	srv := completionServer(t, http.StatusOK,
		`{"model":"gpt-test","choices":[{"message":{"role":"assistant","content":"  안녕하세요  "}}],"usage":{"total_tokens":42}}`,
		&seen)

	c := NewClient(ClientConfig{BaseURL: srv.URL, APIKey: "sk-test", Model: "gpt-test", Temperature: 0.7})
	resp, err := c.Generate(context.Background(), Request{Prompt: "hi", JSONMode: true, MaxTokens: 64})
	require.NoError(t, err)

	assert.Equal(t, "안녕하세요", resp.Text)
	assert.Equal(t, 42, resp.TokensUsed)
	assert.False(t, resp.Estimated)

	assert.Equal(t, "gpt-test", seen.Model)
	require.Len(t, seen.Messages, 1)
	assert.Equal(t, Message{Role: "user", Content: "hi"}, seen.Messages[0])
	assert.Equal(t, 64, seen.MaxTokens)
	require.NotNil(t, seen.Temperature)
	assert.InDelta(t, 0.7, *seen.Temperature, 1e-9)
	require.NotNil(t, seen.ResponseFormat)
	assert.Equal(t, "json_object", seen.ResponseFormat.Type)
}

func TestClientEstimatesMissingUsage(t *testing.T) {
	srv := completionServer(t, http.StatusOK, `{"choices":[{"message":{"content":"abcdefgh"}}]}`, nil)

	c := NewClient(ClientConfig{BaseURL: srv.URL, APIKey: "sk-test"})
	resp, err := c.Generate(context.Background(), Request{Prompt: "abcd"})
	require.NoError(t, err)
	assert.True(t, resp.Estimated)
	assert.Equal(t, EstimateTokens("abcd", "abcdefgh"), resp.TokensUsed)
}

func TestClientErrors(t *testing.T) {
	t.Run("http error", func(t *testing.T) {
		srv := completionServer(t, http.StatusTooManyRequests, `{"error":"slow down"}`, nil)
		_, err := NewClient(ClientConfig{BaseURL: srv.URL, APIKey: "sk-test"}).
			Generate(context.Background(), Request{Prompt: "x"})
		var he *HTTPError
		require.ErrorAs(t, err, &he)
		assert.Equal(t, http.StatusTooManyRequests, he.StatusCode)
	})
	t.Run("empty text", func(t *testing.T) {
		srv := completionServer(t, http.StatusOK, `{"choices":[{"message":{"content":"   "}}]}`, nil)
		_, err := NewClient(ClientConfig{BaseURL: srv.URL, APIKey: "sk-test"}).
			Generate(context.Background(), Request{Prompt: "x"})
		assert.ErrorIs(t, err, ErrEmptyResponse)
	})
	t.Run("malformed body", func(t *testing.T) {
		srv := completionServer(t, http.StatusOK, `{"choices":[`, nil)
		_, err := NewClient(ClientConfig{BaseURL: srv.URL, APIKey: "sk-test"}).
			Generate(context.Background(), Request{Prompt: "x"})
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrEmptyResponse)
	})
	t.Run("no messages", func(t *testing.T) {
		_, err := NewClient(ClientConfig{APIKey: "sk-test"}).Generate(context.Background(), Request{})
		assert.Error(t, err)
	})
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens())
	assert.Equal(t, 1, EstimateTokens("abc"))
	assert.Equal(t, 2, EstimateTokens("abcde"))
	assert.Equal(t, 3, EstimateTokens("안녕하"))
}

type stubGenerator struct{ cfg ClientConfig }

func (s *stubGenerator) Generate(_ context.Context, req Request) (Response, error) {
	return Response{Text: s.cfg.BaseURL + "|" + req.Model}, nil
}

func TestRouterResolve(t *testing.T) {
	settings := model.DefaultSettings()
	r := NewRouter(func() model.Settings { return settings }, ClientConfig{Model: "default-model"})
	r.factory = func(cfg ClientConfig) Generator { return &stubGenerator{cfg: cfg} }

	_, err := r.Generate(context.Background(), Request{Prompt: "x"})
	assert.True(t, errors.Is(err, ErrNoConnection))

	settings.APIConnections = []model.APIConnection{
		{ID: "a", Provider: "gemini", Model: "gemini-2.0-flash", APIKey: "k1"},
		{ID: "b", Provider: "openai", APIKey: "k2", IsActive: true},
	}
	cfg, err := r.Resolve()
	require.NoError(t, err)
	assert.Equal(t, "k2", cfg.APIKey)
	assert.Equal(t, defaultBaseURL, cfg.BaseURL)
	assert.Equal(t, "default-model", cfg.Model)

	settings.ActiveConnectionID = "a"
	resp, err := r.Generate(context.Background(), Request{Prompt: "x"})
	require.NoError(t, err)
	assert.Equal(t, providerBaseURLs["gemini"]+"|gemini-2.0-flash", resp.Text)

	// Same endpoint reuses the cached client.
	_, _ = r.Generate(context.Background(), Request{Prompt: "y"})
	assert.Len(t, r.clients, 1)
}

func TestRouterFallsBackToDefaults(t *testing.T) {
	r := NewRouter(model.DefaultSettings, ClientConfig{APIKey: "env-key", BaseURL: "http://local"})
	cfg, err := r.Resolve()
	require.NoError(t, err)
	assert.Equal(t, "env-key", cfg.APIKey)
	assert.Equal(t, "http://local", cfg.BaseURL)
}
