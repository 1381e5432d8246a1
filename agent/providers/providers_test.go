package providers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/AzielCF/az-crm/agent/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chatRequest() domain.ChatRequest {
	return domain.ChatRequest{
		APIKey:       "test-key",
		SystemPrompt: "Eres un asesor de ventas.",
		History: []domain.ChatTurn{
			{Role: domain.RoleUser, Text: "Hola"},
			{Role: domain.RoleAssistant, Text: "¡Hola! ¿En qué te ayudo?"},
		},
		UserText: "¿Tienen envío?",
		ChatKey:  "t1|c1",
	}
}

func TestOpenAIProvider_Chat(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"))
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"chatcmpl-1","object":"chat.completion","created":1,"model":"gpt-4o-mini",
			"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"Sí, enviamos a todo el país."}}],
			"usage":{"prompt_tokens":1000,"completion_tokens":100,"total_tokens":1100}}`)
	}))
	defer srv.Close()

	p := NewOpenAIProvider(srv.URL + "/")
	resp, err := p.Chat(context.Background(), chatRequest())
	require.NoError(t, err)

	assert.Equal(t, "Sí, enviamos a todo el país.", resp.Text)
	require.NotNil(t, resp.Usage)
	assert.Equal(t, 1000, resp.Usage.InputTokens)
	assert.Equal(t, 100, resp.Usage.OutputTokens)
	assert.Greater(t, resp.Usage.CostUSD, 0.0)

	assert.Equal(t, domain.DefaultOpenAIModel, body["model"])
	messages, _ := body["messages"].([]any)
	assert.Len(t, messages, 4, "system + history + user")
}

func TestOpenAIProvider_RequiresKey(t *testing.T) {
	_, err := NewOpenAIProvider("").Chat(context.Background(), domain.ChatRequest{UserText: "hola"})
	assert.ErrorIs(t, err, domain.ErrNoAPIKey)
}

func TestGeminiProvider_Chat(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "gemini-2.0-flash:generateContent")
		w.Header().Set("Content-Type", "application/json")
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = io.WriteString(w, `{"error":{"code":503,"message":"overloaded","status":"UNAVAILABLE"}}`)
			return
		}
		_, _ = io.WriteString(w, `{"candidates":[{"content":{"role":"model","parts":[{"text":"Sí, "},{"text":"enviamos."}]}}],
			"usageMetadata":{"promptTokenCount":500,"candidatesTokenCount":20,"totalTokenCount":520}}`)
	}))
	defer srv.Close()

	p := NewGeminiProvider(srv.URL)
	p.retryDelay = time.Millisecond
	resp, err := p.Chat(context.Background(), chatRequest())
	require.NoError(t, err)

	assert.Equal(t, "Sí, enviamos.", resp.Text)
	require.NotNil(t, resp.Usage)
	assert.Equal(t, 500, resp.Usage.InputTokens)
	assert.Equal(t, int32(2), calls.Load(), "503 is retried")
}

func TestGeminiProvider_RequiresKey(t *testing.T) {
	_, err := NewGeminiProvider("").Chat(context.Background(), domain.ChatRequest{UserText: "hola"})
	assert.ErrorIs(t, err, domain.ErrNoAPIKey)
}

type stubProvider struct{ text string }

func (s stubProvider) Chat(context.Context, domain.ChatRequest) (domain.ChatResponse, error) {
	return domain.ChatResponse{Text: s.text}, nil
}

func TestRegistry(t *testing.T) {
	r := NewRegistry().Register(domain.ProviderOpenAI, stubProvider{text: "ok"})

	resp, err := r.Generate(context.Background(), domain.ProviderOpenAI, domain.ChatRequest{})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Text)

	_, err = r.Generate(context.Background(), domain.ProviderGemini, domain.ChatRequest{})
	assert.Error(t, err)
}
