package feedback

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/AzielCF/az-crm/agent/domain"
	"github.com/AzielCF/az-crm/core/config"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleLog() *domain.DispatchLog {
	return &domain.DispatchLog{
		ID:             "log-1",
		TenantID:       "t1",
		SessionID:      "s1",
		ConversationID: "c1",
		Outcome:        domain.OutcomeReplied,
		InputText:      "hola",
		ReplyText:      "¡Hola! ¿En qué te ayudo?",
		Provider:       domain.ProviderOpenAI,
		Model:          "gpt-4o-mini",
		InputTokens:    12,
		OutputTokens:   8,
		LatencyMs:      420,
		CreatedAt:      time.Now().UTC(),
	}
}

func TestHTTPSink_PostsOutcomeWithToken(t *testing.T) {
	var got outcomeEnvelope
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	sink := NewHTTPSink(srv.URL, "secret-token")
	require.NoError(t, sink.Record(context.Background(), sampleLog()))

	assert.Equal(t, "Bearer secret-token", auth)
	assert.Equal(t, eventDispatchOutcome, got.Event)
	require.NotNil(t, got.Data)
	assert.Equal(t, domain.OutcomeReplied, got.Data.Outcome)
	assert.Equal(t, "c1", got.Data.ConversationID)
}

func TestHTTPSink_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sink := NewHTTPSink(srv.URL, "")
	sink.backoff = time.Millisecond
	require.NoError(t, sink.Record(context.Background(), sampleLog()))
	assert.Equal(t, int32(2), calls.Load())
}

func TestHTTPSink_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	sink := NewHTTPSink(srv.URL, "")
	sink.backoff = time.Millisecond
	err := sink.Record(context.Background(), sampleLog())
	assert.ErrorContains(t, err, "status 400")
	assert.Equal(t, int32(1), calls.Load())
}

func TestSQLSink_InsertsOncePerLog(t *testing.T) {
	dsn := "file:" + filepath.Join(t.TempDir(), "feedback.db")
	sink, err := OpenSQLSink("sqlite", dsn)
	require.NoError(t, err)
	defer sink.Close()

	ctx := context.Background()
	log := sampleLog()
	require.NoError(t, sink.Record(ctx, log))
	require.NoError(t, sink.Record(ctx, log))

	skipped := &domain.DispatchLog{TenantID: "t1", SessionID: "s1", ConversationID: "c1", Outcome: domain.OutcomeRateLimited}
	require.NoError(t, sink.Record(ctx, skipped))

	var total int
	require.NoError(t, sink.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM feedback_outcomes").Scan(&total))
	assert.Equal(t, 2, total)

	var outcome string
	var tokens int
	require.NoError(t, sink.db.QueryRowContext(ctx, "SELECT outcome, input_tokens FROM feedback_outcomes WHERE id = ?", "log-1").Scan(&outcome, &tokens))
	assert.Equal(t, "replied", outcome)
	assert.Equal(t, 12, tokens)
}

func TestRebindDollar(t *testing.T) {
	assert.Equal(t, "VALUES ($1, $2, $3)", rebindDollar("VALUES (?, ?, ?)"))
}

func TestNew(t *testing.T) {
	sink, err := New(config.FeedbackConfig{})
	require.NoError(t, err)
	assert.IsType(t, Noop{}, sink)

	sink, err = New(config.FeedbackConfig{Driver: "http", URL: "http://localhost:9/outcomes"})
	require.NoError(t, err)
	assert.IsType(t, &HTTPSink{}, sink)

	_, err = New(config.FeedbackConfig{Driver: "http"})
	assert.Error(t, err)
	_, err = New(config.FeedbackConfig{Driver: "kafka"})
	assert.Error(t, err)
}
