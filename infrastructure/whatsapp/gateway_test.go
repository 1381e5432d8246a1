package whatsapp

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	pkgError "github.com/AzielCF/az-crm/pkg/error"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGatewayClient_SendText(t *testing.T) {
	var (
		gotPath string
		gotAuth string
		gotBody sendTextRequest
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":200,"results":{"message_id":"3EB0FF"}}`))
	}))
	defer srv.Close()

	gw := NewGatewayClient(srv.URL+"/", "gw-token", time.Second)
	id, err := gw.SendText(context.Background(), "s1", "5511999998888@s.whatsapp.net", "hola")
	require.NoError(t, err)

	assert.Equal(t, "3EB0FF", id)
	assert.Equal(t, "/api/sessions/s1/messages/text", gotPath)
	assert.Equal(t, "Bearer gw-token", gotAuth)
	assert.Equal(t, sendTextRequest{To: "5511999998888@s.whatsapp.net", Text: "hola"}, gotBody)
}

func TestGatewayClient_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/sessions/offline/messages/text" {
			w.WriteHeader(http.StatusConflict)
			_, _ = w.Write([]byte(`{"message":"session not connected"}`))
			return
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()
	gw := NewGatewayClient(srv.URL, "", time.Second)

	_, err := gw.SendText(context.Background(), "offline", "x@s.whatsapp.net", "hola")
	var gwErr pkgError.GatewayError
	require.ErrorAs(t, err, &gwErr)
	assert.Contains(t, err.Error(), "session not connected")

	// 2xx sin id sigue siendo un envío aceptado
	id, err := gw.SendText(context.Background(), "s1", "x@s.whatsapp.net", "hola")
	require.NoError(t, err)
	assert.Empty(t, id)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = gw.SendText(ctx, "s1", "x@s.whatsapp.net", "hola")
	assert.ErrorIs(t, err, context.Canceled)
}
