package whatsapp

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	pkgError "github.com/AzielCF/az-crm/pkg/error"
	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"
	"github.com/valyala/fasthttp"
)

// GatewayClient envía mensajes salientes por la API HTTP del proveedor de WhatsApp.
type GatewayClient struct {
	baseURL string
	token   string
	timeout time.Duration
	client  *fasthttp.Client
}

func NewGatewayClient(baseURL, token string, timeout time.Duration) *GatewayClient {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &GatewayClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		timeout: timeout,
		client: &fasthttp.Client{
			Name:                "az-crm",
			MaxConnsPerHost:     64,
			ReadTimeout:         timeout,
			WriteTimeout:        timeout,
			MaxIdleConnDuration: time.Minute,
		},
	}
}

type sendTextRequest struct {
	To   string `json:"to"`
	Text string `json:"text"`
}

type sendTextResponse struct {
	ID        string `json:"id"`
	MessageID string `json:"message_id"`
	Results   struct {
		MessageID string `json:"message_id"`
	} `json:"results"`
	Message string `json:"message"`
}

// SendText devuelve el id del mensaje asignado por el proveedor.
func (g *GatewayClient) SendText(ctx context.Context, sessionID, to, text string) (string, error) {
	payload, err := json.Marshal(sendTextRequest{To: to, Text: text})
	if err != nil {
		return "", err
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(fmt.Sprintf("%s/api/sessions/%s/messages/text", g.baseURL, url.PathEscape(sessionID)))
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	if g.token != "" {
		req.Header.Set(fasthttp.HeaderAuthorization, "Bearer "+g.token)
	}
	req.SetBodyRaw(payload)

	timeout := g.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < timeout {
			timeout = left
		}
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if timeout <= 0 {
		return "", context.DeadlineExceeded
	}

	if err := g.client.DoTimeout(req, resp, timeout); err != nil {
		return "", pkgError.GatewayError(fmt.Sprintf("send to %s failed: %v", to, err))
	}

	var out sendTextResponse
	body := resp.Body()
	if len(body) > 0 {
		if err := json.Unmarshal(body, &out); err != nil {
			logrus.WithField("session", sessionID).Debugf("[GATEWAY] Non-JSON response: %s", truncate(string(body), 200))
		}
	}
	if code := resp.StatusCode(); code < 200 || code >= 300 {
		return "", pkgError.GatewayError(fmt.Sprintf("gateway returned %d: %s", code, firstNonEmpty(out.Message, truncate(string(body), 200))))
	}

	id := firstNonEmpty(out.ID, out.MessageID, out.Results.MessageID)
	if id == "" {
		// entregado; el eco del webhook traerá el id
		logrus.WithFields(logrus.Fields{"session": sessionID, "to": to}).Warn("[GATEWAY] Accepted without message id")
		return "", nil
	}
	return id, nil
}

func truncate(s string, n int) string {
	if r := []rune(s); len(r) > n {
		return string(r[:n]) + "…"
	}
	return s
}
