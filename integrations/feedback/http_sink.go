package feedback

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/AzielCF/az-crm/agent/domain"
	pkgError "github.com/AzielCF/az-crm/pkg/error"
	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"
)

const eventDispatchOutcome = "dispatch.outcome"

type outcomeEnvelope struct {
	Event  string              `json:"event"`
	SentAt time.Time           `json:"sent_at"`
	Data   *domain.DispatchLog `json:"data"`
}

// HTTPSink hace POST del resultado en JSON, con reintentos ante 5xx o errores de red.
type HTTPSink struct {
	url         string
	token       string
	client      *http.Client
	maxAttempts int
	backoff     time.Duration
}

func NewHTTPSink(url, token string) *HTTPSink {
	return &HTTPSink{
		url:         url,
		token:       token,
		client:      &http.Client{Timeout: 10 * time.Second},
		maxAttempts: 3,
		backoff:     500 * time.Millisecond,
	}
}

func (s *HTTPSink) Record(ctx context.Context, log *domain.DispatchLog) error {
	body, err := json.Marshal(outcomeEnvelope{Event: eventDispatchOutcome, SentAt: time.Now().UTC(), Data: log})
	if err != nil {
		return fmt.Errorf("feedback: marshal outcome: %w", err)
	}

	sleep := s.backoff
	var lastErr error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		retry, err := s.post(ctx, body)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retry || attempt == s.maxAttempts {
			break
		}
		logrus.WithError(err).Debugf("[FEEDBACK] Attempt %d failed, retrying", attempt)
		select {
		case <-ctx.Done():
			return pkgError.GatewayError(fmt.Sprintf("feedback delivery cancelled: %v", lastErr))
		case <-time.After(sleep):
		}
		sleep *= 2
	}
	return pkgError.GatewayError(fmt.Sprintf("feedback delivery failed: %v", lastErr))
}

// post devuelve retry=true cuando vale la pena reintentar.
func (s *HTTPSink) post(ctx context.Context, body []byte) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return ctx.Err() == nil, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return false, nil
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return true, fmt.Errorf("status %d", resp.StatusCode)
	default:
		return false, fmt.Errorf("status %d", resp.StatusCode)
	}
}

func (s *HTTPSink) Close() error {
	s.client.CloseIdleConnections()
	return nil
}
