package domain

import "time"

// Outcome es el resultado de una decisión de respuesta automática.
type Outcome string

const (
	OutcomeReplied          Outcome = "replied"
	OutcomeSkippedInactive  Outcome = "skipped_inactive"
	OutcomeSkippedDisabled  Outcome = "skipped_disabled"
	OutcomeSkippedTakeover  Outcome = "skipped_takeover"
	OutcomeRateLimited      Outcome = "rate_limited"
	OutcomeSuperseded       Outcome = "superseded"
	OutcomeEmptyReply       Outcome = "empty_reply"
	OutcomeFailedGeneration Outcome = "failed_generation"
	OutcomeFailedSend       Outcome = "failed_send"

	// OutcomeIgnored: el mensaje no califica (saliente, vacío, grupo sin permiso). No se persiste.
	OutcomeIgnored Outcome = "ignored"
	// OutcomeQueued: pasó los filtros de llegada y espera en el debouncer.
	OutcomeQueued Outcome = "queued"
)

func (o Outcome) IsFailure() bool {
	return o == OutcomeFailedGeneration || o == OutcomeFailedSend
}

// DispatchLog registra cada decisión tomada tras el debounce.
type DispatchLog struct {
	ID             string    `json:"id"`
	TenantID       string    `json:"tenant_id"`
	SessionID      string    `json:"session_id"`
	ConversationID string    `json:"conversation_id"`
	Outcome        Outcome   `json:"outcome"`
	MessageIDs     []string  `json:"message_ids,omitempty"`
	InputText      string    `json:"input_text,omitempty"`
	ReplyText      string    `json:"reply_text,omitempty"`
	ReplyMessageID string    `json:"reply_message_id,omitempty"`
	Provider       Provider  `json:"provider,omitempty"`
	Model          string    `json:"model,omitempty"`
	Error          string    `json:"error,omitempty"`
	InputTokens    int       `json:"input_tokens,omitempty"`
	OutputTokens   int       `json:"output_tokens,omitempty"`
	CostUSD        float64   `json:"cost_usd,omitempty"`
	LatencyMs      int64     `json:"latency_ms,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}
