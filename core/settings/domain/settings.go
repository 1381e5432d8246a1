package domain

import "context"

// Setting es un valor de configuración editable en caliente, guardado en base de datos.
type Setting struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// ISettingsRepository defines the contract for persisting dynamic settings.
type ISettingsRepository interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context) ([]Setting, error)
}

// Valores por defecto de los agentes nuevos; sobrescriben los del entorno.
const (
	KeyAgentSystemPrompt       = "agent_default_system_prompt"
	KeyAgentModel              = "agent_default_model"
	KeyAgentDebounceMs         = "agent_default_debounce_ms"
	KeyAgentWaitContactIdleMs  = "agent_default_wait_contact_idle_ms"
	KeyAgentMinReplyIntervalMs = "agent_default_min_reply_interval_ms"
	KeyAgentMaxRepliesPerHour  = "agent_default_max_replies_per_hour"
	KeyAgentTakeoverCooldown   = "agent_default_takeover_cooldown_minutes"
	KeyAgentHistoryLimit       = "agent_default_history_limit"
)

// AgentDefaults lleva solo los campos que el operador fijó; nil conserva el valor del entorno.
type AgentDefaults struct {
	SystemPrompt            *string `json:"system_prompt,omitempty"`
	Model                   *string `json:"model,omitempty"`
	DebounceMs              *int    `json:"debounce_ms,omitempty"`
	WaitContactIdleMs       *int    `json:"wait_contact_idle_ms,omitempty"`
	MinReplyIntervalMs      *int    `json:"min_reply_interval_ms,omitempty"`
	MaxRepliesPerHour       *int    `json:"max_replies_per_hour,omitempty"`
	TakeoverCooldownMinutes *int    `json:"takeover_cooldown_minutes,omitempty"`
	HistoryLimit            *int    `json:"history_limit,omitempty"`
}
