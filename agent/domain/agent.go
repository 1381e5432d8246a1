package domain

import (
	"strings"
	"time"
)

type Provider string

const (
	ProviderOpenAI Provider = "openai"
	ProviderGemini Provider = "gemini"
)

// ParseProvider acepta el nombre del proveedor sin importar mayúsculas.
func ParseProvider(raw string) (Provider, bool) {
	switch Provider(strings.ToLower(strings.TrimSpace(raw))) {
	case ProviderOpenAI:
		return ProviderOpenAI, true
	case ProviderGemini:
		return ProviderGemini, true
	default:
		return "", false
	}
}

// Agent es la configuración del agente IA de una sesión de WhatsApp.
type Agent struct {
	ID        string   `json:"id"`
	TenantID  string   `json:"tenant_id"`
	SessionID string   `json:"session_id"`
	Provider  Provider `json:"provider"`
	Model     string   `json:"model,omitempty"`

	SystemPrompt string `json:"system_prompt,omitempty"`
	// APIKey reemplaza la clave global del proveedor; se guarda cifrada.
	APIKey string `json:"-"`

	Active        bool `json:"active"`
	ReplyToGroups bool `json:"reply_to_groups"`

	DebounceMs              int `json:"debounce_ms"`
	WaitContactIdleMs       int `json:"wait_contact_idle_ms"`
	MinReplyIntervalMs      int `json:"min_reply_interval_ms"`
	MaxRepliesPerHour       int `json:"max_replies_per_hour"`
	TakeoverCooldownMinutes int `json:"takeover_cooldown_minutes"`
	HistoryLimit            int `json:"history_limit"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (a *Agent) DebounceWindow() time.Duration {
	return time.Duration(a.DebounceMs) * time.Millisecond
}

func (a *Agent) WaitContactIdle() time.Duration {
	return time.Duration(a.WaitContactIdleMs) * time.Millisecond
}

func (a *Agent) MinReplyInterval() time.Duration {
	return time.Duration(a.MinReplyIntervalMs) * time.Millisecond
}

// TakeoverCooldown 0 significa que la toma humana dura hasta liberarla a mano.
func (a *Agent) TakeoverCooldown() time.Duration {
	return time.Duration(a.TakeoverCooldownMinutes) * time.Minute
}

// Defaults son los valores que recibe un agente nuevo cuando la petición no los trae.
type Defaults struct {
	Provider                Provider
	Model                   string
	SystemPrompt            string
	DebounceMs              int
	WaitContactIdleMs       int
	MinReplyIntervalMs      int
	MaxRepliesPerHour       int
	TakeoverCooldownMinutes int
	HistoryLimit            int
}

// NewAgent crea un agente inactivo con los valores por defecto.
func NewAgent(tenantID, sessionID string, d Defaults) *Agent {
	return &Agent{
		TenantID:                tenantID,
		SessionID:               sessionID,
		Provider:                d.Provider,
		Model:                   d.Model,
		SystemPrompt:            d.SystemPrompt,
		DebounceMs:              d.DebounceMs,
		WaitContactIdleMs:       d.WaitContactIdleMs,
		MinReplyIntervalMs:      d.MinReplyIntervalMs,
		MaxRepliesPerHour:       d.MaxRepliesPerHour,
		TakeoverCooldownMinutes: d.TakeoverCooldownMinutes,
		HistoryLimit:            d.HistoryLimit,
	}
}

// UpdateAgentRequest trae solo los campos que cambian.
type UpdateAgentRequest struct {
	Provider                *string `json:"provider"`
	Model                   *string `json:"model"`
	SystemPrompt            *string `json:"system_prompt"`
	APIKey                  *string `json:"api_key"`
	Active                  *bool   `json:"active"`
	ReplyToGroups           *bool   `json:"reply_to_groups"`
	DebounceMs              *int    `json:"debounce_ms"`
	WaitContactIdleMs       *int    `json:"wait_contact_idle_ms"`
	MinReplyIntervalMs      *int    `json:"min_reply_interval_ms"`
	MaxRepliesPerHour       *int    `json:"max_replies_per_hour"`
	TakeoverCooldownMinutes *int    `json:"takeover_cooldown_minutes"`
	HistoryLimit            *int    `json:"history_limit"`
}

// Apply copia en a los campos presentes en la petición.
func (r UpdateAgentRequest) Apply(a *Agent) {
	if r.Provider != nil {
		if p, ok := ParseProvider(*r.Provider); ok {
			a.Provider = p
		}
	}
	setString(&a.Model, r.Model)
	setString(&a.SystemPrompt, r.SystemPrompt)
	setString(&a.APIKey, r.APIKey)
	setBool(&a.Active, r.Active)
	setBool(&a.ReplyToGroups, r.ReplyToGroups)
	setInt(&a.DebounceMs, r.DebounceMs)
	setInt(&a.WaitContactIdleMs, r.WaitContactIdleMs)
	setInt(&a.MinReplyIntervalMs, r.MinReplyIntervalMs)
	setInt(&a.MaxRepliesPerHour, r.MaxRepliesPerHour)
	setInt(&a.TakeoverCooldownMinutes, r.TakeoverCooldownMinutes)
	setInt(&a.HistoryLimit, r.HistoryLimit)
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = strings.TrimSpace(*v)
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}
