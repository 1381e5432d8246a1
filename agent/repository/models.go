package repository

import (
	"strings"
	"time"

	"github.com/AzielCF/az-crm/agent/domain"
	"github.com/AzielCF/az-crm/pkg/crypto"
	"github.com/sirupsen/logrus"
)

type agentModel struct {
	ID                      string    `gorm:"primaryKey"`
	TenantID                string    `gorm:"uniqueIndex:idx_ai_agents_session,priority:1;not null"`
	SessionID               string    `gorm:"uniqueIndex:idx_ai_agents_session,priority:2;not null"`
	Provider                string    `gorm:"not null"`
	Model                   string    `gorm:"column:model"`
	SystemPrompt            string    `gorm:"column:system_prompt;type:text"`
	APIKey                  string    `gorm:"column:api_key"` // cifrada con pkg/crypto
	Active                  bool      `gorm:"column:active"`
	ReplyToGroups           bool      `gorm:"column:reply_to_groups"`
	DebounceMs              int       `gorm:"column:debounce_ms"`
	WaitContactIdleMs       int       `gorm:"column:wait_contact_idle_ms"`
	MinReplyIntervalMs      int       `gorm:"column:min_reply_interval_ms"`
	MaxRepliesPerHour       int       `gorm:"column:max_replies_per_hour"`
	TakeoverCooldownMinutes int       `gorm:"column:takeover_cooldown_minutes"`
	HistoryLimit            int       `gorm:"column:history_limit"`
	CreatedAt               time.Time `gorm:"not null"`
	UpdatedAt               time.Time `gorm:"not null"`
}

func (agentModel) TableName() string {
	return "ai_agents"
}

type dispatchLogModel struct {
	ID             string    `gorm:"primaryKey"`
	TenantID       string    `gorm:"index:idx_dispatch_logs_conversation,priority:1;not null"`
	ConversationID string    `gorm:"index:idx_dispatch_logs_conversation,priority:2;not null"`
	CreatedAt      time.Time `gorm:"index:idx_dispatch_logs_conversation,priority:3;not null"`
	SessionID      string    `gorm:"not null"`
	Outcome        string    `gorm:"index:idx_dispatch_logs_outcome;not null"`
	MessageIDs     string    `gorm:"column:message_ids"` // CSV
	InputText      string    `gorm:"column:input_text;type:text"`
	ReplyText      string    `gorm:"column:reply_text;type:text"`
	ReplyMessageID string    `gorm:"column:reply_message_id"`
	Provider       string    `gorm:"column:provider"`
	Model          string    `gorm:"column:model"`
	Error          string    `gorm:"column:error;type:text"`
	InputTokens    int       `gorm:"column:input_tokens"`
	OutputTokens   int       `gorm:"column:output_tokens"`
	CostUSD        float64   `gorm:"column:cost_usd"`
	LatencyMs      int64     `gorm:"column:latency_ms"`
}

func (dispatchLogModel) TableName() string {
	return "dispatch_logs"
}

// Models lists the tables owned by this package, for AutoMigrate.
func Models() []any {
	return []any{&agentModel{}, &dispatchLogModel{}}
}

func toAgentModel(a *domain.Agent) (agentModel, error) {
	key, err := crypto.Encrypt(a.APIKey)
	if err != nil {
		return agentModel{}, err
	}
	return agentModel{
		ID:                      a.ID,
		TenantID:                a.TenantID,
		SessionID:               a.SessionID,
		Provider:                string(a.Provider),
		Model:                   a.Model,
		SystemPrompt:            a.SystemPrompt,
		APIKey:                  key,
		Active:                  a.Active,
		ReplyToGroups:           a.ReplyToGroups,
		DebounceMs:              a.DebounceMs,
		WaitContactIdleMs:       a.WaitContactIdleMs,
		MinReplyIntervalMs:      a.MinReplyIntervalMs,
		MaxRepliesPerHour:       a.MaxRepliesPerHour,
		TakeoverCooldownMinutes: a.TakeoverCooldownMinutes,
		HistoryLimit:            a.HistoryLimit,
		CreatedAt:               a.CreatedAt,
		UpdatedAt:               a.UpdatedAt,
	}, nil
}

func fromAgentModel(m agentModel) *domain.Agent {
	key, err := crypto.Decrypt(m.APIKey)
	if err != nil {
		logrus.WithError(err).WithField("agent", m.ID).Warn("[AGENTS] Could not decrypt api key, falling back to global key")
		key = ""
	}
	return &domain.Agent{
		ID:                      m.ID,
		TenantID:                m.TenantID,
		SessionID:               m.SessionID,
		Provider:                domain.Provider(m.Provider),
		Model:                   m.Model,
		SystemPrompt:            m.SystemPrompt,
		APIKey:                  key,
		Active:                  m.Active,
		ReplyToGroups:           m.ReplyToGroups,
		DebounceMs:              m.DebounceMs,
		WaitContactIdleMs:       m.WaitContactIdleMs,
		MinReplyIntervalMs:      m.MinReplyIntervalMs,
		MaxRepliesPerHour:       m.MaxRepliesPerHour,
		TakeoverCooldownMinutes: m.TakeoverCooldownMinutes,
		HistoryLimit:            m.HistoryLimit,
		CreatedAt:               m.CreatedAt,
		UpdatedAt:               m.UpdatedAt,
	}
}

func toDispatchLogModel(l *domain.DispatchLog) dispatchLogModel {
	return dispatchLogModel{
		ID:             l.ID,
		TenantID:       l.TenantID,
		SessionID:      l.SessionID,
		ConversationID: l.ConversationID,
		Outcome:        string(l.Outcome),
		MessageIDs:     strings.Join(l.MessageIDs, ","),
		InputText:      l.InputText,
		ReplyText:      l.ReplyText,
		ReplyMessageID: l.ReplyMessageID,
		Provider:       string(l.Provider),
		Model:          l.Model,
		Error:          l.Error,
		InputTokens:    l.InputTokens,
		OutputTokens:   l.OutputTokens,
		CostUSD:        l.CostUSD,
		LatencyMs:      l.LatencyMs,
		CreatedAt:      l.CreatedAt,
	}
}

func fromDispatchLogModel(m dispatchLogModel) *domain.DispatchLog {
	var ids []string
	if m.MessageIDs != "" {
		ids = strings.Split(m.MessageIDs, ",")
	}
	return &domain.DispatchLog{
		ID:             m.ID,
		TenantID:       m.TenantID,
		SessionID:      m.SessionID,
		ConversationID: m.ConversationID,
		Outcome:        domain.Outcome(m.Outcome),
		MessageIDs:     ids,
		InputText:      m.InputText,
		ReplyText:      m.ReplyText,
		ReplyMessageID: m.ReplyMessageID,
		Provider:       domain.Provider(m.Provider),
		Model:          m.Model,
		Error:          m.Error,
		InputTokens:    m.InputTokens,
		OutputTokens:   m.OutputTokens,
		CostUSD:        m.CostUSD,
		LatencyMs:      m.LatencyMs,
		CreatedAt:      m.CreatedAt,
	}
}
