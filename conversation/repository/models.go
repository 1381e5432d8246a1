package repository

import (
	"time"

	"github.com/AzielCF/az-crm/conversation/domain"
)

// --- Persistence Models ---

type sessionModel struct {
	ID          string     `gorm:"primaryKey"`
	TenantID    string     `gorm:"index:idx_wa_sessions_tenant;not null"`
	Name        string
	Status      string     `gorm:"not null"`
	QRCode      string     `gorm:"column:qr_code;type:text"`
	PhoneNumber string     `gorm:"column:phone_number"`
	ConnectedAt *time.Time `gorm:"column:connected_at"`
	CreatedAt   time.Time  `gorm:"not null"`
	UpdatedAt   time.Time  `gorm:"not null"`
}

func (sessionModel) TableName() string {
	return "wa_sessions"
}

type conversationModel struct {
	ID                 string     `gorm:"primaryKey"`
	TenantID           string     `gorm:"index:idx_conversations_scope,priority:1;not null"`
	SessionID          string     `gorm:"index:idx_conversations_scope,priority:2;not null"`
	Status             string     `gorm:"index:idx_conversations_scope,priority:3;not null"`
	RemoteJID          string     `gorm:"column:remote_jid;not null"`
	Phone              string     `gorm:"column:phone;index:idx_conversations_phone"`
	LID                string     `gorm:"column:lid"`
	IsGroup            bool       `gorm:"column:is_group"`
	ContactName        string     `gorm:"column:contact_name"`
	AgentEnabled       bool       `gorm:"column:agent_enabled"`
	TakeoverAt         *time.Time `gorm:"column:takeover_at"`
	TakeoverBy         string     `gorm:"column:takeover_by"`
	UnreadCount        int        `gorm:"column:unread_count"`
	LastMessageID      string     `gorm:"column:last_message_id"`
	LastMessageAt      *time.Time `gorm:"column:last_message_at;index:idx_conversations_last_message"`
	LastMessagePreview string     `gorm:"column:last_message_preview"`
	MergedIntoID       string     `gorm:"column:merged_into_id;index:idx_conversations_merged_into"`
	CreatedAt          time.Time  `gorm:"not null"`
	UpdatedAt          time.Time  `gorm:"not null"`
}

func (conversationModel) TableName() string {
	return "conversations"
}

type aliasModel struct {
	ID             uint      `gorm:"primaryKey;autoIncrement"`
	TenantID       string    `gorm:"uniqueIndex:idx_conversation_alias_key,priority:1;not null"`
	SessionID      string    `gorm:"uniqueIndex:idx_conversation_alias_key,priority:2;not null"`
	Key            string    `gorm:"column:alias_key;uniqueIndex:idx_conversation_alias_key,priority:3;not null"`
	ConversationID string    `gorm:"index:idx_conversation_alias_conversation;not null"`
	CreatedAt      time.Time `gorm:"not null"`
}

func (aliasModel) TableName() string {
	return "conversation_aliases"
}

type messageModel struct {
	ID                string    `gorm:"primaryKey"`
	TenantID          string    `gorm:"uniqueIndex:idx_messages_provider,priority:1;not null"`
	SessionID         string    `gorm:"uniqueIndex:idx_messages_provider,priority:2;not null"`
	ProviderMessageID string    `gorm:"column:provider_message_id;uniqueIndex:idx_messages_provider,priority:3;not null"`
	ConversationID    string    `gorm:"index:idx_messages_conversation,priority:1;not null"`
	SentAt            time.Time `gorm:"index:idx_messages_conversation,priority:2;not null"`
	Direction         string    `gorm:"not null"`
	SenderType        string    `gorm:"not null"`
	FromMe            bool      `gorm:"column:from_me"`
	SenderJID         string    `gorm:"column:sender_jid"`
	Body              string    `gorm:"type:text"`
	Type              string    `gorm:"not null"`
	MediaURL          string    `gorm:"column:media_url"`
	Status            string    `gorm:"not null"`
	CreatedAt         time.Time `gorm:"not null"`
	UpdatedAt         time.Time `gorm:"not null"`
}

func (messageModel) TableName() string {
	return "messages"
}

// statusBacklogModel guarda estados que llegaron antes que su mensaje.
type statusBacklogModel struct {
	ID                uint      `gorm:"primaryKey;autoIncrement"`
	TenantID          string    `gorm:"index:idx_status_backlog_lookup,priority:1;not null"`
	SessionID         string    `gorm:"index:idx_status_backlog_lookup,priority:2;not null"`
	ProviderMessageID string    `gorm:"column:provider_message_id;index:idx_status_backlog_lookup,priority:3;not null"`
	Status            string    `gorm:"not null"`
	CreatedAt         time.Time `gorm:"not null"`
}

func (statusBacklogModel) TableName() string {
	return "message_status_backlog"
}

// Models lists every table owned by this repository, for migrations.
func Models() []any {
	return []any{&sessionModel{}, &conversationModel{}, &aliasModel{}, &messageModel{}, &statusBacklogModel{}}
}

// --- Mappers ---

func toSessionModel(s *domain.Session) sessionModel {
	return sessionModel{
		ID:          s.ID,
		TenantID:    s.TenantID,
		Name:        s.Name,
		Status:      string(s.Status),
		QRCode:      s.QRCode,
		PhoneNumber: s.PhoneNumber,
		ConnectedAt: s.ConnectedAt,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
	}
}

func fromSessionModel(m sessionModel) *domain.Session {
	return &domain.Session{
		ID:          m.ID,
		TenantID:    m.TenantID,
		Name:        m.Name,
		Status:      domain.SessionStatus(m.Status),
		QRCode:      m.QRCode,
		PhoneNumber: m.PhoneNumber,
		ConnectedAt: m.ConnectedAt,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func toConversationModel(c *domain.Conversation) conversationModel {
	return conversationModel{
		ID:                 c.ID,
		TenantID:           c.TenantID,
		SessionID:          c.SessionID,
		Status:             string(c.Status),
		RemoteJID:          c.RemoteJID,
		Phone:              c.Phone,
		LID:                c.LID,
		IsGroup:            c.IsGroup,
		ContactName:        c.ContactName,
		AgentEnabled:       c.AgentEnabled,
		TakeoverAt:         c.TakeoverAt,
		TakeoverBy:         c.TakeoverBy,
		UnreadCount:        c.UnreadCount,
		LastMessageID:      c.LastMessageID,
		LastMessageAt:      c.LastMessageAt,
		LastMessagePreview: c.LastMessagePreview,
		MergedIntoID:       c.MergedIntoID,
		CreatedAt:          c.CreatedAt,
		UpdatedAt:          c.UpdatedAt,
	}
}

func fromConversationModel(m conversationModel) *domain.Conversation {
	return &domain.Conversation{
		ID:                 m.ID,
		TenantID:           m.TenantID,
		SessionID:          m.SessionID,
		Status:             domain.ConversationStatus(m.Status),
		RemoteJID:          m.RemoteJID,
		Phone:              m.Phone,
		LID:                m.LID,
		IsGroup:            m.IsGroup,
		ContactName:        m.ContactName,
		AgentEnabled:       m.AgentEnabled,
		TakeoverAt:         m.TakeoverAt,
		TakeoverBy:         m.TakeoverBy,
		UnreadCount:        m.UnreadCount,
		LastMessageID:      m.LastMessageID,
		LastMessageAt:      m.LastMessageAt,
		LastMessagePreview: m.LastMessagePreview,
		MergedIntoID:       m.MergedIntoID,
		CreatedAt:          m.CreatedAt,
		UpdatedAt:          m.UpdatedAt,
	}
}

func toMessageModel(m *domain.Message) messageModel {
	return messageModel{
		ID:                m.ID,
		TenantID:          m.TenantID,
		SessionID:         m.SessionID,
		ProviderMessageID: m.ProviderMessageID,
		ConversationID:    m.ConversationID,
		SentAt:            m.SentAt,
		Direction:         string(m.Direction),
		SenderType:        string(m.SenderType),
		FromMe:            m.FromMe,
		SenderJID:         m.SenderJID,
		Body:              m.Body,
		Type:              string(m.Type),
		MediaURL:          m.MediaURL,
		Status:            string(m.Status),
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}

func fromMessageModel(m messageModel) *domain.Message {
	return &domain.Message{
		ID:                m.ID,
		TenantID:          m.TenantID,
		SessionID:         m.SessionID,
		ProviderMessageID: m.ProviderMessageID,
		ConversationID:    m.ConversationID,
		SentAt:            m.SentAt,
		Direction:         domain.Direction(m.Direction),
		SenderType:        domain.SenderType(m.SenderType),
		FromMe:            m.FromMe,
		SenderJID:         m.SenderJID,
		Body:              m.Body,
		Type:              domain.MessageType(m.Type),
		MediaURL:          m.MediaURL,
		Status:            domain.MessageStatus(m.Status),
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}
