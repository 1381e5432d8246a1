package domain

import (
	"time"

	"github.com/AzielCF/az-crm/pkg/jid"
)

type ConversationStatus string

const (
	ConversationOpen   ConversationStatus = "open"
	ConversationClosed ConversationStatus = "closed"
	// ConversationMerged marca un duplicado absorbido por otra conversación (ver MergedIntoID)
	ConversationMerged ConversationStatus = "merged"
)

// Conversation es el hilo canónico de un contacto (o grupo) dentro de una sesión.
type Conversation struct {
	ID          string             `json:"id"`
	TenantID    string             `json:"tenant_id"`
	SessionID   string             `json:"session_id"`
	RemoteJID   string             `json:"remote_jid"`
	Phone       string             `json:"phone,omitempty"`
	LID         string             `json:"lid,omitempty"`
	IsGroup     bool               `json:"is_group"`
	ContactName string             `json:"contact_name,omitempty"`
	Status      ConversationStatus `json:"status"`

	AgentEnabled bool       `json:"agent_enabled"`
	TakeoverAt   *time.Time `json:"takeover_at,omitempty"`
	TakeoverBy   string     `json:"takeover_by,omitempty"`

	UnreadCount        int        `json:"unread_count"`
	LastMessageID      string     `json:"last_message_id,omitempty"`
	LastMessageAt      *time.Time `json:"last_message_at,omitempty"`
	LastMessagePreview string     `json:"last_message_preview,omitempty"`

	MergedIntoID string    `json:"merged_into_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TakeoverActive reports whether a human currently owns the conversation.
// A zero cooldown keeps the takeover until it is released explicitly.
func (c *Conversation) TakeoverActive(now time.Time, cooldown time.Duration) bool {
	if c.TakeoverAt == nil {
		return false
	}
	if cooldown <= 0 {
		return true
	}
	return now.Sub(*c.TakeoverAt) < cooldown
}

// ReplyJID is the address outbound messages go to: the phone JID when known, otherwise the remote JID.
func (c *Conversation) ReplyJID() string {
	if !c.IsGroup && c.Phone != "" {
		return jid.UserJID(c.Phone).String()
	}
	return c.RemoteJID
}

func (c *Conversation) IsLive() bool {
	return c.Status != ConversationMerged
}

// Alias es una clave de identidad (phone:, lid:, group:) que apunta a una conversación.
type Alias struct {
	TenantID       string
	SessionID      string
	Key            string
	ConversationID string
}
