package domain

import (
	"strings"
	"time"
)

// PendingReply acumula los mensajes de un contacto que esperan una respuesta del agente.
type PendingReply struct {
	TenantID       string
	SessionID      string
	ConversationID string
	ChatJID        string
	IsGroup        bool
	MessageIDs     []string
	Texts          []string
	FirstAt        time.Time
}

// Merge agrega a p los mensajes de next.
func (p *PendingReply) Merge(next PendingReply) {
	p.MessageIDs = append(p.MessageIDs, next.MessageIDs...)
	p.Texts = append(p.Texts, next.Texts...)
	if next.ChatJID != "" {
		p.ChatJID = next.ChatJID
	}
	if p.FirstAt.IsZero() {
		p.FirstAt = next.FirstAt
	}
}

func (p PendingReply) Text() string {
	return strings.Join(p.Texts, "\n")
}
