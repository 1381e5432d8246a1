package domain

import (
	"context"
	"time"
)

type ConversationFilter struct {
	SessionID string
	Status    ConversationStatus
	Search    string
	Limit     int
	Offset    int
}

// Repository define la persistencia de sesiones, conversaciones y mensajes.
// Transaction ejecuta fn con un Repository ligado a la misma transacción.
type Repository interface {
	Transaction(ctx context.Context, fn func(tx Repository) error) error

	CreateSession(ctx context.Context, s *Session) error
	GetSession(ctx context.Context, sessionID string) (*Session, error)
	ListSessions(ctx context.Context, tenantID string) ([]*Session, error)
	UpdateSession(ctx context.Context, s *Session) error

	// CreateConversation inserta la conversación y sus alias; ErrDuplicateAlias si otra la ganó.
	CreateConversation(ctx context.Context, c *Conversation, keys []string) error
	GetConversation(ctx context.Context, tenantID, id string) (*Conversation, error)
	// FindByAliases devuelve las conversaciones vivas que poseen alguna clave, más antiguas primero.
	FindByAliases(ctx context.Context, tenantID, sessionID string, keys []string) ([]*Conversation, error)
	AddAliases(ctx context.Context, c *Conversation, keys []string) error
	ListAliases(ctx context.Context, conversationID string) ([]string, error)
	UpdateConversation(ctx context.Context, c *Conversation) error
	ListConversations(ctx context.Context, tenantID string, filter ConversationFilter) ([]*Conversation, error)
	ListLiveConversations(ctx context.Context, tenantID, sessionID string) ([]*Conversation, error)
	// MergeInto mueve mensajes y alias de los duplicados al superviviente y los marca como merged.
	MergeInto(ctx context.Context, survivorID string, duplicateIDs []string) error
	// MergedIDs lista los duplicados absorbidos por survivorID.
	MergedIDs(ctx context.Context, tenantID, survivorID string) ([]string, error)
	// TouchConversation avanza last_message_* solo hacia adelante y ajusta unread.
	TouchConversation(ctx context.Context, conversationID string, m *Message) error

	// InsertMessage es idempotente por (tenant, session, provider id); created=false si ya existía.
	InsertMessage(ctx context.Context, m *Message) (created bool, err error)
	GetMessageByProviderID(ctx context.Context, tenantID, sessionID, providerID string) (*Message, error)
	// ClaimEcho asigna providerID al mensaje local del agente con el mismo cuerpo creado después de since.
	ClaimEcho(ctx context.Context, conversationID, body string, since time.Time, providerID string) (*Message, error)
	// AttachProviderID reemplaza el id local; false si el mensaje ya no es local.
	AttachProviderID(ctx context.Context, messageID, providerID string, status MessageStatus) (bool, error)
	UpdateMessageStatus(ctx context.Context, messageID string, status MessageStatus) error
	// ListMessages devuelve los últimos limit mensajes anteriores a before, en orden cronológico.
	ListMessages(ctx context.Context, tenantID, conversationID string, limit int, before *time.Time) ([]*Message, error)

	SaveStatusBacklog(ctx context.Context, tenantID, sessionID, providerID string, status MessageStatus) error
	PopStatusBacklog(ctx context.Context, tenantID, sessionID, providerID string) ([]MessageStatus, error)
}
