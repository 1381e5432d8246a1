package application

import (
	"context"
	"time"

	"github.com/AzielCF/az-crm/agent/domain"
	convApp "github.com/AzielCF/az-crm/conversation/application"
	convDomain "github.com/AzielCF/az-crm/conversation/domain"
)

// Sender entrega texto al contacto a través del gateway de WhatsApp y devuelve el id del proveedor.
type Sender interface {
	SendText(ctx context.Context, sessionID, to, text string) (string, error)
}

// RateLimiter limita respuestas por conversación. Check no consume;
// Allow reserva el hueco de forma atómica.
type RateLimiter interface {
	Check(ctx context.Context, key string, minInterval time.Duration, maxPerHour int) (bool, error)
	Allow(ctx context.Context, key string, minInterval time.Duration, maxPerHour int) (bool, error)
}

type Generator interface {
	Generate(ctx context.Context, provider domain.Provider, req domain.ChatRequest) (domain.ChatResponse, error)
}

// FeedbackSink recibe cada decisión para el aprendizaje externo.
type FeedbackSink interface {
	Record(ctx context.Context, log *domain.DispatchLog) error
}

type PresenceWaiter interface {
	WaitIdle(ctx context.Context, sessionID, chatJID string, timeout time.Duration) bool
}

type ConversationStore interface {
	GetConversation(ctx context.Context, tenantID, id string) (*convDomain.Conversation, error)
	ListMessages(ctx context.Context, tenantID, conversationID string, limit int, before *time.Time) ([]*convDomain.Message, error)
}

type MessageRecorder interface {
	Record(ctx context.Context, in convApp.RecordInput) (*convApp.RecordResult, error)
	ConfirmSent(ctx context.Context, msg *convDomain.Message, providerID string) error
	MarkFailed(ctx context.Context, msg *convDomain.Message) error
}

// DefaultsSource ajusta los valores por defecto de un agente nuevo con la configuración guardada.
type DefaultsSource interface {
	AgentDefaults(ctx context.Context, base domain.Defaults) (domain.Defaults, error)
}
