package application

import "context"

// Locker serialises critical sections by key. The returned unlock is idempotent.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// Notifier pushes realtime events (websocket) to the tenant's operators.
type Notifier interface {
	Notify(tenantID, code string, payload any)
}

type nopNotifier struct{}

func (nopNotifier) Notify(string, string, any) {}

// Event codes sent through Notifier.
const (
	EventNewMessage          = "NEW_MESSAGE"
	EventMessageStatus       = "MESSAGE_STATUS"
	EventConversationCreated = "CONVERSATION_CREATED"
	EventConversationMerged  = "CONVERSATION_MERGED"
	EventHumanTakeover       = "HUMAN_TAKEOVER"
	EventTakeoverReleased    = "TAKEOVER_RELEASED"
	EventSessionQR           = "SESSION_QR"
	EventSessionConnected    = "SESSION_CONNECTED"
	EventSessionDisconnected = "SESSION_DISCONNECTED"
)
