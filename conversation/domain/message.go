package domain

import (
	"strings"
	"time"
)

type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// SenderType distingue quién escribió: el contacto, el agente IA, un humano del equipo o el sistema.
type SenderType string

const (
	SenderContact SenderType = "contact"
	SenderAgent   SenderType = "agent"
	SenderUser    SenderType = "user"
	SenderSystem  SenderType = "system"
)

type MessageType string

const (
	MessageText     MessageType = "text"
	MessageImage    MessageType = "image"
	MessageAudio    MessageType = "audio"
	MessageVideo    MessageType = "video"
	MessageDocument MessageType = "document"
	MessageSticker  MessageType = "sticker"
	MessageLocation MessageType = "location"
	MessageOther    MessageType = "other"
)

// ParseMessageType maps provider type names onto MessageType.
func ParseMessageType(raw string) MessageType {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "text", "chat", "conversation", "extendedtext", "extended_text":
		return MessageText
	case "image", "imagemessage":
		return MessageImage
	case "audio", "ptt", "voice", "audiomessage":
		return MessageAudio
	case "video", "videomessage":
		return MessageVideo
	case "document", "file", "documentmessage":
		return MessageDocument
	case "sticker", "stickermessage":
		return MessageSticker
	case "location", "locationmessage", "live_location":
		return MessageLocation
	default:
		return MessageOther
	}
}

type MessageStatus string

const (
	StatusPending   MessageStatus = "pending"
	StatusReceived  MessageStatus = "received"
	StatusSent      MessageStatus = "sent"
	StatusDelivered MessageStatus = "delivered"
	StatusRead      MessageStatus = "read"
	StatusFailed    MessageStatus = "failed"
)

func (s MessageStatus) rank() int {
	switch s {
	case StatusPending:
		return 0
	case StatusSent, StatusReceived:
		return 1
	case StatusDelivered:
		return 2
	case StatusRead:
		return 3
	default:
		return -1
	}
}

// CanTransition enforces pending < sent < delivered < read. Failed is only
// accepted before delivery, and only proof of delivery moves a message out of failed.
func CanTransition(from, to MessageStatus) bool {
	if from == to {
		return false
	}
	switch {
	case to == StatusFailed:
		return from != StatusFailed && from.rank() < StatusDelivered.rank()
	case from == StatusFailed:
		return to.rank() >= StatusDelivered.rank()
	case to.rank() < 0:
		return false
	default:
		return to.rank() > from.rank()
	}
}

// ParseStatus accepts provider status names; "played" counts as read.
func ParseStatus(raw string) (MessageStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "pending", "queued":
		return StatusPending, true
	case "sent", "server_ack", "server":
		return StatusSent, true
	case "delivered", "delivery_ack", "delivery":
		return StatusDelivered, true
	case "read", "played", "read_self":
		return StatusRead, true
	case "failed", "error":
		return StatusFailed, true
	default:
		return "", false
	}
}

// StatusFromAck maps the numeric ack levels some gateways send (0 error .. 4 played).
func StatusFromAck(ack int) (MessageStatus, bool) {
	switch ack {
	case -1, 0:
		return StatusFailed, true
	case 1:
		return StatusSent, true
	case 2:
		return StatusDelivered, true
	case 3, 4:
		return StatusRead, true
	default:
		return "", false
	}
}

// LocalIDPrefix marca mensajes salientes cuyo id del proveedor aún no se conoce.
const LocalIDPrefix = "local-"

type Message struct {
	ID                string        `json:"id"`
	TenantID          string        `json:"tenant_id"`
	SessionID         string        `json:"session_id"`
	ConversationID    string        `json:"conversation_id"`
	ProviderMessageID string        `json:"provider_message_id"`
	Direction         Direction     `json:"direction"`
	SenderType        SenderType    `json:"sender_type"`
	FromMe            bool          `json:"from_me"`
	SenderJID         string        `json:"sender_jid,omitempty"`
	Body              string        `json:"body"`
	Type              MessageType   `json:"type"`
	MediaURL          string        `json:"media_url,omitempty"`
	Status            MessageStatus `json:"status"`
	SentAt            time.Time     `json:"sent_at"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`
}

func (m *Message) IsLocal() bool {
	return strings.HasPrefix(m.ProviderMessageID, LocalIDPrefix)
}

// Preview returns a short single-line summary used in conversation listings.
func (m *Message) Preview() string {
	body := strings.Join(strings.Fields(m.Body), " ")
	if body == "" && m.Type != MessageText {
		return "[" + string(m.Type) + "]"
	}
	const limit = 120
	if r := []rune(body); len(r) > limit {
		return string(r[:limit]) + "…"
	}
	return body
}
