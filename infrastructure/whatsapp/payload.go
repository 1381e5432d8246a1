package whatsapp

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/AzielCF/az-crm/conversation/domain"
	"github.com/goccy/go-json"
)

// Eventos que envía el proveedor. Los alias cubren los nombres de distintos gateways.
const (
	EventQRCode        = "qr_code"
	EventConnected     = "connected"
	EventDisconnected  = "disconnected"
	EventMessage       = "message"
	EventMessageStatus = "message_status"
	EventPresence      = "presence"
)

var eventAliases = map[string]string{
	"qr":              EventQRCode,
	"qrcode":          EventQRCode,
	"qr_code":         EventQRCode,
	"connected":       EventConnected,
	"ready":           EventConnected,
	"disconnected":    EventDisconnected,
	"logged_out":      EventDisconnected,
	"message":         EventMessage,
	"messages.upsert": EventMessage,
	"message_status":  EventMessageStatus,
	"message.ack":     EventMessageStatus,
	"messages.update": EventMessageStatus,
	"presence":        EventPresence,
	"presence.update": EventPresence,
	"chat_presence":   EventPresence,
}

// NormalizeEvent devuelve el nombre canónico o "" si el evento no se procesa.
func NormalizeEvent(raw string) string {
	return eventAliases[strings.ToLower(strings.TrimSpace(raw))]
}

// Envelope es el cuerpo común de todos los webhooks.
type Envelope struct {
	Event   string          `json:"event"`
	Session string          `json:"session"`
	Data    json.RawMessage `json:"data"`
}

// Timestamp acepta segundos o milisegundos unix (número o string) y RFC3339.
type Timestamp struct {
	time.Time
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" || s == "0" {
		t.Time = time.Time{}
		return nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		t.Time = unixAuto(n)
		return nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		t.Time = unixAuto(int64(f))
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05"} {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}
	return fmt.Errorf("invalid timestamp %q", s)
}

func unixAuto(n int64) time.Time {
	if n > 1_000_000_000_000 {
		return time.UnixMilli(n).UTC()
	}
	return time.Unix(n, 0).UTC()
}

// AckStatus acepta el nombre del estado o el nivel numérico de ack.
type AckStatus struct {
	Status domain.MessageStatus
	Known  bool
}

func (a *AckStatus) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		return nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		a.Status, a.Known = domain.StatusFromAck(n)
		return nil
	}
	a.Status, a.Known = domain.ParseStatus(s)
	return nil
}

type MessagePayload struct {
	ID           string    `json:"id"`
	MessageID    string    `json:"messageId"`
	From         string    `json:"from"`
	RemoteJID    string    `json:"remoteJid"`
	RemoteJIDAlt string    `json:"remoteJidAlt"`
	SenderPn     string    `json:"senderPn"`
	Participant  string    `json:"participant"`
	FromMe       bool      `json:"fromMe"`
	PushName     string    `json:"pushName"`
	Body         string    `json:"body"`
	Text         string    `json:"text"`
	Caption      string    `json:"caption"`
	Type         string    `json:"type"`
	MediaURL     string    `json:"mediaUrl"`
	Timestamp    Timestamp `json:"timestamp"`
	IsGroup      bool      `json:"isGroup"`
}

func (m MessagePayload) ProviderID() string {
	return firstNonEmpty(m.ID, m.MessageID)
}

// Remote es el chat: el contacto o el grupo.
func (m MessagePayload) Remote() string {
	return firstNonEmpty(m.RemoteJID, m.From)
}

// Alt es el otro identificador del mismo contacto (número cuando Remote es un lid).
func (m MessagePayload) Alt() string {
	return firstNonEmpty(m.RemoteJIDAlt, m.SenderPn)
}

func (m MessagePayload) Content() string {
	return strings.TrimSpace(firstNonEmpty(m.Body, m.Text, m.Caption))
}

type StatusPayload struct {
	ID        string    `json:"id"`
	MessageID string    `json:"messageId"`
	Status    AckStatus `json:"status"`
	Ack       AckStatus `json:"ack"`
}

func (s StatusPayload) ProviderID() string {
	return firstNonEmpty(s.ID, s.MessageID)
}

func (s StatusPayload) Resolved() (domain.MessageStatus, bool) {
	if s.Status.Known {
		return s.Status.Status, true
	}
	return s.Ack.Status, s.Ack.Known
}

type QRPayload struct {
	QR     string `json:"qr"`
	QRCode string `json:"qrCode"`
	Code   string `json:"code"`
}

func (q QRPayload) Value() string {
	return firstNonEmpty(q.QR, q.QRCode, q.Code)
}

type ConnectedPayload struct {
	Phone    string `json:"phone"`
	JID      string `json:"jid"`
	PushName string `json:"pushName"`
	Name     string `json:"name"`
}

type DisconnectedPayload struct {
	Reason string `json:"reason"`
}

type PresencePayload struct {
	From      string `json:"from"`
	Chat      string `json:"chat"`
	RemoteJID string `json:"remoteJid"`
	State     string `json:"state"`
	Status    string `json:"status"`
}

func (p PresencePayload) ChatJID() string {
	return firstNonEmpty(p.RemoteJID, p.Chat, p.From)
}

// Composing: "composing" y "recording" cuentan como escribiendo.
func (p PresencePayload) Composing() bool {
	switch strings.ToLower(firstNonEmpty(p.State, p.Status)) {
	case "composing", "typing", "recording":
		return true
	}
	return false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
