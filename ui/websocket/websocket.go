package websocket

import (
	"context"
	"time"

	"github.com/AzielCF/az-crm/infrastructure/valkey"
	"github.com/AzielCF/az-crm/ui/rest/middleware"
	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"
)

const (
	broadcastChannel = "ws_broadcast"
	tenantLocal      = "ws_tenant"
	writeTimeout     = 5 * time.Second
)

type BroadcastMessage struct {
	Code     string `json:"code"`
	Message  string `json:"message,omitempty"`
	TenantID string `json:"tenant_id"`
	Result   any    `json:"result"`
	SenderID string `json:"sender_id,omitempty"`
}

// conn es lo que el hub necesita de una conexión; *websocket.Conn lo cumple.
type conn interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

type registration struct {
	conn     conn
	tenantID string
}

// Hub reparte los eventos de conversación a los operadores conectados del mismo tenant.
// Con Valkey los eventos se propagan al resto de nodos por pub/sub.
type Hub struct {
	clients    map[conn]string
	register   chan registration
	unregister chan conn
	broadcast  chan BroadcastMessage
	done       chan struct{}

	vk      *valkey.Client
	channel string
	localID string
}

func NewHub(vk *valkey.Client, serverID string) *Hub {
	h := &Hub{
		clients:    make(map[conn]string),
		register:   make(chan registration),
		unregister: make(chan conn),
		broadcast:  make(chan BroadcastMessage, 256),
		done:       make(chan struct{}),
		vk:         vk,
		localID:    serverID,
	}
	if vk != nil {
		h.channel = vk.Key(broadcastChannel)
	}
	return h
}

// Notify implementa el Notifier de conversaciones. Nunca bloquea al llamador.
func (h *Hub) Notify(tenantID, code string, payload any) {
	msg := BroadcastMessage{Code: code, TenantID: tenantID, Result: payload}
	select {
	case h.broadcast <- msg:
	default:
		logrus.WithFields(logrus.Fields{"tenant": tenantID, "code": code}).Warn("[WS] Broadcast buffer full, dropping event")
	}
}

func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	if h.vk != nil {
		h.startValkeySubscriber(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				h.closeConnection(c)
			}
			return

		case r := <-h.register:
			h.clients[r.conn] = r.tenantID
			logrus.WithField("tenant", r.tenantID).Debug("[WS] Connection registered")

		case c := <-h.unregister:
			delete(h.clients, c)
			logrus.Debug("[WS] Connection unregistered")

		case message := <-h.broadcast:
			h.broadcastToLocal(message)
			// Solo se publica lo originado en este nodo.
			if h.vk != nil && message.SenderID == "" {
				h.publishToValkey(ctx, message)
			}
		}
	}
}

func (h *Hub) broadcastToLocal(message BroadcastMessage) {
	message.SenderID = ""
	data, err := json.Marshal(message)
	if err != nil {
		logrus.Errorf("[WS] Marshal error: %v", err)
		return
	}

	for c, tenantID := range h.clients {
		if tenantID != message.TenantID {
			continue
		}
		_ = c.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.WriteMessage(websocket.TextMessage, data); err != nil {
			logrus.Errorf("[WS] Write error: %v", err)
			h.closeConnection(c)
		}
	}
}

func (h *Hub) publishToValkey(ctx context.Context, message BroadcastMessage) {
	message.SenderID = h.localID
	data, err := json.Marshal(message)
	if err != nil {
		return
	}

	if err := h.vk.Publish(ctx, h.channel, data); err != nil {
		logrus.Errorf("[WS] Failed to publish to Valkey: %v", err)
	}
}

func (h *Hub) startValkeySubscriber(ctx context.Context) {
	logrus.Info("[WS] Starting Valkey Pub/Sub subscriber for distributed events")
	go func() {
		err := h.vk.Subscribe(ctx, h.channel, h.handleRemote)
		if err != nil && ctx.Err() == nil {
			logrus.Errorf("[WS] Valkey subscriber failed: %v", err)
		}
	}()
}

// handleRemote reinyecta un evento de otro nodo; los propios se descartan.
func (h *Hub) handleRemote(raw []byte) {
	var msg BroadcastMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		logrus.Debugf("[WS] Ignoring malformed remote event: %v", err)
		return
	}
	if msg.SenderID == "" || msg.SenderID == h.localID {
		return
	}
	select {
	case h.broadcast <- msg:
	default:
		logrus.Warn("[WS] Broadcast buffer full, dropping remote event")
	}
}

func (h *Hub) closeConnection(c conn) {
	_ = c.WriteMessage(websocket.CloseMessage, []byte{})
	_ = c.Close()
	delete(h.clients, c)
}

// RegisterRoutes monta /ws; debe ir detrás del middleware de tenant.
func (h *Hub) RegisterRoutes(app fiber.Router) {
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals(tenantLocal, middleware.TenantID(c))
			return c.Next()
		}
		return c.SendStatus(fiber.StatusUpgradeRequired)
	})

	app.Get("/ws", websocket.New(func(c *websocket.Conn) {
		tenantID, _ := c.Locals(tenantLocal).(string)
		select {
		case h.register <- registration{conn: c, tenantID: tenantID}:
		case <-h.done:
			return
		}
		defer func() {
			select {
			case h.unregister <- c:
			case <-h.done:
			}
			_ = c.Close()
		}()

		// Los operadores solo escuchan; la lectura detecta el cierre.
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					logrus.Debugf("[WS] Read error: %v", err)
				}
				return
			}
		}
	}))
}
