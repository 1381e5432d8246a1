package domain

import "time"

type SessionStatus string

const (
	SessionPending      SessionStatus = "pending"
	SessionQR           SessionStatus = "qr"
	SessionConnected    SessionStatus = "connected"
	SessionDisconnected SessionStatus = "disconnected"
)

// Session es una cuenta de WhatsApp conectada en el proveedor y asignada a un tenant.
type Session struct {
	ID          string        `json:"id"`
	TenantID    string        `json:"tenant_id"`
	Name        string        `json:"name"`
	Status      SessionStatus `json:"status"`
	QRCode      string        `json:"qr_code,omitempty"`
	PhoneNumber string        `json:"phone_number,omitempty"`
	ConnectedAt *time.Time    `json:"connected_at,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}
