package application

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/AzielCF/az-crm/conversation/domain"
	pkgError "github.com/AzielCF/az-crm/pkg/error"
	"github.com/AzielCF/az-crm/pkg/jid"
	"github.com/sirupsen/logrus"
)

// SessionService mantiene el estado de conexión de cada sesión de WhatsApp.
type SessionService struct {
	repo     domain.Repository
	notifier Notifier
}

func NewSessionService(repo domain.Repository, notifier Notifier) *SessionService {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &SessionService{repo: repo, notifier: notifier}
}

func (s *SessionService) Register(ctx context.Context, tenantID, sessionID, name string) (*domain.Session, error) {
	session := &domain.Session{
		ID:       strings.TrimSpace(sessionID),
		TenantID: strings.TrimSpace(tenantID),
		Name:     strings.TrimSpace(name),
		Status:   domain.SessionPending,
	}
	if err := s.repo.CreateSession(ctx, session); err != nil {
		if errors.Is(err, domain.ErrDuplicateSession) {
			return nil, pkgError.ConflictError("session " + session.ID + " is already registered")
		}
		return nil, err
	}
	logrus.WithFields(logrus.Fields{"tenant": session.TenantID, "session": session.ID}).Info("[SESSIONS] Session registered")
	return session, nil
}

// Get busca la sesión sin filtrar por tenant; lo usa el webhook para descubrir el tenant.
func (s *SessionService) Get(ctx context.Context, sessionID string) (*domain.Session, error) {
	session, err := s.repo.GetSession(ctx, sessionID)
	if errors.Is(err, domain.ErrSessionNotFound) {
		return nil, pkgError.NotFoundError("session " + sessionID + " not found")
	}
	return session, err
}

// GetForTenant devuelve la sesión solo si pertenece al tenant.
func (s *SessionService) GetForTenant(ctx context.Context, tenantID, sessionID string) (*domain.Session, error) {
	session, err := s.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.TenantID != tenantID {
		return nil, pkgError.NotFoundError("session " + sessionID + " not found")
	}
	return session, nil
}

func (s *SessionService) List(ctx context.Context, tenantID string) ([]*domain.Session, error) {
	return s.repo.ListSessions(ctx, tenantID)
}

func (s *SessionService) MarkQR(ctx context.Context, session *domain.Session, qr string) error {
	session.Status = domain.SessionQR
	session.QRCode = qr
	if err := s.repo.UpdateSession(ctx, session); err != nil {
		return err
	}
	s.notifier.Notify(session.TenantID, EventSessionQR, map[string]any{"session_id": session.ID, "qr_code": qr})
	return nil
}

func (s *SessionService) MarkConnected(ctx context.Context, session *domain.Session, phone, name string) error {
	now := time.Now().UTC()
	session.Status = domain.SessionConnected
	session.QRCode = ""
	session.ConnectedAt = &now
	if digits := jid.DigitsOnly(phone); digits != "" {
		if id, err := jid.Parse(phone); err == nil && id.Phone() != "" {
			digits = id.Phone()
		}
		session.PhoneNumber = digits
	}
	if name = strings.TrimSpace(name); name != "" && session.Name == "" {
		session.Name = name
	}
	if err := s.repo.UpdateSession(ctx, session); err != nil {
		return err
	}
	logrus.WithFields(logrus.Fields{"tenant": session.TenantID, "session": session.ID, "phone": session.PhoneNumber}).
		Info("[SESSIONS] Session connected")
	s.notifier.Notify(session.TenantID, EventSessionConnected, session)
	return nil
}

func (s *SessionService) MarkDisconnected(ctx context.Context, session *domain.Session, reason string) error {
	session.Status = domain.SessionDisconnected
	session.QRCode = ""
	if err := s.repo.UpdateSession(ctx, session); err != nil {
		return err
	}
	logrus.WithFields(logrus.Fields{"tenant": session.TenantID, "session": session.ID}).
		Warnf("[SESSIONS] Session disconnected: %s", reason)
	s.notifier.Notify(session.TenantID, EventSessionDisconnected, map[string]any{"session_id": session.ID, "reason": reason})
	return nil
}
