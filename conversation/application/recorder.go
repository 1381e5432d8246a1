package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/AzielCF/az-crm/conversation/domain"
	pkgError "github.com/AzielCF/az-crm/pkg/error"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// DefaultEchoWindow es cuánto esperamos el eco del proveedor de un mensaje enviado por el agente.
const DefaultEchoWindow = 2 * time.Minute

type RecordInput struct {
	Conversation      *domain.Conversation
	ProviderMessageID string
	FromMe            bool
	// SenderType vacío se deduce: contact si entra, user si es fromMe.
	SenderType domain.SenderType
	SenderJID  string
	Body       string
	Type       domain.MessageType
	MediaURL   string
	Timestamp  time.Time
}

type RecordResult struct {
	Message *domain.Message
	Created bool
	// Claimed: el eco fromMe correspondía a un mensaje pendiente del agente.
	Claimed bool
	// Takeover: se detectó una respuesta humana.
	Takeover bool
}

type StatusInput struct {
	TenantID          string
	SessionID         string
	ProviderMessageID string
	Status            domain.MessageStatus
}

type StatusResult struct {
	Message    *domain.Message
	Applied    bool
	Backlogged bool
}

// Recorder agrega mensajes a conversaciones de forma idempotente.
type Recorder struct {
	repo       domain.Repository
	notifier   Notifier
	echoWindow time.Duration
	now        func() time.Time
}

func NewRecorder(repo domain.Repository, notifier Notifier) *Recorder {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &Recorder{
		repo:       repo,
		notifier:   notifier,
		echoWindow: DefaultEchoWindow,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (r *Recorder) Record(ctx context.Context, in RecordInput) (*RecordResult, error) {
	conv := in.Conversation
	if conv == nil || conv.ID == "" {
		return nil, pkgError.ValidationError("conversation is required")
	}

	msg := r.buildMessage(in)
	if msg.ProviderMessageID == "" {
		if msg.SenderType != domain.SenderAgent && msg.SenderType != domain.SenderSystem {
			return nil, fmt.Errorf("%w: %w", pkgError.ValidationError("message id is required"), domain.ErrMissingProviderID)
		}
		msg.ProviderMessageID = domain.LocalIDPrefix + uuid.New().String()
	}

	res := &RecordResult{}
	err := r.repo.Transaction(ctx, func(tx domain.Repository) error {
		if !msg.IsLocal() {
			existing, err := tx.GetMessageByProviderID(ctx, msg.TenantID, msg.SessionID, msg.ProviderMessageID)
			if err == nil {
				res.Message = existing
				return nil
			}
			if !errors.Is(err, domain.ErrMessageNotFound) {
				return err
			}
		}

		if msg.FromMe && msg.SenderType == domain.SenderUser && msg.Body != "" {
			claimed, err := tx.ClaimEcho(ctx, conv.ID, msg.Body, r.now().Add(-r.echoWindow), msg.ProviderMessageID)
			if err == nil {
				res.Message = claimed
				res.Claimed = true
				return r.applyBacklog(ctx, tx, claimed)
			}
			if !errors.Is(err, domain.ErrMessageNotFound) {
				return err
			}
		}

		created, err := tx.InsertMessage(ctx, msg)
		if err != nil {
			return err
		}
		if !created {
			existing, err := tx.GetMessageByProviderID(ctx, msg.TenantID, msg.SessionID, msg.ProviderMessageID)
			if err != nil {
				return err
			}
			res.Message = existing
			return nil
		}

		res.Message = msg
		res.Created = true
		if err := tx.TouchConversation(ctx, conv.ID, msg); err != nil {
			return err
		}
		if !msg.IsLocal() {
			if err := r.applyBacklog(ctx, tx, msg); err != nil {
				return err
			}
		}
		if msg.FromMe && msg.SenderType == domain.SenderUser {
			taken, err := markTakeover(ctx, tx, conv, msg.SentAt, "whatsapp")
			if err != nil {
				return err
			}
			res.Takeover = taken
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	fields := logrus.Fields{"tenant": conv.TenantID, "conversation": conv.ID, "provider_id": res.Message.ProviderMessageID}
	switch {
	case res.Created:
		logrus.WithFields(fields).Debugf("[RECORDER] %s message recorded", res.Message.Direction)
		r.notifier.Notify(conv.TenantID, EventNewMessage, res.Message)
	case res.Claimed:
		logrus.WithFields(fields).Debug("[RECORDER] Agent echo claimed")
	default:
		logrus.WithFields(fields).Debug("[RECORDER] Duplicate delivery ignored")
	}
	if res.Takeover {
		logrus.WithFields(fields).Info("[RECORDER] Human reply detected, takeover started")
		r.notifier.Notify(conv.TenantID, EventHumanTakeover, map[string]any{"conversation_id": conv.ID, "at": res.Message.SentAt})
	}
	if (res.Created && !res.Message.IsLocal()) || res.Claimed {
		r.settleBacklog(ctx, res.Message)
	}
	return res, nil
}

func (r *Recorder) buildMessage(in RecordInput) *domain.Message {
	conv := in.Conversation
	msg := &domain.Message{
		TenantID:          conv.TenantID,
		SessionID:         conv.SessionID,
		ConversationID:    conv.ID,
		ProviderMessageID: strings.TrimSpace(in.ProviderMessageID),
		FromMe:            in.FromMe,
		SenderType:        in.SenderType,
		SenderJID:         in.SenderJID,
		Body:              strings.TrimSpace(in.Body),
		Type:              in.Type,
		MediaURL:          in.MediaURL,
		SentAt:            in.Timestamp,
	}
	if msg.Type == "" {
		msg.Type = domain.MessageText
	}
	if msg.SentAt.IsZero() {
		msg.SentAt = r.now()
	}
	if msg.SenderType == "" {
		msg.SenderType = domain.SenderContact
		if in.FromMe {
			msg.SenderType = domain.SenderUser
		}
	}

	switch {
	case !in.FromMe:
		msg.Direction = domain.DirectionInbound
		msg.Status = domain.StatusReceived
	case msg.SenderType == domain.SenderAgent || msg.SenderType == domain.SenderSystem:
		msg.Direction = domain.DirectionOutbound
		msg.Status = domain.StatusPending
	default:
		msg.Direction = domain.DirectionOutbound
		msg.Status = domain.StatusSent
	}
	return msg
}

func (r *Recorder) applyBacklog(ctx context.Context, tx domain.Repository, msg *domain.Message) error {
	statuses, err := tx.PopStatusBacklog(ctx, msg.TenantID, msg.SessionID, msg.ProviderMessageID)
	if err != nil || len(statuses) == 0 {
		return err
	}
	next := msg.Status
	for _, s := range statuses {
		if domain.CanTransition(next, s) {
			next = s
		}
	}
	if next == msg.Status {
		return nil
	}
	if err := tx.UpdateMessageStatus(ctx, msg.ID, next); err != nil {
		return err
	}
	msg.Status = next
	return nil
}

// drainBacklog aplica en su propia transacción los estados pendientes de msg.
func (r *Recorder) drainBacklog(ctx context.Context, msg *domain.Message) (bool, error) {
	before := msg.Status
	if err := r.repo.Transaction(ctx, func(tx domain.Repository) error {
		return r.applyBacklog(ctx, tx, msg)
	}); err != nil {
		return false, err
	}
	if msg.Status == before {
		return false, nil
	}
	r.notifier.Notify(msg.TenantID, EventMessageStatus, msg)
	return true, nil
}

// settleBacklog vuelve a mirar el backlog después del commit. Un ApplyStatus
// concurrente no ve la fila sin confirmar y deja el estado en backlog.
func (r *Recorder) settleBacklog(ctx context.Context, msg *domain.Message) {
	if _, err := r.drainBacklog(ctx, msg); err != nil {
		logrus.WithError(err).WithField("provider_id", msg.ProviderMessageID).Warn("[RECORDER] Status backlog recheck failed")
	}
}

// markTakeover registra la toma humana si es más reciente que la vigente.
func markTakeover(ctx context.Context, tx domain.Repository, conv *domain.Conversation, at time.Time, by string) (bool, error) {
	fresh, err := tx.GetConversation(ctx, conv.TenantID, conv.ID)
	if err != nil {
		return false, err
	}
	if fresh.TakeoverAt != nil && !at.After(*fresh.TakeoverAt) {
		return false, nil
	}
	ts := at.UTC()
	fresh.TakeoverAt = &ts
	fresh.TakeoverBy = by
	if err := tx.UpdateConversation(ctx, fresh); err != nil {
		return false, err
	}
	conv.TakeoverAt = fresh.TakeoverAt
	conv.TakeoverBy = fresh.TakeoverBy
	return true, nil
}

// ApplyStatus avanza el estado de un mensaje. Si el mensaje aún no existe el
// estado queda en backlog y se aplica cuando se registre.
func (r *Recorder) ApplyStatus(ctx context.Context, in StatusInput) (*StatusResult, error) {
	if strings.TrimSpace(in.ProviderMessageID) == "" {
		return nil, fmt.Errorf("%w: %w", pkgError.ValidationError("message id is required"), domain.ErrMissingProviderID)
	}

	msg, err := r.repo.GetMessageByProviderID(ctx, in.TenantID, in.SessionID, in.ProviderMessageID)
	if errors.Is(err, domain.ErrMessageNotFound) {
		if err := r.repo.SaveStatusBacklog(ctx, in.TenantID, in.SessionID, in.ProviderMessageID, in.Status); err != nil {
			return nil, err
		}
		// El mensaje pudo registrarse entre la búsqueda y el backlog.
		msg, err = r.repo.GetMessageByProviderID(ctx, in.TenantID, in.SessionID, in.ProviderMessageID)
		if errors.Is(err, domain.ErrMessageNotFound) {
			return &StatusResult{Backlogged: true}, nil
		}
		if err != nil {
			return nil, err
		}
		applied, err := r.drainBacklog(ctx, msg)
		if err != nil {
			return nil, err
		}
		return &StatusResult{Message: msg, Applied: applied}, nil
	}
	if err != nil {
		return nil, err
	}

	if !domain.CanTransition(msg.Status, in.Status) {
		logrus.WithFields(logrus.Fields{"provider_id": in.ProviderMessageID, "from": msg.Status, "to": in.Status}).
			Debug("[RECORDER] Status regression ignored")
		return &StatusResult{Message: msg}, nil
	}
	if err := r.repo.UpdateMessageStatus(ctx, msg.ID, in.Status); err != nil {
		return nil, err
	}
	msg.Status = in.Status
	r.notifier.Notify(in.TenantID, EventMessageStatus, msg)
	return &StatusResult{Message: msg, Applied: true}, nil
}

// ConfirmSent reemplaza el id local por el del proveedor tras un envío exitoso.
func (r *Recorder) ConfirmSent(ctx context.Context, msg *domain.Message, providerID string) error {
	providerID = strings.TrimSpace(providerID)
	if providerID == "" {
		return r.advance(ctx, msg, domain.StatusSent)
	}
	var attached bool
	err := r.repo.Transaction(ctx, func(tx domain.Repository) error {
		var err error
		attached, err = tx.AttachProviderID(ctx, msg.ID, providerID, domain.StatusSent)
		if err != nil {
			return fmt.Errorf("attach provider id: %w", err)
		}
		if !attached {
			// el eco llegó antes y ya reclamó el mensaje
			return nil
		}
		msg.ProviderMessageID = providerID
		msg.Status = domain.StatusSent
		return r.applyBacklog(ctx, tx, msg)
	})
	if err != nil {
		return err
	}
	if attached {
		r.settleBacklog(ctx, msg)
	}
	return nil
}

func (r *Recorder) MarkFailed(ctx context.Context, msg *domain.Message) error {
	return r.advance(ctx, msg, domain.StatusFailed)
}

func (r *Recorder) advance(ctx context.Context, msg *domain.Message, status domain.MessageStatus) error {
	if !domain.CanTransition(msg.Status, status) {
		return nil
	}
	if err := r.repo.UpdateMessageStatus(ctx, msg.ID, status); err != nil {
		return err
	}
	msg.Status = status
	r.notifier.Notify(msg.TenantID, EventMessageStatus, msg)
	return nil
}
