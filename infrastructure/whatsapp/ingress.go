package whatsapp

import (
	"context"
	"errors"
	"fmt"

	agentDomain "github.com/AzielCF/az-crm/agent/domain"
	convApp "github.com/AzielCF/az-crm/conversation/application"
	convDomain "github.com/AzielCF/az-crm/conversation/domain"
	pkgError "github.com/AzielCF/az-crm/pkg/error"
	"github.com/AzielCF/az-crm/pkg/jid"
	"github.com/AzielCF/az-crm/pkg/msgworker"
	"github.com/AzielCF/az-crm/validations"
	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"
)

const (
	ResultQueued    = "queued"
	ResultProcessed = "processed"
	ResultIgnored   = "ignored"
)

type Result struct {
	Event  string `json:"event"`
	Status string `json:"status"`
}

type InboundDispatcher interface {
	HandleInbound(ctx context.Context, conv *convDomain.Conversation, msg *convDomain.Message) (agentDomain.Outcome, error)
}

type JobQueue interface {
	Dispatch(job msgworker.Job) error
}

type PresenceUpdater interface {
	Update(sessionID, chatJID string, composing bool)
}

// Ingress traduce los webhooks del proveedor a operaciones sobre sesiones,
// conversaciones y mensajes. Los mensajes se procesan en el pool por chat.
type Ingress struct {
	Sessions   *convApp.SessionService
	Resolver   *convApp.Resolver
	Recorder   *convApp.Recorder
	Dispatcher InboundDispatcher
	Queue      JobQueue
	Presence   PresenceUpdater
}

// Handle procesa un envelope. sessionHint (de la ruta) gana sobre el campo session del cuerpo.
func (i *Ingress) Handle(ctx context.Context, sessionHint string, body []byte) (Result, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Result{}, pkgError.ValidationError("invalid webhook payload: " + err.Error())
	}
	sessionID := firstNonEmpty(sessionHint, env.Session)
	if err := validations.ValidateWebhookEnvelope(ctx, env.Event, sessionID); err != nil {
		return Result{}, err
	}

	event := NormalizeEvent(env.Event)
	res := Result{Event: env.Event, Status: ResultIgnored}
	if event == "" {
		logrus.WithField("session", sessionID).Debugf("[WEBHOOK] Ignoring event %q", env.Event)
		return res, nil
	}
	res.Event = event

	session, err := i.Sessions.Get(ctx, sessionID)
	if err != nil {
		var nf pkgError.NotFoundError
		if errors.As(err, &nf) {
			return Result{}, pkgError.SessionNotFoundError(fmt.Sprintf("session %s is not registered", sessionID))
		}
		return Result{}, err
	}

	switch event {
	case EventQRCode:
		var p QRPayload
		if err := decode(env.Data, &p); err != nil {
			return Result{}, err
		}
		if err := i.Sessions.MarkQR(ctx, session, p.Value()); err != nil {
			return Result{}, err
		}
		res.Status = ResultProcessed

	case EventConnected:
		var p ConnectedPayload
		if err := decode(env.Data, &p); err != nil {
			return Result{}, err
		}
		if err := i.Sessions.MarkConnected(ctx, session, firstNonEmpty(p.Phone, p.JID), firstNonEmpty(p.PushName, p.Name)); err != nil {
			return Result{}, err
		}
		res.Status = ResultProcessed

	case EventDisconnected:
		var p DisconnectedPayload
		if err := decode(env.Data, &p); err != nil {
			return Result{}, err
		}
		if err := i.Sessions.MarkDisconnected(ctx, session, p.Reason); err != nil {
			return Result{}, err
		}
		res.Status = ResultProcessed

	case EventMessage:
		var p MessagePayload
		if err := decode(env.Data, &p); err != nil {
			return Result{}, err
		}
		status, err := i.enqueueMessage(session, p)
		if err != nil {
			return Result{}, err
		}
		res.Status = status

	case EventMessageStatus:
		var p StatusPayload
		if err := decode(env.Data, &p); err != nil {
			return Result{}, err
		}
		status, ok := p.Resolved()
		if !ok || p.ProviderID() == "" {
			return res, nil
		}
		if _, err := i.Recorder.ApplyStatus(ctx, convApp.StatusInput{
			TenantID:          session.TenantID,
			SessionID:         session.ID,
			ProviderMessageID: p.ProviderID(),
			Status:            status,
		}); err != nil {
			return Result{}, err
		}
		res.Status = ResultProcessed

	case EventPresence:
		var p PresencePayload
		if err := decode(env.Data, &p); err != nil {
			return Result{}, err
		}
		id, err := jid.Parse(p.ChatJID())
		if err != nil || id.Kind == jid.KindGroup || i.Presence == nil {
			return res, nil
		}
		i.Presence.Update(session.ID, id.String(), p.Composing())
		res.Status = ResultProcessed
	}
	return res, nil
}

func (i *Ingress) enqueueMessage(session *convDomain.Session, p MessagePayload) (string, error) {
	remote, err := jid.Parse(p.Remote())
	if err != nil {
		logrus.WithField("session", session.ID).Warnf("[WEBHOOK] Unparseable remote %q", p.Remote())
		return ResultIgnored, nil
	}
	if remote.Kind == jid.KindBroadcast || remote.Kind == jid.KindNewsletter {
		return ResultIgnored, nil
	}

	job := msgworker.Job{
		Partition: session.TenantID + "|" + session.ID,
		Key:       remote.String(),
		Handler: func(ctx context.Context) error {
			return i.processMessage(ctx, session, p)
		},
	}
	if err := i.Queue.Dispatch(job); err != nil {
		if errors.Is(err, msgworker.ErrQueueFull) || errors.Is(err, msgworker.ErrPoolStopped) {
			return "", pkgError.ServiceUnavailableError("message queue is full, retry later")
		}
		return "", err
	}
	return ResultQueued, nil
}

// processMessage corre dentro del worker del chat: resolver, registrar y despachar.
func (i *Ingress) processMessage(ctx context.Context, session *convDomain.Session, p MessagePayload) error {
	isGroup := p.IsGroup
	if id, err := jid.Parse(p.Remote()); err == nil && id.Kind == jid.KindGroup {
		isGroup = true
	}

	in := convApp.ResolveInput{
		TenantID:  session.TenantID,
		SessionID: session.ID,
		RemoteJID: p.Remote(),
	}
	if !isGroup {
		in.AltJID = p.Alt()
		if !p.FromMe {
			in.PushName = p.PushName
		}
	}
	resolved, err := i.Resolver.Resolve(ctx, in)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", p.Remote(), err)
	}

	senderJID := p.Participant
	if senderJID == "" && !p.FromMe {
		senderJID = p.Remote()
	}
	rec, err := i.Recorder.Record(ctx, convApp.RecordInput{
		Conversation:      resolved.Conversation,
		ProviderMessageID: p.ProviderID(),
		FromMe:            p.FromMe,
		SenderJID:         senderJID,
		Body:              p.Content(),
		Type:              convDomain.ParseMessageType(p.Type),
		MediaURL:          p.MediaURL,
		Timestamp:         p.Timestamp.Time,
	})
	if err != nil {
		return fmt.Errorf("record message %s: %w", p.ProviderID(), err)
	}
	if !rec.Created || rec.Message.FromMe || i.Dispatcher == nil {
		return nil
	}

	outcome, err := i.Dispatcher.HandleInbound(ctx, resolved.Conversation, rec.Message)
	if err != nil {
		return fmt.Errorf("dispatch %s: %w", rec.Message.ID, err)
	}
	logrus.WithFields(logrus.Fields{
		"tenant":       session.TenantID,
		"conversation": resolved.Conversation.ID,
		"outcome":      outcome,
	}).Debug("[WEBHOOK] Inbound message handled")
	return nil
}

func decode(raw json.RawMessage, dst any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return pkgError.ValidationError("invalid event data: " + err.Error())
	}
	return nil
}
