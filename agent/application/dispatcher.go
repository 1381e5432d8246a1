package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/AzielCF/az-crm/agent/domain"
	"github.com/AzielCF/az-crm/agent/infrastructure"
	convApp "github.com/AzielCF/az-crm/conversation/application"
	convDomain "github.com/AzielCF/az-crm/conversation/domain"
	"github.com/AzielCF/az-crm/pkg/dispatchmonitor"
	"github.com/sirupsen/logrus"
)

type DispatcherConfig struct {
	GenerationTimeout time.Duration
	SendTimeout       time.Duration
	// Claves globales por proveedor; el agente puede tener la suya.
	APIKeys       map[domain.Provider]string
	DefaultPrompt string
}

type Deps struct {
	Agents        domain.Repository
	Conversations ConversationStore
	Recorder      MessageRecorder
	Generator     Generator
	Sender        Sender
	Limiter       RateLimiter
	Presence      PresenceWaiter
	Sink          FeedbackSink
	Monitor       *dispatchmonitor.Monitor
}

// Dispatcher decide si el agente IA responde a los mensajes entrantes y ejecuta la respuesta.
type Dispatcher struct {
	Deps
	cfg       DispatcherConfig
	debouncer *infrastructure.Debouncer
	now       func() time.Time
}

func NewDispatcher(deps Deps, cfg DispatcherConfig) *Dispatcher {
	if cfg.GenerationTimeout <= 0 {
		cfg.GenerationTimeout = 60 * time.Second
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 15 * time.Second
	}
	d := &Dispatcher{Deps: deps, cfg: cfg, now: func() time.Time { return time.Now().UTC() }}
	d.debouncer = infrastructure.NewDebouncer(d.flush)
	return d
}

// HandleInbound aplica los filtros de llegada y encola el mensaje en el debouncer.
// Los descartes en esta etapa no se persisten.
func (d *Dispatcher) HandleInbound(ctx context.Context, conv *convDomain.Conversation, msg *convDomain.Message) (domain.Outcome, error) {
	if !eligible(msg) {
		return domain.OutcomeIgnored, nil
	}
	fields := logrus.Fields{"tenant": conv.TenantID, "conversation": conv.ID}
	d.Monitor.Record(dispatchmonitor.Event{TenantID: conv.TenantID, SessionID: conv.SessionID, ConversationID: conv.ID,
		Stage: dispatchmonitor.StageInbound, Status: dispatchmonitor.StatusOK})

	agent, err := d.loadAgent(ctx, conv.TenantID, conv.SessionID)
	if err != nil {
		return "", err
	}
	if conv.IsGroup && (agent == nil || !agent.ReplyToGroups) {
		return domain.OutcomeIgnored, nil
	}
	if outcome := gate(agent, conv, d.now()); outcome != "" {
		logrus.WithFields(fields).Debugf("[DISPATCHER] Skipped on arrival: %s", outcome)
		d.Monitor.Record(dispatchmonitor.Event{TenantID: conv.TenantID, SessionID: conv.SessionID, ConversationID: conv.ID,
			Stage: dispatchmonitor.StageGate, Status: dispatchmonitor.StatusSkipped, Outcome: string(outcome)})
		return outcome, nil
	}

	pending := domain.PendingReply{
		TenantID:       conv.TenantID,
		SessionID:      conv.SessionID,
		ConversationID: conv.ID,
		ChatJID:        conv.RemoteJID,
		IsGroup:        conv.IsGroup,
		MessageIDs:     []string{msg.ID},
		Texts:          []string{msg.Body},
		FirstAt:        msg.SentAt,
	}
	if err := d.debouncer.Enqueue(pending, agent.DebounceWindow()); err != nil {
		return "", err
	}
	d.Monitor.Record(dispatchmonitor.Event{TenantID: conv.TenantID, SessionID: conv.SessionID, ConversationID: conv.ID,
		Stage: dispatchmonitor.StageDebounce, Status: dispatchmonitor.StatusOK})
	return domain.OutcomeQueued, nil
}

// Pending reports conversations waiting in the debounce window.
func (d *Dispatcher) Pending() int {
	return d.debouncer.Pending()
}

// Shutdown procesa las respuestas pendientes antes de salir.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	return d.debouncer.Shutdown(ctx)
}

func (d *Dispatcher) loadAgent(ctx context.Context, tenantID, sessionID string) (*domain.Agent, error) {
	agent, err := d.Agents.GetAgent(ctx, tenantID, sessionID)
	if errors.Is(err, domain.ErrAgentNotFound) {
		return nil, nil
	}
	return agent, err
}

func (d *Dispatcher) flush(ctx context.Context, p domain.PendingReply) {
	start := time.Now()
	// lecturas y escrituras no se cortan por supersede; solo la generación
	store := context.WithoutCancel(ctx)
	log := &domain.DispatchLog{
		TenantID:       p.TenantID,
		SessionID:      p.SessionID,
		ConversationID: p.ConversationID,
		MessageIDs:     p.MessageIDs,
		InputText:      p.Text(),
	}
	defer func() {
		log.LatencyMs = time.Since(start).Milliseconds()
		d.finish(store, log)
	}()

	fail := func(outcome domain.Outcome, err error) {
		log.Outcome = outcome
		if err != nil {
			log.Error = err.Error()
		}
	}

	agent, err := d.loadAgent(store, p.TenantID, p.SessionID)
	if err != nil {
		fail(domain.OutcomeFailedGeneration, fmt.Errorf("load agent: %w", err))
		return
	}
	conv, err := d.liveConversation(store, p.TenantID, p.ConversationID)
	if err != nil {
		fail(domain.OutcomeFailedGeneration, fmt.Errorf("load conversation: %w", err))
		return
	}
	if outcome := gate(agent, conv, d.now()); outcome != "" {
		fail(outcome, nil)
		return
	}
	log.Provider = agent.Provider
	log.Model = d.model(agent)

	// Solo consulta: el hueco se reserva cuando ya hay respuesta que enviar.
	if !d.withinLimits(store, conv.ID, agent, d.Limiter.Check) {
		fail(domain.OutcomeRateLimited, nil)
		return
	}

	if d.Presence != nil && agent.WaitContactIdle() > 0 {
		d.waitContactIdle(ctx, conv, agent.WaitContactIdle())
	}
	if superseded(ctx) {
		fail(domain.OutcomeSuperseded, nil)
		return
	}

	history, err := d.history(store, conv, agent, p.MessageIDs)
	if err != nil {
		fail(domain.OutcomeFailedGeneration, fmt.Errorf("load history: %w", err))
		return
	}

	req := domain.ChatRequest{
		APIKey:       d.apiKey(agent),
		Model:        log.Model,
		SystemPrompt: d.systemPrompt(agent),
		History:      history,
		UserText:     p.Text(),
		ChatKey:      conv.TenantID + "|" + conv.ID,
	}
	d.Monitor.Record(dispatchmonitor.Event{TenantID: conv.TenantID, SessionID: conv.SessionID, ConversationID: conv.ID,
		Provider: string(agent.Provider), Stage: dispatchmonitor.StageAIRequest, Status: dispatchmonitor.StatusOK})

	genStart := time.Now()
	gctx, cancel := context.WithTimeout(ctx, d.cfg.GenerationTimeout)
	resp, err := d.Generator.Generate(gctx, agent.Provider, req)
	cancel()
	if superseded(ctx) {
		fail(domain.OutcomeSuperseded, nil)
		return
	}
	if err != nil {
		d.Monitor.Record(dispatchmonitor.Event{TenantID: conv.TenantID, SessionID: conv.SessionID, ConversationID: conv.ID,
			Provider: string(agent.Provider), Stage: dispatchmonitor.StageAIResponse, Status: dispatchmonitor.StatusError,
			Error: err.Error(), DurationMs: time.Since(genStart).Milliseconds()})
		fail(domain.OutcomeFailedGeneration, err)
		return
	}
	if resp.Usage != nil {
		log.InputTokens = resp.Usage.InputTokens
		log.OutputTokens = resp.Usage.OutputTokens
		log.CostUSD = resp.Usage.CostUSD
	}
	d.Monitor.Record(dispatchmonitor.Event{TenantID: conv.TenantID, SessionID: conv.SessionID, ConversationID: conv.ID,
		Provider: string(agent.Provider), Stage: dispatchmonitor.StageAIResponse, Status: dispatchmonitor.StatusOK,
		DurationMs: time.Since(genStart).Milliseconds()})

	reply := strings.TrimSpace(resp.Text)
	if reply == "" {
		fail(domain.OutcomeEmptyReply, nil)
		return
	}
	log.ReplyText = reply

	// Un humano pudo tomar la conversación mientras se generaba.
	conv, err = d.liveConversation(store, p.TenantID, conv.ID)
	if err != nil {
		fail(domain.OutcomeFailedSend, fmt.Errorf("reload conversation: %w", err))
		return
	}
	if outcome := gate(agent, conv, d.now()); outcome != "" {
		fail(outcome, nil)
		return
	}
	if !d.withinLimits(store, conv.ID, agent, d.Limiter.Allow) {
		fail(domain.OutcomeRateLimited, nil)
		return
	}

	rec, err := d.Recorder.Record(store, convApp.RecordInput{
		Conversation: conv,
		FromMe:       true,
		SenderType:   convDomain.SenderAgent,
		Body:         reply,
		Type:         convDomain.MessageText,
	})
	if err != nil {
		fail(domain.OutcomeFailedSend, fmt.Errorf("record reply: %w", err))
		return
	}
	log.ReplyMessageID = rec.Message.ID

	sctx, scancel := context.WithTimeout(store, d.cfg.SendTimeout)
	providerID, err := d.Sender.SendText(sctx, conv.SessionID, conv.ReplyJID(), reply)
	scancel()
	if err != nil {
		if mErr := d.Recorder.MarkFailed(store, rec.Message); mErr != nil {
			logrus.WithError(mErr).Warn("[DISPATCHER] Could not mark reply as failed")
		}
		d.Monitor.Record(dispatchmonitor.Event{TenantID: conv.TenantID, SessionID: conv.SessionID, ConversationID: conv.ID,
			Stage: dispatchmonitor.StageOutbound, Status: dispatchmonitor.StatusError, Error: err.Error()})
		fail(domain.OutcomeFailedSend, err)
		return
	}
	if err := d.Recorder.ConfirmSent(store, rec.Message, providerID); err != nil {
		logrus.WithError(err).WithField("provider_id", providerID).Warn("[DISPATCHER] Could not attach provider id to reply")
	}
	d.Monitor.Record(dispatchmonitor.Event{TenantID: conv.TenantID, SessionID: conv.SessionID, ConversationID: conv.ID,
		Stage: dispatchmonitor.StageOutbound, Status: dispatchmonitor.StatusOK})
	log.Outcome = domain.OutcomeReplied
}

// withinLimits consulta o reserva en el limiter; si el limiter falla se deja pasar.
func (d *Dispatcher) withinLimits(ctx context.Context, convID string, agent *domain.Agent,
	check func(context.Context, string, time.Duration, int) (bool, error)) bool {
	allowed, err := check(ctx, convID, agent.MinReplyInterval(), agent.MaxRepliesPerHour)
	if err != nil {
		logrus.WithError(err).WithField("conversation", convID).Warn("[DISPATCHER] Rate limiter unavailable, allowing reply")
		return true
	}
	return allowed
}

func (d *Dispatcher) finish(ctx context.Context, log *domain.DispatchLog) {
	fields := logrus.Fields{
		"tenant":       log.TenantID,
		"conversation": log.ConversationID,
		"outcome":      log.Outcome,
		"latency_ms":   log.LatencyMs,
	}
	switch {
	case log.Outcome.IsFailure():
		logrus.WithFields(fields).WithField("error", log.Error).Warn("[DISPATCHER] Reply failed")
	case log.Outcome == domain.OutcomeReplied:
		logrus.WithFields(fields).Info("[DISPATCHER] Reply sent")
	default:
		logrus.WithFields(fields).Debug("[DISPATCHER] No reply")
		if log.Outcome != domain.OutcomeSuperseded {
			d.Monitor.Record(dispatchmonitor.Event{TenantID: log.TenantID, SessionID: log.SessionID, ConversationID: log.ConversationID,
				Stage: dispatchmonitor.StageGate, Status: dispatchmonitor.StatusSkipped, Outcome: string(log.Outcome)})
		}
	}

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := d.Agents.SaveDispatchLog(pctx, log); err != nil {
		logrus.WithError(err).WithFields(fields).Error("[DISPATCHER] Could not persist dispatch log")
	}
	if d.Sink != nil {
		if err := d.Sink.Record(pctx, log); err != nil {
			logrus.WithError(err).WithFields(fields).Warn("[DISPATCHER] Feedback sink rejected outcome")
		}
	}
}

// waitContactIdle espera a que el contacto deje de escribir. El proveedor puede
// reportar la presencia con el lid o con el número, así que se revisan ambos.
func (d *Dispatcher) waitContactIdle(ctx context.Context, conv *convDomain.Conversation, timeout time.Duration) {
	wctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	chats := []string{conv.RemoteJID}
	if reply := conv.ReplyJID(); reply != conv.RemoteJID {
		chats = append(chats, reply)
	}
	for _, chat := range chats {
		if !d.Presence.WaitIdle(wctx, conv.SessionID, chat, timeout) {
			logrus.WithField("conversation", conv.ID).Debug("[DISPATCHER] Contact still typing, replying anyway")
			return
		}
	}
}

// liveConversation sigue merged_into_id hasta la conversación superviviente.
func (d *Dispatcher) liveConversation(ctx context.Context, tenantID, id string) (*convDomain.Conversation, error) {
	for hop := 0; hop < 5; hop++ {
		conv, err := d.Conversations.GetConversation(ctx, tenantID, id)
		if err != nil {
			return nil, err
		}
		if conv.IsLive() || conv.MergedIntoID == "" {
			return conv, nil
		}
		id = conv.MergedIntoID
	}
	return nil, fmt.Errorf("merge chain too long for conversation %s", id)
}

// history arma los turnos previos sin los mensajes que se están respondiendo.
func (d *Dispatcher) history(ctx context.Context, conv *convDomain.Conversation, agent *domain.Agent, pendingIDs []string) ([]domain.ChatTurn, error) {
	if agent.HistoryLimit <= 0 {
		return nil, nil
	}
	msgs, err := d.Conversations.ListMessages(ctx, conv.TenantID, conv.ID, agent.HistoryLimit+len(pendingIDs), nil)
	if err != nil {
		return nil, err
	}
	skip := make(map[string]bool, len(pendingIDs))
	for _, id := range pendingIDs {
		skip[id] = true
	}

	turns := make([]domain.ChatTurn, 0, len(msgs))
	for _, m := range msgs {
		if skip[m.ID] || m.Body == "" || m.Status == convDomain.StatusFailed {
			continue
		}
		role := domain.RoleUser
		if m.Direction == convDomain.DirectionOutbound {
			role = domain.RoleAssistant
		}
		turns = append(turns, domain.ChatTurn{Role: role, Text: m.Body})
	}
	if len(turns) > agent.HistoryLimit {
		turns = turns[len(turns)-agent.HistoryLimit:]
	}
	return turns, nil
}

func (d *Dispatcher) apiKey(agent *domain.Agent) string {
	if agent.APIKey != "" {
		return agent.APIKey
	}
	return d.cfg.APIKeys[agent.Provider]
}

func (d *Dispatcher) model(agent *domain.Agent) string {
	if agent.Model != "" {
		return agent.Model
	}
	return domain.DefaultModel(agent.Provider)
}

func (d *Dispatcher) systemPrompt(agent *domain.Agent) string {
	if agent.SystemPrompt != "" {
		return agent.SystemPrompt
	}
	return d.cfg.DefaultPrompt
}

func superseded(ctx context.Context) bool {
	return errors.Is(context.Cause(ctx), domain.ErrSuperseded)
}
