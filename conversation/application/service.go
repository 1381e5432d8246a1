package application

import (
	"context"
	"errors"
	"time"

	"github.com/AzielCF/az-crm/conversation/domain"
	pkgError "github.com/AzielCF/az-crm/pkg/error"
	"github.com/sirupsen/logrus"
)

// maxMergeHops limita el seguimiento de merged_into_id.
const maxMergeHops = 5

// ConversationService expone las operaciones de la bandeja para la API REST.
type ConversationService struct {
	repo     domain.Repository
	notifier Notifier
}

func NewConversationService(repo domain.Repository, notifier Notifier) *ConversationService {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &ConversationService{repo: repo, notifier: notifier}
}

func (s *ConversationService) List(ctx context.Context, tenantID string, filter domain.ConversationFilter) ([]*domain.Conversation, error) {
	return s.repo.ListConversations(ctx, tenantID, filter)
}

// Get returns the conversation, following merges to the surviving record.
func (s *ConversationService) Get(ctx context.Context, tenantID, id string) (*domain.Conversation, error) {
	for hop := 0; hop <= maxMergeHops; hop++ {
		conv, err := s.repo.GetConversation(ctx, tenantID, id)
		if errors.Is(err, domain.ErrConversationNotFound) {
			return nil, pkgError.NotFoundError("conversation " + id + " not found")
		}
		if err != nil {
			return nil, err
		}
		if conv.IsLive() || conv.MergedIntoID == "" {
			return conv, nil
		}
		id = conv.MergedIntoID
	}
	return nil, pkgError.InternalServerError("merge chain too long for conversation " + id)
}

func (s *ConversationService) Messages(ctx context.Context, tenantID, id string, limit int, before *time.Time) ([]*domain.Message, error) {
	conv, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	return s.repo.ListMessages(ctx, tenantID, conv.ID, limit, before)
}

// Lineage devuelve la conversación viva y los ids que apuntan a ella, incluido el propio.
func (s *ConversationService) Lineage(ctx context.Context, tenantID, id string) (*domain.Conversation, []string, error) {
	conv, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return nil, nil, err
	}
	merged, err := s.repo.MergedIDs(ctx, tenantID, conv.ID)
	if err != nil {
		return nil, nil, err
	}
	return conv, append([]string{conv.ID}, merged...), nil
}

func (s *ConversationService) Aliases(ctx context.Context, tenantID, id string) ([]string, error) {
	conv, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	return s.repo.ListAliases(ctx, conv.ID)
}

// Takeover marca que un operador tomó la conversación; el agente deja de responder.
func (s *ConversationService) Takeover(ctx context.Context, tenantID, id, userID string) (*domain.Conversation, error) {
	conv, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	conv.TakeoverAt = &now
	conv.TakeoverBy = userID
	if err := s.repo.UpdateConversation(ctx, conv); err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{"tenant": tenantID, "conversation": conv.ID, "user": userID}).Info("[CONVERSATIONS] Manual takeover")
	s.notifier.Notify(tenantID, EventHumanTakeover, map[string]any{"conversation_id": conv.ID, "at": now, "by": userID})
	return conv, nil
}

// Release devuelve la conversación al agente.
func (s *ConversationService) Release(ctx context.Context, tenantID, id string) (*domain.Conversation, error) {
	conv, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	conv.TakeoverAt = nil
	conv.TakeoverBy = ""
	if err := s.repo.UpdateConversation(ctx, conv); err != nil {
		return nil, err
	}
	s.notifier.Notify(tenantID, EventTakeoverReleased, map[string]any{"conversation_id": conv.ID})
	return conv, nil
}

func (s *ConversationService) SetAgentEnabled(ctx context.Context, tenantID, id string, enabled bool) (*domain.Conversation, error) {
	conv, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	conv.AgentEnabled = enabled
	if err := s.repo.UpdateConversation(ctx, conv); err != nil {
		return nil, err
	}
	return conv, nil
}

func (s *ConversationService) SetStatus(ctx context.Context, tenantID, id string, status domain.ConversationStatus) (*domain.Conversation, error) {
	if status != domain.ConversationOpen && status != domain.ConversationClosed {
		return nil, pkgError.ValidationError("status must be open or closed")
	}
	conv, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	conv.Status = status
	if err := s.repo.UpdateConversation(ctx, conv); err != nil {
		return nil, err
	}
	return conv, nil
}
