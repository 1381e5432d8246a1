package rest

import (
	"context"
	"time"

	agentApp "github.com/AzielCF/az-crm/agent/application"
	agentDomain "github.com/AzielCF/az-crm/agent/domain"
	convApp "github.com/AzielCF/az-crm/conversation/application"
	convDomain "github.com/AzielCF/az-crm/conversation/domain"
	settingsDomain "github.com/AzielCF/az-crm/core/settings/domain"
	"github.com/AzielCF/az-crm/infrastructure/whatsapp"
)

// Contratos que consumen los handlers; cmd/rest.go inyecta los servicios reales.

type SessionUsecase interface {
	Register(ctx context.Context, tenantID, sessionID, name string) (*convDomain.Session, error)
	GetForTenant(ctx context.Context, tenantID, sessionID string) (*convDomain.Session, error)
	List(ctx context.Context, tenantID string) ([]*convDomain.Session, error)
}

type ConversationUsecase interface {
	List(ctx context.Context, tenantID string, filter convDomain.ConversationFilter) ([]*convDomain.Conversation, error)
	Get(ctx context.Context, tenantID, id string) (*convDomain.Conversation, error)
	Messages(ctx context.Context, tenantID, id string, limit int, before *time.Time) ([]*convDomain.Message, error)
	Lineage(ctx context.Context, tenantID, id string) (*convDomain.Conversation, []string, error)
	Aliases(ctx context.Context, tenantID, id string) ([]string, error)
	Takeover(ctx context.Context, tenantID, id, userID string) (*convDomain.Conversation, error)
	Release(ctx context.Context, tenantID, id string) (*convDomain.Conversation, error)
	SetAgentEnabled(ctx context.Context, tenantID, id string, enabled bool) (*convDomain.Conversation, error)
	SetStatus(ctx context.Context, tenantID, id string, status convDomain.ConversationStatus) (*convDomain.Conversation, error)
}

type AgentUsecase interface {
	Get(ctx context.Context, tenantID, sessionID string) (*agentApp.AgentView, error)
	Upsert(ctx context.Context, tenantID, sessionID string, req agentDomain.UpdateAgentRequest) (*agentApp.AgentView, error)
	Delete(ctx context.Context, tenantID, sessionID string) error
	Dispatches(ctx context.Context, tenantID string, conversationIDs []string, limit int) ([]*agentDomain.DispatchLog, error)
}

type DuplicateMerger interface {
	MergeDuplicates(ctx context.Context, tenantID, sessionID string) ([]convApp.MergeGroup, error)
}

// SettingsUsecase cubre la configuración global de la instancia.
type SettingsUsecase interface {
	GetAgentDefaults(ctx context.Context) (*settingsDomain.AgentDefaults, error)
	UpdateAgentDefaults(ctx context.Context, req settingsDomain.AgentDefaults) (*settingsDomain.AgentDefaults, error)
	List(ctx context.Context) ([]settingsDomain.Setting, error)
}

type WebhookIngress interface {
	Handle(ctx context.Context, sessionHint string, body []byte) (whatsapp.Result, error)
}

// ConversationDetail agrega los alias de identidad a la conversación.
type ConversationDetail struct {
	*convDomain.Conversation
	Aliases []string `json:"aliases"`
}
