package application

import (
	"context"
	"errors"

	"github.com/AzielCF/az-crm/agent/domain"
	pkgError "github.com/AzielCF/az-crm/pkg/error"
	"github.com/AzielCF/az-crm/validations"
	"github.com/sirupsen/logrus"
)

// AgentView es lo que ve la API: la clave nunca sale en claro.
type AgentView struct {
	*domain.Agent
	HasAPIKey bool `json:"has_api_key"`
}

// AgentService administra la configuración del agente de cada sesión.
type AgentService struct {
	repo     domain.Repository
	defaults domain.Defaults
	source   DefaultsSource
}

func NewAgentService(repo domain.Repository, defaults domain.Defaults) *AgentService {
	return &AgentService{repo: repo, defaults: defaults}
}

func (s *AgentService) SetDefaultsSource(source DefaultsSource) {
	s.source = source
}

func (s *AgentService) defaultsFor(ctx context.Context) domain.Defaults {
	if s.source == nil {
		return s.defaults
	}
	ds, err := s.source.AgentDefaults(ctx, s.defaults)
	if err != nil {
		logrus.Warnf("[AGENTS] Falling back to configured defaults: %v", err)
		return s.defaults
	}
	return ds
}

func (s *AgentService) Get(ctx context.Context, tenantID, sessionID string) (*AgentView, error) {
	agent, err := s.repo.GetAgent(ctx, tenantID, sessionID)
	if errors.Is(err, domain.ErrAgentNotFound) {
		return nil, pkgError.NotFoundError("no agent configured for session " + sessionID)
	}
	if err != nil {
		return nil, err
	}
	return view(agent), nil
}

// Upsert crea el agente con los valores por defecto o actualiza los campos enviados.
func (s *AgentService) Upsert(ctx context.Context, tenantID, sessionID string, req domain.UpdateAgentRequest) (*AgentView, error) {
	if err := validations.ValidateUpdateAgent(ctx, req); err != nil {
		return nil, err
	}

	agent, err := s.repo.GetAgent(ctx, tenantID, sessionID)
	if errors.Is(err, domain.ErrAgentNotFound) {
		agent = domain.NewAgent(tenantID, sessionID, s.defaultsFor(ctx))
	} else if err != nil {
		return nil, err
	}

	req.Apply(agent)
	if err := s.repo.SaveAgent(ctx, agent); err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{
		"tenant":   tenantID,
		"session":  sessionID,
		"provider": agent.Provider,
		"active":   agent.Active,
	}).Info("[AGENTS] Agent settings saved")
	return view(agent), nil
}

func (s *AgentService) Delete(ctx context.Context, tenantID, sessionID string) error {
	err := s.repo.DeleteAgent(ctx, tenantID, sessionID)
	if errors.Is(err, domain.ErrAgentNotFound) {
		return pkgError.NotFoundError("no agent configured for session " + sessionID)
	}
	return err
}

// Dispatches lista las decisiones registradas para las conversaciones indicadas.
func (s *AgentService) Dispatches(ctx context.Context, tenantID string, conversationIDs []string, limit int) ([]*domain.DispatchLog, error) {
	return s.repo.ListDispatchLogs(ctx, tenantID, conversationIDs, limit)
}

func view(a *domain.Agent) *AgentView {
	return &AgentView{Agent: a, HasAPIKey: a.APIKey != ""}
}
