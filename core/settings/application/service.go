package application

import (
	"context"
	"strconv"
	"strings"

	agentDomain "github.com/AzielCF/az-crm/agent/domain"
	"github.com/AzielCF/az-crm/core/settings/domain"
	"github.com/AzielCF/az-crm/validations"
	"github.com/sirupsen/logrus"
)

type SettingsService struct {
	repo domain.ISettingsRepository
}

func NewSettingsService(repo domain.ISettingsRepository) *SettingsService {
	return &SettingsService{repo: repo}
}

var intKeys = []string{
	domain.KeyAgentDebounceMs,
	domain.KeyAgentWaitContactIdleMs,
	domain.KeyAgentMinReplyIntervalMs,
	domain.KeyAgentMaxRepliesPerHour,
	domain.KeyAgentTakeoverCooldown,
	domain.KeyAgentHistoryLimit,
}

// GetAgentDefaults lee los valores guardados; los ausentes o corruptos quedan en nil.
func (s *SettingsService) GetAgentDefaults(ctx context.Context) (*domain.AgentDefaults, error) {
	ds := &domain.AgentDefaults{}

	if val, err := s.repo.Get(ctx, domain.KeyAgentSystemPrompt); err != nil {
		return nil, err
	} else if val != "" {
		ds.SystemPrompt = &val
	}
	if val, err := s.repo.Get(ctx, domain.KeyAgentModel); err != nil {
		return nil, err
	} else if val != "" {
		ds.Model = &val
	}

	ints := intFields(ds)
	for _, key := range intKeys {
		val, err := s.repo.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		if val == "" {
			continue
		}
		n, err := strconv.Atoi(val)
		if err != nil || n < 0 {
			logrus.Warnf("[SETTINGS] Ignoring invalid value %q for %s", val, key)
			continue
		}
		*ints[key] = &n
	}
	return ds, nil
}

// UpdateAgentDefaults guarda los campos enviados. Un texto vacío borra la clave.
func (s *SettingsService) UpdateAgentDefaults(ctx context.Context, req domain.AgentDefaults) (*domain.AgentDefaults, error) {
	if err := validations.ValidateAgentDefaults(ctx, req); err != nil {
		return nil, err
	}

	for key, v := range map[string]*string{domain.KeyAgentSystemPrompt: req.SystemPrompt, domain.KeyAgentModel: req.Model} {
		if v == nil {
			continue
		}
		var err error
		if trimmed := strings.TrimSpace(*v); trimmed == "" {
			err = s.repo.Delete(ctx, key)
		} else {
			err = s.repo.Set(ctx, key, trimmed)
		}
		if err != nil {
			return nil, err
		}
	}

	ints := intFields(&req)
	for _, key := range intKeys {
		v := *ints[key]
		if v == nil {
			continue
		}
		if err := s.repo.Set(ctx, key, strconv.Itoa(*v)); err != nil {
			return nil, err
		}
	}
	logrus.Info("[SETTINGS] Agent defaults updated")
	return s.GetAgentDefaults(ctx)
}

// AgentDefaults aplica los valores guardados sobre base.
func (s *SettingsService) AgentDefaults(ctx context.Context, base agentDomain.Defaults) (agentDomain.Defaults, error) {
	ds, err := s.GetAgentDefaults(ctx)
	if err != nil {
		return base, err
	}
	if ds.SystemPrompt != nil {
		base.SystemPrompt = *ds.SystemPrompt
	}
	if ds.Model != nil {
		base.Model = *ds.Model
	}
	if ds.DebounceMs != nil {
		base.DebounceMs = *ds.DebounceMs
	}
	if ds.WaitContactIdleMs != nil {
		base.WaitContactIdleMs = *ds.WaitContactIdleMs
	}
	if ds.MinReplyIntervalMs != nil {
		base.MinReplyIntervalMs = *ds.MinReplyIntervalMs
	}
	if ds.MaxRepliesPerHour != nil {
		base.MaxRepliesPerHour = *ds.MaxRepliesPerHour
	}
	if ds.TakeoverCooldownMinutes != nil {
		base.TakeoverCooldownMinutes = *ds.TakeoverCooldownMinutes
	}
	if ds.HistoryLimit != nil {
		base.HistoryLimit = *ds.HistoryLimit
	}
	return base, nil
}

func intFields(ds *domain.AgentDefaults) map[string]**int {
	return map[string]**int{
		domain.KeyAgentDebounceMs:         &ds.DebounceMs,
		domain.KeyAgentWaitContactIdleMs:  &ds.WaitContactIdleMs,
		domain.KeyAgentMinReplyIntervalMs: &ds.MinReplyIntervalMs,
		domain.KeyAgentMaxRepliesPerHour:  &ds.MaxRepliesPerHour,
		domain.KeyAgentTakeoverCooldown:   &ds.TakeoverCooldownMinutes,
		domain.KeyAgentHistoryLimit:       &ds.HistoryLimit,
	}
}

func (s *SettingsService) List(ctx context.Context) ([]domain.Setting, error) {
	return s.repo.List(ctx)
}
