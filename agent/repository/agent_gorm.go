package repository

import (
	"context"
	"errors"
	"time"

	"github.com/AzielCF/az-crm/agent/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormRepository implementa domain.Repository usando GORM.
type GormRepository struct {
	db *gorm.DB
}

func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

func (r *GormRepository) GetAgent(ctx context.Context, tenantID, sessionID string) (*domain.Agent, error) {
	var m agentModel
	err := r.db.WithContext(ctx).Where("tenant_id = ? AND session_id = ?", tenantID, sessionID).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrAgentNotFound
	}
	if err != nil {
		return nil, err
	}
	return fromAgentModel(m), nil
}

func (r *GormRepository) SaveAgent(ctx context.Context, a *domain.Agent) error {
	ts := time.Now().UTC()
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = ts
	}
	a.UpdatedAt = ts

	m, err := toAgentModel(a)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "tenant_id"}, {Name: "session_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"provider", "model", "system_prompt", "api_key", "active", "reply_to_groups",
			"debounce_ms", "wait_contact_idle_ms", "min_reply_interval_ms", "max_replies_per_hour",
			"takeover_cooldown_minutes", "history_limit", "updated_at",
		}),
	}).Create(&m).Error
}

func (r *GormRepository) DeleteAgent(ctx context.Context, tenantID, sessionID string) error {
	res := r.db.WithContext(ctx).Where("tenant_id = ? AND session_id = ?", tenantID, sessionID).Delete(&agentModel{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrAgentNotFound
	}
	return nil
}

func (r *GormRepository) SaveDispatchLog(ctx context.Context, l *domain.DispatchLog) error {
	if l.ID == "" {
		l.ID = uuid.New().String()
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}
	m := toDispatchLogModel(l)
	return r.db.WithContext(ctx).Create(&m).Error
}

func (r *GormRepository) ListDispatchLogs(ctx context.Context, tenantID string, conversationIDs []string, limit int) ([]*domain.DispatchLog, error) {
	if len(conversationIDs) == 0 {
		return nil, nil
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var models []dispatchLogModel
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND conversation_id IN ?", tenantID, conversationIDs).
		Order("created_at DESC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	out := make([]*domain.DispatchLog, len(models))
	for i, m := range models {
		out[i] = fromDispatchLogModel(m)
	}
	return out, nil
}
