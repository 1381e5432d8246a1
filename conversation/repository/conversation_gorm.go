package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/AzielCF/az-crm/conversation/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// --- Repository Implementation ---

type GormRepository struct {
	db *gorm.DB
}

func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

func (r *GormRepository) Transaction(ctx context.Context, fn func(tx domain.Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormRepository{db: tx})
	})
}

func isDuplicate(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "duplicate key value")
}

func now() time.Time {
	return time.Now().UTC()
}

// Sessions

func (r *GormRepository) CreateSession(ctx context.Context, s *domain.Session) error {
	ts := now()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = ts
	}
	s.UpdatedAt = ts
	if s.Status == "" {
		s.Status = domain.SessionPending
	}

	m := toSessionModel(s)
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		if isDuplicate(err) {
			return domain.ErrDuplicateSession
		}
		return err
	}
	return nil
}

func (r *GormRepository) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	var m sessionModel
	if err := r.db.WithContext(ctx).First(&m, "id = ?", sessionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, err
	}
	return fromSessionModel(m), nil
}

func (r *GormRepository) ListSessions(ctx context.Context, tenantID string) ([]*domain.Session, error) {
	var models []sessionModel
	if err := r.db.WithContext(ctx).Where("tenant_id = ?", tenantID).Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]*domain.Session, 0, len(models))
	for _, m := range models {
		out = append(out, fromSessionModel(m))
	}
	return out, nil
}

func (r *GormRepository) UpdateSession(ctx context.Context, s *domain.Session) error {
	s.UpdatedAt = now()
	m := toSessionModel(s)
	res := r.db.WithContext(ctx).Model(&sessionModel{ID: s.ID}).Select("*").Omit("created_at").Updates(&m)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrSessionNotFound
	}
	return nil
}

// Conversations

func (r *GormRepository) CreateConversation(ctx context.Context, c *domain.Conversation, keys []string) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	ts := now()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = ts
	}
	c.UpdatedAt = ts

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		m := toConversationModel(c)
		if err := tx.Create(&m).Error; err != nil {
			return err
		}
		for _, k := range keys {
			alias := aliasModel{TenantID: c.TenantID, SessionID: c.SessionID, Key: k, ConversationID: c.ID, CreatedAt: ts}
			if err := tx.Create(&alias).Error; err != nil {
				if isDuplicate(err) {
					return fmt.Errorf("%w: %s", domain.ErrDuplicateAlias, k)
				}
				return err
			}
		}
		return nil
	})
}

func (r *GormRepository) GetConversation(ctx context.Context, tenantID, id string) (*domain.Conversation, error) {
	var m conversationModel
	if err := r.db.WithContext(ctx).Where("tenant_id = ? AND id = ?", tenantID, id).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrConversationNotFound
		}
		return nil, err
	}
	return fromConversationModel(m), nil
}

func (r *GormRepository) FindByAliases(ctx context.Context, tenantID, sessionID string, keys []string) ([]*domain.Conversation, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	db := r.db.WithContext(ctx)
	owners := db.Model(&aliasModel{}).
		Select("conversation_id").
		Where("tenant_id = ? AND session_id = ? AND alias_key IN ?", tenantID, sessionID, keys)

	var models []conversationModel
	err := db.Where("id IN (?)", owners).
		Where("status <> ?", string(domain.ConversationMerged)).
		Order("created_at ASC, id ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return fromConversationModels(models), nil
}

func (r *GormRepository) AddAliases(ctx context.Context, c *domain.Conversation, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	ts := now()
	rows := make([]aliasModel, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, aliasModel{TenantID: c.TenantID, SessionID: c.SessionID, Key: k, ConversationID: c.ID, CreatedAt: ts})
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error
}

func (r *GormRepository) ListAliases(ctx context.Context, conversationID string) ([]string, error) {
	var keys []string
	err := r.db.WithContext(ctx).Model(&aliasModel{}).
		Where("conversation_id = ?", conversationID).
		Order("alias_key ASC").
		Pluck("alias_key", &keys).Error
	return keys, err
}

// UpdateConversation guarda identidad y estado. Los contadores y last_message_*
// se mantienen con TouchConversation y MergeInto para no pisar escrituras concurrentes.
func (r *GormRepository) UpdateConversation(ctx context.Context, c *domain.Conversation) error {
	c.UpdatedAt = now()
	res := r.db.WithContext(ctx).Model(&conversationModel{}).Where("id = ?", c.ID).Updates(map[string]any{
		"status":         string(c.Status),
		"remote_jid":     c.RemoteJID,
		"phone":          c.Phone,
		"lid":            c.LID,
		"contact_name":   c.ContactName,
		"agent_enabled":  c.AgentEnabled,
		"takeover_at":    c.TakeoverAt,
		"takeover_by":    c.TakeoverBy,
		"merged_into_id": c.MergedIntoID,
		"updated_at":     c.UpdatedAt,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrConversationNotFound
	}
	return nil
}

func (r *GormRepository) ListConversations(ctx context.Context, tenantID string, filter domain.ConversationFilter) ([]*domain.Conversation, error) {
	q := r.db.WithContext(ctx).Where("tenant_id = ?", tenantID)
	if filter.SessionID != "" {
		q = q.Where("session_id = ?", filter.SessionID)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", string(filter.Status))
	} else {
		q = q.Where("status <> ?", string(domain.ConversationMerged))
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		like := "%" + s + "%"
		q = q.Where("contact_name LIKE ? OR phone LIKE ? OR remote_jid LIKE ?", like, like, like)
	}
	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	var models []conversationModel
	err := q.Order("CASE WHEN last_message_at IS NULL THEN 1 ELSE 0 END, last_message_at DESC, created_at DESC").
		Limit(limit).Offset(filter.Offset).
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return fromConversationModels(models), nil
}

func (r *GormRepository) ListLiveConversations(ctx context.Context, tenantID, sessionID string) ([]*domain.Conversation, error) {
	var models []conversationModel
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND session_id = ? AND status <> ?", tenantID, sessionID, string(domain.ConversationMerged)).
		Order("created_at ASC, id ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return fromConversationModels(models), nil
}

func (r *GormRepository) MergedIDs(ctx context.Context, tenantID, survivorID string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&conversationModel{}).
		Where("tenant_id = ? AND merged_into_id = ?", tenantID, survivorID).
		Order("created_at ASC").
		Pluck("id", &ids).Error
	return ids, err
}

func (r *GormRepository) MergeInto(ctx context.Context, survivorID string, duplicateIDs []string) error {
	if len(duplicateIDs) == 0 {
		return nil
	}
	ts := now()
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var extra struct{ Total int }
		if err := tx.Model(&conversationModel{}).
			Select("COALESCE(SUM(unread_count), 0) AS total").
			Where("id IN ?", duplicateIDs).
			Scan(&extra).Error; err != nil {
			return err
		}

		if err := tx.Model(&messageModel{}).Where("conversation_id IN ?", duplicateIDs).
			Update("conversation_id", survivorID).Error; err != nil {
			return fmt.Errorf("move messages: %w", err)
		}
		if err := tx.Model(&aliasModel{}).Where("conversation_id IN ?", duplicateIDs).
			Update("conversation_id", survivorID).Error; err != nil {
			return fmt.Errorf("move aliases: %w", err)
		}
		// Cadenas antiguas: lo que apuntaba a un duplicado ahora apunta al superviviente.
		if err := tx.Model(&conversationModel{}).Where("merged_into_id IN ?", duplicateIDs).
			Update("merged_into_id", survivorID).Error; err != nil {
			return err
		}
		if err := tx.Model(&conversationModel{}).Where("id IN ?", duplicateIDs).Updates(map[string]any{
			"status":         string(domain.ConversationMerged),
			"merged_into_id": survivorID,
			"unread_count":   0,
			"updated_at":     ts,
		}).Error; err != nil {
			return err
		}

		updates := map[string]any{
			"unread_count": gorm.Expr("unread_count + ?", extra.Total),
			"updated_at":   ts,
		}
		var last messageModel
		err := tx.Where("conversation_id = ?", survivorID).Order("sent_at DESC, created_at DESC").First(&last).Error
		switch {
		case err == nil:
			msg := fromMessageModel(last)
			updates["last_message_id"] = msg.ID
			updates["last_message_at"] = msg.SentAt
			updates["last_message_preview"] = msg.Preview()
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}
		return tx.Model(&conversationModel{}).Where("id = ?", survivorID).Updates(updates).Error
	})
}

func (r *GormRepository) TouchConversation(ctx context.Context, conversationID string, m *domain.Message) error {
	db := r.db.WithContext(ctx)
	ts := m.SentAt.UTC()

	// last_message_* solo avanza: un webhook atrasado no reemplaza al más reciente.
	if err := db.Model(&conversationModel{}).
		Where("id = ? AND (last_message_at IS NULL OR last_message_at <= ?)", conversationID, ts).
		Updates(map[string]any{
			"last_message_id":      m.ID,
			"last_message_at":      ts,
			"last_message_preview": m.Preview(),
		}).Error; err != nil {
		return err
	}

	updates := map[string]any{"updated_at": now()}
	switch {
	case m.Direction == domain.DirectionInbound:
		updates["unread_count"] = gorm.Expr("unread_count + 1")
		updates["status"] = gorm.Expr("CASE WHEN status = ? THEN ? ELSE status END",
			string(domain.ConversationClosed), string(domain.ConversationOpen))
	case m.SenderType == domain.SenderUser:
		updates["unread_count"] = 0
	}
	return db.Model(&conversationModel{}).Where("id = ?", conversationID).Updates(updates).Error
}

func fromConversationModels(models []conversationModel) []*domain.Conversation {
	out := make([]*domain.Conversation, 0, len(models))
	for _, m := range models {
		out = append(out, fromConversationModel(m))
	}
	return out
}
