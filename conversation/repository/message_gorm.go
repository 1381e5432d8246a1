package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/AzielCF/az-crm/conversation/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func (r *GormRepository) InsertMessage(ctx context.Context, m *domain.Message) (bool, error) {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	ts := now()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = ts
	}
	m.UpdatedAt = ts
	if m.SentAt.IsZero() {
		m.SentAt = ts
	}
	m.SentAt = m.SentAt.UTC()

	model := toMessageModel(m)
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&model)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *GormRepository) GetMessageByProviderID(ctx context.Context, tenantID, sessionID, providerID string) (*domain.Message, error) {
	var m messageModel
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND session_id = ? AND provider_message_id = ?", tenantID, sessionID, providerID).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrMessageNotFound
		}
		return nil, err
	}
	return fromMessageModel(m), nil
}

func (r *GormRepository) ClaimEcho(ctx context.Context, conversationID, body string, since time.Time, providerID string) (*domain.Message, error) {
	db := r.db.WithContext(ctx)

	var cand messageModel
	err := db.Where("conversation_id = ? AND sender_type = ? AND provider_message_id LIKE ? AND body = ? AND created_at >= ?",
		conversationID, string(domain.SenderAgent), domain.LocalIDPrefix+"%", body, since.UTC()).
		Order("created_at ASC").
		First(&cand).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrMessageNotFound
		}
		return nil, err
	}

	msg := fromMessageModel(cand)
	status := msg.Status
	if domain.CanTransition(status, domain.StatusSent) {
		status = domain.StatusSent
	}
	res := db.Model(&messageModel{}).
		Where("id = ? AND provider_message_id LIKE ?", cand.ID, domain.LocalIDPrefix+"%").
		Updates(map[string]any{"provider_message_id": providerID, "status": string(status), "updated_at": now()})
	if res.Error != nil {
		return nil, fmt.Errorf("claim echo: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, domain.ErrMessageNotFound
	}
	msg.ProviderMessageID = providerID
	msg.Status = status
	return msg, nil
}

func (r *GormRepository) AttachProviderID(ctx context.Context, messageID, providerID string, status domain.MessageStatus) (bool, error) {
	res := r.db.WithContext(ctx).Model(&messageModel{}).
		Where("id = ? AND provider_message_id LIKE ?", messageID, domain.LocalIDPrefix+"%").
		Updates(map[string]any{"provider_message_id": providerID, "status": string(status), "updated_at": now()})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *GormRepository) UpdateMessageStatus(ctx context.Context, messageID string, status domain.MessageStatus) error {
	res := r.db.WithContext(ctx).Model(&messageModel{}).Where("id = ?", messageID).
		Updates(map[string]any{"status": string(status), "updated_at": now()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrMessageNotFound
	}
	return nil
}

func (r *GormRepository) ListMessages(ctx context.Context, tenantID, conversationID string, limit int, before *time.Time) ([]*domain.Message, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	q := r.db.WithContext(ctx).Where("tenant_id = ? AND conversation_id = ?", tenantID, conversationID)
	if before != nil {
		q = q.Where("sent_at < ?", before.UTC())
	}

	var models []messageModel
	if err := q.Order("sent_at DESC, created_at DESC").Limit(limit).Find(&models).Error; err != nil {
		return nil, err
	}

	out := make([]*domain.Message, len(models))
	for i, m := range models {
		out[len(models)-1-i] = fromMessageModel(m)
	}
	return out, nil
}

// Status backlog

func (r *GormRepository) SaveStatusBacklog(ctx context.Context, tenantID, sessionID, providerID string, status domain.MessageStatus) error {
	row := statusBacklogModel{
		TenantID:          tenantID,
		SessionID:         sessionID,
		ProviderMessageID: providerID,
		Status:            string(status),
		CreatedAt:         now(),
	}
	return r.db.WithContext(ctx).Create(&row).Error
}

func (r *GormRepository) PopStatusBacklog(ctx context.Context, tenantID, sessionID, providerID string) ([]domain.MessageStatus, error) {
	var rows []statusBacklogModel
	db := r.db.WithContext(ctx)
	if err := db.Where("tenant_id = ? AND session_id = ? AND provider_message_id = ?", tenantID, sessionID, providerID).
		Order("created_at ASC, id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	ids := make([]uint, 0, len(rows))
	out := make([]domain.MessageStatus, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
		out = append(out, domain.MessageStatus(row.Status))
	}
	if err := db.Where("id IN ?", ids).Delete(&statusBacklogModel{}).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// PurgeStatusBacklog drops backlog rows older than cutoff; their messages never arrived.
func (r *GormRepository) PurgeStatusBacklog(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("created_at < ?", cutoff.UTC()).Delete(&statusBacklogModel{})
	return res.RowsAffected, res.Error
}
