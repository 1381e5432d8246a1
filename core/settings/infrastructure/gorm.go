package infrastructure

import (
	"context"
	"errors"
	"strings"

	"github.com/AzielCF/az-crm/core/settings/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GlobalSettingModel struct {
	Key   string `gorm:"primaryKey;column:key;size:120"`
	Value string `gorm:"column:value;type:text"`
}

func (GlobalSettingModel) TableName() string {
	return "global_settings"
}

func Models() []any {
	return []any{&GlobalSettingModel{}}
}

type GlobalSettingsGormRepository struct {
	db *gorm.DB
}

func NewGlobalSettingsGormRepository(db *gorm.DB) *GlobalSettingsGormRepository {
	return &GlobalSettingsGormRepository{db: db}
}

// Get devuelve "" cuando la clave no existe.
func (r *GlobalSettingsGormRepository) Get(ctx context.Context, key string) (string, error) {
	var m GlobalSettingModel
	if err := r.db.WithContext(ctx).First(&m, "key = ?", key).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(m.Value), nil
}

func (r *GlobalSettingsGormRepository) Set(ctx context.Context, key string, value string) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(&GlobalSettingModel{Key: key, Value: value}).Error
}

func (r *GlobalSettingsGormRepository) Delete(ctx context.Context, key string) error {
	return r.db.WithContext(ctx).Delete(&GlobalSettingModel{}, "key = ?", key).Error
}

func (r *GlobalSettingsGormRepository) List(ctx context.Context) ([]domain.Setting, error) {
	var models []GlobalSettingModel
	if err := r.db.WithContext(ctx).Order("key").Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Setting, 0, len(models))
	for _, m := range models {
		out = append(out, domain.Setting{Key: m.Key, Value: m.Value})
	}
	return out, nil
}
