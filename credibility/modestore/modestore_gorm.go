package modestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/pinokio-social/pinokio/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Stores the mode as a row in the settings table, keyed by SettingKey.
type GormModeStore struct {
	db *gorm.DB
}

var _ ModeStore = (*GormModeStore)(nil)

func NewGormModeStore(db *gorm.DB) *GormModeStore {
	return &GormModeStore{db: db}
}

func (s *GormModeStore) Get(ctx context.Context) (Mode, error) {
	var row models.Setting
	err := s.db.WithContext(ctx).Where(&models.Setting{Key: SettingKey}).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Mode{}, nil
	} else if err != nil {
		return Mode{}, fmt.Errorf("reading moderation mode: %w", err)
	}
	var active bool
	if row.Value != "" {
		if err := json.Unmarshal([]byte(row.Value), &active); err != nil {
			return Mode{}, fmt.Errorf("decoding moderation mode %q: %w", row.Value, err)
		}
	}
	return Mode{Active: active, UpdatedAt: row.UpdatedAt}, nil
}

func (s *GormModeStore) Set(ctx context.Context, active bool, ts time.Time) error {
	b, err := json.Marshal(active)
	if err != nil {
		return err
	}
	row := models.Setting{
		Key:       SettingKey,
		Value:     string(b),
		UpdatedAt: ts,
	}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("writing moderation mode: %w", err)
	}
	return nil
}
