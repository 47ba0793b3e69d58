package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"taskflow/internal/model"
)

// LinkCodeRepository stores one-time Telegram link codes.
type LinkCodeRepository struct {
	db *gorm.DB
}

func NewLinkCodeRepository(db *gorm.DB) *LinkCodeRepository {
	return &LinkCodeRepository{db: db}
}

// Replace drops the user's previous and any expired codes, then stores code.
func (r *LinkCodeRepository) Replace(ctx context.Context, code *model.LinkCode, now time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ? OR expires_at <= ?", code.UserID, now).
			Delete(&model.LinkCode{}).Error; err != nil {
			return fmt.Errorf("prune link codes: %w", err)
		}
		if err := tx.Create(code).Error; err != nil {
			return fmt.Errorf("create link code: %w", translate(err))
		}
		return nil
	})
}

// Consume deletes the code and returns it. Expiry is left to the caller.
func (r *LinkCodeRepository) Consume(ctx context.Context, code string) (*model.LinkCode, error) {
	var found model.LinkCode
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("code = ?", code).First(&found).Error; err != nil {
			return translate(err)
		}
		if err := tx.Delete(&found).Error; err != nil {
			return fmt.Errorf("consume link code: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &found, nil
}
