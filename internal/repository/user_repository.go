package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"taskflow/internal/model"
)

// UserRepository handles CRUD for users.
type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// WithTx returns a copy bound to an open transaction.
func (r *UserRepository) WithTx(tx *gorm.DB) *UserRepository {
	return &UserRepository{db: tx}
}

func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return fmt.Errorf("create user: %w", translate(err))
	}
	return nil
}

func (r *UserRepository) FindByID(ctx context.Context, id uint) (*model.User, error) {
	return r.findOne(ctx, "id = ?", id)
}

func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	return r.findOne(ctx, "username = ?", username)
}

// FindByEmail expects an already lowercased address.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.findOne(ctx, "email = ?", email)
}

func (r *UserRepository) FindByTelegramID(ctx context.Context, telegramID int64) (*model.User, error) {
	return r.findOne(ctx, "telegram_id = ?", telegramID)
}

func (r *UserRepository) UsernameExists(ctx context.Context, username string) (bool, error) {
	return r.exists(ctx, "username = ?", username)
}

func (r *UserRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	return r.exists(ctx, "email = ?", email)
}

func (r *UserRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&model.User{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return count, nil
}

// LinkTelegram binds a chat to the user, detaching it from any other account.
func (r *UserRepository) LinkTelegram(ctx context.Context, userID uint, telegramID int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.User{}).
			Where("telegram_id = ? AND id <> ?", telegramID, userID).
			Update("telegram_id", nil).Error; err != nil {
			return fmt.Errorf("unlink telegram: %w", err)
		}
		res := tx.Model(&model.User{}).Where("id = ?", userID).Update("telegram_id", telegramID)
		if res.Error != nil {
			return fmt.Errorf("link telegram: %w", translate(res.Error))
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// DeleteCascade removes the user together with every row that references it.
func (r *UserRepository) DeleteCascade(ctx context.Context, userID uint) (int64, error) {
	var removedTasks int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("user_id = ?", userID).Delete(&model.Task{})
		if res.Error != nil {
			return fmt.Errorf("delete user tasks: %w", res.Error)
		}
		removedTasks = res.RowsAffected

		if err := tx.Where("user_id = ?", userID).Delete(&model.LinkCode{}).Error; err != nil {
			return fmt.Errorf("delete user link codes: %w", err)
		}

		res = tx.Where("id = ?", userID).Delete(&model.User{})
		if res.Error != nil {
			return fmt.Errorf("delete user: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return removedTasks, nil
}

func (r *UserRepository) findOne(ctx context.Context, query string, args ...interface{}) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).Where(query, args...).First(&user).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (r *UserRepository) exists(ctx context.Context, query string, args ...interface{}) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&model.User{}).Where(query, args...).Count(&count).Error; err != nil {
		return false, fmt.Errorf("check user: %w", err)
	}
	return count > 0, nil
}
