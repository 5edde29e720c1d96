package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"storefront/internal/models"
)

type gormUsers struct {
	db *gorm.DB
}

func (r *gormUsers) Insert(ctx context.Context, u *models.User) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.Role == "" {
		u.Role = models.RoleUser
	}

	err := r.db.WithContext(ctx).Create(u).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return models.ErrDuplicateEmail
	}
	return err
}

func (r *gormUsers) Get(ctx context.Context, id string) (*models.User, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *gormUsers) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.first(ctx, "email = ?", email)
}

func (r *gormUsers) first(ctx context.Context, query string, arg any) (*models.User, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var u models.User
	err := r.db.WithContext(ctx).Where(query, arg).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.ErrNoRecord
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *gormUsers) List(ctx context.Context) ([]*models.User, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var users []*models.User
	err := r.db.WithContext(ctx).Order("email ASC").Find(&users).Error
	return users, err
}

func (r *gormUsers) Update(ctx context.Context, id string, patch models.UserPatch) (*models.User, error) {
	if patch.Empty() {
		return r.Get(ctx, id)
	}

	changes := map[string]any{"updated_at": time.Now()}
	if patch.Name != nil {
		changes["name"] = *patch.Name
	}
	if patch.Email != nil {
		changes["email"] = *patch.Email
	}
	if patch.PasswordHash != nil {
		changes["password_hash"] = *patch.PasswordHash
	}
	if patch.Role != nil {
		changes["role"] = string(*patch.Role)
	}
	if patch.CustomerRef != nil {
		changes["customer_ref"] = *patch.CustomerRef
	}

	uctx, cancel := withTimeout(ctx)
	defer cancel()

	res := r.db.WithContext(uctx).Model(&models.User{}).Where("id = ?", id).Updates(changes)
	if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
		return nil, models.ErrDuplicateEmail
	}
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, models.ErrNoRecord
	}
	return r.Get(ctx, id)
}

// Delete removes the user together with their reviews and reset tokens.
func (r *gormUsers) Delete(ctx context.Context, id string) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var u models.User
		err := tx.Where("id = ?", id).First(&u).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.ErrNoRecord
		}
		if err != nil {
			return err
		}

		if err := tx.Where("user_id = ?", id).Delete(&models.Review{}).Error; err != nil {
			return err
		}
		if err := tx.Where("email = ?", u.Email).Delete(&models.PasswordResetToken{}).Error; err != nil {
			return err
		}
		return tx.Delete(&u).Error
	})
}
