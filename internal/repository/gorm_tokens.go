package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"storefront/internal/models"
)

type gormTokens struct {
	db *gorm.DB
}

func (r *gormTokens) Insert(ctx context.Context, t *models.PasswordResetToken) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return r.db.WithContext(ctx).Create(t).Error
}

func (r *gormTokens) GetByTokenHash(ctx context.Context, hash string) (*models.PasswordResetToken, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var t models.PasswordResetToken
	err := r.db.WithContext(ctx).Where("token_hash = ?", hash).First(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.ErrNoRecord
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *gormTokens) DeleteByEmail(ctx context.Context, email string) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	return r.db.WithContext(ctx).Where("email = ?", email).Delete(&models.PasswordResetToken{}).Error
}

func (r *gormTokens) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	res := r.db.WithContext(ctx).Where("expires_at <= ?", now).Delete(&models.PasswordResetToken{})
	return res.RowsAffected, res.Error
}

// sessionRecord is the scs session row.
type sessionRecord struct {
	Token  string    `gorm:"primaryKey;size:64"`
	Data   []byte    `gorm:"not null"`
	Expiry time.Time `gorm:"not null;index"`
}

func (sessionRecord) TableName() string { return "sessions" }

type gormSessions struct {
	db  *gorm.DB
	now func() time.Time
}

func (s *gormSessions) Find(token string) ([]byte, bool, error) {
	return s.FindCtx(context.Background(), token)
}

func (s *gormSessions) Commit(token string, b []byte, expiry time.Time) error {
	return s.CommitCtx(context.Background(), token, b, expiry)
}

func (s *gormSessions) Delete(token string) error {
	return s.DeleteCtx(context.Background(), token)
}

func (s *gormSessions) FindCtx(ctx context.Context, token string) ([]byte, bool, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var rec sessionRecord
	err := s.db.WithContext(ctx).Where("token = ? AND expiry > ?", token, s.now()).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return rec.Data, true, nil
}

func (s *gormSessions) CommitCtx(ctx context.Context, token string, b []byte, expiry time.Time) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	rec := sessionRecord{Token: token, Data: b, Expiry: expiry}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "token"}},
		DoUpdates: clause.AssignmentColumns([]string{"data", "expiry"}),
	}).Create(&rec).Error
}

func (s *gormSessions) DeleteCtx(ctx context.Context, token string) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	return s.db.WithContext(ctx).Where("token = ?", token).Delete(&sessionRecord{}).Error
}

func (s *gormSessions) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	res := s.db.WithContext(ctx).Where("expiry <= ?", now).Delete(&sessionRecord{})
	return res.RowsAffected, res.Error
}
