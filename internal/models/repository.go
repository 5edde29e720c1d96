package models

import (
	"context"
	"time"
)

// UserPatch lists the user fields to change; nil fields are left untouched.
type UserPatch struct {
	Name         *string
	Email        *string
	PasswordHash *string
	Role         *Role
	CustomerRef  *string
}

func (p UserPatch) Empty() bool {
	return p.Name == nil && p.Email == nil && p.PasswordHash == nil && p.Role == nil && p.CustomerRef == nil
}

// ReviewPatch lists the moderation fields to change; nil fields are left
// untouched.
type ReviewPatch struct {
	Status        *ReviewStatus
	AdminResponse *string
}

func (p ReviewPatch) Empty() bool {
	return p.Status == nil && p.AdminResponse == nil
}

// ReviewFilter narrows a review listing. Empty fields match everything.
// Results are always ordered newest first.
type ReviewFilter struct {
	ProductID string
	UserID    string
	Statuses  []ReviewStatus
}

type UserRepository interface {
	Insert(ctx context.Context, u *User) error
	Get(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	List(ctx context.Context) ([]*User, error)
	Update(ctx context.Context, id string, patch UserPatch) (*User, error)
	Delete(ctx context.Context, id string) error
}

type ReviewRepository interface {
	Insert(ctx context.Context, r *Review) error
	Get(ctx context.Context, id string) (*Review, error)
	FindByUserAndProduct(ctx context.Context, userID, productID string) (*Review, error)
	List(ctx context.Context, filter ReviewFilter) ([]*ReviewWithAuthor, error)
	Update(ctx context.Context, id string, patch ReviewPatch) (*Review, error)
}

type ResetTokenRepository interface {
	Insert(ctx context.Context, t *PasswordResetToken) error
	GetByTokenHash(ctx context.Context, hash string) (*PasswordResetToken, error)
	DeleteByEmail(ctx context.Context, email string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
