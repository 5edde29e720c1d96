package models

import (
	"strings"
	"time"
)

type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// ReviewStatus separates "awaiting moderation" from "explicitly denied".
type ReviewStatus string

const (
	ReviewPending  ReviewStatus = "PENDING"
	ReviewApproved ReviewStatus = "APPROVED"
	ReviewDenied   ReviewStatus = "DENIED"
)

func (s ReviewStatus) Valid() bool {
	switch s {
	case ReviewPending, ReviewApproved, ReviewDenied:
		return true
	}
	return false
}

// ParseReviewStatus accepts the status name in any case.
func ParseReviewStatus(s string) (ReviewStatus, bool) {
	st := ReviewStatus(strings.ToUpper(strings.TrimSpace(s)))
	return st, st.Valid()
}

// User is a local account. PasswordHash is empty for accounts created
// through a federated provider; CustomerRef is the commerce platform's
// opaque customer identifier.
type User struct {
	ID           string    `gorm:"primaryKey;size:36" bson:"_id" json:"id"`
	Name         string    `gorm:"size:128" bson:"name" json:"name"`
	Email        string    `gorm:"uniqueIndex;size:191;not null" bson:"email" json:"email"`
	PasswordHash string    `gorm:"size:255" bson:"password_hash,omitempty" json:"-"`
	Role         Role      `gorm:"size:16;not null;default:USER" bson:"role" json:"role"`
	CustomerRef  string    `gorm:"size:191" bson:"customer_ref,omitempty" json:"customerRef,omitempty"`
	CreatedAt    time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt    time.Time `bson:"updated_at" json:"updatedAt"`
}

func (u *User) HasPassword() bool {
	return u.PasswordHash != ""
}

// DisplayName falls back to the email when no name was given.
func (u *User) DisplayName() string {
	if strings.TrimSpace(u.Name) != "" {
		return u.Name
	}
	return u.Email
}

type Review struct {
	ID            string       `gorm:"primaryKey;size:36" bson:"_id"`
	UserID        string       `gorm:"size:36;not null;uniqueIndex:idx_reviews_user_product" bson:"user_id"`
	ProductID     string       `gorm:"size:191;not null;uniqueIndex:idx_reviews_user_product;index" bson:"product_id"`
	Rating        int          `gorm:"not null" bson:"rating"`
	Comment       string       `gorm:"type:text" bson:"comment,omitempty"`
	Status        ReviewStatus `gorm:"size:16;not null;default:PENDING;index" bson:"status"`
	AdminResponse *string      `gorm:"type:text" bson:"admin_response,omitempty"`
	CreatedAt     time.Time    `gorm:"index" bson:"created_at"`
	UpdatedAt     time.Time    `bson:"updated_at"`
}

func (r *Review) Approved() bool {
	return r.Status == ReviewApproved
}

// ReviewWithAuthor is a review joined with the minimal author fields shown
// next to it.
type ReviewWithAuthor struct {
	Review
	AuthorName  string
	AuthorEmail string
}

func (r *ReviewWithAuthor) AuthorDisplayName() string {
	if strings.TrimSpace(r.AuthorName) != "" {
		return r.AuthorName
	}
	return r.AuthorEmail
}

// PasswordResetToken stores a keyed digest of the token mailed to the user,
// never the token itself.
type PasswordResetToken struct {
	ID        string    `gorm:"primaryKey;size:36" bson:"_id"`
	Email     string    `gorm:"size:191;not null;index" bson:"email"`
	TokenHash string    `gorm:"uniqueIndex;size:128;not null" bson:"token_hash"`
	ExpiresAt time.Time `gorm:"not null;index" bson:"expires_at"`
	CreatedAt time.Time `bson:"created_at"`
}

func (t *PasswordResetToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}
