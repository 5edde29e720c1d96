package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"storefront/internal/models"
)

type gormReviews struct {
	db *gorm.DB
}

// reviewRow is the flat shape of the reviews/users join.
type reviewRow struct {
	ID            string
	UserID        string
	ProductID     string
	Rating        int
	Comment       string
	Status        models.ReviewStatus
	AdminResponse *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	AuthorName    string
	AuthorEmail   string
}

func (r *gormReviews) Insert(ctx context.Context, rev *models.Review) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	if rev.ID == "" {
		rev.ID = uuid.NewString()
	}
	if rev.Status == "" {
		rev.Status = models.ReviewPending
	}

	err := r.db.WithContext(ctx).Create(rev).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return models.ErrDuplicateReview
	}
	return err
}

func (r *gormReviews) Get(ctx context.Context, id string) (*models.Review, error) {
	return r.first(ctx, r.db.Where("id = ?", id))
}

func (r *gormReviews) FindByUserAndProduct(ctx context.Context, userID, productID string) (*models.Review, error) {
	return r.first(ctx, r.db.Where("user_id = ? AND product_id = ?", userID, productID))
}

func (r *gormReviews) first(ctx context.Context, q *gorm.DB) (*models.Review, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var rev models.Review
	err := q.WithContext(ctx).First(&rev).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.ErrNoRecord
	}
	if err != nil {
		return nil, err
	}
	return &rev, nil
}

func (r *gormReviews) List(ctx context.Context, f models.ReviewFilter) ([]*models.ReviewWithAuthor, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	q := r.db.WithContext(ctx).
		Table("reviews").
		Select(`reviews.id, reviews.user_id, reviews.product_id, reviews.rating, reviews.comment,
			reviews.status, reviews.admin_response, reviews.created_at, reviews.updated_at,
			COALESCE(users.name, '') AS author_name, COALESCE(users.email, '') AS author_email`).
		Joins("LEFT JOIN users ON users.id = reviews.user_id")

	if f.ProductID != "" {
		q = q.Where("reviews.product_id = ?", f.ProductID)
	}
	if f.UserID != "" {
		q = q.Where("reviews.user_id = ?", f.UserID)
	}
	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			statuses[i] = string(s)
		}
		q = q.Where("reviews.status IN ?", statuses)
	}

	var rows []reviewRow
	if err := q.Order("reviews.created_at DESC").Order("reviews.id DESC").Scan(&rows).Error; err != nil {
		return nil, err
	}

	out := make([]*models.ReviewWithAuthor, 0, len(rows))
	for _, row := range rows {
		out = append(out, &models.ReviewWithAuthor{
			Review: models.Review{
				ID:            row.ID,
				UserID:        row.UserID,
				ProductID:     row.ProductID,
				Rating:        row.Rating,
				Comment:       row.Comment,
				Status:        row.Status,
				AdminResponse: row.AdminResponse,
				CreatedAt:     row.CreatedAt,
				UpdatedAt:     row.UpdatedAt,
			},
			AuthorName:  row.AuthorName,
			AuthorEmail: row.AuthorEmail,
		})
	}
	return out, nil
}

func (r *gormReviews) Update(ctx context.Context, id string, patch models.ReviewPatch) (*models.Review, error) {
	if patch.Empty() {
		return r.Get(ctx, id)
	}

	changes := map[string]any{"updated_at": time.Now()}
	if patch.Status != nil {
		changes["status"] = string(*patch.Status)
	}
	if patch.AdminResponse != nil {
		changes["admin_response"] = *patch.AdminResponse
	}

	uctx, cancel := withTimeout(ctx)
	defer cancel()

	res := r.db.WithContext(uctx).Model(&models.Review{}).Where("id = ?", id).Updates(changes)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, models.ErrNoRecord
	}
	return r.Get(ctx, id)
}
