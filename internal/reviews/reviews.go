// Package reviews implements the purchase-gated review lifecycle: creation
// by verified buyers, public and admin listings, and moderation.
package reviews

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"unicode/utf8"

	"storefront/internal/models"
	"storefront/internal/observability"
)

const MaxCommentLength = 5000

var (
	ErrNotPurchased    = errors.New("reviews: product not purchased")
	ErrAlreadyReviewed = errors.New("reviews: product already reviewed")
	ErrNoCustomerRef   = errors.New("reviews: no customer reference to verify purchase")
)

type PurchaseVerifier interface {
	HasPurchased(ctx context.Context, customerRef, productRef string) bool
}

// Notifier is told about new reviews. Implementations must not block.
type Notifier interface {
	ReviewSubmitted(r *models.Review, author *models.User)
}

type Service struct {
	users    models.UserRepository
	reviews  models.ReviewRepository
	verifier PurchaseVerifier
	notifier Notifier
	logger   *slog.Logger
	obs      *observability.Config
}

type Option func(*Service)

func WithNotifier(n Notifier) Option {
	return func(s *Service) {
		s.notifier = n
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

func WithObservability(cfg *observability.Config) Option {
	return func(s *Service) {
		s.obs = cfg
	}
}

func NewService(users models.UserRepository, reviews models.ReviewRepository, verifier PurchaseVerifier, opts ...Option) *Service {
	s := &Service{
		users:    users,
		reviews:  reviews,
		verifier: verifier,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type CreateInput struct {
	ProductID string `json:"productId"`
	Rating    int    `json:"rating"`
	Comment   string `json:"comment"`
}

func (in *CreateInput) validate() error {
	in.ProductID = strings.TrimSpace(in.ProductID)
	in.Comment = strings.TrimSpace(in.Comment)

	if in.ProductID == "" {
		return models.Invalid("productId", "is required")
	}
	if in.Rating < 1 || in.Rating > 5 {
		return models.Invalid("rating", "must be between 1 and 5")
	}
	if utf8.RuneCountInString(in.Comment) > MaxCommentLength {
		return models.Invalid("comment", "must be at most %d characters", MaxCommentLength)
	}
	return nil
}

// Create stores a pending review by userID for a product they bought.
func (s *Service) Create(ctx context.Context, userID string, in CreateInput) (*models.Review, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	user, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.CustomerRef == "" {
		return nil, ErrNoCustomerRef
	}

	_, err = s.reviews.FindByUserAndProduct(ctx, userID, in.ProductID)
	switch {
	case err == nil:
		return nil, ErrAlreadyReviewed
	case !errors.Is(err, models.ErrNoRecord):
		return nil, err
	}

	if !s.verifier.HasPurchased(ctx, user.CustomerRef, in.ProductID) {
		return nil, ErrNotPurchased
	}

	review := &models.Review{
		UserID:    userID,
		ProductID: in.ProductID,
		Rating:    in.Rating,
		Comment:   in.Comment,
		Status:    models.ReviewPending,
	}
	if err := s.reviews.Insert(ctx, review); err != nil {
		if errors.Is(err, models.ErrDuplicateReview) {
			return nil, ErrAlreadyReviewed
		}
		return nil, err
	}

	s.obs.Metrics().RecordReview(ctx, "created")
	s.logger.Info("review submitted", "review", review.ID, "user", userID, "product", in.ProductID)
	if s.notifier != nil {
		s.notifier.ReviewSubmitted(review, user)
	}
	return review, nil
}

// ListPublic returns the approved reviews of a product, newest first.
func (s *Service) ListPublic(ctx context.Context, productID string) ([]*models.ReviewWithAuthor, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return nil, models.Invalid("productId", "is required")
	}
	return s.reviews.List(ctx, models.ReviewFilter{
		ProductID: productID,
		Statuses:  []models.ReviewStatus{models.ReviewApproved},
	})
}

// AdminFilter narrows the moderation queue. Approved=false matches every
// review that is not approved; Status selects a single state and wins over
// Approved.
type AdminFilter struct {
	Approved  *bool
	Status    *models.ReviewStatus
	ProductID string
}

func (s *Service) ListAdmin(ctx context.Context, f AdminFilter) ([]*models.ReviewWithAuthor, error) {
	filter := models.ReviewFilter{ProductID: f.ProductID}
	switch {
	case f.Status != nil:
		if !f.Status.Valid() {
			return nil, models.Invalid("status", "must be one of PENDING, APPROVED, DENIED")
		}
		filter.Statuses = []models.ReviewStatus{*f.Status}
	case f.Approved != nil && *f.Approved:
		filter.Statuses = []models.ReviewStatus{models.ReviewApproved}
	case f.Approved != nil:
		filter.Statuses = []models.ReviewStatus{models.ReviewPending, models.ReviewDenied}
	}
	return s.reviews.List(ctx, filter)
}

// ListForUser returns every review a user wrote, whatever its status.
func (s *Service) ListForUser(ctx context.Context, userID string) ([]*models.ReviewWithAuthor, error) {
	return s.reviews.List(ctx, models.ReviewFilter{UserID: userID})
}

type ModerateInput struct {
	Approved      *bool                `json:"approved"`
	Status        *models.ReviewStatus `json:"status"`
	AdminResponse *string              `json:"adminResponse"`
}

// Moderate applies only the provided fields. approved=true approves and
// approved=false denies.
func (s *Service) Moderate(ctx context.Context, id string, in ModerateInput) (*models.Review, error) {
	var patch models.ReviewPatch

	switch {
	case in.Status != nil:
		st, ok := models.ParseReviewStatus(string(*in.Status))
		if !ok {
			return nil, models.Invalid("status", "must be one of PENDING, APPROVED, DENIED")
		}
		patch.Status = &st
	case in.Approved != nil:
		st := models.ReviewDenied
		if *in.Approved {
			st = models.ReviewApproved
		}
		patch.Status = &st
	}
	if in.AdminResponse != nil {
		resp := strings.TrimSpace(*in.AdminResponse)
		if utf8.RuneCountInString(resp) > MaxCommentLength {
			return nil, models.Invalid("adminResponse", "must be at most %d characters", MaxCommentLength)
		}
		patch.AdminResponse = &resp
	}
	if patch.Empty() {
		return nil, models.Invalid("", "nothing to update")
	}

	review, err := s.reviews.Update(ctx, id, patch)
	if err != nil {
		return nil, err
	}

	if patch.Status != nil {
		s.obs.Metrics().RecordReview(ctx, strings.ToLower(string(*patch.Status)))
	}
	s.logger.Info("review moderated", "review", id, "status", review.Status)
	return review, nil
}

// Eligibility explains whether a user may review a product. An empty
// userID means an anonymous visitor.
type Eligibility struct {
	CanReview bool
	Reason    string
}

const (
	ReasonSignIn          = "Please log in to leave a review."
	ReasonAlreadyReviewed = "You have already submitted a review for this product."
	ReasonNoCustomer      = "No customer account is linked, so the purchase cannot be verified."
	ReasonNotPurchased    = "Purchase this product to leave a review."
)

func (s *Service) Eligibility(ctx context.Context, userID, productID string) (Eligibility, error) {
	if userID == "" {
		return Eligibility{Reason: ReasonSignIn}, nil
	}

	_, err := s.reviews.FindByUserAndProduct(ctx, userID, productID)
	switch {
	case err == nil:
		return Eligibility{Reason: ReasonAlreadyReviewed}, nil
	case !errors.Is(err, models.ErrNoRecord):
		return Eligibility{}, err
	}

	user, err := s.users.Get(ctx, userID)
	if errors.Is(err, models.ErrNoRecord) {
		return Eligibility{Reason: ReasonSignIn}, nil
	}
	if err != nil {
		return Eligibility{}, err
	}
	if user.CustomerRef == "" {
		return Eligibility{Reason: ReasonNoCustomer}, nil
	}
	if !s.verifier.HasPurchased(ctx, user.CustomerRef, productID) {
		return Eligibility{Reason: ReasonNotPurchased}, nil
	}
	return Eligibility{CanReview: true}, nil
}
