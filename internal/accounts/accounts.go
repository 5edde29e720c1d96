// Package accounts manages local user accounts: registration with a
// matching commerce customer, password authentication and reset, profile
// updates and admin user management.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"

	"storefront/internal/commerce"
	"storefront/internal/mailer"
	"storefront/internal/models"
)

const (
	MinPasswordLength = 8
	DefaultBcryptCost = 12
	DefaultResetTTL   = time.Hour
)

var (
	ErrInvalidToken     = errors.New("accounts: invalid or expired token")
	ErrResetUnavailable = errors.New("accounts: password reset is not configured")
	ErrRemoteCustomer   = errors.New("accounts: commerce customer could not be created")
	ErrSelfDemotion     = errors.New("accounts: cannot remove admin role from yourself")
	ErrSelfDeletion     = errors.New("accounts: cannot delete your own account")
)

// CustomerGateway is the part of the commerce gateway that manages
// customers.
type CustomerGateway interface {
	CustomerCreate(ctx context.Context, in commerce.CustomerInput) (string, error)
	SetCustomerPassword(ctx context.Context, customerID, password string) error
}

type Config struct {
	// BaseURL prefixes links sent by email.
	BaseURL string
	// ResetSecret keys the digest stored for reset tokens. Without it
	// password reset is disabled.
	ResetSecret []byte
	ResetTTL    time.Duration
	BcryptCost  int
	IDs         commerce.IDScheme
}

type Service struct {
	users     models.UserRepository
	tokens    models.ResetTokenRepository
	customers CustomerGateway
	mail      mailer.Mailer
	cfg       Config
	logger    *slog.Logger
	now       func() time.Time
}

type Option func(*Service)

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

func withClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func NewService(users models.UserRepository, tokens models.ResetTokenRepository, customers CustomerGateway, m mailer.Mailer, cfg Config, opts ...Option) *Service {
	if cfg.ResetTTL <= 0 {
		cfg.ResetTTL = DefaultResetTTL
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = DefaultBcryptCost
	}
	if cfg.IDs == (commerce.IDScheme{}) {
		cfg.IDs = commerce.ShopifyIDs
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	s := &Service{
		users:     users,
		tokens:    tokens,
		customers: customers,
		mail:      m,
		cfg:       cfg,
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type RegisterInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register creates the local user and its commerce customer. If the
// customer cannot be created the local user is removed again.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, models.Invalid("name", "is required")
	}
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}
	if err := validatePassword(in.Password); err != nil {
		return nil, err
	}

	_, err = s.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		return nil, models.ErrDuplicateEmail
	case !errors.Is(err, models.ErrNoRecord):
		return nil, err
	}

	hash, err := s.hash(in.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{Name: name, Email: email, PasswordHash: hash, Role: models.RoleUser}
	if err := s.users.Insert(ctx, user); err != nil {
		return nil, err
	}

	first, last := commerce.SplitName(name)
	ref, err := s.customers.CustomerCreate(ctx, commerce.CustomerInput{
		FirstName: first,
		LastName:  last,
		Email:     email,
		Password:  in.Password,
	})
	if err != nil {
		s.logger.Error("commerce customer creation failed, rolling back user", "email", email, "error", err)
		if derr := s.users.Delete(ctx, user.ID); derr != nil {
			s.logger.Error("rollback registered user", "user", user.ID, "error", derr)
		}
		return nil, fmt.Errorf("%w: %w", ErrRemoteCustomer, err)
	}

	linked, err := s.users.Update(ctx, user.ID, models.UserPatch{CustomerRef: &ref})
	if err != nil {
		// The remote customer stays behind; its ref is logged for reconciliation.
		s.logger.Error("link commerce customer failed, rolling back user", "email", email, "customer", ref, "error", err)
		if derr := s.users.Delete(ctx, user.ID); derr != nil {
			s.logger.Error("rollback registered user", "user", user.ID, "error", derr)
		}
		return nil, fmt.Errorf("%w: %w", ErrRemoteCustomer, err)
	}
	user = linked
	s.logger.Info("user registered", "user", user.ID, "customer", ref)
	return user, nil
}

// Authenticate checks an email and password. Accounts without a password
// never authenticate this way.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, models.ErrNoRecord) {
		return nil, models.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !user.HasPassword() {
		return nil, models.ErrInvalidCredentials
	}

	err = bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return nil, models.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

type ProfileInput struct {
	Name     *string `json:"name"`
	Email    *string `json:"email"`
	Password *string `json:"password"`
}

// UpdateProfile changes only the provided fields.
func (s *Service) UpdateProfile(ctx context.Context, userID string, in ProfileInput) (*models.User, error) {
	var patch models.UserPatch

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, models.Invalid("name", "must not be empty")
		}
		patch.Name = &name
	}
	if in.Email != nil {
		email, err := normalizeEmail(*in.Email)
		if err != nil {
			return nil, err
		}
		patch.Email = &email
	}
	if in.Password != nil {
		if err := validatePassword(*in.Password); err != nil {
			return nil, err
		}
		hash, err := s.hash(*in.Password)
		if err != nil {
			return nil, err
		}
		patch.PasswordHash = &hash
	}
	if patch.Empty() {
		return nil, models.Invalid("", "nothing to update")
	}

	return s.users.Update(ctx, userID, patch)
}

func (s *Service) ListUsers(ctx context.Context) ([]*models.User, error) {
	return s.users.List(ctx)
}

func (s *Service) GetUser(ctx context.Context, id string) (*models.User, error) {
	return s.users.Get(ctx, id)
}

// ChangeRole sets a user's role on behalf of actorID. Admins cannot demote
// themselves.
func (s *Service) ChangeRole(ctx context.Context, actorID, id string, role models.Role) (*models.User, error) {
	if !role.Valid() {
		return nil, models.Invalid("role", "invalid role specified")
	}
	if actorID == id && role != models.RoleAdmin {
		return nil, ErrSelfDemotion
	}

	user, err := s.users.Update(ctx, id, models.UserPatch{Role: &role})
	if err != nil {
		return nil, err
	}
	s.logger.Info("user role changed", "user", id, "role", role, "by", actorID)
	return user, nil
}

func (s *Service) DeleteUser(ctx context.Context, actorID, id string) error {
	if actorID == id {
		return ErrSelfDeletion
	}
	if err := s.users.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("user deleted", "user", id, "by", actorID)
	return nil
}

// PromoteAdmin grants the admin role to the account with email.
func (s *Service) PromoteAdmin(ctx context.Context, email string) (*models.User, error) {
	user, err := s.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, err
	}
	if user.Role == models.RoleAdmin {
		return user, nil
	}
	role := models.RoleAdmin
	return s.users.Update(ctx, user.ID, models.UserPatch{Role: &role})
}

func (s *Service) hash(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.BcryptCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", models.Invalid("email", "is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", models.Invalid("email", "is not a valid address")
	}
	return email, nil
}

func validatePassword(pw string) error {
	if utf8.RuneCountInString(pw) < MinPasswordLength {
		return models.Invalid("password", "must be at least %d characters", MinPasswordLength)
	}
	// bcrypt ignores everything past 72 bytes.
	if len(pw) > 72 {
		return models.Invalid("password", "must be at most 72 bytes")
	}
	return nil
}
