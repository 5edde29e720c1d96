// Package auth resolves the caller's identity and role from the scs session.
package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/alexedwards/scs/v2"

	"storefront/internal/models"
)

// Session keys.
const (
	keyUserID        = "authenticatedUserID"
	keyEmail         = "userEmail"
	keyRole          = "userRole"
	keyRoleCheckedAt = "roleCheckedAt"
	keyFlash         = "flash"
)

const DefaultRoleTTL = 5 * time.Minute

type Identity struct {
	UserID string
	Email  string
	Role   models.Role
}

func (i Identity) IsAdmin() bool {
	return i.Role == models.RoleAdmin
}

type UserLookup interface {
	Get(ctx context.Context, id string) (*models.User, error)
}

type Gate struct {
	sessions *scs.SessionManager
	users    UserLookup
	roleTTL  time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

type Option func(*Gate)

// WithRoleTTL sets how long a role cached in the session is trusted. Zero
// or less trusts it until the session ends.
func WithRoleTTL(d time.Duration) Option {
	return func(g *Gate) {
		g.roleTTL = d
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(g *Gate) {
		g.logger = l
	}
}

func withClock(now func() time.Time) Option {
	return func(g *Gate) {
		g.now = now
	}
}

func NewGate(sessions *scs.SessionManager, users UserLookup, opts ...Option) *Gate {
	g := &Gate{
		sessions: sessions,
		users:    users,
		roleTTL:  DefaultRoleTTL,
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// LoadAndSave is the scs middleware that must wrap every route using the
// gate.
func (g *Gate) LoadAndSave(next http.Handler) http.Handler {
	return g.sessions.LoadAndSave(next)
}

// Identity resolves the signed-in user. The cached role is re-read from
// the account store when it is missing or older than the role TTL; a
// session whose user no longer exists is destroyed.
func (g *Gate) Identity(ctx context.Context) (Identity, bool) {
	userID := g.sessions.GetString(ctx, keyUserID)
	if userID == "" {
		return Identity{}, false
	}

	id := Identity{
		UserID: userID,
		Email:  g.sessions.GetString(ctx, keyEmail),
		Role:   models.Role(g.sessions.GetString(ctx, keyRole)),
	}
	if id.Role.Valid() && !g.roleStale(ctx) {
		return id, true
	}

	user, err := g.users.Get(ctx, userID)
	switch {
	case errors.Is(err, models.ErrNoRecord):
		g.logger.Warn("session refers to a deleted user", "user", userID)
		if err := g.sessions.Destroy(ctx); err != nil {
			g.logger.Error("destroy session", "error", err)
		}
		return Identity{}, false
	case err != nil:
		g.logger.Error("refresh session role", "user", userID, "error", err)
		if id.Role.Valid() {
			return id, true
		}
		return Identity{}, false
	}

	g.store(ctx, user)
	return Identity{UserID: user.ID, Email: user.Email, Role: user.Role}, true
}

func (g *Gate) roleStale(ctx context.Context) bool {
	if g.roleTTL <= 0 {
		return false
	}
	checked := time.Unix(g.sessions.GetInt64(ctx, keyRoleCheckedAt), 0)
	return g.now().Sub(checked) >= g.roleTTL
}

// Login starts an authenticated session for user under a fresh token.
func (g *Gate) Login(ctx context.Context, user *models.User) error {
	if err := g.sessions.RenewToken(ctx); err != nil {
		return err
	}
	g.sessions.Put(ctx, keyUserID, user.ID)
	g.store(ctx, user)
	return nil
}

// Refresh rewrites the cached identity after the user record changed.
func (g *Gate) Refresh(ctx context.Context, user *models.User) {
	if g.sessions.GetString(ctx, keyUserID) != user.ID {
		return
	}
	g.store(ctx, user)
}

func (g *Gate) Logout(ctx context.Context) error {
	return g.sessions.Destroy(ctx)
}

func (g *Gate) store(ctx context.Context, user *models.User) {
	g.sessions.Put(ctx, keyEmail, user.Email)
	g.sessions.Put(ctx, keyRole, string(user.Role))
	g.sessions.Put(ctx, keyRoleCheckedAt, g.now().Unix())
}

// Flash stores a one-time message shown on the next rendered page.
func (g *Gate) Flash(ctx context.Context, msg string) {
	g.sessions.Put(ctx, keyFlash, msg)
}

func (g *Gate) PopFlash(ctx context.Context) string {
	return g.sessions.PopString(ctx, keyFlash)
}
