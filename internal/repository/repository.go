// Package repository implements the local account store on either a
// relational database (gorm: postgres or sqlite) or MongoDB. Both backends
// also persist HTTP session data for scs.
package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alexedwards/scs/v2"

	"storefront/internal/models"
)

// queryTimeout bounds every single store round trip.
const queryTimeout = 5 * time.Second

// SessionStore is an scs store that can also be pruned.
type SessionStore interface {
	scs.Store
	scs.CtxStore
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// Store bundles the repositories that share one process-wide connection.
type Store struct {
	Backend  string
	Users    models.UserRepository
	Reviews  models.ReviewRepository
	Tokens   models.ResetTokenRepository
	Sessions SessionStore

	close func(ctx context.Context) error
}

type Options struct {
	// MongoDatabase names the database used when the DSN is a mongodb URI.
	MongoDatabase string
	Logger        *slog.Logger
}

// Open picks a backend from the DSN scheme: postgres:// or postgresql://,
// sqlite:<path> (sqlite::memory: for an in-memory database), or
// mongodb:// and mongodb+srv://.
func Open(ctx context.Context, dsn string, opts Options) (*Store, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	switch {
	case strings.HasPrefix(dsn, "mongodb://"), strings.HasPrefix(dsn, "mongodb+srv://"):
		return OpenMongo(ctx, dsn, opts)
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return OpenPostgres(dsn, opts)
	case strings.HasPrefix(dsn, "sqlite:"):
		return OpenSQLite(strings.TrimPrefix(dsn, "sqlite:"), opts)
	case dsn == "":
		return nil, errors.New("repository: empty DATABASE_URL")
	}

	scheme, _, _ := strings.Cut(dsn, ":")
	return nil, fmt.Errorf("repository: unsupported DATABASE_URL scheme %q", scheme)
}

// Prune removes expired sessions and password reset tokens.
func (s *Store) Prune(ctx context.Context, now time.Time) (sessions, tokens int64, err error) {
	sessions, err = s.Sessions.DeleteExpired(ctx, now)
	if err != nil {
		return 0, 0, fmt.Errorf("prune sessions: %w", err)
	}
	tokens, err = s.Tokens.DeleteExpired(ctx, now)
	if err != nil {
		return sessions, 0, fmt.Errorf("prune reset tokens: %w", err)
	}
	return sessions, tokens, nil
}

func (s *Store) Close(ctx context.Context) error {
	if s == nil || s.close == nil {
		return nil
	}
	return s.close(ctx)
}
