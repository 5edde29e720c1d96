package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), "sqlite::memory:", Options{})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close(context.Background()) })
	return store
}

func insertUser(t *testing.T, s *Store, email string) *models.User {
	t.Helper()
	u := &models.User{Name: "Test " + email, Email: email, PasswordHash: "hash"}
	require.NoError(t, s.Users.Insert(context.Background(), u))
	return u
}

func TestOpenRejectsUnknownScheme(t *testing.T) {
	_, err := Open(context.Background(), "mysql://localhost/db", Options{})
	assert.ErrorContains(t, err, `"mysql"`)

	_, err = Open(context.Background(), "", Options{})
	assert.Error(t, err)
}

func TestUsersInsertAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := insertUser(t, s, "a@example.com")
	assert.NotEmpty(t, u.ID)
	assert.Equal(t, models.RoleUser, u.Role)

	got, err := s.Users.Get(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", got.Email)

	got, err = s.Users.GetByEmail(ctx, "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = s.Users.Get(ctx, "missing")
	assert.ErrorIs(t, err, models.ErrNoRecord)
}

func TestUsersDuplicateEmail(t *testing.T) {
	s := newTestStore(t)
	insertUser(t, s, "dup@example.com")

	err := s.Users.Insert(context.Background(), &models.User{Email: "dup@example.com"})
	assert.ErrorIs(t, err, models.ErrDuplicateEmail)
}

func TestUsersUpdate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u := insertUser(t, s, "b@example.com")

	name := "Bea"
	role := models.RoleAdmin
	got, err := s.Users.Update(ctx, u.ID, models.UserPatch{Name: &name, Role: &role})
	require.NoError(t, err)
	assert.Equal(t, "Bea", got.Name)
	assert.Equal(t, models.RoleAdmin, got.Role)
	assert.Equal(t, "hash", got.PasswordHash)

	_, err = s.Users.Update(ctx, "missing", models.UserPatch{Name: &name})
	assert.ErrorIs(t, err, models.ErrNoRecord)

	other := insertUser(t, s, "c@example.com")
	taken := "b@example.com"
	_, err = s.Users.Update(ctx, other.ID, models.UserPatch{Email: &taken})
	assert.ErrorIs(t, err, models.ErrDuplicateEmail)
}

func TestUsersListOrderedByEmail(t *testing.T) {
	s := newTestStore(t)
	insertUser(t, s, "z@example.com")
	insertUser(t, s, "m@example.com")
	insertUser(t, s, "a@example.com")

	users, err := s.Users.List(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 3)
	assert.Equal(t, "a@example.com", users[0].Email)
	assert.Equal(t, "z@example.com", users[2].Email)
}

func TestUsersDeleteCascades(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u := insertUser(t, s, "gone@example.com")
	keep := insertUser(t, s, "keep@example.com")

	require.NoError(t, s.Reviews.Insert(ctx, &models.Review{UserID: u.ID, ProductID: "p1", Rating: 4}))
	require.NoError(t, s.Reviews.Insert(ctx, &models.Review{UserID: keep.ID, ProductID: "p1", Rating: 5}))
	require.NoError(t, s.Tokens.Insert(ctx, &models.PasswordResetToken{
		Email: u.Email, TokenHash: "h1", ExpiresAt: time.Now().Add(time.Hour),
	}))

	require.NoError(t, s.Users.Delete(ctx, u.ID))

	_, err := s.Users.Get(ctx, u.ID)
	assert.ErrorIs(t, err, models.ErrNoRecord)
	_, err = s.Tokens.GetByTokenHash(ctx, "h1")
	assert.ErrorIs(t, err, models.ErrNoRecord)

	reviews, err := s.Reviews.List(ctx, models.ReviewFilter{ProductID: "p1"})
	require.NoError(t, err)
	require.Len(t, reviews, 1)
	assert.Equal(t, keep.ID, reviews[0].UserID)

	assert.ErrorIs(t, s.Users.Delete(ctx, u.ID), models.ErrNoRecord)
}

func TestReviewsUniquePerUserAndProduct(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u := insertUser(t, s, "r@example.com")

	first := &models.Review{UserID: u.ID, ProductID: "p1", Rating: 3}
	require.NoError(t, s.Reviews.Insert(ctx, first))
	assert.Equal(t, models.ReviewPending, first.Status)

	err := s.Reviews.Insert(ctx, &models.Review{UserID: u.ID, ProductID: "p1", Rating: 5})
	assert.ErrorIs(t, err, models.ErrDuplicateReview)

	got, err := s.Reviews.FindByUserAndProduct(ctx, u.ID, "p1")
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)

	_, err = s.Reviews.FindByUserAndProduct(ctx, u.ID, "p2")
	assert.ErrorIs(t, err, models.ErrNoRecord)
}

func TestReviewsListFiltersAndOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := insertUser(t, s, "alice@example.com")
	bob := insertUser(t, s, "bob@example.com")

	base := time.Now().Add(-time.Hour)
	older := &models.Review{UserID: alice.ID, ProductID: "p1", Rating: 4, Status: models.ReviewApproved, CreatedAt: base}
	newer := &models.Review{UserID: bob.ID, ProductID: "p1", Rating: 2, CreatedAt: base.Add(time.Minute)}
	elsewhere := &models.Review{UserID: alice.ID, ProductID: "p2", Rating: 5, Status: models.ReviewDenied, CreatedAt: base}
	for _, r := range []*models.Review{older, newer, elsewhere} {
		require.NoError(t, s.Reviews.Insert(ctx, r))
	}

	all, err := s.Reviews.List(ctx, models.ReviewFilter{ProductID: "p1"})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, newer.ID, all[0].ID)
	assert.Equal(t, older.ID, all[1].ID)
	assert.Equal(t, "bob@example.com", all[0].AuthorEmail)
	assert.Equal(t, "Test alice@example.com", all[1].AuthorName)

	approved, err := s.Reviews.List(ctx, models.ReviewFilter{
		ProductID: "p1",
		Statuses:  []models.ReviewStatus{models.ReviewApproved},
	})
	require.NoError(t, err)
	require.Len(t, approved, 1)
	assert.Equal(t, older.ID, approved[0].ID)

	mine, err := s.Reviews.List(ctx, models.ReviewFilter{UserID: alice.ID})
	require.NoError(t, err)
	assert.Len(t, mine, 2)
}

func TestReviewsUpdate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u := insertUser(t, s, "m@example.com")
	rev := &models.Review{UserID: u.ID, ProductID: "p1", Rating: 1, Comment: "meh"}
	require.NoError(t, s.Reviews.Insert(ctx, rev))

	status := models.ReviewApproved
	resp := "Thanks"
	got, err := s.Reviews.Update(ctx, rev.ID, models.ReviewPatch{Status: &status, AdminResponse: &resp})
	require.NoError(t, err)
	assert.Equal(t, models.ReviewApproved, got.Status)
	require.NotNil(t, got.AdminResponse)
	assert.Equal(t, "Thanks", *got.AdminResponse)
	assert.Equal(t, "meh", got.Comment)

	_, err = s.Reviews.Update(ctx, "missing", models.ReviewPatch{Status: &status})
	assert.ErrorIs(t, err, models.ErrNoRecord)
}

func TestSessionsStore(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Sessions.CommitCtx(ctx, "tok", []byte("v1"), time.Now().Add(time.Hour)))
	require.NoError(t, s.Sessions.CommitCtx(ctx, "tok", []byte("v2"), time.Now().Add(time.Hour)))

	b, found, err := s.Sessions.FindCtx(ctx, "tok")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []byte("v2"), b)

	require.NoError(t, s.Sessions.Commit("old", []byte("x"), time.Now().Add(-time.Minute)))
	_, found, err = s.Sessions.Find("old")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, s.Sessions.DeleteCtx(ctx, "tok"))
	_, found, err = s.Sessions.FindCtx(ctx, "tok")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestPrune(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, s.Sessions.CommitCtx(ctx, "live", []byte("x"), now.Add(time.Hour)))
	require.NoError(t, s.Sessions.CommitCtx(ctx, "dead", []byte("x"), now.Add(-time.Hour)))
	require.NoError(t, s.Tokens.Insert(ctx, &models.PasswordResetToken{Email: "a@example.com", TokenHash: "live", ExpiresAt: now.Add(time.Hour)}))
	require.NoError(t, s.Tokens.Insert(ctx, &models.PasswordResetToken{Email: "a@example.com", TokenHash: "dead", ExpiresAt: now.Add(-time.Hour)}))

	sessions, tokens, err := s.Prune(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), sessions)
	assert.Equal(t, int64(1), tokens)

	_, err = s.Tokens.GetByTokenHash(ctx, "live")
	assert.NoError(t, err)
}

func TestTokensDeleteByEmail(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	exp := time.Now().Add(time.Hour)
	require.NoError(t, s.Tokens.Insert(ctx, &models.PasswordResetToken{Email: "a@example.com", TokenHash: "t1", ExpiresAt: exp}))
	require.NoError(t, s.Tokens.Insert(ctx, &models.PasswordResetToken{Email: "a@example.com", TokenHash: "t2", ExpiresAt: exp}))
	require.NoError(t, s.Tokens.Insert(ctx, &models.PasswordResetToken{Email: "b@example.com", TokenHash: "t3", ExpiresAt: exp}))

	require.NoError(t, s.Tokens.DeleteByEmail(ctx, "a@example.com"))

	_, err := s.Tokens.GetByTokenHash(ctx, "t1")
	assert.ErrorIs(t, err, models.ErrNoRecord)
	_, err = s.Tokens.GetByTokenHash(ctx, "t3")
	assert.NoError(t, err)
}
