package reviews

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/models"
	"storefront/internal/repository"
)

type fakeVerifier struct {
	purchased map[string]bool
	calls     int
}

func (f *fakeVerifier) HasPurchased(_ context.Context, customerRef, productRef string) bool {
	f.calls++
	return f.purchased[customerRef+"|"+productRef]
}

type recordingNotifier struct {
	got []*models.Review
}

func (n *recordingNotifier) ReviewSubmitted(r *models.Review, _ *models.User) {
	n.got = append(n.got, r)
}

type fixture struct {
	store    *repository.Store
	svc      *Service
	verifier *fakeVerifier
	notifier *recordingNotifier
	buyer    *models.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := repository.Open(context.Background(), "sqlite::memory:", repository.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close(context.Background()) })

	buyer := &models.User{Name: "Buyer", Email: "buyer@example.com", CustomerRef: "cust_1"}
	require.NoError(t, store.Users.Insert(context.Background(), buyer))

	f := &fixture{
		store:    store,
		verifier: &fakeVerifier{purchased: map[string]bool{"cust_1|prod_9": true}},
		notifier: &recordingNotifier{},
		buyer:    buyer,
	}
	f.svc = NewService(store.Users, store.Reviews, f.verifier, WithNotifier(f.notifier))
	return f
}

func (f *fixture) countReviews(t *testing.T) int {
	t.Helper()
	all, err := f.store.Reviews.List(context.Background(), models.ReviewFilter{})
	require.NoError(t, err)
	return len(all)
}

func TestCreatePendingReviewForBuyer(t *testing.T) {
	f := newFixture(t)

	rev, err := f.svc.Create(context.Background(), f.buyer.ID, CreateInput{ProductID: "prod_9", Rating: 5})
	require.NoError(t, err)
	assert.Equal(t, models.ReviewPending, rev.Status)
	assert.False(t, rev.Approved())
	assert.Len(t, f.notifier.got, 1)

	stored, err := f.store.Reviews.Get(context.Background(), rev.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReviewPending, stored.Status)
}

func TestCreateRejectsNonBuyer(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Create(context.Background(), f.buyer.ID, CreateInput{ProductID: "prod_8", Rating: 4})
	assert.ErrorIs(t, err, ErrNotPurchased)
	assert.Zero(t, f.countReviews(t))
	assert.Empty(t, f.notifier.got)
}

func TestCreateRejectsSecondReview(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, f.buyer.ID, CreateInput{ProductID: "prod_9", Rating: 5})
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, f.buyer.ID, CreateInput{ProductID: "prod_9", Rating: 1})
	assert.ErrorIs(t, err, ErrAlreadyReviewed)
	assert.Equal(t, 1, f.countReviews(t))
}

func TestCreateWithoutCustomerRef(t *testing.T) {
	f := newFixture(t)
	u := &models.User{Email: "local@example.com"}
	require.NoError(t, f.store.Users.Insert(context.Background(), u))

	_, err := f.svc.Create(context.Background(), u.ID, CreateInput{ProductID: "prod_9", Rating: 5})
	assert.ErrorIs(t, err, ErrNoCustomerRef)
	assert.Zero(t, f.verifier.calls)
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name  string
		in    CreateInput
		field string
	}{
		{"missing product", CreateInput{Rating: 3}, "productId"},
		{"rating too low", CreateInput{ProductID: "prod_9", Rating: 0}, "rating"},
		{"rating too high", CreateInput{ProductID: "prod_9", Rating: 6}, "rating"},
		{"comment too long", CreateInput{ProductID: "prod_9", Rating: 3, Comment: strings.Repeat("x", MaxCommentLength+1)}, "comment"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Create(context.Background(), f.buyer.ID, tt.in)
			var verr *models.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
	assert.Zero(t, f.countReviews(t))
}

func TestListPublicOnlyApproved(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	statuses := []models.ReviewStatus{models.ReviewPending, models.ReviewApproved, models.ReviewDenied}
	for i, st := range statuses {
		u := &models.User{Email: string(st) + "@example.com"}
		require.NoError(t, f.store.Users.Insert(ctx, u))
		require.NoError(t, f.store.Reviews.Insert(ctx, &models.Review{UserID: u.ID, ProductID: "prod_9", Rating: i + 1, Status: st}))
	}

	list, err := f.svc.ListPublic(ctx, "prod_9")
	require.NoError(t, err)
	require.Len(t, list, 1)
	for _, r := range list {
		assert.Equal(t, models.ReviewApproved, r.Status)
	}

	views := PublicViews(list)
	assert.True(t, views[0].Approved)
	assert.Equal(t, "APPROVED@example.com", views[0].User.Name)
	assert.Empty(t, views[0].User.Email)

	_, err = f.svc.ListPublic(ctx, " ")
	var verr *models.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestListAdminFilters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, st := range []models.ReviewStatus{models.ReviewPending, models.ReviewApproved, models.ReviewDenied} {
		u := &models.User{Email: string(st) + "@example.com"}
		require.NoError(t, f.store.Users.Insert(ctx, u))
		require.NoError(t, f.store.Reviews.Insert(ctx, &models.Review{UserID: u.ID, ProductID: "prod_9", Rating: 3, Status: st}))
	}

	yes, no := true, false
	pending := models.ReviewPending
	bogus := models.ReviewStatus("MAYBE")

	all, err := f.svc.ListAdmin(ctx, AdminFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	approved, err := f.svc.ListAdmin(ctx, AdminFilter{Approved: &yes})
	require.NoError(t, err)
	assert.Len(t, approved, 1)

	notApproved, err := f.svc.ListAdmin(ctx, AdminFilter{Approved: &no})
	require.NoError(t, err)
	assert.Len(t, notApproved, 2)

	onlyPending, err := f.svc.ListAdmin(ctx, AdminFilter{Status: &pending, Approved: &yes})
	require.NoError(t, err)
	require.Len(t, onlyPending, 1)
	assert.Equal(t, models.ReviewPending, onlyPending[0].Status)

	_, err = f.svc.ListAdmin(ctx, AdminFilter{Status: &bogus})
	var verr *models.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestModerateKeepsAdminResponse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rev, err := f.svc.Create(ctx, f.buyer.ID, CreateInput{ProductID: "prod_9", Rating: 4})
	require.NoError(t, err)

	resp := "Thanks for the feedback"
	_, err = f.svc.Moderate(ctx, rev.ID, ModerateInput{AdminResponse: &resp})
	require.NoError(t, err)

	yes := true
	got, err := f.svc.Moderate(ctx, rev.ID, ModerateInput{Approved: &yes})
	require.NoError(t, err)
	assert.Equal(t, models.ReviewApproved, got.Status)
	require.NotNil(t, got.AdminResponse)
	assert.Equal(t, resp, *got.AdminResponse)
}

func TestModerateDenyAndErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rev, err := f.svc.Create(ctx, f.buyer.ID, CreateInput{ProductID: "prod_9", Rating: 2})
	require.NoError(t, err)

	no := false
	got, err := f.svc.Moderate(ctx, rev.ID, ModerateInput{Approved: &no})
	require.NoError(t, err)
	assert.Equal(t, models.ReviewDenied, got.Status)
	assert.Nil(t, got.AdminResponse)

	_, err = f.svc.Moderate(ctx, rev.ID, ModerateInput{})
	var verr *models.ValidationError
	assert.ErrorAs(t, err, &verr)

	_, err = f.svc.Moderate(ctx, "missing", ModerateInput{Approved: &no})
	assert.ErrorIs(t, err, models.ErrNoRecord)
}

func TestEligibility(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	e, err := f.svc.Eligibility(ctx, "", "prod_9")
	require.NoError(t, err)
	assert.Equal(t, Eligibility{Reason: ReasonSignIn}, e)

	e, err = f.svc.Eligibility(ctx, f.buyer.ID, "prod_8")
	require.NoError(t, err)
	assert.Equal(t, ReasonNotPurchased, e.Reason)

	e, err = f.svc.Eligibility(ctx, f.buyer.ID, "prod_9")
	require.NoError(t, err)
	assert.True(t, e.CanReview)

	_, err = f.svc.Create(ctx, f.buyer.ID, CreateInput{ProductID: "prod_9", Rating: 5})
	require.NoError(t, err)
	e, err = f.svc.Eligibility(ctx, f.buyer.ID, "prod_9")
	require.NoError(t, err)
	assert.Equal(t, ReasonAlreadyReviewed, e.Reason)

	local := &models.User{Email: "local@example.com"}
	require.NoError(t, f.store.Users.Insert(ctx, local))
	e, err = f.svc.Eligibility(ctx, local.ID, "prod_9")
	require.NoError(t, err)
	assert.Equal(t, ReasonNoCustomer, e.Reason)
}

func TestListForUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.Create(ctx, f.buyer.ID, CreateInput{ProductID: "prod_9", Rating: 5})
	require.NoError(t, err)

	mine, err := f.svc.ListForUser(ctx, f.buyer.ID)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "buyer@example.com", AdminViews(mine)[0].User.Email)
}

func TestSummarize(t *testing.T) {
	assert.Equal(t, Summary{}, Summarize(nil))

	s := Summarize([]*models.ReviewWithAuthor{
		{Review: models.Review{Rating: 5}},
		{Review: models.Review{Rating: 4}},
		{Review: models.Review{Rating: 4}},
	})
	assert.Equal(t, 3, s.Count)
	assert.Equal(t, "4.3", s.Average.String())
}
