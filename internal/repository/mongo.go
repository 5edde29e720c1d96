package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"storefront/internal/models"
)

const defaultMongoDatabase = "storefront"

// MongoDB holds the collections of the document backend.
type MongoDB struct {
	Users    *mongo.Collection
	Reviews  *mongo.Collection
	Tokens   *mongo.Collection
	Sessions *mongo.Collection
}

func OpenMongo(ctx context.Context, uri string, opts Options) (*Store, error) {
	cctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(cctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(cctx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	name := opts.MongoDatabase
	if name == "" {
		name = defaultMongoDatabase
	}
	db := client.Database(name)

	m := &MongoDB{
		Users:    db.Collection("users"),
		Reviews:  db.Collection("reviews"),
		Tokens:   db.Collection("password_reset_tokens"),
		Sessions: db.Collection("sessions"),
	}
	if err := m.ensureIndexes(cctx); err != nil {
		client.Disconnect(context.Background())
		return nil, err
	}

	return &Store{
		Backend:  "mongo",
		Users:    &mongoUsers{m},
		Reviews:  &mongoReviews{m},
		Tokens:   &mongoTokens{m},
		Sessions: &mongoSessions{coll: m.Sessions, now: time.Now},
		close:    client.Disconnect,
	}, nil
}

func (m *MongoDB) ensureIndexes(ctx context.Context) error {
	indexes := []struct {
		coll  *mongo.Collection
		model mongo.IndexModel
	}{
		{m.Users, mongo.IndexModel{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		}},
		{m.Reviews, mongo.IndexModel{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "product_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		}},
		{m.Reviews, mongo.IndexModel{
			Keys: bson.D{{Key: "product_id", Value: 1}, {Key: "status", Value: 1}, {Key: "created_at", Value: -1}},
		}},
		{m.Tokens, mongo.IndexModel{
			Keys:    bson.D{{Key: "token_hash", Value: 1}},
			Options: options.Index().SetUnique(true),
		}},
		{m.Sessions, mongo.IndexModel{
			Keys:    bson.D{{Key: "expiry", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0),
		}},
	}

	for _, idx := range indexes {
		if _, err := idx.coll.Indexes().CreateOne(ctx, idx.model); err != nil {
			return fmt.Errorf("create index on %s: %w", idx.coll.Name(), err)
		}
	}
	return nil
}

type mongoUsers struct {
	m *MongoDB
}

func (r *mongoUsers) Insert(ctx context.Context, u *models.User) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.Role == "" {
		u.Role = models.RoleUser
	}
	now := time.Now()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now

	_, err := r.m.Users.InsertOne(ctx, u)
	if mongo.IsDuplicateKeyError(err) {
		return models.ErrDuplicateEmail
	}
	return err
}

func (r *mongoUsers) Get(ctx context.Context, id string) (*models.User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *mongoUsers) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *mongoUsers) findOne(ctx context.Context, filter bson.M) (*models.User, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var u models.User
	err := r.m.Users.FindOne(ctx, filter).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, models.ErrNoRecord
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *mongoUsers) List(ctx context.Context) ([]*models.User, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	cur, err := r.m.Users.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "email", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var users []*models.User
	err = cur.All(ctx, &users)
	return users, err
}

func (r *mongoUsers) Update(ctx context.Context, id string, patch models.UserPatch) (*models.User, error) {
	if patch.Empty() {
		return r.Get(ctx, id)
	}

	set := bson.M{"updated_at": time.Now()}
	if patch.Name != nil {
		set["name"] = *patch.Name
	}
	if patch.Email != nil {
		set["email"] = *patch.Email
	}
	if patch.PasswordHash != nil {
		set["password_hash"] = *patch.PasswordHash
	}
	if patch.Role != nil {
		set["role"] = *patch.Role
	}
	if patch.CustomerRef != nil {
		set["customer_ref"] = *patch.CustomerRef
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var u models.User
	err := r.m.Users.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&u)
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return nil, models.ErrNoRecord
	case mongo.IsDuplicateKeyError(err):
		return nil, models.ErrDuplicateEmail
	case err != nil:
		return nil, err
	}
	return &u, nil
}

func (r *mongoUsers) Delete(ctx context.Context, id string) error {
	u, err := r.Get(ctx, id)
	if err != nil {
		return err
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	if _, err := r.m.Reviews.DeleteMany(ctx, bson.M{"user_id": id}); err != nil {
		return err
	}
	if _, err := r.m.Tokens.DeleteMany(ctx, bson.M{"email": u.Email}); err != nil {
		return err
	}
	res, err := r.m.Users.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return models.ErrNoRecord
	}
	return nil
}

type mongoReviews struct {
	m *MongoDB
}

func (r *mongoReviews) Insert(ctx context.Context, rev *models.Review) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	if rev.ID == "" {
		rev.ID = uuid.NewString()
	}
	if rev.Status == "" {
		rev.Status = models.ReviewPending
	}
	now := time.Now()
	if rev.CreatedAt.IsZero() {
		rev.CreatedAt = now
	}
	rev.UpdatedAt = now

	_, err := r.m.Reviews.InsertOne(ctx, rev)
	if mongo.IsDuplicateKeyError(err) {
		return models.ErrDuplicateReview
	}
	return err
}

func (r *mongoReviews) Get(ctx context.Context, id string) (*models.Review, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *mongoReviews) FindByUserAndProduct(ctx context.Context, userID, productID string) (*models.Review, error) {
	return r.findOne(ctx, bson.M{"user_id": userID, "product_id": productID})
}

func (r *mongoReviews) findOne(ctx context.Context, filter bson.M) (*models.Review, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var rev models.Review
	err := r.m.Reviews.FindOne(ctx, filter).Decode(&rev)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, models.ErrNoRecord
	}
	if err != nil {
		return nil, err
	}
	return &rev, nil
}

func (r *mongoReviews) List(ctx context.Context, f models.ReviewFilter) ([]*models.ReviewWithAuthor, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	filter := bson.M{}
	if f.ProductID != "" {
		filter["product_id"] = f.ProductID
	}
	if f.UserID != "" {
		filter["user_id"] = f.UserID
	}
	if len(f.Statuses) > 0 {
		filter["status"] = bson.M{"$in": f.Statuses}
	}

	cur, err := r.m.Reviews.Find(ctx, filter,
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var reviews []models.Review
	if err := cur.All(ctx, &reviews); err != nil {
		return nil, err
	}

	authors, err := r.authors(ctx, reviews)
	if err != nil {
		return nil, err
	}

	out := make([]*models.ReviewWithAuthor, 0, len(reviews))
	for _, rev := range reviews {
		rw := &models.ReviewWithAuthor{Review: rev}
		if u, ok := authors[rev.UserID]; ok {
			rw.AuthorName = u.Name
			rw.AuthorEmail = u.Email
		}
		out = append(out, rw)
	}
	return out, nil
}

func (r *mongoReviews) authors(ctx context.Context, reviews []models.Review) (map[string]models.User, error) {
	ids := make([]string, 0, len(reviews))
	seen := make(map[string]bool, len(reviews))
	for _, rev := range reviews {
		if !seen[rev.UserID] {
			seen[rev.UserID] = true
			ids = append(ids, rev.UserID)
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}

	cur, err := r.m.Users.Find(ctx, bson.M{"_id": bson.M{"$in": ids}},
		options.Find().SetProjection(bson.M{"name": 1, "email": 1}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var users []models.User
	if err := cur.All(ctx, &users); err != nil {
		return nil, err
	}

	byID := make(map[string]models.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}
	return byID, nil
}

func (r *mongoReviews) Update(ctx context.Context, id string, patch models.ReviewPatch) (*models.Review, error) {
	if patch.Empty() {
		return r.Get(ctx, id)
	}

	set := bson.M{"updated_at": time.Now()}
	if patch.Status != nil {
		set["status"] = *patch.Status
	}
	if patch.AdminResponse != nil {
		set["admin_response"] = *patch.AdminResponse
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var rev models.Review
	err := r.m.Reviews.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&rev)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, models.ErrNoRecord
	}
	if err != nil {
		return nil, err
	}
	return &rev, nil
}

type mongoTokens struct {
	m *MongoDB
}

func (r *mongoTokens) Insert(ctx context.Context, t *models.PasswordResetToken) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	_, err := r.m.Tokens.InsertOne(ctx, t)
	return err
}

func (r *mongoTokens) GetByTokenHash(ctx context.Context, hash string) (*models.PasswordResetToken, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var t models.PasswordResetToken
	err := r.m.Tokens.FindOne(ctx, bson.M{"token_hash": hash}).Decode(&t)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, models.ErrNoRecord
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *mongoTokens) DeleteByEmail(ctx context.Context, email string) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	_, err := r.m.Tokens.DeleteMany(ctx, bson.M{"email": email})
	return err
}

func (r *mongoTokens) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	res, err := r.m.Tokens.DeleteMany(ctx, bson.M{"expires_at": bson.M{"$lte": now}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
