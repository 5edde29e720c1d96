package repository

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mongoSession struct {
	Token  string    `bson:"_id"`
	Data   []byte    `bson:"data"`
	Expiry time.Time `bson:"expiry"`
}

// mongoSessions stores scs sessions in a collection with a TTL index on
// expiry. The TTL monitor runs about once a minute, so lookups also
// check the expiry themselves.
type mongoSessions struct {
	coll *mongo.Collection
	now  func() time.Time
}

func (s *mongoSessions) Find(token string) ([]byte, bool, error) {
	return s.FindCtx(context.Background(), token)
}

func (s *mongoSessions) Commit(token string, b []byte, expiry time.Time) error {
	return s.CommitCtx(context.Background(), token, b, expiry)
}

func (s *mongoSessions) Delete(token string) error {
	return s.DeleteCtx(context.Background(), token)
}

func (s *mongoSessions) FindCtx(ctx context.Context, token string) ([]byte, bool, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var rec mongoSession
	err := s.coll.FindOne(ctx, bson.M{"_id": token, "expiry": bson.M{"$gt": s.now()}}).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return rec.Data, true, nil
}

func (s *mongoSessions) CommitCtx(ctx context.Context, token string, b []byte, expiry time.Time) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	_, err := s.coll.ReplaceOne(ctx,
		bson.M{"_id": token},
		mongoSession{Token: token, Data: b, Expiry: expiry},
		options.Replace().SetUpsert(true),
	)
	return err
}

func (s *mongoSessions) DeleteCtx(ctx context.Context, token string) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	_, err := s.coll.DeleteOne(ctx, bson.M{"_id": token})
	return err
}

func (s *mongoSessions) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	res, err := s.coll.DeleteMany(ctx, bson.M{"expiry": bson.M{"$lte": now}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
