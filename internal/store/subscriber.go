package store

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Subscriber is a device push token registered by a user, grounded on
// original_source's Apple-only SubscriberKind variant.
type Subscriber struct {
	ID         string `bson:"_id" json:"id"`
	UserID     string `bson:"user_id" json:"user_id"`
	AppleToken string `bson:"apple_token" json:"apple_token"`
}

type SubscriberRepo struct {
	col *mongo.Collection
}

func (r *SubscriberRepo) FindByID(ctx context.Context, id string) (Subscriber, error) {
	var s Subscriber
	err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&s)
	if err != nil {
		return Subscriber{}, notFound("store.Subscribers.FindByID", err)
	}
	return s, nil
}

func (r *SubscriberRepo) FindByUser(ctx context.Context, userID string) ([]Subscriber, error) {
	cur, err := r.col.Find(ctx, bson.M{"user_id": userID})
	if err != nil {
		return nil, wrap("store.Subscribers.FindByUser", KindInternal, err)
	}
	defer cur.Close(ctx)

	var out []Subscriber
	if err := cur.All(ctx, &out); err != nil {
		return nil, wrap("store.Subscribers.FindByUser", KindInternal, err)
	}
	return out, nil
}

func (r *SubscriberRepo) FindAll(ctx context.Context) ([]Subscriber, error) {
	cur, err := r.col.Find(ctx, bson.M{})
	if err != nil {
		return nil, wrap("store.Subscribers.FindAll", KindInternal, err)
	}
	defer cur.Close(ctx)

	var out []Subscriber
	if err := cur.All(ctx, &out); err != nil {
		return nil, wrap("store.Subscribers.FindAll", KindInternal, err)
	}
	return out, nil
}

func (r *SubscriberRepo) Upsert(ctx context.Context, s Subscriber) error {
	_, err := r.col.ReplaceOne(ctx, bson.M{"_id": s.ID}, s, options.Replace().SetUpsert(true))
	return wrap("store.Subscribers.Upsert", KindInternal, err)
}

func (r *SubscriberRepo) Delete(ctx context.Context, id string) error {
	_, err := r.col.DeleteOne(ctx, bson.M{"_id": id})
	return wrap("store.Subscribers.Delete", KindInternal, err)
}
