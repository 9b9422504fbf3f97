package store

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Camera is the server's durable record of a camera; the processor is
// authoritative for its existence (spec.md §4.6), the server merely mirrors it.
type Camera struct {
	ID          string `bson:"_id" json:"id"`
	ClusterID   string `bson:"cluster_id" json:"cluster_id"`
	ProcessorID string `bson:"processor_id" json:"processor_id"`
	Name        string `bson:"name" json:"name"`
	Host        string `bson:"host" json:"host"`
	Port        uint16 `bson:"port" json:"port"`
	UpdatedAt   int64  `bson:"updated_at" json:"updated_at"`
}

type CameraRepo struct {
	col *mongo.Collection
}

func (r *CameraRepo) FindByID(ctx context.Context, id string) (Camera, error) {
	var c Camera
	err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&c)
	if err != nil {
		return Camera{}, notFound("store.Cameras.FindByID", err)
	}
	return c, nil
}

func (r *CameraRepo) FindByProcessor(ctx context.Context, processorID string) ([]Camera, error) {
	cur, err := r.col.Find(ctx, bson.M{"processor_id": processorID})
	if err != nil {
		return nil, wrap("store.Cameras.FindByProcessor", KindInternal, err)
	}
	defer cur.Close(ctx)

	var out []Camera
	if err := cur.All(ctx, &out); err != nil {
		return nil, wrap("store.Cameras.FindByProcessor", KindInternal, err)
	}
	return out, nil
}

func (r *CameraRepo) Upsert(ctx context.Context, c Camera) error {
	c.UpdatedAt = time.Now().UnixMilli()
	_, err := r.col.ReplaceOne(ctx, bson.M{"_id": c.ID}, c, options.Replace().SetUpsert(true))
	return wrap("store.Cameras.Upsert", KindInternal, err)
}

func (r *CameraRepo) Delete(ctx context.Context, id string) error {
	_, err := r.col.DeleteOne(ctx, bson.M{"_id": id})
	return wrap("store.Cameras.Delete", KindInternal, err)
}

func (r *CameraRepo) DeleteMany(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.col.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}})
	return wrap("store.Cameras.DeleteMany", KindInternal, err)
}
