package store

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Cluster groups processors under one site/organization and owns the
// uniform assignment the sync protocol hands back to edges.
type Cluster struct {
	ID        string   `bson:"_id" json:"id"`
	Name      string   `bson:"name" json:"name"`
	UniformID string   `bson:"uniform_id,omitempty" json:"uniform_id,omitempty"`
}

type ClusterRepo struct {
	col *mongo.Collection
}

func (r *ClusterRepo) FindByID(ctx context.Context, id string) (Cluster, error) {
	var c Cluster
	err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&c)
	if err != nil {
		return Cluster{}, notFound("store.Clusters.FindByID", err)
	}
	return c, nil
}

func (r *ClusterRepo) FindAll(ctx context.Context) ([]Cluster, error) {
	cur, err := r.col.Find(ctx, bson.M{})
	if err != nil {
		return nil, wrap("store.Clusters.FindAll", KindInternal, err)
	}
	defer cur.Close(ctx)

	var out []Cluster
	if err := cur.All(ctx, &out); err != nil {
		return nil, wrap("store.Clusters.FindAll", KindInternal, err)
	}
	return out, nil
}

func (r *ClusterRepo) Upsert(ctx context.Context, c Cluster) error {
	_, err := r.col.ReplaceOne(ctx, bson.M{"_id": c.ID}, c, options.Replace().SetUpsert(true))
	return wrap("store.Clusters.Upsert", KindInternal, err)
}

func (r *ClusterRepo) Delete(ctx context.Context, id string) error {
	_, err := r.col.DeleteOne(ctx, bson.M{"_id": id})
	return wrap("store.Clusters.Delete", KindInternal, err)
}
