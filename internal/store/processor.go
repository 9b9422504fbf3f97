package store

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Processor is the server's durable record of an edge node, mirroring
// procconfig.Processor's shape plus the cluster assignment the server
// alone is authoritative for.
type Processor struct {
	ID        string           `bson:"_id" json:"id"`
	ClusterID string           `bson:"cluster_id" json:"cluster_id"`
	Name      string           `bson:"name" json:"name"`
	Model     string           `bson:"model" json:"model"`
	Address   ProcessorAddress `bson:"address" json:"address"`
	Version   int64            `bson:"version" json:"version"`
	UpdatedAt int64            `bson:"updated_at" json:"updated_at"`
}

type ProcessorAddress struct {
	Host [4]byte `bson:"host" json:"host"`
	Port uint16  `bson:"port" json:"port"`
}

type ProcessorRepo struct {
	col *mongo.Collection
}

func (r *ProcessorRepo) FindByID(ctx context.Context, id string) (Processor, error) {
	var p Processor
	err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&p)
	if err != nil {
		return Processor{}, notFound("store.Processors.FindByID", err)
	}
	return p, nil
}

func (r *ProcessorRepo) FindByCluster(ctx context.Context, clusterID string) ([]Processor, error) {
	cur, err := r.col.Find(ctx, bson.M{"cluster_id": clusterID})
	if err != nil {
		return nil, wrap("store.Processors.FindByCluster", KindInternal, err)
	}
	defer cur.Close(ctx)

	var out []Processor
	if err := cur.All(ctx, &out); err != nil {
		return nil, wrap("store.Processors.FindByCluster", KindInternal, err)
	}
	return out, nil
}

func (r *ProcessorRepo) FindAll(ctx context.Context) ([]Processor, error) {
	cur, err := r.col.Find(ctx, bson.M{})
	if err != nil {
		return nil, wrap("store.Processors.FindAll", KindInternal, err)
	}
	defer cur.Close(ctx)

	var out []Processor
	if err := cur.All(ctx, &out); err != nil {
		return nil, wrap("store.Processors.FindAll", KindInternal, err)
	}
	return out, nil
}

func (r *ProcessorRepo) Upsert(ctx context.Context, p Processor) error {
	p.UpdatedAt = time.Now().UnixMilli()
	_, err := r.col.ReplaceOne(ctx, bson.M{"_id": p.ID}, p, options.Replace().SetUpsert(true))
	return wrap("store.Processors.Upsert", KindInternal, err)
}

func (r *ProcessorRepo) Delete(ctx context.Context, id string) error {
	_, err := r.col.DeleteOne(ctx, bson.M{"_id": id})
	return wrap("store.Processors.Delete", KindInternal, err)
}
