package store

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Uniform is the required-equipment set a cluster assigns its processors,
// returned to the edge as part of the authoritative sync view.
type Uniform struct {
	ID    string   `bson:"_id" json:"id"`
	Name  string   `bson:"name" json:"name"`
	Parts []string `bson:"parts" json:"parts"`
}

type UniformRepo struct {
	col *mongo.Collection
}

func (r *UniformRepo) FindByID(ctx context.Context, id string) (Uniform, error) {
	var u Uniform
	err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&u)
	if err != nil {
		return Uniform{}, notFound("store.Uniforms.FindByID", err)
	}
	return u, nil
}

func (r *UniformRepo) FindAll(ctx context.Context) ([]Uniform, error) {
	cur, err := r.col.Find(ctx, bson.M{})
	if err != nil {
		return nil, wrap("store.Uniforms.FindAll", KindInternal, err)
	}
	defer cur.Close(ctx)

	var out []Uniform
	if err := cur.All(ctx, &out); err != nil {
		return nil, wrap("store.Uniforms.FindAll", KindInternal, err)
	}
	return out, nil
}

func (r *UniformRepo) Upsert(ctx context.Context, u Uniform) error {
	_, err := r.col.ReplaceOne(ctx, bson.M{"_id": u.ID}, u, options.Replace().SetUpsert(true))
	return wrap("store.Uniforms.Upsert", KindInternal, err)
}

func (r *UniformRepo) Delete(ctx context.Context, id string) error {
	_, err := r.col.DeleteOne(ctx, bson.M{"_id": id})
	return wrap("store.Uniforms.Delete", KindInternal, err)
}
