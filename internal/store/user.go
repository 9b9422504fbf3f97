package store

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Role distinguishes a cluster-scoped user from the super-admin who
// receives every cluster's push feed (spec.md §9 open question resolved
// in SPEC_FULL.md §11).
type Role string

const (
	RoleUser       Role = "user"
	RoleSuperAdmin Role = "super_admin"
)

// User is an authentication subject, grounded on original_source's
// largest model file (18KB user.rs), the strongest signal that the
// distilled spec dropped a real auth subsystem.
type User struct {
	ID           string   `bson:"_id" json:"id"`
	Email        string   `bson:"email" json:"email"`
	PasswordHash string   `bson:"password_hash" json:"-"`
	Role         Role     `bson:"role" json:"role"`
	ClusterIDs   []string `bson:"cluster_ids" json:"cluster_ids"`
}

type UserRepo struct {
	col *mongo.Collection
}

func (r *UserRepo) FindByID(ctx context.Context, id string) (User, error) {
	var u User
	err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&u)
	if err != nil {
		return User{}, notFound("store.Users.FindByID", err)
	}
	return u, nil
}

// FindByClusterOrAdmin returns every user scoped to clusterID plus every
// super-admin, the audience for that cluster's push/live feed.
func (r *UserRepo) FindByClusterOrAdmin(ctx context.Context, clusterID string) ([]User, error) {
	filter := bson.M{"$or": []bson.M{
		{"cluster_ids": clusterID},
		{"role": RoleSuperAdmin},
	}}
	cur, err := r.col.Find(ctx, filter)
	if err != nil {
		return nil, wrap("store.Users.FindByClusterOrAdmin", KindInternal, err)
	}
	defer cur.Close(ctx)

	var users []User
	if err := cur.All(ctx, &users); err != nil {
		return nil, wrap("store.Users.FindByClusterOrAdmin", KindInternal, err)
	}
	return users, nil
}

func (r *UserRepo) FindByEmail(ctx context.Context, email string) (User, error) {
	var u User
	err := r.col.FindOne(ctx, bson.M{"email": email}).Decode(&u)
	if err != nil {
		return User{}, notFound("store.Users.FindByEmail", err)
	}
	return u, nil
}

func (r *UserRepo) Insert(ctx context.Context, u User) error {
	_, err := r.col.InsertOne(ctx, u)
	if mongo.IsDuplicateKeyError(err) {
		return wrap("store.Users.Insert", KindConflict, err)
	}
	return wrap("store.Users.Insert", KindInternal, err)
}

func (r *UserRepo) Upsert(ctx context.Context, u User) error {
	_, err := r.col.ReplaceOne(ctx, bson.M{"_id": u.ID}, u, options.Replace().SetUpsert(true))
	return wrap("store.Users.Upsert", KindInternal, err)
}
