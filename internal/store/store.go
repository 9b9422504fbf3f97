// Package store is the generic resource store backing the server tier
// (spec.md §4.7-§4.10 supplement, component C12): processors, cameras,
// clusters, uniforms, users, push subscribers, and evidence records, all
// held in MongoDB collections under one database handle.
package store

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Kind classifies a store error the way the original implementation's
// EventKind distinguished not-found from validation from transport
// failures, so HTTP handlers can map it to a status code without string
// matching.
type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindInvalid
	KindConflict
	KindInternal
)

// Error wraps an underlying cause with a Kind for status-code mapping.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Op + ": " + e.Err.Error()
	}
	return e.Op
}

func (e *Error) Unwrap() error { return e.Err }

func wrap(op string, kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// ErrKind extracts the Kind from an error, defaulting to KindInternal for
// anything not produced by this package (e.g. a raw mongo driver error).
func ErrKind(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindInternal
}

func notFound(op string, err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return wrap(op, KindNotFound, err)
	}
	return wrap(op, KindInternal, err)
}

// Store holds the Mongo database handle and exposes one repository per
// resource kind.
type Store struct {
	db *mongo.Database

	Processors  *ProcessorRepo
	Cameras     *CameraRepo
	Clusters    *ClusterRepo
	Uniforms    *UniformRepo
	Users       *UserRepo
	Subscribers *SubscriberRepo
	Evidence    *EvidenceRepo
}

// Connect dials MongoDB at uri and wires every repository against dbName.
func Connect(ctx context.Context, uri, dbName string) (*Store, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, wrap("store.Connect", KindInternal, err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, wrap("store.Connect", KindInternal, err)
	}

	db := client.Database(dbName)
	return &Store{
		db:          db,
		Processors:  &ProcessorRepo{col: db.Collection("processors")},
		Cameras:     &CameraRepo{col: db.Collection("cameras")},
		Clusters:    &ClusterRepo{col: db.Collection("clusters")},
		Uniforms:    &UniformRepo{col: db.Collection("uniforms")},
		Users:       &UserRepo{col: db.Collection("users")},
		Subscribers: &SubscriberRepo{col: db.Collection("subscribers")},
		Evidence:    &EvidenceRepo{col: db.Collection("evidence")},
	}, nil
}

func (s *Store) Disconnect(ctx context.Context) error {
	return s.db.Client().Disconnect(ctx)
}
