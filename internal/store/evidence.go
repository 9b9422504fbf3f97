package store

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/sua-org/gidence-scm/internal/evidence"
)

// EvidenceRecord is a persisted evidence envelope plus the server-side
// attribution (cluster/processor) the intake pipeline attaches.
type EvidenceRecord struct {
	evidence.Envelope `bson:",inline"`
	ClusterID         string `bson:"cluster_id" json:"cluster_id"`
	ProcessorID       string `bson:"processor_id" json:"processor_id"`
}

type EvidenceRepo struct {
	col *mongo.Collection
}

func (r *EvidenceRepo) Insert(ctx context.Context, e EvidenceRecord) error {
	_, err := r.col.InsertOne(ctx, e)
	return wrap("store.Evidence.Insert", KindInternal, err)
}

func (r *EvidenceRepo) FindByID(ctx context.Context, id string) (EvidenceRecord, error) {
	var e EvidenceRecord
	err := r.col.FindOne(ctx, bson.M{"id": id}).Decode(&e)
	if err != nil {
		return EvidenceRecord{}, notFound("store.Evidence.FindByID", err)
	}
	return e, nil
}

// Query filters evidence rows by any combination of cluster/processor/camera
// and a timestamp range, matching original_source's EvidenceQuery.
type Query struct {
	ClusterID   string
	ProcessorID string
	CameraID    string
	DateMin     int64
	DateMax     int64
}

func (r *EvidenceRepo) Find(ctx context.Context, q Query) ([]EvidenceRecord, error) {
	filter := bson.M{}
	if q.ClusterID != "" {
		filter["cluster_id"] = q.ClusterID
	}
	if q.ProcessorID != "" {
		filter["processor_id"] = q.ProcessorID
	}
	if q.CameraID != "" {
		filter["camera_id"] = q.CameraID
	}
	if q.DateMin != 0 || q.DateMax != 0 {
		ts := bson.M{}
		if q.DateMin != 0 {
			ts["$gte"] = q.DateMin
		}
		if q.DateMax != 0 {
			ts["$lte"] = q.DateMax
		}
		filter["timestamp"] = ts
	}

	cur, err := r.col.Find(ctx, filter)
	if err != nil {
		return nil, wrap("store.Evidence.Find", KindInternal, err)
	}
	defer cur.Close(ctx)

	var out []EvidenceRecord
	if err := cur.All(ctx, &out); err != nil {
		return nil, wrap("store.Evidence.Find", KindInternal, err)
	}
	return out, nil
}

// DeleteByCamera removes every evidence row for a camera, the cascade
// spec.md §4.6 requires when a camera drops out of a sync payload.
func (r *EvidenceRepo) DeleteByCamera(ctx context.Context, cameraID string) error {
	_, err := r.col.DeleteMany(ctx, bson.M{"camera_id": cameraID})
	return wrap("store.Evidence.DeleteByCamera", KindInternal, err)
}

func (r *EvidenceRepo) DeleteByProcessor(ctx context.Context, processorID string) error {
	_, err := r.col.DeleteMany(ctx, bson.M{"processor_id": processorID})
	return wrap("store.Evidence.DeleteByProcessor", KindInternal, err)
}
