package docstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/statustracker/backend/internal/core/ports"
	"github.com/statustracker/backend/internal/domain"
	"github.com/statustracker/backend/internal/infrastructure/logger"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type resultRepository struct {
	coll *mongo.Collection
	log  *logger.Logger
}

func NewResultRepository(database *mongo.Database, log *logger.Logger) ports.ResultRepository {
	return &resultRepository{
		coll: database.Collection(resultsCollection),
		log:  log,
	}
}

func (r *resultRepository) Create(ctx context.Context, record *domain.ResultRecord) error {
	if _, err := r.coll.InsertOne(ctx, record); err != nil {
		r.log.Errorw("result_doc_create_failed", "subject", record.SubjectID, "error", err)
		return storageError("create result", err)
	}
	return nil
}

func (r *resultRepository) GetByID(ctx context.Context, id string) (*domain.ResultRecord, error) {
	var record domain.ResultRecord
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&record)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: result %s", domain.ErrNotFound, id)
		}
		return nil, storageError("get result", err)
	}
	return &record, nil
}

func (r *resultRepository) LatestBySubject(ctx context.Context, subjectID string) (*domain.ResultRecord, error) {
	var record domain.ResultRecord
	opts := options.FindOne().SetSort(bson.D{{Key: "checked_at", Value: -1}, {Key: "_id", Value: -1}})
	err := r.coll.FindOne(ctx, bson.M{"subject_id": subjectID}, opts).Decode(&record)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		r.log.Errorw("result_doc_latest_failed", "subject", subjectID, "error", err)
		return nil, storageError("latest result", err)
	}
	return &record, nil
}

func (r *resultRepository) find(ctx context.Context, op string, filter bson.M, sort int, limit int) ([]domain.ResultRecord, error) {
	opts := options.Find().SetSort(bson.D{{Key: "checked_at", Value: sort}, {Key: "_id", Value: sort}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		r.log.Errorw("result_doc_find_failed", "op", op, "error", err)
		return nil, storageError(op, err)
	}
	records := []domain.ResultRecord{}
	if err := cur.All(ctx, &records); err != nil {
		return nil, storageError(op, err)
	}
	return records, nil
}

func (r *resultRepository) ListBySubject(ctx context.Context, subjectID string, limit int) ([]domain.ResultRecord, error) {
	return r.find(ctx, "list subject results", bson.M{"subject_id": subjectID}, -1, limit)
}

func (r *resultRepository) ListByTask(ctx context.Context, taskID string) ([]domain.ResultRecord, error) {
	return r.find(ctx, "list task results", bson.M{"task_id": taskID}, 1, 0)
}

func (r *resultRepository) ListRecent(ctx context.Context, limit int) ([]domain.ResultRecord, error) {
	return r.find(ctx, "list recent results", bson.M{}, -1, limit)
}

func (r *resultRepository) ListUnsynced(ctx context.Context, limit int) ([]domain.ResultRecord, error) {
	return r.find(ctx, "list unsynced results", bson.M{"synced": false}, -1, limit)
}

func (r *resultRepository) MarkSynced(ctx context.Context, id string, externalItemID string, now time.Time) error {
	set := bson.M{"synced": true, "synced_at": now}
	if externalItemID != "" {
		set["external_item_id"] = externalItemID
	}
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": id, "synced": false}, bson.M{"$set": set})
	if err != nil {
		r.log.Errorw("result_doc_mark_synced_failed", "id", id, "error", err)
		return storageError("mark result synced", err)
	}
	if res.MatchedCount == 0 {
		_, err := r.GetByID(ctx, id)
		return err
	}
	return nil
}
