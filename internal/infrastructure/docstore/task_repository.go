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

type taskRepository struct {
	coll *mongo.Collection
	log  *logger.Logger
}

func NewTaskRepository(database *mongo.Database, log *logger.Logger) ports.TaskRepository {
	return &taskRepository{
		coll: database.Collection(tasksCollection),
		log:  log,
	}
}

func activeStatuses() bson.A {
	return bson.A{string(domain.TaskStatusPending), string(domain.TaskStatusProcessing)}
}

func (r *taskRepository) Create(ctx context.Context, task *domain.Task) error {
	if _, err := r.coll.InsertOne(ctx, task); err != nil {
		r.log.Errorw("task_doc_create_failed", "id", task.ID, "error", err)
		return storageError("create task", err)
	}
	r.log.Infow("task_doc_create_ok", "id", task.ID, "file", task.FileName, "total", task.TotalCount)
	return nil
}

func (r *taskRepository) GetByID(ctx context.Context, id string) (*domain.Task, error) {
	var task domain.Task
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&task)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: task %s", domain.ErrNotFound, id)
		}
		r.log.Errorw("task_doc_get_failed", "id", id, "error", err)
		return nil, storageError("get task", err)
	}
	return &task, nil
}

func (r *taskRepository) List(ctx context.Context, limit int) ([]domain.Task, error) {
	opts := options.Find().SetSort(bson.D{{Key: "started_at", Value: -1}}).SetLimit(int64(limit))
	cur, err := r.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		r.log.Errorw("task_doc_list_failed", "error", err)
		return nil, storageError("list tasks", err)
	}
	tasks := []domain.Task{}
	if err := cur.All(ctx, &tasks); err != nil {
		return nil, storageError("decode tasks", err)
	}
	return tasks, nil
}

// progressUpdate builds the guarded filter and the update pipeline for an
// increment of n. The second stage sees the incremented count and derives
// status and completed_at from it.
func progressUpdate(id string, n int, now time.Time) (bson.M, mongo.Pipeline) {
	filter := bson.M{
		"_id":    id,
		"status": bson.M{"$in": activeStatuses()},
		"$expr": bson.M{"$lte": bson.A{
			bson.M{"$add": bson.A{"$processed_count", n}},
			"$total_count",
		}},
	}
	done := bson.M{"$gte": bson.A{"$processed_count", "$total_count"}}
	pipeline := mongo.Pipeline{
		{{Key: "$set", Value: bson.M{
			"processed_count": bson.M{"$add": bson.A{"$processed_count", n}},
			"updated_at":      now,
		}}},
		{{Key: "$set", Value: bson.M{
			"status":       bson.M{"$cond": bson.A{done, string(domain.TaskStatusCompleted), string(domain.TaskStatusProcessing)}},
			"completed_at": bson.M{"$cond": bson.A{done, now, "$$REMOVE"}},
		}}},
	}
	return filter, pipeline
}

func (r *taskRepository) IncrementProgress(ctx context.Context, id string, n int, now time.Time) (bool, error) {
	filter, pipeline := progressUpdate(id, n, now)
	res, err := r.coll.UpdateOne(ctx, filter, pipeline)
	if err != nil {
		r.log.Errorw("task_doc_increment_failed", "id", id, "n", n, "error", err)
		return false, storageError("increment task progress", err)
	}
	return res.ModifiedCount == 1, nil
}

func (r *taskRepository) MarkError(ctx context.Context, id string, message string, now time.Time) (bool, error) {
	filter := bson.M{"_id": id, "status": bson.M{"$in": activeStatuses()}}
	update := bson.M{"$set": bson.M{
		"status":        string(domain.TaskStatusError),
		"error_message": message,
		"completed_at":  now,
		"updated_at":    now,
	}}
	res, err := r.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		r.log.Errorw("task_doc_mark_error_failed", "id", id, "error", err)
		return false, storageError("mark task error", err)
	}
	return res.ModifiedCount == 1, nil
}
