package mongo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"campusride/pkg/logger"
	"campusride/pkg/models"
	"campusride/storage"
)

var fifoSort = bson.D{{Key: "queue_at", Value: 1}, {Key: "seq", Value: 1}, {Key: "_id", Value: 1}}

type queueRepo struct {
	s *Store
}

func (r *queueRepo) c() *mongo.Collection { return r.s.coll(colQueue) }

func (r *queueRepo) updateMany(ctx context.Context, op string, filter, update bson.M) (int64, error) {
	res, err := r.c().UpdateMany(r.s.bind(ctx), filter, update)
	if err != nil {
		r.s.log.Error("failed to "+op, logger.Error(err))
		return 0, err
	}
	return res.ModifiedCount, nil
}

func (r *queueRepo) findAndUpdate(ctx context.Context, op string, filter, update bson.M, sort bson.D) (*models.QueueEntry, error) {
	var doc entryDoc
	err := r.c().FindOneAndUpdate(r.s.bind(ctx), filter, update,
		options.FindOneAndUpdate().SetSort(sort).SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		if isNoDocuments(err) {
			return nil, nil
		}
		r.s.log.Error("failed to "+op, logger.Error(err))
		return nil, err
	}
	return doc.model(), nil
}

func (r *queueRepo) CreateIfNoActive(ctx context.Context, entry *models.QueueEntry) (*models.QueueEntry, error) {
	seq, err := r.s.nextSeq(ctx)
	if err != nil {
		r.s.log.Error("failed to allocate queue sequence", logger.Error(err))
		return nil, err
	}
	ts := now()
	doc := entryDoc{
		ID:          uuid.NewString(),
		StudentID:   entry.StudentID,
		Pickup:      entry.Pickup,
		Destination: entry.Destination,
		Status:      models.QueueStatusWaiting,
		QueueAt:     entry.QueueAt,
		Seq:         seq,
		CreatedAt:   ts,
		UpdatedAt:   ts,
	}
	if doc.QueueAt.IsZero() {
		doc.QueueAt = ts
	}
	if _, err := r.c().InsertOne(r.s.bind(ctx), doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, storage.ErrDuplicate
		}
		r.s.log.Error("failed to create queue entry", logger.String("student", entry.StudentID), logger.Error(err))
		return nil, err
	}
	return doc.model(), nil
}

func (r *queueRepo) GetByID(ctx context.Context, id string) (*models.QueueEntry, error) {
	e, err := findOne(r.s.bind(ctx), r.c(), bson.M{"_id": id}, (*entryDoc).model)
	if err != nil {
		r.s.log.Error("failed to get queue entry", logger.String("id", id), logger.Error(err))
	}
	return e, err
}

func (r *queueRepo) GetByIDs(ctx context.Context, ids []string) ([]*models.QueueEntry, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	entries, err := findMany(r.s.bind(ctx), r.c(), bson.M{"_id": inIDs(ids)}, (*entryDoc).model)
	if err != nil {
		r.s.log.Error("failed to get queue entries", logger.Error(err))
	}
	return entries, err
}

func (r *queueRepo) GetActiveByStudent(ctx context.Context, studentID string) (*models.QueueEntry, error) {
	e, err := findOne(r.s.bind(ctx), r.c(),
		bson.M{"student_id": studentID, "status": bson.M{"$in": models.ActiveQueueStatuses}},
		(*entryDoc).model,
		options.FindOne().SetSort(bson.D{{Key: "updated_at", Value: -1}, {Key: "created_at", Value: -1}}))
	if err != nil {
		r.s.log.Error("failed to get active queue entry", logger.String("student", studentID), logger.Error(err))
	}
	return e, err
}

func (r *queueRepo) ListWaiting(ctx context.Context, limit int) ([]*models.QueueEntry, error) {
	opts := options.Find().SetSort(fifoSort)
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	entries, err := findMany(r.s.bind(ctx), r.c(), bson.M{"status": models.QueueStatusWaiting}, (*entryDoc).model, opts)
	if err != nil {
		r.s.log.Error("failed to list waiting entries", logger.Error(err))
	}
	return entries, err
}

func (r *queueRepo) ListHistory(ctx context.Context, studentID string) ([]*models.QueueEntry, error) {
	entries, err := findMany(r.s.bind(ctx), r.c(),
		bson.M{"student_id": studentID, "status": bson.M{"$nin": models.ActiveQueueStatuses}},
		(*entryDoc).model,
		options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}}))
	if err != nil {
		r.s.log.Error("failed to list queue history", logger.String("student", studentID), logger.Error(err))
	}
	return entries, err
}

func (r *queueRepo) CountByStatus(ctx context.Context, statuses ...string) (int, error) {
	n, err := r.c().CountDocuments(r.s.bind(ctx), bson.M{"status": bson.M{"$in": statuses}})
	if err != nil {
		r.s.log.Error("failed to count queue entries", logger.Error(err))
	}
	return int(n), err
}

func (r *queueRepo) WaitingPosition(ctx context.Context, id string) (int, error) {
	target, err := findOne(r.s.bind(ctx), r.c(), bson.M{"_id": id, "status": models.QueueStatusWaiting}, (*entryDoc).model)
	if err != nil || target == nil {
		return 0, err
	}
	ahead, err := r.c().CountDocuments(r.s.bind(ctx), bson.M{
		"status": models.QueueStatusWaiting,
		"$or": []bson.M{
			{"queue_at": bson.M{"$lt": target.QueueAt}},
			{"queue_at": target.QueueAt, "seq": bson.M{"$lt": target.Seq}},
			{"queue_at": target.QueueAt, "seq": target.Seq, "_id": bson.M{"$lt": target.ID}},
		},
	})
	if err != nil {
		r.s.log.Error("failed to compute queue position", logger.String("id", id), logger.Error(err))
		return 0, err
	}
	return int(ahead) + 1, nil
}

func (r *queueRepo) HasLocked(ctx context.Context, studentID string) (bool, error) {
	n, err := r.c().CountDocuments(r.s.bind(ctx),
		bson.M{"student_id": studentID, "status": bson.M{"$in": models.LockedQueueStatuses}},
		options.Count().SetLimit(1))
	if err != nil {
		r.s.log.Error("failed to check locked entry", logger.String("student", studentID), logger.Error(err))
	}
	return n > 0, err
}

func (r *queueRepo) RemoveWaiting(ctx context.Context, studentID string, at time.Time) (*models.QueueEntry, error) {
	return r.findAndUpdate(ctx, "remove waiting entry",
		bson.M{"student_id": studentID, "status": models.QueueStatusWaiting},
		bson.M{"$set": bson.M{
			"status":       models.QueueStatusRemoved,
			"ride_id":      nil,
			"driver_id":    nil,
			"completed_at": at,
			"updated_at":   now(),
		}},
		fifoSort)
}

func (r *queueRepo) ClaimNextWaiting(ctx context.Context, driverID string, at time.Time) (*models.QueueEntry, error) {
	return r.findAndUpdate(ctx, "claim waiting entry",
		bson.M{"status": models.QueueStatusWaiting},
		bson.M{"$set": bson.M{
			"status":     models.QueueStatusAssigned,
			"driver_id":  driverID,
			"started_at": at,
			"updated_at": now(),
		}},
		fifoSort)
}

func (r *queueRepo) LockClaimed(ctx context.Context, ids []string, driverID, rideID string, at time.Time) (int64, error) {
	return r.updateMany(ctx, "lock claimed entries",
		bson.M{"_id": inIDs(ids), "status": models.QueueStatusAssigned, "driver_id": driverID},
		bson.M{"$set": bson.M{
			"status":     models.QueueStatusInTransit,
			"ride_id":    rideID,
			"started_at": at,
			"updated_at": now(),
		}})
}

func (r *queueRepo) ReleaseClaimed(ctx context.Context, ids []string, driverID, rideID string) (int64, error) {
	held := []bson.M{{"status": models.QueueStatusAssigned, "ride_id": nil}}
	if rideID != "" {
		held = append(held, bson.M{"status": models.QueueStatusInTransit, "ride_id": rideID})
	}
	return r.updateMany(ctx, "release claimed entries",
		bson.M{"_id": inIDs(ids), "driver_id": driverID, "$or": held},
		bson.M{"$set": bson.M{
			"status":     models.QueueStatusWaiting,
			"driver_id":  nil,
			"ride_id":    nil,
			"started_at": nil,
			"updated_at": now(),
		}})
}

func (r *queueRepo) MarkArrived(ctx context.Context, id, rideID string, at time.Time) (int64, error) {
	return r.updateMany(ctx, "mark entry arrived",
		bson.M{"_id": id, "ride_id": rideID, "status": bson.M{"$in": []string{models.QueueStatusAssigned, models.QueueStatusPickup}}},
		bson.M{"$set": bson.M{
			"status":     models.QueueStatusPickup,
			"arrived_at": at,
			"updated_at": now(),
		}})
}

func (r *queueRepo) ApplyCancel(ctx context.Context, guard models.CancelGuard, update models.CancelUpdate) (int64, error) {
	res, err := r.c().UpdateOne(r.s.bind(ctx),
		bson.M{
			"_id":          guard.ID,
			"status":       guard.Status,
			"cancel_count": guard.CancelCount,
			"ride_id":      guard.RideID,
			"driver_id":    guard.DriverID,
		},
		bson.M{
			"$inc": bson.M{"cancel_count": 1},
			"$set": bson.M{
				"status":       update.Status,
				"queue_at":     update.QueueAt,
				"ride_id":      nil,
				"driver_id":    nil,
				"arrived_at":   nil,
				"started_at":   nil,
				"completed_at": update.CompletedAt,
				"updated_at":   now(),
			},
		})
	if err != nil {
		r.s.log.Error("failed to apply cancel", logger.String("id", guard.ID), logger.Error(err))
		return 0, err
	}
	return res.ModifiedCount, nil
}

func (r *queueRepo) CompleteMany(ctx context.Context, ids []string, at time.Time) (int64, error) {
	return r.updateMany(ctx, "complete entries",
		bson.M{"_id": inIDs(ids)},
		bson.M{"$set": bson.M{
			"status":       models.QueueStatusCompleted,
			"completed_at": at,
			"updated_at":   now(),
		}})
}

func (r *queueRepo) RemoveActiveByStudent(ctx context.Context, studentID string, at time.Time) ([]storage.DetachedEntry, error) {
	active, err := findMany(r.s.bind(ctx), r.c(),
		bson.M{"student_id": studentID, "status": bson.M{"$in": models.ActiveQueueStatuses}},
		(*entryDoc).model)
	if err != nil {
		r.s.log.Error("failed to load active entries", logger.String("student", studentID), logger.Error(err))
		return nil, err
	}
	if len(active) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(active))
	out := make([]storage.DetachedEntry, 0, len(active))
	for _, e := range active {
		ids = append(ids, e.ID)
		out = append(out, storage.DetachedEntry{ID: e.ID, RideID: e.RideID})
	}
	_, err = r.updateMany(ctx, "remove active entries",
		bson.M{"_id": inIDs(ids), "status": bson.M{"$in": models.ActiveQueueStatuses}},
		bson.M{"$set": bson.M{
			"status":       models.QueueStatusRemoved,
			"ride_id":      nil,
			"driver_id":    nil,
			"arrived_at":   nil,
			"started_at":   nil,
			"completed_at": at,
			"updated_at":   now(),
		}})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *queueRepo) RequeueMany(ctx context.Context, ids []string, at time.Time) (int64, error) {
	return r.updateMany(ctx, "requeue entries",
		bson.M{"_id": inIDs(ids), "status": bson.M{"$in": models.LockedQueueStatuses}},
		bson.M{"$set": bson.M{
			"status":       models.QueueStatusWaiting,
			"ride_id":      nil,
			"driver_id":    nil,
			"queue_at":     at,
			"arrived_at":   nil,
			"started_at":   nil,
			"completed_at": nil,
			"updated_at":   now(),
		}})
}

func (r *queueRepo) ClearDriver(ctx context.Context, driverID string) (int64, error) {
	return r.updateMany(ctx, "clear entry driver",
		bson.M{"driver_id": driverID, "status": bson.M{"$in": models.ActiveQueueStatuses}},
		bson.M{"$set": bson.M{"driver_id": nil, "arrived_at": nil, "updated_at": now()}})
}

func (r *queueRepo) DeleteByStudent(ctx context.Context, studentID string) (int64, error) {
	res, err := r.c().DeleteMany(r.s.bind(ctx), bson.M{"student_id": studentID})
	if err != nil {
		r.s.log.Error("failed to delete student entries", logger.String("student", studentID), logger.Error(err))
		return 0, err
	}
	return res.DeletedCount, nil
}
