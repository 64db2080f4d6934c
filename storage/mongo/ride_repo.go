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

type rideRepo struct {
	s *Store
}

func (r *rideRepo) c() *mongo.Collection { return r.s.coll(colRides) }

func (r *rideRepo) updateMany(ctx context.Context, op string, filter, update bson.M) (int64, error) {
	res, err := r.c().UpdateMany(r.s.bind(ctx), filter, update)
	if err != nil {
		r.s.log.Error("failed to "+op, logger.Error(err))
		return 0, err
	}
	return res.ModifiedCount, nil
}

func (r *rideRepo) Create(ctx context.Context, ride *models.Ride) (*models.Ride, error) {
	ts := now()
	doc := rideDoc{
		ID:        uuid.NewString(),
		DriverID:  ride.DriverID,
		Students:  ride.Students,
		Status:    ride.Status,
		MaxSeats:  ride.MaxSeats,
		StartedAt: ride.StartedAt,
		CreatedAt: ts,
		UpdatedAt: ts,
	}
	if doc.Students == nil {
		doc.Students = []string{}
	}
	if doc.MaxSeats <= 0 {
		doc.MaxSeats = models.DefaultMaxSeats
	}
	if _, err := r.c().InsertOne(r.s.bind(ctx), doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, storage.ErrDuplicate
		}
		r.s.log.Error("failed to create ride", logger.String("driver", models.Deref(ride.DriverID)), logger.Error(err))
		return nil, err
	}
	return doc.model(), nil
}

func (r *rideRepo) GetByID(ctx context.Context, id string) (*models.Ride, error) {
	ride, err := findOne(r.s.bind(ctx), r.c(), bson.M{"_id": id}, (*rideDoc).model)
	if err != nil {
		r.s.log.Error("failed to get ride", logger.String("id", id), logger.Error(err))
	}
	return ride, err
}

func (r *rideRepo) GetInTransitByDriver(ctx context.Context, driverID string) (*models.Ride, error) {
	ride, err := findOne(r.s.bind(ctx), r.c(),
		bson.M{"driver_id": driverID, "status": models.RideStatusInTransit},
		(*rideDoc).model,
		options.FindOne().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		r.s.log.Error("failed to get in-transit ride", logger.String("driver", driverID), logger.Error(err))
	}
	return ride, err
}

func (r *rideRepo) ListActive(ctx context.Context) ([]*models.Ride, error) {
	rides, err := findMany(r.s.bind(ctx), r.c(),
		bson.M{"status": bson.M{"$in": models.ActiveRideStatuses}},
		(*rideDoc).model,
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		r.s.log.Error("failed to list active rides", logger.Error(err))
	}
	return rides, err
}

func (r *rideRepo) ListActiveByDriver(ctx context.Context, driverID string) ([]*models.Ride, error) {
	rides, err := findMany(r.s.bind(ctx), r.c(),
		bson.M{"driver_id": driverID, "status": bson.M{"$in": models.ActiveRideStatuses}},
		(*rideDoc).model,
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		r.s.log.Error("failed to list driver rides", logger.String("driver", driverID), logger.Error(err))
	}
	return rides, err
}

func (r *rideRepo) Delete(ctx context.Context, id string) error {
	_, err := r.c().DeleteOne(r.s.bind(ctx), bson.M{"_id": id})
	if err != nil {
		r.s.log.Error("failed to delete ride", logger.String("id", id), logger.Error(err))
	}
	return err
}

func (r *rideRepo) PullMembers(ctx context.Context, rideIDs, entryIDs []string, skipStatus string) (int64, error) {
	if len(rideIDs) == 0 || len(entryIDs) == 0 {
		return 0, nil
	}
	filter := bson.M{"_id": inIDs(rideIDs), "students": inIDs(entryIDs)}
	if skipStatus != "" {
		filter["status"] = bson.M{"$ne": skipStatus}
	}
	return r.updateMany(ctx, "pull ride members", filter, bson.M{
		"$pull": bson.M{"students": inIDs(entryIDs)},
		"$set":  bson.M{"updated_at": now()},
	})
}

func (r *rideRepo) Complete(ctx context.Context, id, driverID string, at time.Time) (int64, error) {
	return r.updateMany(ctx, "complete ride",
		bson.M{"_id": id, "driver_id": driverID, "status": models.RideStatusInTransit},
		bson.M{"$set": bson.M{
			"status":       models.RideStatusCompleted,
			"completed_at": at,
			"updated_at":   now(),
		}})
}

func (r *rideRepo) CancelMany(ctx context.Context, ids []string, at time.Time, clearDriver bool) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	set := bson.M{
		"status":       models.RideStatusCancelled,
		"completed_at": at,
		"updated_at":   now(),
	}
	if clearDriver {
		set["driver_id"] = nil
	}
	return r.updateMany(ctx, "cancel rides",
		bson.M{"_id": inIDs(ids), "status": bson.M{"$in": models.ActiveRideStatuses}},
		bson.M{"$set": set})
}

func (r *rideRepo) FilterEmptyActive(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rides, err := findMany(r.s.bind(ctx), r.c(), bson.M{
		"_id":      inIDs(ids),
		"status":   bson.M{"$in": models.ActiveRideStatuses},
		"students": bson.M{"$size": 0},
	}, (*rideDoc).model)
	if err != nil {
		r.s.log.Error("failed to find empty rides", logger.Error(err))
		return nil, err
	}
	out := make([]string, 0, len(rides))
	for _, ride := range rides {
		out = append(out, ride.ID)
	}
	return out, nil
}

func (r *rideRepo) DetachDriver(ctx context.Context, driverID string) (int64, error) {
	return r.updateMany(ctx, "detach ride driver",
		bson.M{"driver_id": driverID},
		bson.M{"$set": bson.M{"driver_id": nil, "updated_at": now()}})
}
