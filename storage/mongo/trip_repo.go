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
)

type tripRepo struct {
	s *Store
}

func (r *tripRepo) c() *mongo.Collection { return r.s.coll(colTrips) }

func orEmpty(list []string) []string {
	if list == nil {
		return []string{}
	}
	return list
}

func (r *tripRepo) Upsert(ctx context.Context, trip *models.Trip) (*models.Trip, error) {
	ts := now()
	var doc tripDoc
	err := r.c().FindOneAndUpdate(r.s.bind(ctx),
		bson.M{"ride_id": trip.RideID},
		bson.M{
			"$set": bson.M{
				"driver_id":     trip.DriverID,
				"students":      orEmpty(trip.Students),
				"pickup_points": orEmpty(trip.PickupPoints),
				"destinations":  orEmpty(trip.Destinations),
				"status":        trip.Status,
				"started_at":    trip.StartedAt,
				"completed_at":  trip.CompletedAt,
				"updated_at":    ts,
			},
			"$setOnInsert": bson.M{"_id": uuid.NewString(), "created_at": ts},
		},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		r.s.log.Error("failed to upsert trip", logger.String("ride", trip.RideID), logger.Error(err))
		return nil, err
	}
	return doc.model(), nil
}

func (r *tripRepo) GetByID(ctx context.Context, id string) (*models.Trip, error) {
	t, err := findOne(r.s.bind(ctx), r.c(), bson.M{"_id": id}, (*tripDoc).model)
	if err != nil {
		r.s.log.Error("failed to get trip", logger.String("id", id), logger.Error(err))
	}
	return t, err
}

func (r *tripRepo) GetByRideID(ctx context.Context, rideID string) (*models.Trip, error) {
	t, err := findOne(r.s.bind(ctx), r.c(), bson.M{"ride_id": rideID}, (*tripDoc).model)
	if err != nil {
		r.s.log.Error("failed to get trip by ride", logger.String("ride", rideID), logger.Error(err))
	}
	return t, err
}

func (r *tripRepo) GetInTransitForUser(ctx context.Context, userID, role string) (*models.Trip, error) {
	filter := bson.M{"status": models.TripStatusInTransit}
	switch role {
	case models.RoleDriver:
		filter["driver_id"] = userID
	case models.RoleStudent:
		filter["students"] = userID
	default:
		return nil, nil
	}
	t, err := findOne(r.s.bind(ctx), r.c(), filter, (*tripDoc).model,
		options.FindOne().SetSort(bson.D{{Key: "started_at", Value: -1}}))
	if err != nil {
		r.s.log.Error("failed to get in-transit trip", logger.String("user", userID), logger.Error(err))
	}
	return t, err
}

func (r *tripRepo) DeleteByRideID(ctx context.Context, rideID string) error {
	_, err := r.c().DeleteOne(r.s.bind(ctx), bson.M{"ride_id": rideID})
	if err != nil {
		r.s.log.Error("failed to delete trip", logger.String("ride", rideID), logger.Error(err))
	}
	return err
}

func (r *tripRepo) updateMany(ctx context.Context, op string, filter, update bson.M) (int64, error) {
	res, err := r.c().UpdateMany(r.s.bind(ctx), filter, update)
	if err != nil {
		r.s.log.Error("failed to "+op, logger.Error(err))
		return 0, err
	}
	return res.ModifiedCount, nil
}

func (r *tripRepo) SetStatusByRides(ctx context.Context, rideIDs []string, from, to string, at time.Time, clearDriver bool) (int64, error) {
	if len(rideIDs) == 0 {
		return 0, nil
	}
	set := bson.M{"status": to, "completed_at": at, "updated_at": now()}
	if clearDriver {
		set["driver_id"] = nil
	}
	return r.updateMany(ctx, "update trip status",
		bson.M{"ride_id": inIDs(rideIDs), "status": from},
		bson.M{"$set": set})
}

func (r *tripRepo) PullStudent(ctx context.Context, rideIDs []string, studentID string) (int64, error) {
	filter := bson.M{"students": studentID}
	if rideIDs != nil {
		if len(rideIDs) == 0 {
			return 0, nil
		}
		filter["ride_id"] = inIDs(rideIDs)
	}
	return r.updateMany(ctx, "pull trip student", filter, bson.M{
		"$pull": bson.M{"students": studentID},
		"$set":  bson.M{"updated_at": now()},
	})
}

func (r *tripRepo) DetachDriver(ctx context.Context, driverID string) (int64, error) {
	return r.updateMany(ctx, "detach trip driver",
		bson.M{"driver_id": driverID},
		bson.M{"$set": bson.M{"driver_id": nil, "updated_at": now()}})
}
