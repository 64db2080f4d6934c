package mongo

import (
	"context"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"campusride/pkg/logger"
	"campusride/pkg/models"
)

type scheduleRepo struct {
	s *Store
}

func (r *scheduleRepo) c() *mongo.Collection { return r.s.coll(colSchedules) }

var chronological = bson.D{{Key: "date", Value: 1}, {Key: "start_time", Value: 1}, {Key: "created_at", Value: 1}}

func (r *scheduleRepo) Create(ctx context.Context, schedule *models.Schedule) (*models.Schedule, error) {
	ts := now()
	doc := scheduleDoc{
		ID:          uuid.NewString(),
		Title:       schedule.Title,
		Description: schedule.Description,
		Date:        schedule.Date,
		StartTime:   schedule.StartTime,
		EndTime:     schedule.EndTime,
		TargetRole:  schedule.TargetRole,
		DriverID:    schedule.DriverID,
		CreatedBy:   schedule.CreatedBy,
		CreatedAt:   ts,
		UpdatedAt:   ts,
	}
	if doc.TargetRole == "" {
		doc.TargetRole = models.ScheduleTargetAll
	}
	if _, err := r.c().InsertOne(r.s.bind(ctx), doc); err != nil {
		r.s.log.Error("failed to create schedule", logger.String("title", doc.Title), logger.Error(err))
		return nil, err
	}
	return doc.model(), nil
}

func (r *scheduleRepo) List(ctx context.Context, filter models.ScheduleFilter) ([]*models.Schedule, error) {
	query := bson.M{}
	if !filter.IsZero() {
		or := bson.A{bson.M{"target_role": bson.M{"$in": filter.TargetRoles}}}
		if filter.DriverID != "" {
			or = append(or, bson.M{"driver_id": filter.DriverID})
		}
		query = bson.M{"$or": or}
	}
	out, err := findMany(r.s.bind(ctx), r.c(), query, (*scheduleDoc).model,
		options.Find().SetSort(chronological))
	if err != nil {
		r.s.log.Error("failed to list schedules", logger.Error(err))
	}
	return out, err
}

func (r *scheduleRepo) ClearDriver(ctx context.Context, driverID string) (int64, error) {
	res, err := r.c().UpdateMany(r.s.bind(ctx),
		bson.M{"driver_id": driverID},
		bson.M{"$set": bson.M{"driver_id": nil, "updated_at": now()}})
	if err != nil {
		r.s.log.Error("failed to clear schedule driver", logger.String("driver", driverID), logger.Error(err))
		return 0, err
	}
	return res.ModifiedCount, nil
}
