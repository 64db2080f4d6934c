package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"campusride/pkg/logger"
	"campusride/pkg/models"
	"campusride/storage"
)

const tripColumns = `id, ride_id, driver_id, students, pickup_points, destinations, status, started_at, completed_at, created_at, updated_at`

type tripRepo struct {
	db  querier
	log logger.ILogger
}

func NewTripRepo(db querier, log logger.ILogger) storage.ITripStorage {
	return &tripRepo{db: db, log: log}
}

func scanTrip(row scanner) (*models.Trip, error) {
	var t models.Trip
	err := row.Scan(
		&t.ID, &t.RideID, &t.DriverID, &t.Students, &t.PickupPoints, &t.Destinations,
		&t.Status, &t.StartedAt, &t.CompletedAt, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func nonNil(list []string) []string {
	if list == nil {
		return []string{}
	}
	return list
}

func (r *tripRepo) Upsert(ctx context.Context, trip *models.Trip) (*models.Trip, error) {
	out, err := scanTrip(r.db.QueryRow(ctx, `
		INSERT INTO trips (id, ride_id, driver_id, students, pickup_points, destinations, status, started_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (ride_id) DO UPDATE SET
			driver_id = EXCLUDED.driver_id,
			students = EXCLUDED.students,
			pickup_points = EXCLUDED.pickup_points,
			destinations = EXCLUDED.destinations,
			status = EXCLUDED.status,
			started_at = EXCLUDED.started_at,
			completed_at = EXCLUDED.completed_at,
			updated_at = NOW()
		RETURNING `+tripColumns,
		uuid.NewString(), trip.RideID, trip.DriverID, nonNil(trip.Students), nonNil(trip.PickupPoints),
		nonNil(trip.Destinations), trip.Status, trip.StartedAt, trip.CompletedAt,
	))
	if err != nil {
		r.log.Error("failed to upsert trip", logger.String("ride", trip.RideID), logger.Error(err))
		return nil, err
	}
	return out, nil
}

func (r *tripRepo) one(ctx context.Context, op, query string, args ...any) (*models.Trip, error) {
	trip, err := scanTrip(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.log.Error("failed to "+op, logger.Error(err))
		return nil, err
	}
	return trip, nil
}

func (r *tripRepo) exec(ctx context.Context, op, query string, args ...any) (int64, error) {
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		r.log.Error("failed to "+op, logger.Error(err))
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *tripRepo) GetByID(ctx context.Context, id string) (*models.Trip, error) {
	return r.one(ctx, "get trip", `SELECT `+tripColumns+` FROM trips WHERE id = $1`, id)
}

func (r *tripRepo) GetByRideID(ctx context.Context, rideID string) (*models.Trip, error) {
	return r.one(ctx, "get trip by ride", `SELECT `+tripColumns+` FROM trips WHERE ride_id = $1`, rideID)
}

func (r *tripRepo) GetInTransitForUser(ctx context.Context, userID, role string) (*models.Trip, error) {
	var member string
	switch role {
	case models.RoleDriver:
		member = `driver_id = $1`
	case models.RoleStudent:
		member = `$1 = ANY(students)`
	default:
		return nil, nil
	}
	return r.one(ctx, "get in-transit trip", `
		SELECT `+tripColumns+` FROM trips
		WHERE status = 'in-transit' AND `+member+`
		ORDER BY started_at DESC
		LIMIT 1`, userID)
}

func (r *tripRepo) DeleteByRideID(ctx context.Context, rideID string) error {
	_, err := r.exec(ctx, "delete trip", `DELETE FROM trips WHERE ride_id = $1`, rideID)
	return err
}

func (r *tripRepo) SetStatusByRides(ctx context.Context, rideIDs []string, from, to string, at time.Time, clearDriver bool) (int64, error) {
	if len(rideIDs) == 0 {
		return 0, nil
	}
	return r.exec(ctx, "update trip status", `
		UPDATE trips
		SET status = $3,
		    completed_at = $4,
		    driver_id = CASE WHEN $5::bool THEN NULL ELSE driver_id END,
		    updated_at = NOW()
		WHERE ride_id = ANY($1) AND status = $2`, rideIDs, from, to, at, clearDriver)
}

func (r *tripRepo) PullStudent(ctx context.Context, rideIDs []string, studentID string) (int64, error) {
	if rideIDs == nil {
		return r.exec(ctx, "pull trip student", `
			UPDATE trips SET students = array_remove(students, $1), updated_at = NOW()
			WHERE $1 = ANY(students)`, studentID)
	}
	if len(rideIDs) == 0 {
		return 0, nil
	}
	return r.exec(ctx, "pull trip student", `
		UPDATE trips SET students = array_remove(students, $2), updated_at = NOW()
		WHERE ride_id = ANY($1) AND $2 = ANY(students)`, rideIDs, studentID)
}

func (r *tripRepo) DetachDriver(ctx context.Context, driverID string) (int64, error) {
	return r.exec(ctx, "detach trip driver", `
		UPDATE trips SET driver_id = NULL, updated_at = NOW() WHERE driver_id = $1`, driverID)
}
