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

const rideColumns = `id, driver_id, students, status, max_seats, started_at, completed_at, created_at, updated_at`

type rideRepo struct {
	db  querier
	log logger.ILogger
}

func NewRideRepo(db querier, log logger.ILogger) storage.IRideStorage {
	return &rideRepo{db: db, log: log}
}

func scanRide(row scanner) (*models.Ride, error) {
	var ride models.Ride
	err := row.Scan(
		&ride.ID, &ride.DriverID, &ride.Students, &ride.Status, &ride.MaxSeats,
		&ride.StartedAt, &ride.CompletedAt, &ride.CreatedAt, &ride.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &ride, nil
}

func (r *rideRepo) Create(ctx context.Context, ride *models.Ride) (*models.Ride, error) {
	maxSeats := ride.MaxSeats
	if maxSeats <= 0 {
		maxSeats = models.DefaultMaxSeats
	}
	students := ride.Students
	if students == nil {
		students = []string{}
	}
	created, err := scanRide(r.db.QueryRow(ctx, `
		INSERT INTO rides (id, driver_id, students, status, max_seats, started_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+rideColumns,
		uuid.NewString(), ride.DriverID, students, ride.Status, maxSeats, ride.StartedAt,
	))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, storage.ErrDuplicate
		}
		r.log.Error("failed to create ride", logger.String("driver", models.Deref(ride.DriverID)), logger.Error(err))
		return nil, err
	}
	return created, nil
}

func (r *rideRepo) one(ctx context.Context, op, query string, args ...any) (*models.Ride, error) {
	ride, err := scanRide(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.log.Error("failed to "+op, logger.Error(err))
		return nil, err
	}
	return ride, nil
}

func (r *rideRepo) many(ctx context.Context, op, query string, args ...any) ([]*models.Ride, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		r.log.Error("failed to "+op, logger.Error(err))
		return nil, err
	}
	defer rows.Close()

	var rides []*models.Ride
	for rows.Next() {
		ride, err := scanRide(rows)
		if err != nil {
			return nil, err
		}
		rides = append(rides, ride)
	}
	return rides, rows.Err()
}

func (r *rideRepo) exec(ctx context.Context, op, query string, args ...any) (int64, error) {
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		r.log.Error("failed to "+op, logger.Error(err))
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *rideRepo) GetByID(ctx context.Context, id string) (*models.Ride, error) {
	return r.one(ctx, "get ride", `SELECT `+rideColumns+` FROM rides WHERE id = $1`, id)
}

func (r *rideRepo) GetInTransitByDriver(ctx context.Context, driverID string) (*models.Ride, error) {
	return r.one(ctx, "get in-transit ride", `
		SELECT `+rideColumns+` FROM rides
		WHERE driver_id = $1 AND status = 'in-transit'
		ORDER BY created_at
		LIMIT 1`, driverID)
}

func (r *rideRepo) ListActive(ctx context.Context) ([]*models.Ride, error) {
	return r.many(ctx, "list active rides", `
		SELECT `+rideColumns+` FROM rides WHERE status = ANY($1) ORDER BY created_at`,
		models.ActiveRideStatuses)
}

func (r *rideRepo) ListActiveByDriver(ctx context.Context, driverID string) ([]*models.Ride, error) {
	return r.many(ctx, "list driver rides", `
		SELECT `+rideColumns+` FROM rides WHERE driver_id = $1 AND status = ANY($2) ORDER BY created_at`,
		driverID, models.ActiveRideStatuses)
}

func (r *rideRepo) Delete(ctx context.Context, id string) error {
	_, err := r.exec(ctx, "delete ride", `DELETE FROM rides WHERE id = $1`, id)
	return err
}

func (r *rideRepo) PullMembers(ctx context.Context, rideIDs, entryIDs []string, skipStatus string) (int64, error) {
	if len(rideIDs) == 0 || len(entryIDs) == 0 {
		return 0, nil
	}
	return r.exec(ctx, "pull ride members", `
		UPDATE rides
		SET students = ARRAY(
			SELECT s FROM unnest(students) WITH ORDINALITY AS u(s, ord)
			WHERE NOT (s = ANY($2::text[]))
			ORDER BY ord
		), updated_at = NOW()
		WHERE id = ANY($1) AND students && $2::text[] AND ($3::text = '' OR status <> $3::text)`,
		rideIDs, entryIDs, skipStatus)
}

func (r *rideRepo) Complete(ctx context.Context, id, driverID string, at time.Time) (int64, error) {
	return r.exec(ctx, "complete ride", `
		UPDATE rides
		SET status = 'completed', completed_at = $3, updated_at = NOW()
		WHERE id = $1 AND driver_id = $2 AND status = 'in-transit'`, id, driverID, at)
}

func (r *rideRepo) CancelMany(ctx context.Context, ids []string, at time.Time, clearDriver bool) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	return r.exec(ctx, "cancel rides", `
		UPDATE rides
		SET status = 'cancelled',
		    completed_at = $2,
		    driver_id = CASE WHEN $3::bool THEN NULL ELSE driver_id END,
		    updated_at = NOW()
		WHERE id = ANY($1) AND status = ANY($4)`, ids, at, clearDriver, models.ActiveRideStatuses)
}

func (r *rideRepo) FilterEmptyActive(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.db.Query(ctx, `
		SELECT id FROM rides
		WHERE id = ANY($1) AND status = ANY($2) AND cardinality(students) = 0`,
		ids, models.ActiveRideStatuses)
	if err != nil {
		r.log.Error("failed to find empty rides", logger.Error(err))
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func (r *rideRepo) DetachDriver(ctx context.Context, driverID string) (int64, error) {
	return r.exec(ctx, "detach ride driver", `
		UPDATE rides SET driver_id = NULL, updated_at = NOW() WHERE driver_id = $1`, driverID)
}
