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

const entryColumns = `id, student_id, pickup, destination, status, cancel_count, queue_at, ride_id, driver_id, arrived_at, started_at, completed_at, seq, created_at, updated_at`

// fifoOrder is the single FIFO ordering used for claims, positions and listings.
const fifoOrder = `queue_at, seq, id`

type queueRepo struct {
	db  querier
	log logger.ILogger
}

func NewQueueRepo(db querier, log logger.ILogger) storage.IQueueStorage {
	return &queueRepo{db: db, log: log}
}

func scanEntry(row scanner) (*models.QueueEntry, error) {
	var e models.QueueEntry
	err := row.Scan(
		&e.ID, &e.StudentID, &e.Pickup, &e.Destination, &e.Status, &e.CancelCount, &e.QueueAt,
		&e.RideID, &e.DriverID, &e.ArrivedAt, &e.StartedAt, &e.CompletedAt, &e.Seq, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// one scans a single row, mapping "no rows" to (nil, nil).
func (r *queueRepo) one(ctx context.Context, op, query string, args ...any) (*models.QueueEntry, error) {
	entry, err := scanEntry(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.log.Error("failed to "+op, logger.Error(err))
		return nil, err
	}
	return entry, nil
}

func (r *queueRepo) many(ctx context.Context, op, query string, args ...any) ([]*models.QueueEntry, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		r.log.Error("failed to "+op, logger.Error(err))
		return nil, err
	}
	defer rows.Close()

	var entries []*models.QueueEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *queueRepo) exec(ctx context.Context, op string, query string, args ...any) (int64, error) {
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		r.log.Error("failed to "+op, logger.Error(err))
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *queueRepo) CreateIfNoActive(ctx context.Context, entry *models.QueueEntry) (*models.QueueEntry, error) {
	queueAt := entry.QueueAt
	if queueAt.IsZero() {
		queueAt = time.Now().UTC()
	}
	query := `
		INSERT INTO queue_entries (id, student_id, pickup, destination, status, queue_at)
		VALUES ($1, $2, $3, $4, 'waiting', $5)
		ON CONFLICT (student_id) WHERE status IN ('waiting', 'assigned', 'pickup', 'in-transit') DO NOTHING
		RETURNING ` + entryColumns
	created, err := scanEntry(r.db.QueryRow(ctx, query,
		uuid.NewString(), entry.StudentID, entry.Pickup, entry.Destination, queueAt,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isUniqueViolation(err) {
			return nil, storage.ErrDuplicate
		}
		r.log.Error("failed to create queue entry", logger.String("student", entry.StudentID), logger.Error(err))
		return nil, err
	}
	return created, nil
}

func (r *queueRepo) GetByID(ctx context.Context, id string) (*models.QueueEntry, error) {
	return r.one(ctx, "get queue entry", `SELECT `+entryColumns+` FROM queue_entries WHERE id = $1`, id)
}

func (r *queueRepo) GetByIDs(ctx context.Context, ids []string) ([]*models.QueueEntry, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return r.many(ctx, "get queue entries", `SELECT `+entryColumns+` FROM queue_entries WHERE id = ANY($1)`, ids)
}

func (r *queueRepo) GetActiveByStudent(ctx context.Context, studentID string) (*models.QueueEntry, error) {
	return r.one(ctx, "get active queue entry", `
		SELECT `+entryColumns+` FROM queue_entries
		WHERE student_id = $1 AND status = ANY($2)
		ORDER BY updated_at DESC, created_at DESC
		LIMIT 1`, studentID, models.ActiveQueueStatuses)
}

func (r *queueRepo) ListWaiting(ctx context.Context, limit int) ([]*models.QueueEntry, error) {
	return r.many(ctx, "list waiting entries", `
		SELECT `+entryColumns+` FROM queue_entries
		WHERE status = 'waiting'
		ORDER BY `+fifoOrder+`
		LIMIT NULLIF($1, 0)`, max(limit, 0))
}

func (r *queueRepo) ListHistory(ctx context.Context, studentID string) ([]*models.QueueEntry, error) {
	return r.many(ctx, "list queue history", `
		SELECT `+entryColumns+` FROM queue_entries
		WHERE student_id = $1 AND NOT (status = ANY($2))
		ORDER BY updated_at DESC`, studentID, models.ActiveQueueStatuses)
}

func (r *queueRepo) CountByStatus(ctx context.Context, statuses ...string) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM queue_entries WHERE status = ANY($1)`, statuses).Scan(&count)
	if err != nil {
		r.log.Error("failed to count queue entries", logger.Strings("statuses", statuses), logger.Error(err))
	}
	return count, err
}

func (r *queueRepo) WaitingPosition(ctx context.Context, id string) (int, error) {
	var position int
	err := r.db.QueryRow(ctx, `
		SELECT CASE WHEN t.id IS NULL THEN 0 ELSE (
			SELECT COUNT(*) FROM queue_entries q
			WHERE q.status = 'waiting' AND (q.queue_at, q.seq, q.id) < (t.queue_at, t.seq, t.id)
		) + 1 END
		FROM (SELECT 1) AS one
		LEFT JOIN queue_entries t ON t.id = $1 AND t.status = 'waiting'`, id).Scan(&position)
	if err != nil {
		r.log.Error("failed to compute queue position", logger.String("id", id), logger.Error(err))
	}
	return position, err
}

func (r *queueRepo) HasLocked(ctx context.Context, studentID string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM queue_entries WHERE student_id = $1 AND status = ANY($2))`,
		studentID, models.LockedQueueStatuses).Scan(&exists)
	if err != nil {
		r.log.Error("failed to check locked entry", logger.String("student", studentID), logger.Error(err))
	}
	return exists, err
}

func (r *queueRepo) RemoveWaiting(ctx context.Context, studentID string, at time.Time) (*models.QueueEntry, error) {
	return r.one(ctx, "remove waiting entry", `
		UPDATE queue_entries
		SET status = 'removed', ride_id = NULL, driver_id = NULL, completed_at = $2, updated_at = NOW()
		WHERE id = (
			SELECT id FROM queue_entries
			WHERE student_id = $1 AND status = 'waiting'
			ORDER BY `+fifoOrder+`
			LIMIT 1
			FOR UPDATE
		) AND status = 'waiting'
		RETURNING `+entryColumns, studentID, at)
}

// ClaimNextWaiting locks the FIFO head with SKIP LOCKED so concurrent
// claimers walk past each other instead of colliding on one row.
func (r *queueRepo) ClaimNextWaiting(ctx context.Context, driverID string, at time.Time) (*models.QueueEntry, error) {
	return r.one(ctx, "claim waiting entry", `
		UPDATE queue_entries
		SET status = 'assigned', driver_id = $1, started_at = $2, updated_at = NOW()
		WHERE id = (
			SELECT id FROM queue_entries
			WHERE status = 'waiting'
			ORDER BY `+fifoOrder+`
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		) AND status = 'waiting'
		RETURNING `+entryColumns, driverID, at)
}

func (r *queueRepo) LockClaimed(ctx context.Context, ids []string, driverID, rideID string, at time.Time) (int64, error) {
	return r.exec(ctx, "lock claimed entries", `
		UPDATE queue_entries
		SET status = 'in-transit', ride_id = $3, started_at = $4, updated_at = NOW()
		WHERE id = ANY($1) AND status = 'assigned' AND driver_id = $2`, ids, driverID, rideID, at)
}

func (r *queueRepo) ReleaseClaimed(ctx context.Context, ids []string, driverID, rideID string) (int64, error) {
	return r.exec(ctx, "release claimed entries", `
		UPDATE queue_entries
		SET status = 'waiting', driver_id = NULL, ride_id = NULL, started_at = NULL, updated_at = NOW()
		WHERE id = ANY($1) AND driver_id = $2
		  AND ((status = 'assigned' AND ride_id IS NULL)
		    OR (status = 'in-transit' AND ride_id = NULLIF($3, '')))`, ids, driverID, rideID)
}

func (r *queueRepo) MarkArrived(ctx context.Context, id, rideID string, at time.Time) (int64, error) {
	return r.exec(ctx, "mark entry arrived", `
		UPDATE queue_entries
		SET status = 'pickup', arrived_at = $3, updated_at = NOW()
		WHERE id = $1 AND ride_id = $2 AND status IN ('assigned', 'pickup')`, id, rideID, at)
}

func (r *queueRepo) ApplyCancel(ctx context.Context, guard models.CancelGuard, update models.CancelUpdate) (int64, error) {
	return r.exec(ctx, "apply cancel", `
		UPDATE queue_entries
		SET cancel_count = cancel_count + 1,
		    status = $6,
		    queue_at = $7,
		    ride_id = NULL,
		    driver_id = NULL,
		    arrived_at = NULL,
		    started_at = NULL,
		    completed_at = $8,
		    updated_at = NOW()
		WHERE id = $1
		  AND status = $2
		  AND cancel_count = $3
		  AND ride_id IS NOT DISTINCT FROM $4::text
		  AND driver_id IS NOT DISTINCT FROM $5::text`,
		guard.ID, guard.Status, guard.CancelCount, guard.RideID, guard.DriverID,
		update.Status, update.QueueAt, update.CompletedAt,
	)
}

func (r *queueRepo) CompleteMany(ctx context.Context, ids []string, at time.Time) (int64, error) {
	return r.exec(ctx, "complete entries", `
		UPDATE queue_entries
		SET status = 'completed', completed_at = $2, updated_at = NOW()
		WHERE id = ANY($1)`, ids, at)
}

func (r *queueRepo) RemoveActiveByStudent(ctx context.Context, studentID string, at time.Time) ([]storage.DetachedEntry, error) {
	rows, err := r.db.Query(ctx, `
		WITH prev AS (
			SELECT id, ride_id FROM queue_entries
			WHERE student_id = $1 AND status = ANY($3)
			FOR UPDATE
		)
		UPDATE queue_entries q
		SET status = 'removed', ride_id = NULL, driver_id = NULL,
		    arrived_at = NULL, started_at = NULL, completed_at = $2, updated_at = NOW()
		FROM prev
		WHERE q.id = prev.id
		RETURNING prev.id, prev.ride_id`, studentID, at, models.ActiveQueueStatuses)
	if err != nil {
		r.log.Error("failed to remove active entries", logger.String("student", studentID), logger.Error(err))
		return nil, err
	}
	defer rows.Close()

	var out []storage.DetachedEntry
	for rows.Next() {
		var d storage.DetachedEntry
		if err := rows.Scan(&d.ID, &d.RideID); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *queueRepo) RequeueMany(ctx context.Context, ids []string, at time.Time) (int64, error) {
	return r.exec(ctx, "requeue entries", `
		UPDATE queue_entries
		SET status = 'waiting', ride_id = NULL, driver_id = NULL, queue_at = $2,
		    arrived_at = NULL, started_at = NULL, completed_at = NULL, updated_at = NOW()
		WHERE id = ANY($1) AND status = ANY($3)`, ids, at, models.LockedQueueStatuses)
}

func (r *queueRepo) ClearDriver(ctx context.Context, driverID string) (int64, error) {
	return r.exec(ctx, "clear entry driver", `
		UPDATE queue_entries
		SET driver_id = NULL, arrived_at = NULL, updated_at = NOW()
		WHERE driver_id = $1 AND status = ANY($2)`, driverID, models.ActiveQueueStatuses)
}

func (r *queueRepo) DeleteByStudent(ctx context.Context, studentID string) (int64, error) {
	return r.exec(ctx, "delete student entries", `DELETE FROM queue_entries WHERE student_id = $1`, studentID)
}
