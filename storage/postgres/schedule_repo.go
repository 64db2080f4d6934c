package postgres

import (
	"context"

	"github.com/google/uuid"

	"campusride/pkg/logger"
	"campusride/pkg/models"
	"campusride/storage"
)

const scheduleColumns = `id, title, description, schedule_date, start_time, end_time, target_role, driver_id, created_by, created_at, updated_at`

type scheduleRepo struct {
	db  querier
	log logger.ILogger
}

func NewScheduleRepo(db querier, log logger.ILogger) storage.IScheduleStorage {
	return &scheduleRepo{db: db, log: log}
}

func scanSchedule(row scanner) (*models.Schedule, error) {
	var s models.Schedule
	err := row.Scan(
		&s.ID, &s.Title, &s.Description, &s.Date, &s.StartTime, &s.EndTime,
		&s.TargetRole, &s.DriverID, &s.CreatedBy, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *scheduleRepo) Create(ctx context.Context, schedule *models.Schedule) (*models.Schedule, error) {
	target := schedule.TargetRole
	if target == "" {
		target = models.ScheduleTargetAll
	}
	created, err := scanSchedule(r.db.QueryRow(ctx, `
		INSERT INTO schedules (id, title, description, schedule_date, start_time, end_time, target_role, driver_id, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+scheduleColumns,
		uuid.NewString(), schedule.Title, schedule.Description, schedule.Date, schedule.StartTime,
		schedule.EndTime, target, schedule.DriverID, schedule.CreatedBy,
	))
	if err != nil {
		r.log.Error("failed to create schedule", logger.String("title", schedule.Title), logger.Error(err))
		return nil, err
	}
	return created, nil
}

func (r *scheduleRepo) List(ctx context.Context, filter models.ScheduleFilter) ([]*models.Schedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM schedules`
	var args []any
	if !filter.IsZero() {
		query += ` WHERE target_role = ANY($1) OR ($2 <> '' AND driver_id = $2)`
		args = append(args, filter.TargetRoles, filter.DriverID)
	}
	query += ` ORDER BY schedule_date, start_time, created_at`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		r.log.Error("failed to list schedules", logger.Error(err))
		return nil, err
	}
	defer rows.Close()

	var out []*models.Schedule
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *scheduleRepo) ClearDriver(ctx context.Context, driverID string) (int64, error) {
	tag, err := r.db.Exec(ctx, `UPDATE schedules SET driver_id = NULL, updated_at = NOW() WHERE driver_id = $1`, driverID)
	if err != nil {
		r.log.Error("failed to clear schedule driver", logger.String("driver", driverID), logger.Error(err))
		return 0, err
	}
	return tag.RowsAffected(), nil
}
