package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"campusride/pkg/logger"
	"campusride/pkg/models"
	"campusride/storage"
)

const complaintColumns = `id, student_id, trip_id, ride_id, text, status, admin_response, resolved_by, created_at, updated_at`

type complaintRepo struct {
	db  querier
	log logger.ILogger
}

func NewComplaintRepo(db querier, log logger.ILogger) storage.IComplaintStorage {
	return &complaintRepo{db: db, log: log}
}

func scanComplaint(row scanner) (*models.Complaint, error) {
	var c models.Complaint
	err := row.Scan(
		&c.ID, &c.StudentID, &c.TripID, &c.RideID, &c.Text, &c.Status,
		&c.AdminResponse, &c.ResolvedBy, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *complaintRepo) Create(ctx context.Context, complaint *models.Complaint) (*models.Complaint, error) {
	status := complaint.Status
	if status == "" {
		status = models.ComplaintStatusSubmitted
	}
	created, err := scanComplaint(r.db.QueryRow(ctx, `
		INSERT INTO complaints (id, student_id, trip_id, ride_id, text, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+complaintColumns,
		uuid.NewString(), complaint.StudentID, complaint.TripID, complaint.RideID, complaint.Text, status,
	))
	if err != nil {
		r.log.Error("failed to create complaint", logger.String("student", complaint.StudentID), logger.Error(err))
		return nil, err
	}
	return created, nil
}

func (r *complaintRepo) GetByID(ctx context.Context, id string) (*models.Complaint, error) {
	c, err := scanComplaint(r.db.QueryRow(ctx, `SELECT `+complaintColumns+` FROM complaints WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.log.Error("failed to get complaint", logger.String("id", id), logger.Error(err))
		return nil, err
	}
	return c, nil
}

func (r *complaintRepo) list(ctx context.Context, query string, args ...any) ([]*models.Complaint, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		r.log.Error("failed to list complaints", logger.Error(err))
		return nil, err
	}
	defer rows.Close()

	var out []*models.Complaint
	for rows.Next() {
		c, err := scanComplaint(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *complaintRepo) ListByStudent(ctx context.Context, studentID string) ([]*models.Complaint, error) {
	return r.list(ctx, `SELECT `+complaintColumns+` FROM complaints WHERE student_id = $1 ORDER BY created_at DESC`, studentID)
}

func (r *complaintRepo) ListAll(ctx context.Context) ([]*models.Complaint, error) {
	return r.list(ctx, `SELECT `+complaintColumns+` FROM complaints ORDER BY created_at DESC`)
}

func (r *complaintRepo) UpdateStatus(ctx context.Context, id, status, response string, resolvedBy *string) (*models.Complaint, error) {
	c, err := scanComplaint(r.db.QueryRow(ctx, `
		UPDATE complaints
		SET status = $2, admin_response = $3, resolved_by = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING `+complaintColumns, id, status, response, resolvedBy))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		r.log.Error("failed to update complaint", logger.String("id", id), logger.Error(err))
		return nil, err
	}
	return c, nil
}

func (r *complaintRepo) DeleteByStudent(ctx context.Context, studentID string) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM complaints WHERE student_id = $1`, studentID)
	if err != nil {
		r.log.Error("failed to delete complaints", logger.String("student", studentID), logger.Error(err))
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *complaintRepo) ClearResolvedBy(ctx context.Context, userID string) (int64, error) {
	tag, err := r.db.Exec(ctx, `UPDATE complaints SET resolved_by = NULL, updated_at = NOW() WHERE resolved_by = $1`, userID)
	if err != nil {
		r.log.Error("failed to clear complaint resolver", logger.String("user", userID), logger.Error(err))
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *complaintRepo) CountByStatus(ctx context.Context, statuses ...string) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM complaints WHERE status = ANY($1)`, statuses).Scan(&count)
	if err != nil {
		r.log.Error("failed to count complaints", logger.Error(err))
	}
	return count, err
}
