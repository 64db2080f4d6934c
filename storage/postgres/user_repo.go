package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"campusride/pkg/logger"
	"campusride/pkg/models"
	"campusride/storage"
)

const userColumns = `id, name, email, password_hash, role, status, is_active, deactivated_at, deactivated_by, vehicle_number, created_at, updated_at`

type userRepo struct {
	db  querier
	log logger.ILogger
}

func NewUserRepo(db querier, log logger.ILogger) storage.IUserStorage {
	return &userRepo{db: db, log: log}
}

func scanUser(row scanner) (*models.User, error) {
	var u models.User
	err := row.Scan(
		&u.ID, &u.Name, &u.Email, &u.Password, &u.Role, &u.Status, &u.IsActive,
		&u.DeactivatedAt, &u.DeactivatedBy, &u.VehicleNumber, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *userRepo) Create(ctx context.Context, user *models.User) (*models.User, error) {
	id := user.ID
	if id == "" {
		id = uuid.NewString()
	}
	status := user.Status
	if status == "" {
		status = models.UserStatusActive
	}
	query := `
		INSERT INTO users (id, name, email, password_hash, role, status, is_active, vehicle_number)
		VALUES ($1, $2, LOWER($3), $4, $5, $6, $7, $8)
		RETURNING ` + userColumns
	created, err := scanUser(r.db.QueryRow(ctx, query,
		id, user.Name, strings.TrimSpace(user.Email), user.Password, user.Role, status, user.IsActive, user.VehicleNumber,
	))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, storage.ErrDuplicate
		}
		r.log.Error("failed to create user", logger.String("email", user.Email), logger.Error(err))
		return nil, err
	}
	return created, nil
}

func (r *userRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	user, err := scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.log.Error("failed to get user by id", logger.String("id", id), logger.Error(err))
		return nil, err
	}
	return user, nil
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	user, err := scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = LOWER($1)`, strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.log.Error("failed to get user by email", logger.Error(err))
		return nil, err
	}
	return user, nil
}

func (r *userRepo) GetByIDs(ctx context.Context, ids []string) (map[string]*models.User, error) {
	out := make(map[string]*models.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	users, err := r.list(ctx, `SELECT `+userColumns+` FROM users WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		out[u.ID] = u
	}
	return out, nil
}

func (r *userRepo) List(ctx context.Context, filter models.UserFilter) ([]*models.User, error) {
	var (
		where []string
		args  []any
	)
	if filter.Role != "" {
		args = append(args, filter.Role)
		where = append(where, fmt.Sprintf("role = $%d", len(args)))
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		args = append(args, "%"+search+"%")
		where = append(where, fmt.Sprintf("(name ILIKE $%d OR email ILIKE $%d)", len(args), len(args)))
	}

	query := `SELECT ` + userColumns + ` FROM users`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC`
	return r.list(ctx, query, args...)
}

func (r *userRepo) list(ctx context.Context, query string, args ...any) ([]*models.User, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		r.log.Error("failed to list users", logger.Error(err))
		return nil, err
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *userRepo) Deactivate(ctx context.Context, id, by string, at time.Time) error {
	return r.execOne(ctx, "deactivate user", id, `
		UPDATE users
		SET is_active = FALSE, status = 'inactive', deactivated_at = $2, deactivated_by = NULLIF($3, ''), updated_at = NOW()
		WHERE id = $1`, id, at, by)
}

func (r *userRepo) Reactivate(ctx context.Context, id string) error {
	return r.execOne(ctx, "reactivate user", id, `
		UPDATE users
		SET is_active = TRUE, status = 'active', deactivated_at = NULL, deactivated_by = NULL, updated_at = NOW()
		WHERE id = $1`, id)
}

func (r *userRepo) UpdatePassword(ctx context.Context, id, hash string) error {
	return r.execOne(ctx, "update password", id,
		`UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1`, id, hash)
}

func (r *userRepo) execOne(ctx context.Context, op, id, query string, args ...any) error {
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		r.log.Error("failed to "+op, logger.String("id", id), logger.Error(err))
		return err
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (r *userRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		r.log.Error("failed to delete user", logger.String("id", id), logger.Error(err))
	}
	return err
}

func (r *userRepo) CountByRole(ctx context.Context, role string) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE role = $1`, role).Scan(&count)
	if err != nil {
		r.log.Error("failed to count users", logger.String("role", role), logger.Error(err))
	}
	return count, err
}

func (r *userRepo) CountActiveAdmins(ctx context.Context, excludeID string) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM users
		WHERE role = 'admin' AND is_active AND status <> 'inactive' AND id <> $1`, excludeID).Scan(&count)
	if err != nil {
		r.log.Error("failed to count admins", logger.Error(err))
	}
	return count, err
}
