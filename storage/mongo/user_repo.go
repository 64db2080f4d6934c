package mongo

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"campusride/pkg/logger"
	"campusride/pkg/models"
	"campusride/storage"
)

type userRepo struct {
	s *Store
}

func (r *userRepo) c() *mongo.Collection { return r.s.coll(colUsers) }

func (r *userRepo) Create(ctx context.Context, user *models.User) (*models.User, error) {
	doc := userDoc{
		ID:            user.ID,
		Name:          user.Name,
		Email:         strings.ToLower(strings.TrimSpace(user.Email)),
		PasswordHash:  user.Password,
		Role:          user.Role,
		Status:        user.Status,
		IsActive:      user.IsActive,
		VehicleNumber: user.VehicleNumber,
		CreatedAt:     now(),
	}
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if doc.Status == "" {
		doc.Status = models.UserStatusActive
	}
	doc.UpdatedAt = doc.CreatedAt

	if _, err := r.c().InsertOne(r.s.bind(ctx), doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, storage.ErrDuplicate
		}
		r.s.log.Error("failed to create user", logger.String("email", doc.Email), logger.Error(err))
		return nil, err
	}
	return doc.model(), nil
}

func (r *userRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	u, err := findOne(r.s.bind(ctx), r.c(), bson.M{"_id": id}, (*userDoc).model)
	if err != nil {
		r.s.log.Error("failed to get user by id", logger.String("id", id), logger.Error(err))
	}
	return u, err
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	u, err := findOne(r.s.bind(ctx), r.c(), bson.M{"email": strings.ToLower(strings.TrimSpace(email))}, (*userDoc).model)
	if err != nil {
		r.s.log.Error("failed to get user by email", logger.Error(err))
	}
	return u, err
}

func (r *userRepo) GetByIDs(ctx context.Context, ids []string) (map[string]*models.User, error) {
	out := make(map[string]*models.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	users, err := findMany(r.s.bind(ctx), r.c(), bson.M{"_id": inIDs(ids)}, (*userDoc).model)
	if err != nil {
		r.s.log.Error("failed to get users", logger.Error(err))
		return nil, err
	}
	for _, u := range users {
		out[u.ID] = u
	}
	return out, nil
}

func (r *userRepo) List(ctx context.Context, filter models.UserFilter) ([]*models.User, error) {
	query := bson.M{}
	if filter.Role != "" {
		query["role"] = filter.Role
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		pattern := bson.M{"$regex": regexp.QuoteMeta(search), "$options": "i"}
		query["$or"] = []bson.M{{"name": pattern}, {"email": pattern}}
	}
	users, err := findMany(r.s.bind(ctx), r.c(), query, (*userDoc).model,
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		r.s.log.Error("failed to list users", logger.Error(err))
	}
	return users, err
}

func (r *userRepo) update(ctx context.Context, op, id string, set bson.M) error {
	set["updated_at"] = now()
	res, err := r.c().UpdateByID(r.s.bind(ctx), id, bson.M{"$set": set})
	if err != nil {
		r.s.log.Error("failed to "+op, logger.String("id", id), logger.Error(err))
		return err
	}
	if res.MatchedCount == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (r *userRepo) Deactivate(ctx context.Context, id, by string, at time.Time) error {
	var deactivatedBy *string
	if by != "" {
		deactivatedBy = &by
	}
	return r.update(ctx, "deactivate user", id, bson.M{
		"is_active":      false,
		"status":         models.UserStatusInactive,
		"deactivated_at": at,
		"deactivated_by": deactivatedBy,
	})
}

func (r *userRepo) Reactivate(ctx context.Context, id string) error {
	return r.update(ctx, "reactivate user", id, bson.M{
		"is_active":      true,
		"status":         models.UserStatusActive,
		"deactivated_at": nil,
		"deactivated_by": nil,
	})
}

func (r *userRepo) UpdatePassword(ctx context.Context, id, hash string) error {
	return r.update(ctx, "update password", id, bson.M{"password_hash": hash})
}

func (r *userRepo) Delete(ctx context.Context, id string) error {
	_, err := r.c().DeleteOne(r.s.bind(ctx), bson.M{"_id": id})
	if err != nil {
		r.s.log.Error("failed to delete user", logger.String("id", id), logger.Error(err))
	}
	return err
}

func (r *userRepo) CountByRole(ctx context.Context, role string) (int, error) {
	n, err := r.c().CountDocuments(r.s.bind(ctx), bson.M{"role": role})
	if err != nil {
		r.s.log.Error("failed to count users", logger.String("role", role), logger.Error(err))
	}
	return int(n), err
}

func (r *userRepo) CountActiveAdmins(ctx context.Context, excludeID string) (int, error) {
	n, err := r.c().CountDocuments(r.s.bind(ctx), bson.M{
		"_id":       bson.M{"$ne": excludeID},
		"role":      models.RoleAdmin,
		"is_active": true,
		"status":    bson.M{"$ne": models.UserStatusInactive},
	})
	if err != nil {
		r.s.log.Error("failed to count admins", logger.Error(err))
	}
	return int(n), err
}
