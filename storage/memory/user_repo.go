package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"campusride/pkg/models"
	"campusride/storage"
)

type userRepo struct {
	s *Store
}

func (r *userRepo) Create(_ context.Context, user *models.User) (*models.User, error) {
	defer r.s.lock()()

	email := strings.ToLower(strings.TrimSpace(user.Email))
	for _, u := range r.s.st.users {
		if u.Email == email {
			return nil, storage.ErrDuplicate
		}
	}

	c := cloneUser(user)
	if c.ID == "" {
		c.ID = newID()
	}
	c.Email = email
	if c.Status == "" {
		c.Status = models.UserStatusActive
	}
	c.CreatedAt = now()
	c.UpdatedAt = c.CreatedAt
	r.s.st.users[c.ID] = c
	return cloneUser(c), nil
}

func (r *userRepo) GetByID(_ context.Context, id string) (*models.User, error) {
	defer r.s.lock()()

	if u, ok := r.s.st.users[id]; ok {
		return cloneUser(u), nil
	}
	return nil, nil
}

func (r *userRepo) GetByEmail(_ context.Context, email string) (*models.User, error) {
	defer r.s.lock()()

	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range r.s.st.users {
		if u.Email == email {
			return cloneUser(u), nil
		}
	}
	return nil, nil
}

func (r *userRepo) GetByIDs(_ context.Context, ids []string) (map[string]*models.User, error) {
	defer r.s.lock()()

	out := make(map[string]*models.User, len(ids))
	for _, id := range ids {
		if u, ok := r.s.st.users[id]; ok {
			out[id] = cloneUser(u)
		}
	}
	return out, nil
}

func (r *userRepo) List(_ context.Context, filter models.UserFilter) ([]*models.User, error) {
	defer r.s.lock()()

	search := strings.ToLower(strings.TrimSpace(filter.Search))
	var users []*models.User
	for _, u := range r.s.st.users {
		if filter.Role != "" && u.Role != filter.Role {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(u.Name), search) && !strings.Contains(u.Email, search) {
			continue
		}
		users = append(users, cloneUser(u))
	}
	sort.Slice(users, func(i, j int) bool {
		return users[i].CreatedAt.After(users[j].CreatedAt)
	})
	return users, nil
}

func (r *userRepo) Deactivate(_ context.Context, id, by string, at time.Time) error {
	defer r.s.lock()()

	u, ok := r.s.st.users[id]
	if !ok {
		return storage.ErrNotFound
	}
	u.IsActive = false
	u.Status = models.UserStatusInactive
	u.DeactivatedAt = models.TimePtr(at)
	u.DeactivatedBy = models.StringPtr(by)
	u.UpdatedAt = now()
	return nil
}

func (r *userRepo) Reactivate(_ context.Context, id string) error {
	defer r.s.lock()()

	u, ok := r.s.st.users[id]
	if !ok {
		return storage.ErrNotFound
	}
	u.IsActive = true
	u.Status = models.UserStatusActive
	u.DeactivatedAt = nil
	u.DeactivatedBy = nil
	u.UpdatedAt = now()
	return nil
}

func (r *userRepo) UpdatePassword(_ context.Context, id, hash string) error {
	defer r.s.lock()()

	u, ok := r.s.st.users[id]
	if !ok {
		return storage.ErrNotFound
	}
	u.Password = hash
	u.UpdatedAt = now()
	return nil
}

func (r *userRepo) Delete(_ context.Context, id string) error {
	defer r.s.lock()()

	delete(r.s.st.users, id)
	return nil
}

func (r *userRepo) CountByRole(_ context.Context, role string) (int, error) {
	defer r.s.lock()()

	count := 0
	for _, u := range r.s.st.users {
		if u.Role == role {
			count++
		}
	}
	return count, nil
}

func (r *userRepo) CountActiveAdmins(_ context.Context, excludeID string) (int, error) {
	defer r.s.lock()()

	count := 0
	for _, u := range r.s.st.users {
		if u.ID != excludeID && u.Role == models.RoleAdmin && u.CanParticipate() {
			count++
		}
	}
	return count, nil
}
