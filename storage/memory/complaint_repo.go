package memory

import (
	"context"
	"sort"

	"campusride/pkg/models"
	"campusride/storage"
)

type complaintRepo struct {
	s *Store
}

func cloneComplaint(c *models.Complaint) *models.Complaint {
	out := *c
	out.TripID = cloneStr(c.TripID)
	out.RideID = cloneStr(c.RideID)
	out.ResolvedBy = cloneStr(c.ResolvedBy)
	return &out
}

func (r *complaintRepo) Create(_ context.Context, complaint *models.Complaint) (*models.Complaint, error) {
	defer r.s.lock()()

	c := cloneComplaint(complaint)
	c.ID = newID()
	if c.Status == "" {
		c.Status = models.ComplaintStatusSubmitted
	}
	c.CreatedAt = now()
	c.UpdatedAt = c.CreatedAt
	r.s.st.complaints[c.ID] = c
	return cloneComplaint(c), nil
}

func (r *complaintRepo) GetByID(_ context.Context, id string) (*models.Complaint, error) {
	defer r.s.lock()()

	if c, ok := r.s.st.complaints[id]; ok {
		return cloneComplaint(c), nil
	}
	return nil, nil
}

func (r *complaintRepo) ListByStudent(_ context.Context, studentID string) ([]*models.Complaint, error) {
	defer r.s.lock()()

	return r.collect(func(c *models.Complaint) bool { return c.StudentID == studentID }), nil
}

func (r *complaintRepo) ListAll(_ context.Context) ([]*models.Complaint, error) {
	defer r.s.lock()()

	return r.collect(func(*models.Complaint) bool { return true }), nil
}

func (r *complaintRepo) collect(match func(*models.Complaint) bool) []*models.Complaint {
	var out []*models.Complaint
	for _, c := range r.s.st.complaints {
		if match(c) {
			out = append(out, cloneComplaint(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (r *complaintRepo) UpdateStatus(_ context.Context, id, status, response string, resolvedBy *string) (*models.Complaint, error) {
	defer r.s.lock()()

	c, ok := r.s.st.complaints[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	c.Status = status
	c.AdminResponse = response
	c.ResolvedBy = cloneStr(resolvedBy)
	c.UpdatedAt = now()
	return cloneComplaint(c), nil
}

func (r *complaintRepo) DeleteByStudent(_ context.Context, studentID string) (int64, error) {
	defer r.s.lock()()

	var n int64
	for id, c := range r.s.st.complaints {
		if c.StudentID == studentID {
			delete(r.s.st.complaints, id)
			n++
		}
	}
	return n, nil
}

func (r *complaintRepo) ClearResolvedBy(_ context.Context, userID string) (int64, error) {
	defer r.s.lock()()

	var n int64
	for _, c := range r.s.st.complaints {
		if models.Deref(c.ResolvedBy) == userID {
			c.ResolvedBy = nil
			c.UpdatedAt = now()
			n++
		}
	}
	return n, nil
}

func (r *complaintRepo) CountByStatus(_ context.Context, statuses ...string) (int, error) {
	defer r.s.lock()()

	count := 0
	for _, c := range r.s.st.complaints {
		if models.ContainsStatus(statuses, c.Status) {
			count++
		}
	}
	return count, nil
}
