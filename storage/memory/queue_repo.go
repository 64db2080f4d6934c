package memory

import (
	"context"
	"sort"
	"time"

	"campusride/pkg/models"
	"campusride/storage"
)

type queueRepo struct {
	s *Store
}

func (r *queueRepo) CreateIfNoActive(_ context.Context, entry *models.QueueEntry) (*models.QueueEntry, error) {
	defer r.s.lock()()

	for _, e := range r.s.st.entries {
		if e.StudentID == entry.StudentID && e.IsActive() {
			return nil, storage.ErrDuplicate
		}
	}

	c := cloneEntry(entry)
	c.ID = newID()
	c.Status = models.QueueStatusWaiting
	c.Seq = r.s.st.nextSeq()
	c.CreatedAt = now()
	c.UpdatedAt = c.CreatedAt
	if c.QueueAt.IsZero() {
		c.QueueAt = c.CreatedAt
	}
	r.s.st.entries[c.ID] = c
	return cloneEntry(c), nil
}

func (r *queueRepo) GetByID(_ context.Context, id string) (*models.QueueEntry, error) {
	defer r.s.lock()()

	if e, ok := r.s.st.entries[id]; ok {
		return cloneEntry(e), nil
	}
	return nil, nil
}

func (r *queueRepo) GetByIDs(_ context.Context, ids []string) ([]*models.QueueEntry, error) {
	defer r.s.lock()()

	out := make([]*models.QueueEntry, 0, len(ids))
	for _, id := range ids {
		if e, ok := r.s.st.entries[id]; ok {
			out = append(out, cloneEntry(e))
		}
	}
	return out, nil
}

func (r *queueRepo) GetActiveByStudent(_ context.Context, studentID string) (*models.QueueEntry, error) {
	defer r.s.lock()()

	var found *models.QueueEntry
	for _, e := range r.s.st.entries {
		if e.StudentID == studentID && e.IsActive() {
			if found == nil || e.UpdatedAt.After(found.UpdatedAt) {
				found = e
			}
		}
	}
	if found == nil {
		return nil, nil
	}
	return cloneEntry(found), nil
}

// waiting returns live pointers; callers must hold the lock.
func (r *queueRepo) waiting() []*models.QueueEntry {
	var out []*models.QueueEntry
	for _, e := range r.s.st.entries {
		if e.Status == models.QueueStatusWaiting {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

func (r *queueRepo) ListWaiting(_ context.Context, limit int) ([]*models.QueueEntry, error) {
	defer r.s.lock()()

	waiting := r.waiting()
	if limit > 0 && len(waiting) > limit {
		waiting = waiting[:limit]
	}
	out := make([]*models.QueueEntry, 0, len(waiting))
	for _, e := range waiting {
		out = append(out, cloneEntry(e))
	}
	return out, nil
}

func (r *queueRepo) ListHistory(_ context.Context, studentID string) ([]*models.QueueEntry, error) {
	defer r.s.lock()()

	var out []*models.QueueEntry
	for _, e := range r.s.st.entries {
		if e.StudentID == studentID && !e.IsActive() {
			out = append(out, cloneEntry(e))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (r *queueRepo) CountByStatus(_ context.Context, statuses ...string) (int, error) {
	defer r.s.lock()()

	count := 0
	for _, e := range r.s.st.entries {
		if models.ContainsStatus(statuses, e.Status) {
			count++
		}
	}
	return count, nil
}

func (r *queueRepo) WaitingPosition(_ context.Context, id string) (int, error) {
	defer r.s.lock()()

	target, ok := r.s.st.entries[id]
	if !ok || target.Status != models.QueueStatusWaiting {
		return 0, nil
	}
	ahead := 0
	for _, e := range r.s.st.entries {
		if e.Status == models.QueueStatusWaiting && e.Before(target) {
			ahead++
		}
	}
	return ahead + 1, nil
}

func (r *queueRepo) HasLocked(_ context.Context, studentID string) (bool, error) {
	defer r.s.lock()()

	for _, e := range r.s.st.entries {
		if e.StudentID == studentID && models.ContainsStatus(models.LockedQueueStatuses, e.Status) {
			return true, nil
		}
	}
	return false, nil
}

func (r *queueRepo) RemoveWaiting(_ context.Context, studentID string, at time.Time) (*models.QueueEntry, error) {
	defer r.s.lock()()

	for _, e := range r.waiting() {
		if e.StudentID != studentID {
			continue
		}
		e.Status = models.QueueStatusRemoved
		e.RideID = nil
		e.DriverID = nil
		e.CompletedAt = models.TimePtr(at)
		e.UpdatedAt = now()
		return cloneEntry(e), nil
	}
	return nil, nil
}

func (r *queueRepo) ClaimNextWaiting(_ context.Context, driverID string, at time.Time) (*models.QueueEntry, error) {
	defer r.s.lock()()

	waiting := r.waiting()
	if len(waiting) == 0 {
		return nil, nil
	}
	head := waiting[0]
	head.Status = models.QueueStatusAssigned
	head.DriverID = models.StringPtr(driverID)
	head.StartedAt = models.TimePtr(at)
	head.UpdatedAt = now()
	return cloneEntry(head), nil
}

func (r *queueRepo) LockClaimed(_ context.Context, ids []string, driverID, rideID string, at time.Time) (int64, error) {
	defer r.s.lock()()

	var n int64
	for _, id := range ids {
		e, ok := r.s.st.entries[id]
		if !ok || e.Status != models.QueueStatusAssigned || models.Deref(e.DriverID) != driverID {
			continue
		}
		e.Status = models.QueueStatusInTransit
		e.RideID = models.StringPtr(rideID)
		e.StartedAt = models.TimePtr(at)
		e.UpdatedAt = now()
		n++
	}
	return n, nil
}

func (r *queueRepo) ReleaseClaimed(_ context.Context, ids []string, driverID, rideID string) (int64, error) {
	defer r.s.lock()()

	var n int64
	for _, id := range ids {
		e, ok := r.s.st.entries[id]
		if !ok || models.Deref(e.DriverID) != driverID {
			continue
		}
		claimed := e.Status == models.QueueStatusAssigned && e.RideID == nil
		locked := e.Status == models.QueueStatusInTransit && models.Deref(e.RideID) == rideID && rideID != ""
		if !claimed && !locked {
			continue
		}
		e.Status = models.QueueStatusWaiting
		e.DriverID = nil
		e.RideID = nil
		e.StartedAt = nil
		e.UpdatedAt = now()
		n++
	}
	return n, nil
}

func (r *queueRepo) MarkArrived(_ context.Context, id, rideID string, at time.Time) (int64, error) {
	defer r.s.lock()()

	e, ok := r.s.st.entries[id]
	if !ok || models.Deref(e.RideID) != rideID {
		return 0, nil
	}
	if e.Status != models.QueueStatusAssigned && e.Status != models.QueueStatusPickup {
		return 0, nil
	}
	e.Status = models.QueueStatusPickup
	e.ArrivedAt = models.TimePtr(at)
	e.UpdatedAt = now()
	return 1, nil
}

func (r *queueRepo) ApplyCancel(_ context.Context, guard models.CancelGuard, update models.CancelUpdate) (int64, error) {
	defer r.s.lock()()

	e, ok := r.s.st.entries[guard.ID]
	if !ok {
		return 0, nil
	}
	if e.Status != guard.Status || e.CancelCount != guard.CancelCount ||
		!strEq(e.RideID, guard.RideID) || !strEq(e.DriverID, guard.DriverID) {
		return 0, nil
	}
	e.CancelCount++
	e.Status = update.Status
	e.QueueAt = update.QueueAt
	e.RideID = nil
	e.DriverID = nil
	e.ArrivedAt = nil
	e.StartedAt = nil
	e.CompletedAt = cloneTime(update.CompletedAt)
	e.UpdatedAt = now()
	return 1, nil
}

func (r *queueRepo) CompleteMany(_ context.Context, ids []string, at time.Time) (int64, error) {
	defer r.s.lock()()

	var n int64
	for _, id := range ids {
		e, ok := r.s.st.entries[id]
		if !ok {
			continue
		}
		e.Status = models.QueueStatusCompleted
		e.CompletedAt = models.TimePtr(at)
		e.UpdatedAt = now()
		n++
	}
	return n, nil
}

func (r *queueRepo) RemoveActiveByStudent(_ context.Context, studentID string, at time.Time) ([]storage.DetachedEntry, error) {
	defer r.s.lock()()

	var out []storage.DetachedEntry
	for _, e := range r.s.st.entries {
		if e.StudentID != studentID || !e.IsActive() {
			continue
		}
		out = append(out, storage.DetachedEntry{ID: e.ID, RideID: cloneStr(e.RideID)})
		e.Status = models.QueueStatusRemoved
		e.RideID = nil
		e.DriverID = nil
		e.ArrivedAt = nil
		e.StartedAt = nil
		e.CompletedAt = models.TimePtr(at)
		e.UpdatedAt = now()
	}
	return out, nil
}

func (r *queueRepo) RequeueMany(_ context.Context, ids []string, at time.Time) (int64, error) {
	defer r.s.lock()()

	var n int64
	for _, id := range ids {
		e, ok := r.s.st.entries[id]
		if !ok || !models.ContainsStatus(models.LockedQueueStatuses, e.Status) {
			continue
		}
		e.Status = models.QueueStatusWaiting
		e.RideID = nil
		e.DriverID = nil
		e.QueueAt = at
		e.ArrivedAt = nil
		e.StartedAt = nil
		e.CompletedAt = nil
		e.UpdatedAt = now()
		n++
	}
	return n, nil
}

func (r *queueRepo) ClearDriver(_ context.Context, driverID string) (int64, error) {
	defer r.s.lock()()

	var n int64
	for _, e := range r.s.st.entries {
		if models.Deref(e.DriverID) != driverID || !e.IsActive() {
			continue
		}
		e.DriverID = nil
		e.ArrivedAt = nil
		e.UpdatedAt = now()
		n++
	}
	return n, nil
}

func (r *queueRepo) DeleteByStudent(_ context.Context, studentID string) (int64, error) {
	defer r.s.lock()()

	var n int64
	for id, e := range r.s.st.entries {
		if e.StudentID == studentID {
			delete(r.s.st.entries, id)
			n++
		}
	}
	return n, nil
}
