package memory

import (
	"context"
	"sort"
	"time"

	"campusride/pkg/models"
	"campusride/storage"
)

type rideRepo struct {
	s *Store
}

func (r *rideRepo) Create(_ context.Context, ride *models.Ride) (*models.Ride, error) {
	defer r.s.lock()()

	if ride.Status == models.RideStatusInTransit && ride.DriverID != nil {
		for _, existing := range r.s.st.rides {
			if existing.Status == models.RideStatusInTransit && existing.OwnedBy(*ride.DriverID) {
				return nil, storage.ErrDuplicate
			}
		}
	}

	c := cloneRide(ride)
	c.ID = newID()
	if c.MaxSeats <= 0 {
		c.MaxSeats = models.DefaultMaxSeats
	}
	c.CreatedAt = now()
	c.UpdatedAt = c.CreatedAt
	r.s.st.rides[c.ID] = c
	return cloneRide(c), nil
}

func (r *rideRepo) GetByID(_ context.Context, id string) (*models.Ride, error) {
	defer r.s.lock()()

	if ride, ok := r.s.st.rides[id]; ok {
		return cloneRide(ride), nil
	}
	return nil, nil
}

func (r *rideRepo) GetInTransitByDriver(_ context.Context, driverID string) (*models.Ride, error) {
	defer r.s.lock()()

	for _, ride := range r.s.st.rides {
		if ride.Status == models.RideStatusInTransit && ride.OwnedBy(driverID) {
			return cloneRide(ride), nil
		}
	}
	return nil, nil
}

func (r *rideRepo) ListActive(_ context.Context) ([]*models.Ride, error) {
	defer r.s.lock()()

	return r.collect(func(ride *models.Ride) bool { return ride.IsActive() }), nil
}

func (r *rideRepo) ListActiveByDriver(_ context.Context, driverID string) ([]*models.Ride, error) {
	defer r.s.lock()()

	return r.collect(func(ride *models.Ride) bool { return ride.IsActive() && ride.OwnedBy(driverID) }), nil
}

func (r *rideRepo) collect(match func(*models.Ride) bool) []*models.Ride {
	var out []*models.Ride
	for _, ride := range r.s.st.rides {
		if match(ride) {
			out = append(out, cloneRide(ride))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (r *rideRepo) Delete(_ context.Context, id string) error {
	defer r.s.lock()()

	delete(r.s.st.rides, id)
	return nil
}

func (r *rideRepo) PullMembers(_ context.Context, rideIDs, entryIDs []string, skipStatus string) (int64, error) {
	defer r.s.lock()()

	drop := idSet(entryIDs)
	var n int64
	for _, id := range rideIDs {
		ride, ok := r.s.st.rides[id]
		if !ok || (skipStatus != "" && ride.Status == skipStatus) {
			continue
		}
		students, changed := without(ride.Students, drop)
		if !changed {
			continue
		}
		ride.Students = students
		ride.UpdatedAt = now()
		n++
	}
	return n, nil
}

func (r *rideRepo) Complete(_ context.Context, id, driverID string, at time.Time) (int64, error) {
	defer r.s.lock()()

	ride, ok := r.s.st.rides[id]
	if !ok || ride.Status != models.RideStatusInTransit || !ride.OwnedBy(driverID) {
		return 0, nil
	}
	ride.Status = models.RideStatusCompleted
	ride.CompletedAt = models.TimePtr(at)
	ride.UpdatedAt = now()
	return 1, nil
}

func (r *rideRepo) CancelMany(_ context.Context, ids []string, at time.Time, clearDriver bool) (int64, error) {
	defer r.s.lock()()

	var n int64
	for _, id := range ids {
		ride, ok := r.s.st.rides[id]
		if !ok || !ride.IsActive() {
			continue
		}
		ride.Status = models.RideStatusCancelled
		ride.CompletedAt = models.TimePtr(at)
		if clearDriver {
			ride.DriverID = nil
		}
		ride.UpdatedAt = now()
		n++
	}
	return n, nil
}

func (r *rideRepo) FilterEmptyActive(_ context.Context, ids []string) ([]string, error) {
	defer r.s.lock()()

	var out []string
	for _, id := range ids {
		ride, ok := r.s.st.rides[id]
		if ok && ride.IsActive() && len(ride.Students) == 0 {
			out = append(out, id)
		}
	}
	return out, nil
}

func (r *rideRepo) DetachDriver(_ context.Context, driverID string) (int64, error) {
	defer r.s.lock()()

	var n int64
	for _, ride := range r.s.st.rides {
		if !ride.OwnedBy(driverID) {
			continue
		}
		ride.DriverID = nil
		ride.UpdatedAt = now()
		n++
	}
	return n, nil
}
