package memory

import (
	"context"
	"time"

	"campusride/pkg/models"
)

type tripRepo struct {
	s *Store
}

func (r *tripRepo) Upsert(_ context.Context, trip *models.Trip) (*models.Trip, error) {
	defer r.s.lock()()

	for _, existing := range r.s.st.trips {
		if existing.RideID != trip.RideID {
			continue
		}
		existing.DriverID = cloneStr(trip.DriverID)
		existing.Students = append([]string(nil), trip.Students...)
		existing.PickupPoints = append([]string(nil), trip.PickupPoints...)
		existing.Destinations = append([]string(nil), trip.Destinations...)
		existing.Status = trip.Status
		existing.StartedAt = trip.StartedAt
		existing.CompletedAt = cloneTime(trip.CompletedAt)
		existing.UpdatedAt = now()
		return cloneTrip(existing), nil
	}

	c := cloneTrip(trip)
	c.ID = newID()
	c.CreatedAt = now()
	c.UpdatedAt = c.CreatedAt
	r.s.st.trips[c.ID] = c
	return cloneTrip(c), nil
}

func (r *tripRepo) GetByID(_ context.Context, id string) (*models.Trip, error) {
	defer r.s.lock()()

	if t, ok := r.s.st.trips[id]; ok {
		return cloneTrip(t), nil
	}
	return nil, nil
}

func (r *tripRepo) GetByRideID(_ context.Context, rideID string) (*models.Trip, error) {
	defer r.s.lock()()

	for _, t := range r.s.st.trips {
		if t.RideID == rideID {
			return cloneTrip(t), nil
		}
	}
	return nil, nil
}

func (r *tripRepo) GetInTransitForUser(_ context.Context, userID, role string) (*models.Trip, error) {
	defer r.s.lock()()

	var found *models.Trip
	for _, t := range r.s.st.trips {
		if t.Status != models.TripStatusInTransit {
			continue
		}
		member := (role == models.RoleDriver && t.IsDriver(userID)) ||
			(role == models.RoleStudent && t.HasStudent(userID))
		if member && (found == nil || t.StartedAt.After(found.StartedAt)) {
			found = t
		}
	}
	if found == nil {
		return nil, nil
	}
	return cloneTrip(found), nil
}

func (r *tripRepo) DeleteByRideID(_ context.Context, rideID string) error {
	defer r.s.lock()()

	for id, t := range r.s.st.trips {
		if t.RideID == rideID {
			delete(r.s.st.trips, id)
		}
	}
	return nil
}

func (r *tripRepo) SetStatusByRides(_ context.Context, rideIDs []string, from, to string, at time.Time, clearDriver bool) (int64, error) {
	defer r.s.lock()()

	rides := idSet(rideIDs)
	var n int64
	for _, t := range r.s.st.trips {
		if _, ok := rides[t.RideID]; !ok || t.Status != from {
			continue
		}
		t.Status = to
		t.CompletedAt = models.TimePtr(at)
		if clearDriver {
			t.DriverID = nil
		}
		t.UpdatedAt = now()
		n++
	}
	return n, nil
}

func (r *tripRepo) PullStudent(_ context.Context, rideIDs []string, studentID string) (int64, error) {
	defer r.s.lock()()

	var rides map[string]struct{}
	if rideIDs != nil {
		rides = idSet(rideIDs)
	}
	drop := idSet([]string{studentID})
	var n int64
	for _, t := range r.s.st.trips {
		if rides != nil {
			if _, ok := rides[t.RideID]; !ok {
				continue
			}
		}
		students, changed := without(t.Students, drop)
		if !changed {
			continue
		}
		t.Students = students
		t.UpdatedAt = now()
		n++
	}
	return n, nil
}

func (r *tripRepo) DetachDriver(_ context.Context, driverID string) (int64, error) {
	defer r.s.lock()()

	var n int64
	for _, t := range r.s.st.trips {
		if !t.IsDriver(driverID) {
			continue
		}
		t.DriverID = nil
		t.UpdatedAt = now()
		n++
	}
	return n, nil
}
