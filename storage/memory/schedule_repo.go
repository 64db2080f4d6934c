package memory

import (
	"context"
	"sort"

	"campusride/pkg/models"
)

type scheduleRepo struct {
	s *Store
}

func cloneSchedule(s *models.Schedule) *models.Schedule {
	out := *s
	out.DriverID = cloneStr(s.DriverID)
	return &out
}

func (r *scheduleRepo) Create(_ context.Context, schedule *models.Schedule) (*models.Schedule, error) {
	defer r.s.lock()()

	s := cloneSchedule(schedule)
	s.ID = newID()
	if s.TargetRole == "" {
		s.TargetRole = models.ScheduleTargetAll
	}
	s.CreatedAt = now()
	s.UpdatedAt = s.CreatedAt
	r.s.st.schedules[s.ID] = s
	return cloneSchedule(s), nil
}

func (r *scheduleRepo) List(_ context.Context, filter models.ScheduleFilter) ([]*models.Schedule, error) {
	defer r.s.lock()()

	var out []*models.Schedule
	for _, s := range r.s.st.schedules {
		if filter.Match(s) {
			out = append(out, cloneSchedule(s))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Date != b.Date {
			return a.Date < b.Date
		}
		if a.StartTime != b.StartTime {
			return a.StartTime < b.StartTime
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
	return out, nil
}

func (r *scheduleRepo) ClearDriver(_ context.Context, driverID string) (int64, error) {
	defer r.s.lock()()

	var n int64
	for _, s := range r.s.st.schedules {
		if models.Deref(s.DriverID) == driverID {
			s.DriverID = nil
			s.UpdatedAt = now()
			n++
		}
	}
	return n, nil
}
