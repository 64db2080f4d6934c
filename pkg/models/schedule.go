package models

import "time"

const (
	ScheduleTargetAll     = "all"
	ScheduleTargetStudent = RoleStudent
	ScheduleTargetDriver  = RoleDriver
)

// Schedule is an admin-published timetable slot. Date is YYYY-MM-DD and the
// times are HH:MM, so string order is chronological order.
type Schedule struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Date        string    `json:"date"`
	StartTime   string    `json:"startTime"`
	EndTime     string    `json:"endTime"`
	TargetRole  string    `json:"targetRole"`
	DriverID    *string   `json:"driverId"`
	CreatedBy   string    `json:"createdById"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// ScheduleFilter selects schedules aimed at any of TargetRoles or naming
// DriverID. The zero value selects everything.
type ScheduleFilter struct {
	TargetRoles []string
	DriverID    string
}

func (f ScheduleFilter) IsZero() bool {
	return len(f.TargetRoles) == 0 && f.DriverID == ""
}

func (f ScheduleFilter) Match(s *Schedule) bool {
	if f.IsZero() {
		return true
	}
	if ContainsStatus(f.TargetRoles, s.TargetRole) {
		return true
	}
	return f.DriverID != "" && Deref(s.DriverID) == f.DriverID
}
