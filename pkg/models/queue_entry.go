package models

import "time"

const (
	QueueStatusWaiting   = "waiting"
	QueueStatusAssigned  = "assigned"
	QueueStatusPickup    = "pickup"
	QueueStatusInTransit = "in-transit"
	QueueStatusCompleted = "completed"
	QueueStatusCancelled = "cancelled"
	QueueStatusRemoved   = "removed"
)

var (
	// ActiveQueueStatuses are covered by the one-active-entry-per-student constraint.
	ActiveQueueStatuses = []string{QueueStatusWaiting, QueueStatusAssigned, QueueStatusPickup, QueueStatusInTransit}
	// LockedQueueStatuses are active statuses a student can no longer leave from.
	LockedQueueStatuses = []string{QueueStatusAssigned, QueueStatusPickup, QueueStatusInTransit}
)

type QueueEntry struct {
	ID          string     `json:"id"`
	StudentID   string     `json:"studentId"`
	Pickup      string     `json:"pickup"`
	Destination string     `json:"destination"`
	Status      string     `json:"status"`
	CancelCount int        `json:"cancelCount"`
	QueueAt     time.Time  `json:"queueAt"`
	RideID      *string    `json:"rideId"`
	DriverID    *string    `json:"driverId"`
	ArrivedAt   *time.Time `json:"arrivedAt"`
	StartedAt   *time.Time `json:"startedAt"`
	CompletedAt *time.Time `json:"completedAt"`
	Seq         int64      `json:"-"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

func (e *QueueEntry) IsActive() bool {
	return ContainsStatus(ActiveQueueStatuses, e.Status)
}

// Before reports whether e sorts ahead of other in FIFO order:
// queueAt, then creation order, then id.
func (e *QueueEntry) Before(other *QueueEntry) bool {
	if !e.QueueAt.Equal(other.QueueAt) {
		return e.QueueAt.Before(other.QueueAt)
	}
	if e.Seq != other.Seq {
		return e.Seq < other.Seq
	}
	return e.ID < other.ID
}

// CancelGuard is the previously observed state a cancellation write is
// conditioned on. A mismatch at write time means another writer won.
type CancelGuard struct {
	ID          string
	Status      string
	CancelCount int
	RideID      *string
	DriverID    *string
}

// CancelUpdate is applied when the guard still matches.
type CancelUpdate struct {
	Status      string
	QueueAt     time.Time
	CompletedAt *time.Time
}

func ContainsStatus(statuses []string, status string) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

func StringPtr(s string) *string {
	return &s
}

func TimePtr(t time.Time) *time.Time {
	return &t
}

func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
