package models

import "time"

const (
	// RideStatusForming and RideStatusReady belong to the retired batch
	// matcher. Rides in those states are still treated as active.
	RideStatusForming   = "forming"
	RideStatusReady     = "ready"
	RideStatusInTransit = "in-transit"
	RideStatusCompleted = "completed"
	RideStatusCancelled = "cancelled"

	TripStatusInTransit = "in-transit"
	TripStatusCompleted = "completed"
	TripStatusCancelled = "cancelled"

	DefaultMaxSeats = 4
)

var ActiveRideStatuses = []string{RideStatusForming, RideStatusReady, RideStatusInTransit}

type Ride struct {
	ID          string     `json:"id"`
	DriverID    *string    `json:"driverId"`
	Students    []string   `json:"students"`
	Status      string     `json:"status"`
	MaxSeats    int        `json:"maxSeats"`
	StartedAt   *time.Time `json:"startedAt"`
	CompletedAt *time.Time `json:"completedAt"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

func (r *Ride) IsActive() bool {
	return ContainsStatus(ActiveRideStatuses, r.Status)
}

func (r *Ride) OwnedBy(driverID string) bool {
	return r.DriverID != nil && *r.DriverID == driverID
}

func (r *Ride) HasMember(queueEntryID string) bool {
	for _, id := range r.Students {
		if id == queueEntryID {
			return true
		}
	}
	return false
}

// Trip is the queryable summary of a Ride used to scope chat and complaints.
type Trip struct {
	ID           string     `json:"id"`
	RideID       string     `json:"rideId"`
	DriverID     *string    `json:"driverId"`
	Students     []string   `json:"students"`
	PickupPoints []string   `json:"pickupPoints"`
	Destinations []string   `json:"destinations"`
	Status       string     `json:"status"`
	StartedAt    time.Time  `json:"startedAt"`
	CompletedAt  *time.Time `json:"completedAt"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

func (t *Trip) HasStudent(userID string) bool {
	for _, id := range t.Students {
		if id == userID {
			return true
		}
	}
	return false
}

func (t *Trip) IsDriver(userID string) bool {
	return t.DriverID != nil && *t.DriverID == userID
}
