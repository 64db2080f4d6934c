package service

import (
	"time"

	"campusride/pkg/models"
)

// PreviewRideID identifies the synthetic ride shown to a driver with no
// in-transit ride: the next maxSeats waiting students.
const PreviewRideID = "queue-preview"

type RideStudentView struct {
	QueueEntryID string  `json:"queueEntryId"`
	ID           *string `json:"id"`
	Name         string  `json:"name"`
	Email        string  `json:"email"`
	Pickup       string  `json:"pickup"`
	Destination  string  `json:"destination"`
	Status       string  `json:"status"`
	CancelCount  int     `json:"cancelCount"`
}

type RideView struct {
	ID          string            `json:"id"`
	Status      string            `json:"status"`
	SeatsFilled int               `json:"seatsFilled"`
	MaxSeats    int               `json:"maxSeats"`
	Driver      *models.UserRef   `json:"driver"`
	Students    []RideStudentView `json:"students"`
	CreatedAt   time.Time         `json:"createdAt"`
	StartedAt   *time.Time        `json:"startedAt"`
	CompletedAt *time.Time        `json:"completedAt"`
}

type RidePayload struct {
	Ride *RideView `json:"ride"`
}

type QueueItem struct {
	ID          string    `json:"id"`
	StudentID   *string   `json:"studentId"`
	StudentName string    `json:"studentName"`
	Pickup      string    `json:"pickup"`
	Destination string    `json:"destination"`
	Status      string    `json:"status"`
	Position    int       `json:"position"`
	QueueAt     time.Time `json:"queueAt"`
}

type QueueSnapshot struct {
	Waiting      []QueueItem `json:"waiting"`
	TotalWaiting int         `json:"totalWaiting"`
	UpdatedAt    time.Time   `json:"updatedAt"`
}

type QueueCount struct {
	TotalWaiting int       `json:"totalWaiting"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type StudentRide struct {
	ID                   string          `json:"id"`
	Status               string          `json:"status"`
	Pickup               string          `json:"pickup"`
	Destination          string          `json:"destination"`
	QueuePosition        *int            `json:"queuePosition"`
	EstimatedWaitMinutes int             `json:"estimatedWaitMinutes"`
	CancelCount          int             `json:"cancelCount"`
	RideID               *string         `json:"rideId"`
	Driver               *models.UserRef `json:"driver"`
	UpdatedAt            time.Time       `json:"updatedAt"`
}

type HistoryItem struct {
	ID     string    `json:"id"`
	Date   time.Time `json:"date"`
	From   string    `json:"from"`
	To     string    `json:"to"`
	Status string    `json:"status"`
	Driver string    `json:"driver"`
	Fare   string    `json:"fare"`
}

type DriverRide struct {
	Ride         *RideView `json:"ride"`
	WaitingCount int       `json:"waitingCount"`
}

type EntryStatus struct {
	QueueEntryID string `json:"queueEntryId"`
	Status       string `json:"status"`
}

type CancelResult struct {
	QueueEntryID string `json:"queueEntryId"`
	Status       string `json:"status"`
	CancelCount  int    `json:"cancelCount"`
}

type CancelEvent struct {
	QueueEntryID string    `json:"queueEntryId"`
	StudentID    string    `json:"studentId"`
	CancelCount  int       `json:"cancelCount"`
	Status       string    `json:"status"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type TripPayload struct {
	RideID      string    `json:"rideId"`
	StartedAt   time.Time `json:"startedAt"`
	SeatsFilled int       `json:"seatsFilled"`
	MaxSeats    int       `json:"maxSeats"`
}

type TripCompletedPayload struct {
	RideID      string    `json:"rideId"`
	Driver      string    `json:"driver"`
	CompletedAt time.Time `json:"completedAt"`
}

type CompleteResult struct {
	RideID string `json:"rideId"`
	Status string `json:"status"`
}

type AdminQueueItem struct {
	ID          string          `json:"id"`
	Student     *models.UserRef `json:"student"`
	Pickup      string          `json:"pickup"`
	Destination string          `json:"destination"`
	Position    int             `json:"position"`
	Status      string          `json:"status"`
	QueueAt     time.Time       `json:"queueAt"`
}

type AdminQueueOverview struct {
	WaitingQueue []AdminQueueItem `json:"waitingQueue"`
	ActiveRides  []*RideView      `json:"activeRides"`
}

type AdminStats struct {
	Students    int `json:"students"`
	Drivers     int `json:"drivers"`
	ActiveQueue int `json:"activeQueue"`
	Complaints  int `json:"complaints"`
}

// EstimateWaitMinutes is derived from the entry's status and live queue
// position, never stored.
func EstimateWaitMinutes(position int, status string) int {
	switch status {
	case models.QueueStatusWaiting:
		return max(1, position) * 3
	case models.QueueStatusAssigned:
		return 3
	case models.QueueStatusPickup:
		return 1
	default:
		return 0
	}
}

// rideStatusLabel maps the legacy batch-matcher states onto the labels
// clients know.
func rideStatusLabel(status string) string {
	switch status {
	case models.RideStatusForming:
		return models.QueueStatusWaiting
	case models.RideStatusReady:
		return models.QueueStatusAssigned
	}
	return status
}

func publicRef(u *models.User) *models.UserRef {
	if u == nil {
		return nil
	}
	return &models.UserRef{ID: u.ID, Name: u.Name, Email: u.Email}
}

func studentView(e *models.QueueEntry, u *models.User, status string) RideStudentView {
	v := RideStudentView{
		QueueEntryID: e.ID,
		Name:         "Unknown",
		Pickup:       e.Pickup,
		Destination:  e.Destination,
		Status:       status,
		CancelCount:  e.CancelCount,
	}
	if u != nil {
		v.ID = models.StringPtr(u.ID)
		v.Name = u.Name
		v.Email = u.Email
	}
	return v
}

func uniqueStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
