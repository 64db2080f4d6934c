package mongo

import (
	"time"

	"campusride/pkg/models"
)

type userDoc struct {
	ID            string     `bson:"_id"`
	Name          string     `bson:"name"`
	Email         string     `bson:"email"`
	PasswordHash  string     `bson:"password_hash"`
	Role          string     `bson:"role"`
	Status        string     `bson:"status"`
	IsActive      bool       `bson:"is_active"`
	DeactivatedAt *time.Time `bson:"deactivated_at"`
	DeactivatedBy *string    `bson:"deactivated_by"`
	VehicleNumber *string    `bson:"vehicle_number"`
	CreatedAt     time.Time  `bson:"created_at"`
	UpdatedAt     time.Time  `bson:"updated_at"`
}

func (d *userDoc) model() *models.User {
	return &models.User{
		ID:            d.ID,
		Name:          d.Name,
		Email:         d.Email,
		Password:      d.PasswordHash,
		Role:          d.Role,
		Status:        d.Status,
		IsActive:      d.IsActive,
		DeactivatedAt: d.DeactivatedAt,
		DeactivatedBy: d.DeactivatedBy,
		VehicleNumber: d.VehicleNumber,
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
	}
}

type entryDoc struct {
	ID          string     `bson:"_id"`
	StudentID   string     `bson:"student_id"`
	Pickup      string     `bson:"pickup"`
	Destination string     `bson:"destination"`
	Status      string     `bson:"status"`
	CancelCount int        `bson:"cancel_count"`
	QueueAt     time.Time  `bson:"queue_at"`
	RideID      *string    `bson:"ride_id"`
	DriverID    *string    `bson:"driver_id"`
	ArrivedAt   *time.Time `bson:"arrived_at"`
	StartedAt   *time.Time `bson:"started_at"`
	CompletedAt *time.Time `bson:"completed_at"`
	Seq         int64      `bson:"seq"`
	CreatedAt   time.Time  `bson:"created_at"`
	UpdatedAt   time.Time  `bson:"updated_at"`
}

func (d *entryDoc) model() *models.QueueEntry {
	return &models.QueueEntry{
		ID:          d.ID,
		StudentID:   d.StudentID,
		Pickup:      d.Pickup,
		Destination: d.Destination,
		Status:      d.Status,
		CancelCount: d.CancelCount,
		QueueAt:     d.QueueAt,
		RideID:      d.RideID,
		DriverID:    d.DriverID,
		ArrivedAt:   d.ArrivedAt,
		StartedAt:   d.StartedAt,
		CompletedAt: d.CompletedAt,
		Seq:         d.Seq,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

type rideDoc struct {
	ID          string     `bson:"_id"`
	DriverID    *string    `bson:"driver_id"`
	Students    []string   `bson:"students"`
	Status      string     `bson:"status"`
	MaxSeats    int        `bson:"max_seats"`
	StartedAt   *time.Time `bson:"started_at"`
	CompletedAt *time.Time `bson:"completed_at"`
	CreatedAt   time.Time  `bson:"created_at"`
	UpdatedAt   time.Time  `bson:"updated_at"`
}

func (d *rideDoc) model() *models.Ride {
	students := d.Students
	if students == nil {
		students = []string{}
	}
	return &models.Ride{
		ID:          d.ID,
		DriverID:    d.DriverID,
		Students:    students,
		Status:      d.Status,
		MaxSeats:    d.MaxSeats,
		StartedAt:   d.StartedAt,
		CompletedAt: d.CompletedAt,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

type tripDoc struct {
	ID           string     `bson:"_id"`
	RideID       string     `bson:"ride_id"`
	DriverID     *string    `bson:"driver_id"`
	Students     []string   `bson:"students"`
	PickupPoints []string   `bson:"pickup_points"`
	Destinations []string   `bson:"destinations"`
	Status       string     `bson:"status"`
	StartedAt    time.Time  `bson:"started_at"`
	CompletedAt  *time.Time `bson:"completed_at"`
	CreatedAt    time.Time  `bson:"created_at"`
	UpdatedAt    time.Time  `bson:"updated_at"`
}

func (d *tripDoc) model() *models.Trip {
	return &models.Trip{
		ID:           d.ID,
		RideID:       d.RideID,
		DriverID:     d.DriverID,
		Students:     d.Students,
		PickupPoints: d.PickupPoints,
		Destinations: d.Destinations,
		Status:       d.Status,
		StartedAt:    d.StartedAt,
		CompletedAt:  d.CompletedAt,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}

type messageDoc struct {
	ID            string    `bson:"_id"`
	SenderID      string    `bson:"sender_id"`
	SenderRole    string    `bson:"sender_role"`
	RoomType      string    `bson:"room_type"`
	RoomID        string    `bson:"room_id"`
	Content       string    `bson:"content"`
	SenderDeleted bool      `bson:"sender_deleted"`
	CreatedAt     time.Time `bson:"created_at"`
}

func (d *messageDoc) model() *models.Message {
	return &models.Message{
		ID:            d.ID,
		SenderID:      d.SenderID,
		SenderRole:    d.SenderRole,
		RoomType:      d.RoomType,
		RoomID:        d.RoomID,
		Content:       d.Content,
		SenderDeleted: d.SenderDeleted,
		CreatedAt:     d.CreatedAt,
	}
}

type complaintDoc struct {
	ID            string    `bson:"_id"`
	StudentID     string    `bson:"student_id"`
	TripID        *string   `bson:"trip_id"`
	RideID        *string   `bson:"ride_id"`
	Text          string    `bson:"text"`
	Status        string    `bson:"status"`
	AdminResponse string    `bson:"admin_response"`
	ResolvedBy    *string   `bson:"resolved_by"`
	CreatedAt     time.Time `bson:"created_at"`
	UpdatedAt     time.Time `bson:"updated_at"`
}

func (d *complaintDoc) model() *models.Complaint {
	return &models.Complaint{
		ID:            d.ID,
		StudentID:     d.StudentID,
		TripID:        d.TripID,
		RideID:        d.RideID,
		Text:          d.Text,
		Status:        d.Status,
		AdminResponse: d.AdminResponse,
		ResolvedBy:    d.ResolvedBy,
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
	}
}

type scheduleDoc struct {
	ID          string    `bson:"_id"`
	Title       string    `bson:"title"`
	Description string    `bson:"description"`
	Date        string    `bson:"date"`
	StartTime   string    `bson:"start_time"`
	EndTime     string    `bson:"end_time"`
	TargetRole  string    `bson:"target_role"`
	DriverID    *string   `bson:"driver_id"`
	CreatedBy   string    `bson:"created_by"`
	CreatedAt   time.Time `bson:"created_at"`
	UpdatedAt   time.Time `bson:"updated_at"`
}

func (d *scheduleDoc) model() *models.Schedule {
	return &models.Schedule{
		ID:          d.ID,
		Title:       d.Title,
		Description: d.Description,
		Date:        d.Date,
		StartTime:   d.StartTime,
		EndTime:     d.EndTime,
		TargetRole:  d.TargetRole,
		DriverID:    d.DriverID,
		CreatedBy:   d.CreatedBy,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}
