package service

import (
	"context"
	"strings"

	"campusride/pkg/apperr"
	"campusride/pkg/logger"
	"campusride/pkg/models"
	"campusride/pkg/socket"
	"campusride/storage"
)

type ComplaintView struct {
	*models.Complaint
	Student *models.UserRef `json:"student"`
}

type ComplaintService interface {
	Create(ctx context.Context, studentID, text, rideID string) (*ComplaintView, error)
	ListMine(ctx context.Context, studentID string) ([]*models.Complaint, error)
	ListAll(ctx context.Context) ([]ComplaintView, error)
	UpdateStatus(ctx context.Context, adminID, id, status, response string) (*ComplaintView, error)
}

type complaintService struct {
	stg  storage.IStorage
	emit socket.Emitter
	log  logger.ILogger
}

func NewComplaintService(stg storage.IStorage, emit socket.Emitter, log logger.ILogger) ComplaintService {
	return &complaintService{
		stg:  stg,
		emit: emit,
		log:  log,
	}
}

func (s *complaintService) Create(ctx context.Context, studentID, text, rideID string) (*ComplaintView, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperr.Validation("Complaint text is required")
	}
	if len([]rune(text)) > models.MaxComplaintLength {
		return nil, apperr.Validation("Complaint is too long")
	}

	complaint := &models.Complaint{StudentID: studentID, Text: text}
	if rideID != "" {
		ride, err := s.stg.Ride().GetByID(ctx, rideID)
		if err != nil {
			return nil, err
		}
		if ride == nil {
			return nil, apperr.NotFound("Ride not found")
		}
		complaint.RideID = models.StringPtr(ride.ID)

		trip, err := s.stg.Trip().GetByRideID(ctx, ride.ID)
		if err != nil {
			return nil, err
		}
		if trip != nil {
			complaint.TripID = models.StringPtr(trip.ID)
		}
	}

	created, err := s.stg.Complaint().Create(ctx, complaint)
	if err != nil {
		return nil, err
	}
	student, err := s.stg.User().GetByID(ctx, studentID)
	if err != nil {
		return nil, err
	}

	view := &ComplaintView{Complaint: created, Student: student.Ref()}
	s.emit.EmitToRole(models.RoleAdmin, models.EventComplaintNew, view)
	return view, nil
}

func (s *complaintService) ListMine(ctx context.Context, studentID string) ([]*models.Complaint, error) {
	return s.stg.Complaint().ListByStudent(ctx, studentID)
}

func (s *complaintService) ListAll(ctx context.Context) ([]ComplaintView, error) {
	complaints, err := s.stg.Complaint().ListAll(ctx)
	if err != nil {
		return nil, err
	}

	studentIDs := make([]string, 0, len(complaints))
	for _, c := range complaints {
		studentIDs = append(studentIDs, c.StudentID)
	}
	students, err := s.stg.User().GetByIDs(ctx, uniqueStrings(studentIDs))
	if err != nil {
		return nil, err
	}

	out := make([]ComplaintView, 0, len(complaints))
	for _, c := range complaints {
		out = append(out, ComplaintView{Complaint: c, Student: students[c.StudentID].Ref()})
	}
	return out, nil
}

func (s *complaintService) UpdateStatus(ctx context.Context, adminID, id, status, response string) (*ComplaintView, error) {
	if !models.ContainsStatus(models.ComplaintStatuses, status) {
		return nil, apperr.Validation("Invalid complaint status")
	}

	existing, err := s.stg.Complaint().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, apperr.NotFound("Complaint not found")
	}

	response = strings.TrimSpace(response)
	if response == "" {
		response = existing.AdminResponse
	}
	var resolvedBy *string
	if status == models.ComplaintStatusResolved || status == models.ComplaintStatusRejected {
		resolvedBy = models.StringPtr(adminID)
	}

	updated, err := s.stg.Complaint().UpdateStatus(ctx, id, status, response, resolvedBy)
	if err != nil {
		return nil, err
	}
	student, err := s.stg.User().GetByID(ctx, updated.StudentID)
	if err != nil {
		return nil, err
	}

	s.log.Info("complaint updated", logger.String("complaint", id), logger.String("status", status))

	view := &ComplaintView{Complaint: updated, Student: student.Ref()}
	s.emit.EmitToRooms([]string{
		socket.UserRoom(updated.StudentID),
		socket.RoleRoom(models.RoleAdmin),
	}, models.EventComplaintStatusUpdated, view)
	return view, nil
}
