package service

import (
	"context"
	"time"

	"campusride/pkg/apperr"
	"campusride/pkg/logger"
	"campusride/pkg/models"
	"campusride/pkg/socket"
	"campusride/storage"
)

const (
	ActionDeactivated = "deactivated"
	ActionDeleted     = "deleted"
)

type RemovalResult struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	Action string `json:"action"`
}

type CleanupService interface {
	// RemoveUser deactivates or permanently deletes target and unwinds its
	// queue, ride and trip state. Notifications afterwards are best effort.
	RemoveUser(ctx context.Context, adminID string, target *models.User, permanent bool) (*RemovalResult, error)
}

type cleanupService struct {
	stg   storage.IStorage
	emit  socket.Emitter
	queue QueueService
	log   logger.ILogger
}

func NewCleanupService(stg storage.IStorage, emit socket.Emitter, queue QueueService, log logger.ILogger) CleanupService {
	return &cleanupService{
		stg:   stg,
		emit:  emit,
		queue: queue,
		log:   log,
	}
}

// requeued is a ride whose riders went back to the waiting queue.
type requeued struct {
	rideID     string
	studentIDs []string
}

func (s *cleanupService) RemoveUser(ctx context.Context, adminID string, target *models.User, permanent bool) (*RemovalResult, error) {
	if target == nil {
		return nil, apperr.NotFound("User not found")
	}
	if target.ID == adminID {
		return nil, apperr.InvalidState("You cannot remove your own account")
	}
	if target.Role == models.RoleAdmin {
		others, err := s.stg.User().CountActiveAdmins(ctx, target.ID)
		if err != nil {
			return nil, err
		}
		if others == 0 {
			return nil, apperr.InvalidState("Cannot remove the last active admin")
		}
	}

	at := now()
	var (
		affected []string
		moved    []requeued
	)
	err := s.stg.InTx(ctx, func(tx storage.IStorage) error {
		var err error
		switch target.Role {
		case models.RoleStudent:
			affected, err = s.removeStudent(ctx, tx, target.ID, at)
		case models.RoleDriver:
			affected, moved, err = s.removeDriver(ctx, tx, target.ID, at)
		}
		if err != nil {
			return err
		}

		if permanent {
			return s.purge(ctx, tx, target)
		}
		if target.CanParticipate() {
			return tx.User().Deactivate(ctx, target.ID, adminID, at)
		}
		return nil
	})
	if err != nil {
		s.log.Error("failed to remove user", logger.String("user", target.ID), logger.Error(err))
		return nil, err
	}

	action := ActionDeactivated
	if permanent {
		action = ActionDeleted
	}
	s.log.Info("user removed",
		logger.String("user", target.ID),
		logger.String("role", target.Role),
		logger.String("action", action),
		logger.Strings("rides", affected),
	)

	for _, r := range moved {
		s.emit.LeaveTripRoom(r.studentIDs, r.rideID)
		s.emit.JoinQueueRoom(r.studentIDs)
	}
	s.emit.DisconnectUser(target.ID)
	s.notify(ctx, affected)

	return &RemovalResult{UserID: target.ID, Email: target.Email, Action: action}, nil
}

func (s *cleanupService) removeStudent(ctx context.Context, tx storage.IStorage, studentID string, at time.Time) ([]string, error) {
	detached, err := tx.Queue().RemoveActiveByStudent(ctx, studentID, at)
	if err != nil {
		return nil, err
	}

	entryIDs := make([]string, 0, len(detached))
	var rideIDs []string
	for _, d := range detached {
		entryIDs = append(entryIDs, d.ID)
		if d.RideID != nil {
			rideIDs = append(rideIDs, *d.RideID)
		}
	}
	rideIDs = uniqueStrings(rideIDs)
	if len(rideIDs) == 0 {
		return nil, nil
	}

	if _, err := tx.Ride().PullMembers(ctx, rideIDs, entryIDs, ""); err != nil {
		return nil, err
	}
	if _, err := tx.Trip().PullStudent(ctx, rideIDs, studentID); err != nil {
		return nil, err
	}

	empty, err := tx.Ride().FilterEmptyActive(ctx, rideIDs)
	if err != nil {
		return nil, err
	}
	if len(empty) > 0 {
		if _, err := tx.Ride().CancelMany(ctx, empty, at, false); err != nil {
			return nil, err
		}
		if _, err := tx.Trip().SetStatusByRides(ctx, empty, models.TripStatusInTransit, models.TripStatusCancelled, at, false); err != nil {
			return nil, err
		}
	}
	return rideIDs, nil
}

func (s *cleanupService) removeDriver(ctx context.Context, tx storage.IStorage, driverID string, at time.Time) ([]string, []requeued, error) {
	rides, err := tx.Ride().ListActiveByDriver(ctx, driverID)
	if err != nil {
		return nil, nil, err
	}

	var (
		rideIDs  []string
		entryIDs []string
		moved    []requeued
	)
	for _, ride := range rides {
		rideIDs = append(rideIDs, ride.ID)
		entryIDs = append(entryIDs, ride.Students...)

		entries, err := tx.Queue().GetByIDs(ctx, ride.Students)
		if err != nil {
			return nil, nil, err
		}
		moved = append(moved, requeued{rideID: ride.ID, studentIDs: studentIDsOf(entries)})
	}

	if len(entryIDs) > 0 {
		if _, err := tx.Queue().RequeueMany(ctx, entryIDs, at); err != nil {
			return nil, nil, err
		}
	}
	if len(rideIDs) > 0 {
		if _, err := tx.Ride().CancelMany(ctx, rideIDs, at, true); err != nil {
			return nil, nil, err
		}
		if _, err := tx.Trip().SetStatusByRides(ctx, rideIDs, models.TripStatusInTransit, models.TripStatusCancelled, at, true); err != nil {
			return nil, nil, err
		}
	}
	if _, err := tx.Queue().ClearDriver(ctx, driverID); err != nil {
		return nil, nil, err
	}
	return rideIDs, moved, nil
}

// purge drops the account and every reference that would otherwise point
// at a missing user.
func (s *cleanupService) purge(ctx context.Context, tx storage.IStorage, target *models.User) error {
	switch target.Role {
	case models.RoleStudent:
		if _, err := tx.Queue().DeleteByStudent(ctx, target.ID); err != nil {
			return err
		}
		if _, err := tx.Complaint().DeleteByStudent(ctx, target.ID); err != nil {
			return err
		}
		if _, err := tx.Trip().PullStudent(ctx, nil, target.ID); err != nil {
			return err
		}
	case models.RoleDriver:
		if _, err := tx.Ride().DetachDriver(ctx, target.ID); err != nil {
			return err
		}
		if _, err := tx.Trip().DetachDriver(ctx, target.ID); err != nil {
			return err
		}
		if _, err := tx.Schedule().ClearDriver(ctx, target.ID); err != nil {
			return err
		}
	}
	if _, err := tx.Message().MarkSenderDeleted(ctx, target.ID); err != nil {
		return err
	}
	if _, err := tx.Complaint().ClearResolvedBy(ctx, target.ID); err != nil {
		return err
	}
	return tx.User().Delete(ctx, target.ID)
}

func (s *cleanupService) notify(ctx context.Context, rideIDs []string) {
	if err := s.queue.ProcessQueue(ctx); err != nil {
		s.log.Warning("post-removal queue broadcast failed", logger.Error(err))
	}
	for _, rideID := range rideIDs {
		if err := s.queue.EmitRideState(ctx, rideID); err != nil {
			s.log.Warning("post-removal ride broadcast failed", logger.String("ride", rideID), logger.Error(err))
		}
	}
}
