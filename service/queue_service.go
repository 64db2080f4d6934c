package service

import (
	"context"
	"errors"
	"strings"

	"campusride/pkg/apperr"
	"campusride/pkg/logger"
	"campusride/pkg/models"
	"campusride/pkg/socket"
	"campusride/storage"
)

type QueueService interface {
	BookRide(ctx context.Context, studentID, pickup, destination string) (*StudentRide, error)
	LeaveQueue(ctx context.Context, studentID string) (*EntryStatus, error)
	StartTrip(ctx context.Context, driverID string) (*DriverRide, error)
	MarkStudentArrived(ctx context.Context, driverID, queueEntryID string) (*EntryStatus, error)
	CancelStudentFromRide(ctx context.Context, driverID, queueEntryID string) (*CancelResult, error)
	CompleteTrip(ctx context.Context, driverID string) (*CompleteResult, error)

	GetStudentCurrentRide(ctx context.Context, studentID string) (*StudentRide, error)
	GetStudentRideHistory(ctx context.Context, studentID string) ([]HistoryItem, error)
	GetDriverCurrentRide(ctx context.Context, driverID string) (*DriverRide, error)
	GetAdminQueueOverview(ctx context.Context) (*AdminQueueOverview, error)
	GetAdminStats(ctx context.Context) (*AdminStats, error)

	// ProcessQueue re-broadcasts the waiting queue snapshot to every watcher.
	ProcessQueue(ctx context.Context) error
	EmitRideState(ctx context.Context, rideID string) error
}

type queueService struct {
	stg      storage.IStorage
	emit     socket.Emitter
	log      logger.ILogger
	maxSeats int
}

func NewQueueService(stg storage.IStorage, emit socket.Emitter, log logger.ILogger, maxSeats int) QueueService {
	if maxSeats <= 0 {
		maxSeats = models.DefaultMaxSeats
	}
	return &queueService{
		stg:      stg,
		emit:     emit,
		log:      log,
		maxSeats: maxSeats,
	}
}

func (s *queueService) BookRide(ctx context.Context, studentID, pickup, destination string) (*StudentRide, error) {
	pickup = strings.TrimSpace(pickup)
	destination = strings.TrimSpace(destination)
	if pickup == "" || destination == "" {
		return nil, apperr.Validation("Pickup and destination are required")
	}

	_, err := s.stg.Queue().CreateIfNoActive(ctx, &models.QueueEntry{
		StudentID:   studentID,
		Pickup:      pickup,
		Destination: destination,
		QueueAt:     now(),
	})
	if errors.Is(err, storage.ErrDuplicate) {
		return nil, apperr.AlreadyBooked("You already have an active booking")
	}
	if err != nil {
		return nil, err
	}

	s.log.Info("ride booked", logger.String("student", studentID))
	s.emit.JoinQueueRoom([]string{studentID})
	s.broadcastQueue(ctx)

	return s.GetStudentCurrentRide(ctx, studentID)
}

func (s *queueService) LeaveQueue(ctx context.Context, studentID string) (*EntryStatus, error) {
	entry, err := s.stg.Queue().RemoveWaiting(ctx, studentID, now())
	if err != nil {
		return nil, err
	}
	if entry == nil {
		locked, err := s.stg.Queue().HasLocked(ctx, studentID)
		if err != nil {
			return nil, err
		}
		if locked {
			return nil, apperr.Locked("Cannot leave queue after trip is locked")
		}
		return nil, apperr.NotFound("No waiting queue entry found")
	}

	s.emit.LeaveQueueRoom([]string{studentID})
	s.broadcastQueue(ctx)

	payload := &EntryStatus{QueueEntryID: entry.ID, Status: entry.Status}
	s.emit.EmitToUser(studentID, models.EventQueueLeft, payload)
	return payload, nil
}

func (s *queueService) StartTrip(ctx context.Context, driverID string) (*DriverRide, error) {
	existing, err := s.stg.Ride().GetInTransitByDriver(ctx, driverID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperr.Conflict("You already have an active trip")
	}

	startedAt := now()
	var claimed []*models.QueueEntry
	// A nil claim can be a lost race on the head row rather than an empty
	// queue, so it is retried against a fresh count, at most maxSeats times.
	misses := 0
	for len(claimed) < s.maxSeats {
		entry, err := s.stg.Queue().ClaimNextWaiting(ctx, driverID, startedAt)
		if err != nil {
			s.release(ctx, ids(claimed), driverID, "")
			return nil, err
		}
		if entry != nil {
			claimed = append(claimed, entry)
			continue
		}

		misses++
		if misses > s.maxSeats {
			break
		}
		waiting, err := s.stg.Queue().CountByStatus(ctx, models.QueueStatusWaiting)
		if err != nil {
			s.release(ctx, ids(claimed), driverID, "")
			return nil, err
		}
		if waiting == 0 {
			break
		}
	}
	if len(claimed) == 0 {
		return nil, apperr.EmptyQueue("No students waiting in queue")
	}

	entryIDs := ids(claimed)
	studentIDs := make([]string, 0, len(claimed))
	pickups := make([]string, 0, len(claimed))
	destinations := make([]string, 0, len(claimed))
	for _, e := range claimed {
		studentIDs = append(studentIDs, e.StudentID)
		pickups = append(pickups, e.Pickup)
		destinations = append(destinations, e.Destination)
	}

	ride, err := s.stg.Ride().Create(ctx, &models.Ride{
		DriverID:  models.StringPtr(driverID),
		Students:  entryIDs,
		Status:    models.RideStatusInTransit,
		MaxSeats:  s.maxSeats,
		StartedAt: models.TimePtr(startedAt),
	})
	if err != nil {
		s.release(ctx, entryIDs, driverID, "")
		if errors.Is(err, storage.ErrDuplicate) {
			return nil, apperr.Conflict("You already have an active trip")
		}
		return nil, err
	}

	locked, err := s.stg.Queue().LockClaimed(ctx, entryIDs, driverID, ride.ID, startedAt)
	if err == nil && locked != int64(len(entryIDs)) {
		err = apperr.Conflict("Queue changed while starting trip. Please retry.")
	}
	if err == nil {
		_, err = s.stg.Trip().Upsert(ctx, &models.Trip{
			RideID:       ride.ID,
			DriverID:     models.StringPtr(driverID),
			Students:     studentIDs,
			PickupPoints: uniqueStrings(pickups),
			Destinations: uniqueStrings(destinations),
			Status:       models.TripStatusInTransit,
			StartedAt:    startedAt,
		})
	}
	if err != nil {
		s.log.Warning("start trip rolled back",
			logger.String("driver", driverID),
			logger.String("ride", ride.ID),
			logger.Error(err),
		)
		s.release(ctx, entryIDs, driverID, ride.ID)
		if delErr := s.stg.Ride().Delete(ctx, ride.ID); delErr != nil {
			s.log.Error("failed to delete ride", logger.String("ride", ride.ID), logger.Error(delErr))
		}
		if delErr := s.stg.Trip().DeleteByRideID(ctx, ride.ID); delErr != nil {
			s.log.Error("failed to delete trip", logger.String("ride", ride.ID), logger.Error(delErr))
		}
		return nil, err
	}

	s.log.Info("trip started",
		logger.String("driver", driverID),
		logger.String("ride", ride.ID),
		logger.Int("seats", len(entryIDs)),
	)

	s.broadcastQueue(ctx)
	s.emit.JoinTripRoom(append([]string{driverID}, studentIDs...), ride.ID)
	s.emitRideState(ctx, ride.ID)

	payload := TripPayload{
		RideID:      ride.ID,
		StartedAt:   startedAt,
		SeatsFilled: len(entryIDs),
		MaxSeats:    s.maxSeats,
	}
	s.emit.EmitToRooms([]string{socket.UserRoom(driverID), socket.RoleRoom(models.RoleAdmin)}, models.EventTripStarted, payload)
	for _, studentID := range studentIDs {
		s.emit.EmitToUser(studentID, models.EventTripAssigned, payload)
	}

	if len(entryIDs) == s.maxSeats {
		if view, err := s.rideView(ctx, ride); err == nil {
			s.emit.EmitToRooms([]string{
				socket.UserRoom(driverID),
				socket.RoleRoom(models.RoleDriver),
				socket.RoleRoom(models.RoleAdmin),
			}, models.EventRideFull, RidePayload{Ride: view})
		}
	}

	return s.GetDriverCurrentRide(ctx, driverID)
}

// release sends claimed entries back to waiting after a failed start.
func (s *queueService) release(ctx context.Context, entryIDs []string, driverID, rideID string) {
	if len(entryIDs) == 0 {
		return
	}
	if _, err := s.stg.Queue().ReleaseClaimed(ctx, entryIDs, driverID, rideID); err != nil {
		s.log.Error("failed to release claimed entries",
			logger.String("driver", driverID),
			logger.Strings("entries", entryIDs),
			logger.Error(err),
		)
	}
}

func (s *queueService) requireDriverEntry(ctx context.Context, driverID, queueEntryID string) (*models.QueueEntry, *models.Ride, error) {
	entry, err := s.stg.Queue().GetByID(ctx, queueEntryID)
	if err != nil {
		return nil, nil, err
	}
	if entry == nil {
		return nil, nil, apperr.NotFound("Queue entry not found")
	}
	if entry.RideID == nil {
		return nil, nil, apperr.InvalidState("Queue entry is not assigned to a ride")
	}
	ride, err := s.stg.Ride().GetByID(ctx, *entry.RideID)
	if err != nil {
		return nil, nil, err
	}
	if ride == nil {
		return nil, nil, apperr.NotFound("Ride not found")
	}
	if !ride.OwnedBy(driverID) {
		return nil, nil, apperr.Forbidden("This ride is not assigned to you")
	}
	return entry, ride, nil
}

func (s *queueService) MarkStudentArrived(ctx context.Context, driverID, queueEntryID string) (*EntryStatus, error) {
	entry, ride, err := s.requireDriverEntry(ctx, driverID, queueEntryID)
	if err != nil {
		return nil, err
	}
	if entry.Status != models.QueueStatusAssigned && entry.Status != models.QueueStatusPickup {
		return nil, apperr.InvalidState("Only assigned students can be marked arrived")
	}

	n, err := s.stg.Queue().MarkArrived(ctx, entry.ID, ride.ID, now())
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, apperr.Conflict("Queue entry changed. Please retry.")
	}

	s.emitRideState(ctx, ride.ID)
	s.broadcastQueue(ctx)

	return &EntryStatus{QueueEntryID: entry.ID, Status: models.QueueStatusPickup}, nil
}

func (s *queueService) CancelStudentFromRide(ctx context.Context, driverID, queueEntryID string) (*CancelResult, error) {
	entry, err := s.stg.Queue().GetByID(ctx, queueEntryID)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, apperr.NotFound("Queue entry not found")
	}
	if entry.Status != models.QueueStatusWaiting && entry.Status != models.QueueStatusAssigned {
		return nil, apperr.InvalidState("Only waiting or assigned students can be cancelled")
	}
	if entry.DriverID != nil && *entry.DriverID != driverID {
		return nil, apperr.Forbidden("This queue entry is not assigned to you")
	}

	rideID := models.Deref(entry.RideID)
	if rideID != "" {
		ride, err := s.stg.Ride().GetByID(ctx, rideID)
		if err != nil {
			return nil, err
		}
		if ride == nil {
			return nil, apperr.NotFound("Ride not found")
		}
		if ride.DriverID != nil && !ride.OwnedBy(driverID) {
			return nil, apperr.Forbidden("This ride is not assigned to you")
		}
		if ride.Status == models.RideStatusInTransit {
			return nil, apperr.InvalidState("Cannot cancel a student after trip has started")
		}
	}

	at := now()
	requeue := entry.CancelCount < 1
	update := models.CancelUpdate{
		Status:  models.QueueStatusCancelled,
		QueueAt: entry.QueueAt,
	}
	if requeue {
		update.Status = models.QueueStatusWaiting
		update.QueueAt = at
	} else {
		update.CompletedAt = models.TimePtr(at)
	}

	n, err := s.stg.Queue().ApplyCancel(ctx, models.CancelGuard{
		ID:          entry.ID,
		Status:      entry.Status,
		CancelCount: entry.CancelCount,
		RideID:      entry.RideID,
		DriverID:    entry.DriverID,
	}, update)
	if err != nil {
		return nil, err
	}
	if n != 1 {
		return nil, apperr.Conflict("Queue entry changed. Please retry.")
	}

	if rideID != "" {
		if _, err := s.stg.Ride().PullMembers(ctx, []string{rideID}, []string{entry.ID}, models.RideStatusInTransit); err != nil {
			s.log.Error("failed to pull ride member", logger.String("ride", rideID), logger.Error(err))
		}
	}

	cancelCount := entry.CancelCount + 1
	s.log.Info("student cancelled from ride",
		logger.String("driver", driverID),
		logger.String("entry", entry.ID),
		logger.String("status", update.Status),
		logger.Int("cancelCount", cancelCount),
	)

	if requeue {
		s.emit.JoinQueueRoom([]string{entry.StudentID})
	} else {
		s.emit.LeaveQueueRoom([]string{entry.StudentID})
	}

	s.broadcastQueue(ctx)
	if rideID != "" {
		s.emitRideState(ctx, rideID)
	}

	event := CancelEvent{
		QueueEntryID: entry.ID,
		StudentID:    entry.StudentID,
		CancelCount:  cancelCount,
		Status:       update.Status,
		UpdatedAt:    at,
	}
	if requeue {
		s.emitToQueueWatchers(models.EventStudentRequeued, event)
		s.emitToQueueWatchers(models.EventQueueReordered, event)
	} else {
		s.emitToQueueWatchers(models.EventStudentRemoved, event)
	}

	return &CancelResult{QueueEntryID: entry.ID, Status: update.Status, CancelCount: cancelCount}, nil
}

func (s *queueService) CompleteTrip(ctx context.Context, driverID string) (*CompleteResult, error) {
	ride, err := s.stg.Ride().GetInTransitByDriver(ctx, driverID)
	if err != nil {
		return nil, err
	}
	if ride == nil {
		return nil, apperr.NotFound("No in-transit ride found")
	}

	completedAt := now()
	err = s.stg.InTx(ctx, func(tx storage.IStorage) error {
		n, err := tx.Ride().Complete(ctx, ride.ID, driverID, completedAt)
		if err != nil {
			return err
		}
		if n == 0 {
			return apperr.Conflict("Ride changed. Please retry.")
		}
		if _, err := tx.Queue().CompleteMany(ctx, ride.Students, completedAt); err != nil {
			return err
		}
		_, err = tx.Trip().SetStatusByRides(ctx, []string{ride.ID}, models.TripStatusInTransit, models.TripStatusCompleted, completedAt, false)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("trip completed", logger.String("driver", driverID), logger.String("ride", ride.ID))

	s.emitRideState(ctx, ride.ID)
	s.broadcastQueue(ctx)

	var studentIDs []string
	entries, err := s.stg.Queue().GetByIDs(ctx, ride.Students)
	if err != nil {
		s.log.Warning("failed to load ride members", logger.String("ride", ride.ID), logger.Error(err))
	}
	for _, e := range entries {
		studentIDs = append(studentIDs, e.StudentID)
	}
	studentIDs = uniqueStrings(studentIDs)
	s.emit.LeaveTripRoom(append([]string{driverID}, studentIDs...), ride.ID)

	payload := TripCompletedPayload{RideID: ride.ID, Driver: driverID, CompletedAt: completedAt}
	s.emit.EmitToUser(driverID, models.EventTripCompleted, payload)
	for _, studentID := range studentIDs {
		s.emit.EmitToUser(studentID, models.EventTripCompleted, payload)
	}

	return &CompleteResult{RideID: ride.ID, Status: models.RideStatusCompleted}, nil
}

func (s *queueService) GetStudentCurrentRide(ctx context.Context, studentID string) (*StudentRide, error) {
	entry, err := s.stg.Queue().GetActiveByStudent(ctx, studentID)
	if err != nil || entry == nil {
		return nil, err
	}

	var ride *models.Ride
	if entry.RideID != nil {
		if ride, err = s.stg.Ride().GetByID(ctx, *entry.RideID); err != nil {
			return nil, err
		}
	}

	position := 0
	if entry.Status == models.QueueStatusWaiting {
		if position, err = s.stg.Queue().WaitingPosition(ctx, entry.ID); err != nil {
			return nil, err
		}
	}
	if position == 0 && ride != nil {
		for i, id := range ride.Students {
			if id == entry.ID {
				position = i + 1
				break
			}
		}
	}

	driverID := models.Deref(entry.DriverID)
	if driverID == "" && ride != nil {
		driverID = models.Deref(ride.DriverID)
	}
	var driver *models.User
	if driverID != "" {
		if driver, err = s.stg.User().GetByID(ctx, driverID); err != nil {
			return nil, err
		}
	}

	view := &StudentRide{
		ID:                   entry.ID,
		Status:               entry.Status,
		Pickup:               entry.Pickup,
		Destination:          entry.Destination,
		EstimatedWaitMinutes: EstimateWaitMinutes(position, entry.Status),
		CancelCount:          entry.CancelCount,
		RideID:               entry.RideID,
		Driver:               publicRef(driver),
		UpdatedAt:            entry.UpdatedAt,
	}
	if position > 0 {
		view.QueuePosition = &position
	}
	return view, nil
}

func (s *queueService) GetStudentRideHistory(ctx context.Context, studentID string) ([]HistoryItem, error) {
	entries, err := s.stg.Queue().ListHistory(ctx, studentID)
	if err != nil {
		return nil, err
	}

	driverOf := make(map[string]string, len(entries))
	var driverIDs []string
	for _, e := range entries {
		driverID := models.Deref(e.DriverID)
		if driverID == "" && e.RideID != nil {
			ride, err := s.stg.Ride().GetByID(ctx, *e.RideID)
			if err != nil {
				return nil, err
			}
			if ride != nil {
				driverID = models.Deref(ride.DriverID)
			}
		}
		if driverID != "" {
			driverOf[e.ID] = driverID
			driverIDs = append(driverIDs, driverID)
		}
	}
	drivers, err := s.stg.User().GetByIDs(ctx, uniqueStrings(driverIDs))
	if err != nil {
		return nil, err
	}

	items := make([]HistoryItem, 0, len(entries))
	for _, e := range entries {
		status := e.Status
		if status == models.QueueStatusRemoved {
			status = models.QueueStatusCancelled
		}
		driverName := "Not assigned"
		if d := drivers[driverOf[e.ID]]; d != nil {
			driverName = d.Name
		}
		date := e.UpdatedAt
		if e.CompletedAt != nil {
			date = *e.CompletedAt
		}
		items = append(items, HistoryItem{
			ID:     e.ID,
			Date:   date,
			From:   e.Pickup,
			To:     e.Destination,
			Status: status,
			Driver: driverName,
			Fare:   "-",
		})
	}
	return items, nil
}

func (s *queueService) GetDriverCurrentRide(ctx context.Context, driverID string) (*DriverRide, error) {
	ride, err := s.stg.Ride().GetInTransitByDriver(ctx, driverID)
	if err != nil {
		return nil, err
	}
	waitingCount, err := s.stg.Queue().CountByStatus(ctx, models.QueueStatusWaiting)
	if err != nil {
		return nil, err
	}

	out := &DriverRide{WaitingCount: waitingCount}
	if ride != nil {
		if out.Ride, err = s.rideView(ctx, ride); err != nil {
			return nil, err
		}
		return out, nil
	}

	waiting, err := s.stg.Queue().ListWaiting(ctx, s.maxSeats)
	if err != nil || len(waiting) == 0 {
		return out, err
	}
	users, err := s.stg.User().GetByIDs(ctx, studentIDsOf(waiting))
	if err != nil {
		return nil, err
	}
	preview := &RideView{
		ID:          PreviewRideID,
		Status:      models.QueueStatusWaiting,
		SeatsFilled: len(waiting),
		MaxSeats:    s.maxSeats,
		Students:    make([]RideStudentView, 0, len(waiting)),
		CreatedAt:   waiting[0].CreatedAt,
	}
	for _, e := range waiting {
		preview.Students = append(preview.Students, studentView(e, users[e.StudentID], models.QueueStatusWaiting))
	}
	out.Ride = preview
	return out, nil
}

func (s *queueService) GetAdminQueueOverview(ctx context.Context) (*AdminQueueOverview, error) {
	waiting, err := s.stg.Queue().ListWaiting(ctx, 0)
	if err != nil {
		return nil, err
	}
	users, err := s.stg.User().GetByIDs(ctx, studentIDsOf(waiting))
	if err != nil {
		return nil, err
	}

	out := &AdminQueueOverview{
		WaitingQueue: make([]AdminQueueItem, 0, len(waiting)),
		ActiveRides:  []*RideView{},
	}
	for i, e := range waiting {
		out.WaitingQueue = append(out.WaitingQueue, AdminQueueItem{
			ID:          e.ID,
			Student:     publicRef(users[e.StudentID]),
			Pickup:      e.Pickup,
			Destination: e.Destination,
			Position:    i + 1,
			Status:      e.Status,
			QueueAt:     e.QueueAt,
		})
	}

	rides, err := s.stg.Ride().ListActive(ctx)
	if err != nil {
		return nil, err
	}
	for _, ride := range rides {
		view, err := s.rideView(ctx, ride)
		if err != nil {
			return nil, err
		}
		out.ActiveRides = append(out.ActiveRides, view)
	}
	return out, nil
}

func (s *queueService) GetAdminStats(ctx context.Context) (*AdminStats, error) {
	var (
		stats AdminStats
		err   error
	)
	if stats.Students, err = s.stg.User().CountByRole(ctx, models.RoleStudent); err != nil {
		return nil, err
	}
	if stats.Drivers, err = s.stg.User().CountByRole(ctx, models.RoleDriver); err != nil {
		return nil, err
	}
	if stats.ActiveQueue, err = s.stg.Queue().CountByStatus(ctx, models.ActiveQueueStatuses...); err != nil {
		return nil, err
	}
	if stats.Complaints, err = s.stg.Complaint().CountByStatus(ctx, models.OpenComplaintStatuses...); err != nil {
		return nil, err
	}
	return &stats, nil
}

func (s *queueService) ProcessQueue(ctx context.Context) error {
	waiting, err := s.stg.Queue().ListWaiting(ctx, 0)
	if err != nil {
		return err
	}
	users, err := s.stg.User().GetByIDs(ctx, studentIDsOf(waiting))
	if err != nil {
		return err
	}

	snapshot := QueueSnapshot{
		Waiting:      make([]QueueItem, 0, len(waiting)),
		TotalWaiting: len(waiting),
		UpdatedAt:    now(),
	}
	for i, e := range waiting {
		item := QueueItem{
			ID:          e.ID,
			StudentName: "Unknown",
			Pickup:      e.Pickup,
			Destination: e.Destination,
			Status:      e.Status,
			Position:    i + 1,
			QueueAt:     e.QueueAt,
		}
		if u := users[e.StudentID]; u != nil {
			item.StudentID = models.StringPtr(u.ID)
			item.StudentName = u.Name
		}
		snapshot.Waiting = append(snapshot.Waiting, item)
	}

	s.emitToQueueWatchers(models.EventQueueUpdated, snapshot)
	s.emitToQueueWatchers(models.EventQueueCount, QueueCount{
		TotalWaiting: snapshot.TotalWaiting,
		UpdatedAt:    snapshot.UpdatedAt,
	})
	return nil
}

// EmitRideState sends the ride to its trip room, its driver, each member
// student and the admins.
func (s *queueService) EmitRideState(ctx context.Context, rideID string) error {
	ride, err := s.stg.Ride().GetByID(ctx, rideID)
	if err != nil || ride == nil {
		return err
	}
	view, err := s.rideView(ctx, ride)
	if err != nil {
		return err
	}

	rooms := []string{socket.TripRoom(ride.ID), socket.RoleRoom(models.RoleAdmin)}
	if ride.DriverID != nil {
		rooms = append(rooms, socket.UserRoom(*ride.DriverID))
	}
	for _, st := range view.Students {
		if st.ID != nil {
			rooms = append(rooms, socket.UserRoom(*st.ID))
		}
	}
	s.emit.EmitToRooms(rooms, models.EventRideUpdated, RidePayload{Ride: view})
	return nil
}

func (s *queueService) broadcastQueue(ctx context.Context) {
	if err := s.ProcessQueue(ctx); err != nil {
		s.log.Warning("queue broadcast failed", logger.Error(err))
	}
}

func (s *queueService) emitRideState(ctx context.Context, rideID string) {
	if err := s.EmitRideState(ctx, rideID); err != nil {
		s.log.Warning("ride broadcast failed", logger.String("ride", rideID), logger.Error(err))
	}
}

func (s *queueService) emitToQueueWatchers(event string, payload any) {
	rooms := make([]string, 0, len(models.Roles))
	for _, role := range models.Roles {
		rooms = append(rooms, socket.RoleRoom(role))
	}
	s.emit.EmitToRooms(rooms, event, payload)
}

func (s *queueService) rideView(ctx context.Context, ride *models.Ride) (*RideView, error) {
	entries, err := s.stg.Queue().GetByIDs(ctx, ride.Students)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*models.QueueEntry, len(entries))
	for _, e := range entries {
		byID[e.ID] = e
	}

	userIDs := studentIDsOf(entries)
	if ride.DriverID != nil {
		userIDs = append(userIDs, *ride.DriverID)
	}
	users, err := s.stg.User().GetByIDs(ctx, userIDs)
	if err != nil {
		return nil, err
	}

	view := &RideView{
		ID:          ride.ID,
		Status:      rideStatusLabel(ride.Status),
		SeatsFilled: len(ride.Students),
		MaxSeats:    ride.MaxSeats,
		Students:    make([]RideStudentView, 0, len(ride.Students)),
		CreatedAt:   ride.CreatedAt,
		StartedAt:   ride.StartedAt,
		CompletedAt: ride.CompletedAt,
	}
	if ride.DriverID != nil {
		view.Driver = publicRef(users[*ride.DriverID])
	}
	for _, id := range ride.Students {
		e, ok := byID[id]
		if !ok {
			continue
		}
		view.Students = append(view.Students, studentView(e, users[e.StudentID], e.Status))
	}
	return view, nil
}

func ids(entries []*models.QueueEntry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.ID)
	}
	return out
}

func studentIDsOf(entries []*models.QueueEntry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.StudentID)
	}
	return uniqueStrings(out)
}
