package storage

import (
	"context"
	"errors"
	"time"

	"campusride/pkg/models"
)

var (
	// ErrDuplicate reports a unique-constraint violation: a second active
	// booking for a student, a second in-transit ride for a driver, or a
	// reused email.
	ErrDuplicate = errors.New("storage: duplicate key")
	ErrNotFound  = errors.New("storage: not found")
)

// Lookups return (nil, nil) when the record does not exist. Conditional
// writes return the number of records they changed so callers can detect a
// lost race.
type IStorage interface {
	User() IUserStorage
	Queue() IQueueStorage
	Ride() IRideStorage
	Trip() ITripStorage
	Message() IMessageStorage
	Complaint() IComplaintStorage
	Schedule() IScheduleStorage
	// InTx runs fn against a storage bound to one transaction. A non-nil
	// error from fn rolls everything back. Nested calls join the outer
	// transaction.
	InTx(ctx context.Context, fn func(tx IStorage) error) error
	Close()
}

type IUserStorage interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByIDs(ctx context.Context, ids []string) (map[string]*models.User, error)
	List(ctx context.Context, filter models.UserFilter) ([]*models.User, error)
	Deactivate(ctx context.Context, id, by string, at time.Time) error
	Reactivate(ctx context.Context, id string) error
	UpdatePassword(ctx context.Context, id, hash string) error
	Delete(ctx context.Context, id string) error
	CountByRole(ctx context.Context, role string) (int, error)
	CountActiveAdmins(ctx context.Context, excludeID string) (int, error)
}

// DetachedEntry is a queue entry id together with the ride it belonged to
// before a bulk detach.
type DetachedEntry struct {
	ID     string
	RideID *string
}

type IQueueStorage interface {
	// CreateIfNoActive inserts a waiting entry unless the student already
	// holds an active one, in which case it returns ErrDuplicate.
	CreateIfNoActive(ctx context.Context, entry *models.QueueEntry) (*models.QueueEntry, error)
	GetByID(ctx context.Context, id string) (*models.QueueEntry, error)
	GetByIDs(ctx context.Context, ids []string) ([]*models.QueueEntry, error)
	GetActiveByStudent(ctx context.Context, studentID string) (*models.QueueEntry, error)
	// ListWaiting returns waiting entries in FIFO order. limit <= 0 means all.
	ListWaiting(ctx context.Context, limit int) ([]*models.QueueEntry, error)
	ListHistory(ctx context.Context, studentID string) ([]*models.QueueEntry, error)
	CountByStatus(ctx context.Context, statuses ...string) (int, error)
	// WaitingPosition is 1 + the number of waiting entries ahead of id in
	// FIFO order, or 0 when id is not waiting.
	WaitingPosition(ctx context.Context, id string) (int, error)
	HasLocked(ctx context.Context, studentID string) (bool, error)

	// RemoveWaiting moves the student's waiting entry to removed. Returns
	// (nil, nil) when there is none.
	RemoveWaiting(ctx context.Context, studentID string, at time.Time) (*models.QueueEntry, error)
	// ClaimNextWaiting assigns the FIFO head to driverID if it is still
	// waiting at write time. Returns (nil, nil) on an empty queue.
	ClaimNextWaiting(ctx context.Context, driverID string, at time.Time) (*models.QueueEntry, error)
	// LockClaimed moves entries assigned to driverID into the ride.
	LockClaimed(ctx context.Context, ids []string, driverID, rideID string, at time.Time) (int64, error)
	// ReleaseClaimed undoes ClaimNextWaiting and LockClaimed for entries
	// still held by driverID (assigned without a ride, or in-transit on rideID).
	ReleaseClaimed(ctx context.Context, ids []string, driverID, rideID string) (int64, error)
	MarkArrived(ctx context.Context, id, rideID string, at time.Time) (int64, error)
	ApplyCancel(ctx context.Context, guard models.CancelGuard, update models.CancelUpdate) (int64, error)
	CompleteMany(ctx context.Context, ids []string, at time.Time) (int64, error)

	RemoveActiveByStudent(ctx context.Context, studentID string, at time.Time) ([]DetachedEntry, error)
	// RequeueMany sends locked entries back to waiting with a fresh queueAt.
	RequeueMany(ctx context.Context, ids []string, at time.Time) (int64, error)
	ClearDriver(ctx context.Context, driverID string) (int64, error)
	DeleteByStudent(ctx context.Context, studentID string) (int64, error)
}

type IRideStorage interface {
	// Create returns ErrDuplicate when the driver already owns an
	// in-transit ride.
	Create(ctx context.Context, ride *models.Ride) (*models.Ride, error)
	GetByID(ctx context.Context, id string) (*models.Ride, error)
	GetInTransitByDriver(ctx context.Context, driverID string) (*models.Ride, error)
	ListActive(ctx context.Context) ([]*models.Ride, error)
	ListActiveByDriver(ctx context.Context, driverID string) ([]*models.Ride, error)
	Delete(ctx context.Context, id string) error
	// PullMembers removes entry ids from the rides' member lists, skipping
	// rides whose status equals skipStatus (empty skips nothing).
	PullMembers(ctx context.Context, rideIDs, entryIDs []string, skipStatus string) (int64, error)
	Complete(ctx context.Context, id, driverID string, at time.Time) (int64, error)
	CancelMany(ctx context.Context, ids []string, at time.Time, clearDriver bool) (int64, error)
	FilterEmptyActive(ctx context.Context, ids []string) ([]string, error)
	DetachDriver(ctx context.Context, driverID string) (int64, error)
}

type ITripStorage interface {
	Upsert(ctx context.Context, trip *models.Trip) (*models.Trip, error)
	GetByID(ctx context.Context, id string) (*models.Trip, error)
	GetByRideID(ctx context.Context, rideID string) (*models.Trip, error)
	GetInTransitForUser(ctx context.Context, userID, role string) (*models.Trip, error)
	DeleteByRideID(ctx context.Context, rideID string) error
	SetStatusByRides(ctx context.Context, rideIDs []string, from, to string, at time.Time, clearDriver bool) (int64, error)
	// PullStudent removes studentID from the given trips, or from every
	// trip when rideIDs is nil.
	PullStudent(ctx context.Context, rideIDs []string, studentID string) (int64, error)
	DetachDriver(ctx context.Context, driverID string) (int64, error)
}

type IMessageStorage interface {
	Create(ctx context.Context, msg *models.Message) (*models.Message, error)
	ListRoom(ctx context.Context, roomType, roomID string, limit int) ([]*models.Message, error)
	MarkSenderDeleted(ctx context.Context, senderID string) (int64, error)
}

type IComplaintStorage interface {
	Create(ctx context.Context, complaint *models.Complaint) (*models.Complaint, error)
	GetByID(ctx context.Context, id string) (*models.Complaint, error)
	ListByStudent(ctx context.Context, studentID string) ([]*models.Complaint, error)
	ListAll(ctx context.Context) ([]*models.Complaint, error)
	UpdateStatus(ctx context.Context, id, status, response string, resolvedBy *string) (*models.Complaint, error)
	DeleteByStudent(ctx context.Context, studentID string) (int64, error)
	ClearResolvedBy(ctx context.Context, userID string) (int64, error)
	CountByStatus(ctx context.Context, statuses ...string) (int, error)
}

type IScheduleStorage interface {
	Create(ctx context.Context, schedule *models.Schedule) (*models.Schedule, error)
	// List returns matching schedules ordered by date, then start time.
	List(ctx context.Context, filter models.ScheduleFilter) ([]*models.Schedule, error)
	// ClearDriver unassigns driverID from every schedule naming it.
	ClearDriver(ctx context.Context, driverID string) (int64, error)
}
