package service

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campusride/config"
	"campusride/pkg/apperr"
	"campusride/pkg/logger"
	"campusride/pkg/models"
	"campusride/storage"
	"campusride/storage/memory"
)

// hookedStore lets a test interleave a concurrent writer between the reads
// and the guarded writes of a queue operation.
type hookedStore struct {
	*memory.Store
	hooks *queueHooks
}

func (s *hookedStore) Queue() storage.IQueueStorage {
	return &hookedQueue{IQueueStorage: s.Store.Queue(), hooks: s.hooks}
}

type queueHooks struct {
	claim       func(ctx context.Context, next storage.IQueueStorage, driverID string, at time.Time) (*models.QueueEntry, error)
	lock        func(ctx context.Context, next storage.IQueueStorage, ids []string, driverID, rideID string, at time.Time) (int64, error)
	applyCancel func(ctx context.Context, next storage.IQueueStorage, guard models.CancelGuard, update models.CancelUpdate) (int64, error)
}

type hookedQueue struct {
	storage.IQueueStorage
	hooks *queueHooks
}

func (q *hookedQueue) ClaimNextWaiting(ctx context.Context, driverID string, at time.Time) (*models.QueueEntry, error) {
	if q.hooks.claim != nil {
		return q.hooks.claim(ctx, q.IQueueStorage, driverID, at)
	}
	return q.IQueueStorage.ClaimNextWaiting(ctx, driverID, at)
}

func (q *hookedQueue) LockClaimed(ctx context.Context, ids []string, driverID, rideID string, at time.Time) (int64, error) {
	if q.hooks.lock != nil {
		return q.hooks.lock(ctx, q.IQueueStorage, ids, driverID, rideID, at)
	}
	return q.IQueueStorage.LockClaimed(ctx, ids, driverID, rideID, at)
}

func (q *hookedQueue) ApplyCancel(ctx context.Context, guard models.CancelGuard, update models.CancelUpdate) (int64, error) {
	if q.hooks.applyCancel != nil {
		return q.hooks.applyCancel(ctx, q.IQueueStorage, guard, update)
	}
	return q.IQueueStorage.ApplyCancel(ctx, guard, update)
}

func newHookedEnv(t *testing.T, maxSeats int, hooks *queueHooks) *testEnv {
	t.Helper()
	stg := memory.New()
	emit := &recordingEmitter{}
	cfg := config.Config{MaxRideSeats: maxSeats, JWTSecret: "test-secret", JWTTTLHours: 1}
	return &testEnv{
		ctx:  context.Background(),
		stg:  stg,
		emit: emit,
		svc:  New(cfg, &hookedStore{Store: stg, hooks: hooks}, emit, logger.NewNop()),
	}
}

func TestStartTripRollsBackWhenAClaimedEntryIsTakenAway(t *testing.T) {
	hooks := &queueHooks{}
	env := newHookedEnv(t, 3, hooks)
	students := env.students(t, "alice", "bob", "carol")
	driver := env.user(t, models.RoleDriver, "dave")
	for _, s := range students {
		env.book(t, s)
	}

	var stolen atomic.Bool
	hooks.lock = func(ctx context.Context, next storage.IQueueStorage, ids []string, driverID, rideID string, at time.Time) (int64, error) {
		if stolen.CompareAndSwap(false, true) {
			// an admin removes alice between the claim and the lock
			_, err := next.RemoveActiveByStudent(ctx, students[0].ID, at)
			require.NoError(t, err)
		}
		return next.LockClaimed(ctx, ids, driverID, rideID, at)
	}

	_, err := env.svc.Queue().StartTrip(env.ctx, driver.ID)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindConflict))
	assert.True(t, apperr.Retryable(err))
	assert.Equal(t, "Queue changed while starting trip. Please retry.", apperr.Message(err))

	for _, s := range students[1:] {
		e, err := env.stg.Queue().GetActiveByStudent(env.ctx, s.ID)
		require.NoError(t, err)
		require.NotNil(t, e)
		assert.Equal(t, models.QueueStatusWaiting, e.Status)
		assert.Nil(t, e.RideID)
		assert.Nil(t, e.DriverID)
	}

	rides, err := env.stg.Ride().ListActive(env.ctx)
	require.NoError(t, err)
	assert.Empty(t, rides)
	trip, err := env.stg.Trip().GetInTransitForUser(env.ctx, driver.ID, models.RoleDriver)
	require.NoError(t, err)
	assert.Nil(t, trip)
	assert.Empty(t, env.emit.events(models.EventTripStarted))

	res, err := env.svc.Queue().StartTrip(env.ctx, driver.ID)
	require.NoError(t, err)
	require.NotNil(t, res.Ride)
	assert.Len(t, res.Ride.Students, 2)
}

func TestStartTripRetriesAMissedClaim(t *testing.T) {
	hooks := &queueHooks{}
	env := newHookedEnv(t, 2, hooks)
	students := env.students(t, "alice", "bob")
	driver := env.user(t, models.RoleDriver, "dave")
	for _, s := range students {
		env.book(t, s)
	}

	var calls atomic.Int32
	hooks.claim = func(ctx context.Context, next storage.IQueueStorage, driverID string, at time.Time) (*models.QueueEntry, error) {
		if calls.Add(1) == 1 {
			// head row changed under the statement snapshot
			return nil, nil
		}
		return next.ClaimNextWaiting(ctx, driverID, at)
	}

	res, err := env.svc.Queue().StartTrip(env.ctx, driver.ID)
	require.NoError(t, err)
	require.NotNil(t, res.Ride)
	assert.Len(t, res.Ride.Students, 2)
	assert.EqualValues(t, 3, calls.Load())
}

func TestStartTripGivesUpAfterBoundedMisses(t *testing.T) {
	hooks := &queueHooks{}
	env := newHookedEnv(t, 3, hooks)
	env.book(t, env.user(t, models.RoleStudent, "alice"))
	driver := env.user(t, models.RoleDriver, "dave")

	var calls atomic.Int32
	hooks.claim = func(context.Context, storage.IQueueStorage, string, time.Time) (*models.QueueEntry, error) {
		calls.Add(1)
		return nil, nil
	}

	_, err := env.svc.Queue().StartTrip(env.ctx, driver.ID)
	assert.True(t, apperr.Is(err, apperr.KindEmptyQueue))
	assert.EqualValues(t, 4, calls.Load())
}

func TestCancelStudentConflictsWhenEntryChangedConcurrently(t *testing.T) {
	hooks := &queueHooks{}
	env := newHookedEnv(t, 4, hooks)
	alice := env.user(t, models.RoleStudent, "alice")
	driver := env.user(t, models.RoleDriver, "dave")
	other := env.user(t, models.RoleDriver, "erin")
	booked := env.book(t, alice)

	var raced atomic.Bool
	hooks.applyCancel = func(ctx context.Context, next storage.IQueueStorage, guard models.CancelGuard, update models.CancelUpdate) (int64, error) {
		if raced.CompareAndSwap(false, true) {
			// another driver's cancel lands first and bumps cancelCount
			n, err := next.ApplyCancel(ctx, guard, update)
			require.NoError(t, err)
			require.EqualValues(t, 1, n)
		}
		return next.ApplyCancel(ctx, guard, update)
	}

	_, err := env.svc.Queue().CancelStudentFromRide(env.ctx, driver.ID, booked.ID)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindConflict))
	assert.True(t, apperr.Retryable(err))

	entry := env.entry(t, booked.ID)
	assert.Equal(t, 1, entry.CancelCount)
	assert.Equal(t, models.QueueStatusWaiting, entry.Status)
	assert.Empty(t, env.emit.events(models.EventStudentRequeued))

	res, err := env.svc.Queue().CancelStudentFromRide(env.ctx, other.ID, booked.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, res.CancelCount)
	assert.Equal(t, models.QueueStatusCancelled, res.Status)
}
