package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campusride/pkg/apperr"
	"campusride/pkg/models"
)

func TestRemoveDriverRequeuesRidersAndCancelsRide(t *testing.T) {
	env := newTestEnv(t, 4)
	admin := env.user(t, models.RoleAdmin, "root")
	driver := env.user(t, models.RoleDriver, "dave")
	s := env.students(t, "a", "b")
	for _, st := range s {
		env.book(t, st)
	}
	started, err := env.svc.Queue().StartTrip(env.ctx, driver.ID)
	require.NoError(t, err)
	rideID := started.Ride.ID
	_, err = env.svc.Chat().SendMessageToRoom(env.ctx, driver.ID, models.RoomTypeTrip, rideID, "on my way")
	require.NoError(t, err)
	env.emit.reset()

	res, err := env.svc.Cleanup().RemoveUser(env.ctx, admin.ID, driver, true)
	require.NoError(t, err)
	assert.Equal(t, ActionDeleted, res.Action)
	assert.Equal(t, "dave@campus.test", res.Email)

	for _, st := range s {
		cur, err := env.svc.Queue().GetStudentCurrentRide(env.ctx, st.ID)
		require.NoError(t, err)
		require.NotNil(t, cur)
		assert.Equal(t, models.QueueStatusWaiting, cur.Status)
		assert.Nil(t, cur.RideID)
		assert.Nil(t, cur.Driver)
	}

	ride, err := env.stg.Ride().GetByID(env.ctx, rideID)
	require.NoError(t, err)
	assert.Equal(t, models.RideStatusCancelled, ride.Status)
	assert.Nil(t, ride.DriverID)

	trip, err := env.stg.Trip().GetByRideID(env.ctx, rideID)
	require.NoError(t, err)
	assert.Equal(t, models.TripStatusCancelled, trip.Status)
	assert.Nil(t, trip.DriverID)

	gone, err := env.stg.User().GetByID(env.ctx, driver.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)

	msgs, err := env.stg.Message().ListRoom(env.ctx, models.RoomTypeTrip, rideID, 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.True(t, msgs[0].SenderDeleted)

	snapshots := env.emit.events(models.EventQueueUpdated)
	require.NotEmpty(t, snapshots)
	assert.Equal(t, 2, snapshots[len(snapshots)-1].Payload.(QueueSnapshot).TotalWaiting)

	leaves := env.emit.ops("leaveTrip:" + rideID)
	require.Len(t, leaves, 1)
	assert.ElementsMatch(t, []string{s[0].ID, s[1].ID}, leaves[0].Targets)
	require.Len(t, env.emit.ops("joinQueue"), 1)
	disconnects := env.emit.ops("disconnect")
	require.Len(t, disconnects, 1)
	assert.Equal(t, []string{driver.ID}, disconnects[0].Targets)
	assert.NotEmpty(t, env.emit.events(models.EventRideUpdated))

	again, err := env.svc.Queue().StartTrip(env.ctx, env.user(t, models.RoleDriver, "olga").ID)
	require.NoError(t, err)
	assert.Len(t, again.Ride.Students, 2)
}

func TestDeactivateDriverKeepsAccount(t *testing.T) {
	env := newTestEnv(t, 4)
	admin := env.user(t, models.RoleAdmin, "root")
	driver := env.user(t, models.RoleDriver, "dave")
	env.book(t, env.user(t, models.RoleStudent, "a"))
	_, err := env.svc.Queue().StartTrip(env.ctx, driver.ID)
	require.NoError(t, err)

	res, err := env.svc.Cleanup().RemoveUser(env.ctx, admin.ID, driver, false)
	require.NoError(t, err)
	assert.Equal(t, ActionDeactivated, res.Action)

	stored, err := env.stg.User().GetByID(env.ctx, driver.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.False(t, stored.CanParticipate())
	assert.Equal(t, admin.ID, models.Deref(stored.DeactivatedBy))

	none, err := env.stg.Ride().GetInTransitByDriver(env.ctx, driver.ID)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestRemoveStudentAloneCancelsRide(t *testing.T) {
	env := newTestEnv(t, 4)
	admin := env.user(t, models.RoleAdmin, "root")
	driver := env.user(t, models.RoleDriver, "dave")
	student := env.user(t, models.RoleStudent, "a")
	env.book(t, student)
	started, err := env.svc.Queue().StartTrip(env.ctx, driver.ID)
	require.NoError(t, err)
	rideID := started.Ride.ID

	_, err = env.svc.Cleanup().RemoveUser(env.ctx, admin.ID, student, false)
	require.NoError(t, err)

	ride, err := env.stg.Ride().GetByID(env.ctx, rideID)
	require.NoError(t, err)
	assert.Equal(t, models.RideStatusCancelled, ride.Status)
	assert.Empty(t, ride.Students)

	trip, err := env.stg.Trip().GetByRideID(env.ctx, rideID)
	require.NoError(t, err)
	assert.Equal(t, models.TripStatusCancelled, trip.Status)

	history, err := env.svc.Queue().GetStudentRideHistory(env.ctx, student.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, models.QueueStatusCancelled, history[0].Status)

	cur, err := env.svc.Queue().GetDriverCurrentRide(env.ctx, driver.ID)
	require.NoError(t, err)
	assert.Nil(t, cur.Ride)
}

func TestRemoveStudentFromSharedRideKeepsRide(t *testing.T) {
	env := newTestEnv(t, 4)
	admin := env.user(t, models.RoleAdmin, "root")
	driver := env.user(t, models.RoleDriver, "dave")
	s := env.students(t, "a", "b")
	for _, st := range s {
		env.book(t, st)
	}
	started, err := env.svc.Queue().StartTrip(env.ctx, driver.ID)
	require.NoError(t, err)
	rideID := started.Ride.ID
	env.emit.reset()

	_, err = env.svc.Cleanup().RemoveUser(env.ctx, admin.ID, s[0], false)
	require.NoError(t, err)

	ride, err := env.stg.Ride().GetByID(env.ctx, rideID)
	require.NoError(t, err)
	assert.Equal(t, models.RideStatusInTransit, ride.Status)
	assert.Len(t, ride.Students, 1)

	trip, err := env.stg.Trip().GetByRideID(env.ctx, rideID)
	require.NoError(t, err)
	assert.Equal(t, models.TripStatusInTransit, trip.Status)
	assert.Equal(t, []string{s[1].ID}, trip.Students)

	updated := env.emit.events(models.EventRideUpdated)
	require.NotEmpty(t, updated)
	assert.Len(t, updated[0].Payload.(RidePayload).Ride.Students, 1)

	_, _, err = env.svc.Chat().RequireTripChatAccess(env.ctx, s[0].ID, rideID)
	assert.True(t, apperr.Is(err, apperr.KindForbidden))
}

func TestPermanentStudentDeletionPurgesReferences(t *testing.T) {
	env := newTestEnv(t, 4)
	admin := env.user(t, models.RoleAdmin, "root")
	student := env.user(t, models.RoleStudent, "a")
	env.book(t, student)
	_, err := env.svc.Chat().SendMessageToRoom(env.ctx, student.ID, models.RoomTypeQueue, "", "anyone here?")
	require.NoError(t, err)
	_, err = env.svc.Complaint().Create(env.ctx, student.ID, "Too slow", "")
	require.NoError(t, err)

	_, err = env.svc.Cleanup().RemoveUser(env.ctx, admin.ID, student, true)
	require.NoError(t, err)

	msgs, err := env.stg.Message().ListRoom(env.ctx, models.RoomTypeQueue, models.QueueRoomID, 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.True(t, msgs[0].SenderDeleted)

	complaints, err := env.stg.Complaint().ListAll(env.ctx)
	require.NoError(t, err)
	assert.Empty(t, complaints)

	history, err := env.stg.Queue().ListHistory(env.ctx, student.ID)
	require.NoError(t, err)
	assert.Empty(t, history)

	waiting, err := env.stg.Queue().CountByStatus(env.ctx, models.QueueStatusWaiting)
	require.NoError(t, err)
	assert.Zero(t, waiting)
}

func TestRemoveUserGuards(t *testing.T) {
	env := newTestEnv(t, 4)
	admin := env.user(t, models.RoleAdmin, "root")

	_, err := env.svc.Cleanup().RemoveUser(env.ctx, admin.ID, admin, false)
	assert.True(t, apperr.Is(err, apperr.KindInvalidState))
	assert.Equal(t, "You cannot remove your own account", apperr.Message(err))

	other := env.user(t, models.RoleAdmin, "second")
	_, err = env.svc.Cleanup().RemoveUser(env.ctx, other.ID, admin, false)
	require.NoError(t, err)

	_, err = env.svc.Cleanup().RemoveUser(env.ctx, admin.ID, other, false)
	assert.True(t, apperr.Is(err, apperr.KindInvalidState))
	assert.Equal(t, "Cannot remove the last active admin", apperr.Message(err))

	_, err = env.svc.Cleanup().RemoveUser(env.ctx, admin.ID, nil, false)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}
