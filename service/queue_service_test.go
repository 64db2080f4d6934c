package service

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campusride/pkg/apperr"
	"campusride/pkg/models"
	"campusride/pkg/socket"
)

func TestBookRideOnlyFirstActiveBookingSucceeds(t *testing.T) {
	env := newTestEnv(t, 4)
	student := env.user(t, models.RoleStudent, "alice")

	ride := env.book(t, student)
	require.NotNil(t, ride.QueuePosition)
	assert.Equal(t, 1, *ride.QueuePosition)
	assert.Equal(t, models.QueueStatusWaiting, ride.Status)
	assert.Equal(t, 3, ride.EstimatedWaitMinutes)

	for range 3 {
		_, err := env.svc.Queue().BookRide(env.ctx, student.ID, "Gate", "Library")
		require.Error(t, err)
		assert.True(t, apperr.Is(err, apperr.KindAlreadyBooked))
		assert.Equal(t, "You already have an active booking", apperr.Message(err))
	}

	_, err := env.svc.Queue().LeaveQueue(env.ctx, student.ID)
	require.NoError(t, err)
	env.book(t, student)

	assert.NotEmpty(t, env.emit.ops("joinQueue"))
	assert.NotEmpty(t, env.emit.events(models.EventQueueUpdated))
}

func TestBookRideValidatesInput(t *testing.T) {
	env := newTestEnv(t, 4)
	student := env.user(t, models.RoleStudent, "alice")

	_, err := env.svc.Queue().BookRide(env.ctx, student.ID, "  ", "Library")
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestQueuePositionIsFIFORank(t *testing.T) {
	env := newTestEnv(t, 4)
	s := env.students(t, "a", "b", "c")
	for _, st := range s {
		env.book(t, st)
	}

	for i, st := range s {
		cur, err := env.svc.Queue().GetStudentCurrentRide(env.ctx, st.ID)
		require.NoError(t, err)
		require.NotNil(t, cur.QueuePosition)
		assert.Equal(t, i+1, *cur.QueuePosition)
		assert.Equal(t, (i+1)*3, cur.EstimatedWaitMinutes)
	}

	_, err := env.svc.Queue().LeaveQueue(env.ctx, s[0].ID)
	require.NoError(t, err)

	cur, err := env.svc.Queue().GetStudentCurrentRide(env.ctx, s[2].ID)
	require.NoError(t, err)
	assert.Equal(t, 2, *cur.QueuePosition)

	none, err := env.svc.Queue().GetStudentCurrentRide(env.ctx, s[0].ID)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestEstimateWaitMinutes(t *testing.T) {
	assert.Equal(t, 3, EstimateWaitMinutes(0, models.QueueStatusWaiting))
	assert.Equal(t, 12, EstimateWaitMinutes(4, models.QueueStatusWaiting))
	assert.Equal(t, 3, EstimateWaitMinutes(2, models.QueueStatusAssigned))
	assert.Equal(t, 1, EstimateWaitMinutes(1, models.QueueStatusPickup))
	assert.Equal(t, 0, EstimateWaitMinutes(1, models.QueueStatusInTransit))
}

func TestLeaveQueue(t *testing.T) {
	env := newTestEnv(t, 4)
	student := env.user(t, models.RoleStudent, "alice")
	driver := env.user(t, models.RoleDriver, "dave")

	_, err := env.svc.Queue().LeaveQueue(env.ctx, student.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	booked := env.book(t, student)
	left, err := env.svc.Queue().LeaveQueue(env.ctx, student.ID)
	require.NoError(t, err)
	assert.Equal(t, booked.ID, left.QueueEntryID)
	assert.Equal(t, models.QueueStatusRemoved, left.Status)

	evs := env.emit.events(models.EventQueueLeft)
	require.Len(t, evs, 1)
	assert.Equal(t, []string{student.ID}, evs[0].Targets)

	env.book(t, student)
	_, err = env.svc.Queue().StartTrip(env.ctx, driver.ID)
	require.NoError(t, err)

	_, err = env.svc.Queue().LeaveQueue(env.ctx, student.ID)
	assert.True(t, apperr.Is(err, apperr.KindLocked))
	assert.Equal(t, "Cannot leave queue after trip is locked", apperr.Message(err))
}

func TestStartTripClaimsHeadOfQueueUpToMaxSeats(t *testing.T) {
	env := newTestEnv(t, 4)
	driver := env.user(t, models.RoleDriver, "dave")
	s := env.students(t, "a", "b", "c", "d", "e")
	var entryIDs []string
	for _, st := range s {
		entryIDs = append(entryIDs, env.book(t, st).ID)
	}
	env.emit.reset()

	cur, err := env.svc.Queue().StartTrip(env.ctx, driver.ID)
	require.NoError(t, err)
	require.NotNil(t, cur.Ride)
	assert.Equal(t, 4, cur.Ride.SeatsFilled)
	assert.Equal(t, models.RideStatusInTransit, cur.Ride.Status)
	assert.Equal(t, 1, cur.WaitingCount)

	var members []string
	for _, st := range cur.Ride.Students {
		members = append(members, st.QueueEntryID)
		assert.Equal(t, models.QueueStatusInTransit, st.Status)
	}
	assert.Equal(t, entryIDs[:4], members)

	last, err := env.svc.Queue().GetStudentCurrentRide(env.ctx, s[4].ID)
	require.NoError(t, err)
	assert.Equal(t, 1, *last.QueuePosition)

	trip, err := env.stg.Trip().GetByRideID(env.ctx, cur.Ride.ID)
	require.NoError(t, err)
	require.NotNil(t, trip)
	assert.Equal(t, models.TripStatusInTransit, trip.Status)
	assert.ElementsMatch(t, []string{s[0].ID, s[1].ID, s[2].ID, s[3].ID}, trip.Students)
	assert.Equal(t, []string{"Gate"}, trip.PickupPoints)

	joins := env.emit.ops("joinTrip:" + cur.Ride.ID)
	require.Len(t, joins, 1)
	assert.Equal(t, driver.ID, joins[0].Targets[0])
	assert.Len(t, joins[0].Targets, 5)

	started := env.emit.events(models.EventTripStarted)
	require.Len(t, started, 1)
	assert.ElementsMatch(t, []string{socket.UserRoom(driver.ID), socket.RoleRoom(models.RoleAdmin)}, started[0].Targets)
	assert.Len(t, env.emit.events(models.EventTripAssigned), 4)
	assert.Len(t, env.emit.events(models.EventRideFull), 1)

	updated := env.emit.events(models.EventRideUpdated)
	require.NotEmpty(t, updated)
	assert.Contains(t, updated[0].Targets, socket.TripRoom(cur.Ride.ID))
	assert.Contains(t, updated[0].Targets, socket.UserRoom(s[0].ID))

	_, err = env.svc.Queue().StartTrip(env.ctx, driver.ID)
	assert.True(t, apperr.Is(err, apperr.KindConflict))
	assert.Equal(t, "You already have an active trip", apperr.Message(err))
}

func TestStartTripTakesWhateverIsWaiting(t *testing.T) {
	env := newTestEnv(t, 4)
	driver := env.user(t, models.RoleDriver, "dave")
	a, b := env.user(t, models.RoleStudent, "a"), env.user(t, models.RoleStudent, "b")
	ea, eb := env.book(t, a), env.book(t, b)

	cur, err := env.svc.Queue().StartTrip(env.ctx, driver.ID)
	require.NoError(t, err)
	require.Len(t, cur.Ride.Students, 2)
	assert.Equal(t, ea.ID, cur.Ride.Students[0].QueueEntryID)
	assert.Equal(t, eb.ID, cur.Ride.Students[1].QueueEntryID)
	assert.Equal(t, 4, cur.Ride.MaxSeats)
	assert.Empty(t, env.emit.events(models.EventRideFull))

	cur2, err := env.svc.Queue().GetStudentCurrentRide(env.ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, models.QueueStatusInTransit, cur2.Status)
	assert.Equal(t, cur.Ride.ID, models.Deref(cur2.RideID))
	assert.Equal(t, 1, *cur2.QueuePosition)
	assert.Equal(t, "dave", cur2.Driver.Name)
	assert.Equal(t, 0, cur2.EstimatedWaitMinutes)
}

func TestStartTripEmptyQueue(t *testing.T) {
	env := newTestEnv(t, 4)
	driver := env.user(t, models.RoleDriver, "dave")

	_, err := env.svc.Queue().StartTrip(env.ctx, driver.ID)
	assert.True(t, apperr.Is(err, apperr.KindEmptyQueue))
	assert.Equal(t, "No students waiting in queue", apperr.Message(err))
}

func TestConcurrentStartTripsPartitionTheQueue(t *testing.T) {
	env := newTestEnv(t, 4)
	const students, drivers = 14, 5
	for i := range students {
		env.book(t, env.user(t, models.RoleStudent, "s"+string(rune('a'+i))))
	}
	var driverIDs []string
	for i := range drivers {
		driverIDs = append(driverIDs, env.user(t, models.RoleDriver, "d"+string(rune('a'+i))).ID)
	}

	var wg sync.WaitGroup
	results := make([]*DriverRide, drivers)
	errs := make([]error, drivers)
	for i, id := range driverIDs {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			results[i], errs[i] = env.svc.Queue().StartTrip(env.ctx, id)
		}(i, id)
	}
	wg.Wait()

	seen := map[string]string{}
	claimed := 0
	for i, res := range results {
		if errs[i] != nil {
			assert.True(t, apperr.Is(errs[i], apperr.KindEmptyQueue), errs[i])
			continue
		}
		ride, err := env.stg.Ride().GetByID(env.ctx, res.Ride.ID)
		require.NoError(t, err)
		assert.LessOrEqual(t, len(ride.Students), 4)
		for _, entryID := range ride.Students {
			other, dup := seen[entryID]
			assert.False(t, dup, "entry %s claimed by rides %s and %s", entryID, other, ride.ID)
			seen[entryID] = ride.ID

			e := env.entry(t, entryID)
			assert.Equal(t, ride.ID, models.Deref(e.RideID))
			assert.Equal(t, models.QueueStatusInTransit, e.Status)
		}
		claimed += len(ride.Students)
	}
	assert.Equal(t, students, claimed)

	waiting, err := env.stg.Queue().CountByStatus(env.ctx, models.QueueStatusWaiting)
	require.NoError(t, err)
	assert.Zero(t, waiting)
}

func TestCancelStudentTwoStrikePolicy(t *testing.T) {
	env := newTestEnv(t, 4)
	driver := env.user(t, models.RoleDriver, "dave")
	s := env.students(t, "a", "b")
	first := env.book(t, s[0])
	env.book(t, s[1])
	before := env.entry(t, first.ID)

	res, err := env.svc.Queue().CancelStudentFromRide(env.ctx, driver.ID, first.ID)
	require.NoError(t, err)
	assert.Equal(t, models.QueueStatusWaiting, res.Status)
	assert.Equal(t, 1, res.CancelCount)

	after := env.entry(t, first.ID)
	assert.Equal(t, models.QueueStatusWaiting, after.Status)
	assert.Equal(t, 1, after.CancelCount)
	assert.Nil(t, after.RideID)
	assert.True(t, after.QueueAt.After(before.QueueAt))

	cur, err := env.svc.Queue().GetStudentCurrentRide(env.ctx, s[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 2, *cur.QueuePosition)

	assert.Len(t, env.emit.events(models.EventStudentRequeued), 1)
	assert.Len(t, env.emit.events(models.EventQueueReordered), 1)
	assert.Empty(t, env.emit.events(models.EventStudentRemoved))

	res, err = env.svc.Queue().CancelStudentFromRide(env.ctx, driver.ID, first.ID)
	require.NoError(t, err)
	assert.Equal(t, models.QueueStatusCancelled, res.Status)
	assert.Equal(t, 2, res.CancelCount)

	final := env.entry(t, first.ID)
	assert.Equal(t, models.QueueStatusCancelled, final.Status)
	assert.Equal(t, 2, final.CancelCount)
	assert.NotNil(t, final.CompletedAt)

	removed := env.emit.events(models.EventStudentRemoved)
	require.Len(t, removed, 1)
	ev := removed[0].Payload.(CancelEvent)
	assert.Equal(t, s[0].ID, ev.StudentID)
	assert.Equal(t, 2, ev.CancelCount)

	_, err = env.svc.Queue().CancelStudentFromRide(env.ctx, driver.ID, first.ID)
	assert.True(t, apperr.Is(err, apperr.KindInvalidState))

	_, err = env.svc.Queue().BookRide(env.ctx, s[0].ID, "Gate", "Library")
	assert.NoError(t, err)
}

func TestCancelStudentGuards(t *testing.T) {
	env := newTestEnv(t, 4)
	driver := env.user(t, models.RoleDriver, "dave")
	other := env.user(t, models.RoleDriver, "olga")
	s := env.students(t, "a", "b")

	_, err := env.svc.Queue().CancelStudentFromRide(env.ctx, driver.ID, "missing")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	inRide := env.book(t, s[0])
	_, err = env.svc.Queue().StartTrip(env.ctx, driver.ID)
	require.NoError(t, err)
	_, err = env.svc.Queue().CancelStudentFromRide(env.ctx, driver.ID, inRide.ID)
	assert.True(t, apperr.Is(err, apperr.KindInvalidState))
	assert.Equal(t, "Only waiting or assigned students can be cancelled", apperr.Message(err))

	claimed := env.book(t, s[1])
	_, err = env.stg.Queue().ClaimNextWaiting(env.ctx, other.ID, now())
	require.NoError(t, err)
	_, err = env.svc.Queue().CancelStudentFromRide(env.ctx, driver.ID, claimed.ID)
	assert.True(t, apperr.Is(err, apperr.KindForbidden))
}

func TestMarkStudentArrivedGuards(t *testing.T) {
	env := newTestEnv(t, 4)
	driver := env.user(t, models.RoleDriver, "dave")
	other := env.user(t, models.RoleDriver, "olga")
	s := env.students(t, "a", "b")

	waiting := env.book(t, s[0])
	_, err := env.svc.Queue().MarkStudentArrived(env.ctx, driver.ID, waiting.ID)
	assert.True(t, apperr.Is(err, apperr.KindInvalidState))
	assert.Equal(t, "Queue entry is not assigned to a ride", apperr.Message(err))

	_, err = env.svc.Queue().MarkStudentArrived(env.ctx, driver.ID, "missing")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	_, err = env.svc.Queue().StartTrip(env.ctx, driver.ID)
	require.NoError(t, err)

	_, err = env.svc.Queue().MarkStudentArrived(env.ctx, other.ID, waiting.ID)
	assert.True(t, apperr.Is(err, apperr.KindForbidden))

	_, err = env.svc.Queue().MarkStudentArrived(env.ctx, driver.ID, waiting.ID)
	assert.True(t, apperr.Is(err, apperr.KindInvalidState))
	assert.Equal(t, "Only assigned students can be marked arrived", apperr.Message(err))
}

func TestCompleteTripCompletesRideTripAndMembers(t *testing.T) {
	env := newTestEnv(t, 4)
	driver := env.user(t, models.RoleDriver, "dave")
	s := env.students(t, "a", "b", "c")
	for _, st := range s {
		env.book(t, st)
	}
	started, err := env.svc.Queue().StartTrip(env.ctx, driver.ID)
	require.NoError(t, err)
	rideID := started.Ride.ID
	env.emit.reset()

	res, err := env.svc.Queue().CompleteTrip(env.ctx, driver.ID)
	require.NoError(t, err)
	assert.Equal(t, rideID, res.RideID)
	assert.Equal(t, models.RideStatusCompleted, res.Status)

	ride, err := env.stg.Ride().GetByID(env.ctx, rideID)
	require.NoError(t, err)
	assert.Equal(t, models.RideStatusCompleted, ride.Status)
	assert.NotNil(t, ride.CompletedAt)

	trip, err := env.stg.Trip().GetByRideID(env.ctx, rideID)
	require.NoError(t, err)
	assert.Equal(t, models.TripStatusCompleted, trip.Status)

	require.Len(t, ride.Students, 3)
	for _, id := range ride.Students {
		assert.Equal(t, models.QueueStatusCompleted, env.entry(t, id).Status)
	}

	leaves := env.emit.ops("leaveTrip:" + rideID)
	require.Len(t, leaves, 1)
	assert.Len(t, leaves[0].Targets, 4)
	assert.Len(t, env.emit.events(models.EventTripCompleted), 4)

	_, err = env.svc.Queue().CompleteTrip(env.ctx, driver.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	history, err := env.svc.Queue().GetStudentRideHistory(env.ctx, s[0].ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, models.QueueStatusCompleted, history[0].Status)
	assert.Equal(t, "dave", history[0].Driver)

	env.book(t, s[0])
}

func TestStudentRideHistoryLabels(t *testing.T) {
	env := newTestEnv(t, 4)
	student := env.user(t, models.RoleStudent, "alice")

	env.book(t, student)
	_, err := env.svc.Queue().LeaveQueue(env.ctx, student.ID)
	require.NoError(t, err)

	history, err := env.svc.Queue().GetStudentRideHistory(env.ctx, student.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, models.QueueStatusCancelled, history[0].Status)
	assert.Equal(t, "Not assigned", history[0].Driver)
	assert.Equal(t, "Gate", history[0].From)
	assert.Equal(t, "Library", history[0].To)
}

func TestDriverCurrentRideQueuePreview(t *testing.T) {
	env := newTestEnv(t, 2)
	driver := env.user(t, models.RoleDriver, "dave")

	empty, err := env.svc.Queue().GetDriverCurrentRide(env.ctx, driver.ID)
	require.NoError(t, err)
	assert.Nil(t, empty.Ride)
	assert.Zero(t, empty.WaitingCount)

	for _, st := range env.students(t, "a", "b", "c") {
		env.book(t, st)
	}

	preview, err := env.svc.Queue().GetDriverCurrentRide(env.ctx, driver.ID)
	require.NoError(t, err)
	require.NotNil(t, preview.Ride)
	assert.Equal(t, PreviewRideID, preview.Ride.ID)
	assert.Equal(t, models.QueueStatusWaiting, preview.Ride.Status)
	assert.Len(t, preview.Ride.Students, 2)
	assert.Equal(t, "a", preview.Ride.Students[0].Name)
	assert.Equal(t, 3, preview.WaitingCount)
}

func TestAdminViews(t *testing.T) {
	env := newTestEnv(t, 2)
	driver := env.user(t, models.RoleDriver, "dave")
	s := env.students(t, "a", "b", "c")
	for _, st := range s {
		env.book(t, st)
	}
	_, err := env.svc.Queue().StartTrip(env.ctx, driver.ID)
	require.NoError(t, err)
	_, err = env.svc.Complaint().Create(env.ctx, s[0].ID, "Driver was late", "")
	require.NoError(t, err)

	overview, err := env.svc.Queue().GetAdminQueueOverview(env.ctx)
	require.NoError(t, err)
	require.Len(t, overview.WaitingQueue, 1)
	assert.Equal(t, "c", overview.WaitingQueue[0].Student.Name)
	assert.Equal(t, 1, overview.WaitingQueue[0].Position)
	require.Len(t, overview.ActiveRides, 1)
	assert.Equal(t, "dave", overview.ActiveRides[0].Driver.Name)

	stats, err := env.svc.Queue().GetAdminStats(env.ctx)
	require.NoError(t, err)
	assert.Equal(t, AdminStats{Students: 3, Drivers: 1, ActiveQueue: 3, Complaints: 1}, *stats)
}

func TestProcessQueueBroadcastsSnapshotToAllRoles(t *testing.T) {
	env := newTestEnv(t, 4)
	for _, st := range env.students(t, "a", "b") {
		env.book(t, st)
	}
	env.emit.reset()

	require.NoError(t, env.svc.Queue().ProcessQueue(env.ctx))

	updated := env.emit.events(models.EventQueueUpdated)
	require.Len(t, updated, 1)
	assert.ElementsMatch(t, []string{
		socket.RoleRoom(models.RoleStudent),
		socket.RoleRoom(models.RoleDriver),
		socket.RoleRoom(models.RoleAdmin),
	}, updated[0].Targets)

	snap := updated[0].Payload.(QueueSnapshot)
	assert.Equal(t, 2, snap.TotalWaiting)
	assert.Equal(t, "a", snap.Waiting[0].StudentName)
	assert.Equal(t, 2, snap.Waiting[1].Position)

	count := env.emit.events(models.EventQueueCount)
	require.Len(t, count, 1)
	assert.Equal(t, 2, count[0].Payload.(QueueCount).TotalWaiting)
}

func TestEmitRideStateIgnoresUnknownRide(t *testing.T) {
	env := newTestEnv(t, 4)
	assert.NoError(t, env.svc.Queue().EmitRideState(env.ctx, "nope"))
	assert.Empty(t, env.emit.events(models.EventRideUpdated))
}
