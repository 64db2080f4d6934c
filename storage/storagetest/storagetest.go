// Package storagetest is a behavioural suite every storage.IStorage
// implementation must pass.
package storagetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campusride/pkg/models"
	"campusride/storage"
)

// Opener returns an empty store for one subtest.
type Opener func(t *testing.T) storage.IStorage

func Run(t *testing.T, open Opener) {
	tests := []struct {
		name string
		fn   func(t *testing.T, stg storage.IStorage)
	}{
		{"Users", testUsers},
		{"OneActiveBooking", testOneActiveBooking},
		{"FIFOClaim", testFIFOClaim},
		{"LockAndRelease", testLockAndRelease},
		{"ApplyCancelGuard", testApplyCancelGuard},
		{"RideLifecycle", testRideLifecycle},
		{"Trips", testTrips},
		{"Messages", testMessages},
		{"Complaints", testComplaints},
		{"Schedules", testSchedules},
		{"InTxRollback", testInTxRollback},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, open(t))
		})
	}
}

var errRollback = errors.New("rollback")

func ts() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

func newUser(t *testing.T, stg storage.IStorage, role, name string) *models.User {
	t.Helper()
	u, err := stg.User().Create(context.Background(), &models.User{
		Name:     name,
		Email:    name + "-" + uuid.NewString()[:8] + "@campus.test",
		Password: "hash",
		Role:     role,
		Status:   models.UserStatusActive,
		IsActive: true,
	})
	require.NoError(t, err)
	return u
}

func book(t *testing.T, stg storage.IStorage, studentID string, at time.Time) *models.QueueEntry {
	t.Helper()
	e, err := stg.Queue().CreateIfNoActive(context.Background(), &models.QueueEntry{
		StudentID:   studentID,
		Pickup:      "Gate",
		Destination: "Library",
		QueueAt:     at,
	})
	require.NoError(t, err)
	require.Equal(t, models.QueueStatusWaiting, e.Status)
	return e
}

func testUsers(t *testing.T, stg storage.IStorage) {
	ctx := context.Background()

	u, err := stg.User().Create(ctx, &models.User{
		Name: "Alice", Email: "Alice@Campus.test", Password: "hash",
		Role: models.RoleAdmin, Status: models.UserStatusActive, IsActive: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "alice@campus.test", u.Email)

	_, err = stg.User().Create(ctx, &models.User{
		Name: "Other", Email: "alice@campus.test", Password: "hash",
		Role: models.RoleStudent, Status: models.UserStatusActive, IsActive: true,
	})
	assert.ErrorIs(t, err, storage.ErrDuplicate)

	byEmail, err := stg.User().GetByEmail(ctx, "ALICE@campus.test")
	require.NoError(t, err)
	require.NotNil(t, byEmail)
	assert.Equal(t, u.ID, byEmail.ID)

	missing, err := stg.User().GetByID(ctx, uuid.NewString())
	require.NoError(t, err)
	assert.Nil(t, missing)

	admins, err := stg.User().CountActiveAdmins(ctx, u.ID)
	require.NoError(t, err)
	assert.Zero(t, admins)
	admins, err = stg.User().CountActiveAdmins(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 1, admins)

	require.NoError(t, stg.User().Deactivate(ctx, u.ID, "someone", ts()))
	got, err := stg.User().GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.False(t, got.CanParticipate())
	assert.Equal(t, "someone", models.Deref(got.DeactivatedBy))

	require.NoError(t, stg.User().Reactivate(ctx, u.ID))
	got, err = stg.User().GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, got.CanParticipate())

	require.NoError(t, stg.User().Delete(ctx, u.ID))
	got, err = stg.User().GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func testOneActiveBooking(t *testing.T, stg storage.IStorage) {
	ctx := context.Background()
	student := newUser(t, stg, models.RoleStudent, "alice")

	first := book(t, stg, student.ID, ts())
	_, err := stg.Queue().CreateIfNoActive(ctx, &models.QueueEntry{
		StudentID: student.ID, Pickup: "Gate", Destination: "Dorm", QueueAt: ts(),
	})
	assert.ErrorIs(t, err, storage.ErrDuplicate)

	active, err := stg.Queue().GetActiveByStudent(ctx, student.ID)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, first.ID, active.ID)

	removed, err := stg.Queue().RemoveWaiting(ctx, student.ID, ts())
	require.NoError(t, err)
	require.NotNil(t, removed)
	assert.Equal(t, models.QueueStatusRemoved, removed.Status)

	none, err := stg.Queue().RemoveWaiting(ctx, student.ID, ts())
	require.NoError(t, err)
	assert.Nil(t, none)

	book(t, stg, student.ID, ts())

	history, err := stg.Queue().ListHistory(ctx, student.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, first.ID, history[0].ID)
}

func testFIFOClaim(t *testing.T, stg storage.IStorage) {
	ctx := context.Background()
	base := ts()

	var entries []*models.QueueEntry
	for i, name := range []string{"a", "b", "c"} {
		s := newUser(t, stg, models.RoleStudent, name)
		entries = append(entries, book(t, stg, s.ID, base.Add(time.Duration(i)*time.Second)))
	}

	pos, err := stg.Queue().WaitingPosition(ctx, entries[2].ID)
	require.NoError(t, err)
	assert.Equal(t, 3, pos)

	head, err := stg.Queue().ListWaiting(ctx, 2)
	require.NoError(t, err)
	require.Len(t, head, 2)
	assert.Equal(t, entries[0].ID, head[0].ID)
	assert.Equal(t, entries[1].ID, head[1].ID)

	driver := newUser(t, stg, models.RoleDriver, "dave")
	for _, want := range entries {
		got, err := stg.Queue().ClaimNextWaiting(ctx, driver.ID, ts())
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, want.ID, got.ID)
		assert.Equal(t, models.QueueStatusAssigned, got.Status)
		assert.Equal(t, driver.ID, models.Deref(got.DriverID))
	}

	empty, err := stg.Queue().ClaimNextWaiting(ctx, driver.ID, ts())
	require.NoError(t, err)
	assert.Nil(t, empty)

	pos, err = stg.Queue().WaitingPosition(ctx, entries[2].ID)
	require.NoError(t, err)
	assert.Zero(t, pos)

	locked, err := stg.Queue().HasLocked(ctx, entries[0].StudentID)
	require.NoError(t, err)
	assert.True(t, locked)
}

func testLockAndRelease(t *testing.T, stg storage.IStorage) {
	ctx := context.Background()
	driver := newUser(t, stg, models.RoleDriver, "dave")
	other := newUser(t, stg, models.RoleDriver, "olga")
	a := newUser(t, stg, models.RoleStudent, "a")
	b := newUser(t, stg, models.RoleStudent, "b")
	ea := book(t, stg, a.ID, ts())
	eb := book(t, stg, b.ID, ts().Add(time.Second))

	_, err := stg.Queue().ClaimNextWaiting(ctx, driver.ID, ts())
	require.NoError(t, err)
	_, err = stg.Queue().ClaimNextWaiting(ctx, other.ID, ts())
	require.NoError(t, err)

	ride, err := stg.Ride().Create(ctx, &models.Ride{
		DriverID:  models.StringPtr(driver.ID),
		Students:  []string{ea.ID, eb.ID},
		Status:    models.RideStatusInTransit,
		MaxSeats:  4,
		StartedAt: models.TimePtr(ts()),
	})
	require.NoError(t, err)

	n, err := stg.Queue().LockClaimed(ctx, []string{ea.ID, eb.ID}, driver.ID, ride.ID, ts())
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	arrived, err := stg.Queue().MarkArrived(ctx, ea.ID, ride.ID, ts())
	require.NoError(t, err)
	assert.Zero(t, arrived)

	n, err = stg.Queue().ReleaseClaimed(ctx, []string{ea.ID, eb.ID}, driver.ID, ride.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	back, err := stg.Queue().GetByID(ctx, ea.ID)
	require.NoError(t, err)
	assert.Equal(t, models.QueueStatusWaiting, back.Status)
	assert.Nil(t, back.RideID)
	assert.Nil(t, back.DriverID)

	still, err := stg.Queue().GetByID(ctx, eb.ID)
	require.NoError(t, err)
	assert.Equal(t, models.QueueStatusAssigned, still.Status)
	assert.Equal(t, other.ID, models.Deref(still.DriverID))
}

func testApplyCancelGuard(t *testing.T, stg storage.IStorage) {
	ctx := context.Background()
	student := newUser(t, stg, models.RoleStudent, "a")
	e := book(t, stg, student.ID, ts())

	guard := models.CancelGuard{ID: e.ID, Status: e.Status, CancelCount: 0}
	requeueAt := ts().Add(time.Minute)
	n, err := stg.Queue().ApplyCancel(ctx, guard, models.CancelUpdate{Status: models.QueueStatusWaiting, QueueAt: requeueAt})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	got, err := stg.Queue().GetByID(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.CancelCount)
	assert.True(t, got.QueueAt.Equal(requeueAt))

	n, err = stg.Queue().ApplyCancel(ctx, guard, models.CancelUpdate{Status: models.QueueStatusWaiting, QueueAt: ts()})
	require.NoError(t, err)
	assert.Zero(t, n)

	guard.CancelCount = 1
	n, err = stg.Queue().ApplyCancel(ctx, guard, models.CancelUpdate{
		Status:      models.QueueStatusCancelled,
		QueueAt:     requeueAt,
		CompletedAt: models.TimePtr(ts()),
	})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	got, err = stg.Queue().GetByID(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, models.QueueStatusCancelled, got.Status)
	assert.Equal(t, 2, got.CancelCount)
	assert.NotNil(t, got.CompletedAt)
}

func testRideLifecycle(t *testing.T, stg storage.IStorage) {
	ctx := context.Background()
	driver := newUser(t, stg, models.RoleDriver, "dave")
	a := newUser(t, stg, models.RoleStudent, "a")
	ea := book(t, stg, a.ID, ts())

	newRide := func(students ...string) (*models.Ride, error) {
		return stg.Ride().Create(ctx, &models.Ride{
			DriverID:  models.StringPtr(driver.ID),
			Students:  students,
			Status:    models.RideStatusInTransit,
			MaxSeats:  4,
			StartedAt: models.TimePtr(ts()),
		})
	}

	ride, err := newRide(ea.ID)
	require.NoError(t, err)
	_, err = newRide()
	assert.ErrorIs(t, err, storage.ErrDuplicate)

	current, err := stg.Ride().GetInTransitByDriver(ctx, driver.ID)
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, ride.ID, current.ID)
	assert.Equal(t, []string{ea.ID}, current.Students)

	n, err := stg.Ride().Complete(ctx, ride.ID, "someone-else", ts())
	require.NoError(t, err)
	assert.Zero(t, n)
	n, err = stg.Ride().Complete(ctx, ride.ID, driver.ID, ts())
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	second, err := newRide(ea.ID)
	require.NoError(t, err)

	empty, err := stg.Ride().FilterEmptyActive(ctx, []string{second.ID})
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = stg.Ride().PullMembers(ctx, []string{second.ID}, []string{ea.ID}, "")
	require.NoError(t, err)
	empty, err = stg.Ride().FilterEmptyActive(ctx, []string{second.ID})
	require.NoError(t, err)
	assert.Equal(t, []string{second.ID}, empty)

	n, err = stg.Ride().CancelMany(ctx, []string{second.ID}, ts(), true)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	cancelled, err := stg.Ride().GetByID(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RideStatusCancelled, cancelled.Status)
	assert.Nil(t, cancelled.DriverID)

	active, err := stg.Ride().ListActiveByDriver(ctx, driver.ID)
	require.NoError(t, err)
	assert.Empty(t, active)
}

func testTrips(t *testing.T, stg storage.IStorage) {
	ctx := context.Background()
	driver := newUser(t, stg, models.RoleDriver, "dave")
	a := newUser(t, stg, models.RoleStudent, "a")
	b := newUser(t, stg, models.RoleStudent, "b")
	rideID := uuid.NewString()

	trip, err := stg.Trip().Upsert(ctx, &models.Trip{
		RideID:       rideID,
		DriverID:     models.StringPtr(driver.ID),
		Students:     []string{a.ID, b.ID},
		PickupPoints: []string{"Gate"},
		Destinations: []string{"Library"},
		Status:       models.TripStatusInTransit,
		StartedAt:    ts(),
	})
	require.NoError(t, err)
	require.NotEmpty(t, trip.ID)

	forStudent, err := stg.Trip().GetInTransitForUser(ctx, a.ID, models.RoleStudent)
	require.NoError(t, err)
	require.NotNil(t, forStudent)
	assert.Equal(t, rideID, forStudent.RideID)

	forDriver, err := stg.Trip().GetInTransitForUser(ctx, driver.ID, models.RoleDriver)
	require.NoError(t, err)
	require.NotNil(t, forDriver)

	wrongRole, err := stg.Trip().GetInTransitForUser(ctx, driver.ID, models.RoleStudent)
	require.NoError(t, err)
	assert.Nil(t, wrongRole)

	_, err = stg.Trip().PullStudent(ctx, nil, a.ID)
	require.NoError(t, err)
	got, err := stg.Trip().GetByRideID(ctx, rideID)
	require.NoError(t, err)
	assert.Equal(t, []string{b.ID}, got.Students)

	n, err := stg.Trip().SetStatusByRides(ctx, []string{rideID}, models.TripStatusInTransit, models.TripStatusCompleted, ts(), false)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	n, err = stg.Trip().SetStatusByRides(ctx, []string{rideID}, models.TripStatusInTransit, models.TripStatusCancelled, ts(), false)
	require.NoError(t, err)
	assert.Zero(t, n)

	none, err := stg.Trip().GetInTransitForUser(ctx, b.ID, models.RoleStudent)
	require.NoError(t, err)
	assert.Nil(t, none)

	require.NoError(t, stg.Trip().DeleteByRideID(ctx, rideID))
	gone, err := stg.Trip().GetByRideID(ctx, rideID)
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func testMessages(t *testing.T, stg storage.IStorage) {
	ctx := context.Background()
	sender := newUser(t, stg, models.RoleDriver, "dave")

	for _, text := range []string{"one", "two", "three"} {
		_, err := stg.Message().Create(ctx, &models.Message{
			SenderID:   sender.ID,
			SenderRole: sender.Role,
			RoomType:   models.RoomTypeQueue,
			RoomID:     models.QueueRoomID,
			Content:    text,
		})
		require.NoError(t, err)
		time.Sleep(2 * time.Millisecond)
	}

	last, err := stg.Message().ListRoom(ctx, models.RoomTypeQueue, models.QueueRoomID, 2)
	require.NoError(t, err)
	require.Len(t, last, 2)
	assert.Equal(t, "two", last[0].Content)
	assert.Equal(t, "three", last[1].Content)

	n, err := stg.Message().MarkSenderDeleted(ctx, sender.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	all, err := stg.Message().ListRoom(ctx, models.RoomTypeQueue, models.QueueRoomID, 0)
	require.NoError(t, err)
	for _, m := range all {
		assert.True(t, m.SenderDeleted)
	}
}

func testComplaints(t *testing.T, stg storage.IStorage) {
	ctx := context.Background()
	student := newUser(t, stg, models.RoleStudent, "a")
	admin := newUser(t, stg, models.RoleAdmin, "root")

	c, err := stg.Complaint().Create(ctx, &models.Complaint{StudentID: student.ID, Text: "late"})
	require.NoError(t, err)
	assert.Equal(t, models.ComplaintStatusSubmitted, c.Status)

	open, err := stg.Complaint().CountByStatus(ctx, models.OpenComplaintStatuses...)
	require.NoError(t, err)
	assert.Equal(t, 1, open)

	updated, err := stg.Complaint().UpdateStatus(ctx, c.ID, models.ComplaintStatusResolved, "sorted", models.StringPtr(admin.ID))
	require.NoError(t, err)
	assert.Equal(t, "sorted", updated.AdminResponse)
	assert.Equal(t, admin.ID, models.Deref(updated.ResolvedBy))

	n, err := stg.Complaint().ClearResolvedBy(ctx, admin.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	got, err := stg.Complaint().GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Nil(t, got.ResolvedBy)

	mine, err := stg.Complaint().ListByStudent(ctx, student.ID)
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	n, err = stg.Complaint().DeleteByStudent(ctx, student.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	all, err := stg.Complaint().ListAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func testSchedules(t *testing.T, stg storage.IStorage) {
	ctx := context.Background()
	admin := newUser(t, stg, models.RoleAdmin, "root")
	driver := newUser(t, stg, models.RoleDriver, "d")

	create := func(title, date, start, target string, driverID *string) *models.Schedule {
		s, err := stg.Schedule().Create(ctx, &models.Schedule{
			Title: title, Date: date, StartTime: start, EndTime: "23:00",
			TargetRole: target, DriverID: driverID, CreatedBy: admin.ID,
		})
		require.NoError(t, err)
		return s
	}
	late := create("late shuttle", "2026-03-02", "18:00", models.ScheduleTargetStudent, nil)
	early := create("early shuttle", "2026-03-02", "07:30", "", nil)
	shift := create("night shift", "2026-03-01", "22:00", models.ScheduleTargetDriver, models.StringPtr(driver.ID))
	staff := create("staff run", "2026-03-03", "09:00", models.ScheduleTargetDriver, nil)
	assert.Equal(t, models.ScheduleTargetAll, early.TargetRole)
	assert.Equal(t, admin.ID, late.CreatedBy)

	titles := func(list []*models.Schedule) []string {
		out := make([]string, 0, len(list))
		for _, s := range list {
			out = append(out, s.Title)
		}
		return out
	}

	all, err := stg.Schedule().List(ctx, models.ScheduleFilter{})
	require.NoError(t, err)
	assert.Equal(t, []string{shift.Title, early.Title, late.Title, staff.Title}, titles(all))

	students, err := stg.Schedule().List(ctx, models.ScheduleFilter{
		TargetRoles: []string{models.ScheduleTargetAll, models.ScheduleTargetStudent},
		DriverID:    "nobody",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{early.Title, late.Title}, titles(students))

	mine, err := stg.Schedule().List(ctx, models.ScheduleFilter{
		TargetRoles: []string{models.ScheduleTargetAll},
		DriverID:    driver.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{shift.Title, early.Title}, titles(mine))

	n, err := stg.Schedule().ClearDriver(ctx, driver.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	mine, err = stg.Schedule().List(ctx, models.ScheduleFilter{
		TargetRoles: []string{models.ScheduleTargetAll},
		DriverID:    driver.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{early.Title}, titles(mine))
}

func testInTxRollback(t *testing.T, stg storage.IStorage) {
	ctx := context.Background()
	student := newUser(t, stg, models.RoleStudent, "a")
	e := book(t, stg, student.ID, ts())

	err := stg.InTx(ctx, func(tx storage.IStorage) error {
		if _, err := tx.Queue().RemoveWaiting(ctx, student.ID, ts()); err != nil {
			return err
		}
		if _, err := tx.User().Create(ctx, &models.User{
			Name: "ghost", Email: "ghost@campus.test", Password: "hash",
			Role: models.RoleStudent, Status: models.UserStatusActive, IsActive: true,
		}); err != nil {
			return err
		}
		return errRollback
	})
	require.ErrorIs(t, err, errRollback)

	got, err := stg.Queue().GetByID(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, models.QueueStatusWaiting, got.Status)

	ghost, err := stg.User().GetByEmail(ctx, "ghost@campus.test")
	require.NoError(t, err)
	assert.Nil(t, ghost)

	err = stg.InTx(ctx, func(tx storage.IStorage) error {
		_, err := tx.Queue().RemoveWaiting(ctx, student.ID, ts())
		return err
	})
	require.NoError(t, err)
	got, err = stg.Queue().GetByID(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, models.QueueStatusRemoved, got.Status)
}
