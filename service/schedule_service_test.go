package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campusride/pkg/apperr"
	"campusride/pkg/models"
)

func TestCreateScheduleValidates(t *testing.T) {
	env := newTestEnv(t, 4)
	admin := env.user(t, models.RoleAdmin, "root")
	student := env.user(t, models.RoleStudent, "alice")

	valid := func() CreateScheduleRequest {
		return CreateScheduleRequest{Title: "Morning run", Date: "2026-03-02", StartTime: "07:30", EndTime: "09:00"}
	}
	tests := []struct {
		name   string
		mutate func(*CreateScheduleRequest)
		msg    string
	}{
		{"blank title", func(r *CreateScheduleRequest) { r.Title = "  " }, "Title is required"},
		{"no date", func(r *CreateScheduleRequest) { r.Date = "" }, "Date is required"},
		{"bad date", func(r *CreateScheduleRequest) { r.Date = "02/03/2026" }, "Date must be YYYY-MM-DD"},
		{"no start", func(r *CreateScheduleRequest) { r.StartTime = "" }, "Start time is required"},
		{"bad end", func(r *CreateScheduleRequest) { r.EndTime = "9am" }, "End time must be HH:MM"},
		{"end before start", func(r *CreateScheduleRequest) { r.EndTime = "07:00" }, "End time must be after start time"},
		{"bad target", func(r *CreateScheduleRequest) { r.TargetRole = "admin" }, "Invalid target role"},
		{"unknown driver", func(r *CreateScheduleRequest) { r.DriverID = "missing" }, "Invalid driver ID"},
		{"driver is a student", func(r *CreateScheduleRequest) { r.DriverID = student.ID }, "Invalid driver ID"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid()
			tt.mutate(&req)
			_, err := env.svc.Schedule().Create(env.ctx, admin.ID, req)
			require.Error(t, err)
			assert.True(t, apperr.Is(err, apperr.KindValidation))
			assert.Equal(t, tt.msg, apperr.Message(err))
		})
	}

	view, err := env.svc.Schedule().Create(env.ctx, admin.ID, valid())
	require.NoError(t, err)
	assert.Equal(t, models.ScheduleTargetAll, view.TargetRole)
	assert.Nil(t, view.Driver)
	require.NotNil(t, view.Creator)
	assert.Equal(t, admin.ID, view.Creator.ID)
}

func TestListSchedulesByAudience(t *testing.T) {
	env := newTestEnv(t, 4)
	admin := env.user(t, models.RoleAdmin, "root")
	alice := env.user(t, models.RoleStudent, "alice")
	dave := env.user(t, models.RoleDriver, "dave")
	erin := env.user(t, models.RoleDriver, "erin")

	create := func(title, date, target, driverID string) {
		_, err := env.svc.Schedule().Create(env.ctx, admin.ID, CreateScheduleRequest{
			Title: title, Date: date, StartTime: "08:00", EndTime: "10:00",
			TargetRole: target, DriverID: driverID,
		})
		require.NoError(t, err)
	}
	create("open day", "2026-03-05", "", "")
	create("exam shuttle", "2026-03-04", models.ScheduleTargetStudent, "")
	create("dave's shift", "2026-03-01", models.ScheduleTargetStudent, dave.ID)
	create("driver briefing", "2026-03-02", models.ScheduleTargetDriver, "")

	titles := func(views []ScheduleView) []string {
		out := make([]string, 0, len(views))
		for _, v := range views {
			out = append(out, v.Title)
		}
		return out
	}

	all, err := env.svc.Schedule().List(env.ctx, admin.ID, models.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, []string{"dave's shift", "driver briefing", "exam shuttle", "open day"}, titles(all))

	forAlice, err := env.svc.Schedule().List(env.ctx, alice.ID, models.RoleStudent)
	require.NoError(t, err)
	assert.Equal(t, []string{"dave's shift", "exam shuttle", "open day"}, titles(forAlice))

	forDave, err := env.svc.Schedule().List(env.ctx, dave.ID, models.RoleDriver)
	require.NoError(t, err)
	assert.Equal(t, []string{"dave's shift", "driver briefing", "open day"}, titles(forDave))
	require.NotNil(t, forDave[0].Driver)
	assert.Equal(t, dave.ID, forDave[0].Driver.ID)

	forErin, err := env.svc.Schedule().List(env.ctx, erin.ID, models.RoleDriver)
	require.NoError(t, err)
	assert.Equal(t, []string{"driver briefing", "open day"}, titles(forErin))
}

func TestPurgedDriverIsUnassignedFromSchedules(t *testing.T) {
	env := newTestEnv(t, 4)
	admin := env.user(t, models.RoleAdmin, "root")
	dave := env.user(t, models.RoleDriver, "dave")

	_, err := env.svc.Schedule().Create(env.ctx, admin.ID, CreateScheduleRequest{
		Title: "shift", Date: "2026-03-01", StartTime: "08:00", EndTime: "10:00",
		TargetRole: models.ScheduleTargetDriver, DriverID: dave.ID,
	})
	require.NoError(t, err)

	_, err = env.svc.User().RemoveByID(env.ctx, admin.ID, dave.ID, true)
	require.NoError(t, err)

	all, err := env.svc.Schedule().List(env.ctx, admin.ID, models.RoleAdmin)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Nil(t, all[0].DriverID)
	assert.Nil(t, all[0].Driver)
}
