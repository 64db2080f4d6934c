package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"campusride/config"
	"campusride/pkg/logger"
	"campusride/pkg/models"
	"campusride/pkg/socket"
	"campusride/storage/memory"
)

type emitted struct {
	Op      string
	Targets []string
	Event   string
	Payload any
}

// recordingEmitter keeps every fan-out call for assertions.
type recordingEmitter struct {
	mu    sync.Mutex
	calls []emitted
}

var _ socket.Emitter = (*recordingEmitter)(nil)

func (r *recordingEmitter) add(e emitted) {
	r.mu.Lock()
	r.calls = append(r.calls, e)
	r.mu.Unlock()
}

func (r *recordingEmitter) EmitToUser(userID, event string, payload any) {
	r.add(emitted{Op: "user", Targets: []string{userID}, Event: event, Payload: payload})
}

func (r *recordingEmitter) EmitToRole(role, event string, payload any) {
	r.add(emitted{Op: "role", Targets: []string{role}, Event: event, Payload: payload})
}

func (r *recordingEmitter) EmitToQueueRoom(event string, payload any) {
	r.add(emitted{Op: "queue", Targets: []string{socket.QueueRoom}, Event: event, Payload: payload})
}

func (r *recordingEmitter) EmitToRide(rideID, event string, payload any) {
	r.add(emitted{Op: "ride", Targets: []string{rideID}, Event: event, Payload: payload})
}

func (r *recordingEmitter) EmitToRooms(rooms []string, event string, payload any) {
	r.add(emitted{Op: "rooms", Targets: append([]string(nil), rooms...), Event: event, Payload: payload})
}

func (r *recordingEmitter) JoinQueueRoom(userIDs []string) {
	r.add(emitted{Op: "joinQueue", Targets: append([]string(nil), userIDs...)})
}

func (r *recordingEmitter) LeaveQueueRoom(userIDs []string) {
	r.add(emitted{Op: "leaveQueue", Targets: append([]string(nil), userIDs...)})
}

func (r *recordingEmitter) JoinTripRoom(userIDs []string, rideID string) {
	r.add(emitted{Op: "joinTrip:" + rideID, Targets: append([]string(nil), userIDs...)})
}

func (r *recordingEmitter) LeaveTripRoom(userIDs []string, rideID string) {
	r.add(emitted{Op: "leaveTrip:" + rideID, Targets: append([]string(nil), userIDs...)})
}

func (r *recordingEmitter) DisconnectUser(userID string) {
	r.add(emitted{Op: "disconnect", Targets: []string{userID}})
}

func (r *recordingEmitter) events(event string) []emitted {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []emitted
	for _, c := range r.calls {
		if c.Event == event {
			out = append(out, c)
		}
	}
	return out
}

func (r *recordingEmitter) ops(op string) []emitted {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []emitted
	for _, c := range r.calls {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

func (r *recordingEmitter) reset() {
	r.mu.Lock()
	r.calls = nil
	r.mu.Unlock()
}

type testEnv struct {
	ctx  context.Context
	stg  *memory.Store
	emit *recordingEmitter
	svc  IServiceManager
}

func newTestEnv(t *testing.T, maxSeats int) *testEnv {
	t.Helper()
	stg := memory.New()
	emit := &recordingEmitter{}
	cfg := config.Config{
		MaxRideSeats: maxSeats,
		JWTSecret:    "test-secret",
		JWTTTLHours:  1,
	}
	return &testEnv{
		ctx:  context.Background(),
		stg:  stg,
		emit: emit,
		svc:  New(cfg, stg, emit, logger.NewNop()),
	}
}

func (e *testEnv) user(t *testing.T, role, name string) *models.User {
	t.Helper()
	u, err := e.stg.User().Create(e.ctx, &models.User{
		Name:     name,
		Email:    name + "@campus.test",
		Role:     role,
		Status:   models.UserStatusActive,
		IsActive: true,
	})
	require.NoError(t, err)
	return u
}

func (e *testEnv) students(t *testing.T, names ...string) []*models.User {
	t.Helper()
	out := make([]*models.User, 0, len(names))
	for _, name := range names {
		out = append(out, e.user(t, models.RoleStudent, name))
	}
	return out
}

func (e *testEnv) book(t *testing.T, student *models.User) *StudentRide {
	t.Helper()
	ride, err := e.svc.Queue().BookRide(e.ctx, student.ID, "Gate", "Library")
	require.NoError(t, err)
	return ride
}

func (e *testEnv) entry(t *testing.T, id string) *models.QueueEntry {
	t.Helper()
	entry, err := e.stg.Queue().GetByID(e.ctx, id)
	require.NoError(t, err)
	require.NotNil(t, entry)
	return entry
}
