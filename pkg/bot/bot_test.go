package bot

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v3"

	"campusride/config"
	"campusride/pkg/logger"
	"campusride/pkg/models"
	"campusride/pkg/socket"
	"campusride/service"
	"campusride/storage/memory"
)

type fakeSender struct {
	mu   sync.Mutex
	to   []tele.Recipient
	sent chan string
}

func newFakeSender() *fakeSender {
	return &fakeSender{sent: make(chan string, 16)}
}

func (f *fakeSender) Send(to tele.Recipient, what interface{}, _ ...interface{}) (*tele.Message, error) {
	f.mu.Lock()
	f.to = append(f.to, to)
	f.mu.Unlock()
	f.sent <- what.(string)
	return &tele.Message{}, nil
}

func (f *fakeSender) next(t *testing.T) string {
	t.Helper()
	select {
	case text := <-f.sent:
		return text
	case <-time.After(2 * time.Second):
		t.Fatal("no alert delivered")
		return ""
	}
}

type fixture struct {
	ctx      context.Context
	sender   *fakeSender
	notifier *Notifier
	svc      service.IServiceManager
}

func newFixture(t *testing.T, maxSeats int) *fixture {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	sender := newFakeSender()
	n := newNotifier(sender, 42, logger.NewNop())
	cfg := config.Config{MaxRideSeats: maxSeats, JWTSecret: "test-secret", JWTTTLHours: 1}
	svc := service.New(cfg, memory.New(), socket.Fanout{socket.Nop{}, n}, logger.NewNop())
	n.Attach(svc)
	go n.Run(ctx)

	return &fixture{ctx: ctx, sender: sender, notifier: n, svc: svc}
}

func (f *fixture) user(t *testing.T, role, name string) *models.User {
	t.Helper()
	u, err := f.svc.User().Create(f.ctx, service.CreateUserRequest{
		Name: name, Email: name + "@campus.test", Password: "secret1", Role: role,
	})
	require.NoError(t, err)
	return u
}

func TestAlertsForAdminEvents(t *testing.T) {
	f := newFixture(t, 1)
	student := f.user(t, models.RoleStudent, "alice")
	driver := f.user(t, models.RoleDriver, "dave")

	_, err := f.svc.Queue().BookRide(f.ctx, student.ID, "Gate", "Library")
	require.NoError(t, err)
	_, err = f.svc.Queue().StartTrip(f.ctx, driver.ID)
	require.NoError(t, err)

	assert.Contains(t, f.sender.next(t), "Seats: 1/1")
	assert.Contains(t, f.sender.next(t), "Driver: dave")

	c, err := f.svc.Complaint().Create(f.ctx, student.ID, "Driver was late", "")
	require.NoError(t, err)
	text := f.sender.next(t)
	assert.Contains(t, text, "New complaint from alice")
	assert.Contains(t, text, "Driver was late")

	admin := f.user(t, models.RoleAdmin, "root")
	_, err = f.svc.Complaint().UpdateStatus(f.ctx, admin.ID, c.ID, models.ComplaintStatusResolved, "Sorry")
	require.NoError(t, err)
	assert.Contains(t, f.sender.next(t), "is now resolved")

	f.sender.mu.Lock()
	defer f.sender.mu.Unlock()
	for _, to := range f.sender.to {
		assert.Equal(t, "42", to.Recipient())
	}
}

func TestNonAdminEventsAreIgnored(t *testing.T) {
	n := newNotifier(newFakeSender(), 42, logger.NewNop())

	n.EmitToRole(models.RoleDriver, models.EventComplaintNew, &service.ComplaintView{})
	n.EmitToRooms([]string{socket.UserRoom("s1")}, models.EventTripStarted, service.TripPayload{})
	n.EmitToRooms([]string{socket.RoleRoom(models.RoleAdmin)}, models.EventQueueUpdated, nil)
	n.EmitToRole(models.RoleAdmin, models.EventComplaintNew, "not a complaint")

	assert.Empty(t, n.alerts)
}

func TestFullBufferDropsAlerts(t *testing.T) {
	n := newNotifier(newFakeSender(), 42, logger.NewNop())
	payload := service.TripPayload{RideID: "ride-1", SeatsFilled: 1, MaxSeats: 4}

	for range alertBuffer + 5 {
		n.EmitToRooms([]string{socket.RoleRoom(models.RoleAdmin)}, models.EventTripStarted, payload)
	}
	assert.Len(t, n.alerts, alertBuffer)
}

func TestCommandTexts(t *testing.T) {
	f := newFixture(t, 4)
	alice := f.user(t, models.RoleStudent, "alice")
	f.user(t, models.RoleStudent, "bob")
	f.user(t, models.RoleDriver, "dave")

	_, err := f.svc.Queue().BookRide(f.ctx, alice.ID, "Gate", "Library")
	require.NoError(t, err)

	stats, err := f.notifier.statsText(f.ctx)
	require.NoError(t, err)
	assert.Contains(t, stats, "Students: 2")
	assert.Contains(t, stats, "Drivers: 1")
	assert.Contains(t, stats, "In queue: 1")

	queue, err := f.notifier.queueText(f.ctx)
	require.NoError(t, err)
	assert.Contains(t, queue, "Waiting: 1")
	assert.Contains(t, queue, "1. alice: Gate ➡️ Library")
	assert.Contains(t, queue, "Active rides: 0")

	complaints, err := f.notifier.complaintsText(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, "📭 No open complaints.", complaints)

	_, err = f.svc.Complaint().Create(f.ctx, alice.ID, "Too cold", "")
	require.NoError(t, err)
	complaints, err = f.notifier.complaintsText(f.ctx)
	require.NoError(t, err)
	assert.Contains(t, complaints, "Open complaints: 1")
	assert.Contains(t, complaints, "alice: Too cold")
}
