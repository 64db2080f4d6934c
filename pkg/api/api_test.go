package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campusride/config"
	"campusride/pkg/logger"
	"campusride/pkg/models"
	"campusride/pkg/socket"
	"campusride/service"
	"campusride/storage/memory"
)

type response struct {
	Success   bool            `json:"success"`
	Message   string          `json:"message"`
	Data      json.RawMessage `json:"data"`
	Kind      string          `json:"kind"`
	Retryable bool            `json:"retryable"`
}

type testServer struct {
	t      *testing.T
	svc    service.IServiceManager
	router *gin.Engine
	srv    *httptest.Server
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		MaxRideSeats: 2,
		JWTSecret:    "test-secret",
		JWTTTLHours:  1,
		CORSOrigins:  []string{"http://localhost:5173"},
	}
	log := logger.NewNop()
	hub := socket.NewHub(log, socket.WithAllowedOrigins(cfg.CORSOrigins))
	svc := service.New(*cfg, memory.New(), hub, log)

	ts := &testServer{t: t, svc: svc, router: New(cfg, svc, hub, log).Router()}
	ts.srv = httptest.NewServer(ts.router)
	t.Cleanup(ts.srv.Close)
	return ts
}

func (ts *testServer) user(role, name string) (*models.User, string) {
	ts.t.Helper()
	u, err := ts.svc.User().Create(context.Background(), service.CreateUserRequest{
		Name: name, Email: name + "@campus.test", Password: "secret1", Role: role,
	})
	require.NoError(ts.t, err)

	res := ts.do(http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": name + "@campus.test", "password": "secret1",
	}, http.StatusOK)
	var login service.LoginResult
	require.NoError(ts.t, json.Unmarshal(res.Data, &login))
	return u, login.Token
}

func (ts *testServer) do(method, path, token string, body any, wantStatus int) response {
	ts.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(ts.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)

	require.Equal(ts.t, wantStatus, rec.Code, rec.Body.String())
	var res response
	require.NoError(ts.t, json.Unmarshal(rec.Body.Bytes(), &res))
	return res
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	res := ts.do(http.MethodGet, "/health", "", nil, http.StatusOK)
	assert.True(t, res.Success)
}

func TestAuthRequired(t *testing.T) {
	ts := newTestServer(t)

	res := ts.do(http.MethodGet, "/api/rides/student/current", "", nil, http.StatusUnauthorized)
	assert.False(t, res.Success)
	assert.Equal(t, "Authentication required", res.Message)

	ts.do(http.MethodGet, "/api/auth/me", "garbage", nil, http.StatusUnauthorized)

	ts.do(http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "nobody@campus.test", "password": "secret1",
	}, http.StatusUnauthorized)
}

func TestRoleGuards(t *testing.T) {
	ts := newTestServer(t)
	_, student := ts.user(models.RoleStudent, "alice")
	_, driver := ts.user(models.RoleDriver, "dave")

	ts.do(http.MethodPatch, "/api/rides/driver/start", student, nil, http.StatusForbidden)
	ts.do(http.MethodPost, "/api/rides/book", driver, map[string]string{"pickup": "Gate", "destination": "Library"}, http.StatusForbidden)
	ts.do(http.MethodGet, "/api/users", driver, nil, http.StatusForbidden)
	ts.do(http.MethodGet, "/api/complaints", student, nil, http.StatusForbidden)

	res := ts.do(http.MethodGet, "/api/auth/me", student, nil, http.StatusOK)
	var me models.User
	require.NoError(t, json.Unmarshal(res.Data, &me))
	assert.Equal(t, "alice", me.Name)
}

func TestRideFlow(t *testing.T) {
	ts := newTestServer(t)
	_, alice := ts.user(models.RoleStudent, "alice")
	_, bob := ts.user(models.RoleStudent, "bob")
	_, dave := ts.user(models.RoleDriver, "dave")

	ts.do(http.MethodPatch, "/api/rides/driver/start", dave, nil, http.StatusBadRequest)

	book := map[string]string{"pickup": "Gate", "destination": "Library"}
	res := ts.do(http.MethodPost, "/api/rides/book", alice, book, http.StatusCreated)
	var ride service.StudentRide
	require.NoError(t, json.Unmarshal(res.Data, &ride))
	assert.Equal(t, models.QueueStatusWaiting, ride.Status)

	res = ts.do(http.MethodPost, "/api/rides/book", alice, book, http.StatusConflict)
	assert.Equal(t, "already_booked", res.Kind)
	assert.False(t, res.Retryable)

	ts.do(http.MethodPost, "/api/rides/book", bob, book, http.StatusCreated)

	res = ts.do(http.MethodGet, "/api/rides/driver/current", dave, nil, http.StatusOK)
	var preview service.DriverRide
	require.NoError(t, json.Unmarshal(res.Data, &preview))
	require.NotNil(t, preview.Ride)
	assert.Equal(t, service.PreviewRideID, preview.Ride.ID)
	require.Len(t, preview.Ride.Students, 2)

	res = ts.do(http.MethodPatch, "/api/rides/driver/students/"+preview.Ride.Students[1].QueueEntryID+"/cancel", dave, nil, http.StatusOK)
	var cancel service.CancelResult
	require.NoError(t, json.Unmarshal(res.Data, &cancel))
	assert.Equal(t, 1, cancel.CancelCount)
	assert.Equal(t, models.QueueStatusWaiting, cancel.Status)

	res = ts.do(http.MethodPatch, "/api/rides/driver/start", dave, nil, http.StatusOK)
	var current service.DriverRide
	require.NoError(t, json.Unmarshal(res.Data, &current))
	require.NotNil(t, current.Ride)
	assert.Equal(t, models.RideStatusInTransit, current.Ride.Status)
	assert.Len(t, current.Ride.Students, 2)

	ts.do(http.MethodPost, "/api/rides/leave", alice, nil, http.StatusConflict)
	ts.do(http.MethodPatch, "/api/rides/driver/students/"+current.Ride.Students[0].QueueEntryID+"/cancel", dave, nil, http.StatusBadRequest)

	ts.do(http.MethodPatch, "/api/rides/driver/complete", dave, nil, http.StatusOK)

	res = ts.do(http.MethodGet, "/api/rides/student/history", alice, nil, http.StatusOK)
	var history []service.HistoryItem
	require.NoError(t, json.Unmarshal(res.Data, &history))
	require.Len(t, history, 1)
	assert.Equal(t, models.QueueStatusCompleted, history[0].Status)
	assert.Equal(t, "dave", history[0].Driver)
}

func TestComplaintsAndUsers(t *testing.T) {
	ts := newTestServer(t)
	_, root := ts.user(models.RoleAdmin, "root")
	alice, token := ts.user(models.RoleStudent, "alice")

	ts.do(http.MethodPost, "/api/complaints", token, map[string]string{"text": ""}, http.StatusBadRequest)
	res := ts.do(http.MethodPost, "/api/complaints", token, map[string]string{"text": "Late pickup"}, http.StatusCreated)
	var complaint service.ComplaintView
	require.NoError(t, json.Unmarshal(res.Data, &complaint))

	ts.do(http.MethodPatch, "/api/complaints/"+complaint.ID+"/status", root,
		map[string]string{"status": models.ComplaintStatusResolved, "response": "Sorry"}, http.StatusOK)

	res = ts.do(http.MethodGet, "/api/complaints/mine", token, nil, http.StatusOK)
	var mine []models.Complaint
	require.NoError(t, json.Unmarshal(res.Data, &mine))
	require.Len(t, mine, 1)
	assert.Equal(t, models.ComplaintStatusResolved, mine[0].Status)

	res = ts.do(http.MethodGet, "/api/users?role=student", root, nil, http.StatusOK)
	var users []models.User
	require.NoError(t, json.Unmarshal(res.Data, &users))
	require.Len(t, users, 1)

	res = ts.do(http.MethodDelete, "/api/users/"+alice.ID, root, nil, http.StatusOK)
	assert.Equal(t, "User deactivated", res.Message)
	ts.do(http.MethodGet, "/api/auth/me", token, nil, http.StatusUnauthorized)

	ts.do(http.MethodPost, "/api/users/"+alice.ID+"/reactivate", root, nil, http.StatusOK)
	ts.do(http.MethodGet, "/api/auth/me", token, nil, http.StatusOK)

	res = ts.do(http.MethodPost, "/api/users/remove-by-email", root,
		map[string]any{"email": "alice@campus.test", "permanent": true}, http.StatusOK)
	assert.Equal(t, "User permanently deleted", res.Message)

	ts.do(http.MethodPost, "/api/users", root, map[string]string{
		"name": "Bob", "email": "bob@campus.test", "password": "secret1", "role": models.RoleStudent,
	}, http.StatusCreated)
	res = ts.do(http.MethodPost, "/api/users", root, map[string]string{
		"name": "Bob", "email": "bob@campus.test", "password": "secret1", "role": models.RoleStudent,
	}, http.StatusConflict)
	assert.Equal(t, "Email already exists", res.Message)
}

func TestRequestBodiesAreValidated(t *testing.T) {
	ts := newTestServer(t)
	_, root := ts.user(models.RoleAdmin, "root")
	_, alice := ts.user(models.RoleStudent, "alice")

	tests := []struct {
		name  string
		path  string
		token string
		body  any
		msg   string
	}{
		{"login without email", "/api/auth/login", "", map[string]string{"password": "secret1"}, "email is required"},
		{"login with bad email", "/api/auth/login", "", map[string]string{"email": "alice", "password": "secret1"}, "A valid email is required"},
		{"login with unknown role", "/api/auth/login", "", map[string]string{"email": "alice@campus.test", "password": "secret1", "role": "pilot"}, "role must be one of: student, driver, admin"},
		{"short signup password", "/api/auth/signup", "", map[string]string{"name": "Bob", "email": "bob@campus.test", "password": "123", "role": "student"}, "password must be at least 6 characters"},
		{"book without destination", "/api/rides/book", alice, map[string]string{"pickup": "Gate"}, "destination is required"},
		{"long complaint", "/api/complaints", alice, map[string]string{"text": strings.Repeat("x", 2001)}, "text must be at most 2000 characters"},
		{"user with bad role", "/api/users", root, map[string]string{"name": "Bob", "email": "bob@campus.test", "password": "secret1", "role": "pilot"}, "role must be one of: student, driver, admin"},
		{"schedule with bad date", "/api/schedules", root, map[string]string{"title": "Run", "date": "tomorrow", "startTime": "08:00", "endTime": "09:00"}, "date is invalid"},
		{"malformed json", "/api/rides/book", alice, "not an object", "Invalid request body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ts.do(http.MethodPost, tt.path, tt.token, tt.body, http.StatusBadRequest)
			assert.Equal(t, "validation", res.Kind)
			assert.Equal(t, tt.msg, res.Message)
		})
	}

	res := ts.do(http.MethodPost, "/api/chat/rooms/queue/main/messages", alice,
		map[string]string{"content": strings.Repeat("y", 1001)}, http.StatusBadRequest)
	assert.Equal(t, "content must be at most 1000 characters", res.Message)

	res = ts.do(http.MethodPatch, "/api/complaints/any/status", root,
		map[string]string{"status": "closed"}, http.StatusBadRequest)
	assert.Equal(t, "status must be one of: submitted, in_review, resolved, rejected", res.Message)
}

func TestSignupAndRoleCheckedLogin(t *testing.T) {
	ts := newTestServer(t)

	signup := map[string]string{
		"name": "Dave", "email": "dave@campus.test", "password": "secret1",
		"role": models.RoleDriver, "vehicleNumber": "01 A 777 AA",
	}
	res := ts.do(http.MethodPost, "/api/auth/signup", "", signup, http.StatusCreated)
	assert.Equal(t, "Signup successful", res.Message)
	var login service.LoginResult
	require.NoError(t, json.Unmarshal(res.Data, &login))
	assert.NotEmpty(t, login.Token)
	assert.Equal(t, "01 A 777 AA", models.Deref(login.User.VehicleNumber))
	ts.do(http.MethodGet, "/api/auth/me", login.Token, nil, http.StatusOK)

	res = ts.do(http.MethodPost, "/api/auth/signup", "", signup, http.StatusConflict)
	assert.Equal(t, "Email already registered", res.Message)

	res = ts.do(http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "dave@campus.test", "password": "secret1", "role": models.RoleStudent,
	}, http.StatusForbidden)
	assert.Equal(t, "Selected role does not match this account", res.Message)

	ts.do(http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "dave@campus.test", "password": "secret1", "role": models.RoleDriver,
	}, http.StatusOK)
}

func TestSchedules(t *testing.T) {
	ts := newTestServer(t)
	_, root := ts.user(models.RoleAdmin, "root")
	_, alice := ts.user(models.RoleStudent, "alice")
	dave, daveToken := ts.user(models.RoleDriver, "dave")

	ts.do(http.MethodPost, "/api/schedules", alice, map[string]string{
		"title": "Run", "date": "2026-03-02", "startTime": "08:00", "endTime": "09:00",
	}, http.StatusForbidden)

	res := ts.do(http.MethodPost, "/api/schedules", root, map[string]string{
		"title": "Night shift", "date": "2026-03-01", "startTime": "22:00", "endTime": "23:30",
		"targetRole": models.ScheduleTargetDriver, "driverId": dave.ID,
	}, http.StatusCreated)
	assert.Equal(t, "Schedule created", res.Message)
	var shift service.ScheduleView
	require.NoError(t, json.Unmarshal(res.Data, &shift))
	require.NotNil(t, shift.Driver)
	assert.Equal(t, "dave", shift.Driver.Name)

	ts.do(http.MethodPost, "/api/schedules", root, map[string]string{
		"title": "Exam shuttle", "date": "2026-03-02", "startTime": "08:00", "endTime": "09:00",
		"targetRole": models.ScheduleTargetStudent,
	}, http.StatusCreated)

	count := func(token string) int {
		res := ts.do(http.MethodGet, "/api/schedules", token, nil, http.StatusOK)
		var list []service.ScheduleView
		require.NoError(t, json.Unmarshal(res.Data, &list))
		return len(list)
	}
	assert.Equal(t, 2, count(root))
	assert.Equal(t, 1, count(alice))
	assert.Equal(t, 1, count(daveToken))
	ts.do(http.MethodGet, "/api/schedules", "", nil, http.StatusUnauthorized)
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/rides/book", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/api/rides/book", nil)
	req.Header.Set("Origin", "http://evil.test")
	rec = httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestWebsocketHandshake(t *testing.T) {
	ts := newTestServer(t)
	alice, token := ts.user(models.RoleStudent, "alice")
	url := "ws" + strings.TrimPrefix(ts.srv.URL, "http") + "/ws"

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(url+"?token="+token, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var f socket.Frame
	require.NoError(t, conn.ReadJSON(&f))
	assert.Equal(t, models.EventSocketReady, f.Event)

	var ready struct {
		UserID string   `json:"userId"`
		Rooms  []string `json:"rooms"`
	}
	require.NoError(t, json.Unmarshal(f.Data, &ready))
	assert.Equal(t, alice.ID, ready.UserID)
	assert.Contains(t, ready.Rooms, socket.UserRoom(alice.ID))
}
