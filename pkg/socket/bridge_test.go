package socket

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"campusride/pkg/logger"
	"campusride/pkg/models"
)

func startRedis(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping redis container in -short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	redisC, err := testcontainers.Run(
		ctx, "redis:7-alpine",
		testcontainers.WithExposedPorts("6379/tcp"),
		testcontainers.WithWaitStrategy(
			wait.ForListeningPort("6379/tcp"),
			wait.ForLog("Ready to accept connections"),
		),
	)
	testcontainers.CleanupContainer(t, redisC)
	require.NoError(t, err)

	endpoint, err := redisC.Endpoint(ctx, "")
	require.NoError(t, err)
	return endpoint
}

func TestRedisBridgeReplaysOpsOnOtherNodes(t *testing.T) {
	addr := startRedis(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	newNode := func() *Hub {
		client := redis.NewClient(&redis.Options{Addr: addr})
		t.Cleanup(func() { _ = client.Close() })
		h := NewHub(logger.NewNop())
		b := NewRedisBridge(h, client, "campusride:test", logger.NewNop())
		go func() { _ = b.Run(ctx) }()
		return h
	}

	a, b := newNode(), newNode()
	local := fakeClient(a, "a1", "student-1", models.RoleStudent)
	remote := fakeClient(b, "b1", "student-1", models.RoleStudent)

	// subscriptions are confirmed asynchronously
	require.Eventually(t, func() bool {
		a.EmitToUser("student-1", "warmup", nil)
		return len(drain(t, remote)) > 0
	}, 10*time.Second, 100*time.Millisecond)
	drain(t, local)

	a.JoinTripRoom([]string{"student-1"}, "ride-9")
	require.Eventually(t, func() bool {
		return b.Registry().InRoom("b1", TripRoom("ride-9"))
	}, 5*time.Second, 50*time.Millisecond)

	a.EmitToRide("ride-9", models.EventTripAssigned, map[string]string{"rideId": "ride-9"})
	require.Eventually(t, func() bool {
		got := drain(t, remote)
		return len(got) == 1 && got[0].Event == models.EventTripAssigned
	}, 5*time.Second, 50*time.Millisecond)

	got := drain(t, local)
	require.Len(t, got, 1)
	assert.Equal(t, models.EventTripAssigned, got[0].Event)
}
