package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campusride/pkg/models"
	"campusride/storage"
	"campusride/storage/storagetest"
)

func TestStore(t *testing.T) {
	storagetest.Run(t, func(*testing.T) storage.IStorage { return New() })
}

func TestMarkArrivedOnAssignedEntry(t *testing.T) {
	ctx := context.Background()
	s := New()

	e, err := s.Queue().CreateIfNoActive(ctx, &models.QueueEntry{StudentID: "s1", Pickup: "Gate", Destination: "Library"})
	require.NoError(t, err)

	// assigned-with-ride only exists for rides left over from batch matching
	s.st.entries[e.ID].Status = models.QueueStatusAssigned
	s.st.entries[e.ID].RideID = models.StringPtr("ride-1")

	n, err := s.Queue().MarkArrived(ctx, e.ID, "ride-2", time.Now())
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = s.Queue().MarkArrived(ctx, e.ID, "ride-1", time.Now())
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	got, err := s.Queue().GetByID(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, models.QueueStatusPickup, got.Status)
	assert.NotNil(t, got.ArrivedAt)

	n, err = s.Queue().MarkArrived(ctx, e.ID, "ride-1", time.Now())
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestInTxNestedJoinsOuter(t *testing.T) {
	ctx := context.Background()
	s := New()

	err := s.InTx(ctx, func(tx storage.IStorage) error {
		return tx.InTx(ctx, func(inner storage.IStorage) error {
			_, err := inner.User().Create(ctx, &models.User{Name: "a", Email: "a@campus.test", Role: models.RoleStudent})
			return err
		})
	})
	require.NoError(t, err)

	u, err := s.User().GetByEmail(ctx, "a@campus.test")
	require.NoError(t, err)
	assert.NotNil(t, u)
}
