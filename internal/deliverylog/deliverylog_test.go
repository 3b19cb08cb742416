package deliverylog

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jredh-dev/order-notify/internal/delivery"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	path := t.TempDir() + "/test.db"
	db, err := Open(path, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err, "open test db")
	t.Cleanup(func() { db.Close() })
	return db
}

func TestObserveRecordsAttempts(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	db.Observe(ctx, delivery.Outcome{
		NotificationID: "n-1",
		Recipient:      "94771234567@c.us",
		Mode:           delivery.ModeQueued,
		Attempt:        1,
		Err:            errors.New("socket closed"),
		At:             now,
		Duration:       1500 * time.Millisecond,
	})
	db.Observe(ctx, delivery.Outcome{
		NotificationID: "n-1",
		Recipient:      "94771234567@c.us",
		Mode:           delivery.ModeQueued,
		Attempt:        2,
		At:             now.Add(5 * time.Second),
	})

	attempts, err := db.AttemptsFor(ctx, "n-1")
	require.NoError(t, err)
	require.Len(t, attempts, 2)

	assert.Equal(t, 1, attempts[0].Attempt)
	assert.Equal(t, StatusFailed, attempts[0].Status)
	assert.Equal(t, "socket closed", attempts[0].Error)
	assert.Equal(t, int64(1500), attempts[0].DurationMS)
	assert.Equal(t, "queued", attempts[0].Mode)

	assert.Equal(t, 2, attempts[1].Attempt)
	assert.Equal(t, StatusSent, attempts[1].Status)
	assert.Empty(t, attempts[1].Error)
	assert.True(t, attempts[1].CreatedAt.Equal(now.Add(5*time.Second)))
}

func TestRecentNewestFirst(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Second)

	for i, id := range []string{"a", "b", "c"} {
		a := AttemptFromOutcome(delivery.Outcome{
			NotificationID: id,
			Recipient:      id + "@c.us",
			Mode:           delivery.ModeImmediate,
			Attempt:        1,
			At:             base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, db.RecordAttempt(ctx, a))
	}

	recent, err := db.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "c", recent[0].NotificationID)
	assert.Equal(t, "b", recent[1].NotificationID)
}

func TestClaimWebhook(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	first, err := db.ClaimWebhook(ctx, "wh-1")
	require.NoError(t, err)
	assert.True(t, first)

	again, err := db.ClaimWebhook(ctx, "wh-1")
	require.NoError(t, err)
	assert.False(t, again, "a redelivery must not be claimed twice")

	require.NoError(t, db.ReleaseWebhook(ctx, "wh-1"))

	retried, err := db.ClaimWebhook(ctx, "wh-1")
	require.NoError(t, err)
	assert.True(t, retried, "released claims can be taken again")
}

func TestPurgeReceipts(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	_, err := db.ClaimWebhook(ctx, "old")
	require.NoError(t, err)

	n, err := db.PurgeReceipts(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	claimed, err := db.ClaimWebhook(ctx, "old")
	require.NoError(t, err)
	assert.True(t, claimed)
}

func TestAttemptFromOutcomeDefaultsTimestamp(t *testing.T) {
	a := AttemptFromOutcome(delivery.Outcome{NotificationID: "x"})
	assert.False(t, a.CreatedAt.IsZero())
	assert.NotEmpty(t, a.ID)
	assert.Equal(t, StatusSent, a.Status)
}
