package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/creamcroissant/orderdesk/internal/migrations"
	"github.com/creamcroissant/orderdesk/internal/repository"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := sql.Open("sqlite", "file:"+filepath.Join(t.TempDir(), "orderdesk.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, migrations.Up(db))
	return NewStore(db)
}

func TestAuditCreateListAndCount(t *testing.T) {
	ctx := context.Background()
	audits := newTestStore(t).Audits()

	entries := []*repository.TransitionAudit{
		{OrderID: "o-1", Action: "status", FromStatus: "pending", ToStatus: "confirmed", Outcome: "accepted", CreatedAt: 100},
		{OrderID: "o-1", Action: "cancel", FromStatus: "confirmed", ToStatus: "cancelled", Outcome: "rejected", Error: "reason required", CreatedAt: 200},
		{OrderID: "o-2", Action: "assign", FromStatus: "confirmed", ToStatus: "assigned", Outcome: "accepted", CreatedAt: 300},
	}
	for _, e := range entries {
		require.NoError(t, audits.Create(ctx, e))
		assert.NotEmpty(t, e.ID)
	}

	list, err := audits.List(ctx, repository.AuditFilter{OrderID: "o-1"})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "cancel", list[0].Action)
	assert.Equal(t, "reason required", list[0].Error)

	count, err := audits.Count(ctx, repository.AuditFilter{Outcome: "accepted"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)

	deleted, err := audits.DeleteBefore(ctx, 250)
	require.NoError(t, err)
	assert.EqualValues(t, 2, deleted)

	count, err = audits.Count(ctx, repository.AuditFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestWatchLifecycle(t *testing.T) {
	ctx := context.Background()
	watches := newTestStore(t).Watches()

	require.NoError(t, watches.Upsert(ctx, &repository.WatchedOrder{OrderID: "o-1", Label: "vip", AddedBy: "ops"}))
	require.NoError(t, watches.Upsert(ctx, &repository.WatchedOrder{OrderID: "o-2"}))

	now := time.Now().Unix()
	require.NoError(t, watches.RecordStatus(ctx, "o-1", "in-transit", now))

	// re-watching keeps the last seen status
	require.NoError(t, watches.Upsert(ctx, &repository.WatchedOrder{OrderID: "o-1", Label: "vip-2", AddedBy: "ops"}))
	got, err := watches.Find(ctx, "o-1")
	require.NoError(t, err)
	assert.Equal(t, "vip-2", got.Label)
	assert.Equal(t, "in-transit", got.LastStatus)
	require.NotNil(t, got.LastCheckedAt)
	assert.Equal(t, now, *got.LastCheckedAt)

	list, err := watches.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	require.NoError(t, watches.Delete(ctx, "o-2"))
	assert.ErrorIs(t, watches.Delete(ctx, "o-2"), repository.ErrNotFound)
	assert.ErrorIs(t, watches.RecordStatus(ctx, "missing", "pending", now), repository.ErrNotFound)

	_, err = watches.Find(ctx, "o-2")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
