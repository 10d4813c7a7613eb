package service

import (
	"context"
	"errors"
	"testing"

	"rollouthq/internal/model"
	"rollouthq/internal/repository"
	"rollouthq/internal/repository/memstore"
	v1 "rollouthq/pkg/api/v1"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func addTask(t *testing.T, store *memstore.Store, key, payload string) {
	t.Helper()
	require.NoError(t, store.Outbox().Create(context.Background(), &model.OutboxTask{Key: key, Payload: payload}))
}

func TestOutboxWorker_SyncsPending(t *testing.T) {
	store := memstore.New()
	snaps := memstore.NewSnapshots()
	key := repository.SnapshotKey("prod", "checkout")
	snap := v1.FlagSnapshot{FeatureKey: "checkout", EnvironmentKey: "prod", State: "ON", Version: 3}
	addTask(t, store, key, snap.ToJSON())

	w := NewOutboxWorker(store.Outbox(), snaps, 0, 10)
	w.processPending(context.Background())

	got, err := snaps.GetSnapshot(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Version)

	pending, err := store.Outbox().FetchPending(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestOutboxWorker_RetriesThenParks(t *testing.T) {
	store := memstore.New()
	snaps := memstore.NewSnapshots()
	snaps.Err = errors.New("etcd unavailable")
	snap := v1.FlagSnapshot{FeatureKey: "checkout", EnvironmentKey: "prod", State: "OFF", Version: 1}
	addTask(t, store, repository.SnapshotKey("prod", "checkout"), snap.ToJSON())

	w := NewOutboxWorker(store.Outbox(), snaps, 0, 10)
	for i := 1; i < model.MaxOutboxRetries; i++ {
		w.processPending(context.Background())
		pending, err := store.Outbox().FetchPending(context.Background(), 10)
		require.NoError(t, err)
		require.Len(t, pending, 1)
		assert.Equal(t, i, pending[0].RetryCount)
	}

	w.processPending(context.Background())
	pending, err := store.Outbox().FetchPending(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, pending, "parked as failed")
}

func TestOutboxWorker_CorruptPayloadFails(t *testing.T) {
	store := memstore.New()
	addTask(t, store, "/rollouthq/prod/flags/x", "{not json")

	w := NewOutboxWorker(store.Outbox(), memstore.NewSnapshots(), 0, 10)
	w.processPending(context.Background())

	pending, err := store.Outbox().FetchPending(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}
