package service

import (
	"context"
	"time"

	"rollouthq/internal/model"
	"rollouthq/internal/repository"
	v1 "rollouthq/pkg/api/v1"
	"rollouthq/pkg/logger"

	"go.uber.org/zap"
)

const syncTimeout = 3 * time.Second

// SnapshotSyncer records every changed assignment in the outbox, then tries to
// push it to etcd right away. Whatever fails here is picked up by the OutboxWorker.
type SnapshotSyncer struct {
	outbox    repository.OutboxInterface
	snapshots repository.SnapshotInterface
	// wait blocks Publish until the immediate sync finished
	wait bool
}

func NewSnapshotSyncer(outbox repository.OutboxInterface, snapshots repository.SnapshotInterface) *SnapshotSyncer {
	return &SnapshotSyncer{outbox: outbox, snapshots: snapshots}
}

func (s *SnapshotSyncer) Publish(ctx context.Context, snap v1.FlagSnapshot) {
	key := repository.SnapshotKey(snap.EnvironmentKey, snap.FeatureKey)
	task := &model.OutboxTask{
		Key:     key,
		Payload: snap.ToJSON(),
		Status:  model.OutboxPending,
		TraceID: TraceID(ctx),
	}
	if err := s.outbox.Create(ctx, task); err != nil {
		logger.Error("failed to create outbox task", zap.String("key", key), zap.Error(err))
		return
	}

	if s.wait {
		s.sync(task.ID, key, snap)
		return
	}
	go s.sync(task.ID, key, snap)
}

func (s *SnapshotSyncer) sync(taskID int64, key string, snap v1.FlagSnapshot) {
	ctx, cancel := context.WithTimeout(context.Background(), syncTimeout)
	defer cancel()

	if _, err := s.snapshots.SaveSnapshotIfNewer(ctx, key, snap); err != nil {
		logger.Warn("failed to sync snapshot to etcd", zap.String("key", key), zap.Error(err))
		return
	}
	if err := s.outbox.UpdateStatus(ctx, taskID, model.OutboxCompleted, 0); err != nil {
		logger.Warn("failed to mark outbox task completed", zap.Int64("id", taskID), zap.Error(err))
	}
}
