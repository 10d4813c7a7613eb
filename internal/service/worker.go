package service

import (
	"context"
	"encoding/json"
	"time"

	"rollouthq/internal/model"
	"rollouthq/internal/repository"
	v1 "rollouthq/pkg/api/v1"
	"rollouthq/pkg/logger"

	"go.uber.org/zap"
)

// OutboxWorker retries snapshot syncs that did not reach etcd.
type OutboxWorker struct {
	outboxRepo repository.OutboxInterface
	snapshots  repository.SnapshotInterface
	interval   time.Duration
	batchSize  int
}

func NewOutboxWorker(outboxRepo repository.OutboxInterface, snapshots repository.SnapshotInterface, interval time.Duration, batchSize int) *OutboxWorker {
	if batchSize <= 0 {
		batchSize = 10
	}
	return &OutboxWorker{
		outboxRepo: outboxRepo,
		snapshots:  snapshots,
		interval:   interval,
		batchSize:  batchSize,
	}
}

func (w *OutboxWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	logger.Info("outbox worker started", zap.Duration("interval", w.interval))

	for {
		select {
		case <-ctx.Done():
			logger.Info("outbox worker stopped")
			return nil
		case <-ticker.C:
			w.processPending(ctx)
		}
	}
}

func (w *OutboxWorker) processPending(ctx context.Context) {
	tasks, err := w.outboxRepo.FetchPending(ctx, w.batchSize)
	if err != nil {
		logger.Error("failed to fetch pending outbox tasks", zap.Error(err))
		return
	}

	for _, task := range tasks {
		logger.Debug("processing outbox task", zap.Int64("id", task.ID), zap.String("key", task.Key))

		var snap v1.FlagSnapshot
		if err := json.Unmarshal([]byte(task.Payload), &snap); err != nil {
			logger.Error("failed to unmarshal task payload", zap.Int64("id", task.ID), zap.Error(err))
			// corrupt payload will never sync
			w.setStatus(ctx, task.ID, model.OutboxFailed, task.RetryCount)
			continue
		}

		if _, err := w.snapshots.SaveSnapshotIfNewer(ctx, task.Key, snap); err != nil {
			logger.Warn("failed to sync task to etcd", zap.Int64("id", task.ID), zap.Error(err))
			retries := task.RetryCount + 1
			if retries >= model.MaxOutboxRetries {
				logger.Error("task max retries reached", zap.Int64("id", task.ID), zap.String("key", task.Key))
				w.setStatus(ctx, task.ID, model.OutboxFailed, retries)
			} else {
				w.setStatus(ctx, task.ID, model.OutboxPending, retries)
			}
			continue
		}

		w.setStatus(ctx, task.ID, model.OutboxCompleted, task.RetryCount)
		logger.Info("outbox task completed", zap.Int64("id", task.ID), zap.String("key", task.Key))
	}
}

func (w *OutboxWorker) setStatus(ctx context.Context, id int64, status model.OutboxStatus, retries int) {
	if err := w.outboxRepo.UpdateStatus(ctx, id, status, retries); err != nil {
		logger.Error("failed to update outbox task", zap.Int64("id", id), zap.Error(err))
	}
}
