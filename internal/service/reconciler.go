package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"rollouthq/internal/repository"
	"rollouthq/pkg/logger"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const DefaultReconcileSchedule = "@every 1m"

// Locker is a distributed mutex. *concurrency.Mutex satisfies it.
type Locker interface {
	Lock(ctx context.Context) error
	Unlock(ctx context.Context) error
}

// Reconciler periodically compares the assignment table with the etcd mirror and
// republishes whatever is missing or stale. Only the holder of the lock runs a pass.
type Reconciler struct {
	locker       Locker
	snapshots    repository.SnapshotInterface
	features     repository.FeatureInterface
	environments repository.EnvironmentInterface
	assignments  repository.AssignmentInterface
	schedule     string
	lockTimeout  time.Duration
}

func NewReconciler(
	locker Locker,
	snapshots repository.SnapshotInterface,
	features repository.FeatureInterface,
	environments repository.EnvironmentInterface,
	assignments repository.AssignmentInterface,
	schedule string,
) *Reconciler {
	if schedule == "" {
		schedule = DefaultReconcileSchedule
	}
	return &Reconciler{
		locker:       locker,
		snapshots:    snapshots,
		features:     features,
		environments: environments,
		assignments:  assignments,
		schedule:     schedule,
		lockTimeout:  5 * time.Second,
	}
}

// Run schedules passes until ctx is done and waits for a running pass to finish.
func (r *Reconciler) Run(ctx context.Context) error {
	c := cron.New()
	if _, err := c.AddFunc(r.schedule, func() { r.tick(ctx) }); err != nil {
		return fmt.Errorf("invalid reconcile schedule %q: %w", r.schedule, err)
	}
	c.Start()
	logger.Info("reconciler started", zap.String("schedule", r.schedule))

	<-ctx.Done()
	<-c.Stop().Done()
	logger.Info("reconciler stopped")
	return nil
}

func (r *Reconciler) tick(ctx context.Context) {
	lockCtx, cancel := context.WithTimeout(ctx, r.lockTimeout)
	err := r.locker.Lock(lockCtx)
	cancel()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			logger.Debug("reconciliation skipped, another instance holds the lock")
		} else {
			logger.Error("failed to acquire reconciliation lock", zap.Error(err))
		}
		return
	}
	defer func() {
		if err := r.locker.Unlock(context.Background()); err != nil {
			logger.Warn("failed to release reconciliation lock", zap.Error(err))
		}
	}()

	if _, err := r.reconcile(ctx); err != nil {
		logger.Error("reconciliation failed", zap.Error(err))
	}
}

// ReconcileReport summarizes one pass.
type ReconcileReport struct {
	Checked  int
	Repaired []string
	Orphans  []string
}

func (r *Reconciler) reconcile(ctx context.Context) (*ReconcileReport, error) {
	featureKeys, envKeys, err := r.keyIndex(ctx)
	if err != nil {
		return nil, err
	}

	assignments, err := r.assignments.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}

	mirrored, err := r.snapshots.ListSnapshots(ctx, repository.KeyPrefix)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}

	report := &ReconcileReport{}
	expected := make(map[string]struct{}, len(assignments))
	for _, a := range assignments {
		fk, fok := featureKeys[a.FeatureID]
		ek, eok := envKeys[a.EnvironmentID]
		if !fok || !eok {
			continue
		}
		key := repository.SnapshotKey(ek, fk)
		expected[key] = struct{}{}
		report.Checked++

		reason := ""
		if cur, ok := mirrored[key]; !ok {
			reason = "missing_in_etcd"
		} else if cur.Version < a.Version {
			reason = "stale_version"
		}
		if reason == "" {
			continue
		}

		logger.Warn("recon: fixing inconsistency", zap.String("key", key), zap.String("reason", reason))
		if _, err := r.snapshots.SaveSnapshotIfNewer(ctx, key, snapshotOf(fk, ek, a)); err != nil {
			logger.Error("recon: failed to fix etcd", zap.String("key", key), zap.Error(err))
			continue
		}
		report.Repaired = append(report.Repaired, key)
	}

	for key := range mirrored {
		if !strings.Contains(key, "/flags/") {
			continue
		}
		if _, ok := expected[key]; !ok {
			logger.Warn("recon: orphan key in etcd", zap.String("key", key))
			report.Orphans = append(report.Orphans, key)
		}
	}

	logger.Info("reconciliation finished",
		zap.Int("db_count", report.Checked),
		zap.Int("etcd_count", len(mirrored)),
		zap.Int("repaired", len(report.Repaired)),
	)
	return report, nil
}

// keyIndex maps feature and environment ids to their keys.
func (r *Reconciler) keyIndex(ctx context.Context) (map[string]string, map[string]string, error) {
	features, err := r.features.List(ctx, repository.FeatureFilter{IncludeArchived: true})
	if err != nil {
		return nil, nil, fmt.Errorf("list features: %w", err)
	}
	envs, err := r.environments.List(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("list environments: %w", err)
	}
	fk := make(map[string]string, len(features))
	for _, f := range features {
		fk[f.ID] = f.Key
	}
	ek := make(map[string]string, len(envs))
	for _, e := range envs {
		ek[e.ID] = e.Key
	}
	return fk, ek, nil
}
