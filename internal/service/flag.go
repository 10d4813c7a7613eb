package service

import (
	"context"
	"fmt"

	"rollouthq/internal/apperr"
	"rollouthq/internal/model"
	"rollouthq/internal/repository"
	v1 "rollouthq/pkg/api/v1"
	"rollouthq/pkg/constraints"
)

// scope resolves the (feature, environment) pair every flag write targets.
type scope struct {
	features     repository.FeatureInterface
	environments repository.EnvironmentInterface
}

func (s scope) resolve(ctx context.Context, featureKey, environmentKey string) (*model.Feature, *model.Environment, error) {
	feature, err := s.features.GetByKey(ctx, featureKey)
	if err != nil {
		return nil, nil, fmt.Errorf("get feature %s: %w", featureKey, err)
	}
	if feature == nil {
		return nil, nil, apperr.NotFoundf("feature %q not found", featureKey)
	}
	env, err := s.environments.GetByKey(ctx, environmentKey)
	if err != nil {
		return nil, nil, fmt.Errorf("get environment %s: %w", environmentKey, err)
	}
	if env == nil {
		return nil, nil, apperr.NotFoundf("environment %q not found", environmentKey)
	}
	return feature, env, nil
}

// SnapshotPublisher receives the new state of an assignment after it changed.
type SnapshotPublisher interface {
	Publish(ctx context.Context, snap v1.FlagSnapshot)
}

// AssignmentWriter is the only writer of FlagAssignment rows.
type AssignmentWriter struct {
	scope
	assignments repository.AssignmentInterface
	publisher   SnapshotPublisher
}

// NewAssignmentWriter builds the writer. publisher may be nil when the mirror is disabled.
func NewAssignmentWriter(
	features repository.FeatureInterface,
	environments repository.EnvironmentInterface,
	assignments repository.AssignmentInterface,
	publisher SnapshotPublisher,
) *AssignmentWriter {
	return &AssignmentWriter{
		scope:       scope{features: features, environments: environments},
		assignments: assignments,
		publisher:   publisher,
	}
}

// SetFlagState creates or updates the assignment of a feature in an environment.
// rolloutPct is kept only for PERCENTAGE; a nil pct on an existing PERCENTAGE row keeps
// the stored value. Writing the current state again is a no-op.
func (w *AssignmentWriter) SetFlagState(ctx context.Context, featureKey, environmentKey string, state constraints.FlagState, rolloutPct *int) (*model.FlagAssignment, error) {
	if !state.Valid() {
		return nil, apperr.Validationf("invalid state %q", state)
	}
	if rolloutPct != nil && (*rolloutPct < 0 || *rolloutPct > 100) {
		return nil, apperr.Validationf("rolloutPct must be between 0 and 100, got %d", *rolloutPct)
	}
	if state != constraints.StatePercentage {
		rolloutPct = nil
	} else if rolloutPct != nil {
		pct := *rolloutPct
		rolloutPct = &pct
	}

	feature, env, err := w.resolve(ctx, featureKey, environmentKey)
	if err != nil {
		return nil, err
	}

	current, err := w.assignments.Get(ctx, feature.ID, env.ID)
	if err != nil {
		return nil, fmt.Errorf("get assignment: %w", err)
	}

	if current == nil {
		current = &model.FlagAssignment{
			FeatureID:     feature.ID,
			EnvironmentID: env.ID,
			State:         state,
			RolloutPct:    rolloutPct,
			Version:       1,
		}
		if err := w.assignments.Create(ctx, current); err != nil {
			return nil, fmt.Errorf("create assignment: %w", err)
		}
	} else {
		// an absent pct on a PERCENTAGE update keeps the stored one
		if state == constraints.StatePercentage && rolloutPct == nil {
			rolloutPct = current.RolloutPct
		}
		if current.State == state && samePct(current.RolloutPct, rolloutPct) {
			return current, nil
		}
		current.State = state
		current.RolloutPct = rolloutPct
		current.Version++
		if err := w.assignments.Save(ctx, current); err != nil {
			return nil, fmt.Errorf("save assignment: %w", err)
		}
	}

	if w.publisher != nil {
		w.publisher.Publish(ctx, snapshotOf(feature.Key, env.Key, current))
	}
	return current, nil
}

func samePct(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func snapshotOf(featureKey, environmentKey string, a *model.FlagAssignment) v1.FlagSnapshot {
	return v1.FlagSnapshot{
		FeatureKey:     featureKey,
		EnvironmentKey: environmentKey,
		State:          string(a.State),
		RolloutPct:     a.RolloutPct,
		Version:        a.Version,
	}
}

// OverrideManager maintains per-user overrides.
type OverrideManager struct {
	scope
	overrides repository.OverrideInterface
}

func NewOverrideManager(
	features repository.FeatureInterface,
	environments repository.EnvironmentInterface,
	overrides repository.OverrideInterface,
) *OverrideManager {
	return &OverrideManager{
		scope:     scope{features: features, environments: environments},
		overrides: overrides,
	}
}

func (m *OverrideManager) UpsertOverride(ctx context.Context, featureKey, environmentKey, userID string, state constraints.FlagState) (*model.UserOverride, error) {
	if userID == "" {
		return nil, apperr.Validationf("userId is required")
	}
	if !state.ValidForOverride() {
		return nil, apperr.Validationf("override state must be ON or OFF, got %q", state)
	}

	feature, env, err := m.resolve(ctx, featureKey, environmentKey)
	if err != nil {
		return nil, err
	}

	ov, err := m.overrides.Upsert(ctx, &model.UserOverride{
		FeatureID:     feature.ID,
		EnvironmentID: env.ID,
		UserID:        userID,
		State:         state,
	})
	if err != nil {
		return nil, fmt.Errorf("upsert override: %w", err)
	}
	return ov, nil
}

func (m *OverrideManager) DeleteOverride(ctx context.Context, featureKey, environmentKey, userID string) error {
	if userID == "" {
		return apperr.Validationf("userId is required")
	}

	feature, env, err := m.resolve(ctx, featureKey, environmentKey)
	if err != nil {
		return err
	}

	removed, err := m.overrides.Delete(ctx, feature.ID, env.ID, userID)
	if err != nil {
		return fmt.Errorf("delete override: %w", err)
	}
	if !removed {
		return apperr.NotFoundf("override for user %q not found", userID)
	}
	return nil
}
