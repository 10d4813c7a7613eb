package service

import (
	"context"
	"unicode/utf16"

	"rollouthq/internal/apperr"
	"rollouthq/internal/metrics"
	"rollouthq/internal/repository"
	v1 "rollouthq/pkg/api/v1"
	"rollouthq/pkg/constraints"
)

// Bucket maps a user id to [0, 100). It hashes UTF-16 code units with
// h = h*31 + c in uint32 arithmetic, so ids outside the BMP hash by their
// surrogate pairs.
func Bucket(userID string) int {
	var h uint32
	for _, c := range utf16.Encode([]rune(userID)) {
		h = h*31 + uint32(c)
	}
	return int(h % 100)
}

// Engine answers whether a feature is enabled for a user in an environment.
// It only reads.
type Engine struct {
	features     repository.FeatureInterface
	environments repository.EnvironmentInterface
	assignments  repository.AssignmentInterface
	overrides    repository.OverrideInterface
	obs          metrics.EvaluationObserver
}

func NewEngine(
	features repository.FeatureInterface,
	environments repository.EnvironmentInterface,
	assignments repository.AssignmentInterface,
	overrides repository.OverrideInterface,
	obs metrics.EvaluationObserver,
) *Engine {
	if obs == nil {
		obs = metrics.Nop{}
	}
	return &Engine{
		features:     features,
		environments: environments,
		assignments:  assignments,
		overrides:    overrides,
		obs:          obs,
	}
}

// Evaluate resolves the flag. Anything unconfigured evaluates to disabled;
// only storage failures produce an error. An empty userID means anonymous.
func (e *Engine) Evaluate(ctx context.Context, featureKey, environmentKey, userID string) (v1.EvaluationResult, error) {
	enabled, err := e.evaluate(ctx, featureKey, environmentKey, userID)
	if err != nil {
		return v1.EvaluationResult{}, apperr.Wrap(apperr.Internal, "evaluation failed", err)
	}
	e.obs.RecordEvaluation(enabled)
	return v1.EvaluationResult{Enabled: enabled}, nil
}

func (e *Engine) evaluate(ctx context.Context, featureKey, environmentKey, userID string) (bool, error) {
	feature, err := e.features.GetByKey(ctx, featureKey)
	if err != nil {
		return false, err
	}
	env, err := e.environments.GetByKey(ctx, environmentKey)
	if err != nil {
		return false, err
	}
	if feature == nil || env == nil {
		return false, nil
	}

	if userID != "" {
		ov, err := e.overrides.Get(ctx, feature.ID, env.ID, userID)
		if err != nil {
			return false, err
		}
		if ov != nil {
			return ov.State == constraints.StateOn, nil
		}
	}

	a, err := e.assignments.Get(ctx, feature.ID, env.ID)
	if err != nil {
		return false, err
	}
	if a == nil {
		return false, nil
	}

	switch a.State {
	case constraints.StateOn:
		return true, nil
	case constraints.StatePercentage:
		if userID == "" {
			return false, nil
		}
		pct := 0
		if a.RolloutPct != nil {
			pct = *a.RolloutPct
		}
		return Bucket(userID) < pct, nil
	default:
		return false, nil
	}
}
