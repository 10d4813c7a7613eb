package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"rollouthq/internal/apperr"
	"rollouthq/internal/model"
	"rollouthq/internal/repository"
	"rollouthq/pkg/logger"

	"go.uber.org/zap"
)

var ErrEtcdUnhealthy = errors.New("etcd unhealthy")
var ErrDatabaseUnhealthy = errors.New("database unhealthy")

var keyPattern = regexp.MustCompile(`^[a-z0-9-]+$`)

func validateKey(kind, key string) error {
	if len(key) < 2 || !keyPattern.MatchString(key) {
		return apperr.Validationf("%s key must match ^[a-z0-9-]+$ with at least 2 characters", kind)
	}
	return nil
}

func validateName(name string) error {
	if len(name) < 2 {
		return apperr.Validationf("name must have at least 2 characters")
	}
	return nil
}

// FeatureService manages the feature and environment directories.
type FeatureService struct {
	features     repository.FeatureInterface
	environments repository.EnvironmentInterface
	auditRepo    repository.AuditInterface
	snapshots    repository.SnapshotInterface
}

// NewFeatureService builds the directory service. snapshots may be nil when etcd is disabled.
func NewFeatureService(features repository.FeatureInterface, environments repository.EnvironmentInterface, auditRepo repository.AuditInterface, snapshots repository.SnapshotInterface) *FeatureService {
	return &FeatureService{
		features:     features,
		environments: environments,
		auditRepo:    auditRepo,
		snapshots:    snapshots,
	}
}

type CreateFeatureInput struct {
	Key         string
	Name        string
	Description string
}

func (s *FeatureService) CreateFeature(ctx context.Context, in CreateFeatureInput) (*model.Feature, error) {
	if err := validateKey("feature", in.Key); err != nil {
		return nil, err
	}
	if err := validateName(in.Name); err != nil {
		return nil, err
	}
	f := &model.Feature{Key: in.Key, Name: in.Name, Description: in.Description}
	if err := s.features.Create(ctx, f); err != nil {
		return nil, fmt.Errorf("create feature: %w", err)
	}
	logger.Info("feature created", zap.String("key", f.Key))
	return f, nil
}

func (s *FeatureService) ListFeatures(ctx context.Context, filter repository.FeatureFilter) ([]*model.Feature, error) {
	return s.features.List(ctx, filter)
}

// UpdateFeatureInput carries a partial update. Nil fields are left unchanged.
type UpdateFeatureInput struct {
	Name        *string
	Description *string
	Archived    *bool
}

func (s *FeatureService) UpdateFeature(ctx context.Context, key string, in UpdateFeatureInput) (*model.Feature, error) {
	if in.Name != nil {
		if err := validateName(*in.Name); err != nil {
			return nil, err
		}
	}
	f, err := s.features.GetByKey(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("get feature %s: %w", key, err)
	}
	if f == nil {
		return nil, apperr.NotFoundf("feature %q not found", key)
	}
	if in.Name != nil {
		f.Name = *in.Name
	}
	if in.Description != nil {
		f.Description = *in.Description
	}
	if in.Archived != nil {
		f.Archived = *in.Archived
	}
	if err := s.features.Save(ctx, f); err != nil {
		return nil, fmt.Errorf("save feature: %w", err)
	}
	return f, nil
}

type CreateEnvironmentInput struct {
	Key  string
	Name string
}

func (s *FeatureService) CreateEnvironment(ctx context.Context, in CreateEnvironmentInput) (*model.Environment, error) {
	if err := validateKey("environment", in.Key); err != nil {
		return nil, err
	}
	if err := validateName(in.Name); err != nil {
		return nil, err
	}
	env := &model.Environment{Key: in.Key, Name: in.Name}
	if err := s.environments.Create(ctx, env); err != nil {
		return nil, fmt.Errorf("create environment: %w", err)
	}
	logger.Info("environment created", zap.String("key", env.Key))
	return env, nil
}

func (s *FeatureService) ListEnvironments(ctx context.Context) ([]*model.Environment, error) {
	return s.environments.List(ctx)
}

// Health checks the database and, when configured, etcd.
func (s *FeatureService) Health(ctx context.Context) error {
	if err := s.auditRepo.PingContext(ctx); err != nil {
		logger.Warn("database ping failed", zap.Error(err))
		return ErrDatabaseUnhealthy
	}
	if s.snapshots != nil {
		if err := s.snapshots.Health(ctx); err != nil {
			logger.Warn("etcd health check failed", zap.Error(err))
			return ErrEtcdUnhealthy
		}
	}
	return nil
}
