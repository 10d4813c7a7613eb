package service

import (
	"context"
	"errors"
	"testing"

	"rollouthq/internal/apperr"
	"rollouthq/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateFeature_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name string
		in   CreateFeatureInput
	}{
		{"upper case key", CreateFeatureInput{Key: "Checkout", Name: "Checkout"}},
		{"short key", CreateFeatureInput{Key: "c", Name: "Checkout"}},
		{"underscore", CreateFeatureInput{Key: "new_checkout", Name: "Checkout"}},
		{"short name", CreateFeatureInput{Key: "checkout", Name: "C"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.directory.CreateFeature(ctx, tt.in)
			assert.True(t, apperr.IsValidation(err), "got %v", err)
		})
	}
}

func TestCreateFeature_DuplicateIsConflict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.directory.CreateFeature(ctx, CreateFeatureInput{Key: "checkout", Name: "Checkout"})
	require.NoError(t, err)
	_, err = f.directory.CreateFeature(ctx, CreateFeatureInput{Key: "checkout", Name: "Again"})
	assert.True(t, apperr.IsConflict(err), "got %v", err)

	_, err = f.directory.CreateEnvironment(ctx, CreateEnvironmentInput{Key: "prod", Name: "Production"})
	require.NoError(t, err)
	_, err = f.directory.CreateEnvironment(ctx, CreateEnvironmentInput{Key: "prod", Name: "Production"})
	assert.True(t, apperr.IsConflict(err), "got %v", err)
}

func TestUpdateFeature(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, "checkout", "prod")

	archived := true
	name := "New checkout"
	updated, err := f.directory.UpdateFeature(ctx, "checkout", UpdateFeatureInput{Name: &name, Archived: &archived})
	require.NoError(t, err)
	assert.Equal(t, "New checkout", updated.Name)
	assert.True(t, updated.Archived)

	active, err := f.directory.ListFeatures(ctx, repository.FeatureFilter{})
	require.NoError(t, err)
	assert.Empty(t, active)

	all, err := f.directory.ListFeatures(ctx, repository.FeatureFilter{IncludeArchived: true, Search: "check"})
	require.NoError(t, err)
	assert.Len(t, all, 1)

	_, err = f.directory.UpdateFeature(ctx, "ghost", UpdateFeatureInput{Name: &name})
	assert.True(t, apperr.IsNotFound(err))
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	assert.NoError(t, f.directory.Health(context.Background()))

	f.snapshots.Err = errors.New("etcd down")
	assert.ErrorIs(t, f.directory.Health(context.Background()), ErrEtcdUnhealthy)

	noMirror := NewFeatureService(f.store.Features(), f.store.Environments(), f.store.Audits(), nil)
	assert.NoError(t, noMirror.Health(context.Background()))
}
