package service

import (
	"context"
	"sync"
	"testing"

	"rollouthq/internal/model"
	"rollouthq/internal/repository/memstore"
	v1 "rollouthq/pkg/api/v1"
	"rollouthq/pkg/logger"

	"github.com/stretchr/testify/require"
)

func init() {
	logger.InitLogger("test")
}

// fixture is a memory-backed set of services sharing one store.
type fixture struct {
	store     *memstore.Store
	snapshots *memstore.Snapshots
	engine    *Engine
	writer    *AssignmentWriter
	overrides *OverrideManager
	directory *FeatureService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memstore.New()
	snaps := memstore.NewSnapshots()
	syncer := NewSnapshotSyncer(store.Outbox(), snaps)
	syncer.wait = true

	return &fixture{
		store:     store,
		snapshots: snaps,
		engine:    NewEngine(store.Features(), store.Environments(), store.Assignments(), store.Overrides(), nil),
		writer:    NewAssignmentWriter(store.Features(), store.Environments(), store.Assignments(), syncer),
		overrides: NewOverrideManager(store.Features(), store.Environments(), store.Overrides()),
		directory: NewFeatureService(store.Features(), store.Environments(), store.Audits(), snaps),
	}
}

// seed creates the feature and environment keys.
func (f *fixture) seed(t *testing.T, featureKey, envKey string) (*model.Feature, *model.Environment) {
	t.Helper()
	ctx := context.Background()
	feat, err := f.directory.CreateFeature(ctx, CreateFeatureInput{Key: featureKey, Name: "Feature " + featureKey})
	require.NoError(t, err)
	env, err := f.directory.CreateEnvironment(ctx, CreateEnvironmentInput{Key: envKey, Name: "Env " + envKey})
	require.NoError(t, err)
	return feat, env
}

func intPtr(v int) *int { return &v }

// recordingPublisher collects published events.
type recordingPublisher struct {
	mu     sync.Mutex
	events []v1.WebhookEvent
	accept bool
}

func (p *recordingPublisher) Publish(ev v1.WebhookEvent) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.accept
}

func (p *recordingPublisher) Events() []v1.WebhookEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]v1.WebhookEvent(nil), p.events...)
}
