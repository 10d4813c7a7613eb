// Package memstore keeps every repository port in process memory. It backs the
// "memory" database driver and the service tests. Unique keys are enforced the
// same way the relational schema enforces them.
package memstore

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"rollouthq/internal/apperr"
	"rollouthq/internal/model"
	"rollouthq/internal/repository"

	"github.com/google/uuid"
)

// Store holds all tables behind one lock.
type Store struct {
	mu sync.RWMutex

	features     map[string]*model.Feature // by key
	environments map[string]*model.Environment
	assignments  map[assignmentKey]*model.FlagAssignment
	overrides    map[overrideKey]*model.UserOverride
	audits       []model.AuditLog
	endpoints    map[string]*model.WebhookEndpoint // by id
	deliveries   []model.WebhookDelivery
	outbox       []model.OutboxTask
	outboxSeq    int64

	now func() time.Time
}

type assignmentKey struct{ featureID, environmentID string }

type overrideKey struct{ featureID, environmentID, userID string }

func New() *Store {
	return &Store{
		features:     make(map[string]*model.Feature),
		environments: make(map[string]*model.Environment),
		assignments:  make(map[assignmentKey]*model.FlagAssignment),
		overrides:    make(map[overrideKey]*model.UserOverride),
		endpoints:    make(map[string]*model.WebhookEndpoint),
		now:          time.Now,
	}
}

func ensureID(id *string) {
	if *id == "" {
		*id = uuid.NewString()
	}
}

func conflict(what string) error {
	return apperr.New(apperr.Conflict, what+" already exists")
}

// Features returns the FeatureInterface view of the store.
func (s *Store) Features() repository.FeatureInterface { return featureStore{s} }

func (s *Store) Environments() repository.EnvironmentInterface { return environmentStore{s} }

func (s *Store) Assignments() repository.AssignmentInterface { return assignmentStore{s} }

func (s *Store) Overrides() repository.OverrideInterface { return overrideStore{s} }

func (s *Store) Audits() repository.AuditInterface { return auditStore{s} }

func (s *Store) Endpoints() repository.WebhookEndpointInterface { return endpointStore{s} }

func (s *Store) Deliveries() repository.DeliveryInterface { return deliveryStore{s} }

func (s *Store) Outbox() repository.OutboxInterface { return outboxStore{s} }

// Set returns every view of the store.
func (s *Store) Set() repository.Set {
	return repository.Set{
		Features:     s.Features(),
		Environments: s.Environments(),
		Assignments:  s.Assignments(),
		Overrides:    s.Overrides(),
		Audits:       s.Audits(),
		Endpoints:    s.Endpoints(),
		Deliveries:   s.Deliveries(),
		Outbox:       s.Outbox(),
	}
}

type featureStore struct{ s *Store }

func (f featureStore) GetByKey(_ context.Context, key string) (*model.Feature, error) {
	f.s.mu.RLock()
	defer f.s.mu.RUnlock()
	if v, ok := f.s.features[key]; ok {
		cp := *v
		return &cp, nil
	}
	return nil, nil
}

func (f featureStore) List(_ context.Context, filter repository.FeatureFilter) ([]*model.Feature, error) {
	f.s.mu.RLock()
	defer f.s.mu.RUnlock()
	out := []*model.Feature{}
	for _, v := range f.s.features {
		if v.Archived && !filter.IncludeArchived {
			continue
		}
		if filter.Search != "" && !strings.Contains(v.Key, filter.Search) && !strings.Contains(v.Name, filter.Search) {
			continue
		}
		cp := *v
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f featureStore) Create(_ context.Context, feature *model.Feature) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if _, ok := f.s.features[feature.Key]; ok {
		return conflict("feature")
	}
	ensureID(&feature.ID)
	now := f.s.now()
	feature.CreatedAt, feature.UpdatedAt = now, now
	cp := *feature
	f.s.features[feature.Key] = &cp
	return nil
}

func (f featureStore) Save(_ context.Context, feature *model.Feature) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	for key, v := range f.s.features {
		if v.ID == feature.ID && key != feature.Key {
			if _, taken := f.s.features[feature.Key]; taken {
				return conflict("feature")
			}
			delete(f.s.features, key)
		}
	}
	feature.UpdatedAt = f.s.now()
	cp := *feature
	f.s.features[feature.Key] = &cp
	return nil
}

type environmentStore struct{ s *Store }

func (e environmentStore) GetByKey(_ context.Context, key string) (*model.Environment, error) {
	e.s.mu.RLock()
	defer e.s.mu.RUnlock()
	if v, ok := e.s.environments[key]; ok {
		cp := *v
		return &cp, nil
	}
	return nil, nil
}

func (e environmentStore) List(context.Context) ([]*model.Environment, error) {
	e.s.mu.RLock()
	defer e.s.mu.RUnlock()
	out := make([]*model.Environment, 0, len(e.s.environments))
	for _, v := range e.s.environments {
		cp := *v
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (e environmentStore) Create(_ context.Context, env *model.Environment) error {
	e.s.mu.Lock()
	defer e.s.mu.Unlock()
	if _, ok := e.s.environments[env.Key]; ok {
		return conflict("environment")
	}
	ensureID(&env.ID)
	env.CreatedAt = e.s.now()
	cp := *env
	e.s.environments[env.Key] = &cp
	return nil
}

type assignmentStore struct{ s *Store }

func (a assignmentStore) Get(_ context.Context, featureID, environmentID string) (*model.FlagAssignment, error) {
	a.s.mu.RLock()
	defer a.s.mu.RUnlock()
	if v, ok := a.s.assignments[assignmentKey{featureID, environmentID}]; ok {
		cp := *v
		return &cp, nil
	}
	return nil, nil
}

func (a assignmentStore) Create(_ context.Context, assignment *model.FlagAssignment) error {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	k := assignmentKey{assignment.FeatureID, assignment.EnvironmentID}
	if _, ok := a.s.assignments[k]; ok {
		return conflict("flag assignment")
	}
	ensureID(&assignment.ID)
	if assignment.Version == 0 {
		assignment.Version = 1
	}
	now := a.s.now()
	assignment.CreatedAt, assignment.UpdatedAt = now, now
	cp := *assignment
	a.s.assignments[k] = &cp
	return nil
}

func (a assignmentStore) Save(_ context.Context, assignment *model.FlagAssignment) error {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	k := assignmentKey{assignment.FeatureID, assignment.EnvironmentID}
	if cur, ok := a.s.assignments[k]; ok && cur.ID != assignment.ID {
		return conflict("flag assignment")
	}
	assignment.UpdatedAt = a.s.now()
	cp := *assignment
	a.s.assignments[k] = &cp
	return nil
}

func (a assignmentStore) ListAll(context.Context) ([]*model.FlagAssignment, error) {
	a.s.mu.RLock()
	defer a.s.mu.RUnlock()
	out := make([]*model.FlagAssignment, 0, len(a.s.assignments))
	for _, v := range a.s.assignments {
		cp := *v
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

type overrideStore struct{ s *Store }

func (o overrideStore) Get(_ context.Context, featureID, environmentID, userID string) (*model.UserOverride, error) {
	o.s.mu.RLock()
	defer o.s.mu.RUnlock()
	if v, ok := o.s.overrides[overrideKey{featureID, environmentID, userID}]; ok {
		cp := *v
		return &cp, nil
	}
	return nil, nil
}

func (o overrideStore) Upsert(_ context.Context, override *model.UserOverride) (*model.UserOverride, error) {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()
	k := overrideKey{override.FeatureID, override.EnvironmentID, override.UserID}
	now := o.s.now()
	if cur, ok := o.s.overrides[k]; ok {
		cur.State = override.State
		cur.UpdatedAt = now
		cp := *cur
		return &cp, nil
	}
	ensureID(&override.ID)
	override.CreatedAt, override.UpdatedAt = now, now
	cp := *override
	o.s.overrides[k] = &cp
	out := cp
	return &out, nil
}

func (o overrideStore) Delete(_ context.Context, featureID, environmentID, userID string) (bool, error) {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()
	k := overrideKey{featureID, environmentID, userID}
	if _, ok := o.s.overrides[k]; !ok {
		return false, nil
	}
	delete(o.s.overrides, k)
	return true, nil
}

type auditStore struct{ s *Store }

func (a auditStore) Create(_ context.Context, entry *model.AuditLog) error {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	ensureID(&entry.ID)
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = a.s.now()
	}
	a.s.audits = append(a.s.audits, *entry)
	return nil
}

func (a auditStore) List(_ context.Context, filter repository.AuditFilter) ([]model.AuditLog, error) {
	a.s.mu.RLock()
	defer a.s.mu.RUnlock()
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	out := []model.AuditLog{}
	// newest first
	for i := len(a.s.audits) - 1; i >= 0 && len(out) < limit; i-- {
		e := a.s.audits[i]
		if filter.FeatureKey != "" && (e.FeatureKey == nil || *e.FeatureKey != filter.FeatureKey) {
			continue
		}
		if filter.EnvironmentKey != "" && (e.EnvironmentKey == nil || *e.EnvironmentKey != filter.EnvironmentKey) {
			continue
		}
		if filter.Action != "" && e.Action != filter.Action {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (a auditStore) PingContext(context.Context) error { return nil }

type endpointStore struct{ s *Store }

func (e endpointStore) Create(_ context.Context, endpoint *model.WebhookEndpoint) error {
	e.s.mu.Lock()
	defer e.s.mu.Unlock()
	ensureID(&endpoint.ID)
	if _, ok := e.s.endpoints[endpoint.ID]; ok {
		return conflict("webhook endpoint")
	}
	now := e.s.now()
	endpoint.CreatedAt, endpoint.UpdatedAt = now, now
	cp := *endpoint
	cp.EventTypes = slices.Clone(endpoint.EventTypes)
	e.s.endpoints[endpoint.ID] = &cp
	return nil
}

func (e endpointStore) GetByID(_ context.Context, id string) (*model.WebhookEndpoint, error) {
	e.s.mu.RLock()
	defer e.s.mu.RUnlock()
	if v, ok := e.s.endpoints[id]; ok {
		cp := *v
		return &cp, nil
	}
	return nil, nil
}

func (e endpointStore) list(onlyActive bool) []*model.WebhookEndpoint {
	e.s.mu.RLock()
	defer e.s.mu.RUnlock()
	out := []*model.WebhookEndpoint{}
	for _, v := range e.s.endpoints {
		if onlyActive && !v.IsActive {
			continue
		}
		cp := *v
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (e endpointStore) List(context.Context) ([]*model.WebhookEndpoint, error) {
	return e.list(false), nil
}

func (e endpointStore) ListActive(context.Context) ([]*model.WebhookEndpoint, error) {
	return e.list(true), nil
}

func (e endpointStore) SetActive(_ context.Context, id string, active bool) (bool, error) {
	e.s.mu.Lock()
	defer e.s.mu.Unlock()
	v, ok := e.s.endpoints[id]
	if !ok {
		return false, nil
	}
	v.IsActive = active
	v.UpdatedAt = e.s.now()
	return true, nil
}

func (e endpointStore) Delete(_ context.Context, id string) (bool, error) {
	e.s.mu.Lock()
	defer e.s.mu.Unlock()
	if _, ok := e.s.endpoints[id]; !ok {
		return false, nil
	}
	delete(e.s.endpoints, id)
	return true, nil
}

type deliveryStore struct{ s *Store }

func (d deliveryStore) Create(_ context.Context, delivery *model.WebhookDelivery) error {
	d.s.mu.Lock()
	defer d.s.mu.Unlock()
	ensureID(&delivery.ID)
	if delivery.CreatedAt.IsZero() {
		delivery.CreatedAt = d.s.now()
	}
	cp := *delivery
	cp.Payload = slices.Clone(delivery.Payload)
	d.s.deliveries = append(d.s.deliveries, cp)
	return nil
}

func (d deliveryStore) ListByEndpoint(_ context.Context, endpointID string, limit int) ([]model.WebhookDelivery, error) {
	d.s.mu.RLock()
	defer d.s.mu.RUnlock()
	if limit <= 0 {
		limit = 50
	}
	out := []model.WebhookDelivery{}
	for i := len(d.s.deliveries) - 1; i >= 0 && len(out) < limit; i-- {
		if d.s.deliveries[i].EndpointID == endpointID {
			out = append(out, d.s.deliveries[i])
		}
	}
	return out, nil
}

// AllDeliveries returns the whole ledger in insertion order.
func (s *Store) AllDeliveries() []model.WebhookDelivery {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.deliveries)
}

type outboxStore struct{ s *Store }

func (o outboxStore) Create(_ context.Context, task *model.OutboxTask) error {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()
	o.s.outboxSeq++
	task.ID = o.s.outboxSeq
	now := o.s.now()
	task.CreatedAt, task.UpdatedAt = now, now
	o.s.outbox = append(o.s.outbox, *task)
	return nil
}

func (o outboxStore) FetchPending(_ context.Context, limit int) ([]model.OutboxTask, error) {
	o.s.mu.RLock()
	defer o.s.mu.RUnlock()
	out := []model.OutboxTask{}
	for _, t := range o.s.outbox {
		if len(out) >= limit {
			break
		}
		if t.Status == model.OutboxPending {
			out = append(out, t)
		}
	}
	return out, nil
}

func (o outboxStore) UpdateStatus(_ context.Context, id int64, status model.OutboxStatus, retryCount int) error {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()
	for i := range o.s.outbox {
		if o.s.outbox[i].ID == id {
			o.s.outbox[i].Status = status
			o.s.outbox[i].RetryCount = retryCount
			o.s.outbox[i].UpdatedAt = o.s.now()
			return nil
		}
	}
	return nil
}
