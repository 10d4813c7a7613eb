package memstore

import (
	"context"
	"strings"
	"sync"

	"rollouthq/internal/repository"
	v1 "rollouthq/pkg/api/v1"
)

// Snapshots is an in-memory stand-in for the etcd mirror with the same
// only-if-newer semantics.
type Snapshots struct {
	mu       sync.Mutex
	data     map[string]v1.FlagSnapshot
	revision int64
	// Err, when set, is returned by every call.
	Err error
}

var _ repository.SnapshotInterface = (*Snapshots)(nil)

func NewSnapshots() *Snapshots {
	return &Snapshots{data: make(map[string]v1.FlagSnapshot)}
}

func (m *Snapshots) GetSnapshot(_ context.Context, key string) (*v1.FlagSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	snap, ok := m.data[key]
	if !ok {
		return nil, repository.ErrSnapshotNotFound
	}
	return &snap, nil
}

func (m *Snapshots) SaveSnapshotIfNewer(_ context.Context, key string, snap v1.FlagSnapshot) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return 0, m.Err
	}
	if cur, ok := m.data[key]; ok && cur.Version >= snap.Version {
		return cur.Revision, nil
	}
	m.revision++
	snap.Revision = m.revision
	m.data[key] = snap
	return m.revision, nil
}

func (m *Snapshots) ListSnapshots(_ context.Context, prefix string) (map[string]v1.FlagSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	out := make(map[string]v1.FlagSnapshot)
	for k, v := range m.data {
		if strings.HasPrefix(k, prefix) {
			out[k] = v
		}
	}
	return out, nil
}

// Put stores a snapshot unconditionally.
func (m *Snapshots) Put(key string, snap v1.FlagSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.revision++
	snap.Revision = m.revision
	m.data[key] = snap
}

func (m *Snapshots) Health(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Err
}
