package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	v1 "rollouthq/pkg/api/v1"

	clientv3 "go.etcd.io/etcd/client/v3"
)

var ErrSnapshotNotFound = errors.New("flag snapshot not found")

// KeyPrefix is the root of every key the mirror writes.
const KeyPrefix = "/rollouthq/"

// SnapshotKey is the etcd key holding the snapshot of a feature in an environment.
func SnapshotKey(environmentKey, featureKey string) string {
	return fmt.Sprintf("%s%s/flags/%s", KeyPrefix, environmentKey, featureKey)
}

type EtcdInterface interface {
	clientv3.KV
	Close() error
}

// SnapshotInterface is the port to the flag snapshot mirror.
type SnapshotInterface interface {
	GetSnapshot(ctx context.Context, key string) (*v1.FlagSnapshot, error)
	SaveSnapshotIfNewer(ctx context.Context, key string, snap v1.FlagSnapshot) (int64, error)
	ListSnapshots(ctx context.Context, prefix string) (map[string]v1.FlagSnapshot, error)
	Health(ctx context.Context) error
}

type SnapshotRepository struct {
	client EtcdInterface
}

func NewSnapshotRepository(client EtcdInterface) *SnapshotRepository {
	return &SnapshotRepository{
		client: client,
	}
}

// GetSnapshot retrieves a snapshot by key from etcd.
func (r *SnapshotRepository) GetSnapshot(ctx context.Context, key string) (*v1.FlagSnapshot, error) {
	resp, err := r.client.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if len(resp.Kvs) == 0 {
		return nil, ErrSnapshotNotFound
	}
	kv := resp.Kvs[0]
	var snap v1.FlagSnapshot
	if err := json.Unmarshal(kv.Value, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", key, err)
	}
	snap.Revision = kv.ModRevision
	return &snap, nil
}

// SaveSnapshotIfNewer writes the snapshot only if the stored version is older (CAS).
// A stored version >= snap.Version is left untouched and its revision returned.
func (r *SnapshotRepository) SaveSnapshotIfNewer(ctx context.Context, key string, snap v1.FlagSnapshot) (int64, error) {
	const maxRetries = 3
	var retries int

	snap.Revision = 0
	val := snap.ToJSON()

	for {
		resp, err := r.client.Get(ctx, key)
		if err != nil {
			return 0, err
		}

		var cmp clientv3.Cmp
		if len(resp.Kvs) == 0 {
			cmp = clientv3.Compare(clientv3.CreateRevision(key), "=", 0)
		} else {
			kv := resp.Kvs[0]
			var current v1.FlagSnapshot
			if err := json.Unmarshal(kv.Value, &current); err != nil {
				return 0, fmt.Errorf("decode snapshot %s: %w", key, err)
			}
			if current.Version >= snap.Version {
				return kv.ModRevision, nil
			}
			cmp = clientv3.Compare(clientv3.ModRevision(key), "=", kv.ModRevision)
		}

		tResp, err := r.client.Txn(ctx).If(cmp).Then(clientv3.OpPut(key, val)).Commit()
		if err != nil {
			return 0, err
		}
		if tResp.Succeeded {
			return tResp.Header.Revision, nil
		}

		// someone wrote in between, read again
		retries++
		if retries > maxRetries {
			return 0, errors.New("max retries exceeded for SaveSnapshotIfNewer")
		}
	}
}

// ListSnapshots returns every snapshot under prefix keyed by etcd key.
// Values that fail to decode are skipped.
func (r *SnapshotRepository) ListSnapshots(ctx context.Context, prefix string) (map[string]v1.FlagSnapshot, error) {
	resp, err := r.client.Get(ctx, prefix, clientv3.WithPrefix())
	if err != nil {
		return nil, err
	}
	out := make(map[string]v1.FlagSnapshot, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		var snap v1.FlagSnapshot
		if err := json.Unmarshal(kv.Value, &snap); err != nil {
			continue
		}
		snap.Revision = kv.ModRevision
		out[string(kv.Key)] = snap
	}
	return out, nil
}

func (r *SnapshotRepository) Health(ctx context.Context) error {
	_, err := r.client.Get(ctx, "health_check")
	return err
}
