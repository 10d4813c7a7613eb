package repository

import (
	"context"
	"errors"
	"testing"

	v1 "rollouthq/pkg/api/v1"

	pb "go.etcd.io/etcd/api/v3/etcdserverpb"
	"go.etcd.io/etcd/api/v3/mvccpb"
	clientv3 "go.etcd.io/etcd/client/v3"
)

// mockKV partially implements clientv3.KV
type mockKV struct {
	clientv3.KV
	getFn    func(ctx context.Context, key string, opts ...clientv3.OpOption) (*clientv3.GetResponse, error)
	commitFn func() (*clientv3.TxnResponse, error)
	puts     []clientv3.Op
	txns     int
}

func (m *mockKV) Get(ctx context.Context, key string, opts ...clientv3.OpOption) (*clientv3.GetResponse, error) {
	return m.getFn(ctx, key, opts...)
}

func (m *mockKV) Txn(ctx context.Context) clientv3.Txn {
	m.txns++
	return &mockTxn{kv: m}
}

func (m *mockKV) Close() error { return nil }

type mockTxn struct {
	kv  *mockKV
	ops []clientv3.Op
}

func (t *mockTxn) If(...clientv3.Cmp) clientv3.Txn { return t }
func (t *mockTxn) Then(ops ...clientv3.Op) clientv3.Txn {
	t.ops = append(t.ops, ops...)
	return t
}
func (t *mockTxn) Else(...clientv3.Op) clientv3.Txn { return t }
func (t *mockTxn) Commit() (*clientv3.TxnResponse, error) {
	resp, err := t.kv.commitFn()
	if err == nil && resp.Succeeded {
		t.kv.puts = append(t.kv.puts, t.ops...)
	}
	return resp, err
}

func stored(snap v1.FlagSnapshot, modRev int64) *clientv3.GetResponse {
	return &clientv3.GetResponse{Kvs: []*mvccpb.KeyValue{{
		Key:         []byte("k"),
		Value:       []byte(snap.ToJSON()),
		ModRevision: modRev,
	}}}
}

func TestSnapshotKey(t *testing.T) {
	if got := SnapshotKey("prod", "new-checkout"); got != "/rollouthq/prod/flags/new-checkout" {
		t.Errorf("unexpected key %q", got)
	}
}

func TestSaveSnapshotIfNewer_SkipsOlderVersion(t *testing.T) {
	kv := &mockKV{
		getFn: func(context.Context, string, ...clientv3.OpOption) (*clientv3.GetResponse, error) {
			return stored(v1.FlagSnapshot{Version: 5}, 42), nil
		},
	}
	repo := NewSnapshotRepository(kv)

	rev, err := repo.SaveSnapshotIfNewer(context.Background(), "k", v1.FlagSnapshot{Version: 4})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rev != 42 {
		t.Errorf("expected stored revision 42, got %d", rev)
	}
	if kv.txns != 0 {
		t.Errorf("expected no txn for stale write, got %d", kv.txns)
	}
}

func TestSaveSnapshotIfNewer_CreatesMissingKey(t *testing.T) {
	kv := &mockKV{
		getFn: func(context.Context, string, ...clientv3.OpOption) (*clientv3.GetResponse, error) {
			return &clientv3.GetResponse{}, nil
		},
		commitFn: func() (*clientv3.TxnResponse, error) {
			return &clientv3.TxnResponse{Succeeded: true, Header: &pb.ResponseHeader{Revision: 7}}, nil
		},
	}
	repo := NewSnapshotRepository(kv)

	rev, err := repo.SaveSnapshotIfNewer(context.Background(), "k", v1.FlagSnapshot{Version: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rev != 7 {
		t.Errorf("expected revision 7, got %d", rev)
	}
	if len(kv.puts) != 1 {
		t.Errorf("expected one put, got %d", len(kv.puts))
	}
}

func TestSaveSnapshotIfNewer_GivesUpUnderContention(t *testing.T) {
	kv := &mockKV{
		getFn: func(context.Context, string, ...clientv3.OpOption) (*clientv3.GetResponse, error) {
			return stored(v1.FlagSnapshot{Version: 1}, 3), nil
		},
		commitFn: func() (*clientv3.TxnResponse, error) {
			return &clientv3.TxnResponse{Succeeded: false, Header: &pb.ResponseHeader{}}, nil
		},
	}
	repo := NewSnapshotRepository(kv)

	if _, err := repo.SaveSnapshotIfNewer(context.Background(), "k", v1.FlagSnapshot{Version: 2}); err == nil {
		t.Fatal("expected error after repeated CAS failures")
	}
	if kv.txns != 4 {
		t.Errorf("expected 4 attempts, got %d", kv.txns)
	}
}

func TestGetSnapshot_NotFound(t *testing.T) {
	kv := &mockKV{
		getFn: func(context.Context, string, ...clientv3.OpOption) (*clientv3.GetResponse, error) {
			return &clientv3.GetResponse{}, nil
		},
	}
	_, err := NewSnapshotRepository(kv).GetSnapshot(context.Background(), "k")
	if !errors.Is(err, ErrSnapshotNotFound) {
		t.Errorf("expected ErrSnapshotNotFound, got %v", err)
	}
}
