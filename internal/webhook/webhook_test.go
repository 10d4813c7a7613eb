package webhook

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"rollouthq/internal/model"
	"rollouthq/internal/repository/memstore"
	v1 "rollouthq/pkg/api/v1"
	"rollouthq/pkg/constraints"
	"rollouthq/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	logger.InitLogger("test")
}

const testSecret = "whsec-test-0001"

func testEvent(eventType constraints.AuditAction) v1.WebhookEvent {
	return v1.WebhookEvent{
		ID:        "evt-" + string(eventType),
		Type:      string(eventType),
		CreatedAt: v1.FormatEventTime(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)),
		Actor:     v1.EventActor{ID: "admin-1", Email: "admin@example.com", Role: constraints.RoleAdmin},
		Data:      map[string]any{"featureKey": "new-checkout", "environmentKey": "prod", "state": "ON"},
	}
}

func addEndpoint(t *testing.T, store *memstore.Store, url string, types ...constraints.AuditAction) *model.WebhookEndpoint {
	t.Helper()
	ep := &model.WebhookEndpoint{Name: "receiver", URL: url, Secret: testSecret, EventTypes: types, IsActive: true}
	require.NoError(t, store.Endpoints().Create(context.Background(), ep))
	return ep
}

func newTestDispatcher(store *memstore.Store, delays []time.Duration, opts ...Option) (*Dispatcher, *RetryScheduler) {
	retries := NewRetryScheduler(nil)
	d := NewDispatcher(store.Endpoints(), store.Deliveries(), retries, nil, Config{
		RequestTimeout: time.Second,
		RetryDelays:    delays,
	}, opts...)
	return d, retries
}

type received struct {
	header http.Header
	body   []byte
}

func recordingServer(t *testing.T, status int) (*httptest.Server, func() []received) {
	t.Helper()
	var mu sync.Mutex
	var got []received
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		got = append(got, received{header: r.Header.Clone(), body: body})
		mu.Unlock()
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, func() []received {
		mu.Lock()
		defer mu.Unlock()
		return append([]received(nil), got...)
	}
}

func TestSignAndVerify(t *testing.T) {
	body := []byte(`{"id":"evt-1"}`)
	header := SignatureHeader(testSecret, body)

	assert.Regexp(t, `^sha256=[0-9a-f]{64}$`, header)
	assert.NoError(t, Verify(testSecret, body, header))
	assert.ErrorIs(t, Verify("other-secret", body, header), ErrSignatureMismatch)
	assert.ErrorIs(t, Verify(testSecret, []byte(`{"id":"evt-2"}`), header), ErrSignatureMismatch)
	assert.ErrorIs(t, Verify(testSecret, body, Sign(testSecret, body)), ErrSignatureMismatch, "missing prefix")
}

func TestDispatch_SignedRequestAndSuccessRow(t *testing.T) {
	store := memstore.New()
	srv, calls := recordingServer(t, http.StatusOK)
	ep := addEndpoint(t, store, srv.URL)

	fixed := time.UnixMilli(1709294400123)
	d, retries := newTestDispatcher(store, DefaultRetryDelays, WithClock(func() time.Time { return fixed }))

	ev := testEvent(constraints.ActionFlagSetState)
	require.NoError(t, d.Dispatch(context.Background(), ev))

	got := calls()
	require.Len(t, got, 1)
	h := got[0].header
	assert.Equal(t, "application/json", h.Get("Content-Type"))
	assert.Equal(t, "FLAG_SET_STATE", h.Get(v1.HeaderEvent))
	assert.Equal(t, strconv.FormatInt(fixed.UnixMilli(), 10), h.Get(v1.HeaderTimestamp))
	assert.NoError(t, Verify(testSecret, got[0].body, h.Get(v1.HeaderSignature)))

	want, err := ev.Body()
	require.NoError(t, err)
	assert.Equal(t, want, got[0].body)

	rows := store.AllDeliveries()
	require.Len(t, rows, 1)
	assert.Equal(t, constraints.DeliverySuccess, rows[0].Status)
	require.NotNil(t, rows[0].ResponseCode)
	assert.Equal(t, 200, *rows[0].ResponseCode)
	assert.Nil(t, rows[0].Error)
	assert.Equal(t, 0, rows[0].Attempt)
	assert.Equal(t, ep.ID, rows[0].EndpointID)
	assert.Equal(t, want, []byte(rows[0].Payload))
	assert.Zero(t, retries.Pending(RetryKey{EventID: ev.ID, EndpointID: ep.ID}))
}

func TestDispatch_Non2xxIsTerminal(t *testing.T) {
	store := memstore.New()
	srv, calls := recordingServer(t, http.StatusInternalServerError)
	ep := addEndpoint(t, store, srv.URL)
	d, retries := newTestDispatcher(store, []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 30 * time.Millisecond})

	ev := testEvent(constraints.ActionFlagSetState)
	require.NoError(t, d.Dispatch(context.Background(), ev))

	assert.Zero(t, retries.Pending(RetryKey{EventID: ev.ID, EndpointID: ep.ID}))
	time.Sleep(80 * time.Millisecond)

	assert.Len(t, calls(), 1)
	rows := store.AllDeliveries()
	require.Len(t, rows, 1)
	assert.Equal(t, constraints.DeliveryFailed, rows[0].Status)
	require.NotNil(t, rows[0].ResponseCode)
	assert.Equal(t, 500, *rows[0].ResponseCode)
	require.NotNil(t, rows[0].Error)
	assert.Equal(t, "Non-2xx: 500", *rows[0].Error)
}

func TestDispatch_TimeoutRetriesThreeTimes(t *testing.T) {
	store := memstore.New()
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer srv.Close()
	defer close(release)

	ep := addEndpoint(t, store, srv.URL)
	retries := NewRetryScheduler(nil)
	defer retries.Stop()
	d := NewDispatcher(store.Endpoints(), store.Deliveries(), retries, nil, Config{
		RequestTimeout: 50 * time.Millisecond,
		RetryDelays:    []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 30 * time.Millisecond},
	})

	ev := testEvent(constraints.ActionFlagSetState)
	require.NoError(t, d.Dispatch(context.Background(), ev))

	require.Eventually(t, func() bool { return len(store.AllDeliveries()) == 4 }, 3*time.Second, 10*time.Millisecond)

	rows := store.AllDeliveries()
	attempts := make([]int, 0, len(rows))
	for _, r := range rows {
		assert.Equal(t, constraints.DeliveryFailed, r.Status)
		assert.Nil(t, r.ResponseCode)
		require.NotNil(t, r.Error)
		assert.Contains(t, *r.Error, "context deadline exceeded")
		attempts = append(attempts, r.Attempt)
	}
	assert.ElementsMatch(t, []int{0, 1, 2, 3}, attempts)
	assert.Zero(t, retries.Pending(RetryKey{EventID: ev.ID, EndpointID: ep.ID}))
}

func TestDispatch_TransportFailureRetriesThreeTimes(t *testing.T) {
	store := memstore.New()
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	ep := addEndpoint(t, store, url)
	d, retries := newTestDispatcher(store, []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 30 * time.Millisecond})

	ev := testEvent(constraints.ActionOverrideUpsert)
	require.NoError(t, d.Dispatch(context.Background(), ev))

	require.Eventually(t, func() bool { return len(store.AllDeliveries()) == 4 }, 2*time.Second, 5*time.Millisecond)

	rows := store.AllDeliveries()
	attempts := make([]int, 0, len(rows))
	for _, r := range rows {
		assert.Equal(t, constraints.DeliveryFailed, r.Status)
		assert.Nil(t, r.ResponseCode)
		require.NotNil(t, r.Error)
		assert.NotEmpty(t, *r.Error)
		attempts = append(attempts, r.Attempt)
	}
	assert.ElementsMatch(t, []int{0, 1, 2, 3}, attempts)
	assert.Zero(t, retries.Pending(RetryKey{EventID: ev.ID, EndpointID: ep.ID}))
}

// flakyTransport fails the first n requests at the transport level, then answers 200.
type flakyTransport struct {
	failures int32
	calls    atomic.Int32
}

func (f *flakyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	n := f.calls.Add(1)
	if n <= f.failures {
		return nil, errors.New("connection reset by peer")
	}
	return &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(http.NoBody),
		Header:     make(http.Header),
		Request:    req,
	}, nil
}

func TestDispatch_ResponseOnRetryCancelsRemaining(t *testing.T) {
	store := memstore.New()
	ep := addEndpoint(t, store, "http://receiver.invalid/hook")
	transport := &flakyTransport{failures: 2}
	d, retries := newTestDispatcher(store,
		[]time.Duration{10 * time.Millisecond, 40 * time.Millisecond, 250 * time.Millisecond},
		WithHTTPClient(&http.Client{Transport: transport}),
	)

	ev := testEvent(constraints.ActionFlagSetState)
	require.NoError(t, d.Dispatch(context.Background(), ev))

	key := RetryKey{EventID: ev.ID, EndpointID: ep.ID}
	require.Eventually(t, func() bool {
		return len(store.AllDeliveries()) == 3 && retries.Pending(key) == 0
	}, time.Second, 5*time.Millisecond)

	time.Sleep(350 * time.Millisecond)
	rows := store.AllDeliveries()
	require.Len(t, rows, 3)
	assert.Equal(t, int32(3), transport.calls.Load())
	assert.Equal(t, constraints.DeliverySuccess, rows[2].Status)
	assert.Equal(t, 2, rows[2].Attempt)
}

func TestDispatch_SubscriptionFilter(t *testing.T) {
	store := memstore.New()
	onlyDelete, deleteCalls := recordingServer(t, http.StatusOK)
	all, allCalls := recordingServer(t, http.StatusOK)
	inactive, inactiveCalls := recordingServer(t, http.StatusOK)

	addEndpoint(t, store, onlyDelete.URL, constraints.ActionOverrideDelete)
	addEndpoint(t, store, all.URL)
	off := addEndpoint(t, store, inactive.URL)
	_, err := store.Endpoints().SetActive(context.Background(), off.ID, false)
	require.NoError(t, err)

	d, _ := newTestDispatcher(store, nil)
	require.NoError(t, d.Dispatch(context.Background(), testEvent(constraints.ActionFlagSetState)))

	assert.Empty(t, deleteCalls())
	assert.Len(t, allCalls(), 1)
	assert.Empty(t, inactiveCalls())
	assert.Len(t, store.AllDeliveries(), 1)
}

func TestDispatch_SameBytesForEveryEndpoint(t *testing.T) {
	store := memstore.New()
	a, aCalls := recordingServer(t, http.StatusOK)
	b, bCalls := recordingServer(t, http.StatusAccepted)
	addEndpoint(t, store, a.URL)
	addEndpoint(t, store, b.URL)

	d, _ := newTestDispatcher(store, nil)
	require.NoError(t, d.Dispatch(context.Background(), testEvent(constraints.ActionOverrideDelete)))

	require.Len(t, aCalls(), 1)
	require.Len(t, bCalls(), 1)
	assert.Equal(t, aCalls()[0].body, bCalls()[0].body)
	assert.Equal(t, aCalls()[0].header.Get(v1.HeaderTimestamp), bCalls()[0].header.Get(v1.HeaderTimestamp))
	for _, row := range store.AllDeliveries() {
		assert.Equal(t, aCalls()[0].body, []byte(row.Payload))
	}
}

func TestDispatchTo_IgnoresSubscription(t *testing.T) {
	store := memstore.New()
	srv, calls := recordingServer(t, http.StatusOK)
	ep := addEndpoint(t, store, srv.URL, constraints.ActionWebhookDelete)

	d, _ := newTestDispatcher(store, nil)
	require.NoError(t, d.DispatchTo(context.Background(), ep, testEvent(constraints.ActionFlagSetState)))
	assert.Len(t, calls(), 1)
}

func TestCancelEndpointStopsPendingRetries(t *testing.T) {
	store := memstore.New()
	ep := addEndpoint(t, store, "http://receiver.invalid/hook")
	d, retries := newTestDispatcher(store, []time.Duration{time.Hour, 2 * time.Hour},
		WithHTTPClient(&http.Client{Transport: &flakyTransport{failures: 100}}),
	)

	ev := testEvent(constraints.ActionFlagSetState)
	require.NoError(t, d.Dispatch(context.Background(), ev))
	key := RetryKey{EventID: ev.ID, EndpointID: ep.ID}
	require.Equal(t, 2, retries.Pending(key))

	assert.Equal(t, 2, d.CancelEndpoint(ep.ID))
	assert.Zero(t, retries.Pending(key))
}

func TestRetryScheduler_StopRefusesNewWork(t *testing.T) {
	s := NewRetryScheduler(nil)
	var fired atomic.Int32
	key := RetryKey{EventID: "e", EndpointID: "x"}

	s.Schedule(key, []time.Duration{time.Hour}, func(int) { fired.Add(1) })
	s.Stop()
	assert.Zero(t, s.Pending(key))

	s.Schedule(key, []time.Duration{time.Millisecond}, func(int) { fired.Add(1) })
	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, fired.Load())
}

func TestPool_DropsWhenFull(t *testing.T) {
	p := NewPool(1, 1)
	block := make(chan struct{})
	started := make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	require.True(t, p.Submit(func(context.Context) {
		close(started)
		<-block
	}))
	<-started
	assert.True(t, p.Submit(func(context.Context) {}), "queue slot free")
	assert.False(t, p.Submit(func(context.Context) {}), "queue full")

	close(block)
	cancel()
	require.NoError(t, <-done)
	assert.False(t, p.Submit(func(context.Context) {}), "closed pool")
}

func TestAsyncPublisher_DispatchesOnPool(t *testing.T) {
	store := memstore.New()
	srv, calls := recordingServer(t, http.StatusOK)
	addEndpoint(t, store, srv.URL)
	d, _ := newTestDispatcher(store, nil)

	pool := NewPool(2, 8)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- pool.Run(ctx) }()

	pub := NewAsyncPublisher(pool, d, nil)
	assert.True(t, pub.Publish(testEvent(constraints.ActionFeatureCreate)))

	require.Eventually(t, func() bool { return len(calls()) == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
}
