package webhook

import (
	"sync"
	"time"

	"rollouthq/internal/metrics"
)

// RetryKey identifies the retries of one event towards one endpoint.
type RetryKey struct {
	EventID    string
	EndpointID string
}

type pendingRetry struct {
	attempt int
	timer   *time.Timer
}

// RetryScheduler holds retry timers keyed by (event, endpoint) so they can be cancelled
// when a response arrives or the endpoint goes away.
type RetryScheduler struct {
	mu      sync.Mutex
	pending map[RetryKey][]pendingRetry
	stopped bool
	obs     metrics.WebhookObserver
}

func NewRetryScheduler(obs metrics.WebhookObserver) *RetryScheduler {
	if obs == nil {
		obs = metrics.Nop{}
	}
	return &RetryScheduler{
		pending: make(map[RetryKey][]pendingRetry),
		obs:     obs,
	}
}

// Schedule arms one timer per delay, all measured from now. Attempt numbers start at 1.
// fire runs on its own goroutine and is skipped if the retry was cancelled meanwhile.
func (s *RetryScheduler) Schedule(key RetryKey, delays []time.Duration, fire func(attempt int)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	for i, delay := range delays {
		attempt := i + 1
		t := time.AfterFunc(delay, func() {
			if !s.take(key, attempt) {
				return
			}
			fire(attempt)
		})
		s.pending[key] = append(s.pending[key], pendingRetry{attempt: attempt, timer: t})
		s.obs.RecordRetryScheduled()
	}
}

// take removes the retry from the pending set and reports whether it was still there.
func (s *RetryScheduler) take(key RetryKey, attempt int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.pending[key]
	for i, p := range list {
		if p.attempt == attempt {
			list = append(list[:i], list[i+1:]...)
			if len(list) == 0 {
				delete(s.pending, key)
			} else {
				s.pending[key] = list
			}
			return true
		}
	}
	return false
}

// Cancel stops every pending retry for key and returns how many were stopped.
func (s *RetryScheduler) Cancel(key RetryKey) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelLocked(key)
}

// CancelEndpoint stops every pending retry towards the endpoint.
func (s *RetryScheduler) CancelEndpoint(endpointID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for key := range s.pending {
		if key.EndpointID == endpointID {
			n += s.cancelLocked(key)
		}
	}
	return n
}

func (s *RetryScheduler) cancelLocked(key RetryKey) int {
	list := s.pending[key]
	for _, p := range list {
		p.timer.Stop()
	}
	delete(s.pending, key)
	if len(list) > 0 {
		s.obs.RecordRetryCancelled(len(list))
	}
	return len(list)
}

// Pending returns the number of armed retries for key.
func (s *RetryScheduler) Pending(key RetryKey) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending[key])
}

// Stop cancels everything and refuses further schedules. It returns the
// number of retries that were still armed.
func (s *RetryScheduler) Stop() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	n := 0
	for key := range s.pending {
		n += s.cancelLocked(key)
	}
	return n
}
