package backend

import (
	"sync"
	"time"
)

// Backend represents one routable endpoint with a static priority and
// mutable throttling state. A lower priority value means higher precedence.
type Backend struct {
	host     string
	priority int
	path     string
	apiKey   string

	mutex               sync.Mutex
	isThrottling        bool
	retryAfter          time.Time
	successfulCallCount int
}

// Host returns the network authority requests are routed to.
func (b *Backend) Host() string {
	return b.host
}

// Priority returns the backend's precedence. Priority is fixed for the
// lifetime of the Backend.
func (b *Backend) Priority() int {
	return b.priority
}

// Path returns the URL path prefix override, or "" when the original
// request path is kept as-is.
func (b *Backend) Path() string {
	return b.path
}

// APIKey returns the static credential placed in the api-key header on
// rewrite, or "" when the caller-supplied credential is left untouched.
func (b *Backend) APIKey() string {
	return b.apiKey
}

// IsThrottling returns true while the backend is excluded from selection.
func (b *Backend) IsThrottling() bool {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.isThrottling
}

// RetryAfter returns the instant at which throttling expires. The value is
// meaningful only while IsThrottling is true; otherwise it is the zero time.
func (b *Backend) RetryAfter() time.Time {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.retryAfter
}

// SuccessfulCalls returns the number of responses classified as success.
func (b *Backend) SuccessfulCalls() int {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.successfulCallCount
}

// MarkThrottled excludes the backend from selection until the given instant.
func (b *Backend) MarkThrottled(until time.Time) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	b.isThrottling = true
	b.retryAfter = until
}

// ClearThrottled makes the backend selectable again and resets its
// retry-after deadline. Returns true if the backend was throttling.
func (b *Backend) ClearThrottled() (changed bool) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if !b.isThrottling {
		return false
	}

	b.isThrottling = false
	b.retryAfter = time.Time{}
	return true
}

// ExpireThrottle clears the throttle if its deadline has passed relative to
// now. Returns true when the throttle was cleared.
func (b *Backend) ExpireThrottle(now time.Time) bool {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if !b.isThrottling || now.Before(b.retryAfter) {
		return false
	}

	b.isThrottling = false
	b.retryAfter = time.Time{}
	return true
}

// IncrementSuccess records one successful call.
func (b *Backend) IncrementSuccess() {
	b.mutex.Lock()
	b.successfulCallCount++
	b.mutex.Unlock()
}

// New creates a Backend for the given host and priority. The backend starts
// selectable, with no throttle deadline and a zero success count. No
// validation is applied to host or priority; duplicates and negative
// priorities are accepted as configured.
func New(host string, priority int) *Backend {
	return &Backend{
		host:     host,
		priority: priority,
	}
}

// NewWithCredentials creates a Backend that additionally overrides the URL
// path prefix and carries a static api-key credential. Either field may be
// empty to keep the corresponding request value unmodified.
func NewWithCredentials(host string, priority int, path string, apiKey string) *Backend {
	return &Backend{
		host:     host,
		priority: priority,
		path:     path,
		apiKey:   apiKey,
	}
}
