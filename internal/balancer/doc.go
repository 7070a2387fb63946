// Package balancer implements a client-side, throttling-aware transport
// over a prioritized set of interchangeable backends.
//
// On every request it lazily expires stale throttles, selects a backend
// from the best available priority tier, rewrites the request in place to
// target it, dispatches through the underlying transport, and classifies
// the response: 429 and 5xx throttle the backend and retry another one,
// 200-399 succeed, any other 4xx is returned unchanged. When every backend
// is throttled the balancer fabricates a 429 whose Retry-After header
// reports the soonest wait.
//
// The blocking (RoundTrip) and asynchronous (RoundTripAsync) entry points
// share the single per-request implementation, so both produce identical
// responses and backend state for the same sequence of backend answers.
//
// Several balancer instances in the same or different processes cannot
// coordinate; each owns its backend list outright. Distribution is
// therefore fair per process only, which is a deliberate trade against the
// locking a shared registry would need.
package balancer
