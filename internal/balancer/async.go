package balancer

import (
	"net/http"
)

// Result carries the outcome of an asynchronous round trip.
type Result struct {
	Response *http.Response
	Err      error
}

// RoundTripAsync runs the same per-request algorithm as RoundTrip on its own
// goroutine and delivers the outcome on the returned channel. The channel is
// buffered, so the result is never lost if the caller reads late.
func (lb *Balancer) RoundTripAsync(req *http.Request) <-chan Result {
	resultCh := make(chan Result, 1)

	go func() {
		res, err := lb.handle(req)
		resultCh <- Result{Response: res, Err: err}
	}()

	return resultCh
}
