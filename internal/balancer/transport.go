package balancer

import (
	"net/http"
)

var _ http.RoundTripper = (*Balancer)(nil)

// RoundTrip implements http.RoundTripper, so a Balancer plugs directly into
// an http.Client as its Transport. The call blocks until a backend answers
// or every backend is throttled.
func (lb *Balancer) RoundTrip(req *http.Request) (*http.Response, error) {
	return lb.handle(req)
}
