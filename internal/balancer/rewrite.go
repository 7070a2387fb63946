package balancer

import (
	"net/http"

	"github.com/angeloszaimis/priority-balancer/internal/backend"
)

// rewriteRequest retargets the request at the selected backend. Only the
// URL authority, the Host header, the path prefix, and the api-key header
// are touched; method and body are left alone. originalPath and
// originalAPIKey are the values as the caller sent them: each attempt is
// rewritten from that baseline, so a backend without an override never
// inherits the previous attempt's prefix or credential.
func rewriteRequest(req *http.Request, b *backend.Backend, originalPath, originalAPIKey string) {
	req.URL.Host = b.Host()
	req.Host = b.Host()

	req.URL.Path = originalPath
	req.URL.RawPath = ""
	if b.Path() != "" {
		req.URL.Path = b.Path() + originalPath
	}

	switch {
	case b.APIKey() != "":
		req.Header.Set("api-key", b.APIKey())
	case originalAPIKey != "":
		req.Header.Set("api-key", originalAPIKey)
	default:
		req.Header.Del("api-key")
	}
}
