// Package backend defines the registry entry for one routable endpoint.
// It combines static routing configuration (host, priority, optional path
// prefix and api-key) with the mutable throttling state the balancer
// maintains per endpoint: the throttling flag, the retry-after deadline,
// and the successful call counter used as a selection tie-break.
package backend
