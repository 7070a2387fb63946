// Package strategy implements backend selection over the best available
// priority tier:
//
//   - Least Used: fewest successful calls wins, random among exact ties
//   - Random: uniform choice within the tier
//
// Both strategies skip throttling backends, first narrow the list to the
// backends sharing the lowest priority value, and return nil when every
// backend is throttling. Selection is stateless per call; there is no
// persisted round-robin cursor, since independent processes running their
// own balancer could not share it anyway.
package strategy
