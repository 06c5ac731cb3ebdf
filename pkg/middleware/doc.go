// Package middleware limits the request rate of API clients.
//
// RateLimiter keeps token buckets in process memory. DistributedRateLimiter shares fixed
// window counters through Redis between server instances. RateLimit adapts either to a
// gorilla/mux middleware that keys clients by address, sets the X-RateLimit-* headers and
// answers 429 with Retry-After once the limit is reached.
package middleware
