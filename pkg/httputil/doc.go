// Package httputil provides the JSON response helpers, request parsing and middleware
// shared by the HTTP handlers.
package httputil
