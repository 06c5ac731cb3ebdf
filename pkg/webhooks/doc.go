// Package webhooks notifies HTTP endpoints about comparison reports and baseline changes.
//
// Events are JSON documents posted in the background by a small worker pool:
//
//	{"id": "...", "type": "report.failed", "timestamp": "...", "data": {...report summary...}}
//
// Every request carries the X-Apidelta-Event and X-Apidelta-Delivery headers. Endpoints
// configured with a secret also get X-Apidelta-Signature, "sha256=" followed by the hex
// HMAC-SHA256 of the body; receivers check it with Verify.
//
// Failed attempts (network errors, 429 and 5xx) are retried with exponential backoff.
// Recent deliveries are kept in memory and listed by Deliveries.
package webhooks
