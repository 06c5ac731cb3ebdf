// Package report wraps a delta tree together with its analysis into a Report that can be
// stored, rendered for terminals or encoded as JSON. It also renders the visible API
// surface of a baseline as a flat listing and diffs two listings.
package report
