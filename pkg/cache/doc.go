// Package cache keeps finished comparison reports so repeated comparisons of unchanged
// baselines are answered without running the comparator.
//
// Keys are derived from the fingerprints of both sides and the comparison options (see
// Key). MemoryCache is an expirable LRU; TieredCache adds a shared remote tier such as
// Redis behind it.
package cache
