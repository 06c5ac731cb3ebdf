// Package model holds the read-only structures compared by apidelta: baselines made of
// versioned components, their package visibility rules and the types they declare.
//
// Type lookups that miss return nil rather than an error, so callers can treat an absent
// type as an addition or a removal.
package model
