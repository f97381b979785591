package provider

import (
	"time"

	"github.com/mediascout/go-mediascout/reqcoord"
)

// Outcome classifies a provider response.
type Outcome int

const (
	// Failed means the request did not produce data.
	Failed Outcome = iota
	// NotFound means the provider answered but had nothing for the request.
	NotFound
	// Found means the provider returned a result.
	Found
)

func (o Outcome) String() string {
	switch o {
	case Failed:
		return "failed"
	case NotFound:
		return "not found"
	case Found:
		return "found"
	}
	return "unknown"
}

// Classify returns the outcome of resp, using found to tell a result from an
// empty answer.
func Classify[T any](resp reqcoord.Response[T], found func(T) bool) Outcome {
	if resp.Failed() {
		return Failed
	}
	if found(resp.Data) {
		return Found
	}
	return NotFound
}

// FoundTTL returns a TTL strategy that keeps found results for the request
// TTL and empty results for negative.
func FoundTTL[T any](found func(T) bool, negative time.Duration) func(T, time.Duration) time.Duration {
	return func(data T, ttl time.Duration) time.Duration {
		if found(data) {
			return ttl
		}
		return negative
	}
}

// NonEmpty reports whether s has elements.
func NonEmpty[E any](s []E) bool {
	return len(s) != 0
}

// NonNil reports whether p points to a value.
func NonNil[V any](p *V) bool {
	return p != nil
}
