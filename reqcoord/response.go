package reqcoord

import (
	"time"
)

// Meta describes the origin of a Response.
type Meta struct {
	// Source is the name of the provider that produced the data.
	Source string `json:"source"`
	// Timestamp is when the response was produced.
	Timestamp time.Time `json:"timestamp"`
	// Cached is true when the data was read from the cache.
	Cached bool `json:"cached,omitempty"`
	// Error is the failure message. Data is the zero value when set.
	Error string `json:"error,omitempty"`
	// URL is the provider URL the data was requested from, if the provider
	// reports it.
	URL string `json:"url,omitempty"`
}

// Response is the envelope returned for every provider request, whether it
// succeeded or not.
type Response[T any] struct {
	Data T    `json:"data"`
	Meta Meta `json:"meta"`
}

// Failed reports whether the response carries an error.
func (r Response[T]) Failed() bool {
	return r.Meta.Error != ""
}
