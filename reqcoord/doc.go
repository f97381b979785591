// Package reqcoord coordinates provider requests through a shared cache, an
// in-flight request registry and a bounded priority queue.
//
// Every provider call goes through Do. A request is answered from the cache
// when a live entry exists. Otherwise the request joins any execution already
// in flight for the same cache key, so that at most one fetch per key runs at
// a time no matter how many callers ask for it. A new execution is admitted by
// the coordinator's queue, which runs a bounded number of fetches at once and
// starts waiting fetches in priority order, oldest first among equal
// priorities.
//
// ## Response Envelope
//
// Do never returns an error and never panics. Every result is a Response
// holding the data and a Meta describing where it came from. A failed request
// has a zero Data and a non-empty Meta.Error. Failures are not cached, so the
// next request goes to the provider again. The coordinator does not retry.
//
// ## Caller Abandonment
//
// A fetch runs to completion even if the caller that started it stops
// waiting. The fetch runs with a context that keeps the caller's values but
// not its cancellation, so the result still reaches the cache and any other
// callers waiting on the same key.
package reqcoord
