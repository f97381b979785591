// Package ttlcache provides a namespaced, expiring key/value cache on top of a
// persistent datastore.
//
// Every entry is stored as a JSON document holding the cached value together
// with its creation and expiry times in epoch milliseconds:
//
//	{"value": ..., "expire": 1700000000000, "createdAt": 1699913600000}
//
// All keys written by the cache share a prefix (default "us_cache_"). The
// cache never reads or deletes keys outside of that prefix, so the same
// datastore can be shared with other users.
//
// ## Expiry
//
// Time-to-live is evaluated when an entry is read, not when it is written. An
// entry that is past its expiry time is never returned, even if it has not yet
// been removed by CleanExpired. Reading an expired entry deletes it.
//
// ## Corruption
//
// A stored value that cannot be decoded is deleted and treated as a miss. The
// caller never sees a decoding error, and the next Set for the key heals the
// cache.
//
// ## Filtered Clear
//
// Keys built by provider clients embed the provider name as an "_<name>"
// discriminator. Clear with filters deletes only the keys that contain
// "_<filter>" for any of the given filters, which allows dropping everything
// cached for one provider.
package ttlcache
