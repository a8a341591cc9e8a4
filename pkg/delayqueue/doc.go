// Package delayqueue implements a topic-scoped delay queue on top of two
// independent stores: a content store holding message bodies with an
// expiration, and a visibility index (a sorted set) scoring each message id by
// the epoch millisecond at which it becomes due.
//
// # Keyspace
//
//	{prefix}:pool:{topic}:{id}   - message body, expires after TTL + pool extension
//	{prefix}:queue:{topic}       - sorted set, member = id, score = visibleAt (ms)
//
// # Push
//
// Push writes the body, then writes or overwrites the id's score. Pushing an id
// that is still pending replaces both its body and its visible time, which is
// how debounce/refresh works ("fire unless refreshed within N minutes").
// Push never returns an error; failures are logged and reported to the Observer.
//
// # Pop
//
// Pop reads up to batchSize ids scored in [0, now] in ascending order. For each
// one it fetches the body, returns it, and removes the id from both stores.
// A missing body means another consumer won the race or the body expired; the
// entry is cleaned up and skipped. A failed fetch leaves both entries in place
// so the message stays due and is retried by a later poll.
//
// # Delivery
//
// The two stores are never written together atomically. Concurrent pollers can
// both fetch a body before either removes it, so delivery is at-least-once and
// consumers must be idempotent. A body written without its index entry is
// unreachable until it expires.
package delayqueue
