// Package source provides external stores that plug into selector.Instance.
//
// Value is an in-memory store with synchronous notification. Funcs adapts
// plain functions. Poller turns a fetch-only backend (a file, an S3 object,
// a SQL query) into a store by fetching on an interval and publishing a new
// snapshot only when the backend's fingerprint changes, so unchanged data
// keeps its snapshot identity and memoized selections survive.
package source
