// Package storage provides the key/value tiers that back the session and
// profile stores.
//
// A tier mirrors the browser Storage contract the client was designed
// around: string keys map to string values, reads report whether the key
// exists, and removal of a missing key is not an error.
//
// # Tiers
//
//   - SQLite: durable tier, a single file on disk (WAL mode)
//   - Redis: durable tier shared between machines (optional)
//   - Memory: process-scoped tier, discarded when the process exits
//
// The session store uses one durable and one process-scoped tier; which tier
// holds the credential is the "remember me" flag. The profile store only
// writes to the durable tier.
package storage
