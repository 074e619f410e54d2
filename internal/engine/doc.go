// Package engine implements the profile sync engine.
//
// The engine keeps the locally cached profile consistent with the remote
// profile authority while the user edits faster than the network confirms,
// while login and logout change which side is authoritative, and across
// form variants that watch different field sets.
//
// ARCHITECTURE:
//
// Single-Writer Event Loop:
// Every public operation enqueues an event. Engine.Run dequeues events one
// at a time and is the only goroutine that touches engine state, commits to
// the profile store, or notifies. Network calls run in goroutines and
// report back as completion events, so the only suspension points are the
// network calls themselves and the debounce timer.
//
// Merge policy is asymmetric on purpose:
//   - Load merges remote over local: a remote field wins when present and
//     non-empty, otherwise the local value is kept.
//   - Save writes local over remote: the draft is committed locally before
//     the request is issued and is never rolled back.
//
// A load and a save that race are not arbitrated; whichever completes last
// wins.
//
// Cancellation:
// Each network call gets a context from context.WithCancelCause. Teardown,
// logout and supersession cancel it with ErrTornDown, ErrLoggedOut or
// ErrSuperseded. A call cancelled that way never writes to the store and
// never notifies. Only genuine transport failures reach the user.
//
// Auto-sync:
// Edits to watched fields restart a fixed debounce window under a new
// generation. Only the timer and request of the current generation may
// commit, stamp lastSyncedAt or report failure.
package engine
