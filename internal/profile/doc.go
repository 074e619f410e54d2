// Package profile holds the locally cached user profile and the declarative
// field schema that every edit form is built from.
//
// A Variant lists the fields a form shows. Normalization, validation, the
// load merge and the save payload are all derived from it, so form
// differences stay presentation-only.
//
// Store is the single process-wide record. It is opened once, injected
// where needed, and persisted under a versioned key on every change.
package profile
