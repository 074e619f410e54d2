// Package normalize canonicalizes raw profile field values against known
// domains.
//
// Every function is pure and total: any input string maps to some output
// string and nothing here returns an error. Unrecognized values degrade to
// "pass through" for open domains (levels, languages, regions) and to a
// default for closed two-valued domains. Rejection is a validation concern
// and lives with the field schema, not here.
//
// All normalizers are idempotent: f(f(x)) == f(x).
package normalize
