// Package flows contains the orchestration behind each Engine operation.
//
// Each Run function accepts a dependency struct and returns a result that
// carries either the produced tokens or a classified failure. The root package
// maps failure kinds onto its public error taxonomy, metrics and audit events.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import jwtgate (to avoid import cycles).
//   - Talk to a backend directly. Every side effect goes through the
//     store.Store handed in by the caller.
package flows
