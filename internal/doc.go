// Package internal holds packages private to jwtgate.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//   - flows: pure-function flow orchestrators for every Engine operation
//   - rate: Redis-backed fixed-window limiter for failed logins
//
// # What this package must NOT do
//
//   - Export types that appear in the public jwtgate API.
//   - Be imported by any package outside the jwtgate module.
package internal
