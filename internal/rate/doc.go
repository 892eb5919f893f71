// Package rate provides a Redis-backed fixed-window limiter for failed login
// attempts.
//
// # Window semantics
//
// Fixed-window counters: INCR + conditional EXPIRE on first hit. Keys live
// under the configured prefix:
//   - <prefix>:al:<username>: failed logins per user
//   - <prefix>:ali:<ip>: failed logins per client IP
package rate
