// Package store persists the server-side state of refresh tokens.
//
// A refresh token is redeemable only while its jti is registered here and its
// recorded expiry lies in the future. Rotation and revocation delete records;
// reuse detection relies on deleted or expired records reading as inactive.
//
// # Adapters
//
//   - [MemoryStore]: in-process map with a per-subject index.
//   - [RedisStore]: go-redis hash per jti plus a subject set. Lua scripts make
//     [Store.RevokeIfActive] and [Store.RevokeAllForSubject] atomic.
//   - [PostgresStore]: database/sql over the pgx driver; a conditional DELETE
//     is the compare-and-delete.
//
// # What this package must NOT do
//
//   - Parse or verify tokens.
//   - Schedule background work. Expired records stay until a caller invokes
//     [Sweeper.PurgeExpired] or the backend expires them.
package store
