// Package jwtgate issues, verifies and rotates signed bearer tokens for HTTP
// services: stateless HS256 access tokens plus a stateful refresh token
// lifecycle with rotation and reuse detection.
//
// Engine methods are safe to call from multiple goroutines after
// initialization through [Builder.Build].
//
// # Architecture boundaries
//
// jwtgate is the public surface. It exposes [Engine], [Builder], [Config], the
// typed [Error] taxonomy and value types ([TokenPair], [MetricsSnapshot]).
// Token encoding lives in the jwt package, persistence of refresh token ids in
// the store package, and the HTTP gate in middleware. Flow orchestration and
// audit dispatch live under internal/.
//
// # Refresh lifecycle
//
// Every refresh token carries a random jti that is registered with the store
// when the token is minted. Redeeming it through [Engine.Refresh] removes the
// record atomically and registers the replacement. Redeeming a jti that is no
// longer active is treated as theft: all refresh tokens of the subject are
// revoked and [ErrReuseDetected] is returned.
//
// # Performance contract
//
// IsValid and ValidateAccess are the hot path and never touch the store.
// Refresh performs at most one atomic store operation before issuing and one
// write after.
package jwtgate
