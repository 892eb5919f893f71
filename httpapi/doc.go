// Package httpapi exposes a jwtgate Engine over HTTP.
//
// Routes:
//
//	POST /auth/login       {"username","password"} -> token pair
//	POST /auth/refresh     {"refreshToken"}         -> rotated token pair
//	POST /auth/logout      {"refreshToken"}         -> 204
//	POST /api/logout-all   revokes every refresh token of the caller
//	GET  /api/verify       true | false
//	GET  /api/me           claims of the caller's access token
//	GET  /api/is-admin     whether the caller holds ADMIN
//	GET  /api/has-role     ?roles=A,B -> whether the caller holds any of them
//	GET  /healthz          store health
//
// Engine failures are written as {"error": "<KIND>", "message": "..."} with
// the status of the kind. Credential checking is a pluggable stub; this
// package never stores users.
package httpapi
