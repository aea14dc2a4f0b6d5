// Package tokens issues and verifies the access/refresh token pair and owns
// the two per-user session cache entries:
//
//	refresh_token:<userId>  the single live refresh token (TTL 24x access TTL)
//	user_session:<userId>   the claims snapshot (TTL = access TTL)
//
// Refreshing requires the presented token to equal the cached one, so each
// refresh rotates the previous token out. Logout deletes both entries; access
// tokens already handed out stay valid until they expire.
//
// The session snapshot is not consulted on the request path here: access
// tokens are verified from their signature alone and profile reads go to the
// store. It is kept for processes that share the cache and want a caller's
// current claims without a database round trip; Session reads it back.
//
// Any write that changes a user's roles, organization, type or active flag
// must call InvalidateSession.
package tokens
