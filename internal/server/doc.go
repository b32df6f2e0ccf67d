// Package server provides the HTTP surface of the proxy: routing, middleware, sealed session cookies and handlers.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] "METHOD /path" patterns, so method mismatches answer 405
// and the matched pattern is available to middleware as [http.Request.Pattern].
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
//
// # Routes
//
//	GET /                   → landing page
//	GET /login              → 302 to Spotify's consent page, sets oauth_state
//	GET /callback           → validates state, exchanges the code, sets the token cookies
//	GET /logout             → clears the token cookies
//	GET /currently-playing  → playback snapshot JSON
//	GET /artist/{name}      → aggregated artist JSON (app credentials, rate limited)
//	GET /dashboard          → server-rendered snapshot
//	GET /metrics            → Prometheus exposition
//
// # Sessions
//
// Tokens live in HttpOnly cookies sealed by [Sealer]: the JSON payload is signed (HS256) and then encrypted
// (dir, A256GCM). A cookie that fails to open is treated as absent. [SessionRefresher] renews access tokens
// that are close to expiry.
//
// # Errors
//
// Configuration errors answer 500 in plain text. Authorization errors answer 400 or 401. Provider failures
// keep Spotify's status code. Anything else is logged and answered with a generic 500.
package server
