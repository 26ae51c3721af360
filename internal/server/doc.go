// Package server provides the HTTP routing and OAuth callback handling used by the loopback consent flow.
//
// # Router
//
// The [Router] interface defines HTTP routing with middleware support. [Middleware] wraps handlers in
// reverse order (last added executes first). [BasicRouter] uses [http.ServeMux] internally and registers
// method-qualified patterns such as "GET /callback".
//
// # OAuth callback
//
// [OAuthHandler] implements the authorization code callback. It validates the state parameter, exchanges
// the code (with any PKCE verifier options it was given), and delivers exactly one [OAuthResult]. Later
// callbacks are rejected.
//
// # Handler interface
//
// Custom handlers implement [Handler], which adds the routes a handler serves to [http.Handler].
package server
