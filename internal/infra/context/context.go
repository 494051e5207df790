// Package context carries request-scoped values (request id, authenticated user)
// between transport middleware, services and the logging handlers.
package context

type contextKey string
