// Package thttp is a collection of HTTP helpers: a logging client transport,
// bearer token handling, middleware, and a server wrapper with graceful
// shutdown.
package thttp
