// Package server hosts the Fiber HTTP service used to browse the page cache.
// It attaches the request-ID and recover middlewares and exposes the /page
// endpoint that resolves a wiki URL through the shared resolver. Diagnostics
// under /-/ are registered by the routes subpackage so the core router keeps
// a narrow set of explicit dependencies.
package server
