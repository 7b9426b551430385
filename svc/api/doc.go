// Package api exposes the billing core over HTTP.
//
// The router mounts the Stripe webhook endpoint and the caller facing /v1
// routes. Authentication happens upstream; the caller's owner is resolved
// from the X-User-ID or X-Organization-ID header unless a SelectorResolver
// is supplied. Every error body is {"error": "<message>"}.
package api
