// Package requestid tags each HTTP request with an identifier, echoes it in
// the X-Request-ID response header and makes it available to log records
// through LoggerExtractor.
//
// Incoming identifiers are kept when they are short and made of
// [A-Za-z0-9_-]; anything else is replaced by a fresh UUID.
package requestid
