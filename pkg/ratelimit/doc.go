// Package ratelimit provides token-bucket rate limiting middleware for the
// foodctl dev server, keyed per client IP or per logged-in user, with a
// stricter preset for credential endpoints and automatic stale-entry cleanup.
package ratelimit
