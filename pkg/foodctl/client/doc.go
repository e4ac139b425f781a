// Package client implements the foodctl HTTP client. Every request goes through
// Send, which attaches the session's bearer token and, when the server answers
// 401, renews the token once and replays the request. Typed services for
// predictions, history and the food catalog sit on top of it.
package client
