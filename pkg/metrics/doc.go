// Package metrics defines Prometheus metrics for foodctl, covering token
// exchanges, request retries, session terminations, and the dev server's
// token issuance.
package metrics
