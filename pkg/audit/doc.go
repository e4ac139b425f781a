// Package audit records account, token and history activity on the dev
// server and ships it to a structured log and optionally a Kafka topic.
package audit
