/*
Copyright 2024.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package audit

import (
	"time"
)

// EventType represents the type of audit event.
type EventType string

const (
	// === Account events ===
	EventAccountRegistered  EventType = "account.registered"
	EventAccountLogin       EventType = "account.login"
	EventAccountLoginFailed EventType = "account.login_failed"

	// === Token events ===
	EventTokenRefreshed       EventType = "token.refreshed"
	EventTokenRefreshRejected EventType = "token.refresh_rejected"
	EventTokenRejected        EventType = "token.rejected"

	// === History events ===
	EventHistorySaved   EventType = "history.saved"
	EventHistoryDeleted EventType = "history.deleted"
	EventHistoryCleared EventType = "history.cleared"

	// === Prediction events ===
	EventPredictionCreated EventType = "prediction.created"
)

// Severity represents the severity level of an audit event
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Event represents a single audit event
type Event struct {
	// ID is a unique identifier for this event
	ID string `json:"id"`

	Type      EventType `json:"type"`
	Severity  Severity  `json:"severity"`
	Timestamp time.Time `json:"timestamp"`

	// Actor is who triggered the event
	Actor Actor `json:"actor"`

	// Target is what was affected by the event
	Target Target `json:"target"`

	// Details contains event-specific information
	Details map[string]interface{} `json:"details,omitempty"`

	// RequestID correlates the event with the HTTP request that caused it
	RequestID string `json:"requestId,omitempty"`
}

// Actor represents who triggered an audit event
type Actor struct {
	User      string `json:"user"`
	SourceIP  string `json:"sourceIP,omitempty"`
	UserAgent string `json:"userAgent,omitempty"`
}

// Target represents what was affected by an audit event
type Target struct {
	// Kind is account, token, history or prediction
	Kind string `json:"kind"`
	Name string `json:"name"`
}

// SeverityForEventType returns the default severity for an event type
func SeverityForEventType(eventType EventType) Severity {
	switch eventType {
	case EventTokenRefreshRejected:
		return SeverityCritical
	case EventAccountLoginFailed, EventTokenRejected, EventHistoryCleared:
		return SeverityWarning
	default:
		return SeverityInfo
	}
}
