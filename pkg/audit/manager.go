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
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vnfood/foodctl/pkg/metrics"
)

// Manager coordinates audit event creation and distribution. Emit never
// blocks the request path.
type Manager struct {
	sink       Sink
	asyncQueue chan *Event
	logger     *zap.Logger
	wg         sync.WaitGroup
	closed     atomic.Bool
	// guards sends on asyncQueue against Close
	mu sync.RWMutex

	queuedEvents    atomic.Int64
	droppedEvents   atomic.Int64
	processedEvents atomic.Int64

	config ManagerConfig
}

// ManagerConfig configures the audit Manager.
type ManagerConfig struct {
	// QueueSize is the size of the async event queue.
	// Default: 1000
	QueueSize int

	// WorkerCount is the number of async processing workers.
	// Default: 1, which keeps events in order
	WorkerCount int

	// WriteTimeout is the timeout for writing to sinks.
	// Default: 5s
	WriteTimeout time.Duration
}

func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		QueueSize:    1000,
		WorkerCount:  1,
		WriteTimeout: 5 * time.Second,
	}
}

// NewManager creates a new audit Manager and starts its workers.
func NewManager(sink Sink, cfg ManagerConfig, logger *zap.Logger) *Manager {
	defaults := DefaultManagerConfig()
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaults.QueueSize
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = defaults.WorkerCount
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaults.WriteTimeout
	}

	m := &Manager{
		sink:       sink,
		asyncQueue: make(chan *Event, cfg.QueueSize),
		logger:     logger.Named("audit-manager"),
		config:     cfg,
	}
	for i := 0; i < cfg.WorkerCount; i++ {
		m.wg.Add(1)
		go m.processQueue(i)
	}

	m.logger.Debug("audit manager started",
		zap.String("sink", sink.Name()),
		zap.Int("queue_size", cfg.QueueSize),
		zap.Int("workers", cfg.WorkerCount))
	return m
}

// Emit queues an audit event. If the queue is full the event is dropped.
func (m *Manager) Emit(_ context.Context, event *Event) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed.Load() {
		return
	}

	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if event.Severity == "" {
		event.Severity = SeverityForEventType(event.Type)
	}

	select {
	case m.asyncQueue <- event:
		m.queuedEvents.Add(1)
	default:
		m.droppedEvents.Add(1)
		metrics.AuditEventsDropped.Inc()
		m.logger.Warn("audit queue full, dropping event",
			zap.String("event_type", string(event.Type)),
			zap.String("event_id", event.ID))
	}
}

func (m *Manager) processQueue(workerID int) {
	defer m.wg.Done()

	for event := range m.asyncQueue {
		ctx, cancel := context.WithTimeout(context.Background(), m.config.WriteTimeout)
		if err := m.sink.Write(ctx, event); err != nil {
			m.logger.Error("failed to write audit event",
				zap.Int("worker", workerID),
				zap.String("event_id", event.ID),
				zap.String("event_type", string(event.Type)),
				zap.Error(err))
		} else {
			m.processedEvents.Add(1)
			metrics.AuditEventsProcessed.Inc()
		}
		cancel()
	}
}

// Close drains the queue and closes the sink.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed.Swap(true) {
		m.mu.Unlock()
		return nil
	}
	close(m.asyncQueue)
	m.mu.Unlock()

	m.wg.Wait()
	m.logger.Debug("audit manager stopped",
		zap.Int64("processed", m.processedEvents.Load()),
		zap.Int64("dropped", m.droppedEvents.Load()))
	return m.sink.Close()
}

// Stats returns current audit manager statistics.
func (m *Manager) Stats() ManagerStats {
	return ManagerStats{
		QueuedEvents:    m.queuedEvents.Load(),
		ProcessedEvents: m.processedEvents.Load(),
		DroppedEvents:   m.droppedEvents.Load(),
		QueueLength:     len(m.asyncQueue),
		QueueCapacity:   cap(m.asyncQueue),
	}
}

type ManagerStats struct {
	QueuedEvents    int64
	ProcessedEvents int64
	DroppedEvents   int64
	QueueLength     int
	QueueCapacity   int
}

// --- Helper methods for common events ---

func (m *Manager) AccountRegistered(ctx context.Context, actor Actor, requestID string) {
	m.Emit(ctx, &Event{
		Type:      EventAccountRegistered,
		Actor:     actor,
		Target:    Target{Kind: "account", Name: actor.User},
		RequestID: requestID,
	})
}

// Login records a login attempt. reason is empty for successful logins.
func (m *Manager) Login(ctx context.Context, actor Actor, requestID, reason string) {
	event := &Event{
		Type:      EventAccountLogin,
		Actor:     actor,
		Target:    Target{Kind: "account", Name: actor.User},
		RequestID: requestID,
	}
	if reason != "" {
		event.Type = EventAccountLoginFailed
		event.Details = map[string]interface{}{"reason": reason}
	}
	m.Emit(ctx, event)
}

// TokenRefresh records a refresh exchange. reason is empty when a new access
// token was issued.
func (m *Manager) TokenRefresh(ctx context.Context, actor Actor, requestID, reason string) {
	event := &Event{
		Type:      EventTokenRefreshed,
		Actor:     actor,
		Target:    Target{Kind: "token", Name: "refresh"},
		RequestID: requestID,
	}
	if reason != "" {
		event.Type = EventTokenRefreshRejected
		event.Details = map[string]interface{}{"reason": reason}
	}
	m.Emit(ctx, event)
}

// AccessTokenRejected records a protected request refused for its bearer
// token.
func (m *Manager) AccessTokenRejected(ctx context.Context, actor Actor, requestID, path, reason string) {
	m.Emit(ctx, &Event{
		Type:      EventTokenRejected,
		Actor:     actor,
		Target:    Target{Kind: "token", Name: "access"},
		Details:   map[string]interface{}{"path": path, "reason": reason},
		RequestID: requestID,
	})
}

func (m *Manager) HistoryChanged(ctx context.Context, eventType EventType, actor Actor, requestID, itemID string, details map[string]interface{}) {
	m.Emit(ctx, &Event{
		Type:      eventType,
		Actor:     actor,
		Target:    Target{Kind: "history", Name: itemID},
		Details:   details,
		RequestID: requestID,
	})
}

func (m *Manager) PredictionCreated(ctx context.Context, actor Actor, requestID, foodName string, confidence float64) {
	m.Emit(ctx, &Event{
		Type:      EventPredictionCreated,
		Actor:     actor,
		Target:    Target{Kind: "prediction", Name: foodName},
		Details:   map[string]interface{}{"confidence": confidence},
		RequestID: requestID,
	})
}
