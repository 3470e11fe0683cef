// Package alerts keeps the bounded, time-ordered alert/event history.
package alerts

import (
	"encoding/json"
	"log"
	"time"

	"sync"

	"github.com/minewatch/emergency/internal/model"
	"github.com/minewatch/emergency/pkg/dedup"
)

// defaultCapacity bounds the alert ring; the oldest entry is evicted
// on overflow.
const defaultCapacity = 50

// Publisher is the optional outbound event bus (satisfied by
// pkg/mqtt.Publisher).
type Publisher interface {
	PublishMessage(message interface{}) error
}

type Options struct {
	Capacity  int
	DedupTTL  time.Duration // 0 disables dedup
	Publisher Publisher     // nil disables publishing
}

// Manager owns the fixed-capacity alert ring buffer. All other
// components only append; entries are stored by value and never mutated
// after insertion.
type Manager struct {
	mu        sync.Mutex
	entries   []model.Alert
	next      int
	count     int
	suppress  *dedup.Suppressor
	publisher Publisher
}

func NewManager(opts Options) *Manager {
	capacity := opts.Capacity
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	m := &Manager{
		entries:   make([]model.Alert, capacity),
		publisher: opts.Publisher,
	}
	if opts.DedupTTL > 0 {
		m.suppress = dedup.New(opts.DedupTTL, 4*capacity)
	}
	return m
}

// Ingest appends an alert, evicting the oldest entry when full — O(1).
// Repeats of the same alert key within the dedup TTL are dropped.
// Returns whether the alert was inserted.
func (m *Manager) Ingest(a model.Alert) bool {
	if a.Timestamp.IsZero() {
		a.Timestamp = time.Now().UTC()
	}
	if m.suppress != nil && !m.suppress.Allow(a.Key()) {
		return false
	}

	m.mu.Lock()
	m.entries[m.next] = a
	m.next = (m.next + 1) % len(m.entries)
	if m.count < len(m.entries) {
		m.count++
	}
	m.mu.Unlock()

	if m.publisher != nil {
		payload, err := json.Marshal(a)
		if err == nil {
			err = m.publisher.PublishMessage(string(payload))
		}
		if err != nil {
			log.Printf("alerts: publish failed: %v", err)
		}
	}
	return true
}

// Query returns alerts with timestamp >= now-sinceHours, newest first.
// The returned slice is a copy.
func (m *Manager) Query(sinceHours int) []model.Alert {
	cutoff := time.Now().UTC().Add(-time.Duration(sinceHours) * time.Hour)

	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]model.Alert, 0, m.count)
	// Walk backwards from the most recent entry.
	for i := 1; i <= m.count; i++ {
		idx := (m.next - i + len(m.entries)) % len(m.entries)
		a := m.entries[idx]
		if a.Timestamp.Before(cutoff) {
			continue
		}
		out = append(out, a)
	}
	return out
}

// Len reports the number of buffered alerts.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.count
}

// Capacity reports the fixed buffer capacity.
func (m *Manager) Capacity() int {
	return len(m.entries)
}
