package logger

import (
	"encoding/json"
	"sync"
)

const defaultBufferSize = 1000

// Broadcaster is the surface the WebSocket hub exposes to the log
// stream.
type Broadcaster interface {
	Broadcast(msgType string, payload interface{}) error
}

// LogEntry is a parsed log entry for streaming and the log API.
type LogEntry struct {
	Timestamp string         `json:"timestamp"`
	Level     string         `json:"level"`
	Component string         `json:"component,omitempty"`
	Message   string         `json:"message"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// LogBroadcaster is an io.Writer for zerolog's JSON stream. It keeps
// the most recent entries in a ring and forwards each entry to the hub
// when one is attached.
type LogBroadcaster struct {
	mu    sync.RWMutex
	hub   Broadcaster
	ring  []LogEntry
	head  int
	count int
}

// NewLogBroadcaster creates a log broadcaster. The hub can be nil at
// construction and attached later with SetHub, which is how startup
// ordering works: the logger exists before the hub does.
func NewLogBroadcaster(bufferSize int) *LogBroadcaster {
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	return &LogBroadcaster{ring: make([]LogEntry, bufferSize)}
}

// SetHub attaches the WebSocket hub.
func (b *LogBroadcaster) SetHub(hub Broadcaster) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.hub = hub
}

// Write implements io.Writer over zerolog's JSON entries. Malformed
// entries are dropped silently; a logger must never fail a log call.
func (b *LogBroadcaster) Write(p []byte) (int, error) {
	entry, err := parseLogEntry(p)
	if err != nil {
		return len(p), nil
	}

	b.mu.Lock()
	b.ring[(b.head+b.count)%len(b.ring)] = entry
	if b.count < len(b.ring) {
		b.count++
	} else {
		b.head = (b.head + 1) % len(b.ring)
	}
	hub := b.hub
	b.mu.Unlock()

	if hub != nil {
		hub.Broadcast("logs:entry", entry)
	}
	return len(p), nil
}

// Recent returns the buffered entries, oldest first.
func (b *LogBroadcaster) Recent() []LogEntry {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]LogEntry, b.count)
	for i := 0; i < b.count; i++ {
		out[i] = b.ring[(b.head+i)%len(b.ring)]
	}
	return out
}

func parseLogEntry(data []byte) (LogEntry, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return LogEntry{}, err
	}

	entry := LogEntry{Fields: make(map[string]any)}
	if ts, ok := raw["time"].(string); ok {
		entry.Timestamp = ts
		delete(raw, "time")
	}
	if level, ok := raw["level"].(string); ok {
		entry.Level = level
		delete(raw, "level")
	}
	if component, ok := raw["component"].(string); ok {
		entry.Component = component
		delete(raw, "component")
	}
	if msg, ok := raw["message"].(string); ok {
		entry.Message = msg
		delete(raw, "message")
	}
	for k, v := range raw {
		entry.Fields[k] = v
	}
	return entry, nil
}
