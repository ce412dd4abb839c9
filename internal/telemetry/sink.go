package telemetry

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
)

// Sink receives telemetry events. Track never blocks the pipeline on I/O
// failures; Close flushes whatever is buffered.
type Sink interface {
	Track(e Event)
	Close() error
}

// Discard drops every event.
type Discard struct{}

func (Discard) Track(Event)  {}
func (Discard) Close() error { return nil }

// MemorySink keeps events in memory.
type MemorySink struct {
	mu     sync.Mutex
	events []Event
}

func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (m *MemorySink) Track(e Event) {
	m.mu.Lock()
	m.events = append(m.events, e)
	m.mu.Unlock()
}

func (m *MemorySink) Close() error { return nil }

// Events returns a copy of everything tracked so far.
func (m *MemorySink) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.events)
}

// FileSink appends events as JSON lines.
type FileSink struct {
	mu     sync.Mutex
	f      *os.File
	enc    *json.Encoder
	logger *slog.Logger
}

// NewFileSink opens path for appending, creating parent directories.
func NewFileSink(path string) (*FileSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating telemetry directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening telemetry file: %w", err)
	}
	return &FileSink{
		f:      f,
		enc:    json.NewEncoder(f),
		logger: slog.Default().With("component", "telemetry-file", "path", path),
	}, nil
}

func (s *FileSink) Track(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enc.Encode(e); err != nil {
		s.logger.Error("failed to write telemetry event", "type", e.Type, "error", err)
	}
}

func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.f.Sync(); err != nil {
		s.f.Close()
		return fmt.Errorf("syncing telemetry file: %w", err)
	}
	return s.f.Close()
}

// Fanout forwards events to several sinks.
type Fanout []Sink

func (f Fanout) Track(e Event) {
	for _, s := range f {
		s.Track(e)
	}
}

func (f Fanout) Close() error {
	var first error
	for _, s := range f {
		if err := s.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
