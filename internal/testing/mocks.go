package testing

import (
	"context"
	"sync"
	"time"

	"github.com/aristath/screener/internal/domain"
)

// MockAdapter is a configurable source adapter for testing. It serves the
// payloads and errors set per field set and counts every Fetch call.
type MockAdapter struct {
	mu        sync.RWMutex
	name      string
	supported map[domain.FieldSet]bool
	payloads  map[domain.FieldSet]*domain.RawPayload
	errs      map[domain.FieldSet]error
	entities  map[string]map[domain.FieldSet]*domain.RawPayload
	calls     map[domain.FieldSet]int
	delay     time.Duration
}

// NewMockAdapter creates a mock adapter supporting the given field sets
func NewMockAdapter(name string, supported ...domain.FieldSet) *MockAdapter {
	m := &MockAdapter{
		name:      name,
		supported: make(map[domain.FieldSet]bool, len(supported)),
		payloads:  make(map[domain.FieldSet]*domain.RawPayload),
		errs:      make(map[domain.FieldSet]error),
		entities:  make(map[string]map[domain.FieldSet]*domain.RawPayload),
		calls:     make(map[domain.FieldSet]int),
	}
	for _, fs := range supported {
		m.supported[fs] = true
	}
	return m
}

// SetPayload sets the payload returned for fs, for any entity
func (m *MockAdapter) SetPayload(fs domain.FieldSet, payload *domain.RawPayload) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payloads[fs] = payload
}

// SetEntityPayload sets the payload returned for fs for one entity only
func (m *MockAdapter) SetEntityPayload(entity domain.Entity, fs domain.FieldSet, payload *domain.RawPayload) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.entities[entity.ID()] == nil {
		m.entities[entity.ID()] = make(map[domain.FieldSet]*domain.RawPayload)
	}
	m.entities[entity.ID()][fs] = payload
}

// SetError sets the error returned for fs. It takes precedence over payloads.
func (m *MockAdapter) SetError(fs domain.FieldSet, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[fs] = err
}

// SetDelay makes every Fetch wait d before answering
func (m *MockAdapter) SetDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
}

// Calls returns the number of Fetch calls for fs
func (m *MockAdapter) Calls(fs domain.FieldSet) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls[fs]
}

// TotalCalls returns the number of Fetch calls across all field sets
func (m *MockAdapter) TotalCalls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	total := 0
	for _, n := range m.calls {
		total += n
	}
	return total
}

// ResetCalls clears the call counters
func (m *MockAdapter) ResetCalls() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = make(map[domain.FieldSet]int)
}

// Name returns the adapter name
func (m *MockAdapter) Name() string {
	return m.name
}

// Supports reports whether fs was configured as supported
func (m *MockAdapter) Supports(fs domain.FieldSet) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.supported[fs]
}

// Fetch returns a copy of the configured payload for fs. A field set with
// neither payload nor error yields (nil, nil), which callers treat as empty.
func (m *MockAdapter) Fetch(ctx context.Context, entity domain.Entity, fs domain.FieldSet) (*domain.RawPayload, error) {
	m.mu.Lock()
	m.calls[fs]++
	delay := m.delay
	err := m.errs[fs]
	payload := m.payloads[fs]
	if byEntity, ok := m.entities[entity.ID()]; ok {
		if p, ok := byEntity[fs]; ok {
			payload = p
		}
	}
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if err != nil {
		return nil, err
	}
	if payload == nil {
		return nil, nil
	}

	out := *payload
	out.Source = m.name
	out.EntityID = entity.ID()
	out.FieldSet = fs
	return &out, nil
}
