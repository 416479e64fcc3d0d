package player

import (
	"fmt"
	"net/url"
	"sync"
)

// Location is the host's addressable state. The engine only ever replaces
// parameters in place, it never pushes a new entry.
type Location interface {
	Get(key string) string
	Replace(key, value string)
	Clear(key string)
}

// URLLocation keeps a share URL whose query mirrors the player position
type URLLocation struct {
	mu sync.Mutex
	u  *url.URL
}

// NewURLLocation parses the share URL the player should keep up to date.
func NewURLLocation(raw string) (*URLLocation, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid share url %q: %w", raw, err)
	}
	return &URLLocation{u: u}, nil
}

func (l *URLLocation) Get(key string) string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.u.Query().Get(key)
}

func (l *URLLocation) Replace(key, value string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	q := l.u.Query()
	q.Set(key, value)
	l.u.RawQuery = q.Encode()
}

func (l *URLLocation) Clear(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	q := l.u.Query()
	q.Del(key)
	l.u.RawQuery = q.Encode()
}

func (l *URLLocation) String() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.u.String()
}

// MemoryLocation is a Location without a URL behind it
type MemoryLocation struct {
	mu     sync.Mutex
	params map[string]string
}

func NewMemoryLocation(params map[string]string) *MemoryLocation {
	m := &MemoryLocation{params: make(map[string]string, len(params))}
	for k, v := range params {
		m.params[k] = v
	}
	return m
}

func (m *MemoryLocation) Get(key string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.params[key]
}

func (m *MemoryLocation) Replace(key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.params[key] = value
}

func (m *MemoryLocation) Clear(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.params, key)
}

// Has reports whether key is currently set.
func (m *MemoryLocation) Has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.params[key]
	return ok
}
