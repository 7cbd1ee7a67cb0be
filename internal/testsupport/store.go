package testsupport

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"
	"testing"

	"lectern/internal/config"
	"lectern/internal/history"
	"lectern/internal/storage"
)

// MustOpenHistory opens a history.Store for tests and registers cleanup.
func MustOpenHistory(t testing.TB, cfg *config.Config) *history.Store {
	t.Helper()

	store, err := history.Open(cfg)
	if err != nil {
		t.Fatalf("history.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// MemoryStore is an in-memory storage backend.
type MemoryStore struct {
	// BaseURL prefixes returned URLs.
	BaseURL string
	// Fail, when set, decides per object whether the upload fails.
	Fail      func(obj storage.Object) error
	HealthErr error

	mu      sync.Mutex
	objects map[string]storage.Object
	uploads int
}

// NewMemoryStore constructs an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{BaseURL: "https://storage.test", objects: make(map[string]storage.Object)}
}

// Upload records obj and returns its URL.
func (m *MemoryStore) Upload(ctx context.Context, obj storage.Object) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploads++
	if m.Fail != nil {
		if err := m.Fail(obj); err != nil {
			return "", err
		}
	}
	if _, exists := m.objects[obj.Path]; exists && !obj.Upsert {
		return "", fmt.Errorf("object %s already exists", obj.Path)
	}
	obj.Data = append([]byte(nil), obj.Data...)
	if m.objects == nil {
		m.objects = make(map[string]storage.Object)
	}
	m.objects[obj.Path] = obj
	return strings.TrimRight(m.BaseURL, "/") + "/" + path.Clean(obj.Path), nil
}

// HealthCheck returns HealthErr.
func (m *MemoryStore) HealthCheck(context.Context) error {
	return m.HealthErr
}

// Object returns a stored object.
func (m *MemoryStore) Object(key string) (storage.Object, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[key]
	return obj, ok
}

// Paths lists stored object paths in sorted order.
func (m *MemoryStore) Paths() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.objects))
	for key := range m.objects {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Uploads counts upload attempts, including failures.
func (m *MemoryStore) Uploads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.uploads
}
