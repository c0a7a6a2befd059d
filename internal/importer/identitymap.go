package importer

import (
	"context"
	"sync"
)

// identityMap deduplicates catalog entities created during one commit. Each
// normalized key is created at most once; concurrent callers for the same key
// wait for the first creation and reuse its id. A failed creation is not
// cached, so the next item sharing the key tries again.
type identityMap struct {
	mu      sync.Mutex
	entries map[string]*identity
}

type identity struct {
	mu sync.Mutex
	id string
}

func newIdentityMap() *identityMap {
	return &identityMap{entries: make(map[string]*identity)}
}

// resolve returns the id created for key, calling create when there is none
// yet. reused is true when the id came from an earlier creation.
func (m *identityMap) resolve(ctx context.Context, key string, create func(ctx context.Context) (string, error)) (id string, reused bool, err error) {
	m.mu.Lock()
	e, ok := m.entries[key]
	if !ok {
		e = &identity{}
		m.entries[key] = e
	}
	m.mu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.id != "" {
		return e.id, true, nil
	}
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	id, err = create(ctx)
	if err != nil {
		return "", false, err
	}
	e.id = id
	return id, false, nil
}

// created counts the keys that resolved to an id.
func (m *identityMap) created() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.entries {
		e.mu.Lock()
		if e.id != "" {
			n++
		}
		e.mu.Unlock()
	}
	return n
}
