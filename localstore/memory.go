package localstore

import (
	"context"
	"sort"
	"sync"

	"github.com/hlgc/IceCream/models"
)

// watchBuffer bounds how many change batches a slow watcher may lag behind
// before further batches are dropped for it.
const watchBuffer = 32

// MemoryStore is the mutex-guarded reference implementation of Store. It is
// the default store in tests and small deployments; production embedders
// plug their own database behind the Store interface.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]map[string]*models.Object // typeName -> key -> object

	wmu      sync.Mutex
	watchers map[string][]chan models.Change
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		objects:  make(map[string]map[string]*models.Object),
		watchers: make(map[string][]chan models.Change),
	}
}

func cloneObject(o *models.Object) *models.Object {
	if o == nil {
		return nil
	}
	c := &models.Object{TypeName: o.TypeName, Deleted: o.Deleted, Values: make(map[string]any, len(o.Values))}
	for k, v := range o.Values {
		if list, ok := v.([]string); ok {
			c.Values[k] = append([]string(nil), list...)
			continue
		}
		c.Values[k] = v
	}
	return c
}

// memoryTx stages mutations and applies them to the store only when the
// transaction function returns nil.
type memoryTx struct {
	store *MemoryStore

	staged  map[string]map[string]*models.Object
	removed map[string]map[string]struct{}

	inserted map[string][]string
	modified map[string][]string
	deleted  map[string][]string
}

func newMemoryTx(s *MemoryStore) *memoryTx {
	return &memoryTx{
		store:    s,
		staged:   make(map[string]map[string]*models.Object),
		removed:  make(map[string]map[string]struct{}),
		inserted: make(map[string][]string),
		modified: make(map[string][]string),
		deleted:  make(map[string][]string),
	}
}

func (t *memoryTx) isRemoved(typeName, key string) bool {
	_, ok := t.removed[typeName][key]
	return ok
}

func (t *memoryTx) Get(typeName, key string) (*models.Object, error) {
	if t.isRemoved(typeName, key) {
		return nil, ErrNotFound
	}
	if obj, ok := t.staged[typeName][key]; ok {
		return cloneObject(obj), nil
	}
	obj, ok := t.store.objects[typeName][key]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneObject(obj), nil
}

func (t *memoryTx) List(typeName string) ([]*models.Object, error) {
	merged := make(map[string]*models.Object)
	for k, v := range t.store.objects[typeName] {
		merged[k] = v
	}
	for k, v := range t.staged[typeName] {
		merged[k] = v
	}
	for k := range t.removed[typeName] {
		delete(merged, k)
	}

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]*models.Object, 0, len(keys))
	for _, k := range keys {
		out = append(out, cloneObject(merged[k]))
	}
	return out, nil
}

func (t *memoryTx) Put(key string, obj *models.Object) error {
	typeName := obj.TypeName

	_, existed := t.store.objects[typeName][key]
	if _, ok := t.staged[typeName][key]; ok {
		existed = true
	}
	if t.isRemoved(typeName, key) {
		existed = false
		delete(t.removed[typeName], key)
	}

	if t.staged[typeName] == nil {
		t.staged[typeName] = make(map[string]*models.Object)
	}
	t.staged[typeName][key] = cloneObject(obj)

	if existed {
		t.modified[typeName] = append(t.modified[typeName], key)
	} else {
		t.inserted[typeName] = append(t.inserted[typeName], key)
	}
	return nil
}

func (t *memoryTx) Delete(typeName, key string) error {
	_, inStore := t.store.objects[typeName][key]
	_, inStaged := t.staged[typeName][key]
	if !inStore && !inStaged || t.isRemoved(typeName, key) {
		return nil
	}

	delete(t.staged[typeName], key)
	if t.removed[typeName] == nil {
		t.removed[typeName] = make(map[string]struct{})
	}
	t.removed[typeName][key] = struct{}{}
	t.deleted[typeName] = append(t.deleted[typeName], key)
	return nil
}

func (t *memoryTx) commit() {
	for typeName, byKey := range t.staged {
		dst := t.store.objects[typeName]
		if dst == nil {
			dst = make(map[string]*models.Object)
			t.store.objects[typeName] = dst
		}
		for k, v := range byKey {
			dst[k] = v
		}
	}
	for typeName, keys := range t.removed {
		for k := range keys {
			delete(t.store.objects[typeName], k)
		}
	}
}

func (m *MemoryStore) Read(ctx context.Context, fn func(ReadTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	return fn(newMemoryTx(m))
}

func (m *MemoryStore) Write(ctx context.Context, origin models.Origin, fn func(WriteTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	tx := newMemoryTx(m)
	err := fn(tx)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	tx.commit()
	m.mu.Unlock()

	m.notify(origin, tx)
	return nil
}

func (m *MemoryStore) notify(origin models.Origin, tx *memoryTx) {
	types := make(map[string]struct{})
	for t := range tx.inserted {
		types[t] = struct{}{}
	}
	for t := range tx.modified {
		types[t] = struct{}{}
	}
	for t := range tx.deleted {
		types[t] = struct{}{}
	}

	m.wmu.Lock()
	defer m.wmu.Unlock()

	for typeName := range types {
		change := models.Change{
			TypeName: typeName,
			Origin:   origin,
			Inserted: tx.inserted[typeName],
			Modified: tx.modified[typeName],
			Deleted:  tx.deleted[typeName],
		}
		if change.Empty() {
			continue
		}
		for _, ch := range m.watchers[typeName] {
			select {
			case ch <- change:
			default: // drop for laggards rather than block the writer
			}
		}
	}
}

func (m *MemoryStore) Watch(typeName string) (<-chan models.Change, func()) {
	ch := make(chan models.Change, watchBuffer)

	m.wmu.Lock()
	m.watchers[typeName] = append(m.watchers[typeName], ch)
	m.wmu.Unlock()

	cancel := func() {
		m.wmu.Lock()
		defer m.wmu.Unlock()

		subs := m.watchers[typeName]
		for i, c := range subs {
			if c == ch {
				m.watchers[typeName] = append(subs[:i], subs[i+1:]...)
				close(ch)
				return
			}
		}
	}
	return ch, cancel
}
