package remote

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/FACorreiaa/bungmap/internal/types"
)

var _ Store = (*MemoryStore)(nil)

// Op names a store operation for failure injection and call counting.
type Op string

const (
	OpList   Op = "list"
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
	OpQuery  Op = "query"
)

// MemoryStore is an in-process document store. Ids are assigned by the store,
// documents are returned in insertion order and no ordering hint is honoured.
type MemoryStore struct {
	mu       sync.Mutex
	docs     map[string]map[string]types.Fields
	order    map[string][]string
	failures map[Op]error
	calls    map[Op]int
	newID    func() string
	authz    Authorizer
}

// Authorizer decides whether a call may proceed. id is empty for list,
// create and query.
type Authorizer func(ctx context.Context, op Op, collection, id string, existing types.Fields) error

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs:     make(map[string]map[string]types.Fields),
		order:    make(map[string][]string),
		failures: make(map[Op]error),
		calls:    make(map[Op]int),
		newID:    func() string { return uuid.NewString() },
	}
}

// WithIDs makes the store hand out ids from gen instead of random UUIDs.
func (m *MemoryStore) WithIDs(gen func() string) *MemoryStore {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.newID = gen
	return m
}

// WithAuthorizer installs a policy consulted before every call.
func (m *MemoryStore) WithAuthorizer(authz Authorizer) *MemoryStore {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.authz = authz
	return m
}

// FailOn makes every call of op fail with err until cleared with a nil err.
func (m *MemoryStore) FailOn(op Op, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failures, op)
		return
	}
	m.failures[op] = err
}

// Calls returns how many times op was invoked.
func (m *MemoryStore) Calls(op Op) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

// Put stores a document under a caller-chosen id.
func (m *MemoryStore) Put(collection, id string, fields types.Fields) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.put(collection, id, fields)
}

func (m *MemoryStore) put(collection, id string, fields types.Fields) {
	if m.docs[collection] == nil {
		m.docs[collection] = make(map[string]types.Fields)
	}
	if _, exists := m.docs[collection][id]; !exists {
		m.order[collection] = append(m.order[collection], id)
	}
	m.docs[collection][id] = fields.Clone()
}

func (m *MemoryStore) begin(ctx context.Context, op Op, collection, id string) error {
	m.calls[op]++
	if err := m.failures[op]; err != nil {
		return types.ClassifyRemote(err)
	}
	if err := ctx.Err(); err != nil {
		return types.ClassifyRemote(err)
	}
	if m.authz != nil {
		var existing types.Fields
		if id != "" {
			existing = m.docs[collection][id].Clone()
		}
		if err := m.authz(ctx, op, collection, id, existing); err != nil {
			return types.ClassifyRemote(err)
		}
	}
	return nil
}

func (m *MemoryStore) List(ctx context.Context, collection string) ([]types.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin(ctx, OpList, collection, ""); err != nil {
		return nil, err
	}
	return m.snapshot(collection, types.Filter{}), nil
}

func (m *MemoryStore) Query(ctx context.Context, collection string, filter types.Filter) ([]types.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin(ctx, OpQuery, collection, ""); err != nil {
		return nil, err
	}
	return m.snapshot(collection, filter), nil
}

func (m *MemoryStore) snapshot(collection string, filter types.Filter) []types.Document {
	out := make([]types.Document, 0, len(m.order[collection]))
	for _, id := range m.order[collection] {
		fields, ok := m.docs[collection][id]
		if !ok {
			continue
		}
		doc := types.Document{ID: id, Fields: fields.Clone()}
		if filter.Matches(doc) {
			out = append(out, doc)
		}
	}
	return out
}

func (m *MemoryStore) Create(ctx context.Context, collection string, fields types.Fields) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin(ctx, OpCreate, collection, ""); err != nil {
		return "", err
	}
	id := m.newID()
	m.put(collection, id, fields)
	return id, nil
}

func (m *MemoryStore) Update(ctx context.Context, collection, id string, patch types.Fields) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin(ctx, OpUpdate, collection, id); err != nil {
		return err
	}
	fields, ok := m.docs[collection][id]
	if !ok {
		return fmt.Errorf("%s/%s: %w", collection, id, types.ErrNotFound)
	}
	for k, v := range patch {
		fields[k] = v
	}
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, collection, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin(ctx, OpDelete, collection, id); err != nil {
		return err
	}
	if _, ok := m.docs[collection][id]; !ok {
		return fmt.Errorf("%s/%s: %w", collection, id, types.ErrNotFound)
	}
	delete(m.docs[collection], id)
	ids := m.order[collection]
	for i, existing := range ids {
		if existing == id {
			m.order[collection] = append(ids[:i:i], ids[i+1:]...)
			break
		}
	}
	return nil
}
