package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store used in tests and as a reference
// implementation of the optimistic-concurrency contract.
type MemoryStore struct {
	mu   sync.Mutex
	docs map[DocType]map[string]*Document
	seq  int64
	now  func() time.Time
}

// NewMemoryStore creates an empty in-memory document store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs: make(map[DocType]map[string]*Document),
		now:  time.Now,
	}
}

// SetClock overrides the store clock. Test hook.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.now = now
}

// tick returns a strictly increasing timestamp so two writes in the
// same nanosecond still get distinct modified stamps.
func (s *MemoryStore) tick() time.Time {
	s.seq++
	return s.now().UTC().Add(time.Duration(s.seq))
}

func (s *MemoryStore) bucket(typ DocType) map[string]*Document {
	b, ok := s.docs[typ]
	if !ok {
		b = make(map[string]*Document)
		s.docs[typ] = b
	}
	return b
}

func copyDoc(doc *Document) *Document {
	c := *doc
	c.Body = append([]byte(nil), doc.Body...)
	return &c
}

// Get fetches one document by type and id.
func (s *MemoryStore) Get(_ context.Context, typ DocType, id string) (*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.bucket(typ)[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, typ, id)
	}
	return copyDoc(doc), nil
}

// Create inserts a new document.
func (s *MemoryStore) Create(_ context.Context, doc *Document) (*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.bucket(doc.Type)
	if _, exists := b[doc.ID]; exists {
		return nil, fmt.Errorf("document %s/%s already exists", doc.Type, doc.ID)
	}
	doc.Modified = s.tick()
	b[doc.ID] = copyDoc(doc)
	return doc, nil
}

// Update replaces a document under optimistic concurrency.
func (s *MemoryStore) Update(_ context.Context, doc *Document, expectedModified time.Time) (*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.bucket(doc.Type)
	current, ok := b[doc.ID]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, doc.Type, doc.ID)
	}
	if !current.Modified.Equal(expectedModified) {
		return nil, &ConflictError{
			Type:     doc.Type,
			ID:       doc.ID,
			Expected: expectedModified,
			Actual:   current.Modified,
		}
	}
	doc.Modified = s.tick()
	b[doc.ID] = copyDoc(doc)
	return doc, nil
}

// List returns matching documents ordered by modified timestamp.
func (s *MemoryStore) List(_ context.Context, typ DocType, filters Filters) ([]*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var docs []*Document
	for _, doc := range s.bucket(typ) {
		if filters.Project != "" && doc.Project != filters.Project {
			continue
		}
		if filters.Parent != "" && doc.Parent != filters.Parent {
			continue
		}
		if filters.Vendor != "" && doc.Vendor != filters.Vendor {
			continue
		}
		if filters.SubType != "" && doc.SubType != filters.SubType {
			continue
		}
		docs = append(docs, copyDoc(doc))
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Modified.Before(docs[j].Modified) })
	return docs, nil
}

// Verify interface compliance
var _ Store = (*MemoryStore)(nil)
