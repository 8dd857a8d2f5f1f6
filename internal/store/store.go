// Package store persists named collections as JSON array files on disk.
// Each collection holds records of a single entity type carrying a unique
// integer id. Writes to a collection are serialized by a per-collection
// mutex owned by the Store; there is no atomicity across collections, so
// multi-collection operations must compensate on failure themselves.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Entity is implemented by every record type persisted in a collection.
type Entity interface {
	EntityID() int
}

// Store owns the data directory and the lock registry. Locks are created
// lazily, one per collection name, and live for the process lifetime.
type Store struct {
	dir   string
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Open prepares a store rooted at dir, creating the directory if needed.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("store: create data dir %s: %w", dir, err)
	}
	return &Store{
		dir:   dir,
		locks: make(map[string]*sync.Mutex),
	}, nil
}

// Dir returns the data directory the store was opened on.
func (s *Store) Dir() string { return s.dir }

func (s *Store) lockFor(name string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[name]
	if !ok {
		l = &sync.Mutex{}
		s.locks[name] = l
	}
	return l
}

// Collection is a typed view over one collection file. setID writes a
// freshly assigned id back into a record before it is appended.
type Collection[T Entity] struct {
	store *Store
	name  string
	setID func(*T, int)
}

// NewCollection binds an entity type to a collection name within s.
func NewCollection[T Entity](s *Store, name string, setID func(*T, int)) *Collection[T] {
	return &Collection[T]{store: s, name: name, setID: setID}
}

// Name returns the collection name.
func (c *Collection[T]) Name() string { return c.name }

func (c *Collection[T]) path() string {
	return filepath.Join(c.store.dir, c.name+".json")
}

// readLocked loads the collection file. The caller must hold the
// collection lock. A missing file reads as an empty collection.
func (c *Collection[T]) readLocked() ([]T, error) {
	data, err := os.ReadFile(c.path())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("store: read %s: %w", c.name, err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	var records []T
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("store: decode %s: %w", c.name, err)
	}
	return records, nil
}

// writeLocked replaces the collection file. The caller must hold the
// collection lock.
func (c *Collection[T]) writeLocked(records []T) error {
	if records == nil {
		records = []T{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("store: encode %s: %w", c.name, err)
	}
	if err := os.WriteFile(c.path(), data, 0o644); err != nil {
		return fmt.Errorf("store: write %s: %w", c.name, err)
	}
	return nil
}

// Read returns every record in the collection.
func (c *Collection[T]) Read() ([]T, error) {
	lock := c.store.lockFor(c.name)
	lock.Lock()
	defer lock.Unlock()
	return c.readLocked()
}

// FindOne returns the first record matching pred, or nil if none does.
func (c *Collection[T]) FindOne(pred func(T) bool) (*T, error) {
	records, err := c.Read()
	if err != nil {
		return nil, err
	}
	for i := range records {
		if pred(records[i]) {
			r := records[i]
			return &r, nil
		}
	}
	return nil, nil
}

// FindMany returns every record matching pred.
func (c *Collection[T]) FindMany(pred func(T) bool) ([]T, error) {
	records, err := c.Read()
	if err != nil {
		return nil, err
	}
	var out []T
	for i := range records {
		if pred(records[i]) {
			out = append(out, records[i])
		}
	}
	return out, nil
}

// Get returns the record with the given id, or nil if absent.
func (c *Collection[T]) Get(id int) (*T, error) {
	return c.FindOne(func(r T) bool { return r.EntityID() == id })
}

// NextID returns max(existing ids)+1, or 1 for an empty collection.
func (c *Collection[T]) NextID() (int, error) {
	records, err := c.Read()
	if err != nil {
		return 0, err
	}
	return nextID(records), nil
}

func nextID[T Entity](records []T) int {
	max := 0
	for i := range records {
		if id := records[i].EntityID(); id > max {
			max = id
		}
	}
	return max + 1
}

// Add appends a record. With assignID the record receives max+1 as its
// id; without it the record must already carry a non-zero id, and a
// collision fails with DuplicateIDError.
func (c *Collection[T]) Add(rec T, assignID bool) (T, error) {
	var zero T
	lock := c.store.lockFor(c.name)
	lock.Lock()
	defer lock.Unlock()

	records, err := c.readLocked()
	if err != nil {
		return zero, err
	}
	if assignID {
		c.setID(&rec, nextID(records))
	} else {
		if rec.EntityID() == 0 {
			return zero, fmt.Errorf("store: %s: %w", c.name, ErrMissingID)
		}
	}
	for i := range records {
		if records[i].EntityID() == rec.EntityID() {
			return zero, &DuplicateIDError{Collection: c.name, ID: rec.EntityID()}
		}
	}
	records = append(records, rec)
	if err := c.writeLocked(records); err != nil {
		return zero, err
	}
	return rec, nil
}

// Update applies fn to the record with the given id and persists the
// result. The record's id cannot change; fn mutations to it are
// discarded. Returns nil without error when the id is absent.
func (c *Collection[T]) Update(id int, fn func(*T)) (*T, error) {
	lock := c.store.lockFor(c.name)
	lock.Lock()
	defer lock.Unlock()

	records, err := c.readLocked()
	if err != nil {
		return nil, err
	}
	for i := range records {
		if records[i].EntityID() != id {
			continue
		}
		fn(&records[i])
		c.setID(&records[i], id)
		if err := c.writeLocked(records); err != nil {
			return nil, err
		}
		r := records[i]
		return &r, nil
	}
	return nil, nil
}

// Delete removes the record with the given id. Reports whether a record
// was removed.
func (c *Collection[T]) Delete(id int) (bool, error) {
	lock := c.store.lockFor(c.name)
	lock.Lock()
	defer lock.Unlock()

	records, err := c.readLocked()
	if err != nil {
		return false, err
	}
	kept := records[:0]
	for i := range records {
		if records[i].EntityID() != id {
			kept = append(kept, records[i])
		}
	}
	if len(kept) == len(records) {
		return false, nil
	}
	if err := c.writeLocked(kept); err != nil {
		return false, err
	}
	return true, nil
}

// DeleteMany removes every record matching pred and returns the count.
func (c *Collection[T]) DeleteMany(pred func(T) bool) (int, error) {
	lock := c.store.lockFor(c.name)
	lock.Lock()
	defer lock.Unlock()

	records, err := c.readLocked()
	if err != nil {
		return 0, err
	}
	kept := records[:0]
	for i := range records {
		if !pred(records[i]) {
			kept = append(kept, records[i])
		}
	}
	removed := len(records) - len(kept)
	if removed == 0 {
		return 0, nil
	}
	if err := c.writeLocked(kept); err != nil {
		return 0, err
	}
	return removed, nil
}
