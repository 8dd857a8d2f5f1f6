package store

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

type widget struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Owner int    `json:"owner"`
}

func (w widget) EntityID() int { return w.ID }

func setWidgetID(w *widget, id int) { w.ID = id }

func openTestCollection(t *testing.T) *Collection[widget] {
	t.Helper()
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	return NewCollection(s, "widgets", setWidgetID)
}

func TestAddAssignsSequentialIDs(t *testing.T) {
	c := openTestCollection(t)

	first, err := c.Add(widget{Name: "a"}, true)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if first.ID != 1 {
		t.Errorf("expected first id 1, got %d", first.ID)
	}

	second, err := c.Add(widget{Name: "b"}, true)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if second.ID != 2 {
		t.Errorf("expected second id 2, got %d", second.ID)
	}
}

func TestAddAfterDeleteSkipsReusedIDs(t *testing.T) {
	c := openTestCollection(t)

	for _, name := range []string{"a", "b", "c"} {
		if _, err := c.Add(widget{Name: name}, true); err != nil {
			t.Fatalf("add %s: %v", name, err)
		}
	}
	if ok, err := c.Delete(2); err != nil || !ok {
		t.Fatalf("delete: ok=%v err=%v", ok, err)
	}

	// Max id is still 3, so the next assignment must be 4, not 2.
	added, err := c.Add(widget{Name: "d"}, true)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if added.ID != 4 {
		t.Errorf("expected id 4, got %d", added.ID)
	}
}

func TestAddWithPresetIDDetectsCollision(t *testing.T) {
	c := openTestCollection(t)

	if _, err := c.Add(widget{ID: 7, Name: "a"}, false); err != nil {
		t.Fatalf("add preset id: %v", err)
	}

	_, err := c.Add(widget{ID: 7, Name: "b"}, false)
	if err == nil {
		t.Fatal("expected duplicate id error")
	}
	var dup *DuplicateIDError
	if !errors.As(err, &dup) {
		t.Fatalf("expected DuplicateIDError, got %v", err)
	}
	if dup.ID != 7 || dup.Collection != "widgets" {
		t.Errorf("unexpected error payload: %+v", dup)
	}
}

func TestAddWithoutIDFails(t *testing.T) {
	c := openTestCollection(t)

	_, err := c.Add(widget{Name: "a"}, false)
	if !errors.Is(err, ErrMissingID) {
		t.Fatalf("expected ErrMissingID, got %v", err)
	}
}

func TestUpdateCannotChangeID(t *testing.T) {
	c := openTestCollection(t)

	added, err := c.Add(widget{Name: "a"}, true)
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	updated, err := c.Update(added.ID, func(w *widget) {
		w.ID = 99
		w.Name = "renamed"
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated == nil {
		t.Fatal("expected updated record")
	}
	if updated.ID != added.ID {
		t.Errorf("id changed from %d to %d", added.ID, updated.ID)
	}
	if updated.Name != "renamed" {
		t.Errorf("expected name renamed, got %s", updated.Name)
	}
}

func TestUpdateMissingReturnsNil(t *testing.T) {
	c := openTestCollection(t)

	updated, err := c.Update(42, func(w *widget) { w.Name = "x" })
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated != nil {
		t.Errorf("expected nil for missing record, got %+v", updated)
	}
}

func TestFindOneAndFindMany(t *testing.T) {
	c := openTestCollection(t)

	for i, owner := range []int{1, 2, 1} {
		if _, err := c.Add(widget{Name: string(rune('a' + i)), Owner: owner}, true); err != nil {
			t.Fatalf("add: %v", err)
		}
	}

	one, err := c.FindOne(func(w widget) bool { return w.Owner == 1 })
	if err != nil {
		t.Fatalf("find one: %v", err)
	}
	if one == nil || one.Name != "a" {
		t.Errorf("expected first owner-1 record 'a', got %+v", one)
	}

	many, err := c.FindMany(func(w widget) bool { return w.Owner == 1 })
	if err != nil {
		t.Fatalf("find many: %v", err)
	}
	if len(many) != 2 {
		t.Errorf("expected 2 records, got %d", len(many))
	}

	missing, err := c.FindOne(func(w widget) bool { return w.Owner == 9 })
	if err != nil {
		t.Fatalf("find one: %v", err)
	}
	if missing != nil {
		t.Errorf("expected nil for no match, got %+v", missing)
	}
}

func TestDeleteMany(t *testing.T) {
	c := openTestCollection(t)

	for _, owner := range []int{1, 2, 1, 1} {
		if _, err := c.Add(widget{Owner: owner}, true); err != nil {
			t.Fatalf("add: %v", err)
		}
	}

	n, err := c.DeleteMany(func(w widget) bool { return w.Owner == 1 })
	if err != nil {
		t.Fatalf("delete many: %v", err)
	}
	if n != 3 {
		t.Errorf("expected 3 deleted, got %d", n)
	}

	left, err := c.Read()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(left) != 1 || left[0].Owner != 2 {
		t.Errorf("unexpected remaining records: %+v", left)
	}
}

func TestReadMissingFileIsEmpty(t *testing.T) {
	c := openTestCollection(t)

	records, err := c.Read()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("expected empty collection, got %d records", len(records))
	}
}

func TestCollectionFileLayout(t *testing.T) {
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	c := NewCollection(s, "widgets", setWidgetID)
	if _, err := c.Add(widget{Name: "a"}, true); err != nil {
		t.Fatalf("add: %v", err)
	}

	// One file per collection, named after it.
	if _, err := os.Stat(filepath.Join(s.Dir(), "widgets.json")); err != nil {
		t.Errorf("expected widgets.json on disk: %v", err)
	}
}

func TestConcurrentAddsStayConsistent(t *testing.T) {
	c := openTestCollection(t)

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.Add(widget{Name: "w"}, true); err != nil {
				t.Errorf("add: %v", err)
			}
		}()
	}
	wg.Wait()

	records, err := c.Read()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(records) != n {
		t.Fatalf("expected %d records, got %d", n, len(records))
	}
	seen := make(map[int]bool, n)
	for _, r := range records {
		if seen[r.ID] {
			t.Errorf("duplicate id %d", r.ID)
		}
		seen[r.ID] = true
	}
}
