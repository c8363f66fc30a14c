package memory

import (
	"sync"
	"testing"

	"github.com/conciergeai/concierge/core"
)

// Interface compliance (compile-time assertions)
var _ core.MemoryStore = (*InMemoryStore)(nil)

func TestInMemoryStore_StoreSearchDelete(t *testing.T) {
	svc := NewInMemoryStore()
	ids := make([]string, 0, 5)
	for i := 0; i < 5; i++ {
		id, err := svc.Store("fact"+string(rune('A'+i)), map[string]any{"idx": i})
		if err != nil {
			t.Fatalf("store failed: %v", err)
		}
		ids = append(ids, id)
	}
	// search all (empty query) limit larger than stored
	res, err := svc.Search("", 10)
	if err != nil {
		t.Fatalf("search all failed: %v", err)
	}
	if len(res) != 5 {
		t.Fatalf("expected 5 results, got %d", len(res))
	}
	// insertion order preserved
	if res[0].ID != ids[0] || res[4].ID != ids[4] {
		t.Fatalf("expected insertion order, got %#v", res)
	}
	// search with query word (case insensitive)
	res2, _ := svc.Search("FACTA", 5)
	if len(res2) != 1 || res2[0].Content != "factA" {
		t.Fatalf("expected single match, got %#v", res2)
	}
	// limit test
	res3, _ := svc.Search("", 3)
	if len(res3) != 3 {
		t.Fatalf("expected 3 limited results, got %d", len(res3))
	}
	// delete existing id
	if err := svc.Delete(ids[0]); err != nil {
		t.Fatalf("delete existing failed: %v", err)
	}
	res4, _ := svc.Search("", 10)
	if len(res4) != 4 {
		t.Fatalf("expected 4 after delete, got %d", len(res4))
	}
	// delete nonexistent
	if err := svc.Delete("does_not_exist"); err == nil {
		t.Fatalf("expected error deleting nonexistent memory")
	}
}

func TestInMemoryStore_Update(t *testing.T) {
	svc := NewInMemoryStore()
	id, err := svc.Store("prefers morning meetings", nil)
	if err != nil {
		t.Fatalf("store failed: %v", err)
	}
	if err := svc.Update(id, "prefers afternoon meetings"); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	res, _ := svc.Search("afternoon", 5)
	if len(res) != 1 || res[0].ID != id {
		t.Fatalf("expected updated content to match, got %#v", res)
	}
	if err := svc.Update("missing", "x"); err == nil {
		t.Fatalf("expected error updating nonexistent memory")
	}
}

func TestInMemoryStore_ConcurrentAccess(t *testing.T) {
	svc := NewInMemoryStore()
	wg := sync.WaitGroup{}
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := svc.Store("fact", map[string]any{"i": i}); err != nil {
				t.Errorf("store error: %v", err)
			}
			if _, err := svc.Search("fact", 5); err != nil {
				t.Errorf("search error: %v", err)
			}
		}(i)
	}
	wg.Wait()
	res, _ := svc.Search("", 100)
	if len(res) != 25 {
		t.Fatalf("expected 25 facts after concurrent stores, got %d", len(res))
	}
}
