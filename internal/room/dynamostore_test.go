package room

import (
	"sort"
	"testing"

	"room-router-backend/internal/model"
)

func item(id, name string) model.RoomItem {
	return model.RoomItem{
		RoomID:     id,
		Name:       name,
		CreatedBy:  "alice",
		CreatedAt:  "2025-03-01T12:00:00Z",
		RoutingKey: id,
	}
}

func TestDiffItemsNewRoom(t *testing.T) {
	prev := map[string]model.RoomItem{"a": item("a", "General")}
	next := map[string]model.RoomItem{
		"a": item("a", "General"),
		"b": item("b", "Random"),
	}

	puts, deletes := diffItems(prev, next)
	if len(puts) != 1 || puts[0].RoomID != "b" {
		t.Fatalf("expected only the new room written, got %v", puts)
	}
	if len(deletes) != 0 {
		t.Fatalf("expected no deletes, got %v", deletes)
	}
}

func TestDiffItemsUnchangedWritesNothing(t *testing.T) {
	prev := map[string]model.RoomItem{"a": item("a", "General")}
	next := map[string]model.RoomItem{"a": item("a", "General")}

	puts, deletes := diffItems(prev, next)
	if len(puts) != 0 || len(deletes) != 0 {
		t.Fatalf("expected empty diff, got puts=%v deletes=%v", puts, deletes)
	}
}

func TestDiffItemsChangedRoomRewritten(t *testing.T) {
	prev := map[string]model.RoomItem{"a": item("a", "General")}
	next := map[string]model.RoomItem{"a": item("a", "Renamed")}

	puts, deletes := diffItems(prev, next)
	if len(puts) != 1 || puts[0].Name != "Renamed" {
		t.Fatalf("expected changed room rewritten, got %v", puts)
	}
	if len(deletes) != 0 {
		t.Fatalf("expected no deletes, got %v", deletes)
	}
}

func TestDiffItemsRemovedRoomDeleted(t *testing.T) {
	prev := map[string]model.RoomItem{
		"a": item("a", "General"),
		"b": item("b", "Random"),
	}
	next := map[string]model.RoomItem{"a": item("a", "General")}

	puts, deletes := diffItems(prev, next)
	if len(puts) != 0 {
		t.Fatalf("expected no puts, got %v", puts)
	}
	if len(deletes) != 1 || deletes[0] != "b" {
		t.Fatalf("expected room b deleted, got %v", deletes)
	}
}

func TestDiffItemsNilPrevWritesEverything(t *testing.T) {
	next := map[string]model.RoomItem{
		"a": item("a", "General"),
		"b": item("b", "Random"),
	}

	puts, deletes := diffItems(nil, next)
	if len(puts) != 2 {
		t.Fatalf("expected both rooms written, got %v", puts)
	}
	if len(deletes) != 0 {
		t.Fatalf("expected no deletes, got %v", deletes)
	}

	ids := []string{puts[0].RoomID, puts[1].RoomID}
	sort.Strings(ids)
	if ids[0] != "a" || ids[1] != "b" {
		t.Fatalf("unexpected put ids %v", ids)
	}
}
