package hierarchy

import (
	"encoding/json"
	"errors"
	"slices"
	"testing"

	"github.com/onnwee/nodelayout/internal/geometry"
)

func TestSnapshotRestore(t *testing.T) {
	s := New()
	if _, err := s.Insert(Node{ID: "r", Rect: geometry.Rect{X: 1, Y: 2, Width: 30, Height: 40}}, "", AutoOrder); err != nil {
		t.Fatal(err)
	}
	mustInsert(t, s, "a", "r")
	mustInsert(t, s, "b", "r")
	mustInsert(t, s, "lone", "")
	if err := s.AddReference("a", "lone"); err != nil {
		t.Fatal(err)
	}

	raw, err := json.Marshal(s.Snapshot())
	if err != nil {
		t.Fatal(err)
	}
	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		t.Fatal(err)
	}

	restored := New()
	if err := restored.Restore(snap); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if err := restored.Validate(); err != nil {
		t.Fatal(err)
	}
	if got := restored.ChildIDs("r"); !slices.Equal(got, []NodeID{"a", "b"}) {
		t.Errorf("children = %v", got)
	}
	r, _ := restored.Get("r")
	if r.Rect != (geometry.Rect{X: 1, Y: 2, Width: 30, Height: 40}) {
		t.Errorf("rect = %+v", r.Rect)
	}
	if len(restored.References()) != 1 {
		t.Errorf("references = %v", restored.References())
	}
	if restored.Version() <= snap.Version {
		t.Errorf("version %d should move past the snapshot's %d", restored.Version(), snap.Version)
	}
}

func TestRestoreHierarchyOnlyParents(t *testing.T) {
	s := New()
	err := s.Restore(Snapshot{
		Nodes:     []NodeRecord{{ID: "p"}, {ID: "c", Order: 3}, {ID: "d", Order: 3}},
		Hierarchy: []Edge{{Parent: "p", Child: "c"}, {Parent: "p", Child: "d"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if got := s.ChildIDs("p"); !slices.Equal(got, []NodeID{"c", "d"}) {
		t.Errorf("children = %v", got)
	}
	if err := s.Validate(); err != nil {
		t.Errorf("duplicate orders were not normalized: %v", err)
	}
}

func TestRestoreRejectsInvalidSnapshots(t *testing.T) {
	tests := []struct {
		name string
		snap Snapshot
		want error
	}{
		{
			name: "duplicate id",
			snap: Snapshot{Nodes: []NodeRecord{{ID: "a"}, {ID: "a"}}},
			want: ErrDuplicateNode,
		},
		{
			name: "unknown parent",
			snap: Snapshot{Nodes: []NodeRecord{{ID: "a", Parent: "ghost"}}},
			want: ErrNodeNotFound,
		},
		{
			name: "cycle",
			snap: Snapshot{Nodes: []NodeRecord{{ID: "a", Parent: "b"}, {ID: "b", Parent: "a"}}},
			want: ErrCircularReference,
		},
		{
			name: "self parent",
			snap: Snapshot{Nodes: []NodeRecord{{ID: "a", Parent: "a"}}},
			want: ErrCircularReference,
		},
		{
			name: "dangling reference",
			snap: Snapshot{Nodes: []NodeRecord{{ID: "a"}}, References: []Reference{{A: "a", B: "z"}}},
			want: ErrNodeNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New()
			mustInsert(t, s, "keep", "")
			err := s.Restore(tt.snap)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			if !s.Has("keep") || s.Len() != 1 {
				t.Error("failed restore modified the store")
			}
		})
	}
}

func TestRestoreConflictingParents(t *testing.T) {
	s := New()
	err := s.Restore(Snapshot{
		Nodes:     []NodeRecord{{ID: "p"}, {ID: "q"}, {ID: "c", Parent: "p"}},
		Hierarchy: []Edge{{Parent: "q", Child: "c"}},
	})
	if err == nil {
		t.Fatal("expected conflict error")
	}
}
