package hierarchy

import (
	"errors"
	"fmt"
	"math/rand"
	"slices"
	"testing"

	"github.com/onnwee/nodelayout/internal/geometry"
)

func sequentialIDs() Option {
	n := 0
	return WithIDGenerator(func() NodeID {
		n++
		return NodeID(fmt.Sprintf("n%d", n))
	})
}

func mustInsert(t *testing.T, s *Store, id, parent NodeID) NodeID {
	t.Helper()
	got, err := s.Insert(Node{ID: id, Rect: geometry.Rect{Width: 100, Height: 40}}, parent, AutoOrder)
	if err != nil {
		t.Fatalf("Insert(%s, %s): %v", id, parent, err)
	}
	return got
}

func TestInsert(t *testing.T) {
	s := New(sequentialIDs())

	root := mustInsert(t, s, "", "")
	if root != "n1" {
		t.Errorf("generated id = %s, want n1", root)
	}
	a := mustInsert(t, s, "a", root)
	b := mustInsert(t, s, "b", root)

	if got := s.ChildIDs(root); !slices.Equal(got, []NodeID{a, b}) {
		t.Errorf("children = %v, want [a b]", got)
	}

	if _, err := s.Insert(Node{ID: "a"}, "", AutoOrder); !errors.Is(err, ErrDuplicateNode) {
		t.Errorf("duplicate insert err = %v, want ErrDuplicateNode", err)
	}
	if _, err := s.Insert(Node{ID: "x"}, "missing", AutoOrder); !errors.Is(err, ErrNodeNotFound) {
		t.Errorf("missing parent err = %v, want ErrNodeNotFound", err)
	}
	if s.Has("x") {
		t.Error("failed insert left a node behind")
	}
}

func TestInsertExplicitOrderShiftsSiblings(t *testing.T) {
	s := New()
	mustInsert(t, s, "p", "")
	mustInsert(t, s, "a", "p")
	mustInsert(t, s, "b", "p")
	if _, err := s.Insert(Node{ID: "c"}, "p", 0); err != nil {
		t.Fatal(err)
	}
	if got := s.ChildIDs("p"); !slices.Equal(got, []NodeID{"c", "a", "b"}) {
		t.Errorf("children = %v, want [c a b]", got)
	}
	if err := s.Validate(); err != nil {
		t.Fatal(err)
	}
}

func TestReparent(t *testing.T) {
	tests := []struct {
		name       string
		child      NodeID
		newParent  NodeID
		wantOld    NodeID
		wantErr    error
		wantParent NodeID
	}{
		{"move under sibling", "b", "a", "root", nil, "a"},
		{"detach to root", "a", "", "root", nil, ""},
		{"same parent", "a", "root", "root", nil, "root"},
		{"self", "a", "a", "", ErrCircularReference, "root"},
		{"onto descendant", "root", "a1", "", ErrCircularReference, ""},
		{"onto grandchild", "a", "a1x", "", ErrCircularReference, "root"},
		{"missing child", "ghost", "a", "", ErrNodeNotFound, ""},
		{"missing parent", "a", "ghost", "", ErrNodeNotFound, "root"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New()
			mustInsert(t, s, "root", "")
			mustInsert(t, s, "a", "root")
			mustInsert(t, s, "b", "root")
			mustInsert(t, s, "a1", "a")
			mustInsert(t, s, "a1x", "a1")
			before := s.Snapshot()

			old, err := s.Reparent(tt.child, tt.newParent)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				after := s.Snapshot()
				if fmt.Sprint(before) != fmt.Sprint(after) {
					t.Error("refused reparent changed the store")
				}
			} else if err != nil {
				t.Fatalf("unexpected error: %v", err)
			} else if old != tt.wantOld {
				t.Errorf("old parent = %q, want %q", old, tt.wantOld)
			}
			if n, ok := s.Get(tt.child); ok && n.Parent != tt.wantParent {
				t.Errorf("parent = %q, want %q", n.Parent, tt.wantParent)
			}
			if err := s.Validate(); err != nil {
				t.Errorf("Validate: %v", err)
			}
		})
	}
}

func TestReparentAppendsAsLastSibling(t *testing.T) {
	s := New()
	mustInsert(t, s, "p", "")
	mustInsert(t, s, "q", "")
	mustInsert(t, s, "a", "p")
	mustInsert(t, s, "b", "p")
	mustInsert(t, s, "c", "p")
	mustInsert(t, s, "x", "q")

	// leave a gap at order 0 under p
	if _, err := s.Reparent("a", "q"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Reparent("x", "p"); err != nil {
		t.Fatal(err)
	}
	if got := s.ChildIDs("p"); !slices.Equal(got, []NodeID{"b", "c", "x"}) {
		t.Errorf("children of p = %v, want [b c x]", got)
	}
	if err := s.Validate(); err != nil {
		t.Fatal(err)
	}
}

func TestCircularReferenceError(t *testing.T) {
	s := New()
	mustInsert(t, s, "a", "")
	mustInsert(t, s, "b", "a")
	_, err := s.Reparent("a", "b")
	var cre *CircularReferenceError
	if !errors.As(err, &cre) {
		t.Fatalf("err = %v, want *CircularReferenceError", err)
	}
	if cre.Child != "a" || cre.Parent != "b" {
		t.Errorf("error = %+v", cre)
	}
}

func TestRemoveOrphansChildren(t *testing.T) {
	s := New()
	mustInsert(t, s, "p", "")
	mustInsert(t, s, "c1", "p")
	mustInsert(t, s, "c2", "p")
	mustInsert(t, s, "other", "")
	if err := s.AddReference("p", "other"); err != nil {
		t.Fatal(err)
	}
	if err := s.AddReference("c1", "other"); err != nil {
		t.Fatal(err)
	}

	orphans, err := s.Remove("p")
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(orphans, []NodeID{"c1", "c2"}) {
		t.Errorf("orphans = %v", orphans)
	}
	for _, id := range orphans {
		n, ok := s.Get(id)
		if !ok || n.Parent != "" {
			t.Errorf("%s: parent = %q, want root", id, n.Parent)
		}
	}
	if refs := s.References(); len(refs) != 1 || refs[0] != (Reference{A: "c1", B: "other"}) {
		t.Errorf("references = %v", refs)
	}
	for _, e := range s.Edges() {
		if e.Parent == "p" || e.Child == "p" {
			t.Errorf("edge %v still references removed node", e)
		}
	}
	if _, err := s.Remove("p"); !errors.Is(err, ErrNodeNotFound) {
		t.Errorf("second remove err = %v", err)
	}
	if err := s.Validate(); err != nil {
		t.Fatal(err)
	}
}

func TestAncestors(t *testing.T) {
	s := New()
	mustInsert(t, s, "a", "")
	mustInsert(t, s, "b", "a")
	mustInsert(t, s, "c", "b")

	got := slices.Collect(s.Ancestors("c"))
	if !slices.Equal(got, []NodeID{"b", "a"}) {
		t.Errorf("Ancestors(c) = %v", got)
	}
	if got := slices.Collect(s.Ancestors("a")); len(got) != 0 {
		t.Errorf("Ancestors(root) = %v", got)
	}
	if got := slices.Collect(s.Ancestors("ghost")); len(got) != 0 {
		t.Errorf("Ancestors(ghost) = %v", got)
	}

	// corrupt the store into a cycle; the walk must still terminate
	s.nodes["a"].Parent = "c"
	got = slices.Collect(s.Ancestors("c"))
	if len(got) != 2 {
		t.Errorf("Ancestors over a cycle = %v", got)
	}
}

func TestDescendants(t *testing.T) {
	s := New()
	mustInsert(t, s, "r", "")
	mustInsert(t, s, "a", "r")
	mustInsert(t, s, "b", "r")
	mustInsert(t, s, "a1", "a")
	if got := s.Descendants("r"); !slices.Equal(got, []NodeID{"a", "b", "a1"}) {
		t.Errorf("Descendants = %v", got)
	}
}

func TestMoveToOrder(t *testing.T) {
	s := New()
	mustInsert(t, s, "p", "")
	for _, id := range []NodeID{"a", "b", "c", "d"} {
		mustInsert(t, s, id, "p")
	}
	if err := s.MoveToOrder("d", 1); err != nil {
		t.Fatal(err)
	}
	if got := s.ChildIDs("p"); !slices.Equal(got, []NodeID{"a", "d", "b", "c"}) {
		t.Errorf("children = %v", got)
	}
	if err := s.MoveToOrder("a", 99); err != nil {
		t.Fatal(err)
	}
	if got := s.ChildIDs("p"); !slices.Equal(got, []NodeID{"d", "b", "c", "a"}) {
		t.Errorf("children = %v", got)
	}
	for i, c := range s.Children("p") {
		if c.Order != i {
			t.Errorf("%s order = %d, want %d", c.ID, c.Order, i)
		}
	}
}

func TestReorderRejectsPartialSets(t *testing.T) {
	s := New()
	mustInsert(t, s, "p", "")
	mustInsert(t, s, "a", "p")
	mustInsert(t, s, "b", "p")
	mustInsert(t, s, "x", "")
	for _, ids := range [][]NodeID{{"a"}, {"a", "a"}, {"a", "x"}, {"a", "b", "x"}} {
		if err := s.Reorder("p", ids); !errors.Is(err, ErrInvalidOrder) {
			t.Errorf("Reorder(%v) err = %v", ids, err)
		}
	}
	if err := s.Reorder("p", []NodeID{"b", "a"}); err != nil {
		t.Fatal(err)
	}
	if got := s.ChildIDs("p"); !slices.Equal(got, []NodeID{"b", "a"}) {
		t.Errorf("children = %v", got)
	}
}

func TestSetSizeKeepsCorner(t *testing.T) {
	s := New()
	if _, err := s.Insert(Node{ID: "a", Rect: geometry.Rect{X: 10, Y: 20, Width: 5, Height: 5}}, "", AutoOrder); err != nil {
		t.Fatal(err)
	}
	v := s.Version()
	if err := s.SetSize("a", 80, 30); err != nil {
		t.Fatal(err)
	}
	n, _ := s.Get("a")
	if n.Rect != (geometry.Rect{X: 10, Y: 20, Width: 80, Height: 30}) {
		t.Errorf("rect = %+v", n.Rect)
	}
	if s.Version() == v {
		t.Error("version did not advance")
	}
	if err := s.SetPosition("ghost", geometry.Point{}); !errors.Is(err, ErrNodeNotFound) {
		t.Errorf("SetPosition(ghost) err = %v", err)
	}
}

func TestReferences(t *testing.T) {
	s := New()
	mustInsert(t, s, "a", "")
	mustInsert(t, s, "b", "")
	if err := s.AddReference("a", "ghost"); !errors.Is(err, ErrNodeNotFound) {
		t.Errorf("err = %v", err)
	}
	_ = s.AddReference("a", "b")
	_ = s.AddReference("a", "b")
	if !s.RemoveReference("b", "a") {
		t.Error("RemoveReference should match either direction")
	}
	if len(s.References()) != 1 {
		t.Errorf("references = %v", s.References())
	}
}

// TestRandomOperationsKeepForest applies random inserts, reparents and
// removals and checks the forest invariants after every step.
func TestRandomOperationsKeepForest(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	s := New(sequentialIDs())
	var ids []NodeID

	pick := func() NodeID {
		if len(ids) == 0 {
			return ""
		}
		return ids[rng.Intn(len(ids))]
	}

	for step := 0; step < 3000; step++ {
		switch op := rng.Intn(10); {
		case op < 4:
			parent := NodeID("")
			if rng.Intn(3) > 0 {
				parent = pick()
			}
			id, err := s.Insert(Node{}, parent, AutoOrder)
			if err != nil {
				t.Fatalf("step %d: insert: %v", step, err)
			}
			ids = append(ids, id)
		case op < 8:
			child, parent := pick(), pick()
			if child == "" {
				continue
			}
			_, err := s.Reparent(child, parent)
			if err != nil && !errors.Is(err, ErrCircularReference) {
				t.Fatalf("step %d: reparent: %v", step, err)
			}
			if err != nil && !s.IsAncestorOrSelf(child, parent) {
				t.Fatalf("step %d: refused a legal reparent of %s under %s", step, child, parent)
			}
		default:
			id := pick()
			if id == "" {
				continue
			}
			if _, err := s.Remove(id); err != nil {
				t.Fatalf("step %d: remove: %v", step, err)
			}
			ids = slices.DeleteFunc(ids, func(x NodeID) bool { return x == id })
		}
		if err := s.Validate(); err != nil {
			t.Fatalf("step %d: %v", step, err)
		}
		for _, n := range s.Nodes() {
			depth := 0
			for range s.Ancestors(n.ID) {
				depth++
			}
			if depth >= s.Len() {
				t.Fatalf("step %d: %s has an unbounded ancestor chain", step, n.ID)
			}
		}
	}
}
