package hierarchy

import (
	"cmp"
	"errors"
	"fmt"
	"slices"

	"github.com/onnwee/nodelayout/internal/geometry"
)

// NodeRecord is the persisted form of a node. Width and Height are the last
// measured size; renderers re-measure after a reload.
type NodeRecord struct {
	ID     NodeID  `json:"id"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Parent NodeID  `json:"parent,omitempty"`
	Order  int     `json:"order"`
	Z      int     `json:"z,omitempty"`
}

// Rect returns the rectangle of the record.
func (r NodeRecord) Rect() geometry.Rect {
	return geometry.Rect{X: r.X, Y: r.Y, Width: r.Width, Height: r.Height}
}

// Snapshot is the full serializable state of a Store.
type Snapshot struct {
	Version    uint64       `json:"version"`
	Nodes      []NodeRecord `json:"nodes"`
	Hierarchy  []Edge       `json:"hierarchy"`
	References []Reference  `json:"references"`
}

// Snapshot captures the store. Nodes are ordered by id.
func (s *Store) Snapshot() Snapshot {
	snap := Snapshot{
		Version:    s.version,
		Nodes:      make([]NodeRecord, 0, len(s.nodes)),
		Hierarchy:  s.Edges(),
		References: s.References(),
	}
	for _, n := range s.Nodes() {
		snap.Nodes = append(snap.Nodes, NodeRecord{
			ID:     n.ID,
			X:      n.Rect.X,
			Y:      n.Rect.Y,
			Width:  n.Rect.Width,
			Height: n.Rect.Height,
			Parent: n.Parent,
			Order:  n.Order,
			Z:      n.Z,
		})
	}
	if snap.Hierarchy == nil {
		snap.Hierarchy = []Edge{}
	}
	return snap
}

// Restore replaces the contents of the store with snap. The snapshot is
// validated first; on error the store is unchanged. Parents may come from
// either the node records or the hierarchy list, but the two must agree.
// Duplicate sibling orders are renumbered by (order, id).
func (s *Store) Restore(snap Snapshot) error {
	nodes := make(map[NodeID]*Node, len(snap.Nodes))
	for _, rec := range snap.Nodes {
		if rec.ID == "" {
			return errors.New("restore: node without id")
		}
		if _, dup := nodes[rec.ID]; dup {
			return fmt.Errorf("restore: %w", &duplicateError{id: rec.ID})
		}
		nodes[rec.ID] = &Node{
			ID:     rec.ID,
			Rect:   geometry.SnapRect(rec.Rect()),
			Parent: rec.Parent,
			Order:  rec.Order,
			Z:      rec.Z,
		}
	}
	for _, e := range snap.Hierarchy {
		c, ok := nodes[e.Child]
		if !ok {
			return fmt.Errorf("restore: hierarchy edge child: %w", notFound(e.Child))
		}
		if c.Parent != "" && c.Parent != e.Parent {
			return fmt.Errorf("restore: %s has conflicting parents %s and %s", e.Child, c.Parent, e.Parent)
		}
		c.Parent = e.Parent
	}
	for _, n := range nodes {
		if n.Parent == "" {
			continue
		}
		if _, ok := nodes[n.Parent]; !ok {
			return fmt.Errorf("restore: parent of %s: %w", n.ID, notFound(n.Parent))
		}
	}
	if id, ok := findCycle(nodes); ok {
		return fmt.Errorf("restore: %w", &CircularReferenceError{Child: id, Parent: nodes[id].Parent})
	}
	for _, r := range snap.References {
		if _, ok := nodes[r.A]; !ok {
			return fmt.Errorf("restore: reference: %w", notFound(r.A))
		}
		if _, ok := nodes[r.B]; !ok {
			return fmt.Errorf("restore: reference: %w", notFound(r.B))
		}
	}

	s.nodes = nodes
	s.children = make(map[NodeID]map[NodeID]struct{})
	for _, n := range nodes {
		s.attach(n)
	}
	for parent := range s.children {
		s.normalizeOrder(parent)
	}
	s.refs = slices.Clone(snap.References)
	s.version = max(s.version, snap.Version) + 1
	return nil
}

// Validate checks the forest invariants: every parent exists, parent chains
// end at a root, the child index agrees with the parent links, and sibling
// orders are unique and non-negative.
func (s *Store) Validate() error {
	for _, n := range s.nodes {
		if n.Parent != "" && !s.Has(n.Parent) {
			return fmt.Errorf("parent of %s: %w", n.ID, notFound(n.Parent))
		}
		if _, ok := s.children[n.Parent][n.ID]; !ok {
			return fmt.Errorf("%s missing from the children of %q", n.ID, n.Parent)
		}
	}
	if id, ok := findCycle(s.nodes); ok {
		return &CircularReferenceError{Child: id, Parent: s.nodes[id].Parent}
	}
	for parent, set := range s.children {
		orders := make(map[int]NodeID, len(set))
		for cid := range set {
			c, ok := s.nodes[cid]
			if !ok || c.Parent != parent {
				return fmt.Errorf("stale child %s under %q", cid, parent)
			}
			if c.Order < 0 {
				return fmt.Errorf("%s has negative order %d", cid, c.Order)
			}
			if other, dup := orders[c.Order]; dup {
				return fmt.Errorf("%s and %s share order %d", other, cid, c.Order)
			}
			orders[c.Order] = cid
		}
	}
	return nil
}

func (s *Store) normalizeOrder(parent NodeID) {
	kids := make([]*Node, 0, len(s.children[parent]))
	for cid := range s.children[parent] {
		kids = append(kids, s.nodes[cid])
	}
	slices.SortFunc(kids, func(a, b *Node) int { return compareOrder(*a, *b) })
	prev := -1
	for _, k := range kids {
		if k.Order <= prev {
			k.Order = prev + 1
		}
		prev = k.Order
	}
}

// findCycle returns a node that lies on a parent cycle.
func findCycle(nodes map[NodeID]*Node) (NodeID, bool) {
	const (
		unvisited = iota
		inProgress
		done
	)
	state := make(map[NodeID]int, len(nodes))
	ids := make([]NodeID, 0, len(nodes))
	for id := range nodes {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, cmp.Compare[NodeID])

	for _, start := range ids {
		var path []NodeID
		cur := start
		for cur != "" && state[cur] == unvisited {
			n, ok := nodes[cur]
			if !ok {
				break
			}
			state[cur] = inProgress
			path = append(path, cur)
			cur = n.Parent
		}
		if cur != "" && state[cur] == inProgress {
			return cur, true
		}
		for _, id := range path {
			state[id] = done
		}
	}
	return "", false
}
