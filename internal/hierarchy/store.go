// Package hierarchy holds the canonical node set of a canvas: positioned
// nodes, their single-parent tree links with sibling order, and free-form
// reference edges between any two nodes.
//
// The store is not safe for concurrent use. Every mutation validates its
// inputs before writing, so a refused operation leaves the store untouched.
package hierarchy

import (
	"cmp"
	"iter"
	"slices"

	"github.com/google/uuid"

	"github.com/onnwee/nodelayout/internal/geometry"
)

// NodeID is the opaque, stable identity of a node.
type NodeID string

// AutoOrder asks Insert to append the node after its existing siblings.
const AutoOrder = -1

// Node is a positioned entity on the canvas. An empty Parent marks a root.
type Node struct {
	ID     NodeID
	Rect   geometry.Rect
	Parent NodeID
	Order  int
	Z      int
}

// Edge is the derived parent→child link of a non-root node.
type Edge struct {
	Parent NodeID `json:"parent"`
	Child  NodeID `json:"child"`
}

// Reference is an unordered, non-hierarchical link between two nodes.
type Reference struct {
	A NodeID `json:"a"`
	B NodeID `json:"b"`
}

func (r Reference) matches(a, b NodeID) bool {
	return (r.A == a && r.B == b) || (r.A == b && r.B == a)
}

// Store is the canonical hierarchy of one canvas.
type Store struct {
	nodes    map[NodeID]*Node
	children map[NodeID]map[NodeID]struct{} // "" holds the roots
	refs     []Reference
	version  uint64
	newID    func() NodeID
}

// Option configures a Store.
type Option func(*Store)

// WithIDGenerator replaces the UUID generator used for nodes inserted
// without an id.
func WithIDGenerator(fn func() NodeID) Option {
	return func(s *Store) { s.newID = fn }
}

// New returns an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		nodes:    make(map[NodeID]*Node),
		children: make(map[NodeID]map[NodeID]struct{}),
		newID:    func() NodeID { return NodeID(uuid.NewString()) },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Len returns the number of nodes.
func (s *Store) Len() int { return len(s.nodes) }

// Version increases on every successful mutation.
func (s *Store) Version() uint64 { return s.version }

// Has reports whether id is present.
func (s *Store) Has(id NodeID) bool {
	_, ok := s.nodes[id]
	return ok
}

// Get returns a copy of the node.
func (s *Store) Get(id NodeID) (Node, bool) {
	n, ok := s.nodes[id]
	if !ok {
		return Node{}, false
	}
	return *n, true
}

// Nodes returns copies of every node ordered by id.
func (s *Store) Nodes() []Node {
	out := make([]Node, 0, len(s.nodes))
	for _, n := range s.nodes {
		out = append(out, *n)
	}
	slices.SortFunc(out, func(a, b Node) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

// Insert adds n under parent (empty for a root) and returns its id.
// A node without an id gets a generated one. With AutoOrder the node is
// appended after its siblings; an explicit order that is already taken
// shifts the occupying sibling and everything after it up by one.
func (s *Store) Insert(n Node, parent NodeID, order int) (NodeID, error) {
	if n.ID == "" {
		n.ID = s.newID()
	}
	if _, exists := s.nodes[n.ID]; exists {
		return "", &duplicateError{id: n.ID}
	}
	if parent != "" && !s.Has(parent) {
		return "", notFound(parent)
	}

	n.Parent = parent
	n.Rect = geometry.SnapRect(n.Rect)
	if order < 0 {
		n.Order = s.nextOrder(parent)
	} else {
		s.makeRoom(parent, order)
		n.Order = order
	}
	node := n
	s.nodes[n.ID] = &node
	s.attach(&node)
	s.version++
	return n.ID, nil
}

// Reparent moves child under newParent and returns the previous parent.
// An empty newParent detaches the child to the root group. The child is
// appended as the last sibling of its new group. Reparenting to the current
// parent changes nothing.
func (s *Store) Reparent(child, newParent NodeID) (NodeID, error) {
	c, ok := s.nodes[child]
	if !ok {
		return "", notFound(child)
	}
	if newParent != "" {
		if !s.Has(newParent) {
			return "", notFound(newParent)
		}
		if s.IsAncestorOrSelf(child, newParent) {
			return "", &CircularReferenceError{Child: child, Parent: newParent}
		}
	}

	old := c.Parent
	if old == newParent {
		return old, nil
	}
	s.detach(c)
	c.Parent = newParent
	c.Order = s.nextOrder(newParent)
	s.attach(c)
	s.version++
	return old, nil
}

// Remove deletes id together with its incident reference edges. Its direct
// children become roots and are returned in their former sibling order.
func (s *Store) Remove(id NodeID) ([]NodeID, error) {
	n, ok := s.nodes[id]
	if !ok {
		return nil, notFound(id)
	}

	orphans := s.ChildIDs(id)
	s.detach(n)
	delete(s.nodes, id)
	delete(s.children, id)
	for _, cid := range orphans {
		c := s.nodes[cid]
		c.Parent = ""
		c.Order = s.nextOrder("")
		s.attach(c)
	}
	s.refs = slices.DeleteFunc(s.refs, func(r Reference) bool { return r.A == id || r.B == id })
	s.version++
	return orphans, nil
}

// Children returns copies of the children of id in ascending order.
// Pass an empty id to list the roots.
func (s *Store) Children(id NodeID) []Node {
	set := s.children[id]
	out := make([]Node, 0, len(set))
	for cid := range set {
		out = append(out, *s.nodes[cid])
	}
	slices.SortFunc(out, compareOrder)
	return out
}

// ChildIDs is Children without the copies.
func (s *Store) ChildIDs(id NodeID) []NodeID {
	kids := s.Children(id)
	ids := make([]NodeID, len(kids))
	for i, k := range kids {
		ids[i] = k.ID
	}
	return ids
}

// Roots returns every parentless node in ascending order.
func (s *Store) Roots() []Node { return s.Children("") }

// Ancestors yields the parent chain of id, nearest first. The sequence ends
// at a root, at an unknown id, or at the first id it has already produced.
func (s *Store) Ancestors(id NodeID) iter.Seq[NodeID] {
	return func(yield func(NodeID) bool) {
		seen := map[NodeID]struct{}{id: {}}
		n, ok := s.nodes[id]
		for ok && n.Parent != "" {
			p := n.Parent
			if _, dup := seen[p]; dup {
				return
			}
			seen[p] = struct{}{}
			if !yield(p) {
				return
			}
			n, ok = s.nodes[p]
		}
	}
}

// IsAncestorOrSelf reports whether ancestor is id or lies on its parent chain.
func (s *Store) IsAncestorOrSelf(ancestor, id NodeID) bool {
	if ancestor == id {
		return true
	}
	for a := range s.Ancestors(id) {
		if a == ancestor {
			return true
		}
	}
	return false
}

// Descendants returns every node below id, breadth first, children in order.
func (s *Store) Descendants(id NodeID) []NodeID {
	var out []NodeID
	seen := map[NodeID]struct{}{id: {}}
	queue := []NodeID{id}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, cid := range s.ChildIDs(cur) {
			if _, dup := seen[cid]; dup {
				continue
			}
			seen[cid] = struct{}{}
			out = append(out, cid)
			queue = append(queue, cid)
		}
	}
	return out
}

// Edges returns the hierarchy edge of every non-root node, ordered by parent
// then sibling order.
func (s *Store) Edges() []Edge {
	var out []Edge
	for _, n := range s.Nodes() {
		for _, c := range s.Children(n.ID) {
			out = append(out, Edge{Parent: n.ID, Child: c.ID})
		}
	}
	return out
}

// SetRect replaces the rectangle of id.
func (s *Store) SetRect(id NodeID, r geometry.Rect) error {
	n, ok := s.nodes[id]
	if !ok {
		return notFound(id)
	}
	r = geometry.SnapRect(r)
	if n.Rect != r {
		n.Rect = r
		s.version++
	}
	return nil
}

// SetPosition moves the top-left corner of id.
func (s *Store) SetPosition(id NodeID, p geometry.Point) error {
	n, ok := s.nodes[id]
	if !ok {
		return notFound(id)
	}
	return s.SetRect(id, n.Rect.Moved(p))
}

// SetSize changes the size of id, keeping its top-left corner.
func (s *Store) SetSize(id NodeID, w, h float64) error {
	n, ok := s.nodes[id]
	if !ok {
		return notFound(id)
	}
	r := n.Rect
	r.Width, r.Height = w, h
	return s.SetRect(id, r)
}

// Reorder assigns order = rank to the children of parent. ids must list
// every child exactly once.
func (s *Store) Reorder(parent NodeID, ids []NodeID) error {
	set := s.children[parent]
	if len(ids) != len(set) {
		return ErrInvalidOrder
	}
	seen := make(map[NodeID]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := set[id]; !ok {
			return ErrInvalidOrder
		}
		if _, dup := seen[id]; dup {
			return ErrInvalidOrder
		}
		seen[id] = struct{}{}
	}
	changed := false
	for rank, id := range ids {
		if n := s.nodes[id]; n.Order != rank {
			n.Order = rank
			changed = true
		}
	}
	if changed {
		s.version++
	}
	return nil
}

// MoveToOrder moves id to position order among its siblings and renumbers
// the whole group densely. Out of range orders are clamped.
func (s *Store) MoveToOrder(id NodeID, order int) error {
	n, ok := s.nodes[id]
	if !ok {
		return notFound(id)
	}
	siblings := slices.DeleteFunc(s.ChildIDs(n.Parent), func(sid NodeID) bool { return sid == id })
	order = max(0, min(order, len(siblings)))
	ids := slices.Insert(siblings, order, id)
	return s.Reorder(n.Parent, ids)
}

// AddReference links a and b with a non-hierarchical edge.
func (s *Store) AddReference(a, b NodeID) error {
	if !s.Has(a) {
		return notFound(a)
	}
	if !s.Has(b) {
		return notFound(b)
	}
	s.refs = append(s.refs, Reference{A: a, B: b})
	s.version++
	return nil
}

// RemoveReference deletes one reference between a and b in either direction.
func (s *Store) RemoveReference(a, b NodeID) bool {
	i := slices.IndexFunc(s.refs, func(r Reference) bool { return r.matches(a, b) })
	if i < 0 {
		return false
	}
	s.refs = slices.Delete(s.refs, i, i+1)
	s.version++
	return true
}

// References returns every reference edge in insertion order.
func (s *Store) References() []Reference {
	return slices.Clone(s.refs)
}

func (s *Store) attach(n *Node) {
	set, ok := s.children[n.Parent]
	if !ok {
		set = make(map[NodeID]struct{})
		s.children[n.Parent] = set
	}
	set[n.ID] = struct{}{}
}

func (s *Store) detach(n *Node) {
	if set, ok := s.children[n.Parent]; ok {
		delete(set, n.ID)
		if len(set) == 0 && n.Parent != "" {
			delete(s.children, n.Parent)
		}
	}
}

// nextOrder is the sibling count, bumped past the largest order in use so
// that gaps left by departed siblings never produce a duplicate.
func (s *Store) nextOrder(parent NodeID) int {
	next := len(s.children[parent])
	for cid := range s.children[parent] {
		if o := s.nodes[cid].Order; o >= next {
			next = o + 1
		}
	}
	return next
}

func (s *Store) makeRoom(parent NodeID, order int) {
	taken := false
	for cid := range s.children[parent] {
		if s.nodes[cid].Order == order {
			taken = true
			break
		}
	}
	if !taken {
		return
	}
	for cid := range s.children[parent] {
		if c := s.nodes[cid]; c.Order >= order {
			c.Order++
		}
	}
}

func compareOrder(a, b Node) int {
	if c := cmp.Compare(a.Order, b.Order); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

type duplicateError struct{ id NodeID }

func (e *duplicateError) Error() string { return "duplicate node: " + string(e.id) }

func (e *duplicateError) Unwrap() error { return ErrDuplicateNode }
