package force

import "math"

// maxQuadDepth stops subdivision for particles that sit on (almost) the same
// point. Such particles share one leaf and exert no charge on each other; the
// collide force separates them instead.
const maxQuadDepth = 40

// quadNode is a Barnes-Hut quadtree cell over particle centers.
type quadNode struct {
	// Spatial bounds
	x, y, size float64
	depth      int

	// Center of mass
	centerX, centerY float64
	mass             float64

	bodies   []int // leaf contents
	isLeaf   bool
	children [4]*quadNode // nw, ne, sw, se
}

func newQuadNode(x, y, size float64, depth int) *quadNode {
	return &quadNode{x: x, y: y, size: size, depth: depth, isLeaf: true}
}

func (n *quadNode) insert(i int, px, py, m float64) {
	if n.isLeaf {
		if len(n.bodies) == 0 || n.depth >= maxQuadDepth {
			n.addMass(px, py, m)
			n.bodies = append(n.bodies, i)
			return
		}

		// Split: the single resident moves down one level.
		old, oldX, oldY, oldMass := n.bodies[0], n.centerX, n.centerY, n.mass
		n.isLeaf = false
		n.bodies = nil
		half := n.size / 2
		n.children[0] = newQuadNode(n.x, n.y, half, n.depth+1)
		n.children[1] = newQuadNode(n.x+half, n.y, half, n.depth+1)
		n.children[2] = newQuadNode(n.x, n.y+half, half, n.depth+1)
		n.children[3] = newQuadNode(n.x+half, n.y+half, half, n.depth+1)
		n.quadrant(oldX, oldY).insert(old, oldX, oldY, oldMass)
	}

	n.addMass(px, py, m)
	n.quadrant(px, py).insert(i, px, py, m)
}

func (n *quadNode) addMass(px, py, m float64) {
	total := n.mass + m
	n.centerX = (n.centerX*n.mass + px*m) / total
	n.centerY = (n.centerY*n.mass + py*m) / total
	n.mass = total
}

func (n *quadNode) quadrant(px, py float64) *quadNode {
	half := n.size / 2
	idx := 0
	if px >= n.x+half {
		idx |= 1
	}
	if py >= n.y+half {
		idx |= 2
	}
	return n.children[idx]
}

func (n *quadNode) contains(i int) bool {
	for _, b := range n.bodies {
		if b == i {
			return true
		}
	}
	return false
}

// force returns the repulsion on particle i at (px, py). Cells that look
// small from (px, py), size/dist < theta, act as a single mass at their
// center of mass. The magnitude falls off with the square of the distance.
func (n *quadNode) force(i int, px, py, theta, strength float64) (float64, float64) {
	if n.mass == 0 {
		return 0, 0
	}
	if n.isLeaf && n.contains(i) {
		return 0, 0
	}

	dx := n.centerX - px
	dy := n.centerY - py
	dist := math.Sqrt(dx*dx + dy*dy)

	if n.isLeaf || n.size/dist < theta {
		if dist < 1e-6 {
			return 0, 0
		}
		f := strength * n.mass / (dist * dist)
		return -dx / dist * f, -dy / dist * f
	}

	fx, fy := 0.0, 0.0
	for _, c := range n.children {
		if c == nil {
			continue
		}
		cfx, cfy := c.force(i, px, py, theta, strength)
		fx += cfx
		fy += cfy
	}
	return fx, fy
}

// buildQuadTree builds a square tree around every particle center.
func buildQuadTree(ps []Particle) *quadNode {
	if len(ps) == 0 {
		return nil
	}

	minX, maxX := ps[0].X, ps[0].X
	minY, maxY := ps[0].Y, ps[0].Y
	for _, p := range ps[1:] {
		minX = math.Min(minX, p.X)
		maxX = math.Max(maxX, p.X)
		minY = math.Min(minY, p.Y)
		maxY = math.Max(maxY, p.Y)
	}

	// 10% padding keeps boundary particles off the cell edges
	size := math.Max(maxX-minX, maxY-minY)
	if size == 0 {
		size = 1
	}
	pad := size * 0.1
	size += 2 * pad
	cx := (minX + maxX) / 2
	cy := (minY + maxY) / 2

	root := newQuadNode(cx-size/2, cy-size/2, size, 0)
	for i, p := range ps {
		root.insert(i, p.X, p.Y, 1)
	}
	return root
}

// chargeForces computes the Barnes-Hut repulsion on every particle.
func chargeForces(ps []Particle, theta, strength float64) (dispX, dispY []float64) {
	dispX = make([]float64, len(ps))
	dispY = make([]float64, len(ps))

	tree := buildQuadTree(ps)
	if tree == nil {
		return dispX, dispY
	}
	for i, p := range ps {
		dispX[i], dispY[i] = tree.force(i, p.X, p.Y, theta, strength)
	}
	return dispX, dispY
}
