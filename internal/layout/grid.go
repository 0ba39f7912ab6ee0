package layout

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"slices"
)

// Direction places a panel relative to a reference panel.
type Direction string

const (
	Left   Direction = "left"
	Right  Direction = "right"
	Above  Direction = "above"
	Below  Direction = "below"
	Within Direction = "within"
)

// Orientation is the axis a branch lays its children along.
type Orientation string

const (
	Row    Orientation = "row"
	Column Orientation = "column"
)

var (
	ErrPanelExists  = errors.New("panel already in grid")
	ErrPanelMissing = errors.New("panel not in grid")
	ErrUnknownPanel = errors.New("unknown panel")
)

// Node is either a branch (Children set) or a leaf group of tabbed panels.
// Size is the node's fraction of its parent along the parent's axis.
type Node struct {
	Size        float64     `json:"size"`
	Orientation Orientation `json:"orientation,omitempty"`
	Children    []*Node     `json:"children,omitempty"`
	Panels      []PanelID   `json:"panels,omitempty"`
	Active      PanelID     `json:"active,omitempty"`
}

func (n *Node) isLeaf() bool { return len(n.Children) == 0 }

func (n *Node) clone() *Node {
	if n == nil {
		return nil
	}
	out := &Node{
		Size:        n.Size,
		Orientation: n.Orientation,
		Panels:      slices.Clone(n.Panels),
		Active:      n.Active,
	}
	for _, c := range n.Children {
		out.Children = append(out.Children, c.clone())
	}
	return out
}

// Grid is a split tree of panel groups. The zero value is an empty grid.
type Grid struct {
	root *Node
}

// NewGrid returns an empty grid.
func NewGrid() *Grid { return &Grid{} }

// Empty reports whether no panel is placed.
func (g *Grid) Empty() bool { return g.root == nil }

// Clone returns a deep copy.
func (g *Grid) Clone() *Grid {
	return &Grid{root: g.root.clone()}
}

// Root exposes the tree for rendering. Callers must not mutate it.
func (g *Grid) Root() *Node { return g.root }

// Has reports whether id is placed.
func (g *Grid) Has(id PanelID) bool {
	leaf, _, _ := g.locate(id)
	return leaf != nil
}

// Panels lists placed panels depth-first, tabs in tab order.
func (g *Grid) Panels() []PanelID {
	var out []PanelID
	var walk func(n *Node)
	walk = func(n *Node) {
		if n == nil {
			return
		}
		if n.isLeaf() {
			out = append(out, n.Panels...)
			return
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(g.root)
	return out
}

// locate finds the leaf holding id, its parent and its index in the parent.
func (g *Grid) locate(id PanelID) (leaf, parent *Node, idx int) {
	var walk func(n, p *Node, i int) bool
	walk = func(n, p *Node, i int) bool {
		if n.isLeaf() {
			if slices.Contains(n.Panels, id) {
				leaf, parent, idx = n, p, i
				return true
			}
			return false
		}
		for ci, c := range n.Children {
			if walk(c, n, ci) {
				return true
			}
		}
		return false
	}
	if g.root != nil {
		walk(g.root, nil, 0)
	}
	return leaf, parent, idx
}

// parentOf returns the branch holding target, or nil for the root.
func (g *Grid) parentOf(target *Node) (*Node, int) {
	var found *Node
	var at int
	var walk func(n *Node)
	walk = func(n *Node) {
		for i, c := range n.Children {
			if found != nil {
				return
			}
			if c == target {
				found, at = n, i
				return
			}
			walk(c)
		}
	}
	if g.root != nil && g.root != target {
		walk(g.root)
	}
	return found, at
}

func axis(dir Direction) (Orientation, bool) {
	switch dir {
	case Left:
		return Row, true
	case Right:
		return Row, false
	case Above:
		return Column, true
	default:
		return Column, false
	}
}

// Add places id relative to ref. Within adds id as the active tab of ref's
// group; the other directions split ref's space. When ref is empty or not
// placed, id is docked along the right edge of the whole grid.
func (g *Grid) Add(id, ref PanelID, dir Direction) error {
	if id == "" {
		return ErrUnknownPanel
	}
	if g.Has(id) {
		return fmt.Errorf("%s: %w", id, ErrPanelExists)
	}
	leaf := &Node{Panels: []PanelID{id}, Active: id}
	if g.root == nil {
		leaf.Size = 1
		g.root = leaf
		return nil
	}

	target, _, _ := g.locate(ref)
	if ref == "" || target == nil {
		target, dir = g.root, Right
	}

	if dir == Within {
		target.Panels = append(target.Panels, id)
		target.Active = id
		return nil
	}

	orient, before := axis(dir)
	if !target.isLeaf() && target.Orientation == orient {
		n := float64(len(target.Children))
		for _, c := range target.Children {
			c.Size *= n / (n + 1)
		}
		leaf.Size = 1 / (n + 1)
		if before {
			target.Children = slices.Insert(target.Children, 0, leaf)
		} else {
			target.Children = append(target.Children, leaf)
		}
		return nil
	}

	parent, idx := g.parentOf(target)
	if parent != nil && parent.Orientation == orient {
		leaf.Size = target.Size / 2
		target.Size /= 2
		at := idx + 1
		if before {
			at = idx
		}
		parent.Children = slices.Insert(parent.Children, at, leaf)
		return nil
	}

	// Wrap target in a new branch along orient.
	moved := &Node{
		Size:        0.5,
		Orientation: target.Orientation,
		Children:    target.Children,
		Panels:      target.Panels,
		Active:      target.Active,
	}
	leaf.Size = 0.5
	children := []*Node{moved, leaf}
	if before {
		children = []*Node{leaf, moved}
	}
	target.Orientation = orient
	target.Children = children
	target.Panels = nil
	target.Active = ""
	return nil
}

// Remove takes id out of the grid. An emptied group is removed, its space
// is shared among its siblings in proportion, and single-child branches
// collapse into their parent.
func (g *Grid) Remove(id PanelID) error {
	leaf, parent, idx := g.locate(id)
	if leaf == nil {
		return fmt.Errorf("%s: %w", id, ErrPanelMissing)
	}

	pos := slices.Index(leaf.Panels, id)
	leaf.Panels = slices.Delete(leaf.Panels, pos, pos+1)
	if len(leaf.Panels) > 0 {
		if leaf.Active == id {
			leaf.Active = leaf.Panels[min(pos, len(leaf.Panels)-1)]
		}
		return nil
	}

	if parent == nil {
		g.root = nil
		return nil
	}

	parent.Children = slices.Delete(parent.Children, idx, idx+1)
	redistribute(parent.Children)
	g.collapse(parent)
	return nil
}

// redistribute scales sizes so they sum to 1.
func redistribute(nodes []*Node) {
	var total float64
	for _, n := range nodes {
		total += n.Size
	}
	if math.Abs(total-1) < 1e-9 {
		return
	}
	if total <= 0 {
		for _, n := range nodes {
			n.Size = 1 / float64(len(nodes))
		}
		return
	}
	for _, n := range nodes {
		n.Size /= total
	}
}

// collapse folds a single-child branch into its own slot, and splices a
// branch into a parent of the same orientation.
func (g *Grid) collapse(branch *Node) {
	if len(branch.Children) != 1 {
		return
	}
	only := branch.Children[0]
	branch.Orientation = only.Orientation
	branch.Children = only.Children
	branch.Panels = only.Panels
	branch.Active = only.Active

	if branch.isLeaf() {
		return
	}
	parent, idx := g.parentOf(branch)
	if parent == nil || parent.Orientation != branch.Orientation {
		return
	}
	spliced := make([]*Node, 0, len(branch.Children))
	for _, c := range branch.Children {
		c.Size *= branch.Size
		spliced = append(spliced, c)
	}
	parent.Children = slices.Replace(parent.Children, idx, idx+1, spliced...)
}

// Activate makes id the visible tab of its group.
func (g *Grid) Activate(id PanelID) error {
	leaf, _, _ := g.locate(id)
	if leaf == nil {
		return fmt.Errorf("%s: %w", id, ErrPanelMissing)
	}
	leaf.Active = id
	return nil
}

// Resize sets the share of id's group within its parent, clamped to
// [0.05, 0.95]; siblings keep their relative proportions.
func (g *Grid) Resize(id PanelID, size float64) error {
	leaf, parent, idx := g.locate(id)
	if leaf == nil {
		return fmt.Errorf("%s: %w", id, ErrPanelMissing)
	}
	if parent == nil || math.IsNaN(size) {
		return nil
	}
	size = math.Min(0.95, math.Max(0.05, size))

	var rest float64
	for i, c := range parent.Children {
		if i != idx {
			rest += c.Size
		}
	}
	for i, c := range parent.Children {
		if i == idx {
			continue
		}
		if rest > 0 {
			c.Size = c.Size / rest * (1 - size)
		} else {
			c.Size = (1 - size) / float64(len(parent.Children)-1)
		}
	}
	leaf.Size = size
	return nil
}

// Equal compares structure, tab order, active tabs and sizes.
func (g *Grid) Equal(o *Grid) bool {
	return nodeEqual(g.root, o.root)
}

func nodeEqual(a, b *Node) bool {
	if a == nil || b == nil {
		return a == b
	}
	if math.Abs(a.Size-b.Size) > 1e-9 || a.Active != b.Active || !slices.Equal(a.Panels, b.Panels) {
		return false
	}
	if len(a.Children) != len(b.Children) {
		return false
	}
	if len(a.Children) > 0 && a.Orientation != b.Orientation {
		return false
	}
	for i := range a.Children {
		if !nodeEqual(a.Children[i], b.Children[i]) {
			return false
		}
	}
	return true
}

type wireGrid struct {
	Root *Node `json:"root"`
}

// Snapshot serializes the whole grid.
func (g *Grid) Snapshot() []byte {
	data, _ := json.Marshal(wireGrid{Root: g.root})
	return data
}

// RestoreGrid decodes a snapshot. Unknown and duplicate panels are dropped
// and sizes normalized, so a hand-edited or older record still loads.
func RestoreGrid(data []byte) (*Grid, error) {
	var w wireGrid
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("decode layout: %w", err)
	}
	g := &Grid{root: sanitize(w.Root, map[PanelID]bool{})}
	if g.root != nil {
		g.root.Size = 1
	}
	return g, nil
}

func sanitize(n *Node, seen map[PanelID]bool) *Node {
	if n == nil {
		return nil
	}
	if n.isLeaf() {
		var panels []PanelID
		for _, p := range n.Panels {
			if _, ok := ParsePanel(string(p)); ok && !seen[p] {
				seen[p] = true
				panels = append(panels, p)
			}
		}
		if len(panels) == 0 {
			return nil
		}
		active := n.Active
		if !slices.Contains(panels, active) {
			active = panels[0]
		}
		return &Node{Size: n.Size, Panels: panels, Active: active}
	}

	out := &Node{Size: n.Size, Orientation: n.Orientation}
	if out.Orientation != Column {
		out.Orientation = Row
	}
	for _, c := range n.Children {
		if kept := sanitize(c, seen); kept != nil {
			out.Children = append(out.Children, kept)
		}
	}
	switch len(out.Children) {
	case 0:
		return nil
	case 1:
		only := out.Children[0]
		only.Size = out.Size
		return only
	}
	redistribute(out.Children)
	return out
}
