package layout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sumSizes(nodes []*Node) float64 {
	var total float64
	for _, n := range nodes {
		total += n.Size
	}
	return total
}

func TestDefaultGrid_Shape(t *testing.T) {
	g := DefaultGrid()
	root := g.Root()
	require.NotNil(t, root)
	assert.Equal(t, Row, root.Orientation)
	require.Len(t, root.Children, 4)

	assert.Equal(t, []PanelID{Sessions}, root.Children[0].Panels)
	assert.Equal(t, []PanelID{Tree, Changes}, root.Children[1].Panels)
	assert.Equal(t, Tree, root.Children[1].Active)

	center := root.Children[2]
	assert.Equal(t, Column, center.Orientation)
	require.Len(t, center.Children, 2)
	assert.Equal(t, []PanelID{Editor}, center.Children[0].Panels)
	assert.Equal(t, []PanelID{Terminal}, center.Children[1].Panels)

	assert.Equal(t, []PanelID{Agent}, root.Children[3].Panels)
	assert.InDelta(t, 1.0, sumSizes(root.Children), 1e-9)
	assert.ElementsMatch(t, AllPanels, g.Panels())
}

func TestMinimalGrid(t *testing.T) {
	assert.Equal(t, []PanelID{Sessions}, MinimalGrid().Panels())
}

func TestGrid_AddRejectsDuplicate(t *testing.T) {
	g := NewGrid()
	require.NoError(t, g.Add(Editor, "", Right))
	assert.ErrorIs(t, g.Add(Editor, "", Right), ErrPanelExists)
}

func TestGrid_AddSplitsAlongParent(t *testing.T) {
	g := NewGrid()
	require.NoError(t, g.Add(Editor, "", Right))
	require.NoError(t, g.Add(Agent, Editor, Right))
	require.NoError(t, g.Add(Tree, Editor, Left))

	root := g.Root()
	require.Len(t, root.Children, 3)
	assert.Equal(t, []PanelID{Tree, Editor, Agent}, g.Panels())
	assert.InDelta(t, 0.25, root.Children[0].Size, 1e-9)
	assert.InDelta(t, 0.25, root.Children[1].Size, 1e-9)
	assert.InDelta(t, 0.5, root.Children[2].Size, 1e-9)
}

func TestGrid_AddMissingRefDocksRight(t *testing.T) {
	g := NewGrid()
	require.NoError(t, g.Add(Editor, "", Right))
	require.NoError(t, g.Add(Tree, Editor, Left))
	require.NoError(t, g.Add(Terminal, Agent, Below))

	root := g.Root()
	require.Len(t, root.Children, 3)
	assert.Equal(t, []PanelID{Terminal}, root.Children[2].Panels)
	assert.InDelta(t, 1.0, sumSizes(root.Children), 1e-9)
}

func TestGrid_RemoveCollapses(t *testing.T) {
	g := DefaultGrid()
	require.NoError(t, g.Remove(Terminal))

	center := g.Root().Children[2]
	assert.True(t, center.isLeaf(), "single-child column collapses to its leaf")
	assert.Equal(t, []PanelID{Editor}, center.Panels)
	assert.InDelta(t, 0.45, center.Size, 1e-9)

	require.NoError(t, g.Remove(Sessions))
	assert.Len(t, g.Root().Children, 3)
	assert.InDelta(t, 1.0, sumSizes(g.Root().Children), 1e-9)

	assert.ErrorIs(t, g.Remove(Sessions), ErrPanelMissing)
}

func TestGrid_RemoveTabKeepsGroup(t *testing.T) {
	g := DefaultGrid()
	require.NoError(t, g.Activate(Changes))
	require.NoError(t, g.Remove(Changes))

	group := g.Root().Children[1]
	assert.Equal(t, []PanelID{Tree}, group.Panels)
	assert.Equal(t, Tree, group.Active)
}

func TestGrid_RemoveEverything(t *testing.T) {
	g := DefaultGrid()
	for _, p := range AllPanels {
		require.NoError(t, g.Remove(p))
	}
	assert.True(t, g.Empty())
	assert.Empty(t, g.Panels())
}

func TestGrid_Resize(t *testing.T) {
	g := DefaultGrid()
	require.NoError(t, g.Resize(Agent, 0.4))

	root := g.Root()
	assert.InDelta(t, 0.4, root.Children[3].Size, 1e-9)
	assert.InDelta(t, 1.0, sumSizes(root.Children), 1e-9)
	// siblings keep their proportions
	assert.InDelta(t, 0.2/0.15, root.Children[1].Size/root.Children[0].Size, 1e-9)

	require.NoError(t, g.Resize(Agent, 5))
	assert.InDelta(t, 0.95, root.Children[3].Size, 1e-9)
}

func TestGrid_SnapshotRoundTrip(t *testing.T) {
	g := DefaultGrid()
	require.NoError(t, g.Resize(Editor, 0.6))

	restored, err := RestoreGrid(g.Snapshot())
	require.NoError(t, err)
	assert.True(t, g.Equal(restored))
}

func TestRestoreGrid_Sanitizes(t *testing.T) {
	raw := `{"root":{"size":1,"orientation":"row","children":[
		{"size":2,"panels":["editor","bogus","editor"],"active":"bogus"},
		{"size":2,"orientation":"column","children":[{"size":1,"panels":["nope"]}]},
		{"size":2,"panels":["agent"]}
	]}}`
	g, err := RestoreGrid([]byte(raw))
	require.NoError(t, err)

	assert.Equal(t, []PanelID{Editor, Agent}, g.Panels())
	root := g.Root()
	require.Len(t, root.Children, 2)
	assert.Equal(t, Editor, root.Children[0].Active)
	assert.InDelta(t, 0.5, root.Children[0].Size, 1e-9)

	_, err = RestoreGrid([]byte("not json"))
	assert.Error(t, err)

	empty, err := RestoreGrid([]byte(`{"root":null}`))
	require.NoError(t, err)
	assert.True(t, empty.Empty())
}

func TestGrid_CloneIsDeep(t *testing.T) {
	g := DefaultGrid()
	c := g.Clone()
	require.NoError(t, c.Remove(Agent))
	assert.True(t, g.Has(Agent))
	assert.False(t, g.Equal(c))
}
