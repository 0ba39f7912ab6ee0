package layout

// PanelID names one dockable panel.
type PanelID string

const (
	Sessions PanelID = "sessions"
	Tree     PanelID = "tree"
	Changes  PanelID = "changes"
	Editor   PanelID = "editor"
	Agent    PanelID = "agent"
	Terminal PanelID = "terminal"
)

// AllPanels lists every panel in display order.
var AllPanels = []PanelID{Sessions, Tree, Changes, Editor, Agent, Terminal}

// ParsePanel maps a name to a known panel.
func ParsePanel(s string) (PanelID, bool) {
	for _, p := range AllPanels {
		if string(p) == s {
			return p, true
		}
	}
	return "", false
}

// Title is the label shells show for a panel.
func (p PanelID) Title() string {
	switch p {
	case Sessions:
		return "Sessions"
	case Tree:
		return "Files"
	case Changes:
		return "Changes"
	case Editor:
		return "Editor"
	case Agent:
		return "Agent"
	case Terminal:
		return "Terminal"
	}
	return string(p)
}

// hint is a (reference panel, direction) placement tried when a panel
// reopens without a snapshot.
type hint struct {
	ref PanelID
	dir Direction
}

// placementHints are tried in order; the first whose reference is visible wins.
var placementHints = map[PanelID][]hint{
	Sessions: {{Tree, Left}, {Editor, Left}},
	Tree:     {{Editor, Left}, {Agent, Left}},
	Changes:  {{Tree, Within}, {Editor, Left}},
	Editor:   {{Tree, Right}, {Agent, Left}},
	Agent:    {{Editor, Right}},
	Terminal: {{Editor, Below}, {Agent, Below}},
}

// DefaultGrid is the full arrangement for a session with no saved layout.
func DefaultGrid() *Grid {
	g := NewGrid()
	_ = g.Add(Editor, "", Right)
	_ = g.Add(Tree, Editor, Left)
	_ = g.Add(Changes, Tree, Within)
	_ = g.Add(Agent, Editor, Right)
	_ = g.Add(Terminal, Editor, Below)
	_ = g.Add(Sessions, Tree, Left)
	_ = g.Activate(Tree)

	// sessions | tree,changes | editor/terminal | agent
	if g.root != nil && len(g.root.Children) == 4 {
		for i, size := range []float64{0.15, 0.2, 0.45, 0.2} {
			g.root.Children[i].Size = size
		}
		if center := g.root.Children[2]; len(center.Children) == 2 {
			center.Children[0].Size = 0.7
			center.Children[1].Size = 0.3
		}
	}
	return g
}

// MinimalGrid is the arrangement shown while no session is active.
func MinimalGrid() *Grid {
	g := NewGrid()
	_ = g.Add(Sessions, "", Right)
	return g
}
