package workspace

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sjoeboo/dockyard/internal/changes"
	"github.com/sjoeboo/dockyard/internal/diffparse"
	"github.com/sjoeboo/dockyard/internal/layout"
	"github.com/sjoeboo/dockyard/internal/viewstate"
)

type memGateway struct {
	mu      sync.Mutex
	views   map[string][]byte
	layouts map[string][]byte
}

func newMemGateway() *memGateway {
	return &memGateway{views: map[string][]byte{}, layouts: map[string][]byte{}}
}

var errMissing = errors.New("missing")

func (g *memGateway) GetViewState(_ context.Context, id string) ([]byte, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	d, ok := g.views[id]
	if !ok {
		return nil, errMissing
	}
	return d, nil
}

func (g *memGateway) SetViewState(_ context.Context, id string, data []byte) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.views[id] = data
	return nil
}

func (g *memGateway) DeleteViewState(_ context.Context, id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.views, id)
	return nil
}

func (g *memGateway) GetLayout(_ context.Context, id string) ([]byte, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	d, ok := g.layouts[id]
	if !ok {
		return nil, errMissing
	}
	return d, nil
}

func (g *memGateway) SetLayout(_ context.Context, id string, data []byte) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.layouts[id] = data
	return nil
}

func (g *memGateway) putView(t *testing.T, id string, v viewstate.ViewState) {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	g.mu.Lock()
	g.views[id] = data
	g.mu.Unlock()
}

func (g *memGateway) storedView(t *testing.T, id string) viewstate.ViewState {
	t.Helper()
	g.mu.Lock()
	data, ok := g.views[id]
	g.mu.Unlock()
	require.True(t, ok, "no stored view state for %s", id)
	var v viewstate.ViewState
	require.NoError(t, json.Unmarshal(data, &v))
	return v
}

func (g *memGateway) hasView(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.views[id]
	return ok
}

// fakeFiles serves content for any path not listed in fail.
type fakeFiles struct {
	fail map[string]bool
}

func (f fakeFiles) ReadFile(_ context.Context, _ string, path string) (string, error) {
	if f.fail[path] {
		return "", errors.New("gone")
	}
	return "content of " + path, nil
}

type fakeSource struct {
	base  []changes.FileChange
	diffs map[string]string
}

func (s fakeSource) BaseChanges(context.Context, string, string) ([]changes.FileChange, error) {
	return s.base, nil
}

func (s fakeSource) FileDiff(_ context.Context, _, _, path string) (string, error) {
	return s.diffs[path], nil
}

// collect runs cmd and returns the messages it produces without applying them.
func collect(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		var out []tea.Msg
		for _, sub := range batch {
			out = append(out, collect(sub)...)
		}
		return out
	}
	if msg == nil {
		return nil
	}
	return []tea.Msg{msg}
}

// deliver applies msgs and everything they lead to.
func deliver(c *Controller, msgs []tea.Msg) {
	for _, msg := range msgs {
		if next, ok := c.Update(msg); ok {
			deliver(c, collect(next))
		}
	}
}

func run(c *Controller, cmd tea.Cmd) { deliver(c, collect(cmd)) }

func newController(t *testing.T, g Gateway, opts Options) *Controller {
	t.Helper()
	opts.Gateway = g
	c := New(opts)
	t.Cleanup(c.Close)
	return c
}

func sess(id string) *Session {
	return &Session{ID: id, Title: id, RootPath: "/work/" + id}
}

func TestSwitch_RoundTrip(t *testing.T) {
	g := newMemGateway()
	c := newController(t, g, Options{Files: fakeFiles{}})
	a, b := sess("a"), sess("b")

	run(c, c.SwitchSession(a))
	run(c, c.SelectFile("/work/a/src/main.go"))
	run(c, c.OpenFile("/work/a/README.md"))
	c.ToggleDirectory("/work/a/docs")
	before := c.State()

	run(c, c.SwitchSession(b))
	assert.Empty(t, c.State().OpenFiles)

	run(c, c.SwitchSession(a))
	after := c.State()
	assert.Equal(t, before.OpenFiles, after.OpenFiles)
	assert.Equal(t, before.ActiveFile, after.ActiveFile)
	assert.Equal(t, before.Expanded, after.Expanded)

	content, ok := c.Content("/work/a/README.md")
	require.True(t, ok)
	assert.Equal(t, "content of /work/a/README.md", content)
}

func TestSwitch_PersistsAcrossControllers(t *testing.T) {
	g := newMemGateway()
	first := New(Options{Gateway: g})
	run(first, first.SwitchSession(sess("a")))
	run(first, first.SelectFile("/work/a/x.go"))
	first.Close()

	second := newController(t, g, Options{})
	run(second, second.SwitchSession(sess("a")))
	st := second.State()
	assert.Equal(t, []string{"/work/a/x.go"}, st.OpenFiles)
	assert.Equal(t, "/work/a/x.go", st.ActiveFile)
}

func TestSwitch_RapidSwitchIgnoresStaleLoads(t *testing.T) {
	g := newMemGateway()
	g.putView(t, "b", func() viewstate.ViewState {
		v := viewstate.New()
		v.Select("/work/b/only-b.go", "/work/b")
		return v
	}())
	c := newController(t, g, Options{Files: fakeFiles{}})

	run(c, c.SwitchSession(sess("a")))
	pendingB := collect(c.SwitchSession(sess("b")))
	cmdC := c.SwitchSession(sess("c"))

	// B resolves after C became active.
	deliver(c, pendingB)
	st := c.State()
	assert.Equal(t, "c", st.Session.ID)
	assert.Empty(t, st.OpenFiles, "nothing of b leaks into c")
	assert.True(t, st.Loading)

	run(c, cmdC)
	st = c.State()
	assert.Empty(t, st.OpenFiles)
	assert.False(t, st.Loading)

	// Leaving b before it resolved did not clobber its stored state.
	run(c, c.SwitchSession(sess("b")))
	assert.Equal(t, []string{"/work/b/only-b.go"}, c.State().OpenFiles)
}

func TestSwitch_EditBeforeRestoreIsMerged(t *testing.T) {
	g := newMemGateway()
	stored := viewstate.New()
	stored.Open("/work/b/x.go")
	stored.Select("/work/b/y.go", "/work/b")
	g.putView(t, "b", stored)
	c := New(Options{Gateway: g, Files: fakeFiles{}})

	run(c, c.SwitchSession(sess("a")))
	pendingB := collect(c.SwitchSession(sess("b")))
	run(c, c.SelectFile("/work/b/z.go"))
	assert.Equal(t, []string{"/work/b/x.go", "/work/b/y.go"}, g.storedView(t, "b").OpenFiles, "nothing written before the restore lands")

	deliver(c, pendingB)
	want := []string{"/work/b/x.go", "/work/b/y.go", "/work/b/z.go"}
	st := c.State()
	assert.Equal(t, want, st.OpenFiles)
	assert.Equal(t, "/work/b/z.go", st.ActiveFile)
	_, ok := c.Content("/work/b/x.go")
	assert.True(t, ok)

	run(c, c.SwitchSession(sess("a")))
	run(c, c.SwitchSession(sess("b")))
	assert.Equal(t, want, c.State().OpenFiles)

	c.Close()
	assert.Equal(t, want, g.storedView(t, "b").OpenFiles)
}

func TestSwitch_EditThenLeaveBeforeRestore(t *testing.T) {
	g := newMemGateway()
	stored := viewstate.New()
	stored.Select("/work/b/x.go", "/work/b")
	g.putView(t, "b", stored)
	c := New(Options{Gateway: g})

	run(c, c.SwitchSession(sess("a")))
	_ = c.SwitchSession(sess("b"))
	run(c, c.SelectFile("/work/b/z.go"))
	run(c, c.SwitchSession(sess("a")))
	c.Close()

	got := g.storedView(t, "b")
	assert.Equal(t, []string{"/work/b/x.go", "/work/b/z.go"}, got.OpenFiles)
	assert.Equal(t, "/work/b/z.go", got.ActiveFile)
}

func TestSwitch_FirstVisitExpandsRootOnTreeReady(t *testing.T) {
	c := newController(t, newMemGateway(), Options{})
	s := sess("fresh")

	run(c, c.SwitchSession(s))
	assert.Empty(t, c.State().Expanded)

	c.TreeReady("other")
	assert.Empty(t, c.State().Expanded)

	c.TreeReady("fresh")
	assert.Equal(t, []string{"/work/fresh"}, c.State().Expanded)
}

func TestSwitch_TreeReadyBeforeRestore(t *testing.T) {
	c := newController(t, newMemGateway(), Options{})
	cmd := c.SwitchSession(sess("fresh"))
	c.TreeReady("fresh")
	assert.Empty(t, c.State().Expanded)

	run(c, cmd)
	assert.Equal(t, []string{"/work/fresh"}, c.State().Expanded)
}

func TestSwitch_RestoredSessionKeepsCollapsedRoot(t *testing.T) {
	g := newMemGateway()
	g.putView(t, "a", viewstate.New())
	c := newController(t, g, Options{})

	run(c, c.SwitchSession(sess("a")))
	c.TreeReady("a")
	assert.Empty(t, c.State().Expanded)
}

func TestHydrate_DropsFailedTabs(t *testing.T) {
	g := newMemGateway()
	v := viewstate.New()
	for _, p := range []string{"/work/a/x", "/work/a/y", "/work/a/z"} {
		v.Open(p)
	}
	v.ActiveFile = "/work/a/y"
	g.putView(t, "a", v)

	c := newController(t, g, Options{Files: fakeFiles{fail: map[string]bool{"/work/a/y": true}}})
	run(c, c.SwitchSession(sess("a")))

	st := c.State()
	assert.Equal(t, []string{"/work/a/x", "/work/a/z"}, st.OpenFiles)
	assert.Equal(t, "/work/a/x", st.ActiveFile)
	_, ok := c.Content("/work/a/y")
	assert.False(t, ok)
	_, ok = c.Content("/work/a/z")
	assert.True(t, ok)
}

func TestHydrate_AllFailLeavesNoActive(t *testing.T) {
	g := newMemGateway()
	v := viewstate.New()
	v.Select("/work/a/x", "/work/a")
	g.putView(t, "a", v)

	c := newController(t, g, Options{Files: fakeFiles{fail: map[string]bool{"/work/a/x": true}}})
	run(c, c.SwitchSession(sess("a")))

	st := c.State()
	assert.Empty(t, st.OpenFiles)
	assert.Empty(t, st.ActiveFile)
	assert.Contains(t, st.Expanded, "/work/a", "expansion survives hydration")
}

func TestOpenFile_ReadFailureDropsTab(t *testing.T) {
	c := newController(t, newMemGateway(), Options{Files: fakeFiles{fail: map[string]bool{"/work/a/bad": true}}})
	run(c, c.SwitchSession(sess("a")))
	run(c, c.SelectFile("/work/a/good"))
	run(c, c.SelectFile("/work/a/bad"))

	st := c.State()
	assert.Equal(t, []string{"/work/a/good"}, st.OpenFiles)
	assert.Equal(t, "/work/a/good", st.ActiveFile)
}

func TestSelectFile_ExpandsAncestors(t *testing.T) {
	c := newController(t, newMemGateway(), Options{})
	s := &Session{ID: "r", RootPath: "/root"}
	run(c, c.SwitchSession(s))
	run(c, c.SelectFile("/root/a/b/c.ts"))

	assert.Subset(t, c.State().Expanded, []string{"/root/a", "/root/a/b"})
}

func TestSelectFile_RelativePath(t *testing.T) {
	c := newController(t, newMemGateway(), Options{})
	run(c, c.SwitchSession(sess("a")))
	run(c, c.SelectFile("src/pkg/main.go"))

	st := c.State()
	assert.Equal(t, "/work/a/src/pkg/main.go", st.ActiveFile)
	assert.Subset(t, st.Expanded, []string{"/work/a", "/work/a/src", "/work/a/src/pkg"})

	run(c, c.CloseFile("src/pkg/main.go"))
	assert.Empty(t, c.State().OpenFiles)
}

func TestCloseFile_ActivatesNeighbor(t *testing.T) {
	c := newController(t, newMemGateway(), Options{})
	run(c, c.SwitchSession(sess("a")))
	for _, p := range []string{"x", "y", "z"} {
		run(c, c.OpenFile(p))
	}
	run(c, c.SelectFile("y"))

	run(c, c.CloseFile("y"))
	assert.Equal(t, "z", c.State().ActiveFile)
	run(c, c.CloseFile("z"))
	assert.Equal(t, "x", c.State().ActiveFile)
	run(c, c.CloseFile("x"))
	assert.Empty(t, c.State().ActiveFile)
}

func TestMutationsWithoutSessionAreIgnored(t *testing.T) {
	c := newController(t, newMemGateway(), Options{})
	assert.Nil(t, c.SelectFile("/x"))
	assert.Nil(t, c.OpenFile("/x"))
	c.ToggleDirectory("/x")
	assert.Empty(t, c.State().OpenFiles)
	assert.Empty(t, c.State().Expanded)
}

func TestChanges_MergeWatchWins(t *testing.T) {
	src := fakeSource{base: []changes.FileChange{
		{Path: "a.ts", Type: changes.Modified},
		{Path: "b.ts", Type: changes.Deleted},
	}}
	c := newController(t, newMemGateway(), Options{Changes: src})
	run(c, c.SwitchSession(sess("a")))
	require.Len(t, c.State().Changes, 2)

	c.SetWatchChanges("a", []changes.FileChange{{Path: "a.ts", Type: changes.Added}, {Path: "c.ts", Type: changes.Added}})
	assert.Equal(t, []changes.FileChange{
		{Path: "a.ts", Type: changes.Added},
		{Path: "b.ts", Type: changes.Deleted},
		{Path: "c.ts", Type: changes.Added},
	}, c.State().Changes)

	// A watch list for another session is ignored.
	c.SetWatchChanges("zzz", nil)
	assert.Len(t, c.State().Changes, 3)

	// Switching clears both lists until the new session reports.
	run(c, c.SwitchSession(&Session{ID: "bare"}))
	assert.Empty(t, c.State().Changes)
}

func TestStaleBaseChangesDiscarded(t *testing.T) {
	src := fakeSource{base: []changes.FileChange{{Path: "a.ts", Type: changes.Modified}}}
	c := newController(t, newMemGateway(), Options{Changes: src})
	run(c, c.SwitchSession(sess("a")))

	pending := collect(c.RefreshBaseChanges())
	run(c, c.SwitchSession(&Session{ID: "b"}))
	deliver(c, pending)
	assert.Empty(t, c.State().Changes)
}

const activeDiff = `diff --git a/src/app.go b/src/app.go
--- a/src/app.go
+++ b/src/app.go
@@ -1,3 +1,4 @@
 package app
-var x = 1
+var x = 2
+var y = 3
 func f() {}
`

func TestActiveDiff_Ranges(t *testing.T) {
	src := fakeSource{diffs: map[string]string{"src/app.go": activeDiff}}
	c := newController(t, newMemGateway(), Options{Changes: src})
	run(c, c.SwitchSession(sess("a")))
	run(c, c.SelectFile("/work/a/src/app.go"))

	st := c.State()
	assert.Equal(t, "/work/a/src/app.go", st.DiffPath)
	assert.Equal(t, []diffparse.LineRange{{StartLine: 2, EndLine: 2}}, st.Ranges.Modified)
	assert.Equal(t, []diffparse.LineRange{{StartLine: 3, EndLine: 3}}, st.Ranges.Added)
	require.Len(t, st.DiffFiles, 1)
	assert.Equal(t, "src/app.go", st.DiffFiles[0].Path)

	// Closing the only tab clears annotations.
	run(c, c.CloseFile("/work/a/src/app.go"))
	st = c.State()
	assert.Empty(t, st.DiffPath)
	assert.True(t, st.Ranges.IsEmpty())
}

func TestSetActiveDiff_OnlyForActiveTab(t *testing.T) {
	c := newController(t, newMemGateway(), Options{})
	run(c, c.SwitchSession(sess("a")))
	run(c, c.SelectFile("/work/a/f.go"))

	c.SetActiveDiff("a", "/work/a/other.go", activeDiff)
	assert.True(t, c.State().Ranges.IsEmpty())

	c.SetActiveDiff("a", "/work/a/f.go", activeDiff)
	assert.False(t, c.State().Ranges.IsEmpty())
}

func TestQuickOpen(t *testing.T) {
	src := fakeSource{base: []changes.FileChange{{Path: "internal/server.go", Type: changes.Modified}}}
	c := newController(t, newMemGateway(), Options{Changes: src})
	run(c, c.SwitchSession(sess("a")))
	run(c, c.OpenFile("/work/a/cmd/main.go"))

	assert.ElementsMatch(t, []string{"/work/a/cmd/main.go", "/work/a/internal/server.go"}, c.QuickOpen(""))
	got := c.QuickOpen("srvr")
	require.NotEmpty(t, got)
	assert.Equal(t, "/work/a/internal/server.go", got[0])
	assert.Empty(t, c.QuickOpen("zzzzqqq"))
}

func TestTogglePanel_Visibility(t *testing.T) {
	c := newController(t, newMemGateway(), Options{})
	run(c, c.SwitchSession(sess("a")))

	visible, err := c.TogglePanel(layout.Agent)
	require.NoError(t, err)
	assert.False(t, visible)

	for _, p := range c.State().Panels {
		if p.ID == layout.Agent {
			assert.False(t, p.Visible)
		} else {
			assert.True(t, p.Visible, p.ID)
		}
	}

	c.ResetLayout()
	assert.True(t, c.Layout().IsVisible(layout.Agent))

	_, err = c.TogglePanel("nope")
	assert.ErrorIs(t, err, layout.ErrUnknownPanel)
}

func TestRemoveSession(t *testing.T) {
	g := newMemGateway()
	c := New(Options{Gateway: g})
	run(c, c.SwitchSession(sess("a")))
	run(c, c.SelectFile("/work/a/x.go"))

	run(c, c.RemoveSession("a"))
	assert.Nil(t, c.Session())
	c.Close()

	assert.False(t, g.hasView("a"))
}

func TestSubscribe(t *testing.T) {
	c := newController(t, newMemGateway(), Options{})
	var mu sync.Mutex
	var seen []State
	unsub := c.Subscribe(func(st State) {
		mu.Lock()
		seen = append(seen, st)
		mu.Unlock()
	})

	run(c, c.SwitchSession(sess("a")))
	run(c, c.SelectFile("/work/a/x.go"))
	unsub()
	c.ToggleDirectory("/work/a/y")

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, seen)
	last := seen[len(seen)-1]
	assert.Equal(t, "/work/a/x.go", last.ActiveFile)
	assert.NotContains(t, last.Expanded, "/work/a/y")
}

func TestDiskReader(t *testing.T) {
	dir := t.TempDir()
	small := filepath.Join(dir, "small.txt")
	require.NoError(t, os.WriteFile(small, []byte("hello"), 0o644))
	big := filepath.Join(dir, "big.txt")
	require.NoError(t, os.WriteFile(big, make([]byte, 64), 0o644))

	r := DiskReader{MaxBytes: 32}
	got, err := r.ReadFile(context.Background(), "s", small)
	require.NoError(t, err)
	assert.Equal(t, "hello", got)

	_, err = r.ReadFile(context.Background(), "s", big)
	assert.Error(t, err)
	_, err = r.ReadFile(context.Background(), "s", dir)
	assert.Error(t, err)
	_, err = r.ReadFile(context.Background(), "s", filepath.Join(dir, "missing"))
	assert.Error(t, err)
}
