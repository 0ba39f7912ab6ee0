package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/sjoeboo/dockyard/internal/changes"
	"github.com/sjoeboo/dockyard/internal/config"
	"github.com/sjoeboo/dockyard/internal/diffparse"
	"github.com/sjoeboo/dockyard/internal/git"
	"github.com/sjoeboo/dockyard/internal/logging"
	"github.com/sjoeboo/dockyard/internal/shellapi"
	"github.com/sjoeboo/dockyard/internal/statedb"
	"github.com/sjoeboo/dockyard/internal/ui"
	"github.com/sjoeboo/dockyard/internal/workspace"
)

const Version = "0.1.0"

func init() {
	initColorProfile()
}

// initColorProfile picks the lipgloss color profile.
// DOCKYARD_COLOR: truecolor, 256, 16, none
func initColorProfile() {
	switch strings.ToLower(os.Getenv("DOCKYARD_COLOR")) {
	case "truecolor", "true", "24bit":
		lipgloss.SetColorProfile(termenv.TrueColor)
		return
	case "256", "ansi256":
		lipgloss.SetColorProfile(termenv.ANSI256)
		return
	case "16", "ansi", "basic":
		lipgloss.SetColorProfile(termenv.ANSI)
		return
	case "none", "off", "ascii":
		lipgloss.SetColorProfile(termenv.Ascii)
		return
	}

	colorTerm := os.Getenv("COLORTERM")
	if colorTerm == "truecolor" || colorTerm == "24bit" {
		lipgloss.SetColorProfile(termenv.TrueColor)
		return
	}
	// Ask the terminal, but never drop below 256 colors.
	if p := termenv.EnvColorProfile(); p == termenv.TrueColor {
		lipgloss.SetColorProfile(p)
		return
	}
	lipgloss.SetColorProfile(termenv.ANSI256)
}

func main() {
	args := os.Args[1:]
	cmd := "tui"
	if len(args) > 0 {
		cmd, args = args[0], args[1:]
	}

	var err error
	switch cmd {
	case "tui":
		err = runTUI()
	case "ranges":
		err = runRanges(os.Stdin, os.Stdout)
	case "changes":
		err = runChanges(args, os.Stdout)
	case "state":
		err = runState(os.Stdout)
	case "version", "--version", "-v":
		fmt.Printf("dockyard v%s\n", Version)
	case "help", "--help", "-h":
		printHelp()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printHelp()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printHelp() {
	fmt.Printf("dockyard v%s\n", Version)
	fmt.Println("Multi-session workspace for parallel coding agents")
	fmt.Println()
	fmt.Println("Usage: dockyard [command]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  (none), tui      Start the TUI")
	fmt.Println("  ranges           Read a unified diff on stdin, print line ranges as JSON")
	fmt.Println("  changes <dir>    Print the merged change list of a worktree as JSON")
	fmt.Println("  state            List sessions with saved workspace state")
	fmt.Println("  version          Show version")
	fmt.Println("  help             Show this help")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  DOCKYARD_HOME    Config and state directory (default: ~/.dockyard)")
	fmt.Println("  DOCKYARD_COLOR   Color mode: truecolor, 256, 16, none")
	fmt.Println()
	fmt.Println("Keyboard shortcuts (in TUI):")
	fmt.Println("  j/k        Select session")
	fmt.Println("  Enter      Switch to session")
	fmt.Println("  1-6        Toggle panels")
	fmt.Println("  R          Reset layout")
	fmt.Println("  /          Open file (fuzzy)")
	fmt.Println("  q          Quit")
}

// runRanges prints the line ranges of the diff read from r.
func runRanges(r io.Reader, w io.Writer) error {
	raw, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("read diff: %w", err)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(diffparse.ParseLineRanges(string(raw)))
}

// runChanges prints the base diff merged with uncommitted changes.
func runChanges(args []string, w io.Writer) error {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	root, err := git.GetRepoRoot(dir)
	if err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var base []changes.FileChange
	if ref := git.FindBase(root, cfg.Git.DefaultBase); ref != "" {
		if base, err = git.BaseChanges(ctx, root, ref); err != nil {
			return err
		}
	}
	watch, err := git.StatusChanges(root)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(changes.Merge(base, watch))
}

// runState lists the sessions the state database holds a record for.
func runState(w io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	return listState(cfg.Storage.DBPath, w)
}

func listState(dbPath string, w io.Writer) error {
	db, err := statedb.Open(dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	ids, err := db.Sessions(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "%s\n", db.Path())
	if len(ids) == 0 {
		fmt.Fprintln(w, "  (no saved sessions)")
		return nil
	}
	for _, id := range ids {
		fmt.Fprintf(w, "  %s\n", id)
	}
	return nil
}

// sessionsFromConfig resolves configured worktrees. With none configured,
// the current repository is the only session.
func sessionsFromConfig(cfg *config.Config) []workspace.Session {
	var out []workspace.Session
	for _, def := range cfg.Sessions {
		s := workspace.Session{
			ID:         def.ID,
			Title:      def.Title,
			RootPath:   def.Path,
			Branch:     def.Branch,
			BaseBranch: def.BaseBranch,
		}
		if s.Branch == "" && git.IsGitRepo(s.RootPath) {
			s.Branch, _ = git.GetCurrentBranch(s.RootPath)
		}
		out = append(out, s)
	}
	if len(out) > 0 {
		return out
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil
	}
	root, err := git.GetRepoRoot(cwd)
	if err != nil {
		return nil
	}
	branch, _ := git.GetCurrentBranch(root)
	return []workspace.Session{{ID: filepath.Base(root), Title: filepath.Base(root), RootPath: root, Branch: branch}}
}

func runTUI() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	dir, err := config.Dir()
	if err != nil {
		return err
	}

	logDir := cfg.Logs.Dir
	if logDir == "" {
		logDir = dir
	}
	logging.Init(logging.Config{
		LogDir:     logDir,
		Level:      cfg.Logs.Level,
		Format:     cfg.Logs.Format,
		MaxSizeMB:  cfg.Logs.MaxSizeMB,
		MaxBackups: cfg.Logs.MaxBackups,
		MaxAgeDays: cfg.Logs.MaxAgeDays,
		Compress:   cfg.Logs.Compress,
		Debug:      os.Getenv("DOCKYARD_DEBUG") != "",
	})
	defer logging.Shutdown()

	db, err := statedb.Open(cfg.Storage.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	ws := workspace.New(workspace.Options{
		Gateway:        db,
		Files:          workspace.DiskReader{},
		Changes:        git.Source{DefaultBase: cfg.Git.DefaultBase},
		LayoutDebounce: cfg.LayoutDebounce(),
	})
	defer ws.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if cfg.API.Listen != "" {
		api := shellapi.New(cfg.API.Listen, ws)
		go func() {
			if err := api.Start(ctx); err != nil {
				logging.ForComponent(logging.CompAPI).Error("shell api stopped", slog.String("error", err.Error()))
			}
		}()
	}

	watchOpts := changes.WatcherOptions{
		Interval:         cfg.WatchInterval(),
		MaxRefreshPerSec: cfg.Watch.MaxRefreshPerSec,
	}
	model := ui.New(ws, ui.Options{
		Sessions: sessionsFromConfig(cfg),
		Watch: func(dir string) (*changes.Watcher, error) {
			if !git.IsGitRepo(dir) {
				return nil, git.ErrNotGitRepo
			}
			return changes.NewWatcher(dir, git.StatusChanges, watchOpts)
		},
	})
	defer model.Close()

	p := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return err
	}
	return nil
}
