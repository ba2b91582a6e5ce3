package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"scriptcatalog/internal/config"
	"scriptcatalog/internal/engine"
	"scriptcatalog/internal/index"
	"scriptcatalog/internal/logging"
	"scriptcatalog/internal/registry"
	"scriptcatalog/internal/scan"
	"scriptcatalog/internal/store"
	"scriptcatalog/internal/view"
)

var version = "0.1.0-dev"

type globalOptions struct {
	configPath   string
	statePath    string
	logLevel     string
	resetCorrupt bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "scriptcatalog",
		Short: "Catalog, tag and bookmark the scripts in your folders",
		Long: `scriptcatalog lists the script files below a folder with their
modification time and a free-text tag. Tags, bookmarked folders and the
last scanned folder are kept in a small JSON state file.

Run without a command to open the interactive catalog.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(opts)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "config file (default ~/.scriptcatalog/config.yaml)")
	flags.StringVar(&opts.statePath, "state", "", "state file (overrides state_file)")
	flags.StringVar(&opts.logLevel, "log-level", "", "trace, debug, info, warn, error or off")
	flags.BoolVar(&opts.resetCorrupt, "reset-corrupt", false, "start from an empty catalog when the state file cannot be parsed")

	scanCmd := &cobra.Command{
		Use:   "scan [path]",
		Short: "Scan a folder and print its scripts",
		Long:  "Scan a folder and print its scripts. Without a path the last scanned folder is used.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScanCmd(cmd, opts, args)
		},
	}
	scanCmd.Flags().String("sort", "modified", "Sort column: name|modified")
	scanCmd.Flags().Bool("json", false, "Print rows as JSON")

	tagCmd := &cobra.Command{
		Use:   "tag <file> <text>",
		Short: "Set the tag of a file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTag(cmd, opts, args)
		},
	}

	untagCmd := &cobra.Command{
		Use:   "untag <file>",
		Short: "Remove the tag of a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUntag(cmd, opts, args)
		},
	}

	bookmarkCmd := &cobra.Command{
		Use:   "bookmark",
		Short: "Manage bookmarked folders",
	}
	bookmarkCmd.AddCommand(
		&cobra.Command{
			Use:   "add [path]",
			Short: "Bookmark a folder (default: current directory)",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runBookmarkAdd(cmd, opts, args)
			},
		},
		&cobra.Command{
			Use:   "rm <name>",
			Short: "Remove a bookmark",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runBookmarkRemove(cmd, opts, args)
			},
		},
		&cobra.Command{
			Use:   "ls",
			Short: "List bookmarks",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runBookmarkList(cmd, opts)
			},
		},
	)

	indexCmd := &cobra.Command{
		Use:   "index",
		Short: "Query the sqlite catalog index",
	}
	queryCmd := &cobra.Command{
		Use:   "query",
		Short: "List indexed files carrying a tag",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIndexQuery(cmd, opts)
		},
	}
	queryCmd.Flags().String("tag", "", "Tag to look up (required)")
	_ = queryCmd.MarkFlagRequired("tag")
	indexCmd.AddCommand(queryCmd)

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "scriptcatalog %s\n", version)
		},
	}

	rootCmd.AddCommand(scanCmd, tagCmd, untagCmd, bookmarkCmd, indexCmd, versionCmd)
	return rootCmd
}

// app holds everything one command needs.
type app struct {
	cfg     *config.Config
	state   *registry.State
	engine  *engine.Engine
	index   *index.Index
	log     logging.Logger
	closers []io.Closer
}

// openApp loads the config, sets up logging and opens the state. In TUI
// mode logs go to the configured log file instead of stderr.
func openApp(opts *globalOptions, tui bool) (*app, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	if opts.statePath != "" {
		cfg.StateFile = opts.statePath
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a := &app{cfg: cfg}

	var logOut io.Writer = os.Stderr
	if tui {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		a.closers = append(a.closers, f)
		logOut = f
	}
	if err := logging.Initialize(cfg.LogLevel, logOut); err != nil {
		a.Close()
		return nil, err
	}
	a.log = logging.Get("app")

	st, err := store.Open(cfg.StoreBackend, cfg.StateFile, store.WithLogger(logging.Get("store")))
	if err != nil {
		a.Close()
		return nil, err
	}
	a.closers = append(a.closers, st)

	state, err := registry.Open(st, logging.Get("registry"))
	if err != nil {
		if !store.IsCorruptState(err) || !opts.resetCorrupt {
			a.Close()
			if store.IsCorruptState(err) {
				return nil, fmt.Errorf("%w (the file is left untouched; rerun with --reset-corrupt to start over)", err)
			}
			return nil, err
		}
		a.log.Warn().Err(err).Msg("Starting from an empty catalog")
		state = registry.New(st, store.EmptyState(), logging.Get("registry"))
	}
	a.state = state

	scanner, err := newScanner(cfg, cfg.Extensions)
	if err != nil {
		a.Close()
		return nil, err
	}

	deps := engine.Deps{State: state, Scanner: scanner, Logger: logging.Get("engine")}
	if cfg.IndexPath != "" {
		ix, err := index.Open(cfg.IndexPath)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.index = ix
		a.closers = append(a.closers, ix)
		deps.Index = ix
	}

	a.engine, err = engine.New(deps)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.log.Debug().
		Str("state_file", st.Location()).
		Str("backend", cfg.StoreBackend).
		Str("index", cfg.IndexPath).
		Msg("Catalog opened")
	return a, nil
}

func newScanner(cfg *config.Config, exts []string) (*scan.Scanner, error) {
	l := logging.Get("scan")
	return scan.New(scan.Options{
		Extensions:     exts,
		Exclude:        cfg.Exclude,
		FollowSymlinks: cfg.FollowSymlinks,
		MaxDepth:       cfg.MaxDepth,
		Logger:         &l,
	})
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i].Close()
	}
	a.closers = nil
}

func runTUI(opts *globalOptions) error {
	a, err := openApp(opts, true)
	if err != nil {
		return err
	}
	defer a.Close()

	m := newModel(a)
	if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
		a.log.Error().Err(err).Msg("TUI failed")
		return err
	}
	return nil
}

type jsonRow struct {
	Name       string `json:"name"`
	Path       string `json:"path"`
	ModifiedAt string `json:"modified_at"`
	Tag        string `json:"tag,omitempty"`
}

func runScanCmd(cmd *cobra.Command, opts *globalOptions, args []string) error {
	sortFlag, err := cmd.Flags().GetString("sort")
	if err != nil {
		return err
	}
	column, err := view.ParseColumn(sortFlag)
	if err != nil {
		return err
	}
	asJSON, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}

	a, err := openApp(opts, false)
	if err != nil {
		return err
	}
	defer a.Close()

	var rows []view.DisplayRow
	if len(args) == 1 {
		rows, err = a.engine.OnScanRequested(args[0])
	} else {
		var restored bool
		rows, restored, err = a.engine.Restore()
		if !restored {
			return errors.New("no folder given and no folder was scanned before")
		}
	}
	if rows == nil && err != nil {
		return err
	}
	if err != nil {
		// The rows are good; only bookkeeping failed.
		a.log.Warn().Err(err).Msg("Scan finished with errors")
	}
	rows = a.engine.Resort(column)

	out := cmd.OutOrStdout()
	if asJSON {
		payload := make([]jsonRow, 0, len(rows))
		for _, r := range rows {
			jr := jsonRow{Name: r.Name, Path: r.Path, ModifiedAt: r.ModifiedAt}
			if r.HasTag {
				jr.Tag = r.Tag
			}
			payload = append(payload, jr)
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if encErr := enc.Encode(payload); encErr != nil {
			return encErr
		}
		return err
	}

	printRows(out, rows)
	stats := a.engine.Stats()
	fmt.Fprintf(out, "\n%d %s in %s (%d %s, %d skipped)\n",
		stats.Files, plural(stats.Files, "file"), a.engine.Root(),
		stats.Dirs, plural(stats.Dirs, "folder"), stats.Skipped)
	return err
}

func printRows(w io.Writer, rows []view.DisplayRow) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tLAST MODIFIED\t\tTAG")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Name, r.ModifiedAt, humanize.Time(r.Modified), r.Tag)
	}
	_ = tw.Flush()
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}

// tagKey turns a file argument into a tag key: existing files are keyed by
// absolute path, anything else is used verbatim.
func tagKey(arg string) string {
	if _, err := os.Stat(arg); err != nil {
		return arg
	}
	abs, err := filepath.Abs(arg)
	if err != nil {
		return arg
	}
	return abs
}

func runTag(cmd *cobra.Command, opts *globalOptions, args []string) error {
	a, err := openApp(opts, false)
	if err != nil {
		return err
	}
	defer a.Close()

	key := tagKey(args[0])
	if err := a.engine.OnTagRequested(key, args[1]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Tagged %s: %s\n", key, args[1])
	return nil
}

func runUntag(cmd *cobra.Command, opts *globalOptions, args []string) error {
	a, err := openApp(opts, false)
	if err != nil {
		return err
	}
	defer a.Close()

	key := tagKey(args[0])
	removed, err := a.engine.OnTagCleared(key)
	if err != nil {
		return err
	}
	if !removed && key != args[0] {
		// Older state files key tags by bare name.
		if removed, err = a.engine.OnTagCleared(args[0]); err != nil {
			return err
		}
	}
	if !removed {
		fmt.Fprintf(cmd.OutOrStdout(), "%s has no tag\n", args[0])
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Removed tag of %s\n", args[0])
	if tag, still := a.engine.TagOf(key, filepath.Base(key)); still {
		fmt.Fprintf(cmd.OutOrStdout(), "The name tag %q still applies to %s; untag %s to remove it\n",
			tag, filepath.Base(key), filepath.Base(key))
	}
	return nil
}

func runBookmarkAdd(cmd *cobra.Command, opts *globalOptions, args []string) error {
	path := "."
	if len(args) == 1 {
		path = args[0]
	}
	info, err := os.Stat(path)
	if err != nil {
		return &scan.PathNotFoundError{Path: path, Err: err}
	}
	if !info.IsDir() {
		return &scan.PathNotFoundError{Path: path, Reason: "not a directory"}
	}

	a, err := openApp(opts, false)
	if err != nil {
		return err
	}
	defer a.Close()

	name, err := a.engine.OnBookmarkAdded(path)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Bookmarked %s as %q\n", path, name)
	return nil
}

func runBookmarkRemove(cmd *cobra.Command, opts *globalOptions, args []string) error {
	a, err := openApp(opts, false)
	if err != nil {
		return err
	}
	defer a.Close()

	removed, err := a.engine.OnBookmarkRemoved(args[0])
	if err != nil {
		return err
	}
	if !removed {
		return fmt.Errorf("%w: %s", engine.ErrBookmarkNotFound, args[0])
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Removed bookmark %q\n", args[0])
	return nil
}

func runBookmarkList(cmd *cobra.Command, opts *globalOptions) error {
	a, err := openApp(opts, false)
	if err != nil {
		return err
	}
	defer a.Close()

	out := cmd.OutOrStdout()
	marks := a.engine.Bookmarks()
	if len(marks) == 0 {
		fmt.Fprintln(out, "No bookmarks")
		return nil
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for i, bm := range marks {
		fmt.Fprintf(tw, "%d\t%s\t%s\n", i+1, bm.Name, bm.Path)
	}
	return tw.Flush()
}

func runIndexQuery(cmd *cobra.Command, opts *globalOptions) error {
	tag, err := cmd.Flags().GetString("tag")
	if err != nil {
		return err
	}

	a, err := openApp(opts, false)
	if err != nil {
		return err
	}
	defer a.Close()

	if a.index == nil {
		return errors.New("the index is disabled; set index_path in the config file")
	}
	files, err := a.index.FilesByTag(context.Background(), tag)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(files) == 0 {
		fmt.Fprintf(out, "No indexed files tagged %q\n", tag)
		return nil
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, f := range files {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", f.Path, humanize.Time(f.ModifiedAt), f.Root)
	}
	return tw.Flush()
}
