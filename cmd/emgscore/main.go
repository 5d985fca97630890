// Package main provides the CLI entrypoint for emgscore.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/verte-zerg/emgscore/internal/archive"
	"github.com/verte-zerg/emgscore/internal/config"
	"github.com/verte-zerg/emgscore/internal/engine"
	"github.com/verte-zerg/emgscore/internal/historyui"
	"github.com/verte-zerg/emgscore/internal/logger"
	"github.com/verte-zerg/emgscore/internal/model"
	"github.com/verte-zerg/emgscore/internal/report"
	"github.com/verte-zerg/emgscore/internal/server"
	"github.com/verte-zerg/emgscore/internal/session"
	"github.com/verte-zerg/emgscore/internal/store"
	"github.com/verte-zerg/emgscore/internal/watch"
)

var (
	rootConfigPath string
	rootDBPath     string
	rootLogMode    string

	scoreSave  bool
	scoreJSON  bool
	scoreLeft  string
	scoreRight string

	historyPlain   bool
	historyPatient string
	historySince   string
	historyLast    int
	historyWindow  int

	exportPatient string

	watchSave     bool
	watchDebounce time.Duration

	serveAddr string
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "emgscore",
		Short:         "EMG contraction quality and performance scoring",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.PersistentFlags().StringVar(&rootConfigPath, "config", "", "config file (default: $XDG_CONFIG_HOME/emgscore/config.toml)")
	rootCmd.PersistentFlags().StringVar(&rootDBPath, "db", "", "history database (default: $XDG_DATA_HOME/emgscore/history.db)")
	rootCmd.PersistentFlags().StringVar(&rootLogMode, "log", "", "log mode: dev, debug or prod")

	rootCmd.AddCommand(newScoreCmd())
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newHistoryCmd())
	rootCmd.AddCommand(newExportCmd())
	rootCmd.AddCommand(newImportCmd())
	rootCmd.AddCommand(newWatchCmd())
	rootCmd.AddCommand(newServeCmd())

	return rootCmd
}

func newScoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "score <session-file>",
		Short: "Score a session document (YAML or JSON)",
		Args:  cobra.ExactArgs(1),
		RunE:  runScoreCmd,
	}
	cmd.Flags().BoolVar(&scoreSave, "save", false, "store the score in history")
	cmd.Flags().BoolVar(&scoreJSON, "json", false, "print the result as JSON")
	addChannelFlags(cmd, &scoreLeft, &scoreRight)
	return cmd
}

func runScoreCmd(cmd *cobra.Command, args []string) error {
	path := args[0]
	in, err := session.Load(path)
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}

	eng, cleanup, err := buildEngine(cmd, scoreLeft, scoreRight, scoreSave)
	if err != nil {
		return err
	}
	defer cleanup()

	res, err := eng.Score(cmd.Context(), engine.Request{Input: in, SourcePath: absPath(path), Save: scoreSave})
	if err != nil {
		return err
	}
	if err := printResult(cmd, res); err != nil {
		return err
	}
	if res.ScoreID != "" {
		logErrf("Saved score %s\n", res.ScoreID)
	}
	return nil
}

func printResult(cmd *cobra.Command, res engine.Result) error {
	out := cmd.OutOrStdout()
	if scoreJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		return nil
	}
	if err := report.RenderSessionScore(out, res.Score); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create/open config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
}

func runConfigCmd(_ *cobra.Command, _ []string) error {
	path := configPath()
	if err := writeConfigTemplate(path); err != nil {
		return err
	}

	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	if len(parts) == 0 {
		return fmt.Errorf("editor command is empty")
	}
	cmd := exec.Command(parts[0], append(parts[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}

// writeConfigTemplate creates the commented template unless a config exists.
func writeConfigTemplate(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config: %w", err)
		}
		if err := os.WriteFile(path, []byte(config.DefaultTemplate()), 0o644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}
	return nil
}

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Browse scored sessions",
		Args:  cobra.NoArgs,
		RunE:  runHistoryCmd,
	}
	cmd.Flags().BoolVar(&historyPlain, "plain", false, "print a text report instead of the TUI")
	cmd.Flags().StringVar(&historyPatient, "patient", "", "patient filter")
	cmd.Flags().StringVar(&historySince, "since", "", "start date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&historyLast, "last", 0, "limit to last N sessions")
	cmd.Flags().IntVar(&historyWindow, "window", report.DefaultTrendWindow, "moving average window")
	return cmd
}

func runHistoryCmd(cmd *cobra.Command, _ []string) error {
	since, err := parseSince(historySince)
	if err != nil {
		return err
	}
	if historyLast < 0 {
		return fmt.Errorf("--last must be >= 0")
	}
	if historyWindow <= 0 {
		return fmt.Errorf("--window must be > 0")
	}
	filter := model.HistoryFilter{
		PatientID:   historyPatient,
		Since:       since,
		Last:        historyLast,
		TrendWindow: historyWindow,
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore(st)

	if historyPlain {
		r, err := report.BuildReport(cmd.Context(), st, filter)
		if err != nil {
			return fmt.Errorf("failed to load history: %w", err)
		}
		if err := report.RenderHistory(cmd.OutOrStdout(), r, 0, false); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		return nil
	}

	ui := historyui.NewModel(st, filter)
	program := tea.NewProgram(ui, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run history TUI: %w", err)
	}
	return nil
}

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export [file]",
		Short: "Export score history to a zstd JSONL archive",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runExportCmd,
	}
	cmd.Flags().StringVar(&exportPatient, "patient", "", "patient filter")
	return cmd
}

func runExportCmd(cmd *cobra.Command, args []string) error {
	path := archive.DefaultPath(config.DefaultArchiveDir(), time.Now())
	if len(args) == 1 {
		path = args[0]
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore(st)

	scores, err := st.ListScores(cmd.Context(), model.HistoryFilter{PatientID: exportPatient})
	if err != nil {
		return fmt.Errorf("failed to load history: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create archive directory: %w", err)
	}
	if err := archive.Export(path, scores); err != nil {
		return err
	}
	logErrf("Exported %d scores to %s\n", len(scores), path)
	return nil
}

func newImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Import scores from a zstd JSONL archive",
		Args:  cobra.ExactArgs(1),
		RunE:  runImportCmd,
	}
}

func runImportCmd(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore(st)

	added, skipped, err := archive.Restore(cmd.Context(), st, args[0])
	if err != nil {
		return err
	}
	logErrf("Imported %d scores (%d already present)\n", added, skipped)
	return nil
}

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch <session-file>",
		Short: "Rescore a session whenever it or the config changes",
		Args:  cobra.ExactArgs(1),
		RunE:  runWatchCmd,
	}
	cmd.Flags().BoolVar(&watchSave, "save", false, "store each new score in history")
	cmd.Flags().DurationVar(&watchDebounce, "debounce", watch.DefaultDebounce, "delay before rescoring after a change")
	addChannelFlags(cmd, &scoreLeft, &scoreRight)
	cmd.Flags().BoolVar(&scoreJSON, "json", false, "print each result as JSON")
	return cmd
}

func runWatchCmd(cmd *cobra.Command, args []string) error {
	path := absPath(args[0])
	log, err := newLogger(cmd)
	if err != nil {
		return err
	}
	defer log.Sync()

	var st *store.Store
	if watchSave {
		st, err = openStore()
		if err != nil {
			return err
		}
		defer closeStore(st)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	memo := &watch.Memo{}
	rescore := func(ctx context.Context) error {
		in, err := session.Load(path)
		if err != nil {
			return err
		}
		eng, err := engineFromConfig(cmd, scoreLeft, scoreRight, log)
		if err != nil {
			return err
		}
		eng.Store = st
		hash, err := eng.Hash(in)
		if err != nil {
			return err
		}
		if !memo.Changed(hash) {
			log.Debug("content unchanged", "source", path)
			return nil
		}
		res, err := eng.Score(ctx, engine.Request{Input: in, SourcePath: path, Save: watchSave})
		if err != nil {
			return err
		}
		logErrf("--- %s scored at %s\n", filepath.Base(path), time.Now().Format("15:04:05"))
		return printResult(cmd, res)
	}

	logErrf("Watching %s (Ctrl+C to stop)\n", path)
	return watch.Run(ctx, []string{path, configPath()}, watchDebounce, log, rescore)
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the scoring HTTP API",
		Args:  cobra.NoArgs,
		RunE:  runServeCmd,
	}
	cmd.Flags().StringVar(&serveAddr, "addr", config.DefaultServerAddr, "listen address")
	return cmd
}

func runServeCmd(cmd *cobra.Command, _ []string) error {
	fileCfg, err := config.LoadConfig(configPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	addr := fileCfg.ServerAddr()
	applyStringConfig(cmd, "addr", &serveAddr, &addr)

	log, err := newLogger(cmd)
	if err != nil {
		return err
	}
	defer log.Sync()

	eng, err := engineFromConfig(cmd, "", "", log)
	if err != nil {
		return err
	}
	st, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore(st)
	eng.Store = st

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.New(eng, log, fileCfg.Server.AllowedOrigins)
	logErrf("Listening on http://%s\n", serveAddr)
	return srv.Run(ctx, serveAddr)
}

func addChannelFlags(cmd *cobra.Command, left, right *string) {
	cmd.Flags().StringVar(left, "left", "", "left muscle channel name")
	cmd.Flags().StringVar(right, "right", "", "right muscle channel name")
}

// buildEngine wires config, logger and (when saving) the history store.
func buildEngine(cmd *cobra.Command, left, right string, withStore bool) (*engine.Engine, func(), error) {
	log, err := newLogger(cmd)
	if err != nil {
		return nil, nil, err
	}
	eng, err := engineFromConfig(cmd, left, right, log)
	if err != nil {
		log.Sync()
		return nil, nil, err
	}
	cleanup := func() { log.Sync() }
	if !withStore {
		return eng, cleanup, nil
	}
	st, err := openStore()
	if err != nil {
		log.Sync()
		return nil, nil, err
	}
	eng.Store = st
	return eng, func() {
		closeStore(st)
		log.Sync()
	}, nil
}

func engineFromConfig(cmd *cobra.Command, left, right string, log *logger.Logger) (*engine.Engine, error) {
	fileCfg, err := config.LoadConfig(configPath())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	applyStringConfig(cmd, "left", &left, fileCfg.Session.LeftChannel)
	applyStringConfig(cmd, "right", &right, fileCfg.Session.RightChannel)

	sc, err := fileCfg.SessionConfiguration()
	if err != nil {
		return nil, err
	}
	sc.LeftChannel = left
	sc.RightChannel = right
	effort, err := fileCfg.EffortFunc()
	if err != nil {
		return nil, err
	}
	return &engine.Engine{Config: sc, Effort: effort, Log: log}, nil
}

func newLogger(cmd *cobra.Command) (*logger.Logger, error) {
	mode := rootLogMode
	if !cmd.Flags().Changed("log") {
		fileCfg, err := config.LoadConfig(configPath())
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		mode = fileCfg.LogMode()
	}
	log, err := logger.New(mode)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return log, nil
}

func openStore() (*store.Store, error) {
	path := rootDBPath
	if path == "" {
		path = config.DefaultDBPath()
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	return st, nil
}

func closeStore(st *store.Store) {
	if cerr := st.Close(); cerr != nil {
		logErrf("failed to close db: %v\n", cerr)
	}
}

func configPath() string {
	if rootConfigPath != "" {
		return rootConfigPath
	}
	return config.DefaultConfigPath()
}

func parseSince(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	parsed, err := time.ParseInLocation("2006-01-02", value, time.Local)
	if err != nil {
		return nil, fmt.Errorf("invalid --since value: %w", err)
	}
	return &parsed, nil
}

func absPath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return abs
}

func applyStringConfig(cmd *cobra.Command, name string, target, value *string) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}
