// Package main is the tanya CLI entry point.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/hyperjump/tanya/internal/cli"
	"github.com/hyperjump/tanya/internal/config"
	"github.com/hyperjump/tanya/internal/indexer"
	"github.com/hyperjump/tanya/internal/models"
	"github.com/hyperjump/tanya/internal/server"
	"github.com/hyperjump/tanya/internal/storage"
	"github.com/hyperjump/tanya/internal/tui"
	"github.com/hyperjump/tanya/internal/watcher"
	"github.com/hyperjump/tanya/pkg/utils"
)

var version = "dev"

const (
	defaultConfigPath = "/usr/local/etc/tanya/config.yaml"
	defaultServerURL  = "http://localhost:8080"
)

// errUsage reports bad arguments; the usage text has already been printed.
var errUsage = errors.New("invalid usage")

type command func(ctx context.Context, args []string, out io.Writer) error

var commands = map[string]command{
	"server":  runServer,
	"ingest":  runIngest,
	"ask":     runAsk,
	"search":  runSearch,
	"find":    runFind,
	"stats":   runStats,
	"clear":   runClear,
	"samples": runSamples,
	"chat":    runChat,
	"watch":   runWatch,
}

// loadConfig loads config from path. When path is the default, config.yaml in
// the current directory wins if it exists, and a missing default file yields
// the built-in defaults. Returns the config and the path actually loaded,
// which is empty when defaults were used.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
		if _, statErr := os.Stat(path); errors.Is(statErr, os.ErrNotExist) {
			return config.Default(), "", nil
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	// API keys may live in .env next to the binary's working directory.
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage(os.Stderr)
		os.Exit(1)
	}
	name := os.Args[1]
	switch name {
	case "version", "--version", "-v":
		fmt.Printf("tanya version %s\n", version)
		return
	case "help", "--help", "-h":
		printUsage(os.Stdout)
		return
	}
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", name)
		printUsage(os.Stderr)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cmd(ctx, os.Args[2:], os.Stdout)
	stop()
	if err != nil {
		if !errors.Is(err, errUsage) {
			fmt.Fprintf(os.Stderr, "%s failed: %v\n", name, err)
		}
		os.Exit(1)
	}
}

// session is a loaded config plus the logger built from it.
type session struct {
	cfg        *config.Config
	configPath string
	logger     *zap.Logger
}

// newSession loads the config. One-shot commands log at warn unless the
// config asks for debug output or sets a level.
func newSession(configPath string, debug, quiet bool) (*session, error) {
	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	debug = debug || cfg.Debug
	level := cfg.LogLevel
	if level == "" && quiet && !debug {
		level = "warn"
	}
	logger, err := utils.NewLoggerWithLevel(level, debug)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return &session{cfg: cfg, configPath: resolved, logger: logger}, nil
}

func (s *session) open() (*Components, error) {
	return initializeComponents(s.cfg, s.logger)
}

func (s *session) close() { _ = s.logger.Sync() }

func runServer(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	samples := fs.Bool("samples", false, "ingest the built-in sample policies before serving")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	sess, err := newSession(*configPath, *debug, false)
	if err != nil {
		return err
	}
	defer sess.close()
	logger, cfg := sess.logger, sess.cfg
	logger.Info("config loaded", zap.String("config_path", sess.configPath), zap.Bool("debug", cfg.Debug || *debug))

	components, err := sess.open()
	if err != nil {
		return err
	}
	defer components.Close()

	if *samples {
		sum, err := components.Indexer.LoadSamples(ctx, cfg.Storage.DocumentsDir)
		if err != nil {
			return fmt.Errorf("failed to load samples: %w", err)
		}
		logger.Info("samples loaded", zap.Int("indexed", sum.Indexed), zap.Int("skipped", sum.Skipped))
	}

	watchSvc := watcher.NewWatcher(components.Indexer, cfg.Watch, watcher.WithLogger(logger))
	watchCtx, watchCancel := context.WithCancel(ctx)
	defer watchCancel()
	if err := watchSvc.Start(watchCtx); err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}
	defer watchSvc.Stop()
	watchSvc.SyncExistingFiles()

	srv := server.NewServer(components.ServerDeps(), cfg, logger, server.WithWatch(watchSvc, sess.configPath))
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()
	fmt.Fprintf(out, "tanya listening on http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down...")
	watchCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Stop(shutdownCtx)
}

func runIngest(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("ingest", flag.ContinueOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	output := fs.String("output", "text", "output format: text or json")
	recursive := fs.Bool("recursive", true, "descend into subdirectories")
	if err := fs.Parse(argsReorder(args)); err != nil {
		return errUsage
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(fs.Output(), "Usage: tanya ingest [flags] <file-or-directory>")
		return errUsage
	}
	format, err := cli.ParseOutputFormat(*output)
	if err != nil {
		return err
	}
	path := fs.Arg(0)
	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	sess, err := newSession(*configPath, false, true)
	if err != nil {
		return err
	}
	defer sess.close()
	components, err := sess.open()
	if err != nil {
		return err
	}
	defer components.Close()

	if info.IsDir() {
		sum, err := components.Indexer.IndexDirectory(ctx, path, sess.cfg.Watch.Extensions, *recursive)
		if err != nil {
			return err
		}
		return cli.WriteSummary(out, sum, format)
	}
	res, err := components.Indexer.IndexFile(ctx, path)
	if err != nil {
		return err
	}
	return cli.WriteResult(out, res, format)
}

func runAsk(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("ask", flag.ContinueOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "", "query a running server instead of the local store")
	mode := fs.String("mode", "", "answer mode: template or generative (default from config)")
	showChunks := fs.Bool("chunks", false, "print the retrieved chunks under the answer")
	output := fs.String("output", "text", "output format: text or json")
	if err := fs.Parse(argsReorder(args)); err != nil {
		return errUsage
	}
	question := buildQuery(fs.Args())
	if question == "" {
		fmt.Fprintln(fs.Output(), "Usage: tanya ask [flags] <question>")
		return errUsage
	}
	format, err := cli.ParseOutputFormat(*output)
	if err != nil {
		return err
	}
	req := &models.AskRequest{Question: question, Mode: *mode}

	var ans *models.Answer
	if *serverURL != "" {
		ans, err = newAPIClient(*serverURL).Ask(ctx, req)
	} else {
		err = withComponents(*configPath, func(_ *session, c *Components) error {
			var askErr error
			ans, askErr = c.Engine.Ask(ctx, req)
			return askErr
		})
	}
	if err != nil {
		return err
	}
	return cli.WriteAnswer(out, ans, format, *showChunks)
}

func runSearch(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("search", flag.ContinueOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "", "query a running server instead of the local store")
	k := fs.Int("k", 0, "results per tier (default from config)")
	threshold := fs.Float64("threshold", 0, "single similarity threshold replacing the configured tiers")
	output := fs.String("output", "text", "output format: text or json")
	if err := fs.Parse(argsReorder(args)); err != nil {
		return errUsage
	}
	query := buildQuery(fs.Args())
	if query == "" {
		fmt.Fprintln(fs.Output(), "Usage: tanya search [flags] <query>")
		return errUsage
	}
	format, err := cli.ParseOutputFormat(*output)
	if err != nil {
		return err
	}
	q := &models.SearchQuery{Query: query, K: *k}
	if flagSet(fs, "threshold") {
		q.Threshold = threshold
	}

	var response *models.SearchResponse
	if *serverURL != "" {
		response = &models.SearchResponse{}
		err = newAPIClient(*serverURL).do(ctx, http.MethodPost, "/api/v1/search", q, response, http.StatusOK)
	} else {
		err = withComponents(*configPath, func(_ *session, c *Components) error {
			var searchErr error
			response, searchErr = c.Retriever.Search(ctx, q)
			return searchErr
		})
	}
	if err != nil {
		return err
	}
	return cli.WriteSearchResults(out, response, format)
}

func runFind(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("find", flag.ContinueOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "", "query a running server instead of the local index")
	limit := fs.Int("limit", 10, "maximum number of matches")
	fuzzy := fs.Bool("fuzzy", false, "tolerate one-letter typos")
	output := fs.String("output", "text", "output format: text or json")
	if err := fs.Parse(argsReorder(args)); err != nil {
		return errUsage
	}
	terms := buildQuery(fs.Args())
	if terms == "" {
		fmt.Fprintln(fs.Output(), "Usage: tanya find [flags] <terms>")
		return errUsage
	}
	format, err := cli.ParseOutputFormat(*output)
	if err != nil {
		return err
	}

	var hits []*models.KeywordHit
	if *serverURL != "" {
		params := url.Values{}
		params.Set("q", terms)
		params.Set("limit", strconv.Itoa(*limit))
		params.Set("fuzzy", strconv.FormatBool(*fuzzy))
		var resp struct {
			Hits []*models.KeywordHit `json:"hits"`
		}
		err = newAPIClient(*serverURL).do(ctx, http.MethodGet, "/api/v1/find?"+params.Encode(), nil, &resp, http.StatusOK)
		hits = resp.Hits
	} else {
		err = withComponents(*configPath, func(_ *session, c *Components) error {
			var findErr error
			hits, findErr = c.Finder.Find(ctx, terms, *limit, *fuzzy)
			return findErr
		})
	}
	if err != nil {
		return err
	}
	return cli.WriteKeywordHits(out, terms, hits, format)
}

func runStats(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("stats", flag.ContinueOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "", "read stats from a running server")
	output := fs.String("output", "text", "output format: text or json")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	format, err := cli.ParseOutputFormat(*output)
	if err != nil {
		return err
	}

	report := &cli.StatsReport{}
	if *serverURL != "" {
		err = newAPIClient(*serverURL).do(ctx, http.MethodGet, "/api/v1/stats", nil, report, http.StatusOK)
	} else {
		err = withComponents(*configPath, func(sess *session, c *Components) error {
			return collectStats(ctx, sess.cfg, c, report)
		})
	}
	if err != nil {
		return err
	}
	return cli.WriteStats(out, report, format)
}

func collectStats(ctx context.Context, cfg *config.Config, c *Components, report *cli.StatsReport) error {
	report.Stats = c.Store.Stats()
	report.LoadState = c.Store.LoadState().String()
	var err error
	if report.Documents, err = c.Registry.CountDocuments(ctx); err != nil {
		return fmt.Errorf("count documents: %w", err)
	}
	if report.RegisteredChunks, err = c.Registry.CountChunks(ctx); err != nil {
		return fmt.Errorf("count chunks: %w", err)
	}
	if u, err := storage.MeasureDiskUsage(cfg.Storage.StorePath, cfg.Storage.DatabasePath, cfg.Storage.KeywordIndexPath); err == nil {
		report.DiskUsageBytes = u.Total()
	}
	return nil
}

func runClear(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("clear", flag.ContinueOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "", "clear the store of a running server")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	var err error
	if *serverURL != "" {
		err = newAPIClient(*serverURL).do(ctx, http.MethodDelete, "/api/v1/store", nil, nil, http.StatusOK)
	} else {
		err = withComponents(*configPath, func(_ *session, c *Components) error {
			return c.Indexer.Clear(ctx)
		})
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(out, "Store cleared")
	return nil
}

func runSamples(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("samples", flag.ContinueOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	dir := fs.String("dir", "", "directory to write the sample files to (default storage.documents_dir)")
	output := fs.String("output", "text", "output format: text or json")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	format, err := cli.ParseOutputFormat(*output)
	if err != nil {
		return err
	}
	var sum indexer.Summary
	err = withComponents(*configPath, func(sess *session, c *Components) error {
		target := *dir
		if target == "" {
			target = sess.cfg.Storage.DocumentsDir
		}
		var loadErr error
		sum, loadErr = c.Indexer.LoadSamples(ctx, target)
		return loadErr
	})
	if err != nil {
		return err
	}
	return cli.WriteSummary(out, sum, format)
}

func runChat(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("chat", flag.ContinueOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "", "chat with a running server instead of the local store")
	mode := fs.String("mode", "", "initial answer mode: template or generative")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	if *serverURL != "" {
		client := newAPIClient(*serverURL)
		summary := "connected to " + *serverURL
		report := &cli.StatsReport{}
		if err := client.do(ctx, http.MethodGet, "/api/v1/stats", nil, report, http.StatusOK); err == nil {
			summary = chatSummary(report)
		}
		return runProgram(ctx, tui.New(ctx, client, summary, *mode), out)
	}

	sess, err := newSession(*configPath, false, true)
	if err != nil {
		return err
	}
	defer sess.close()
	components, err := sess.open()
	if err != nil {
		return err
	}
	defer components.Close()

	report := &cli.StatsReport{}
	if err := collectStats(ctx, sess.cfg, components, report); err != nil {
		return err
	}
	initialMode := *mode
	if initialMode == "" {
		initialMode = sess.cfg.Answer.Mode
	}
	return runProgram(ctx, tui.New(ctx, components.Engine, chatSummary(report), initialMode), out)
}

func runProgram(ctx context.Context, m tea.Model, out io.Writer) error {
	_, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx), tea.WithOutput(out)).Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

func chatSummary(r *cli.StatsReport) string {
	if r.TotalDocuments == 0 {
		return "The knowledge base is empty. Run `tanya samples` or `tanya ingest <path>` first."
	}
	return fmt.Sprintf("%d chunks from %d documents", r.TotalDocuments, r.Documents)
}

func runWatch(ctx context.Context, args []string, out io.Writer) error {
	if len(args) < 1 {
		printWatchUsage(os.Stderr)
		return errUsage
	}
	sub := args[0]
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	serverURL := fs.String("server", defaultServerURL, "server URL")
	if err := fs.Parse(argsReorder(args[1:])); err != nil {
		return errUsage
	}
	client := newAPIClient(*serverURL)

	switch sub {
	case "add", "remove":
		if fs.NArg() < 1 {
			fmt.Fprintf(fs.Output(), "Usage: tanya watch %s <path>\n", sub)
			return errUsage
		}
		path, err := filepath.Abs(fs.Arg(0))
		if err != nil {
			return err
		}
		if sub == "add" {
			body := map[string]interface{}{"path": path, "sync": true}
			if err := client.do(ctx, http.MethodPost, "/api/v1/watch/directories", body, nil, http.StatusCreated); err != nil {
				return err
			}
			fmt.Fprintf(out, "Added: %s\n", path)
			return nil
		}
		if err := client.do(ctx, http.MethodDelete, "/api/v1/watch/directories?path="+url.QueryEscape(path), nil, nil, http.StatusOK); err != nil {
			return err
		}
		fmt.Fprintf(out, "Removed: %s\n", path)
		return nil
	case "list":
		var resp struct {
			Directories []string `json:"directories"`
		}
		if err := client.do(ctx, http.MethodGet, "/api/v1/watch/directories", nil, &resp, http.StatusOK); err != nil {
			return err
		}
		for _, d := range resp.Directories {
			fmt.Fprintln(out, d)
		}
		return nil
	default:
		fmt.Fprintf(os.Stderr, "Unknown watch subcommand: %s\n", sub)
		printWatchUsage(os.Stderr)
		return errUsage
	}
}

// withComponents opens a session and components for the duration of fn.
func withComponents(configPath string, fn func(*session, *Components) error) error {
	sess, err := newSession(configPath, false, true)
	if err != nil {
		return err
	}
	defer sess.close()
	components, err := sess.open()
	if err != nil {
		return err
	}
	defer components.Close()
	return fn(sess, components)
}

// Ask lets the chat TUI talk to a running server.
func (c *apiClient) Ask(ctx context.Context, req *models.AskRequest) (*models.Answer, error) {
	var ans models.Answer
	if err := c.do(ctx, http.MethodPost, "/api/v1/ask", req, &ans, http.StatusOK); err != nil {
		return nil, err
	}
	return &ans, nil
}

// buildQuery joins all positional args with spaces so multi-word input works
// the same with or without shell quoting.
func buildQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// argsReorder moves any flags (and their values) that appear after the
// positional arguments to the front so that flag.Parse() sees them. Go's flag
// package stops at the first non-flag argument, so "tanya ask what is PTO
// -mode generative" would otherwise leave -mode unparsed.
func argsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

func flagSet(fs *flag.FlagSet, name string) bool {
	found := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}

func printWatchUsage(w io.Writer) {
	fmt.Fprintln(w, `Usage: tanya watch <add|remove|list> [path]
  tanya watch add <path>     Add directory to watch
  tanya watch remove <path>  Remove directory from watch
  tanya watch list           List watched directories`)
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `tanya - Ask questions about your company documents

Usage:
  tanya server [flags]                Start the HTTP server and directory watcher
  tanya ingest [flags] <file|dir>     Ingest a document or a directory of documents
  tanya ask [flags] <question>        Answer a question from the ingested documents
  tanya search [flags] <query>        Show the chunks retrieved for a query
  tanya find [flags] <terms>          Keyword lookup over ingested chunks
  tanya stats [flags]                 Show store and registry statistics
  tanya clear [flags]                 Remove every ingested chunk and document
  tanya samples [flags]               Ingest the built-in sample policies
  tanya chat [flags]                  Interactive question and answer session
  tanya watch <add|remove|list>       Manage watched directories of a running server
  tanya version                       Show version
  tanya help                          Show this help

Common Flags:
  --config string    Config file path (default: /usr/local/etc/tanya/config.yaml,
                     or ./config.yaml when present; built-in defaults when neither exists)
  --output string    Output format: text or json (default: text)
  --server string    Send the request to a running server, e.g. http://localhost:8080

Server Flags:
  --debug            Enable debug logging
  --samples          Ingest the sample policies before serving

Ask Flags:
  --mode string      template or generative (default from config)
  --chunks           Print the retrieved chunks under the answer

Search Flags:
  --k int            Results per tier (default from config)
  --threshold float  Single similarity threshold replacing the configured tiers

Find Flags:
  --limit int        Maximum matches (default: 10)
  --fuzzy            Tolerate one-letter typos

Examples:
  tanya samples
  tanya ask How many vacation days do I get?
  tanya ask --mode generative "What is the PTO policy?"
  tanya search --threshold 0.2 --output json remote work
  tanya find --fuzzy reimbursment
  tanya ingest ./handbook
  tanya server --samples
  tanya watch add ./handbook`)
}
