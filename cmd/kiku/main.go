// Package main is the kiku CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/hyperjump/kiku/internal/chat"
	"github.com/hyperjump/kiku/internal/cli"
	"github.com/hyperjump/kiku/internal/config"
	"github.com/hyperjump/kiku/internal/history"
	"github.com/hyperjump/kiku/internal/models"
	"github.com/hyperjump/kiku/internal/search"
	"github.com/hyperjump/kiku/internal/server"
	"github.com/hyperjump/kiku/internal/session"
	"github.com/hyperjump/kiku/internal/transport"
	"github.com/hyperjump/kiku/internal/watcher"
	"github.com/hyperjump/kiku/pkg/utils"
	"go.uber.org/zap"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/kiku/config.yaml"

// loadConfig loads .env and the config at path, then validates it. When path is the
// default and config.yaml exists in the current directory, that file is used instead,
// so "kiku server" from the project dir picks up the project's config.
// Returns the config and the path that was actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if err := config.LoadDotEnv(); err != nil {
		return nil, "", err
	}
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				path = fallback
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "ask":
		runAsk()
	case "chat":
		runChat()
	case "history":
		runHistory()
	case "init":
		runInit()
	case "version", "--version", "-v":
		fmt.Printf("kiku version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (upstream calls, session lifecycle, config reloads)")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLoggerWithFile(debugMode, cfg.LogFile)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	if cfg.WatchConfig {
		watchOpts := []watcher.WatcherOption{}
		if debugMode {
			watchOpts = append(watchOpts, watcher.WithLogger(logger))
		}
		cw := watcher.NewWatcher(resolvedConfigPath, watcher.ReloadInto(components.Live, logger), watchOpts...)
		if err := cw.Start(watchCtx); err != nil {
			logger.Fatal("Failed to start config watcher", zap.Error(err))
		}
	}

	sessions := session.NewRegistry(components.NewSession, cfg.Sessions.TTL, cfg.Sessions.CleanupInterval)
	var historySvc server.HistoryService
	if components.History != nil {
		historySvc = components.History
	}
	srv := server.NewServer(components.Client, components.Live, sessions, historySvc, cfg, logger)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	watchCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
	sessions.Each(func(_ string, s *chat.Session) { s.Wait() })
}

// printAskUsage prints ask subcommand usage.
func printAskUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: kiku ask [flags] <query>\n\n")
	fmt.Fprintf(fs.Output(), "Query is all remaining arguments joined by spaces. Multi-word queries work with or without quotes.\n\n")
	fs.PrintDefaults()
	fmt.Fprintf(fs.Output(), `
Examples:
  kiku ask what is retrieval augmented generation
  kiku ask --output markdown --sources "explain goroutines"
  kiku ask --server http://localhost:8080 "query"   # through a running kiku server
  kiku ask --output json "query"                    # {text, sources} for other apps
`)
}

// buildQuery joins all positional args with spaces so multi-word queries
// work the same with or without shell quoting.
func buildQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// argsReorder moves any flags (and their values) that appear after the query
// to the front of the slice so that flag.Parse() sees them. Go's flag package
// stops at the first non-flag argument, so "kiku ask \"query\" -output json"
// would otherwise leave -output unparsed.
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

func runAsk() {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (direct mode)")
	serverURL := fs.String("server", "", "kiku server URL; empty sends the query straight to the upstream endpoint")
	outputFormat := fs.String("output", "text", "output format: text, markdown, or json")
	showSources := fs.Bool("sources", false, "list sources after the answer")
	fs.Usage = func() { printAskUsage(fs) }
	_ = fs.Parse(argsReorder(os.Args[2:]))

	query := buildQuery(fs.Args())
	if query == "" {
		printAskUsage(fs)
		os.Exit(1)
	}
	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	out := cli.NewWriter(format, *showSources, cli.TerminalWidth(os.Stdout))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *serverURL != "" {
		result, err := askViaHTTP(ctx, *serverURL, query)
		if result != nil {
			_ = out.WriteAnswer(os.Stdout, result)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
		return
	}

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLoggerWithFile(cfg.Debug, cfg.LogFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	client := newClient(cfg, logger)
	orch := search.NewOrchestrator(client, search.StaticEndpoint(cfg.Upstream.Endpoint), search.WithLogger(logger))
	result, outcome := orch.Run(ctx, query)
	if err := out.WriteAnswer(os.Stdout, result); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
	if outcome == search.OutcomeFailed {
		fmt.Fprintln(os.Stderr, orch.Err())
		os.Exit(1)
	}
}

// askViaHTTP sends query through a kiku server's proxy route. On failure the
// server's fallback text is returned together with the error.
func askViaHTTP(ctx context.Context, serverURL, query string) (*models.SearchResult, error) {
	body, err := json.Marshal(models.ProxyRequest{Query: query})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(serverURL, "/")+"/api/v1/proxy/search", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		var pe models.ProxyError
		if json.Unmarshal(data, &pe) == nil && pe.Error != "" {
			fallback := models.NewSearchResult(pe.Text, pe.Sources)
			return &fallback, errors.New(pe.Error)
		}
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(data))
	}
	var result models.SearchResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if result.Sources == nil {
		result.Sources = []models.Source{}
	}
	return &result, nil
}

func runChat() {
	fs := flag.NewFlagSet("chat", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	showSources := fs.Bool("sources", false, "list sources after each answer")
	outputFormat := fs.String("output", "markdown", "answer format: text or markdown")
	user := fs.String("user", "", "save answered queries to this user's history (opens local storage)")
	_ = fs.Parse(os.Args[2:])

	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil || format == cli.OutputJSON {
		fmt.Fprintln(os.Stderr, "chat output must be text or markdown")
		os.Exit(1)
	}
	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLoggerWithFile(cfg.Debug, cfg.LogFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	client := newClient(cfg, logger)
	orch := search.NewOrchestrator(client, search.StaticEndpoint(cfg.Upstream.Endpoint), search.WithLogger(logger))
	opts := []chat.Option{chat.WithLogger(logger)}
	if *user != "" {
		svc, err := openHistory(cfg, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open history: %v\n", err)
			os.Exit(1)
		}
		defer svc.Close()
		opts = append(opts, chat.WithHistory(svc))
	}
	sess := chat.NewSession(orch, opts...)
	sess.SetUser(*user)
	defer sess.Wait()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	r := &repl{
		session:     sess,
		format:      format,
		width:       cli.TerminalWidth(os.Stdout),
		showSources: *showSources,
		prompt:      cli.IsTerminal(os.Stdin),
		out:         os.Stdout,
		errOut:      os.Stderr,
	}
	if err := r.run(ctx, os.Stdin); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "chat: %v\n", err)
		os.Exit(1)
	}
}

func runInit() {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "config file to write")
	endpoint := fs.String("endpoint", "", "prediction endpoint URL (required)")
	force := fs.Bool("force", false, "overwrite an existing config file")
	_ = fs.Parse(os.Args[2:])

	if err := initConfig(*configPath, *endpoint, *force); err != nil {
		fmt.Fprintf(os.Stderr, "init: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Config written to %s\n", *configPath)
}

// initConfig writes a config with defaults and the given endpoint to path.
func initConfig(path, endpoint string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
	}
	cfg := &config.Config{}
	cfg.Upstream.Endpoint = endpoint
	config.ApplyDefaults(cfg)
	if err := config.Validate(cfg); err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	return config.Save(path, cfg)
}

func runHistory() {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	user := fs.String("user", "", "user whose history to show (required)")
	q := fs.String("q", "", "full-text search terms; empty lists newest first")
	limit := fs.Int("limit", 20, "number of entries")
	offset := fs.Int("offset", 0, "entries to skip when listing")
	deleteID := fs.String("delete", "", "delete the entry with this id")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	if *user == "" {
		fmt.Fprintln(os.Stderr, "history: --user is required")
		fs.PrintDefaults()
		os.Exit(1)
	}
	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil || format == cli.OutputMarkdown {
		fmt.Fprintln(os.Stderr, "history output must be text or json")
		os.Exit(1)
	}
	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLoggerWithFile(cfg.Debug, cfg.LogFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	svc, err := openHistory(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open history (is kiku server running?): %v\n", err)
		os.Exit(1)
	}
	defer svc.Close()
	ctx := context.Background()

	switch {
	case *deleteID != "":
		if err := svc.Delete(ctx, *user, *deleteID); err != nil {
			fmt.Fprintf(os.Stderr, "Deletion failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("History entry deleted: %s\n", *deleteID)
	case *q != "":
		results, err := svc.Search(ctx, *user, *q, *limit)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
			os.Exit(1)
		}
		_ = cli.WriteHistoryResults(os.Stdout, results, format)
	default:
		entries, err := svc.List(ctx, *user, *offset, *limit)
		if err != nil {
			fmt.Fprintf(os.Stderr, "List failed: %v\n", err)
			os.Exit(1)
		}
		_ = cli.WriteHistory(os.Stdout, entries, format)
	}
}

// Components holds initialized services for the server.
type Components struct {
	Client  *transport.Client
	Live    *config.Live
	History *history.Service
	logger  *zap.Logger
}

// NewSession builds a chat session with its own orchestrator. It is the session registry's factory.
func (c *Components) NewSession() *chat.Session {
	orch := search.NewOrchestrator(c.Client, c.Live, search.WithLogger(c.logger))
	opts := []chat.Option{chat.WithLogger(c.logger)}
	if c.History != nil {
		opts = append(opts, chat.WithHistory(c.History))
	}
	return chat.NewSession(orch, opts...)
}

func (c *Components) Close() {
	if c.History != nil {
		_ = c.History.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	svc, err := openHistory(cfg, logger)
	if err != nil {
		return nil, err
	}
	return &Components{
		Client:  newClient(cfg, logger),
		Live:    config.NewLive(cfg),
		History: svc,
		logger:  logger,
	}, nil
}

func newClient(cfg *config.Config, logger *zap.Logger) *transport.Client {
	return transport.NewClient(
		transport.WithTimeout(cfg.Upstream.Timeout),
		transport.WithLogger(logger),
	)
}

func openHistory(cfg *config.Config, logger *zap.Logger) (*history.Service, error) {
	store, err := history.NewSQLiteStore(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize history storage: %w", err)
	}
	index, err := history.NewBleveIndex(cfg.Storage.HistoryIndexPath)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize history index: %w", err)
	}
	return history.NewService(store, index,
		history.WithLogger(logger),
		history.WithSearchOptions(&history.SearchOptions{
			QueryBoost: cfg.Storage.HistoryQueryBoost,
			Fuzziness:  cfg.Storage.HistoryFuzziness,
		}),
	), nil
}

func printUsage() {
	fmt.Println(`kiku - Chat-style search over a hosted prediction endpoint

Usage:
  kiku server [flags]          Start the HTTP server
  kiku ask [flags] <query>     Ask a single question
  kiku chat [flags]            Start an interactive conversation
  kiku history [flags]         List, search, or delete saved searches
  kiku init [flags]            Write a starter config file
  kiku version                 Show version
  kiku help                    Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/kiku/config.yaml)
  --debug            Enable debug logging

Ask Flags:
  --config string    Config file path (direct mode)
  --server string    kiku server URL. Empty (default) sends the query straight to the upstream endpoint.
  --output string    Output format: text, markdown, or json (default: text)
  --sources          List sources after the answer

Chat Flags:
  --config string    Config file path
  --output string    Answer format: text or markdown (default: markdown)
  --sources          List sources after each answer
  --user string      Save answered queries to this user's history

Chat Commands:
  /new               Start a new conversation
  /list              List conversations (* marks the active one)
  /open N            Continue conversation N from /list
  /delete N          Delete conversation N from /list
  /sources           Toggle source listing
  /exit              Quit

History Flags:
  --config string    Config file path
  --user string      User whose history to show (required)
  --q string         Full-text search terms
  --limit int        Number of entries (default: 20)
  --offset int       Entries to skip when listing
  --delete string    Delete the entry with this id
  --output string    Output format: text or json (default: text)

Init Flags:
  --config string    Config file to write (default: config.yaml)
  --endpoint string  Prediction endpoint URL (required)
  --force            Overwrite an existing file

The history index is locked while kiku server runs; stop the server before using
kiku history or kiku chat --user against the same storage paths.

Environment:
  KIKU_UPSTREAM_ENDPOINT, KIKU_UPSTREAM_TIMEOUT, KIKU_SERVER_HOST, KIKU_SERVER_PORT,
  KIKU_DEBUG, KIKU_LOG_FILE override the config file. A .env file in the working
  directory is loaded first.

Examples:
  kiku init --endpoint https://flowise.example.com/api/v1/prediction/<id>
  kiku server
  kiku ask "what is retrieval augmented generation"
  kiku ask --output json --sources "query"
  kiku chat --sources
  kiku history --user alice --q kubernetes`)
}
