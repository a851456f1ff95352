// Promptbox server
// Stdio for a single chat bridge, HTTP (/mcp) for bridges connecting over the network.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/jaakkos/promptbox/internal/app"
	"github.com/jaakkos/promptbox/internal/dashboard"
	"github.com/jaakkos/promptbox/internal/domain"
	"github.com/jaakkos/promptbox/internal/ownercipher"
	"github.com/jaakkos/promptbox/internal/policy"
	"github.com/jaakkos/promptbox/internal/repository"
	"github.com/jaakkos/promptbox/internal/tools/commands"
)

// Version is set by -ldflags at build time.
var Version = "dev"

const logPrefix = "[promptbox] "

func main() {
	stdio := true
	// Handle CLI subcommands before starting MCP server.
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "status":
			runStatusCommand()
			return
		case "migrate":
			runMigrateCommand()
			return
		case "serve":
			stdio = false
		case "--version", "-v", "version":
			fmt.Println("promptbox " + Version)
			return
		default:
			fmt.Fprintf(os.Stderr, "unknown command %q (want serve, status, migrate or version)\n", os.Args[1])
			os.Exit(2)
		}
	}

	// Load config
	tmpLogger := log.New(os.Stderr, logPrefix, log.LstdFlags|log.Lshortfile)
	cfg := loadConfig(tmpLogger)
	pol := policy.New(cfg)

	// Set up logging
	logger := setupLogger(pol.LogFile())
	logger.Println("Starting promptbox server...")
	logger.Printf("Log file: %s", pol.LogFile())
	logger.Printf("Backend: %s", pol.Backend())

	key, err := ownercipher.LoadOrCreateKey(pol.KeyFile())
	if err != nil {
		logger.Fatalf("Owner key: %v", err)
	}
	cipher := ownercipher.New(key)
	repos, err := repository.Open(pol, cipher)
	if err != nil {
		logger.Fatalf("Storage: %v", err)
	}
	store, err := app.NewSubmissionService(repos.Submissions, logger)
	if err != nil {
		logger.Fatalf("Submissions: %v", err)
	}
	auth, err := app.NewAuthorizationRegistry(repos.AdminRoles, repos.SubmitRoles, logger)
	if err != nil {
		logger.Fatalf("Roles: %v", err)
	}

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Ignore SIGHUP so closing the launching terminal does not stop the bot.
	signal.Ignore(syscall.SIGHUP)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, shutting down...", sig)
		cancel()
	}()

	// Reload allow-lists when an operator edits the role files by hand.
	var watcher *app.RoleFileWatcher
	if pol.WatchRoleFiles() && len(repos.RoleFiles) > 0 {
		files := make(map[string]app.Reloader, len(repos.RoleFiles))
		for path, list := range repos.RoleFiles {
			files[path] = auth.List(list)
		}
		watcher = app.NewRoleFileWatcher(files, logger)
		go watcher.Start(ctx)
	}

	// Build the MCPServer
	hooks := &server.Hooks{}
	hooks.AddAfterCallTool(func(ctx context.Context, id any, message *mcp.CallToolRequest, result *mcp.CallToolResult) {
		if message != nil {
			logger.Printf("Command: %s", message.Params.Name)
		}
	})

	mcpServer := server.NewMCPServer(
		"promptbox",
		Version,
		server.WithInstructions(commands.HelpText(pol.DumpCooldown())),
		server.WithHooks(hooks),
	)
	commands.Register(mcpServer, store, auth, pol, logger, commands.WithShutdown(cancel))

	// Start HTTP server in background (for bridges connecting over the network)
	dash := dashboard.NewHandler(store, auth, pol.Backend())
	httpShutdown := startHTTPServer(mcpServer, pol.HTTPPort(), logger, store, dash)

	if stdio {
		logger.Println("Stdio ready (bridge connection)")
		stdioSrv := server.NewStdioServer(mcpServer)
		if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			logger.Printf("Stdio server stopped: %v", err)
		}
		// Bridge disconnected -- shut everything down
		cancel()
	} else {
		<-ctx.Done()
	}

	httpShutdown()
	if watcher != nil {
		watcher.Stop()
	}
	if err := repos.Close(); err != nil {
		logger.Printf("Warning: close storage: %v", err)
	}

	logger.Println("Server stopped")
}

// startHTTPServer starts the HTTP server in the background and returns a shutdown
// function. Uses net.Listen to support port 0 (auto-assign).
func startHTTPServer(mcpServer *server.MCPServer, port int, logger *log.Logger, store *app.SubmissionService, dash *dashboard.Handler) func() {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		logger.Fatalf("HTTP listen: %v", err)
	}
	actualPort := ln.Addr().(*net.TCPAddr).Port
	baseURL := fmt.Sprintf("http://localhost:%d", actualPort)

	logger.Printf("HTTP server on :%d", actualPort)
	logger.Printf("  Bridges connect at: %s/mcp", baseURL)
	logger.Printf("  State:              %s/api/state", baseURL)

	streamSrv := server.NewStreamableHTTPServer(mcpServer)

	mux := http.NewServeMux()
	mux.Handle("/mcp", streamSrv)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"status":"ok","port":%d,"submissions":%d}`, actualPort, store.Count(nil))
	})
	dash.RegisterRoutes(mux)

	httpServer := &http.Server{Handler: mux}

	go func() {
		if err := httpServer.Serve(ln); err != http.ErrServerClosed {
			logger.Fatalf("HTTP server error: %v", err)
		}
	}()

	return func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Printf("HTTP shutdown error: %v", err)
		}
	}
}

// setupLogger writes to log_file, and also to stderr when stderr is a terminal
// or no log file could be opened. Stdout stays reserved for the stdio transport.
func setupLogger(logFilePath string) *log.Logger {
	var writers []io.Writer

	stderrIsTerminal := false
	if info, err := os.Stderr.Stat(); err == nil {
		stderrIsTerminal = (info.Mode() & os.ModeCharDevice) != 0
	}

	hasLogFile := false
	lower := strings.ToLower(logFilePath)
	if lower != "none" && lower != "off" && logFilePath != "" {
		if err := os.MkdirAll(filepath.Dir(logFilePath), 0o755); err == nil {
			f, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err == nil {
				writers = append(writers, f)
				hasLogFile = true
			} else {
				fmt.Fprintf(os.Stderr, logPrefix+"Warning: cannot open log file %s: %v\n", logFilePath, err)
			}
		} else {
			fmt.Fprintf(os.Stderr, logPrefix+"Warning: cannot create log dir %s: %v\n", filepath.Dir(logFilePath), err)
		}
	}

	// Add stderr if it's a terminal, or if there's no log file (always need at least one output).
	if stderrIsTerminal || !hasLogFile {
		writers = append(writers, os.Stderr)
	}

	return log.New(io.MultiWriter(writers...), logPrefix, log.LstdFlags|log.Lshortfile)
}

// loadConfig loads policy configuration from PROMPTBOX_CONFIG or defaults,
// then applies PROMPTBOX_* environment overrides.
func loadConfig(logger *log.Logger) *policy.Config {
	cfg := policy.DefaultConfig()
	if configPath := os.Getenv(policy.EnvConfigPath); configPath != "" {
		var err error
		cfg, err = policy.LoadConfig(configPath)
		if err != nil {
			logger.Printf("Warning: failed to load config %s: %v, using defaults", configPath, err)
			cfg = policy.DefaultConfig()
		}
	}
	envFile, required := os.Getenv(policy.EnvFilePath), true
	if envFile == "" {
		envFile, required = "promptbox.env", false
	}
	if err := policy.LoadEnvFile(envFile, required); err != nil {
		logger.Fatalf("Config: %v", err)
	}
	if err := policy.ApplyEnv(cfg); err != nil {
		logger.Fatalf("Config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("Config: %v", err)
	}
	return cfg
}

// runStatusCommand implements "promptbox status": counts per category and role list sizes.
func runStatusCommand() {
	logger := log.New(os.Stderr, "", 0)
	pol := policy.New(loadConfig(logger))

	key, err := ownercipher.LoadOrCreateKey(pol.KeyFile())
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	repos, err := repository.Open(pol, ownercipher.New(key))
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer repos.Close()

	line, err := statusLine(repos)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(line)
}

// statusLine summarises repos. Any record that fails to load is an error.
func statusLine(repos *repository.Set) (string, error) {
	subs, err := repos.Submissions.Load()
	if err != nil {
		return "", err
	}
	admin, err := repos.AdminRoles.Load()
	if err != nil {
		return "", err
	}
	submit, err := repos.SubmitRoles.Load()
	if err != nil {
		return "", err
	}

	counts := make([]string, 0, len(domain.Categories))
	for _, c := range domain.Categories {
		counts = append(counts, fmt.Sprintf("%s=%d", c, len(domain.Filter(subs, &c))))
	}
	return fmt.Sprintf("submissions=%d %s admin_roles=%d submit_roles=%d",
		len(subs), strings.Join(counts, " "), len(admin), len(submit)), nil
}

// runMigrateCommand implements "promptbox migrate": copies the flat files into
// the SQLite database named by sqlite_file.
func runMigrateCommand() {
	logger := log.New(os.Stderr, logPrefix, 0)
	pol := policy.New(loadConfig(logger))

	key, err := ownercipher.LoadOrCreateKey(pol.KeyFile())
	if err != nil {
		logger.Fatalf("Owner key: %v", err)
	}
	cipher := ownercipher.New(key)
	src := repository.OpenFlatfile(pol, cipher)
	dst, err := repository.OpenSQLite(pol.SQLiteFile(), cipher)
	if err != nil {
		logger.Fatalf("SQLite: %v", err)
	}
	n, err := repository.Migrate(src, dst)
	if cerr := dst.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		logger.Fatalf("Migrate: %v", err)
	}
	fmt.Printf("migrated %d submissions to %s\n", n, pol.SQLiteFile())
}
