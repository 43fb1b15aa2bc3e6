// ABOUTME: Entry point for the tablebridge server
// ABOUTME: Bridges typed table tools to BigQuery or SQLite over HTTP and SSE

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/luminal-data/tablebridge/internal/backend"
	"github.com/luminal-data/tablebridge/internal/backend/bigquery"
	"github.com/luminal-data/tablebridge/internal/backend/sqlite"
	"github.com/luminal-data/tablebridge/internal/config"
	"github.com/luminal-data/tablebridge/internal/dispatch"
	"github.com/luminal-data/tablebridge/internal/server"
	"github.com/luminal-data/tablebridge/internal/session"
	"github.com/luminal-data/tablebridge/internal/tools"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
 _        _     _      _          _     _
| |_ __ _| |__ | | ___| |__  _ __(_) __| | __ _  ___
| __/ _' | '_ \| |/ _ \ '_ \| '__| |/ _' |/ _' |/ _ \
| || (_| | |_) | |  __/ |_) | |  | | (_| | (_| |  __/
 \__\__,_|_.__/|_|\___|_.__/|_|  |_|\__,_|\__, |\___|
                                          |___/
`

// getConfigPath returns the path to the tablebridge config file.
// Priority: TABLEBRIDGE_CONFIG env var > XDG_CONFIG_HOME/tablebridge/config.yaml > ~/.config/tablebridge/config.yaml
func getConfigPath() string {
	if envPath := os.Getenv("TABLEBRIDGE_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "config.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "tablebridge", "config.yaml")
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: tablebridge <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve    Start the bridge server")
		fmt.Println("  init     Create a new config file interactively")
		fmt.Println("  health   Check bridge health")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "init":
		err = runInit()
	case "health":
		err = runHealth(ctx)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	configPath := getConfigPath()

	// Print banner
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging)

	green := color.New(color.FgGreen)
	green.Print("    ▶ ")
	fmt.Printf("Config:  %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:    %s\n", cfg.Server.HTTPAddr)
	green.Print("    ▶ ")
	fmt.Printf("Backend: %s\n", cfg.Backend.Driver)
	fmt.Println()

	logger.Info("starting tablebridge",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
		"backend", cfg.Backend.Driver,
	)

	capability, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("opening backend: %w", err)
	}

	registry := tools.NewRegistry(logger)
	if err := tools.RegisterTableTools(registry, capability); err != nil {
		capability.Close()
		return fmt.Errorf("registering tools: %w", err)
	}

	dispatcher := dispatch.New(registry, logger)
	sessions := session.NewManager(dispatcher, cfg.Session.DrainTimeout, logger)

	srv, err := server.New(server.Config{
		Registry:   registry,
		Dispatcher: dispatcher,
		Sessions:   sessions,
		Token:      cfg.Server.Token,
		Logger:     logger,
	})
	if err != nil {
		capability.Close()
		return fmt.Errorf("creating server: %w", err)
	}

	httpServer := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: srv.Routes(),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", cfg.Server.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		capability.Close()
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")

	// Stop accepting connections first, then drain sessions, then
	// release the backend.
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown incomplete", "error", err)
	}

	sessions.CloseAll()

	if err := capability.Close(); err != nil {
		logger.Warn("backend close failed", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}

// openBackend constructs the configured backend capability.
func openBackend(ctx context.Context, cfg *config.Config, logger *slog.Logger) (backend.Capability, error) {
	switch cfg.Backend.Driver {
	case "bigquery":
		return bigquery.New(ctx, bigquery.Config{
			Project:         cfg.Backend.BigQuery.Project,
			Location:        cfg.Backend.BigQuery.Location,
			CredentialsFile: cfg.Backend.BigQuery.CredentialsFile,
			Datasets:        cfg.Backend.BigQuery.Datasets,
		}, logger)
	case "sqlite":
		return sqlite.New(cfg.Backend.SQLite.Path, logger)
	default:
		return nil, fmt.Errorf("unknown backend driver %q", cfg.Backend.Driver)
	}
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = &colorHandler{
			level: level,
		}
	}

	return slog.New(handler)
}

// colorHandler provides colorized log output with thread-safe writes.
type colorHandler struct {
	mu     sync.Mutex
	level  slog.Level
	attrs  []slog.Attr
	groups []string
}

func (h *colorHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *colorHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var buf strings.Builder

	buf.WriteString(color.HiBlackString(r.Time.Format("15:04:05") + " "))

	switch r.Level {
	case slog.LevelDebug:
		buf.WriteString(color.MagentaString("DBG "))
	case slog.LevelInfo:
		buf.WriteString(color.CyanString("INF "))
	case slog.LevelWarn:
		buf.WriteString(color.YellowString("WRN "))
	case slog.LevelError:
		buf.WriteString(color.New(color.FgRed, color.Bold).Sprint("ERR "))
	default:
		buf.WriteString("??? ")
	}

	buf.WriteString(r.Message)

	// Handler-level attrs first (from WithAttrs)
	for _, a := range h.attrs {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
	}

	r.Attrs(func(a slog.Attr) bool {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
		return true
	})

	buf.WriteString("\n")
	fmt.Print(buf.String())
	return nil
}

func (h *colorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, len(h.attrs), len(h.attrs)+len(attrs))
	copy(newAttrs, h.attrs)
	newAttrs = append(newAttrs, attrs...)
	return &colorHandler{
		level:  h.level,
		attrs:  newAttrs,
		groups: h.groups,
	}
}

func (h *colorHandler) WithGroup(name string) slog.Handler {
	newGroups := make([]string, len(h.groups), len(h.groups)+1)
	copy(newGroups, h.groups)
	newGroups = append(newGroups, name)
	return &colorHandler{
		level:  h.level,
		attrs:  h.attrs,
		groups: newGroups,
	}
}

func runHealth(ctx context.Context) error {
	configPath := getConfigPath()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	url := fmt.Sprintf("http://%s/health", strings.TrimPrefix(cfg.Server.HTTPAddr, "http://"))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}

	fmt.Println("healthy")
	return nil
}

func runInit() error {
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("tablebridge configuration setup")
	fmt.Println("===============================")
	fmt.Println()

	defaultConfigPath := getConfigPath()
	outputFile := prompt(reader, "Config file path", defaultConfigPath)

	if _, err := os.Stat(outputFile); err == nil {
		overwrite := prompt(reader, "File exists. Overwrite?", "no")
		if strings.ToLower(overwrite) != "yes" && strings.ToLower(overwrite) != "y" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	fmt.Println("\n--- Server Configuration ---")
	httpAddr := prompt(reader, "HTTP address", ":8080")
	token := prompt(reader, "Bearer token (leave empty to disable auth)", "")

	fmt.Println("\n--- Backend Configuration ---")
	driver := prompt(reader, "Backend driver (bigquery/sqlite)", "bigquery")

	var project, location, credentials, sqlitePath string
	if driver == "sqlite" {
		sqlitePath = prompt(reader, "SQLite database path", "tablebridge.db")
	} else {
		project = prompt(reader, "BigQuery project", "")
		location = prompt(reader, "BigQuery location", "US")
		credentials = prompt(reader, "Credentials file (leave empty for ADC)", "")
	}

	fmt.Println("\n--- Logging Configuration ---")
	logLevel := prompt(reader, "Log level (debug/info/warn/error)", "info")
	logFormat := prompt(reader, "Log format (text/json)", "text")

	var cfg strings.Builder
	cfg.WriteString("# tablebridge configuration\n")
	cfg.WriteString("# Generated by tablebridge init\n\n")

	cfg.WriteString("server:\n")
	cfg.WriteString(fmt.Sprintf("  http_addr: \"%s\"\n", httpAddr))
	if token != "" {
		cfg.WriteString(fmt.Sprintf("  token: \"%s\"\n", token))
	}
	cfg.WriteString("\n")

	cfg.WriteString("backend:\n")
	cfg.WriteString(fmt.Sprintf("  driver: \"%s\"\n", driver))
	if driver == "sqlite" {
		cfg.WriteString("  sqlite:\n")
		cfg.WriteString(fmt.Sprintf("    path: \"%s\"\n", sqlitePath))
	} else {
		cfg.WriteString("  bigquery:\n")
		cfg.WriteString(fmt.Sprintf("    project: \"%s\"\n", project))
		cfg.WriteString(fmt.Sprintf("    location: \"%s\"\n", location))
		if credentials != "" {
			cfg.WriteString(fmt.Sprintf("    credentials_file: \"%s\"\n", credentials))
		}
	}
	cfg.WriteString("\n")

	cfg.WriteString("session:\n")
	cfg.WriteString("  drain_timeout: \"5s\"\n")
	cfg.WriteString("\n")

	cfg.WriteString("logging:\n")
	cfg.WriteString(fmt.Sprintf("  level: \"%s\"\n", logLevel))
	cfg.WriteString(fmt.Sprintf("  format: \"%s\"\n", logFormat))

	configDir := filepath.Dir(outputFile)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := os.WriteFile(outputFile, []byte(cfg.String()), 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	fmt.Printf("\nConfig written to %s\n", outputFile)
	fmt.Println("\nTo start the server:")
	fmt.Printf("  tablebridge serve\n")

	return nil
}

func prompt(reader *bufio.Reader, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", question, defaultVal)
	} else {
		fmt.Printf("%s: ", question)
	}

	input, err := reader.ReadString('\n')
	if err != nil {
		// On EOF or error, return default
		fmt.Println()
		return defaultVal
	}
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultVal
	}
	return input
}
