package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/kalambet/flowcraft/internal/aimodel"
	"github.com/kalambet/flowcraft/internal/api"
	"github.com/kalambet/flowcraft/internal/cache"
	"github.com/kalambet/flowcraft/internal/config"
	"github.com/kalambet/flowcraft/internal/marketing"
	"github.com/kalambet/flowcraft/internal/provider"
	"github.com/kalambet/flowcraft/internal/storage"
	"github.com/kalambet/flowcraft/internal/worker"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the flowcraft server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		withMCP, _ := cmd.Flags().GetBool("mcp")
		return runServer(withMCP)
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running flowcraft server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show flowcraft system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the MCP tools over stdio",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMCP()
	},
}

func init() {
	startCmd.Flags().Bool("mcp", false, "also serve MCP over stdio")
}

// runtime holds what the server, worker and MCP server share.
type runtime struct {
	cfg      config.Config
	store    *storage.Store
	redis    *redis.Client // nil when the cache is disabled
	cacheTTL time.Duration
	opts     provider.Options
}

func setupLogging(level string) {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
}

func parseDuration(name, value string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		slog.Warn("invalid duration, using default", "key", name, "value", value, "default", def)
		return def
	}
	return d
}

func openRuntime(ctx context.Context, cfg config.Config) (*runtime, error) {
	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}

	rt := &runtime{
		cfg:      cfg,
		store:    store,
		cacheTTL: parseDuration("cache.ttl", cfg.Cache.TTL, 24*time.Hour),
		opts: provider.Options{
			OpenAIBaseURL:      cfg.Providers.OpenAIBaseURL,
			HuggingFaceBaseURL: cfg.Providers.HuggingFaceBaseURL,
			ReplicateBaseURL:   cfg.Providers.ReplicateBaseURL,
			ElevenLabsBaseURL:  cfg.Providers.ElevenLabsBaseURL,
			Timeout:            parseDuration("providers.request_timeout", cfg.Providers.RequestTimeout, 120*time.Second),
		},
	}

	if cfg.Cache.RedisURL != "" {
		client, err := cache.Connect(ctx, cfg.Cache.RedisURL)
		if err != nil {
			slog.Warn("generation cache disabled", "error", err)
		} else {
			rt.redis = client
			slog.Info("generation cache enabled", "ttl", rt.cacheTTL)
		}
	}
	return rt, nil
}

func (rt *runtime) Close() {
	if rt.redis != nil {
		rt.redis.Close()
	}
	if err := rt.store.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
	}
}

func (rt *runtime) fallbackKeys() aimodel.Keys {
	return aimodel.Keys{
		OpenAI:      rt.cfg.Providers.OpenAIAPIKey,
		HuggingFace: rt.cfg.Providers.HuggingFaceAPIKey,
		Replicate:   rt.cfg.Providers.ReplicateAPIKey,
		ElevenLabs:  rt.cfg.Providers.ElevenLabsAPIKey,
	}
}

// engine builds an engine from the stored model configuration. Keys missing
// there fall back to the service configuration.
func (rt *runtime) engine(ctx context.Context) (*marketing.Engine, error) {
	uc, err := rt.store.GetUserConfig()
	if err != nil {
		return nil, fmt.Errorf("loading model configuration: %w", err)
	}
	uc = uc.WithFallbackKeys(rt.fallbackKeys())

	var gen provider.Generator = provider.FromUserConfig(uc, rt.opts)
	if rt.redis != nil {
		gen = cache.New(gen, rt.redis, rt.cacheTTL)
	}
	return marketing.New(gen, uc), nil
}

func (rt *runtime) contentGenerator(ctx context.Context) (worker.ContentGenerator, error) {
	eng, err := rt.engine(ctx)
	if err != nil {
		return nil, err
	}
	return eng.Generator, nil
}

func (rt *runtime) backends(keys aimodel.Keys) provider.Backends {
	return provider.NewBackends(keys, rt.opts)
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "flowcraft.pid")
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePIDFile(path string) {
	os.Remove(path)
}

func runServer(withMCP bool) error {
	fmt.Fprintf(os.Stderr, "flowcraft version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	setupLogging(cfg.Log.Level)

	apiToken, err := config.GetAPIToken(config.NewSecretStore())
	if err != nil {
		return fmt.Errorf("initializing API token: %w", err)
	}
	slog.Info("API bearer token available")

	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("flowcraft is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("flowcraft is already running on port %d", cfg.Server.Port)
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := openRuntime(ctx, cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	if n, err := rt.store.RequeueRunningJobs(); err != nil {
		slog.Warn("could not requeue interrupted jobs", "error", err)
	} else if n > 0 {
		slog.Info("requeued interrupted generation jobs", "count", n)
	}

	handler := api.NewHandler(api.Deps{
		Store:          rt.store,
		Token:          apiToken,
		AllowedOrigins: cfg.Server.Origins(),
		Engines:        rt.engine,
		Backends:       rt.backends,
	})

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	poll := parseDuration("worker.poll_interval", cfg.Worker.PollInterval, 500*time.Millisecond)
	w := worker.NewWorker(rt.store, rt.contentGenerator, poll)
	go w.Run(ctx)

	if withMCP {
		go serveMCP(ctx, rt)
		slog.Info("MCP server started (stdio transport)")
	}

	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "flowcraft listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func serveMCP(ctx context.Context, rt *runtime) {
	mcpSrv := api.NewMCPServer(api.MCPDeps{
		Store:   rt.store,
		Engines: rt.engine,
	})
	stdioSrv := server.NewStdioServer(mcpSrv)
	if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("MCP stdio server error", "error", err)
	}
}

// runMCP serves MCP alone, for clients that spawn flowcraft as a subprocess.
// Queued generations are still processed.
func runMCP() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	setupLogging(cfg.Log.Level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := openRuntime(ctx, cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	poll := parseDuration("worker.poll_interval", cfg.Worker.PollInterval, 500*time.Millisecond)
	go worker.NewWorker(rt.store, rt.contentGenerator, poll).Run(ctx)

	serveMCP(ctx, rt)
	return nil
}

func stopServer() error {
	cfg, err := config.Load()
	if err != nil {
		printError("could not load config: %v", err)
		return err
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		printError("flowcraft is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop flowcraft (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to flowcraft (PID %d)", pid)
	return nil
}

func showStatus() error {
	cfg, err := config.Load()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port))
	switch {
	case err != nil:
		printStatus("Server", "stopped")
	case resp.StatusCode == http.StatusOK:
		resp.Body.Close()
		printStatus("Server", "running on port %d", cfg.Server.Port)
	default:
		resp.Body.Close()
		printStatus("Server", "error (HTTP %d)", resp.StatusCode)
	}

	for _, p := range []struct {
		name string
		key  string
	}{
		{"OpenAI key", cfg.Providers.OpenAIAPIKey},
		{"Hugging Face key", cfg.Providers.HuggingFaceAPIKey},
		{"Replicate key", cfg.Providers.ReplicateAPIKey},
		{"ElevenLabs key", cfg.Providers.ElevenLabsAPIKey},
	} {
		if p.key == "" {
			printStatus(p.name, "not set (stored model configuration only)")
		} else {
			printStatus(p.name, "%s", config.Mask(p.key))
		}
	}

	if cfg.Cache.RedisURL == "" {
		printStatus("Cache", "disabled")
	} else {
		printStatus("Cache", "redis, ttl %s", cfg.Cache.TTL)
	}

	store, err := storage.Open(cfg.Storage.DataDir)
	if err == nil {
		defer store.Close()
		if flows, err := store.ListFlows(storage.FlowFilter{}); err == nil {
			printStatus("Flows", "%d", len(flows))
		}
		if counts, err := store.JobCounts(); err == nil {
			printStatus("Generation jobs", "%d pending, %d running, %d failed",
				counts["pending"], counts["running"], counts["failed"])
		}
	}

	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}
