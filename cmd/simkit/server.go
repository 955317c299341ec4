package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kalambet/simkit/internal/api"
	"github.com/kalambet/simkit/internal/composer"
	"github.com/kalambet/simkit/internal/config"
	"github.com/kalambet/simkit/internal/engine"
	"github.com/kalambet/simkit/internal/guard"
	"github.com/kalambet/simkit/internal/ingest"
	"github.com/kalambet/simkit/internal/pipeline"
	"github.com/kalambet/simkit/internal/profile"
	"github.com/kalambet/simkit/internal/retrieval"
	"github.com/kalambet/simkit/internal/storage"
	"github.com/kalambet/simkit/internal/style"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the simkit server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		withMCP, _ := cmd.Flags().GetBool("mcp")
		return runServer(withMCP)
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running simkit server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show simkit system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus(cmd.Context())
	},
}

func init() {
	startCmd.Flags().Bool("mcp", false, "also serve MCP over stdin/stdout")
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "simkit.pid")
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

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func runServer(withMCP bool) error {
	fmt.Fprintf(os.Stderr, "simkit version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLogLevel(cfg.Log.Level)})))

	apiToken, err := config.GetAPIToken(config.NewSecretStore())
	if err != nil {
		return fmt.Errorf("initializing API token: %w", err)
	}
	slog.Info("API bearer token available")

	// Refuse to start twice on the same port.
	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("simkit is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("simkit is already running on port %d", cfg.Server.Port)
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	models := cfg.Models()
	eng, err := engine.Detect(engine.DetectConfig{
		Backend:       cfg.Engine.Backend,
		OllamaBaseURL: cfg.Ollama.BaseURL,
		OpenAIBaseURL: cfg.OpenAI.BaseURL,
		OpenAIAPIKey:  cfg.OpenAI.APIKey,
	})
	if err != nil {
		return fmt.Errorf("detecting inference engine: %w", err)
	}
	if err := engine.EnsureReady(ctx, eng, os.Stderr, models.ChatModel, models.FastModel, models.EmbedModel); err != nil {
		return err
	}

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
		}
	}()

	var guidance style.Guidance
	if cfg.Prompt.GuidanceFile != "" {
		guidance, err = style.LoadGuidance(cfg.Prompt.GuidanceFile)
		if err != nil {
			return fmt.Errorf("loading style guidance: %w", err)
		}
	}

	personas := profile.NewManager(store)
	embedder := retrieval.NewEmbedder(eng, models.EmbedModel)
	vectors := retrieval.NewSQLiteStore(store.DB())
	retriever := retrieval.NewRetriever(embedder, vectors)
	comp := composer.New(guidance)
	threshold := float32(cfg.Retrieval.Threshold)

	pipe := pipeline.New(
		guard.New(eng, models.FastModel, cfg.Guard.Timeout),
		retriever,
		comp,
		pipeline.NewEngineCompleter(eng, models.ChatModel),
		pipeline.Options{
			GuardDisabled:    !cfg.Guard.Enabled,
			Threshold:        threshold,
			TopK:             cfg.Retrieval.TopK,
			MaxContextTokens: cfg.Prompt.MaxContextTokens,
		},
	)

	deps := api.Deps{
		Store:      store,
		Personas:   personas,
		Pipeline:   pipe,
		Composer:   comp,
		Retriever:  retriever,
		Vectors:    vectors,
		Threshold:  threshold,
		Token:      apiToken,
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
	}

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: api.NewHandler(deps),
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	worker := ingest.NewWorker(store, embedder, vectors, ingest.Options{
		ChunkSize:    cfg.Ingest.ChunkSize,
		ChunkOverlap: cfg.Ingest.ChunkOverlap,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		worker.Run(gctx)
		return nil
	})

	if withMCP {
		stdioSrv := server.NewStdioServer(api.NewMCPServer(deps, version))
		g.Go(func() error {
			if err := stdioSrv.Listen(gctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("MCP stdio server error", "error", err)
			}
			return nil
		})
		slog.Info("MCP server started (stdio transport)")
	}

	g.Go(func() error {
		fmt.Fprintf(os.Stderr, "simkit listening on %s (engine %s)\n", addr, cfg.Engine.Backend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		fmt.Fprintln(os.Stderr, "shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
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
		printError("simkit is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop simkit (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to simkit (PID %d)", pid)
	return nil
}

func showStatus(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	serverURL := fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)
	client := &http.Client{Timeout: 2 * time.Second}

	running := false
	resp, err := client.Get(serverURL + "/health")
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			running = true
			printStatus("Server", "running on port %d", cfg.Server.Port)
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	models := cfg.Models()
	printStatus("Engine", "%s", cfg.Engine.Backend)
	printStatus("Chat model", "%s", models.ChatModel)
	printStatus("Fast model", "%s", models.FastModel)
	printStatus("Embed model", "%s", models.EmbedModel)
	printStatus("Guard", "%s", enabledLabel(cfg.Guard.Enabled))

	if running {
		token, err := config.GetAPIToken(config.NewSecretStore())
		if err == nil {
			c := &apiClient{baseURL: serverURL, token: token, httpClient: client}
			if st, err := fetchStatus(ctx, c); err == nil {
				printStatus("Personas", "%d", st.Personas)
				if st.Chunks != nil {
					printStatus("Knowledge", "%d chunks", *st.Chunks)
				}
				printStatus("Ingest jobs", "%s", jobSummary(st.Jobs))
			}
		}
	}

	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}

func fetchStatus(ctx context.Context, c *apiClient) (api.StatusResponse, error) {
	var st api.StatusResponse
	resp, err := c.get(ctx, "/status")
	if err != nil {
		return st, err
	}
	err = decodeJSON(resp, &st)
	return st, err
}

func jobSummary(counts map[string]int) string {
	return fmt.Sprintf("%d pending, %d running, %d failed", counts["pending"], counts["running"], counts["failed"])
}

func enabledLabel(on bool) string {
	if on {
		return "enabled"
	}
	return "disabled"
}
