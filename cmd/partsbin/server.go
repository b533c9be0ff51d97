package main

import (
	"context"
	"errors"
	"fmt"
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

	"github.com/kalambet/partsbin/internal/api"
	"github.com/kalambet/partsbin/internal/storage"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the MCP stdio server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		withHTTP, _ := cmd.Flags().GetBool("http")
		withMCP, _ := cmd.Flags().GetBool("mcp")
		if !withHTTP && !withMCP {
			return errors.New("nothing to serve: both --http and --mcp are disabled")
		}
		return withApp(cmd, func(ctx context.Context, a *app) error {
			return runServer(ctx, a, withHTTP, withMCP)
		})
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running partsbin server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer(cmd)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show partsbin status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus(cmd)
	},
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "partsbin.pid")
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

func runServer(ctx context.Context, a *app, withHTTP, withMCP bool) error {
	log := a.log.WithComponent("server")
	fmt.Fprintf(os.Stderr, "partsbin version %s\n", version)

	pidPath := pidFilePath(a.cfg.Storage.DataDir)
	if withHTTP && newAPIClient(a.cfg).healthy(ctx) {
		if pid, err := readPIDFile(pidPath); err == nil {
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		return fmt.Errorf("server already running on port %d", a.cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps := api.Deps{
		Manager:  a.manager,
		Registry: a.registry,
		Ideas:    a.ideaService(ctx),
		Log:      a.log,
		Token:    a.cfg.Server.Token,
	}

	g, ctx := errgroup.WithContext(ctx)

	if withHTTP {
		addr := fmt.Sprintf("127.0.0.1:%d", a.cfg.Server.Port)
		srv := &http.Server{
			Addr:              addr,
			Handler:           api.NewRouter(deps),
			ReadHeaderTimeout: 10 * time.Second,
			BaseContext: func(_ net.Listener) context.Context {
				return ctx
			},
		}
		if deps.Token == "" {
			printWarning("no server.token configured; the HTTP API accepts unauthenticated requests from localhost")
		}

		g.Go(func() error {
			printStep("partsbin listening on %s (inventory %s)", addr, a.manager.Active().Name)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server error: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			fmt.Fprintln(os.Stderr, "shutting down...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	if withMCP {
		stdioSrv := server.NewStdioServer(api.NewMCPServer(deps, version))
		g.Go(func() error {
			log.Infow("MCP server started", "transport", "stdio")
			if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
				log.Errorw("MCP stdio server error", "error", err)
			}
			return nil
		})
	}

	return g.Wait()
}

func stopServer(cmd *cobra.Command) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if dir, _ := cmd.Flags().GetString("data-dir"); dir != "" {
		cfg.Storage.DataDir = dir
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		return fmt.Errorf("partsbin is not running (no PID file): %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("could not find process %d: %w", pid, err)
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		removePIDFile(pidPath)
		return fmt.Errorf("could not stop partsbin (PID %d): %w", pid, err)
	}

	printSuccess("Sent stop signal to partsbin (PID %d)", pid)
	return nil
}

type activeResponse struct {
	Inventory storage.Inventory `json:"inventory"`
	Summary   struct {
		Components int `json:"components"`
		Units      int `json:"units"`
	} `json:"summary"`
}

func showStatus(cmd *cobra.Command) error {
	cfg, err := loadConfig()
	if err != nil {
		// Still show partial status even if config fails.
		printError("config error: %v", err)
		return nil
	}
	if dir, _ := cmd.Flags().GetString("data-dir"); dir != "" {
		cfg.Storage.DataDir = dir
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	client := newAPIClient(cfg)
	if client.healthy(ctx) {
		printStatus("Server", "running on port %d", cfg.Server.Port)
		if resp, err := client.get(ctx, "/inventories/active"); err == nil {
			var active activeResponse
			if decodeJSON(resp, &active) == nil {
				printStatus("Served inventory", "%s (%d components, %d units)",
					active.Inventory.Name, active.Summary.Components, active.Summary.Units)
			}
		}
	} else {
		printStatus("Server", "stopped")
	}

	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	printStatus("LLM provider", "%s", cfg.LLM.Provider)
	if cfg.LLM.APIKey == "" {
		printStatus("LLM key", "not set in config (the api_key setting may still provide one)")
	} else {
		printStatus("LLM key", "configured")
	}

	if _, err := os.Stat(filepath.Join(cfg.Storage.DataDir, storage.SettingsFile)); err != nil {
		printStatus("Inventories", "none yet")
		return nil
	}
	return withApp(cmd, func(ctx context.Context, a *app) error {
		invs, err := a.manager.List(ctx)
		if err != nil {
			return err
		}
		printStatus("Inventories", "%d", len(invs))
		printStatus("Active", "%s", a.manager.Active().Name)
		printStatus("Categories", "%d", len(a.registry.List()))
		return nil
	})
}

func init() {
	serveCmd.Flags().Bool("http", true, "serve the HTTP API")
	serveCmd.Flags().Bool("mcp", true, "serve MCP over stdin/stdout")
}
