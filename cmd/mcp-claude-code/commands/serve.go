package commands

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	mcpgo "github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/opencode-ai/mcp-claude-code/internal/event"
	"github.com/opencode-ai/mcp-claude-code/internal/logging"
	"github.com/opencode-ai/mcp-claude-code/internal/server"
)

func runServe(cmd *cobra.Command, args []string) error {
	cfg, workDir, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	initLogging(cfg)
	defer logging.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, workDir)
	if err != nil {
		return err
	}

	log.Info().
		Str("name", cfg.Name).
		Str("version", Version).
		Str("transport", cfg.Transport).
		Strs("allowed_paths", a.gate.AllowedPaths()).
		Strs("tools", a.tools.IDs()).
		Msg("Starting MCP server")

	go auditEvents(ctx)

	if a.store != nil {
		if err := a.store.Save(ctx, a.gate); err != nil {
			log.Warn().Err(err).Msg("failed to save permission state")
		}
		go func() {
			if err := a.store.Watch(ctx, a.gate); err != nil {
				log.Warn().Err(err).Msg("permission state watcher stopped")
			}
		}()
	}

	switch cfg.Transport {
	case "sse":
		return serveSSE(ctx, a)
	default:
		return serveStdio(ctx, a)
	}
}

func serveStdio(ctx context.Context, a *app) error {
	stdio := mcpgo.NewStdioServer(a.mcp)
	err := stdio.Listen(ctx, os.Stdin, os.Stdout)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, io.EOF) {
		return err
	}
	log.Info().Msg("stdio transport closed")
	return nil
}

func serveSSE(ctx context.Context, a *app) error {
	cfg := server.DefaultConfig()
	cfg.Address = a.cfg.Address
	srv := server.New(cfg, a.cfg.Name, a.mcp, a.tools, a.gate)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("server shutdown error")
	}
	log.Info().Msg("Server stopped")
	return nil
}

// auditEvents logs every bus event at debug level until ctx is done.
func auditEvents(ctx context.Context) {
	envelopes, err := event.Stream(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("event audit disabled")
		return
	}
	for env := range envelopes {
		log.Debug().
			Str("event", string(env.Type)).
			RawJSON("data", env.Data).
			Msg("audit")
	}
}
