package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/fmuoria/fair-hire/internal/api"
	"github.com/fmuoria/fair-hire/internal/mcpserver"
)

const (
	serverShutdownWaitSeconds = 5
	serverMaxHeaderBytes      = 20
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"server"},
		Usage:   "Start the HTTP API",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "port",
				Usage: "Port on which the server will listen (default: server.port from config)",
			},
			&cli.StringFlag{
				Name:  "host",
				Usage: "Interface to bind",
			},
		},
		Action: withEnv(cmdServe),
	}
}

func mcpCommand() *cli.Command {
	return &cli.Command{
		Name:   "mcp",
		Usage:  "Serve screening tools over the Model Context Protocol on stdio",
		Action: withEnv(cmdMCP),
	}
}

func cmdServe(ctx context.Context, cmd *cli.Command, e *env) error {
	port := e.cfg.Server.Port
	if p := int(cmd.Int("port")); p > 0 {
		port = p
	}
	address := fmt.Sprintf("%s:%d", cmd.String("host"), port)

	srv := api.NewServer(e.store, e.agent, e.logger, e.cfg.Server.MaxUploadMB<<20)
	s := &http.Server{
		Addr:           address,
		Handler:        srv.Router(),
		ReadTimeout:    e.cfg.Server.ReadTimeout,
		WriteTimeout:   e.cfg.Server.WriteTimeout,
		MaxHeaderBytes: 1 << serverMaxHeaderBytes,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(done)

	errCh := make(chan error, 1)
	go func() {
		if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	e.logger.Info("server started", zap.String("address", address))

	select {
	case <-done:
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("error starting server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), serverShutdownWaitSeconds*time.Second)
	defer cancel()

	if err := s.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		e.logger.Error("error shutting down server", zap.Error(err))
	}
	e.logger.Info("server stopped")
	return nil
}

func cmdMCP(_ context.Context, _ *cli.Command, e *env) error {
	return mcpserver.Serve(mcpserver.NewTools(e.agent, e.store, e.logger))
}
