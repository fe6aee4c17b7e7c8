package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/flemzord/opsgate/internal/mcpserver"
	"github.com/flemzord/opsgate/internal/server"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the dispatch API over HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfgPath, err := resolveConfigPath(cmd)
			if err != nil {
				return err
			}
			rt, err := buildRuntime(cfgPath)
			if err != nil {
				return err
			}

			srv := server.New(server.Config{
				ListenAddr:   rt.cfg.Server.ListenAddr,
				MaxBodyBytes: rt.cfg.Server.MaxBodyBytes,
				Dispatcher:   rt.dispatcher,
				Logger:       rt.logger,
			})

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			rt.start()
			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start() }()

			select {
			case err := <-errCh:
				rt.shutdown(context.Background())
				return err
			case <-ctx.Done():
			}

			rt.logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				rt.logger.Error("http shutdown", "error", err)
			}
			rt.shutdown(shutdownCtx)
			return nil
		},
	}
}

func mcpCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve the operation catalog over MCP stdio",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfgPath, err := resolveConfigPath(cmd)
			if err != nil {
				return err
			}
			agentID, _ := cmd.Flags().GetString("agent")

			rt, err := buildRuntime(cfgPath)
			if err != nil {
				return err
			}
			defer rt.shutdown(context.Background())
			rt.start()

			srv := mcpserver.New(mcpserver.Config{
				AgentID:    agentID,
				Version:    version,
				Registry:   rt.registry,
				Resolver:   rt.resolver,
				Dispatcher: rt.dispatcher,
				Logger:     rt.logger,
			})
			return srv.ServeStdio()
		},
	}
	cmd.Flags().String("agent", "", "Agent identity for this MCP session")
	return cmd
}
