package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/aretw0/handoff/pkg/adapters/mcp"
	"github.com/spf13/cobra"
)

func newMCPCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Run the Model Context Protocol (MCP) server",
		Long: `Exposes the handoff engine as MCP tools, so an agent can hold travel
conversations and settle approvals.

Supported Transports:
- stdio (default): Uses Standard Input/Output. Ideal for local process integration.
- sse: Uses Server-Sent Events over HTTP. Ideal for remote agents or debuggers.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			transport, _ := cmd.Flags().GetString("transport")
			addr, _ := cmd.Flags().GetString("addr")
			if transport != "stdio" && transport != "sse" {
				return fmt.Errorf("unknown transport %q (supported: stdio, sse)", transport)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			s, err := a.buildStack(ctx, engineSetup{})
			if err != nil {
				return err
			}
			defer s.Close()

			srv := mcp.NewServer(s.engine, mcp.WithLogger(a.logger))
			if transport == "stdio" {
				// Ensure logs don't corrupt JSON-RPC on Stdout
				log.SetOutput(os.Stderr)
				a.logger.Info("starting handoff MCP server (stdio)")
				return srv.ServeStdio()
			}

			a.logger.Info("starting handoff MCP server (SSE)", "addr", addr)
			if err := srv.ServeSSE(ctx, addr); err != nil {
				return err
			}
			a.logger.Info("MCP server stopped gracefully")
			return nil
		},
	}

	cmd.Flags().String("transport", "stdio", "Transport protocol to use: 'stdio' or 'sse'")
	cmd.Flags().String("addr", ":8081", "Listen address (only for SSE)")
	return cmd
}
