// Package mcpcmder provides an MCP (Model Context Protocol) server exposing
// the IroBot assistant as tools.
package mcpcmder

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	versioncmder "github.com/irobothq/irobot/cmd/version"
	"github.com/irobothq/irobot/pkg/cliui"
	"github.com/irobothq/irobot/pkg/config"
	"github.com/irobothq/irobot/pkg/credentials"
	"github.com/irobothq/irobot/pkg/logger"
)

const mcpLongDesc string = `Run an MCP server exposing IroBot as tools.

The server speaks streamable HTTP and offers two tools:
  ask_irobot        Ask the assistant a question (full chat round-trip)
  document_status   Look up a document's processing status

Agents pointed at this server can query the assistant and its document
pipeline without knowing the wire protocol.

Examples:
  irobot mcp
  irobot mcp --listen :8099`

const mcpShortDesc string = "Run an MCP tool server for IroBot"

type mcpCommander struct {
	server    string
	listen    string
	heartbeat uint
	debug     bool
}

func NewMCPCmd() *cobra.Command {
	cmder := &mcpCommander{}

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: mcpShortDesc,
		Long:  mcpLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.preRun(cmd)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			return cmder.run(cmd, configDir)
		},
	}

	cmd.Flags().StringVarP(&cmder.listen, "listen", "l", ":8099", "Address for the MCP server to listen on")
	config.AddStringFlag(cmd, config.Flags, config.FlagServer, &cmder.server)
	config.AddUintFlag(cmd, config.Flags, config.FlagHeartbeat, &cmder.heartbeat)

	return cmd
}

func (c *mcpCommander) preRun(cmd *cobra.Command) error {
	configDir, _ := cmd.Flags().GetString("config-dir")
	c.debug, _ = cmd.Flags().GetBool("debug")

	v, err := config.InitViper(configDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	config.BindRegisteredFlags(v, cmd, config.Flags, []string{
		config.FlagServer,
		config.FlagHeartbeat,
	})

	c.server = v.GetString("server.base_url")
	c.heartbeat = v.GetUint("stream.heartbeat_seconds")

	return nil
}

func (c *mcpCommander) run(cmd *cobra.Command, configDir string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log := logger.New(logger.WithDebug(c.debug), logger.WithPretty(true))

	mgr, err := credentials.NewManager(configDir)
	if err != nil {
		return fmt.Errorf("loading credentials: %w", err)
	}

	handler, err := NewHandler(Options{
		BaseURL:          c.server,
		TokenSource:      credentials.DefaultSource(mgr),
		HeartbeatTimeout: time.Duration(c.heartbeat) * time.Second,
		Logger:           log,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:    c.listen,
		Handler: handler,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()

	fmt.Printf("\n  %s MCP server listening on %s %s\n\n",
		cliui.SuccessMark,
		cliui.KeyStyle.Render(c.listen),
		cliui.DimStyle.Render("(backend "+c.server+")"),
	)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("mcp server: %w", err)
		}
		return nil
	}
}

// Options configures the MCP tool handler.
type Options struct {
	// BaseURL is the IroBot backend the tools talk to.
	BaseURL string

	// TokenSource supplies the access token for backend calls.
	TokenSource credentials.Source

	// HeartbeatTimeout bounds silence on the chat stream.
	HeartbeatTimeout time.Duration

	// Logger defaults to a no-op logger.
	Logger *slog.Logger
}

// NewHandler builds the streamable HTTP handler with the IroBot tools
// registered. The serve command mounts it inside the demo fiber app.
func NewHandler(opts Options) (http.Handler, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("mcp handler requires a backend base URL")
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}

	t := &tools{opts: opts}

	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    "irobot",
			Version: versioncmder.Version,
		},
		&mcp.ServerOptions{},
	)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        askToolName,
		Description: askDescription,
	}, t.handleAsk)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        documentStatusToolName,
		Description: documentStatusDescription,
	}, t.handleDocumentStatus)

	return mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server {
			return mcpServer
		},
		&mcp.StreamableHTTPOptions{
			Stateless: true,
		},
	), nil
}
