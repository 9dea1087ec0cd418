// Package servecmder provides the serve command for running the demo event
// server, with the MCP surface mounted alongside it.
package servecmder

import (
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/adaptor/v2"
	"github.com/spf13/cobra"

	mcpcmder "github.com/irobothq/irobot/cmd/irobot/mcp"
	"github.com/irobothq/irobot/pkg/cliui"
	"github.com/irobothq/irobot/pkg/config"
	"github.com/irobothq/irobot/pkg/credentials"
	"github.com/irobothq/irobot/demo"
	"github.com/irobothq/irobot/pkg/logger"
)

const serveLongDesc string = `Run the bundled demo event server.

The demo server implements the IroBot wire protocol with scripted
answers: the chat stream, the notification, dashboard and document
status push channels, and the REST stubs the client needs. It exists
for development and demos, not as a real backend.

Unless --no-mcp is given, the MCP tool surface is mounted at /mcp on
the same listener, pointed back at this server.

Examples:
  irobot serve
  irobot serve --listen :9000
  irobot serve --no-mcp`

const serveShortDesc string = "Run the demo event server"

type serveCommander struct {
	listen    string
	noMCP     bool
	heartbeat uint
	debug     bool
}

func NewServeCmd() *cobra.Command {
	cmder := &serveCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.preRun(cmd)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			return cmder.run(cmd, configDir)
		},
	}

	cmd.Flags().BoolVar(&cmder.noMCP, "no-mcp", false, "Do not mount the MCP tool surface")
	config.AddStringFlag(cmd, config.Flags, config.FlagDemoListen, &cmder.listen)
	config.AddUintFlag(cmd, config.Flags, config.FlagHeartbeat, &cmder.heartbeat)

	return cmd
}

func (c *serveCommander) preRun(cmd *cobra.Command) error {
	configDir, _ := cmd.Flags().GetString("config-dir")
	c.debug, _ = cmd.Flags().GetBool("debug")

	v, err := config.InitViper(configDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	config.BindRegisteredFlags(v, cmd, config.Flags, []string{
		config.FlagDemoListen,
		config.FlagHeartbeat,
	})

	c.listen = v.GetString("demo.listen")
	c.heartbeat = v.GetUint("stream.heartbeat_seconds")

	return nil
}

func (c *serveCommander) run(cmd *cobra.Command, configDir string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log := logger.New(logger.WithDebug(c.debug), logger.WithPretty(true))

	server, err := demo.New(demo.Config{
		ListenAddr: c.listen,
		Logger:     log,
	})
	if err != nil {
		return fmt.Errorf("building demo server: %w", err)
	}

	baseURL := "http://" + c.listen
	if strings.HasPrefix(c.listen, ":") {
		baseURL = "http://localhost" + c.listen
	}

	if !c.noMCP {
		// The demo server accepts any non-empty token.
		handler, err := mcpcmder.NewHandler(mcpcmder.Options{
			BaseURL:          baseURL,
			TokenSource:      credentials.StaticSource("demo-access-token"),
			HeartbeatTimeout: time.Duration(c.heartbeat) * time.Second,
			Logger:           log,
		})
		if err != nil {
			return fmt.Errorf("building mcp handler: %w", err)
		}
		server.App().All("/mcp", adaptor.HTTPHandler(handler))
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Run()
	}()

	fmt.Printf("\n  %s Demo server listening on %s\n",
		cliui.SuccessMark, cliui.KeyStyle.Render(c.listen))
	if !c.noMCP {
		fmt.Printf("  %s MCP tools mounted at %s\n",
			cliui.SuccessMark, cliui.KeyStyle.Render("/mcp"))
	}
	fmt.Println()

	select {
	case <-ctx.Done():
		return server.Close()
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("demo server: %w", err)
		}
		return nil
	}
}
