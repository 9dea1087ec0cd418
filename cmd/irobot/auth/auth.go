// Package authcmder provides the auth commands for logging in and out of
// an IroBot backend and storing the resulting tokens.
package authcmder

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/irobothq/irobot/pkg/api"
	"github.com/irobothq/irobot/pkg/cliui"
	"github.com/irobothq/irobot/pkg/config"
	"github.com/irobothq/irobot/pkg/credentials"
	"github.com/irobothq/irobot/pkg/logger"
)

const authLongDesc string = `Log in to an IroBot backend and store the access tokens.

Tokens are stored per profile in credentials.toml in the .irobot/
directory (file mode 0600). Every other command resolves its token from
the default profile, or from the IROBOT_TOKEN environment variable when
set.

Examples:
  irobot auth login me@example.com          Prompt for a password
  echo $PASS | irobot auth login me@example.com
  irobot auth login me@example.com --profile staging
  irobot auth status                        Show who you are logged in as
  irobot auth logout                        Drop the stored tokens`

const authShortDesc string = "Log in and out of an IroBot backend"

type authCommander struct {
	server  string
	profile string
	debug   bool
}

func NewAuthCmd() *cobra.Command {
	cmder := &authCommander{}

	cmd := &cobra.Command{
		Use:   "auth",
		Short: authShortDesc,
		Long:  authLongDesc,
	}

	cmd.PersistentFlags().StringVar(&cmder.profile, "profile", credentials.DefaultProfile, "Credentials profile to use")
	cmd.AddCommand(cmder.newLoginCmd())
	cmd.AddCommand(cmder.newLogoutCmd())
	cmd.AddCommand(cmder.newStatusCmd())

	return cmd
}

func (c *authCommander) preRun(cmd *cobra.Command) error {
	configDir, _ := cmd.Flags().GetString("config-dir")
	c.debug, _ = cmd.Flags().GetBool("debug")

	v, err := config.InitViper(configDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	config.BindRegisteredFlags(v, cmd, config.Flags, []string{config.FlagServer})
	c.server = v.GetString("server.base_url")

	return nil
}

func (c *authCommander) newLoginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login <email>",
		Short: "Log in and store tokens",
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.preRun(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			return c.runLogin(cmd.Context(), args[0], configDir)
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagServer, &c.server)

	return cmd
}

func (c *authCommander) newLogoutCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Drop stored tokens",
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.preRun(cmd)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			return c.runLogout(cmd.Context(), configDir)
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagServer, &c.server)

	return cmd
}

func (c *authCommander) newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the logged-in account",
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.preRun(cmd)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			return c.runStatus(cmd.Context(), configDir)
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagServer, &c.server)

	return cmd
}

func (c *authCommander) runLogin(ctx context.Context, email, configDir string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return errors.New("email cannot be empty")
	}

	password, err := readPassword(email)
	if err != nil {
		return err
	}
	if password == "" {
		return errors.New("password cannot be empty")
	}

	log := logger.New(logger.WithDebug(c.debug), logger.WithPretty(true))
	client := api.NewClient(c.server, api.WithLogger(log))

	tokens, err := client.Login(ctx, email, password)
	if err != nil {
		return fmt.Errorf("logging in: %w", err)
	}

	mgr, err := credentials.NewManager(configDir)
	if err != nil {
		return fmt.Errorf("loading credentials: %w", err)
	}

	if err := mgr.SetProfile(c.profile, credentials.Profile{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
	}); err != nil {
		return err
	}

	fmt.Printf("\n  %s Logged in as %s %s\n\n",
		cliui.SuccessMark,
		cliui.NameStyle.Render(email),
		cliui.DimStyle.Render("(profile "+c.profile+")"),
	)

	return nil
}

func (c *authCommander) runLogout(ctx context.Context, configDir string) error {
	mgr, err := credentials.NewManager(configDir)
	if err != nil {
		return fmt.Errorf("loading credentials: %w", err)
	}

	// Revoke server-side when a token is still around. A dead backend
	// must not keep us logged in locally, so failures only warn.
	src := mgr.Source(c.profile)
	if _, tokenErr := src.Token(ctx); tokenErr == nil {
		client := api.NewClient(c.server, api.WithTokenSource(src))
		if err := client.Logout(ctx); err != nil {
			fmt.Printf("\n  %s Could not revoke the session server-side: %v\n",
				cliui.WarnStyle.Render("!"), err)
		}
	}

	if err := mgr.RemoveProfile(c.profile); err != nil {
		return err
	}

	fmt.Printf("\n  %s Logged out %s\n\n",
		cliui.SuccessMark,
		cliui.DimStyle.Render("(profile "+c.profile+")"),
	)

	return nil
}

func (c *authCommander) runStatus(ctx context.Context, configDir string) error {
	mgr, err := credentials.NewManager(configDir)
	if err != nil {
		return fmt.Errorf("loading credentials: %w", err)
	}

	src := credentials.DefaultSource(mgr)
	if c.profile != credentials.DefaultProfile {
		src = mgr.Source(c.profile)
	}

	if _, err := src.Token(ctx); err != nil {
		if errors.Is(err, credentials.ErrNoToken) {
			fmt.Printf("\n  %s Not logged in. Use 'irobot auth login <email>'.\n\n",
				cliui.DimStyle.Render("●"))
			return nil
		}
		return err
	}

	client := api.NewClient(c.server, api.WithTokenSource(src))
	user, err := client.Me(ctx)
	if err != nil {
		if errors.Is(err, api.ErrUnauthorized) {
			fmt.Printf("\n  %s Stored token was rejected. Log in again.\n\n", cliui.FailMark)
			return nil
		}
		return fmt.Errorf("checking session: %w", err)
	}

	fmt.Printf("\n  %s Logged in as %s %s\n",
		cliui.SuccessMark,
		cliui.NameStyle.Render(user.Email),
		cliui.DimStyle.Render("(role "+user.Role+")"),
	)
	fmt.Printf("  %s %s\n\n",
		cliui.KeyStyle.Render("Server:"),
		cliui.ValueStyle.Render(c.server),
	)

	return nil
}

// readPassword reads the password without echo from a terminal, or from
// stdin when piped.
func readPassword(email string) (string, error) {
	if term.IsTerminal(int(os.Stdin.Fd())) {
		fmt.Printf("\n  Password for %s: ", cliui.NameStyle.Render(email))
		raw, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Println()
		if err != nil {
			return "", fmt.Errorf("reading password: %w", err)
		}
		return strings.TrimSpace(string(raw)), nil
	}

	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("reading password from stdin: %w", err)
	}
	return strings.TrimSpace(line), nil
}
