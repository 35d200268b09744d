package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/matzehuels/shelfmark/internal/config"
	"github.com/matzehuels/shelfmark/pkg/dataset"
	"github.com/matzehuels/shelfmark/pkg/integrations/hfhub"
	"github.com/matzehuels/shelfmark/pkg/session"
)

// remoteCommand creates the shared store command with subcommands.
func (c *CLI) remoteCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remote",
		Short: "Shared snapshot store commands",
		Long: `Inspect the shared snapshot store and manage hub credentials.

Reading public snapshots needs no credentials. Publishing to a hub dataset
repository needs an access token with write permission: HF_TOKEN, the token
saved by 'shelfmark remote login', or an interactive prompt, in that order.
Saved tokens live in ~/.config/shelfmark/sessions/, one per hub endpoint.`,
	}

	cmd.AddCommand(c.remoteLoginCommand())
	cmd.AddCommand(c.remoteLogoutCommand())
	cmd.AddCommand(c.remoteStatusCommand())

	return cmd
}

// remoteLoginCommand creates the login subcommand.
func (c *CLI) remoteLoginCommand() *cobra.Command {
	var fromStdin bool

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Save a hub access token",
		Long: `Verify a hub access token and save it for later publishes.

The token is read from a hidden prompt, or from the first line of stdin with
--token-stdin.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			endpoint := c.cfg.Remote.Hub.Endpoint
			ring, err := session.Open("")
			if err != nil {
				return fmt.Errorf("open session store: %w", err)
			}
			if existing, _ := ring.Load(endpoint); existing.UserName() != "" {
				printInfo("Already logged in as %s", existing.UserName())
				printDetail("Run 'shelfmark remote logout' first to switch tokens")
				return nil
			}

			var token string
			if fromStdin {
				token, err = readToken(cmd.InOrStdin())
			} else {
				token, err = promptToken(os.Stdin, os.Stderr)(ctx)
			}
			if errors.Is(err, hfhub.ErrNoToken) {
				return fmt.Errorf("no token given (use --token-stdin when not on a terminal)")
			}
			if err != nil {
				return err
			}

			user, err := c.verifyToken(ctx, token)
			if err != nil {
				return err
			}
			sess := session.New(endpoint, token, user, session.DefaultTTL)
			if err := ring.Save(sess); err != nil {
				return fmt.Errorf("save session: %w", err)
			}

			printSuccess("Logged in as %s", user.Name)
			printDetail("Session expires %s", sess.ExpiresAt.Format("Jan 2, 2006"))
			printNextStep("Check the shared store", "shelfmark remote status")
			return nil
		},
	}

	cmd.Flags().BoolVar(&fromStdin, "token-stdin", false, "read the token from stdin")
	return cmd
}

// remoteLogoutCommand creates the logout subcommand.
func (c *CLI) remoteLogoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the saved hub token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ring, err := session.Open("")
			if err != nil {
				return fmt.Errorf("open session store: %w", err)
			}
			if err := ring.Delete(c.cfg.Remote.Hub.Endpoint); err != nil {
				return fmt.Errorf("delete session: %w", err)
			}
			printSuccess("Logged out")
			return nil
		},
	}
}

// remoteStatusCommand creates the status subcommand.
func (c *CLI) remoteStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the shared store and which snapshots it holds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			logger := loggerFromContext(ctx)

			printKeyValue("Backend", StyleHighlight.Render(c.cfg.Remote.Backend))
			if loc := remoteLocation(c.cfg); loc != "" {
				printKeyValue("Location", loc)
			}
			if c.cfg.Remote.Backend == config.BackendHub {
				c.printHubSession()
			}

			a, err := c.newApp(ctx, c.cfg)
			if err != nil {
				return err
			}
			defer func() {
				if err := a.Close(); err != nil {
					logger.Warn("close shared store", "err", err)
				}
			}()

			printNewline()
			for _, kind := range dataset.Kinds() {
				ok, err := a.remote.Exists(ctx, kind.Filename())
				switch {
				case err != nil:
					printKeyValue(kind.Filename(), StyleWarning.Render("unknown: "+err.Error()))
				case ok:
					printKeyValue(kind.Filename(), StyleSuccess.Render("present"))
				default:
					printKeyValue(kind.Filename(), StyleDim.Render("missing"))
				}
			}
			return nil
		},
	}
}

// verifyToken checks token against the configured hub.
func (c *CLI) verifyToken(ctx context.Context, token string) (*hfhub.User, error) {
	hub, err := newHub(c.cfg, c.Logger)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	spinner := newSpinnerWithContext(ctx, "Verifying token...")
	spinner.Start()
	user, err := hub.Whoami(ctx, token)
	if err != nil {
		spinner.StopWithError("Token rejected")
		return nil, fmt.Errorf("verify token: %w", err)
	}
	spinner.Stop()
	return user, nil
}

func (c *CLI) printHubSession() {
	if c.cfg.Remote.Hub.Token != "" {
		printKeyValue("Token", "from configuration (HF_TOKEN)")
		return
	}
	ring, err := session.Open("")
	if err != nil {
		return
	}
	sess, err := ring.Load(c.cfg.Remote.Hub.Endpoint)
	if err != nil || sess == nil {
		printKeyValue("Token", StyleDim.Render("none (read-only)"))
		return
	}
	printKeyValue("Logged in", sess.UserName())
	printKeyValue("Expires", sess.ExpiresAt.Format("Jan 2, 2006"))
}

// remoteLocation describes where the configured backend keeps snapshots,
// without credentials.
func remoteLocation(cfg config.Config) string {
	rc := cfg.Remote
	switch rc.Backend {
	case config.BackendHub:
		return fmt.Sprintf("%s/datasets/%s@%s", rc.Hub.Endpoint, rc.Hub.Repo, rc.Hub.Revision)
	case config.BackendS3:
		loc := "s3://" + rc.S3.Bucket + "/" + rc.S3.Prefix
		if rc.S3.Endpoint != "" {
			loc += " (" + rc.S3.Endpoint + ")"
		}
		return loc
	case config.BackendMongo:
		return rc.Mongo.Database + "." + rc.Mongo.Collection
	case config.BackendDir:
		return rc.Dir
	}
	return ""
}
