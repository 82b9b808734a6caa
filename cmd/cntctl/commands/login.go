package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/marmos91/cntfs/cmd/cntctl/cmdutil"
	"github.com/marmos91/cntfs/internal/cli/credentials"
	"github.com/marmos91/cntfs/internal/cli/prompt"
)

var loginName string

var loginCmd = &cobra.Command{
	Use:   "login [server]",
	Short: "Log in to a cntfs server",
	Long: `Authenticate against a cntfs server and save it as the current context.

The server defaults to --server, then localhost, on port 61324 unless one
is given. The password is read from $CNTCTL_PASSWORD or prompted for. Only
its SHA-256 digest is stored.

The first login with an unknown username registers it on the server.

Examples:
  # Log in to a local server
  cntctl login

  # Log in to a remote server as alice, with its HTTP API
  cntctl login files.example.com --user alice --api-url http://files.example.com:8080

  # Save the context under a custom name
  cntctl login files.example.com:7000 --name staging`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the saved password of the current context",
	Long: `Remove the stored password digest of the current context.

The server address and username are kept, so the next command prompts for
the password only.`,
	Args: cobra.NoArgs,
	RunE: runLogout,
}

func init() {
	loginCmd.Flags().StringVar(&loginName, "name", "", "Context name (default: server host)")
}

func runLogin(cmd *cobra.Command, args []string) error {
	server := cmdutil.Flags.Server
	if len(args) > 0 {
		server = args[0]
	}
	server = cmdutil.NormalizeServer(server)

	username := cmdutil.Flags.User
	if username == "" {
		var err error
		if username, err = prompt.Username(""); err != nil {
			return cmdutil.HandleAbort(err)
		}
	}
	hash, err := cmdutil.ReadPasswordHash()
	if err != nil {
		return cmdutil.HandleAbort(err)
	}

	c, err := cmdutil.Dial(cmd.Context(), server, username, hash)
	if err != nil {
		return err
	}
	_ = c.Close(cmd.Context())

	store, err := cmdutil.CredentialStore()
	if err != nil {
		return err
	}
	name := cmdutil.EmptyOr(loginName, credentials.ContextName(server))
	saved := &credentials.Context{
		Server:       server,
		APIURL:       cmdutil.Flags.APIURL,
		Username:     username,
		PasswordHash: hash,
		LoggedInAt:   time.Now().UTC(),
	}
	if err := store.SetContext(name, saved); err != nil {
		return fmt.Errorf("failed to save context: %w", err)
	}
	if err := store.UseContext(name); err != nil {
		return fmt.Errorf("failed to switch context: %w", err)
	}

	cmdutil.PrintSuccess(cmd.OutOrStdout(), fmt.Sprintf("Logged in to %s as %s (context %q)", server, username, name))
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	store, err := cmdutil.CredentialStore()
	if err != nil {
		return err
	}
	name := store.GetCurrentContextName()
	if err := store.ClearCurrentContext(); err != nil {
		return err
	}
	cmdutil.PrintSuccess(cmd.OutOrStdout(), fmt.Sprintf("Logged out of context %q", name))
	return nil
}
