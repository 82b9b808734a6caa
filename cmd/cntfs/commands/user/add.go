package user

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/marmos91/cntfs/internal/cli/prompt"
	"github.com/marmos91/cntfs/pkg/auth"
	"github.com/marmos91/cntfs/pkg/client"
	"github.com/marmos91/cntfs/pkg/store"
)

// PasswordEnv supplies the password of 'user add' without a prompt.
const PasswordEnv = "CNTFS_USER_PASSWORD"

var addCmd = &cobra.Command{
	Use:   "add [username]",
	Short: "Create a user",
	Long: `Create a user before their first connect.

The password is read from $` + PasswordEnv + ` when set, otherwise prompted
for twice. It is stored the way the server stores self-registered users, so
the user logs in with it from any client.

Examples:
  # Create a user interactively
  cntfs user add alice

  # Create a user from a script
  ` + PasswordEnv + `=secret cntfs user add alice`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAdd,
}

func runAdd(cmd *cobra.Command, args []string) error {
	var username string
	if len(args) == 1 {
		username = args[0]
		if err := prompt.ValidateUsername(username); err != nil {
			return err
		}
	} else {
		var err error
		if username, err = prompt.Username(""); err != nil {
			return err
		}
	}

	password, err := readPassword()
	if err != nil {
		return err
	}

	st, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	if err := auth.New(st).Register(cmd.Context(), username, client.HashPassword(password)); err != nil {
		if errors.Is(err, store.ErrDuplicateUser) {
			return fmt.Errorf("user %q already exists", username)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "User %q created\n", username)
	return nil
}

func readPassword() (string, error) {
	if _, ok := os.LookupEnv(PasswordEnv); ok {
		return prompt.PasswordFromEnv(PasswordEnv, "Password")
	}
	return prompt.NewPassword()
}
