package user

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/cntfs/internal/cli/prompt"
	"github.com/marmos91/cntfs/pkg/store"
)

var deleteForce bool

var deleteCmd = &cobra.Command{
	Use:   "delete <username>",
	Short: "Delete a user",
	Long: `Delete a user from the credential store.

Files the user uploaded stay in the sandbox and keep their owner, so a user
registering again under the same name gets them back.
You will be prompted for confirmation unless --force is specified.

Examples:
  # Delete user with confirmation
  cntfs user delete alice

  # Delete user without confirmation
  cntfs user delete alice --force`,
	Args: cobra.ExactArgs(1),
	RunE: runDelete,
}

func init() {
	deleteCmd.Flags().BoolVarP(&deleteForce, "force", "f", false, "Skip confirmation prompt")
}

func runDelete(cmd *cobra.Command, args []string) error {
	username := args[0]

	ok, err := prompt.ConfirmWithForce(fmt.Sprintf("Delete user %q", username), deleteForce)
	if err != nil {
		if prompt.IsAborted(err) {
			return nil
		}
		return err
	}
	if !ok {
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
		return nil
	}

	st, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	if err := st.DeleteUser(cmd.Context(), username); err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return fmt.Errorf("user %q not found", username)
		}
		return fmt.Errorf("failed to delete user: %w", err)
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "User %q deleted\n", username)
	return nil
}
