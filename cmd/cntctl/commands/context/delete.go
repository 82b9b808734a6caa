package context

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/cntfs/cmd/cntctl/cmdutil"
	"github.com/marmos91/cntfs/internal/cli/credentials"
)

var deleteForce bool

var deleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a context",
	Long: `Delete a saved context. Deleting the current context leaves none
current until 'cntctl context use' or 'cntctl login'.`,
	Args: cobra.ExactArgs(1),
	RunE: runDelete,
}

func init() {
	deleteCmd.Flags().BoolVarP(&deleteForce, "force", "f", false, "Skip confirmation prompt")
}

func runDelete(cmd *cobra.Command, args []string) error {
	store, err := cmdutil.CredentialStore()
	if err != nil {
		return err
	}
	name := args[0]
	if _, err := store.GetContext(name); err != nil {
		return fmt.Errorf("context %q not found", name)
	}

	return cmdutil.RunDeleteWithConfirmation(cmd.OutOrStdout(), "context", name, deleteForce, func() error {
		if err := store.DeleteContext(name); err != nil && !errors.Is(err, credentials.ErrContextNotFound) {
			return err
		}
		return nil
	})
}
