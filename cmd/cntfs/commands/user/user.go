// Package user implements local user administration for the cntfs server.
package user

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/cntfs/pkg/config"
	"github.com/marmos91/cntfs/pkg/store"
)

// Cmd is the parent command for user management.
var Cmd = &cobra.Command{
	Use:   "user",
	Short: "User management",
	Long: `Manage the accounts in the server's credential store.

Clients normally register themselves on their first connect. These commands
work on the store directly, so with the badger backend the server must be
stopped first.

Examples:
  # List all users
  cntfs user list

  # Create a user ahead of their first connect
  cntfs user add alice

  # Delete a user
  cntfs user delete alice`,
}

func init() {
	Cmd.AddCommand(listCmd)
	Cmd.AddCommand(addCmd)
	Cmd.AddCommand(deleteCmd)
}

// openStore opens the credential store named by the configuration selected
// with --config.
func openStore(cmd *cobra.Command) (store.Store, error) {
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return config.OpenStore(cfg.Store)
}
