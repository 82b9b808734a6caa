package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/cntfs/cmd/cntctl/cmdutil"
	"github.com/marmos91/cntfs/pkg/client"
)

var rmForce bool

var rmCmd = &cobra.Command{
	Use:   "rm <path>",
	Short: "Delete a file you own",
	Long: `Delete a file from the sandbox. Only its owner may delete it.

Examples:
  cntctl rm notes.txt
  cntctl rm docs/old.pdf --force`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmdutil.RunDeleteWithConfirmation(cmd.OutOrStdout(), "file", args[0], rmForce, func() error {
			return cmdutil.Session(cmd.Context(), func(c *client.Client) error {
				return c.Delete(cmd.Context(), args[0])
			})
		})
	},
}

var mkdirCmd = &cobra.Command{
	Use:   "mkdir <path>",
	Short: "Create a directory",
	Long:  `Create a directory in the sandbox, with any missing parents.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		err := cmdutil.Session(cmd.Context(), func(c *client.Client) error {
			return c.Mkdir(cmd.Context(), args[0])
		})
		if err != nil {
			return err
		}
		cmdutil.PrintSuccess(cmd.OutOrStdout(), fmt.Sprintf("Directory %q created", args[0]))
		return nil
	},
}

var rmdirCmd = &cobra.Command{
	Use:   "rmdir <path>",
	Short: "Remove a directory",
	Long:  `Remove a directory from the sandbox. It must be empty.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		err := cmdutil.Session(cmd.Context(), func(c *client.Client) error {
			return c.Rmdir(cmd.Context(), args[0])
		})
		if err != nil {
			return err
		}
		cmdutil.PrintSuccess(cmd.OutOrStdout(), fmt.Sprintf("Directory %q removed", args[0]))
		return nil
	},
}

func init() {
	rmCmd.Flags().BoolVarP(&rmForce, "force", "f", false, "Skip confirmation prompt")
}
