package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/cntfs/cmd/cntctl/cmdutil"
	"github.com/marmos91/cntfs/internal/cli/output"
	"github.com/marmos91/cntfs/pkg/client"
	"github.com/marmos91/cntfs/pkg/protocol"
)

var lsTree bool

var lsCmd = &cobra.Command{
	Use:   "ls [path]",
	Short: "List files in the sandbox",
	Long: `List the sandbox tree, or the subtree under path.

Examples:
  # List everything
  cntctl ls

  # List one directory as a tree
  cntctl ls docs --tree

  # Output as JSON
  cntctl ls -o json`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runList(cmd, args, lsTree)
	},
}

var treeCmd = &cobra.Command{
	Use:   "tree [path]",
	Short: "Draw the sandbox as a tree",
	Long:  `Draw the sandbox tree, or the subtree under path, like tree(1).`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runList(cmd, args, true)
	},
}

func init() {
	lsCmd.Flags().BoolVar(&lsTree, "tree", false, "Draw as a tree")
}

func runList(cmd *cobra.Command, args []string, asTree bool) error {
	var (
		root *protocol.DirectoryInfo
		cwd  string
	)
	err := cmdutil.Session(cmd.Context(), func(c *client.Client) error {
		var err error
		root, cwd, err = c.List(cmd.Context())
		return err
	})
	if err != nil {
		return err
	}

	if len(args) > 0 {
		if root, err = subtree(root, args[0]); err != nil {
			return err
		}
	}

	listing := output.Listing{Root: root, CurrentDir: cwd}
	format, err := cmdutil.GetOutputFormatParsed()
	if err != nil {
		return err
	}
	if asTree && format == output.FormatTable {
		return output.PrintTree(cmd.OutOrStdout(), root)
	}
	return cmdutil.PrintOutput(cmd.OutOrStdout(), listing, len(root.Contents) == 0, "No files found.", listing)
}

// subtree narrows a listing to the directory at path.
func subtree(root *protocol.DirectoryInfo, path string) (*protocol.DirectoryInfo, error) {
	switch e := root.Lookup(path).(type) {
	case *protocol.DirectoryInfo:
		return e, nil
	case *protocol.FileInfo:
		return nil, fmt.Errorf("%s is a file; use 'cntctl get' to fetch it", path)
	default:
		return nil, fmt.Errorf("%s: no such directory", path)
	}
}
