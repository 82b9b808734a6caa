package context

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/cntfs/cmd/cntctl/cmdutil"
	"github.com/marmos91/cntfs/internal/cli/credentials"
	"github.com/marmos91/cntfs/internal/cli/prompt"
)

var useCmd = &cobra.Command{
	Use:   "use [name]",
	Short: "Switch to a different context",
	Long: `Make a saved context current. Without a name, pick one interactively.

Examples:
  cntctl context use staging
  cntctl context use`,
	Args: cobra.MaximumNArgs(1),
	RunE: runUse,
}

func runUse(cmd *cobra.Command, args []string) error {
	store, err := cmdutil.CredentialStore()
	if err != nil {
		return err
	}

	var name string
	if len(args) > 0 {
		name = args[0]
	} else {
		names := store.ListContexts()
		if len(names) == 0 {
			return errors.New("no contexts saved - run 'cntctl login' first")
		}
		options := make([]prompt.SelectOption, 0, len(names))
		for _, n := range names {
			ctx, _ := store.GetContext(n)
			options = append(options, prompt.SelectOption{Label: n, Value: n, Description: ctx.Server})
		}
		if name, err = prompt.Select("Select context", options, store.GetCurrentContextName()); err != nil {
			return cmdutil.HandleAbort(err)
		}
	}

	if err := store.UseContext(name); err != nil {
		if errors.Is(err, credentials.ErrContextNotFound) {
			return fmt.Errorf("context %q not found", name)
		}
		return err
	}
	cmdutil.PrintSuccess(cmd.OutOrStdout(), fmt.Sprintf("Switched to context %q", name))
	return nil
}
