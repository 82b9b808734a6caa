package context

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/marmos91/cntfs/cmd/cntctl/cmdutil"
	"github.com/marmos91/cntfs/internal/cli/credentials"
	"github.com/marmos91/cntfs/internal/cli/output"
)

var currentCmd = &cobra.Command{
	Use:   "current",
	Short: "Show current context",
	Args:  cobra.NoArgs,
	RunE:  runCurrent,
}

func runCurrent(cmd *cobra.Command, args []string) error {
	store, err := cmdutil.CredentialStore()
	if err != nil {
		return err
	}
	ctx, err := store.GetCurrentContext()
	if err != nil {
		if errors.Is(err, credentials.ErrNoCurrentContext) {
			return credentials.ErrNotLoggedIn
		}
		return err
	}
	info := newContextInfo(store.GetCurrentContextName(), true, ctx)

	p, err := cmdutil.Printer(cmd.OutOrStdout())
	if err != nil {
		return err
	}
	if p.Structured() {
		return p.Print(info)
	}
	return output.SimpleTable(p.Writer(), [][2]string{
		{"Name", info.Name},
		{"Server", info.Server},
		{"API", cmdutil.EmptyOr(info.APIURL, "-")},
		{"User", cmdutil.EmptyOr(info.Username, "-")},
		{"Logged in", boolToYesNo(info.LoggedIn)},
	})
}
