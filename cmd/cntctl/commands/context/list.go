package context

import (
	"github.com/spf13/cobra"

	"github.com/marmos91/cntfs/cmd/cntctl/cmdutil"
	"github.com/marmos91/cntfs/internal/cli/credentials"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List all saved contexts",
	Args:    cobra.NoArgs,
	RunE:    runList,
}

// ContextInfo is one row of the context listing.
type ContextInfo struct {
	Name     string `json:"name" yaml:"name"`
	Current  bool   `json:"current" yaml:"current"`
	Server   string `json:"server" yaml:"server"`
	APIURL   string `json:"api_url,omitempty" yaml:"api_url,omitempty"`
	Username string `json:"username,omitempty" yaml:"username,omitempty"`
	LoggedIn bool   `json:"logged_in" yaml:"logged_in"`
}

// ContextList renders contexts as a table.
type ContextList []ContextInfo

func (cl ContextList) Headers() []string {
	return []string{"CURRENT", "NAME", "SERVER", "USER", "LOGGED IN"}
}

func (cl ContextList) Rows() [][]string {
	rows := make([][]string, 0, len(cl))
	for _, c := range cl {
		marker := ""
		if c.Current {
			marker = "*"
		}
		rows = append(rows, []string{marker, c.Name, c.Server, cmdutil.EmptyOr(c.Username, "-"), boolToYesNo(c.LoggedIn)})
	}
	return rows
}

func runList(cmd *cobra.Command, args []string) error {
	store, err := cmdutil.CredentialStore()
	if err != nil {
		return err
	}

	current := store.GetCurrentContextName()
	list := make(ContextList, 0)
	for _, name := range store.ListContexts() {
		ctx, err := store.GetContext(name)
		if err != nil {
			continue
		}
		list = append(list, newContextInfo(name, name == current, ctx))
	}

	return cmdutil.PrintOutput(cmd.OutOrStdout(), list, len(list) == 0,
		"No contexts saved. Run 'cntctl login' to create one.", list)
}

func newContextInfo(name string, current bool, ctx *credentials.Context) ContextInfo {
	return ContextInfo{
		Name:     name,
		Current:  current,
		Server:   ctx.Server,
		APIURL:   ctx.APIURL,
		Username: ctx.Username,
		LoggedIn: ctx.HasCredentials(),
	}
}

func boolToYesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
