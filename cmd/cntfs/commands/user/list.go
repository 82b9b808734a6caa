package user

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/marmos91/cntfs/internal/cli/output"
	"github.com/marmos91/cntfs/pkg/store"
)

var listOutput string

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all users",
	Long: `List every account in the credential store.

Examples:
  # List users as table
  cntfs user list

  # List as JSON
  cntfs user list -o json`,
	RunE: runList,
}

func init() {
	listCmd.Flags().StringVarP(&listOutput, "output", "o", "table", "Output format (table|json|yaml)")
}

// User is the listed form of a credential record. The verifier is never
// shown.
type User struct {
	Username  string    `json:"username" yaml:"username"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// UserList is a list of users for table rendering.
type UserList []User

// Headers implements TableRenderer.
func (ul UserList) Headers() []string {
	return []string{"USERNAME", "CREATED"}
}

// Rows implements TableRenderer.
func (ul UserList) Rows() [][]string {
	rows := make([][]string, 0, len(ul))
	for _, u := range ul {
		created := "-"
		if !u.CreatedAt.IsZero() {
			created = humanize.Time(u.CreatedAt)
		}
		rows = append(rows, []string{u.Username, created})
	}
	return rows
}

func toUserList(creds []*store.Credentials) UserList {
	users := make(UserList, 0, len(creds))
	for _, c := range creds {
		users = append(users, User{Username: c.Username, CreatedAt: c.CreatedAt})
	}
	return users
}

func runList(cmd *cobra.Command, args []string) error {
	format, err := output.ParseFormat(listOutput)
	if err != nil {
		return err
	}

	st, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	creds, err := st.ListUsers(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list users: %w", err)
	}

	p := output.NewPrinter(cmd.OutOrStdout(), format, false)
	if len(creds) == 0 && !p.Structured() {
		p.Println("No users found.")
		return nil
	}
	return p.Print(toUserList(creds))
}
