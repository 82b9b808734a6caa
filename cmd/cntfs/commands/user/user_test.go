package user

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := fmt.Sprintf(`server:
  root: %s
store:
  type: sqlite
  sqlite:
    path: %s
`, filepath.Join(dir, "data"), filepath.Join(dir, "cntfs.db"))
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))
	return path
}

// run executes the user command tree under a root carrying --config.
func run(t *testing.T, configPath string, args ...string) (string, error) {
	t.Helper()
	root := &cobra.Command{Use: "cntfs", SilenceUsage: true, SilenceErrors: true}
	root.PersistentFlags().String("config", "", "")
	root.AddCommand(Cmd)

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs(append([]string{"--config", configPath, "user"}, args...))

	// Flag values persist between executions of the package-level commands.
	listOutput = "table"
	deleteForce = false

	err := root.Execute()
	return out.String(), err
}

func TestUserLifecycle(t *testing.T) {
	cfg := writeConfig(t)
	t.Setenv(PasswordEnv, "secret")

	out, err := run(t, cfg, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No users found.")

	out, err = run(t, cfg, "add", "alice")
	require.NoError(t, err)
	assert.Contains(t, out, `User "alice" created`)

	_, err = run(t, cfg, "add", "alice")
	assert.ErrorContains(t, err, "already exists")

	out, err = run(t, cfg, "list", "-o", "json")
	require.NoError(t, err)
	var users []User
	require.NoError(t, json.Unmarshal([]byte(out), &users))
	require.Len(t, users, 1)
	assert.Equal(t, "alice", users[0].Username)
	assert.False(t, users[0].CreatedAt.IsZero())

	out, err = run(t, cfg, "delete", "alice", "--force")
	require.NoError(t, err)
	assert.Contains(t, out, `User "alice" deleted`)

	_, err = run(t, cfg, "delete", "alice", "--force")
	assert.ErrorContains(t, err, "not found")
}

func TestAddRejectsInvalidUsername(t *testing.T) {
	cfg := writeConfig(t)
	t.Setenv(PasswordEnv, "secret")

	_, err := run(t, cfg, "add", "bad/name")
	assert.Error(t, err)
}

func TestAddRejectsEmptyPassword(t *testing.T) {
	cfg := writeConfig(t)
	t.Setenv(PasswordEnv, "")

	_, err := run(t, cfg, "add", "alice")
	assert.Error(t, err)
}

func TestUserListRows(t *testing.T) {
	rows := UserList{{Username: "bob"}}.Rows()
	assert.Equal(t, [][]string{{"bob", "-"}}, rows)
}
