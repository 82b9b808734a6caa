// Package cmdutil holds the pieces every cntctl command shares: global
// flags, connecting with the saved context, and output helpers.
package cmdutil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/marmos91/cntfs/internal/cli/credentials"
	"github.com/marmos91/cntfs/internal/cli/output"
	"github.com/marmos91/cntfs/internal/cli/prompt"
	"github.com/marmos91/cntfs/pkg/adapter/cnt"
	"github.com/marmos91/cntfs/pkg/apiclient"
	"github.com/marmos91/cntfs/pkg/client"
)

// PasswordEnv supplies the password without a prompt.
const PasswordEnv = "CNTCTL_PASSWORD"

// GlobalFlags holds the root command's persistent flags.
type GlobalFlags struct {
	Server  string
	User    string
	APIURL  string
	Output  string
	NoColor bool
	Timeout time.Duration
}

// Flags is synced from the root command before every subcommand runs.
var Flags = &GlobalFlags{}

// CredentialStore opens the saved contexts.
func CredentialStore() (*credentials.Store, error) {
	store, err := credentials.NewStore()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize credential store: %w", err)
	}
	return store, nil
}

// NormalizeServer adds the default port to a bare host.
func NormalizeServer(addr string) string {
	if addr == "" {
		addr = "localhost"
	}
	if _, _, err := net.SplitHostPort(addr); err == nil {
		return addr
	}
	return net.JoinHostPort(addr, strconv.Itoa(cnt.DefaultPort))
}

// ResolveContext returns the current context with --server, --user and
// --api-url applied. Naming another user drops the saved password digest.
func ResolveContext() (*credentials.Context, error) {
	var resolved credentials.Context

	store, err := CredentialStore()
	if err != nil {
		return nil, err
	}
	if saved, err := store.GetCurrentContext(); err == nil {
		resolved = *saved
	} else if Flags.Server == "" {
		return nil, credentials.ErrNotLoggedIn
	}

	if Flags.Server != "" {
		server := NormalizeServer(Flags.Server)
		if server != resolved.Server {
			resolved = credentials.Context{Server: server, Username: resolved.Username}
		}
	}
	if Flags.User != "" && Flags.User != resolved.Username {
		resolved.Username = Flags.User
		resolved.PasswordHash = ""
	}
	if Flags.APIURL != "" {
		resolved.APIURL = Flags.APIURL
	}
	return &resolved, nil
}

// ReadPasswordHash returns the digest for a password from $CNTCTL_PASSWORD
// or a masked prompt.
func ReadPasswordHash() (string, error) {
	password, err := prompt.PasswordFromEnv(PasswordEnv, "Password")
	if err != nil {
		return "", err
	}
	return client.HashPassword(password), nil
}

// Connect dials the resolved server and authenticates, prompting for what
// the saved context lacks. The caller closes the client.
func Connect(ctx context.Context) (*client.Client, error) {
	rc, err := ResolveContext()
	if err != nil {
		return nil, err
	}

	if rc.Username == "" {
		if rc.Username, err = prompt.Username(""); err != nil {
			return nil, err
		}
	}
	hash := rc.PasswordHash
	if hash == "" {
		if hash, err = ReadPasswordHash(); err != nil {
			return nil, err
		}
	}

	return Dial(ctx, rc.Server, rc.Username, hash)
}

// Dial connects to server and authenticates as username.
func Dial(ctx context.Context, server, username, passwordHash string) (*client.Client, error) {
	c, err := client.Dial(ctx, server, client.WithTimeout(Flags.Timeout))
	if err != nil {
		return nil, err
	}
	if _, err := c.Connect(ctx, username, passwordHash); err != nil {
		_ = c.Close(ctx)
		return nil, fmt.Errorf("login as %q failed: %w", username, err)
	}
	return c, nil
}

// Session runs fn on an authenticated connection and says goodbye after.
func Session(ctx context.Context, fn func(c *client.Client) error) error {
	c, err := Connect(ctx)
	if err != nil {
		return err
	}
	err = fn(c)
	if cerr := c.Close(ctx); err == nil && !errors.Is(cerr, client.ErrClosed) {
		err = cerr
	}
	return err
}

// APIClient returns a client for the resolved context's HTTP API.
func APIClient() (*apiclient.Client, error) {
	rc, err := ResolveContext()
	if err != nil {
		return nil, err
	}
	if rc.APIURL == "" {
		return nil, errors.New("no API URL configured - pass --api-url or run 'cntctl login --api-url <url>'")
	}
	return apiclient.New(rc.APIURL), nil
}

// GetOutputFormatParsed returns the parsed --output flag.
func GetOutputFormatParsed() (output.Format, error) {
	return output.ParseFormat(Flags.Output)
}

// IsColorDisabled reports whether --no-color or $NO_COLOR is set.
func IsColorDisabled() bool {
	return Flags.NoColor || os.Getenv("NO_COLOR") != ""
}

// Printer returns a printer for w in the --output format.
func Printer(w io.Writer) (*output.Printer, error) {
	format, err := GetOutputFormatParsed()
	if err != nil {
		return nil, err
	}
	return output.NewPrinter(w, format, !IsColorDisabled()), nil
}

// PrintOutput prints data in the --output format. In table format an empty
// result prints emptyMsg instead of an empty table.
func PrintOutput(w io.Writer, data any, isEmpty bool, emptyMsg string, table output.TableRenderer) error {
	p, err := Printer(w)
	if err != nil {
		return err
	}
	if p.Structured() {
		return p.Print(data)
	}
	if isEmpty {
		p.Println(emptyMsg)
		return nil
	}
	return output.PrintTable(w, table)
}

// PrintSuccess prints a green status line in table format only.
func PrintSuccess(w io.Writer, msg string) {
	p, err := Printer(w)
	if err != nil || p.Structured() {
		return
	}
	p.Success(msg)
}

// HandleAbort turns a cancelled prompt into a clean exit.
func HandleAbort(err error) error {
	if prompt.IsAborted(err) {
		fmt.Fprintln(os.Stderr, "Aborted.")
		return nil
	}
	return err
}

// RunDeleteWithConfirmation asks before running fn unless force is set.
func RunDeleteWithConfirmation(w io.Writer, kind, name string, force bool, fn func() error) error {
	ok, err := prompt.ConfirmWithForce(fmt.Sprintf("Delete %s %q", kind, name), force)
	if err != nil {
		return HandleAbort(err)
	}
	if !ok {
		_, _ = fmt.Fprintln(w, "Aborted.")
		return nil
	}
	if err := fn(); err != nil {
		return err
	}
	PrintSuccess(w, fmt.Sprintf("%s %q deleted", kind, name))
	return nil
}

// EmptyOr returns fallback when s is empty.
func EmptyOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
