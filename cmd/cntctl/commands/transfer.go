package commands

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/marmos91/cntfs/cmd/cntctl/cmdutil"
	"github.com/marmos91/cntfs/pkg/client"
)

var getCmd = &cobra.Command{
	Use:   "get <remote> [local|-]",
	Short: "Download a file",
	Long: `Download a file from the sandbox.

The local path defaults to the remote file's base name in the working
directory. Use - to write to stdout.

Examples:
  cntctl get docs/report.pdf
  cntctl get notes.txt - | less`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runGet,
}

var putCmd = &cobra.Command{
	Use:   "put <local> [remote]",
	Short: "Upload a file",
	Long: `Upload a local file into the sandbox. You become its owner.

The remote path defaults to the local base name at the sandbox root. Its
directory must already exist; create it with 'cntctl mkdir'. Uploading over
an existing file is refused.

Examples:
  cntctl put report.pdf
  cntctl put report.pdf docs/2024-report.pdf`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runPut,
}

func runGet(cmd *cobra.Command, args []string) error {
	remote := args[0]
	local := path.Base(remote)
	if len(args) > 1 {
		local = args[1]
	}

	if local == "-" {
		return cmdutil.Session(cmd.Context(), func(c *client.Client) error {
			_, _, err := c.Download(cmd.Context(), remote, cmd.OutOrStdout())
			return err
		})
	}

	// Write next to the target and rename, so a failed download never
	// leaves a truncated file behind.
	tmp, err := os.CreateTemp(filepath.Dir(local), "."+filepath.Base(local)+".*")
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", local, err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	var size int64
	err = cmdutil.Session(cmd.Context(), func(c *client.Client) error {
		var err error
		_, size, err = c.Download(cmd.Context(), remote, tmp)
		return err
	})
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), local); err != nil {
		return fmt.Errorf("failed to write %s: %w", local, err)
	}

	cmdutil.PrintSuccess(cmd.OutOrStdout(), fmt.Sprintf("Downloaded %s to %s (%s)", remote, local, humanize.IBytes(uint64(size))))
	return nil
}

func runPut(cmd *cobra.Command, args []string) error {
	local := args[0]
	remote := filepath.Base(local)
	if len(args) > 1 {
		remote = args[1]
	}
	dir, name := path.Split(path.Clean(strings.TrimPrefix(remote, "/")))

	f, err := os.Open(local)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%s is not a regular file", local)
	}

	err = cmdutil.Session(cmd.Context(), func(c *client.Client) error {
		if dir != "" {
			if err := c.Move(cmd.Context(), dir); err != nil {
				return fmt.Errorf("cannot enter %s: %w", dir, err)
			}
		}
		return c.Upload(cmd.Context(), name, f, info.Size())
	})
	if err != nil {
		return err
	}

	cmdutil.PrintSuccess(cmd.OutOrStdout(), fmt.Sprintf("Uploaded %s to %s (%s)", local, remote, humanize.IBytes(uint64(info.Size()))))
	return nil
}
