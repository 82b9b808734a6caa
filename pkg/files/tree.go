package files

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/marmos91/cntfs/internal/logger"
	"github.com/marmos91/cntfs/pkg/protocol"
	"github.com/marmos91/cntfs/pkg/store"
)

// RootName is the name of the top-level directory in a listing.
const RootName = "root"

// BuildTree walks the sandbox and returns it as a listing rooted at
// RootName. Entries are sorted by name. Symlinks and staged uploads are left
// out, as are directories the server cannot read.
func (m *Manager) BuildTree(ctx context.Context) (*protocol.DirectoryInfo, error) {
	tree := &protocol.DirectoryInfo{Name: RootName}
	if err := m.fill(ctx, tree, m.sandbox.Path()); err != nil {
		return nil, err
	}
	return tree, nil
}

func (m *Manager) fill(ctx context.Context, dir *protocol.DirectoryInfo, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		if path == m.sandbox.Path() {
			return m.logOS(path, "read dir", err)
		}
		logger.Debug("skipping unreadable directory", logger.Path(m.rel(path)), logger.Err(err))
	}

	dir.Contents = make([]protocol.Entry, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		full := filepath.Join(path, name)

		switch {
		case e.IsDir():
			sub := &protocol.DirectoryInfo{Name: name}
			if err := m.fill(ctx, sub, full); err != nil {
				return err
			}
			dir.Contents = append(dir.Contents, sub)

		case e.Type().IsRegular():
			if strings.HasPrefix(name, tempPrefix) {
				continue
			}
			info, err := e.Info()
			if err != nil {
				// Removed between ReadDir and now.
				continue
			}
			owner, err := m.owners.Owner(ctx, m.rel(full))
			if err != nil && !errors.Is(err, store.ErrOwnerNotFound) {
				return err
			}
			dir.Contents = append(dir.Contents, &protocol.FileInfo{
				Name:  name,
				Owner: owner,
				Kind:  protocol.KindFromName(name),
				Size:  info.Size(),
			})

		case e.Type()&fs.ModeSymlink != 0:
			continue
		}
	}
	return nil
}
