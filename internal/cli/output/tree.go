package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/marmos91/cntfs/pkg/protocol"
)

// Listing is a directory listing as returned by the server.
//
// In table format it renders one row per entry; PrintTree draws it as an
// indented tree instead.
type Listing struct {
	Root       *protocol.DirectoryInfo
	CurrentDir string
}

func (l Listing) Headers() []string {
	return []string{"Path", "Type", "Kind", "Owner", "Size"}
}

func (l Listing) Rows() [][]string {
	rows := make([][]string, 0)
	if l.Root == nil {
		return rows
	}
	l.Root.Walk(func(rel string, e protocol.Entry) {
		switch v := e.(type) {
		case *protocol.FileInfo:
			rows = append(rows, []string{rel, "file", string(v.Kind), v.Owner, ByteCount(v.Size)})
		case *protocol.DirectoryInfo:
			rows = append(rows, []string{rel + "/", "dir", "", "", ""})
		}
	})
	return rows
}

func (l Listing) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		CurrentDir string                  `json:"current_dir"`
		Tree       *protocol.DirectoryInfo `json:"tree"`
	}{l.CurrentDir, l.Root})
}

func (l Listing) MarshalYAML() (any, error) {
	return map[string]any{
		"current_dir": l.CurrentDir,
		"tree":        yamlEntry(l.Root),
	}, nil
}

// yamlEntry mirrors the JSON shape so both formats carry the entry kind.
func yamlEntry(e protocol.Entry) map[string]any {
	switch v := e.(type) {
	case *protocol.FileInfo:
		return map[string]any{"kind": "file", "name": v.Name, "file_kind": string(v.Kind), "owner": v.Owner, "size": v.Size}
	case *protocol.DirectoryInfo:
		if v == nil {
			return nil
		}
		contents := make([]map[string]any, 0, len(v.Contents))
		for _, c := range v.Contents {
			contents = append(contents, yamlEntry(c))
		}
		return map[string]any{"kind": "directory", "name": v.Name, "contents": contents}
	}
	return nil
}

// PrintTree draws dir like tree(1). Files show their owner, kind and size.
func PrintTree(w io.Writer, dir *protocol.DirectoryInfo) error {
	if dir == nil {
		return nil
	}
	if _, err := fmt.Fprintln(w, dir.Name+"/"); err != nil {
		return err
	}
	return printBranch(w, dir, "")
}

func printBranch(w io.Writer, dir *protocol.DirectoryInfo, indent string) error {
	for i, e := range dir.Contents {
		connector, next := "├── ", "│   "
		if i == len(dir.Contents)-1 {
			connector, next = "└── ", "    "
		}

		var line strings.Builder
		line.WriteString(indent + connector)
		switch v := e.(type) {
		case *protocol.FileInfo:
			fmt.Fprintf(&line, "%s  (%s, %s, %s)", v.Name, v.Owner, v.Kind, ByteCount(v.Size))
		case *protocol.DirectoryInfo:
			line.WriteString(v.Name + "/")
		}
		if _, err := fmt.Fprintln(w, line.String()); err != nil {
			return err
		}

		if sub, ok := e.(*protocol.DirectoryInfo); ok {
			if err := printBranch(w, sub, indent+next); err != nil {
				return err
			}
		}
	}
	return nil
}
