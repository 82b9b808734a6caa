package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Entry is a node of a directory listing: *FileInfo or *DirectoryInfo.
type Entry interface {
	EntryName() string
	isEntry()
}

// FileInfo describes a regular file in a listing.
type FileInfo struct {
	Name  string
	Owner string
	Kind  FileKind
	Size  int64
}

// DirectoryInfo describes a directory and its ordered contents.
type DirectoryInfo struct {
	Name     string
	Contents []Entry
}

const (
	entryFile      = "file"
	entryDirectory = "directory"
)

func (f *FileInfo) EntryName() string      { return f.Name }
func (d *DirectoryInfo) EntryName() string { return d.Name }
func (*FileInfo) isEntry()                 {}
func (*DirectoryInfo) isEntry()            {}

type fileJSON struct {
	Kind     string   `json:"kind"`
	Name     string   `json:"name"`
	FileKind FileKind `json:"file_kind"`
	Owner    string   `json:"owner"`
	Size     int64    `json:"size"`
}

type directoryJSON struct {
	Kind     string            `json:"kind"`
	Name     string            `json:"name"`
	Contents []json.RawMessage `json:"contents"`
}

func (f *FileInfo) MarshalJSON() ([]byte, error) {
	return json.Marshal(fileJSON{Kind: entryFile, Name: f.Name, FileKind: f.Kind, Owner: f.Owner, Size: f.Size})
}

func (f *FileInfo) UnmarshalJSON(b []byte) error {
	var v fileJSON
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	if v.Kind != entryFile {
		return fmt.Errorf("entry kind %q is not a file", v.Kind)
	}
	*f = FileInfo{Name: v.Name, Owner: v.Owner, Kind: v.FileKind, Size: v.Size}
	return nil
}

func (d *DirectoryInfo) MarshalJSON() ([]byte, error) {
	contents := make([]json.RawMessage, 0, len(d.Contents))
	for _, e := range d.Contents {
		b, err := json.Marshal(e)
		if err != nil {
			return nil, err
		}
		contents = append(contents, b)
	}
	return json.Marshal(directoryJSON{Kind: entryDirectory, Name: d.Name, Contents: contents})
}

func (d *DirectoryInfo) UnmarshalJSON(b []byte) error {
	var v directoryJSON
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	if v.Kind != entryDirectory {
		return fmt.Errorf("entry kind %q is not a directory", v.Kind)
	}

	out := DirectoryInfo{Name: v.Name, Contents: make([]Entry, 0, len(v.Contents))}
	for i, raw := range v.Contents {
		e, err := unmarshalEntry(raw)
		if err != nil {
			return fmt.Errorf("%s contents[%d]: %w", v.Name, i, err)
		}
		out.Contents = append(out.Contents, e)
	}
	*d = out
	return nil
}

func unmarshalEntry(raw json.RawMessage) (Entry, error) {
	var head struct {
		Kind string `json:"kind"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, err
	}
	switch head.Kind {
	case entryFile:
		f := &FileInfo{}
		return f, f.UnmarshalJSON(raw)
	case entryDirectory:
		d := &DirectoryInfo{}
		return d, d.UnmarshalJSON(raw)
	default:
		return nil, fmt.Errorf("unknown entry kind %q", head.Kind)
	}
}

// Walk calls fn for every entry below d in depth-first order, passing the
// slash-separated path relative to d.
func (d *DirectoryInfo) Walk(fn func(rel string, e Entry)) {
	d.walk("", fn)
}

func (d *DirectoryInfo) walk(prefix string, fn func(string, Entry)) {
	for _, e := range d.Contents {
		rel := prefix + e.EntryName()
		fn(rel, e)
		if sub, ok := e.(*DirectoryInfo); ok {
			sub.walk(rel+"/", fn)
		}
	}
}

// Lookup returns the entry at the slash-separated path rel below d, or nil.
// An empty rel or "." is d itself.
func (d *DirectoryInfo) Lookup(rel string) Entry {
	rel = strings.Trim(rel, "/")
	if rel == "" || rel == "." {
		return d
	}

	name, rest, _ := strings.Cut(rel, "/")
	for _, e := range d.Contents {
		if e.EntryName() != name {
			continue
		}
		if rest == "" {
			return e
		}
		if sub, ok := e.(*DirectoryInfo); ok {
			return sub.Lookup(rest)
		}
		return nil
	}
	return nil
}
