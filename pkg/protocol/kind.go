package protocol

import (
	"path/filepath"
	"strings"
)

// FileKind is the coarse media category of a file.
type FileKind string

const (
	KindText  FileKind = "text"
	KindAudio FileKind = "audio"
	KindVideo FileKind = "video"
)

var extensionKinds = map[string]FileKind{
	".mp4":  KindVideo,
	".mov":  KindVideo,
	".avi":  KindVideo,
	".wmv":  KindVideo,
	".mp3":  KindAudio,
	".wav":  KindAudio,
	".aac":  KindAudio,
	".flac": KindAudio,
	".aiff": KindAudio,
}

// Valid reports whether k is a known kind.
func (k FileKind) Valid() bool {
	switch k {
	case KindText, KindAudio, KindVideo:
		return true
	}
	return false
}

// KindFromName derives a FileKind from the extension of name. Matching is
// case-insensitive and anything unrecognized is text.
func KindFromName(name string) FileKind {
	if k, ok := extensionKinds[strings.ToLower(filepath.Ext(name))]; ok {
		return k
	}
	return KindText
}
