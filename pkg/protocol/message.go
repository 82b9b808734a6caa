// Package protocol implements the cntfs wire protocol: a closed set of JSON
// control messages carried in fixed-size, NUL-padded frames, optionally
// followed by a raw payload whose length the control message announces.
//
// Every control message is an envelope:
//
//	{"type": "upload", "direction": "request", "data": {"name": "a.txt", "kind": "text", "size": 5}}
//
// Variants are plain value types implementing Message. Request-only and
// response-only variants of the same wire type (download, dir, stats) are
// distinct Go types so that a decoded value always carries exactly the fields
// its direction defines.
package protocol

// Direction tells the receiver which side of an exchange produced a message.
type Direction string

const (
	DirectionRequest  Direction = "request"
	DirectionResponse Direction = "response"
)

// Valid reports whether d is one of the two known directions.
func (d Direction) Valid() bool {
	return d == DirectionRequest || d == DirectionResponse
}

// MessageType is the wire tag of a message variant.
type MessageType string

const (
	TypeConnect   MessageType = "connect"
	TypeClose     MessageType = "close"
	TypeAck       MessageType = "ack"
	TypeUpload    MessageType = "upload"
	TypeDownload  MessageType = "download"
	TypeDelete    MessageType = "delete"
	TypeDir       MessageType = "dir"
	TypeMove      MessageType = "move"
	TypeSubfolder MessageType = "subfolder"
	TypeStats     MessageType = "stats"
)

// Message is implemented by every wire variant. The set is closed: the
// unexported method keeps other packages from adding variants.
type Message interface {
	// Type returns the wire tag.
	Type() MessageType

	// Direction returns the only direction this Go type can be sent in.
	// Ack is valid in both directions and reports DirectionResponse.
	Direction() Direction

	validate() error
}

// SubfolderAction selects what a subfolder request does.
type SubfolderAction string

const (
	SubfolderAdd    SubfolderAction = "add"
	SubfolderDelete SubfolderAction = "delete"
)

// Valid reports whether a is a known action.
func (a SubfolderAction) Valid() bool {
	return a == SubfolderAdd || a == SubfolderDelete
}

// Connect opens a session. PasswordHash is the client-side digest of the
// user's password, never the password itself.
type Connect struct {
	Username     string
	PasswordHash string
}

// Close ends a session.
type Close struct{}

// Ack is the generic status response, also sent by clients to confirm (200)
// or abort (anything else) a pending raw payload.
type Ack struct {
	Code    int
	Message string
}

// Upload announces Size raw bytes for a new file named Name in the current
// directory.
type Upload struct {
	Name string
	Kind FileKind
	Size int64
}

// DownloadRequest asks for the contents of Path.
type DownloadRequest struct {
	Path string
}

// DownloadResponse answers a DownloadRequest. On success Kind and Size are
// set and Size raw bytes follow once the client acks.
type DownloadResponse struct {
	Status  int
	Message string
	Kind    FileKind
	Size    int64
}

// Delete removes the file at Path.
type Delete struct {
	Path string
}

// DirRequest asks for the sandbox tree.
type DirRequest struct{}

// DirResponse announces Size bytes of JSON-encoded DirectoryInfo. CurrentDir
// is the session's working directory relative to the sandbox root.
type DirResponse struct {
	Code       int
	Message    string
	CurrentDir string
	Size       int64
}

// Move changes the session's working directory.
type Move struct {
	Path string
}

// Subfolder creates or removes the directory at Path.
type Subfolder struct {
	Path   string
	Action SubfolderAction
}

// StatsRequest asks for the caller's transfer statistics.
type StatsRequest struct{}

// StatsResponse announces Size bytes of JSON-encoded statistics.
type StatsResponse struct {
	Code    int
	Message string
	Size    int64
}

func (Connect) Type() MessageType          { return TypeConnect }
func (Close) Type() MessageType            { return TypeClose }
func (Ack) Type() MessageType              { return TypeAck }
func (Upload) Type() MessageType           { return TypeUpload }
func (DownloadRequest) Type() MessageType  { return TypeDownload }
func (DownloadResponse) Type() MessageType { return TypeDownload }
func (Delete) Type() MessageType           { return TypeDelete }
func (DirRequest) Type() MessageType       { return TypeDir }
func (DirResponse) Type() MessageType      { return TypeDir }
func (Move) Type() MessageType             { return TypeMove }
func (Subfolder) Type() MessageType        { return TypeSubfolder }
func (StatsRequest) Type() MessageType     { return TypeStats }
func (StatsResponse) Type() MessageType    { return TypeStats }

func (Connect) Direction() Direction          { return DirectionRequest }
func (Close) Direction() Direction            { return DirectionRequest }
func (Ack) Direction() Direction              { return DirectionResponse }
func (Upload) Direction() Direction           { return DirectionRequest }
func (DownloadRequest) Direction() Direction  { return DirectionRequest }
func (DownloadResponse) Direction() Direction { return DirectionResponse }
func (Delete) Direction() Direction           { return DirectionRequest }
func (DirRequest) Direction() Direction       { return DirectionRequest }
func (DirResponse) Direction() Direction      { return DirectionResponse }
func (Move) Direction() Direction             { return DirectionRequest }
func (Subfolder) Direction() Direction        { return DirectionRequest }
func (StatsRequest) Direction() Direction     { return DirectionRequest }
func (StatsResponse) Direction() Direction    { return DirectionResponse }

// Supports reports whether m may be sent in direction d.
func Supports(m Message, d Direction) bool {
	if _, ok := m.(Ack); ok {
		return d.Valid()
	}
	return m.Direction() == d
}

func (m Connect) validate() error {
	if m.Username == "" {
		return missingField("username")
	}
	if m.PasswordHash == "" {
		return missingField("password_hash")
	}
	return nil
}

func (Close) validate() error { return nil }

func (Ack) validate() error { return nil }

func (m Upload) validate() error {
	if m.Name == "" {
		return missingField("name")
	}
	if !m.Kind.Valid() {
		return invalidField("kind", string(m.Kind))
	}
	if m.Size < 0 {
		return invalidField("size", "negative")
	}
	return nil
}

func (m DownloadRequest) validate() error { return requirePath(m.Path) }

func (m DownloadResponse) validate() error {
	if m.Kind != "" && !m.Kind.Valid() {
		return invalidField("kind", string(m.Kind))
	}
	if m.Size < 0 {
		return invalidField("size", "negative")
	}
	if m.Kind == "" && m.Size != 0 {
		return invalidField("size", "set without kind")
	}
	return nil
}

func (m Delete) validate() error { return requirePath(m.Path) }

func (DirRequest) validate() error { return nil }

func (m DirResponse) validate() error {
	if m.Size < 0 {
		return invalidField("size", "negative")
	}
	return nil
}

func (m Move) validate() error { return requirePath(m.Path) }

func (m Subfolder) validate() error {
	if err := requirePath(m.Path); err != nil {
		return err
	}
	if !m.Action.Valid() {
		return invalidField("action", string(m.Action))
	}
	return nil
}

func (StatsRequest) validate() error { return nil }

func (m StatsResponse) validate() error {
	if m.Size < 0 {
		return invalidField("size", "negative")
	}
	return nil
}

func requirePath(p string) error {
	if p == "" {
		return missingField("path")
	}
	return nil
}
