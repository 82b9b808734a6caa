package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
)

type envelope struct {
	Type      MessageType     `json:"type"`
	Direction Direction       `json:"direction"`
	Data      json.RawMessage `json:"data"`
}

// Wire shapes. Pointer fields let the decoder tell "absent" from "zero".
type (
	connectData struct {
		Username     *string `json:"username"`
		PasswordHash *string `json:"password_hash"`
	}

	ackData struct {
		Code    *int    `json:"code"`
		Message *string `json:"message"`
	}

	uploadData struct {
		Name *string   `json:"name"`
		Kind *FileKind `json:"kind"`
		Size *int64    `json:"size"`
	}

	pathData struct {
		Path *string `json:"path"`
	}

	downloadResponseData struct {
		Status  *int      `json:"status"`
		Message *string   `json:"message"`
		Kind    *FileKind `json:"kind,omitempty"`
		Size    *int64    `json:"size,omitempty"`
	}

	dirResponseData struct {
		Code       *int    `json:"code"`
		Message    *string `json:"message"`
		CurrentDir *string `json:"current_dir"`
		Size       *int64  `json:"size"`
	}

	subfolderData struct {
		Path   *string          `json:"path"`
		Action *SubfolderAction `json:"action"`
	}

	statsResponseData struct {
		Code    *int    `json:"code"`
		Message *string `json:"message"`
		Size    *int64  `json:"size"`
	}

	emptyData struct{}
)

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

// Encode serializes m as a JSON envelope sent in direction dir.
func Encode(m Message, dir Direction) ([]byte, error) {
	if m == nil {
		return nil, errors.New("encode: nil message")
	}
	if !Supports(m, dir) {
		return nil, fmt.Errorf("encode %s as %q: %w", m.Type(), dir, ErrDirectionMismatch)
	}
	if err := m.validate(); err != nil {
		return nil, fmt.Errorf("encode %s: %w", m.Type(), err)
	}

	data, err := json.Marshal(wireData(m))
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", m.Type(), err)
	}
	return json.Marshal(envelope{Type: m.Type(), Direction: dir, Data: data})
}

func wireData(m Message) any {
	switch v := m.(type) {
	case Connect:
		return connectData{Username: &v.Username, PasswordHash: &v.PasswordHash}
	case Ack:
		return ackData{Code: &v.Code, Message: &v.Message}
	case Upload:
		return uploadData{Name: &v.Name, Kind: &v.Kind, Size: &v.Size}
	case DownloadRequest:
		return pathData{Path: &v.Path}
	case DownloadResponse:
		d := downloadResponseData{Status: &v.Status, Message: &v.Message}
		if v.Kind != "" {
			d.Kind, d.Size = &v.Kind, &v.Size
		}
		return d
	case Delete:
		return pathData{Path: &v.Path}
	case DirResponse:
		return dirResponseData{Code: &v.Code, Message: &v.Message, CurrentDir: &v.CurrentDir, Size: &v.Size}
	case Move:
		return pathData{Path: &v.Path}
	case Subfolder:
		return subfolderData{Path: &v.Path, Action: &v.Action}
	case StatsResponse:
		return statsResponseData{Code: &v.Code, Message: &v.Message, Size: &v.Size}
	default:
		// Close, DirRequest, StatsRequest carry no data.
		return emptyData{}
	}
}

type decodeFunc func(data json.RawMessage) (Message, error)

var decoders = map[MessageType]map[Direction]decodeFunc{
	TypeConnect:   {DirectionRequest: decodeConnect},
	TypeClose:     {DirectionRequest: decodeEmpty(Close{})},
	TypeAck:       {DirectionRequest: decodeAck, DirectionResponse: decodeAck},
	TypeUpload:    {DirectionRequest: decodeUpload},
	TypeDownload:  {DirectionRequest: decodePath(func(p string) Message { return DownloadRequest{Path: p} }), DirectionResponse: decodeDownloadResponse},
	TypeDelete:    {DirectionRequest: decodePath(func(p string) Message { return Delete{Path: p} })},
	TypeDir:       {DirectionRequest: decodeEmpty(DirRequest{}), DirectionResponse: decodeDirResponse},
	TypeMove:      {DirectionRequest: decodePath(func(p string) Message { return Move{Path: p} })},
	TypeSubfolder: {DirectionRequest: decodeSubfolder},
	TypeStats:     {DirectionRequest: decodeEmpty(StatsRequest{}), DirectionResponse: decodeStatsResponse},
}

// Decode parses one envelope. Any failure is returned as a *DecodeError and
// no partially populated message is ever returned.
func Decode(b []byte) (Message, error) {
	m, _, err := DecodeWithDirection(b)
	return m, err
}

// DecodeWithDirection is Decode that also reports the envelope's direction,
// which distinguishes a client ack from a server ack.
func DecodeWithDirection(b []byte) (Message, Direction, error) {
	var env envelope
	if err := strictUnmarshal(b, &env); err != nil {
		var de *DecodeError
		if errors.As(err, &de) {
			return nil, "", de
		}
		return nil, "", &DecodeError{Reason: "malformed envelope", Err: err}
	}
	if env.Type == "" {
		return nil, "", missingField("type")
	}
	byDir, ok := decoders[env.Type]
	if !ok {
		return nil, "", &DecodeError{Reason: fmt.Sprintf("unknown message type %q", env.Type), Field: "type"}
	}
	if !env.Direction.Valid() {
		return nil, "", &DecodeError{Reason: fmt.Sprintf("unknown direction %q", env.Direction), Field: "direction"}
	}
	decode, ok := byDir[env.Direction]
	if !ok {
		return nil, "", &DecodeError{
			Reason: fmt.Sprintf("%s is not valid as a %s", env.Type, env.Direction),
			Field:  "direction",
		}
	}

	m, err := decode(env.Data)
	if err != nil {
		return nil, "", err
	}
	if err := m.validate(); err != nil {
		return nil, "", err
	}
	return m, env.Direction, nil
}

func unmarshalData(data json.RawMessage, v any) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		trimmed = []byte("{}")
	}
	if err := strictUnmarshal(trimmed, v); err != nil {
		var de *DecodeError
		if errors.As(err, &de) {
			return de
		}
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return &DecodeError{Reason: "wrong field type", Field: typeErr.Field, Err: err}
		}
		return &DecodeError{Reason: "malformed data", Err: err}
	}
	return nil
}

// strictUnmarshal is json.Unmarshal into the struct pointed to by v, except
// that object keys must match the json tags exactly. encoding/json would
// accept "USERNAME" for "username".
func strictUnmarshal(b []byte, v any) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	names := jsonNames(reflect.TypeOf(v).Elem())
	for key := range raw {
		if _, ok := names[key]; ok {
			continue
		}
		for name := range names {
			if strings.EqualFold(key, name) {
				return &DecodeError{Reason: fmt.Sprintf("key %q must be spelled %q", key, name), Field: name}
			}
		}
	}
	return json.Unmarshal(b, v)
}

var jsonNameCache sync.Map // reflect.Type -> map[string]struct{}

func jsonNames(t reflect.Type) map[string]struct{} {
	if cached, ok := jsonNameCache.Load(t); ok {
		return cached.(map[string]struct{})
	}
	names := make(map[string]struct{}, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		name, _, _ := strings.Cut(t.Field(i).Tag.Get("json"), ",")
		if name != "" && name != "-" {
			names[name] = struct{}{}
		}
	}
	jsonNameCache.Store(t, names)
	return names
}

func decodeEmpty(m Message) decodeFunc {
	return func(data json.RawMessage) (Message, error) {
		var d emptyData
		if err := unmarshalData(data, &d); err != nil {
			return nil, err
		}
		return m, nil
	}
}

func decodePath(build func(string) Message) decodeFunc {
	return func(data json.RawMessage) (Message, error) {
		var d pathData
		if err := unmarshalData(data, &d); err != nil {
			return nil, err
		}
		if d.Path == nil {
			return nil, missingField("path")
		}
		return build(*d.Path), nil
	}
}

func decodeConnect(data json.RawMessage) (Message, error) {
	var d connectData
	if err := unmarshalData(data, &d); err != nil {
		return nil, err
	}
	if d.Username == nil {
		return nil, missingField("username")
	}
	if d.PasswordHash == nil {
		return nil, missingField("password_hash")
	}
	return Connect{Username: *d.Username, PasswordHash: *d.PasswordHash}, nil
}

func decodeAck(data json.RawMessage) (Message, error) {
	var d ackData
	if err := unmarshalData(data, &d); err != nil {
		return nil, err
	}
	if d.Code == nil {
		return nil, missingField("code")
	}
	return Ack{Code: *d.Code, Message: deref(d.Message)}, nil
}

func decodeUpload(data json.RawMessage) (Message, error) {
	var d uploadData
	if err := unmarshalData(data, &d); err != nil {
		return nil, err
	}
	switch {
	case d.Name == nil:
		return nil, missingField("name")
	case d.Kind == nil:
		return nil, missingField("kind")
	case d.Size == nil:
		return nil, missingField("size")
	}
	return Upload{Name: *d.Name, Kind: *d.Kind, Size: *d.Size}, nil
}

func decodeDownloadResponse(data json.RawMessage) (Message, error) {
	var d downloadResponseData
	if err := unmarshalData(data, &d); err != nil {
		return nil, err
	}
	if d.Status == nil {
		return nil, missingField("status")
	}
	if d.Kind != nil && d.Size == nil {
		return nil, missingField("size")
	}
	return DownloadResponse{
		Status:  *d.Status,
		Message: deref(d.Message),
		Kind:    deref(d.Kind),
		Size:    deref(d.Size),
	}, nil
}

func decodeDirResponse(data json.RawMessage) (Message, error) {
	var d dirResponseData
	if err := unmarshalData(data, &d); err != nil {
		return nil, err
	}
	switch {
	case d.Code == nil:
		return nil, missingField("code")
	case d.CurrentDir == nil:
		return nil, missingField("current_dir")
	case d.Size == nil:
		return nil, missingField("size")
	}
	return DirResponse{
		Code:       *d.Code,
		Message:    deref(d.Message),
		CurrentDir: *d.CurrentDir,
		Size:       *d.Size,
	}, nil
}

func decodeSubfolder(data json.RawMessage) (Message, error) {
	var d subfolderData
	if err := unmarshalData(data, &d); err != nil {
		return nil, err
	}
	if d.Path == nil {
		return nil, missingField("path")
	}
	if d.Action == nil {
		return nil, missingField("action")
	}
	return Subfolder{Path: *d.Path, Action: *d.Action}, nil
}

func decodeStatsResponse(data json.RawMessage) (Message, error) {
	var d statsResponseData
	if err := unmarshalData(data, &d); err != nil {
		return nil, err
	}
	if d.Code == nil {
		return nil, missingField("code")
	}
	if d.Size == nil {
		return nil, missingField("size")
	}
	return StatsResponse{Code: *d.Code, Message: deref(d.Message), Size: *d.Size}, nil
}
