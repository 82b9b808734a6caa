package protocol

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func allMessages() []Message {
	return []Message{
		Connect{Username: "alice", PasswordHash: "5e884898da28047151d0e56f8dc6292773603d0d6aabbdd62a11ef721d1542d8"},
		Close{},
		Ack{Code: CodeOK, Message: "OK"},
		Ack{Code: CodeConflict},
		Upload{Name: "report.txt", Kind: KindText, Size: 5},
		Upload{Name: "song.mp3", Kind: KindAudio, Size: 0},
		DownloadRequest{Path: "docs/report.txt"},
		DownloadResponse{Status: CodeOK, Message: "OK", Kind: KindVideo, Size: 1 << 20},
		DownloadResponse{Status: CodeNotFound, Message: "no such file"},
		Delete{Path: "a.txt"},
		DirRequest{},
		DirResponse{Code: CodeOK, Message: "OK", CurrentDir: ".", Size: 77},
		Move{Path: ".."},
		Subfolder{Path: "new", Action: SubfolderAdd},
		Subfolder{Path: "new", Action: SubfolderDelete},
		StatsRequest{},
		StatsResponse{Code: CodeOK, Message: "OK", Size: 12},
	}
}

func TestRoundTrip(t *testing.T) {
	for _, m := range allMessages() {
		for _, dir := range []Direction{DirectionRequest, DirectionResponse} {
			if !Supports(m, dir) {
				continue
			}
			t.Run(string(m.Type())+"/"+string(dir), func(t *testing.T) {
				b, err := Encode(m, dir)
				require.NoError(t, err)

				got, gotDir, err := DecodeWithDirection(b)
				require.NoError(t, err)
				assert.Equal(t, m, got)
				assert.Equal(t, dir, gotDir)
			})
		}
	}
}

func TestAckSupportsBothDirections(t *testing.T) {
	assert.True(t, Supports(Ack{}, DirectionRequest))
	assert.True(t, Supports(Ack{}, DirectionResponse))
	assert.False(t, Supports(Ack{}, Direction("sideways")))
	assert.False(t, Supports(Connect{}, DirectionResponse))
	assert.False(t, Supports(DirResponse{}, DirectionRequest))
}

func TestEncodeEnvelopeShape(t *testing.T) {
	b, err := Encode(Upload{Name: "a.txt", Kind: KindText, Size: 5}, DirectionRequest)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(b, &raw))
	assert.Equal(t, "upload", raw["type"])
	assert.Equal(t, "request", raw["direction"])
	assert.Equal(t, map[string]any{"name": "a.txt", "kind": "text", "size": float64(5)}, raw["data"])
}

func TestEncodeDownloadFailureOmitsKind(t *testing.T) {
	b, err := Encode(DownloadResponse{Status: CodeUnauthorized, Message: "not owner"}, DirectionResponse)
	require.NoError(t, err)
	assert.NotContains(t, string(b), `"kind"`)
	assert.NotContains(t, string(b), `"size"`)
}

func TestEncodeRejects(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
		dir  Direction
	}{
		{"nil message", nil, DirectionRequest},
		{"connect as response", Connect{Username: "a", PasswordHash: "h"}, DirectionResponse},
		{"dir response as request", DirResponse{}, DirectionRequest},
		{"empty username", Connect{PasswordHash: "h"}, DirectionRequest},
		{"bad kind", Upload{Name: "a", Kind: "image", Size: 1}, DirectionRequest},
		{"negative size", Upload{Name: "a", Kind: KindText, Size: -1}, DirectionRequest},
		{"empty path", Delete{}, DirectionRequest},
		{"bad action", Subfolder{Path: "x", Action: "rename"}, DirectionRequest},
		{"size without kind", DownloadResponse{Status: CodeOK, Size: 3}, DirectionResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Encode(tt.msg, tt.dir)
			assert.Error(t, err)
		})
	}

	_, err := Encode(Close{}, DirectionResponse)
	assert.True(t, errors.Is(err, ErrDirectionMismatch))
}

func TestDecodeRejects(t *testing.T) {
	tests := []struct {
		name  string
		input string
		field string
	}{
		{"not json", `hello`, ""},
		{"truncated", `{"type":"connect","direction":"request","data":{"username":"a"`, ""},
		{"missing type", `{"direction":"request","data":{}}`, "type"},
		{"unknown type", `{"type":"rename","direction":"request","data":{}}`, "type"},
		{"unknown direction", `{"type":"close","direction":"upward","data":{}}`, "direction"},
		{"missing direction", `{"type":"close","data":{}}`, "direction"},
		{"connect as response", `{"type":"connect","direction":"response","data":{"username":"a","password_hash":"h"}}`, "direction"},
		{"missing username", `{"type":"connect","direction":"request","data":{"password_hash":"h"}}`, "username"},
		{"empty username", `{"type":"connect","direction":"request","data":{"username":"","password_hash":"h"}}`, "username"},
		{"mistyped size", `{"type":"upload","direction":"request","data":{"name":"a","kind":"text","size":"five"}}`, "size"},
		{"missing size", `{"type":"upload","direction":"request","data":{"name":"a","kind":"text"}}`, "size"},
		{"unknown kind", `{"type":"upload","direction":"request","data":{"name":"a","kind":"image","size":1}}`, "kind"},
		{"ack without code", `{"type":"ack","direction":"request","data":{"message":"x"}}`, "code"},
		{"download without path", `{"type":"download","direction":"request","data":{}}`, "path"},
		{"subfolder bad action", `{"type":"subfolder","direction":"request","data":{"path":"x","action":"move"}}`, "action"},
		{"dir response without current_dir", `{"type":"dir","direction":"response","data":{"code":200,"size":1}}`, "current_dir"},
		{"data not an object", `{"type":"move","direction":"request","data":[1,2]}`, ""},
		{"key in wrong case", `{"type":"connect","direction":"request","data":{"USERNAME":"a","password_hash":"h"}}`, "username"},
		{"envelope key in wrong case", `{"Type":"close","direction":"request"}`, "type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := Decode([]byte(tt.input))
			require.Error(t, err)
			assert.Nil(t, m)
			assert.True(t, IsDecodeError(err), "expected *DecodeError, got %T", err)

			if tt.field != "" {
				var de *DecodeError
				require.ErrorAs(t, err, &de)
				assert.Equal(t, tt.field, de.Field)
			}
		})
	}
}

func TestDecodeEmptyDataVariants(t *testing.T) {
	for _, input := range []string{
		`{"type":"close","direction":"request"}`,
		`{"type":"close","direction":"request","data":null}`,
		`{"type":"close","direction":"request","data":{}}`,
	} {
		m, err := Decode([]byte(input))
		require.NoError(t, err, input)
		assert.Equal(t, Close{}, m)
	}
}

func TestDecodeDistinguishesDownloadDirections(t *testing.T) {
	req, err := Decode([]byte(`{"type":"download","direction":"request","data":{"path":"a.txt"}}`))
	require.NoError(t, err)
	assert.Equal(t, DownloadRequest{Path: "a.txt"}, req)

	resp, err := Decode([]byte(`{"type":"download","direction":"response","data":{"status":200,"message":"OK","kind":"audio","size":9}}`))
	require.NoError(t, err)
	assert.Equal(t, DownloadResponse{Status: 200, Message: "OK", Kind: KindAudio, Size: 9}, resp)
}

func TestDecodeErrorMessage(t *testing.T) {
	_, err := Decode([]byte(`{"type":"connect","direction":"request","data":{}}`))
	require.Error(t, err)
	assert.Equal(t, `decode: missing required field (field "username")`, err.Error())
}
