package protocol

// Status codes carried by ack, download, dir and stats responses.
const (
	CodeOK               = 200
	CodeUnauthorized     = 401
	CodeForbidden        = 403
	CodeNotFound         = 404
	CodeConflict         = 409
	CodeAlreadyConnected = 418
)

// StatusText returns a short description for a status code, or "" if the
// code is unknown.
func StatusText(code int) string {
	switch code {
	case CodeOK:
		return "OK"
	case CodeUnauthorized:
		return "Unauthorized"
	case CodeForbidden:
		return "Forbidden"
	case CodeNotFound:
		return "Not Found"
	case CodeConflict:
		return "Conflict"
	case CodeAlreadyConnected:
		return "Already Connected"
	}
	return ""
}
