package models

import "errors"

// Error kinds a run can fail with.
var (
	ErrConfiguration     = errors.New("configuration error")
	ErrAuthentication    = errors.New("authentication error")
	ErrTransport         = errors.New("transport error")
	ErrMalformedResponse = errors.New("malformed response")
	ErrProxy             = errors.New("proxy error")
)

// ErrorKind returns a short label for the kind of err, or "unexpected" if it
// does not wrap one of the known kinds.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrProxy):
		return "proxy"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrAuthentication):
		return "authentication"
	case errors.Is(err, ErrMalformedResponse):
		return "malformed_response"
	case errors.Is(err, ErrTransport):
		return "transport"
	default:
		return "unexpected"
	}
}
