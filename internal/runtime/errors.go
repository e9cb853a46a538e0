package runtime

import "fmt"

type ErrorKind int

const (
	// NoContext means the runtime reported no endpoint at all
	NoContext ErrorKind = iota
	// UnsupportedTransport means the endpoint is not a local unix socket
	UnsupportedTransport
	// SocketNotFound means the socket path is missing or not a socket file
	SocketNotFound
	// DaemonUnreachable means the socket exists but the daemon did not answer
	DaemonUnreachable
)

func (k ErrorKind) String() string {
	switch k {
	case NoContext:
		return "no runtime context"
	case UnsupportedTransport:
		return "unsupported transport"
	case SocketNotFound:
		return "socket not found"
	case DaemonUnreachable:
		return "daemon unreachable"
	default:
		return "unknown"
	}
}

// ResolutionError reports why no usable runtime endpoint could be resolved.
// Value carries the exact endpoint string or path that caused the failure.
type ResolutionError struct {
	Kind  ErrorKind
	Value string
	Err   error
}

func (e *ResolutionError) Error() string {
	msg := e.Kind.String()
	if e.Value != "" {
		msg = fmt.Sprintf("%s: %q", msg, e.Value)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}

// Is matches any *ResolutionError with the same Kind, so callers can write
// errors.Is(err, &ResolutionError{Kind: SocketNotFound}).
func (e *ResolutionError) Is(target error) bool {
	t, ok := target.(*ResolutionError)
	return ok && t.Kind == e.Kind
}
