package runtime

import (
	"net/url"
	"path/filepath"
	"strings"
)

type TransportKind int

const (
	TransportUnsupported TransportKind = iota
	TransportUnixSocket
)

func (t TransportKind) String() string {
	if t == TransportUnixSocket {
		return "unix-socket"
	}
	return "unsupported"
}

// Endpoint is the resolved control-plane address of the container runtime.
// It is built once per bootstrap run and never modified afterwards.
type Endpoint struct {
	Transport TransportKind
	// Raw is the endpoint string reported by the runtime context
	Raw string
	// HostPath is the socket path as seen from this host
	HostPath string
	// EffectivePath is the socket path to use inside the managed service's
	// container; differs from HostPath for VM-shimmed runtimes
	EffectivePath string
	// Shim names the matched VM-shim rule, empty for native runtimes
	Shim string
}

// HostURI returns the endpoint in DOCKER_HOST form for the host-side socket
func (e Endpoint) HostURI() string {
	return "unix://" + e.HostPath
}

// parseEndpoint splits a runtime endpoint string into its transport and path.
// Bare absolute paths are accepted as unix sockets.
func parseEndpoint(raw string) (TransportKind, string) {
	raw = strings.TrimSpace(raw)

	if strings.HasPrefix(raw, "/") {
		return TransportUnixSocket, filepath.Clean(raw)
	}

	u, err := url.Parse(raw)
	if err != nil || u.Scheme != "unix" {
		return TransportUnsupported, ""
	}

	// unix:///path parses with an empty host; unix://path (two slashes)
	// puts the first segment in Host
	path := u.Path
	if u.Host != "" {
		path = "/" + u.Host + u.Path
	}
	if path == "" {
		path = u.Opaque
	}
	if path == "" {
		return TransportUnsupported, ""
	}

	return TransportUnixSocket, filepath.Clean(path)
}
