package runtime

import (
	"context"
	"errors"
	"io"

	"github.com/charmbracelet/log"
	"github.com/railwayapp/ciboot/internal/filesystems"
)

// Pinger checks that a daemon answers on a resolved endpoint
type Pinger interface {
	Ping(ctx context.Context, endpoint Endpoint) error
}

type Resolver struct {
	provider   ContextProvider
	filesystem filesystems.FileSystem
	shims      ShimTable

	// Pinger is optional; when nil the daemon is not contacted
	Pinger Pinger
	Logger *log.Logger
}

func NewResolver(provider ContextProvider, filesystem filesystems.FileSystem, shims ShimTable) *Resolver {
	if shims == nil {
		shims = NewShimTable()
	}
	return &Resolver{
		provider:   provider,
		filesystem: filesystem,
		shims:      shims,
		Logger:     log.New(io.Discard),
	}
}

// Resolve queries the active runtime context and returns a usable unix
// socket endpoint. Non-unix transports fail before any filesystem access.
func (r *Resolver) Resolve(ctx context.Context) (Endpoint, error) {
	raw, err := r.provider.Endpoint(ctx)
	if err != nil {
		return Endpoint{}, &ResolutionError{Kind: NoContext, Value: r.provider.Name(), Err: err}
	}
	if raw == "" {
		return Endpoint{}, &ResolutionError{Kind: NoContext, Value: r.provider.Name()}
	}

	transport, hostPath := parseEndpoint(raw)
	if transport != TransportUnixSocket {
		return Endpoint{}, &ResolutionError{Kind: UnsupportedTransport, Value: raw}
	}

	info, err := r.filesystem.Stat(hostPath)
	if err != nil {
		return Endpoint{}, &ResolutionError{Kind: SocketNotFound, Value: hostPath, Err: err}
	}
	if !filesystems.IsSocket(info) {
		return Endpoint{}, &ResolutionError{
			Kind:  SocketNotFound,
			Value: hostPath,
			Err:   errors.New("path exists but is not a socket, mode " + info.Mode().String()),
		}
	}

	endpoint := Endpoint{
		Transport:     transport,
		Raw:           raw,
		HostPath:      hostPath,
		EffectivePath: hostPath,
	}
	if rule, ok := r.shims.Match(hostPath); ok {
		endpoint.EffectivePath = rule.CanonicalPath
		endpoint.Shim = rule.Name
	}

	r.Logger.Debug("resolved runtime endpoint",
		"raw", raw, "host_path", endpoint.HostPath,
		"effective_path", endpoint.EffectivePath, "shim", endpoint.Shim)

	if r.Pinger != nil {
		if err := r.Pinger.Ping(ctx, endpoint); err != nil {
			return Endpoint{}, &ResolutionError{Kind: DaemonUnreachable, Value: endpoint.HostURI(), Err: err}
		}
	}

	return endpoint, nil
}
