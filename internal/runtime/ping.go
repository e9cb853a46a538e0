package runtime

import (
	"context"
	"fmt"
	"time"

	"github.com/docker/docker/client"
)

// DockerPinger contacts the daemon through the Engine API on the host socket
type DockerPinger struct {
	Timeout time.Duration
}

func NewDockerPinger() *DockerPinger {
	return &DockerPinger{Timeout: 5 * time.Second}
}

func (p *DockerPinger) Ping(ctx context.Context, endpoint Endpoint) error {
	cli, err := client.NewClientWithOpts(
		client.WithHost(endpoint.HostURI()),
		client.WithAPIVersionNegotiation(),
	)
	if err != nil {
		return fmt.Errorf("failed to create docker client: %w", err)
	}
	defer cli.Close()

	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}

	if _, err := cli.Ping(ctx); err != nil {
		return fmt.Errorf("failed to ping docker daemon: %w", err)
	}
	return nil
}
