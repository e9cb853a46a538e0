package runtime

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// ContextProvider answers "which endpoint does the active runtime context
// point at". An empty string with a nil error means no context is configured.
type ContextProvider interface {
	Endpoint(ctx context.Context) (string, error)

	// Name identifies the provider in diagnostics
	Name() string
}

// StaticProvider always reports the same endpoint
type StaticProvider struct {
	Host string
}

func NewStaticProvider(host string) *StaticProvider {
	return &StaticProvider{Host: host}
}

func (p *StaticProvider) Endpoint(ctx context.Context) (string, error) {
	return p.Host, nil
}

func (p *StaticProvider) Name() string {
	return "static"
}

// EnvContextProvider reads DOCKER_HOST, which overrides any CLI context
type EnvContextProvider struct {
	lookup func(string) (string, bool)
}

func NewEnvContextProvider() *EnvContextProvider {
	return &EnvContextProvider{lookup: os.LookupEnv}
}

func (p *EnvContextProvider) Endpoint(ctx context.Context) (string, error) {
	value, _ := p.lookup("DOCKER_HOST")
	return strings.TrimSpace(value), nil
}

func (p *EnvContextProvider) Name() string {
	return "env:DOCKER_HOST"
}

// CommandRunner runs an external command and returns its stdout
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// CLIContextProvider asks the container runtime CLI for the active context
type CLIContextProvider struct {
	Binary string
	run    CommandRunner
}

func NewCLIContextProvider(binary string) *CLIContextProvider {
	if binary == "" {
		binary = "docker"
	}
	return &CLIContextProvider{Binary: binary, run: execRunner}
}

// WithRunner swaps the command runner, used by tests
func (p *CLIContextProvider) WithRunner(run CommandRunner) *CLIContextProvider {
	p.run = run
	return p
}

func (p *CLIContextProvider) Endpoint(ctx context.Context) (string, error) {
	out, err := p.run(ctx, p.Binary, "context", "inspect", "--format", "{{.Endpoints.docker.Host}}")
	if err != nil {
		return "", fmt.Errorf("failed to inspect %s context: %w", p.Binary, err)
	}
	return strings.TrimSpace(string(out)), nil
}

func (p *CLIContextProvider) Name() string {
	return p.Binary + " context"
}

// ChainProvider returns the first non-empty endpoint from its providers.
// Errors from earlier providers are kept and reported only if nobody answers.
type ChainProvider struct {
	providers []ContextProvider
}

func NewChainProvider(providers ...ContextProvider) *ChainProvider {
	return &ChainProvider{providers: providers}
}

// DefaultProvider checks DOCKER_HOST first, then the docker CLI context
func DefaultProvider() *ChainProvider {
	return NewChainProvider(NewEnvContextProvider(), NewCLIContextProvider("docker"))
}

func (p *ChainProvider) Endpoint(ctx context.Context) (string, error) {
	var lastErr error
	for _, provider := range p.providers {
		endpoint, err := provider.Endpoint(ctx)
		if err != nil {
			lastErr = fmt.Errorf("%s: %w", provider.Name(), err)
			continue
		}
		if endpoint != "" {
			return endpoint, nil
		}
	}
	return "", lastErr
}

func (p *ChainProvider) Name() string {
	names := make([]string, 0, len(p.providers))
	for _, provider := range p.providers {
		names = append(names, provider.Name())
	}
	return strings.Join(names, ", ")
}
