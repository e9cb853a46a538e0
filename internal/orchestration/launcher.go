package orchestration

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/railwayapp/ciboot/internal/environment"
	"github.com/railwayapp/ciboot/internal/runtime"
)

// Request describes one hand-off to the orchestration layer
type Request struct {
	DefinitionPath string
	DescriptorPath string
	Endpoint       runtime.Endpoint
	// Descriptor keys are removed from the inherited environment so the
	// descriptor file is the only source for them
	Descriptor environment.Descriptor
	// ProjectName is optional; compose derives one from the directory
	ProjectName string
}

// Launcher starts the declared services
type Launcher interface {
	Up(ctx context.Context, req Request) error
}

// LaunchError is returned when the orchestration layer rejects the request
type LaunchError struct {
	Command string
	Output  string
	Err     error
}

func (e *LaunchError) Error() string {
	msg := fmt.Sprintf("failed to run %q: %v", e.Command, e.Err)
	if e.Output != "" {
		msg += "\n" + e.Output
	}
	return msg
}

func (e *LaunchError) Unwrap() error {
	return e.Err
}

// Command is a fully described external invocation
type Command struct {
	Name string
	Args []string
	Env  []string
	Dir  string
}

func (c Command) String() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

// Runner executes a command, streaming its output to w
type Runner func(ctx context.Context, cmd Command, w io.Writer) error

func execRunner(ctx context.Context, cmd Command, w io.Writer) error {
	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	c.Env = cmd.Env
	c.Dir = cmd.Dir
	c.Stdout = w
	c.Stderr = w
	return c.Run()
}

// outputTail bounds how much compose output is kept for error messages
const outputTail = 4 << 10

// ComposeLauncher runs `docker compose up -d` against the resolved socket
type ComposeLauncher struct {
	Binary string
	// Build adds --build so image changes are picked up
	Build  bool
	Logger *log.Logger

	run     Runner
	environ func() []string
}

func NewComposeLauncher() *ComposeLauncher {
	return &ComposeLauncher{
		Binary:  "docker",
		Logger:  log.New(io.Discard),
		run:     execRunner,
		environ: os.Environ,
	}
}

// WithRunner swaps the command runner, used by tests
func (l *ComposeLauncher) WithRunner(run Runner) *ComposeLauncher {
	l.run = run
	return l
}

// WithEnviron swaps the inherited environment source
func (l *ComposeLauncher) WithEnviron(environ func() []string) *ComposeLauncher {
	l.environ = environ
	return l
}

// Command builds the invocation for req without running it
func (l *ComposeLauncher) Command(req Request) (Command, error) {
	if req.DefinitionPath == "" {
		return Command{}, fmt.Errorf("definition path is required")
	}
	if req.DescriptorPath == "" {
		return Command{}, fmt.Errorf("descriptor path is required")
	}
	if req.Endpoint.HostPath == "" {
		return Command{}, fmt.Errorf("resolved runtime endpoint is required")
	}

	args := []string{"compose", "-f", req.DefinitionPath, "--env-file", req.DescriptorPath}
	if req.ProjectName != "" {
		args = append(args, "-p", req.ProjectName)
	}
	args = append(args, "up", "-d")
	if l.Build {
		args = append(args, "--build")
	}

	return Command{
		Name: l.Binary,
		Args: args,
		Env:  l.env(req),
	}, nil
}

func (l *ComposeLauncher) env(req Request) []string {
	var env []string
	for _, kv := range l.environ() {
		key, _, _ := strings.Cut(kv, "=")
		if key == "DOCKER_HOST" || key == "DOCKER_CONTEXT" {
			continue
		}
		if _, ok := req.Descriptor[key]; ok {
			continue
		}
		env = append(env, kv)
	}
	env = append(env, "DOCKER_HOST="+req.Endpoint.HostURI())
	sort.Strings(env)
	return env
}

func (l *ComposeLauncher) Up(ctx context.Context, req Request) error {
	cmd, err := l.Command(req)
	if err != nil {
		return &LaunchError{Command: l.Binary + " compose up", Err: err}
	}

	l.Logger.Info("starting services", "definition", req.DefinitionPath, "docker_host", req.Endpoint.HostURI())

	var out tailBuffer
	if err := l.run(ctx, cmd, &out); err != nil {
		return &LaunchError{Command: cmd.String(), Output: strings.TrimSpace(out.String()), Err: err}
	}
	l.Logger.Debug("compose output", "output", strings.TrimSpace(out.String()))
	return nil
}

// tailBuffer keeps only the last outputTail bytes written to it
type tailBuffer struct {
	buf bytes.Buffer
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	n := len(p)
	b.buf.Write(p)
	if extra := b.buf.Len() - outputTail; extra > 0 {
		b.buf.Next(extra)
	}
	return n, nil
}

func (b *tailBuffer) String() string {
	return b.buf.String()
}
