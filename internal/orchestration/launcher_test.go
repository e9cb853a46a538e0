package orchestration_test

import (
	"context"
	"errors"
	"io"
	"reflect"
	"slices"
	"strings"
	"testing"

	"github.com/railwayapp/ciboot/internal/environment"
	"github.com/railwayapp/ciboot/internal/orchestration"
	"github.com/railwayapp/ciboot/internal/runtime"
)

func testRequest() orchestration.Request {
	return orchestration.Request{
		DefinitionPath: "/work/deploy/compose.yaml",
		DescriptorPath: "/work/.env",
		Endpoint: runtime.Endpoint{
			Transport:     runtime.TransportUnixSocket,
			HostPath:      "/home/u/.colima/default/docker.sock",
			EffectivePath: "/var/run/docker.sock",
		},
		Descriptor: environment.Descriptor{
			environment.KeyServiceURL: "http://localhost:8080/",
		},
	}
}

func TestComposeLauncher_Command(t *testing.T) {
	launcher := orchestration.NewComposeLauncher().WithEnviron(func() []string {
		return []string{
			"PATH=/usr/bin",
			"DOCKER_HOST=tcp://elsewhere:2375",
			"DOCKER_CONTEXT=remote",
			"JENKINS_URL=http://shadow/",
		}
	})

	cmd, err := launcher.Command(testRequest())
	if err != nil {
		t.Fatalf("Command: %v", err)
	}

	wantArgs := []string{"compose", "-f", "/work/deploy/compose.yaml", "--env-file", "/work/.env", "up", "-d"}
	if cmd.Name != "docker" || !reflect.DeepEqual(cmd.Args, wantArgs) {
		t.Errorf("unexpected command: %s", cmd)
	}

	wantEnv := []string{"DOCKER_HOST=unix:///home/u/.colima/default/docker.sock", "PATH=/usr/bin"}
	if !reflect.DeepEqual(cmd.Env, wantEnv) {
		t.Errorf("expected env %v, got %v", wantEnv, cmd.Env)
	}
}

func TestComposeLauncher_BuildAndProject(t *testing.T) {
	launcher := orchestration.NewComposeLauncher().WithEnviron(func() []string { return nil })
	launcher.Build = true

	req := testRequest()
	req.ProjectName = "jenkins"
	cmd, err := launcher.Command(req)
	if err != nil {
		t.Fatalf("Command: %v", err)
	}
	if !slices.Contains(cmd.Args, "--build") {
		t.Errorf("expected --build in %v", cmd.Args)
	}
	idx := slices.Index(cmd.Args, "-p")
	if idx < 0 || cmd.Args[idx+1] != "jenkins" || idx > slices.Index(cmd.Args, "up") {
		t.Errorf("expected -p jenkins before up, got %v", cmd.Args)
	}
}

func TestComposeLauncher_Up(t *testing.T) {
	var ran orchestration.Command
	launcher := orchestration.NewComposeLauncher().
		WithEnviron(func() []string { return nil }).
		WithRunner(func(ctx context.Context, cmd orchestration.Command, w io.Writer) error {
			ran = cmd
			_, _ = io.WriteString(w, "Container jenkins Started\n")
			return nil
		})

	if err := launcher.Up(context.Background(), testRequest()); err != nil {
		t.Fatalf("Up: %v", err)
	}
	if ran.Name != "docker" {
		t.Errorf("expected runner to be invoked, got %+v", ran)
	}
}

func TestComposeLauncher_UpFailure(t *testing.T) {
	exitErr := errors.New("exit status 1")
	launcher := orchestration.NewComposeLauncher().
		WithEnviron(func() []string { return nil }).
		WithRunner(func(ctx context.Context, cmd orchestration.Command, w io.Writer) error {
			_, _ = io.WriteString(w, strings.Repeat("x", 10000))
			_, _ = io.WriteString(w, "\nerror: image not found\n")
			return exitErr
		})

	err := launcher.Up(context.Background(), testRequest())
	var launchErr *orchestration.LaunchError
	if !errors.As(err, &launchErr) {
		t.Fatalf("expected LaunchError, got %v", err)
	}
	if !errors.Is(err, exitErr) {
		t.Errorf("expected wrapped runner error, got %v", err)
	}
	if !strings.HasSuffix(launchErr.Output, "error: image not found") {
		t.Errorf("expected output tail to be kept, got %q", launchErr.Output)
	}
	if len(launchErr.Output) > 4<<10 {
		t.Errorf("expected output to be bounded, got %d bytes", len(launchErr.Output))
	}
	if !strings.Contains(launchErr.Command, "compose -f /work/deploy/compose.yaml") {
		t.Errorf("expected command in error, got %q", launchErr.Command)
	}
}

func TestComposeLauncher_InvalidRequest(t *testing.T) {
	launcher := orchestration.NewComposeLauncher().
		WithRunner(func(ctx context.Context, cmd orchestration.Command, w io.Writer) error {
			t.Fatal("runner must not be called for an invalid request")
			return nil
		})

	req := testRequest()
	req.Endpoint = runtime.Endpoint{}
	err := launcher.Up(context.Background(), req)
	var launchErr *orchestration.LaunchError
	if !errors.As(err, &launchErr) {
		t.Fatalf("expected LaunchError, got %v", err)
	}
}
