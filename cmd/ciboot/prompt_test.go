package ciboot

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/railwayapp/ciboot/internal/environment"
	"github.com/railwayapp/ciboot/internal/runtime"
)

func TestPromptInputs_BlankAnswersKeepDefaults(t *testing.T) {
	var out bytes.Buffer
	p := newPrompter(strings.NewReader("\n\n"), &out)

	inputs, err := promptInputs(p, environment.Inputs{})
	if err != nil {
		t.Fatalf("promptInputs: %v", err)
	}
	if inputs.ServiceURL != "" || inputs.AdminEmail != "" {
		t.Errorf("blank answers should leave fields empty, got %+v", inputs)
	}
	if !strings.Contains(out.String(), "Service URL [http://localhost:8080/]") {
		t.Errorf("expected default in question, got %q", out.String())
	}
}

func TestPromptInputs_Answers(t *testing.T) {
	var out bytes.Buffer
	p := newPrompter(strings.NewReader("https://ci.example.com\nops@example.com\n"), &out)

	inputs, err := promptInputs(p, environment.Inputs{})
	if err != nil {
		t.Fatalf("promptInputs: %v", err)
	}
	if inputs.ServiceURL != "https://ci.example.com" || inputs.AdminEmail != "ops@example.com" {
		t.Errorf("unexpected inputs %+v", inputs)
	}
}

func TestPromptInputs_SkipsConfiguredValues(t *testing.T) {
	var out bytes.Buffer
	p := newPrompter(strings.NewReader("ops@example.com\n"), &out)

	inputs, err := promptInputs(p, environment.Inputs{ServiceURL: "http://jenkins:8080"})
	if err != nil {
		t.Fatalf("promptInputs: %v", err)
	}
	if strings.Contains(out.String(), "Service URL") {
		t.Error("configured URL should not be asked for")
	}
	if inputs.ServiceURL != "http://jenkins:8080" || inputs.AdminEmail != "ops@example.com" {
		t.Errorf("unexpected inputs %+v", inputs)
	}
}

func TestPromptInputs_RetriesInvalidURL(t *testing.T) {
	var out bytes.Buffer
	p := newPrompter(strings.NewReader("ftp://nope\nhttp://localhost:9090\n\n"), &out)

	inputs, err := promptInputs(p, environment.Inputs{})
	if err != nil {
		t.Fatalf("promptInputs: %v", err)
	}
	if inputs.ServiceURL != "http://localhost:9090" {
		t.Errorf("expected second answer to be used, got %q", inputs.ServiceURL)
	}
	if strings.Count(out.String(), "Service URL") != 2 {
		t.Errorf("expected the question twice, got %q", out.String())
	}
}

func TestPromptInputs_GivesUpAfterRepeatedInvalidURL(t *testing.T) {
	var out bytes.Buffer
	p := newPrompter(strings.NewReader("a\nb\nc\n"), &out)

	if _, err := promptInputs(p, environment.Inputs{}); err == nil {
		t.Fatal("expected error after repeated invalid answers")
	}
}

func TestPromptInputs_EOF(t *testing.T) {
	var out bytes.Buffer
	p := newPrompter(strings.NewReader(""), &out)

	inputs, err := promptInputs(p, environment.Inputs{})
	if err != nil {
		t.Fatalf("EOF should mean defaults, got %v", err)
	}
	if inputs.ServiceURL != "" || inputs.AdminEmail != "" {
		t.Errorf("unexpected inputs %+v", inputs)
	}
}

type countingResolver struct {
	endpoint runtime.Endpoint
	err      error
	calls    int
}

func (r *countingResolver) Resolve(context.Context) (runtime.Endpoint, error) {
	r.calls++
	return r.endpoint, r.err
}

func TestResolveThenPrompt_ResolutionFailureSkipsQuestions(t *testing.T) {
	var out bytes.Buffer
	p := newPrompter(strings.NewReader("https://ci.example.com\nops@example.com\n"), &out)
	resolveErr := errors.New("no socket")
	resolver := &countingResolver{err: resolveErr}

	replay, inputs, err := resolveThenPrompt(context.Background(), resolver, p, environment.Inputs{})
	if err != nil {
		t.Fatalf("resolveThenPrompt: %v", err)
	}
	if out.Len() != 0 {
		t.Errorf("expected no questions, got %q", out.String())
	}
	if inputs.ServiceURL != "" {
		t.Errorf("inputs should be untouched, got %+v", inputs)
	}
	if _, err := replay.Resolve(context.Background()); !errors.Is(err, resolveErr) {
		t.Errorf("expected replayed error, got %v", err)
	}
	if resolver.calls != 1 {
		t.Errorf("expected one resolution, got %d", resolver.calls)
	}
}

func TestResolveThenPrompt_ReplaysEndpoint(t *testing.T) {
	var out bytes.Buffer
	p := newPrompter(strings.NewReader("https://ci.example.com\nops@example.com\n"), &out)
	resolver := &countingResolver{endpoint: runtime.Endpoint{HostPath: "/var/run/docker.sock", EffectivePath: "/var/run/docker.sock"}}

	replay, inputs, err := resolveThenPrompt(context.Background(), resolver, p, environment.Inputs{})
	if err != nil {
		t.Fatalf("resolveThenPrompt: %v", err)
	}
	if inputs.ServiceURL != "https://ci.example.com" {
		t.Errorf("unexpected inputs %+v", inputs)
	}

	endpoint, err := replay.Resolve(context.Background())
	if err != nil || endpoint.HostPath != "/var/run/docker.sock" {
		t.Errorf("unexpected replay %+v, %v", endpoint, err)
	}
	if resolver.calls != 1 {
		t.Errorf("expected one resolution, got %d", resolver.calls)
	}
}
