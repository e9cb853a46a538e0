package ciboot

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/railwayapp/ciboot/internal/bootstrap"
	"github.com/railwayapp/ciboot/internal/environment"
	"github.com/railwayapp/ciboot/internal/runtime"
)

const maxPromptAttempts = 3

type prompter struct {
	in  *bufio.Reader
	out io.Writer
}

func newPrompter(in io.Reader, out io.Writer) *prompter {
	return &prompter{in: bufio.NewReader(in), out: out}
}

// ask prints the question with its default and returns the trimmed answer.
// An empty answer (or EOF) means "use the default" and is returned as "".
func (p *prompter) ask(question, def string) (string, error) {
	fmt.Fprintf(p.out, "%s [%s]: ", question, def)
	line, err := p.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	if errors.Is(err, io.EOF) && line == "" {
		fmt.Fprintln(p.out)
	}
	return strings.TrimSpace(line), nil
}

// promptInputs asks only for values that were not already configured
func promptInputs(p *prompter, inputs environment.Inputs) (environment.Inputs, error) {
	if strings.TrimSpace(inputs.ServiceURL) == "" {
		for attempt := 1; ; attempt++ {
			answer, err := p.ask("Service URL", environment.DefaultServiceURL)
			if err != nil {
				return inputs, err
			}
			if answer == "" {
				break
			}
			if _, err := environment.NormalizeURL(answer); err != nil {
				fmt.Fprintf(p.out, "  %v\n", err)
				if attempt == maxPromptAttempts {
					return inputs, err
				}
				continue
			}
			inputs.ServiceURL = answer
			break
		}
	}

	if strings.TrimSpace(inputs.AdminEmail) == "" {
		answer, err := p.ask("Admin email", environment.DefaultAdminEmail)
		if err != nil {
			return inputs, err
		}
		inputs.AdminEmail = answer
	}

	return inputs, nil
}

// resolvedEndpoint replays an earlier resolution so the runtime is only
// inspected once per run
type resolvedEndpoint struct {
	endpoint runtime.Endpoint
	err      error
}

func (r resolvedEndpoint) Resolve(context.Context) (runtime.Endpoint, error) {
	return r.endpoint, r.err
}

// resolveThenPrompt resolves the runtime before asking anything, so an
// operator on a host without a usable socket is not questioned for nothing.
// The returned resolver replays the outcome.
func resolveThenPrompt(ctx context.Context, resolver bootstrap.EndpointResolver, p *prompter, inputs environment.Inputs) (bootstrap.EndpointResolver, environment.Inputs, error) {
	endpoint, err := resolver.Resolve(ctx)
	replay := resolvedEndpoint{endpoint: endpoint, err: err}
	if err != nil {
		return replay, inputs, nil
	}

	inputs, err = promptInputs(p, inputs)
	if err != nil {
		return nil, inputs, fmt.Errorf("failed to read answers: %w", err)
	}
	return replay, inputs, nil
}
