package readiness

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultProbePath    = "login"
	DefaultProbeTimeout = 5 * time.Second
)

// Probe performs a single liveness check. A nil error means ready.
type Probe interface {
	Check(ctx context.Context, target string) error
}

// StatusError is returned for responses the service is not ready to serve
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("probe %s returned %d", e.URL, e.StatusCode)
}

// HTTPProbe issues a GET and treats any status below 500 as ready. Redirects
// are not followed: a redirect to the login page already proves the service
// is answering.
type HTTPProbe struct {
	client *http.Client
}

func NewHTTPProbe(timeout time.Duration) *HTTPProbe {
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	return &HTTPProbe{
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

func (p *HTTPProbe) Check(ctx context.Context, target string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("failed to build probe request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode >= http.StatusInternalServerError {
		return &StatusError{URL: target, StatusCode: resp.StatusCode}
	}
	return nil
}

// ProbeURL resolves path against the service URL, keeping any path prefix
// the service is mounted under
func ProbeURL(serviceURL, path string) (string, error) {
	base, err := url.Parse(serviceURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse service url %q: %w", serviceURL, err)
	}
	if base.Scheme == "" || base.Host == "" {
		return "", fmt.Errorf("service url %q must be absolute", serviceURL)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}

	ref, err := url.Parse(strings.TrimPrefix(path, "/"))
	if err != nil {
		return "", fmt.Errorf("failed to parse probe path %q: %w", path, err)
	}
	return base.ResolveReference(ref).String(), nil
}
