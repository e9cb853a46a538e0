package verify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

const DefaultTimeout = 10 * time.Second

// Credentials of one managed-service user. The password is only ever sent
// as basic auth.
type Credentials struct {
	User     string
	Password string
}

func (c Credentials) String() string {
	return c.User
}

type Role string

const (
	Anonymous Role = "anonymous"
	Admin     Role = "admin"
	Devops    Role = "devops"
)

// Result of one access check
type Result struct {
	Name   string `json:"name" yaml:"name"`
	Passed bool   `json:"passed" yaml:"passed"`
	Status int    `json:"status,omitempty" yaml:"status,omitempty"`
	Detail string `json:"detail,omitempty" yaml:"detail,omitempty"`
}

// Check is a single request with an expected outcome
type Check struct {
	Name          string
	As            Role
	WrongPassword bool
	Path          string
	NoRedirects   bool

	// Status lists accepted codes; NotStatus rejects one code instead
	Status    []int
	NotStatus int
	// AnyKey requires the JSON body to contain at least one of these keys
	AnyKey []string
	// Contains requires the lower-cased body to contain this text
	Contains string
}

// DefaultChecks mirror the access model the service is configured with:
// admin administers, devops works with jobs but cannot administer.
var DefaultChecks = []Check{
	{Name: "login page reachable", As: Anonymous, Path: "login", Status: []int{200}},
	{Name: "web interface reachable", As: Anonymous, Path: "", Status: []int{200}, Contains: "jenkins"},
	{Name: "admin login", As: Admin, Path: "api/json", Status: []int{200}, AnyKey: []string{"mode", "jobs"}},
	{Name: "devops login", As: Devops, Path: "api/json", Status: []int{200}, AnyKey: []string{"mode", "jobs"}},
	{Name: "admin wrong password rejected", As: Admin, WrongPassword: true, Path: "api/json", Status: []int{401}},
	{Name: "devops wrong password rejected", As: Devops, WrongPassword: true, Path: "api/json", Status: []int{401}},
	{Name: "admin script console", As: Admin, Path: "script", Status: []int{200}},
	{Name: "admin manage page", As: Admin, Path: "manage", Status: []int{200}},
	{Name: "admin configuration as code", As: Admin, Path: "configuration-as-code", Status: []int{200}},
	{Name: "devops manage page denied", As: Devops, Path: "manage", Status: []int{403}},
	{Name: "devops script console denied", As: Devops, Path: "script", Status: []int{403}},
	{Name: "devops view read", As: Devops, Path: "api/json", Status: []int{200}, AnyKey: []string{"views", "jobs"}},
}

const wrongPassword = "wrong_password"

type Verifier struct {
	base   *url.URL
	admin  Credentials
	devops Credentials

	client     *http.Client
	noRedirect *http.Client

	Checks []Check
	// JobName is the scratch job used for the job permission checks;
	// empty disables them
	JobName string
	Logger  *log.Logger
}

func NewVerifier(serviceURL string, admin, devops Credentials, timeout time.Duration) (*Verifier, error) {
	base, err := url.Parse(serviceURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse service url %q: %w", serviceURL, err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("service url %q must be absolute", serviceURL)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Verifier{
		base:   base,
		admin:  admin,
		devops: devops,
		client: &http.Client{Timeout: timeout},
		noRedirect: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		Checks:  DefaultChecks,
		JobName: "ciboot-verify",
		Logger:  log.New(io.Discard),
	}, nil
}

// Run executes every check and the job lifecycle checks. It stops early
// only when ctx is done.
func (v *Verifier) Run(ctx context.Context) []Result {
	results := make([]Result, 0, len(v.Checks)+4)
	for _, check := range v.Checks {
		if ctx.Err() != nil {
			break
		}
		result := v.runCheck(ctx, check)
		v.Logger.Debug("access check", "name", result.Name, "passed", result.Passed, "status", result.Status)
		results = append(results, result)
	}
	if v.JobName != "" && ctx.Err() == nil {
		results = append(results, v.jobChecks(ctx)...)
	}
	return results
}

// Failed counts results that did not pass
func Failed(results []Result) int {
	n := 0
	for _, r := range results {
		if !r.Passed {
			n++
		}
	}
	return n
}

func (v *Verifier) credentials(role Role, wrong bool) *Credentials {
	var creds Credentials
	switch role {
	case Admin:
		creds = v.admin
	case Devops:
		creds = v.devops
	default:
		return nil
	}
	if wrong {
		creds.Password = wrongPassword
	}
	return &creds
}

func (v *Verifier) runCheck(ctx context.Context, check Check) Result {
	result := Result{Name: check.Name}

	resp, body, err := v.do(ctx, http.MethodGet, check.Path, v.credentials(check.As, check.WrongPassword), nil, nil, check.NoRedirects)
	if err != nil {
		result.Detail = err.Error()
		return result
	}
	result.Status = resp.StatusCode

	switch {
	case len(check.Status) > 0 && !slices.Contains(check.Status, resp.StatusCode):
		result.Detail = fmt.Sprintf("expected status %v, got %d", check.Status, resp.StatusCode)
	case check.NotStatus != 0 && resp.StatusCode == check.NotStatus:
		result.Detail = fmt.Sprintf("unexpected status %d", resp.StatusCode)
	case len(check.AnyKey) > 0 && !hasAnyKey(body, check.AnyKey):
		result.Detail = fmt.Sprintf("response has none of %v", check.AnyKey)
	case check.Contains != "" && !strings.Contains(strings.ToLower(string(body)), check.Contains):
		result.Detail = fmt.Sprintf("response does not mention %q", check.Contains)
	default:
		result.Passed = true
	}
	return result
}

func hasAnyKey(body []byte, keys []string) bool {
	var decoded map[string]json.RawMessage
	if err := json.Unmarshal(body, &decoded); err != nil {
		return false
	}
	for _, key := range keys {
		if _, ok := decoded[key]; ok {
			return true
		}
	}
	return false
}

func (v *Verifier) do(ctx context.Context, method, path string, creds *Credentials, header http.Header, body []byte, noRedirects bool) (*http.Response, []byte, error) {
	ref, err := url.Parse(strings.TrimPrefix(path, "/"))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse path %q: %w", path, err)
	}
	target := v.base.ResolveReference(ref).String()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build request for %s: %w", target, err)
	}
	for key, values := range header {
		req.Header[key] = values
	}
	if creds != nil {
		req.SetBasicAuth(creds.User, creds.Password)
	}

	client := v.client
	if noRedirects {
		client = v.noRedirect
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("%s %s: %w", method, target, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return resp, nil, fmt.Errorf("failed to read response from %s: %w", target, err)
	}
	return resp, data, nil
}
