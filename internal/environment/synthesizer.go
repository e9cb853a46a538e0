package environment

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/railwayapp/ciboot/internal/runtime"
)

const (
	DefaultServiceURL = "http://localhost:8080/"
	DefaultAdminEmail = "admin@example.com"
)

var keyPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidationError reports a descriptor value that breaks an invariant
type ValidationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

// Inputs are the user-supplied values, interactive or from config.
// Blank fields fall back to the defaults.
type Inputs struct {
	ServiceURL string
	AdminEmail string

	// Extra holds additional descriptor keys
	Extra map[string]string
}

// Defaults returns the built-in layer of the descriptor
func Defaults() Descriptor {
	return Descriptor{
		KeyServiceURL: DefaultServiceURL,
		KeyAdminEmail: DefaultAdminEmail,
	}
}

// Synthesize merges defaults, the resolved runtime endpoint and user inputs,
// in that order of increasing priority, and validates the result.
func Synthesize(inputs Inputs, endpoint runtime.Endpoint) (Descriptor, error) {
	descriptor := Defaults()

	descriptor[KeySocketPath] = endpoint.EffectivePath

	for key, value := range inputs.Extra {
		if !keyPattern.MatchString(key) {
			return nil, &ValidationError{Field: "key", Value: key, Reason: "must match " + keyPattern.String()}
		}
		if key == KeySocketPath && value != endpoint.EffectivePath {
			return nil, &ValidationError{
				Field:  KeySocketPath,
				Value:  value,
				Reason: fmt.Sprintf("must equal the resolved runtime socket %s", endpoint.EffectivePath),
			}
		}
		if strings.TrimSpace(value) == "" {
			continue
		}
		// secrets reach the service through files only
		if LooksSensitive(key, value) {
			return nil, &ValidationError{Field: "key", Value: key, Reason: "looks like credential material; provision it as a secret file instead"}
		}
		descriptor[key] = value
	}
	if v := strings.TrimSpace(inputs.ServiceURL); v != "" {
		descriptor[KeyServiceURL] = v
	}
	if v := strings.TrimSpace(inputs.AdminEmail); v != "" {
		descriptor[KeyAdminEmail] = v
	}

	normalized, err := NormalizeURL(descriptor[KeyServiceURL])
	if err != nil {
		return nil, err
	}
	descriptor[KeyServiceURL] = normalized

	if strings.TrimSpace(descriptor[KeyAdminEmail]) == "" {
		return nil, &ValidationError{Field: KeyAdminEmail, Reason: "must not be empty"}
	}

	if descriptor[KeySocketPath] == "" {
		return nil, &ValidationError{Field: KeySocketPath, Reason: "runtime endpoint has no effective socket path"}
	}

	if err := descriptor.validateFormat(); err != nil {
		return nil, err
	}

	return descriptor, nil
}

// NormalizeURL checks that raw is an http(s) URL with a host and makes sure
// it ends with a path separator
func NormalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil {
		return "", &ValidationError{Field: KeyServiceURL, Value: raw, Reason: err.Error()}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", &ValidationError{Field: KeyServiceURL, Value: raw, Reason: "scheme must be http or https"}
	}
	if u.Host == "" {
		return "", &ValidationError{Field: KeyServiceURL, Value: raw, Reason: "missing host"}
	}

	if u.RawQuery != "" || u.Fragment != "" {
		return "", &ValidationError{Field: KeyServiceURL, Value: raw, Reason: "must not carry a query or fragment"}
	}

	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
		if u.RawPath != "" {
			u.RawPath += "/"
		}
	}
	return u.String(), nil
}

// validateFormat checks what the KEY=VALUE format can represent
func (d Descriptor) validateFormat() error {
	for _, key := range d.Keys() {
		if !keyPattern.MatchString(key) {
			return &ValidationError{Field: "key", Value: key, Reason: "must match " + keyPattern.String()}
		}
		if strings.ContainsAny(d[key], "\r\n") {
			return &ValidationError{Field: key, Value: d[key], Reason: "value must be a single line"}
		}
	}
	return nil
}
