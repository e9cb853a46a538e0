package bootstrap

import (
	"time"

	"github.com/railwayapp/ciboot/internal/readiness"
	"github.com/railwayapp/ciboot/internal/runtime"
)

type Outcome int

const (
	Success Outcome = iota
	Partial
	Failure
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case Partial:
		return "partial"
	case Failure:
		return "failure"
	default:
		return "unknown"
	}
}

func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// ExitCode maps the outcome to the process exit status. A readiness
// timeout is not a failure.
func (o Outcome) ExitCode() int {
	if o == Failure {
		return 1
	}
	return 0
}

// Stage names the step of a bootstrap run
type Stage string

const (
	StageResolve    Stage = "resolve"
	StageSecrets    Stage = "secrets"
	StageDescriptor Stage = "descriptor"
	StageLaunch     Stage = "launch"
	StageReadiness  Stage = "readiness"
)

// ReadinessSummary is the exported view of a readiness.Result
type ReadinessSummary struct {
	Status    string `json:"status" yaml:"status"`
	URL       string `json:"url" yaml:"url"`
	Attempts  int    `json:"attempts" yaml:"attempts"`
	Elapsed   string `json:"elapsed" yaml:"elapsed"`
	LastError string `json:"lastError,omitempty" yaml:"lastError,omitempty"`
}

func summarize(url string, result readiness.Result) *ReadinessSummary {
	summary := &ReadinessSummary{
		Status:   result.Status.String(),
		URL:      url,
		Attempts: result.Attempts,
		Elapsed:  result.Elapsed.Round(time.Millisecond).String(),
	}
	if result.Err != nil {
		summary.LastError = result.Err.Error()
	}
	return summary
}

// Report is the single result of a bootstrap run. It never holds secret
// values, only names and paths.
type Report struct {
	Outcome Outcome `json:"outcome" yaml:"outcome"`
	// FailedStage is set when Outcome is Failure
	FailedStage Stage `json:"failedStage,omitempty" yaml:"failedStage,omitempty"`

	RuntimeEndpoint string `json:"runtimeEndpoint,omitempty" yaml:"runtimeEndpoint,omitempty"`
	HostSocket      string `json:"hostSocket,omitempty" yaml:"hostSocket,omitempty"`
	EffectiveSocket string `json:"effectiveSocket,omitempty" yaml:"effectiveSocket,omitempty"`
	Shim            string `json:"shim,omitempty" yaml:"shim,omitempty"`

	SecretsDir       string   `json:"secretsDir,omitempty" yaml:"secretsDir,omitempty"`
	SecretsGenerated []string `json:"secretsGenerated,omitempty" yaml:"secretsGenerated,omitempty"`
	SecretsPreserved []string `json:"secretsPreserved,omitempty" yaml:"secretsPreserved,omitempty"`

	DefinitionPath string `json:"definitionPath,omitempty" yaml:"definitionPath,omitempty"`
	DescriptorPath string `json:"descriptorPath,omitempty" yaml:"descriptorPath,omitempty"`
	ServiceURL     string `json:"serviceUrl,omitempty" yaml:"serviceUrl,omitempty"`

	Started   bool              `json:"started" yaml:"started"`
	Readiness *ReadinessSummary `json:"readiness,omitempty" yaml:"readiness,omitempty"`

	Error string `json:"error,omitempty" yaml:"error,omitempty"`
}

func (r *Report) setEndpoint(endpoint runtime.Endpoint) {
	r.RuntimeEndpoint = endpoint.Raw
	r.HostSocket = endpoint.HostPath
	r.EffectiveSocket = endpoint.EffectivePath
	r.Shim = endpoint.Shim
}
