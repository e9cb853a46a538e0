package bootstrap

import (
	"context"
	"fmt"
	"io"
	"slices"

	"github.com/charmbracelet/log"
	"github.com/railwayapp/ciboot/internal/definition"
	"github.com/railwayapp/ciboot/internal/environment"
	"github.com/railwayapp/ciboot/internal/filesystems"
	"github.com/railwayapp/ciboot/internal/orchestration"
	"github.com/railwayapp/ciboot/internal/readiness"
	"github.com/railwayapp/ciboot/internal/runtime"
	"github.com/railwayapp/ciboot/internal/secrets"
)

// EndpointResolver finds the container runtime socket
type EndpointResolver interface {
	Resolve(ctx context.Context) (runtime.Endpoint, error)
}

// SecretStore generates and persists credentials
type SecretStore interface {
	Dir() string
	Existing(names []string) []string
	Provision(ctx context.Context, names []string) (map[string]string, error)
}

// ReadinessGate waits for the started service to answer
type ReadinessGate interface {
	WaitUntilReady(ctx context.Context, target string) readiness.Result
}

type Options struct {
	// DefinitionPath is the compose file; when empty it is searched for in WorkDir
	DefinitionPath string
	WorkDir        string
	DescriptorPath string

	Inputs environment.Inputs

	// SecretNames defaults to secrets.DefaultNames
	SecretNames []string
	// KeepSecrets preserves secrets that already have a file
	KeepSecrets bool

	// SkipStart stops after the descriptor is written
	SkipStart   bool
	ProjectName string
	ProbePath   string
}

type Orchestrator struct {
	Resolver   EndpointResolver
	Secrets    SecretStore
	Launcher   orchestration.Launcher
	Gate       ReadinessGate
	FileSystem filesystems.FileSystem
	Logger     *log.Logger

	// DefaultSecretNames is used when Options.SecretNames is empty
	DefaultSecretNames []string
}

func NewOrchestrator(resolver EndpointResolver, store SecretStore, launcher orchestration.Launcher, gate ReadinessGate, filesystem filesystems.FileSystem) *Orchestrator {
	return &Orchestrator{
		Resolver:   resolver,
		Secrets:    store,
		Launcher:   launcher,
		Gate:       gate,
		FileSystem: filesystem,
		Logger:     log.New(io.Discard),

		DefaultSecretNames: secrets.DefaultNames,
	}
}

// Run executes one bootstrap. The returned error is non-nil exactly when
// the report outcome is Failure; the report is always populated with
// whatever was completed.
func (o *Orchestrator) Run(ctx context.Context, opts Options) (*Report, error) {
	report := &Report{}
	logger := o.logger()

	fail := func(stage Stage, err error) (*Report, error) {
		report.Outcome = Failure
		report.FailedStage = stage
		report.Error = err.Error()
		logger.Error("bootstrap failed", "stage", string(stage), "err", err)
		return report, err
	}

	// 1. runtime endpoint
	logger.Info("resolving container runtime")
	endpoint, err := o.Resolver.Resolve(ctx)
	if err != nil {
		return fail(StageResolve, fmt.Errorf("failed to resolve runtime endpoint: %w", err))
	}
	report.setEndpoint(endpoint)
	logger.Info("resolved runtime", "host", endpoint.HostPath, "effective", endpoint.EffectivePath, "shim", endpoint.Shim)

	// 2. secrets
	names := opts.SecretNames
	if len(names) == 0 {
		names = o.DefaultSecretNames
	}
	names = secrets.NormalizeNames(names)
	report.SecretsDir = o.Secrets.Dir()

	var preserved []string
	if opts.KeepSecrets {
		preserved = o.Secrets.Existing(names)
	}
	generate := make([]string, 0, len(names))
	for _, name := range names {
		if !slices.Contains(preserved, name) {
			generate = append(generate, name)
		}
	}

	logger.Info("provisioning secrets", "dir", o.Secrets.Dir(), "generate", len(generate), "preserve", len(preserved))
	paths, err := o.Secrets.Provision(ctx, generate)
	if err != nil {
		return fail(StageSecrets, err)
	}
	for name := range paths {
		report.SecretsGenerated = append(report.SecretsGenerated, name)
	}
	slices.Sort(report.SecretsGenerated)
	report.SecretsPreserved = preserved

	// 3. descriptor
	descriptor, def, err := o.prepareDescriptor(ctx, opts, endpoint)
	if def != nil {
		report.DefinitionPath = def.Path
	}
	if err != nil {
		return fail(StageDescriptor, err)
	}
	report.DescriptorPath = opts.DescriptorPath
	report.ServiceURL = descriptor.ServiceURL()

	// 4. hand-off
	if opts.SkipStart {
		logger.Info("skipping service start")
		report.Outcome = Success
		return report, nil
	}

	err = o.Launcher.Up(ctx, orchestration.Request{
		DefinitionPath: def.Path,
		DescriptorPath: opts.DescriptorPath,
		Endpoint:       endpoint,
		Descriptor:     descriptor,
		ProjectName:    opts.ProjectName,
	})
	if err != nil {
		return fail(StageLaunch, err)
	}
	report.Started = true

	// 5. readiness
	probePath := opts.ProbePath
	if probePath == "" {
		probePath = readiness.DefaultProbePath
	}
	target, err := readiness.ProbeURL(descriptor.ServiceURL(), probePath)
	if err != nil {
		return fail(StageReadiness, err)
	}

	logger.Info("waiting for service", "url", target)
	result := o.Gate.WaitUntilReady(ctx, target)
	report.Readiness = summarize(target, result)

	if result.Status == readiness.Ready {
		logger.Info("service is ready", "attempts", result.Attempts, "elapsed", result.Elapsed)
		report.Outcome = Success
	} else {
		logger.Warn("service did not become ready; it may still be starting", "url", target, "attempts", result.Attempts, "err", result.Err)
		report.Outcome = Partial
	}
	return report, nil
}

func (o *Orchestrator) prepareDescriptor(ctx context.Context, opts Options, endpoint runtime.Endpoint) (environment.Descriptor, *definition.Definition, error) {
	if opts.DescriptorPath == "" {
		return nil, nil, fmt.Errorf("descriptor path is required")
	}

	descriptor, err := environment.Synthesize(opts.Inputs, endpoint)
	if err != nil {
		return nil, nil, err
	}

	definitionPath := opts.DefinitionPath
	if definitionPath == "" {
		workDir := opts.WorkDir
		if workDir == "" {
			workDir = "."
		}
		definitionPath, err = definition.Find(o.FileSystem, workDir)
		if err != nil {
			return nil, nil, err
		}
	}

	def, err := definition.Load(ctx, o.FileSystem, definitionPath)
	if err != nil {
		return nil, nil, err
	}
	if err := def.Check(ctx, descriptor); err != nil {
		return nil, def, err
	}

	if err := environment.WriteFile(o.FileSystem, opts.DescriptorPath, descriptor); err != nil {
		return nil, def, fmt.Errorf("failed to write descriptor %s: %w", opts.DescriptorPath, err)
	}
	o.logger().Info("wrote descriptor", "path", opts.DescriptorPath, "keys", len(descriptor))

	return descriptor, def, nil
}

func (o *Orchestrator) logger() *log.Logger {
	if o.Logger == nil {
		return log.New(io.Discard)
	}
	return o.Logger
}
