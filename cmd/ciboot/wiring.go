package ciboot

import (
	"os"

	"github.com/charmbracelet/log"
	"github.com/railwayapp/ciboot/internal/definition"
	"github.com/railwayapp/ciboot/internal/filesystems"
	"github.com/railwayapp/ciboot/internal/readiness"
	"github.com/railwayapp/ciboot/internal/runtime"
	"github.com/spf13/viper"
	"golang.org/x/term"
)

// newLogger writes to stderr, as JSON when stderr is not a terminal so
// CI logs stay machine readable
func newLogger() *log.Logger {
	options := log.Options{Prefix: "ciboot"}
	if !term.IsTerminal(int(os.Stderr.Fd())) {
		options.Formatter = log.JSONFormatter
	}
	logger := log.NewWithOptions(os.Stderr, options)
	if viper.GetBool("verbose") {
		logger.SetLevel(log.DebugLevel)
	}
	return logger
}

func stdinIsTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

func newResolver(filesystem filesystems.FileSystem, logger *log.Logger) (*runtime.Resolver, error) {
	var provider runtime.ContextProvider = runtime.DefaultProvider()
	if host := viper.GetString("docker-host"); host != "" {
		provider = runtime.NewStaticProvider(host)
	}

	var extra []runtime.ShimRule
	if path := viper.GetString("shims-file"); path != "" {
		rules, err := runtime.LoadShimRules(filesystem, path)
		if err != nil {
			return nil, err
		}
		extra = rules
	}

	resolver := runtime.NewResolver(provider, filesystem, runtime.NewShimTable(extra...))
	resolver.Logger = logger
	if viper.GetBool("ping") {
		resolver.Pinger = runtime.NewDockerPinger()
	}
	return resolver, nil
}

func newGate(logger *log.Logger) *readiness.Gate {
	gate := readiness.NewGate(readiness.NewHTTPProbe(viper.GetDuration("probe-timeout")))
	gate.MaxWait = viper.GetDuration("timeout")
	gate.Interval = viper.GetDuration("interval")
	gate.Logger = logger
	return gate
}

func definitionDefaults() []string {
	return definition.DefaultFiles
}
