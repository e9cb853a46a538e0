package ciboot

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/railwayapp/ciboot/internal/bootstrap"
	"github.com/railwayapp/ciboot/internal/environment"
	"github.com/railwayapp/ciboot/internal/export"
	"github.com/railwayapp/ciboot/internal/filesystems"
	"github.com/railwayapp/ciboot/internal/orchestration"
	"github.com/railwayapp/ciboot/internal/readiness"
	"github.com/railwayapp/ciboot/internal/secrets"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "ciboot",
	Short: "Bootstrap a containerized CI service on this host",
	Long: `ciboot prepares and starts the CI service declared in a compose file:
1. Resolve - Find the active container runtime socket (VM shims remapped)
2. Secrets - Generate credential files with owner-only permissions
3. Descriptor - Write the KEY=VALUE file the compose definition consumes
4. Start - Hand off to docker compose
5. Wait - Poll the service until it answers or the wait times out`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		report, err := runBootstrap(ctx)
		if err != nil {
			// a report, when there is one, already carries the error
			if report == nil {
				fmt.Printf("Bootstrap failed: %v\n", err)
			}
			os.Exit(1)
		}
	},
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.ciboot.yaml)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "log every step, including probe attempts")
	rootCmd.PersistentFlags().String("docker-host", "", "runtime endpoint to use instead of DOCKER_HOST / docker context")
	rootCmd.PersistentFlags().String("shims-file", "", "TOML file with extra VM-shim socket rules")
	rootCmd.PersistentFlags().Bool("ping", false, "ping the daemon after resolving its socket")
	rootCmd.PersistentFlags().String("url", "", "service URL (default "+environment.DefaultServiceURL+")")
	rootCmd.PersistentFlags().String("env-file", ".env", "descriptor file written for compose")
	rootCmd.PersistentFlags().String("secrets-dir", "secrets", "directory holding the secret files")
	rootCmd.PersistentFlags().StringSlice("secrets", secrets.DefaultNames, "secret names to provision")
	rootCmd.PersistentFlags().Duration("timeout", readiness.DefaultMaxWait, "maximum time to wait for the service")
	rootCmd.PersistentFlags().Duration("interval", readiness.DefaultInterval, "delay between readiness probes")
	rootCmd.PersistentFlags().String("probe-path", readiness.DefaultProbePath, "path probed below the service URL")
	rootCmd.PersistentFlags().Duration("probe-timeout", readiness.DefaultProbeTimeout, "timeout of a single probe")
	rootCmd.PersistentFlags().StringP("output", "o", "text", "report format: "+strings.Join(export.Formats(), ", "))

	rootCmd.Flags().String("email", "", "admin contact address (default "+environment.DefaultAdminEmail+")")
	rootCmd.PersistentFlags().StringP("compose-file", "f", "", "compose file (default: first of "+strings.Join(definitionDefaults(), ", ")+")")
	rootCmd.Flags().Bool("keep-secrets", false, "keep secrets that already have a file instead of rotating them")
	rootCmd.Flags().Bool("skip-start", false, "prepare secrets and descriptor without starting the service")
	rootCmd.Flags().Bool("build", false, "rebuild images when starting")
	rootCmd.Flags().String("project-name", "", "compose project name")
	rootCmd.Flags().Bool("non-interactive", false, "never prompt, use flags/config/defaults")

	cobra.CheckErr(viper.BindPFlags(rootCmd.PersistentFlags()))
	cobra.CheckErr(viper.BindPFlags(rootCmd.Flags()))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".ciboot")
	}

	viper.SetEnvPrefix("CIBOOT")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func runBootstrap(ctx context.Context) (*bootstrap.Report, error) {
	logger := newLogger()
	filesystem := filesystems.NewLocalFS()

	exporter, err := export.ForFormat(viper.GetString("output"))
	if err != nil {
		return nil, err
	}

	resolver, err := newResolver(filesystem, logger)
	if err != nil {
		return nil, err
	}

	inputs := environment.Inputs{
		ServiceURL: viper.GetString("url"),
		AdminEmail: viper.GetString("email"),
		Extra:      viper.GetStringMapString("env"),
	}
	var endpoints bootstrap.EndpointResolver = resolver
	if !viper.GetBool("non-interactive") && stdinIsTerminal() {
		endpoints, inputs, err = resolveThenPrompt(ctx, resolver, newPrompter(os.Stdin, os.Stderr), inputs)
		if err != nil {
			return nil, err
		}
	}

	store := secrets.NewProvisioner(filesystem, viper.GetString("secrets-dir"))
	store.Logger = logger

	launcher := orchestration.NewComposeLauncher()
	launcher.Build = viper.GetBool("build")
	launcher.Logger = logger

	orchestrator := bootstrap.NewOrchestrator(endpoints, store, launcher, newGate(logger), filesystem)
	orchestrator.Logger = logger

	report, runErr := orchestrator.Run(ctx, bootstrap.Options{
		DefinitionPath: viper.GetString("compose-file"),
		WorkDir:        ".",
		DescriptorPath: viper.GetString("env-file"),
		Inputs:         inputs,
		SecretNames:    viper.GetStringSlice("secrets"),
		KeepSecrets:    viper.GetBool("keep-secrets"),
		SkipStart:      viper.GetBool("skip-start"),
		ProjectName:    viper.GetString("project-name"),
		ProbePath:      viper.GetString("probe-path"),
	})

	output, err := exporter.Export(report)
	if err != nil {
		return report, fmt.Errorf("failed to render report: %w", err)
	}
	fmt.Print(string(output))

	return report, runErr
}
