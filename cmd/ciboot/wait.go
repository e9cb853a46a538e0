package ciboot

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/railwayapp/ciboot/internal/environment"
	"github.com/railwayapp/ciboot/internal/filesystems"
	"github.com/railwayapp/ciboot/internal/readiness"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var waitCmd = &cobra.Command{
	Use:   "wait",
	Short: "Wait until the service answers its liveness probe",
	Long: `Wait runs only the readiness gate against the service URL (from --url,
the descriptor file, or the default). Unlike the bootstrap, a timeout exits
non-zero so scripts can gate on it.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		result, err := runWait(ctx)
		if err != nil {
			fmt.Printf("Wait failed: %v\n", err)
			os.Exit(1)
		}
		if result.Status != readiness.Ready {
			stop()
			os.Exit(1)
		}
	},
}

// serviceURL picks the configured URL, then the descriptor's, then the default
func serviceURL(filesystem filesystems.FileSystem) (string, error) {
	if configured := viper.GetString("url"); configured != "" {
		return environment.NormalizeURL(configured)
	}
	if descriptor, err := environment.Load(filesystem, viper.GetString("env-file")); err == nil && descriptor.ServiceURL() != "" {
		return descriptor.ServiceURL(), nil
	}
	return environment.DefaultServiceURL, nil
}

func runWait(ctx context.Context) (readiness.Result, error) {
	base, err := serviceURL(filesystems.NewLocalFS())
	if err != nil {
		return readiness.Result{}, err
	}
	target, err := readiness.ProbeURL(base, viper.GetString("probe-path"))
	if err != nil {
		return readiness.Result{}, err
	}

	gate := newGate(newLogger())
	fmt.Printf("Waiting up to %s for %s\n", gate.MaxWait, target)

	result := gate.WaitUntilReady(ctx, target)
	fmt.Printf("Status: %s after %d attempt(s) in %s\n", result.Status, result.Attempts, result.Elapsed)
	if result.Status != readiness.Ready && result.Err != nil {
		fmt.Printf("Last error: %v\n", result.Err)
	}
	return result, nil
}

func init() {
	rootCmd.AddCommand(waitCmd)
}
