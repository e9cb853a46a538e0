package ciboot

import (
	"context"
	"fmt"
	"os"

	"github.com/railwayapp/ciboot/internal/filesystems"
	"github.com/spf13/cobra"
)

var contextCmd = &cobra.Command{
	Use:   "context",
	Short: "Show the container runtime endpoint the bootstrap would use",
	Long: `Context resolves the active container runtime endpoint the same way the
bootstrap does (DOCKER_HOST, then the docker CLI context), checks that the
socket exists and prints the host path and the path mounted into the
service, without touching secrets or the descriptor.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		if err := runContext(cmd.Context()); err != nil {
			fmt.Printf("Runtime resolution failed: %v\n", err)
			os.Exit(1)
		}
	},
}

func runContext(ctx context.Context) error {
	resolver, err := newResolver(filesystems.NewLocalFS(), newLogger())
	if err != nil {
		return err
	}

	endpoint, err := resolver.Resolve(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Endpoint:         %s\n", endpoint.Raw)
	fmt.Printf("Transport:        %s\n", endpoint.Transport)
	fmt.Printf("Host socket:      %s\n", endpoint.HostPath)
	fmt.Printf("Effective socket: %s\n", endpoint.EffectivePath)
	if endpoint.Shim != "" {
		fmt.Printf("VM shim:          %s\n", endpoint.Shim)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(contextCmd)
}
