package ciboot

import (
	"context"
	"fmt"
	"os"

	"github.com/railwayapp/ciboot/internal/definition"
	"github.com/railwayapp/ciboot/internal/environment"
	"github.com/railwayapp/ciboot/internal/filesystems"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var envCmd = &cobra.Command{
	Use:   "env",
	Short: "Show the descriptor file and what the compose definition needs from it",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		path := viper.GetString("env-file")
		fmt.Printf("Descriptor: %s\n\n", path)

		if err := runEnv(cmd.Context(), path, viper.GetString("compose-file")); err != nil {
			fmt.Printf("Reading descriptor failed: %v\n", err)
			os.Exit(1)
		}
	},
}

func runEnv(ctx context.Context, path, composeFile string) error {
	filesystem := filesystems.NewLocalFS()

	descriptor, err := environment.Load(filesystem, path)
	if err != nil {
		return err
	}

	redacted := descriptor.Redacted()
	for _, key := range redacted.Keys() {
		fmt.Printf("  %s=%s\n", key, redacted[key])
	}

	if composeFile == "" {
		if composeFile, err = definition.Find(filesystem, "."); err != nil {
			// no definition nearby, nothing to compare against
			return nil
		}
	}

	def, err := definition.Load(ctx, filesystem, composeFile)
	if err != nil {
		return err
	}

	fmt.Printf("\nReferenced by %s:\n", def.Path)
	for _, key := range def.RequiredKeys() {
		status := "ok"
		if descriptor[key] == "" {
			status = "MISSING"
		}
		fmt.Printf("  %-24s %s\n", key, status)
	}

	if err := def.Check(ctx, descriptor); err != nil {
		fmt.Printf("\nDefinition check: %v\n", err)
	} else {
		fmt.Printf("\nDefinition check: ok\n")
	}
	return nil
}

func init() {
	rootCmd.AddCommand(envCmd)
}
