package ciboot

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/railwayapp/ciboot/internal/filesystems"
	"github.com/railwayapp/ciboot/internal/secrets"
	"github.com/railwayapp/ciboot/internal/verify"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check that the configured users have the expected access",
	Long: `Verify logs in as the admin and devops users with the provisioned
secrets and checks what each may do: admin administers the service, devops
reads and builds jobs but is denied the management pages.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		failed, err := runVerify(cmd.Context())
		if err != nil {
			fmt.Printf("Verification failed: %v\n", err)
			os.Exit(1)
		}
		if failed > 0 {
			os.Exit(1)
		}
	},
}

func readCredentials(filesystem filesystems.FileSystem, user, secretName string) (verify.Credentials, error) {
	store := secrets.NewProvisioner(filesystem, viper.GetString("secrets-dir"))
	content, err := filesystem.ReadFile(store.Path(secretName))
	if err != nil {
		return verify.Credentials{}, fmt.Errorf("failed to read secret %q: %w", secretName, err)
	}
	return verify.Credentials{User: user, Password: strings.TrimRight(string(content), "\r\n")}, nil
}

func runVerify(ctx context.Context) (int, error) {
	filesystem := filesystems.NewLocalFS()

	base, err := serviceURL(filesystem)
	if err != nil {
		return 0, err
	}
	admin, err := readCredentials(filesystem, viper.GetString("admin-user"), viper.GetString("admin-secret"))
	if err != nil {
		return 0, err
	}
	devops, err := readCredentials(filesystem, viper.GetString("devops-user"), viper.GetString("devops-secret"))
	if err != nil {
		return 0, err
	}

	verifier, err := verify.NewVerifier(base, admin, devops, viper.GetDuration("request-timeout"))
	if err != nil {
		return 0, err
	}
	verifier.JobName = viper.GetString("job-name")
	verifier.Logger = newLogger()

	fmt.Printf("Verifying access at %s\n\n", base)
	results := verifier.Run(ctx)
	for _, result := range results {
		mark := "PASS"
		if !result.Passed {
			mark = "FAIL"
		}
		fmt.Printf("  %s  %-34s", mark, result.Name)
		if result.Status != 0 {
			fmt.Printf(" %d", result.Status)
		}
		if result.Detail != "" {
			fmt.Printf("  %s", result.Detail)
		}
		fmt.Println()
	}

	failed := verify.Failed(results)
	fmt.Printf("\n%d/%d checks passed\n", len(results)-failed, len(results))
	return failed, nil
}

func init() {
	verifyCmd.Flags().String("admin-user", "admin", "admin user name")
	verifyCmd.Flags().String("admin-secret", secrets.DefaultNames[0], "secret holding the admin password")
	verifyCmd.Flags().String("devops-user", "devops", "devops user name")
	verifyCmd.Flags().String("devops-secret", secrets.DefaultNames[1], "secret holding the devops password")
	verifyCmd.Flags().String("job-name", "ciboot-verify", "scratch job for job permission checks, empty to skip")
	verifyCmd.Flags().Duration("request-timeout", verify.DefaultTimeout, "timeout of each request")
	cobra.CheckErr(viper.BindPFlags(verifyCmd.Flags()))
	rootCmd.AddCommand(verifyCmd)
}
