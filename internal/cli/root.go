// Package cli implements the list-janitor command tree.
package cli

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mailops/list-janitor/pkg/client"
	"github.com/mailops/list-janitor/pkg/logging"
)

// Execute runs the root command with the provided context.
func Execute(ctx context.Context) error {
	return newRootCmd().ExecuteContext(ctx)
}

// newRootCmd creates the root command.
func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "list-janitor",
		Short: "Archive unsubscribed members of a Mailchimp list",
		Long: `list-janitor enumerates the unsubscribed members of a Mailchimp
audience and moves them to the archive, streaming one result line per member.

Credentials can be passed as flags or through the environment:
MAILCHIMP_API_KEY, MAILCHIMP_BASE_URL, MAILCHIMP_LIST_ID.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig(cmd)
		},
	}

	rootCmd.PersistentFlags().StringP("api-key", "k", "", "Mailchimp API key")
	rootCmd.PersistentFlags().StringP("base-url", "b", "", "datacenter base URL, e.g. https://us2.api.mailchimp.com")
	rootCmd.PersistentFlags().StringP("list-id", "l", "", "audience (list) ID")
	rootCmd.PersistentFlags().Int("page-size", 100, "members fetched per page")
	rootCmd.PersistentFlags().IntP("concurrency", "c", 8, "max archive requests in flight")
	rootCmd.PersistentFlags().Duration("timeout", 10*time.Second, "per-request timeout")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output with debug logging")
	rootCmd.PersistentFlags().Bool("pretty", false, "human-readable log output")

	viper.BindPFlag("api-key", rootCmd.PersistentFlags().Lookup("api-key"))
	viper.BindPFlag("base-url", rootCmd.PersistentFlags().Lookup("base-url"))
	viper.BindPFlag("list-id", rootCmd.PersistentFlags().Lookup("list-id"))
	viper.BindPFlag("page-size", rootCmd.PersistentFlags().Lookup("page-size"))
	viper.BindPFlag("concurrency", rootCmd.PersistentFlags().Lookup("concurrency"))
	viper.BindPFlag("timeout", rootCmd.PersistentFlags().Lookup("timeout"))
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	viper.BindPFlag("pretty", rootCmd.PersistentFlags().Lookup("pretty"))

	rootCmd.AddCommand(newArchiveCmd())
	rootCmd.AddCommand(newListCmd())

	return rootCmd
}

// initConfig initializes configuration and logging.
func initConfig(cmd *cobra.Command) error {
	// A local .env is optional; deployments set the variables directly.
	_ = godotenv.Load()

	viper.SetEnvPrefix("MAILCHIMP")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	level := logging.LevelInfo
	if viper.GetBool("verbose") {
		level = logging.LevelDebug
	}
	logging.Setup(logging.Config{
		Level:  level,
		Pretty: viper.GetBool("pretty"),
		Output: os.Stderr,
	})

	return nil
}

// newClient builds the gateway client from the resolved configuration.
func newClient() (*client.Client, error) {
	cfg := client.DefaultConfig(
		viper.GetString("base-url"),
		viper.GetString("list-id"),
		viper.GetString("api-key"),
	)

	if v := viper.GetInt("page-size"); v > 0 {
		cfg.PageSize = v
	}
	if v := viper.GetInt("concurrency"); v > 0 {
		cfg.MaxConcurrency = v
	}
	if v := viper.GetDuration("timeout"); v > 0 {
		cfg.Timeout = v
	}

	return client.New(cfg)
}
