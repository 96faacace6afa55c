package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/baycat-io/baycat/pkg/logging"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	flagQuiet   bool
	flagVerbose bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "baycat",
		Short: "Manifest-based sync from a local tree to an object-storage bucket",
		Long: `baycat synchronizes a local directory tree to an object-storage bucket,
trusting file size and mtime to avoid re-hashing unchanged content and
keeping a manifest on both sides so repeat syncs cost almost nothing.`,
		Version:       fmt.Sprintf("%s (commit: %s, built at: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logging.Setup(flagQuiet, flagVerbose)
			return loadConfig()
		},
	}

	rootCmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "Only warnings and errors")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Debug output")

	rootCmd.AddCommand(newSyncCmd())
	rootCmd.AddCommand(newManifestCmd())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig layers the optional config file and BAYCAT_* environment
// under the command-line flags. Resolved values are read with
// viper.Get* at the point of use and passed into constructors
// explicitly; nothing below cmd/ touches viper.
func loadConfig() error {
	home, err := os.UserHomeDir()
	if err == nil {
		viper.AddConfigPath(filepath.Join(home, ".config", "baycat"))
	}
	viper.AddConfigPath(".")
	viper.SetConfigName("baycat")
	viper.SetEnvPrefix("baycat")
	viper.AutomaticEnv()

	viper.SetDefault("concurrency", 16)

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("read config: %w", err)
		}
	}
	return nil
}
