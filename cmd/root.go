package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	verbose bool
	quiet   bool

	log zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "go-bitlocker",
	Short: "Read-only access to BitLocker encrypted volume images",
	Long: `go-bitlocker is a cross-platform, read-only command-line tool for
inspecting and decrypting BitLocker Drive Encryption (BDE) volume images.

Works directly with raw volume images or partitions inside whole-disk
dumps without mounting or relying on Windows. Ideal for data recovery
and forensic analysis.

Commands:
  info        Show volume metadata, encryption method and key protectors
  export      Decrypt the full volume contents to a file

Credentials are taken from flags, the environment (BDE_PASSWORD,
BDE_RECOVERY_PASSWORD, BDE_STARTUP_KEY) or a config file, in that order.`,
	Version: "0.1.0-dev",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := zerolog.InfoLevel
		if verbose {
			level = zerolog.DebugLevel
		}
		if quiet {
			level = zerolog.ErrorLevel
		}
		log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
			Level(level).
			With().Timestamp().Logger()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress output except errors")
	rootCmd.PersistentFlags().String("password", "", "user password credential")
	rootCmd.PersistentFlags().String("recovery-password", "", "recovery password credential (dash-separated groups)")
	rootCmd.PersistentFlags().String("startup-key", "", "path to a BEK startup key file")
	rootCmd.PersistentFlags().Int64("offset", 0, "byte offset of the volume within the input image")
	rootCmd.PersistentFlags().Int64("size", 0, "size of the volume within the input image (0 = to end of image)")

	viper.SetEnvPrefix("BDE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	for _, flag := range []string{"password", "recovery-password", "startup-key", "offset", "size"} {
		viper.BindPFlag(flag, rootCmd.PersistentFlags().Lookup(flag))
	}
}
