// Package commands implements the glance CLI.
package commands

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/spherical/glance/cmd/glance/ui"
	"github.com/spherical/glance/internal/config"
	"github.com/spherical/glance/internal/observability"
)

var (
	cfgFile string
	envFile string
	verbose bool
	noColor bool

	cfg    *config.Config
	logger *observability.Logger
)

var rootCmd = &cobra.Command{
	Use:   "glance",
	Short: "Read text through a head-worn camera accessory",
	Long: `glance captures a photo from a head-worn camera accessory, reads the text in it
(optionally translating it) and pages the result onto the accessory display.
Tap once for the next page, twice for the previous page and three times to read again.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.LoadEnvFile(envFile); err != nil {
			return err
		}

		loaded, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		if verbose {
			loaded.Observability.LogLevel = "debug"
		}
		cfg = loaded

		logger = observability.NewLogger(observability.LogConfig{
			Level:       cfg.Observability.LogLevel,
			Format:      cfg.Observability.LogFormat,
			Output:      os.Stderr,
			ServiceName: "glance",
		})
		ui.Init(noColor)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "environment file to load")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
