package cli

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/autolock-cli/autolock/internal/config"
)

var (
	cfgFile    string
	runtimeDir string
	verbose    bool
	cfg        *config.Config
	logger     = newLogger(os.Stderr, false)
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "autolock",
	Short: "Run command actions under per-action file locks",
	Long: `Autolock prevents two invocations of the same command action from
running at the same time on one host. Each guarded action takes an advisory
lock on {runtime_dir}/lock/{command}-{action}.lock and records its PID there
until it finishes.

Typical use is wrapping cron jobs and batch scripts:

  autolock run --command backup --action nightly -- /usr/local/bin/backup.sh`,
	Version:       "1.0.0",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger = newLogger(cmd.ErrOrStderr(), verbose || isDebugEnabled())

		var err error
		cfg, err = config.LoadConfig(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		// Set runtime dir from config if not provided
		if runtimeDir == "" {
			runtimeDir = cfg.RuntimeDir
		}

		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/autolock/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&runtimeDir, "runtime-dir", "", "directory holding the lock/ directory")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(cleanCmd)
	rootCmd.AddCommand(configCmd)
}

func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag
		return
	}

	path, err := config.DefaultPath()
	if err != nil {
		// No home directory: run on defaults only
		logger.Debug("no default config path", "err", err)
		return
	}
	cfgFile = path
}

func newLogger(w io.Writer, debug bool) *log.Logger {
	level := log.InfoLevel
	if debug {
		level = log.DebugLevel
	}
	return log.NewWithOptions(w, log.Options{
		Prefix:          "autolock",
		ReportTimestamp: true,
		Level:           level,
	})
}

// isDebugEnabled checks if debug mode is enabled via environment variable
func isDebugEnabled() bool {
	dbg, _ := strconv.ParseBool(os.Getenv("AUTOLOCK_DEBUG"))
	return dbg
}
