package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/michaelscutari/romlint/internal/config"
	rlerrors "github.com/michaelscutari/romlint/internal/errors"
	"github.com/michaelscutari/romlint/internal/logging"
)

var version = "0.1.0"

// exitFailures is the status when the run completed but some files failed.
const exitFailures = 2

func main() {
	if err := rootCmd.Execute(); err != nil {
		if errors.Is(err, errLintFailed) {
			os.Exit(exitFailures)
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		if code := rlerrors.GetErrorCode(err); code != rlerrors.ErrUnknown {
			log.Debug().Str("code", string(code)).Interface("details", rlerrors.GetErrorDetails(err)).Msg("Run failed")
		}
		os.Exit(1)
	}
}

var (
	verbosity  int
	cwdFlag    string
	configFlag string
	systemFlag string
	noColor    bool
)

var rootCmd = &cobra.Command{
	Use:   "romlint",
	Short: "A linter for ROM collections",
	Long: `romlint checks a ROM collection against per-system rules and
No-Intro style DAT catalogs. Rules are Lua scripts; a built-in set ships
with the binary.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.SetupLogger(verbosity)
		log.Debug().Str("command", cmd.Name()).Msg("Command started")
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.Version = version
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "Increase verbosity (-v INFO, -vv DEBUG, -vvv TRACE)")
	rootCmd.PersistentFlags().StringVarP(&cwdFlag, "cwd", "C", ".", "Directory to lint")
	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Path to config file (default: search cwd, then XDG config)")
	rootCmd.PersistentFlags().StringVarP(&systemFlag, "system", "s", "", "Treat every file as belonging to this system")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	rootCmd.AddCommand(lintCmd)
	rootCmd.AddCommand(dumpCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(configCmd)
}

// workingDir resolves --cwd to an absolute path.
func workingDir() (string, error) {
	cwd, err := filepath.Abs(cwdFlag)
	if err != nil {
		return "", fmt.Errorf("failed to resolve working directory: %w", err)
	}
	return filepath.Clean(cwd), nil
}

// loadConfig reads --config, or the first config found from cwd.
func loadConfig(cwd string) (*config.Config, error) {
	path := configFlag
	if path == "" {
		found, err := config.Find(cwd)
		if err != nil {
			return nil, err
		}
		path = found
	}
	log.Debug().Str("path", path).Msg("Loading config")
	return config.Load(path)
}
