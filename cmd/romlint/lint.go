package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/michaelscutari/romlint/internal/catalog"
	"github.com/michaelscutari/romlint/internal/config"
	"github.com/michaelscutari/romlint/internal/event"
	"github.com/michaelscutari/romlint/internal/rules"
	"github.com/michaelscutari/romlint/internal/scan"
	"github.com/michaelscutari/romlint/internal/scripts"
	"github.com/michaelscutari/romlint/internal/snapshot"
	"github.com/michaelscutari/romlint/internal/ui"
)

// errLintFailed reports a completed run with failing files.
var errLintFailed = errors.New("some files failed linting")

var lintCmd = &cobra.Command{
	Use:   "lint",
	Short: "Lint a ROM collection",
	Long: `Walk the working directory and run every lint script against each
file. A file's system is the name of the directory it sits in unless
--system is given.`,
	Args: cobra.NoArgs,
	RunE: runLint,
}

var (
	lintFile            string
	lintReporter        string
	lintHidePasses      bool
	lintNoArchiveChecks bool
	lintXdev            bool
	lintLints           string
	lintBuiltinRules    bool
	lintExclude         []string
	lintArchiveWorkers  int
	lintRecord          string
	lintRetention       int
)

func init() {
	lintCmd.Flags().StringVarP(&lintFile, "file", "f", "", "Check a single file instead of walking")
	lintCmd.Flags().StringVarP(&lintReporter, "reporter", "r", "auto", "Output format: auto|ansi|plain|json")
	lintCmd.Flags().BoolVar(&lintHidePasses, "hide-passes", false, "Do not print files that pass")
	lintCmd.Flags().BoolVar(&lintNoArchiveChecks, "no-archive-checks", false, "Do not look inside archives")
	lintCmd.Flags().BoolVar(&lintXdev, "xdev", false, "Don't cross filesystem boundaries")
	lintCmd.Flags().StringVar(&lintLints, "lints", "", "Directory of lint scripts (overrides global.lint_dir)")
	lintCmd.Flags().BoolVar(&lintBuiltinRules, "builtin-rules", false, "Also run the built-in rules when a lint directory is used")
	lintCmd.Flags().StringSliceVarP(&lintExclude, "exclude", "e", nil, "Regex patterns to exclude (can be repeated)")
	lintCmd.Flags().IntVarP(&lintArchiveWorkers, "archive-workers", "w", 0, "Files whose archives are listed in parallel (0 = auto)")
	lintCmd.Flags().StringVar(&lintRecord, "record", "", "Record the run to a SQLite snapshot in this directory")
	lintCmd.Flags().IntVar(&lintRetention, "retention", 5, "Number of recorded runs to retain (0 = unlimited)")
}

func runLint(cmd *cobra.Command, args []string) error {
	cwd, err := workingDir()
	if err != nil {
		return err
	}

	cfg, err := loadConfig(cwd)
	if err != nil {
		return err
	}

	host, err := loadScripts(cfg, cwd)
	if err != nil {
		return err
	}

	opts := scan.DefaultOptions().
		WithSystem(systemFlag).
		WithNoArchiveChecks(lintNoArchiveChecks).
		WithXdev(lintXdev)
	if lintArchiveWorkers > 0 {
		opts.WithArchiveWorkers(lintArchiveWorkers)
	}
	for _, pattern := range lintExclude {
		if err := opts.AddExcludePattern(pattern); err != nil {
			return fmt.Errorf("invalid exclude pattern %q: %w", pattern, err)
		}
	}

	var recording *snapshot.Recording
	if lintRecord != "" {
		outDir, err := filepath.Abs(lintRecord)
		if err != nil {
			return fmt.Errorf("failed to resolve record directory: %w", err)
		}
		// The recording outlives a cancelled run so it can be discarded cleanly.
		recording, err = snapshot.NewManager(outDir, lintRetention).Begin(context.Background(), cwd)
		if err != nil {
			return err
		}
	}

	reporters, err := buildReporters(cwd)
	if err != nil {
		if recording != nil {
			recording.Close()
		}
		return err
	}
	if recording != nil {
		reporters = append(reporters, recording)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\nCanceling... (press Ctrl+C again to force)")
		cancel()
		<-sigCh
		os.Exit(130)
	}()

	stream := event.NewChannel(64)
	consumed := make(chan error, 1)
	go func() {
		err := ui.Consume(stream.Events(), reporters...)
		stream.Hangup()
		consumed <- err
	}()

	summary, runErr := lint(ctx, cfg, host, stream, opts, cwd)
	stream.Close()
	consumeErr := <-consumed

	if errors.Is(runErr, context.Canceled) {
		fmt.Fprintln(os.Stderr, "Lint canceled.")
		return nil
	}
	// A reporter failure is the cause of the scanner's broken pipe.
	if consumeErr != nil {
		return consumeErr
	}
	if runErr != nil {
		return runErr
	}
	if recording != nil && recording.Path() != "" {
		log.Info().Str("path", recording.Path()).Msg("Run recorded")
	}
	if summary.TotalFail() > 0 {
		return errLintFailed
	}
	return nil
}

// lint loads catalogs when a script needs them and runs the scanner over
// --file or the working directory. With --system only that system's catalog
// is loaded and only its directory is walked.
func lint(ctx context.Context, cfg *config.Config, host *scripts.Host, sink event.Sink, opts *scan.ScanOptions, cwd string) (*event.Summary, error) {
	var catalogs *catalog.Set
	if host.Requirements().Has(scripts.CapFileDB) {
		var err error
		if opts.System != "" {
			catalogs, err = catalog.LoadOnly(ctx, cfg.DBDir(cwd), []string{opts.System}, sink)
		} else {
			catalogs, err = catalog.LoadAll(ctx, cfg.DBDir(cwd), sink)
		}
		if err != nil {
			return nil, err
		}
		// A failed or cancelled run can return while other catalogs are
		// still loading; their progress events must land before the stream
		// closes.
		defer catalogs.Settle(context.Background())
	}

	scanner := scan.NewScanner(cfg, host, catalogs, sink, opts)
	if lintFile != "" {
		path, err := filepath.Abs(lintFile)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve file path: %w", err)
		}
		return scanner.CheckFile(ctx, path)
	}
	return scanner.Run(ctx, opts.Root(cwd))
}

// loadScripts loads the user lint directory and, when there is none or
// --builtin-rules is set, the built-in rules.
func loadScripts(cfg *config.Config, cwd string) (*scripts.Host, error) {
	host := scripts.NewHost()

	dir := lintLints
	if dir == "" {
		dir = cfg.LintDir(cwd)
	} else if !filepath.IsAbs(dir) {
		dir = filepath.Join(cwd, dir)
	}

	useBuiltins := lintBuiltinRules
	if dir != "" {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			if err := host.LoadDir(dir); err != nil {
				return nil, err
			}
		} else {
			log.Warn().Str("dir", dir).Msg("Lint directory not found; using built-in rules")
			useBuiltins = true
		}
	} else {
		useBuiltins = true
	}

	if useBuiltins {
		if err := rules.Load(host); err != nil {
			return nil, err
		}
	}
	if host.Len() == 0 {
		return nil, fmt.Errorf("no lint scripts found in %s", dir)
	}

	log.Debug().Int("scripts", host.Len()).Str("requires", host.Requirements().String()).Msg("Scripts loaded")
	return host, nil
}

func buildReporters(cwd string) ([]ui.Reporter, error) {
	opts := ui.Options{Base: cwd, ShowPasses: !lintHidePasses, NoColor: noColor}

	mode := lintReporter
	if mode == "auto" {
		mode = "plain"
		if isTerminal(os.Stdout) {
			mode = "ansi"
		}
	}

	switch mode {
	case "ansi":
		return []ui.Reporter{ui.NewInteractive(os.Stdout, opts)}, nil
	case "plain":
		return []ui.Reporter{ui.NewPlain(os.Stdout, opts)}, nil
	case "json":
		return []ui.Reporter{ui.NewJSON(os.Stdout, cwd)}, nil
	default:
		return nil, fmt.Errorf("invalid reporter %q (expected auto|ansi|plain|json)", lintReporter)
	}
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
