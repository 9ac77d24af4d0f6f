package main

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/michaelscutari/romlint/internal/db"
	"github.com/michaelscutari/romlint/internal/pathutil"
	"github.com/michaelscutari/romlint/internal/snapshot"

	_ "modernc.org/sqlite"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show the last recorded lint run",
	Long: `Print the summary of a run recorded with 'romlint lint --record'.

--db accepts a snapshot file or a record directory; a directory resolves
to its latest.db.`,
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

var (
	historyDB       string
	historyFailures int
	historyList     bool
)

func init() {
	historyCmd.Flags().StringVarP(&historyDB, "db", "d", "./runs", "Snapshot file or record directory")
	historyCmd.Flags().BoolVar(&historyList, "list", false, "List recorded snapshots in the directory and exit")
	historyCmd.Flags().IntVarP(&historyFailures, "failures", "n", 20, "Maximum number of failing files to list (0 = none)")
}

func runHistory(cmd *cobra.Command, args []string) error {
	info, err := os.Stat(historyDB)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	path := historyDB
	if info.IsDir() {
		mgr := snapshot.NewManager(historyDB, 0)
		if historyList {
			return listSnapshots(mgr)
		}
		if path, err = mgr.GetLatest(); err != nil {
			return err
		}
	} else if historyList {
		return fmt.Errorf("--list needs a record directory, got file %s", historyDB)
	}

	database, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()

	if err := db.ApplyReadPragmas(database); err != nil {
		return fmt.Errorf("failed to apply pragmas: %w", err)
	}

	meta, err := db.GetRunMeta(database)
	if err != nil {
		return fmt.Errorf("failed to read run metadata: %w", err)
	}

	fmt.Printf("Run Information\n")
	fmt.Printf("===============\n\n")
	fmt.Printf("Root Path:    %s\n", meta.RootPath)
	fmt.Printf("Start Time:   %s\n", meta.StartTime.Format(time.RFC3339))
	if meta.Complete() {
		fmt.Printf("End Time:     %s\n", meta.EndTime.Format(time.RFC3339))
		fmt.Printf("Duration:     %s\n", meta.Duration().Round(time.Millisecond))
	}
	fmt.Printf("\nStatistics\n")
	fmt.Printf("----------\n")
	fmt.Printf("Passed:        %s\n", humanize.Comma(int64(meta.TotalPass)))
	fmt.Printf("Failed:        %s\n", humanize.Comma(int64(meta.TotalFail)))
	fmt.Printf("Scanned Size:  %s\n", humanize.Bytes(uint64(meta.ScannedBytes)))
	if meta.ArchiveCount > 0 {
		fmt.Printf("Archives:      %s (%s unpacked)\n",
			humanize.Comma(int64(meta.ArchiveCount)),
			humanize.Bytes(uint64(meta.ArchiveUncompressed)))
	}

	systems, err := db.LoadSystemSummaries(database)
	if err != nil {
		return err
	}
	if len(systems) > 0 {
		fmt.Println()
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "SYSTEM\tPASSED\tFAILED\n")
		for _, s := range systems {
			fmt.Fprintf(w, "%s\t%s\t%s\n", s.System, humanize.Comma(int64(s.Pass)), humanize.Comma(int64(s.Fail)))
		}
		w.Flush()
	}

	if historyFailures <= 0 {
		return nil
	}
	failures, err := db.LoadFailures(database, historyFailures)
	if err != nil {
		return err
	}
	if len(failures) == 0 {
		return nil
	}

	fmt.Printf("\nFailures\n")
	fmt.Printf("--------\n")
	base := filepath.Clean(meta.RootPath)
	for _, f := range failures {
		fmt.Printf("%s\n", pathutil.Display(base, f.Path))
		for _, d := range f.Diagnostics {
			fmt.Printf("  - %s\n", d.Message)
			for _, hint := range d.Hints {
				fmt.Printf("      %s\n", hint)
			}
		}
	}

	return nil
}

func listSnapshots(mgr *snapshot.Manager) error {
	snapshots, err := mgr.ListSnapshots()
	if err != nil {
		return err
	}
	if len(snapshots) == 0 {
		fmt.Println("No recorded runs.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "SNAPSHOT\tSIZE\tRECORDED\n")
	for _, path := range snapshots {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", filepath.Base(path), humanize.Bytes(uint64(info.Size())), humanize.Time(info.ModTime()))
	}
	return w.Flush()
}
