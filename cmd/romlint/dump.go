package main

import (
	"bufio"
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/michaelscutari/romlint/internal/catalog"
	"github.com/michaelscutari/romlint/internal/event"
)

var dumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Print every game name in the catalogs",
	Long: `Print the canonical game names of the selected system's catalog, or of
every catalog when --system is not given, one per line.`,
	Args: cobra.NoArgs,
	RunE: runDump,
}

func runDump(cmd *cobra.Command, args []string) error {
	cwd, err := workingDir()
	if err != nil {
		return err
	}
	cfg, err := loadConfig(cwd)
	if err != nil {
		return err
	}

	ctx := context.Background()
	dir := cfg.DBDir(cwd)

	var set *catalog.Set
	if systemFlag != "" {
		set, err = catalog.LoadOnly(ctx, dir, []string{systemFlag}, event.Discard)
	} else {
		set, err = catalog.LoadAll(ctx, dir, event.Discard)
	}
	if err != nil {
		return err
	}

	dbs, err := set.WaitAll(ctx)
	if err != nil {
		return err
	}
	if systemFlag != "" && len(dbs) == 0 {
		fmt.Fprintf(os.Stderr, "Unable to find a database for the system '%s'.\n", systemFlag)
		return nil
	}

	out := bufio.NewWriter(os.Stdout)
	for _, system := range set.Systems() {
		for _, name := range dbs[system].Names() {
			fmt.Fprintln(out, name)
		}
	}
	return out.Flush()
}
