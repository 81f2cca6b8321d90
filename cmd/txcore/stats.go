package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sarchlab/txcore/recording"
)

var statsCmd = &cobra.Command{
	Use:   "stats [database]",
	Short: "Print per-name aggregates from a recorded database",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cmd.SilenceUsage = true

		err := printStats(args[0], cmd.OutOrStdout())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

type nameAggregate struct {
	name    string
	count   int
	totalMs float64
	maxMs   float64
	failed  int
	sampled int
}

func printStats(dbPath string, out io.Writer) error {
	reader := recording.NewSQLiteReader(strings.TrimSuffix(dbPath, ".sqlite3"))
	defer reader.Close()

	reader.MapTable("transactions", recording.TransactionRow{})

	rows, _, err := reader.Query(
		context.Background(), "transactions", recording.QueryParams{})
	if err != nil {
		return err
	}

	aggregates := make(map[string]*nameAggregate)
	for _, r := range rows {
		row, ok := r.(*recording.TransactionRow)
		if !ok {
			continue
		}

		agg, exists := aggregates[row.Name]
		if !exists {
			agg = &nameAggregate{name: row.Name}
			aggregates[row.Name] = agg
		}

		agg.count++
		agg.totalMs += row.DurationMs

		if row.DurationMs > agg.maxMs {
			agg.maxMs = row.DurationMs
		}

		if row.Failed {
			agg.failed++
		}

		if row.Sampled {
			agg.sampled++
		}
	}

	names := make([]string, 0, len(aggregates))
	for name := range aggregates {
		names = append(names, name)
	}
	sort.Strings(names)

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tCOUNT\tAVG(ms)\tMAX(ms)\tFAILED\tSAMPLED")

	for _, name := range names {
		agg := aggregates[name]
		fmt.Fprintf(w, "%s\t%d\t%.2f\t%.2f\t%d\t%d\n",
			agg.name, agg.count, agg.totalMs/float64(agg.count),
			agg.maxMs, agg.failed, agg.sampled)
	}

	return w.Flush()
}
