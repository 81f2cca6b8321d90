package main

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/sarchlab/txcore/config"
	"github.com/sarchlab/txcore/cputime"
	"github.com/sarchlab/txcore/errcollector"
	"github.com/sarchlab/txcore/naming"
	"github.com/sarchlab/txcore/recording"
	"github.com/sarchlab/txcore/sampler"
	"github.com/sarchlab/txcore/txn"
)

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run a short synthetic workload through a fully wired agent",
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.SilenceUsage = true

		recordPath, _ := cmd.Flags().GetString("record")
		runDemo(recordPath)
	},
}

func init() {
	demoCmd.Flags().String("record", "",
		"record the workload into a SQLite database at the given path")
	rootCmd.AddCommand(demoCmd)
}

func runDemo(recordPath string) {
	cfg := config.DefaultConfig()
	cfg.DistributedTracingEnabled = true

	agent := txn.NewAgent(cfg).
		WithAdaptiveSampler(
			sampler.NewAdaptive(cfg.SamplerTarget, cfg.SamplerPeriod)).
		WithTraceSampler(
			sampler.NewTraceSampler(cfg.EffectiveTracerThreshold())).
		WithQuerySampler(
			sampler.NewQuerySampler(500*time.Millisecond, 10)).
		WithErrorSink(errcollector.New(20)).
		WithCPUSource(cputime.Detect())

	if recordPath != "" {
		writer := recording.NewSQLiteWriter(recordPath)
		writer.Init()

		recorder := recording.NewTraceRecorder(writer)
		agent.AcceptHook(recorder)

		defer recorder.Flush()
	}

	runWebRequests(agent)
	runBackgroundTask(agent)

	printSnapshot(agent)
}

func runWebRequests(agent *txn.Agent) {
	for i := 0; i < 5; i++ {
		ec := txn.NewExecutionContext()

		t := agent.StartTransaction(ec, txn.StartOptions{
			Category: naming.CategoryController,
			Name:     "users/show",
			Request: &txn.RequestInfo{
				Path: "/users/42",
				Port: 8080,
			},
			QueueStart: time.Now().Add(-3 * time.Millisecond),
		})

		// A nested frame, as middleware dispatching into a controller
		// action would produce.
		agent.StartTransaction(ec, txn.StartOptions{
			Category: naming.CategoryController,
			Name:     "users/_card",
		})
		time.Sleep(2 * time.Millisecond)
		agent.StopTransaction(ec)

		if i == 4 && t != nil {
			t.NoticeError(errors.New("user not found"), nil)
		}

		time.Sleep(time.Millisecond)
		agent.StopTransaction(ec)
	}
}

func runBackgroundTask(agent *txn.Agent) {
	ec := txn.NewExecutionContext()

	t := agent.StartTransaction(ec, txn.StartOptions{
		Category: naming.CategoryTask,
		Name:     "Reports/nightly",
	})

	if t != nil {
		t.NoticeSlowQuery("SELECT * FROM reports", 700*time.Millisecond)
	}

	time.Sleep(4 * time.Millisecond)
	agent.StopTransaction(ec)
}

func printSnapshot(agent *txn.Agent) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "METRIC\tCOUNT\tTOTAL(ms)\tMAX(ms)")

	for _, named := range agent.Stats().Snapshot() {
		fmt.Fprintf(w, "%s\t%d\t%.2f\t%.2f\n",
			named.Name,
			named.Stat.CallCount,
			float64(named.Stat.Total)/float64(time.Millisecond),
			float64(named.Stat.Max)/float64(time.Millisecond))
	}

	w.Flush()
}
