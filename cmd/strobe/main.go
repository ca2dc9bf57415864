// Command strobe runs verification regressions from the command line and
// inspects recorded results.
package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"github.com/hwbench/strobe/examples/arbiter"
	"github.com/hwbench/strobe/record"
	"github.com/hwbench/strobe/sim"
	"github.com/hwbench/strobe/tb"
)

func main() {
	root := &cobra.Command{
		Use:   "strobe",
		Short: "Constrained-random verification of clocked designs",
	}
	root.AddCommand(runCmd(), historyCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		atexit.Exit(1)
	}
	atexit.Exit(0)
}

func runCmd() *cobra.Command {
	var (
		configPath string
		seed       int64
		maxCycles  uint64
		packets    int
		window     int
		recordPath string
		statusPort int
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the arbiter example regression",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := tb.LoadConfig(configPath)
			if err != nil {
				return err
			}

			if cmd.Flags().Changed("seed") {
				cfg.Seed = seed
			}
			if cmd.Flags().Changed("max-cycles") {
				cfg.MaxCycles = sim.Cycle(maxCycles)
			}
			if recordPath != "" {
				cfg.RecordPath = recordPath
			}
			if statusPort > 0 {
				cfg.StatusPort = statusPort
			}
			if !cmd.Flags().Changed("packets") {
				packets = cfg.Param("packets", packets)
			}
			if !cmd.Flags().Changed("window") {
				window = cfg.Param("window", window)
			}

			rep, err := arbiter.RunRegression(cfg, packets, window)
			if err != nil {
				return err
			}

			rep.Print(os.Stdout)
			if !rep.Passed() {
				atexit.Exit(1)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "YAML config file")
	cmd.Flags().Int64Var(&seed, "seed", 1, "random seed")
	cmd.Flags().Uint64Var(&maxCycles, "max-cycles", 0, "cycle budget")
	cmd.Flags().IntVar(&packets, "packets", 1000, "number of words to drive")
	cmd.Flags().IntVar(&window, "window", 4, "scoreboard match window")
	cmd.Flags().StringVar(&recordPath, "record", "", "SQLite file to record the run into")
	cmd.Flags().IntVar(&statusPort, "status-port", 0, "serve live status on this port")

	return cmd
}

func historyCmd() *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := record.Open(path)
			if err != nil {
				return err
			}
			defer rec.Close()

			runs, err := rec.Runs()
			if err != nil {
				return err
			}

			pass := color.New(color.FgGreen)
			fail := color.New(color.FgRed, color.Bold)
			for _, run := range runs {
				verdict := pass.Sprint("pass")
				if !run.Passed {
					verdict = fail.Sprint("FAIL")
				}
				fmt.Printf("%s  %-10s seed=%-6d cycles=%-8d %s\n",
					run.ID, run.Bench, run.Seed, run.Cycles, verdict)
				if run.Failure != "" {
					fmt.Printf("    %s\n", run.Failure)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&path, "record", "strobe.sqlite3", "results database")

	return cmd
}
