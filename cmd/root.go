package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/gridflow-sim/gridflow-sim/sim/electrical"
)

var (
	// CLI flags for the run command
	scenarioPath string  // Path to the scenario YAML file
	logLevel     string  // Log verbosity level
	duration     float64 // Simulated duration override (seconds)
	stepSize     float64 // Step size override (seconds)
	solverName   string  // Load-flow solver override
	seed         int64   // Random stream seed override
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "gridflow-sim",
	Short: "Time-stepped simulator for electrical networks and coupled physical processes",
}

// runCmd executes a scenario file and prints the final operating point
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a simulation scenario",
	Run: func(cmd *cobra.Command, args []string) {
		// Set up logging
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)

		if scenarioPath == "" {
			logrus.Fatalf("Scenario file not provided. Exiting simulation.")
		}
		sc, err := LoadScenario(scenarioPath)
		if err != nil {
			logrus.Fatalf("Unable to load scenario: %v", err)
		}

		// Flag overrides take precedence over the scenario file
		if cmd.Flags().Changed("duration") {
			sc.Duration = duration
		}
		if cmd.Flags().Changed("step") {
			sc.Step = stepSize
		}
		if cmd.Flags().Changed("solver") {
			sc.Solver = solverName
		}
		if cmd.Flags().Changed("seed") {
			sc.Seed = seed
		}

		if sc.Solver == "" {
			sc.Solver = "newton"
		}
		res, err := sc.Build()
		if err != nil {
			logrus.Fatalf("Unable to build scenario: %v", err)
		}
		defer res.Close()

		logrus.Infof("Starting scenario %q: duration=%vs step=%vs solver=%s",
			sc.Name, sc.Duration, sc.Step, sc.Solver)

		if err := res.simulator.Run(context.Background(), sc.Duration, sc.Step); err != nil {
			logrus.Fatalf("Simulation failed: %v", err)
		}

		printBusTable(res.grid)
		for _, p := range res.plots {
			fmt.Println(p.Render())
		}

		logrus.Info("Simulation complete.")
	},
}

// printBusTable writes the final per-bus operating point to stdout
func printBusTable(grid *electrical.Module) {
	tw := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, "bus\tkind\tP\tQ\tV\tTh")
	for _, e := range grid.Elements() {
		b, ok := e.(*electrical.Bus)
		if !ok {
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%.4f\t%.4f\t%.4f\t%.4f\n",
			b.Name(), b.Kind(), b.P(), b.Q(), b.V(), b.Th())
	}
	tw.Flush()
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// init sets up CLI flags and subcommands
func init() {
	runCmd.Flags().StringVar(&scenarioPath, "scenario", "", "Path to the scenario YAML file")
	runCmd.Flags().StringVar(&logLevel, "log", "error", "Log level (trace, debug, info, warn, error, fatal, panic)")
	runCmd.Flags().Float64Var(&duration, "duration", 0, "Simulated duration in seconds (overrides the scenario)")
	runCmd.Flags().Float64Var(&stepSize, "step", 0, "Step size in seconds (overrides the scenario)")
	runCmd.Flags().StringVar(&solverName, "solver", "", "Load-flow solver: newton or direct (overrides the scenario)")
	runCmd.Flags().Int64Var(&seed, "seed", 0, "Seed for random element streams (overrides the scenario)")

	// Attach `run` as a subcommand to `root`
	rootCmd.AddCommand(runCmd)
}
