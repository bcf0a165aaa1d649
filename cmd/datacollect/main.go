package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var cfgFile string

func main() {
	if err := rootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "datacollect",
		Short:         "Collect Reddit posts, daily closes and a remote JSON table into CSV datasets",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")

	root.AddCommand(runCmd())
	root.AddCommand(runsCmd())
	root.AddCommand(serveCmd())

	return root
}

func runCmd() *cobra.Command {
	var (
		parallel  bool
		outputDir string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Fetch, clean and export all three datasets once",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(cmd.Context(), runOpts{
				parallel:    parallel,
				parallelSet: cmd.Flags().Changed("parallel"),
				outputDir:   outputDir,
			})
		},
	}

	cmd.Flags().BoolVar(&parallel, "parallel", false, "fetch the three sources concurrently")
	cmd.Flags().StringVar(&outputDir, "output", "", "output directory (default: from config)")
	return cmd
}

func runsCmd() *cobra.Command {
	var (
		jsonOutput bool
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Show recorded pipeline runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return listRuns(cmd.Context(), jsonOutput, limit)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	cmd.Flags().IntVar(&limit, "limit", 20, "max runs to show")
	return cmd
}

func serveCmd() *cobra.Command {
	var (
		port     int
		interval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server, optionally running the pipeline on an interval",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), port, interval)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "server port (default: from config)")
	cmd.Flags().DurationVar(&interval, "interval", 0, "run the pipeline every interval (0 disables the scheduler)")
	return cmd
}
