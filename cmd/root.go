package cmd

import (
	"fmt"
	"os"

	"github.com/shivasurya/code-pathfinder/pathsentinel/analytics"
	"github.com/shivasurya/code-pathfinder/pathsentinel/output"
	"github.com/spf13/cobra"
)

var (
	verboseFlag bool
	Version     = "0.1.0"
	GitCommit   = "HEAD"
)

var rootCmd = &cobra.Command{
	Use:   "pathsentinel",
	Short: "Whole-program sink-reachability analysis for decompiled Android apps",
	Long: `PathSentinel - call-graph and path-constraint analysis for decompiled
Android application packages.

Synthesizes component entry points from the manifest, resolves intent-based
ICC edges, enumerates call paths to configured sinks, and assembles a
path-feasibility constraint for each one, reporting every reachable Event
Chain as a directory of execution/path/metadata artifacts plus an
appInfo.json index.

Learn more: https://github.com/shivasurya/code-pathfinder`,
	PersistentPreRun: func(cmd *cobra.Command, _ []string) {
		disableMetrics, _ := cmd.Flags().GetBool("disable-metrics") //nolint:all
		verboseFlag, _ = cmd.Flags().GetBool("verbose")             //nolint:all
		analytics.LoadEnvFile()
		analytics.Init(disableMetrics)
		analytics.SetVersion(Version)

		// Show banner for help command
		if cmd.Name() == "help" || (len(os.Args) == 1 || (len(os.Args) == 2 && (os.Args[1] == "--help" || os.Args[1] == "-h"))) {
			noBanner, _ := cmd.Flags().GetBool("no-banner")
			logger := output.NewLogger(output.VerbosityDefault)
			if output.ShouldShowBanner(logger.IsTTY(), noBanner) {
				output.PrintBanner(logger.GetWriter(), Version, output.DefaultBannerOptions())
			} else if logger.IsTTY() && !noBanner {
				fmt.Fprintln(os.Stderr, output.GetCompactBanner(Version))
				fmt.Fprintln(os.Stderr)
			}
		}
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().Bool("disable-metrics", false, "Disable metrics collection")
	rootCmd.PersistentFlags().Bool("verbose", false, "Verbose output")
	rootCmd.PersistentFlags().Bool("no-banner", false, "Disable startup banner")
}
