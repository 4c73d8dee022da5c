package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/shivasurya/code-pathfinder/pathsentinel/analytics"
	"github.com/shivasurya/code-pathfinder/pathsentinel/internal/callgraph"
	"github.com/shivasurya/code-pathfinder/pathsentinel/internal/config"
	"github.com/shivasurya/code-pathfinder/pathsentinel/internal/constraint"
	"github.com/shivasurya/code-pathfinder/pathsentinel/internal/emit"
	"github.com/shivasurya/code-pathfinder/pathsentinel/internal/entrypoint"
	"github.com/shivasurya/code-pathfinder/pathsentinel/internal/oracle"
	"github.com/shivasurya/code-pathfinder/pathsentinel/internal/program"
	"github.com/shivasurya/code-pathfinder/pathsentinel/internal/scheduler"
	"github.com/shivasurya/code-pathfinder/pathsentinel/output"
)

var scanFlags struct {
	apkPath        string
	targetsFile    string
	outDir         string
	packagePrefix  string
	workers        int
	pathTimeout    time.Duration
	globalTimeout  time.Duration
	debug          bool
	sarif          bool
	promotePublic  bool
	filterUIClicks bool
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan a decompiled Android package for sink-reachable paths",
	Long: `Loads an AndroidManifest.xml and decompiled Java sources, synthesizes
component entry points, resolves ICC edges, enumerates call paths to the
configured sinks, and writes one Event Chain per feasible path under
--out/<package>/.`,
	RunE: runScan,
}

func init() {
	scanCmd.Flags().StringVar(&scanFlags.apkPath, "apk", "", "path to the decompiled application source tree (required)")
	scanCmd.Flags().StringVar(&scanFlags.targetsFile, "targets", "", "path to a sink method signature list, one per line (required)")
	scanCmd.Flags().StringVar(&scanFlags.outDir, "out", "pathsentinel-out", "output directory for the Event Chain tree")
	scanCmd.Flags().StringVar(&scanFlags.packagePrefix, "package-prefix", "", "filter manifest components to this package prefix")
	scanCmd.Flags().IntVar(&scanFlags.workers, "workers", 0, "path-worker pool size (0 selects a CPU-share default)")
	scanCmd.Flags().DurationVar(&scanFlags.pathTimeout, "path-timeout", 30*time.Second, "per-path wall-clock budget")
	scanCmd.Flags().DurationVar(&scanFlags.globalTimeout, "global-timeout", 10*time.Minute, "whole-run wall-clock budget")
	scanCmd.Flags().BoolVar(&scanFlags.debug, "debug", false, "enable debug-level logging")
	scanCmd.Flags().BoolVar(&scanFlags.sarif, "sarif", false, "also write a SARIF 2.1.0 companion report")
	scanCmd.Flags().BoolVar(&scanFlags.promotePublic, "promote-public-methods", false, "accepted but has no effect: public non-lifecycle component methods are never promoted to entry points")
	scanCmd.Flags().BoolVar(&scanFlags.filterUIClicks, "filter-ui-entrypoints", true, "discard paths whose entry class looks like a UI click handler")

	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, _ []string) error {
	noBanner, _ := cmd.Flags().GetBool("no-banner")
	disableMetrics, _ := cmd.Flags().GetBool("disable-metrics")

	verbosity := output.VerbosityDefault
	if scanFlags.debug {
		verbosity = output.VerbosityDebug
	} else if verboseFlag {
		verbosity = output.VerbosityVerbose
	}
	logger := output.NewLogger(verbosity)

	if output.ShouldShowBanner(logger.IsTTY(), noBanner) {
		output.PrintBanner(logger.GetWriter(), Version, output.DefaultBannerOptions())
	}

	cfg, cfgErr := buildConfig()
	if cfgErr != nil {
		logger.Error("%s", cfgErr)
		os.Exit(int(output.DetermineExitCode(true, false)))
		return nil
	}

	runID := uuid.NewString()
	if !disableMetrics {
		analytics.ReportEventWithProperties(analytics.ScanStarted, map[string]interface{}{"run_id": runID})
	}

	hadAnalysisErr := false

	logger.Progress("Loading decompiled sources from %s", cfg.APKPath)
	prog, loadErrs := program.Load(cfg.APKPath)
	for _, e := range loadErrs {
		logger.Warning("%s", e)
	}
	if prog.Manifest == nil || prog.Manifest.Package == "" {
		logger.Error("no usable manifest found under %s", cfg.APKPath)
		if !disableMetrics {
			analytics.ReportEvent(analytics.ScanFailed)
		}
		os.Exit(int(output.DetermineExitCode(false, true)))
		return nil
	}

	cache, err := callgraph.NewMethodIRCache(prog.Source(), 0)
	if err != nil {
		logger.Error("building method cache: %s", err)
		if !disableMetrics {
			analytics.ReportEvent(analytics.ScanFailed)
		}
		os.Exit(int(output.DetermineExitCode(false, true)))
		return nil
	}

	calls, warnings := entrypoint.Synthesize(prog.Manifest, cache, cfg)
	for _, w := range warnings {
		logger.Warning("%s", w)
	}
	logger.Statistic("Synthesized %d entry-point calls across %d components", len(calls), len(prog.Manifest.Components))

	ctx := context.Background()
	builder := callgraph.NewBuilder(cache, prog.Manifest, cfg)
	graph := builder.Build(ctx, calls)
	if !disableMetrics {
		analytics.ReportEvent(analytics.CallGraphBuilt)
	}
	logger.Statistic("Call graph built from %d roots", len(graph.Roots()))

	engine := constraint.NewEngine(cache, cfg.ExprSetCap)
	satOracle := oracle.New()
	emitter := emit.New(cfg.OutDir)
	sched := scheduler.New(graph, cache, engine, satOracle, emitter, prog.Manifest.Package, cfg, calls)

	logger.Progress("Enumerating call paths to %d configured sinks", len(cfg.Targets))
	chains, notices := sched.Run(ctx, cfg.Targets)
	if !disableMetrics {
		analytics.ReportEvent(analytics.PathEnumerationDone)
		for _, c := range chains {
			if len(c.Events) > 1 {
				analytics.ReportEvent(analytics.DependencyResolved)
				break
			}
		}
	}

	var unresolved []string
	for _, n := range notices {
		logger.Debug("path %s -> %s: %v", n.Path.Root, n.Kind, n.Err)
		if n.Kind == scheduler.EventError {
			unresolved = append(unresolved, n.Path.Root)
		}
	}

	if err := emitter.WriteAppInfo(prog.Manifest.Package, chains, unresolved); err != nil {
		logger.Error("writing appInfo.json: %s", err)
		hadAnalysisErr = true
	}
	if cfg.SARIF {
		if err := emitter.WriteSARIF(prog.Manifest.Package, chains); err != nil {
			logger.Error("writing SARIF report: %s", err)
			hadAnalysisErr = true
		}
	}

	logger.Statistic("%d Event Chain(s) written to %s/%s", len(chains), cfg.OutDir, prog.Manifest.Package)
	logger.PrintTimingSummary()

	if !disableMetrics {
		if hadAnalysisErr {
			analytics.ReportEvent(analytics.ScanFailed)
		} else {
			analytics.ReportEvent(analytics.ScanCompleted)
		}
	}

	code := output.DetermineExitCode(false, hadAnalysisErr)
	if code != output.ExitCodeSuccess {
		os.Exit(int(code))
	}
	return nil
}

func buildConfig() (config.Config, error) {
	if scanFlags.apkPath == "" {
		return config.Config{}, &output.ConfigError{Reason: "--apk is required"}
	}
	if info, err := os.Stat(scanFlags.apkPath); err != nil || !info.IsDir() {
		return config.Config{}, &output.ConfigError{Reason: fmt.Sprintf("--apk %q is not a readable directory", scanFlags.apkPath)}
	}
	if scanFlags.targetsFile == "" {
		return config.Config{}, &output.ConfigError{Reason: "--targets is required"}
	}
	f, err := os.Open(scanFlags.targetsFile)
	if err != nil {
		return config.Config{}, &output.ConfigError{Reason: fmt.Sprintf("--targets %q: %s", scanFlags.targetsFile, err)}
	}
	defer f.Close()
	targets, err := config.LoadTargets(f)
	if err != nil {
		return config.Config{}, &output.ConfigError{Reason: err.Error()}
	}
	if len(targets) == 0 {
		return config.Config{}, &output.ConfigError{Reason: fmt.Sprintf("--targets %q declares no sink signatures", scanFlags.targetsFile)}
	}

	cfg := config.New(scanFlags.apkPath, scanFlags.outDir, scanFlags.packagePrefix, targets)
	cfg.Workers = scanFlags.workers
	cfg.PathTimeout = scanFlags.pathTimeout
	cfg.GlobalTimeout = scanFlags.globalTimeout
	cfg.Debug = scanFlags.debug
	cfg.SARIF = scanFlags.sarif
	cfg.PromotePublicMethods = scanFlags.promotePublic
	cfg.FilterUIEntryPoints = scanFlags.filterUIClicks
	cfg.Verbose = verboseFlag
	return cfg, nil
}
