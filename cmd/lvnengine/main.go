// Command lvnengine runs the LVN retest / trend-model futures trading
// engine: precompute cached day-levels from trade prints, replay cached
// days through the live code path, or trade a live feed through a real
// broker.
package main

import (
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	flag "github.com/spf13/pflag"

	"github.com/lvnretest/engine/internal/logging"
	"github.com/lvnretest/engine/internal/metrics"
)

const version = "0.1.0"

func main() {
	log := logging.New(logging.Options{Level: preParseLogLevel(), Pretty: preParsePretty()})

	reg := prometheus.NewRegistry()
	metricsReg := metrics.NewRegistry(reg)

	rootCmd := &cobra.Command{
		Use:     "lvnengine",
		Short:   "LVN retest / trend-model engine for NQ/MNQ index futures",
		Version: version,
	}
	// registered only so `--help` documents them; the values that actually
	// shape the logger are read eagerly in preParseLogLevel/preParsePretty
	// before any subcommand is constructed.
	rootCmd.PersistentFlags().String("log-level", "info", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().Bool("pretty", false, "force pretty console logging regardless of TTY detection")

	rootCmd.AddCommand(newPrecomputeCmd(log))
	rootCmd.AddCommand(newReplayCmd(log, metricsReg))
	rootCmd.AddCommand(newLiveCmd(log, metricsReg, reg))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// preParseLogLevel and preParsePretty scan os.Args directly for the
// persistent logging flags so the logger can be built before the command
// tree (and its RunE closures, which capture a logger by value) exists.
func preParseLogLevel() string {
	fs := flag.NewFlagSet("preparse", flag.ContinueOnError)
	fs.ParseErrorsWhitelist.UnknownFlags = true
	fs.Usage = func() {}
	level := fs.String("log-level", "info", "")
	_ = fs.Parse(os.Args[1:])
	return *level
}

func preParsePretty() bool {
	fs := flag.NewFlagSet("preparse", flag.ContinueOnError)
	fs.ParseErrorsWhitelist.UnknownFlags = true
	fs.Usage = func() {}
	pretty := fs.Bool("pretty", false, "")
	_ = fs.Parse(os.Args[1:])
	return *pretty
}
