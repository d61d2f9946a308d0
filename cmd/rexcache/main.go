// Command rexcache exercises the public pattern-cache surface from the
// shell: compile a pattern and test it against an input, run a small
// microbenchmark against the cache, or print a statistics snapshot after a
// batch of compiles.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/patterncache/rexcache"
	rexconfig "github.com/patterncache/rexcache/config"
	rexlog "github.com/patterncache/rexcache/log"
)

var (
	cfgFile       string
	caseSensitive bool
)

func buildCache(cmd *cobra.Command) (*rexcache.Cache, error) {
	loader := rexconfig.New()
	if cfgFile != "" {
		loader = loader.WithFile(cfgFile)
	}
	values, err := loader.Load()
	if err != nil {
		return nil, err
	}

	return rexcache.New(
		rexcache.WithCacheEnabled(values.CacheEnabled),
		rexcache.WithMaxCacheSize(values.MaxCacheSize),
		rexcache.WithIdleTimeout(values.IdleTimeout),
		rexcache.WithEvictionScanInterval(values.EvictionScanInterval),
		rexcache.WithDeferredCleanupInterval(values.DeferredCleanupInterval),
		rexcache.WithMaxSimultaneousCompiledPatterns(values.MaxSimultaneousCompiledPatterns),
		rexcache.WithMaxMatchersPerPattern(values.MaxMatchersPerPattern),
		rexcache.WithEvictionProtection(values.EvictionProtection),
		rexcache.WithValidateCachedPatterns(values.ValidateCachedPatterns),
	)
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "rexcache",
		Short: "Exercise the rexcache compiled-pattern cache from the command line",
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "path to a YAML config file (env REXCACHE_* always applies)")
	root.AddCommand(newCompileCmd(), newBenchCmd(), newStatsCmd())
	return root
}

func newCompileCmd() *cobra.Command {
	var input string
	cmd := &cobra.Command{
		Use:   "compile <pattern>",
		Short: "Compile a pattern and report whether it matches --input",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := buildCache(cmd)
			if err != nil {
				return err
			}
			defer c.Shutdown()

			p, err := c.Compile(args[0], caseSensitive)
			if err != nil {
				return err
			}
			ok, err := p.Matches([]byte(input))
			if err != nil {
				return err
			}
			fmt.Printf("matches=%t\n", ok)
			return nil
		},
	}
	cmd.Flags().StringVar(&input, "input", "", "input text to test against the compiled pattern")
	cmd.Flags().BoolVar(&caseSensitive, "case-sensitive", true, "compile with case sensitivity enabled")
	return cmd
}

func newBenchCmd() *cobra.Command {
	var pattern, input string
	var iterations int
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Run repeated compiles/matches against --pattern and report throughput",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := buildCache(cmd)
			if err != nil {
				return err
			}
			defer c.Shutdown()

			start := time.Now()
			for i := 0; i < iterations; i++ {
				p, err := c.Compile(pattern, caseSensitive)
				if err != nil {
					return err
				}
				if _, err := p.Matches([]byte(input)); err != nil {
					return err
				}
			}
			elapsed := time.Since(start)

			stats := c.Statistics()
			fmt.Printf("iterations=%d elapsed=%s ops/sec=%.0f hit_rate=%.4f\n",
				iterations, elapsed, float64(iterations)/elapsed.Seconds(), stats.HitRate())
			return nil
		},
	}
	cmd.Flags().StringVar(&pattern, "pattern", `\d+`, "pattern to compile repeatedly")
	cmd.Flags().StringVar(&input, "input", "issue 42 filed", "input text to match on each iteration")
	cmd.Flags().IntVar(&iterations, "iterations", 100_000, "number of compile+match iterations")
	cmd.Flags().BoolVar(&caseSensitive, "case-sensitive", true, "compile with case sensitivity enabled")
	return cmd
}

func newStatsCmd() *cobra.Command {
	var patterns []string
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Compile --pattern values and print the resulting cache statistics as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := buildCache(cmd)
			if err != nil {
				return err
			}
			defer c.Shutdown()

			for _, p := range patterns {
				if _, err := c.Compile(p, true); err != nil {
					rexlog.Logger().WithError(err).Warn("rexcache: compile failed")
				}
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(c.Statistics())
		},
	}
	cmd.Flags().StringSliceVar(&patterns, "pattern", nil, "pattern to compile before printing statistics (repeatable)")
	return cmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
