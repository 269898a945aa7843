// Command redos checks regular expressions for ReDoS vulnerabilities.
//
// Exit codes: 0 when every pattern is safe, 1 when any pattern is
// vulnerable, 2 on errors (parse failure, timeout, or unknown verdicts
// under --fail-unknown).
package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/coregx/redos"
	"github.com/coregx/redos/diagnostics"
	"github.com/coregx/redos/parser"
)

// Exit codes are part of the CLI contract.
const (
	exitSafe       = 0
	exitVulnerable = 1
	exitError      = 2
)

type options struct {
	ignoreCase  bool
	multiline   bool
	dotAll      bool
	timeout     time.Duration
	verbose     bool
	quiet       bool
	stdin       bool
	jsonOut     bool
	failUnknown bool
	configPath  string
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	opts := &options{}
	exit := exitSafe

	cmd := &cobra.Command{
		Use:          "redos [pattern...]",
		Short:        "Detect ReDoS vulnerabilities in regular expressions",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, patterns []string) error {
			logger, err := buildLogger(opts)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			cfg, err := buildConfig(opts)
			if err != nil {
				return err
			}

			if opts.stdin {
				scanner := bufio.NewScanner(cmd.InOrStdin())
				for scanner.Scan() {
					if line := scanner.Text(); line != "" {
						patterns = append(patterns, line)
					}
				}
				if err := scanner.Err(); err != nil {
					return err
				}
			}
			if len(patterns) == 0 {
				return fmt.Errorf("no patterns given (pass patterns as arguments or use --stdin)")
			}

			flags := parser.Flags{
				IgnoreCase: opts.ignoreCase,
				Multiline:  opts.multiline,
				DotAll:     opts.dotAll,
				Unicode:    true,
			}
			checker := redos.NewChecker(cfg, logger)
			for _, pattern := range patterns {
				diag := checker.Check(pattern, flags)
				report(cmd, opts, diag)
				exit = worse(exit, exitCode(opts, diag))
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&opts.ignoreCase, "ignore-case", "i", false, "case-insensitive matching")
	cmd.Flags().BoolVarP(&opts.multiline, "multiline", "m", false, "^ and $ match at line boundaries")
	cmd.Flags().BoolVarP(&opts.dotAll, "dotall", "s", false, ". matches line terminators")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 0, "overall budget per pattern (e.g. 5s)")
	cmd.Flags().BoolVar(&opts.verbose, "verbose", false, "verbose diagnostics on stderr")
	cmd.Flags().BoolVar(&opts.quiet, "quiet", false, "suppress all non-result output")
	cmd.Flags().BoolVar(&opts.stdin, "stdin", false, "read patterns from stdin, one per line")
	cmd.Flags().BoolVar(&opts.jsonOut, "json", false, "emit JSON diagnostics")
	cmd.Flags().BoolVar(&opts.failUnknown, "fail-unknown", false, "treat unknown verdicts as failures")
	cmd.Flags().StringVar(&opts.configPath, "config", "", "YAML configuration preset")

	cmd.SetArgs(args)
	if err := cmd.Execute(); err != nil {
		return exitError
	}
	return exit
}

func buildLogger(opts *options) (*zap.Logger, error) {
	if opts.quiet || !opts.verbose {
		return zap.NewNop(), nil
	}
	cfg := zap.NewDevelopmentConfig()
	return cfg.Build()
}

func buildConfig(opts *options) (redos.Config, error) {
	cfg := redos.DefaultConfig()
	if opts.configPath != "" {
		loaded, err := redos.LoadConfig(opts.configPath)
		if err != nil {
			return redos.Config{}, err
		}
		cfg = loaded
	}
	if opts.timeout > 0 {
		cfg.Timeout = opts.timeout
	}
	return cfg, nil
}

func report(cmd *cobra.Command, opts *options, diag *diagnostics.Diagnostics) {
	out := cmd.OutOrStdout()
	if opts.jsonOut {
		data, err := json.Marshal(diag)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "redos: %v\n", err)
			return
		}
		fmt.Fprintln(out, string(data))
		return
	}
	if opts.quiet {
		fmt.Fprintf(out, "%s: %s\n", diag.Status, diag.Source)
		return
	}
	switch diag.Status {
	case diagnostics.StatusVulnerable:
		fmt.Fprintf(out, "%s: %s (%s)\n", diag.Status, diag.Source, diag.Complexity.Summary())
		if diag.Attack != nil {
			fmt.Fprintf(out, "  attack: %q + %q*%d + %q\n",
				diag.Attack.Prefix, diag.Attack.Pump, diag.Attack.Repeat, diag.Attack.Suffix)
		}
		if diag.Hotspot != nil {
			fmt.Fprintf(out, "  hotspot: %q at [%d:%d]\n", diag.Hotspot.Text, diag.Hotspot.Start, diag.Hotspot.End)
		}
	case diagnostics.StatusError:
		fmt.Fprintf(out, "%s: %s (%s)\n", diag.Status, diag.Source, diag.Error)
	default:
		fmt.Fprintf(out, "%s: %s (%s)\n", diag.Status, diag.Source, diag.Message)
	}
}

func exitCode(opts *options, diag *diagnostics.Diagnostics) int {
	switch diag.Status {
	case diagnostics.StatusSafe:
		return exitSafe
	case diagnostics.StatusVulnerable:
		return exitVulnerable
	case diagnostics.StatusUnknown:
		if opts.failUnknown {
			return exitError
		}
		return exitSafe
	default:
		return exitError
	}
}

// worse keeps the most severe exit code: error > vulnerable > safe.
func worse(a, b int) int {
	if a == exitError || b == exitError {
		return exitError
	}
	if a == exitVulnerable || b == exitVulnerable {
		return exitVulnerable
	}
	return exitSafe
}
