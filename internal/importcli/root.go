// Package importcli implements the raid-import command line tool.
//
// analyze runs the engine locally against a roster file. submit and view talk
// to a running server.
package importcli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/raidstats/pkg/logger"
)

const (
	defaultServer  = "http://localhost:9080"
	defaultTimeout = 30 * time.Second
)

type rootOptions struct {
	server  string
	timeout time.Duration
	json    bool
	verbose bool
}

// NewRootCommand builds the command tree writing results to out.
func NewRootCommand(out io.Writer) *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "raid-import",
		Short: "Review pasted raid logs and import them into raidstats",
		Long: `raid-import parses pasted Discord/Twitch chat logs into raid candidates.

Examples:
  raid-import analyze chat.txt --roster members.yaml --month 2025-10
  raid-import submit chat.txt --month 2025-10 --accept
  raid-import view 2025-10 --twitch=false`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			level := "warn"
			if opts.verbose {
				level = "debug"
			}
			return logger.Init(logger.WithWriter(cmd.ErrOrStderr()), logger.WithLevel(level))
		},
	}
	root.SetOut(out)

	root.PersistentFlags().StringVar(&opts.server, "server", envOr("RAIDSTATS_SERVER", defaultServer), "raidstats base URL")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", defaultTimeout, "HTTP request timeout")
	root.PersistentFlags().BoolVar(&opts.json, "json", false, "output as JSON")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(newAnalyzeCommand(opts))
	root.AddCommand(newSubmitCommand(opts))
	root.AddCommand(newViewCommand(opts))
	return root
}

// Execute runs the root command.
func Execute(version string) error {
	root := NewRootCommand(os.Stdout)
	root.Version = version
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
