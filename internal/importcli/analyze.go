package importcli

import (
	"fmt"
	"os"
	"time"
	_ "time/tzdata"

	"github.com/spf13/cobra"

	"github.com/okian/raidstats/internal/adapters/repository"
	"github.com/okian/raidstats/internal/adapters/roster"
	service "github.com/okian/raidstats/internal/app"
	"github.com/okian/raidstats/internal/domain/types"
	"github.com/okian/raidstats/pkg/logger"
)

type analyzeOptions struct {
	roster    string
	month     string
	timezone  string
	overrides map[string]string
}

func newAnalyzeCommand(root *rootOptions) *cobra.Command {
	opts := &analyzeOptions{}
	cmd := &cobra.Command{
		Use:   "analyze [file]",
		Short: "Classify a pasted log against a local roster",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read log: %w", err)
			}
			res, err := analyzeLocal(cmd, opts, string(text))
			if err != nil {
				return err
			}
			return renderAnalysis(cmd.OutOrStdout(), res, root.json)
		},
	}
	cmd.Flags().StringVarP(&opts.roster, "roster", "r", "", "members YAML file")
	cmd.Flags().StringVarP(&opts.month, "month", "m", "", "month to analyze (YYYY-MM, default current)")
	cmd.Flags().StringVar(&opts.timezone, "timezone", "Europe/Paris", "IANA zone of the pasted timestamps")
	cmd.Flags().StringToStringVar(&opts.overrides, "override", nil, "bind a handle to a member id (handle=id)")
	_ = cmd.MarkFlagRequired("roster")
	return cmd
}

// analyzeLocal runs one analysis pass on an in-memory store seeded from the
// roster file. Ignores and accepts are not persisted.
func analyzeLocal(cmd *cobra.Command, opts *analyzeOptions, text string) (types.AnalysisResult, error) {
	members, err := roster.Load(opts.roster)
	if err != nil {
		return types.AnalysisResult{}, err
	}
	loc, err := time.LoadLocation(opts.timezone)
	if err != nil {
		return types.AnalysisResult{}, fmt.Errorf("timezone %q: %w", opts.timezone, err)
	}
	svc := service.New(
		service.WithStore(repository.NewMemoryStore(repository.WithMembers(members))),
		service.WithLocation(loc),
		service.WithLogger(logger.Get().Named("analyze")),
	)
	defer svc.Stop()

	return svc.Analyze(cmd.Context(), types.AnalyzeRequest{
		Month:     opts.month,
		Text:      text,
		Overrides: opts.overrides,
	})
}
