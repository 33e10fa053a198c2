package cli

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/turtacn/rxn-reconciler/internal/application/reconcile"
	"github.com/turtacn/rxn-reconciler/internal/bootstrap"
	"github.com/turtacn/rxn-reconciler/internal/config"
	"github.com/turtacn/rxn-reconciler/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/rxn-reconciler/pkg/errors"
)

type runOptions struct {
	dryRun     bool
	maxRecords int
}

func newRunCmd() *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:       "run [rhea|expasy|all]",
		Short:     "Run one or both reconciliation passes",
		Long:      "Run the Rhea pass, the ExPASy pass or both (in that order). The ExPASy pass\nneeds annotator.api_key. With --dry-run nothing is written anywhere.",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{config.PassRhea, config.PassExpasy, "all"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target := "all"
			if len(args) == 1 {
				target = args[0]
			}
			return runPasses(cmd, target, opts)
		},
	}
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "parse and resolve without persisting or publishing")
	cmd.Flags().IntVar(&opts.maxRecords, "max-records", 0, "stop each pass after N records (0 = no limit)")
	return cmd
}

func parsePasses(target string) ([]string, error) {
	switch strings.ToLower(target) {
	case config.PassRhea:
		return []string{config.PassRhea}, nil
	case config.PassExpasy:
		return []string{config.PassExpasy}, nil
	case "all":
		return []string{config.PassRhea, config.PassExpasy}, nil
	default:
		return nil, errors.Newf(errors.ErrCodeBadRequest, "unknown pass %q; expected rhea|expasy|all", target)
	}
}

func runPasses(cmd *cobra.Command, target string, opts *runOptions) error {
	passes, err := parsePasses(target)
	if err != nil {
		return err
	}
	if opts.maxRecords < 0 {
		return errors.Newf(errors.ErrCodeBadRequest, "max-records must be >= 0, got %d", opts.maxRecords)
	}
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}
	ctx, cancel := cliCtx.WithTimeout(cmd.Context())
	defer cancel()

	pcfg := cliCtx.Config.Pipeline
	pcfg.DryRun = pcfg.DryRun || opts.dryRun
	if opts.maxRecords > 0 {
		pcfg.MaxRecords = opts.maxRecords
	}

	infra, err := cliCtx.Open(ctx, bootstrap.Options{SkipStore: pcfg.DryRun, SkipSinks: pcfg.DryRun})
	if err != nil {
		return err
	}
	defer infra.Close()

	withResolver := false
	for _, p := range passes {
		if p == config.PassExpasy {
			withResolver = true
		}
	}
	pipeline, err := infra.Pipeline(pcfg, withResolver)
	if err != nil {
		return err
	}

	cliCtx.Logger.Info("starting reconciliation",
		logging.String("passes", strings.Join(passes, ",")),
		logging.Bool("dry_run", pcfg.DryRun),
		logging.Int("max_records", pcfg.MaxRecords))

	reports, runErr := pipeline.RunAll(ctx, passes)
	if err := PrintResult(cmd, runReports(reports)); err != nil {
		return err
	}
	if runErr != nil {
		return runErr
	}
	for _, r := range reports {
		if err := r.Err(); err != nil {
			return err
		}
	}
	return nil
}

// runReports renders pass reports as a table.
type runReports []*reconcile.RunReport

func (r runReports) TableHeaders() []string {
	return []string{"PASS", "RUN", "SEEN", "PERSISTED", "FAILED", "SKIPPED", "MALFORMED", "RESOLVED", "UNRESOLVED", "DURATION", "SINK ERRORS"}
}

func (r runReports) TableRows() [][]string {
	rows := make([][]string, 0, len(r))
	for _, rep := range r {
		if rep == nil {
			continue
		}
		pass := rep.Pass
		if rep.DryRun {
			pass += " (dry)"
		}
		rows = append(rows, []string{
			pass,
			rep.RunID,
			strconv.Itoa(rep.Seen),
			strconv.Itoa(rep.Persisted),
			strconv.Itoa(rep.Failed),
			strconv.Itoa(rep.Skipped),
			strconv.Itoa(rep.Malformed),
			strconv.Itoa(rep.Resolved),
			strconv.Itoa(rep.Unresolved),
			rep.Duration().Round(time.Millisecond).String(),
			formatSinkErrors(rep.SinkErrors),
		})
	}
	return rows
}

func formatSinkErrors(m map[string]int) string {
	if len(m) == 0 {
		return "-"
	}
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = fmt.Sprintf("%s=%d", name, m[name])
	}
	return strings.Join(parts, ",")
}
