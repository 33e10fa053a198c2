package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/turtacn/rxn-reconciler/internal/bootstrap"
	"github.com/turtacn/rxn-reconciler/internal/domain/reaction"
	chemresolver "github.com/turtacn/rxn-reconciler/internal/intelligence/chem_resolver"
)

func newResolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve NAME...",
		Short: "Resolve compound names to ChEBI identifiers",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withResolver(cmd, func(r chemresolver.Resolver) error {
				ctx := cmd.Context()
				out := make(constituentTable, 0, len(args))
				for _, name := range args {
					name = strings.TrimSpace(name)
					out = append(out, reaction.Constituent{Name: name, ChEBI: r.Resolve(ctx, name)})
				}
				return PrintResult(cmd, out)
			})
		},
	}
}

func newSplitCmd() *cobra.Command {
	var noResolve bool
	cmd := &cobra.Command{
		Use:   "split EQUATION",
		Short: "Split an ENZYME equation into its constituents",
		Long:  "Split \"A + B = C\" into left and right constituents. Unless --no-resolve is\ngiven every constituent is also resolved through the annotator.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eq, err := reaction.SplitEquation(args[0])
			if err != nil {
				return err
			}
			if noResolve {
				return PrintResult(cmd, splitResult{
					Reaction: eq.Text,
					Left:     unresolved(eq.Left),
					Right:    unresolved(eq.Right),
				})
			}
			return withResolver(cmd, func(r chemresolver.Resolver) error {
				ctx := cmd.Context()
				resolve := func(names []string) []reaction.Constituent {
					out := make([]reaction.Constituent, 0, len(names))
					for _, n := range names {
						out = append(out, reaction.Constituent{Name: n, ChEBI: r.Resolve(ctx, n)})
					}
					return out
				}
				return PrintResult(cmd, splitResult{Reaction: eq.Text, Left: resolve(eq.Left), Right: resolve(eq.Right)})
			})
		},
	}
	cmd.Flags().BoolVar(&noResolve, "no-resolve", false, "only split, do not call the annotator")
	return cmd
}

// withResolver opens the cache backends and hands fn the configured resolver.
func withResolver(cmd *cobra.Command, fn func(chemresolver.Resolver) error) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}
	ctx, cancel := cliCtx.WithTimeout(cmd.Context())
	defer cancel()
	cmd.SetContext(ctx)

	infra, err := cliCtx.Open(ctx, bootstrap.Options{SkipStore: true, SkipSinks: true})
	if err != nil {
		return err
	}
	defer infra.Close()

	r, err := infra.Resolver()
	if err != nil {
		return err
	}
	return fn(r)
}

func unresolved(names []string) []reaction.Constituent {
	out := make([]reaction.Constituent, len(names))
	for i, n := range names {
		out[i] = reaction.Constituent{Name: n, ChEBI: reaction.NotFound()}
	}
	return out
}

type constituentTable []reaction.Constituent

func (c constituentTable) TableHeaders() []string { return []string{"NAME", "CHEBI"} }

func (c constituentTable) TableRows() [][]string {
	rows := make([][]string, len(c))
	for i, con := range c {
		rows[i] = []string{con.Name, con.ChEBI.OrElse("-")}
	}
	return rows
}

type splitResult struct {
	Reaction string                 `json:"reaction"`
	Left     []reaction.Constituent `json:"left"`
	Right    []reaction.Constituent `json:"right"`
}

func (s splitResult) TableHeaders() []string { return []string{"SIDE", "NAME", "CHEBI"} }

func (s splitResult) TableRows() [][]string {
	rows := make([][]string, 0, len(s.Left)+len(s.Right))
	for _, c := range s.Left {
		rows = append(rows, []string{"left", c.Name, c.ChEBI.OrElse("-")})
	}
	for _, c := range s.Right {
		rows = append(rows, []string{"right", c.Name, c.ChEBI.OrElse("-")})
	}
	return rows
}
