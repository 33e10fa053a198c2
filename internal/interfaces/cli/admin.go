package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/turtacn/rxn-reconciler/internal/infrastructure/database/redis"
	"github.com/turtacn/rxn-reconciler/internal/infrastructure/search/opensearch"
	"github.com/turtacn/rxn-reconciler/pkg/errors"
)

func newIndexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Manage the OpenSearch document indices",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "ensure",
		Short: "Create the rhea and enzyme indices when missing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			if !cliCtx.Config.OpenSearch.Enabled {
				return errors.New(errors.ErrCodeConfig, "opensearch is not enabled")
			}
			ctx, cancel := cliCtx.WithTimeout(cmd.Context())
			defer cancel()

			client, err := opensearch.NewClient(cliCtx.Config.OpenSearch, cliCtx.Logger)
			if err != nil {
				return err
			}
			defer client.Close()
			if err := opensearch.NewDocumentIndexer(client, false, cliCtx.Logger).EnsureIndices(ctx); err != nil {
				return err
			}
			PrintSuccess(cmd, "indices are present")
			return nil
		},
	})
	return cmd
}

func newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the compound resolution cache",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "purge",
		Short: "Delete every cached compound resolution from Redis",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			if !cliCtx.Config.Redis.Enabled {
				return errors.New(errors.ErrCodeConfig, "redis is not enabled")
			}
			ctx, cancel := cliCtx.WithTimeout(cmd.Context())
			defer cancel()

			client, err := redis.NewClient(cliCtx.Config.Redis, cliCtx.Logger)
			if err != nil {
				return err
			}
			defer client.Close()
			n, err := redis.NewResolutionCache(client, cliCtx.Logger).Purge(ctx)
			if err != nil {
				return err
			}
			PrintSuccess(cmd, fmt.Sprintf("purged %d cached resolutions", n))
			return nil
		},
	})
	return cmd
}

// buildInfo is printed by the version command.
type buildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
}

func (b buildInfo) String() string {
	return fmt.Sprintf("rxnrecon %s (commit %s, built %s, %s)", b.Version, b.Commit, b.BuildDate, b.GoVersion)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return PrintResult(cmd, buildInfo{
				Version:   Version,
				Commit:    GitCommit,
				BuildDate: BuildDate,
				GoVersion: runtime.Version(),
			})
		},
	}
}
