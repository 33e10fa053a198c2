package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/turtacn/rxn-reconciler/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/rxn-reconciler/pkg/errors"
)

func newEventsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Inspect the document-upserted event stream",
	}
	cmd.AddCommand(newEventsTailCmd(), newEventsEnsureCmd())
	return cmd
}

func newEventsTailCmd() *cobra.Command {
	opts := kafka.TailOptions{}
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Print events from the document topic as JSON lines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			if !cliCtx.Config.Kafka.Enabled {
				return errors.New(errors.ErrCodeConfig, "kafka is not enabled")
			}
			if opts.Limit < 0 {
				return errors.Newf(errors.ErrCodeBadRequest, "--limit must be >= 0, got %d", opts.Limit)
			}
			ctx, cancel := cliCtx.WithTimeout(cmd.Context())
			defer cancel()

			tailer, err := kafka.NewTailer(cliCtx.Config.Kafka, opts, cliCtx.Logger)
			if err != nil {
				return err
			}
			defer tailer.Close()

			n, err := tailer.Run(ctx, printEnvelope(cmd))
			cliCtx.Logger.Debug(fmt.Sprintf("tailed %d events", n))
			return err
		},
	}
	cmd.Flags().StringVar(&opts.GroupID, "group", "", "consumer group; commits offsets when set")
	cmd.Flags().BoolVar(&opts.FromStart, "from-start", false, "start at the oldest retained offset")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "stop after N events (0 = until interrupted)")
	return cmd
}

// printEnvelope writes one compact JSON object per envelope.
func printEnvelope(cmd *cobra.Command) kafka.EnvelopeHandler {
	enc := json.NewEncoder(cmd.OutOrStdout())
	return func(_ context.Context, env *kafka.EventEnvelope) error {
		return enc.Encode(env)
	}
}

func newEventsEnsureCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ensure",
		Short: "Create the document topic when it does not exist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			kcfg := cliCtx.Config.Kafka
			if !kcfg.Enabled {
				return errors.New(errors.ErrCodeConfig, "kafka is not enabled")
			}
			ctx, cancel := cliCtx.WithTimeout(cmd.Context())
			defer cancel()

			tm, err := kafka.NewTopicManager(kcfg.Brokers, cliCtx.Logger)
			if err != nil {
				return err
			}
			defer tm.Close()
			if err := tm.EnsureTopic(ctx, kafka.DefaultDocumentTopic(kcfg.Topic)); err != nil {
				return err
			}
			PrintSuccess(cmd, fmt.Sprintf("topic %s is present", kcfg.Topic))
			return nil
		},
	}
}
