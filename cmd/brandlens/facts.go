package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/mohammad-safakhou/brandlens/internal/insight"
	"github.com/mohammad-safakhou/brandlens/internal/queue/streams"
	"github.com/spf13/cobra"
)

func factsCMD(cfgPath *string) *cobra.Command {
	facts := &cobra.Command{
		Use:   "facts",
		Short: "Inspect persisted insight facts",
	}

	var limit int
	list := &cobra.Command{
		Use:   "list <workspace-id>",
		Short: "Print the newest facts of a workspace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := loadApp(ctx, *cfgPath)
			if err != nil {
				return err
			}
			defer a.close(context.Background())
			if err := a.requireStore(); err != nil {
				return err
			}
			items, err := a.store.ListFacts(ctx, args[0], limit)
			if err != nil {
				return err
			}
			for _, f := range items {
				fmt.Printf("%s  %-22s %-12s %.2f  %s\n", f.CreatedAt.Format(time.RFC3339), f.Title, f.Source, f.Confidence, f.Summary)
			}
			return nil
		},
	}
	list.Flags().IntVar(&limit, "limit", 20, "maximum facts to print")

	var group string
	tail := &cobra.Command{
		Use:   "tail",
		Short: "Follow facts mirrored to the Redis stream",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := loadApp(ctx, *cfgPath)
			if err != nil {
				return err
			}
			defer a.close(context.Background())
			if a.rdb == nil {
				return errors.New("storage.redis.host is not configured")
			}
			stream := a.cfg.Storage.Stream.Name
			consumer := streams.NewConsumer(a.rdb, group, "tail-"+uuid.NewString()[:8])
			if err := consumer.EnsureGroup(ctx, stream, "$"); err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			for ctx.Err() == nil {
				msgs, err := consumer.Read(ctx, stream, streams.WithBlock(5*time.Second), streams.WithCount(50))
				if err != nil {
					if ctx.Err() != nil {
						return nil
					}
					return err
				}
				ids := make([]string, 0, len(msgs))
				for _, m := range msgs {
					var batch []insight.Fact
					if err := json.Unmarshal(m.Envelope.Data, &batch); err != nil {
						a.log.Warn().Err(err).Str("id", m.ID).Msg("skipping undecodable entry")
					}
					for _, f := range batch {
						if err := enc.Encode(f); err != nil {
							return err
						}
					}
					ids = append(ids, m.ID)
				}
				if err := consumer.Ack(ctx, stream, ids...); err != nil {
					return err
				}
			}
			return nil
		},
	}
	tail.Flags().StringVar(&group, "group", "brandlens-cli", "consumer group name")

	facts.AddCommand(list, tail)
	return facts
}
