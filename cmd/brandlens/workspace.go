package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/mohammad-safakhou/brandlens/internal/server"
	"github.com/mohammad-safakhou/brandlens/internal/store"
	"github.com/spf13/cobra"
)

func workspaceCMD(cfgPath *string) *cobra.Command {
	ws := &cobra.Command{
		Use:   "workspace",
		Short: "Manage registered brands",
	}

	withStore := func(cmd *cobra.Command, fn func(ctx context.Context, st *store.Store) error) error {
		ctx := cmd.Context()
		a, err := loadApp(ctx, *cfgPath)
		if err != nil {
			return err
		}
		defer a.close(context.Background())
		if err := a.requireStore(); err != nil {
			return err
		}
		return fn(ctx, a.store)
	}

	var brand, domain, cron string
	add := &cobra.Command{
		Use:   "add",
		Short: "Register a brand",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := server.ValidateCron(cron); err != nil {
				return err
			}
			return withStore(cmd, func(ctx context.Context, st *store.Store) error {
				created, err := st.CreateWorkspace(ctx, store.Workspace{BrandName: brand, Domain: domain, RefreshCron: cron})
				if err != nil {
					return err
				}
				fmt.Println(created.ID)
				return nil
			})
		},
	}
	add.Flags().StringVar(&brand, "brand", "", "brand name (unique)")
	add.Flags().StringVar(&domain, "domain", "", "brand web domain")
	add.Flags().StringVar(&cron, "cron", "", "refresh schedule, e.g. @daily or \"0 6 * * *\"")
	_ = add.MarkFlagRequired("brand")
	_ = add.MarkFlagRequired("domain")

	list := &cobra.Command{
		Use:   "list",
		Short: "List registered brands",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(ctx context.Context, st *store.Store) error {
				items, err := st.ListWorkspaces(ctx)
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tBRAND\tDOMAIN\tCRON\tLAST FACT")
				for _, it := range items {
					last := "never"
					if ts, err := st.LatestFactTime(ctx, it.ID); err == nil && ts != nil {
						last = humanize.Time(*ts)
					}
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", it.ID, it.BrandName, it.Domain, it.RefreshCron, last)
				}
				return w.Flush()
			})
		},
	}

	remove := &cobra.Command{
		Use:   "remove <id>",
		Short: "Delete a workspace and its facts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(ctx context.Context, st *store.Store) error {
				ok, err := st.DeleteWorkspace(ctx, args[0])
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("workspace %s not found", args[0])
				}
				return nil
			})
		},
	}

	ws.AddCommand(add, list, remove)
	return ws
}
