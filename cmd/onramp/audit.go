package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/onramp-ai/onramp/pkg/audit"
)

func newAuditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Query and manage the privacy audit log",
	}
	cmd.AddCommand(newAuditListCmd(), newAuditCleanupCmd())
	return cmd
}

func newAuditListCmd() *cobra.Command {
	var (
		configPath string
		identity   string
		kind       string
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List audit events",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}

			l, err := audit.New(cfg.AuditPath, 0)
			if err != nil {
				return err
			}
			defer func() { _ = l.Close() }()

			events, err := l.Query(context.Background(), identity, kind, limit)
			if err != nil {
				return err
			}
			if len(events) == 0 {
				fmt.Println("No audit events found.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TIME\tIDENTITY\tKIND\tDETAIL")
			for _, e := range events {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
					e.CreatedAt.Format("2006-01-02T15:04:05"), e.Identity, e.Kind, e.Detail)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to config file")
	cmd.Flags().StringVar(&identity, "identity", "", "filter by hashed identity")
	cmd.Flags().StringVar(&kind, "kind", "", "filter by event kind")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "maximum events to show")
	return cmd
}

func newAuditCleanupCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete audit events past the retention window",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}

			l, err := audit.New(cfg.AuditPath, cfg.Privacy.RetentionDays)
			if err != nil {
				return err
			}
			defer func() { _ = l.Close() }()

			n, err := l.Cleanup(context.Background())
			if err != nil {
				return err
			}
			fmt.Printf("Deleted %d expired audit events.\n", n)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to config file")
	return cmd
}
