package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/onramp-ai/onramp/pkg/analytics"
)

func newStatsCmd() *cobra.Command {
	var (
		configPath string
		identity   string
	)

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show recorded interaction statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}

			rec, err := analytics.New(cfg.DBPath)
			if err != nil {
				return err
			}
			defer rec.Close()

			summaries, err := rec.Summary(context.Background(), identity)
			if err != nil {
				return err
			}
			if len(summaries) == 0 {
				fmt.Println("No interactions recorded.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "PROVIDER\tCATEGORY\tQUERIES\tTOKENS\tCOST")
			for _, s := range summaries {
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\t$%.4f\n",
					s.Provider, s.Category, s.Count, s.Tokens, s.Cost)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to config file")
	cmd.Flags().StringVar(&identity, "identity", "", "filter by hashed identity")
	return cmd
}
