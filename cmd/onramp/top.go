package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/onramp-ai/onramp/pkg/analytics"
)

func newTopCmd() *cobra.Command {
	var (
		configPath string
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "top",
		Short: "Show the most frequently asked questions",
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

			top, err := rec.TopStored(context.Background(), limit)
			if err != nil {
				return err
			}
			if len(top) == 0 {
				fmt.Println("No interactions recorded.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "FINGERPRINT\tHITS\tCATEGORY\tLAST ASKED")
			for _, q := range top {
				fmt.Fprintf(w, "%.16s\t%d\t%s\t%s\n",
					q.Fingerprint, q.HitCount, q.Category, q.LastAccessed.Format("2006-01-02T15:04:05"))
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to config file")
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "number of questions to show")
	return cmd
}
