package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/onramp-ai/onramp/pkg/analytics"
	"github.com/onramp-ai/onramp/pkg/audit"
	"github.com/onramp-ai/onramp/pkg/privacy"
)

// newExportCmd dumps everything stored on disk for one identity as JSON.
// In-process state (quota counters, conversation history) lives only in
// a running gateway and is exported through its /v1/export endpoint.
func newExportCmd() *cobra.Command {
	var (
		configPath string
		userID     string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export stored data for a user as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID == "" {
				return fmt.Errorf("--user is required")
			}
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			identity := privacy.HashIdentity(userID)
			ctx := context.Background()

			rec, err := analytics.New(cfg.DBPath)
			if err != nil {
				return err
			}
			defer rec.Close()

			interactions, err := rec.Interactions(ctx, identity, 0)
			if err != nil {
				return err
			}

			l, err := audit.New(cfg.AuditPath, 0)
			if err != nil {
				return err
			}
			defer func() { _ = l.Close() }()

			events, err := l.Query(ctx, identity, "", 0)
			if err != nil {
				return err
			}

			out := map[string]any{
				"identity":     identity,
				"interactions": interactions,
				"audit_events": events,
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to config file")
	cmd.Flags().StringVarP(&userID, "user", "u", "", "raw user identifier to export")
	return cmd
}
