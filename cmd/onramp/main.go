package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/onramp-ai/onramp/pkg/config"
)

var version = "dev"

func main() {
	root := &cobra.Command{
		Use:     "onramp",
		Short:   "Onramp — crypto onboarding Q&A gateway",
		Version: version,
	}

	root.AddCommand(
		newServeCmd(),
		newStatsCmd(),
		newTopCmd(),
		newAuditCmd(),
		newCacheCmd(),
		newExportCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads the config file, falling back to defaults when the
// default path does not exist so the gateway runs out of the box.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if errors.Is(err, fs.ErrNotExist) && path == defaultConfigPath {
		return config.Default(), nil
	}
	return cfg, err
}

const defaultConfigPath = "onramp.yaml"
