package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/onramp-ai/onramp/pkg/analytics"
	"github.com/onramp-ai/onramp/pkg/audit"
	"github.com/onramp-ai/onramp/pkg/cache"
	"github.com/onramp-ai/onramp/pkg/config"
	"github.com/onramp-ai/onramp/pkg/llm"
	"github.com/onramp-ai/onramp/pkg/memory"
	"github.com/onramp-ai/onramp/pkg/pipeline"
	"github.com/onramp-ai/onramp/pkg/privacy"
	"github.com/onramp-ai/onramp/pkg/retrieval"
	"github.com/onramp-ai/onramp/pkg/server"
	"github.com/onramp-ai/onramp/pkg/usage"
	"github.com/onramp-ai/onramp/pkg/validator"
)

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the Q&A gateway server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			auditor, err := audit.New(cfg.AuditPath, cfg.Privacy.RetentionDays)
			if err != nil {
				return fmt.Errorf("init audit log: %w", err)
			}
			defer func() { _ = auditor.Close() }()

			recorder, err := analytics.New(cfg.DBPath)
			if err != nil {
				return fmt.Errorf("init analytics: %w", err)
			}
			defer func() { _ = recorder.Close() }()

			var answers *cache.Cache
			if cfg.Cache.Enabled {
				answers, err = cache.New(cfg.CachePath, cfg.Cache.TTL)
				if err != nil {
					return fmt.Errorf("init cache: %w", err)
				}
				defer func() { _ = answers.Close() }()
			}

			retriever, err := buildRetriever(cfg)
			if err != nil {
				return fmt.Errorf("init retrieval: %w", err)
			}
			defer func() { _ = retriever.Close() }()

			gate := usage.New(cfg.Tiers, cfg.Usage.Period)
			filter := privacy.New(cfg.Privacy.ConsentRegions, cfg.Privacy.ConsentTTL, auditor)

			mem := memory.New(cfg.Memory.MaxHistory, cfg.Memory.TTL, cfg.Memory.MaxContextChars)
			if cfg.Memory.SweepInterval > 0 {
				mem.StartSweeper(cfg.Memory.SweepInterval)
			}
			defer mem.Close()

			router := llm.New(cfg.Providers, &llm.HTTPInvoker{
				Client: &http.Client{Timeout: cfg.Router.Timeout + 5*time.Second},
			}, cfg.Router.Timeout)

			orch := pipeline.New(gate, filter, mem, router, validator.New(), recorder,
				answers, retriever, auditor, pipeline.Options{
					TopK:         cfg.Retrieval.TopK,
					MinHitCount:  cfg.Cache.MinHitCount,
					SystemPrompt: cfg.Router.SystemPrompt,
				})

			srv := server.New(cfg, orch, gate, filter, recorder, router, mem, answers)

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log.Printf("starting onramp gateway with config: %s", configPath)
			return srv.ListenAndServe(ctx)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to config file")
	return cmd
}

func buildRetriever(cfg *config.Config) (retrieval.Retriever, error) {
	if cfg.Retrieval.Backend != "qdrant" {
		return retrieval.NewStatic(), nil
	}
	embedder := retrieval.NewHTTPEmbedder(cfg.Retrieval.EmbeddingURL,
		cfg.Retrieval.EmbeddingKey, cfg.Retrieval.EmbeddingModel)
	return retrieval.NewQdrant(retrieval.QdrantConfig{
		URL:            cfg.Retrieval.QdrantURL,
		CollectionName: cfg.Retrieval.Collection,
		APIKey:         cfg.Retrieval.QdrantAPIKey,
	}, embedder)
}
