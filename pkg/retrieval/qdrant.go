package retrieval

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/qdrant/go-client/qdrant"

	"github.com/onramp-ai/onramp/pkg/models"
)

// QdrantConfig holds connection settings for a Qdrant-backed retriever.
type QdrantConfig struct {
	// URL is the Qdrant server address, e.g. "https://example.qdrant.io:6334".
	URL string

	// CollectionName is the collection holding the knowledge base.
	CollectionName string

	// APIKey is an optional authentication key.
	APIKey string
}

// Qdrant retrieves snippets by vector similarity. Queries are embedded
// first, then matched against the configured collection.
type Qdrant struct {
	client     *qdrant.Client
	collection string
	embedder   Embedder
}

// NewQdrant creates a Qdrant retriever.
func NewQdrant(cfg QdrantConfig, embedder Embedder) (*Qdrant, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("qdrant url is required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("qdrant retriever requires an embedder")
	}

	addr := cfg.URL
	if !strings.HasPrefix(addr, "http://") && !strings.HasPrefix(addr, "https://") {
		addr = "https://" + addr
	}
	u, err := url.Parse(addr)
	if err != nil {
		return nil, fmt.Errorf("parse qdrant url: %w", err)
	}

	host := u.Hostname()
	port := 6334
	if u.Port() != "" {
		p, err := strconv.Atoi(u.Port())
		if err != nil {
			return nil, fmt.Errorf("invalid qdrant port: %w", err)
		}
		port = p
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: cfg.APIKey,
		UseTLS: u.Scheme == "https",
	})
	if err != nil {
		return nil, fmt.Errorf("create qdrant client: %w", err)
	}

	return &Qdrant{
		client:     client,
		collection: cfg.CollectionName,
		embedder:   embedder,
	}, nil
}

// Search embeds the query and returns the k nearest snippets.
func (q *Qdrant) Search(ctx context.Context, query string, k int) ([]models.Source, error) {
	vector, err := q.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	limit := uint64(k)
	points, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant search: %w", err)
	}

	out := make([]models.Source, 0, len(points))
	for _, point := range points {
		src := models.Source{Metadata: map[string]string{
			"score": fmt.Sprintf("%.3f", point.Score),
		}}
		for key, v := range point.Payload {
			str := v.GetStringValue()
			if str == "" {
				continue
			}
			if key == "content" {
				src.Content = str
			} else {
				src.Metadata[key] = str
			}
		}
		if src.Content == "" {
			continue
		}
		out = append(out, src)
	}
	return out, nil
}

// Close releases the underlying gRPC connection.
func (q *Qdrant) Close() error {
	return q.client.Close()
}

var _ Retriever = (*Qdrant)(nil)
var _ Retriever = (*Static)(nil)
