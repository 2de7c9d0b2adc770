package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esutil"

	"github.com/GabrielNunesIT/logflux/internal/config"
	"github.com/GabrielNunesIT/logflux/internal/model"
)

// IndexerFactory creates a new BulkIndexer.
type IndexerFactory func(cfg config.ElasticsearchSinkConfig) (esutil.BulkIndexer, error)

// ElasticsearchOption configures the ElasticsearchSink.
type ElasticsearchOption func(*ElasticsearchSink)

// WithIndexerFactory sets a custom factory for creating the BulkIndexer.
// This is primarily used for testing to inject a mock indexer.
func WithIndexerFactory(f IndexerFactory) ElasticsearchOption {
	return func(s *ElasticsearchSink) {
		s.factory = f
	}
}

// ElasticsearchSink indexes points as documents for ad-hoc querying next
// to the primary metrics store.
type ElasticsearchSink struct {
	cfg     config.ElasticsearchSinkConfig
	factory IndexerFactory
	indexer esutil.BulkIndexer
}

// NewElasticsearchSink creates a new Elasticsearch sink.
func NewElasticsearchSink(cfg config.ElasticsearchSinkConfig, opts ...ElasticsearchOption) *ElasticsearchSink {
	s := &ElasticsearchSink{cfg: cfg}

	// Default factory creates real client and indexer
	s.factory = func(cfg config.ElasticsearchSinkConfig) (esutil.BulkIndexer, error) {
		esCfg := elasticsearch.Config{
			Addresses: cfg.Addresses,
		}
		if cfg.Username != "" {
			esCfg.Username = cfg.Username
			esCfg.Password = cfg.Password
		}

		client, err := elasticsearch.NewClient(esCfg)
		if err != nil {
			return nil, fmt.Errorf("creating elasticsearch client: %w", err)
		}

		return esutil.NewBulkIndexer(esutil.BulkIndexerConfig{
			Client:        client,
			Index:         cfg.Index,
			NumWorkers:    2,
			FlushBytes:    5e+6, // 5MB
			FlushInterval: cfg.FlushInterval,
		})
	}

	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the sink identifier.
func (s *ElasticsearchSink) Name() string {
	return "elasticsearch"
}

// Start initializes the Elasticsearch client and bulk indexer.
func (s *ElasticsearchSink) Start(ctx context.Context) error {
	indexer, err := s.factory(s.cfg)
	if err != nil {
		return err
	}
	s.indexer = indexer
	return nil
}

// Stop flushes and closes the bulk indexer.
func (s *ElasticsearchSink) Stop(ctx context.Context) error {
	if s.indexer != nil {
		return s.indexer.Close(ctx)
	}
	return nil
}

// Write adds each point to the bulk indexer.
func (s *ElasticsearchSink) Write(ctx context.Context, points []*model.Point) error {
	for _, p := range points {
		doc := map[string]any{
			"@timestamp":  p.Time,
			"measurement": p.Measurement,
			"fields":      p.Fields,
		}
		if len(p.Tags) > 0 {
			doc["tags"] = p.Tags
		}

		data, err := json.Marshal(doc)
		if err != nil {
			return err
		}

		err = s.indexer.Add(ctx, esutil.BulkIndexerItem{
			Action: "index",
			Body:   bytes.NewReader(data),
		})
		if err != nil {
			return err
		}
	}
	return nil
}
