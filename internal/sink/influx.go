package sink

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/GabrielNunesIT/go-libs/logger"
	client "github.com/influxdata/influxdb1-client/v2"

	"github.com/GabrielNunesIT/logflux/internal/config"
	"github.com/GabrielNunesIT/logflux/internal/model"
)

// InfluxClient is the subset of the InfluxDB client the sink uses.
type InfluxClient interface {
	Query(q client.Query) (*client.Response, error)
	Write(bp client.BatchPoints) error
	Close() error
}

// InfluxClientFactory creates an InfluxDB client.
type InfluxClientFactory func(cfg config.InfluxSinkConfig) (InfluxClient, error)

// InfluxOption configures the InfluxSink.
type InfluxOption func(*InfluxSink)

// WithInfluxClientFactory sets a custom client factory, primarily for
// injecting a mock client in tests.
func WithInfluxClientFactory(f InfluxClientFactory) InfluxOption {
	return func(s *InfluxSink) {
		s.factory = f
	}
}

// InfluxSink writes point batches to an InfluxDB v1 server.
type InfluxSink struct {
	cfg     config.InfluxSinkConfig
	factory InfluxClientFactory
	client  InfluxClient
	logger  logger.ILogger
}

// NewInfluxSink creates a new InfluxDB sink.
func NewInfluxSink(cfg config.InfluxSinkConfig, log logger.ILogger, opts ...InfluxOption) *InfluxSink {
	s := &InfluxSink{
		cfg:    cfg,
		logger: log.SubLogger("InfluxSink"),
	}

	s.factory = func(cfg config.InfluxSinkConfig) (InfluxClient, error) {
		return client.NewHTTPClient(client.HTTPConfig{
			Addr:     cfg.URL,
			Username: cfg.Username,
			Password: cfg.Password,
			Timeout:  cfg.Timeout,
		})
	}

	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the sink identifier.
func (s *InfluxSink) Name() string {
	return "influx"
}

// Start connects to InfluxDB and ensures the database exists.
func (s *InfluxSink) Start(ctx context.Context) error {
	c, err := s.factory(s.cfg)
	if err != nil {
		return fmt.Errorf("creating influx client: %w", err)
	}
	s.client = c

	q := client.NewQuery(fmt.Sprintf("CREATE DATABASE %q", s.cfg.Database), "", "")
	resp, err := s.client.Query(q)
	if err != nil {
		return fmt.Errorf("creating database %s: %w", s.cfg.Database, err)
	}
	if resp.Error() != nil {
		return fmt.Errorf("creating database %s: %w", s.cfg.Database, resp.Error())
	}

	s.logger.Infof("connected to InfluxDB: url=%s, database=%s", s.cfg.URL, s.cfg.Database)
	return nil
}

// Stop closes the client connection.
func (s *InfluxSink) Stop(ctx context.Context) error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// Write sends one batch of points.
func (s *InfluxSink) Write(ctx context.Context, points []*model.Point) error {
	if len(points) == 0 {
		return nil
	}

	bp, err := client.NewBatchPoints(client.BatchPointsConfig{
		Database:  s.cfg.Database,
		Precision: "ns",
	})
	if err != nil {
		return err
	}

	for _, p := range points {
		pt, err := s.toInfluxPoint(p)
		if err != nil {
			return err
		}
		bp.AddPoint(pt)
	}

	if err := s.client.Write(bp); err != nil {
		return fmt.Errorf("writing %d points: %w", len(points), err)
	}

	s.logger.Debugf("wrote %d points", len(points))
	return nil
}

// toInfluxPoint converts a model point to the client's representation.
// The core carries timestamps verbatim; the client needs a time.Time, so
// parsing happens here and an unparsable timestamp falls back to
// server-assigned time.
func (s *InfluxSink) toInfluxPoint(p *model.Point) (*client.Point, error) {
	tags := make(map[string]string, len(p.Tags))
	for k, v := range p.Tags {
		tags[k] = tagString(v)
	}

	ts, err := time.Parse(time.RFC3339Nano, p.Time)
	if err != nil {
		s.logger.Warningf("unparsable timestamp %q for measurement %s, using server time", p.Time, p.Measurement)
		return client.NewPoint(p.Measurement, tags, p.Fields)
	}
	return client.NewPoint(p.Measurement, tags, p.Fields, ts)
}

// tagString renders a resolved tag value as an InfluxDB tag string.
func tagString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return fmt.Sprint(val)
	}
}
