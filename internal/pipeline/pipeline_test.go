package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GabrielNunesIT/logflux/internal/config"
	"github.com/GabrielNunesIT/logflux/internal/metric"
	"github.com/GabrielNunesIT/logflux/internal/model"
	"github.com/GabrielNunesIT/logflux/internal/rule"
	"github.com/GabrielNunesIT/logflux/internal/testutil"
)

// fakeSink records written batches and can be made to fail.
type fakeSink struct {
	mu       sync.Mutex
	batches  [][]*model.Point
	writeErr error
	started  bool
	stopped  bool
}

func (f *fakeSink) Name() string { return "fake" }

func (f *fakeSink) Start(ctx context.Context) error {
	f.started = true
	return nil
}

func (f *fakeSink) Stop(ctx context.Context) error {
	f.stopped = true
	return nil
}

func (f *fakeSink) Write(ctx context.Context, points []*model.Point) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	f.batches = append(f.batches, points)
	return nil
}

func (f *fakeSink) allBatches() [][]*model.Point {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.batches
}

func newTestPipeline(t *testing.T, cfg *config.Config, s *fakeSink) *Pipeline {
	t.Helper()
	p, err := New(cfg, metric.NewSet(prometheus.NewRegistry()), testutil.NewTestLogger(), WithSinks(s))
	require.NoError(t, err)
	require.NoError(t, p.Start(context.Background()))
	return p
}

// Legacy input with a rule matching the level key and no explicit fields:
// the implicit value field sources the message body.
func TestPipeline_LegacyMessageImplicitField(t *testing.T) {
	cfg := &config.Config{
		Rules: []rule.Definition{{
			Name:  "errors",
			Match: rule.MatchSpec{Key: "level", Regex: "error"},
		}},
	}
	s := &fakeSink{}
	p := newTestPipeline(t, cfg, s)

	p.Handle(context.Background(), testutil.NewTestLogger(),
		[]byte("@timestamp: 2024-01-01T00:00:00Z\nlevel: error\nhost: db1\n\nsomething broke"))

	batches := s.allBatches()
	require.Len(t, batches, 1)
	require.Len(t, batches[0], 1)

	pt := batches[0][0]
	assert.Equal(t, "errors", pt.Measurement)
	assert.Equal(t, "2024-01-01T00:00:00Z", pt.Time)
	assert.Equal(t, map[string]any{"value": "something broke"}, pt.Fields)
	assert.Nil(t, pt.Tags)
}

// JSON input with a typed field lookup resolves to an integer field.
func TestPipeline_JSONMessageTypedField(t *testing.T) {
	cfg := &config.Config{
		Rules: []rule.Definition{{
			Name:   "warnings",
			Match:  rule.MatchSpec{Key: "level", Regex: "^warn$"},
			Fields: map[string]any{"latency_ms": map[string]any{"lookup": "latency_ms", "type": "int"}},
		}},
	}
	s := &fakeSink{}
	p := newTestPipeline(t, cfg, s)

	p.Handle(context.Background(), testutil.NewTestLogger(),
		[]byte(`{"@timestamp":"2024-01-01T00:00:00Z","level":"warn","latency_ms":"120"}`))

	batches := s.allBatches()
	require.Len(t, batches, 1)
	require.Len(t, batches[0], 1)
	assert.Equal(t, map[string]any{"latency_ms": int64(120)}, batches[0][0].Fields)
}

// A capture-group lookup resolves the named group from the match against
// the rule's own key.
func TestPipeline_CaptureGroupLookup(t *testing.T) {
	cfg := &config.Config{
		Rules: []rule.Definition{{
			Name:   "codes",
			Match:  rule.MatchSpec{Key: "level", Regex: `(?P<code>E\d+)-.*`},
			Fields: map[string]any{"code": "level.code"},
		}},
	}
	s := &fakeSink{}
	p := newTestPipeline(t, cfg, s)

	p.Handle(context.Background(), testutil.NewTestLogger(),
		[]byte(`{"@timestamp":"t","level":"E42-timeout"}`))

	batches := s.allBatches()
	require.Len(t, batches, 1)
	assert.Equal(t, map[string]any{"code": "E42"}, batches[0][0].Fields)
}

// A sink failure is contained: the next message is accepted and
// processed correctly.
func TestPipeline_SinkFailureDoesNotStickToNextMessage(t *testing.T) {
	cfg := &config.Config{
		Rules: []rule.Definition{{
			Name:  "errors",
			Match: rule.MatchSpec{Key: "level", Regex: "error"},
		}},
	}
	s := &fakeSink{writeErr: errors.New("sink down")}
	p := newTestPipeline(t, cfg, s)
	log := testutil.NewTestLogger()

	p.Handle(context.Background(), log,
		[]byte(`{"@timestamp":"t","level":"error","message":"first"}`))

	s.mu.Lock()
	s.writeErr = nil
	s.mu.Unlock()

	p.Handle(context.Background(), log,
		[]byte(`{"@timestamp":"t","level":"error","message":"second"}`))

	batches := s.allBatches()
	require.Len(t, batches, 1)
	assert.Equal(t, map[string]any{"value": "second"}, batches[0][0].Fields)
}

// A message missing the rule's target key never matches and never raises.
func TestPipeline_MissingTargetKey(t *testing.T) {
	cfg := &config.Config{
		Rules: []rule.Definition{{
			Name:  "errors",
			Match: rule.MatchSpec{Key: "level", Regex: "error"},
		}},
	}
	s := &fakeSink{}
	p := newTestPipeline(t, cfg, s)

	p.Handle(context.Background(), testutil.NewTestLogger(),
		[]byte(`{"@timestamp":"t","severity":"error"}`))

	assert.Empty(t, s.allBatches())
}

// One rule's unbuildable point does not stop other rules from matching.
func TestPipeline_BadRulePointSkipped(t *testing.T) {
	cfg := &config.Config{
		Rules: []rule.Definition{
			{
				Name:   "broken",
				Match:  rule.MatchSpec{Key: "level", Regex: "error"},
				Fields: map[string]any{"v": "missing_key"},
			},
			{
				Name:  "errors",
				Match: rule.MatchSpec{Key: "level", Regex: "error"},
			},
		},
	}
	s := &fakeSink{}
	p := newTestPipeline(t, cfg, s)

	p.Handle(context.Background(), testutil.NewTestLogger(),
		[]byte(`{"@timestamp":"t","level":"error","message":"boom"}`))

	batches := s.allBatches()
	require.Len(t, batches, 1)
	require.Len(t, batches[0], 1)
	assert.Equal(t, "errors", batches[0][0].Measurement)
}

// After the first message commits JSON, a legacy-shaped message fails
// cleanly as a per-message error and nothing reaches the sink.
func TestPipeline_FormatStaysCommitted(t *testing.T) {
	cfg := &config.Config{
		Rules: []rule.Definition{{
			Name:  "errors",
			Match: rule.MatchSpec{Key: "level", Regex: "error"},
		}},
	}
	s := &fakeSink{}
	p := newTestPipeline(t, cfg, s)
	log := testutil.NewTestLogger()

	p.Handle(context.Background(), log,
		[]byte(`{"@timestamp":"t","level":"error","message":"a"}`))
	p.Handle(context.Background(), log,
		[]byte("@timestamp: t\nlevel: error\n\nb"))

	batches := s.allBatches()
	require.Len(t, batches, 1)
	assert.Equal(t, map[string]any{"value": "a"}, batches[0][0].Fields)
}

func TestPipeline_BadRuleFailsFast(t *testing.T) {
	cfg := &config.Config{
		Rules: []rule.Definition{{
			Name:  "broken",
			Match: rule.MatchSpec{Key: "level", Regex: "("},
		}},
	}
	_, err := New(cfg, metric.NewSet(prometheus.NewRegistry()), testutil.NewTestLogger(), WithSinks(&fakeSink{}))
	assert.Error(t, err)
}

func TestPipeline_Reconfigure(t *testing.T) {
	cfg := &config.Config{
		Rules: []rule.Definition{{
			Name:  "errors",
			Match: rule.MatchSpec{Key: "level", Regex: "error"},
		}},
	}
	s := &fakeSink{}
	p := newTestPipeline(t, cfg, s)
	log := testutil.NewTestLogger()

	require.NoError(t, p.Reconfigure([]rule.Definition{{
		Name:  "warnings",
		Match: rule.MatchSpec{Key: "level", Regex: "warn"},
	}}))
	assert.Equal(t, 1, p.RuleCount())

	p.Handle(context.Background(), log,
		[]byte(`{"@timestamp":"t","level":"warn","message":"w"}`))

	batches := s.allBatches()
	require.Len(t, batches, 1)
	assert.Equal(t, "warnings", batches[0][0].Measurement)

	// A bad replacement keeps the old set.
	assert.Error(t, p.Reconfigure([]rule.Definition{{
		Name:  "broken",
		Match: rule.MatchSpec{Key: "level", Regex: "("},
	}}))
	assert.Equal(t, 1, p.RuleCount())
}

func TestPipeline_ConcurrentHandle(t *testing.T) {
	cfg := &config.Config{
		Rules: []rule.Definition{{
			Name:  "errors",
			Match: rule.MatchSpec{Key: "level", Regex: "error"},
		}},
	}
	s := &fakeSink{}
	p := newTestPipeline(t, cfg, s)
	log := testutil.NewTestLogger()

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.Handle(context.Background(), log,
				[]byte(`{"@timestamp":"t","level":"error","message":"x"}`))
		}()
	}
	wg.Wait()

	assert.Len(t, s.allBatches(), 32)
}
