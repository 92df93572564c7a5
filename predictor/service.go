package predictor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"trafficcast/db"
	"trafficcast/ml"
	"trafficcast/monitoring"
	"trafficcast/pipeline"
)

// Channels a predict action can arrive on.
const (
	ChannelForm = "form"
	ChannelAPI  = "api"
	ChannelWS   = "ws"
)

// PredictionRecorder persists served predictions.
type PredictionRecorder interface {
	RecordPrediction(ctx context.Context, entry db.PredictionLog) error
}

// Publisher receives every completed prediction. Publish must not block.
type Publisher interface {
	Publish(ev monitoring.PredictionEvent)
}

// Options are the optional collaborators of a Service.
type Options struct {
	// CacheSize bounds the result cache; zero or less disables it.
	CacheSize int
	Recorder  PredictionRecorder
	Feed      Publisher
	Metrics   *monitoring.Metrics
	Logger    *zap.Logger
	Clock     clockwork.Clock
}

// Service is built once at startup and shared by every request. The model
// and domains are fixed for the life of the process, so results are cached
// by input.
type Service struct {
	model    ml.Model
	domains  []pipeline.Domain
	cache    *lru.Cache[string, float64]
	recorder PredictionRecorder
	feed     Publisher
	metrics  *monitoring.Metrics
	logger   *zap.Logger
	clock    clockwork.Clock
}

// New builds the service around a loaded model and the form domains.
func New(model ml.Model, domains []pipeline.Domain, opts Options) (*Service, error) {
	if model == nil {
		return nil, errors.New("predictor: model is required")
	}
	s := &Service{
		model:    model,
		domains:  domains,
		recorder: opts.Recorder,
		feed:     opts.Feed,
		metrics:  opts.Metrics,
		logger:   opts.Logger,
		clock:    opts.Clock,
	}
	if s.metrics == nil {
		s.metrics = monitoring.NewMetricsForTesting()
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.clock == nil {
		s.clock = clockwork.NewRealClock()
	}
	if opts.CacheSize > 0 {
		cache, err := lru.New[string, float64](opts.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("predictor cache: %w", err)
		}
		s.cache = cache
	}
	return s, nil
}

// Domains are the categorical selectors, in dataset column order.
func (s *Service) Domains() []pipeline.Domain {
	return s.domains
}

// Request is one predict action.
type Request struct {
	ID      string
	Channel string
	Input   Input
}

// Result is the outcome of one predict action. Exactly one of Value and Err
// is meaningful.
type Result struct {
	Value  float64
	Err    error
	Cached bool
}

// Message is the text shown to the user.
func (r Result) Message() string {
	if r.Err != nil {
		return FormatError(r.Err)
	}
	return FormatResult(r.Value)
}

// FormatResult renders v rounded to two decimals.
func FormatResult(v float64) string {
	return "Predicted Traffic Volume: " + formatRounded(v) + " vehicles/hour"
}

// FormatError renders a failed prediction.
func FormatError(err error) string {
	return "Error in making prediction: " + err.Error()
}

// formatRounded prints at most two decimals and keeps a ".0" on whole
// numbers, so 5545 reads "5545.0".
func formatRounded(v float64) string {
	text := strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64)
	if !math.IsInf(v, 0) && !math.IsNaN(v) && !strings.Contains(text, ".") {
		text += ".0"
	}
	return text
}

// Predict runs one input through the model. It never panics and never
// returns a partial result; every failure is reported in Result.Err.
func (s *Service) Predict(ctx context.Context, req Request) Result {
	start := s.clock.Now()
	key := s.Key(req.Input)

	var res Result
	if v, ok := s.cachedValue(key); ok {
		res = Result{Value: v, Cached: true}
	} else {
		v, err := s.score(req.Input)
		res = Result{Value: v, Err: err}
		if err == nil && s.cache != nil {
			s.cache.Add(key, v)
		}
	}
	elapsed := s.clock.Since(start)

	outcome := "success"
	errText := ""
	if res.Err != nil {
		outcome = "error"
		errText = res.Err.Error()
	}
	s.metrics.Predictions.WithLabelValues(outcome, req.Channel).Inc()
	s.metrics.PredictionDuration.Observe(elapsed.Seconds())

	fields := []zap.Field{
		zap.String("request_id", req.ID),
		zap.String("channel", req.Channel),
		zap.Bool("cached", res.Cached),
		zap.Duration("elapsed", elapsed),
	}
	if res.Err != nil {
		s.logger.Warn("prediction failed", append(fields, zap.Error(res.Err))...)
	} else {
		s.logger.Info("prediction served", append(fields, zap.Float64("value", res.Value))...)
	}

	if s.recorder != nil {
		entry := db.PredictionLog{
			RequestID: req.ID,
			Input:     key,
			Predicted: res.Value,
			Error:     errText,
			Cached:    res.Cached,
		}
		if err := s.recorder.RecordPrediction(ctx, entry); err != nil {
			s.logger.Warn("failed to record prediction", zap.String("request_id", req.ID), zap.Error(err))
		}
	}
	if s.feed != nil {
		s.feed.Publish(monitoring.PredictionEvent{
			RequestID: req.ID,
			Channel:   req.Channel,
			Input:     s.flatten(req.Input),
			Value:     res.Value,
			Error:     errText,
			Cached:    res.Cached,
			Timestamp: s.clock.Now().UTC(),
		})
	}
	return res
}

func (s *Service) cachedValue(key string) (float64, bool) {
	if s.cache == nil {
		return 0, false
	}
	v, ok := s.cache.Get(key)
	if ok {
		s.metrics.CacheLookups.WithLabelValues("hit").Inc()
	} else {
		s.metrics.CacheLookups.WithLabelValues("miss").Inc()
	}
	return v, ok
}

func (s *Service) score(in Input) (value float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("model panicked: %v", r)
		}
	}()

	row, err := s.BuildRow(in)
	if err != nil {
		return 0, err
	}
	out, err := s.model.Predict(row)
	if err != nil {
		return 0, err
	}
	if len(out) != 1 {
		return 0, fmt.Errorf("model returned %d values for one row", len(out))
	}
	if math.IsNaN(out[0]) || math.IsInf(out[0], 0) {
		return 0, fmt.Errorf("model returned non-finite value %v", out[0])
	}
	return out[0], nil
}

func (s *Service) flatten(in Input) map[string]string {
	out := make(map[string]string, len(NumericControls)+len(s.domains))
	for _, c := range NumericControls {
		out[c.Field] = strconv.FormatFloat(in.numeric(c), 'f', -1, 64)
	}
	for _, d := range s.domains {
		out[d.Column] = in.categorical(d)
	}
	return out
}
