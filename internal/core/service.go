// Package core implements the spoolbook domain operations: SKU and listing
// management, price snapshots, purchases, spools and print jobs. Every
// mutating operation runs as one atomic transaction over the collections it
// touches and is checked by the rules engine before it commits.
package core

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/google/uuid"

	"spoolbook/internal/config"
	"spoolbook/internal/logging"
	"spoolbook/pkg/domain"
)

// Service exposes the transactional domain operations.
type Service struct {
	store    domain.PersistentStore
	engine   *domain.RulesEngine
	logger   logging.Logger
	metrics  MetricsRecorder
	now      func() time.Time
	newID    func() string
	defaults config.Defaults
}

// Option configures optional Service collaborators.
type Option func(*Service)

// WithLogger installs a structured logger.
func WithLogger(logger logging.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetricsRecorder installs an operation metrics recorder.
func WithMetricsRecorder(rec MetricsRecorder) Option {
	return func(s *Service) {
		if rec != nil {
			s.metrics = rec
		}
	}
}

// WithRulesEngine replaces the default rules engine.
func WithRulesEngine(engine *domain.RulesEngine) Option {
	return func(s *Service) {
		if engine != nil {
			s.engine = engine
		}
	}
}

// WithClock overrides the time source used for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator overrides identifier generation.
func WithIDGenerator(fn func() string) Option {
	return func(s *Service) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// WithDefaults overrides the categorical defaults and spool thresholds.
func WithDefaults(d config.Defaults) Option {
	return func(s *Service) { s.defaults = d }
}

// NewService constructs a service backed by the supplied store.
func NewService(store domain.PersistentStore, opts ...Option) *Service {
	var cfg config.Config
	cfg.LoadDefaults()
	s := &Service{
		store:    store,
		engine:   NewDefaultRulesEngine(),
		logger:   logging.Nop(),
		metrics:  noopMetrics{},
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
		defaults: cfg.Defaults,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store returns the underlying storage implementation.
func (s *Service) Store() domain.PersistentStore { return s.store }

func (s *Service) timestamp(t time.Time) time.Time {
	if t.IsZero() {
		return s.now().UTC()
	}
	return t.UTC()
}

// run executes fn in one transaction, evaluates the rules engine against the
// change log and records the outcome.
func (s *Service) run(ctx context.Context, op string, scope []domain.Collection, fn func(domain.Transaction) error, attrs ...any) error {
	started := time.Now()
	var warnings []domain.Violation
	err := s.store.RunInTransaction(ctx, scope, func(tx domain.Transaction) error {
		if err := fn(tx); err != nil {
			return err
		}
		res, err := s.engine.Evaluate(ctx, tx, tx.Changes())
		if err != nil {
			return err
		}
		if res.HasBlocking() {
			return domain.RuleViolationError{Result: res}
		}
		warnings = res.Violations
		return nil
	})
	s.metrics.Observe(ctx, op, err == nil, time.Since(started))
	for _, v := range warnings {
		s.logger.Warn(ctx, "rule warning", "operation", op, "rule", v.Rule, "collection", v.Collection, "key", v.Key, "message", v.Message)
	}
	s.logOutcome(ctx, op, err, attrs...)
	return err
}

// view executes a read-only fn over the declared collections.
func (s *Service) view(ctx context.Context, op string, scope []domain.Collection, fn func(domain.Reader) error) error {
	started := time.Now()
	err := s.store.View(ctx, scope, fn)
	s.metrics.Observe(ctx, op, err == nil, time.Since(started))
	if err != nil {
		s.logger.Debug(ctx, "read failed", "operation", op, "error", err)
	}
	return err
}

func (s *Service) logOutcome(ctx context.Context, op string, err error, attrs ...any) {
	args := append([]any{"operation", op}, attrs...)
	var rv domain.RuleViolationError
	switch {
	case err == nil:
		s.logger.Info(ctx, "operation committed", args...)
	case domain.IsValidation(err), domain.IsNotFound(err), errors.As(err, &rv):
		s.logger.Warn(ctx, "operation rejected", append(args, "error", err)...)
	default:
		s.logger.Error(ctx, "operation failed", append(args, "error", err)...)
	}
}

const notFinite = "must be a finite number"

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
