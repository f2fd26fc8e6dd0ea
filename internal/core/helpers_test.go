package core

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"spoolbook/internal/infra/persistence/memory"
	"spoolbook/internal/logging"
	"spoolbook/pkg/domain"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type sequentialIDs struct {
	mu sync.Mutex
	n  int
}

func (s *sequentialIDs) next() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return fmt.Sprintf("id-%03d", s.n)
}

type metricsCall struct {
	op      string
	success bool
}

type captureMetrics struct {
	mu    sync.Mutex
	calls []metricsCall
}

func (c *captureMetrics) Observe(_ context.Context, op string, success bool, _ time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, metricsCall{op: op, success: success})
}

func (c *captureMetrics) has(op string, success bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, call := range c.calls {
		if call.op == op && call.success == success {
			return true
		}
	}
	return false
}

type logEntry struct {
	level string
	msg   string
	args  []any
}

type captureLogger struct {
	mu      *sync.Mutex
	entries *[]logEntry
}

func newCaptureLogger() captureLogger {
	return captureLogger{mu: &sync.Mutex{}, entries: &[]logEntry{}}
}

func (c captureLogger) add(level, msg string, args []any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	*c.entries = append(*c.entries, logEntry{level: level, msg: msg, args: args})
}

func (c captureLogger) Debug(_ context.Context, msg string, args ...any) { c.add("debug", msg, args) }
func (c captureLogger) Info(_ context.Context, msg string, args ...any)  { c.add("info", msg, args) }
func (c captureLogger) Warn(_ context.Context, msg string, args ...any)  { c.add("warn", msg, args) }
func (c captureLogger) Error(_ context.Context, msg string, args ...any) { c.add("error", msg, args) }
func (c captureLogger) With(...any) logging.Logger                       { return c }

func (c captureLogger) count(level string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, e := range *c.entries {
		if e.level == level {
			n++
		}
	}
	return n
}

func newTestService(t *testing.T, opts ...Option) (*Service, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	ids := &sequentialIDs{}
	base := []Option{
		WithClock(func() time.Time { return testNow }),
		WithIDGenerator(ids.next),
	}
	return NewService(store, append(base, opts...)...), store
}

func mustSku(t *testing.T, svc *Service, in SkuInput) domain.FilamentSku {
	t.Helper()
	sku, err := svc.CreateSku(context.Background(), in)
	require.NoError(t, err)
	return sku
}

func ptr(v float64) *float64 { return &v }
