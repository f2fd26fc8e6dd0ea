package core

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusMetricsRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec, err := NewPrometheusMetricsRecorder(reg)
	require.NoError(t, err)

	svc, _ := newTestService(t, WithMetricsRecorder(rec))
	mustSku(t, svc, SkuInput{})
	_, err = svc.CreateSku(context.Background(), SkuInput{Diameter: -1})
	require.Error(t, err)

	families, err := reg.Gather()
	require.NoError(t, err)
	counts := map[string]float64{}
	for _, mf := range families {
		if mf.GetName() != "spoolbook_operations_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			var op, st string
			for _, lp := range m.GetLabel() {
				switch lp.GetName() {
				case "operation":
					op = lp.GetValue()
				case "status":
					st = lp.GetValue()
				}
			}
			counts[op+"/"+st] = m.GetCounter().GetValue()
		}
	}
	assert.Equal(t, 1.0, counts["create_sku/success"])
	assert.Equal(t, 1.0, counts["create_sku/error"])

	_, err = NewPrometheusMetricsRecorder(reg)
	require.Error(t, err, "registering twice on one registry must fail")

	path := filepath.Join(t.TempDir(), "spoolbook.prom")
	require.NoError(t, rec.WriteTextfile(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `spoolbook_operations_total{operation="create_sku",status="success"} 1`)
}

func TestExpvarMetricsRecorder(t *testing.T) {
	first := NewExpvarMetricsRecorder("spoolbook_test_ops")
	second := NewExpvarMetricsRecorder("spoolbook_test_ops")
	assert.NotEqual(t, first.Name(), second.Name())

	ctx := context.Background()
	first.Observe(ctx, "record_snapshot", true, 2*time.Millisecond)
	first.Observe(ctx, "record_snapshot", false, time.Millisecond)
	first.Observe(ctx, "", true, time.Second)

	snap := first.Snapshot()
	assert.InDelta(t, 3.0, snap.DurationsMS["record_snapshot"], 1e-9)
	assert.Equal(t, int64(1), snap.Results["record_snapshot"]["success"])
	assert.Equal(t, int64(1), snap.Results["record_snapshot"]["error"])
	assert.Len(t, snap.Results, 1)

	snap.Results["record_snapshot"]["success"] = 99
	assert.Equal(t, int64(1), first.Snapshot().Results["record_snapshot"]["success"])
}

func TestExpvarMetricsRecorderConcurrentSameName(t *testing.T) {
	const workers = 16
	names := make([]string, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			names[i] = NewExpvarMetricsRecorder("spoolbook_concurrent_ops").Name()
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool, workers)
	for _, name := range names {
		require.NotEmpty(t, name)
		require.False(t, seen[name], "name %s published twice", name)
		seen[name] = true
	}
}

func TestMultiMetricsRecorderFansOut(t *testing.T) {
	a, b := &captureMetrics{}, &captureMetrics{}
	MultiMetricsRecorder{a, b}.Observe(context.Background(), "op", true, 0)
	assert.True(t, a.has("op", true))
	assert.True(t, b.has("op", true))
}
