// Copyright 2025 Certen Protocol

package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHandler_ExposesRegisteredMetricNames(t *testing.T) {
	m := New()
	m.TxnsAdmitted.Inc()
	m.TxnsRejected.WithLabelValues("invalid_proof").Inc()
	m.MempoolDepth.Set(3)
	m.BlockHeight.Set(42)

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	body := rec.Body.String()
	for _, want := range []string{
		"rollup_txns_admitted_total",
		"rollup_txns_rejected_total",
		"rollup_mempool_depth",
		"rollup_tree_size",
		"rollup_l1_safe_height",
		"rollup_block_height",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestNew_IsolatedRegistryOmitsGoRuntimeMetrics(t *testing.T) {
	m := New()
	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, req)

	if strings.Contains(rec.Body.String(), "go_goroutines") {
		t.Errorf("isolated registry should not expose default Go runtime collectors")
	}
}
