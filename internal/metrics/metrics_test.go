package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func scrape(t *testing.T, gatherer prometheus.Gatherer) string {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	Handler(gatherer).ServeHTTP(rec, req)
	return rec.Body.String()
}

func TestCollector_RecordsAllMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	c := NewCollector(registry)

	c.RecordSummarySuccess("default")
	c.RecordSummarySuccess("default")
	c.RecordSummaryFailure("default", "generation")
	c.RecordSummaryDuration(1500 * time.Millisecond)
	c.RecordMessageProcessed("success", "default", "text")
	c.RecordDigestDelivery("failure", "default")

	body := scrape(t, registry)

	checks := []string{
		`summary_success_total{tenant_id="default"} 2`,
		`summary_failure_total{error_type="generation",tenant_id="default"} 1`,
		`summary_duration_seconds_count 1`,
		`message_processing_total{message_type="text",status="success",tenant_id="default"} 1`,
		`digest_delivery_total{status="failure",tenant_id="default"} 1`,
	}
	for _, want := range checks {
		if !strings.Contains(body, want) {
			t.Errorf("スクレイプ出力に %q が含まれていない", want)
		}
	}
}

func TestCollector_DurationBuckets(t *testing.T) {
	registry := prometheus.NewRegistry()
	c := NewCollector(registry)

	c.RecordSummaryDuration(300 * time.Millisecond)

	body := scrape(t, registry)
	if !strings.Contains(body, `summary_duration_seconds_bucket{le="0.5"} 1`) {
		t.Error("0.5秒バケットに記録されていない")
	}
	if !strings.Contains(body, `summary_duration_seconds_bucket{le="0.1"} 0`) {
		t.Error("0.1秒バケットに誤って記録されている")
	}
}

func TestNopRecorder(t *testing.T) {
	// 落ちないことのみ確認
	var r Recorder = Nop{}
	r.RecordSummarySuccess("t")
	r.RecordSummaryFailure("t", "r")
	r.RecordSummaryDuration(time.Second)
	r.RecordMessageProcessed("s", "t", "m")
	r.RecordDigestDelivery("s", "t")
}
