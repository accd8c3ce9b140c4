package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the field verification module.
// Tracks verification outcomes per field and OCR spend against the
// monthly quota.
type Metrics struct {
	Verifications   *prometheus.CounterVec
	OCRExtractions  *prometheus.CounterVec
	QuotaRejections prometheus.Counter
	ExtractDuration prometheus.Histogram
}

// New creates a new Metrics instance with all verification metrics registered.
func New() *Metrics {
	return &Metrics{
		Verifications: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "garita_verifications_total",
			Help: "Total field verifications by field and outcome",
		}, []string{"field", "outcome"}),
		OCRExtractions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "garita_ocr_extractions_total",
			Help: "Total OCR extraction calls by status",
		}, []string{"status"}),
		QuotaRejections: promauto.NewCounter(prometheus.CounterOpts{
			Name: "garita_ocr_quota_rejections_total",
			Help: "Total image verifications rejected by the monthly OCR quota",
		}),
		ExtractDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "garita_ocr_extract_duration_seconds",
			Help:    "Duration of OCR extraction calls",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
	}
}

// IncrementVerification records one verification outcome for a field.
func (m *Metrics) IncrementVerification(field string, valid bool) {
	outcome := "invalid"
	if valid {
		outcome = "valid"
	}
	m.Verifications.WithLabelValues(field, outcome).Inc()
}

// IncrementExtraction records one OCR call by status ("ok" or "error").
func (m *Metrics) IncrementExtraction(status string) {
	m.OCRExtractions.WithLabelValues(status).Inc()
}

// IncrementQuotaRejection records one image verification turned away at the quota.
func (m *Metrics) IncrementQuotaRejection() {
	m.QuotaRejections.Inc()
}

// ObserveExtract records the duration of an OCR extraction call.
// Call with time.Now() at the start of the call.
func (m *Metrics) ObserveExtract(start time.Time) {
	m.ExtractDuration.Observe(time.Since(start).Seconds())
}
