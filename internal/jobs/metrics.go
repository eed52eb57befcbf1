// Package jobmetrics instruments transactional mail delivery.
package jobmetrics

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
)

// Delivery results.
const (
	ResultDelivered = "delivered"
	ResultRetrying  = "retrying"
	ResultExhausted = "exhausted"
	ResultRejected  = "rejected"
)

// Metrics exposes Prometheus collectors for mail delivery.
type Metrics struct {
	deliveries *prometheus.CounterVec
	retries    *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// NewMetrics registers the collectors against registerer, or the default
// Prometheus registerer when nil.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		defaultOnce.Do(func() {
			defaultMetrics = buildMetrics(prometheus.DefaultRegisterer)
		})
		return defaultMetrics
	}
	return buildMetrics(registerer)
}

// Attempt locates one execution within a task's retry budget.
type Attempt struct {
	Retry    int
	MaxRetry int
}

// AttemptFromContext reads the retry counters asynq puts on handler contexts.
// Outside a worker both are zero.
func AttemptFromContext(ctx context.Context) Attempt {
	var a Attempt
	if n, ok := asynq.GetRetryCount(ctx); ok {
		a.Retry = n
	}
	if n, ok := asynq.GetMaxRetry(ctx); ok {
		a.MaxRetry = n
	}
	return a
}

// Delivery instruments a single send.
type Delivery struct {
	metrics  *Metrics
	template string
	domain   string
	attempt  Attempt
	start    time.Time
}

// Begin starts instrumenting a send of template to recipient.
func (m *Metrics) Begin(template, recipient string, attempt Attempt) *Delivery {
	if template == "" {
		template = "generic"
	}
	d := &Delivery{metrics: m, template: template, domain: RecipientDomain(recipient), attempt: attempt, start: time.Now()}
	if m != nil && attempt.Retry > 0 {
		m.retries.WithLabelValues(template).Inc()
	}
	return d
}

// Finish records the outcome and returns err untouched.
func (d *Delivery) Finish(err error) error {
	if d == nil || d.metrics == nil {
		return err
	}
	result := Classify(err, d.attempt)
	d.metrics.deliveries.WithLabelValues(d.template, d.domain, result).Inc()
	d.metrics.duration.WithLabelValues(d.template).Observe(time.Since(d.start).Seconds())
	return err
}

// Classify maps a send error to a delivery result. Errors wrapping
// asynq.SkipRetry are rejected; others exhaust the task on its last retry.
func Classify(err error, attempt Attempt) string {
	switch {
	case err == nil:
		return ResultDelivered
	case errors.Is(err, asynq.SkipRetry):
		return ResultRejected
	case attempt.Retry >= attempt.MaxRetry:
		return ResultExhausted
	default:
		return ResultRetrying
	}
}

// RecipientDomain lowercases the domain part of an address, or "invalid".
func RecipientDomain(address string) string {
	at := strings.LastIndex(address, "@")
	if at < 0 || at == len(address)-1 {
		return "invalid"
	}
	return strings.ToLower(strings.TrimSpace(address[at+1:]))
}

func buildMetrics(registerer prometheus.Registerer) *Metrics {
	deliveries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "backoffice_mail_deliveries_total",
		Help: "Mail send attempts by template, recipient domain and result.",
	}, []string{"template", "domain", "result"})
	retries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "backoffice_mail_retries_total",
		Help: "Mail sends that ran as an asynq retry.",
	}, []string{"template"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "backoffice_mail_send_duration_seconds",
		Help:    "Duration in seconds of a single mail send.",
		Buckets: prometheus.DefBuckets,
	}, []string{"template"})
	registerer.MustRegister(deliveries, retries, duration)
	return &Metrics{deliveries: deliveries, retries: retries, duration: duration}
}
