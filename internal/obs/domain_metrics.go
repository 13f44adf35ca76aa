package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// CheckoutBundleTotal counts checkout bundle requests by outcome.
	CheckoutBundleTotal *prometheus.CounterVec
	// WebhookVerificationTotal counts inbound processor webhooks by verification outcome.
	WebhookVerificationTotal *prometheus.CounterVec
	// ConfirmationTotal counts transaction confirmation lookups by outcome.
	ConfirmationTotal *prometheus.CounterVec
	// PaymentLinkTotal counts payment link creation attempts by outcome.
	PaymentLinkTotal *prometheus.CounterVec
	// ProcessorLatency records processor API call latency in milliseconds.
	ProcessorLatency *prometheus.HistogramVec
	// QueueTasksTotal counts processor event tasks handled by the worker.
	QueueTasksTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		CheckoutBundleTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_bundle_total",
			Help:      "Count of checkout bundle requests by outcome.",
		}, []string{"result"})
		WebhookVerificationTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_verification_total",
			Help:      "Count of processor webhooks by verification outcome.",
		}, []string{"result"})
		ConfirmationTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "confirmation_total",
			Help:      "Count of transaction confirmation lookups by outcome.",
		}, []string{"result"})
		PaymentLinkTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_link_total",
			Help:      "Count of payment link creation attempts by outcome.",
		}, []string{"result"})
		ProcessorLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "processor_request_duration_ms",
			Help:      "Latency of processor API calls in milliseconds.",
			Buckets:   []float64{25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"operation", "result"})
		QueueTasksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "processor_event_tasks_total",
			Help:      "Count of processor event tasks handled by the worker.",
		}, []string{"event", "result"})

		mustRegisterCollector(reg, CheckoutBundleTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				CheckoutBundleTotal = v
			}
		})
		mustRegisterCollector(reg, WebhookVerificationTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				WebhookVerificationTotal = v
			}
		})
		mustRegisterCollector(reg, ConfirmationTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				ConfirmationTotal = v
			}
		})
		mustRegisterCollector(reg, PaymentLinkTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				PaymentLinkTotal = v
			}
		})
		mustRegisterCollector(reg, ProcessorLatency, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.HistogramVec); ok {
				ProcessorLatency = v
			}
		})
		mustRegisterCollector(reg, QueueTasksTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				QueueTasksTotal = v
			}
		})
	})
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("register domain metric: %w", err))
	}
}
