// Package metrics exposes Prometheus collectors for the bot and a small
// HTTP listener serving /metrics and /healthz.
package metrics

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "relaybot"

// Collector groups the bot's collectors. A nil *Collector is valid and records nothing.
type Collector struct {
	registry *prometheus.Registry

	handled         *prometheus.CounterVec
	handlerDuration *prometheus.HistogramVec
	forwards        *prometheus.CounterVec
	autoReplies     prometheus.Counter
	transitions     *prometheus.CounterVec

	forwardOK   atomic.Uint64
	forwardFail atomic.Uint64
	acks        atomic.Uint64
}

// Stats is a point-in-time summary used by the admin /stats command.
type Stats struct {
	Forwarded      uint64
	ForwardFailed  uint64
	AutoReplies    uint64
	ActiveSessions int
}

// New builds a Collector on a private registry including Go runtime and process collectors.
func New() *Collector {
	reg := prometheus.NewRegistry()
	c := &Collector{
		registry: reg,
		handled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handler_total",
			Help:      "Telegram updates handled, by handler and outcome.",
		}, []string{"handler", "outcome"}),
		handlerDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "handler_duration_seconds",
			Help:      "Time spent handling a Telegram update.",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"handler"}),
		forwards: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "forwards_total",
			Help:      "User messages relayed to the admin chat.",
		}, []string{"category", "lang", "outcome"}),
		autoReplies: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auto_replies_total",
			Help:      "Acknowledgements sent to users after a forward.",
		}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_transitions_total",
			Help:      "Conversation stage transitions, by target stage.",
		}, []string{"stage"}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.handled,
		c.handlerDuration,
		c.forwards,
		c.autoReplies,
		c.transitions,
	)
	return c
}

// Registry returns the registry backing the collector.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// RegisterSessionGauge exposes the live session count.
func (c *Collector) RegisterSessionGauge(fn func() float64) {
	if c == nil || fn == nil {
		return
	}
	c.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "sessions_active",
		Help:      "Conversation sessions held in memory.",
	}, fn))
}

// ObserveHandler records one handled update.
func (c *Collector) ObserveHandler(handler, outcome string, took time.Duration) {
	if c == nil {
		return
	}
	c.handled.WithLabelValues(handler, outcome).Inc()
	c.handlerDuration.WithLabelValues(handler).Observe(took.Seconds())
}

// ObserveForward records a relay attempt to the admin chat.
func (c *Collector) ObserveForward(category, lang string, err error) {
	if c == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "fail"
		c.forwardFail.Add(1)
	} else {
		c.forwardOK.Add(1)
	}
	c.forwards.WithLabelValues(category, lang, outcome).Inc()
}

// ObserveAutoReply records an acknowledgement sent to a user.
func (c *Collector) ObserveAutoReply() {
	if c == nil {
		return
	}
	c.acks.Add(1)
	c.autoReplies.Inc()
}

// ObserveStage records a transition into stage.
func (c *Collector) ObserveStage(stage string) {
	if c == nil {
		return
	}
	c.transitions.WithLabelValues(stage).Inc()
}

// Snapshot returns counters for human consumption.
func (c *Collector) Snapshot() Stats {
	if c == nil {
		return Stats{}
	}
	return Stats{
		Forwarded:     c.forwardOK.Load(),
		ForwardFailed: c.forwardFail.Load(),
		AutoReplies:   c.acks.Load(),
	}
}

var defaultCollector atomic.Pointer[Collector]

// SetDefault installs the collector used by package-level helpers such as router summaries.
func SetDefault(c *Collector) {
	defaultCollector.Store(c)
}

// Default returns the installed collector or nil.
func Default() *Collector {
	return defaultCollector.Load()
}
