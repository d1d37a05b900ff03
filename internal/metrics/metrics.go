// Package metrics turns bus events into prometheus metrics and serves
// them with a health endpoint.
package metrics

import (
	"context"

	"github.com/matheus3301/imcore/internal/bus"
	"github.com/matheus3301/imcore/internal/status"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "imcore"

// Collector counts core events. It owns a private registry so several
// daemons can run in one test binary.
type Collector struct {
	reg *prometheus.Registry

	events       *prometheus.CounterVec
	messages     *prometheus.CounterVec
	connected    prometheus.Gauge
	connErrors   *prometheus.CounterVec
	outbox       *prometheus.CounterVec
	daemonStatus *prometheus.GaugeVec
	rpcs         *prometheus.CounterVec
}

// New creates a collector. Bus delivery health is exported from b.
func New(b *bus.Bus) *Collector {
	c := &Collector{
		reg: prometheus.NewRegistry(),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Core events published on the bus, by kind.",
		}, []string{"kind"}),
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_total",
			Help:      "Conversation messages, by direction.",
		}, []string{"direction"}),
		connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "accounts_connected",
			Help:      "Accounts currently connected.",
		}),
		connErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connection_errors_total",
			Help:      "Connection errors, by reason.",
		}, []string{"reason"}),
		outbox: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_total",
			Help:      "Outbox transitions, by result.",
		}, []string{"result"}),
		daemonStatus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "daemon_status",
			Help:      "1 for the daemon's current lifecycle state.",
		}, []string{"state"}),
		rpcs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rpc_requests_total",
			Help:      "Daemon API calls, by method and status code.",
		}, []string{"method", "code"}),
	}
	c.reg.MustRegister(c.events, c.messages, c.connected, c.connErrors, c.outbox, c.daemonStatus, c.rpcs)
	c.reg.MustRegister(collectors.NewGoCollector())
	if b != nil {
		c.reg.MustRegister(
			prometheus.NewCounterFunc(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "bus_dropped_total",
				Help:      "Bus deliveries lost to slow subscribers.",
			}, func() float64 { return float64(b.Dropped()) }),
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "bus_subscribers",
				Help:      "Current bus subscribers.",
			}, func() float64 { return float64(b.Subscribers()) }),
		)
	}
	return c
}

// Registry is the registry served at /metrics.
func (c *Collector) Registry() *prometheus.Registry { return c.reg }

// Run observes every event on b until ctx is done.
func (c *Collector) Run(ctx context.Context, b *bus.Bus) {
	ch, unsub := b.Subscribe("", 512)
	defer unsub()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-ch:
			c.Observe(ev)
		}
	}
}

// ObserveRPC counts one finished API call.
func (c *Collector) ObserveRPC(method, code string) {
	c.rpcs.WithLabelValues(method, code).Inc()
}

// Observe records one event.
func (c *Collector) Observe(ev bus.Event) {
	c.events.WithLabelValues(ev.Kind).Inc()
	switch ev.Kind {
	case bus.AccountConnected:
		c.connected.Inc()
	case bus.AccountDisconnected:
		c.connected.Dec()
	case bus.ConnectionError:
		reason := "unknown"
		if p, ok := ev.Payload.(bus.ConnectionPayload); ok && p.ErrorKind != "" {
			reason = p.ErrorKind
		}
		c.connErrors.WithLabelValues(reason).Inc()
	case bus.ConversationMessage:
		p, ok := ev.Payload.(bus.MessagePayload)
		if !ok {
			return
		}
		dir := "in"
		if p.Outgoing {
			dir = "out"
		}
		c.messages.WithLabelValues(dir).Inc()
	case bus.OutboxQueued:
		c.outbox.WithLabelValues("queued").Inc()
	case bus.OutboxSent:
		c.outbox.WithLabelValues("sent").Inc()
	case bus.OutboxFailed:
		c.outbox.WithLabelValues("failed").Inc()
	case bus.CoreStatusChanged:
		if p, ok := ev.Payload.(status.StatusChange); ok {
			c.SetStatus(p.To)
		}
	}
}

// SetStatus marks s as the current lifecycle state.
func (c *Collector) SetStatus(s status.State) {
	c.daemonStatus.Reset()
	c.daemonStatus.WithLabelValues(string(s)).Set(1)
}
