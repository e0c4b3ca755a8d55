// Package metrics exports endpoint counters to Prometheus.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/rf24node/rf24node-go/pkg/endpoint"
)

const namespace = "rf24node"

// Snapshot is the state of one endpoint at scrape time.
type Snapshot struct {
	Stats    endpoint.Stats
	State    endpoint.State
	Children int
	Leases   int
}

// TakeSnapshot reads ep. It must run on the goroutine that owns ep.
func TakeSnapshot(ep *endpoint.Endpoint) Snapshot {
	return Snapshot{
		Stats:    ep.Stats(),
		State:    ep.State(),
		Children: len(ep.Children()),
		Leases:   len(ep.Leases()),
	}
}

// SnapshotFunc returns the current snapshot, or false when none can be
// taken.
type SnapshotFunc func() (Snapshot, bool)

// FromRunner takes snapshots on the runner goroutine. A scrape waits at most
// timeout for the runner.
func FromRunner(r *endpoint.Runner, timeout time.Duration) SnapshotFunc {
	return func() (Snapshot, bool) {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		var s Snapshot
		err := r.Do(ctx, func(ep *endpoint.Endpoint) error {
			s = TakeSnapshot(ep)
			return nil
		})
		return s, err == nil
	}
}

var states = []endpoint.State{
	endpoint.StateUnconfigured,
	endpoint.StateConfigured,
	endpoint.StateAddressAssigned,
	endpoint.StateConnecting,
	endpoint.StateConnected,
	endpoint.StateDisconnecting,
	endpoint.StateDisconnected,
}

type counter struct {
	desc  *prometheus.Desc
	value func(endpoint.Stats) uint64
}

func newCounter(name, help string, value func(endpoint.Stats) uint64) counter {
	return counter{
		desc:  prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, nil, nil),
		value: value,
	}
}

// Collector turns endpoint snapshots into metrics on every scrape.
type Collector struct {
	read     SnapshotFunc
	counters []counter
	rtt      *prometheus.Desc
	state    *prometheus.Desc
	children *prometheus.Desc
	leases   *prometheus.Desc
}

func NewCollector(read SnapshotFunc) *Collector {
	gauge := func(name, help string, labels ...string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, labels, nil)
	}
	return &Collector{
		read: read,
		counters: []counter{
			newCounter("rx_packets_total", "Packets received from the link.",
				func(s endpoint.Stats) uint64 { return s.RxPackets }),
			newCounter("tx_packets_total", "Packets handed to the link.",
				func(s endpoint.Stats) uint64 { return s.TxPackets }),
			newCounter("rx_errors_total", "Undecodable packets and broken fragment sequences.",
				func(s endpoint.Stats) uint64 { return s.RxErrors }),
			newCounter("rx_dropped_total", "Messages lost to a full rx queue.",
				func(s endpoint.Stats) uint64 { return s.RxDropped }),
			newCounter("tx_dropped_total", "Packets no neighbour accepted.",
				func(s endpoint.Stats) uint64 { return s.TxDropped }),
			newCounter("forwarded_packets_total", "Transit packets relayed for other nodes.",
				func(s endpoint.Stats) uint64 { return s.Forwarded }),
			newCounter("messages_sent_total", "Messages written and transmitted.",
				func(s endpoint.Stats) uint64 { return s.MessagesSent }),
			newCounter("messages_received_total", "Messages queued for Read.",
				func(s endpoint.Stats) uint64 { return s.MessagesReceived }),
			newCounter("connect_attempts_total", "Connect requests sent to the parent.",
				func(s endpoint.Stats) uint64 { return s.ConnectAttempts }),
			newCounter("pings_sent_total", "Pings sent.",
				func(s endpoint.Stats) uint64 { return s.PingsSent }),
			newCounter("pongs_received_total", "Pongs received.",
				func(s endpoint.Stats) uint64 { return s.PongsReceived }),
		},
		rtt:      gauge("last_rtt_seconds", "Round trip time of the last answered ping."),
		state:    gauge("state", "Lifecycle state; 1 for the current state.", "state"),
		children: gauge("children", "Children connected to this node."),
		leases:   gauge("leases", "Leases held by this root's lease server."),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, m := range c.counters {
		ch <- m.desc
	}
	ch <- c.rtt
	ch <- c.state
	ch <- c.children
	ch <- c.leases
}

// Collect implements prometheus.Collector. Nothing is reported when no
// snapshot can be taken.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s, ok := c.read()
	if !ok {
		return
	}
	for _, m := range c.counters {
		ch <- prometheus.MustNewConstMetric(m.desc, prometheus.CounterValue, float64(m.value(s.Stats)))
	}
	ch <- prometheus.MustNewConstMetric(c.rtt, prometheus.GaugeValue, s.Stats.LastRTT.Seconds())
	for _, st := range states {
		v := 0.0
		if st == s.State {
			v = 1
		}
		ch <- prometheus.MustNewConstMetric(c.state, prometheus.GaugeValue, v, st.String())
	}
	ch <- prometheus.MustNewConstMetric(c.children, prometheus.GaugeValue, float64(s.Children))
	ch <- prometheus.MustNewConstMetric(c.leases, prometheus.GaugeValue, float64(s.Leases))
}

// NewRegistry returns a registry with c and the Go runtime collectors.
func NewRegistry(c *Collector) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		c,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}
