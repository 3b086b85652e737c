package derive

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metricer is the subset of pipeline instrumentation the Channel Bank and Batch Queue stages
// emit to. A caller that doesn't want metrics can pass NoopMetrics.
type Metricer interface {
	RecordChannelOpened(id ChannelID)
	RecordChannelRead(id ChannelID, size uint64)
	RecordChannelTimedOut(id ChannelID)
	RecordChannelEvicted(id ChannelID)
	RecordBatchAccepted()
	RecordBatchDropped(reason string)
}

// Metrics is the prometheus-backed Metricer used outside of tests.
type Metrics struct {
	channelsOpened   prometheus.Counter
	channelsRead     prometheus.Counter
	channelsTimedOut prometheus.Counter
	channelsEvicted  prometheus.Counter
	channelBytesRead prometheus.Counter
	batchesAccepted  prometheus.Counter
	batchesDropped   *prometheus.CounterVec
}

// NewMetrics registers the derivation pipeline's counters under the given namespace and returns
// a Metricer backed by them.
func NewMetrics(registry *prometheus.Registry, namespace string) *Metrics {
	factory := promauto.With(registry)
	m := &Metrics{
		channelsOpened: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "channel_bank_channels_opened_total",
			Help:      "Number of channels opened by the channel bank.",
		}),
		channelsRead: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "channel_bank_channels_read_total",
			Help:      "Number of channels fully read out of the channel bank.",
		}),
		channelsTimedOut: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "channel_bank_channels_timed_out_total",
			Help:      "Number of channels pruned for exceeding the channel timeout.",
		}),
		channelsEvicted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "channel_bank_channels_evicted_total",
			Help:      "Number of channels pruned for exceeding the channel bank size bound.",
		}),
		channelBytesRead: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "channel_bank_bytes_read_total",
			Help:      "Total assembled byte size of channels read out of the channel bank.",
		}),
		batchesAccepted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batch_queue_batches_accepted_total",
			Help:      "Number of batches accepted by the batch queue.",
		}),
		batchesDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batch_queue_batches_dropped_total",
			Help:      "Number of batches dropped by the batch queue, by reason.",
		}, []string{"reason"}),
	}
	return m
}

func (m *Metrics) RecordChannelOpened(id ChannelID)            { m.channelsOpened.Inc() }
func (m *Metrics) RecordChannelTimedOut(id ChannelID)           { m.channelsTimedOut.Inc() }
func (m *Metrics) RecordChannelEvicted(id ChannelID)            { m.channelsEvicted.Inc() }
func (m *Metrics) RecordBatchAccepted()                         { m.batchesAccepted.Inc() }
func (m *Metrics) RecordBatchDropped(reason string)             { m.batchesDropped.WithLabelValues(reason).Inc() }
func (m *Metrics) RecordChannelRead(id ChannelID, size uint64) {
	m.channelsRead.Inc()
	m.channelBytesRead.Add(float64(size))
}

// NoopMetrics discards every recorded metric, used by tests and by callers that don't wire up
// a prometheus registry.
type NoopMetrics struct{}

func (NoopMetrics) RecordChannelOpened(ChannelID)       {}
func (NoopMetrics) RecordChannelRead(ChannelID, uint64) {}
func (NoopMetrics) RecordChannelTimedOut(ChannelID)     {}
func (NoopMetrics) RecordChannelEvicted(ChannelID)      {}
func (NoopMetrics) RecordBatchAccepted()                {}
func (NoopMetrics) RecordBatchDropped(string)           {}
