package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/finalitylabs/blocksync/model/chain"
	"github.com/finalitylabs/blocksync/module"
)

// attempts above this are reported under a single label value
const maxAttemptLabel = 8

type SyncCollector struct {
	received         *prometheus.CounterVec
	sent             *prometheus.CounterVec
	dropped          *prometheus.CounterVec
	finalizedHeight  prometheus.Gauge
	highestJustified prometheus.Gauge
	forestSize       prometheus.Gauge
	requests         *prometheus.CounterVec
	equivocations    prometheus.Counter
}

var _ module.SyncMetrics = (*SyncCollector)(nil)

// NewSyncCollector registers the sync metrics with the registerer. The const
// labels tell apart several nodes sharing a registry.
func NewSyncCollector(registerer prometheus.Registerer, constLabels prometheus.Labels) *SyncCollector {
	factory := promauto.With(registerer)

	sc := &SyncCollector{
		received: factory.NewCounterVec(prometheus.CounterOpts{
			Name:        "messages_received_total",
			Namespace:   namespaceSync,
			Subsystem:   subsystemNetwork,
			Help:        "the number of sync messages received",
			ConstLabels: constLabels,
		}, []string{LabelMessage}),

		sent: factory.NewCounterVec(prometheus.CounterOpts{
			Name:        "messages_sent_total",
			Namespace:   namespaceSync,
			Subsystem:   subsystemNetwork,
			Help:        "the number of sync messages sent",
			ConstLabels: constLabels,
		}, []string{LabelMessage}),

		dropped: factory.NewCounterVec(prometheus.CounterOpts{
			Name:        "messages_dropped_total",
			Namespace:   namespaceSync,
			Subsystem:   subsystemNetwork,
			Help:        "the number of received sync messages that could not be processed",
			ConstLabels: constLabels,
		}, []string{LabelMessage, LabelReason}),

		finalizedHeight: factory.NewGauge(prometheus.GaugeOpts{
			Name:        "finalized_height",
			Namespace:   namespaceSync,
			Subsystem:   subsystemChain,
			Help:        "the number of the top finalized block",
			ConstLabels: constLabels,
		}),

		highestJustified: factory.NewGauge(prometheus.GaugeOpts{
			Name:        "highest_justified",
			Namespace:   namespaceSync,
			Subsystem:   subsystemForest,
			Help:        "the number of the highest justified block known",
			ConstLabels: constLabels,
		}),

		forestSize: factory.NewGauge(prometheus.GaugeOpts{
			Name:        "vertices",
			Namespace:   namespaceSync,
			Subsystem:   subsystemForest,
			Help:        "the number of non-finalized blocks tracked",
			ConstLabels: constLabels,
		}),

		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name:        "sent_total",
			Namespace:   namespaceSync,
			Subsystem:   subsystemRequests,
			Help:        "the number of block requests sent, by attempt",
			ConstLabels: constLabels,
		}, []string{LabelAttempt}),

		equivocations: factory.NewCounter(prometheus.CounterOpts{
			Name:        "equivocations_total",
			Namespace:   namespaceSync,
			Subsystem:   subsystemVerifier,
			Help:        "the number of equivocations detected",
			ConstLabels: constLabels,
		}),
	}

	return sc
}

func (sc *SyncCollector) MessageReceived(msgType string) {
	sc.received.With(prometheus.Labels{LabelMessage: msgType}).Inc()
}

func (sc *SyncCollector) MessageSent(msgType string) {
	sc.sent.With(prometheus.Labels{LabelMessage: msgType}).Inc()
}

func (sc *SyncCollector) MessageDropped(msgType string, reason string) {
	sc.dropped.With(prometheus.Labels{LabelMessage: msgType, LabelReason: reason}).Inc()
}

func (sc *SyncCollector) FinalizedHeight(number chain.BlockNumber) {
	sc.finalizedHeight.Set(float64(number))
}

func (sc *SyncCollector) HighestJustified(number chain.BlockNumber) {
	sc.highestJustified.Set(float64(number))
}

func (sc *SyncCollector) ForestSize(size int) {
	sc.forestSize.Set(float64(size))
}

func (sc *SyncCollector) RequestSent(attempt int) {
	label := strconv.Itoa(attempt)
	if attempt > maxAttemptLabel {
		label = "more"
	}
	sc.requests.With(prometheus.Labels{LabelAttempt: label}).Inc()
}

func (sc *SyncCollector) EquivocationDetected() {
	sc.equivocations.Inc()
}
