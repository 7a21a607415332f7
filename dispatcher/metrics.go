package dispatcher

import (
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains statistics of single connection.
type Metrics struct {
	Received  uint64
	Succeeded uint64
	Failed    uint64
	Throttled uint64

	InFlight    int
	MaxInFlight int

	LastReceived  time.Time
	LastSucceeded time.Time
	LastFailed    time.Time
	LastThrottled time.Time
}

type connMetrics struct {
	collectors *Collectors

	mu sync.Mutex
	m  Metrics
}

func (cm *connMetrics) Snapshot() Metrics {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	return cm.m
}

func (cm *connMetrics) Received() {
	cm.collectors.received.Inc()

	cm.mu.Lock()
	defer cm.mu.Unlock()

	cm.m.Received++
	cm.m.LastReceived = time.Now()
}

func (cm *connMetrics) Succeeded() {
	cm.collectors.succeeded.Inc()

	cm.mu.Lock()
	defer cm.mu.Unlock()

	cm.m.Succeeded++
	cm.m.LastSucceeded = time.Now()
}

func (cm *connMetrics) Failed(reason string) {
	cm.collectors.failed.WithLabelValues(reason).Inc()

	cm.mu.Lock()
	defer cm.mu.Unlock()

	cm.m.Failed++
	cm.m.LastFailed = time.Now()
}

func (cm *connMetrics) Throttled() {
	cm.collectors.throttled.Inc()

	cm.mu.Lock()
	defer cm.mu.Unlock()

	cm.m.Throttled++
	cm.m.LastThrottled = time.Now()
}

// TryStart registers new in-flight unit if limit is not reached.
func (cm *connMetrics) TryStart(limit int) bool {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cm.m.InFlight >= limit {
		return false
	}
	cm.m.InFlight++
	cm.m.MaxInFlight = max(cm.m.MaxInFlight, cm.m.InFlight)
	cm.collectors.inFlight.Inc()
	return true
}

func (cm *connMetrics) Done() {
	cm.collectors.inFlight.Dec()

	cm.mu.Lock()
	defer cm.mu.Unlock()

	cm.m.InFlight--
}

// Collectors are the process-wide prometheus metrics aggregated over all the connections.
type Collectors struct {
	connections prometheus.Gauge
	inFlight    prometheus.Gauge
	received    prometheus.Counter
	succeeded   prometheus.Counter
	failed      *prometheus.CounterVec
	throttled   prometheus.Counter
}

// NewCollectors creates collectors and registers them. If registerer is nil, collectors are not registered.
func NewCollectors(reg prometheus.Registerer) (*Collectors, error) {
	c := &Collectors{
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "walletgate",
			Name:      "connections",
			Help:      "Number of open connections.",
		}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "walletgate",
			Name:      "requests_in_flight",
			Help:      "Number of requests being handled concurrently.",
		}),
		received: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "walletgate",
			Name:      "messages_received_total",
			Help:      "Number of received frames.",
		}),
		succeeded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "walletgate",
			Name:      "messages_succeeded_total",
			Help:      "Number of successfully handled messages.",
		}),
		failed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "walletgate",
			Name:      "messages_failed_total",
			Help:      "Number of messages which caused connection to be closed.",
		}, []string{"reason"}),
		throttled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "walletgate",
			Name:      "messages_throttled_total",
			Help:      "Number of messages handled inline because concurrency limit was reached.",
		}),
	}

	if reg == nil {
		return c, nil
	}

	for _, collector := range []prometheus.Collector{
		c.connections, c.inFlight, c.received, c.succeeded, c.failed, c.throttled,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, errors.WithStack(err)
		}
	}
	return c, nil
}
