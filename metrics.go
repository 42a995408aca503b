package snapmap

import (
	"errors"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Stores registered under the same name with the same Registerer share one
// set of series. The counters report the sum over all of them, including
// stores that have already been closed, so they never go backwards; the
// series are unregistered when the last store of the group closes.

type metricsKey struct {
	reg  prometheus.Registerer
	name string
}

type metricsMember interface {
	counts() [4]uint64
	Committed() uint64
}

type metricsGroup struct {
	mu         sync.Mutex
	members    []metricsMember
	closed     [4]uint64
	collectors []prometheus.Collector
}

var metricsGroups = struct {
	sync.Mutex
	m map[metricsKey]*metricsGroup
}{m: make(map[metricsKey]*metricsGroup)}

func (s *Store[V]) counts() [4]uint64 {
	return [4]uint64{s.SetCount.Load(), s.GetCount.Load(), s.NotReadyCount.Load(), s.OverrunCount.Load()}
}

func (s *Store[V]) registerMetrics() error {
	if s.registerer == nil {
		return nil
	}
	key := metricsKey{s.registerer, s.name}

	metricsGroups.Lock()
	defer metricsGroups.Unlock()
	g := metricsGroups.m[key]
	if g == nil {
		g = &metricsGroup{}
		if err := g.register(s.registerer, s.name); err != nil {
			return err
		}
		metricsGroups.m[key] = g
	}
	g.mu.Lock()
	g.members = append(g.members, s)
	g.mu.Unlock()
	s.collectors = g.collectors
	return nil
}

func (s *Store[V]) unregisterMetrics() {
	if s.registerer == nil {
		return
	}
	key := metricsKey{s.registerer, s.name}

	metricsGroups.Lock()
	defer metricsGroups.Unlock()
	g := metricsGroups.m[key]
	if g == nil {
		return
	}
	g.mu.Lock()
	for i, m := range g.members {
		if m == metricsMember(s) {
			c := s.counts()
			for j := range g.closed {
				g.closed[j] += c[j]
			}
			g.members = append(g.members[:i], g.members[i+1:]...)
			break
		}
	}
	last := len(g.members) == 0
	g.mu.Unlock()
	s.collectors = nil

	if last {
		for _, c := range g.collectors {
			s.registerer.Unregister(c)
		}
		delete(metricsGroups.m, key)
	}
}

func (g *metricsGroup) register(reg prometheus.Registerer, name string) error {
	labels := prometheus.Labels{"store": name}
	counter := func(idx int, name, help string) prometheus.Collector {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace:   "snapmap",
			Name:        name,
			Help:        help,
			ConstLabels: labels,
		}, func() float64 { return float64(g.count(idx)) })
	}

	cs := []prometheus.Collector{
		counter(0, "sets_total", "Total number of records published."),
		counter(1, "gets_total", "Total number of record reads."),
		counter(2, "not_ready_total", "Total number of reads of slots that were not written yet."),
		counter(3, "overruns_total", "Total number of reads invalidated by a concurrent overwrite."),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   "snapmap",
			Name:        "committed_records",
			Help:        "Number of records ever written to the store file, by any process.",
			ConstLabels: labels,
		}, func() float64 { return float64(g.committed()) }),
	}
	for _, c := range cs {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				// registered by someone else; leave theirs alone
				continue
			}
			for _, done := range g.collectors {
				reg.Unregister(done)
			}
			g.collectors = nil
			return err
		}
		g.collectors = append(g.collectors, c)
	}
	return nil
}

func (g *metricsGroup) count(idx int) uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := g.closed[idx]
	for _, m := range g.members {
		n += m.counts()[idx]
	}
	return n
}

// committed reports the largest committed counter among the open stores.
func (g *metricsGroup) committed() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	var n uint64
	for _, m := range g.members {
		n = max(n, m.Committed())
	}
	return n
}
