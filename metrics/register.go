// Copyright 2024 The Erigon Authors
// This file is part of Erigon.
//
// Erigon is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Erigon is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Erigon. If not, see <http://www.gnu.org/licenses/>.

package metrics

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Set is a named collection of metrics backed by a prometheus registry.
// Metrics are created lazily and shared by name.
type Set struct {
	mu        sync.Mutex
	registry  *prometheus.Registry
	counters  map[string]prometheus.Counter
	gauges    map[string]prometheus.Gauge
	gaugeVecs map[string]*prometheus.GaugeVec
	summaries map[string]*prometheus.SummaryVec
}

func NewSet() *Set {
	return &Set{
		registry:  prometheus.NewRegistry(),
		counters:  map[string]prometheus.Counter{},
		gauges:    map[string]prometheus.Gauge{},
		gaugeVecs: map[string]*prometheus.GaugeVec{},
		summaries: map[string]*prometheus.SummaryVec{},
	}
}

var defaultSet = func() *Set {
	s := NewSet()
	s.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return s
}()

func DefaultSet() *Set { return defaultSet }

func (s *Set) Registry() *prometheus.Registry { return s.registry }

func (s *Set) GetOrCreateCounter(name string, help ...string) prometheus.Counter {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.counters[name]; ok {
		return c
	}
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: name, Help: helpOf(name, help)})
	s.mustRegister(c)
	s.counters[name] = c
	return c
}

func (s *Set) GetOrCreateGauge(name string, help ...string) prometheus.Gauge {
	s.mu.Lock()
	defer s.mu.Unlock()
	if g, ok := s.gauges[name]; ok {
		return g
	}
	g := prometheus.NewGauge(prometheus.GaugeOpts{Name: name, Help: helpOf(name, help)})
	s.mustRegister(g)
	s.gauges[name] = g
	return g
}

func (s *Set) GetOrCreateGaugeVec(name string, labels []string, help ...string) *prometheus.GaugeVec {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gv, ok := s.gaugeVecs[name]; ok {
		return gv
	}
	gv := prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: name, Help: helpOf(name, help)}, labels)
	s.mustRegister(gv)
	s.gaugeVecs[name] = gv
	return gv
}

func (s *Set) GetOrCreateSummaryVec(name string, labels []string, help ...string) *prometheus.SummaryVec {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sv, ok := s.summaries[name]; ok {
		return sv
	}
	sv := prometheus.NewSummaryVec(prometheus.SummaryOpts{
		Name:       name,
		Help:       helpOf(name, help),
		Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
	}, labels)
	s.mustRegister(sv)
	s.summaries[name] = sv
	return sv
}

func (s *Set) mustRegister(c prometheus.Collector) {
	if err := s.registry.Register(c); err != nil {
		panic(fmt.Errorf("could not register metric: %w", err))
	}
}

func helpOf(name string, help []string) string {
	if len(help) > 0 {
		return help[0]
	}
	return name
}

func GetOrCreateCounter(name string, help ...string) prometheus.Counter {
	return defaultSet.GetOrCreateCounter(name, help...)
}

func GetOrCreateGauge(name string, help ...string) prometheus.Gauge {
	return defaultSet.GetOrCreateGauge(name, help...)
}

func GetOrCreateGaugeVec(name string, labels []string, help ...string) *prometheus.GaugeVec {
	return defaultSet.GetOrCreateGaugeVec(name, labels, help...)
}

func GetOrCreateSummaryVec(name string, labels []string, help ...string) *prometheus.SummaryVec {
	return defaultSet.GetOrCreateSummaryVec(name, labels, help...)
}
