// Copyright 2026 The Cacheaudit Authors

// This file is part of Cacheaudit.
//
// Cacheaudit is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Cacheaudit is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Cacheaudit.  If not, see <https://www.gnu.org/licenses/>.

package analysis

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts what the trace domain does. A nil *Metrics records nothing.
type Metrics struct {
	nodesCreated  prometheus.Counter
	hashConsHits  prometheus.Counter
	placeholders  prometheus.Counter
	timeCollapses prometheus.Counter
	bottomPaths   prometheus.Counter
}

// NewMetrics creates the counters and registers them with reg unless reg is nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		nodesCreated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "cacheaudit",
			Subsystem: "trie",
			Name:      "nodes_created_total",
			Help:      "Number of distinct trie nodes allocated.",
		}),
		hashConsHits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "cacheaudit",
			Subsystem: "trie",
			Name:      "hashcons_hits_total",
			Help:      "Number of node requests answered by an existing node.",
		}),
		placeholders: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "cacheaudit",
			Subsystem: "trie",
			Name:      "placeholders_created_total",
			Help:      "Number of placeholder nodes allocated for unresolved merges.",
		}),
		timeCollapses: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "cacheaudit",
			Subsystem: "times",
			Name:      "time_set_collapses_total",
			Help:      "Number of time sets that lost precision and became unknown.",
		}),
		bottomPaths: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "cacheaudit",
			Subsystem: "domain",
			Name:      "bottom_paths_total",
			Help:      "Number of accesses that produced an infeasible state.",
		}),
	}
}

func (m *Metrics) nodeCreated(placeholder bool) {
	if m == nil {
		return
	}
	m.nodesCreated.Inc()
	if placeholder {
		m.placeholders.Inc()
	}
}

func (m *Metrics) hashConsHit() {
	if m == nil {
		return
	}
	m.hashConsHits.Inc()
}

func (m *Metrics) timeCollapse() {
	if m == nil {
		return
	}
	m.timeCollapses.Inc()
}

func (m *Metrics) bottomPath() {
	if m == nil {
		return
	}
	m.bottomPaths.Inc()
}
