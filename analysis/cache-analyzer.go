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
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-errors/errors"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/Ezekiel-1998/cacheaudit/vm"
)

// Report summarizes the analysis of one program.
type Report struct {
	Program       string  `json:"program"`
	Fingerprint   string  `json:"fingerprint"`
	MayFail       bool    `json:"may_fail"`
	FailureCause  string  `json:"failure_cause,omitempty"`
	TracesTracked bool    `json:"traces_tracked"`
	Traces        string  `json:"traces,omitempty"`
	TraceBits     float64 `json:"trace_bits"`
	TimesKnown    bool    `json:"times_known"`
	Times         int     `json:"times"`
	TimeBits      float64 `json:"time_bits"`
	Nodes         int     `json:"nodes"`
	Summary       string  `json:"summary"`
}

// CacheAnalyzer analyzes access programs and keeps statistics over all of
// them. Results are cached by program fingerprint.
type CacheAnalyzer struct {
	cfg           Config
	logger        *log.Entry
	metrics       *Metrics
	cachedReports map[common.Hash]Report

	numSuccess    uint64
	numFail       uint64
	numErrors     uint64
	failureCauses map[string]uint64
	time          time.Duration
	startTime     time.Time
}

// NewCacheAnalyzer returns an analyzer logging to logger. metrics may be nil.
func NewCacheAnalyzer(cfg Config, logger *log.Logger, metrics *Metrics) *CacheAnalyzer {
	return &CacheAnalyzer{
		cfg:           cfg,
		logger:        logger.WithField("run", uuid.New().String()),
		metrics:       metrics,
		cachedReports: map[common.Hash]Report{},
		failureCauses: map[string]uint64{},
	}
}

func (a *CacheAnalyzer) Analyze(p *vm.Program) (Report, error) {
	a.startTimer()
	defer a.stopTimer()

	if err := a.cfg.Validate(); err != nil {
		return Report{}, err
	}

	fp := p.Fingerprint()
	if cached, found := a.cachedReports[fp]; found {
		cached.Program = p.Name
		if cached.MayFail {
			a.recordFailure(cached.FailureCause)
		} else {
			a.recordSuccess()
		}
		return cached, nil
	}

	logger := a.logger.WithFields(log.Fields{
		"program":     p.Name,
		"fingerprint": fp.Hex(),
	})
	newCache := func() CacheState {
		return NewLRUCache(a.cfg.Cache)
	}

	var rep Report
	var res result
	var err error
	if a.cfg.TrackTraces {
		store := NewNodeStore(a.metrics)
		domain := NewTraceDomain(store, newCache, a.cfg)
		var final TraceState
		final, res, err = newFixpointAnalyzer[TraceState](domain, p, a.cfg, logger).analyze()
		if err == nil && !res.mayFail {
			rep = traceReport(domain, final)
		}
		rep.Nodes = store.Len()
	} else {
		domain := NewPassThroughDomain(newCache, a.metrics)
		var final CacheState
		final, res, err = newFixpointAnalyzer[CacheState](domain, p, a.cfg, logger).analyze()
		if err == nil && !res.mayFail {
			var sb strings.Builder
			domain.Print(&sb, final)
			rep.Summary = sb.String()
		}
	}
	rep.Program = p.Name
	rep.Fingerprint = fp.Hex()
	rep.TracesTracked = a.cfg.TrackTraces

	if err != nil {
		a.recordError()
		logger.WithFields(log.Fields{
			"error": err,
			"stack": errors.Wrap(err, 0).ErrorStack(),
		}).Error("analysis aborted")
		return rep, err
	}

	// We cache both kinds of results, but not errors.
	rep.MayFail = res.mayFail
	rep.FailureCause = res.failureCause
	a.cachedReports[fp] = rep

	if res.mayFail {
		a.recordFailure(res.failureCause)
		logger.WithField("cause", res.failureCause).Warn("analysis gave up")
		return rep, nil
	}
	a.recordSuccess()
	logger.WithFields(log.Fields{
		"traces": rep.Traces,
		"times":  rep.Times,
		"nodes":  rep.Nodes,
	}).Info("analysis finished")
	return rep, nil
}

func traceReport(domain *TraceDomain, final TraceState) Report {
	count := domain.Store().Count(final.trace)
	rep := Report{
		Traces:    count.String(),
		TraceBits: countBits(count),
	}
	if n, known := final.times.card(); known {
		rep.TimesKnown = true
		rep.Times = n
		rep.TimeBits, _ = timesBits(final.times)
	}
	var sb strings.Builder
	domain.Print(&sb, final)
	rep.Summary = sb.String()
	return rep
}

func (a *CacheAnalyzer) startTimer() {
	a.startTime = time.Now()
}

func (a *CacheAnalyzer) stopTimer() {
	a.time += time.Since(a.startTime)
}

func (a *CacheAnalyzer) recordSuccess() {
	a.numSuccess++
}

func (a *CacheAnalyzer) recordFailure(cause string) {
	a.numFail++
	a.failureCauses[cause]++
}

func (a *CacheAnalyzer) recordError() {
	a.numErrors++
}

func (a *CacheAnalyzer) NumSuccess() uint64 {
	return a.numSuccess
}

func (a *CacheAnalyzer) NumFail() uint64 {
	return a.numFail
}

func (a *CacheAnalyzer) NumErrors() uint64 {
	return a.numErrors
}

func (a *CacheAnalyzer) Time() time.Duration {
	return a.time
}

func (a *CacheAnalyzer) FailureCauses() map[string]uint64 {
	fcs := map[string]uint64{}
	for cause, cnt := range a.failureCauses {
		fcs[cause] = cnt
	}
	return fcs
}
