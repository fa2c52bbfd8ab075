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

package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/go-errors/errors"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Ezekiel-1998/cacheaudit/analysis"
	"github.com/Ezekiel-1998/cacheaudit/vm"
)

type analyzeOptions struct {
	configPath string
	noTraces   bool
	outPath    string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "cacheaudit",
		Short:         "Bound cache-timing leakage of access programs",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newAnalyzeCmd())
	return root
}

func newAnalyzeCmd() *cobra.Command {
	opts := analyzeOptions{}
	cmd := &cobra.Command{
		Use:   "analyze [flags] programs.yaml...",
		Short: "Count observable hit/miss traces and execution times",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(opts, args)
		},
	}
	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "YAML configuration file")
	cmd.Flags().BoolVar(&opts.noTraces, "no-traces", false, "analyze the cache only, without traces and times")
	cmd.Flags().StringVarP(&opts.outPath, "out", "o", "", "write the reports as JSON to this file")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "log every analysis step")
	return cmd
}

func loadConfig(opts analyzeOptions) (analysis.Config, error) {
	cfg := analysis.DefaultConfig()
	if opts.configPath != "" {
		var err error
		if cfg, err = analysis.LoadConfig(opts.configPath); err != nil {
			return cfg, err
		}
	}
	if opts.noTraces {
		cfg.TrackTraces = false
	}
	return cfg, cfg.Validate()
}

func runAnalyze(opts analyzeOptions, paths []string) error {
	logger := log.New()
	logger.SetOutput(os.Stderr)
	if opts.verbose {
		logger.SetLevel(log.DebugLevel)
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	var progs []*vm.Program
	for _, path := range paths {
		ps, err := vm.LoadPrograms(path)
		if err != nil {
			return err
		}
		progs = append(progs, ps...)
	}

	reg := prometheus.NewRegistry()
	a := analysis.NewCacheAnalyzer(cfg, logger, analysis.NewMetrics(reg))
	var reports []analysis.Report
	for _, p := range progs {
		fmt.Println(p.Name)
		rep, err := a.Analyze(p)
		if err != nil {
			fmt.Printf("[%v] analysis ended with an error: %v\n", p.Name, err)
			continue
		}
		if rep.MayFail {
			fmt.Printf("[%v] analysis gave up: %v\n", p.Name, rep.FailureCause)
		} else {
			fmt.Print(rep.Summary)
		}
		reports = append(reports, rep)
	}

	logger.WithFields(log.Fields{
		"success": a.NumSuccess(),
		"fail":    a.NumFail(),
		"errors":  a.NumErrors(),
		"causes":  a.FailureCauses(),
		"time":    a.Time(),
	}).Info("done")
	logMetrics(logger, reg)

	if opts.outPath != "" {
		if err := writeReports(opts.outPath, reports); err != nil {
			return err
		}
	}
	if 0 < a.NumErrors() {
		return errors.Errorf("%d of %d programs ended with an error", a.NumErrors(), len(progs))
	}
	return nil
}

func logMetrics(logger *log.Logger, reg *prometheus.Registry) {
	families, err := reg.Gather()
	if err != nil {
		logger.WithField("error", err).Warn("cannot gather metrics")
		return
	}
	fields := log.Fields{}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			fields[mf.GetName()] = m.GetCounter().GetValue()
		}
	}
	logger.WithFields(fields).Debug("metrics")
}

func writeReports(path string, reports []analysis.Report) error {
	filePtr, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, 0)
	}
	defer filePtr.Close()

	encoder := json.NewEncoder(filePtr)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(reports); err != nil {
		return errors.Wrap(err, 0)
	}
	return nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
