package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"cdc/internal/core"
	"cdc/internal/log"
	"cdc/internal/parser"
)

type diffOptions struct {
	date     string
	format   string
	output   string
	skipRows int
	scanRows int
	debug    bool
}

func newRootCmd() *cobra.Command {
	opts := diffOptions{}

	cmd := &cobra.Command{
		Use:   "cdc-diff OLD NEW",
		Short: "Compare two portfolio snapshots and print the change report",
		Long: `cdc-diff parses two snapshot files (CSV or XLSX), classifies every change
between them and prints the report as JSON or as a plain-text digest.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if opts.output != "" {
				f, err := os.Create(opts.output)
				if err != nil {
					return fmt.Errorf("create output: %w", err)
				}
				defer f.Close()
				out = f
			}
			return runDiff(out, cmd.ErrOrStderr(), args[0], args[1], opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.date, "date", time.Now().Format(core.DateLayout), "reference date YYYY-MM-DD of the newer snapshot")
	f.StringVar(&opts.format, "format", "text", "output format: json or text")
	f.StringVarP(&opts.output, "output", "o", "", "write the report to a file instead of stdout")
	f.IntVar(&opts.skipRows, "skip-rows", parser.DefaultSkipRows, "data rows to skip after the header")
	f.IntVar(&opts.scanRows, "scan-rows", parser.DefaultScanRows, "rows searched for the header")
	f.BoolVar(&opts.debug, "debug", false, "log parser diagnostics to stderr")
	return cmd
}

func runDiff(out, errOut io.Writer, oldPath, newPath string, opts diffOptions) error {
	format := strings.ToLower(strings.TrimSpace(opts.format))
	if format != "json" && format != "text" {
		return fmt.Errorf("unsupported --format: %s", opts.format)
	}
	if _, err := core.ParseDate(opts.date); err != nil {
		return fmt.Errorf("invalid --date %q: want YYYY-MM-DD", opts.date)
	}

	logger := log.Discard()
	if opts.debug {
		lc := log.DefaultConfig()
		lc.Output = errOut
		lc.Level = log.ParseLevel("debug")
		logger = log.New(lc)
	}
	p := parser.New(parser.Options{SkipRows: opts.skipRows, ScanRows: opts.scanRows}, logger)

	oldRes, err := load(p, oldPath)
	if err != nil {
		return err
	}
	newRes, err := load(p, newPath)
	if err != nil {
		return err
	}

	report, err := core.NewEngine().Reconcile(oldRes.Table, newRes.Table, strings.TrimSpace(opts.date))
	if err != nil {
		return fmt.Errorf("reconcile: %w", err)
	}

	if format == "json" {
		enc := json.NewEncoder(out)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	return writeText(out, report)
}

func load(p *parser.Parser, path string) (*parser.Result, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	res, err := p.Load(raw)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return res, nil
}

func writeText(w io.Writer, report *core.Report) error {
	pr := message.NewPrinter(language.Korean)
	s := report.Summary

	pr.Fprintf(w, "총 영향 금액: %.0f\n", finite(s.TotalImpact))
	for _, c := range core.Categories() {
		count, amount, _ := s.CategoryStats(c)
		pr.Fprintf(w, "- %s: %d건, %.0f\n", c, count, finite(amount))
	}
	if report.TextReport != "" {
		if _, err := fmt.Fprintf(w, "\n%s\n", report.TextReport); err != nil {
			return err
		}
	}
	return nil
}

func finite(a core.Amount) float64 {
	if !a.Finite() {
		return 0
	}
	return a.Float()
}
