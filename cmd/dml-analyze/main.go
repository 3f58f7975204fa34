// Command dml-analyze runs the DML analyzer over a set of device files and
// reports diagnostics, without starting a language server (spec.md §6).
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fenghaitao/dml-language-server/internal/compileinfo"
	"github.com/fenghaitao/dml-language-server/internal/device"
	"github.com/fenghaitao/dml-language-server/internal/diag"
	"github.com/fenghaitao/dml-language-server/internal/lintcfg"
)

// errDiagnosticsFound signals a clean exit-code-1: analysis ran fine but
// found error-severity diagnostics, already printed by report(). main
// must not also print this error.
var errDiagnosticsFound = fmt.Errorf("diagnostics found")

func main() {
	cmd := newRootCommand()
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	if err := cmd.Execute(); err != nil {
		if err != errDiagnosticsFound {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

type options struct {
	compileInfoPath string
	lint            bool
	lintCfgPath     string
	verbose         bool
	quiet           bool
	errorsOnly      bool
	format          string
}

func newRootCommand() *cobra.Command {
	opts := &options{format: "summary"}

	cmd := &cobra.Command{
		Use:   "dml-analyze <file>...",
		Short: "Analyze DML device files and report diagnostics",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd.Context(), args, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.compileInfoPath, "compile-info", "", "path to a compile-commands JSON file (spec.md §6)")
	flags.BoolVar(&opts.lint, "lint", false, "accepted for the external lint collaborator; no lint rules are run and the value is not used")
	flags.StringVar(&opts.lintCfgPath, "lint-cfg", "", "path to a lint configuration YAML file")
	flags.BoolVar(&opts.verbose, "verbose", false, "enable debug-level logging")
	flags.BoolVar(&opts.quiet, "quiet", false, "suppress all logging below warning level")
	flags.BoolVar(&opts.errorsOnly, "errors-only", false, "only print error-severity diagnostics")
	flags.StringVar(&opts.format, "format", "summary", "output format: summary|detailed|json")

	return cmd
}

func runAnalyze(ctx context.Context, files []string, opts *options) error {
	log, err := newLogger(opts)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	table, err := loadCompileInfo(opts.compileInfoPath)
	if err != nil {
		return err
	}

	if _, err := loadLintConfig(opts.lintCfgPath); err != nil {
		return err
	}

	coord := device.New(log.Named("device"), nil)
	defer func() {
		if err := coord.Close(); err != nil {
			log.Warn("error closing coordinator", zap.Error(err))
		}
	}()

	hasErrors := false
	for _, path := range files {
		coord.SetIncludePaths(path, table.IncludesFor(path))

		text, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		coord.Analyze(ctx, path, string(text))
	}

	results := coord.AllDiagnostics()
	if err := report(results, opts); err != nil {
		return err
	}
	for _, diags := range results {
		for _, d := range diags {
			if d.Severity == diag.SeverityError {
				hasErrors = true
			}
		}
	}

	if hasErrors {
		return errDiagnosticsFound
	}
	return nil
}

func loadCompileInfo(path string) (compileinfo.Table, error) {
	if path == "" {
		return compileinfo.Table{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading compile-info: %w", err)
	}
	return compileinfo.Parse(data)
}

func loadLintConfig(path string) (lintcfg.Config, error) {
	if path == "" {
		return lintcfg.Default(), nil
	}
	return lintcfg.Load(path)
}

func newLogger(opts *options) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if opts.verbose {
		cfg = zap.NewDevelopmentConfig()
	}
	if opts.quiet {
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	}
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	return cfg.Build()
}

func sortedFiles(results map[string][]diag.Diagnostic) []string {
	files := make([]string, 0, len(results))
	for f := range results {
		files = append(files, f)
	}
	sort.Strings(files)
	return files
}

func filtered(diags []diag.Diagnostic, errorsOnly bool) []diag.Diagnostic {
	if !errorsOnly {
		return diags
	}
	out := make([]diag.Diagnostic, 0, len(diags))
	for _, d := range diags {
		if d.Severity == diag.SeverityError {
			out = append(out, d)
		}
	}
	return out
}

func report(results map[string][]diag.Diagnostic, opts *options) error {
	switch opts.format {
	case "json":
		return reportJSON(results, opts)
	case "detailed":
		reportDetailed(results, opts)
		return nil
	default:
		reportSummary(results, opts)
		return nil
	}
}

func reportSummary(results map[string][]diag.Diagnostic, opts *options) {
	for _, file := range sortedFiles(results) {
		diags := filtered(results[file], opts.errorsOnly)
		errs, warns := 0, 0
		for _, d := range diags {
			if d.Severity == diag.SeverityError {
				errs++
			} else {
				warns++
			}
		}
		fmt.Printf("%s: %d error(s), %d warning(s)\n", file, errs, warns)
	}
}

func reportDetailed(results map[string][]diag.Diagnostic, opts *options) {
	for _, file := range sortedFiles(results) {
		for _, d := range filtered(results[file], opts.errorsOnly) {
			fmt.Printf("%s: %s: %s (%s)\n", d.Span.String(), severityLabel(d.Severity), d.Message, d.Code())
		}
	}
}

type jsonDiagnostic struct {
	File     string `json:"file"`
	Line     int    `json:"line"`
	Column   int    `json:"column"`
	Severity string `json:"severity"`
	Code     string `json:"code"`
	Message  string `json:"message"`
}

func reportJSON(results map[string][]diag.Diagnostic, opts *options) error {
	var out []jsonDiagnostic
	for _, file := range sortedFiles(results) {
		for _, d := range filtered(results[file], opts.errorsOnly) {
			out = append(out, jsonDiagnostic{
				File:     file,
				Line:     d.Span.Range.Start.Line + 1,
				Column:   d.Span.Range.Start.Column + 1,
				Severity: severityLabel(d.Severity),
				Code:     d.Code(),
				Message:  d.Message,
			})
		}
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func severityLabel(s diag.Severity) string {
	switch s {
	case diag.SeverityError:
		return "error"
	case diag.SeverityWarning:
		return "warning"
	case diag.SeverityInformation:
		return "information"
	case diag.SeverityHint:
		return "hint"
	default:
		return "unknown"
	}
}
