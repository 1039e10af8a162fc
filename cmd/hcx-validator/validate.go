package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	hcx "github.com/xtanion/integration-sdks"
	"github.com/xtanion/integration-sdks/engine"
	"github.com/xtanion/integration-sdks/validation"
)

// Output formats.
const (
	OutputText = "text"
	OutputJSON = "json"
)

// ValidationOutput is the JSON report for one resource.
type ValidationOutput struct {
	Resource string        `json:"resource"`
	Valid    bool          `json:"valid"`
	Profile  string        `json:"profile,omitempty"`
	Errors   int           `json:"errors"`
	Warnings int           `json:"warnings"`
	Issues   []IssueOutput `json:"issues,omitempty"`
	Duration string        `json:"duration"`
}

// IssueOutput is one issue in the JSON report.
type IssueOutput struct {
	Severity    string   `json:"severity"`
	Code        string   `json:"code"`
	Diagnostics string   `json:"diagnostics"`
	Expression  []string `json:"expression,omitempty"`
}

type validateFlags struct {
	output string
	strict bool
}

func newValidateCmd(g *globalFlags) *cobra.Command {
	f := &validateFlags{}
	cmd := &cobra.Command{
		Use:   "validate [files...]",
		Short: "Validate FHIR resources; use - to read from stdin",
		Example: `  hcx-validator validate coverage.json
  hcx-validator validate --output json bundles/*.json
  cat claim.json | hcx-validator validate -`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, g, f, args)
		},
	}
	cmd.Flags().StringVarP(&f.output, "output", "o", OutputText, "Output format: text, json")
	cmd.Flags().BoolVar(&f.strict, "strict", false, "Treat warnings as errors")
	return cmd
}

func runValidate(cmd *cobra.Command, g *globalFlags, f *validateFlags, args []string) error {
	output := strings.ToLower(f.output)
	if output != OutputText && output != OutputJSON {
		return fmt.Errorf("unknown output format %q", f.output)
	}

	store, err := g.load()
	if err != nil {
		return err
	}
	log, err := g.logger(store)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	builder := g.builder(store, log, validation.WithEngineOptions(hcx.WithStrictMode(f.strict)))
	v, err := builder.Build(cmd.Context(), store.HCXIGBasePath(), store.NRCESIGBasePath())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	hasErrors := false
	outputs := make([]ValidationOutput, 0, len(args))

	for _, arg := range args {
		if arg == "-" {
			data, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("read stdin: %w", err)
			}
			report := validateData(cmd, v, data, "stdin", output)
			outputs = append(outputs, report)
			hasErrors = hasErrors || !report.Valid
			continue
		}

		matches, err := filepath.Glob(arg)
		if err != nil {
			return fmt.Errorf("pattern %q: %w", arg, err)
		}
		if len(matches) == 0 {
			fmt.Fprintf(cmd.ErrOrStderr(), "No files match pattern: %s\n", arg)
			hasErrors = true
			continue
		}
		for _, path := range matches {
			report := validateFile(cmd, v, path, output)
			outputs = append(outputs, report)
			hasErrors = hasErrors || !report.Valid
		}
	}

	if output == OutputJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(outputs); err != nil {
			return err
		}
	}

	if hasErrors {
		return errInvalid
	}
	return nil
}

func validateFile(cmd *cobra.Command, v *engine.Validator, path, output string) ValidationOutput {
	data, err := os.ReadFile(path)
	if err != nil {
		if output == OutputText {
			fmt.Fprintf(cmd.OutOrStdout(), "Error reading %s: %v\n", path, err)
		}
		return ValidationOutput{
			Resource: path,
			Errors:   1,
			Issues: []IssueOutput{{
				Severity:    string(hcx.SeverityError),
				Code:        "exception",
				Diagnostics: fmt.Sprintf("Failed to read file: %v", err),
			}},
		}
	}
	return validateData(cmd, v, data, path, output)
}

func validateData(cmd *cobra.Command, v *engine.Validator, data []byte, name, output string) ValidationOutput {
	start := time.Now()
	result := v.Validate(cmd.Context(), data)
	duration := time.Since(start).Round(time.Microsecond)

	report := ValidationOutput{
		Resource: name,
		Valid:    result.Valid,
		Profile:  result.Profile,
		Errors:   result.ErrorCount(),
		Warnings: result.WarningCount(),
		Duration: duration.String(),
	}
	for _, iss := range result.Issues {
		report.Issues = append(report.Issues, IssueOutput{
			Severity:    string(iss.Severity),
			Code:        string(iss.Code),
			Diagnostics: iss.Diagnostics,
			Expression:  iss.Expression,
		})
	}

	if output == OutputText {
		printTextResult(cmd.OutOrStdout(), name, result, duration)
	}
	return report
}

func printTextResult(w io.Writer, name string, result *hcx.Result, duration time.Duration) {
	status := "VALID"
	if !result.Valid {
		status = "INVALID"
	}

	fmt.Fprintf(w, "== %s ==\n", name)
	fmt.Fprintf(w, "Status: %s\n", status)
	fmt.Fprintf(w, "Errors: %d, Warnings: %d\n", result.ErrorCount(), result.WarningCount())
	if result.Profile != "" {
		fmt.Fprintf(w, "Profile: %s\n", result.Profile)
	}
	fmt.Fprintf(w, "Duration: %s\n", duration)

	if len(result.Issues) > 0 {
		fmt.Fprintln(w, "\nIssues:")
		for _, iss := range result.Issues {
			location := ""
			if len(iss.Expression) > 0 {
				location = " @ " + strings.Join(iss.Expression, ", ")
			}
			fmt.Fprintf(w, "  %s [%s] %s%s\n", severityLabel(iss.Severity), iss.Code, iss.Diagnostics, location)
		}
	}
	fmt.Fprintln(w)
}

func severityLabel(s hcx.IssueSeverity) string {
	switch s {
	case hcx.SeverityFatal:
		return "FATAL"
	case hcx.SeverityError:
		return "ERROR"
	case hcx.SeverityWarning:
		return "WARN "
	case hcx.SeverityInformation:
		return "INFO "
	default:
		return "     "
	}
}
