package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/platinummonkey/apidelta/pkg/compatibility"
	"github.com/platinummonkey/apidelta/pkg/delta"
	"github.com/platinummonkey/apidelta/pkg/model"
)

// Report is the persisted outcome of one comparison
type Report struct {
	ID              string                     `json:"id"`
	Before          string                     `json:"before"`
	After           string                     `json:"after"`
	Component       string                     `json:"component,omitempty"`
	Visibility      string                     `json:"visibility"`
	IncludeMinor    bool                       `json:"include_minor"`
	Delta           *delta.Delta               `json:"delta"`
	Result          *compatibility.CheckResult `json:"result"`
	VersionProblems []compatibility.Violation  `json:"version_problems"`
	CreatedAt       time.Time                  `json:"created_at"`
	Duration        time.Duration              `json:"duration"`
}

// Options records how a comparison was run
type Options struct {
	Visibility   model.Visibility
	IncludeMinor bool
	Component    string
}

// New analyses d and wraps it in a report with a fresh ID
func New(before, after string, opts Options, d *delta.Delta, elapsed time.Duration) *Report {
	problems := compatibility.CheckVersions(d)
	if problems == nil {
		problems = []compatibility.Violation{}
	}
	vis := opts.Visibility
	if vis == 0 {
		vis = model.VisibilityAll
	}
	return &Report{
		ID:              uuid.NewString(),
		Before:          before,
		After:           after,
		Component:       opts.Component,
		Visibility:      vis.String(),
		IncludeMinor:    opts.IncludeMinor,
		Delta:           d,
		Result:          compatibility.Analyze(d),
		VersionProblems: problems,
		CreatedAt:       time.Now().UTC(),
		Duration:        elapsed,
	}
}

// Passed reports whether the comparison found neither incompatible changes nor version
// errors
func (r *Report) Passed() bool {
	if r.Result != nil && !r.Result.Compatible {
		return false
	}
	for _, p := range r.VersionProblems {
		if p.Level == compatibility.ViolationLevelError {
			return false
		}
	}
	return true
}

// Summary is the listing form of a report
type Summary struct {
	ID         string    `json:"id"`
	Before     string    `json:"before"`
	After      string    `json:"after"`
	Component  string    `json:"component,omitempty"`
	Compatible bool      `json:"compatible"`
	Passed     bool      `json:"passed"`
	Deltas     int       `json:"deltas"`
	CreatedAt  time.Time `json:"created_at"`
}

// Summarize returns the listing form of r
func (r *Report) Summarize() Summary {
	return Summary{
		ID:         r.ID,
		Before:     r.Before,
		After:      r.After,
		Component:  r.Component,
		Compatible: r.Result == nil || r.Result.Compatible,
		Passed:     r.Passed(),
		Deltas:     delta.Count(r.Delta),
		CreatedAt:  r.CreatedAt,
	}
}

// RenderJSON writes r as indented JSON
func RenderJSON(w io.Writer, r *Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// Decode reads a report written by RenderJSON
func Decode(data []byte) (*Report, error) {
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to decode report: %w", err)
	}
	if r.Delta == nil {
		r.Delta = delta.NoDelta
	}
	return &r, nil
}

const (
	red    = "\033[31m"
	green  = "\033[32m"
	yellow = "\033[33m"
	cyan   = "\033[36m"
	reset  = "\033[0m"
)

func colored(color, s string) string {
	return color + s + reset
}

func levelColor(l compatibility.ViolationLevel) string {
	switch l {
	case compatibility.ViolationLevelError:
		return red
	case compatibility.ViolationLevelWarning:
		return yellow
	default:
		return cyan
	}
}

// RenderText writes a human readable summary. Info level findings are listed only when
// verbose is set.
func RenderText(w io.Writer, r *Report, verbose bool) error {
	var b strings.Builder

	fmt.Fprintf(&b, "Comparison: %s -> %s", r.Before, r.After)
	if r.Component != "" {
		fmt.Fprintf(&b, " (component %s)", r.Component)
	}
	fmt.Fprintf(&b, "\nVisibility: %s\n", r.Visibility)
	b.WriteString("Result: ")
	if r.Passed() {
		b.WriteString(colored(green, "COMPATIBLE"))
	} else {
		b.WriteString(colored(red, "INCOMPATIBLE"))
	}
	b.WriteString("\n\n")

	if r.Result != nil {
		s := r.Result.Summary
		b.WriteString("Summary:\n")
		fmt.Fprintf(&b, "  Total Changes:    %d\n", s.TotalViolations)
		fmt.Fprintf(&b, "  Errors:           %s\n", count(red, s.Errors))
		fmt.Fprintf(&b, "  Warnings:         %s\n", count(yellow, s.Warnings))
		fmt.Fprintf(&b, "  Info:             %d\n", s.Infos)
		fmt.Fprintf(&b, "  Binary Breaking:  %d\n", s.BinaryBreaking)
		fmt.Fprintf(&b, "  Source Breaking:  %d\n", s.SourceBreaking)
		fmt.Fprintf(&b, "  Version Advice:   %s\n\n", r.Result.Advice)

		if len(r.Result.Violations) > 0 {
			b.WriteString("Changes:\n\n")
			for _, v := range r.Result.Violations {
				if !verbose && v.Level == compatibility.ViolationLevelInfo {
					continue
				}
				writeViolation(&b, v)
			}
		}
	}

	if len(r.VersionProblems) > 0 {
		b.WriteString("Version problems:\n\n")
		for _, v := range r.VersionProblems {
			writeViolation(&b, v)
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func count(color string, n int) string {
	if n == 0 {
		return "0"
	}
	return colored(color, fmt.Sprint(n))
}

func writeViolation(b *strings.Builder, v compatibility.Violation) {
	fmt.Fprintf(b, "[%s] %s\n", colored(levelColor(v.Level), v.Level.String()), v.Rule)
	fmt.Fprintf(b, "  Location: %s\n", v.Location)
	fmt.Fprintf(b, "  Message:  %s\n", v.Message)
	if v.OldValue != "" || v.NewValue != "" {
		fmt.Fprintf(b, "  Change:   %s -> %s\n", v.OldValue, v.NewValue)
	}
	var flags []string
	if v.BinaryBreaking {
		flags = append(flags, "binary-breaking")
	}
	if v.SourceBreaking {
		flags = append(flags, "source-breaking")
	}
	if len(flags) > 0 {
		fmt.Fprintf(b, "  Breaking: %s\n", strings.Join(flags, ", "))
	}
	if v.Suggestion != "" {
		fmt.Fprintf(b, "  Hint:     %s\n", v.Suggestion)
	}
	b.WriteString("\n")
}
