package validation

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Result is the outcome of one rule
type Result struct {
	RuleName string   `json:"rule_name"`
	Passed   bool     `json:"passed"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

// Report is the ordered list of results from one validation pass
type Report struct {
	Results []Result
}

func (r *Report) failedWith(sev Severity) int {
	n := 0
	for _, res := range r.Results {
		if !res.Passed && res.Severity == sev {
			n++
		}
	}
	return n
}

// HasErrors reports whether any error-severity rule failed
func (r *Report) HasErrors() bool {
	return r.failedWith(SeverityError) > 0
}

// HasWarnings reports whether any warning-severity rule failed
func (r *Report) HasWarnings() bool {
	return r.failedWith(SeverityWarning) > 0
}

// Passed reports whether every rule passed, whatever its severity
func (r *Report) Passed() bool {
	for _, res := range r.Results {
		if !res.Passed {
			return false
		}
	}
	return true
}

// ErrorCount returns the number of failed error-severity rules
func (r *Report) ErrorCount() int {
	return r.failedWith(SeverityError)
}

// WarningCount returns the number of failed warning-severity rules
func (r *Report) WarningCount() int {
	return r.failedWith(SeverityWarning)
}

// Failed returns the failed results in order
func (r *Report) Failed() []Result {
	var failed []Result
	for _, res := range r.Results {
		if !res.Passed {
			failed = append(failed, res)
		}
	}
	return failed
}

// Format renders the text report; passed checks are listed only when showPassed is set
func (r *Report) Format(showPassed bool) string {
	rule := strings.Repeat("=", 50)
	lines := []string{rule, "VALIDATION REPORT", rule, ""}

	total := len(r.Results)
	passed := total - len(r.Failed())
	lines = append(lines,
		fmt.Sprintf("Total checks: %d", total),
		fmt.Sprintf("Passed: %d", passed),
		fmt.Sprintf("Failed: %d", total-passed),
	)
	if n := r.ErrorCount(); n > 0 {
		lines = append(lines, fmt.Sprintf("  Errors: %d", n))
	}
	if n := r.WarningCount(); n > 0 {
		lines = append(lines, fmt.Sprintf("  Warnings: %d", n))
	}
	lines = append(lines, "")

	for _, res := range r.Results {
		if res.Passed && !showPassed {
			continue
		}
		status := "[PASS]"
		if !res.Passed {
			status = "[FAIL:" + strings.ToUpper(string(res.Severity)) + "]"
		}
		lines = append(lines, status+" "+res.RuleName)
		if res.Message != "" {
			lines = append(lines, "    "+res.Message)
		}
	}

	lines = append(lines, "", rule)
	return strings.Join(lines, "\n")
}

// Document is the serialised form of a Report
type Document struct {
	Passed       bool     `json:"passed"`
	HasErrors    bool     `json:"has_errors"`
	HasWarnings  bool     `json:"has_warnings"`
	ErrorCount   int      `json:"error_count"`
	WarningCount int      `json:"warning_count"`
	Results      []Result `json:"results"`
}

// ToDict converts the report to its plain serialisable form
func (r *Report) ToDict() Document {
	results := r.Results
	if results == nil {
		results = []Result{}
	}
	return Document{
		Passed:       r.Passed(),
		HasErrors:    r.HasErrors(),
		HasWarnings:  r.HasWarnings(),
		ErrorCount:   r.ErrorCount(),
		WarningCount: r.WarningCount(),
		Results:      results,
	}
}

// MarshalJSON encodes the report as its Document form
func (r *Report) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.ToDict())
}
