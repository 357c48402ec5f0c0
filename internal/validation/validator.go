package validation

import (
	"errors"
	"fmt"

	"github.com/wonny/paperflow/internal/tabular"
	"github.com/wonny/paperflow/pkg/logger"
)

// ErrValidationFailed is wrapped by FailedError
var ErrValidationFailed = errors.New("validation failed")

// FailedError carries the report of a validation pass with error-severity failures
type FailedError struct {
	Report *Report
}

func (e *FailedError) Error() string {
	return "Validation failed:\n" + e.Report.Format(false)
}

func (e *FailedError) Unwrap() error {
	return ErrValidationFailed
}

// Validator runs an ordered list of rules against a dataset.
// Not safe for concurrent AddRule; Validate may be called repeatedly.
type Validator struct {
	rules []Rule
	log   *logger.Logger
}

// ValidatorOption configures a Validator
type ValidatorOption func(*Validator)

// WithLogger sets the validator logger
func WithLogger(log *logger.Logger) ValidatorOption {
	return func(v *Validator) {
		v.log = log
	}
}

// NewValidator creates an empty validator
func NewValidator(opts ...ValidatorOption) *Validator {
	v := &Validator{log: logger.Nop()}
	for _, opt := range opts {
		opt(v)
	}
	v.log = v.log.WithComponent("validation")
	return v
}

// AddRule appends a rule
func (v *Validator) AddRule(r Rule) *Validator {
	v.rules = append(v.rules, r)
	return v
}

// AddRules appends rules in order
func (v *Validator) AddRules(rules ...Rule) *Validator {
	for _, r := range rules {
		v.AddRule(r)
	}
	return v
}

// Rules returns the registered rules in order
func (v *Validator) Rules() []Rule {
	return append([]Rule(nil), v.rules...)
}

// Validate runs every rule in registration order.
// A panicking rule is recorded as a failure with its declared severity.
func (v *Validator) Validate(ds *tabular.Dataset) *Report {
	report := &Report{Results: make([]Result, 0, len(v.rules))}

	for _, r := range v.rules {
		passed, message := runRule(r, ds)
		report.Results = append(report.Results, Result{
			RuleName: r.Name(),
			Passed:   passed,
			Message:  message,
			Severity: r.Severity(),
		})
		if !passed {
			v.log.WithFields(map[string]interface{}{
				"rule":     r.Name(),
				"severity": r.Severity(),
			}).Debug(message)
		}
	}

	v.log.WithFields(map[string]interface{}{
		"checks":   len(report.Results),
		"errors":   report.ErrorCount(),
		"warnings": report.WarningCount(),
	}).Info("Validation complete")

	return report
}

// ValidateOrError validates and returns a *FailedError when any error-severity rule failed
func (v *Validator) ValidateOrError(ds *tabular.Dataset) (*Report, error) {
	report := v.Validate(ds)
	if report.HasErrors() {
		return report, &FailedError{Report: report}
	}
	return report, nil
}

func runRule(r Rule, ds *tabular.Dataset) (passed bool, message string) {
	defer func() {
		if rec := recover(); rec != nil {
			passed = false
			message = fmt.Sprintf("Rule execution error: %v", rec)
		}
	}()
	return r.Check(ds)
}
