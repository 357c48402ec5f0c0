package validation

import (
	"fmt"
	"strings"

	"github.com/wonny/paperflow/internal/tabular"
)

// Severity classifies how much a failed check matters
type Severity string

const (
	// SeverityError blocks acceptance of the dataset
	SeverityError Severity = "error"

	// SeverityWarning is notable but non-blocking
	SeverityWarning Severity = "warning"

	// SeverityInfo is observational
	SeverityInfo Severity = "info"
)

// ParseSeverity accepts error, warning or info (case-insensitive)
func ParseSeverity(s string) (Severity, error) {
	switch Severity(strings.ToLower(strings.TrimSpace(s))) {
	case SeverityError:
		return SeverityError, nil
	case SeverityWarning:
		return SeverityWarning, nil
	case SeverityInfo:
		return SeverityInfo, nil
	default:
		return "", fmt.Errorf("invalid severity %q (must be error, warning or info)", s)
	}
}

// CheckFunc inspects a dataset and reports whether it passed along with a message
type CheckFunc func(ds *tabular.Dataset) (bool, string)

// Rule is a named check with a declared severity
type Rule interface {
	Name() string
	Severity() Severity
	Description() string
	Check(ds *tabular.Dataset) (bool, string)
}

// RuleOption customises a rule built by NewRule or a built-in constructor
type RuleOption func(*rule)

// WithSeverity overrides the rule's default severity
func WithSeverity(s Severity) RuleOption {
	return func(r *rule) {
		r.severity = s
	}
}

// WithDescription overrides the rule's description
func WithDescription(d string) RuleOption {
	return func(r *rule) {
		r.description = d
	}
}

type rule struct {
	name        string
	severity    Severity
	description string
	check       CheckFunc
}

// NewRule wraps a check function as a Rule with error severity unless overridden
func NewRule(name string, check CheckFunc, opts ...RuleOption) Rule {
	return newRule(name, SeverityError, "", check, opts)
}

func newRule(name string, severity Severity, description string, check CheckFunc, opts []RuleOption) Rule {
	r := &rule{
		name:        name,
		severity:    severity,
		description: description,
		check:       check,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *rule) Name() string        { return r.name }
func (r *rule) Severity() Severity  { return r.severity }
func (r *rule) Description() string { return r.description }

func (r *rule) Check(ds *tabular.Dataset) (bool, string) {
	return r.check(ds)
}
