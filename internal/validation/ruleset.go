package validation

import (
	"bytes"
	"fmt"
	"math"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/wonny/paperflow/internal/tabular"
	"github.com/wonny/paperflow/pkg/logger"
)

// ConfigError reports an invalid entry in a rule file
type ConfigError struct {
	Field   string
	Message string
}

func (e ConfigError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// RuleSpec is one declarative rule entry
type RuleSpec struct {
	Type        string   `yaml:"type"`
	Column      string   `yaml:"column,omitempty"`
	Columns     []string `yaml:"columns,omitempty"`
	Min         any      `yaml:"min,omitempty"`
	Max         any      `yaml:"max,omitempty"`
	Values      []any    `yaml:"values,omitempty"`
	Severity    string   `yaml:"severity,omitempty"`
	Description string   `yaml:"description,omitempty"`
}

// RuleSet is a parsed rule file
//
//	rules:
//	  - type: unique_values
//	    column: id
//	  - type: value_range
//	    column: value
//	    min: 0
//	    max: 100
//	schema:
//	  - column: id
//	    type: int
type RuleSet struct {
	Rules  []RuleSpec    `yaml:"rules"`
	Schema []SchemaField `yaml:"schema,omitempty"`

	built []Rule
}

// LoadRuleSet reads and checks a YAML rule file. Unknown fields are rejected.
func LoadRuleSet(path string) (*RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}
	return ParseRuleSet(data)
}

// ParseRuleSet decodes and checks rule YAML
func ParseRuleSet(data []byte) (*RuleSet, error) {
	var rs RuleSet
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&rs); err != nil {
		return nil, fmt.Errorf("failed to decode rules file: %w", err)
	}

	rules := make([]Rule, 0, len(rs.Rules))
	for i, spec := range rs.Rules {
		r, err := spec.build(fmt.Sprintf("rules[%d]", i))
		if err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	rs.built = rules

	for i, f := range rs.Schema {
		field := fmt.Sprintf("schema[%d]", i)
		if f.Column == "" {
			return nil, ConfigError{field + ".column", "required"}
		}
		switch TypeCategory(f.Type) {
		case CategoryInt, CategoryFloat, CategoryStr, CategoryBool, CategoryDatetime:
		default:
			return nil, ConfigError{field + ".type", fmt.Sprintf("unknown type %q (int, float, str, bool, datetime)", f.Type)}
		}
	}

	return &rs, nil
}

// Validator returns a validator loaded with the rule set's rules
func (rs *RuleSet) Validator(log *logger.Logger) *Validator {
	v := NewValidator(WithLogger(log))
	return v.AddRules(rs.built...)
}

// Validate runs the rules and then the schema checks, collected in one report
func (rs *RuleSet) Validate(ds *tabular.Dataset, log *logger.Logger) *Report {
	v := rs.Validator(log)
	report := v.Validate(ds)
	if schema := rs.BuildSchema(); schema != nil {
		report.Results = append(report.Results, v.ValidateSchema(ds, schema).Results...)
	}
	return report
}

// BuildSchema returns the rule set's schema, or nil when none is declared
func (rs *RuleSet) BuildSchema() Schema {
	if len(rs.Schema) == 0 {
		return nil
	}
	return CreateSchema(rs.Schema...)
}

func (s RuleSpec) build(field string) (Rule, error) {
	var opts []RuleOption
	if s.Severity != "" {
		sev, err := ParseSeverity(s.Severity)
		if err != nil {
			return nil, ConfigError{field + ".severity", err.Error()}
		}
		opts = append(opts, WithSeverity(sev))
	}
	if s.Description != "" {
		opts = append(opts, WithDescription(s.Description))
	}

	needColumn := func() error {
		if s.Column == "" {
			return ConfigError{field + ".column", "required for " + s.Type}
		}
		return nil
	}

	switch s.Type {
	case TypeNoMissingValues:
		if len(s.Columns) == 0 {
			return nil, ConfigError{field + ".columns", "required for " + s.Type}
		}
		return NoMissingValues(s.Columns, opts...), nil

	case TypeUniqueValues:
		if err := needColumn(); err != nil {
			return nil, err
		}
		return UniqueValues(s.Column, opts...), nil

	case TypeValueRange:
		if err := needColumn(); err != nil {
			return nil, err
		}
		min, err := optionalFloat(field+".min", s.Min)
		if err != nil {
			return nil, err
		}
		max, err := optionalFloat(field+".max", s.Max)
		if err != nil {
			return nil, err
		}
		if min != nil && max != nil && *min > *max {
			return nil, ConfigError{field, "min must be <= max"}
		}
		return ValueRange(s.Column, min, max, opts...), nil

	case TypePositiveValues:
		if err := needColumn(); err != nil {
			return nil, err
		}
		return PositiveValues(s.Column, opts...), nil

	case TypeCategoricalValues:
		if err := needColumn(); err != nil {
			return nil, err
		}
		if len(s.Values) == 0 {
			return nil, ConfigError{field + ".values", "required for " + s.Type}
		}
		return CategoricalValues(s.Column, s.Values, opts...), nil

	case TypeDateRange:
		if err := needColumn(); err != nil {
			return nil, err
		}
		min, err := optionalDate(field+".min", s.Min)
		if err != nil {
			return nil, err
		}
		max, err := optionalDate(field+".max", s.Max)
		if err != nil {
			return nil, err
		}
		return DateRange(s.Column, min, max, opts...), nil

	case TypeRowCount:
		min, err := optionalInt(field+".min", s.Min)
		if err != nil {
			return nil, err
		}
		max, err := optionalInt(field+".max", s.Max)
		if err != nil {
			return nil, err
		}
		return RowCount(min, max, opts...), nil

	case TypeNoDuplicateRows:
		return NoDuplicateRows(s.Columns, opts...), nil

	case "":
		return nil, ConfigError{field + ".type", "required"}

	default:
		return nil, ConfigError{field + ".type", fmt.Sprintf("unknown rule type %q", s.Type)}
	}
}

func optionalFloat(field string, v any) (*float64, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case int:
		return Ptr(float64(x)), nil
	case int64:
		return Ptr(float64(x)), nil
	case float64:
		return Ptr(x), nil
	default:
		return nil, ConfigError{field, fmt.Sprintf("must be a number, got %v", v)}
	}
}

func optionalInt(field string, v any) (*int, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case int:
		return Ptr(x), nil
	case int64:
		return Ptr(int(x)), nil
	case float64:
		if x == math.Trunc(x) {
			return Ptr(int(x)), nil
		}
	}
	return nil, ConfigError{field, fmt.Sprintf("must be an integer, got %v", v)}
}

func optionalDate(field string, v any) (string, error) {
	switch x := v.(type) {
	case nil:
		return "", nil
	case time.Time:
		return x.Format("2006-01-02"), nil
	case string:
		if _, ok := ParseDate(x); !ok {
			return "", ConfigError{field, fmt.Sprintf("invalid date %q", x)}
		}
		return x, nil
	default:
		return "", ConfigError{field, fmt.Sprintf("must be a date string, got %v", v)}
	}
}
