package config

import (
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"persacc/internal/core"
)

// RuleAction selects how a consequence rule converts matching expenses into
// a retention amount.
type RuleAction string

const (
	// ActionPercent retains a percentage of every matching expense.
	ActionPercent RuleAction = "percent"
	// ActionFixed retains a fixed amount per matching expense.
	ActionFixed RuleAction = "fixed"
)

// Rule is one consequence rule. Filters are ANDed; empty filters match
// everything. Rules are evaluated in declaration order.
type Rule struct {
	Name       string
	Active     bool
	Relevance  core.RelevanceCode // filter: expense relevance code
	Category   string             // filter: category name, exact match
	Concept    string             // filter: concept substring, case-insensitive
	Action     RuleAction
	ValueBP    int64 // percent action: basis points of each matching expense
	FixedCents int64 // fixed action: cents per matching expense
}

// Matches reports whether an expense with the given relevance, category name
// and concept passes every configured filter.
func (r Rule) Matches(relevance core.RelevanceCode, category, concept string) bool {
	if r.Relevance != "" && relevance != r.Relevance {
		return false
	}
	if r.Category != "" && category != r.Category {
		return false
	}
	if r.Concept != "" && !strings.Contains(strings.ToLower(concept), strings.ToLower(r.Concept)) {
		return false
	}
	return true
}

// Closing is the immutable configuration snapshot a closing run reads once
// at its start. Percentages are held in basis points so the retention math
// stays in integers.
type Closing struct {
	EnableRetentions   bool
	EnableConsequences bool
	Method             core.ClosingMethod
	MinimumBuffer      core.Money
	SurplusPctBP       int64
	SalaryPctBP        int64
	Rules              []Rule
}

// Defaults returns the documented default closing configuration: 20% surplus
// retention, 30% salary retention, balance captured before salary, no buffer,
// consequences disabled.
func Defaults() Closing {
	return Closing{
		EnableRetentions:   true,
		EnableConsequences: false,
		Method:             core.BeforeSalary,
		SurplusPctBP:       2_000,
		SalaryPctBP:        3_000,
	}
}

// closingFile mirrors the TOML layout of the closing configuration file.
type closingFile struct {
	EnableRetentions   *bool  `toml:"enable_retentions"`
	EnableConsequences *bool  `toml:"enable_consequences"`
	MinimumBuffer      string `toml:"minimum_buffer"`

	Retentions struct {
		SurplusPct *float64 `toml:"surplus_pct"`
		SalaryPct  *float64 `toml:"salary_pct"`
	} `toml:"retentions"`

	Closing struct {
		Method string `toml:"method"`
	} `toml:"closing"`

	Rules []ruleFile `toml:"rules"`
}

type ruleFile struct {
	Name      string  `toml:"name"`
	Active    *bool   `toml:"active"`
	Relevance string  `toml:"relevance"`
	Category  string  `toml:"category"`
	Concept   string  `toml:"concept"`
	Action    string  `toml:"action"`
	Value     float64 `toml:"value"`
}

// LoadClosing reads and validates the closing configuration file. Any
// problem is reported as ErrConfigUnavailable: a closing must abort rather
// than run on a partially understood configuration.
func LoadClosing(path string) (Closing, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Closing{}, fmt.Errorf("%w: read %s: %v", core.ErrConfigUnavailable, path, err)
	}
	return ParseClosing(data)
}

// ParseClosing parses TOML bytes into a validated Closing value. Fields
// absent from the file keep their documented defaults.
func ParseClosing(data []byte) (Closing, error) {
	var f closingFile
	if err := toml.Unmarshal(data, &f); err != nil {
		return Closing{}, fmt.Errorf("%w: parse: %v", core.ErrConfigUnavailable, err)
	}

	cfg := Defaults()
	if f.EnableRetentions != nil {
		cfg.EnableRetentions = *f.EnableRetentions
	}
	if f.EnableConsequences != nil {
		cfg.EnableConsequences = *f.EnableConsequences
	}
	if f.MinimumBuffer != "" {
		buf, err := core.ParseMoney(f.MinimumBuffer)
		if err != nil || buf.IsNegative() {
			return Closing{}, fmt.Errorf("%w: invalid minimum_buffer %q", core.ErrConfigUnavailable, f.MinimumBuffer)
		}
		cfg.MinimumBuffer = buf
	}
	if f.Retentions.SurplusPct != nil {
		bp, err := pctToBasisPoints(*f.Retentions.SurplusPct)
		if err != nil {
			return Closing{}, fmt.Errorf("%w: retentions.surplus_pct: %v", core.ErrConfigUnavailable, err)
		}
		cfg.SurplusPctBP = bp
	}
	if f.Retentions.SalaryPct != nil {
		bp, err := pctToBasisPoints(*f.Retentions.SalaryPct)
		if err != nil {
			return Closing{}, fmt.Errorf("%w: retentions.salary_pct: %v", core.ErrConfigUnavailable, err)
		}
		cfg.SalaryPctBP = bp
	}
	if f.Closing.Method != "" {
		m := core.ClosingMethod(f.Closing.Method)
		if err := m.Validate(); err != nil {
			return Closing{}, fmt.Errorf("%w: %v", core.ErrConfigUnavailable, err)
		}
		cfg.Method = m
	}

	for i, rf := range f.Rules {
		rule, err := parseRule(rf)
		if err != nil {
			return Closing{}, fmt.Errorf("%w: rule %d (%s): %v", core.ErrConfigUnavailable, i, rf.Name, err)
		}
		cfg.Rules = append(cfg.Rules, rule)
	}

	return cfg, nil
}

func parseRule(rf ruleFile) (Rule, error) {
	if strings.TrimSpace(rf.Name) == "" {
		return Rule{}, fmt.Errorf("rule name is required")
	}
	r := Rule{
		Name:     rf.Name,
		Active:   true,
		Category: rf.Category,
		Concept:  rf.Concept,
	}
	if rf.Active != nil {
		r.Active = *rf.Active
	}
	if rf.Relevance != "" {
		code := core.RelevanceCode(rf.Relevance)
		if err := code.Validate(); err != nil {
			return Rule{}, err
		}
		r.Relevance = code
	}
	switch RuleAction(rf.Action) {
	case ActionPercent:
		bp, err := pctToBasisPoints(rf.Value)
		if err != nil {
			return Rule{}, err
		}
		r.Action = ActionPercent
		r.ValueBP = bp
	case ActionFixed:
		if rf.Value < 0 {
			return Rule{}, fmt.Errorf("fixed value must be non-negative")
		}
		r.Action = ActionFixed
		r.FixedCents = int64(math.Round(rf.Value * 100))
	default:
		return Rule{}, fmt.Errorf("unknown action %q", rf.Action)
	}
	return r, nil
}

// pctToBasisPoints converts a percentage like 12.5 into 1250 basis points.
func pctToBasisPoints(pct float64) (int64, error) {
	if pct < 0 || pct > 100 {
		return 0, fmt.Errorf("percentage %v out of range [0, 100]", pct)
	}
	return int64(math.Round(pct * 100)), nil
}
