package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"persacc/internal/core"
)

func TestDefaults(t *testing.T) {
	d := Defaults()
	if d.SurplusPctBP != 2_000 || d.SalaryPctBP != 3_000 {
		t.Fatalf("unexpected default percentages: %d / %d", d.SurplusPctBP, d.SalaryPctBP)
	}
	if d.Method != core.BeforeSalary {
		t.Fatalf("unexpected default method: %s", d.Method)
	}
	if !d.EnableRetentions || d.EnableConsequences {
		t.Fatal("unexpected default flags")
	}
}

func TestParseClosing(t *testing.T) {
	data := []byte(`
enable_consequences = true
minimum_buffer = "150.00"

[retentions]
surplus_pct = 50.0
salary_pct = 20.0

[closing]
method = "after_salary"

[[rules]]
name = "Superfluous surcharge"
relevance = "SUP"
action = "percent"
value = 25.0

[[rules]]
name = "Takeaway tax"
concept = "takeaway"
action = "fixed"
value = 5.0
active = false
`)
	cfg, err := ParseClosing(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.SurplusPctBP != 5_000 || cfg.SalaryPctBP != 2_000 {
		t.Fatalf("percentages: %d / %d", cfg.SurplusPctBP, cfg.SalaryPctBP)
	}
	if cfg.Method != core.AfterSalary {
		t.Fatalf("method: %s", cfg.Method)
	}
	if cfg.MinimumBuffer.Cents != 15_000 {
		t.Fatalf("buffer: %d", cfg.MinimumBuffer.Cents)
	}
	if !cfg.EnableConsequences {
		t.Fatal("consequences should be enabled")
	}
	if len(cfg.Rules) != 2 {
		t.Fatalf("rules: %d", len(cfg.Rules))
	}
	if cfg.Rules[0].Relevance != core.Superfluous || cfg.Rules[0].ValueBP != 2_500 {
		t.Fatalf("rule 0: %+v", cfg.Rules[0])
	}
	if cfg.Rules[1].Action != ActionFixed || cfg.Rules[1].FixedCents != 500 || cfg.Rules[1].Active {
		t.Fatalf("rule 1: %+v", cfg.Rules[1])
	}
}

func TestParseClosingEmptyKeepsDefaults(t *testing.T) {
	cfg, err := ParseClosing(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(cfg, Closing{EnableRetentions: true, Method: core.BeforeSalary, SurplusPctBP: 2_000, SalaryPctBP: 3_000}) {
		t.Fatalf("got %+v", cfg)
	}
}

func TestParseClosingRejectsBadInput(t *testing.T) {
	cases := []string{
		`[closing]` + "\n" + `method = "sometimes"`,
		`[retentions]` + "\n" + `surplus_pct = 120.0`,
		`[retentions]` + "\n" + `salary_pct = -1.0`,
		`minimum_buffer = "abc"`,
		"[[rules]]\nname = \"x\"\naction = \"wat\"",
		"[[rules]]\naction = \"fixed\"\nvalue = 1.0",
		`this is not toml`,
	}
	for _, in := range cases {
		if _, err := ParseClosing([]byte(in)); !errors.Is(err, core.ErrConfigUnavailable) {
			t.Errorf("input %q: got %v, want ErrConfigUnavailable", in, err)
		}
	}
}

func TestLoadClosingMissingFile(t *testing.T) {
	_, err := LoadClosing(filepath.Join(t.TempDir(), "nope.toml"))
	if !errors.Is(err, core.ErrConfigUnavailable) {
		t.Fatalf("got %v, want ErrConfigUnavailable", err)
	}
}

func TestLoadClosingRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "closing.toml")
	if err := os.WriteFile(path, []byte("[retentions]\nsurplus_pct = 10.0\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadClosing(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.SurplusPctBP != 1_000 {
		t.Fatalf("surplus: %d", cfg.SurplusPctBP)
	}
}
