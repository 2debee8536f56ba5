// Package plan reads import plans: YAML files listing several statements
// to import into one ledger.
package plan

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/plenert/ledger/ledger/bankcsv"
)

// ErrInvalid is returned for plans missing required fields.
var ErrInvalid = errors.New("invalid import plan")

// Statement is one statement import. Empty fields fall back to the
// command line defaults.
type Statement struct {
	File     string `yaml:"file"`
	Format   string `yaml:"format,omitempty"`
	Account  string `yaml:"account"`
	Currency string `yaml:"currency,omitempty"`

	BalanceInterval int    `yaml:"balance_interval,omitempty"`
	DateFormat      string `yaml:"date_format,omitempty"`
	Delimiter       string `yaml:"delimiter,omitempty"`
	Negate          bool   `yaml:"negate,omitempty"`
	Scale           string `yaml:"scale,omitempty"`
	DecimalComma    bool   `yaml:"decimal_comma,omitempty"`

	Columns bankcsv.Columns `yaml:"columns,omitempty"`
}

// Plan is a list of statements for one ledger.
type Plan struct {
	Ledger     string      `yaml:"ledger,omitempty"`
	RulesDir   string      `yaml:"rules_dir,omitempty"`
	Session    string      `yaml:"session,omitempty"`
	Statements []Statement `yaml:"statements"`
}

// Load reads the plan at path. Relative paths in the plan are relative to
// the plan file.
func Load(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var p Plan
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if len(p.Statements) == 0 {
		return nil, fmt.Errorf("%w: %s: no statements", ErrInvalid, path)
	}

	base := filepath.Dir(path)
	p.Ledger = Resolve(base, p.Ledger)
	p.RulesDir = Resolve(base, p.RulesDir)
	for i := range p.Statements {
		s := &p.Statements[i]
		if s.File == "" || s.Account == "" {
			return nil, fmt.Errorf("%w: %s: statement %d needs file and account", ErrInvalid, path, i+1)
		}
		s.File = Resolve(base, s.File)
	}
	return &p, nil
}

// Resolve expands a leading "~" and makes relative paths relative to base.
// Empty paths stay empty.
func Resolve(base, path string) string {
	if path == "" {
		return ""
	}
	path = ExpandHome(path)
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(base, path)
}

// ExpandHome replaces a leading "~" with the home directory.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
