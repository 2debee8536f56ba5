package plan

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func write(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "plan.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := write(t, `
ledger: main.ledger
rules_dir: /etc/ledger/rules
statements:
  - file: checking.csv
    account: Assets:Checking
    currency: EUR
    balance_interval: 10
    delimiter: ";"
    decimal_comma: true
    columns:
      date: Buchungstag
      payee: Empfänger
  - file: /data/visa.ofx
    format: ofx
    account: Liabilities:Visa
    negate: true
`)
	p, err := Load(path)
	require.NoError(t, err)
	dir := filepath.Dir(path)

	assert.Equal(t, filepath.Join(dir, "main.ledger"), p.Ledger)
	assert.Equal(t, "/etc/ledger/rules", p.RulesDir)
	require.Len(t, p.Statements, 2)

	csv := p.Statements[0]
	assert.Equal(t, filepath.Join(dir, "checking.csv"), csv.File)
	assert.Equal(t, "Assets:Checking", csv.Account)
	assert.Equal(t, 10, csv.BalanceInterval)
	assert.Equal(t, ";", csv.Delimiter)
	assert.True(t, csv.DecimalComma)
	assert.Equal(t, "Buchungstag", csv.Columns.Date)
	assert.Equal(t, "Empfänger", csv.Columns.Payee)

	ofx := p.Statements[1]
	assert.Equal(t, "/data/visa.ofx", ofx.File)
	assert.Equal(t, "ofx", ofx.Format)
	assert.True(t, ofx.Negate)
}

func TestLoadInvalid(t *testing.T) {
	for name, content := range map[string]string{
		"no statements":  "ledger: x.ledger\n",
		"no account":     "statements:\n  - file: a.csv\n",
		"no file":        "statements:\n  - account: Assets:Cash\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Load(write(t, content))
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}

	_, err := Load(write(t, "statements:\n  - file: a.csv\n    acount: typo\n"))
	assert.Error(t, err, "unknown fields are rejected")
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "ledger"), ExpandHome("~/ledger"))
	assert.Equal(t, "relative/~", ExpandHome("relative/~"))
	assert.Equal(t, "", Resolve("/base", ""))
}
