package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/plenert/ledger"
	"github.com/plenert/ledger/ledger/plan"
	"github.com/plenert/ledger/ledger/rules"
	"github.com/plenert/ledger/ledger/statement"
	"github.com/plenert/ledger/ledger/store"
)

var (
	rulesSession string
	rulesFormat  string
	rulesSource  string
)

// ruleFiles returns the rule files in dir, or only the one of format.
func ruleFiles(dir, format string) ([]string, error) {
	if format != "" {
		_, name, err := newAdapter(plan.Statement{Format: format})
		if err != nil {
			return nil, err
		}
		return []string{statement.RulesPath(dir, name)}, nil
	}
	return filepath.Glob(statement.RulesPath(dir, "*"))
}

// ListRules writes the rules of each file as a table. With a session only
// rules learned in it are shown.
func ListRules(w io.Writer, files []string, session string) error {
	header := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cell := lipgloss.NewStyle().Padding(0, 1)

	for _, path := range files {
		s, err := rules.Load(path)
		if err != nil {
			return err
		}
		var rows [][]string
		for i, r := range s.Rules() {
			if session != "" && r.Session != session {
				continue
			}
			created := ""
			if !r.Created.IsZero() {
				created = r.Created.Format(transactionDateFormat)
			}
			rows = append(rows, []string{fmt.Sprint(i + 1), r.String(), criteria(r), r.Account, created})
		}
		if len(rows) == 0 {
			continue
		}
		t := table.New().
			Border(lipgloss.NormalBorder()).
			StyleFunc(func(row, _ int) lipgloss.Style {
				if row == table.HeaderRow {
					return header
				}
				return cell
			}).
			Headers("#", "Rule", "Criteria", "Account", "Created").
			Rows(rows...)
		fmt.Fprintf(w, "%s\n%s\n", filepath.Base(path), t.String())
	}
	return nil
}

func criteria(r rules.Rule) string {
	var parts []string
	for _, c := range []struct{ key, value string }{
		{"payee", r.Payee}, {"note", r.Note}, {"source", r.Source}, {"min", r.Min}, {"max", r.Max},
	} {
		if c.value != "" {
			parts = append(parts, c.key+"="+c.value)
		}
	}
	return strings.Join(parts, " ")
}

// MatchRule reports which rule of each file would classify a transaction
// of payee and amount on the source account.
func MatchRule(w io.Writer, files []string, source, payee string, amount decimal.Decimal) error {
	t := &ledger.Transaction{
		Payee: statement.Payee(payee),
		AccountChanges: []ledger.Account{
			{Name: source, Balance: amount},
			{Name: ledger.UnknownAccount, Balance: amount.Neg()},
		},
	}
	for _, path := range files {
		ref, err := rules.NewReferencer(path, nil, nil, "", rules.WithLogger(logger))
		if err != nil {
			return err
		}
		if r, ok := ref.Match(t); ok {
			fmt.Fprintf(w, "%s: %s -> %s\n", filepath.Base(path), r, r.Account)
		} else {
			fmt.Fprintf(w, "%s: no match\n", filepath.Base(path))
		}
	}
	return nil
}

// RestoreSession puts back the ledger and rule files saved before the
// first change of session. Files without a backup are left alone.
func RestoreSession(paths []string, session string) ([]string, error) {
	var restored []string
	for _, path := range paths {
		if _, err := os.Stat(store.BackupPath(path, session)); err != nil {
			continue
		}
		if err := store.Restore(path, session); err != nil {
			return restored, err
		}
		restored = append(restored, path)
	}
	return restored, nil
}

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Inspect classification rules",
}

var rulesListCmd = &cobra.Command{
	Use:   "list",
	Args:  cobra.NoArgs,
	Short: "List rules, optionally only those learned in a session",
	RunE: func(_ *cobra.Command, _ []string) error {
		path, err := ledgerPath()
		if err != nil {
			return err
		}
		files, err := ruleFiles(rulesDir(path), rulesFormat)
		if err != nil {
			return err
		}
		return ListRules(os.Stdout, files, rulesSession)
	},
}

var rulesTestCmd = &cobra.Command{
	Use:   "test <payee> [amount]",
	Args:  cobra.RangeArgs(1, 2),
	Short: "Show the rule that matches a payee",
	RunE: func(_ *cobra.Command, args []string) error {
		path, err := ledgerPath()
		if err != nil {
			return err
		}
		amount := decimal.Zero
		if len(args) == 2 {
			if amount, err = decimal.NewFromString(args[1]); err != nil {
				return fmt.Errorf("amount %q: %w", args[1], err)
			}
		}
		files, err := ruleFiles(rulesDir(path), rulesFormat)
		if err != nil {
			return err
		}
		return MatchRule(os.Stdout, files, rulesSource, args[0], amount)
	},
}

var restoreCmd = &cobra.Command{
	Use:   "restore <session>",
	Args:  cobra.ExactArgs(1),
	Short: "Undo an import session by restoring the ledger and rule backups",
	RunE: func(_ *cobra.Command, args []string) error {
		path, err := ledgerPath()
		if err != nil {
			return err
		}
		files, err := ruleFiles(rulesDir(path), "")
		if err != nil {
			return err
		}
		restored, err := RestoreSession(append([]string{path}, files...), args[0])
		for _, p := range restored {
			logger.Info("restored", "file", p, "session", args[0])
		}
		if err == nil && len(restored) == 0 {
			logger.Warn("no backups found", "session", args[0])
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(rulesCmd, restoreCmd)
	rulesCmd.AddCommand(rulesListCmd, rulesTestCmd)

	rulesCmd.PersistentFlags().StringVar(&rulesFormat, "format", "", "only the rules of this statement format")
	rulesListCmd.Flags().StringVar(&rulesSession, "session", "", "only rules learned in this session")
	rulesTestCmd.Flags().StringVar(&rulesSource, "account", "Assets:Statement", "statement account of the test transaction")
}
