package rules

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plenert/ledger"
)

func candidate(payee string, amount float64) *ledger.Transaction {
	return &ledger.Transaction{
		Date:  time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		Payee: payee,
		AccountChanges: []ledger.Account{
			{Name: "Assets:Checking", Balance: decimal.NewFromFloat(amount)},
			{Name: ledger.UnknownAccount, Balance: decimal.NewFromFloat(-amount)},
		},
	}
}

func writeRules(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "BankCSV.rules")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func noInput(t *testing.T) UserInputFunc {
	return func(*ledger.Transaction, []string) (*ledger.Transaction, error) {
		t.Fatal("user input must not be requested")
		return nil, nil
	}
}

var declared = []ledger.Entry{
	&ledger.AccountDeclaration{Name: "Assets:Checking"},
	&ledger.AccountDeclaration{Name: "Expenses:Groceries"},
	&ledger.AccountDeclaration{Name: "Expenses:Misc"},
}

func TestRuleMatchFirstWins(t *testing.T) {
	path := writeRules(t, `
[[rule]]
  name = "big groceries"
  payee = "(?i)rewe"
  max = "-100"
  account = "Expenses:Misc"

[[rule]]
  payee = "(?i)rewe|edeka"
  account = "Expenses:Groceries"
`)
	r, err := NewReferencer(path, noInput(t), declared, "s1")
	require.NoError(t, err)
	require.Len(t, r.Rules(), 2)

	got, aux, err := r.Classify(candidate("REWE Markt", -20), declared)
	require.NoError(t, err)
	assert.Empty(t, aux)
	assert.Equal(t, "Expenses:Groceries", got.AccountChanges[1].Name)

	got, _, err = r.Classify(candidate("REWE Markt", -150), declared)
	require.NoError(t, err)
	assert.Equal(t, "Expenses:Misc", got.AccountChanges[1].Name)

	rule, ok := r.Match(candidate("Edeka", -1))
	assert.True(t, ok)
	assert.Equal(t, "Expenses:Groceries", rule.Account)
}

func TestClassifyDoesNotModifyCandidate(t *testing.T) {
	path := writeRules(t, `
[[rule]]
  payee = "Bakery"
  account = "Expenses:Groceries"
`)
	r, err := NewReferencer(path, noInput(t), declared, "s1")
	require.NoError(t, err)

	c := candidate("Bakery", -3)
	_, _, err = r.Classify(c, declared)
	require.NoError(t, err)
	assert.Equal(t, ledger.UnknownAccount, c.AccountChanges[1].Name)
}

func TestInvalidRules(t *testing.T) {
	for name, content := range map[string]string{
		"no criteria": "[[rule]]\n  account = \"Expenses:Misc\"\n",
		"no account":  "[[rule]]\n  payee = \"x\"\n",
		"bad regexp":  "[[rule]]\n  payee = \"(\"\n  account = \"Expenses:Misc\"\n",
		"bad amount":  "[[rule]]\n  min = \"ten\"\n  account = \"Expenses:Misc\"\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := NewReferencer(writeRules(t, content), nil, nil, "s1")
			assert.ErrorIs(t, err, ErrInvalidRule)
		})
	}
}

func TestUserDecisionIsLearned(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules", "BankCSV.rules")
	calls := 0
	input := func(txn *ledger.Transaction, suggestions []string) (*ledger.Transaction, error) {
		calls++
		txn.AccountChanges[1].Name = "Expenses:Coffee"
		return txn, nil
	}
	now := time.Date(2024, 2, 2, 10, 0, 0, 0, time.UTC)
	r, err := NewReferencer(path, input, declared, "sess-1", WithClock(func() time.Time { return now }))
	require.NoError(t, err)

	got, aux, err := r.Classify(candidate("Coffee Corner", -2.5), declared)
	require.NoError(t, err)
	assert.Equal(t, "Expenses:Coffee", got.AccountChanges[1].Name)
	require.Len(t, aux, 1)
	decl := aux[0].(*ledger.AccountDeclaration)
	assert.Equal(t, "Expenses:Coffee", decl.Name)
	assert.Equal(t, got.Date, decl.Date)

	// learned rule answers the second time
	_, aux, err = r.Classify(candidate("coffee corner", -4), append(declared, aux...))
	require.NoError(t, err)
	assert.Empty(t, aux)
	assert.Equal(t, 1, calls)

	// and is persisted for the next run
	store, err := Load(path)
	require.NoError(t, err)
	require.Len(t, store.Rules(), 1)
	learned := store.Rules()[0]
	assert.Equal(t, "Expenses:Coffee", learned.Account)
	assert.Equal(t, "sess-1", learned.Session)
	assert.True(t, learned.Created.Equal(now))

	// nothing existed before the first save, so there is no backup
	_, err = os.Stat(BackupPath(path, "sess-1"))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestBackupBeforeFirstSaveOfSession(t *testing.T) {
	original := "[[rule]]\n  payee = \"Bakery\"\n  account = \"Expenses:Groceries\"\n"
	path := writeRules(t, original)
	input := func(txn *ledger.Transaction, _ []string) (*ledger.Transaction, error) {
		txn.AccountChanges[1].Name = "Expenses:Misc"
		return txn, nil
	}
	r, err := NewReferencer(path, input, declared, "sess-2")
	require.NoError(t, err)

	_, _, err = r.Classify(candidate("Hardware Store", -10), declared)
	require.NoError(t, err)
	_, err = os.Stat(BackupPath(path, "sess-2"))
	require.NoError(t, err)

	require.NoError(t, Restore(path, "sess-2"))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, original, string(data))
}

func TestNoLearning(t *testing.T) {
	path := filepath.Join(t.TempDir(), "BankCSV.rules")
	input := func(txn *ledger.Transaction, _ []string) (*ledger.Transaction, error) {
		txn.AccountChanges[1].Name = "Expenses:Misc"
		return txn, nil
	}
	r, err := NewReferencer(path, input, declared, "s", WithLearning(false))
	require.NoError(t, err)

	_, _, err = r.Classify(candidate("Kiosk", -1), declared)
	require.NoError(t, err)
	_, err = os.Stat(path)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestUnclassifiedAnswer(t *testing.T) {
	input := func(txn *ledger.Transaction, _ []string) (*ledger.Transaction, error) {
		return txn, nil
	}
	r, err := NewReferencer(filepath.Join(t.TempDir(), "x.rules"), input, declared, "s")
	require.NoError(t, err)

	_, _, err = r.Classify(candidate("Kiosk", -1), declared)
	assert.ErrorIs(t, err, ErrUnclassified)

	r, err = NewReferencer(filepath.Join(t.TempDir(), "x.rules"), nil, declared, "s")
	require.NoError(t, err)
	_, _, err = r.Classify(candidate("Kiosk", -1), declared)
	assert.ErrorIs(t, err, ErrUnclassified)
}

func TestUserInputErrorPropagates(t *testing.T) {
	boom := errors.New("boom")
	input := func(*ledger.Transaction, []string) (*ledger.Transaction, error) { return nil, boom }
	r, err := NewReferencer(filepath.Join(t.TempDir(), "x.rules"), input, declared, "s")
	require.NoError(t, err)

	_, _, err = r.Classify(candidate("Kiosk", -1), declared)
	assert.ErrorIs(t, err, boom)
}

func TestDeclarationsDisabled(t *testing.T) {
	path := writeRules(t, "[[rule]]\n  payee = \"Cinema\"\n  account = \"Expenses:Fun\"\n")
	r, err := NewReferencer(path, nil, nil, "s", WithDeclarations(false))
	require.NoError(t, err)

	_, aux, err := r.Classify(candidate("Cinema", -9), nil)
	require.NoError(t, err)
	assert.Empty(t, aux)
}

func TestSuggestions(t *testing.T) {
	var history []ledger.Entry
	book := func(payee, account string) {
		history = append(history, &ledger.Transaction{Payee: payee, AccountChanges: []ledger.Account{
			{Name: "Assets:Checking", Balance: decimal.NewFromInt(-1)},
			{Name: account, Balance: decimal.NewFromInt(1)},
		}})
	}
	for i := 0; i < 20; i++ {
		book("rewe markt", "Expenses:Groceries")
		book("shell station", "Expenses:Car")
	}

	var offered []string
	input := func(txn *ledger.Transaction, suggestions []string) (*ledger.Transaction, error) {
		offered = suggestions
		txn.AccountChanges[1].Name = suggestions[0]
		return txn, nil
	}
	r, err := NewReferencer(filepath.Join(t.TempDir(), "x.rules"), input, history, "s", WithLearning(false), WithDeclarations(false))
	require.NoError(t, err)

	got, _, err := r.Classify(candidate("REWE markt", -5), history)
	require.NoError(t, err)
	require.NotEmpty(t, offered)
	assert.Equal(t, "Expenses:Groceries", offered[0])
	assert.NotContains(t, offered, "Assets:Checking")
	assert.Equal(t, "Expenses:Groceries", got.AccountChanges[1].Name)

	s := NewSuggester(history)
	account, ok := s.Predict("shell station", "Assets:Checking")
	assert.True(t, ok)
	assert.Equal(t, "Expenses:Car", account)

	auto, err := NewReferencer(filepath.Join(t.TempDir(), "y.rules"), noInput(t), history, "s", WithAutoAccept(true), WithDeclarations(false))
	require.NoError(t, err)
	got, _, err = auto.Classify(candidate("shell station", -40), history)
	require.NoError(t, err)
	assert.Equal(t, "Expenses:Car", got.AccountChanges[1].Name)
}

func TestSuggesterWithoutHistory(t *testing.T) {
	s := NewSuggester(nil)
	assert.Empty(t, s.Suggest("anything", 3))
	_, ok := s.Predict("anything")
	assert.False(t, ok)

	s.Learn("bakery", "Expenses:Food")
	assert.Empty(t, s.Suggest("bakery", 3), "one class is not enough to rank")
	s.Learn("cinema", "Expenses:Fun")
	assert.NotEmpty(t, s.Suggest("bakery", 3))
}
