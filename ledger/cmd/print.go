package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/araddon/dateparse"
	"github.com/charmbracelet/lipgloss"
	"github.com/juztin/numeronym"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/plenert/ledger"
	"github.com/plenert/ledger/ledger/prompt"
)

const transactionDateFormat = "2006/01/02"

var startString, endString string
var columnWidth, transactionDepth int
var showEmptyAccounts bool
var columnWide bool
var payeeFilter string

func outputColumns() int {
	if columnWidth == ledger.DefaultColumns && columnWide {
		columnWidth = 132
		fd := int(os.Stdout.Fd())
		if term.IsTerminal(fd) {
			if tw, _, err := term.GetSize(fd); err == nil {
				columnWidth = tw
			}
		}
	}
	return columnWidth
}

func dateRange() (time.Time, time.Time, error) {
	start, startErr := dateparse.ParseAny(startString)
	end, endErr := dateparse.ParseAny(endString)
	if startErr != nil || endErr != nil {
		return start, end, errors.New("unable to parse start or end date string argument")
	}
	// include end dates' transactions too
	return start, end.Add(time.Second), nil
}

// cliEntries loads the ledger and keeps the entries in the date range of
// the command line. Transactions must also match the payee filter.
func cliEntries() ([]ledger.Entry, error) {
	start, end, err := dateRange()
	if err != nil {
		return nil, err
	}

	path, err := ledgerPath()
	if err != nil {
		return nil, err
	}
	var entries []ledger.Entry
	if path == "-" {
		entries, err = ledger.ParseLedger(os.Stdin)
	} else {
		entries, err = ledger.ParseLedgerFile(path)
	}
	if err != nil {
		return nil, err
	}

	return filterEntries(entries, start, end, payeeFilter), nil
}

func filterEntries(entries []ledger.Entry, start, end time.Time, payee string) []ledger.Entry {
	start = start.Add(-time.Second)
	var out []ledger.Entry
	for _, e := range entries {
		d := e.EntryDate()
		if !d.IsZero() && (!d.After(start) || !d.Before(end)) {
			continue
		}
		if t, ok := e.(*ledger.Transaction); ok && !strings.Contains(t.Payee, payee) {
			continue
		}
		out = append(out, e)
	}
	return out
}

func inFilter(name string, filterArr []string) bool {
	if len(filterArr) == 0 {
		return true
	}
	for _, filter := range filterArr {
		if strings.Contains(name, filter) {
			return true
		}
	}
	return false
}

// PrintLedger writes the entries touching a filtered account in ledger
// file format.
func PrintLedger(w io.Writer, entries []ledger.Entry, filterArr []string, columns int) error {
	buf := bufio.NewWriter(w)
	for _, e := range entries {
		show := false
		switch v := e.(type) {
		case *ledger.Transaction:
			for _, accChange := range v.AccountChanges {
				show = show || inFilter(accChange.Name, filterArr)
			}
		case *ledger.AccountDeclaration:
			show = inFilter(v.Name, filterArr)
		case *ledger.BalanceAssertion:
			show = inFilter(v.Account, filterArr)
		}
		if show {
			ledger.WriteEntry(buf, e, columns)
		}
	}
	return buf.Flush()
}

// PrintBalances prints out account balances formatted to a window set to a width of columns.
// Only shows accounts with names less than or equal to the given depth.
func PrintBalances(w io.Writer, accountList []*ledger.Account, printZeroBalances bool, depth, columns int) error {
	// 14 columns for the balance, the rest for the account name
	if columns < 16 {
		columns = 16
	}
	accWidth := columns - 15

	palette := prompt.NewPalette(lipgloss.NewRenderer(w))
	buf := bufio.NewWriter(w)

	overall := make(map[string]decimal.Decimal)
	var currencies []string
	for _, account := range accountList {
		accDepth := strings.Count(account.Name, ":") + 1
		if accDepth == 1 {
			if _, ok := overall[account.Currency]; !ok {
				currencies = append(currencies, account.Currency)
			}
			overall[account.Currency] = overall[account.Currency].Add(account.Balance)
		}
		if (printZeroBalances || account.Balance.Sign() != 0) && (depth < 0 || accDepth <= depth) {
			name := fitString(account.Name, accWidth)
			buf.WriteString(palette.Account(name))
			buf.WriteString(strings.Repeat(" ", accWidth-lipgloss.Width(name)+1))
			amount := fmt.Sprintf("%14s", ledger.FormatAmount(account.Balance, account.Currency))
			buf.WriteString(palette.Amount(amount, account.Balance.Sign() < 0))
			buf.WriteString("\n")
		}
	}

	buf.WriteString(palette.Faint(strings.Repeat("-", columns)))
	buf.WriteString("\n")
	for _, cur := range currencies {
		amount := fmt.Sprintf("%*s", columns, ledger.FormatAmount(overall[cur], cur))
		buf.WriteString(palette.Amount(palette.Bold(amount), overall[cur].Sign() < 0))
		buf.WriteString("\n")
	}
	return buf.Flush()
}

// fitString shortens the account name s to at most width runes. Inner
// segments become numeronyms one at a time, so "Expenses:Transportation:Fuel"
// reads "Expenses:T12n:Fuel". A name still too long is cut and marked with "..".
func fitString(s string, width int) string {
	if utf8.RuneCountInString(s) <= width {
		return s
	}
	segments := strings.Split(s, ":")
	for i := 1; i < len(segments)-1; i++ {
		segments[i] = string(numeronym.Parse([]byte(segments[i])))
		if short := strings.Join(segments, ":"); utf8.RuneCountInString(short) <= width {
			return short
		}
	}

	r := []rune(strings.Join(segments, ":"))
	if width <= 2 {
		return string(r[:width])
	}
	return string(r[:width-2]) + ".."
}

// printCmd represents the print command
var printCmd = &cobra.Command{
	Use:   "print [account-substring-filter]...",
	Short: "Print transactions in ledger file format",
	RunE: func(_ *cobra.Command, args []string) error {
		entries, err := cliEntries()
		if err != nil {
			return err
		}
		return PrintLedger(os.Stdout, entries, args, outputColumns())
	},
}

// balanceCmd represents the balance command
var balanceCmd = &cobra.Command{
	Use:     "balance [account-substring-filter]...",
	Aliases: []string{"bal"},
	Short:   "Print account balances",
	RunE: func(_ *cobra.Command, args []string) error {
		entries, err := cliEntries()
		if err != nil {
			return err
		}
		balances := ledger.GetBalances(ledger.Transactions(entries), args)
		return PrintBalances(os.Stdout, balances, showEmptyAccounts, transactionDepth, outputColumns())
	},
}

func init() {
	rootCmd.AddCommand(printCmd, balanceCmd)

	startDate := time.Date(1970, 1, 1, 0, 0, 0, 0, time.Local)
	endDate := time.Date(9999, 12, 31, 0, 0, 0, 0, time.Local)
	for _, c := range []*cobra.Command{printCmd, balanceCmd} {
		c.Flags().StringVarP(&startString, "begin-date", "b", startDate.Format(transactionDateFormat), "Begin date of transaction processing.")
		c.Flags().StringVarP(&endString, "end-date", "e", endDate.Format(transactionDateFormat), "End date of transaction processing.")
		c.Flags().StringVar(&payeeFilter, "payee", "", "Filter output to payees that contain this string.")
		c.Flags().IntVar(&columnWidth, "columns", ledger.DefaultColumns, "Set a column width for output.")
		c.Flags().BoolVar(&columnWide, "wide", false, "Wide output (use terminal width).")
	}
	balanceCmd.Flags().IntVar(&transactionDepth, "depth", -1, "Depth of accounts to show, -1 for all.")
	balanceCmd.Flags().BoolVar(&showEmptyAccounts, "empty", false, "Show accounts with a zero balance.")
}
