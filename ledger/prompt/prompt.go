// Package prompt asks the user for the account of a transaction and shows
// import progress.
package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/plenert/ledger"
)

// ErrAborted is returned when the input ends before an answer was given.
var ErrAborted = errors.New("prompt: aborted by user")

// Prompter classifies transactions interactively.
type Prompter struct {
	in       *bufio.Scanner
	out      io.Writer
	accounts []string
	palette  *Palette
	columns  int

	// BeforePrompt runs before a transaction is shown, e.g. to clear a
	// progress bar.
	BeforePrompt func()
}

// New returns a prompter reading answers from in. accounts are the names
// known to the ledger; answers may abbreviate them.
func New(in io.Reader, out io.Writer, accounts []string) *Prompter {
	known := slices.Clone(accounts)
	slices.Sort(known)
	return &Prompter{
		in:       bufio.NewScanner(in),
		out:      out,
		accounts: slices.Compact(known),
		palette:  NewPalette(lipgloss.NewRenderer(out)),
		columns:  ledger.DefaultColumns,
	}
}

// SetColumns sets the width the transaction is rendered with.
func (p *Prompter) SetColumns(columns int) { p.columns = columns }

// Classify shows t and the ranked suggestions and replaces the unknown
// postings with the chosen account. It satisfies rules.UserInputFunc.
func (p *Prompter) Classify(t *ledger.Transaction, suggestions []string) (*ledger.Transaction, error) {
	if p.BeforePrompt != nil {
		p.BeforePrompt()
	}
	p.show(t, suggestions)

	for {
		fmt.Fprint(p.out, p.palette.Bold("account> "))
		if !p.in.Scan() {
			if err := p.in.Err(); err != nil {
				return nil, err
			}
			fmt.Fprintln(p.out)
			return nil, ErrAborted
		}

		account, err := p.resolve(strings.TrimSpace(p.in.Text()), suggestions)
		if err != nil {
			fmt.Fprintln(p.out, p.palette.Faint(err.Error()))
			continue
		}

		result := t.Clone()
		for i := range result.AccountChanges {
			if result.AccountChanges[i].Name == ledger.UnknownAccount {
				result.AccountChanges[i].Name = account
			}
		}
		if _, found := slices.BinarySearch(p.accounts, account); !found {
			p.accounts = append(p.accounts, account)
			slices.Sort(p.accounts)
		}
		return result, nil
	}
}

func (p *Prompter) show(t *ledger.Transaction, suggestions []string) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "\n%s %s\n", t.Date.Format("2006/01/02"), p.palette.Bold(t.Payee))
	for _, c := range t.Comments {
		sb.WriteString("    " + p.palette.Faint(c) + "\n")
	}
	for _, a := range t.AccountChanges {
		amount := ledger.FormatAmount(a.Balance, a.Currency)
		name := a.Name
		if name != ledger.UnknownAccount {
			name = p.palette.Account(name)
		}
		pad := max(p.columns-4-len(a.Name)-len(amount), 2)
		fmt.Fprintf(&sb, "    %s%s%s\n", name, strings.Repeat(" ", pad), p.palette.Amount(amount, a.Balance.IsNegative()))
	}
	for i, s := range suggestions {
		fmt.Fprintf(&sb, "  %s %s\n", p.palette.Faint(strconv.Itoa(i+1)+")"), p.palette.Account(s))
	}
	io.WriteString(p.out, sb.String())
}

// resolve turns an answer into an account name. An answer is a suggestion
// number, a full account name, a unique prefix or substring of a known
// account, or a new account name containing a colon.
func (p *Prompter) resolve(answer string, suggestions []string) (string, error) {
	if answer == "" {
		if len(suggestions) == 0 {
			return "", errors.New("no suggestion, enter an account")
		}
		return suggestions[0], nil
	}
	if n, err := strconv.Atoi(answer); err == nil {
		if n < 1 || n > len(suggestions) {
			return "", fmt.Errorf("choose 1-%d", len(suggestions))
		}
		return suggestions[n-1], nil
	}

	candidates := slices.Clone(p.accounts)
	for _, s := range suggestions {
		if !slices.Contains(candidates, s) {
			candidates = append(candidates, s)
		}
	}
	candidates = slices.DeleteFunc(candidates, func(a string) bool { return a == ledger.UnknownAccount })

	lower := strings.ToLower(answer)
	for _, match := range []func(string) bool{
		func(a string) bool { return strings.ToLower(a) == lower },
		func(a string) bool { return strings.HasPrefix(strings.ToLower(a), lower) },
		func(a string) bool { return strings.Contains(strings.ToLower(a), lower) },
	} {
		var found []string
		for _, a := range candidates {
			if match(a) {
				found = append(found, a)
			}
		}
		switch {
		case len(found) == 1:
			return found[0], nil
		case len(found) > 1:
			if strings.Contains(answer, ":") {
				break
			}
			return "", fmt.Errorf("ambiguous: %s", strings.Join(found, ", "))
		}
	}

	if strings.Contains(answer, ":") {
		if err := checkAccountName(answer); err != nil {
			return "", err
		}
		return answer, nil
	}
	return "", fmt.Errorf("unknown account %q, new accounts need a colon", answer)
}

// checkAccountName rejects names a posting line would not read back: ";"
// starts a comment and a tab or two spaces end the name.
func checkAccountName(name string) error {
	switch {
	case strings.Contains(name, ";"):
		return fmt.Errorf("account %q: no \";\" allowed", name)
	case strings.Contains(name, "\t"), strings.Contains(name, "  "):
		return fmt.Errorf("account %q: no tabs or double spaces allowed", name)
	}
	return nil
}
