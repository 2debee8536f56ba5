package rules

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"

	"github.com/plenert/ledger"
)

var (
	// ErrInvalidRule is returned for rules that cannot match anything or
	// have no target account.
	ErrInvalidRule = errors.New("invalid rule")
	// ErrUnclassified is returned when a transaction still has an unknown
	// posting after classification.
	ErrUnclassified = errors.New("transaction left unclassified")
)

// Rule maps matching transactions to an account. All criteria that are set
// must match. Amount bounds are inclusive and apply to the statement side
// posting.
type Rule struct {
	Name    string    `toml:"name,omitempty"`
	Payee   string    `toml:"payee,omitempty"`
	Note    string    `toml:"note,omitempty"`
	Source  string    `toml:"source,omitempty"`
	Min     string    `toml:"min,omitempty"`
	Max     string    `toml:"max,omitempty"`
	Account string    `toml:"account"`
	Session string    `toml:"session,omitempty"`
	Created time.Time `toml:"created,omitempty"`
}

// compiled regular expressions are shared between all rule sets of a process
var patterns = cache.New(cache.NoExpiration, 0)

func compilePattern(expr string) (*regexp.Regexp, error) {
	if re, ok := patterns.Get(expr); ok {
		return re.(*regexp.Regexp), nil
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, err
	}
	patterns.Set(expr, re, cache.NoExpiration)
	return re, nil
}

type matcher struct {
	rule   Rule
	payee  *regexp.Regexp
	note   *regexp.Regexp
	source *regexp.Regexp
	min    *decimal.Decimal
	max    *decimal.Decimal
}

func (r Rule) String() string {
	if r.Name != "" {
		return r.Name
	}
	return fmt.Sprintf("payee=%q -> %s", r.Payee, r.Account)
}

func (r Rule) compile() (*matcher, error) {
	if strings.TrimSpace(r.Account) == "" {
		return nil, fmt.Errorf("%w: %s: no account", ErrInvalidRule, r)
	}
	if r.Payee == "" && r.Note == "" && r.Source == "" && r.Min == "" && r.Max == "" {
		return nil, fmt.Errorf("%w: %s: no criteria", ErrInvalidRule, r)
	}

	m := &matcher{rule: r}
	var err error
	for _, p := range []struct {
		expr string
		dst  **regexp.Regexp
	}{{r.Payee, &m.payee}, {r.Note, &m.note}, {r.Source, &m.source}} {
		if p.expr == "" {
			continue
		}
		if *p.dst, err = compilePattern(p.expr); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrInvalidRule, r, err)
		}
	}
	for _, b := range []struct {
		s   string
		dst **decimal.Decimal
	}{{r.Min, &m.min}, {r.Max, &m.max}} {
		if b.s == "" {
			continue
		}
		d, err := decimal.NewFromString(b.s)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrInvalidRule, r, err)
		}
		*b.dst = &d
	}
	return m, nil
}

func (m *matcher) match(t *ledger.Transaction) bool {
	if len(t.AccountChanges) == 0 {
		return false
	}
	source := t.AccountChanges[0]

	if m.payee != nil && !m.payee.MatchString(t.Payee) {
		return false
	}
	if m.note != nil && !m.note.MatchString(strings.Join(t.Comments, " ")) {
		return false
	}
	if m.source != nil && !m.source.MatchString(source.Name) {
		return false
	}
	if m.min != nil && source.Balance.LessThan(*m.min) {
		return false
	}
	if m.max != nil && source.Balance.GreaterThan(*m.max) {
		return false
	}
	return true
}

// apply sets every unknown posting to the rule's account.
func (m *matcher) apply(t *ledger.Transaction) {
	for i := range t.AccountChanges {
		if t.AccountChanges[i].Name == ledger.UnknownAccount {
			t.AccountChanges[i].Name = m.rule.Account
		}
	}
}

// learnedRule returns a rule matching exactly the payee of t.
func learnedRule(t *ledger.Transaction, account, session string, now time.Time) Rule {
	return Rule{
		Name:    strings.TrimSpace(t.Payee),
		Payee:   "(?i)^" + regexp.QuoteMeta(strings.TrimSpace(t.Payee)) + "$",
		Account: account,
		Session: session,
		Created: now.UTC().Truncate(time.Second),
	}
}
