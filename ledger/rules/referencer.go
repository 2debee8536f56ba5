// Package rules classifies candidate transactions. Rules from a per-format
// rule file are tried first, then the user is asked. Decisions taken by the
// user are learned as new rules.
package rules

import (
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/plenert/ledger"
)

// UserInputFunc asks the user to classify t. suggestions holds ranked
// account names and may be empty. The returned transaction must not contain
// ledger.UnknownAccount.
type UserInputFunc func(t *ledger.Transaction, suggestions []string) (*ledger.Transaction, error)

// MaxSuggestions is the number of accounts offered to the user.
const MaxSuggestions = 5

// Option configures a Referencer.
type Option func(*Referencer)

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(r *Referencer) { r.logger = l }
}

// WithLearning controls whether user decisions become rules.
func WithLearning(learn bool) Option {
	return func(r *Referencer) { r.learn = learn }
}

// WithAutoAccept lets confident classifier predictions skip the user.
func WithAutoAccept(auto bool) Option {
	return func(r *Referencer) { r.auto = auto }
}

// WithDeclarations controls whether account declarations are emitted for
// accounts the ledger does not declare yet.
func WithDeclarations(declare bool) Option {
	return func(r *Referencer) { r.declare = declare }
}

// WithClock replaces time.Now for learned rule timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Referencer) { r.now = now }
}

// Referencer assigns accounts to candidate transactions.
type Referencer struct {
	store     *Store
	matchers  []*matcher
	userInput UserInputFunc
	session   string
	suggester *Suggester

	learn   bool
	auto    bool
	declare bool
	emitted map[string]bool

	now    func() time.Time
	logger *log.Logger
}

// NewReferencer loads the rules at path and trains suggestions on entries.
func NewReferencer(path string, userInput UserInputFunc, entries []ledger.Entry, session string, opts ...Option) (*Referencer, error) {
	store, err := Load(path)
	if err != nil {
		return nil, err
	}

	r := &Referencer{
		store:     store,
		userInput: userInput,
		session:   session,
		learn:     true,
		declare:   true,
		emitted:   make(map[string]bool),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = log.Default()
	}
	r.logger = r.logger.With("component", "rules")

	for _, rule := range store.Rules() {
		m, err := rule.compile()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		r.matchers = append(r.matchers, m)
	}
	r.suggester = NewSuggester(entries)

	r.logger.Debug("rules loaded", "path", path, "rules", len(r.matchers), "session", session)
	return r, nil
}

// Rules returns the loaded and learned rules in match order.
func (r *Referencer) Rules() []Rule { return r.store.Rules() }

// Match returns the first rule matching t.
func (r *Referencer) Match(t *ledger.Transaction) (Rule, bool) {
	for _, m := range r.matchers {
		if m.match(t) {
			return m.rule, true
		}
	}
	return Rule{}, false
}

// Classify resolves the unknown postings of t and returns the classified
// copy together with declarations for accounts new to entries. t itself is
// not modified.
func (r *Referencer) Classify(t *ledger.Transaction, entries []ledger.Entry) (*ledger.Transaction, []ledger.Entry, error) {
	result := t.Clone()

	if result.HasUnknown() {
		classified, err := r.resolve(result)
		if err != nil {
			return nil, nil, err
		}
		result = classified
	}

	if err := result.IsBalanced(); err != nil {
		return nil, nil, fmt.Errorf("%s %q: %w", result.Date.Format("2006/01/02"), result.Payee, err)
	}

	return result, r.declarations(result, entries), nil
}

func (r *Referencer) resolve(t *ledger.Transaction) (*ledger.Transaction, error) {
	source := t.AccountChanges[0].Name

	for _, m := range r.matchers {
		if m.match(t) {
			m.apply(t)
			r.logger.Debug("rule matched", "payee", t.Payee, "rule", m.rule.String(), "account", m.rule.Account)
			return t, nil
		}
	}

	if r.auto {
		if account, ok := r.suggester.Predict(t.Payee, source); ok {
			setUnknown(t, account)
			r.logger.Info("predicted account", "payee", t.Payee, "account", account)
			return t, nil
		}
	}

	if r.userInput == nil {
		return nil, fmt.Errorf("%w: %q has no matching rule", ErrUnclassified, t.Payee)
	}

	suggestions := r.suggester.Suggest(t.Payee, MaxSuggestions, source)
	answer, err := r.userInput(t.Clone(), suggestions)
	if err != nil {
		return nil, err
	}
	if answer == nil || answer.HasUnknown() || len(answer.AccountChanges) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrUnclassified, t.Payee)
	}

	account := chosenAccount(t, answer)
	if account != "" {
		r.suggester.Learn(answer.Payee, account)
		if r.learn {
			if err := r.addRule(learnedRule(answer, account, r.session, r.now())); err != nil {
				return nil, err
			}
		}
	}
	return answer, nil
}

func (r *Referencer) addRule(rule Rule) error {
	m, err := rule.compile()
	if err != nil {
		return err
	}
	r.store.Add(rule)
	r.matchers = append(r.matchers, m)
	if err := r.store.Save(r.session); err != nil {
		return fmt.Errorf("save rules: %w", err)
	}
	r.logger.Info("learned rule", "payee", rule.Name, "account", rule.Account)
	return nil
}

// chosenAccount returns the account the user put where the candidate had
// an unknown posting.
func chosenAccount(candidate, answer *ledger.Transaction) string {
	if len(candidate.AccountChanges) == len(answer.AccountChanges) {
		for i, p := range candidate.AccountChanges {
			if p.Name == ledger.UnknownAccount {
				return answer.AccountChanges[i].Name
			}
		}
	}
	source := candidate.AccountChanges[0].Name
	for _, p := range answer.AccountChanges {
		if p.Name != source {
			return p.Name
		}
	}
	return ""
}

func setUnknown(t *ledger.Transaction, account string) {
	for i := range t.AccountChanges {
		if t.AccountChanges[i].Name == ledger.UnknownAccount {
			t.AccountChanges[i].Name = account
		}
	}
}

func (r *Referencer) declarations(t *ledger.Transaction, entries []ledger.Entry) []ledger.Entry {
	if !r.declare {
		return nil
	}
	declared := ledger.DeclaredAccounts(entries)

	var aux []ledger.Entry
	for _, p := range t.AccountChanges {
		if declared[p.Name] || r.emitted[p.Name] {
			continue
		}
		r.emitted[p.Name] = true
		aux = append(aux, &ledger.AccountDeclaration{Name: p.Name, Date: t.Date})
		r.logger.Debug("declaring account", "account", p.Name)
	}
	return aux
}
