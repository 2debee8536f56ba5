package rules

import (
	"math"
	"slices"
	"strings"
	"time"

	"github.com/jbrukh/bayesian"
	"github.com/patrickmn/go-cache"

	"github.com/plenert/ledger"
)

// confidenceMargin is the log score distance between the best and second
// best class above which a prediction is trusted.
const confidenceMargin = 10

type sample struct {
	words []string
	class bayesian.Class
}

// Suggester ranks accounts for a payee with a naive bayes classifier
// trained on the payees of booked transactions.
type Suggester struct {
	classifier *bayesian.Classifier
	classes    map[bayesian.Class]bool
	samples    []sample
	ranked     *cache.Cache
}

// NewSuggester trains on every posting of the given transactions.
func NewSuggester(entries []ledger.Entry) *Suggester {
	s := &Suggester{
		classes: make(map[bayesian.Class]bool),
		ranked:  cache.New(10*time.Minute, 20*time.Minute),
	}
	for _, t := range ledger.Transactions(entries) {
		words := payeeWords(t.Payee)
		for _, p := range t.AccountChanges {
			if p.Name == ledger.UnknownAccount {
				continue
			}
			s.samples = append(s.samples, sample{words: words, class: bayesian.Class(p.Name)})
			s.classes[bayesian.Class(p.Name)] = true
		}
	}
	s.rebuild()
	return s
}

func payeeWords(payee string) []string {
	return strings.Fields(strings.ToLower(payee))
}

func (s *Suggester) rebuild() {
	s.ranked.Flush()
	// the classifier needs at least two classes
	if len(s.classes) < 2 {
		s.classifier = nil
		return
	}
	classes := make([]bayesian.Class, 0, len(s.classes))
	for c := range s.classes {
		classes = append(classes, c)
	}
	slices.Sort(classes)

	s.classifier = bayesian.NewClassifier(classes...)
	for _, smp := range s.samples {
		s.classifier.Learn(smp.words, smp.class)
	}
}

// Learn records a classification decision.
func (s *Suggester) Learn(payee, account string) {
	c := bayesian.Class(account)
	smp := sample{words: payeeWords(payee), class: c}
	s.samples = append(s.samples, smp)
	if !s.classes[c] {
		s.classes[c] = true
		s.rebuild()
		return
	}
	if s.classifier != nil {
		s.classifier.Learn(smp.words, smp.class)
	}
	s.ranked.Flush()
}

type scored struct {
	account string
	score   float64
}

func (s *Suggester) rank(payee string) []scored {
	if s.classifier == nil {
		return nil
	}
	key := strings.Join(payeeWords(payee), " ")
	if v, ok := s.ranked.Get(key); ok {
		return v.([]scored)
	}

	scores, _, _ := s.classifier.LogScores(payeeWords(payee))
	ranked := make([]scored, len(scores))
	for i, score := range scores {
		ranked[i] = scored{account: string(s.classifier.Classes[i]), score: score}
	}
	slices.SortStableFunc(ranked, func(a, b scored) int {
		switch {
		case a.score > b.score:
			return -1
		case a.score < b.score:
			return 1
		}
		return strings.Compare(a.account, b.account)
	})
	s.ranked.Set(key, ranked, cache.DefaultExpiration)
	return ranked
}

// Suggest returns up to n accounts for payee, best first, leaving out the
// accounts in exclude.
func (s *Suggester) Suggest(payee string, n int, exclude ...string) []string {
	var out []string
	for _, r := range s.rank(payee) {
		if len(out) == n {
			break
		}
		if slices.Contains(exclude, r.account) {
			continue
		}
		out = append(out, r.account)
	}
	return out
}

// Predict returns the best account when it stands out clearly from the
// runner-up.
func (s *Suggester) Predict(payee string, exclude ...string) (string, bool) {
	best, second := math.Inf(-1), math.Inf(-1)
	var account string
	for _, r := range s.rank(payee) {
		if slices.Contains(exclude, r.account) {
			continue
		}
		switch {
		case r.score > best:
			second = best
			best = r.score
			account = r.account
		case r.score > second:
			second = r.score
		}
	}
	if account == "" || math.IsInf(second, -1) || best-second <= confidenceMargin {
		return "", false
	}
	return account, true
}
