// Package convert drives a statement import: rows are read through a
// format adapter, filtered against the ledger, classified and merged into
// the ledger, which is handed to a save callback after every row.
package convert

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/hako/durafmt"
	"golang.org/x/time/rate"

	"github.com/plenert/ledger"
	"github.com/plenert/ledger/ledger/dedup"
	"github.com/plenert/ledger/ledger/rules"
	"github.com/plenert/ledger/ledger/statement"
)

// SaveFunc persists the ledger. It is called with the complete ledger.
type SaveFunc func(entries []ledger.Entry) error

// Progress receives the number of rows and one step per processed row.
type Progress interface {
	SetMax(n int)
	Step()
}

// Classifier resolves the unknown postings of a candidate. It returns the
// classified copy and entries that must accompany it.
type Classifier interface {
	Classify(t *ledger.Transaction, entries []ledger.Entry) (*ledger.Transaction, []ledger.Entry, error)
}

// DuplicateFilter reports whether an entry is not yet part of the ledger.
type DuplicateFilter interface {
	IsNoDuplicate(entry ledger.Entry) bool
}

// Ingester merges an entry into the ledger and returns the new ledger.
type Ingester interface {
	Ingest(entry ledger.Entry, entries []ledger.Entry) []ledger.Entry
}

// ingestCounter is implemented by ingesters that count their work, like
// dedup.Ingester.
type ingestCounter interface {
	Initial() int
	Added() int
}

// Config controls a Converter.
type Config struct {
	// RulesPath is the rule file of the adapter, see statement.RulesPath.
	RulesPath string
	// Session tags learned rules and rule backups. Empty means a new UUID.
	Session  string
	Progress Progress
	// BalanceAtInterval asks the adapter for a balance assertion at every
	// row index divisible by it. Zero disables it.
	BalanceAtInterval int
	Logger            *log.Logger

	Learn           bool
	AutoAccept      bool
	DeclareAccounts bool

	// Classifier, Filter and Ingester replace the defaults built from the
	// ledger.
	Classifier Classifier
	Filter     DuplicateFilter
	Ingester   Ingester
}

// DefaultConfig learns user decisions and declares new accounts.
func DefaultConfig(rulesPath string) Config {
	return Config{
		RulesPath:       rulesPath,
		Learn:           true,
		DeclareAccounts: true,
	}
}

// Stats counts what happened during a run.
type Stats struct {
	Rows       int
	Skipped    int
	Duplicates int
	Added      int
	Balances   int
	Saves      int
	Elapsed    time.Duration
}

// Converter imports one statement into a ledger.
type Converter struct {
	adapter    statement.Adapter
	entries    []ledger.Entry
	save       SaveFunc
	classifier Classifier
	filter     DuplicateFilter
	ingester   Ingester
	progress   Progress
	interval   int
	session    string

	logger    *log.Logger
	sometimes rate.Sometimes
	stats     Stats
}

type noProgress struct{}

func (noProgress) SetMax(int) {}
func (noProgress) Step()      {}

// New prepares a run over entries. userInput is used by the default
// classifier when no rule matches; it may be nil for unattended runs.
func New(adapter statement.Adapter, userInput rules.UserInputFunc, entries []ledger.Entry, save SaveFunc, cfg Config) (*Converter, error) {
	if adapter == nil {
		return nil, fmt.Errorf("%w: no adapter", statement.ErrContractViolation)
	}
	if save == nil {
		return nil, errors.New("convert: no save function")
	}
	if cfg.BalanceAtInterval < 0 {
		return nil, fmt.Errorf("convert: negative balance interval %d", cfg.BalanceAtInterval)
	}

	c := &Converter{
		adapter:    adapter,
		entries:    slices.Clip(entries),
		save:       save,
		classifier: cfg.Classifier,
		filter:     cfg.Filter,
		ingester:   cfg.Ingester,
		progress:   cfg.Progress,
		interval:   cfg.BalanceAtInterval,
		session:    cfg.Session,
		logger:     cfg.Logger,
		sometimes:  rate.Sometimes{First: 1, Interval: time.Second},
	}
	if c.logger == nil {
		c.logger = log.Default()
	}
	c.logger = c.logger.With("component", "convert")
	if c.session == "" {
		c.session = uuid.NewString()
	}
	if c.progress == nil {
		c.progress = noProgress{}
	}

	if c.classifier == nil {
		if cfg.RulesPath == "" {
			return nil, errors.New("convert: no rules path")
		}
		ref, err := rules.NewReferencer(cfg.RulesPath, userInput, entries, c.session,
			rules.WithLogger(c.logger),
			rules.WithLearning(cfg.Learn),
			rules.WithAutoAccept(cfg.AutoAccept),
			rules.WithDeclarations(cfg.DeclareAccounts),
		)
		if err != nil {
			return nil, err
		}
		c.classifier = ref
	}
	if c.filter == nil {
		c.filter = dedup.NewFilter(entries)
	}
	if c.ingester == nil {
		c.ingester = dedup.NewIngester(entries)
	}

	c.logger.Info("starting import", "entries", len(entries), "session", c.session)
	return c, nil
}

// Session returns the session identifier of the run.
func (c *Converter) Session() string { return c.session }

// Stats returns the counters of the last run.
func (c *Converter) Stats() Stats { return c.stats }

// Run reads the statement from r and returns the resulting ledger. Rows are
// processed oldest first; the ledger is saved after each of them.
func (c *Converter) Run(r io.Reader) ([]ledger.Entry, error) {
	start := time.Now()
	c.stats = Stats{}

	table, err := c.adapter.ReadData(r)
	if err != nil {
		return nil, fmt.Errorf("read statement: %w", err)
	}
	if err := table.Validate(); err != nil {
		return nil, err
	}

	entries := c.entries
	c.stats.Rows = table.Len()
	c.progress.SetMax(table.Len())

	if in, ok := c.adapter.(statement.InBalancer); ok {
		entries = c.appendBalance(entries, in.InBalance())
	}
	stepper, _ := c.adapter.(statement.StepBalancer)

	for index := table.Len() - 1; index >= 0; index-- {
		if c.interval > 0 && index%c.interval == 0 && stepper != nil {
			entries = c.appendBalance(entries, stepper.BalanceAtStep(index))
		}

		candidate, err := c.adapter.StepData(index, table.Row(index))
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", index, err)
		}
		switch {
		case candidate == nil:
			c.stats.Skipped++
		case !c.filter.IsNoDuplicate(candidate):
			c.stats.Duplicates++
			c.logger.Debug("duplicate", "row", index, "date", candidate.Date.Format("2006/01/02"), "payee", candidate.Payee)
		default:
			classified, aux, err := c.classifier.Classify(candidate, entries)
			if err != nil {
				return nil, fmt.Errorf("row %d: %w", index, err)
			}
			entries = c.ingester.Ingest(classified, entries)
			entries = append(entries, aux...)
			c.stats.Added += 1 + len(aux)
		}

		if err := c.persist(entries); err != nil {
			return nil, fmt.Errorf("row %d: %w", index, err)
		}
		c.progress.Step()
		c.sometimes.Do(func() {
			c.logger.Debug("entries in ledger", "entries", len(entries), "row", index)
		})
	}

	if out, ok := c.adapter.(statement.OutBalancer); ok {
		before := len(entries)
		entries = c.appendBalance(entries, out.OutBalance())
		if len(entries) > before {
			if err := c.persist(entries); err != nil {
				return nil, err
			}
		}
	}

	c.stats.Elapsed = time.Since(start)
	summary := []any{
		"rows", c.stats.Rows,
		"added", c.stats.Added,
		"duplicates", c.stats.Duplicates,
		"balances", c.stats.Balances,
	}
	if ic, ok := c.ingester.(ingestCounter); ok {
		summary = append(summary, "ledger", ic.Initial(), "ingested", ic.Added())
	}
	summary = append(summary, "took", durafmt.Parse(c.stats.Elapsed.Round(time.Millisecond)).LimitFirstN(2).String())
	c.logger.Info("import finished", summary...)
	return entries, nil
}

func (c *Converter) appendBalance(entries []ledger.Entry, b *ledger.BalanceAssertion) []ledger.Entry {
	if b == nil {
		return entries
	}
	if !c.filter.IsNoDuplicate(b) {
		c.stats.Duplicates++
		return entries
	}
	c.stats.Balances++
	return append(entries, b)
}

func (c *Converter) persist(entries []ledger.Entry) error {
	if err := c.save(entries); err != nil {
		return fmt.Errorf("save ledger: %w", err)
	}
	c.stats.Saves++
	return nil
}
