package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/plenert/ledger"
	"github.com/plenert/ledger/ledger/bankcsv"
	"github.com/plenert/ledger/ledger/convert"
	"github.com/plenert/ledger/ledger/iif"
	"github.com/plenert/ledger/ledger/ofx"
	"github.com/plenert/ledger/ledger/plan"
	"github.com/plenert/ledger/ledger/prompt"
	"github.com/plenert/ledger/ledger/qif"
	"github.com/plenert/ledger/ledger/statement"
	"github.com/plenert/ledger/ledger/store"
	"github.com/plenert/ledger/ledger/xls"
)

// ErrUnknownFormat is returned for statements no adapter reads.
var ErrUnknownFormat = errors.New("unknown statement format")

// runFlags apply to every statement of an import.
type runFlags struct {
	session string
	noLearn bool
	auto    bool
	noDecl  bool
	dryRun  bool
}

var (
	importStatement plan.Statement
	importRun       runFlags
)

// importer runs statements against one ledger file. Entries carry over
// from one statement to the next.
type importer struct {
	file     *store.File
	entries  []ledger.Entry
	rulesDir string
	flags    runFlags

	prompter *prompt.Prompter
	progress io.Writer
	logger   *log.Logger
}

func newImporter(ledgerFile, rulesDir string, flags runFlags, in io.Reader, out, progress io.Writer) (*importer, error) {
	if flags.session == "" {
		flags.session = uuid.NewString()
	}
	file := store.NewFile(ledgerFile, flags.session)
	entries, err := file.Load()
	if err != nil {
		return nil, err
	}
	return &importer{
		file:     file,
		entries:  entries,
		rulesDir: rulesDir,
		flags:    flags,
		prompter: prompt.New(in, out, ledger.AccountNames(entries)),
		progress: progress,
		logger:   logger,
	}, nil
}

func (imp *importer) save(entries []ledger.Entry) error {
	if imp.flags.dryRun {
		return nil
	}
	return imp.file.Save(entries)
}

// run imports one statement file.
func (imp *importer) run(st plan.Statement) (convert.Stats, error) {
	st.Account = matchAccount(imp.entries, st.Account)
	adapter, name, err := newAdapter(st)
	if err != nil {
		return convert.Stats{}, err
	}

	f, err := os.Open(st.File)
	if err != nil {
		return convert.Stats{}, err
	}
	defer f.Close()

	bar := prompt.NewBar(imp.progress, filepath.Base(st.File))
	imp.prompter.BeforePrompt = func() {
		if err := bar.Clear(); err != nil {
			imp.logger.Debug("progress bar", "err", err)
		}
	}

	cfg := convert.DefaultConfig(statement.RulesPath(imp.rulesDir, name))
	cfg.Session = imp.flags.session
	cfg.Progress = bar
	cfg.BalanceAtInterval = st.BalanceInterval
	cfg.Logger = imp.logger.With("statement", filepath.Base(st.File))
	cfg.Learn = !imp.flags.noLearn && !imp.flags.dryRun
	cfg.AutoAccept = imp.flags.auto
	cfg.DeclareAccounts = !imp.flags.noDecl

	conv, err := convert.New(adapter, imp.prompter.Classify, imp.entries, imp.save, cfg)
	if err != nil {
		return convert.Stats{}, err
	}
	entries, err := conv.Run(f)
	if ferr := bar.Finish(); ferr != nil {
		imp.logger.Debug("progress bar", "err", ferr)
	}
	if err != nil {
		return conv.Stats(), fmt.Errorf("%s: %w", st.File, err)
	}
	imp.entries = entries
	return conv.Stats(), nil
}

// newAdapter picks the adapter for the statement format, taken from the
// file extension when not set. It returns the adapter name as well, which
// selects the rule file.
func newAdapter(st plan.Statement) (statement.Adapter, string, error) {
	format := strings.ToLower(st.Format)
	if format == "" {
		format = strings.TrimPrefix(strings.ToLower(filepath.Ext(st.File)), ".")
	}

	switch format {
	case "csv", "txt", "tsv":
		cfg, err := csvConfig(st)
		if err != nil {
			return nil, "", err
		}
		if format == "tsv" && st.Delimiter == "" {
			cfg.Delimiter = '\t'
		}
		return bankcsv.New(cfg), bankcsv.Name, nil
	case "xls":
		cfg, err := csvConfig(st)
		if err != nil {
			return nil, "", err
		}
		return xls.New(cfg), xls.Name, nil
	case "ofx", "qfx":
		return ofx.New(ofx.Config{Account: st.Account, Currency: st.Currency, Negate: st.Negate}), ofx.Name, nil
	case "qif":
		return qif.New(qif.Config{
			Account:    st.Account,
			Currency:   st.Currency,
			DateFormat: st.DateFormat,
			Negate:     st.Negate,
		}), qif.Name, nil
	case "iif":
		return iif.New(iif.Config{Account: st.Account, Currency: st.Currency, Negate: st.Negate}), iif.Name, nil
	}
	return nil, "", fmt.Errorf("%w %q", ErrUnknownFormat, format)
}

func csvConfig(st plan.Statement) (bankcsv.Config, error) {
	cfg := bankcsv.Config{
		Account:      st.Account,
		Currency:     st.Currency,
		DateFormat:   st.DateFormat,
		Negate:       st.Negate,
		DecimalComma: st.DecimalComma,
		Columns:      st.Columns,
	}
	if st.Delimiter != "" {
		if st.Delimiter == `\t` {
			cfg.Delimiter = '\t'
		} else {
			cfg.Delimiter, _ = utf8.DecodeRuneInString(st.Delimiter)
		}
	}
	if st.Scale != "" {
		scale, err := decimal.NewFromString(st.Scale)
		if err != nil {
			return cfg, fmt.Errorf("scale %q: %w", st.Scale, err)
		}
		cfg.Scale = scale
	}
	return cfg, nil
}

// matchAccount returns the ledger account containing substring. An exact
// match wins, otherwise the last match in name order. Without a match the
// substring is used as the account name.
func matchAccount(entries []ledger.Entry, substring string) string {
	var match string
	lower := strings.ToLower(substring)
	for _, name := range ledger.AccountNames(entries) {
		if strings.EqualFold(name, substring) {
			return name
		}
		if strings.Contains(strings.ToLower(name), lower) {
			match = name
		}
	}
	if match == "" {
		return substring
	}
	return match
}

func logStats(st plan.Statement, stats convert.Stats, dryRun bool) {
	logger.Info("imported statement",
		"file", st.File,
		"account", st.Account,
		"rows", stats.Rows,
		"added", stats.Added,
		"duplicates", stats.Duplicates,
		"skipped", stats.Skipped,
		"dry-run", dryRun,
	)
}

// importCmd represents the import command
var importCmd = &cobra.Command{
	Use:   "import <account-substring> <statement-file>",
	Args:  cobra.ExactArgs(2),
	Short: "Import a bank statement into the ledger",
	Example: `  ledger -f books.ledger import checking statement.csv
  ledger -f books.ledger import visa 2024-03.qfx --auto`,
	RunE: func(_ *cobra.Command, args []string) error {
		path, err := ledgerPath()
		if err != nil {
			return err
		}
		imp, err := newImporter(path, rulesDir(path), importRun, os.Stdin, os.Stdout, os.Stderr)
		if err != nil {
			return err
		}

		st := importStatement
		st.Account = args[0]
		st.File = plan.ExpandHome(args[1])
		if st.Currency == "" {
			st.Currency = viper.GetString("currency")
		}
		stats, err := imp.run(st)
		if err != nil {
			return err
		}
		logStats(st, stats, importRun.dryRun)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(importCmd)

	f := importCmd.Flags()
	f.StringVar(&importStatement.Format, "format", "", "statement format: csv, tsv, xls, ofx, qfx, qif, iif (default: from the file extension)")
	f.StringVar(&importStatement.Currency, "currency", "", "currency of imported amounts")
	f.StringVar(&importStatement.DateFormat, "date-format", "", "date layout, e.g. 01/02/2006 (default: detect)")
	f.StringVar(&importStatement.Delimiter, "delimiter", "", "field delimiter (default \",\")")
	f.StringVar(&importStatement.Scale, "scale", "", "scale factor to multiply against every imported amount")
	f.BoolVar(&importStatement.Negate, "neg", false, "negate amount column value")
	f.BoolVar(&importStatement.DecimalComma, "decimal-comma", false, "amounts use a decimal comma")
	f.IntVar(&importStatement.BalanceInterval, "balance-interval", 0, "add a balance assertion every n rows, 0 disables")
	addRunFlags(importCmd, &importRun)

	mustBind(viper.BindPFlag("currency", f.Lookup("currency")))
}

func addRunFlags(c *cobra.Command, rf *runFlags) {
	f := c.Flags()
	f.StringVar(&rf.session, "session", "", "session identifier for learned rules and backups (default: random)")
	f.BoolVar(&rf.noLearn, "no-learn", false, "do not store answers as rules")
	f.BoolVar(&rf.auto, "auto", false, "accept confident suggestions without asking")
	f.BoolVar(&rf.noDecl, "no-declare", false, "do not add account directives for new accounts")
	f.BoolVar(&rf.dryRun, "dry-run", false, "do not write the ledger or rules")
}
