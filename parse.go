package ledger

import (
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/alfredxing/calc/compute"
	date "github.com/joyt/godate"
	"github.com/shopspring/decimal"
)

// ParseLedgerFile parses a ledger file and returns its entries in file order.
func ParseLedgerFile(filename string) ([]Entry, error) {
	ifile, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer ifile.Close()
	return parseLedger(filename, ifile)
}

// ParseLedger parses ledger data and returns its entries in file order.
func ParseLedger(ledgerReader io.Reader) ([]Entry, error) {
	return parseLedger("", ledgerReader)
}

var errNoHeading = errors.New("block has no heading line")

// lineError pins an error to a line inside a block.
type lineError struct {
	line int
	err  error
}

func (e *lineError) Error() string { return e.err.Error() }
func (e *lineError) Unwrap() error { return e.err }

type dateCache struct {
	layout string

	prev     string
	prevDate time.Time
	prevErr  error
}

func (dc *dateCache) parse(dateString string) (transDate time.Time, err error) {
	if dc == nil {
		dc = &dateCache{layout: transactionDateFormat}
	}

	// seen before, skip parse
	if dc.prev == dateString && dc.prev != "" {
		return dc.prevDate, dc.prevErr
	}

	// try current date layout
	transDate, err = time.Parse(dc.layout, dateString)
	if err != nil {
		// try to find new date layout
		transDate, dc.layout, err = date.ParseAndGetLayout(dateString)
		if err != nil {
			err = fmt.Errorf("unable to parse date(%s): %w", dateString, err)
		}
	}

	// maybe next date is same
	dc.prev = dateString
	dc.prevDate = transDate
	dc.prevErr = err

	return
}

type parser struct {
	scanner  *linescanner
	dates    *dateCache
	comments []string
}

func newParser(ledgerReader io.Reader, name string) *parser {
	return &parser{
		scanner: newLineScanner(name, ledgerReader),
		dates:   &dateCache{layout: transactionDateFormat},
	}
}

func parseLedger(filename string, ledgerReader io.Reader) ([]Entry, error) {
	lp := newParser(ledgerReader, filename)

	var entries []Entry
	for {
		b, err := lp.nextBlock()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", filename, lp.scanner.LineNumber(), err)
		}

		e, err := lp.parseBlock(&b)
		if err != nil {
			line := b.lineNum + len(b.body) - 1
			var le *lineError
			if errors.As(err, &le) {
				line = le.line
			}
			return nil, fmt.Errorf("%s:%d: unable to parse transaction: %w", filename, line, err)
		}
		if e != nil {
			entries = append(entries, e)
		}
	}
	return entries, nil
}

func isCommentLine(line string) bool {
	return strings.HasPrefix(line, ";") || strings.HasPrefix(line, "#")
}

// nextBlock returns the next group of lines that make up one entry. A block
// ends at a blank line or at an unindented line once the heading was seen.
func (lp *parser) nextBlock() (block, error) {
	b := block{filename: lp.scanner.Name(), dates: lp.dates}
	headed := false
	for lp.scanner.Scan() {
		raw := lp.scanner.Text()
		line := strings.TrimSpace(raw)
		if line == "" {
			if len(b.body) > 0 {
				break
			}
			continue
		}

		comment := isCommentLine(line)
		indented := raw[0] == ' ' || raw[0] == '\t'
		if headed && !indented && !comment {
			lp.scanner.unread()
			break
		}

		if len(b.body) == 0 {
			b.lineNum = lp.scanner.LineNumber()
		}
		if !comment {
			headed = true
		}
		b.body = append(b.body, line)
	}
	if err := lp.scanner.Err(); err != nil {
		return b, err
	}
	if len(b.body) == 0 {
		return b, io.EOF
	}
	return b, nil
}

func (lp *parser) parseBlock(b *block) (Entry, error) {
	before, after, comment, err := b.header()
	if errors.Is(err, errNoHeading) {
		// comment only, keep for the next entry
		lp.comments = append(lp.comments, b.body...)
		return nil, nil
	}
	pending := lp.comments
	lp.comments = nil
	if err != nil {
		return nil, err
	}

	e, err := b.entry(before, after, comment)
	if err != nil {
		return nil, err
	}
	if len(pending) > 0 {
		switch v := e.(type) {
		case *Transaction:
			v.Comments = append(pending, v.Comments...)
		case *AccountDeclaration:
			v.Comments = append(pending, v.Comments...)
		case *BalanceAssertion:
			v.Comments = append(pending, v.Comments...)
		}
	}
	return e, nil
}

type block struct {
	lineNum     int
	filename    string
	body        []string
	headingLine int
	dates       *dateCache
}

func (b *block) lineErr(idx int, err error) error {
	return &lineError{line: b.lineNum + idx, err: err}
}

// header locates the heading line and splits it into its first word, the
// rest and a trailing comment.
func (b *block) header() (before, after, comment string, err error) {
	b.headingLine = -1
	for i, line := range b.body {
		if !isCommentLine(line) {
			b.headingLine = i
			break
		}
	}
	if b.headingLine < 0 {
		return "", "", "", errNoHeading
	}

	line := b.body[b.headingLine]
	if commentIdx := strings.Index(line, ";"); commentIdx >= 0 {
		comment = line[commentIdx:]
		line = strings.TrimSpace(line[:commentIdx])
	}

	before, after, split := strings.Cut(line, " ")
	if !split {
		return "", "", "", b.lineErr(b.headingLine, fmt.Errorf("unable to parse payee line: %s", line))
	}
	return before, strings.TrimSpace(after), comment, nil
}

func (b *block) leadingComments() []string {
	if b.headingLine <= 0 {
		return nil
	}
	return append([]string(nil), b.body[:b.headingLine]...)
}

func (b *block) entry(before, after, comment string) (Entry, error) {
	switch before {
	case "account":
		return b.declaration(after, comment), nil
	case "include":
		return nil, b.lineErr(b.headingLine, fmt.Errorf("include directive is not supported: %s", after))
	}

	if ba, err := b.balance(before, after); ba != nil || err != nil {
		return ba, err
	}
	return b.transaction(before, after, comment)
}

var openedRe = regexp.MustCompile(`^;\s*opened\s+(\S+)`)

func (b *block) declaration(name, comment string) *AccountDeclaration {
	d := &AccountDeclaration{Name: name, Comments: b.leadingComments()}
	if comment != "" {
		d.Comments = append(d.Comments, comment)
	}
	for _, line := range b.body[b.headingLine+1:] {
		if m := openedRe.FindStringSubmatch(line); m != nil && d.Date.IsZero() {
			if opened, err := b.dates.parse(m[1]); err == nil {
				d.Date = opened
				continue
			}
		}
		d.Directives = append(d.Directives, line)
	}
	return d
}

// balance returns a BalanceAssertion when the block holds exactly one
// posting carrying an "= amount" assertion.
func (b *block) balance(dateString, payee string) (*BalanceAssertion, error) {
	var postingIdx []int
	for i := b.headingLine + 1; i < len(b.body); i++ {
		if !isCommentLine(b.body[i]) {
			postingIdx = append(postingIdx, i)
		}
	}
	if len(postingIdx) != 1 {
		return nil, nil
	}

	line := b.body[postingIdx[0]]
	if commentIdx := strings.Index(line, ";"); commentIdx >= 0 {
		line = strings.TrimSpace(line[:commentIdx])
	}
	posting, assertion, err := parsePostingLine(line)
	if err != nil || assertion == nil {
		return nil, nil
	}

	transDate, err := b.dates.parse(dateString)
	if err != nil {
		return nil, b.lineErr(b.headingLine, err)
	}

	ba := &BalanceAssertion{
		Date:     transDate,
		Payee:    payee,
		Account:  posting.Name,
		Currency: assertion.currency,
		Amount:   assertion.amount,
		Comments: b.leadingComments(),
	}
	if ba.Currency == "" {
		ba.Currency = posting.Currency
	}
	for _, line := range b.body[b.headingLine+1:] {
		if isCommentLine(line) {
			ba.Comments = append(ba.Comments, line)
		}
	}
	return ba, nil
}

func (b *block) transaction(dateString, payeeString, payeeComment string) (*Transaction, error) {
	transDate, err := b.dates.parse(dateString)
	if err != nil {
		return nil, b.lineErr(b.headingLine, err)
	}

	trans := &Transaction{
		Date:         transDate,
		Payee:        payeeString,
		PayeeComment: payeeComment,
		Comments:     b.leadingComments(),
	}

	for i := b.headingLine + 1; i < len(b.body); i++ {
		line := b.body[i]
		postingComment := ""
		// handle comments
		if commentIdx := strings.Index(line, ";"); commentIdx >= 0 {
			postingComment = line[commentIdx:]
			line = strings.TrimSpace(line[:commentIdx])
			if len(line) == 0 {
				trans.Comments = append(trans.Comments, postingComment)
				continue
			}
		}
		if isCommentLine(line) {
			trans.Comments = append(trans.Comments, line)
			continue
		}

		posting, _, perr := parsePostingLine(line)
		if perr != nil {
			return nil, b.lineErr(i, perr)
		}
		posting.Comment = postingComment
		trans.AccountChanges = append(trans.AccountChanges, posting)
	}

	if err := trans.IsBalanced(); err != nil {
		return nil, err
	}
	return trans, nil
}

// Regex groups: account name, commodity, amount (number or parenthesized
// expression), @@ converted amount, @ conversion rate, and an optional
// "= amount" balance assertion with its own commodity.
var postingRe = regexp.MustCompile(
	`^(?P<name>.+?)` +
		`(?:(?:\s{2,}|\t)` +
		`(?:(?P<currency>[A-Z\$€£]+)\s*)?` +
		`(?P<amount>-?\d+(?:\.\d+)?|\([0-9+\-*\/. ]+\))?` +
		`(?:\s*(?:@@\s*(?P<converted>-?\d+(?:\.\d+)?)|@\s*(?P<factor>-?\d+(?:\.\d+)?)))?` +
		`(?:\s*=\s*(?:(?P<acurrency>[A-Z\$€£]+)\s*)?(?P<assert>-?\d+(?:\.\d+)?))?` +
		`)?\s*$`,
)

var (
	reName      = postingRe.SubexpIndex("name")
	reCurrency  = postingRe.SubexpIndex("currency")
	reAmount    = postingRe.SubexpIndex("amount")
	reConverted = postingRe.SubexpIndex("converted")
	reFactor    = postingRe.SubexpIndex("factor")
	reACurrency = postingRe.SubexpIndex("acurrency")
	reAssert    = postingRe.SubexpIndex("assert")
)

type assertion struct {
	currency string
	amount   decimal.Decimal
}

func parsePosting(trimmedLine string) (Account, error) {
	a, _, err := parsePostingLine(trimmedLine)
	return a, err
}

func parsePostingLine(trimmedLine string) (a Account, as *assertion, err error) {
	trimmedLine = strings.TrimSpace(trimmedLine)

	m := postingRe.FindStringSubmatch(trimmedLine)
	if m == nil {
		return a, nil, fmt.Errorf("invalid posting: %q", trimmedLine)
	}

	a.Name = m[reName]
	a.Currency = m[reCurrency]
	a.Balance = decimal.NewFromFloat(0)

	if amt := m[reAmount]; amt != "" {
		var bal float64
		if strings.HasPrefix(amt, "(") {
			bal, err = compute.Evaluate(amt)
		} else {
			bal, err = strconv.ParseFloat(amt, 64)
		}
		if err != nil {
			return a, nil, err
		}
		a.Balance = decimal.NewFromFloat(bal)
	}

	// @@ explicit converted amount
	if m[reConverted] != "" {
		conv, err := decimal.NewFromString(m[reConverted])
		if err != nil {
			return a, nil, err
		}
		a.Converted = &conv
	}

	// @ rate-based conversion
	if m[reFactor] != "" {
		rate, err := decimal.NewFromString(m[reFactor])
		if err != nil {
			return a, nil, err
		}
		a.ConversionFactor = &rate
	}

	if m[reAssert] != "" {
		amt, err := decimal.NewFromString(m[reAssert])
		if err != nil {
			return a, nil, err
		}
		as = &assertion{currency: m[reACurrency], amount: amt}
	}
	return a, as, nil
}
