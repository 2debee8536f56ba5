package ofx

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plenert/ledger"
	"github.com/plenert/ledger/ledger/statement"
)

const checking = `
OFXHEADER:100
DATA:OFXSGML
VERSION:102
SECURITY:NONE
ENCODING:USASCII
CHARSET:1252
COMPRESSION:NONE
OLDFILEUID:NONE
NEWFILEUID:NONE

<OFX>
<SIGNONMSGSRSV1>
<SONRS>
<STATUS>
<CODE>0
<SEVERITY>INFO
</STATUS>
<DTSERVER>20240201120000[0:GMT]
<LANGUAGE>ENG
</SONRS>
</SIGNONMSGSRSV1>
<BANKMSGSRSV1>
<STMTTRNRS>
<TRNUID>1
<STATUS>
<CODE>0
<SEVERITY>INFO
</STATUS>
<STMTRS>
<CURDEF>USD
<BANKACCTFROM>
<BANKID>123456789
<ACCTID>1234567890
<ACCTTYPE>CHECKING
</BANKACCTFROM>
<BANKTRANLIST>
<DTSTART>20240101120000[0:GMT]
<DTEND>20240131120000[0:GMT]
<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20240115120000[0:GMT]
<TRNAMT>-25.50
<FITID>2024011501
<NAME>STARBUCKS STORE 1234
<MEMO>card 4411
</STMTTRN>
<STMTTRN>
<TRNTYPE>CHECK
<DTPOSTED>20240125120000[0:GMT]
<TRNAMT>-500.00
<FITID>2024012501
<CHECKNUM>1234
<NAME>CHECK 1234
</STMTTRN>
<STMTTRN>
<TRNTYPE>CREDIT
<DTPOSTED>20240120120000[0:GMT]
<TRNAMT>2000.00
<FITID>2024012001
<NAME>ACME PAYROLL
</STMTTRN>
</BANKTRANLIST>
<LEDGERBAL>
<BALAMT>3000.00
<DTASOF>20240131120000[0:GMT]
</LEDGERBAL>
</STMTRS>
</STMTTRNRS>
</BANKMSGSRSV1>
</OFX>
`

func TestReadData(t *testing.T) {
	a := New(Config{Account: "Assets:Checking"})
	tbl, err := a.ReadData(strings.NewReader(checking))
	require.NoError(t, err)
	require.NoError(t, tbl.Validate())
	require.Equal(t, 3, tbl.Len())

	check, err := a.StepData(0, tbl.Row(0))
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 25, 0, 0, 0, 0, time.UTC), check.Date)
	assert.Equal(t, "CHECK 1234", check.Payee)
	assert.Equal(t, []string{"; check: 1234", "; fitid: 2024012501"}, check.Comments)
	require.Len(t, check.AccountChanges, 2)
	assert.Equal(t, "Assets:Checking", check.AccountChanges[0].Name)
	assert.Equal(t, "USD", check.AccountChanges[0].Currency)
	assert.True(t, check.AccountChanges[0].Balance.Equal(decimal.NewFromInt(-500)))
	assert.Equal(t, ledger.UnknownAccount, check.AccountChanges[1].Name)
	assert.NoError(t, check.IsBalanced())

	coffee, err := a.StepData(2, tbl.Row(2))
	require.NoError(t, err)
	assert.Equal(t, "STARBUCKS STORE 1234", coffee.Payee)
	assert.Equal(t, []string{"; card 4411", "; fitid: 2024011501"}, coffee.Comments)
	assert.True(t, coffee.AccountChanges[0].Balance.Equal(decimal.RequireFromString("-25.5")))
}

func TestBalances(t *testing.T) {
	a := New(Config{Account: "Assets:Checking", Currency: "EUR"})
	_, err := a.ReadData(strings.NewReader(checking))
	require.NoError(t, err)

	out := a.OutBalance()
	require.NotNil(t, out)
	assert.Equal(t, time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC), out.Date)
	assert.True(t, out.Amount.Equal(decimal.NewFromInt(3000)))
	assert.Equal(t, "EUR", out.Currency, "configured currency wins")

	in := a.InBalance()
	require.NotNil(t, in)
	assert.Equal(t, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), in.Date)
	assert.True(t, in.Amount.Equal(decimal.RequireFromString("1525.5")), in.Amount.String())
}

func TestNegate(t *testing.T) {
	a := New(Config{Account: "Liabilities:Visa", Negate: true})
	tbl, err := a.ReadData(strings.NewReader(checking))
	require.NoError(t, err)
	check, err := a.StepData(0, tbl.Row(0))
	require.NoError(t, err)
	assert.True(t, check.AccountChanges[0].Balance.Equal(decimal.NewFromInt(500)))
	assert.True(t, a.OutBalance().Amount.Equal(decimal.NewFromInt(-3000)))
}

func TestMalformed(t *testing.T) {
	_, err := New(Config{}).ReadData(strings.NewReader("this is not ofx"))
	assert.ErrorIs(t, err, statement.ErrFormat)
}
