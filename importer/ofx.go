package importer

import (
	"io"
	"strings"

	"github.com/aclindsa/ofxgo"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/brightbooks/keeper/journal"
)

// ReadOFX parses an OFX statement download into candidate postings for
// 'account'. Bank and credit card statements are both accepted. The postings
// carry sequential transaction IDs from 'firstID' and are ready to feed to
// Import.
func ReadOFX(reader io.Reader, account string, firstID int) ([]journal.Posting, error) {
	resp, err := ofxgo.ParseResponse(reader)
	if err != nil {
		return nil, errors.Wrap(err, "Error parsing OFX response")
	}
	accountName, err := journal.ParseQName(account)
	if err != nil {
		return nil, err
	}

	messages := append(resp.Bank, resp.CreditCard...)
	if len(messages) == 0 {
		return nil, errors.New("No statements in OFX response")
	}

	var postings []journal.Posting
	id := firstID
	for _, message := range messages {
		var txns []ofxgo.Transaction
		switch statement := message.(type) {
		case *ofxgo.StatementResponse:
			if statement.BankTranList != nil {
				txns = statement.BankTranList.Transactions
			}
		case *ofxgo.CCStatementResponse:
			if statement.BankTranList != nil {
				txns = statement.BankTranList.Transactions
			}
		default:
			return nil, errors.Errorf("Invalid statement type: %T", message)
		}

		for _, txn := range txns {
			// TrnAmt uses big.Rat internally, which can't form an
			// invalid number with .String()
			amount := decimal.RequireFromString(txn.TrnAmt.String())
			postings = append(postings, journal.Posting{
				TxnID:    id,
				Date:     journal.Day(txn.DtPosted.Time),
				Account:  accountName,
				Amount:   &amount,
				StmtDesc: statementDescription(txn),
				Tags:     map[string]string{"fitid": string(txn.FiTID)},
			})
			id++
		}
	}
	return postings, nil
}

func statementDescription(txn ofxgo.Transaction) string {
	name := string(txn.Name)
	if name == "" && txn.Payee != nil {
		name = string(txn.Payee.Name)
	}
	parts := make([]string, 0, 2)
	if name != "" {
		parts = append(parts, name)
	}
	if memo := string(txn.Memo); memo != "" {
		parts = append(parts, memo)
	}
	return strings.Join(parts, " | ")
}
