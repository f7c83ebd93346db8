package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// BudgetCategory groups transactions. It is owned by the user who created it.
type BudgetCategory struct {
	ID          int64  `json:"id"`
	UserID      int64  `json:"user"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// TransactionType tells income from expense
type TransactionType string

const (
	TransactionIncome  TransactionType = "income"
	TransactionExpense TransactionType = "expense"
)

// ParseTransactionType validates a wire value; empty means expense
func ParseTransactionType(s string) (TransactionType, error) {
	switch TransactionType(s) {
	case "":
		return TransactionExpense, nil
	case TransactionIncome, TransactionExpense:
		return TransactionType(s), nil
	default:
		return "", fmt.Errorf("unknown transaction type %q", s)
	}
}

// DateLayout is the wire and filter format of transaction dates
const DateLayout = "2006-01-02"

// Transaction is one income or expense entry in a family ledger.
// FamilyID is fixed at creation; MemberID is cleared if the recording
// membership later ends.
type Transaction struct {
	ID           int64           `json:"id"`
	Amount       decimal.Decimal `json:"amount"`
	Description  string          `json:"description"`
	Date         time.Time       `json:"-"`
	CategoryID   int64           `json:"category"`
	CategoryName string          `json:"category_name"`
	MemberID     *int64          `json:"member"`
	FamilyID     int64           `json:"family"`
	UserID       int64           `json:"user"`
	Type         TransactionType `json:"type"`
	CreatedAt    time.Time       `json:"created_at"`
}

// DateString renders Date in DateLayout
func (t *Transaction) DateString() string {
	return t.Date.Format(DateLayout)
}

// LedgerSummary totals the transactions in a period
type LedgerSummary struct {
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
	Balance decimal.Decimal `json:"balance"`
	Count   int             `json:"count"`
}
