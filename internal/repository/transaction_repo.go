package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"familybudget/internal/database"
	"familybudget/internal/models"
)

// TransactionFilter narrows a ledger listing. Nil fields are ignored.
type TransactionFilter struct {
	CategoryID *int64
	Type       *models.TransactionType
	DateFrom   *time.Time
	DateTo     *time.Time
	AmountMin  *decimal.Decimal
	AmountMax  *decimal.Decimal
}

func (f TransactionFilter) where(familyID int64) (string, []any) {
	clauses := []string{"t.family_id = ?"}
	args := []any{familyID}

	if f.CategoryID != nil {
		clauses = append(clauses, "t.category_id = ?")
		args = append(args, *f.CategoryID)
	}
	if f.Type != nil {
		clauses = append(clauses, "t.type = ?")
		args = append(args, string(*f.Type))
	}
	if f.DateFrom != nil {
		clauses = append(clauses, "t.date >= ?")
		args = append(args, *f.DateFrom)
	}
	if f.DateTo != nil {
		clauses = append(clauses, "t.date <= ?")
		args = append(args, *f.DateTo)
	}
	if f.AmountMin != nil {
		clauses = append(clauses, "t.amount >= ?")
		args = append(args, *f.AmountMin)
	}
	if f.AmountMax != nil {
		clauses = append(clauses, "t.amount <= ?")
		args = append(args, *f.AmountMax)
	}

	return strings.Join(clauses, " AND "), args
}

// TransactionRepository handles database operations for ledger transactions
type TransactionRepository struct {
	db database.DBTX
}

// NewTransactionRepository creates a new transaction repository
func NewTransactionRepository(db database.DBTX) *TransactionRepository {
	return &TransactionRepository{db: db}
}

const transactionSelect = `
	SELECT t.id, t.amount, t.description, t.date, t.category_id, c.name,
		t.member_id, t.family_id, t.user_id, t.type, t.created_at
	FROM transactions t
	INNER JOIN budget_categories c ON c.id = t.category_id
`

func scanTransaction(row interface{ Scan(...any) error }) (*models.Transaction, error) {
	t := &models.Transaction{}
	var memberID sql.NullInt64
	var txType string
	err := row.Scan(
		&t.ID,
		&t.Amount,
		&t.Description,
		&t.Date,
		&t.CategoryID,
		&t.CategoryName,
		&memberID,
		&t.FamilyID,
		&t.UserID,
		&txType,
		&t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if memberID.Valid {
		t.MemberID = &memberID.Int64
	}
	t.Type = models.TransactionType(txType)
	t.Date = t.Date.UTC()
	return t, nil
}

// CreateTransaction inserts t and fills in its ID and CreatedAt
func (r *TransactionRepository) CreateTransaction(ctx context.Context, t *models.Transaction) error {
	t.CreatedAt = time.Now().UTC()
	query := `
		INSERT INTO transactions (amount, description, date, category_id, member_id, family_id, user_id, type, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	id, err := r.db.ExecReturningID(ctx, query,
		t.Amount, t.Description, t.Date, t.CategoryID, t.MemberID, t.FamilyID, t.UserID, string(t.Type), t.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	t.ID = id
	return nil
}

// GetTransactionByID retrieves a transaction with its category name
func (r *TransactionRepository) GetTransactionByID(ctx context.Context, id int64) (*models.Transaction, error) {
	t, err := scanTransaction(r.db.QueryRowContext(ctx, transactionSelect+" WHERE t.id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return t, nil
}

// ListTransactions returns a family's transactions, newest first
func (r *TransactionRepository) ListTransactions(ctx context.Context, familyID int64, filter TransactionFilter) ([]models.Transaction, error) {
	where, args := filter.where(familyID)
	query := transactionSelect + " WHERE " + where + " ORDER BY t.date DESC, t.id DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	transactions := []models.Transaction{}
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transactions: %w", err)
	}

	return transactions, nil
}

// UpdateTransaction rewrites the client-editable fields of t
func (r *TransactionRepository) UpdateTransaction(ctx context.Context, t *models.Transaction) error {
	query := `
		UPDATE transactions
		SET amount = ?, description = ?, date = ?, category_id = ?, type = ?
		WHERE id = ?
	`
	if _, err := r.db.ExecContext(ctx, query, t.Amount, t.Description, t.Date, t.CategoryID, string(t.Type), t.ID); err != nil {
		return fmt.Errorf("failed to update transaction: %w", err)
	}
	return nil
}

// DeleteTransaction removes a transaction
func (r *TransactionRepository) DeleteTransaction(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM transactions WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete transaction: %w", err)
	}
	return nil
}

// Summarize totals income and expense for a family over the filtered set
func (r *TransactionRepository) Summarize(ctx context.Context, familyID int64, filter TransactionFilter) (*models.LedgerSummary, error) {
	where, args := filter.where(familyID)
	query := "SELECT t.type, SUM(t.amount), COUNT(*) FROM transactions t WHERE " + where + " GROUP BY t.type"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize transactions: %w", err)
	}
	defer rows.Close()

	summary := &models.LedgerSummary{
		Income:  decimal.Zero,
		Expense: decimal.Zero,
	}
	for rows.Next() {
		var txType string
		var total decimal.NullDecimal
		var count int
		if err := rows.Scan(&txType, &total, &count); err != nil {
			return nil, fmt.Errorf("failed to scan summary row: %w", err)
		}
		amount := total.Decimal.Round(2)
		switch models.TransactionType(txType) {
		case models.TransactionIncome:
			summary.Income = amount
		case models.TransactionExpense:
			summary.Expense = amount
		}
		summary.Count += count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate summary rows: %w", err)
	}

	summary.Balance = summary.Income.Sub(summary.Expense)
	return summary, nil
}
