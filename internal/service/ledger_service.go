package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"familybudget/internal/database"
	"familybudget/internal/metrics"
	"familybudget/internal/models"
	"familybudget/internal/repository"
	"familybudget/internal/validation"
)

// CategoryInput holds the client-editable fields of a category
type CategoryInput struct {
	Name        string
	Description string
}

// TransactionInput holds the client-editable fields of a transaction.
// Membership, family and recording user are always taken from the caller.
type TransactionInput struct {
	Amount      decimal.Decimal
	Description string
	Date        time.Time
	CategoryID  int64
	Type        models.TransactionType
}

// LedgerService scopes categories and transactions to the caller's family
type LedgerService struct {
	memberships  *repository.MembershipRepository
	categories   *repository.CategoryRepository
	transactions *repository.TransactionRepository
	logger       *logrus.Logger
	metrics      *metrics.Metrics
}

// NewLedgerService creates a new ledger service
func NewLedgerService(db *database.DB, logger *logrus.Logger, m *metrics.Metrics) *LedgerService {
	return &LedgerService{
		memberships:  repository.NewMembershipRepository(db),
		categories:   repository.NewCategoryRepository(db),
		transactions: repository.NewTransactionRepository(db),
		logger:       logger,
		metrics:      m,
	}
}

// Roster returns the user ids whose categories the caller can see: every
// member of the caller's family, or just the caller when unaffiliated.
func (s *LedgerService) Roster(ctx context.Context, callerID int64) ([]int64, error) {
	membership, err := s.memberships.GetByUserID(ctx, callerID)
	if err != nil {
		return nil, err
	}
	if membership == nil {
		return []int64{callerID}, nil
	}
	return s.memberships.ListUserIDs(ctx, membership.FamilyID)
}

func (s *LedgerService) visibleCategory(ctx context.Context, callerID, categoryID int64) (*models.BudgetCategory, error) {
	category, err := s.categories.GetCategoryByID(ctx, categoryID)
	if err != nil {
		return nil, err
	}
	if category == nil {
		return nil, ErrCategoryNotFound
	}

	roster, err := s.Roster(ctx, callerID)
	if err != nil {
		return nil, err
	}
	for _, id := range roster {
		if id == category.UserID {
			return category, nil
		}
	}
	return nil, ErrCategoryNotFound
}

// ListCategories returns the categories created by anyone in the caller's family
func (s *LedgerService) ListCategories(ctx context.Context, callerID int64) ([]models.BudgetCategory, error) {
	roster, err := s.Roster(ctx, callerID)
	if err != nil {
		return nil, err
	}
	return s.categories.ListByOwners(ctx, roster)
}

// GetCategory returns one visible category
func (s *LedgerService) GetCategory(ctx context.Context, callerID, categoryID int64) (*models.BudgetCategory, error) {
	return s.visibleCategory(ctx, callerID, categoryID)
}

// CreateCategory adds a category owned by the caller. A membership is required.
func (s *LedgerService) CreateCategory(ctx context.Context, callerID int64, in CategoryInput) (*models.BudgetCategory, error) {
	membership, err := s.memberships.GetByUserID(ctx, callerID)
	if err != nil {
		return nil, err
	}
	if membership == nil {
		return nil, ErrMembershipRequired
	}

	in.Name = strings.TrimSpace(in.Name)
	if err := validateCategory(in); err != nil {
		return nil, err
	}

	category, err := s.categories.CreateCategory(ctx, callerID, in.Name, in.Description)
	if err != nil {
		return nil, err
	}

	s.metrics.LedgerWrite("category", "create")
	s.logger.WithFields(logrus.Fields{
		"category_id": category.ID,
		"user_id":     callerID,
	}).Debug("category created")
	return category, nil
}

// UpdateCategory edits a category. Only its creator may do so.
func (s *LedgerService) UpdateCategory(ctx context.Context, callerID, categoryID int64, in CategoryInput) (*models.BudgetCategory, error) {
	category, err := s.visibleCategory(ctx, callerID, categoryID)
	if err != nil {
		return nil, err
	}
	if category.UserID != callerID {
		return nil, ErrNotCreator
	}

	in.Name = strings.TrimSpace(in.Name)
	if err := validateCategory(in); err != nil {
		return nil, err
	}

	if err := s.categories.UpdateCategory(ctx, categoryID, in.Name, in.Description); err != nil {
		return nil, err
	}

	s.metrics.LedgerWrite("category", "update")
	category.Name = in.Name
	category.Description = in.Description
	return category, nil
}

// DeleteCategory removes a category and its transactions. Only its creator may do so.
func (s *LedgerService) DeleteCategory(ctx context.Context, callerID, categoryID int64) error {
	category, err := s.visibleCategory(ctx, callerID, categoryID)
	if err != nil {
		return err
	}
	if category.UserID != callerID {
		return ErrNotCreator
	}

	if err := s.categories.DeleteCategory(ctx, categoryID); err != nil {
		return err
	}

	s.metrics.LedgerWrite("category", "delete")
	s.logger.WithFields(logrus.Fields{
		"category_id": categoryID,
		"user_id":     callerID,
	}).Info("category deleted")
	return nil
}

func validateCategory(in CategoryInput) error {
	if err := validation.ValidateCategoryName(in.Name); err != nil {
		return invalid(err)
	}
	return nil
}

// ListTransactions returns the caller's family ledger. Callers without a
// family see an empty ledger.
func (s *LedgerService) ListTransactions(ctx context.Context, callerID int64, filter repository.TransactionFilter) ([]models.Transaction, error) {
	membership, err := s.memberships.GetByUserID(ctx, callerID)
	if err != nil {
		return nil, err
	}
	if membership == nil {
		return []models.Transaction{}, nil
	}
	return s.transactions.ListTransactions(ctx, membership.FamilyID, filter)
}

func (s *LedgerService) visibleTransaction(ctx context.Context, callerID, transactionID int64) (*models.Transaction, *models.FamilyMembership, error) {
	membership, err := s.memberships.GetByUserID(ctx, callerID)
	if err != nil {
		return nil, nil, err
	}
	if membership == nil {
		return nil, nil, ErrTransactionNotFound
	}

	t, err := s.transactions.GetTransactionByID(ctx, transactionID)
	if err != nil {
		return nil, nil, err
	}
	if t == nil || t.FamilyID != membership.FamilyID {
		return nil, nil, ErrTransactionNotFound
	}
	return t, membership, nil
}

// GetTransaction returns one transaction from the caller's family ledger
func (s *LedgerService) GetTransaction(ctx context.Context, callerID, transactionID int64) (*models.Transaction, error) {
	t, _, err := s.visibleTransaction(ctx, callerID, transactionID)
	return t, err
}

// CreateTransaction records an entry in the caller's family ledger under
// the caller's current membership
func (s *LedgerService) CreateTransaction(ctx context.Context, callerID int64, in TransactionInput) (*models.Transaction, error) {
	membership, err := s.memberships.GetByUserID(ctx, callerID)
	if err != nil {
		return nil, err
	}
	if membership == nil {
		return nil, ErrMembershipRequired
	}

	category, err := s.checkTransactionInput(ctx, callerID, &in)
	if err != nil {
		return nil, err
	}

	memberID := membership.ID
	t := &models.Transaction{
		Amount:       in.Amount,
		Description:  in.Description,
		Date:         in.Date,
		CategoryID:   category.ID,
		CategoryName: category.Name,
		MemberID:     &memberID,
		FamilyID:     membership.FamilyID,
		UserID:       callerID,
		Type:         in.Type,
	}
	if err := s.transactions.CreateTransaction(ctx, t); err != nil {
		return nil, err
	}

	s.metrics.LedgerWrite("transaction", "create")
	s.logger.WithFields(logrus.Fields{
		"transaction_id": t.ID,
		"family_id":      t.FamilyID,
		"user_id":        callerID,
	}).Debug("transaction recorded")
	return t, nil
}

// UpdateTransaction edits a transaction. Only the recording user may do so.
func (s *LedgerService) UpdateTransaction(ctx context.Context, callerID, transactionID int64, in TransactionInput) (*models.Transaction, error) {
	t, _, err := s.visibleTransaction(ctx, callerID, transactionID)
	if err != nil {
		return nil, err
	}
	if t.UserID != callerID {
		return nil, ErrNotCreator
	}

	category, err := s.checkTransactionInput(ctx, callerID, &in)
	if err != nil {
		return nil, err
	}

	t.Amount = in.Amount
	t.Description = in.Description
	t.Date = in.Date
	t.CategoryID = category.ID
	t.CategoryName = category.Name
	t.Type = in.Type
	if err := s.transactions.UpdateTransaction(ctx, t); err != nil {
		return nil, err
	}

	s.metrics.LedgerWrite("transaction", "update")
	return t, nil
}

// DeleteTransaction removes a transaction. Only the recording user may do so.
func (s *LedgerService) DeleteTransaction(ctx context.Context, callerID, transactionID int64) error {
	t, _, err := s.visibleTransaction(ctx, callerID, transactionID)
	if err != nil {
		return err
	}
	if t.UserID != callerID {
		return ErrNotCreator
	}

	if err := s.transactions.DeleteTransaction(ctx, transactionID); err != nil {
		return err
	}

	s.metrics.LedgerWrite("transaction", "delete")
	return nil
}

// Summary totals the caller's family ledger over the filtered set
func (s *LedgerService) Summary(ctx context.Context, callerID int64, filter repository.TransactionFilter) (*models.LedgerSummary, error) {
	membership, err := s.memberships.GetByUserID(ctx, callerID)
	if err != nil {
		return nil, err
	}
	if membership == nil {
		return &models.LedgerSummary{Income: decimal.Zero, Expense: decimal.Zero, Balance: decimal.Zero}, nil
	}
	return s.transactions.Summarize(ctx, membership.FamilyID, filter)
}

// checkTransactionInput validates and normalizes in, returning the
// referenced category when the caller can see it
func (s *LedgerService) checkTransactionInput(ctx context.Context, callerID int64, in *TransactionInput) (*models.BudgetCategory, error) {
	if err := validation.ValidateAmount(in.Amount); err != nil {
		return nil, invalid(err)
	}
	in.Amount = in.Amount.Round(validation.AmountDecimalPlaces)

	if err := validation.ValidateDescription(in.Description); err != nil {
		return nil, invalid(err)
	}

	if in.Date.IsZero() {
		return nil, invalid(validation.ValidationError{Field: "date", Message: "date is required"})
	}
	in.Date = NormalizeDate(in.Date)

	txType, err := models.ParseTransactionType(string(in.Type))
	if err != nil {
		return nil, invalid(validation.ValidationError{Field: "type", Message: "type must be income or expense"})
	}
	in.Type = txType

	if in.CategoryID <= 0 {
		return nil, invalid(validation.ValidationError{Field: "category", Message: "category is required"})
	}
	category, err := s.visibleCategory(ctx, callerID, in.CategoryID)
	if errors.Is(err, ErrCategoryNotFound) {
		return nil, invalid(validation.ValidationError{Field: "category", Message: "category does not exist"})
	}
	if err != nil {
		return nil, err
	}
	return category, nil
}

// NormalizeDate truncates t to midnight UTC of its calendar day
func NormalizeDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
