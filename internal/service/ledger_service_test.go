package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"familybudget/internal/models"
	"familybudget/internal/repository"
	"familybudget/internal/validation"
)

func validTransaction(categoryID int64) TransactionInput {
	return TransactionInput{
		Amount:     decimal.RequireFromString("12.50"),
		Date:       time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
		CategoryID: categoryID,
	}
}

func TestCategoryScoping(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, members := f.family(t, "Smiths", 1)
	b := members[0]
	outsider, _ := f.family(t, "Jones", 0)

	category, err := f.ledger.CreateCategory(ctx, b, CategoryInput{Name: "Groceries", Description: "weekly shop"})
	require.NoError(t, err)
	assert.Equal(t, b, category.UserID)

	listed, err := f.ledger.ListCategories(ctx, a)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, category.ID, listed[0].ID)

	outsiderList, err := f.ledger.ListCategories(ctx, outsider)
	require.NoError(t, err)
	assert.Empty(t, outsiderList)

	_, err = f.ledger.GetCategory(ctx, outsider, category.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	err = f.ledger.DeleteCategory(ctx, a, category.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.ledger.UpdateCategory(ctx, a, category.ID, CategoryInput{Name: "Mine now"})
	assert.ErrorIs(t, err, ErrForbidden)

	err = f.ledger.DeleteCategory(ctx, outsider, category.ID)
	assert.ErrorIs(t, err, ErrNotFound, "out-of-scope rows are reported as missing")

	require.NoError(t, f.ledger.DeleteCategory(ctx, b, category.ID))

	listed, err = f.ledger.ListCategories(ctx, a)
	require.NoError(t, err)
	assert.Empty(t, listed)
}

func TestCategoryCreateRequiresMembership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.ledger.CreateCategory(ctx, f.user(t, "loner"), CategoryInput{Name: "Food"})
	assert.ErrorIs(t, err, ErrForbidden)

	owner, _ := f.family(t, "Smiths", 0)
	_, err = f.ledger.CreateCategory(ctx, owner, CategoryInput{Name: "  "})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestCategoriesFollowRoster(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, members := f.family(t, "Smiths", 1)
	b := members[0]

	category, err := f.ledger.CreateCategory(ctx, b, CategoryInput{Name: "Hobbies"})
	require.NoError(t, err)

	require.NoError(t, f.members.Leave(ctx, b))

	listed, err := f.ledger.ListCategories(ctx, a)
	require.NoError(t, err)
	assert.Empty(t, listed, "categories of former members drop out of the family view")

	mine, err := f.ledger.ListCategories(ctx, b)
	require.NoError(t, err)
	require.Len(t, mine, 1, "an unaffiliated user still sees their own categories")
	assert.Equal(t, category.ID, mine[0].ID)

	updated, err := f.ledger.UpdateCategory(ctx, b, category.ID, CategoryInput{Name: "Hobbies & fun", Description: "misc"})
	require.NoError(t, err)
	assert.Equal(t, "Hobbies & fun", updated.Name)
}

func TestCreateTransaction(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, members := f.family(t, "Smiths", 1)
	b := members[0]

	category, err := f.ledger.CreateCategory(ctx, a, CategoryInput{Name: "Rent"})
	require.NoError(t, err)

	in := validTransaction(category.ID)
	in.Date = time.Date(2024, 3, 15, 18, 30, 0, 0, time.FixedZone("X", 3*3600))
	in.Description = "March"
	created, err := f.ledger.CreateTransaction(ctx, b, in)
	require.NoError(t, err)

	bMembership := f.membership(t, b)
	assert.Equal(t, b, created.UserID)
	require.NotNil(t, created.MemberID)
	assert.Equal(t, bMembership.ID, *created.MemberID)
	assert.Equal(t, bMembership.FamilyID, created.FamilyID)
	assert.Equal(t, models.TransactionExpense, created.Type, "type defaults to expense")
	assert.Equal(t, "2024-03-15", created.DateString())

	fetched, err := f.ledger.GetTransaction(ctx, a, created.ID)
	require.NoError(t, err)
	assert.True(t, fetched.Amount.Equal(decimal.RequireFromString("12.50")), "amount = %s", fetched.Amount)
	assert.Equal(t, "Rent", fetched.CategoryName)
	assert.Equal(t, "2024-03-15", fetched.DateString())
	assert.Equal(t, "March", fetched.Description)
}

func TestCreateTransactionValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, _ := f.family(t, "Smiths", 0)
	other, _ := f.family(t, "Jones", 0)

	category, err := f.ledger.CreateCategory(ctx, a, CategoryInput{Name: "Food"})
	require.NoError(t, err)
	foreign, err := f.ledger.CreateCategory(ctx, other, CategoryInput{Name: "Theirs"})
	require.NoError(t, err)

	tests := []struct {
		name  string
		edit  func(in *TransactionInput)
		field string
	}{
		{name: "zero amount", edit: func(in *TransactionInput) { in.Amount = decimal.Zero }, field: "amount"},
		{name: "negative amount", edit: func(in *TransactionInput) { in.Amount = decimal.RequireFromString("-3") }, field: "amount"},
		{name: "sub-cent amount", edit: func(in *TransactionInput) { in.Amount = decimal.RequireFromString("0.001") }, field: "amount"},
		{name: "missing date", edit: func(in *TransactionInput) { in.Date = time.Time{} }, field: "date"},
		{name: "bad type", edit: func(in *TransactionInput) { in.Type = "refund" }, field: "type"},
		{name: "missing category", edit: func(in *TransactionInput) { in.CategoryID = 0 }, field: "category"},
		{name: "invisible category", edit: func(in *TransactionInput) { in.CategoryID = foreign.ID }, field: "category"},
		{name: "long description", edit: func(in *TransactionInput) {
			in.Description = strings.Repeat("d", validation.MaxDescriptionLength+1)
		}, field: "description"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validTransaction(category.ID)
			tt.edit(&in)

			_, err := f.ledger.CreateTransaction(ctx, a, in)
			require.ErrorIs(t, err, ErrInvalidArgument)

			var verr validation.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}

	_, err = f.ledger.CreateTransaction(ctx, f.user(t, "loner"), validTransaction(category.ID))
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestTransactionVisibilityAndOwnership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, members := f.family(t, "Smiths", 1)
	b := members[0]
	outsider, _ := f.family(t, "Jones", 0)
	loner := f.user(t, "loner")

	category, err := f.ledger.CreateCategory(ctx, b, CategoryInput{Name: "Fuel"})
	require.NoError(t, err)
	created, err := f.ledger.CreateTransaction(ctx, b, validTransaction(category.ID))
	require.NoError(t, err)

	_, err = f.ledger.GetTransaction(ctx, outsider, created.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.ledger.GetTransaction(ctx, loner, created.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	listed, err := f.ledger.ListTransactions(ctx, loner, repository.TransactionFilter{})
	require.NoError(t, err)
	assert.Empty(t, listed)

	_, err = f.ledger.UpdateTransaction(ctx, a, created.ID, validTransaction(category.ID))
	assert.ErrorIs(t, err, ErrForbidden)
	assert.ErrorIs(t, f.ledger.DeleteTransaction(ctx, a, created.ID), ErrForbidden)
	assert.ErrorIs(t, f.ledger.DeleteTransaction(ctx, outsider, created.ID), ErrNotFound)

	in := validTransaction(category.ID)
	in.Amount = decimal.RequireFromString("99.99")
	in.Type = models.TransactionIncome
	updated, err := f.ledger.UpdateTransaction(ctx, b, created.ID, in)
	require.NoError(t, err)
	assert.Equal(t, models.TransactionIncome, updated.Type)

	fetched, err := f.ledger.GetTransaction(ctx, a, created.ID)
	require.NoError(t, err)
	assert.True(t, fetched.Amount.Equal(decimal.RequireFromString("99.99")))
	assert.Equal(t, models.TransactionIncome, fetched.Type)

	require.NoError(t, f.ledger.DeleteTransaction(ctx, b, created.ID))
	_, err = f.ledger.GetTransaction(ctx, b, created.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListTransactionsFilters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, _ := f.family(t, "Smiths", 0)

	food, err := f.ledger.CreateCategory(ctx, a, CategoryInput{Name: "Food"})
	require.NoError(t, err)
	salary, err := f.ledger.CreateCategory(ctx, a, CategoryInput{Name: "Salary"})
	require.NoError(t, err)

	day := func(d int) time.Time { return time.Date(2024, 5, d, 0, 0, 0, 0, time.UTC) }
	entries := []TransactionInput{
		{Amount: decimal.RequireFromString("10.00"), Date: day(1), CategoryID: food.ID},
		{Amount: decimal.RequireFromString("25.50"), Date: day(10), CategoryID: food.ID},
		{Amount: decimal.RequireFromString("2000"), Date: day(15), CategoryID: salary.ID, Type: models.TransactionIncome},
		{Amount: decimal.RequireFromString("7.25"), Date: day(20), CategoryID: food.ID},
	}
	for _, in := range entries {
		_, err := f.ledger.CreateTransaction(ctx, a, in)
		require.NoError(t, err)
	}

	ptr := func(v time.Time) *time.Time { return &v }
	dec := func(s string) *decimal.Decimal { d := decimal.RequireFromString(s); return &d }
	income := models.TransactionIncome

	tests := []struct {
		name   string
		filter repository.TransactionFilter
		want   int
	}{
		{name: "no filter", filter: repository.TransactionFilter{}, want: 4},
		{name: "by category", filter: repository.TransactionFilter{CategoryID: &food.ID}, want: 3},
		{name: "by type", filter: repository.TransactionFilter{Type: &income}, want: 1},
		{name: "date range inclusive", filter: repository.TransactionFilter{DateFrom: ptr(day(10)), DateTo: ptr(day(15))}, want: 2},
		{name: "amount range", filter: repository.TransactionFilter{AmountMin: dec("8"), AmountMax: dec("30")}, want: 2},
		{name: "combined", filter: repository.TransactionFilter{CategoryID: &food.ID, DateFrom: ptr(day(5))}, want: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.ledger.ListTransactions(ctx, a, tt.filter)
			require.NoError(t, err)
			assert.Len(t, got, tt.want)
		})
	}

	all, err := f.ledger.ListTransactions(ctx, a, repository.TransactionFilter{})
	require.NoError(t, err)
	assert.Equal(t, "2024-05-20", all[0].DateString(), "newest first")

	summary, err := f.ledger.Summary(ctx, a, repository.TransactionFilter{})
	require.NoError(t, err)
	assert.Equal(t, "2000.00", summary.Income.StringFixed(2))
	assert.Equal(t, "42.75", summary.Expense.StringFixed(2))
	assert.Equal(t, "1957.25", summary.Balance.StringFixed(2))
	assert.Equal(t, 4, summary.Count)

	empty, err := f.ledger.Summary(ctx, f.user(t, "loner"), repository.TransactionFilter{})
	require.NoError(t, err)
	assert.True(t, empty.Balance.IsZero())
}
