package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"familybudget/internal/database"
	"familybudget/internal/models"
)

// CategoryRepository handles database operations for budget categories
type CategoryRepository struct {
	db database.DBTX
}

// NewCategoryRepository creates a new category repository
func NewCategoryRepository(db database.DBTX) *CategoryRepository {
	return &CategoryRepository{db: db}
}

// CreateCategory inserts a category owned by userID
func (r *CategoryRepository) CreateCategory(ctx context.Context, userID int64, name, description string) (*models.BudgetCategory, error) {
	query := "INSERT INTO budget_categories (user_id, name, description) VALUES (?, ?, ?)"
	id, err := r.db.ExecReturningID(ctx, query, userID, name, description)
	if err != nil {
		return nil, fmt.Errorf("failed to create category: %w", err)
	}

	return &models.BudgetCategory{
		ID:          id,
		UserID:      userID,
		Name:        name,
		Description: description,
	}, nil
}

// GetCategoryByID retrieves a category regardless of owner
func (r *CategoryRepository) GetCategoryByID(ctx context.Context, id int64) (*models.BudgetCategory, error) {
	query := "SELECT id, user_id, name, description FROM budget_categories WHERE id = ?"
	c := &models.BudgetCategory{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(&c.ID, &c.UserID, &c.Name, &c.Description)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get category: %w", err)
	}
	return c, nil
}

// ListByOwners returns the categories created by any of userIDs
func (r *CategoryRepository) ListByOwners(ctx context.Context, userIDs []int64) ([]models.BudgetCategory, error) {
	categories := []models.BudgetCategory{}
	if len(userIDs) == 0 {
		return categories, nil
	}

	placeholders, args := inClause(userIDs)
	query := "SELECT id, user_id, name, description FROM budget_categories WHERE user_id IN (" + placeholders + ") ORDER BY name, id"
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var c models.BudgetCategory
		if err := rows.Scan(&c.ID, &c.UserID, &c.Name, &c.Description); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate categories: %w", err)
	}

	return categories, nil
}

// UpdateCategory rewrites the mutable fields of a category
func (r *CategoryRepository) UpdateCategory(ctx context.Context, id int64, name, description string) error {
	query := "UPDATE budget_categories SET name = ?, description = ? WHERE id = ?"
	if _, err := r.db.ExecContext(ctx, query, name, description, id); err != nil {
		return fmt.Errorf("failed to update category: %w", err)
	}
	return nil
}

// DeleteCategory removes a category and, by cascade, its transactions
func (r *CategoryRepository) DeleteCategory(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM budget_categories WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete category: %w", err)
	}
	return nil
}

// inClause renders "?, ?, ?" for ids along with the matching args
func inClause(ids []int64) (string, []any) {
	marks := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		marks[i] = "?"
		args[i] = id
	}
	return strings.Join(marks, ", "), args
}
