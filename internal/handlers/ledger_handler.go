package handlers

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"familybudget/internal/models"
	"familybudget/internal/repository"
	"familybudget/internal/service"
	"familybudget/internal/validation"
)

// LedgerHandler serves categories, transactions and the ledger summary
type LedgerHandler struct {
	ledgerService *service.LedgerService
	logger        *logrus.Logger
}

// NewLedgerHandler creates a new ledger handler
func NewLedgerHandler(ledgerService *service.LedgerService, logger *logrus.Logger) *LedgerHandler {
	return &LedgerHandler{
		ledgerService: ledgerService,
		logger:        logger,
	}
}

func invalidField(field, message string) error {
	return fmt.Errorf("%w: %w", service.ErrInvalidArgument, validation.ValidationError{Field: field, Message: message})
}

// ListCategories lists the categories visible to the caller
func (h *LedgerHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())

	categories, err := h.ledgerService.ListCategories(r.Context(), userID)
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}
	if categories == nil {
		categories = []models.BudgetCategory{}
	}

	respondJSON(w, h.logger, http.StatusOK, categories)
}

type categoryRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (req categoryRequest) input() service.CategoryInput {
	return service.CategoryInput{Name: req.Name, Description: req.Description}
}

// CreateCategory creates a category owned by the caller
func (h *LedgerHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())

	var req categoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondBadRequest(w, h.logger, err.Error())
		return
	}

	category, err := h.ledgerService.CreateCategory(r.Context(), userID, req.input())
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}

	respondJSON(w, h.logger, http.StatusCreated, category)
}

// GetCategory returns one visible category
func (h *LedgerHandler) GetCategory(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())
	categoryID, err := pathID(r)
	if err != nil {
		respondWithError(w, r, h.logger, service.ErrCategoryNotFound)
		return
	}

	category, err := h.ledgerService.GetCategory(r.Context(), userID, categoryID)
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}

	respondJSON(w, h.logger, http.StatusOK, category)
}

// UpdateCategory replaces a category's name and description (creator only)
func (h *LedgerHandler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())
	categoryID, err := pathID(r)
	if err != nil {
		respondWithError(w, r, h.logger, service.ErrCategoryNotFound)
		return
	}

	var req categoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondBadRequest(w, h.logger, err.Error())
		return
	}

	category, err := h.ledgerService.UpdateCategory(r.Context(), userID, categoryID, req.input())
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}

	respondJSON(w, h.logger, http.StatusOK, category)
}

// DeleteCategory removes a category and its transactions (creator only)
func (h *LedgerHandler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())
	categoryID, err := pathID(r)
	if err != nil {
		respondWithError(w, r, h.logger, service.ErrCategoryNotFound)
		return
	}

	if err := h.ledgerService.DeleteCategory(r.Context(), userID, categoryID); err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type transactionRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	Date        string          `json:"date"`
	Category    int64           `json:"category"`
	Type        string          `json:"type"`
}

func (req transactionRequest) input() (service.TransactionInput, error) {
	in := service.TransactionInput{
		Amount:      req.Amount,
		Description: req.Description,
		CategoryID:  req.Category,
		Type:        models.TransactionType(req.Type),
	}
	if req.Date != "" {
		date, err := time.Parse(models.DateLayout, req.Date)
		if err != nil {
			return in, invalidField("date", "date must be formatted YYYY-MM-DD")
		}
		in.Date = date
	}
	return in, nil
}

type transactionResponse struct {
	models.Transaction
	Date string `json:"date"`
}

func newTransactionResponse(t *models.Transaction) transactionResponse {
	return transactionResponse{Transaction: *t, Date: t.DateString()}
}

// parseTransactionFilter reads the list and summary query parameters
func parseTransactionFilter(query url.Values) (repository.TransactionFilter, error) {
	var filter repository.TransactionFilter

	if raw := query.Get("category"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return filter, invalidField("category", "category must be an integer")
		}
		filter.CategoryID = &id
	}

	if raw := query.Get("type"); raw != "" {
		txType, err := models.ParseTransactionType(raw)
		if err != nil {
			return filter, invalidField("type", "type must be income or expense")
		}
		filter.Type = &txType
	}

	for _, p := range []struct {
		name string
		dst  **time.Time
	}{
		{"date_from", &filter.DateFrom},
		{"date_to", &filter.DateTo},
	} {
		raw := query.Get(p.name)
		if raw == "" {
			continue
		}
		date, err := time.Parse(models.DateLayout, raw)
		if err != nil {
			return filter, invalidField(p.name, "date must be formatted YYYY-MM-DD")
		}
		date = service.NormalizeDate(date)
		*p.dst = &date
	}

	for _, p := range []struct {
		name string
		dst  **decimal.Decimal
	}{
		{"amount_min", &filter.AmountMin},
		{"amount_max", &filter.AmountMax},
	} {
		raw := query.Get(p.name)
		if raw == "" {
			continue
		}
		amount, err := decimal.NewFromString(raw)
		if err != nil {
			return filter, invalidField(p.name, "amount must be a number")
		}
		*p.dst = &amount
	}

	return filter, nil
}

// ListTransactions lists the caller's family transactions, newest first
func (h *LedgerHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())

	filter, err := parseTransactionFilter(r.URL.Query())
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}

	transactions, err := h.ledgerService.ListTransactions(r.Context(), userID, filter)
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}

	response := make([]transactionResponse, 0, len(transactions))
	for i := range transactions {
		response = append(response, newTransactionResponse(&transactions[i]))
	}
	respondJSON(w, h.logger, http.StatusOK, response)
}

// CreateTransaction records a transaction under the caller's membership
func (h *LedgerHandler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())

	var req transactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondBadRequest(w, h.logger, err.Error())
		return
	}
	in, err := req.input()
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}

	transaction, err := h.ledgerService.CreateTransaction(r.Context(), userID, in)
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}

	respondJSON(w, h.logger, http.StatusCreated, newTransactionResponse(transaction))
}

// GetTransaction returns one visible transaction
func (h *LedgerHandler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())
	transactionID, err := pathID(r)
	if err != nil {
		respondWithError(w, r, h.logger, service.ErrTransactionNotFound)
		return
	}

	transaction, err := h.ledgerService.GetTransaction(r.Context(), userID, transactionID)
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}

	respondJSON(w, h.logger, http.StatusOK, newTransactionResponse(transaction))
}

// UpdateTransaction replaces the editable fields (recorder only)
func (h *LedgerHandler) UpdateTransaction(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())
	transactionID, err := pathID(r)
	if err != nil {
		respondWithError(w, r, h.logger, service.ErrTransactionNotFound)
		return
	}

	var req transactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondBadRequest(w, h.logger, err.Error())
		return
	}
	in, err := req.input()
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}

	transaction, err := h.ledgerService.UpdateTransaction(r.Context(), userID, transactionID, in)
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}

	respondJSON(w, h.logger, http.StatusOK, newTransactionResponse(transaction))
}

// DeleteTransaction removes a transaction (recorder only)
func (h *LedgerHandler) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())
	transactionID, err := pathID(r)
	if err != nil {
		respondWithError(w, r, h.logger, service.ErrTransactionNotFound)
		return
	}

	if err := h.ledgerService.DeleteTransaction(r.Context(), userID, transactionID); err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Summary totals income and expense over the filtered ledger
func (h *LedgerHandler) Summary(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())

	filter, err := parseTransactionFilter(r.URL.Query())
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}

	summary, err := h.ledgerService.Summary(r.Context(), userID, filter)
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}

	respondJSON(w, h.logger, http.StatusOK, summary)
}
