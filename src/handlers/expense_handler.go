package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/username/spendwise/backend/src/config"
	"github.com/username/spendwise/backend/src/database"
	"github.com/username/spendwise/backend/src/logger"
	"github.com/username/spendwise/backend/src/models"
	"github.com/username/spendwise/backend/src/security/validation"
	"github.com/username/spendwise/backend/src/services"
	"github.com/username/spendwise/backend/src/utils"
)

type ExpenseHandler struct {
	reportService *services.ReportService
	importService *services.ImportService
}

func NewExpenseHandler(reportService *services.ReportService, importService *services.ImportService) *ExpenseHandler {
	return &ExpenseHandler{
		reportService: reportService,
		importService: importService,
	}
}

type expenseRequest struct {
	Amount   json.Number `json:"amount"`
	Date     string      `json:"date"`
	Note     *string     `json:"note"`
	Category *string     `json:"category"`
}

// parseExpenseInput validates the request body shared by create and update.
func parseExpenseInput(req expenseRequest) (models.ExpenseInput, validation.Errors) {
	errs := validation.Errors{}
	var input models.ExpenseInput

	if req.Amount.String() == "" {
		errs.Add("amount", "Amount is required")
	} else {
		cents, err := utils.ParseCents(req.Amount.String())
		if err != nil {
			errs.Add("amount", "Amount must be a positive number")
		} else {
			input.AmountCents = cents
		}
	}

	if errs.Require("date", req.Date, "Date is required") {
		if _, err := utils.ParseDate(req.Date); err != nil {
			errs.Add("date", "Date must be in YYYY-MM-DD format")
		} else {
			input.Date = req.Date
		}
	}

	if req.Note != nil {
		if note := validation.SanitizeText(*req.Note); note != "" {
			input.Note = &note
		}
	}
	if req.Category != nil {
		if name := validation.SanitizeText(*req.Category); name != "" {
			input.CategoryName = &name
		}
	}
	return input, errs
}

// HandleList returns one page of the user's expenses.
func (h *ExpenseHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	page := 1
	if pageStr := r.URL.Query().Get("page"); pageStr != "" {
		if parsed, err := strconv.Atoi(pageStr); err == nil && parsed > 0 {
			page = parsed
		}
	}

	expenses, err := models.ListExpensesPage(database.DB, userID, page, config.Cfg.ExpensePageSize)
	if err != nil {
		logger.L.Error("Error listing expenses", "userID", userID, "error", err)
		utils.SendJSONError(w, "Error retrieving expenses", http.StatusInternalServerError)
		return
	}

	utils.SendJSONSuccess(w, map[string]interface{}{"expenses": expenses}, "Records retrieved successfully.", http.StatusOK)
}

// HandleCreate stores a new expense and returns the refreshed first page.
func (h *ExpenseHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	var req expenseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	input, errs := parseExpenseInput(req)
	if errs.Any() {
		utils.SendValidationErrors(w, errs)
		return
	}

	if _, err := models.CreateExpense(database.DB, userID, input); err != nil {
		logger.L.Error("Error creating expense", "userID", userID, "error", err)
		utils.SendJSONError(w, "Error saving expense", http.StatusInternalServerError)
		return
	}
	h.reportService.InvalidateUserCache(userID)

	expenses, err := models.ListExpensesPage(database.DB, userID, 1, config.Cfg.ExpensePageSize)
	if err != nil {
		logger.L.Error("Error listing expenses after create", "userID", userID, "error", err)
		utils.SendJSONError(w, "Error retrieving expenses", http.StatusInternalServerError)
		return
	}

	utils.SendJSONSuccess(w, map[string]interface{}{"expenses": expenses}, "Record added successfully.", http.StatusOK)
}

// HandleGet fetches one expense. Ownership is part of the lookup, so another
// user's expense id is a plain 404.
func (h *ExpenseHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	expenseID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		utils.SendJSONError(w, "Record not found.", http.StatusNotFound)
		return
	}

	expense, err := models.GetExpense(database.DB, userID, expenseID)
	if err != nil {
		if err == models.ErrExpenseNotFound {
			utils.SendJSONError(w, "Record not found.", http.StatusNotFound)
			return
		}
		logger.L.Error("Error fetching expense", "userID", userID, "expenseID", expenseID, "error", err)
		utils.SendJSONError(w, "Error retrieving expense", http.StatusInternalServerError)
		return
	}

	utils.SendJSONSuccess(w, map[string]interface{}{"expense": expense}, "Record retrieved successfully.", http.StatusOK)
}

func (h *ExpenseHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	expenseID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		utils.SendJSONError(w, "Record not found.", http.StatusNotFound)
		return
	}

	var req expenseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	input, errs := parseExpenseInput(req)
	if errs.Any() {
		utils.SendValidationErrors(w, errs)
		return
	}

	expense, err := models.UpdateExpense(database.DB, userID, expenseID, input)
	if err != nil {
		if err == models.ErrExpenseNotFound {
			utils.SendJSONError(w, "Record not found.", http.StatusNotFound)
			return
		}
		logger.L.Error("Error updating expense", "userID", userID, "expenseID", expenseID, "error", err)
		utils.SendJSONError(w, "Error updating expense", http.StatusInternalServerError)
		return
	}
	h.reportService.InvalidateUserCache(userID)

	utils.SendJSONSuccess(w, map[string]interface{}{"expense": expense}, "Record updated successfully.", http.StatusOK)
}

func (h *ExpenseHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	expenseID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		utils.SendJSONError(w, "Record not found.", http.StatusNotFound)
		return
	}

	if err := models.DeleteExpense(database.DB, userID, expenseID); err != nil {
		if err == models.ErrExpenseNotFound {
			utils.SendJSONError(w, "Record not found.", http.StatusNotFound)
			return
		}
		logger.L.Error("Error deleting expense", "userID", userID, "expenseID", expenseID, "error", err)
		utils.SendJSONError(w, "Error deleting expense", http.StatusInternalServerError)
		return
	}
	h.reportService.InvalidateUserCache(userID)

	utils.SendJSONSuccess(w, "", "Record deleted successfully.", http.StatusOK)
}

const maxImportSizeBytes = 5 << 20

// HandleImport loads expenses from an uploaded CSV file.
func (h *ExpenseHandler) HandleImport(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxImportSizeBytes)
	if err := r.ParseMultipartForm(maxImportSizeBytes); err != nil {
		utils.SendJSONError(w, "Invalid upload: expected multipart form with a 'file' field", http.StatusBadRequest)
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		utils.SendJSONError(w, "Invalid upload: missing 'file' field", http.StatusBadRequest)
		return
	}
	defer file.Close()

	result, err := h.importService.ImportExpenses(userID, file)
	if err != nil {
		logger.L.Error("CSV import failed", "userID", userID, "error", err)
		utils.SendJSONError(w, "Could not read the uploaded CSV file", http.StatusBadRequest)
		return
	}

	utils.SendJSONSuccess(w, result, "Import completed.", http.StatusOK)
}
