package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/username/spendwise/backend/src/database"
	"github.com/username/spendwise/backend/src/logger"
	"github.com/username/spendwise/backend/src/models"
	"github.com/username/spendwise/backend/src/security/validation"
	"github.com/username/spendwise/backend/src/utils"
)

type IncomeHandler struct{}

func NewIncomeHandler() *IncomeHandler {
	return &IncomeHandler{}
}

func (h *IncomeHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	incomes, err := models.ListIncome(database.DB, userID)
	if err != nil {
		logger.L.Error("Error listing income", "userID", userID, "error", err)
		utils.SendJSONError(w, "Error retrieving income", http.StatusInternalServerError)
		return
	}
	utils.SendJSONSuccess(w, map[string]interface{}{"income": incomes}, "Records retrieved successfully.", http.StatusOK)
}

func (h *IncomeHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	var req struct {
		Amount json.Number `json:"amount"`
		Date   string      `json:"date"`
		Source *string     `json:"source"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	errs := validation.Errors{}
	var input models.IncomeInput
	if req.Amount.String() == "" {
		errs.Add("amount", "Amount is required")
	} else if cents, err := utils.ParseCents(req.Amount.String()); err != nil {
		errs.Add("amount", "Amount must be a positive number")
	} else {
		input.AmountCents = cents
	}
	if errs.Require("date", req.Date, "Date is required") {
		if _, err := utils.ParseDate(req.Date); err != nil {
			errs.Add("date", "Date must be in YYYY-MM-DD format")
		} else {
			input.Date = req.Date
		}
	}
	if req.Source != nil {
		if source := validation.SanitizeText(*req.Source); source != "" {
			input.Source = &source
		}
	}
	if errs.Any() {
		utils.SendValidationErrors(w, errs)
		return
	}

	income, err := models.CreateIncome(database.DB, userID, input)
	if err != nil {
		logger.L.Error("Error creating income", "userID", userID, "error", err)
		utils.SendJSONError(w, "Error saving income", http.StatusInternalServerError)
		return
	}
	utils.SendJSONSuccess(w, map[string]interface{}{"income": income}, "Record added successfully.", http.StatusOK)
}
