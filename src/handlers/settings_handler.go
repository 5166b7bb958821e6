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

type SettingsHandler struct{}

func NewSettingsHandler() *SettingsHandler {
	return &SettingsHandler{}
}

func (h *SettingsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	settings, err := models.GetSettings(database.DB, userID)
	if err != nil {
		logger.L.Error("Error loading settings", "userID", userID, "error", err)
		utils.SendJSONError(w, "Error retrieving settings", http.StatusInternalServerError)
		return
	}
	utils.SendJSONSuccess(w, settings, "Records retrieved successfully.", http.StatusOK)
}

func (h *SettingsHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	var req struct {
		Currency string `json:"currency"`
		DarkMode bool   `json:"dark_mode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	errs := validation.Errors{}
	if errs.Require("currency", req.Currency, "Currency is required") && len(req.Currency) != 3 {
		errs.Add("currency", "Currency must be a 3-letter code")
	}
	if errs.Any() {
		utils.SendValidationErrors(w, errs)
		return
	}

	settings, err := models.UpdateSettings(database.DB, userID, req.Currency, req.DarkMode)
	if err != nil {
		logger.L.Error("Error updating settings", "userID", userID, "error", err)
		utils.SendJSONError(w, "Error updating settings", http.StatusInternalServerError)
		return
	}
	utils.SendJSONSuccess(w, settings, "Settings updated successfully.", http.StatusOK)
}
