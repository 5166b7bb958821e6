package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/username/spendwise/backend/src/logger"
	"github.com/username/spendwise/backend/src/security/validation"
	"github.com/username/spendwise/backend/src/services"
	"github.com/username/spendwise/backend/src/utils"
)

type ReportHandler struct {
	reportService *services.ReportService
}

func NewReportHandler(reportService *services.ReportService) *ReportHandler {
	return &ReportHandler{
		reportService: reportService,
	}
}

// HandleYearReport returns the aggregation for the current calendar year.
func (h *ReportHandler) HandleYearReport(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	result, err := h.reportService.YearReport(userID)
	if err != nil {
		logger.L.Error("Error building year report", "userID", userID, "error", err)
		utils.SendJSONError(w, "Error building report", http.StatusInternalServerError)
		return
	}

	utils.SendJSONSuccess(w, result, "Records retrieved successfully.", http.StatusOK)
}

type filterRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// HandleFilterReport returns the aggregation for a caller-supplied date range.
// The range is validated before any query executes.
func (h *ReportHandler) HandleFilterReport(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	var req filterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	errs := validation.Errors{}
	var from, to time.Time
	var err error
	if errs.Require("from", req.From, "The from date is required") {
		if from, err = utils.ParseDate(req.From); err != nil {
			errs.Add("from", "The from date must be in YYYY-MM-DD format")
		}
	}
	if errs.Require("to", req.To, "The to date is required") {
		if to, err = utils.ParseDate(req.To); err != nil {
			errs.Add("to", "The to date must be in YYYY-MM-DD format")
		}
	}
	if !errs.Any() && from.After(to) {
		errs.Add("from", "The from date must be before or equal to the to date")
	}
	if errs.Any() {
		utils.SendValidationErrors(w, errs)
		return
	}

	result, err := h.reportService.RangeReport(userID, from, to)
	if err != nil {
		logger.L.Error("Error building filtered report", "userID", userID, "error", err)
		utils.SendJSONError(w, "Error building report", http.StatusInternalServerError)
		return
	}

	utils.SendJSONSuccess(w, result, "Records retrieved successfully.", http.StatusOK)
}

// HandleDashboard returns the dashboard summary.
func (h *ReportHandler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	summary, err := h.reportService.DashboardSummary(userID)
	if err != nil {
		logger.L.Error("Error building dashboard summary", "userID", userID, "error", err)
		utils.SendJSONError(w, "Error building dashboard", http.StatusInternalServerError)
		return
	}

	utils.SendJSONSuccess(w, summary, "Records retrieved successfully.", http.StatusOK)
}
