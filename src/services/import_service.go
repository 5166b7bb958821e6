package services

import (
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/username/spendwise/backend/src/logger"
	"github.com/username/spendwise/backend/src/models"
	"github.com/username/spendwise/backend/src/security/validation"
	"github.com/username/spendwise/backend/src/utils"
)

// ImportResult reports what a CSV import did: rows created plus a message per
// skipped line.
type ImportResult struct {
	Imported int      `json:"imported"`
	Errors   []string `json:"errors"`
}

// ImportService loads expenses from an uploaded CSV with columns
// date,amount,category,note. Category and note may be empty; a header row is
// detected and skipped.
type ImportService struct {
	db            *sql.DB
	reportService *ReportService
}

func NewImportService(db *sql.DB, reportService *ReportService) *ImportService {
	return &ImportService{
		db:            db,
		reportService: reportService,
	}
}

func (s *ImportService) ImportExpenses(userID int64, fileReader io.Reader) (*ImportResult, error) {
	reader := csv.NewReader(fileReader)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	result := &ImportResult{Errors: []string{}}
	line := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading CSV: %w", err)
		}
		line++

		if line == 1 && looksLikeHeader(record) {
			continue
		}
		if len(record) < 2 {
			result.Errors = append(result.Errors, fmt.Sprintf("line %d: expected at least date and amount", line))
			continue
		}

		dateStr := strings.TrimSpace(record[0])
		if _, err := utils.ParseDate(dateStr); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("line %d: invalid date %q", line, dateStr))
			continue
		}

		cents, err := utils.ParseCents(record[1])
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("line %d: invalid amount %q", line, record[1]))
			continue
		}

		input := models.ExpenseInput{
			AmountCents: cents,
			Date:        dateStr,
		}
		if len(record) > 2 {
			if name := validation.SanitizeText(record[2]); name != "" {
				input.CategoryName = &name
			}
		}
		if len(record) > 3 {
			if note := validation.SanitizeText(record[3]); note != "" {
				input.Note = &note
			}
		}

		if _, err := models.CreateExpense(s.db, userID, input); err != nil {
			logger.L.Error("CSV import insert failed", "userID", userID, "line", line, "error", err)
			result.Errors = append(result.Errors, fmt.Sprintf("line %d: could not save expense", line))
			continue
		}
		result.Imported++
	}

	if result.Imported > 0 {
		s.reportService.InvalidateUserCache(userID)
	}
	return result, nil
}

func looksLikeHeader(record []string) bool {
	if len(record) == 0 {
		return false
	}
	first := strings.ToLower(strings.TrimSpace(record[0]))
	return first == "date"
}
