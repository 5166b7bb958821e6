package services

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/username/spendwise/backend/src/logger"
	"github.com/username/spendwise/backend/src/models"
	"github.com/username/spendwise/backend/src/utils"
)

// CategoryTotal is a per-category sum. The report always carries one entry for
// every category the user owns, so zero-expense categories show up with 0.
type CategoryTotal struct {
	ID       int64   `json:"id"`
	Category string  `json:"category"`
	Total    float64 `json:"total"`
}

// ReportResult is the composed response of the reporting endpoints: ordered
// month buckets with "0.00" gap fill, full category coverage, and the raw
// matching expenses newest first.
type ReportResult struct {
	ExpensesPerMonth    []map[string]string `json:"expensesPerMonth"`
	ExpensesPerCategory []CategoryTotal     `json:"expensesPerCategory"`
	ExpenseList         []models.Expense    `json:"wholeYearExpenses"`
}

// DashboardSummary is the lighter aggregation backing the dashboard page.
type DashboardSummary struct {
	TotalExpenses       float64          `json:"totalExpenses"`
	MonthlyExpenses     float64          `json:"monthlyExpenses"`
	CategoriesUsed      int64            `json:"categoriesUsed"`
	ExpensesPerCategory []CategoryTotal  `json:"expensesPerCategory"`
	RecentExpenses      []models.Expense `json:"recentExpenses"`
}

// ReportService computes the expense aggregations. The clock is injected so
// "current year" and "current month" views are deterministic under test, and
// results are cached until the next expense write.
type ReportService struct {
	db          *sql.DB
	now         func() time.Time
	reportCache *cache.Cache
}

func NewReportService(db *sql.DB, now func() time.Time, reportCache *cache.Cache) *ReportService {
	return &ReportService{
		db:          db,
		now:         now,
		reportCache: reportCache,
	}
}

func dashboardCacheKey(userID int64) string {
	return fmt.Sprintf("dashboard:%d", userID)
}

func yearReportCacheKey(userID int64, year int) string {
	return fmt.Sprintf("report:year:%d:%d", userID, year)
}

// InvalidateUserCache drops the user's cached aggregations. Called after every
// expense write.
func (s *ReportService) InvalidateUserCache(userID int64) {
	if s.reportCache == nil {
		return
	}
	s.reportCache.Delete(dashboardCacheKey(userID))
	s.reportCache.Delete(yearReportCacheKey(userID, s.now().Year()))
	logger.L.Debug("Invalidated report caches for user", "userID", userID)
}

// YearReport builds the report for the current calendar year.
func (s *ReportService) YearReport(userID int64) (*ReportResult, error) {
	year := s.now().Year()
	key := yearReportCacheKey(userID, year)
	if s.reportCache != nil {
		if cached, found := s.reportCache.Get(key); found {
			return cached.(*ReportResult), nil
		}
	}

	from := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC)
	result, err := s.RangeReport(userID, from, to)
	if err != nil {
		return nil, err
	}

	if s.reportCache != nil {
		s.reportCache.Set(key, result, cache.DefaultExpiration)
	}
	return result, nil
}

// RangeReport builds the report for an arbitrary inclusive date range. Range
// validity (from <= to) is the caller's responsibility; handlers reject
// inverted ranges before any query runs.
func (s *ReportService) RangeReport(userID int64, from, to time.Time) (*ReportResult, error) {
	fromStr := from.Format(utils.DateFormat)
	toStr := to.Format(utils.DateFormat)

	monthTotals, err := s.monthTotals(userID, fromStr, toStr)
	if err != nil {
		return nil, fmt.Errorf("querying month totals: %w", err)
	}

	// Walk month-by-month so every bucket appears, zero-filled, in
	// chronological order even across year boundaries.
	expensesPerMonth := []map[string]string{}
	for _, month := range utils.MonthSequence(from, to) {
		total, ok := monthTotals[utils.MonthKey(month)]
		if !ok {
			total = 0
		}
		expensesPerMonth = append(expensesPerMonth, map[string]string{
			utils.MonthLabel(month): utils.FormatCents(total),
		})
	}

	expensesPerCategory, err := s.categoryTotals(userID, fromStr, toStr)
	if err != nil {
		return nil, fmt.Errorf("querying category totals: %w", err)
	}

	expenseList, err := models.ListExpensesInRange(s.db, userID, fromStr, toStr)
	if err != nil {
		return nil, fmt.Errorf("querying expenses in range: %w", err)
	}

	return &ReportResult{
		ExpensesPerMonth:    expensesPerMonth,
		ExpensesPerCategory: expensesPerCategory,
		ExpenseList:         expenseList,
	}, nil
}

// DashboardSummary computes the dashboard aggregation: lifetime total, current
// month total, owned category count, per-category sums and the five most
// recent expenses.
func (s *ReportService) DashboardSummary(userID int64) (*DashboardSummary, error) {
	key := dashboardCacheKey(userID)
	if s.reportCache != nil {
		if cached, found := s.reportCache.Get(key); found {
			return cached.(*DashboardSummary), nil
		}
	}

	var totalCents int64
	err := s.db.QueryRow(`
		SELECT COALESCE(SUM(amount_cents), 0) FROM expenses WHERE user_id = ?`, userID).
		Scan(&totalCents)
	if err != nil {
		return nil, fmt.Errorf("querying lifetime total: %w", err)
	}

	now := s.now()
	monthFrom := utils.StartOfMonth(now).Format(utils.DateFormat)
	monthTo := utils.EndOfMonth(now).Format(utils.DateFormat)
	var monthCents int64
	err = s.db.QueryRow(`
		SELECT COALESCE(SUM(amount_cents), 0) FROM expenses
		WHERE user_id = ? AND date >= ? AND date <= ?`, userID, monthFrom, monthTo).
		Scan(&monthCents)
	if err != nil {
		return nil, fmt.Errorf("querying month total: %w", err)
	}

	// Counts all owned categories, including ones no expense references.
	categoriesUsed, err := models.CountCategories(s.db, userID)
	if err != nil {
		return nil, fmt.Errorf("counting categories: %w", err)
	}

	expensesPerCategory, err := s.categoryTotals(userID, "", "")
	if err != nil {
		return nil, fmt.Errorf("querying category totals: %w", err)
	}

	recentExpenses, err := models.ListRecentExpenses(s.db, userID, 5)
	if err != nil {
		return nil, fmt.Errorf("querying recent expenses: %w", err)
	}

	summary := &DashboardSummary{
		TotalExpenses:       utils.CentsToFloat(totalCents),
		MonthlyExpenses:     utils.CentsToFloat(monthCents),
		CategoriesUsed:      categoriesUsed,
		ExpensesPerCategory: expensesPerCategory,
		RecentExpenses:      recentExpenses,
	}

	if s.reportCache != nil {
		s.reportCache.Set(key, summary, cache.DefaultExpiration)
	}
	return summary, nil
}

// monthTotals sums expense cents per YYYY-MM bucket within the range.
func (s *ReportService) monthTotals(userID int64, from, to string) (map[string]int64, error) {
	rows, err := s.db.Query(`
		SELECT strftime('%Y-%m', date) AS month, SUM(amount_cents)
		FROM expenses
		WHERE user_id = ? AND date >= ? AND date <= ?
		GROUP BY month`, userID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	totals := make(map[string]int64)
	for rows.Next() {
		var month string
		var cents int64
		if err := rows.Scan(&month, &cents); err != nil {
			return nil, err
		}
		totals[month] = cents
	}
	return totals, rows.Err()
}

// categoryTotals sums expense cents per category, enumerating every category
// the user owns. Empty from/to means all time.
func (s *ReportService) categoryTotals(userID int64, from, to string) ([]CategoryTotal, error) {
	query := `
		SELECT c.id, c.name,
		       COALESCE(SUM(CASE WHEN e.date >= ? AND e.date <= ? THEN e.amount_cents END), 0)
		FROM categories c
		LEFT JOIN expenses e ON e.category_id = c.id
		WHERE c.user_id = ?
		GROUP BY c.id, c.name
		ORDER BY c.name`
	args := []interface{}{from, to, userID}
	if from == "" && to == "" {
		query = `
		SELECT c.id, c.name, COALESCE(SUM(e.amount_cents), 0)
		FROM categories c
		LEFT JOIN expenses e ON e.category_id = c.id
		WHERE c.user_id = ?
		GROUP BY c.id, c.name
		ORDER BY c.name`
		args = []interface{}{userID}
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	totals := []CategoryTotal{}
	for rows.Next() {
		var ct CategoryTotal
		var cents int64
		if err := rows.Scan(&ct.ID, &ct.Category, &cents); err != nil {
			return nil, err
		}
		ct.Total = utils.CentsToFloat(cents)
		totals = append(totals, ct)
	}
	return totals, rows.Err()
}
