package models

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/username/spendwise/backend/src/utils"
)

var ErrExpenseNotFound = errors.New("expense not found")

// CategoryRef is the joined-in category shown on expense rows.
type CategoryRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type Expense struct {
	ID         int64        `json:"id"`
	UserID     int64        `json:"user_id"`
	CategoryID *int64       `json:"category_id"`
	Amount     string       `json:"amount"`
	Date       string       `json:"date"`
	Note       *string      `json:"note"`
	CreatedAt  time.Time    `json:"created_at"`
	Category   *CategoryRef `json:"category"`

	AmountCents int64 `json:"-"`
}

// ExpenseInput carries validated fields for create and update.
type ExpenseInput struct {
	AmountCents  int64
	Date         string
	Note         *string
	CategoryName *string
}

// ExpensePage is a page of expenses plus the metadata the client needs to
// render pagination controls.
type ExpensePage struct {
	Data        []Expense `json:"data"`
	CurrentPage int       `json:"current_page"`
	PerPage     int       `json:"per_page"`
	Total       int64     `json:"total"`
	LastPage    int       `json:"last_page"`
	NextPageURL *string   `json:"next_page_url"`
	PrevPageURL *string   `json:"prev_page_url"`
}

const expenseColumns = `
	e.id, e.user_id, e.category_id, e.amount_cents, e.date, e.note, e.created_at,
	c.id, c.name`

func scanExpense(scanner interface {
	Scan(dest ...interface{}) error
}) (*Expense, error) {
	var e Expense
	var catID sql.NullInt64
	var catName sql.NullString
	err := scanner.Scan(
		&e.ID, &e.UserID, &e.CategoryID, &e.AmountCents, &e.Date, &e.Note, &e.CreatedAt,
		&catID, &catName)
	if err != nil {
		return nil, err
	}
	e.Amount = utils.FormatCents(e.AmountCents)
	if catID.Valid {
		e.Category = &CategoryRef{ID: catID.Int64, Name: catName.String}
	}
	return &e, nil
}

// CreateExpense inserts an expense for the user, resolving the optional
// category name inside the same transaction so a failed insert never leaves a
// stray category behind.
func CreateExpense(db *sql.DB, userID int64, input ExpenseInput) (*Expense, error) {
	tx, err := db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var categoryID *int64
	if input.CategoryName != nil && *input.CategoryName != "" {
		category, err := FindOrCreateCategory(tx, userID, *input.CategoryName)
		if err != nil {
			return nil, fmt.Errorf("resolving category: %w", err)
		}
		categoryID = &category.ID
	}

	res, err := tx.Exec(`
		INSERT INTO expenses (user_id, category_id, amount_cents, date, note, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		userID, categoryID, input.AmountCents, input.Date, input.Note, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return GetExpense(db, userID, id)
}

// GetExpense fetches a single expense owned by the user. A row belonging to a
// different user is indistinguishable from a missing one.
func GetExpense(db *sql.DB, userID, expenseID int64) (*Expense, error) {
	row := db.QueryRow(`
		SELECT `+expenseColumns+`
		FROM expenses e
		LEFT JOIN categories c ON c.id = e.category_id
		WHERE e.id = ? AND e.user_id = ?`, expenseID, userID)
	expense, err := scanExpense(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrExpenseNotFound
		}
		return nil, err
	}
	return expense, nil
}

// ListExpensesPage returns one page of the user's expenses, newest date first
// with id as the deterministic tiebreaker.
func ListExpensesPage(db *sql.DB, userID int64, page, perPage int) (*ExpensePage, error) {
	if page < 1 {
		page = 1
	}

	var total int64
	if err := db.QueryRow(`SELECT COUNT(*) FROM expenses WHERE user_id = ?`, userID).Scan(&total); err != nil {
		return nil, err
	}

	rows, err := db.Query(`
		SELECT `+expenseColumns+`
		FROM expenses e
		LEFT JOIN categories c ON c.id = e.category_id
		WHERE e.user_id = ?
		ORDER BY e.date DESC, e.id DESC
		LIMIT ? OFFSET ?`, userID, perPage, (page-1)*perPage)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	expenses := []Expense{}
	for rows.Next() {
		expense, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		expenses = append(expenses, *expense)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	lastPage := int((total + int64(perPage) - 1) / int64(perPage))
	if lastPage < 1 {
		lastPage = 1
	}

	pageData := &ExpensePage{
		Data:        expenses,
		CurrentPage: page,
		PerPage:     perPage,
		Total:       total,
		LastPage:    lastPage,
	}
	if page < lastPage {
		next := fmt.Sprintf("/api/v1/expenses?page=%d", page+1)
		pageData.NextPageURL = &next
	}
	if page > 1 {
		prev := fmt.Sprintf("/api/v1/expenses?page=%d", page-1)
		pageData.PrevPageURL = &prev
	}
	return pageData, nil
}

// ListExpensesInRange returns all of the user's expenses with date in
// [from, to] inclusive, category names joined, newest first.
func ListExpensesInRange(db *sql.DB, userID int64, from, to string) ([]Expense, error) {
	rows, err := db.Query(`
		SELECT `+expenseColumns+`
		FROM expenses e
		LEFT JOIN categories c ON c.id = e.category_id
		WHERE e.user_id = ? AND e.date >= ? AND e.date <= ?
		ORDER BY e.date DESC, e.id DESC`, userID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	expenses := []Expense{}
	for rows.Next() {
		expense, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		expenses = append(expenses, *expense)
	}
	return expenses, rows.Err()
}

// ListRecentExpenses returns the n most recently created expenses.
func ListRecentExpenses(db *sql.DB, userID int64, n int) ([]Expense, error) {
	rows, err := db.Query(`
		SELECT `+expenseColumns+`
		FROM expenses e
		LEFT JOIN categories c ON c.id = e.category_id
		WHERE e.user_id = ?
		ORDER BY e.created_at DESC, e.id DESC
		LIMIT ?`, userID, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	expenses := []Expense{}
	for rows.Next() {
		expense, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		expenses = append(expenses, *expense)
	}
	return expenses, rows.Err()
}

// UpdateExpense applies new values to an expense the user owns. Returns
// ErrExpenseNotFound when the row does not exist or belongs to someone else.
func UpdateExpense(db *sql.DB, userID, expenseID int64, input ExpenseInput) (*Expense, error) {
	tx, err := db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var categoryID *int64
	if input.CategoryName != nil && *input.CategoryName != "" {
		category, err := FindOrCreateCategory(tx, userID, *input.CategoryName)
		if err != nil {
			return nil, fmt.Errorf("resolving category: %w", err)
		}
		categoryID = &category.ID
	}

	res, err := tx.Exec(`
		UPDATE expenses
		SET category_id = ?, amount_cents = ?, date = ?, note = ?
		WHERE id = ? AND user_id = ?`,
		categoryID, input.AmountCents, input.Date, input.Note, expenseID, userID)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, ErrExpenseNotFound
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return GetExpense(db, userID, expenseID)
}

// DeleteExpense removes an expense the user owns.
func DeleteExpense(db *sql.DB, userID, expenseID int64) error {
	res, err := db.Exec(`DELETE FROM expenses WHERE id = ? AND user_id = ?`, expenseID, userID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrExpenseNotFound
	}
	return nil
}
