package models

import (
	"database/sql"
	"time"
)

type Category struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Querier is satisfied by both *sql.DB and *sql.Tx so category resolution can
// run inside the transaction that inserts the expense.
type Querier interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
	QueryRow(query string, args ...interface{}) *sql.Row
	Query(query string, args ...interface{}) (*sql.Rows, error)
}

// FindOrCreateCategory returns the user's category with the given name,
// creating it if absent. The UNIQUE(user_id, name) index plus
// ON CONFLICT DO NOTHING makes this safe under concurrent creates: whichever
// insert loses the race falls through to the select and picks up the winner's
// row.
func FindOrCreateCategory(q Querier, userID int64, name string) (*Category, error) {
	_, err := q.Exec(`
		INSERT INTO categories (user_id, name) VALUES (?, ?)
		ON CONFLICT(user_id, name) DO NOTHING`, userID, name)
	if err != nil {
		return nil, err
	}

	row := q.QueryRow(`
		SELECT id, user_id, name, created_at
		FROM categories WHERE user_id = ? AND name = ?`, userID, name)
	var c Category
	if err := row.Scan(&c.ID, &c.UserID, &c.Name, &c.CreatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

// ListCategories returns all of the user's categories ordered by name.
func ListCategories(db *sql.DB, userID int64) ([]Category, error) {
	rows, err := db.Query(`
		SELECT id, user_id, name, created_at
		FROM categories WHERE user_id = ? ORDER BY name`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var categories []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.UserID, &c.Name, &c.CreatedAt); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// CountCategories returns how many categories the user owns.
func CountCategories(db *sql.DB, userID int64) (int64, error) {
	var count int64
	err := db.QueryRow(`SELECT COUNT(*) FROM categories WHERE user_id = ?`, userID).Scan(&count)
	return count, err
}
