package models

import (
	"database/sql"
	"time"

	"github.com/username/spendwise/backend/src/utils"
)

type Income struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Amount    string    `json:"amount"`
	Date      string    `json:"date"`
	Source    *string   `json:"source"`
	CreatedAt time.Time `json:"created_at"`

	AmountCents int64 `json:"-"`
}

type IncomeInput struct {
	AmountCents int64
	Date        string
	Source      *string
}

func CreateIncome(db *sql.DB, userID int64, input IncomeInput) (*Income, error) {
	now := time.Now().UTC()
	res, err := db.Exec(`
		INSERT INTO income (user_id, amount_cents, date, source, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		userID, input.AmountCents, input.Date, input.Source, now)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &Income{
		ID:          id,
		UserID:      userID,
		Amount:      utils.FormatCents(input.AmountCents),
		AmountCents: input.AmountCents,
		Date:        input.Date,
		Source:      input.Source,
		CreatedAt:   now,
	}, nil
}

func ListIncome(db *sql.DB, userID int64) ([]Income, error) {
	rows, err := db.Query(`
		SELECT id, user_id, amount_cents, date, source, created_at
		FROM income WHERE user_id = ?
		ORDER BY date DESC, id DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	incomes := []Income{}
	for rows.Next() {
		var in Income
		if err := rows.Scan(&in.ID, &in.UserID, &in.AmountCents, &in.Date, &in.Source, &in.CreatedAt); err != nil {
			return nil, err
		}
		in.Amount = utils.FormatCents(in.AmountCents)
		incomes = append(incomes, in)
	}
	return incomes, rows.Err()
}
