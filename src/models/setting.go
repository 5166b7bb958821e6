package models

import "database/sql"

type Setting struct {
	UserID   int64  `json:"user_id"`
	Currency string `json:"currency"`
	DarkMode bool   `json:"dark_mode"`
}

// GetSettings returns the user's settings, creating the default row on first
// access.
func GetSettings(db *sql.DB, userID int64) (*Setting, error) {
	_, err := db.Exec(`
		INSERT INTO settings (user_id) VALUES (?)
		ON CONFLICT(user_id) DO NOTHING`, userID)
	if err != nil {
		return nil, err
	}

	var s Setting
	err = db.QueryRow(`
		SELECT user_id, currency, dark_mode FROM settings WHERE user_id = ?`, userID).
		Scan(&s.UserID, &s.Currency, &s.DarkMode)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// UpdateSettings overwrites the user's settings row.
func UpdateSettings(db *sql.DB, userID int64, currency string, darkMode bool) (*Setting, error) {
	_, err := db.Exec(`
		INSERT INTO settings (user_id, currency, dark_mode) VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET currency = excluded.currency, dark_mode = excluded.dark_mode`,
		userID, currency, darkMode)
	if err != nil {
		return nil, err
	}
	return &Setting{UserID: userID, Currency: currency, DarkMode: darkMode}, nil
}
