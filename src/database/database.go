package database

import (
	"database/sql"
	stdlog "log"

	"github.com/username/spendwise/backend/src/logger"
	_ "modernc.org/sqlite"
)

var DB *sql.DB

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	email TEXT NOT NULL UNIQUE,
	password TEXT NOT NULL,
	is_email_verified BOOLEAN DEFAULT FALSE,
	email_verification_token TEXT,
	email_verification_token_expires_at TIMESTAMP,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS sessions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id INTEGER NOT NULL,
	token TEXT NOT NULL,
	refresh_token TEXT NOT NULL,
	user_agent TEXT,
	client_ip TEXT,
	is_blocked BOOLEAN DEFAULT FALSE,
	expires_at TIMESTAMP,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY(user_id) REFERENCES users(id)
);

CREATE TABLE IF NOT EXISTS categories (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id INTEGER NOT NULL,
	name TEXT NOT NULL,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY(user_id) REFERENCES users(id) ON DELETE CASCADE,
	UNIQUE(user_id, name)
);

CREATE TABLE IF NOT EXISTS expenses (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id INTEGER NOT NULL,
	category_id INTEGER,
	amount_cents INTEGER NOT NULL,
	date TEXT NOT NULL,
	note TEXT,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY(user_id) REFERENCES users(id) ON DELETE CASCADE,
	FOREIGN KEY(category_id) REFERENCES categories(id) ON DELETE SET NULL
);

CREATE TABLE IF NOT EXISTS income (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id INTEGER NOT NULL,
	amount_cents INTEGER NOT NULL,
	date TEXT NOT NULL,
	source TEXT,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY(user_id) REFERENCES users(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS settings (
	user_id INTEGER PRIMARY KEY,
	currency TEXT NOT NULL DEFAULT 'USD',
	dark_mode BOOLEAN NOT NULL DEFAULT FALSE,
	FOREIGN KEY(user_id) REFERENCES users(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_expenses_user_date ON expenses(user_id, date);
CREATE INDEX IF NOT EXISTS idx_expenses_user_category ON expenses(user_id, category_id);
CREATE INDEX IF NOT EXISTS idx_sessions_token ON sessions(token);
`

// OpenAndMigrate opens a sqlite database, enables foreign keys, ensures the
// schema and applies column migrations. Tests use this with ":memory:".
func OpenAndMigrate(databasePath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", databasePath)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, err
	}

	if _, err := db.Exec(schema); err != nil {
		return nil, err
	}

	migrateExpenseTable(db)
	return db, nil
}

func InitDB(databasePath string) {
	db, err := OpenAndMigrate(databasePath)
	if err != nil {
		stdlog.Fatalf("failed to open database at %s: %v", databasePath, err)
	}

	DB = db
	if logger.L != nil {
		logger.L.Info("Database tables ensured/created.", "databasePath", databasePath)
	} else {
		stdlog.Println("Database tables ensured/created:", databasePath)
	}
}

// migrateExpenseTable adds columns introduced after the first release to
// databases created with an older schema.
func migrateExpenseTable(db *sql.DB) {
	var tableName string
	err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name='expenses'").Scan(&tableName)
	if err != nil {
		if err == sql.ErrNoRows {
			return
		}
		logWarn("Error checking for 'expenses' table", err)
		return
	}

	rows, err := db.Query("PRAGMA table_info(expenses)")
	if err != nil {
		logWarn("Error querying table schema for 'expenses'", err)
		return
	}
	defer rows.Close()

	columnExists := make(map[string]bool)
	for rows.Next() {
		var cid, pk int
		var name, dataType string
		var notnullVal int
		var dfltValue interface{}
		if err := rows.Scan(&cid, &name, &dataType, &notnullVal, &dfltValue, &pk); err != nil {
			logWarn("Error scanning column info for 'expenses'", err)
			return
		}
		columnExists[name] = true
	}
	if err = rows.Err(); err != nil {
		logWarn("Error iterating over column info for 'expenses'", err)
		return
	}

	if _, ok := columnExists["note"]; !ok {
		if _, err := db.Exec("ALTER TABLE expenses ADD COLUMN note TEXT"); err != nil {
			logWarn("Error adding 'note' column to 'expenses' table", err)
		}
	}
	if _, ok := columnExists["created_at"]; !ok {
		if _, err := db.Exec("ALTER TABLE expenses ADD COLUMN created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP"); err != nil {
			logWarn("Error adding 'created_at' column to 'expenses' table", err)
		}
	}
}

func logWarn(msg string, err error) {
	if logger.L != nil {
		logger.L.Warn(msg, "error", err)
	} else {
		stdlog.Printf("%s: %v", msg, err)
	}
}
