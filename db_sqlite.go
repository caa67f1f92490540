package main

import (
	"database/sql"
	"strings"
	"time"
)

// SQLite store
type SQLiteStore struct {
	db   *sql.DB
	path string
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	d, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	s := &SQLiteStore{db: d, path: path}
	if err := s.Init(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) Init() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS users (id INTEGER PRIMARY KEY AUTOINCREMENT, email TEXT UNIQUE, password TEXT, name TEXT, avatar_url TEXT, created_at TEXT);`,
		`CREATE TABLE IF NOT EXISTS refresh_tokens (token TEXT PRIMARY KEY, user_id INTEGER, expires_at INTEGER, revoked INTEGER DEFAULT 0, created_at TEXT);`,
		`CREATE TABLE IF NOT EXISTS categories (id INTEGER PRIMARY KEY AUTOINCREMENT, user_id INTEGER, name TEXT, created_at TEXT, UNIQUE(user_id, name));`,
		`CREATE TABLE IF NOT EXISTS expenses (id INTEGER PRIMARY KEY AUTOINCREMENT, user_id INTEGER, category_id INTEGER, amount INTEGER, currency TEXT, description TEXT, receipt_url TEXT, spent_at TEXT, created_at TEXT, updated_at TEXT);`,
	}
	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

func sqliteDuplicate(err error) error {
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return errDuplicate
	}
	return err
}

func (s *SQLiteStore) CreateUser(email, password, name string) (*User, error) {
	res, err := s.db.Exec(`INSERT INTO users(email,password,name,created_at) VALUES(?,?,?,datetime('now'))`, email, password, name)
	if err != nil {
		return nil, sqliteDuplicate(err)
	}
	id, _ := res.LastInsertId()
	return &User{ID: id, Email: email, Password: password, Name: name}, nil
}

func (s *SQLiteStore) scanUser(row *sql.Row) (*User, error) {
	var u User
	var created string
	var avatar sql.NullString
	if err := row.Scan(&u.ID, &u.Email, &u.Password, &u.Name, &avatar, &created); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	if avatar.Valid {
		u.AvatarURL = &avatar.String
	}
	return &u, nil
}

func (s *SQLiteStore) GetUserByEmail(email string) (*User, error) {
	return s.scanUser(s.db.QueryRow(`SELECT id,email,password,name,avatar_url,created_at FROM users WHERE email = ?`, email))
}

func (s *SQLiteStore) GetUserByID(id int64) (*User, error) {
	return s.scanUser(s.db.QueryRow(`SELECT id,email,password,name,avatar_url,created_at FROM users WHERE id = ?`, id))
}

func (s *SQLiteStore) UpdateUserAvatar(id int64, avatarURL string) error {
	_, err := s.db.Exec(`UPDATE users SET avatar_url = ? WHERE id = ?`, avatarURL, id)
	return err
}

func (s *SQLiteStore) CreateRefreshToken(token string, userId int64, expiresAt int64) error {
	_, err := s.db.Exec(`INSERT INTO refresh_tokens(token,user_id,expires_at,created_at) VALUES(?,?,?,datetime('now'))`, token, userId, expiresAt)
	return err
}

func (s *SQLiteStore) GetRefreshToken(token string) (*RefreshToken, error) {
	row := s.db.QueryRow(`SELECT token,user_id,expires_at,revoked FROM refresh_tokens WHERE token = ?`, token)
	var t RefreshToken
	var revoked int
	if err := row.Scan(&t.Token, &t.UserID, &t.ExpiresAt, &revoked); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	t.Revoked = revoked != 0
	return &t, nil
}

func (s *SQLiteStore) RevokeRefreshToken(token string) error {
	_, err := s.db.Exec(`UPDATE refresh_tokens SET revoked = 1 WHERE token = ?`, token)
	return err
}

func (s *SQLiteStore) RevokeAllRefreshTokensForUser(userId int64) error {
	_, err := s.db.Exec(`UPDATE refresh_tokens SET revoked = 1 WHERE user_id = ?`, userId)
	return err
}

func (s *SQLiteStore) CreateCategory(userId int64, name string) (*Category, error) {
	res, err := s.db.Exec(`INSERT INTO categories(user_id,name,created_at) VALUES(?,?,datetime('now'))`, userId, name)
	if err != nil {
		return nil, sqliteDuplicate(err)
	}
	id, _ := res.LastInsertId()
	return &Category{ID: id, UserID: userId, Name: name}, nil
}

func (s *SQLiteStore) GetCategories(userId int64) ([]*Category, error) {
	rows, err := s.db.Query(`SELECT id,user_id,name,created_at FROM categories WHERE user_id = ? ORDER BY id`, userId)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Category
	for rows.Next() {
		var c Category
		var created string
		if err := rows.Scan(&c.ID, &c.UserID, &c.Name, &created); err != nil {
			return nil, err
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) GetCategoryByID(userId, id int64) (*Category, error) {
	row := s.db.QueryRow(`SELECT id,user_id,name,created_at FROM categories WHERE id = ? AND user_id = ?`, id, userId)
	var c Category
	var created string
	if err := row.Scan(&c.ID, &c.UserID, &c.Name, &created); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

func (s *SQLiteStore) CreateExpense(e *Expense) (*Expense, error) {
	res, err := s.db.Exec(`INSERT INTO expenses(user_id,category_id,amount,currency,description,receipt_url,spent_at,created_at,updated_at) VALUES(?,?,?,?,?,?,?,datetime('now'),datetime('now'))`,
		e.UserID, e.CategoryID, e.Amount, e.Currency, e.Description, e.ReceiptURL, e.SpentAt.UTC().Format(time.RFC3339))
	if err != nil {
		return nil, err
	}
	id, _ := res.LastInsertId()
	cp := *e
	cp.ID = id
	return &cp, nil
}

func (s *SQLiteStore) scanExpense(scan func(dest ...interface{}) error) (*Expense, error) {
	var e Expense
	var catID sql.NullInt64
	var receipt sql.NullString
	var spentAt, created, updated string
	if err := scan(&e.ID, &e.UserID, &catID, &e.Amount, &e.Currency, &e.Description, &receipt, &spentAt, &created, &updated); err != nil {
		return nil, err
	}
	if catID.Valid {
		e.CategoryID = &catID.Int64
	}
	if receipt.Valid {
		e.ReceiptURL = &receipt.String
	}
	if t, err := time.Parse(time.RFC3339, spentAt); err == nil {
		e.SpentAt = t
	}
	return &e, nil
}

const sqliteExpenseCols = `id,user_id,category_id,amount,currency,description,receipt_url,spent_at,created_at,updated_at`

func (s *SQLiteStore) GetExpenseByID(userId, id int64) (*Expense, error) {
	row := s.db.QueryRow(`SELECT `+sqliteExpenseCols+` FROM expenses WHERE id = ? AND user_id = ?`, id, userId)
	e, err := s.scanExpense(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return e, err
}

func (s *SQLiteStore) ListExpenses(userId int64, f ExpenseFilter) ([]*Expense, error) {
	query := `SELECT ` + sqliteExpenseCols + ` FROM expenses WHERE user_id = ?`
	args := []interface{}{userId}
	if f.CategoryID != nil {
		query += ` AND category_id = ?`
		args = append(args, *f.CategoryID)
	}
	if f.From != nil {
		query += ` AND spent_at >= ?`
		args = append(args, f.From.UTC().Format(time.RFC3339))
	}
	if f.To != nil {
		query += ` AND spent_at <= ?`
		args = append(args, f.To.UTC().Format(time.RFC3339))
	}
	query += ` ORDER BY spent_at DESC`
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Expense
	for rows.Next() {
		e, err := s.scanExpense(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) UpdateExpense(e *Expense) error {
	_, err := s.db.Exec(`UPDATE expenses SET category_id = ?, amount = ?, currency = ?, description = ?, receipt_url = ?, spent_at = ?, updated_at = datetime('now') WHERE id = ? AND user_id = ?`,
		e.CategoryID, e.Amount, e.Currency, e.Description, e.ReceiptURL, e.SpentAt.UTC().Format(time.RFC3339), e.ID, e.UserID)
	return err
}

func (s *SQLiteStore) DeleteExpense(userId, id int64) error {
	_, err := s.db.Exec(`DELETE FROM expenses WHERE id = ? AND user_id = ?`, id, userId)
	return err
}

// lifecycle helpers
func (s *SQLiteStore) close() error { return s.db.Close() }
func (s *SQLiteStore) ping() bool   { return s.db.Ping() == nil }
