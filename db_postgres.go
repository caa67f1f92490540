package main

import (
	"database/sql"
	"errors"
	"strconv"

	"github.com/lib/pq"
)

type PostgresStore struct {
	db  *sql.DB
	dsn string
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	d, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	p := &PostgresStore{db: d, dsn: dsn}
	if err := p.Init(); err != nil {
		d.Close()
		return nil, err
	}
	return p, nil
}

func (p *PostgresStore) Init() error {
	// rely on migrations to create tables; just verify connectivity
	if err := p.db.Ping(); err != nil {
		return err
	}
	return nil
}

func pqDuplicate(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return errDuplicate
	}
	return err
}

func (p *PostgresStore) CreateUser(email, password, name string) (*User, error) {
	var id int64
	err := p.db.QueryRow(`INSERT INTO users(email,password,name,created_at) VALUES($1,$2,$3,now()) RETURNING id`, email, password, name).Scan(&id)
	if err != nil {
		return nil, pqDuplicate(err)
	}
	return &User{ID: id, Email: email, Password: password, Name: name}, nil
}

func (p *PostgresStore) scanUser(row *sql.Row) (*User, error) {
	var u User
	var avatar sql.NullString
	if err := row.Scan(&u.ID, &u.Email, &u.Password, &u.Name, &avatar, &u.CreatedAt); err != nil {
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

func (p *PostgresStore) GetUserByEmail(email string) (*User, error) {
	return p.scanUser(p.db.QueryRow(`SELECT id,email,password,name,avatar_url,created_at FROM users WHERE email = $1`, email))
}

func (p *PostgresStore) GetUserByID(id int64) (*User, error) {
	return p.scanUser(p.db.QueryRow(`SELECT id,email,password,name,avatar_url,created_at FROM users WHERE id = $1`, id))
}

func (p *PostgresStore) UpdateUserAvatar(id int64, avatarURL string) error {
	_, err := p.db.Exec(`UPDATE users SET avatar_url = $1 WHERE id = $2`, avatarURL, id)
	return err
}

func (p *PostgresStore) CreateRefreshToken(token string, userId int64, expiresAt int64) error {
	_, err := p.db.Exec(`INSERT INTO refresh_tokens(token,user_id,expires_at,created_at) VALUES($1,$2,$3,now())`, token, userId, expiresAt)
	return err
}

func (p *PostgresStore) GetRefreshToken(token string) (*RefreshToken, error) {
	row := p.db.QueryRow(`SELECT token,user_id,expires_at,revoked FROM refresh_tokens WHERE token = $1`, token)
	var t RefreshToken
	if err := row.Scan(&t.Token, &t.UserID, &t.ExpiresAt, &t.Revoked); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

func (p *PostgresStore) RevokeRefreshToken(token string) error {
	_, err := p.db.Exec(`UPDATE refresh_tokens SET revoked = true WHERE token = $1`, token)
	return err
}

func (p *PostgresStore) RevokeAllRefreshTokensForUser(userId int64) error {
	_, err := p.db.Exec(`UPDATE refresh_tokens SET revoked = true WHERE user_id = $1`, userId)
	return err
}

func (p *PostgresStore) CreateCategory(userId int64, name string) (*Category, error) {
	var id int64
	err := p.db.QueryRow(`INSERT INTO categories(user_id,name,created_at) VALUES($1,$2,now()) RETURNING id`, userId, name).Scan(&id)
	if err != nil {
		return nil, pqDuplicate(err)
	}
	return &Category{ID: id, UserID: userId, Name: name}, nil
}

func (p *PostgresStore) GetCategories(userId int64) ([]*Category, error) {
	rows, err := p.db.Query(`SELECT id,user_id,name,created_at FROM categories WHERE user_id = $1 ORDER BY id`, userId)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.UserID, &c.Name, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

func (p *PostgresStore) GetCategoryByID(userId, id int64) (*Category, error) {
	row := p.db.QueryRow(`SELECT id,user_id,name,created_at FROM categories WHERE id = $1 AND user_id = $2`, id, userId)
	var c Category
	if err := row.Scan(&c.ID, &c.UserID, &c.Name, &c.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

const pgExpenseCols = `id,user_id,category_id,amount,currency,description,receipt_url,spent_at,created_at,updated_at`

func (p *PostgresStore) CreateExpense(e *Expense) (*Expense, error) {
	var id int64
	err := p.db.QueryRow(`INSERT INTO expenses(user_id,category_id,amount,currency,description,receipt_url,spent_at,created_at,updated_at) VALUES($1,$2,$3,$4,$5,$6,$7,now(),now()) RETURNING id`,
		e.UserID, e.CategoryID, e.Amount, e.Currency, e.Description, e.ReceiptURL, e.SpentAt).Scan(&id)
	if err != nil {
		return nil, err
	}
	cp := *e
	cp.ID = id
	return &cp, nil
}

func (p *PostgresStore) scanExpense(scan func(dest ...interface{}) error) (*Expense, error) {
	var e Expense
	var catID sql.NullInt64
	var receipt sql.NullString
	if err := scan(&e.ID, &e.UserID, &catID, &e.Amount, &e.Currency, &e.Description, &receipt, &e.SpentAt, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	if catID.Valid {
		e.CategoryID = &catID.Int64
	}
	if receipt.Valid {
		e.ReceiptURL = &receipt.String
	}
	return &e, nil
}

func (p *PostgresStore) GetExpenseByID(userId, id int64) (*Expense, error) {
	row := p.db.QueryRow(`SELECT `+pgExpenseCols+` FROM expenses WHERE id = $1 AND user_id = $2`, id, userId)
	e, err := p.scanExpense(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return e, err
}

func (p *PostgresStore) ListExpenses(userId int64, f ExpenseFilter) ([]*Expense, error) {
	query := `SELECT ` + pgExpenseCols + ` FROM expenses WHERE user_id = $1`
	args := []interface{}{userId}
	n := 2
	add := func(clause string, v interface{}) {
		query += ` AND ` + clause + `$` + strconv.Itoa(n)
		args = append(args, v)
		n++
	}
	if f.CategoryID != nil {
		add(`category_id = `, *f.CategoryID)
	}
	if f.From != nil {
		add(`spent_at >= `, *f.From)
	}
	if f.To != nil {
		add(`spent_at <= `, *f.To)
	}
	query += ` ORDER BY spent_at DESC`
	rows, err := p.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Expense
	for rows.Next() {
		e, err := p.scanExpense(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (p *PostgresStore) UpdateExpense(e *Expense) error {
	_, err := p.db.Exec(`UPDATE expenses SET category_id = $1, amount = $2, currency = $3, description = $4, receipt_url = $5, spent_at = $6, updated_at = now() WHERE id = $7 AND user_id = $8`,
		e.CategoryID, e.Amount, e.Currency, e.Description, e.ReceiptURL, e.SpentAt, e.ID, e.UserID)
	return err
}

func (p *PostgresStore) DeleteExpense(userId, id int64) error {
	_, err := p.db.Exec(`DELETE FROM expenses WHERE id = $1 AND user_id = $2`, id, userId)
	return err
}

func (p *PostgresStore) close() error { return p.db.Close() }
func (p *PostgresStore) ping() bool   { return p.db.Ping() == nil }
