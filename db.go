package main

import (
	"errors"
	"sort"
	"sync"
	"time"
)

// errDuplicate is returned by adapters on unique-constraint violations
// so handlers can attach a resource-specific message.
var errDuplicate = errors.New("duplicate")

// ExpenseFilter narrows an expense listing.
type ExpenseFilter struct {
	CategoryID *int64
	From       *time.Time
	To         *time.Time
}

// Store interface for database operations. Lookups return (nil, nil)
// when no row matches.
type Store interface {
	Init() error
	// User operations
	CreateUser(email, password, name string) (*User, error)
	GetUserByEmail(email string) (*User, error)
	GetUserByID(id int64) (*User, error)
	UpdateUserAvatar(id int64, avatarURL string) error
	// Token operations
	CreateRefreshToken(token string, userId int64, expiresAt int64) error
	GetRefreshToken(token string) (*RefreshToken, error)
	RevokeRefreshToken(token string) error
	RevokeAllRefreshTokensForUser(userId int64) error
	// Category operations
	CreateCategory(userId int64, name string) (*Category, error)
	GetCategories(userId int64) ([]*Category, error)
	GetCategoryByID(userId, id int64) (*Category, error)
	// Expense operations
	CreateExpense(e *Expense) (*Expense, error)
	GetExpenseByID(userId, id int64) (*Expense, error)
	ListExpenses(userId int64, f ExpenseFilter) ([]*Expense, error)
	UpdateExpense(e *Expense) error
	DeleteExpense(userId, id int64) error
}

// Memory store, for development and handler tests.
type MemStore struct {
	mu         sync.Mutex
	users      map[int64]*User
	byEmail    map[string]int64
	tokens     map[string]*RefreshToken
	categories map[int64]*Category
	expenses   map[int64]*Expense
	seq        int64
}

func NewMemStore() *MemStore {
	return &MemStore{
		users:      map[int64]*User{},
		byEmail:    map[string]int64{},
		tokens:     map[string]*RefreshToken{},
		categories: map[int64]*Category{},
		expenses:   map[int64]*Expense{},
		seq:        1,
	}
}

func (m *MemStore) Init() error { return nil }

func (m *MemStore) CreateUser(email, password, name string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byEmail[email]; ok {
		return nil, errDuplicate
	}
	u := &User{ID: m.seq, Email: email, Password: password, Name: name, CreatedAt: time.Now()}
	m.seq++
	m.users[u.ID] = u
	m.byEmail[email] = u.ID
	return u, nil
}

func (m *MemStore) GetUserByEmail(email string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.byEmail[email]; ok {
		return m.users[id], nil
	}
	return nil, nil
}

func (m *MemStore) GetUserByID(id int64) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, nil
}

func (m *MemStore) UpdateUserAvatar(id int64, avatarURL string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		u.AvatarURL = &avatarURL
	}
	return nil
}

// DeleteUser removes an account; tokens for it keep verifying but the
// identity lookup comes back empty. Used by tests for the stale-token path.
func (m *MemStore) DeleteUser(id int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		delete(m.byEmail, u.Email)
		delete(m.users, id)
	}
}

func (m *MemStore) CreateRefreshToken(token string, userId int64, expiresAt int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[token] = &RefreshToken{Token: token, UserID: userId, ExpiresAt: expiresAt, CreatedAt: time.Now()}
	return nil
}

func (m *MemStore) GetRefreshToken(token string) (*RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.tokens[token]; ok {
		return t, nil
	}
	return nil, nil
}

func (m *MemStore) RevokeRefreshToken(token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.tokens[token]; ok {
		t.Revoked = true
	}
	return nil
}

func (m *MemStore) RevokeAllRefreshTokensForUser(userId int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tokens {
		if t.UserID == userId {
			t.Revoked = true
		}
	}
	return nil
}

func (m *MemStore) CreateCategory(userId int64, name string) (*Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.categories {
		if c.UserID == userId && c.Name == name {
			return nil, errDuplicate
		}
	}
	c := &Category{ID: m.seq, UserID: userId, Name: name, CreatedAt: time.Now()}
	m.seq++
	m.categories[c.ID] = c
	return c, nil
}

func (m *MemStore) GetCategories(userId int64) ([]*Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Category
	for _, c := range m.categories {
		if c.UserID == userId {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemStore) GetCategoryByID(userId, id int64) (*Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.categories[id]; ok && c.UserID == userId {
		return c, nil
	}
	return nil, nil
}

func (m *MemStore) CreateExpense(e *Expense) (*Expense, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *e
	cp.ID = m.seq
	m.seq++
	cp.CreatedAt = time.Now()
	cp.UpdatedAt = cp.CreatedAt
	m.expenses[cp.ID] = &cp
	return &cp, nil
}

func (m *MemStore) GetExpenseByID(userId, id int64) (*Expense, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.expenses[id]; ok && e.UserID == userId {
		return e, nil
	}
	return nil, nil
}

func (m *MemStore) ListExpenses(userId int64, f ExpenseFilter) ([]*Expense, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Expense
	for _, e := range m.expenses {
		if e.UserID != userId {
			continue
		}
		if f.CategoryID != nil && (e.CategoryID == nil || *e.CategoryID != *f.CategoryID) {
			continue
		}
		if f.From != nil && e.SpentAt.Before(*f.From) {
			continue
		}
		if f.To != nil && e.SpentAt.After(*f.To) {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SpentAt.After(out[j].SpentAt) })
	return out, nil
}

func (m *MemStore) UpdateExpense(e *Expense) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.expenses[e.ID]
	if !ok || cur.UserID != e.UserID {
		return nil
	}
	cp := *e
	cp.CreatedAt = cur.CreatedAt
	cp.UpdatedAt = time.Now()
	m.expenses[e.ID] = &cp
	return nil
}

func (m *MemStore) DeleteExpense(userId, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.expenses[id]; ok && e.UserID == userId {
		delete(m.expenses, id)
	}
	return nil
}

// lifecycle helpers
func (m *MemStore) close() error { return nil }
func (m *MemStore) ping() bool   { return true }
