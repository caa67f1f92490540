package main

import "time"

// User represents an account in the system
type User struct {
	ID        int64
	Email     string
	Password  string // bcrypt hash, never serialized
	Name      string
	AvatarURL *string
	CreatedAt time.Time
}

// RefreshToken represents a rotating refresh token
type RefreshToken struct {
	Token     string
	UserID    int64
	ExpiresAt int64
	Revoked   bool
	CreatedAt time.Time
}

// Category groups expenses per user
type Category struct {
	ID        int64
	UserID    int64
	Name      string
	CreatedAt time.Time
}

// Expense is a single spending record
type Expense struct {
	ID          int64
	UserID      int64
	CategoryID  *int64
	Amount      int64 // minor currency units
	Currency    string
	Description string
	ReceiptURL  *string
	SpentAt     time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ReceiptScan is the structured result extracted from a receipt image
type ReceiptScan struct {
	Merchant string  `json:"merchant"`
	Amount   int64   `json:"amount"`
	Currency string  `json:"currency"`
	Date     string  `json:"date"`
	Items    []Item  `json:"items,omitempty"`
	Raw      string  `json:"raw,omitempty"`
	Score    float64 `json:"score"`
}

// Item is a single line item on a scanned receipt
type Item struct {
	Label  string `json:"label"`
	Amount int64  `json:"amount"`
}
