package main

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSQLiteStore(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer s.close()

	u, err := s.CreateUser("lite@example.com", "hashed", "Lite")
	require.NoError(t, err)
	require.NotZero(t, u.ID)

	_, err = s.CreateUser("lite@example.com", "hashed", "Lite2")
	require.ErrorIs(t, err, errDuplicate)

	got, err := s.GetUserByID(u.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, "lite@example.com", got.Email)

	missing, err := s.GetUserByID(999)
	require.NoError(t, err)
	require.Nil(t, missing)

	cat, err := s.CreateCategory(u.ID, "transport")
	require.NoError(t, err)
	_, err = s.CreateCategory(u.ID, "transport")
	require.ErrorIs(t, err, errDuplicate)

	spent := time.Date(2024, 3, 5, 8, 30, 0, 0, time.UTC)
	e, err := s.CreateExpense(&Expense{
		UserID:     u.ID,
		CategoryID: &cat.ID,
		Amount:     250,
		Currency:   "GBP",
		SpentAt:    spent,
	})
	require.NoError(t, err)

	fetched, err := s.GetExpenseByID(u.ID, e.ID)
	require.NoError(t, err)
	require.NotNil(t, fetched)
	require.True(t, fetched.SpentAt.Equal(spent))

	list, err := s.ListExpenses(u.ID, ExpenseFilter{CategoryID: &cat.ID})
	require.NoError(t, err)
	require.Len(t, list, 1)

	require.NoError(t, s.DeleteExpense(u.ID, e.ID))
	gone, err := s.GetExpenseByID(u.ID, e.ID)
	require.NoError(t, err)
	require.Nil(t, gone)

	require.True(t, s.ping())
}
