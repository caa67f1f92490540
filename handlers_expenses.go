package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
)

type expenseInput struct {
	CategoryID  *int64  `json:"categoryId"`
	Amount      int64   `json:"amount"`
	Currency    string  `json:"currency"`
	Description string  `json:"description"`
	ReceiptURL  *string `json:"receiptUrl"`
	SpentAt     string  `json:"spentAt"`
}

func (in *expenseInput) validate() (*Expense, error) {
	if in.Amount <= 0 {
		return nil, appErr(KindValidation, "Amount must be positive")
	}
	if in.Currency == "" {
		in.Currency = "USD"
	}
	if len(in.Currency) != 3 {
		return nil, appErr(KindValidation, "Currency must be a 3-letter code")
	}
	spentAt := time.Now()
	if in.SpentAt != "" {
		t, err := time.Parse(time.RFC3339, in.SpentAt)
		if err != nil {
			return nil, appErr(KindValidation, "spentAt must be an RFC 3339 timestamp")
		}
		spentAt = t
	}
	return &Expense{
		CategoryID:  in.CategoryID,
		Amount:      in.Amount,
		Currency:    in.Currency,
		Description: in.Description,
		ReceiptURL:  in.ReceiptURL,
		SpentAt:     spentAt,
	}, nil
}

func expensePayload(e *Expense) map[string]interface{} {
	return map[string]interface{}{
		"id":          e.ID,
		"categoryId":  e.CategoryID,
		"amount":      e.Amount,
		"currency":    e.Currency,
		"description": e.Description,
		"receiptUrl":  e.ReceiptURL,
		"spentAt":     e.SpentAt.UTC().Format(time.RFC3339),
	}
}

// checkCategory verifies that a referenced category belongs to the user.
func (a *App) checkCategory(userID int64, categoryID *int64) error {
	if categoryID == nil {
		return nil
	}
	c, err := a.DB.GetCategoryByID(userID, *categoryID)
	if err != nil {
		return err
	}
	if c == nil {
		return appErr(KindValidation, "Unknown category")
	}
	return nil
}

func (a *App) HandleCreateExpense(w http.ResponseWriter, r *http.Request) {
	u := identityFrom(r.Context())
	var in expenseInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		a.writeFailure(w, wrapErr(KindValidation, "Invalid request body", err))
		return
	}
	e, err := in.validate()
	if err != nil {
		a.writeFailure(w, err)
		return
	}
	if err := a.checkCategory(u.ID, e.CategoryID); err != nil {
		a.writeFailure(w, err)
		return
	}
	e.UserID = u.ID
	created, err := a.DB.CreateExpense(e)
	if err != nil {
		a.writeFailure(w, err)
		return
	}
	writeSuccess(w, http.StatusCreated, expensePayload(created))
}

func (a *App) HandleListExpenses(w http.ResponseWriter, r *http.Request) {
	u := identityFrom(r.Context())
	var f ExpenseFilter
	q := r.URL.Query()
	if v := q.Get("category"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			a.writeFailure(w, appErr(KindValidation, "category must be an id"))
			return
		}
		f.CategoryID = &id
	}
	if v := q.Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			a.writeFailure(w, appErr(KindValidation, "from must be an RFC 3339 timestamp"))
			return
		}
		f.From = &t
	}
	if v := q.Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			a.writeFailure(w, appErr(KindValidation, "to must be an RFC 3339 timestamp"))
			return
		}
		f.To = &t
	}
	expenses, err := a.DB.ListExpenses(u.ID, f)
	if err != nil {
		a.writeFailure(w, err)
		return
	}
	out := make([]map[string]interface{}, 0, len(expenses))
	for _, e := range expenses {
		out = append(out, expensePayload(e))
	}
	writeSuccess(w, http.StatusOK, out)
}

func expenseID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		return 0, appErr(KindValidation, "Invalid expense id")
	}
	return id, nil
}

func (a *App) HandleGetExpense(w http.ResponseWriter, r *http.Request) {
	u := identityFrom(r.Context())
	id, err := expenseID(r)
	if err != nil {
		a.writeFailure(w, err)
		return
	}
	e, err := a.DB.GetExpenseByID(u.ID, id)
	if err != nil {
		a.writeFailure(w, err)
		return
	}
	if e == nil {
		a.writeFailure(w, appErr(KindNotFound, "Expense not found"))
		return
	}
	writeSuccess(w, http.StatusOK, expensePayload(e))
}

func (a *App) HandleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	u := identityFrom(r.Context())
	id, err := expenseID(r)
	if err != nil {
		a.writeFailure(w, err)
		return
	}
	existing, err := a.DB.GetExpenseByID(u.ID, id)
	if err != nil {
		a.writeFailure(w, err)
		return
	}
	if existing == nil {
		a.writeFailure(w, appErr(KindNotFound, "Expense not found"))
		return
	}
	var in expenseInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		a.writeFailure(w, wrapErr(KindValidation, "Invalid request body", err))
		return
	}
	e, err := in.validate()
	if err != nil {
		a.writeFailure(w, err)
		return
	}
	if err := a.checkCategory(u.ID, e.CategoryID); err != nil {
		a.writeFailure(w, err)
		return
	}
	e.ID = id
	e.UserID = u.ID
	if err := a.DB.UpdateExpense(e); err != nil {
		a.writeFailure(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, expensePayload(e))
}

func (a *App) HandleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	u := identityFrom(r.Context())
	id, err := expenseID(r)
	if err != nil {
		a.writeFailure(w, err)
		return
	}
	e, err := a.DB.GetExpenseByID(u.ID, id)
	if err != nil {
		a.writeFailure(w, err)
		return
	}
	if e == nil {
		a.writeFailure(w, appErr(KindNotFound, "Expense not found"))
		return
	}
	if err := a.DB.DeleteExpense(u.ID, id); err != nil {
		a.writeFailure(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]bool{"deleted": true})
}

func (a *App) HandleListCategories(w http.ResponseWriter, r *http.Request) {
	u := identityFrom(r.Context())
	cats, err := a.DB.GetCategories(u.ID)
	if err != nil {
		a.writeFailure(w, err)
		return
	}
	out := make([]map[string]interface{}, 0, len(cats))
	for _, c := range cats {
		out = append(out, map[string]interface{}{"id": c.ID, "name": c.Name})
	}
	writeSuccess(w, http.StatusOK, out)
}

func (a *App) HandleCreateCategory(w http.ResponseWriter, r *http.Request) {
	u := identityFrom(r.Context())
	var in struct{ Name string }
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		a.writeFailure(w, wrapErr(KindValidation, "Invalid request body", err))
		return
	}
	if in.Name == "" {
		a.writeFailure(w, appErr(KindValidation, "Name is required"))
		return
	}
	c, err := a.DB.CreateCategory(u.ID, in.Name)
	if err != nil {
		if errors.Is(err, errDuplicate) {
			a.writeFailure(w, appErr(KindConflict, "Category already exists"))
			return
		}
		a.writeFailure(w, err)
		return
	}
	writeSuccess(w, http.StatusCreated, map[string]interface{}{"id": c.ID, "name": c.Name})
}
