package main

import (
	"errors"
	"net/http"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/require"
)

func TestTranslateKinds(t *testing.T) {
	validStatuses := map[int]bool{400: true, 401: true, 403: true, 404: true, 409: true, 413: true, 429: true, 500: true, 503: true}

	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"validation", appErr(KindValidation, "bad input"), 400},
		{"authentication", appErr(KindAuthentication, "no token"), 401},
		{"permission", appErr(KindPermission, "stale token"), 403},
		{"not found", appErr(KindNotFound, "missing"), 404},
		{"conflict", appErr(KindConflict, "duplicate"), 409},
		{"upload limit", appErr(KindUploadTooLarge, "too big"), 413},
		{"rate limited", appErr(KindRateLimited, "slow down"), 429},
		{"upstream", appErr(KindUpstream, "ocr down"), 503},
		{"internal", appErr(KindInternal, "oops"), 500},
		{"unclassified", errors.New("some driver exploded"), 500},
		{"wrapped app error", wrapErr(KindValidation, "bad", errors.New("cause")), 400},
		{"nested app error", errors.Join(errors.New("outer"), appErr(KindConflict, "dup")), 409},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			env := Translate(c.err, false)
			require.False(t, env.Success)
			require.Equal(t, c.status, env.Status)
			require.True(t, validStatuses[env.Status], "status %d outside the allowed set", env.Status)
			require.NotEmpty(t, env.Message)
		})
	}
}

func TestTranslateProductionStripsDetails(t *testing.T) {
	cause := errors.New("pq: duplicate key value violates unique constraint")

	dev := Translate(wrapErr(KindConflict, "Resource already exists", cause), false)
	require.Equal(t, cause.Error(), dev.Details)

	prod := Translate(wrapErr(KindConflict, "Resource already exists", cause), true)
	require.Empty(t, prod.Details)
	require.Equal(t, "Resource already exists", prod.Message)
}

func TestTranslateProductionGeneric500(t *testing.T) {
	err := errors.New("dial tcp 10.0.0.1:5432: connection refused")

	dev := Translate(err, false)
	require.Equal(t, 500, dev.Status)
	require.Contains(t, dev.Details, "connection refused")

	prod := Translate(err, true)
	require.Equal(t, 500, prod.Status)
	require.Equal(t, "Something went wrong", prod.Message)
	require.Empty(t, prod.Details)
}

func TestClassifyPostgresConstraints(t *testing.T) {
	unique := &pq.Error{Code: "23505", Message: "duplicate key"}
	env := Translate(unique, false)
	require.Equal(t, 409, env.Status)
	require.Equal(t, "Resource already exists", env.Message)

	fk := &pq.Error{Code: "23503", Message: "violates foreign key"}
	env = Translate(fk, false)
	require.Equal(t, 409, env.Status)

	other := &pq.Error{Code: "57014", Message: "canceling statement"}
	env = Translate(other, false)
	require.Equal(t, 500, env.Status)
}

func TestClassifyMaxBytes(t *testing.T) {
	err := &http.MaxBytesError{Limit: 1024}
	env := Translate(err, false)
	require.Equal(t, 413, env.Status)
	require.Equal(t, "Uploaded file is too large", env.Message)
}

func TestTranslateRetryAfter(t *testing.T) {
	env := Translate(&AppError{Kind: KindRateLimited, Message: "Too many requests", RetryAfter: 42}, true)
	require.Equal(t, 429, env.Status)
	require.Equal(t, 42, env.RetryAfter)
}
