package main

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegisterLoginFlow(t *testing.T) {
	app := newTestApp(t)
	router := app.Router()

	rec := doJSON(t, router, "POST", "/api/auth/register", "", creds{Email: "sam@example.com", Password: "hunter22", Name: "Sam"})
	require.Equal(t, http.StatusCreated, rec.Code)

	var out struct {
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
		User         struct {
			Email string `json:"email"`
		} `json:"user"`
	}
	require.NoError(t, jsonDecode(rec, &out))
	require.NotEmpty(t, out.AccessToken)
	require.NotEmpty(t, out.RefreshToken)
	require.Equal(t, "sam@example.com", out.User.Email)

	// the issued token works against a protected route
	rec = doJSON(t, router, "GET", "/api/auth/me", out.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	data := decodeData(t, rec)
	require.Equal(t, "sam@example.com", data["email"])

	// login with the right and wrong password
	rec = doJSON(t, router, "POST", "/api/auth/login", "", creds{Email: "sam@example.com", Password: "hunter22"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, "POST", "/api/auth/login", "", creds{Email: "sam@example.com", Password: "wrong"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "Invalid email or password", decodeEnvelope(t, rec).Message)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	app := newTestApp(t)
	router := app.Router()

	rec := doJSON(t, router, "POST", "/api/auth/register", "", creds{Email: "dup@example.com", Password: "pw123456"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, router, "POST", "/api/auth/register", "", creds{Email: "dup@example.com", Password: "pw123456"})
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, "User with this email already exists", decodeEnvelope(t, rec).Message)
}

func TestRefreshRotationAndReuse(t *testing.T) {
	app := newTestApp(t)
	router := app.Router()

	rec := doJSON(t, router, "POST", "/api/auth/register", "", creds{Email: "r@example.com", Password: "pw123456"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var first struct {
		RefreshToken string `json:"refreshToken"`
	}
	require.NoError(t, jsonDecode(rec, &first))

	// rotate
	rec = doJSON(t, router, "POST", "/api/auth/refresh", "", map[string]string{"refreshToken": first.RefreshToken})
	require.Equal(t, http.StatusOK, rec.Code)
	var second struct {
		RefreshToken string `json:"refreshToken"`
		AccessToken  string `json:"accessToken"`
	}
	require.NoError(t, jsonDecode(rec, &second))
	require.NotEqual(t, first.RefreshToken, second.RefreshToken)

	// replaying the rotated token revokes the whole family
	rec = doJSON(t, router, "POST", "/api/auth/refresh", "", map[string]string{"refreshToken": first.RefreshToken})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, router, "POST", "/api/auth/refresh", "", map[string]string{"refreshToken": second.RefreshToken})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogoutRevokesToken(t *testing.T) {
	app := newTestApp(t)
	router := app.Router()

	rec := doJSON(t, router, "POST", "/api/auth/register", "", creds{Email: "l@example.com", Password: "pw123456"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var out struct {
		RefreshToken string `json:"refreshToken"`
	}
	require.NoError(t, jsonDecode(rec, &out))

	rec = doJSON(t, router, "POST", "/api/auth/logout", "", map[string]string{"refreshToken": out.RefreshToken})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, "POST", "/api/auth/refresh", "", map[string]string{"refreshToken": out.RefreshToken})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

// Six bodyless login attempts from one IP within the window: the sixth
// must be throttled for the full 15 minutes.
func TestLoginBruteForceThrottled(t *testing.T) {
	app := newTestApp(t)
	router := app.Router()

	for i := 0; i < 5; i++ {
		rec := doJSON(t, router, "POST", "/api/auth/login", "", nil)
		require.Equal(t, http.StatusBadRequest, rec.Code, "attempt %d", i+1)
	}

	rec := doJSON(t, router, "POST", "/api/auth/login", "", nil)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	env := decodeEnvelope(t, rec)
	require.InDelta(t, 900, env.RetryAfter, 1)
	require.Equal(t, "900", rec.Header().Get("Retry-After"))
}

// A valid token for a user deleted after issuance is rejected with 403
// on a protected route.
func TestStaleTokenAfterAccountDeletion(t *testing.T) {
	app := newTestApp(t)
	router := app.Router()
	u, token := registerUser(t, app, "stale@example.com")
	app.DB.(*MemStore).DeleteUser(u.ID)

	rec := doJSON(t, router, "GET", "/api/expenses", token, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Equal(t, "User no longer exists", decodeEnvelope(t, rec).Message)
}

func TestUpdateAvatar(t *testing.T) {
	app := newTestApp(t)
	router := app.Router()
	_, token := registerUser(t, app, "pic@example.com")

	rec := doJSON(t, router, "PUT", "/api/users/avatar", token, map[string]string{"avatarUrl": "/uploads/abc.png"})
	require.Equal(t, http.StatusOK, rec.Code)
	data := decodeData(t, rec)
	require.Equal(t, "/uploads/abc.png", data["avatarUrl"])
}
