package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"
)

type creds struct{ Email, Password, Name string }

func userPayload(u *User) map[string]interface{} {
	return map[string]interface{}{
		"id":        u.ID,
		"email":     u.Email,
		"name":      u.Name,
		"avatarUrl": u.AvatarURL,
	}
}

func (a *App) issueTokens(w http.ResponseWriter, status int, u *User) {
	access, err := createAccessToken(u.ID)
	if err != nil {
		a.writeFailure(w, wrapErr(KindInternal, "Failed to issue token", err))
		return
	}
	ref, err := genToken(32)
	if err != nil {
		a.writeFailure(w, wrapErr(KindInternal, "Failed to issue token", err))
		return
	}
	if err := a.DB.CreateRefreshToken(ref, u.ID, time.Now().Add(30*24*time.Hour).Unix()); err != nil {
		a.writeFailure(w, wrapErr(KindInternal, "Failed to issue token", err))
		return
	}
	writeJSON(w, status, map[string]interface{}{
		"user":         userPayload(u),
		"accessToken":  access,
		"refreshToken": ref,
	})
}

func (a *App) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var c creds
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		a.writeFailure(w, wrapErr(KindValidation, "Invalid request body", err))
		return
	}
	if c.Email == "" || c.Password == "" {
		a.writeFailure(w, appErr(KindValidation, "Email and password are required"))
		return
	}

	hashed, err := hashPassword(c.Password)
	if err != nil {
		a.writeFailure(w, wrapErr(KindInternal, "Failed to process password", err))
		return
	}
	user, err := a.DB.CreateUser(c.Email, hashed, c.Name)
	if err != nil {
		if errors.Is(err, errDuplicate) {
			a.writeFailure(w, appErr(KindConflict, "User with this email already exists"))
			return
		}
		a.writeFailure(w, err)
		return
	}
	a.issueTokens(w, http.StatusCreated, user)
}

func (a *App) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var c creds
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		a.writeFailure(w, wrapErr(KindValidation, "Invalid request body", err))
		return
	}
	user, err := a.DB.GetUserByEmail(c.Email)
	if err != nil {
		a.writeFailure(w, err)
		return
	}
	if user == nil || !comparePassword(user.Password, c.Password) {
		a.writeFailure(w, appErr(KindAuthentication, "Invalid email or password"))
		return
	}
	a.issueTokens(w, http.StatusOK, user)
}

func (a *App) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	var in struct{ RefreshToken string }
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		a.writeFailure(w, wrapErr(KindValidation, "Invalid request body", err))
		return
	}
	if in.RefreshToken == "" {
		a.writeFailure(w, appErr(KindValidation, "Refresh token is required"))
		return
	}
	row, err := a.DB.GetRefreshToken(in.RefreshToken)
	if err != nil {
		a.writeFailure(w, err)
		return
	}
	if row == nil {
		a.writeFailure(w, appErr(KindAuthentication, "Invalid refresh token"))
		return
	}
	if row.Revoked {
		// reuse of a rotated token: assume theft, revoke the whole family
		a.DB.RevokeAllRefreshTokensForUser(row.UserID)
		a.writeFailure(w, appErr(KindAuthentication, "Token reuse detected - all tokens revoked"))
		return
	}
	if row.ExpiresAt < time.Now().Unix() {
		a.writeFailure(w, appErr(KindAuthentication, "Refresh token has expired"))
		return
	}

	user, err := a.DB.GetUserByID(row.UserID)
	if err != nil {
		a.writeFailure(w, err)
		return
	}
	if user == nil {
		a.writeFailure(w, appErr(KindPermission, "User no longer exists"))
		return
	}

	// rotate
	a.DB.RevokeRefreshToken(in.RefreshToken)
	a.issueTokens(w, http.StatusOK, user)
}

func (a *App) HandleLogout(w http.ResponseWriter, r *http.Request) {
	var in struct{ RefreshToken string }
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		a.writeFailure(w, wrapErr(KindValidation, "Invalid request body", err))
		return
	}
	if in.RefreshToken == "" {
		a.writeFailure(w, appErr(KindValidation, "Refresh token is required"))
		return
	}
	if err := a.DB.RevokeRefreshToken(in.RefreshToken); err != nil {
		a.writeFailure(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]bool{"revoked": true})
}

func (a *App) HandleMe(w http.ResponseWriter, r *http.Request) {
	u := identityFrom(r.Context())
	writeSuccess(w, http.StatusOK, userPayload(u))
}

func (a *App) HandleUpdateAvatar(w http.ResponseWriter, r *http.Request) {
	u := identityFrom(r.Context())
	var in struct {
		AvatarURL string `json:"avatarUrl"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		a.writeFailure(w, wrapErr(KindValidation, "Invalid request body", err))
		return
	}
	if in.AvatarURL == "" {
		a.writeFailure(w, appErr(KindValidation, "avatarUrl is required"))
		return
	}
	if err := a.DB.UpdateUserAvatar(u.ID, in.AvatarURL); err != nil {
		a.writeFailure(w, err)
		return
	}
	u.AvatarURL = &in.AvatarURL
	writeSuccess(w, http.StatusOK, userPayload(u))
}
