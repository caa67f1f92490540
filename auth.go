package main

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var errTokenInvalid = errors.New("invalid or expired token")

func genToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func hashPassword(p string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(p), bcrypt.DefaultCost)
	return string(b), err
}

func comparePassword(hash, p string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(p)) == nil
}

func createAccessToken(userId int64) (string, error) {
	claims := jwt.MapClaims{"userId": userId, "exp": time.Now().Add(time.Hour).Unix()}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(jwtSecret)
}

// verifyAccessToken checks the signature and expiry of a bearer token
// and returns the embedded subject id. Signature comparison is left to
// the jwt library (constant-time HMAC verify). Any failure collapses to
// errTokenInvalid; callers never learn whether the signature or the
// expiry was at fault.
func verifyAccessToken(token string) (int64, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return jwtSecret, nil
	})
	if err != nil || !parsed.Valid {
		return 0, errTokenInvalid
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return 0, errTokenInvalid
	}
	// a token without an expiry is never acceptable
	if _, ok := claims["exp"]; !ok {
		return 0, errTokenInvalid
	}
	// numeric claims decode as float64
	id, ok := claims["userId"].(float64)
	if !ok {
		return 0, errTokenInvalid
	}
	return int64(id), nil
}
