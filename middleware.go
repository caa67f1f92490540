package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
)

type ctxKey int

const (
	identityKey ctxKey = iota
	requestIDKey
)

func withIdentity(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, identityKey, u)
}

// identityFrom returns the authenticated user attached to ctx, or nil.
func identityFrom(ctx context.Context) *User {
	u, _ := ctx.Value(identityKey).(*User)
	return u
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}

// RequireAuth rejects requests without a valid credential for a live
// account. A token whose subject row has since been deleted is still an
// authentication failure, not a server error: the client simply holds a
// stale token.
func (a *App) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			a.writeFailure(w, appErr(KindAuthentication, "Access token is required"))
			return
		}
		userID, err := verifyAccessToken(token)
		if err != nil {
			a.writeFailure(w, appErr(KindPermission, "Invalid or expired token"))
			return
		}
		user, err := a.DB.GetUserByID(userID)
		if err != nil {
			a.writeFailure(w, wrapErr(KindInternal, "Authentication error", err))
			return
		}
		if user == nil {
			a.writeFailure(w, appErr(KindPermission, "User no longer exists"))
			return
		}
		next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), user)))
	})
}

// OptionalAuth attaches an identity when a valid credential is present
// and continues anonymously otherwise. It never rejects: routes behind
// it must stay usable even when a client presents a malformed token.
func (a *App) OptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}
		userID, err := verifyAccessToken(token)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}
		user, err := a.DB.GetUserByID(userID)
		if err != nil || user == nil {
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), user)))
	})
}

// RequireIdentity guards routes that ran OptionalAuth upstream but
// still need a user attached.
func (a *App) RequireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if identityFrom(r.Context()) == nil {
			a.writeFailure(w, appErr(KindAuthentication, "Authentication required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// CORS middleware handles CORS headers
func (a *App) CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Credentials", "true")
		w.Header().Set("Access-Control-Max-Age", "3600")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// RequestID tags each request with an id for log correlation.
func (a *App) RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rid := r.Header.Get("X-Request-Id")
		if rid == "" {
			rid = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", rid)
		ctx := context.WithValue(r.Context(), requestIDKey, rid)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Recover turns panics in handlers into translated 500 responses so no
// failure escapes without an envelope.
func (a *App) Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				stack := debug.Stack()
				log.Printf("panic: %v\n%s", rec, stack)
				a.writeFailure(w, wrapErr(KindInternal, "Internal server error",
					fmt.Errorf("panic: %v\n%s", rec, stack)))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// Logging middleware logs requests
func (a *App) Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start)
		rid, _ := r.Context().Value(requestIDKey).(string)
		log.Printf("[%s] %s %s %d %v (rid: %s)", r.Method, r.URL.Path, r.RemoteAddr, wrapped.statusCode, duration, rid)
	})
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// SecurityHeaders middleware adds security headers
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-XSS-Protection", "1; mode=block")
		w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		next.ServeHTTP(w, r)
	})
}
