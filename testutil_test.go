package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	jwtSecret = []byte("test-secret")
	os.Exit(m.Run())
}

func newTestApp(t *testing.T) *App {
	t.Helper()
	return &App{
		DB:             NewMemStore(),
		Quota:          NewQuotaStore(),
		Policies:       newPolicyTable(100, 15*time.Minute),
		AI:             NewAIClient("", ""),
		Production:     false,
		UploadMaxBytes: 1 << 20,
		UploadDir:      t.TempDir(),
	}
}

// registerUser creates an account directly against the store and
// returns it with a fresh access token.
func registerUser(t *testing.T, app *App, email string) (*User, string) {
	t.Helper()
	hashed, err := hashPassword("secret123")
	require.NoError(t, err)
	u, err := app.DB.CreateUser(email, hashed, "Test User")
	require.NoError(t, err)
	token, err := createAccessToken(u.ID)
	require.NoError(t, err)
	return u, token
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) Envelope {
	t.Helper()
	var env Envelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
	return env
}

func doJSON(t *testing.T, h http.Handler, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	r := httptest.NewRequest(method, path, reader)
	r.RemoteAddr = "127.0.0.1:5555"
	r.Header.Set("Content-Type", "application/json")
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	return rec
}

func jsonDecode(rec *httptest.ResponseRecorder, v interface{}) error {
	return json.NewDecoder(rec.Body).Decode(v)
}

// jsonNum renders a decoded JSON number (float64) as a path segment.
func jsonNum(v interface{}) string {
	f, _ := v.(float64)
	return strconv.FormatInt(int64(f), 10)
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out struct {
		Success bool                   `json:"success"`
		Data    map[string]interface{} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	require.True(t, out.Success)
	return out.Data
}
