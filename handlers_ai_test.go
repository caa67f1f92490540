package main

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/stretchr/testify/require"
)

func multipartUpload(t *testing.T, field, filename, contentType string, payload []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="`+field+`"; filename="`+filename+`"`)
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(payload)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func doUpload(t *testing.T, h http.Handler, path, token, field, contentType string, payload []byte) *httptest.ResponseRecorder {
	t.Helper()
	body, ct := multipartUpload(t, field, "receipt.jpg", contentType, payload)
	r := httptest.NewRequest("POST", path, body)
	r.RemoteAddr = "127.0.0.1:5555"
	r.Header.Set("Content-Type", ct)
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	return rec
}

func TestScanReceipt(t *testing.T) {
	image := []byte("fake-jpeg-bytes")

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/scan", r.URL.Path)
		require.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req scanRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		decoded, err := base64.StdEncoding.DecodeString(req.Image)
		require.NoError(t, err)
		require.Equal(t, image, decoded)

		json.NewEncoder(w).Encode(ReceiptScan{
			Merchant: "Cafe Roma",
			Amount:   1899,
			Currency: "EUR",
			Date:     "2024-06-01",
			Score:    0.93,
		})
	}))
	defer upstream.Close()

	app := newTestApp(t)
	app.AI = NewAIClient(upstream.URL, "sk-test")
	router := app.Router()
	_, token := registerUser(t, app, "scan@example.com")

	rec := doUpload(t, router, "/api/ai/scan-receipt", token, "receipt", "image/jpeg", image)
	require.Equal(t, http.StatusOK, rec.Code)

	data := decodeData(t, rec)
	require.Equal(t, "Cafe Roma", data["merchant"])
	require.EqualValues(t, 1899, data["amount"])
}

func TestScanReceiptRequiresIdentity(t *testing.T) {
	app := newTestApp(t)
	router := app.Router()

	rec := doUpload(t, router, "/api/ai/scan-receipt", "", "receipt", "image/jpeg", []byte("img"))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "Authentication required", decodeEnvelope(t, rec).Message)

	// a malformed token is parsed leniently but still yields no identity
	rec = doUpload(t, router, "/api/ai/scan-receipt", "garbage", "receipt", "image/jpeg", []byte("img"))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestScanReceiptUpstreamDown(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusBadGateway)
	}))
	defer upstream.Close()

	app := newTestApp(t)
	app.AI = NewAIClient(upstream.URL, "")
	app.Production = true
	router := app.Router()
	_, token := registerUser(t, app, "down@example.com")

	rec := doUpload(t, router, "/api/ai/scan-receipt", token, "receipt", "image/jpeg", []byte("img"))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	env := decodeEnvelope(t, rec)
	require.Equal(t, "Receipt scanning unavailable", env.Message)
	// production mode never leaks the provider response
	require.Empty(t, env.Details)
}

func TestScanReceiptNotConfigured(t *testing.T) {
	app := newTestApp(t)
	router := app.Router()
	_, token := registerUser(t, app, "nocfg@example.com")

	rec := doUpload(t, router, "/api/ai/scan-receipt", token, "receipt", "image/jpeg", []byte("img"))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestScanReceiptMissingFile(t *testing.T) {
	app := newTestApp(t)
	router := app.Router()
	_, token := registerUser(t, app, "nofile@example.com")

	rec := doUpload(t, router, "/api/ai/scan-receipt", token, "wrongfield", "image/jpeg", []byte("img"))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "A receipt file is required", decodeEnvelope(t, rec).Message)
}
