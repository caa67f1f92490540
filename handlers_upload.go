package main

import (
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var allowedUploadTypes = map[string]string{
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"image/webp":      ".webp",
	"application/pdf": ".pdf",
}

// multipartErr classifies a ParseMultipartForm failure. MaxBytesReader
// errors surface through the multipart reader without wrapping on some
// Go versions, so the message is checked as well.
func multipartErr(err error) error {
	var maxBytes *http.MaxBytesError
	if errors.As(err, &maxBytes) || strings.Contains(err.Error(), "request body too large") {
		return wrapErr(KindUploadTooLarge, "Uploaded file is too large", err)
	}
	return wrapErr(KindValidation, "Invalid multipart form", err)
}

// HandleUploadReceipt stores a receipt file under a generated name and
// returns its reference for use on an expense. Oversized bodies are cut
// off by MaxBytesReader and surface as a 413 envelope.
func (a *App) HandleUploadReceipt(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, a.UploadMaxBytes)
	if err := r.ParseMultipartForm(a.UploadMaxBytes); err != nil {
		a.writeFailure(w, multipartErr(err))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		a.writeFailure(w, appErr(KindValidation, "A file is required"))
		return
	}
	defer file.Close()

	ct := header.Header.Get("Content-Type")
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	ext, ok := allowedUploadTypes[ct]
	if !ok {
		a.writeFailure(w, appErr(KindValidation, "Unsupported file type"))
		return
	}

	if err := os.MkdirAll(a.UploadDir, 0o755); err != nil {
		a.writeFailure(w, err)
		return
	}
	name := uuid.NewString() + ext
	dst, err := os.Create(filepath.Join(a.UploadDir, name))
	if err != nil {
		a.writeFailure(w, err)
		return
	}
	defer dst.Close()
	if _, err := io.Copy(dst, file); err != nil {
		a.writeFailure(w, err)
		return
	}

	url := "/uploads/" + name
	writeSuccess(w, http.StatusCreated, map[string]string{"url": url})
}
