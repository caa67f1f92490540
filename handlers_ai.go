package main

import (
	"io"
	"net/http"
)

// HandleScanReceipt forwards an uploaded receipt image to the AI/OCR
// service and returns the extracted expense fields. The route sits
// behind OptionalAuth + RequireIdentity so malformed tokens are parsed
// leniently but an identity is still required.
func (a *App) HandleScanReceipt(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, a.UploadMaxBytes)
	if err := r.ParseMultipartForm(a.UploadMaxBytes); err != nil {
		a.writeFailure(w, multipartErr(err))
		return
	}
	file, header, err := r.FormFile("receipt")
	if err != nil {
		a.writeFailure(w, appErr(KindValidation, "A receipt file is required"))
		return
	}
	defer file.Close()

	image, err := io.ReadAll(file)
	if err != nil {
		a.writeFailure(w, err)
		return
	}

	scan, err := a.AI.ScanReceipt(r.Context(), image, header.Header.Get("Content-Type"))
	if err != nil {
		a.writeFailure(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, scan)
}
