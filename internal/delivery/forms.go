package delivery

import (
	"fmt"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
)

func parseMultipart(w http.ResponseWriter, r *http.Request) bool {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
		return false
	}
	return true
}

func requireFile(w http.ResponseWriter, r *http.Request) *multipart.FileHeader {
	if r.MultipartForm == nil || len(r.MultipartForm.File["file"]) == 0 {
		writeInvalid(w, "file", "This field is required.")
		return nil
	}
	return r.MultipartForm.File["file"][0]
}

func filesField(r *http.Request) []*multipart.FileHeader {
	if r.MultipartForm == nil {
		return nil
	}
	return r.MultipartForm.File["files"]
}

// writeInvalid — 400 в формате DRF: {"error": "Invalid input", "details": {...}}
func writeInvalid(w http.ResponseWriter, field, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]any{
		"error":   "Invalid input",
		"details": map[string]string{field: msg},
	})
}

func formFloat(r *http.Request, key string) (float64, bool) {
	v := strings.TrimSpace(r.FormValue(key))
	if v == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func formInt(r *http.Request, key string) (int, bool) {
	v := strings.TrimSpace(r.FormValue(key))
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

// formBool: пустое значение — def, иначе true/1/yes
func formBool(r *http.Request, key string, def bool) bool {
	v := strings.ToLower(strings.TrimSpace(r.FormValue(key)))
	if v == "" {
		return def
	}
	return v == "true" || v == "1" || v == "yes"
}

func extOf(filename string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
}

func rangeError(field string, min, max int) string {
	return fmt.Sprintf("%s must be between %d and %d.", field, min, max)
}
