package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/vedran77/whiteboard/pkg/validator"
)

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, map[string]any{
		"success": false,
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}

func writeValidationErrors(w http.ResponseWriter, errs validator.ValidationErrors) {
	writeJSON(w, http.StatusBadRequest, map[string]any{
		"success": false,
		"error": map[string]any{
			"code":    "VALIDATION_ERROR",
			"message": errs.First(),
			"fields":  errs,
		},
	})
}
