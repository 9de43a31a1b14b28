// Package httpx holds the JSON response helpers shared by the
// procurement API handlers.
package httpx

import (
	"encoding/json"
	"net/http"
)

// ProblemDetail is the RFC 7807 error body returned by every handler.
type ProblemDetail struct {
	Type   string `json:"type,omitempty"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

func write(w http.ResponseWriter, status int, contentType string, body any) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// JSON writes body as a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, body any) {
	write(w, status, "application/json; charset=utf-8", body)
}

// Problem writes an RFC 7807 problem response. Detail carries the
// user-facing message, title the short machine-friendly summary.
func Problem(w http.ResponseWriter, status int, title, detail string) {
	write(w, status, "application/problem+json; charset=utf-8", ProblemDetail{
		Title:  title,
		Status: status,
		Detail: detail,
	})
}

// DecodeJSON decodes the request body into target.
func DecodeJSON(r *http.Request, target any) error {
	return json.NewDecoder(r.Body).Decode(target)
}
