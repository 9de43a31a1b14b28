package httpx

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestJSONContentType(t *testing.T) {
	rec := httptest.NewRecorder()
	JSON(rec, 201, map[string]int{"id": 7})

	require.Equal(t, 201, rec.Code)
	require.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
}

func TestProblemBody(t *testing.T) {
	rec := httptest.NewRecorder()
	Problem(rec, 404, "Not Found", "Registro não encontrado")

	require.Equal(t, 404, rec.Code)
	require.Equal(t, "application/problem+json; charset=utf-8", rec.Header().Get("Content-Type"))

	var body ProblemDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, ProblemDetail{Title: "Not Found", Status: 404, Detail: "Registro não encontrado"}, body)
}
