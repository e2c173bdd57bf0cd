package api

import (
	"errors"
	"io"
	"net/http"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// jsonNumbers decodes numbers into untyped values as json.Number, so integers
// beyond 2^53 survive validation and decoding exactly.
var jsonNumbers = jsoniter.Config{
	EscapeHTML:             true,
	SortMapKeys:            true,
	ValidateJsonRawMessage: true,
	UseNumber:              true,
}.Froze()

// errBodyTooLarge is reported when the request exceeds server.max_body_bytes.
var errBodyTooLarge = errors.New("request body too large")

// respondJSON writes v with the given status.
func (s *Server) respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
	}
}

// respondError writes the {"error": msg} envelope used by every route.
func (s *Server) respondError(w http.ResponseWriter, status int, msg string) {
	s.respondJSON(w, status, map[string]string{"error": msg})
}

// invalidPayload is the validation envelope of the auth, venue and location
// routes.
type invalidPayload struct {
	Error   string       `json:"error"`
	Details []fieldIssue `json:"details"`
}

func (s *Server) respondInvalid(w http.ResponseWriter, issues []fieldIssue) {
	s.respondJSON(w, http.StatusBadRequest, invalidPayload{Error: "Dados inválidos", Details: issues})
}

// readBody reads at most limit bytes of the request body.
func readBody(w http.ResponseWriter, r *http.Request, limit int64) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return nil, errBodyTooLarge
	}
	return body, err
}
