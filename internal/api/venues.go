package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/xkilldash9x/sorteando-crawler/internal/store"
)

const (
	msgInternal      = "Erro interno do servidor"
	msgVenueNotFound = "Local não encontrado"
)

type dataEnvelope struct {
	Data any `json:"data"`
}

type messageEnvelope struct {
	Message string `json:"message"`
}

// decode validates the body against schema and decodes it into dst,
// answering 400 with the details envelope on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, schema string, dst any) bool {
	body, err := readBody(w, r, s.cfg.MaxBodyBytes)
	if err != nil {
		s.respondInvalid(w, []fieldIssue{{Message: err.Error()}})
		return false
	}
	issues, err := s.schemas.validate(schema, body)
	if err != nil {
		s.logger.Error("Schema validation failed to run.", zap.String("schema", schema), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, msgInternal)
		return false
	}
	if len(issues) > 0 {
		s.respondInvalid(w, issues)
		return false
	}
	if len(body) == 0 {
		return true
	}
	if err := json.Unmarshal(body, dst); err != nil {
		s.respondInvalid(w, []fieldIssue{{Message: err.Error()}})
		return false
	}
	return true
}

// venueID parses the {id} path parameter, answering 404 when it is not a
// positive integer.
func (s *Server) venueID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		s.respondError(w, http.StatusNotFound, msgVenueNotFound)
		return 0, false
	}
	return id, true
}

func (s *Server) venueFailure(w http.ResponseWriter, err error, op string) {
	if errors.Is(err, store.ErrNotFound) {
		s.respondError(w, http.StatusNotFound, msgVenueNotFound)
		return
	}
	s.logger.Error("Venue operation failed.", zap.String("op", op), zap.Error(err))
	s.respondError(w, http.StatusInternalServerError, msgInternal)
}

func (s *Server) handleListVenues(w http.ResponseWriter, r *http.Request) {
	venues, err := s.deps.Venues.ListVenues(r.Context())
	if err != nil {
		s.venueFailure(w, err, "list")
		return
	}
	s.respondJSON(w, http.StatusOK, dataEnvelope{Data: venues})
}

func (s *Server) handleGetVenue(w http.ResponseWriter, r *http.Request) {
	id, ok := s.venueID(w, r)
	if !ok {
		return
	}
	v, err := s.deps.Venues.GetVenue(r.Context(), id)
	if err != nil {
		s.venueFailure(w, err, "get")
		return
	}
	s.respondJSON(w, http.StatusOK, dataEnvelope{Data: v})
}

func (s *Server) handleCreateVenue(w http.ResponseWriter, r *http.Request) {
	var in store.VenueInput
	if !s.decode(w, r, schemaVenue, &in) {
		return
	}
	v, err := s.deps.Venues.CreateVenue(r.Context(), in)
	if err != nil {
		s.venueFailure(w, err, "create")
		return
	}
	s.respondJSON(w, http.StatusCreated, dataEnvelope{Data: v})
}

func (s *Server) handleUpdateVenue(w http.ResponseWriter, r *http.Request) {
	id, ok := s.venueID(w, r)
	if !ok {
		return
	}
	var patch store.VenuePatch
	if !s.decode(w, r, schemaVenuePatch, &patch) {
		return
	}
	v, err := s.deps.Venues.UpdateVenue(r.Context(), id, patch)
	if err != nil {
		s.venueFailure(w, err, "update")
		return
	}
	s.respondJSON(w, http.StatusOK, dataEnvelope{Data: v})
}

func (s *Server) handleDeleteVenue(w http.ResponseWriter, r *http.Request) {
	id, ok := s.venueID(w, r)
	if !ok {
		return
	}
	if err := s.deps.Venues.DeleteVenue(r.Context(), id); err != nil {
		s.venueFailure(w, err, "delete")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSeedVenues(w http.ResponseWriter, r *http.Request) {
	n, err := store.SeedVenues(r.Context(), s.deps.Venues, s.logger)
	if err != nil {
		s.venueFailure(w, err, "seed")
		return
	}
	if n == 0 {
		s.respondJSON(w, http.StatusOK, messageEnvelope{Message: "Locais já cadastrados"})
		return
	}
	s.respondJSON(w, http.StatusCreated, messageEnvelope{Message: strconv.Itoa(n) + " locais cadastrados com sucesso"})
}
