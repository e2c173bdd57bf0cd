package api

import (
	stdjson "encoding/json"
	"errors"
	"math/big"
	"net/http"

	"go.uber.org/zap"

	"github.com/xkilldash9x/sorteando-crawler/internal/automation"
)

const (
	msgCreateFailed   = "Erro interno ao criar sorteio."
	msgRegisterFailed = "Erro interno ao tentar realizar a inscrição via automação."
	msgBusy           = "Serviço ocupado. Tente novamente em instantes."
)

type createEventBody struct {
	Name  string `json:"nome"`
	Email string `json:"email"`
}

// registerBody accepts numero_sorteio as a string or a non-negative integer.
type registerBody struct {
	EventID any    `json:"numero_sorteio"`
	Name    string `json:"nome"`
	Phone   string `json:"telefone"`
	City    string `json:"cidade"`
	Email   string `json:"email"`
}

type createEventData struct {
	Name       string `json:"nome"`
	Email      string `json:"email"`
	EventLink  string `json:"link_sorteio"`
	AccessCode string `json:"codigo_acesso"`
	EventID    string `json:"numero_sorteio"`
}

type registrationData struct {
	Name               string `json:"nome"`
	Phone              string `json:"telefone"`
	EventID            string `json:"evento"`
	RegistrationNumber string `json:"numero_inscricao"`
}

type successEnvelope struct {
	Message string `json:"message"`
	Data    any    `json:"dados"`
}

// automationIssues is the 400 body of the automation routes.
type automationIssues struct {
	Error []fieldIssue `json:"error"`
}

func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	var body createEventBody
	if !s.decodeAutomation(w, r, schemaCreateEvent, &body) {
		return
	}

	res, err := s.deps.Automation.CreateEvent(r.Context(), automation.CreateEventRequest{Name: body.Name, Email: body.Email})
	if err != nil {
		s.respondAutomationError(w, err, msgCreateFailed)
		return
	}
	s.respondJSON(w, http.StatusCreated, successEnvelope{
		Message: "Sorteio criado com sucesso",
		Data: createEventData{
			Name:       res.Name,
			Email:      res.Email,
			EventLink:  res.EventLink,
			AccessCode: res.AccessCode,
			EventID:    res.EventID,
		},
	})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var body registerBody
	if !s.decodeAutomation(w, r, schemaRegister, &body) {
		return
	}

	res, err := s.deps.Automation.Register(r.Context(), automation.RegisterRequest{
		EventID: eventIDString(body.EventID),
		Name:    body.Name,
		Phone:   body.Phone,
		City:    body.City,
		Email:   body.Email,
	})
	if err != nil {
		s.respondAutomationError(w, err, msgRegisterFailed)
		return
	}
	s.respondJSON(w, http.StatusCreated, successEnvelope{
		Message: "Inscrição realizada com sucesso",
		Data: registrationData{
			Name:               res.Name,
			Phone:              res.Phone,
			EventID:            res.EventID,
			RegistrationNumber: res.RegistrationNumber,
		},
	})
}

// eventIDString normalizes numero_sorteio. Integral numbers are rendered as
// plain decimal digits, exactly, whatever their size or notation.
func eventIDString(v any) string {
	switch id := v.(type) {
	case string:
		return id
	case stdjson.Number:
		r, ok := new(big.Rat).SetString(id.String())
		if !ok || !r.IsInt() {
			return id.String()
		}
		return r.Num().String()
	default:
		return ""
	}
}

// decodeAutomation validates and decodes a request body, answering 400 on
// failure. It reports whether the handler should proceed.
func (s *Server) decodeAutomation(w http.ResponseWriter, r *http.Request, schema string, dst any) bool {
	body, err := readBody(w, r, s.cfg.MaxBodyBytes)
	if err != nil {
		s.respondJSON(w, http.StatusBadRequest, automationIssues{Error: []fieldIssue{{Message: err.Error()}}})
		return false
	}
	issues, err := s.schemas.validate(schema, body)
	if err != nil {
		s.logger.Error("Schema validation failed to run.", zap.String("schema", schema), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "Erro interno do servidor")
		return false
	}
	if len(issues) > 0 {
		s.respondJSON(w, http.StatusBadRequest, automationIssues{Error: issues})
		return false
	}
	if err := jsonNumbers.Unmarshal(body, dst); err != nil {
		s.respondJSON(w, http.StatusBadRequest, automationIssues{Error: []fieldIssue{{Message: err.Error()}}})
		return false
	}
	return true
}

// respondAutomationError maps a run failure to its client response. Only
// validation detail is ever echoed back.
func (s *Server) respondAutomationError(w http.ResponseWriter, err error, generic string) {
	var failure *automation.Error
	if errors.As(err, &failure) {
		switch failure.Kind {
		case automation.KindValidation:
			issues := make([]fieldIssue, 0, len(failure.Fields))
			for _, f := range failure.Fields {
				issues = append(issues, fieldIssue{Path: f.Field, Message: f.Message})
			}
			s.respondJSON(w, http.StatusBadRequest, automationIssues{Error: issues})
			return
		case automation.KindBusy:
			w.Header().Set("Retry-After", "5")
			s.respondError(w, http.StatusServiceUnavailable, msgBusy)
			return
		}
	} else {
		s.logger.Error("Unexpected automation error.", zap.Error(err))
	}
	s.respondError(w, http.StatusInternalServerError, generic)
}
