package automation

import (
	"net/mail"
	"strings"
)

// CreateEventRequest asks for a new raffle event.
type CreateEventRequest struct {
	Name  string
	Email string
}

// RegisterRequest asks to register a participant in an existing event.
// EventID is the decimal id as it appears in the event URL.
type RegisterRequest struct {
	EventID string
	Name    string
	Phone   string
	City    string
	Email   string
}

// CreateEventResult is what the site reports after creating an event.
type CreateEventResult struct {
	Name       string
	Email      string
	EventLink  string
	AccessCode string
	EventID    string
}

// RegistrationResult is what the site reports after a registration.
type RegistrationResult struct {
	Name               string
	Phone              string
	EventID            string
	RegistrationNumber string
}

// Validate reports every invalid field at once.
func (r CreateEventRequest) Validate() error {
	var v validator
	v.required("nome", r.Name)
	v.email("email", r.Email)
	return v.err()
}

// Validate reports every invalid field at once.
func (r RegisterRequest) Validate() error {
	var v validator
	v.required("numero_sorteio", r.EventID)
	v.required("nome", r.Name)
	v.required("telefone", r.Phone)
	v.required("cidade", r.City)
	v.email("email", r.Email)
	return v.err()
}

type validator struct {
	fields []FieldError
}

func (v *validator) required(name, value string) bool {
	if strings.TrimSpace(value) == "" {
		v.fields = append(v.fields, FieldError{Field: name, Message: "is required"})
		return false
	}
	return true
}

func (v *validator) email(name, value string) {
	if !v.required(name, value) {
		return
	}
	addr, err := mail.ParseAddress(value)
	if err != nil || addr.Address != value || !strings.Contains(addr.Address[strings.LastIndex(addr.Address, "@")+1:], ".") {
		v.fields = append(v.fields, FieldError{Field: name, Message: "must be a valid email address"})
	}
}

func (v *validator) err() error {
	if len(v.fields) == 0 {
		return nil
	}
	return &Error{Kind: KindValidation, State: StateCreated, Fields: v.fields}
}
