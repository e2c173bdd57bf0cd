package extract

import "regexp"

// Field names produced by the built-in specs.
const (
	FieldEventLink          = "eventLink"
	FieldEventID            = "eventId"
	FieldAccessCode         = "accessCode"
	FieldRegistrationNumber = "registrationNumber"
)

// The site renders with non-breaking spaces in places, which \s alone misses.
const space = `[\s\p{Zs}]`

var (
	eventIDPattern    = regexp.MustCompile(`/evento/(\d+)$`)
	digitsPattern     = regexp.MustCompile(`(\d+)`)
	accessCodePattern = regexp.MustCompile(`(?i)Código de Acesso:` + space + `*(\d+)`)
	yourNumberPattern = regexp.MustCompile(`(?i)Seu número é` + space + `+(\d+)`)
	goodLuckPattern   = regexp.MustCompile(`(?i)(\d+)` + space + `+Boa sorte`)
)

// CreateEventSpec describes the confirmation page shown after an event is
// created. The event id is only ever taken from the selected event link.
func CreateEventSpec() Spec {
	eventLink := Rule{Source: SourceLink, Include: "/evento/", Exclude: "/administracao"}
	eventID := eventLink
	eventID.Pattern = eventIDPattern

	return Spec{Fields: []FieldSpec{
		{Name: FieldEventLink, Required: true, Rules: []Rule{eventLink}},
		{Name: FieldAccessCode, Required: true, Rules: []Rule{
			{Source: SourceClass, ClassContains: "AccessCode", Pattern: digitsPattern},
			{Source: SourceText, Pattern: accessCodePattern},
		}},
		{Name: FieldEventID, Required: true, Rules: []Rule{eventID}},
	}}
}

// RegistrationSpec describes the confirmation page shown after registering.
func RegistrationSpec() Spec {
	return Spec{Fields: []FieldSpec{
		{Name: FieldRegistrationNumber, Required: true, Rules: []Rule{
			{Source: SourceText, Pattern: yourNumberPattern},
			{Source: SourceText, Pattern: goodLuckPattern},
		}},
	}}
}
