package automation

import (
	"github.com/xkilldash9x/sorteando-crawler/internal/browser"
	"github.com/xkilldash9x/sorteando-crawler/internal/config"
	"github.com/xkilldash9x/sorteando-crawler/internal/extract"
)

// Selectors and signals of the raffle site. They change when the site does.
const (
	selectorName   = "#nome"
	selectorEmail  = "#email"
	selectorPhone  = "#telefone-field input"
	selectorCity   = "#cidade"
	selectorCreate = `button[type="submit"]`
	selectorSubmit = `button[type="submit"], input[type="submit"]`

	adminPathSignal  = "/administracao"
	accessCodeText   = "Código de Acesso"
	accessCodeSignal = `Código de Acesso:\s*\d+`
	yourNumberSignal = `Seu número é\s+\d+`
	goodLuckSignal   = `\d+\s+Boa sorte`
)

const (
	WorkflowCreateEvent = "create-event"
	WorkflowRegister    = "register"
)

// CreateEventWorkflow builds the run that creates an event.
func CreateEventWorkflow(target config.TargetConfig, t config.AutomationConfig, req CreateEventRequest) Workflow {
	return Workflow{
		Name:              WorkflowCreateEvent,
		URL:               target.CreateURL(),
		NavigationTimeout: t.CreateNavigationTimeout,
		ReadySelector:     selectorName,
		FormTimeout:       t.FormTimeout,
		Fields: []browser.Field{
			{Name: "nome", Selector: selectorName, Value: req.Name},
			{Name: "email", Selector: selectorEmail, Value: req.Email},
		},
		SubmitSelector: selectorCreate,
		SubmitTimeout:  t.SubmitTimeout,
		Outcome: SignalWait{
			Primary:  browser.URLContains(adminPathSignal),
			Fallback: browser.TextContains(accessCodeText),
			Timeout:  t.OutcomeTimeout,
			Required: true,
		},
		Secondary: &SignalWait{
			Primary: browser.TextMatches(accessCodeSignal),
			Timeout: t.SecondaryTimeout,
		},
		Spec: extract.CreateEventSpec(),
	}
}

// RegistrationWorkflow builds the run that registers a participant. The
// confirmation signals are advisory; extraction decides the outcome.
func RegistrationWorkflow(target config.TargetConfig, t config.AutomationConfig, req RegisterRequest) Workflow {
	return Workflow{
		Name:              WorkflowRegister,
		URL:               target.RegisterURL(req.EventID),
		NavigationTimeout: t.RegisterNavigationTimeout,
		Settle:            t.RegisterSettle,
		ReadySelector:     selectorName,
		FormTimeout:       t.FormTimeout,
		Fields: []browser.Field{
			{Name: "nome", Selector: selectorName, Value: req.Name},
			{Name: "telefone", Selector: selectorPhone, Value: req.Phone, Strategy: browser.StrategyAssign},
			{Name: "cidade", Selector: selectorCity, Value: req.City},
			{Name: "email", Selector: selectorEmail, Value: req.Email},
		},
		SubmitSelector: selectorSubmit,
		SubmitTimeout:  t.SubmitTimeout,
		Outcome: SignalWait{
			Primary:  browser.TextMatches(yourNumberSignal),
			Fallback: browser.TextMatches(goodLuckSignal),
			Timeout:  t.OutcomeTimeout,
		},
		Spec: extract.RegistrationSpec(),
	}
}
