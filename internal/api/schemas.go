package api

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const (
	schemaCreateEvent = "create-event"
	schemaRegister    = "register"
	schemaVenue       = "venue"
	schemaVenuePatch  = "venue-patch"
	schemaLogin       = "login"
	schemaRefresh     = "refresh"
	schemaNewUser     = "new-user"
	schemaUserPatch   = "user-patch"
	schemaFCMToken    = "fcm-token"
	schemaLocation    = "location"
)

// requiredString rejects empty and whitespace-only strings.
const requiredString = `{"type": "string", "minLength": 1, "pattern": "\\S"}`

var schemaSources = map[string]string{
	schemaCreateEvent: `{
		"type": "object",
		"required": ["nome", "email"],
		"properties": {
			"nome":  ` + requiredString + `,
			"email": {"type": "string", "format": "email"}
		}
	}`,
	schemaRegister: `{
		"type": "object",
		"required": ["numero_sorteio", "nome", "telefone", "cidade", "email"],
		"properties": {
			"numero_sorteio": {
				"oneOf": [
					` + requiredString + `,
					{"type": "integer", "minimum": 0}
				]
			},
			"nome":     ` + requiredString + `,
			"telefone": ` + requiredString + `,
			"cidade":   ` + requiredString + `,
			"email":    {"type": "string", "format": "email"}
		}
	}`,
	schemaVenue: `{
		"type": "object",
		"required": ["nome", "endereco", "logo", "responsavel", "latitude", "longitude"],
		"properties": {
			"nome":        ` + requiredString + `,
			"endereco":    ` + requiredString + `,
			"logo":        {"type": "string"},
			"responsavel": ` + requiredString + `,
			"latitude":    {"type": "number", "minimum": -90, "maximum": 90},
			"longitude":   {"type": "number", "minimum": -180, "maximum": 180}
		}
	}`,
	schemaVenuePatch: `{
		"type": "object",
		"properties": {
			"nome":        ` + requiredString + `,
			"endereco":    ` + requiredString + `,
			"logo":        {"type": "string"},
			"responsavel": ` + requiredString + `,
			"latitude":    {"type": "number", "minimum": -90, "maximum": 90},
			"longitude":   {"type": "number", "minimum": -180, "maximum": 180}
		}
	}`,
	schemaLogin: `{
		"type": "object",
		"required": ["email", "senha"],
		"properties": {
			"email": {"type": "string", "format": "email"},
			"senha": {"type": "string", "minLength": 6}
		}
	}`,
	schemaRefresh: `{
		"type": "object",
		"required": ["refreshToken"],
		"properties": {"refreshToken": {"type": "string", "minLength": 1}}
	}`,
	schemaNewUser: `{
		"type": "object",
		"required": ["email", "senha", "nome", "cpf", "matricula", "role"],
		"properties": {
			"email":     {"type": "string", "format": "email"},
			"senha":     {"type": "string", "minLength": 6},
			"nome":      {"type": "string", "minLength": 3},
			"cpf":       {"type": "string", "pattern": "^[0-9]{11}$"},
			"matricula": {"type": "string", "minLength": 1},
			"role":      {"type": "string", "minLength": 1}
		}
	}`,
	schemaUserPatch: `{
		"type": "object",
		"properties": {
			"nome":      {"type": "string"},
			"email":     {"type": "string", "format": "email"},
			"password":  {"type": "string", "minLength": 6},
			"matricula": {"type": "string"},
			"role":      {"type": "string"},
			"avatarUrl": {"type": "string", "format": "uri"},
			"fcmToken":  {"type": "string"}
		}
	}`,
	schemaFCMToken: `{
		"type": "object",
		"required": ["fcmToken"],
		"properties": {"fcmToken": {"type": "string", "minLength": 1}}
	}`,
	schemaLocation: `{
		"type": "object",
		"required": ["accuracy", "device_name", "device_time", "is_moving", "latitude", "longitude", "speed", "timestamp"],
		"properties": {
			"accuracy":    {"type": "string", "minLength": 1},
			"device_name": {"type": "string", "minLength": 1, "maxLength": 255},
			"device_time": {"type": "string", "minLength": 1},
			"is_moving":   {"type": "boolean"},
			"latitude":    {"type": "string", "minLength": 1},
			"longitude":   {"type": "string", "minLength": 1},
			"speed":       {"type": "string", "minLength": 1},
			"timestamp":   {"type": "string", "minLength": 1}
		}
	}`,
}

// fieldIssue is one validation failure, addressed by top-level field name.
type fieldIssue struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// schemaSet holds the compiled request schemas.
type schemaSet map[string]*jsonschema.Schema

func compileSchemas() (schemaSet, error) {
	set := make(schemaSet, len(schemaSources))
	for name, src := range schemaSources {
		c := jsonschema.NewCompiler()
		c.Draft = jsonschema.Draft2020
		c.AssertFormat = true
		url := fmt.Sprintf("https://sorteando.local/schemas/%s.schema.json", name)
		if err := c.AddResource(url, strings.NewReader(src)); err != nil {
			return nil, fmt.Errorf("schema %s load failed: %w", name, err)
		}
		compiled, err := c.Compile(url)
		if err != nil {
			return nil, fmt.Errorf("schema %s compile failed: %w", name, err)
		}
		set[name] = compiled
	}
	return set, nil
}

var errNotJSON = errors.New("body is not valid JSON")

// validate checks body against the named schema. A nil issue list with a nil
// error means the payload is valid.
func (set schemaSet) validate(name string, body []byte) ([]fieldIssue, error) {
	var doc any
	if len(bytes.TrimSpace(body)) == 0 {
		doc = map[string]any{}
	} else if err := jsonNumbers.Unmarshal(body, &doc); err != nil {
		return []fieldIssue{{Path: "", Message: errNotJSON.Error()}}, nil
	}

	schema, ok := set[name]
	if !ok {
		return nil, fmt.Errorf("unknown schema %q", name)
	}
	err := schema.Validate(doc)
	if err == nil {
		return nil, nil
	}
	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		return nil, err
	}
	return flattenIssues(verr), nil
}

var quotedName = regexp.MustCompile(`'([^']+)'`)

// flattenIssues turns the validation tree into one issue per leaf, sorted by
// path. Missing properties at the root become one issue per property.
func flattenIssues(root *jsonschema.ValidationError) []fieldIssue {
	var issues []fieldIssue
	seen := make(map[fieldIssue]bool)
	add := func(i fieldIssue) {
		if !seen[i] {
			seen[i] = true
			issues = append(issues, i)
		}
	}

	var walk func(e *jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) > 0 {
			for _, c := range e.Causes {
				walk(c)
			}
			return
		}
		path := strings.TrimPrefix(e.InstanceLocation, "/")
		if i := strings.Index(path, "/"); i >= 0 {
			path = path[:i]
		}
		if strings.HasPrefix(e.Message, "missing properties") {
			for _, m := range quotedName.FindAllStringSubmatch(e.Message, -1) {
				add(fieldIssue{Path: m[1], Message: "is required"})
			}
			return
		}
		add(fieldIssue{Path: path, Message: e.Message})
	}
	walk(root)

	sort.SliceStable(issues, func(i, j int) bool { return issues[i].Path < issues[j].Path })
	return issues
}
