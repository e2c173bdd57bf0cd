package api

import (
	"bytes"
	"context"
	stdjson "encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/crypto/bcrypt"

	"github.com/xkilldash9x/sorteando-crawler/internal/auth"
	"github.com/xkilldash9x/sorteando-crawler/internal/automation"
	"github.com/xkilldash9x/sorteando-crawler/internal/config"
	"github.com/xkilldash9x/sorteando-crawler/internal/store"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeAutomation records requests and answers with canned results.
type fakeAutomation struct {
	mu        sync.Mutex
	creates   []automation.CreateEventRequest
	registers []automation.RegisterRequest
	err       error
}

func (f *fakeAutomation) CreateEvent(_ context.Context, req automation.CreateEventRequest) (*automation.CreateEventResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates = append(f.creates, req)
	if f.err != nil {
		return nil, f.err
	}
	return &automation.CreateEventResult{
		Name:       req.Name,
		Email:      req.Email,
		EventLink:  "https://sorteando.vercel.app/evento/4321",
		AccessCode: "778899",
		EventID:    "4321",
	}, nil
}

func (f *fakeAutomation) Register(_ context.Context, req automation.RegisterRequest) (*automation.RegistrationResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registers = append(f.registers, req)
	if f.err != nil {
		return nil, f.err
	}
	return &automation.RegistrationResult{
		Name:               req.Name,
		Phone:              req.Phone,
		EventID:            req.EventID,
		RegistrationNumber: "17",
	}, nil
}

type fixture struct {
	server *Server
	auto   *fakeAutomation
	repo   *store.Memory
	auth   *auth.Service
}

func newFixture(t *testing.T, logger *zap.Logger) *fixture {
	t.Helper()
	if logger == nil {
		logger = zaptest.NewLogger(t)
	}
	repo := store.NewMemory()
	tokens, err := auth.NewTokens("a-secret", "r-secret", time.Minute, time.Hour)
	require.NoError(t, err)
	authSvc := auth.NewService(repo, tokens, bcrypt.MinCost, logger)
	auto := &fakeAutomation{}

	cfg := config.NewDefaultConfig().Server
	srv, err := NewServer(cfg, Dependencies{Automation: auto, Venues: repo, Locations: repo, Auth: authSvc}, logger)
	require.NoError(t, err)
	return &fixture{server: srv, auto: auto, repo: repo, auth: authSvc}
}

func (f *fixture) do(t *testing.T, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	return rec
}

func (f *fixture) login(t *testing.T, role string) (store.User, string) {
	t.Helper()
	email := role + "@sorteando.dev"
	u, err := f.auth.Register(context.Background(), auth.RegisterInput{
		Email: email, Password: "segredo123", Name: "Pessoa " + role,
		CPF: map[string]string{"admin": "11111111111", "viewer": "22222222222"}[role], Registration: "M", Role: role,
	})
	require.NoError(t, err)
	res, err := f.auth.Authenticate(context.Background(), email, "segredo123")
	require.NoError(t, err)
	return u, res.AccessToken
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestRootAndHealth(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(t, http.MethodGet, "/", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Hello World!", rec.Body.String())

	rec = f.do(t, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, "OK", rec.Body.String())

	rec = f.do(t, http.MethodOptions, "/sorteando/novo", "", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCreateEvent(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		f := newFixture(t, nil)
		rec := f.do(t, http.MethodPost, "/sorteando/novo", `{"nome":"Rifa da Escola","email":"dona@rifa.com.br"}`, "")
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		want := map[string]any{
			"message": "Sorteio criado com sucesso",
			"dados": map[string]any{
				"nome":          "Rifa da Escola",
				"email":         "dona@rifa.com.br",
				"link_sorteio":  "https://sorteando.vercel.app/evento/4321",
				"codigo_acesso": "778899",
				"numero_sorteio": "4321",
			},
		}
		if diff := cmp.Diff(want, decodeBody(t, rec)); diff != "" {
			t.Errorf("response mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("validation failures never reach the browser", func(t *testing.T) {
		f := newFixture(t, nil)
		rec := f.do(t, http.MethodPost, "/sorteando/novo", `{"nome":"","email":"nope"}`, "")
		require.Equal(t, http.StatusBadRequest, rec.Code)

		var body automationIssues
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		paths := map[string]bool{}
		for _, issue := range body.Error {
			paths[issue.Path] = true
		}
		assert.True(t, paths["nome"])
		assert.True(t, paths["email"])
		assert.Empty(t, f.auto.creates)
	})

	t.Run("missing fields are reported per field", func(t *testing.T) {
		f := newFixture(t, nil)
		rec := f.do(t, http.MethodPost, "/sorteando/novo", `{}`, "")
		require.Equal(t, http.StatusBadRequest, rec.Code)
		var body automationIssues
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, []fieldIssue{{Path: "email", Message: "is required"}, {Path: "nome", Message: "is required"}}, body.Error)
	})

	t.Run("automation failures are generic", func(t *testing.T) {
		core, logs := observer.New(zap.ErrorLevel)
		f := newFixture(t, zap.New(core))
		f.auto.err = &automation.Error{
			Kind:       automation.KindExtractionIncomplete,
			Missing:    []string{"accessCode"},
			Diagnostic: "página com segredo interno",
		}

		rec := f.do(t, http.MethodPost, "/sorteando/novo", `{"nome":"Rifa","email":"a@b.com"}`, "")
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.JSONEq(t, `{"error":"Erro interno ao criar sorteio."}`, rec.Body.String())
		assert.NotContains(t, rec.Body.String(), "segredo")
		assert.Zero(t, logs.Len(), "typed failures are logged by the service, not twice here")
	})

	t.Run("busy maps to 503", func(t *testing.T) {
		f := newFixture(t, nil)
		f.auto.err = &automation.Error{Kind: automation.KindBusy}
		rec := f.do(t, http.MethodPost, "/sorteando/novo", `{"nome":"Rifa","email":"a@b.com"}`, "")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Equal(t, "5", rec.Header().Get("Retry-After"))
	})

	t.Run("service-side validation keeps the 400 shape", func(t *testing.T) {
		f := newFixture(t, nil)
		f.auto.err = &automation.Error{
			Kind:   automation.KindValidation,
			Fields: []automation.FieldError{{Field: "email", Message: "must be a valid email address"}},
		}
		rec := f.do(t, http.MethodPost, "/sorteando/novo", `{"nome":"Rifa","email":"a@b.com"}`, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.JSONEq(t, `{"error":[{"path":"email","message":"must be a valid email address"}]}`, rec.Body.String())
	})

	t.Run("unexpected errors are logged and generic", func(t *testing.T) {
		core, logs := observer.New(zap.ErrorLevel)
		f := newFixture(t, zap.New(core))
		f.auto.err = errors.New("boom")
		rec := f.do(t, http.MethodPost, "/sorteando/novo", `{"nome":"Rifa","email":"a@b.com"}`, "")
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, 1, logs.FilterMessage("Unexpected automation error.").Len())
	})
}

func TestRegister(t *testing.T) {
	tests := []struct {
		name    string
		eventID string
		want    string
	}{
		{"string id", `"1234"`, "1234"},
		{"numeric id", `1234`, "1234"},
		{"large numeric id", `98765432`, "98765432"},
		{"id beyond float64 precision", `9007199254740993`, "9007199254740993"},
		{"exponent notation", `1e3`, "1000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)
			body := `{"numero_sorteio":` + tt.eventID + `,"nome":"Ana","telefone":"79999990000","cidade":"Aracaju","email":"ana@x.com"}`
			rec := f.do(t, http.MethodPost, "/sorteando/inscrever", body, "")
			require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

			require.Len(t, f.auto.registers, 1)
			assert.Equal(t, tt.want, f.auto.registers[0].EventID)
			assert.JSONEq(t, `{"message":"Inscrição realizada com sucesso","dados":{"nome":"Ana","telefone":"79999990000","evento":"`+tt.want+`","numero_inscricao":"17"}}`, rec.Body.String())
		})
	}

	t.Run("rejects booleans and blank fields", func(t *testing.T) {
		f := newFixture(t, nil)
		body := `{"numero_sorteio":true,"nome":"  ","telefone":"1","cidade":"c","email":"ana@x.com"}`
		rec := f.do(t, http.MethodPost, "/sorteando/inscrever", body, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Empty(t, f.auto.registers)
	})

	rejected := []struct {
		name string
		body string
		path string
	}{
		{"invalid email", `{"numero_sorteio":"9","nome":"Ana","telefone":"79999990000","cidade":"Aracaju","email":"not-an-email"}`, "email"},
		{"fractional id", `{"numero_sorteio":1.5,"nome":"Ana","telefone":"79999990000","cidade":"Aracaju","email":"ana@x.com"}`, "numero_sorteio"},
		{"negative id", `{"numero_sorteio":-3,"nome":"Ana","telefone":"79999990000","cidade":"Aracaju","email":"ana@x.com"}`, "numero_sorteio"},
	}
	for _, tt := range rejected {
		t.Run("rejects "+tt.name, func(t *testing.T) {
			f := newFixture(t, nil)
			rec := f.do(t, http.MethodPost, "/sorteando/inscrever", tt.body, "")
			require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

			var got automationIssues
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
			paths := make([]string, 0, len(got.Error))
			for _, issue := range got.Error {
				paths = append(paths, issue.Path)
			}
			assert.Contains(t, paths, tt.path)
			assert.Empty(t, f.auto.registers)
		})
	}

	t.Run("generic failure message", func(t *testing.T) {
		f := newFixture(t, nil)
		f.auto.err = &automation.Error{Kind: automation.KindNavigationTimeout}
		body := `{"numero_sorteio":"1","nome":"Ana","telefone":"1","cidade":"c","email":"ana@x.com"}`
		rec := f.do(t, http.MethodPost, "/sorteando/inscrever", body, "")
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.JSONEq(t, `{"error":"Erro interno ao tentar realizar a inscrição via automação."}`, rec.Body.String())
	})

	t.Run("malformed JSON", func(t *testing.T) {
		f := newFixture(t, nil)
		rec := f.do(t, http.MethodPost, "/sorteando/inscrever", `{"nome":`, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestEventIDString(t *testing.T) {
	assert.Equal(t, "42", eventIDString(stdjson.Number("42")))
	assert.Equal(t, "42", eventIDString(stdjson.Number("42.0")))
	assert.Equal(t, "18446744073709551617", eventIDString(stdjson.Number("18446744073709551617")))
	assert.Equal(t, "42.5", eventIDString(stdjson.Number("42.5")))
	assert.Equal(t, "", eventIDString(float64(42)))
	assert.Equal(t, "abc", eventIDString("abc"))
	assert.Equal(t, "", eventIDString(nil))
}

func TestServe_GracefulShutdown(t *testing.T) {
	f := newFixture(t, nil)
	f.server.cfg.ShutdownTimeout = 2 * time.Second

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.server.Serve(ctx, ln) }()

	client := &http.Client{Timeout: 2 * time.Second}
	var resp *http.Response
	require.Eventually(t, func() bool {
		resp, err = client.Get("http://" + ln.Addr().String() + "/healthz")
		return err == nil
	}, 2*time.Second, 20*time.Millisecond)
	body := new(bytes.Buffer)
	_, _ = body.ReadFrom(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "OK", body.String())
	client.CloseIdleConnections()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
