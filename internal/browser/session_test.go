// internal/browser/session_test.go
package browser

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/sorteando-crawler/internal/config"
	"github.com/xkilldash9x/sorteando-crawler/internal/extract"
)

const createPage = `<!doctype html>
<html><body>
<form id="f">
  <input id="nome"><input id="email">
  <button type="submit">Criar</button>
</form>
<script>
document.getElementById("f").addEventListener("submit", function (e) {
  e.preventDefault();
  var nome = document.getElementById("nome").value;
  setTimeout(function () {
    history.pushState({}, "", "/evento/4821/administracao");
    document.body.innerHTML =
      "<h1>" + nome + "</h1>" +
      "<a href='/evento/4821/administracao'>Administrar</a>" +
      "<a href='/evento/4821'>Ver evento</a>" +
      "<div class='styles_AccessCode__a'>Código de Acesso: 998877</div>";
  }, 200);
});
</script>
</body></html>`

const registerPage = `<!doctype html>
<html><body>
<form id="f">
  <input id="nome">
  <div id="telefone-field"><input maxlength="4"></div>
  <input id="cidade"><input id="email">
  <input type="submit" value="Inscrever">
</form>
<script>
var phone = document.querySelector("#telefone-field input");
phone.addEventListener("change", function () { document.body.dataset.phone = phone.value; });
document.getElementById("f").addEventListener("submit", function (e) {
  e.preventDefault();
  var seen = document.body.dataset.phone || "";
  document.body.innerHTML = "<p>Telefone " + seen + "</p><p>Seu número é 17</p>";
});
</script>
</body></html>`

const slowPage = `<!doctype html>
<html><body>
<p>Pronto</p>
<img src="/slow.png">
<form><input id="nome"><button type="submit" style="display:none">Oculto</button></form>
</body></html>`

func findChrome(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("browser tests are skipped in short mode")
	}
	for _, name := range []string{"headless-shell", "chromium", "chromium-browser", "google-chrome", "google-chrome-stable"} {
		if p, err := exec.LookPath(name); err == nil {
			return p
		}
	}
	t.Skip("no Chrome binary available")
	return ""
}

func newFakeSite(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	serve := func(body string) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			fmt.Fprint(w, body)
		}
	}
	mux.HandleFunc("/evento/novo", serve(createPage))
	mux.HandleFunc("/evento/9/cadastro", serve(registerPage))
	mux.HandleFunc("/lento", serve(slowPage))
	mux.HandleFunc("/slow.png", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func openTestSession(t *testing.T) *Session {
	t.Helper()
	cfg := config.NewDefaultConfig().Browser
	cfg.ExecPath = findChrome(t)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	s, err := Open(ctx, cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSession_CreateFlow(t *testing.T) {
	site := newFakeSite(t)
	s := openTestSession(t)
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	require.NoError(t, s.Navigate(ctx, site.URL+"/evento/novo", 10*time.Second))
	require.NoError(t, s.Fill(ctx, Field{Name: "nome", Selector: "#nome", Value: "Rifa"}, 5*time.Second))
	require.NoError(t, s.Fill(ctx, Field{Name: "email", Selector: "#email", Value: "a@b.co"}, 5*time.Second))
	require.NoError(t, s.Submit(ctx, `button[type="submit"]`, 5*time.Second))
	require.NoError(t, s.WaitFor(ctx, URLContains("/administracao"), 5*time.Second))

	doc, err := s.Snapshot(ctx)
	require.NoError(t, err)
	res := extract.Extract(doc, extract.CreateEventSpec())
	require.True(t, res.Complete(), "missing %v in %q", res.Missing(), doc.BodyText)
	assert.Equal(t, site.URL+"/evento/4821", res.Fields[extract.FieldEventLink])
	assert.Equal(t, "4821", res.Fields[extract.FieldEventID])
	assert.Equal(t, "998877", res.Fields[extract.FieldAccessCode])
}

func TestSession_DirectAssignFiresChange(t *testing.T) {
	site := newFakeSite(t)
	s := openTestSession(t)
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	require.NoError(t, s.Navigate(ctx, site.URL+"/evento/9/cadastro", 10*time.Second))
	require.NoError(t, s.Fill(ctx, Field{
		Name: "telefone", Selector: "#telefone-field input", Value: "79999990000", Strategy: StrategyAssign,
	}, 5*time.Second))
	require.NoError(t, s.Submit(ctx, `button[type="submit"], input[type="submit"]`, 5*time.Second))
	require.NoError(t, s.WaitFor(ctx, TextMatches(`Seu número é\s+\d+`), 5*time.Second))

	doc, err := s.Snapshot(ctx)
	require.NoError(t, err)
	// maxlength only limits typing, so the full value got through.
	assert.Contains(t, doc.BodyText, "Telefone 79999990000")
}

func TestSession_Failures(t *testing.T) {
	site := newFakeSite(t)
	s := openTestSession(t)
	ctx := context.Background()

	require.NoError(t, s.Navigate(ctx, site.URL+"/evento/novo", 10*time.Second))

	err := s.Fill(ctx, Field{Name: "cpf", Selector: "#cpf", Value: "x"}, 300*time.Millisecond)
	assert.ErrorIs(t, err, ErrElementNotFound)

	err = s.WaitFor(ctx, TextContains("nunca aparece"), 300*time.Millisecond)
	assert.ErrorIs(t, err, ErrWaitTimeout)

	u, err := s.URL(ctx)
	require.NoError(t, err)
	assert.Equal(t, site.URL+"/evento/novo", u)

	png, err := s.Screenshot(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, png)
}

func TestSession_NavigateDoesNotWaitForSubresources(t *testing.T) {
	site := newFakeSite(t)
	s := openTestSession(t)
	ctx := context.Background()

	start := time.Now()
	require.NoError(t, s.Navigate(ctx, site.URL+"/lento", 2*time.Second))
	assert.Less(t, time.Since(start), 2*time.Second)
	require.NoError(t, s.WaitFor(ctx, TextContains("Pronto"), time.Second))
}

func TestSession_HiddenControlIsNotFound(t *testing.T) {
	site := newFakeSite(t)
	s := openTestSession(t)
	ctx := context.Background()

	require.NoError(t, s.Navigate(ctx, site.URL+"/lento", 2*time.Second))

	// The button exists but never becomes visible, so the click cannot happen.
	err := s.Submit(ctx, `button[type="submit"]`, 500*time.Millisecond)
	assert.ErrorIs(t, err, ErrElementNotFound)
	assert.NotErrorIs(t, err, context.Canceled)
	assert.NoError(t, ctx.Err())
}

func TestSession_CloseIsIdempotent(t *testing.T) {
	s := openTestSession(t)

	assert.NoError(t, s.Close())
	assert.True(t, s.Closed())
	assert.NoError(t, s.Close())

	err := s.Navigate(context.Background(), "about:blank", time.Second)
	assert.ErrorIs(t, err, ErrSessionClosed)
}
