package browsertest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

// Selectors and texts of the login page the fixtures imitate
const (
	UsernameInput  = `input[name="username"]`
	PasswordInput  = `input[name="password"]`
	SubmitButton   = `button[type="submit"]`
	ErrorContainer = `.alert.alert-danger`

	LoginTitle     = "Login | DeepThought"
	DashboardTitle = "Welcome to DeepThought | DeepThought"
	ErrorText      = "\nLogin Unsuccessful\n\nInvalid login credentials"
)

// NewLoginSession returns a fake session that behaves like the login page:
// valid credentials switch the title to the dashboard, anything else shows
// the error container; a hard reload restores the blank form.
func NewLoginSession(username, password string) *Session {
	s := NewSession()
	s.OnNavigate = func(s *Session, url string) error {
		resetLoginForm(s)
		return nil
	}
	s.OnReload = func(s *Session, hard bool) error {
		if hard {
			resetLoginForm(s)
		}
		return nil
	}
	s.OnClick[SubmitButton] = func(s *Session) error {
		if s.Elements[UsernameInput].Value == username && s.Elements[PasswordInput].Value == password {
			s.PageTitle = DashboardTitle
			s.Remove(UsernameInput)
			s.Remove(PasswordInput)
			s.Remove(SubmitButton)
			s.Remove(ErrorContainer)
			return nil
		}
		s.Set(ErrorContainer, Element{Count: 1, Visible: true, Text: ErrorText})
		return nil
	}
	return s
}

func resetLoginForm(s *Session) {
	s.PageTitle = LoginTitle
	s.Set(UsernameInput, Element{Count: 1, Visible: true})
	s.Set(PasswordInput, Element{Count: 1, Visible: true})
	s.Set(SubmitButton, Element{Count: 1, Visible: true, Text: "Login"})
	s.Remove(ErrorContainer)
}

const loginHTML = `<!DOCTYPE html>
<html>
<head><title>Login | DeepThought</title></head>
<body>
<div id="messages"></div>
<form id="login" autocomplete="off">
  <input name="username" type="text">
  <input name="password" type="password">
  <button type="submit">Login</button>
</form>
<script>
document.getElementById("login").addEventListener("submit", function (ev) {
  ev.preventDefault();
  var f = ev.target;
  if (f.username.value === %s && f.password.value === %s) {
    location.href = "/dashboard";
    return;
  }
  document.getElementById("messages").innerHTML =
    '<div class="alert alert-danger"><h4>Login Unsuccessful</h4><p>Invalid login credentials</p></div>';
});
</script>
</body>
</html>`

const dashboardHTML = `<!DOCTYPE html>
<html>
<head><title>Welcome to DeepThought | DeepThought</title></head>
<body><h1>Dashboard</h1></body>
</html>`

// NewLoginServer serves a minimal HTML login page at /login. Submitting the
// given credentials navigates to /dashboard; anything else renders the error
// container in place, so a reload restores the blank form.
func NewLoginServer(t testing.TB, username, password string) *httptest.Server {
	t.Helper()

	page := fmt.Sprintf(loginHTML, jsString(username), jsString(password))

	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		fmt.Fprint(w, page)
	})
	mux.HandleFunc("/dashboard", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, dashboardHTML)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
