package auth_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"

	"github.com/buildtrack/buildtrack-backend/internal/auth"
	"github.com/buildtrack/buildtrack-backend/internal/dbtest"
)

// newTestServer mounts the auth routes the way main.go does, on a fresh
// in-memory database.
func newTestServer(t *testing.T) (*httptest.Server, *gorm.DB) {
	t.Helper()
	d := dbtest.Open(t)
	if err := auth.Init(d, ""); err != nil {
		t.Fatalf("auth.Init: %v", err)
	}

	r := chi.NewRouter()
	r.Mount("/api/auth", auth.SetupRoutes(auth.NewHandler(d, time.Hour, false)))

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, d
}

// newClientWithJar returns an http.Client with a fresh cookie jar that automatically
// carries cookies between requests.
func newClientWithJar(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookiejar.New: %v", err)
	}
	return &http.Client{Jar: jar}
}

func postJSON(t *testing.T, client *http.Client, url string, payload any) *http.Response {
	t.Helper()
	body, _ := json.Marshal(payload)
	resp, err := client.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

// readBody reads and returns the response body as a string, draining and closing it.
func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(b)
}

// registerAndLogin creates a user through the API and logs the client in.
func registerAndLogin(t *testing.T, srv *httptest.Server, client *http.Client, username string) string {
	t.Helper()
	creds := map[string]string{"username": username, "password": "TestPass123!"}

	resp := postJSON(t, client, srv.URL+"/api/auth/register", creds)
	if body := readBody(t, resp); resp.StatusCode != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d; body: %s", resp.StatusCode, body)
	}

	resp = postJSON(t, client, srv.URL+"/api/auth/login", creds)
	body := readBody(t, resp)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login: expected 200, got %d; body: %s", resp.StatusCode, body)
	}
	if !strings.Contains(resp.Header.Get("Set-Cookie"), "session_id") {
		t.Errorf("expected Set-Cookie to contain session_id, got %q", resp.Header.Get("Set-Cookie"))
	}

	var result map[string]string
	if err := json.Unmarshal([]byte(body), &result); err != nil {
		t.Fatalf("invalid JSON body: %s", body)
	}
	if result["userId"] == "" {
		t.Fatal("expected userId in login response")
	}
	return result["userId"]
}

// TestSessionPersistsAcrossRequests verifies that after login, GET /api/auth/user
// returns the signed-in user on repeated calls with the same cookie jar.
func TestSessionPersistsAcrossRequests(t *testing.T) {
	srv, _ := newTestServer(t)
	client := newClientWithJar(t)
	registerAndLogin(t, srv, client, "dana")

	for i := 0; i < 2; i++ {
		resp, err := client.Get(srv.URL + "/api/auth/user")
		if err != nil {
			t.Fatalf("GET /api/auth/user: %v", err)
		}
		body := readBody(t, resp)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("call %d: expected 200, got %d; body: %s", i+1, resp.StatusCode, body)
		}
		var me map[string]any
		if err := json.Unmarshal([]byte(body), &me); err != nil {
			t.Fatalf("invalid JSON body: %s", body)
		}
		if me["username"] != "dana" {
			t.Errorf("expected username dana, got %v", me["username"])
		}
		if _, leaked := me["hashedPassword"]; leaked {
			t.Error("password hash must not be serialised")
		}
	}
}

// TestDuplicateUsernameRejected verifies that registering the same username twice
// answers 409.
func TestDuplicateUsernameRejected(t *testing.T) {
	srv, _ := newTestServer(t)
	client := newClientWithJar(t)
	registerAndLogin(t, srv, client, "sam")

	resp := postJSON(t, client, srv.URL+"/api/auth/register",
		map[string]string{"username": "sam", "password": "AnotherPass1!"})
	body := readBody(t, resp)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d; body: %s", resp.StatusCode, body)
	}
}

// TestLoginWrongPassword verifies that bad credentials answer 401 without a cookie.
func TestLoginWrongPassword(t *testing.T) {
	srv, _ := newTestServer(t)
	client := newClientWithJar(t)
	registerAndLogin(t, srv, client, "lee")

	resp := postJSON(t, newClientWithJar(t), srv.URL+"/api/auth/login",
		map[string]string{"username": "lee", "password": "wrong-password"})
	readBody(t, resp)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
	if resp.Header.Get("Set-Cookie") != "" {
		t.Error("no cookie expected on failed login")
	}
}

// TestLogoutClearsSession verifies the full logout flow: login, logout, then
// /api/auth/user returns 401.
func TestLogoutClearsSession(t *testing.T) {
	srv, _ := newTestServer(t)
	client := newClientWithJar(t)
	registerAndLogin(t, srv, client, "kim")

	resp := postJSON(t, client, srv.URL+"/api/auth/logout", nil)
	if body := readBody(t, resp); resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 from logout, got %d; body: %s", resp.StatusCode, body)
	}

	resp, err := client.Get(srv.URL + "/api/auth/user")
	if err != nil {
		t.Fatalf("GET /api/auth/user after logout: %v", err)
	}
	readBody(t, resp)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 after logout, got %d", resp.StatusCode)
	}
}

// TestExpiredSessionRejected verifies that a session expired in the database
// is rejected with 401 and the body contains "Session expired".
func TestExpiredSessionRejected(t *testing.T) {
	srv, d := newTestServer(t)
	client := newClientWithJar(t)
	userID := registerAndLogin(t, srv, client, "ari")

	if err := d.Model(&auth.Session{}).
		Where("user_id = ?", userID).
		Update("expires_at", time.Now().Add(-1*time.Hour)).Error; err != nil {
		t.Fatalf("failed to expire session: %v", err)
	}

	resp, err := client.Get(srv.URL + "/api/auth/user")
	if err != nil {
		t.Fatalf("GET /api/auth/user after expiry: %v", err)
	}
	body := readBody(t, resp)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 with expired session, got %d; body: %s", resp.StatusCode, body)
	}
	if !strings.Contains(body, "Session expired") {
		t.Errorf("expected body to contain %q, got: %q", "Session expired", body)
	}
}

// TestSecondLoginReplacesSession verifies a user keeps a single session row.
func TestSecondLoginReplacesSession(t *testing.T) {
	srv, d := newTestServer(t)
	client := newClientWithJar(t)
	userID := registerAndLogin(t, srv, client, "jo")

	resp := postJSON(t, newClientWithJar(t), srv.URL+"/api/auth/login",
		map[string]string{"username": "jo", "password": "TestPass123!"})
	readBody(t, resp)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("second login: expected 200, got %d", resp.StatusCode)
	}

	var n int64
	d.Model(&auth.Session{}).Where("user_id = ?", userID).Count(&n)
	if n != 1 {
		t.Errorf("expected 1 session row, got %d", n)
	}
}
